package domain

import (
	"fmt"
	"strings"
	"time"
)

// SpecialPointType categorizes one analysis finding.
type SpecialPointType string

const (
	PointRequirement SpecialPointType = "requirement"
	PointConcern     SpecialPointType = "concern"
	PointOpportunity SpecialPointType = "opportunity"
	PointDecision    SpecialPointType = "decision"
	PointAgreement   SpecialPointType = "agreement"
	PointObjection   SpecialPointType = "objection"
	PointQuestion    SpecialPointType = "question"
	PointInsight     SpecialPointType = "insight"
)

// SpecialPointTypes lists every declared point type.
var SpecialPointTypes = []SpecialPointType{
	PointRequirement, PointConcern, PointOpportunity, PointDecision,
	PointAgreement, PointObjection, PointQuestion, PointInsight,
}

// ParseSpecialPointType maps a provider label onto a declared type.
// An empty label yields PointInsight.
func ParseSpecialPointType(raw string) (SpecialPointType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return PointInsight, nil
	}
	for _, known := range SpecialPointTypes {
		if string(known) == value {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown special point type %q", raw)
}

// Importance ranks how urgent a special point is.
type Importance string

const (
	ImportanceLow      Importance = "low"
	ImportanceMedium   Importance = "medium"
	ImportanceHigh     Importance = "high"
	ImportanceCritical Importance = "critical"
)

// ParseImportance maps a provider label onto a declared importance.
// An empty label yields ImportanceMedium.
func ParseImportance(raw string) (Importance, error) {
	switch value := Importance(strings.ToLower(strings.TrimSpace(raw))); value {
	case "":
		return ImportanceMedium, nil
	case ImportanceLow, ImportanceMedium, ImportanceHigh, ImportanceCritical:
		return value, nil
	default:
		return "", fmt.Errorf("unknown importance %q", raw)
	}
}

// SpecialPoint is one categorized insight extracted from a recording.
// IDs are only unique within the owning recording.
type SpecialPoint struct {
	ID              string           `json:"id"`
	Type            SpecialPointType `json:"type"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Context         string           `json:"context"`
	Timestamp       time.Time        `json:"timestamp"`
	Importance      Importance       `json:"importance"`
	RelatedSegments []string         `json:"relatedSegments"`
	ActionRequired  bool             `json:"actionRequired"`
	FollowUpNeeded  bool             `json:"followUpNeeded"`
	Confidence      *float64         `json:"confidence,omitempty"`
}

// AnalysisState distinguishes "never analyzed", "analyzed" and "failed".
type AnalysisState string

const (
	AnalysisStateNotAnalyzed AnalysisState = "not_analyzed"
	AnalysisStateAnalyzed    AnalysisState = "analyzed"
	AnalysisStateFailed      AnalysisState = "failed"
	AnalysisStateRunning     AnalysisState = "running"
)

// AnalysisStatus reports the analysis state of one recording.
type AnalysisStatus struct {
	RecordingID string        `json:"recordingId"`
	State       AnalysisState `json:"state"`
	PointCount  int           `json:"pointCount"`
	Provider    string        `json:"provider,omitempty"`
	Error       string        `json:"error,omitempty"`
	At          *time.Time    `json:"at,omitempty"`
}

// ConversationAnalytics aggregates all recordings for the dashboard.
type ConversationAnalytics struct {
	TotalRecordings      int      `json:"totalRecordings"`
	TotalDurationMinutes float64  `json:"totalDurationMinutes"`
	AverageDurationMins  float64  `json:"averageDurationMinutes"`
	RecordingsThisWeek   int      `json:"recordingsThisWeek"`
	RecordingsThisMonth  int      `json:"recordingsThisMonth"`
	TopClient            string   `json:"topClient,omitempty"`
	CommonTopics         []string `json:"commonTopics"`
	FollowUpActionsTotal int      `json:"followUpActionsTotal"`
}
