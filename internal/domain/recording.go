package domain

import (
	"slices"
	"time"
)

// RecordingStatus is the lifecycle state of a stored conversation recording.
type RecordingStatus string

const (
	RecordingStatusRecording RecordingStatus = "recording"
	RecordingStatusPaused    RecordingStatus = "paused"
	RecordingStatusCompleted RecordingStatus = "completed"
	// RecordingStatusProcessing is reserved; no transition reaches it.
	RecordingStatusProcessing RecordingStatus = "processing"
)

// Valid reports whether s is a declared status.
func (s RecordingStatus) Valid() bool {
	switch s {
	case RecordingStatusRecording, RecordingStatusPaused, RecordingStatusCompleted, RecordingStatusProcessing:
		return true
	default:
		return false
	}
}

// Speaker tags who produced a segment.
type Speaker string

const (
	SpeakerClient Speaker = "client"
	SpeakerAgent  Speaker = "agent"
)

// Valid reports whether s is client or agent.
func (s Speaker) Valid() bool {
	return s == SpeakerClient || s == SpeakerAgent
}

// Segment is one utterance in a recording's transcript. Segments are
// immutable once appended.
type Segment struct {
	ID         string    `json:"id"`
	Speaker    Speaker   `json:"speaker"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence *float64  `json:"confidence,omitempty"`
}

// AnalysisRun records the last successful analysis of a recording. A nil
// run means the recording was never analyzed; a run with PointCount zero
// means the analysis found nothing.
type AnalysisRun struct {
	Provider    string    `json:"provider"`
	Model       string    `json:"model,omitempty"`
	CompletedAt time.Time `json:"completedAt"`
	PointCount  int       `json:"pointCount"`
}

// Recording is one captured or in-progress conversation.
type Recording struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	ClientName string          `json:"clientName,omitempty"`
	ClientID   string          `json:"clientId,omitempty"`
	StartTime  time.Time       `json:"startTime"`
	EndTime    *time.Time      `json:"endTime,omitempty"`
	Duration   int             `json:"duration"`
	Status     RecordingStatus `json:"status"`
	Transcript []Segment       `json:"transcript"`

	Summary         string         `json:"summary,omitempty"`
	KeyPoints       []string       `json:"keyPoints,omitempty"`
	SpecialPoints   []SpecialPoint `json:"specialPoints,omitempty"`
	FollowUpActions []string       `json:"followUpActions,omitempty"`
	Tags            []string       `json:"tags"`
	AudioFile       string         `json:"audioFile,omitempty"`
	Analysis        *AnalysisRun   `json:"analysis,omitempty"`

	PausedAt     *time.Time `json:"pausedAt,omitempty"`
	PausedMillis int64      `json:"pausedMillis,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Clone returns a copy whose slices can be extended without touching r.
func (r Recording) Clone() Recording {
	out := r
	out.Transcript = slices.Clone(r.Transcript)
	out.KeyPoints = slices.Clone(r.KeyPoints)
	out.SpecialPoints = slices.Clone(r.SpecialPoints)
	out.FollowUpActions = slices.Clone(r.FollowUpActions)
	out.Tags = slices.Clone(r.Tags)
	if r.EndTime != nil {
		end := *r.EndTime
		out.EndTime = &end
	}
	if r.PausedAt != nil {
		paused := *r.PausedAt
		out.PausedAt = &paused
	}
	if r.Analysis != nil {
		run := *r.Analysis
		out.Analysis = &run
	}
	return out
}

// CountBySpeaker returns how many segments each speaker contributed.
func CountBySpeaker(segments []Segment) (client int, agent int) {
	for _, segment := range segments {
		switch segment.Speaker {
		case SpeakerClient:
			client++
		case SpeakerAgent:
			agent++
		}
	}
	return client, agent
}
