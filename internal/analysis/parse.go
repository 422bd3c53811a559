package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/domain"
)

const maxRelatedSegments = 3

// rawPoint is the wire shape a provider returns for one point. Pointer
// fields separate "absent" from zero values so defaults apply only to
// missing keys.
type rawPoint struct {
	Type           *string  `json:"type"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Context        string   `json:"context"`
	Importance     *string  `json:"importance"`
	ActionRequired *bool    `json:"actionRequired"`
	FollowUpNeeded *bool    `json:"followUpNeeded"`
	Confidence     *float64 `json:"confidence"`
}

// Rejected describes a point dropped during validation.
type Rejected struct {
	Index  int
	Reason string
}

// ParseResult is the outcome of parsing one provider response.
type ParseResult struct {
	Points   []domain.SpecialPoint
	Rejected []Rejected
}

// Report logs every rejected point and hands it to onRejected when set.
func (r ParseResult) Report(log logrus.FieldLogger, provider string, onRejected func(Rejected)) {
	for _, rejected := range r.Rejected {
		log.WithFields(logrus.Fields{
			"provider": provider,
			"index":    rejected.Index,
			"reason":   rejected.Reason,
		}).Warn("dropped special point")
		if onRejected != nil {
			onRejected(rejected)
		}
	}
}

// ParsePoints reads the JSON array in a model's reply and converts it into
// special points for recording. Points with unknown type or importance
// labels are rejected individually; a reply without a readable array fails
// as a whole with ErrMalformedResponse.
func ParsePoints(content string, recording domain.Recording, now time.Time) (ParseResult, error) {
	array := extractJSONArray(content)
	if array == "" {
		return ParseResult{}, fmt.Errorf("%w: no JSON array found", ErrMalformedResponse)
	}

	var raws []rawPoint
	if err := json.Unmarshal([]byte(array), &raws); err != nil {
		return ParseResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := ParseResult{Points: make([]domain.SpecialPoint, 0, len(raws))}
	for i, raw := range raws {
		point, err := convertPoint(raw, recording, i, now)
		if err != nil {
			result.Rejected = append(result.Rejected, Rejected{Index: i, Reason: err.Error()})
			continue
		}
		result.Points = append(result.Points, point)
	}
	return result, nil
}

func convertPoint(raw rawPoint, recording domain.Recording, index int, now time.Time) (domain.SpecialPoint, error) {
	pointType, err := domain.ParseSpecialPointType(deref(raw.Type))
	if err != nil {
		return domain.SpecialPoint{}, err
	}
	importance, err := domain.ParseImportance(deref(raw.Importance))
	if err != nil {
		return domain.SpecialPoint{}, err
	}
	if raw.Confidence != nil && (*raw.Confidence < 0 || *raw.Confidence > 1) {
		return domain.SpecialPoint{}, fmt.Errorf("confidence %v out of range", *raw.Confidence)
	}

	context := strings.TrimSpace(raw.Context)
	return domain.SpecialPoint{
		ID:              PointID(now, index),
		Type:            pointType,
		Title:           strings.TrimSpace(raw.Title),
		Description:     strings.TrimSpace(raw.Description),
		Context:         context,
		Timestamp:       now,
		Importance:      importance,
		RelatedSegments: RelatedSegments(context, recording.Transcript),
		ActionRequired:  raw.ActionRequired != nil && *raw.ActionRequired,
		FollowUpNeeded:  raw.FollowUpNeeded != nil && *raw.FollowUpNeeded,
		Confidence:      raw.Confidence,
	}, nil
}

// PointID renders the provider-generated point id "sp-<epoch-ms>-<index>".
func PointID(now time.Time, index int) string {
	return fmt.Sprintf("sp-%d-%d", now.UnixMilli(), index)
}

// RelatedSegments returns the ids of up to three segments, in transcript
// order, whose text contains any context token longer than three
// characters (case-insensitive).
func RelatedSegments(context string, segments []domain.Segment) []string {
	var tokens []string
	for _, token := range strings.Fields(strings.ToLower(context)) {
		if len(token) > 3 {
			tokens = append(tokens, token)
		}
	}

	related := []string{}
	if len(tokens) == 0 {
		return related
	}
	for _, segment := range segments {
		text := strings.ToLower(segment.Text)
		for _, token := range tokens {
			if strings.Contains(text, token) {
				related = append(related, segment.ID)
				break
			}
		}
		if len(related) == maxRelatedSegments {
			break
		}
	}
	return related
}

// extractJSONArray returns the outermost [...] span in content, which
// tolerates code fences and prose around the array.
func extractJSONArray(content string) string {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end <= start {
		return ""
	}
	return content[start : end+1]
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
