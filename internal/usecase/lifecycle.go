package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"breeze/internal/domain"
	"breeze/internal/insights"
)

var (
	ErrNotRecording      = errors.New("recording is not accepting segments")
	ErrEmptySegment      = errors.New("segment text is empty")
	ErrInvalidSpeaker    = errors.New("segment speaker must be client or agent")
	ErrInvalidTransition = errors.New("invalid recording status transition")
)

const defaultTitle = "Untitled conversation"

// NewRecording creates an in-progress recording starting at now. Persisting
// it is the caller's job.
func NewRecording(title, clientName, clientID string, now time.Time) domain.Recording {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultTitle
	}
	return domain.Recording{
		ID:         uuid.NewString(),
		Title:      title,
		ClientName: strings.TrimSpace(clientName),
		ClientID:   strings.TrimSpace(clientID),
		StartTime:  now,
		Duration:   0,
		Status:     domain.RecordingStatusRecording,
		Transcript: []domain.Segment{},
		Tags:       []string{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AppendSegment returns a copy of rec with seg appended. The segment gets an
// id when it has none and its timestamp is clamped so the transcript stays
// chronological.
func AppendSegment(rec domain.Recording, seg domain.Segment, now time.Time) (domain.Recording, error) {
	if rec.Status != domain.RecordingStatusRecording {
		return rec, fmt.Errorf("%w (status %s)", ErrNotRecording, rec.Status)
	}
	seg.Text = strings.TrimSpace(seg.Text)
	if seg.Text == "" {
		return rec, ErrEmptySegment
	}
	if !seg.Speaker.Valid() {
		return rec, fmt.Errorf("%w: %q", ErrInvalidSpeaker, seg.Speaker)
	}
	if seg.ID == "" {
		seg.ID = uuid.NewString()
	}
	if seg.Timestamp.IsZero() {
		seg.Timestamp = now
	}
	if n := len(rec.Transcript); n > 0 && seg.Timestamp.Before(rec.Transcript[n-1].Timestamp) {
		seg.Timestamp = rec.Transcript[n-1].Timestamp
	}
	if seg.Confidence != nil {
		c := clamp01(*seg.Confidence)
		seg.Confidence = &c
	}

	out := rec.Clone()
	out.Transcript = append(out.Transcript, seg)
	out.UpdatedAt = now
	return out, nil
}

// SetStatus moves rec to status. When endTime is set, duration is
// recomputed as wall-clock time since start minus paused time. Entering and
// leaving the paused state keeps the paused-interval bookkeeping current.
func SetStatus(rec domain.Recording, status domain.RecordingStatus, endTime *time.Time, now time.Time) domain.Recording {
	out := rec.Clone()

	if out.Status == domain.RecordingStatusPaused && status != domain.RecordingStatusPaused && out.PausedAt != nil {
		if now.After(*out.PausedAt) {
			out.PausedMillis += now.Sub(*out.PausedAt).Milliseconds()
		}
		out.PausedAt = nil
	}
	if status == domain.RecordingStatusPaused && out.Status != domain.RecordingStatusPaused {
		pausedAt := now
		out.PausedAt = &pausedAt
	}

	if endTime != nil && !out.StartTime.IsZero() {
		end := *endTime
		out.EndTime = &end
		out.Duration = int(activeTime(out, end) / time.Second)
	}

	out.Status = status
	out.UpdatedAt = now
	return out
}

// Pause suspends segment ingestion and duration accounting.
func Pause(rec domain.Recording, now time.Time) (domain.Recording, error) {
	if rec.Status != domain.RecordingStatusRecording {
		return rec, fmt.Errorf("%w: cannot pause a %s recording", ErrInvalidTransition, rec.Status)
	}
	return SetStatus(rec, domain.RecordingStatusPaused, nil, now), nil
}

// Resume re-enables segment ingestion after a pause.
func Resume(rec domain.Recording, now time.Time) (domain.Recording, error) {
	if rec.Status != domain.RecordingStatusPaused {
		return rec, fmt.Errorf("%w: cannot resume a %s recording", ErrInvalidTransition, rec.Status)
	}
	return SetStatus(rec, domain.RecordingStatusRecording, nil, now), nil
}

// Finalize completes rec at now and derives the summary, keywords and
// follow-up actions enabled in toggles. Special points are left untouched.
func Finalize(rec domain.Recording, toggles domain.AnalysisTypes, now time.Time) (domain.Recording, error) {
	switch rec.Status {
	case domain.RecordingStatusRecording, domain.RecordingStatusPaused:
	default:
		return rec, fmt.Errorf("%w: cannot finalize a %s recording", ErrInvalidTransition, rec.Status)
	}

	out := SetStatus(rec, domain.RecordingStatusCompleted, &now, now)
	if toggles.GenerateSummary {
		out.Summary = insights.Summary(out.Transcript)
	}
	if toggles.IdentifyKeywords {
		out.KeyPoints = insights.ExtractKeywords(out.Transcript)
	}
	if toggles.SuggestFollowUps {
		out.FollowUpActions = insights.FollowUpActions(out.Transcript)
	}
	return out, nil
}

// Elapsed reports the recording time of rec at now, excluding pauses.
func Elapsed(rec domain.Recording, now time.Time) time.Duration {
	if rec.Status == domain.RecordingStatusCompleted {
		return time.Duration(rec.Duration) * time.Second
	}
	if rec.StartTime.IsZero() {
		return 0
	}
	return activeTime(rec, now)
}

func activeTime(rec domain.Recording, end time.Time) time.Duration {
	paused := time.Duration(rec.PausedMillis) * time.Millisecond
	if rec.PausedAt != nil && end.After(*rec.PausedAt) {
		paused += end.Sub(*rec.PausedAt)
	}
	active := end.Sub(rec.StartTime) - paused
	if active < 0 {
		return 0
	}
	return active
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
