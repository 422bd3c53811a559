package usecase

import (
	"errors"
	"strings"
	"testing"
	"time"

	"breeze/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestNewRecordingDefaults(t *testing.T) {
	t.Parallel()

	rec := NewRecording("  ", " Acme ", "c-1", t0)
	if rec.ID == "" || rec.Title != defaultTitle || rec.ClientName != "Acme" {
		t.Fatalf("unexpected recording: %+v", rec)
	}
	if rec.Status != domain.RecordingStatusRecording || rec.Duration != 0 {
		t.Fatalf("unexpected lifecycle fields: %+v", rec)
	}
	if rec.Transcript == nil || rec.Tags == nil {
		t.Fatalf("expected empty, non-nil slices")
	}
	if !rec.CreatedAt.Equal(t0) || !rec.UpdatedAt.Equal(t0) {
		t.Fatalf("unexpected timestamps: %+v", rec)
	}
}

func TestAppendSegmentIsAppendOnly(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	texts := []string{"first", "second", "third"}
	var ids []string
	for i, text := range texts {
		next, err := AppendSegment(rec, domain.Segment{Speaker: domain.SpeakerClient, Text: text}, t0.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
		if len(next.Transcript) != len(rec.Transcript)+1 {
			t.Fatalf("transcript did not grow by one")
		}
		for j, seg := range rec.Transcript {
			if next.Transcript[j] != seg {
				t.Fatalf("existing segment %d changed", j)
			}
		}
		ids = append(ids, next.Transcript[i].ID)
		rec = next
	}
	if ids[0] == ids[1] || ids[1] == ids[2] {
		t.Fatalf("expected unique segment ids: %v", ids)
	}
	for i, text := range texts {
		if rec.Transcript[i].Text != text {
			t.Fatalf("segment %d reordered: %q", i, rec.Transcript[i].Text)
		}
	}
}

func TestAppendSegmentDoesNotAliasInput(t *testing.T) {
	t.Parallel()

	base := NewRecording("Demo", "", "", t0)
	base.Transcript = make([]domain.Segment, 0, 8)
	a, err := AppendSegment(base, domain.Segment{Speaker: domain.SpeakerClient, Text: "a"}, t0)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	b, err := AppendSegment(base, domain.Segment{Speaker: domain.SpeakerAgent, Text: "b"}, t0)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if a.Transcript[0].Text != "a" || b.Transcript[0].Text != "b" || len(base.Transcript) != 0 {
		t.Fatalf("appends share backing storage: %+v %+v", a.Transcript, b.Transcript)
	}
}

func TestAppendSegmentRejections(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	if _, err := AppendSegment(rec, domain.Segment{Speaker: domain.SpeakerClient, Text: "   "}, t0); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("expected ErrEmptySegment, got %v", err)
	}
	if _, err := AppendSegment(rec, domain.Segment{Speaker: "you", Text: "hi"}, t0); !errors.Is(err, ErrInvalidSpeaker) {
		t.Fatalf("expected ErrInvalidSpeaker, got %v", err)
	}

	paused, err := Pause(rec, t0)
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if _, err := AppendSegment(paused, domain.Segment{Speaker: domain.SpeakerClient, Text: "hi"}, t0); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording while paused, got %v", err)
	}
}

func TestAppendSegmentClampsTimestampAndConfidence(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	rec, _ = AppendSegment(rec, domain.Segment{Speaker: domain.SpeakerClient, Text: "a", Timestamp: t0.Add(10 * time.Second)}, t0)
	over := 1.4
	rec, err := AppendSegment(rec, domain.Segment{Speaker: domain.SpeakerAgent, Text: "b", Timestamp: t0, Confidence: &over}, t0)
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	second := rec.Transcript[1]
	if !second.Timestamp.Equal(t0.Add(10 * time.Second)) {
		t.Fatalf("expected clamped timestamp, got %s", second.Timestamp)
	}
	if second.Confidence == nil || *second.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", second.Confidence)
	}
	if over != 1.4 {
		t.Fatalf("caller's confidence value was modified")
	}
}

func TestPausedTimeIsExcludedFromDuration(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)

	// 30s recording, 45s paused, 20s recording, 10s paused, stop.
	rec, err := Pause(rec, t0.Add(30*time.Second))
	if err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if got := Elapsed(rec, t0.Add(60*time.Second)); got != 30*time.Second {
		t.Fatalf("elapsed while paused = %s, want 30s", got)
	}
	rec, err = Resume(rec, t0.Add(75*time.Second))
	if err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if rec.PausedAt != nil || rec.PausedMillis != 45000 {
		t.Fatalf("unexpected pause bookkeeping: %+v", rec)
	}
	if got := Elapsed(rec, t0.Add(95*time.Second)); got != 50*time.Second {
		t.Fatalf("elapsed after resume = %s, want 50s", got)
	}
	rec, _ = Pause(rec, t0.Add(95*time.Second))

	rec, err = Finalize(rec, domain.AnalysisTypes{}, t0.Add(105*time.Second))
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if rec.Duration != 50 {
		t.Fatalf("duration = %d, want 50", rec.Duration)
	}
	if rec.EndTime == nil || !rec.EndTime.Equal(t0.Add(105*time.Second)) {
		t.Fatalf("unexpected end time: %v", rec.EndTime)
	}
	if rec.PausedAt != nil || rec.PausedMillis != 55000 {
		t.Fatalf("open pause not folded on finalize: %+v", rec)
	}
}

func TestDurationFloorsToSeconds(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	end := t0.Add(2999 * time.Millisecond)
	rec = SetStatus(rec, domain.RecordingStatusCompleted, &end, end)
	if rec.Duration != 2 {
		t.Fatalf("duration = %d, want 2", rec.Duration)
	}
}

func TestSetStatusWithoutEndTimeKeepsDuration(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	rec.Duration = 7
	rec = SetStatus(rec, domain.RecordingStatusProcessing, nil, t0.Add(time.Minute))
	if rec.Duration != 7 || rec.EndTime != nil {
		t.Fatalf("unexpected recording: %+v", rec)
	}
	if !rec.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("updatedAt not refreshed")
	}
}

func TestPauseResumeTransitions(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	if _, err := Resume(rec, t0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected resume of active recording to fail, got %v", err)
	}
	paused, _ := Pause(rec, t0)
	if _, err := Pause(paused, t0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected double pause to fail, got %v", err)
	}
	done, _ := Finalize(rec, domain.AnalysisTypes{}, t0)
	if _, err := Finalize(done, domain.AnalysisTypes{}, t0); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected second finalize to fail, got %v", err)
	}
}

func TestFinalizeDerivesInsightsAndHonoursToggles(t *testing.T) {
	t.Parallel()

	rec := NewRecording("Demo", "", "", t0)
	rec, _ = AppendSegment(rec, domain.Segment{Speaker: domain.SpeakerClient, Text: "We need organic certification"}, t0)
	rec, _ = AppendSegment(rec, domain.Segment{Speaker: domain.SpeakerAgent, Text: "Understood, I'll follow up"}, t0)

	all := domain.DefaultAnalysisSettings().AnalysisTypes
	first, err := Finalize(rec, all, t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	second, _ := Finalize(rec, all, t0.Add(time.Minute))
	if first.Summary != second.Summary || strings.Join(first.KeyPoints, ",") != strings.Join(second.KeyPoints, ",") {
		t.Fatalf("derivations are not deterministic")
	}
	if !strings.Contains(first.Summary, "2 segments") {
		t.Fatalf("unexpected summary: %q", first.Summary)
	}
	if len(first.FollowUpActions) != 1 || !strings.Contains(first.FollowUpActions[0], "follow up") {
		t.Fatalf("unexpected follow-ups: %v", first.FollowUpActions)
	}

	none, _ := Finalize(rec, domain.AnalysisTypes{}, t0.Add(time.Minute))
	if none.Summary != "" || len(none.KeyPoints) != 0 || len(none.FollowUpActions) != 0 {
		t.Fatalf("disabled derivations still ran: %+v", none)
	}
	if none.Status != domain.RecordingStatusCompleted || none.Duration != 60 {
		t.Fatalf("unexpected completion: %+v", none)
	}
}
