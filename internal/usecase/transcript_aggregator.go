package usecase

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/domain"
	"breeze/internal/metrics"
	"breeze/internal/ports"
)

// transcriptAggregator owns the in-progress recording of a capture session.
// All mutations go through it so segment appends never race with pause,
// resume or snapshotting.
type transcriptAggregator struct {
	id string

	mu        sync.Mutex
	recording domain.Recording
	speaker   domain.Speaker
	sealed    bool
	now       func() time.Time
}

func newTranscriptAggregator(recording domain.Recording, speaker domain.Speaker, now func() time.Time) *transcriptAggregator {
	if !speaker.Valid() {
		speaker = domain.SpeakerClient
	}
	return &transcriptAggregator{id: recording.ID, recording: recording, speaker: speaker, now: now}
}

// Add appends a final transcript event as a segment from the capture speaker.
func (a *transcriptAggregator) Add(event domain.TranscriptEvent) (domain.Segment, error) {
	return a.Append(a.speaker, event.Text, event.Confidence)
}

// Append adds one segment. It fails with ErrNotRecording while paused.
func (a *transcriptAggregator) Append(speaker domain.Speaker, text string, confidence *float64) (domain.Segment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed {
		return domain.Segment{}, ErrNotRecording
	}
	now := a.now()
	updated, err := AppendSegment(a.recording, domain.Segment{
		Speaker:    speaker,
		Text:       text,
		Timestamp:  now,
		Confidence: confidence,
	}, now)
	if err != nil {
		return domain.Segment{}, err
	}
	a.recording = updated
	return updated.Transcript[len(updated.Transcript)-1], nil
}

func (a *transcriptAggregator) Pause() (domain.Recording, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	updated, err := Pause(a.recording, a.now())
	if err != nil {
		return a.recording.Clone(), err
	}
	a.recording = updated
	return updated.Clone(), nil
}

func (a *transcriptAggregator) Resume() (domain.Recording, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	updated, err := Resume(a.recording, a.now())
	if err != nil {
		return a.recording.Clone(), err
	}
	a.recording = updated
	return updated.Clone(), nil
}

func (a *transcriptAggregator) Paused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording.Status == domain.RecordingStatusPaused
}

func (a *transcriptAggregator) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Elapsed(a.recording, a.now())
}

// Seal stops further appends and returns the final state.
func (a *transcriptAggregator) Seal() domain.Recording {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sealed = true
	return a.recording.Clone()
}

func (a *transcriptAggregator) Snapshot() domain.Recording {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording.Clone()
}

func consumeTranscriptionEvents(
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	rules ports.RulesEngine,
	events ports.EventSink,
	m *metrics.Metrics,
	log logrus.FieldLogger,
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		text := strings.TrimSpace(event.Text)
		if text == "" {
			continue
		}
		if aggregator.Paused() {
			continue
		}
		if event.Kind == domain.TranscriptKindPartial {
			events.PartialTranscript(text)
			continue
		}

		if rules != nil {
			rewritten, err := rules.Apply(text)
			if err != nil {
				events.SessionError(domain.ErrorCodeRules, err.Error())
				log.WithError(err).Warn("substitution rules failed, keeping raw text")
			} else {
				text = rewritten
			}
		}

		event.Text = text
		segment, err := aggregator.Add(event)
		switch {
		case errors.Is(err, ErrNotRecording), errors.Is(err, ErrEmptySegment):
			continue
		case err != nil:
			log.WithError(err).Warn("dropped transcript segment")
			continue
		}
		m.SegmentsAppended.Inc()
		events.SegmentAppended(aggregator.id, segment)
	}
}
