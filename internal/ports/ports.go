package ports

import (
	"context"
	"encoding/json"
	"io"

	"breeze/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	Language       string
	InterimResults bool
}

// StreamingSession is an active speech-to-text session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}

// RulesEngine rewrites captured utterances using deterministic rules.
type RulesEngine interface {
	Apply(text string) (string, error)
}

// KeyValueStore persists whole JSON documents by key. A missing key is
// reported with ok=false and a nil error.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (doc json.RawMessage, ok bool, err error)
	Set(ctx context.Context, key string, doc json.RawMessage) error
	Remove(ctx context.Context, key string) error
}

// RecordingRepository stores the recording collection.
type RecordingRepository interface {
	List(ctx context.Context) ([]domain.Recording, error)
	Get(ctx context.Context, id string) (domain.Recording, bool, error)
	Save(ctx context.Context, recording domain.Recording) error
	Delete(ctx context.Context, id string) error
}

// SettingsSource yields the analysis settings in effect for the next run.
type SettingsSource interface {
	Load(ctx context.Context) domain.AnalysisSettings
}

// AnalysisProvider extracts special points from a completed recording.
type AnalysisProvider interface {
	Name() string
	Analyze(ctx context.Context, recording domain.Recording) ([]domain.SpecialPoint, error)
}

// RecordingAnalyzer runs analysis for a stored recording.
type RecordingAnalyzer interface {
	AnalyzeRecording(ctx context.Context, id string) ([]domain.SpecialPoint, error)
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	PartialTranscript(text string)
	SegmentAppended(recordingID string, segment domain.Segment)
	Tick(recordingID string, elapsedSeconds int)
	RecordingUpdated(recording domain.Recording)
	SessionError(code domain.ErrorCode, detail string)
}
