package domain

// SessionState models the controller's capture lifecycle as seen by the UI.
type SessionState string

const (
	SessionStateIdle      SessionState = "idle"
	SessionStateRecording SessionState = "recording"
	SessionStatePaused    SessionState = "paused"
	SessionStateStopping  SessionState = "stopping"
	SessionStateAnalyzing SessionState = "analyzing"
	SessionStateError     SessionState = "error"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonReady               SessionStateReason = "ready"
	SessionReasonRecordingStarted    SessionStateReason = "recording_started"
	SessionReasonRecordingPaused     SessionStateReason = "recording_paused"
	SessionReasonRecordingResumed    SessionStateReason = "recording_resumed"
	SessionReasonFinalizing          SessionStateReason = "finalizing"
	SessionReasonRecordingSaved      SessionStateReason = "recording_saved"
	SessionReasonAnalyzing           SessionStateReason = "analyzing"
	SessionReasonAnalysisComplete    SessionStateReason = "analysis_complete"
	SessionReasonAnalysisFailed      SessionStateReason = "analysis_failed"
	SessionReasonRecordingDiscarded  SessionStateReason = "recording_discarded"
	SessionReasonNoTranscript        SessionStateReason = "no_transcript"
	SessionReasonTranscriptionFailed SessionStateReason = "transcription_failed"
	SessionReasonStorageFailed       SessionStateReason = "storage_failed"
)

// ErrorCode identifies non-fatal and fatal backend errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCapture       ErrorCode = "capture"
	ErrorCodeAudioStop     ErrorCode = "audio_stop"
	ErrorCodeAudioStream   ErrorCode = "audio_stream"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeRules         ErrorCode = "rules"
	ErrorCodeConfiguration ErrorCode = "configuration"
	ErrorCodeProvider      ErrorCode = "provider"
	ErrorCodeNotFound      ErrorCode = "not_found"
	ErrorCodeStorage       ErrorCode = "storage"
)

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a capture source.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	Confidence    *float64       `json:"confidence,omitempty"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Status summarizes the current capture status.
type Status struct {
	State          SessionState `json:"state"`
	Active         bool         `json:"active"`
	RecordingID    string       `json:"recordingId,omitempty"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	Segments       int          `json:"segments"`
	Message        string       `json:"message,omitempty"`
}
