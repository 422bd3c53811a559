package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2/pkg/runtime"

	"breeze/internal/bootstrap"
	"breeze/internal/domain"
	"breeze/internal/insights"
	"breeze/internal/usecase"
)

const (
	eventSession   = "breeze:session"
	eventPartial   = "breeze:partial"
	eventSegment   = "breeze:segment"
	eventTick      = "breeze:tick"
	eventRecording = "breeze:recording"
	eventAnalysis  = "breeze:analysis"
	eventError     = "breeze:error"
)

var errNotInitialized = errors.New("application is not initialized")

// App is the Wails application root. It also serves as the controller's
// event sink, forwarding backend events to the frontend.
type App struct {
	ctx context.Context

	services bootstrap.Services
	ready    bool
	bootErr  error

	emit func(ctx context.Context, name string, data ...interface{})
	now  func() time.Time
}

func NewApp() *App {
	return &App{emit: runtime.EventsEmit, now: time.Now}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(ctx, a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.ready = true
	a.SessionStateChanged(domain.SessionStateIdle, domain.SessionReasonReady)
}

func (a *App) shutdown(context.Context) {
	if !a.ready {
		return
	}
	if a.services.Controller.Active() {
		_ = a.services.Controller.Abort()
	}
	if err := a.services.Close(); err != nil {
		a.services.Log.WithError(err).Warn("shutdown incomplete")
	}
}

// StartRecording begins a live recording.
func (a *App) StartRecording(req usecase.StartRequest) (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	recording, err := a.services.Controller.Start(a.ctx, req)
	if err != nil {
		code := domain.ErrorCodeTranscription
		if errors.Is(err, usecase.ErrCapture) {
			code = domain.ErrorCodeCapture
		}
		if !errors.Is(err, usecase.ErrRecordingActive) {
			a.SessionError(code, err.Error())
		}
		return domain.Recording{}, err
	}
	return recording, nil
}

// PauseRecording pauses the live recording.
func (a *App) PauseRecording() (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	return a.services.Controller.Pause()
}

// ResumeRecording resumes a paused recording.
func (a *App) ResumeRecording() (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	return a.services.Controller.Resume()
}

// StopRecording finalizes and saves the live recording.
func (a *App) StopRecording() (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	return a.services.Controller.Stop(a.ctx)
}

// AbortRecording discards an in-progress recording.
func (a *App) AbortRecording() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.services.Controller.Abort(); err != nil && !errors.Is(err, usecase.ErrNoActiveSession) {
		return err
	}
	return nil
}

// AppendSegment adds a typed segment to the live recording.
func (a *App) AppendSegment(speaker string, text string, confidence *float64) (domain.Segment, error) {
	if err := a.requireReady(); err != nil {
		return domain.Segment{}, err
	}
	return a.services.Controller.AppendSegment(domain.Speaker(strings.ToLower(strings.TrimSpace(speaker))), text, confidence)
}

// SaveTranscript stores a transcript captured elsewhere as a completed
// recording.
func (a *App) SaveTranscript(req usecase.StartRequest, segments []usecase.SegmentInput) (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	return a.services.Controller.SaveTranscript(a.ctx, req, segments)
}

// GetStatus returns the current session status.
func (a *App) GetStatus() domain.Status {
	if !a.ready {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateError, Active: false, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	return a.services.Controller.Status()
}

// ListRecordings returns stored recordings, newest first.
func (a *App) ListRecordings() ([]domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	recordings, err := a.services.Recordings.List(a.ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recordings, func(x, y domain.Recording) int {
		return y.StartTime.Compare(x.StartTime)
	})
	return recordings, nil
}

// GetRecording returns one stored recording.
func (a *App) GetRecording(id string) (domain.Recording, error) {
	if err := a.requireReady(); err != nil {
		return domain.Recording{}, err
	}
	recording, ok, err := a.services.Recordings.Get(a.ctx, id)
	if err != nil {
		return domain.Recording{}, err
	}
	if !ok {
		return domain.Recording{}, fmt.Errorf("%w: %s", usecase.ErrRecordingNotFound, id)
	}
	return recording, nil
}

// DeleteRecording removes a stored recording. The live recording must be
// stopped or aborted first.
func (a *App) DeleteRecording(id string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if status := a.services.Controller.Status(); status.Active && status.RecordingID == id {
		return usecase.ErrRecordingActive
	}
	return a.services.Recordings.Delete(a.ctx, id)
}

// AnalyzeRecording extracts special points for a stored recording.
func (a *App) AnalyzeRecording(id string) ([]domain.SpecialPoint, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	a.emitEvent(eventAnalysis, domain.AnalysisStatus{RecordingID: id, State: domain.AnalysisStateRunning})

	points, err := a.services.Orchestrator.AnalyzeRecording(a.ctx, id)
	if err != nil {
		a.SessionError(usecase.ErrorCode(err), err.Error())
	}
	if status, statusErr := a.services.Orchestrator.AnalysisStatus(a.ctx, id); statusErr == nil {
		a.emitEvent(eventAnalysis, status)
	}
	if err != nil {
		return nil, err
	}
	if recording, ok, getErr := a.services.Recordings.Get(a.ctx, id); getErr == nil && ok {
		a.RecordingUpdated(recording)
	}
	return points, nil
}

// GetSpecialPoints returns the stored special points of a recording.
func (a *App) GetSpecialPoints(id string) ([]domain.SpecialPoint, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.services.Orchestrator.SpecialPoints(a.ctx, id)
}

// HasSpecialPoints reports whether a recording has any special points.
func (a *App) HasSpecialPoints(id string) bool {
	if !a.ready {
		return false
	}
	return a.services.Orchestrator.HasSpecialPoints(a.ctx, id)
}

// GetAnalysisStatus reports whether a recording was analyzed.
func (a *App) GetAnalysisStatus(id string) (domain.AnalysisStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.AnalysisStatus{}, err
	}
	return a.services.Orchestrator.AnalysisStatus(a.ctx, id)
}

// GetAnalytics aggregates all stored recordings for the dashboard.
func (a *App) GetAnalytics() (domain.ConversationAnalytics, error) {
	if err := a.requireReady(); err != nil {
		return domain.ConversationAnalytics{}, err
	}
	recordings, err := a.services.Recordings.List(a.ctx)
	if err != nil {
		return domain.ConversationAnalytics{}, err
	}
	return insights.Analytics(recordings, a.now()), nil
}

// GetSettings returns the analysis settings with the API key masked.
func (a *App) GetSettings() (domain.AnalysisSettings, error) {
	if err := a.requireReady(); err != nil {
		return domain.AnalysisSettings{}, err
	}
	settings := a.services.Settings.Load(a.ctx)
	settings.APIKey = maskSecret(settings.APIKey)
	return settings, nil
}

// SaveSettings validates and stores analysis settings. A masked key sent
// back unchanged keeps the stored key.
func (a *App) SaveSettings(settings domain.AnalysisSettings) (domain.AnalysisSettings, error) {
	if err := a.requireReady(); err != nil {
		return domain.AnalysisSettings{}, err
	}
	current := a.services.Settings.Load(a.ctx)
	if settings.APIKey != "" && settings.APIKey == maskSecret(current.APIKey) {
		settings.APIKey = current.APIKey
	}
	if err := a.services.Settings.Save(a.ctx, settings); err != nil {
		return domain.AnalysisSettings{}, err
	}
	return a.GetSettings()
}

// GetRuntimeInfo returns non-sensitive config and counters for the UI.
func (a *App) GetRuntimeInfo() map[string]any {
	if a.bootErr != nil {
		return map[string]any{"error": a.bootErr.Error()}
	}
	if !a.ready {
		return map[string]any{}
	}

	cfg := a.services.Config
	return map[string]any{
		"transcription":    "Deepgram",
		"model":            cfg.Deepgram.Model,
		"language":         cfg.Deepgram.Language,
		"rulesFile":        cfg.Rules.Path,
		"audioInput":       cfg.Audio.InputDevice,
		"audioInputFormat": cfg.Audio.InputFormat,
		"captureSpeaker":   string(cfg.Session.CaptureSpeaker),
		"autoAnalyze":      cfg.Session.AutoAnalyze,
		"store":            cfg.Storage.Path,
		"metrics":          a.services.Metrics.Snapshot(),
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if !a.ready {
		return errNotInitialized
	}
	return nil
}

func (a *App) emitEvent(name string, payload any) {
	if a.ctx == nil || a.emit == nil {
		return
	}
	a.emit(a.ctx, name, payload)
}

// SessionStateChanged emits session lifecycle updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	a.emitEvent(eventSession, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// PartialTranscript emits live partial transcript text.
func (a *App) PartialTranscript(text string) {
	a.emitEvent(eventPartial, map[string]string{"text": text})
}

// SegmentAppended emits a segment added to the live recording.
func (a *App) SegmentAppended(recordingID string, segment domain.Segment) {
	a.emitEvent(eventSegment, map[string]any{"recordingId": recordingID, "segment": segment})
}

// Tick emits the elapsed recording time.
func (a *App) Tick(recordingID string, elapsedSeconds int) {
	a.emitEvent(eventTick, map[string]any{"recordingId": recordingID, "elapsedSeconds": elapsedSeconds})
}

// RecordingUpdated emits the latest snapshot of a recording.
func (a *App) RecordingUpdated(recording domain.Recording) {
	a.emitEvent(eventRecording, recording)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ready {
		a.services.Log.WithFields(logrus.Fields{"code": code, "detail": detail}).Warn("session error")
	}
	a.emitEvent(eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonReady:
		return "Ready"
	case domain.SessionReasonRecordingStarted:
		return "Recording started"
	case domain.SessionReasonRecordingPaused:
		return "Recording paused"
	case domain.SessionReasonRecordingResumed:
		return "Recording resumed"
	case domain.SessionReasonFinalizing:
		return "Recording stopped. Finalizing..."
	case domain.SessionReasonRecordingSaved:
		return "Recording saved"
	case domain.SessionReasonAnalyzing:
		return "Analyzing conversation..."
	case domain.SessionReasonAnalysisComplete:
		return "Analysis complete"
	case domain.SessionReasonAnalysisFailed:
		return "Recording saved (analysis failed)"
	case domain.SessionReasonRecordingDiscarded:
		return "Recording discarded"
	case domain.SessionReasonNoTranscript:
		return "No transcript captured"
	case domain.SessionReasonTranscriptionFailed:
		return "Transcription failed"
	case domain.SessionReasonStorageFailed:
		return "Recording could not be saved"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCapture:
		return "Microphone or speech service unavailable"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeRules:
		return "Substitution rules failed"
	case domain.ErrorCodeConfiguration:
		return "Analysis is not configured"
	case domain.ErrorCodeProvider:
		return "Analysis provider error"
	case domain.ErrorCodeNotFound:
		return "Recording not found"
	case domain.ErrorCodeStorage:
		return "Storage error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

// maskSecret keeps the last four characters of a key.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("•", len(secret))
	}
	return strings.Repeat("•", 8) + secret[len(secret)-4:]
}
