package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/domain"
	"breeze/internal/logging"
	"breeze/internal/metrics"
	"breeze/internal/ports"
)

var (
	ErrNoActiveSession  = errors.New("no active recording session")
	ErrRecordingActive  = errors.New("a recording is already in progress")
	ErrStopInProgress   = errors.New("recording is already stopping")
	ErrCapture          = errors.New("audio capture failed")
	ErrTranscription    = errors.New("transcription failed")
	ErrSessionNotPaused = errors.New("recording is not paused")
)

// Config controls capture and finalization behavior.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	CaptureSpeaker domain.Speaker
	AutoAnalyze    bool
	AudioDir       string
	TickInterval   time.Duration
}

// Dependencies are the collaborators of a RecordingController.
type Dependencies struct {
	Audio         ports.AudioCapture
	Transcription ports.TranscriptionProvider
	Rules         ports.RulesEngine
	Recordings    ports.RecordingRepository
	Settings      ports.SettingsSource
	Analyzer      ports.RecordingAnalyzer
	Events        ports.EventSink
	Metrics       *metrics.Metrics
	Log           logrus.FieldLogger
}

// RecordingController runs the single live conversation recording: capture,
// transcription into segments, pause/resume, finalization and analysis.
type RecordingController struct {
	audio         ports.AudioCapture
	transcription ports.TranscriptionProvider
	rules         ports.RulesEngine
	recordings    ports.RecordingRepository
	events        ports.EventSink
	finalizer     recordingFinalizer
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
	cfg           Config
	now           func() time.Time

	mu      sync.Mutex
	current *activeSession
}

func NewRecordingController(deps Dependencies, cfg Config) *RecordingController {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if !cfg.CaptureSpeaker.Valid() {
		cfg.CaptureSpeaker = domain.SpeakerClient
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	log := deps.Log.WithField("component", "controller")

	c := &RecordingController{
		audio:         deps.Audio,
		transcription: deps.Transcription,
		rules:         deps.Rules,
		recordings:    deps.Recordings,
		events:        deps.Events,
		metrics:       deps.Metrics,
		log:           log,
		cfg:           cfg,
		now:           time.Now,
	}
	c.finalizer = recordingFinalizer{
		recordings: deps.Recordings,
		settings:   deps.Settings,
		analyzer:   deps.Analyzer,
		events:     deps.Events,
		metrics:    deps.Metrics,
		log:        log,
		now:        func() time.Time { return c.now() },
	}
	return c
}

// Start opens the speech stream and microphone and begins a new recording.
func (c *RecordingController) Start(ctx context.Context, req StartRequest) (domain.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		return domain.Recording{}, ErrRecordingActive
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	stream, err := c.transcription.StartStreaming(sessionCtx, c.cfg.Streaming)
	if err != nil {
		cancel()
		return domain.Recording{}, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return domain.Recording{}, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	recording := NewRecording(req.Title, req.ClientName, req.ClientID, c.now())
	recording.Tags = normalizeTags(req.Tags)
	log := logging.WithRecording(c.log, recording.ID)
	audioFile := c.openAudioFile(&recording, log)

	if err := c.recordings.Save(ctx, recording); err != nil {
		log.WithError(err).Warn("failed to persist new recording")
		c.events.SessionError(domain.ErrorCodeStorage, err.Error())
	}

	active := &activeSession{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		audioFile:  audioFile,
		state:      domain.SessionStateRecording,
		aggregator: newTranscriptAggregator(recording, c.cfg.CaptureSpeaker, c.now),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
		tickDone:   make(chan struct{}),
		stopTick:   make(chan struct{}),
	}
	c.current = active

	var tee io.Writer
	if audioFile != nil {
		tee = audioFile
	}
	go consumeTranscriptionEvents(active.stream, active.aggregator, c.rules, c.events, c.metrics, log, active.eventsDone)
	go pumpAudioChunks(active.audio, active.stream, tee, active.aggregator.Paused, c.cfg.ChunkSize, c.events, active.audioDone)
	go runTicker(active.aggregator, c.events, c.cfg.TickInterval, active.stopTick, active.tickDone)

	c.metrics.RecordingsStarted.Inc()
	log.WithField("title", recording.Title).Info("recording started")
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingStarted)
	c.events.RecordingUpdated(recording)
	return recording, nil
}

// Pause stops segment ingestion and elapsed-time accounting.
func (c *RecordingController) Pause() (domain.Recording, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.Recording{}, err
	}
	if !active.transition(domain.SessionStatePaused, domain.SessionStateRecording) {
		return domain.Recording{}, fmt.Errorf("%w: session is %s", ErrInvalidTransition, active.getState())
	}

	recording, err := active.aggregator.Pause()
	if err != nil {
		active.setState(domain.SessionStateRecording)
		return domain.Recording{}, err
	}
	c.events.SessionStateChanged(domain.SessionStatePaused, domain.SessionReasonRecordingPaused)
	c.events.RecordingUpdated(recording)
	return recording, nil
}

// Resume continues a paused recording.
func (c *RecordingController) Resume() (domain.Recording, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.Recording{}, err
	}
	if !active.transition(domain.SessionStateRecording, domain.SessionStatePaused) {
		return domain.Recording{}, ErrSessionNotPaused
	}

	recording, err := active.aggregator.Resume()
	if err != nil {
		active.setState(domain.SessionStatePaused)
		return domain.Recording{}, err
	}
	c.events.SessionStateChanged(domain.SessionStateRecording, domain.SessionReasonRecordingResumed)
	c.events.RecordingUpdated(recording)
	return recording, nil
}

// Stop ends capture, finalizes and saves the recording, then analyzes it
// when auto analysis is enabled. Analysis failures are reported through the
// event sink and do not fail Stop. When transcription failed without
// producing any segment the saved recording is returned together with an
// ErrTranscription error.
func (c *RecordingController) Stop(ctx context.Context) (domain.Recording, error) {
	active, err := c.claim()
	if err != nil {
		return domain.Recording{}, err
	}
	c.events.SessionStateChanged(domain.SessionStateStopping, domain.SessionReasonFinalizing)

	if err := active.audio.Stop(); err != nil {
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}

	if c.cfg.StreamingGrace > 0 {
		timer := time.NewTimer(c.cfg.StreamingGrace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, 4*time.Second)
	<-active.eventsDone
	<-active.audioDone
	active.stopTicker()
	c.closeAudioFile(active)

	recording, reason, err := c.finalizer.Finalize(ctx, active.aggregator.Seal())
	if err != nil {
		c.finishSession(active, domain.SessionStateError, reason)
		return recording, err
	}

	log := logging.WithRecording(c.log, recording.ID)
	if len(recording.Transcript) == 0 {
		if streamErr != nil {
			c.events.SessionError(domain.ErrorCodeTranscription, streamErr.Error())
			c.finishSession(active, domain.SessionStateError, domain.SessionReasonTranscriptionFailed)
			return recording, fmt.Errorf("%w: %w", ErrTranscription, streamErr)
		}
		c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonNoTranscript)
		return recording, nil
	}
	if streamErr != nil {
		log.WithError(streamErr).Warn("speech stream ended with an error")
	}

	if !c.cfg.AutoAnalyze {
		c.finishSession(active, domain.SessionStateIdle, reason)
		return recording, nil
	}

	active.setState(domain.SessionStateAnalyzing)
	c.events.SessionStateChanged(domain.SessionStateAnalyzing, domain.SessionReasonAnalyzing)
	recording, reason = c.finalizer.Analyze(ctx, recording)
	c.finishSession(active, domain.SessionStateIdle, reason)
	return recording, nil
}

// Abort cancels capture and deletes the in-progress recording.
func (c *RecordingController) Abort() error {
	active, err := c.claim()
	if err != nil {
		return err
	}

	c.stopSession(active)
	c.closeAudioFile(active)

	recording := active.aggregator.Seal()
	log := logging.WithRecording(c.log, recording.ID)
	if recording.AudioFile != "" {
		if err := os.Remove(recording.AudioFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("failed to remove audio file")
		}
	}
	if err := c.recordings.Delete(context.Background(), recording.ID); err != nil {
		log.WithError(err).Warn("failed to delete discarded recording")
		c.events.SessionError(domain.ErrorCodeStorage, err.Error())
	}

	log.Info("recording discarded")
	c.finishSession(active, domain.SessionStateIdle, domain.SessionReasonRecordingDiscarded)
	return nil
}

// AppendSegment adds a manually entered segment to the active recording.
func (c *RecordingController) AppendSegment(speaker domain.Speaker, text string, confidence *float64) (domain.Segment, error) {
	active, err := c.getCurrent()
	if err != nil {
		return domain.Segment{}, err
	}

	segment, err := active.aggregator.Append(speaker, text, confidence)
	if err != nil {
		return domain.Segment{}, err
	}
	c.metrics.SegmentsAppended.Inc()
	c.events.SegmentAppended(active.aggregator.id, segment)
	return segment, nil
}

// SaveTranscript stores a transcript captured outside the live session as
// a completed recording and analyzes it when auto analysis is enabled.
func (c *RecordingController) SaveTranscript(ctx context.Context, req StartRequest, segments []SegmentInput) (domain.Recording, error) {
	now := c.now()
	recording := NewRecording(req.Title, req.ClientName, req.ClientID, now)
	recording.Tags = normalizeTags(req.Tags)
	if len(segments) > 0 && !segments[0].Timestamp.IsZero() && segments[0].Timestamp.Before(now) {
		recording.StartTime = segments[0].Timestamp
	}

	for _, input := range segments {
		updated, err := AppendSegment(recording, domain.Segment{
			Speaker:    input.Speaker,
			Text:       input.Text,
			Timestamp:  input.Timestamp,
			Confidence: input.Confidence,
		}, now)
		if errors.Is(err, ErrEmptySegment) {
			continue
		}
		if err != nil {
			return domain.Recording{}, err
		}
		recording = updated
	}

	recording, _, err := c.finalizer.Finalize(ctx, recording)
	if err != nil {
		return recording, err
	}
	if c.cfg.AutoAnalyze && len(recording.Transcript) > 0 {
		recording, _ = c.finalizer.Analyze(ctx, recording)
	}
	return recording, nil
}

// Status returns the current backend status.
func (c *RecordingController) Status() domain.Status {
	c.mu.Lock()
	active := c.current
	c.mu.Unlock()

	if active == nil {
		return domain.Status{State: domain.SessionStateIdle, Active: false}
	}
	snapshot := active.aggregator.Snapshot()
	return domain.Status{
		State:          active.getState(),
		Active:         true,
		RecordingID:    snapshot.ID,
		ElapsedSeconds: int(Elapsed(snapshot, c.now()) / time.Second),
		Segments:       len(snapshot.Transcript),
	}
}

// Active reports whether a recording session is in progress.
func (c *RecordingController) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

func (c *RecordingController) getCurrent() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	return c.current, nil
}

// claim marks the active session as stopping so only one caller finishes it.
func (c *RecordingController) claim() (*activeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNoActiveSession
	}
	if !c.current.transition(domain.SessionStateStopping, domain.SessionStateRecording, domain.SessionStatePaused) {
		return nil, ErrStopInProgress
	}
	return c.current, nil
}

func (c *RecordingController) stopSession(active *activeSession) {
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
	active.stopTicker()
}

func (c *RecordingController) finishSession(active *activeSession, state domain.SessionState, reason domain.SessionStateReason) {
	active.cancel()
	active.setState(state)

	c.mu.Lock()
	if c.current == active {
		c.current = nil
	}
	c.mu.Unlock()

	c.events.SessionStateChanged(state, reason)
}

func (c *RecordingController) openAudioFile(recording *domain.Recording, log logrus.FieldLogger) *os.File {
	if c.cfg.AudioDir == "" {
		return nil
	}
	if err := os.MkdirAll(c.cfg.AudioDir, 0o755); err != nil {
		log.WithError(err).Warn("audio directory unavailable; not keeping audio")
		return nil
	}
	path := filepath.Join(c.cfg.AudioDir, recording.ID+".pcm")
	file, err := os.Create(path)
	if err != nil {
		log.WithError(err).Warn("failed to create audio file; not keeping audio")
		return nil
	}
	recording.AudioFile = path
	return file
}

func (c *RecordingController) closeAudioFile(active *activeSession) {
	if active.audioFile == nil {
		return
	}
	if err := active.audioFile.Close(); err != nil {
		c.log.WithError(err).Warn("failed to close audio file")
	}
	active.audioFile = nil
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
