package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"breeze/internal/domain"
	"breeze/internal/ports"
)

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
	stopErr   error
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return f.stopErr
}

type fakeTranscription struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeTranscription) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	events     chan domain.TranscriptEvent
	waitErr    error
	closeSend  int
	closeCalls int
	closed     bool
	mu         sync.Mutex
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return nil }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeSend++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		close(f.events)
		f.closed = true
	}
	return nil
}

type fakeRules struct {
	replace map[string]string
	err     error
}

func (f *fakeRules) Apply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if out, ok := f.replace[text]; ok {
		return out, nil
	}
	return text, nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states   []stateEvent
	partials []string
	segments []domain.Segment
	ticks    []int
	updates  []domain.Recording
	errors   []errEvent
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, stateEvent{state: state, reason: reason})
}

func (f *fakeEventSink) PartialTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.partials = append(f.partials, text)
}

func (f *fakeEventSink) SegmentAppended(_ string, segment domain.Segment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.segments = append(f.segments, segment)
}

func (f *fakeEventSink) Tick(_ string, elapsedSeconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, elapsedSeconds)
}

func (f *fakeEventSink) RecordingUpdated(recording domain.Recording) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recording)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []stateEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stateEvent, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) snapshotPartials() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.partials...)
}

func (f *fakeEventSink) segmentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.segments)
}

func (f *fakeEventSink) tickCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ticks)
}

// memoryRecordings is an in-process RecordingRepository.
type memoryRecordings struct {
	mu      sync.Mutex
	items   []domain.Recording
	saves   int
	saveErr error
}

func (m *memoryRecordings) List(_ context.Context) ([]domain.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Recording, 0, len(m.items))
	for _, item := range m.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

func (m *memoryRecordings) Get(_ context.Context, id string) (domain.Recording, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.ID == id {
			return item.Clone(), true, nil
		}
	}
	return domain.Recording{}, false, nil
}

func (m *memoryRecordings) Save(_ context.Context, recording domain.Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	for i, item := range m.items {
		if item.ID == recording.ID {
			m.items[i] = recording.Clone()
			return nil
		}
	}
	m.items = append(m.items, recording.Clone())
	return nil
}

func (m *memoryRecordings) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, item := range m.items {
		if item.ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memoryRecordings) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type staticSettings struct {
	settings domain.AnalysisSettings
}

func (s staticSettings) Load(context.Context) domain.AnalysisSettings { return s.settings }

// scriptedProvider returns the queued results in order, repeating the last.
type scriptedProvider struct {
	name string

	mu      sync.Mutex
	results []scriptedResult
	calls   int
}

type scriptedResult struct {
	points []domain.SpecialPoint
	err    error
	block  bool
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Analyze(ctx context.Context, _ domain.Recording) ([]domain.SpecialPoint, error) {
	p.mu.Lock()
	idx := p.calls
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	result := p.results[idx]
	p.calls++
	p.mu.Unlock()

	if result.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return result.points, result.err
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func float(v float64) *float64 { return &v }
