package usecase

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"breeze/internal/domain"
)

func TestPumpAudioChunksReportsSendError(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	stream := &recordingStream{err: errors.New("send failed")}
	events := &fakeEventSink{}
	done := make(chan struct{})

	go pumpAudioChunks(audio, stream, nil, nil, 256, events, done)
	<-done

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeAudioStream {
		t.Fatalf("expected audio stream error")
	}
}

func TestPumpAudioChunksReportsReadError(t *testing.T) {
	t.Parallel()

	audio := &errorAudioSession{err: errors.New("read failed")}
	events := &fakeEventSink{}
	done := make(chan struct{})

	go pumpAudioChunks(audio, &recordingStream{}, nil, nil, 256, events, done)
	<-done

	errs := events.snapshotErrors()
	if len(errs) == 0 || errs[0].code != domain.ErrorCodeAudioStream {
		t.Fatalf("expected audio stream error")
	}
}

func TestPumpAudioChunksSkipsAudioWhilePaused(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("aa"), []byte("bb"), []byte("cc")}}
	stream := &recordingStream{}
	var tee bytes.Buffer
	reads := 0
	paused := func() bool {
		reads++
		return reads == 2
	}
	done := make(chan struct{})

	go pumpAudioChunks(audio, stream, &tee, paused, 256, &fakeEventSink{}, done)
	<-done

	if got := stream.sent(); got != "aacc" {
		t.Fatalf("stream received %q, want %q", got, "aacc")
	}
	if tee.String() != "aacc" {
		t.Fatalf("audio file received %q, want %q", tee.String(), "aacc")
	}
}

func TestPumpAudioChunksTeeFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	audio := &fakeAudioSession{chunks: [][]byte{[]byte("aa"), []byte("bb")}}
	stream := &recordingStream{}
	events := &fakeEventSink{}
	done := make(chan struct{})

	go pumpAudioChunks(audio, stream, failingWriter{}, nil, 256, events, done)
	<-done

	if stream.sent() != "aabb" {
		t.Fatalf("streaming should continue after a tee failure, got %q", stream.sent())
	}
	errs := events.snapshotErrors()
	if len(errs) != 1 || errs[0].code != domain.ErrorCodeStorage {
		t.Fatalf("expected a single storage error, got %+v", errs)
	}
}

func TestWaitForStreamTimeoutClosesSession(t *testing.T) {
	t.Parallel()

	stream := &blockingWaitStream{done: make(chan struct{}), waitErr: errors.New("closed")}
	err := waitForStream(stream, 10*time.Millisecond)
	if err == nil || err.Error() != "closed" {
		t.Fatalf("expected closed error, got %v", err)
	}
	if stream.closeCalls == 0 {
		t.Fatalf("expected close to be called on timeout")
	}
}

func TestRunTickerStopsAndSkipsPausedTicks(t *testing.T) {
	t.Parallel()

	agg := newTranscriptAggregator(NewRecording("x", "", "", time.Now()), domain.SpeakerClient, time.Now)
	events := &fakeEventSink{}
	stop := make(chan struct{})
	done := make(chan struct{})

	if _, err := agg.Pause(); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	go runTicker(agg, events, time.Millisecond, stop, done)
	time.Sleep(20 * time.Millisecond)
	if events.tickCount() != 0 {
		t.Fatalf("ticks emitted while paused")
	}

	if _, err := agg.Resume(); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	eventually(t, "a tick after resume", func() bool { return events.tickCount() > 0 })
	close(stop)
	<-done
}

type recordingStream struct {
	mu  sync.Mutex
	buf bytes.Buffer
	err error
}

func (s *recordingStream) SendAudio(chunk []byte) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(chunk)
	return nil
}

func (s *recordingStream) sent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *recordingStream) CloseSend() error { return nil }
func (s *recordingStream) Events() <-chan domain.TranscriptEvent {
	ch := make(chan domain.TranscriptEvent)
	close(ch)
	return ch
}
func (s *recordingStream) Wait() error  { return nil }
func (s *recordingStream) Close() error { return nil }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

type errorAudioSession struct {
	err error
}

func (s *errorAudioSession) Read(_ []byte) (int, error) { return 0, s.err }
func (s *errorAudioSession) Close() error               { return nil }
func (s *errorAudioSession) Stop() error                { return nil }

type blockingWaitStream struct {
	done       chan struct{}
	waitErr    error
	closeCalls int
}

func (s *blockingWaitStream) SendAudio(_ []byte) error { return nil }
func (s *blockingWaitStream) CloseSend() error         { return nil }
func (s *blockingWaitStream) Events() <-chan domain.TranscriptEvent {
	ch := make(chan domain.TranscriptEvent)
	close(ch)
	return ch
}
func (s *blockingWaitStream) Wait() error {
	<-s.done
	return s.waitErr
}
func (s *blockingWaitStream) Close() error {
	s.closeCalls++
	close(s.done)
	return nil
}

var _ io.ReadCloser = (*errorAudioSession)(nil)
