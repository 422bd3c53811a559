package usecase

import (
	"errors"
	"fmt"
	"io"
	"time"

	"breeze/internal/domain"
	"breeze/internal/ports"
)

// pumpAudioChunks forwards microphone audio to the speech stream and, when
// tee is set, to the recording's audio file. Chunks read while paused are
// discarded.
func pumpAudioChunks(
	audio ports.AudioSession,
	stream ports.StreamingSession,
	tee io.Writer,
	paused func() bool,
	chunkSize int,
	events ports.EventSink,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < 256 {
		chunkSize = 4096
	}

	buf := make([]byte, chunkSize)
	teeFailed := false
	for {
		n, err := audio.Read(buf)
		if n > 0 && (paused == nil || !paused()) {
			if sendErr := stream.SendAudio(buf[:n]); sendErr != nil {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("failed to stream audio: %v", sendErr))
				return
			}
			if tee != nil && !teeFailed {
				if _, writeErr := tee.Write(buf[:n]); writeErr != nil {
					teeFailed = true
					events.SessionError(domain.ErrorCodeStorage, fmt.Sprintf("failed to write audio file: %v", writeErr))
				}
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			}
			return
		}
	}
}

func waitForStream(session ports.StreamingSession, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- session.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		_ = session.Close()
		return <-done
	}
}

// runTicker reports elapsed recording time every interval until stop is
// closed. Ticks are suppressed while paused.
func runTicker(
	aggregator *transcriptAggregator,
	events ports.EventSink,
	interval time.Duration,
	stop <-chan struct{},
	done chan struct{},
) {
	defer close(done)

	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if aggregator.Paused() {
				continue
			}
			events.Tick(aggregator.id, int(aggregator.Elapsed()/time.Second))
		}
	}
}
