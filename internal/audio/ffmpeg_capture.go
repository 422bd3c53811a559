// Package audio captures microphone PCM through an ffmpeg child process.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/ports"
)

var ErrEarlyExit = errors.New("ffmpeg exited before capture started")

const (
	defaultStartupProbe = 250 * time.Millisecond
	stopGrace           = 1200 * time.Millisecond
	stderrTailBytes     = 4096
)

// FFMPEGCapture streams signed 16-bit little-endian PCM from the default
// input device.
type FFMPEGCapture struct {
	command      string
	startupProbe time.Duration
	log          logrus.FieldLogger
}

func NewFFMPEGCapture(command string, log logrus.FieldLogger) *FFMPEGCapture {
	if command == "" {
		command = "ffmpeg"
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FFMPEGCapture{command: command, startupProbe: defaultStartupProbe, log: log.WithField("component", "audio")}
}

// DefaultInput returns the ffmpeg input format and device for goos.
func DefaultInput(goos string) (format string, device string) {
	switch goos {
	case "darwin":
		return "avfoundation", ":default"
	case "windows":
		return "dshow", "audio=default"
	default:
		return "pulse", "default"
	}
}

func captureArgs(cfg ports.AudioConfig) []string {
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

func withDefaults(cfg ports.AudioConfig) ports.AudioConfig {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	format, device := DefaultInput(runtime.GOOS)
	if cfg.InputFormat == "" {
		cfg.InputFormat = format
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = device
	}
	return cfg
}

func (c *FFMPEGCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cfg = withDefaults(cfg)

	cmd := exec.CommandContext(ctx, c.command, captureArgs(cfg)...)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
		close(waitErr)
	}()

	// A device that cannot be opened makes ffmpeg exit almost immediately.
	select {
	case err := <-waitErr:
		if err != nil {
			return nil, fmt.Errorf("%w: %v: %s", ErrEarlyExit, err, stderr.String())
		}
		return nil, ErrEarlyExit
	case <-time.After(c.startupProbe):
	}

	c.log.WithFields(logrus.Fields{
		"format":      cfg.InputFormat,
		"device":      cfg.InputDevice,
		"sample_rate": cfg.SampleRate,
		"channels":    cfg.Channels,
	}).Debug("microphone capture started")

	return &ffmpegSession{
		stdout:  stdout,
		stderr:  stderr,
		process: cmd.Process,
		waitErr: waitErr,
	}, nil
}

type ffmpegSession struct {
	stdout io.ReadCloser
	stderr *tailBuffer

	process *os.Process
	waitErr <-chan error

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegSession) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *ffmpegSession) Close() error {
	return s.Stop()
}

// Stop interrupts ffmpeg so it flushes, and kills it if it lingers.
func (s *ffmpegSession) Stop() error {
	s.stopOnce.Do(func() {
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		select {
		case err, ok := <-s.waitErr:
			if ok {
				s.stopErr = normalizeStopErr(err)
			}
		case <-time.After(stopGrace):
			if s.process != nil {
				_ = s.process.Kill()
			}
			if err, ok := <-s.waitErr; ok {
				s.stopErr = normalizeStopErr(err)
			}
		}

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}

		if s.stopErr != nil {
			if tail := s.stderr.String(); tail != "" {
				s.stopErr = fmt.Errorf("%w: %s", s.stopErr, tail)
			}
		}
	})

	return s.stopErr
}

// normalizeStopErr treats a non-zero exit after an interrupt as a clean stop.
func normalizeStopErr(err error) error {
	var exitErr *exec.ExitError
	if err == nil || errors.As(err, &exitErr) {
		return nil
	}
	return err
}

// tailBuffer keeps the last limit bytes written to it. ffmpeg writes stderr
// from its own goroutine, so access is locked.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.limit; b.limit > 0 && over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(bytes.TrimSpace(b.buf))
}
