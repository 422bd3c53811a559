package usecase

import (
	"os"
	"sync"
	"time"

	"breeze/internal/domain"
	"breeze/internal/ports"
)

// StartRequest carries the user-supplied metadata of a new recording.
type StartRequest struct {
	Title      string   `json:"title"`
	ClientName string   `json:"clientName"`
	ClientID   string   `json:"clientId"`
	Tags       []string `json:"tags"`
}

// SegmentInput is one utterance of a transcript saved outside live capture.
type SegmentInput struct {
	Speaker    domain.Speaker `json:"speaker"`
	Text       string         `json:"text"`
	Timestamp  time.Time      `json:"timestamp"`
	Confidence *float64       `json:"confidence,omitempty"`
}

type activeSession struct {
	cancel    func()
	audio     ports.AudioSession
	stream    ports.StreamingSession
	audioFile *os.File

	stateMu sync.Mutex
	state   domain.SessionState

	aggregator *transcriptAggregator
	eventsDone chan struct{}
	audioDone  chan struct{}
	tickDone   chan struct{}

	stopTick     chan struct{}
	stopTickOnce sync.Once
}

func (s *activeSession) setState(state domain.SessionState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *activeSession) getState() domain.SessionState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// transition moves to next only from one of the allowed states.
func (s *activeSession) transition(next domain.SessionState, from ...domain.SessionState) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	for _, state := range from {
		if s.state == state {
			s.state = next
			return true
		}
	}
	return false
}

func (s *activeSession) stopTicker() {
	s.stopTickOnce.Do(func() {
		close(s.stopTick)
	})
	<-s.tickDone
}
