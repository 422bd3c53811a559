package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"

	"breeze/internal/analysis"
	"breeze/internal/domain"
)

func recording() domain.Recording {
	return domain.Recording{
		ID: "rec-1",
		Transcript: []domain.Segment{
			{ID: "s1", Speaker: domain.SpeakerClient, Text: "The price is too high for us"},
			{ID: "s2", Speaker: domain.SpeakerAgent, Text: "We can discuss volume discounts"},
		},
	}
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewProvider(Config{})
	if _, err := p.Analyze(context.Background(), recording()); !errors.Is(err, analysis.ErrAPIKeyRequired) {
		t.Fatalf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestAnalyzeUsesMessagesAPI(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-ant" || r.Header.Get("anthropic-version") != "2023-06-01" {
			t.Errorf("unexpected headers: %v", r.Header)
		}
		var req messagesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "claude-3-5-haiku-latest" || req.MaxTokens <= 0 {
			t.Errorf("unexpected request: %+v", req)
		}

		text := "Here are the points:\n[{\"type\":\"objection\",\"title\":\"Price\",\"context\":\"price is too high\",\"followUpNeeded\":true}]"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"type": "text", "text": text}},
		})
	}))
	defer server.Close()

	logger, _ := logtest.NewNullLogger()
	p := NewProvider(Config{APIKey: "sk-ant", BaseURL: server.URL, Client: server.Client(), Log: logger})
	points, err := p.Analyze(context.Background(), recording())
	if err != nil {
		t.Fatalf("analyze failed: %v", err)
	}
	if len(points) != 1 || points[0].Type != domain.PointObjection || !points[0].FollowUpNeeded {
		t.Fatalf("unexpected points: %+v", points)
	}
	if points[0].Importance != domain.ImportanceMedium {
		t.Fatalf("expected default importance, got %s", points[0].Importance)
	}
	if len(points[0].RelatedSegments) != 1 || points[0].RelatedSegments[0] != "s1" {
		t.Fatalf("unexpected related segments: %v", points[0].RelatedSegments)
	}
}

func TestAnalyzeEmptyContentIsMalformed(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"content":[]}`))
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "sk-ant", BaseURL: server.URL, Client: server.Client()})
	if _, err := p.Analyze(context.Background(), recording()); !errors.Is(err, analysis.ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestAnalyzeServerErrorIsRetryable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	p := NewProvider(Config{APIKey: "sk-ant", BaseURL: server.URL, Client: server.Client()})
	_, err := p.Analyze(context.Background(), recording())
	if err == nil || !analysis.Retryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}
