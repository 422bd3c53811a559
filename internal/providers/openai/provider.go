// Package openai extracts special points through the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/analysis"
	"breeze/internal/domain"
)

const (
	Name           = "openai"
	defaultBaseURL = "https://api.openai.com"
	defaultModel   = "gpt-4o-mini"
)

// Config controls the OpenAI integration.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Client  *http.Client
	Log     logrus.FieldLogger

	// OnRejected is called for each point the reply held but validation
	// dropped.
	OnRejected func(analysis.Rejected)
}

// Provider implements ports.AnalysisProvider for OpenAI.
type Provider struct {
	cfg Config
	now func() time.Time
}

func NewProvider(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Client == nil {
		cfg.Client = analysis.DefaultHTTPClient()
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	return &Provider{cfg: cfg, now: time.Now}
}

func (p *Provider) Name() string { return Name }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (p *Provider) Analyze(ctx context.Context, recording domain.Recording) ([]domain.SpecialPoint, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", Name, analysis.ErrAPIKeyRequired)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/chat/completions"
	payload := chatRequest{
		Model:       p.cfg.Model,
		Temperature: 0.2,
		Messages:    []chatMessage{{Role: "user", Content: analysis.BuildPrompt(recording)}},
	}
	headers := map[string]string{"Authorization": "Bearer " + p.cfg.APIKey}

	var resp chatResponse
	if err := analysis.PostJSON(ctx, p.cfg.Client, Name, endpoint, headers, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w: %v", Name, analysis.ErrMalformedResponse, errors.New("no choices returned"))
	}

	result, err := analysis.ParsePoints(resp.Choices[0].Message.Content, recording, p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	result.Report(p.cfg.Log, Name, p.cfg.OnRejected)
	return result.Points, nil
}
