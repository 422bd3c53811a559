// Package anthropic extracts special points through the Anthropic messages
// API.
package anthropic

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/analysis"
	"breeze/internal/domain"
)

const (
	Name           = "anthropic"
	defaultBaseURL = "https://api.anthropic.com"
	defaultModel   = "claude-3-5-haiku-latest"
	apiVersion     = "2023-06-01"
	maxTokens      = 2048
)

// Config controls the Anthropic integration.
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

// Provider implements ports.AnalysisProvider for Anthropic.
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

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *Provider) Analyze(ctx context.Context, recording domain.Recording) ([]domain.SpecialPoint, error) {
	if strings.TrimSpace(p.cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", Name, analysis.ErrAPIKeyRequired)
	}

	endpoint := strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/messages"
	payload := messagesRequest{
		Model:     p.cfg.Model,
		MaxTokens: maxTokens,
		Messages:  []message{{Role: "user", Content: analysis.BuildPrompt(recording)}},
	}
	headers := map[string]string{
		"x-api-key":         p.cfg.APIKey,
		"anthropic-version": apiVersion,
	}

	var resp messagesResponse
	if err := analysis.PostJSON(ctx, p.cfg.Client, Name, endpoint, headers, payload, &resp); err != nil {
		return nil, err
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "" || block.Type == "text" {
			text = block.Text
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%s: %w: empty content", Name, analysis.ErrMalformedResponse)
	}

	result, err := analysis.ParsePoints(text, recording, p.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", Name, err)
	}
	result.Report(p.cfg.Log, Name, p.cfg.OnRejected)
	return result.Points, nil
}
