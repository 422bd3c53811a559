package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ProviderName selects an analysis backend.
type ProviderName string

const (
	ProviderLocal     ProviderName = "local"
	ProviderOpenAI    ProviderName = "openai"
	ProviderAnthropic ProviderName = "anthropic"
)

// Remote reports whether the provider needs network access and an API key.
func (p ProviderName) Remote() bool {
	return p == ProviderOpenAI || p == ProviderAnthropic
}

// DefaultModel is the model a provider runs when none is configured.
func (p ProviderName) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderAnthropic:
		return "claude-3-5-haiku-latest"
	default:
		return ""
	}
}

// AnalysisTypes toggles individual analysis features.
type AnalysisTypes struct {
	ExtractSpecialPoints bool `json:"extractSpecialPoints" yaml:"extract_special_points"`
	GenerateSummary      bool `json:"generateSummary" yaml:"generate_summary"`
	IdentifyKeywords     bool `json:"identifyKeywords" yaml:"identify_keywords"`
	DetectSentiment      bool `json:"detectSentiment" yaml:"detect_sentiment"`
	SuggestFollowUps     bool `json:"suggestFollowUps" yaml:"suggest_follow_ups"`
}

// AnalysisSettings is the persisted analysis configuration.
type AnalysisSettings struct {
	Provider            ProviderName  `json:"provider" yaml:"provider"`
	Model               string        `json:"model" yaml:"model"`
	APIKey              string        `json:"apiKey,omitempty" yaml:"api_key"`
	AnalysisTypes       AnalysisTypes `json:"analysisTypes" yaml:"analysis_types"`
	ConfidenceThreshold float64       `json:"confidenceThreshold" yaml:"confidence_threshold"`
	TimeoutSeconds      int           `json:"timeoutSeconds" yaml:"timeout_seconds"`
	MaxAttempts         int           `json:"maxAttempts" yaml:"max_attempts"`
}

// DefaultAnalysisSettings returns the settings used before anything is saved.
func DefaultAnalysisSettings() AnalysisSettings {
	return AnalysisSettings{
		Provider: ProviderLocal,
		Model:    ProviderOpenAI.DefaultModel(),
		AnalysisTypes: AnalysisTypes{
			ExtractSpecialPoints: true,
			GenerateSummary:      true,
			IdentifyKeywords:     true,
			DetectSentiment:      false,
			SuggestFollowUps:     true,
		},
		ConfidenceThreshold: 0.7,
		TimeoutSeconds:      60,
		MaxAttempts:         3,
	}
}

// Normalize fills zero-valued policy fields with defaults. An empty model
// becomes the selected provider's own default.
func (s AnalysisSettings) Normalize() AnalysisSettings {
	defaults := DefaultAnalysisSettings()
	s.Provider = ProviderName(strings.ToLower(strings.TrimSpace(string(s.Provider))))
	if s.Provider == "" {
		s.Provider = defaults.Provider
	}
	s.Model = strings.TrimSpace(s.Model)
	if s.Model == "" {
		s.Model = s.Provider.DefaultModel()
	}
	s.APIKey = strings.TrimSpace(s.APIKey)
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = defaults.MaxAttempts
	}
	return s
}

// Validate rejects settings that cannot drive an analysis run.
func (s AnalysisSettings) Validate() error {
	switch s.Provider {
	case ProviderLocal, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown analysis provider %q", s.Provider)
	}
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return errors.New("confidence threshold must be between 0 and 1")
	}
	return nil
}
