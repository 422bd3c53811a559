package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"breeze/internal/domain"
)

// Config stores runtime configuration for the recorder.
type Config struct {
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Rules    RulesConfig
	Session  SessionConfig
	Storage  StorageConfig
	Analysis AnalysisConfig
	Logging  LoggingConfig
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	SampleRate      int
	Channels        int
}

type RulesConfig struct {
	Path           string
	IterationLimit int
}

type SessionConfig struct {
	ChunkSize      int
	StreamingGrace time.Duration
	CaptureSpeaker domain.Speaker
	AutoAnalyze    bool
	KeepAudio      bool
}

type StorageConfig struct {
	Path      string
	Namespace string
	AudioDir  string
}

type AnalysisConfig struct {
	Defaults          domain.AnalysisSettings
	SettingsFile      string
	MockDelay         time.Duration
	OpenAIBaseURL     string
	AnthropicBaseURL  string
	RequestsPerSecond float64
}

type LoggingConfig struct {
	Environment string
	Level       string
}

// fileConfig mirrors the optional YAML config file. Pointer fields
// distinguish "unset" from zero values.
type fileConfig struct {
	Deepgram struct {
		Model       string `yaml:"model"`
		Language    string `yaml:"language"`
		SmartFormat *bool  `yaml:"smart_format"`
	} `yaml:"deepgram"`
	Audio struct {
		InputFormat string `yaml:"input_format"`
		InputDevice string `yaml:"input_device"`
	} `yaml:"audio"`
	Rules struct {
		Path string `yaml:"path"`
	} `yaml:"rules"`
	Session struct {
		CaptureSpeaker string `yaml:"capture_speaker"`
		AutoAnalyze    *bool  `yaml:"auto_analyze"`
		KeepAudio      *bool  `yaml:"keep_audio"`
	} `yaml:"session"`
	Storage struct {
		Path     string `yaml:"path"`
		AudioDir string `yaml:"audio_dir"`
	} `yaml:"storage"`
	Analysis struct {
		Settings     *domain.AnalysisSettings `yaml:"settings"`
		SettingsFile string                   `yaml:"settings_file"`
		MockDelayMS  *int                     `yaml:"mock_delay_ms"`
	} `yaml:"analysis"`
}

// Load resolves configuration from .env, the YAML config file and
// environment variables, in increasing order of precedence.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "b2bbreeze")

	dotenv := envOrDefault("BREEZE_DOTENV", filepath.Join(configDir, ".env"))
	if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", dotenv, err)
	}

	configPath := envOrDefault("BREEZE_CONFIG_FILE", filepath.Join(configDir, "config.yaml"))
	file, err := loadFileConfig(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config file %q: %w", configPath, err)
	}

	defaultRules := filepath.Join(configDir, "substitutions.rules")
	dataDir := filepath.Join(home, ".local", "share", "b2bbreeze")

	seed := domain.DefaultAnalysisSettings()
	if file.Analysis.Settings != nil {
		seed = *file.Analysis.Settings
	}
	if provider := domain.ProviderName(envOrDefault("BREEZE_ANALYSIS_PROVIDER", string(seed.Provider))); !strings.EqualFold(string(provider), string(seed.Provider)) {
		// The seeded model belongs to the old provider.
		seed.Provider = provider
		seed.Model = ""
	}
	seed.Model = envOrDefault("BREEZE_ANALYSIS_MODEL", seed.Model)
	seed.APIKey = envOrDefault("BREEZE_ANALYSIS_API_KEY", seed.APIKey)
	seed = seed.Normalize()

	mockDelayMS := 1500
	if file.Analysis.MockDelayMS != nil {
		mockDelayMS = *file.Analysis.MockDelayMS
	}

	cfg := Config{
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       firstNonEmpty(os.Getenv("DEEPGRAM_MODEL"), file.Deepgram.Model, "nova-2"),
			Language:    firstNonEmpty(os.Getenv("DEEPGRAM_LANGUAGE"), file.Deepgram.Language),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", boolOr(file.Deepgram.SmartFormat, true)),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("BREEZE_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     firstNonEmpty(os.Getenv("BREEZE_AUDIO_INPUT_FORMAT"), file.Audio.InputFormat, "pulse"),
			InputDevice:     firstNonEmpty(os.Getenv("BREEZE_AUDIO_INPUT_DEVICE"), file.Audio.InputDevice, "default"),
			SampleRate:      envOrDefaultInt("BREEZE_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("BREEZE_CHANNELS", 1),
		},
		Rules: RulesConfig{
			Path:           firstNonEmpty(os.Getenv("BREEZE_RULES_FILE"), file.Rules.Path, defaultRules),
			IterationLimit: envOrDefaultInt("BREEZE_RULE_ITERATION_LIMIT", 30),
		},
		Session: SessionConfig{
			ChunkSize:      envOrDefaultInt("BREEZE_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace: time.Duration(envOrDefaultInt("BREEZE_STREAMING_GRACE_MS", 1000)) * time.Millisecond,
			CaptureSpeaker: domain.Speaker(strings.ToLower(firstNonEmpty(os.Getenv("BREEZE_CAPTURE_SPEAKER"), file.Session.CaptureSpeaker, string(domain.SpeakerClient)))),
			AutoAnalyze:    envOrDefaultBool("BREEZE_AUTO_ANALYZE", boolOr(file.Session.AutoAnalyze, true)),
			KeepAudio:      envOrDefaultBool("BREEZE_KEEP_AUDIO", boolOr(file.Session.KeepAudio, true)),
		},
		Storage: StorageConfig{
			Path:      firstNonEmpty(os.Getenv("BREEZE_DB_PATH"), file.Storage.Path, filepath.Join(dataDir, "breeze.sqlite")),
			Namespace: envOrDefault("BREEZE_STORE_NAMESPACE", "b2bbreeze"),
			AudioDir:  firstNonEmpty(os.Getenv("BREEZE_AUDIO_DIR"), file.Storage.AudioDir, filepath.Join(dataDir, "audio")),
		},
		Analysis: AnalysisConfig{
			Defaults:          seed,
			SettingsFile:      firstNonEmpty(os.Getenv("BREEZE_SETTINGS_FILE"), file.Analysis.SettingsFile),
			MockDelay:         time.Duration(envOrDefaultInt("BREEZE_MOCK_DELAY_MS", mockDelayMS)) * time.Millisecond,
			OpenAIBaseURL:     envOrDefault("OPENAI_API_BASE", "https://api.openai.com"),
			AnthropicBaseURL:  envOrDefault("ANTHROPIC_API_BASE", "https://api.anthropic.com"),
			RequestsPerSecond: envOrDefaultFloat("BREEZE_ANALYSIS_RPS", 1),
		},
		Logging: LoggingConfig{
			Environment: envOrDefault("BREEZE_ENV", "development"),
			Level:       strings.TrimSpace(os.Getenv("BREEZE_LOG_LEVEL")),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Rules.IterationLimit <= 0 {
		cfg.Rules.IterationLimit = 30
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = time.Second
	}
	if !cfg.Session.CaptureSpeaker.Valid() {
		return Config{}, fmt.Errorf("invalid capture speaker %q (want client or agent)", cfg.Session.CaptureSpeaker)
	}
	if cfg.Analysis.MockDelay < 0 {
		cfg.Analysis.MockDelay = 0
	}
	if cfg.Analysis.RequestsPerSecond <= 0 {
		cfg.Analysis.RequestsPerSecond = 1
	}
	if err := cfg.Analysis.Defaults.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid analysis settings: %w", err)
	}

	return cfg, nil
}

func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
