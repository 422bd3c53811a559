// Package bootstrap assembles the runtime object graph from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"breeze/internal/analysis"
	"breeze/internal/audio"
	"breeze/internal/config"
	"breeze/internal/domain"
	"breeze/internal/logging"
	"breeze/internal/metrics"
	"breeze/internal/ports"
	"breeze/internal/providers/anthropic"
	"breeze/internal/providers/deepgram"
	"breeze/internal/providers/mock"
	"breeze/internal/providers/openai"
	"breeze/internal/repository"
	"breeze/internal/rules"
	"breeze/internal/settingsync"
	"breeze/internal/store"
	"breeze/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller   *usecase.RecordingController
	Orchestrator *usecase.Orchestrator
	Recordings   *repository.Recordings
	Settings     *repository.Settings
	Metrics      *metrics.Metrics
	Config       config.Config
	Log          *logrus.Logger

	store   *store.Store
	watcher *settingsync.Watcher
}

// Build loads configuration and wires all backend dependencies.
func Build(ctx context.Context, eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	log := logging.New(logging.Config{Environment: cfg.Logging.Environment, Level: cfg.Logging.Level})
	return Assemble(ctx, cfg, eventSink, log)
}

// Assemble wires the graph for an already loaded configuration.
func Assemble(ctx context.Context, cfg config.Config, eventSink ports.EventSink, log *logrus.Logger) (Services, error) {
	rulesEngine, err := rules.Load(cfg.Rules.Path, cfg.Rules.IterationLimit)
	if err != nil {
		return Services{}, err
	}

	kv, err := store.Open(cfg.Storage.Path, store.Options{Namespace: cfg.Storage.Namespace})
	if err != nil {
		return Services{}, fmt.Errorf("open store: %w", err)
	}

	m := metrics.New()
	recordings := repository.NewRecordings(kv, log)
	settings := repository.NewSettings(kv, cfg.Analysis.Defaults, log)

	orchestrator := usecase.NewOrchestrator(
		recordings,
		settings,
		providerRegistry(cfg.Analysis, m, log),
		m,
		log,
		usecase.OrchestratorConfig{RequestsPerSecond: cfg.Analysis.RequestsPerSecond},
	)

	audioDir := ""
	if cfg.Session.KeepAudio {
		audioDir = cfg.Storage.AudioDir
	}

	controller := usecase.NewRecordingController(
		usecase.Dependencies{
			Audio: audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand, log),
			Transcription: deepgram.NewProvider(deepgram.Config{
				APIKey:      cfg.Deepgram.APIKey,
				APIBaseURL:  cfg.Deepgram.APIBaseURL,
				Model:       cfg.Deepgram.Model,
				Language:    cfg.Deepgram.Language,
				SmartFormat: cfg.Deepgram.SmartFormat,
				Punctuate:   true,
				Log:         log,
			}),
			Rules:      rulesEngine,
			Recordings: recordings,
			Settings:   settings,
			Analyzer:   orchestrator,
			Events:     eventSink,
			Metrics:    m,
			Log:        log,
		},
		usecase.Config{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			Streaming: ports.StreamingConfig{
				SampleRate:     cfg.Audio.SampleRate,
				Channels:       cfg.Audio.Channels,
				Encoding:       "linear16",
				Language:       cfg.Deepgram.Language,
				InterimResults: true,
			},
			ChunkSize:      cfg.Session.ChunkSize,
			StreamingGrace: cfg.Session.StreamingGrace,
			CaptureSpeaker: cfg.Session.CaptureSpeaker,
			AutoAnalyze:    cfg.Session.AutoAnalyze,
			AudioDir:       audioDir,
		},
	)

	services := Services{
		Controller:   controller,
		Orchestrator: orchestrator,
		Recordings:   recordings,
		Settings:     settings,
		Metrics:      m,
		Config:       cfg,
		Log:          log,
		store:        kv,
	}

	if cfg.Analysis.SettingsFile != "" {
		watcher := settingsync.New(cfg.Analysis.SettingsFile, settings, log)
		if err := watcher.Start(ctx); err != nil {
			log.WithError(err).Warn("settings file will not be watched")
		} else {
			services.watcher = watcher
		}
	}

	log.WithFields(logrus.Fields{
		"store":       cfg.Storage.Path,
		"rules":       rulesEngine.Len(),
		"autoAnalyze": cfg.Session.AutoAnalyze,
	}).Info("services ready")
	return services, nil
}

func providerRegistry(cfg config.AnalysisConfig, m *metrics.Metrics, log logrus.FieldLogger) *usecase.ProviderRegistry {
	invalid := func(analysis.Rejected) {
		m.PointsDropped.WithLabelValues(metrics.DropInvalid).Inc()
	}
	registry := usecase.NewProviderRegistry()
	registry.Register(domain.ProviderLocal, func(domain.AnalysisSettings) ports.AnalysisProvider {
		return mock.NewProvider(cfg.MockDelay)
	})
	registry.Register(domain.ProviderOpenAI, func(s domain.AnalysisSettings) ports.AnalysisProvider {
		return openai.NewProvider(openai.Config{APIKey: s.APIKey, BaseURL: cfg.OpenAIBaseURL, Model: s.Model, Log: log, OnRejected: invalid})
	})
	registry.Register(domain.ProviderAnthropic, func(s domain.AnalysisSettings) ports.AnalysisProvider {
		return anthropic.NewProvider(anthropic.Config{APIKey: s.APIKey, BaseURL: cfg.AnthropicBaseURL, Model: s.Model, Log: log, OnRejected: invalid})
	})
	return registry
}

// Close stops the settings watcher and closes the store.
func (s Services) Close() error {
	var errs []error
	if s.watcher != nil {
		errs = append(errs, s.watcher.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}
