package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"breeze/internal/domain"
	"breeze/internal/ports"
)

// ErrStorage wraps persistence write failures.
var ErrStorage = errors.New("storage write failed")

// Settings stores the analysis settings singleton.
type Settings struct {
	store    ports.KeyValueStore
	defaults domain.AnalysisSettings
	log      logrus.FieldLogger
}

// NewSettings returns a settings repository seeded with defaults, which are
// persisted on the first read of an empty store.
func NewSettings(store ports.KeyValueStore, defaults domain.AnalysisSettings, log logrus.FieldLogger) *Settings {
	return &Settings{
		store:    store,
		defaults: defaults.Normalize(),
		log:      log.WithField("component", "settings"),
	}
}

// Load returns the persisted settings, falling back to the defaults.
func (s *Settings) Load(ctx context.Context) domain.AnalysisSettings {
	doc, ok, err := s.store.Get(ctx, SettingsKey)
	if err != nil {
		s.log.WithError(err).Warn("settings unreadable; using defaults")
		return s.defaults
	}
	if !ok {
		if err := s.Save(ctx, s.defaults); err != nil {
			s.log.WithError(err).Warn("could not persist default settings")
		}
		return s.defaults
	}

	var settings domain.AnalysisSettings
	if err := json.Unmarshal(doc, &settings); err != nil {
		s.log.WithError(err).Warn("settings document is corrupt; using defaults")
		return s.defaults
	}
	return settings.Normalize()
}

// Save validates and overwrites the stored settings.
func (s *Settings) Save(ctx context.Context, settings domain.AnalysisSettings) error {
	settings = settings.Normalize()
	if err := settings.Validate(); err != nil {
		return err
	}
	doc, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := s.store.Set(ctx, SettingsKey, doc); err != nil {
		s.log.WithError(err).Error("failed to persist settings")
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
