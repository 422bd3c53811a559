// Package repository maps the recorder's documents onto the key-value store.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"breeze/internal/domain"
	"breeze/internal/ports"
)

const (
	// RecordingsKey holds the whole recording collection.
	RecordingsKey = "conversation-recordings"
	// SettingsKey holds the analysis settings singleton.
	SettingsKey = "analysis-settings"
)

// Recordings stores the recording collection as a single document.
type Recordings struct {
	store ports.KeyValueStore
	log   logrus.FieldLogger

	// mu serializes read-modify-write cycles within this process.
	mu sync.Mutex
}

func NewRecordings(store ports.KeyValueStore, log logrus.FieldLogger) *Recordings {
	return &Recordings{store: store, log: log.WithField("component", "recordings")}
}

// List returns every stored recording in insertion order. Unreadable
// collections degrade to an empty list.
func (r *Recordings) List(ctx context.Context) ([]domain.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadOrEmpty(ctx), nil
}

// Get returns the recording with id.
func (r *Recordings) Get(ctx context.Context, id string) (domain.Recording, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, recording := range r.loadOrEmpty(ctx) {
		if recording.ID == id {
			return recording, true, nil
		}
	}
	return domain.Recording{}, false, nil
}

// Save inserts or replaces a recording by id.
func (r *Recordings) Save(ctx context.Context, recording domain.Recording) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range all {
		if all[i].ID == recording.ID {
			all[i] = recording
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, recording)
	}
	return r.write(ctx, all)
}

// Delete removes a recording by id. Unknown ids are ignored.
func (r *Recordings) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := all[:0]
	for _, recording := range all {
		if recording.ID != id {
			kept = append(kept, recording)
		}
	}
	if len(kept) == len(all) {
		return nil
	}
	return r.write(ctx, kept)
}

// loadOrEmpty is the read path: an unreadable collection shows as empty.
func (r *Recordings) loadOrEmpty(ctx context.Context) []domain.Recording {
	recordings, err := r.load(ctx)
	if err != nil {
		r.log.WithError(err).Warn("recordings unreadable; treating as empty")
		return nil
	}
	return recordings
}

// load fails when the store cannot be read, so a write never replaces a
// collection it could not see. A corrupt document reads as empty.
func (r *Recordings) load(ctx context.Context) ([]domain.Recording, error) {
	doc, ok, err := r.store.Get(ctx, RecordingsKey)
	if err != nil {
		return nil, fmt.Errorf("%w: read recordings: %v", ErrStorage, err)
	}
	if !ok {
		return nil, nil
	}

	var recordings []domain.Recording
	if err := json.Unmarshal(doc, &recordings); err != nil {
		r.log.WithError(err).Warn("recordings document is corrupt; treating as empty")
		return nil, nil
	}
	return recordings, nil
}

func (r *Recordings) write(ctx context.Context, recordings []domain.Recording) error {
	if recordings == nil {
		recordings = []domain.Recording{}
	}
	doc, err := json.Marshal(recordings)
	if err != nil {
		return fmt.Errorf("encode recordings: %w", err)
	}
	if err := r.store.Set(ctx, RecordingsKey, doc); err != nil {
		r.log.WithError(err).Error("failed to persist recordings")
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
