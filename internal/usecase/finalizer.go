package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"breeze/internal/analysis"
	"breeze/internal/domain"
	"breeze/internal/metrics"
	"breeze/internal/ports"
	"breeze/internal/repository"
)

type recordingFinalizer struct {
	recordings ports.RecordingRepository
	settings   ports.SettingsSource
	analyzer   ports.RecordingAnalyzer
	events     ports.EventSink
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
	now        func() time.Time
}

// Finalize completes rec, saves it and publishes the stored version.
func (f recordingFinalizer) Finalize(ctx context.Context, rec domain.Recording) (domain.Recording, domain.SessionStateReason, error) {
	settings := f.settings.Load(ctx).Normalize()
	completed, err := Finalize(rec, settings.AnalysisTypes, f.now())
	if err != nil {
		return rec, domain.SessionReasonStorageFailed, err
	}

	log := f.log.WithFields(logrus.Fields{"recording_id": completed.ID, "segments": len(completed.Transcript)})
	if err := f.recordings.Save(ctx, completed); err != nil {
		log.WithError(err).Error("failed to save recording")
		f.events.SessionError(domain.ErrorCodeStorage, err.Error())
		return completed, domain.SessionReasonStorageFailed, err
	}

	f.metrics.RecordingsCompleted.Inc()
	f.events.RecordingUpdated(completed)
	log.WithField("duration", completed.Duration).Info("recording saved")
	return completed, domain.SessionReasonRecordingSaved, nil
}

// Analyze runs special point extraction for a saved recording. Failures are
// reported through the event sink and the saved recording is returned as is.
func (f recordingFinalizer) Analyze(ctx context.Context, rec domain.Recording) (domain.Recording, domain.SessionStateReason) {
	if f.analyzer == nil {
		return rec, domain.SessionReasonRecordingSaved
	}

	if _, err := f.analyzer.AnalyzeRecording(ctx, rec.ID); err != nil {
		f.events.SessionError(ErrorCode(err), err.Error())
		return rec, domain.SessionReasonAnalysisFailed
	}

	updated, ok, err := f.recordings.Get(ctx, rec.ID)
	if err == nil && ok {
		rec = updated
	}
	f.events.RecordingUpdated(rec)
	return rec, domain.SessionReasonAnalysisComplete
}

// ErrorCode maps a backend error onto the code reported to the UI.
func ErrorCode(err error) domain.ErrorCode {
	switch {
	case errors.Is(err, ErrConfiguration), errors.Is(err, analysis.ErrAPIKeyRequired), errors.Is(err, ErrNotCompleted):
		return domain.ErrorCodeConfiguration
	case errors.Is(err, ErrRecordingNotFound):
		return domain.ErrorCodeNotFound
	case errors.Is(err, repository.ErrStorage):
		return domain.ErrorCodeStorage
	default:
		return domain.ErrorCodeProvider
	}
}
