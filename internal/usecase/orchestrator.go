package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"breeze/internal/analysis"
	"breeze/internal/domain"
	"breeze/internal/metrics"
	"breeze/internal/ports"
)

var (
	ErrRecordingNotFound = errors.New("recording not found")
	ErrUnknownProvider   = errors.New("unknown analysis provider")
	ErrConfiguration     = errors.New("analysis is not configured")
	ErrNotCompleted      = errors.New("recording is not completed")
)

// ProviderFactory builds an analysis provider for the given settings.
type ProviderFactory func(settings domain.AnalysisSettings) ports.AnalysisProvider

// ProviderRegistry maps provider names onto factories.
type ProviderRegistry struct {
	mu        sync.RWMutex
	factories map[domain.ProviderName]ProviderFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{factories: map[domain.ProviderName]ProviderFactory{}}
}

func (r *ProviderRegistry) Register(name domain.ProviderName, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Resolve returns the provider selected by settings. Remote providers
// without a key fail here, before any request is built.
func (r *ProviderRegistry) Resolve(settings domain.AnalysisSettings) (ports.AnalysisProvider, error) {
	r.mu.RLock()
	factory, ok := r.factories[settings.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %w %q", ErrConfiguration, ErrUnknownProvider, settings.Provider)
	}
	if settings.Provider.Remote() && settings.APIKey == "" {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfiguration, settings.Provider, analysis.ErrAPIKeyRequired)
	}
	return factory(settings), nil
}

// OrchestratorConfig tunes the remote call policy.
type OrchestratorConfig struct {
	RequestsPerSecond float64
	Burst             int
	BaseBackoff       time.Duration
	FailureTTL        time.Duration
}

type analysisFailure struct {
	provider string
	message  string
	at       time.Time
}

// Orchestrator runs special point extraction for stored recordings and
// writes the results back.
type Orchestrator struct {
	recordings ports.RecordingRepository
	settings   ports.SettingsSource
	registry   *ProviderRegistry
	metrics    *metrics.Metrics
	log        logrus.FieldLogger

	limiter  *rate.Limiter
	failures *cache.Cache
	backoff  time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(
	recordings ports.RecordingRepository,
	settings ports.SettingsSource,
	registry *ProviderRegistry,
	m *metrics.Metrics,
	log logrus.FieldLogger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.FailureTTL <= 0 {
		cfg.FailureTTL = time.Hour
	}
	return &Orchestrator{
		recordings: recordings,
		settings:   settings,
		registry:   registry,
		metrics:    m,
		log:        log,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		failures:   cache.New(cfg.FailureTTL, 2*cfg.FailureTTL),
		backoff:    cfg.BaseBackoff,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// AnalyzeRecording extracts special points for the stored recording id and
// saves them onto it. Failures leave the stored recording untouched.
func (o *Orchestrator) AnalyzeRecording(ctx context.Context, id string) ([]domain.SpecialPoint, error) {
	recording, ok, err := o.recordings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}
	if recording.Status != domain.RecordingStatusCompleted {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotCompleted, id, recording.Status)
	}

	settings := o.settings.Load(ctx).Normalize()
	log := o.log.WithFields(logrus.Fields{"recording_id": id, "provider": settings.Provider})

	if !settings.AnalysisTypes.ExtractSpecialPoints {
		o.metrics.AnalysisRuns.WithLabelValues(string(settings.Provider), metrics.OutcomeSkipped).Inc()
		log.Debug("special point extraction disabled")
		return []domain.SpecialPoint{}, nil
	}

	provider, err := o.registry.Resolve(settings)
	if err != nil {
		o.recordFailure(id, string(settings.Provider), err)
		log.WithError(err).Warn("analysis provider unavailable")
		return nil, err
	}

	started := o.now()
	points, err := o.callWithRetry(ctx, provider, settings, recording)
	o.metrics.AnalysisDuration.Observe(o.now().Sub(started).Seconds())
	if err != nil {
		o.recordFailure(id, provider.Name(), err)
		log.WithError(err).Error("analysis failed")
		return nil, err
	}

	points = o.filterByConfidence(points, settings.ConfidenceThreshold)

	// The transcript may have been edited while the provider was working.
	current, ok, err := o.recordings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}
	now := o.now()
	updated := current.Clone()
	updated.SpecialPoints = points
	updated.Analysis = &domain.AnalysisRun{
		Provider:    provider.Name(),
		Model:       modelFor(settings),
		CompletedAt: now,
		PointCount:  len(points),
	}
	updated.UpdatedAt = now
	if err := o.recordings.Save(ctx, updated); err != nil {
		log.WithError(err).Error("failed to save analysis results")
		return nil, err
	}

	o.failures.Delete(id)
	o.metrics.AnalysisRuns.WithLabelValues(provider.Name(), metrics.OutcomeSuccess).Inc()
	log.WithField("points", len(points)).Info("analysis complete")
	return points, nil
}

// SpecialPoints returns the stored points of a recording.
func (o *Orchestrator) SpecialPoints(ctx context.Context, id string) ([]domain.SpecialPoint, error) {
	recording, ok, err := o.recordings.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}
	if recording.SpecialPoints == nil {
		return []domain.SpecialPoint{}, nil
	}
	return recording.SpecialPoints, nil
}

// HasSpecialPoints reports whether the recording exists and carries at
// least one point.
func (o *Orchestrator) HasSpecialPoints(ctx context.Context, id string) bool {
	points, err := o.SpecialPoints(ctx, id)
	return err == nil && len(points) > 0
}

// AnalysisStatus distinguishes never analyzed, analyzed with results or
// none, and a failed latest attempt.
func (o *Orchestrator) AnalysisStatus(ctx context.Context, id string) (domain.AnalysisStatus, error) {
	recording, ok, err := o.recordings.Get(ctx, id)
	if err != nil {
		return domain.AnalysisStatus{}, err
	}
	if !ok {
		return domain.AnalysisStatus{}, fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
	}

	status := domain.AnalysisStatus{RecordingID: id, State: domain.AnalysisStateNotAnalyzed}
	if run := recording.Analysis; run != nil {
		at := run.CompletedAt
		status.State = domain.AnalysisStateAnalyzed
		status.PointCount = run.PointCount
		status.Provider = run.Provider
		status.At = &at
	}
	if cached, found := o.failures.Get(id); found {
		failure := cached.(analysisFailure)
		if recording.Analysis == nil || failure.at.After(recording.Analysis.CompletedAt) {
			at := failure.at
			status.State = domain.AnalysisStateFailed
			status.Provider = failure.provider
			status.Error = failure.message
			status.At = &at
		}
	}
	return status, nil
}

func (o *Orchestrator) callWithRetry(
	ctx context.Context,
	provider ports.AnalysisProvider,
	settings domain.AnalysisSettings,
	recording domain.Recording,
) ([]domain.SpecialPoint, error) {
	timeout := time.Duration(settings.TimeoutSeconds) * time.Second
	backoff := o.backoff

	for attempt := 1; ; attempt++ {
		if settings.Provider.Remote() {
			if err := o.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		o.metrics.AnalysisAttempts.WithLabelValues(provider.Name()).Inc()
		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		points, err := provider.Analyze(attemptCtx, recording)
		cancel()
		if err == nil {
			return points, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= settings.MaxAttempts || !retryable(err) {
			return nil, err
		}

		o.log.WithFields(logrus.Fields{
			"recording_id": recording.ID,
			"provider":     provider.Name(),
			"attempt":      attempt,
			"backoff":      backoff.String(),
		}).WithError(err).Warn("analysis attempt failed, retrying")
		if err := o.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (o *Orchestrator) filterByConfidence(points []domain.SpecialPoint, threshold float64) []domain.SpecialPoint {
	kept := make([]domain.SpecialPoint, 0, len(points))
	for _, point := range points {
		if point.Confidence != nil && *point.Confidence < threshold {
			o.metrics.PointsDropped.WithLabelValues(metrics.DropLowConfidence).Inc()
			continue
		}
		kept = append(kept, point)
	}
	return kept
}

func (o *Orchestrator) recordFailure(id, provider string, err error) {
	o.metrics.AnalysisRuns.WithLabelValues(provider, metrics.OutcomeFailed).Inc()
	o.failures.SetDefault(id, analysisFailure{provider: provider, message: err.Error(), at: o.now()})
}

func retryable(err error) bool {
	return analysis.Retryable(err) || errors.Is(err, context.DeadlineExceeded)
}

func modelFor(settings domain.AnalysisSettings) string {
	if settings.Provider.Remote() {
		return settings.Model
	}
	return ""
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
