package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/river-level-etl/internal/domain"
	"github.com/couchcryptid/river-level-etl/internal/observability"
)

var (
	// ErrRefreshInProgress is returned when a refresh is requested while another is outstanding.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrFetch wraps every failure to obtain the feed body. The cache is untouched.
	ErrFetch = errors.New("fetch feed")

	// ErrPersist wraps a failed cache write. The in-memory series is untouched.
	ErrPersist = errors.New("persist series")
)

// FeedFetcher downloads the raw feed body.
type FeedFetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

// PointRepository persists the full point series for one feed source.
type PointRepository interface {
	Load(ctx context.Context) []domain.Point
	Save(ctx context.Context, points []domain.Point) error
	Metadata(ctx context.Context) (domain.CacheMetadata, bool)
}

// EventPublisher announces completed refreshes downstream.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.RefreshEvent) error
}

// Settings are the presentation parameters that may change at runtime.
type Settings struct {
	SafeLevel float64
	Window    domain.Window
}

// RefreshResult summarizes one successful refresh.
type RefreshResult struct {
	Parsed int           `json:"parsed"`
	Added  int           `json:"added"`
	Pruned int           `json:"pruned"`
	Total  int           `json:"total"`
	Status domain.Status `json:"status"`
}

// Refresher owns the in-memory series and runs fetch-merge-persist cycles.
// At most one refresh runs at a time; reads are served concurrently.
type Refresher struct {
	fetcher   FeedFetcher
	repo      PointRepository
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu         sync.RWMutex
	series     []domain.Point
	refreshing atomic.Bool
	settings   atomic.Pointer[Settings]
}

// New creates a Refresher. publisher may be nil to disable event publishing.
func New(f FeedFetcher, repo PointRepository, publisher EventPublisher, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	r := &Refresher{
		fetcher:   f,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		series:    []domain.Point{},
	}
	r.settings.Store(&settings)
	return r
}

// Restore loads the persisted series into memory and returns its length.
func (r *Refresher) Restore(ctx context.Context) int {
	points := r.repo.Load(ctx)

	r.mu.Lock()
	r.series = points
	r.mu.Unlock()

	r.observeSeries(ctx, points)
	r.logger.Info("cache restored", "source", r.fetcher.URL(), "points", len(points))
	return len(points)
}

// Settings returns the current presentation settings.
func (r *Refresher) Settings() Settings {
	return *r.settings.Load()
}

// UpdateSettings replaces the presentation settings used by View and Status.
func (r *Refresher) UpdateSettings(s Settings) {
	r.settings.Store(&s)
	r.logger.Info("settings updated", "safe_level", s.SafeLevel, "display_window", s.Window.String())

	r.mu.RLock()
	points := r.series
	r.mu.RUnlock()
	r.observeStatus(domain.ResolveStatus(points, s.SafeLevel))
}

// CheckReadiness returns nil once there is a series to serve, either restored
// from the cache or produced by a refresh.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	r.mu.RLock()
	n := len(r.series)
	r.mu.RUnlock()
	if n == 0 {
		return errors.New("no river level data loaded yet")
	}
	return nil
}

// Series returns a copy of the full cached series.
func (r *Refresher) Series() []domain.Point {
	return r.View(domain.WindowAll)
}

// View returns the display slice of the series for window w.
func (r *Refresher) View(w domain.Window) []domain.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.WindowPoints(r.series, w)
}

// Status resolves the current status from the full series, not the display window.
func (r *Refresher) Status() domain.Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.ResolveStatus(r.series, r.Settings().SafeLevel)
}

// Metadata returns the persisted snapshot metadata, if any.
func (r *Refresher) Metadata(ctx context.Context) (domain.CacheMetadata, bool) {
	return r.repo.Metadata(ctx)
}

// Refresh runs one fetch, parse, merge, prune, persist cycle.
func (r *Refresher) Refresh(ctx context.Context) (RefreshResult, error) {
	if !r.refreshing.CompareAndSwap(false, true) {
		r.metrics.Refreshes.WithLabelValues("skipped").Inc()
		return RefreshResult{}, ErrRefreshInProgress
	}
	defer r.refreshing.Store(false)

	start := time.Now()

	body, err := r.fetcher.Fetch(ctx)
	if err != nil {
		r.metrics.Refreshes.WithLabelValues("fetch_error").Inc()
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	incoming := domain.ParseFeed(body)
	r.metrics.PointsParsed.Add(float64(len(incoming)))

	// Only one refresh runs at a time, so the series cannot change underneath us.
	r.mu.RLock()
	existing := r.series
	r.mu.RUnlock()

	merged := domain.Merge(existing, incoming)
	kept := domain.Prune(merged, domain.RetentionHorizon)

	if err := r.repo.Save(ctx, kept); err != nil {
		r.metrics.Refreshes.WithLabelValues("store_error").Inc()
		return RefreshResult{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	r.mu.Lock()
	r.series = kept
	r.mu.Unlock()

	result := RefreshResult{
		Parsed: len(incoming),
		Added:  domain.CountNew(existing, incoming),
		Pruned: len(merged) - len(kept),
		Total:  len(kept),
		Status: domain.ResolveStatus(kept, r.Settings().SafeLevel),
	}

	r.metrics.Refreshes.WithLabelValues("success").Inc()
	r.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	r.metrics.PointsAdded.Add(float64(result.Added))
	r.metrics.PointsPruned.Add(float64(result.Pruned))
	r.metrics.LastRefresh.Set(float64(domain.Now().Unix()))
	r.observeSeries(ctx, kept)

	r.logger.Info("refresh complete",
		"source", r.fetcher.URL(),
		"parsed", result.Parsed,
		"added", result.Added,
		"pruned", result.Pruned,
		"total", result.Total,
		"status", result.Status.Label,
		"duration", time.Since(start),
	)

	r.publish(ctx, result)
	return result, nil
}

// Run refreshes immediately, then on every tick of interval until ctx is
// cancelled. A failed refresh is logged and the next tick proceeds as normal.
// A non-positive interval runs only the initial refresh.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	r.logger.Info("refresher started", "source", r.fetcher.URL(), "interval", interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	r.refreshAndLog(ctx)
	if interval <= 0 {
		return nil
	}

	ticker := domain.Clock().NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			r.refreshAndLog(ctx)
		}
	}
}

func (r *Refresher) refreshAndLog(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, ErrRefreshInProgress):
			r.logger.Info("scheduled refresh skipped, another is in progress")
		default:
			r.logger.Error("refresh failed", "source", r.fetcher.URL(), "error", err)
		}
	}
}

func (r *Refresher) publish(ctx context.Context, result RefreshResult) {
	if r.publisher == nil {
		return
	}
	event := domain.RefreshEvent{
		Source:      r.fetcher.URL(),
		RefreshedAt: domain.Now().UTC(),
		Parsed:      result.Parsed,
		Added:       result.Added,
		Pruned:      result.Pruned,
		Total:       result.Total,
		Status:      result.Status,
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.metrics.PublishErrors.Inc()
		r.logger.Warn("publish refresh event failed", "error", err)
		return
	}
	r.metrics.EventsPublished.Inc()
}

func (r *Refresher) observeSeries(ctx context.Context, points []domain.Point) {
	r.metrics.CachedPoints.Set(float64(len(points)))
	if meta, ok := r.repo.Metadata(ctx); ok {
		r.metrics.CacheSizeBytes.Set(float64(meta.SizeBytes))
	}
	r.observeStatus(domain.ResolveStatus(points, r.Settings().SafeLevel))
}

func (r *Refresher) observeStatus(s domain.Status) {
	switch {
	case !s.Known():
		r.metrics.CurrentStatus.Set(-1)
		r.metrics.CurrentLevel.Set(0)
	case s.Unsafe:
		r.metrics.CurrentStatus.Set(1)
		r.metrics.CurrentLevel.Set(*s.Value)
	default:
		r.metrics.CurrentStatus.Set(0)
		r.metrics.CurrentLevel.Set(*s.Value)
	}
}
