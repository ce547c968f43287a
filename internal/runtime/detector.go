// Package runtime assembles the stores, the detection engine, the
// notifier, and the HTTP server into the long-running failsift service,
// and manages its lifecycle.
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/failsift/failsift/internal/adapters/clustering/remote"
	"github.com/failsift/failsift/internal/cluster"
	"github.com/failsift/failsift/internal/config"
	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/detect"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/features"
	"github.com/failsift/failsift/internal/server"
	"github.com/failsift/failsift/internal/source"
)

// Detector phases reported by State. Runs may overlap, in which case the
// value reflects the most recent transition.
const (
	StateIdle       = "idle"
	StateFetching   = "fetching"
	StateClustering = "clustering"
)

// patternWorkers bounds the per-pattern persist and notify fan-out.
const patternWorkers = 4

// Detector is the main entry point for running the failure pattern
// detection service. It owns the stores, the detection engine, and the
// notification sink, schedules detection runs, and serves the HTTP API.
// Detector can be embedded in larger applications or run standalone.
type Detector struct {
	// Dependencies (injected via options)
	cfg      *config.Config
	cfgPath  string
	failures ports.FailureStore
	actions  ports.ActionStore
	notifier ports.Notifier
	invoker  ports.ClusterInvoker

	// Built from configuration
	engine    *detect.Engine
	extractor *features.Extractor
	clusterer *cluster.DBSCAN

	// Internal state
	server  *http.Server
	logger  *slog.Logger
	state   atomic.Value
	signal  chan struct{}
	lastRun *domain.DetectionReport

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

// New creates a Detector with the given options. Configuration and
// storage are required; the notifier defaults to the sink named by the
// configuration and the engine is built from the clustering settings.
func New(opts ...Option) (*Detector, error) {
	d := &Detector{
		logger: slog.Default(),
		signal: make(chan struct{}, 1),
	}
	d.state.Store(StateIdle)

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if d.cfg == nil {
		return nil, fmt.Errorf("config required (use WithConfig or WithConfigFile)")
	}
	if d.failures == nil || d.actions == nil {
		return nil, fmt.Errorf("storage required (use WithSQLite, WithMemoryStore, or WithConfiguredStorage)")
	}

	if d.notifier == nil {
		notifier, err := buildNotifier(d.cfg, d.logger)
		if err != nil {
			return nil, fmt.Errorf("create notifier: %w", err)
		}
		d.notifier = notifier
	}

	d.buildPipeline()

	return d, nil
}

// buildPipeline constructs the feature pipeline and the detection engine
// from configuration. An injected engine is kept as-is; the extractor and
// clusterer are built regardless because the HTTP clustering endpoint
// uses them directly.
func (d *Detector) buildPipeline() {
	cfg := d.cfg

	extractorOpts := []features.ExtractorOption{
		features.WithMaxTerms(cfg.Features.MaxTerms),
	}
	if cfg.Clustering.ModelPath != "" {
		v, err := loadVectorizer(cfg.Clustering.ModelPath, cfg.Features.MaxTerms)
		if err != nil {
			d.logger.Warn("vectorizer model not loaded, fitting per batch",
				slog.String("path", cfg.Clustering.ModelPath),
				slog.String("error", err.Error()))
		} else {
			extractorOpts = append(extractorOpts, features.WithVectorizer(v))
			d.logger.Info("vectorizer model loaded",
				slog.String("path", cfg.Clustering.ModelPath),
				slog.Int("terms", v.NumFeatures()))
		}
	}
	d.extractor = features.NewExtractor(cfg.Services.Known, extractorOpts...)
	d.clusterer = cluster.NewDBSCAN(
		cluster.WithEps(cfg.Clustering.Eps),
		cluster.WithMinPoints(cfg.Clustering.MinPoints),
	)

	if d.engine != nil {
		return
	}

	engineOpts := []detect.Option{detect.WithLogger(d.logger)}
	switch {
	case d.invoker != nil:
		engineOpts = append(engineOpts, detect.WithInvoker(d.invoker))
	case cfg.Clustering.Endpoint != "":
		engineOpts = append(engineOpts, detect.WithInvoker(remote.New(remote.Config{
			Endpoint: cfg.Clustering.Endpoint,
			Timeout:  cfg.ClusteringTimeout(),
		})))
	case cfg.Clustering.Local:
		engineOpts = append(engineOpts, detect.WithLocalPipeline(d.extractor, d.clusterer))
	}
	d.engine = detect.New(engineOpts...)
}

// Start launches the HTTP server, the detection and retention loops, and
// the config watcher. It returns once everything is running.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.startServer(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	go d.detectionLoop()
	go d.retentionLoop()
	if d.cfgPath != "" {
		go d.watchConfig()
	}

	d.logger.Info("detector started",
		slog.String("addr", d.cfg.Server.Addr),
		slog.String("driver", d.cfg.Storage.Driver),
		slog.Duration("window", d.cfg.Window()),
		slog.Duration("interval", d.cfg.DetectionInterval()))

	return nil
}

// Shutdown gracefully stops the detector and closes every owned resource.
func (d *Detector) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.logger.Info("shutting down detector")

	if d.cancel != nil {
		d.cancel()
	}

	if d.server != nil {
		if err := d.server.Shutdown(ctx); err != nil {
			d.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	if d.failures != nil {
		if err := d.failures.Close(); err != nil {
			d.logger.Error("failed to close failure store", slog.String("error", err.Error()))
		}
	}
	if d.actions != nil && !sameStore(d.failures, d.actions) {
		if err := d.actions.Close(); err != nil {
			d.logger.Error("failed to close action store", slog.String("error", err.Error()))
		}
	}

	if closer, ok := d.notifier.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			d.logger.Error("failed to close notifier", slog.String("error", err.Error()))
		}
	}

	d.logger.Info("detector shutdown complete")
	return nil
}

// Run executes one detection run: fetch the window, cluster, then persist
// and notify each pattern. Runs may overlap; the only fatal failure is an
// unreachable failure store.
func (d *Detector) Run(ctx context.Context) (domain.DetectionReport, error) {
	cfg := d.currentConfig()
	start := time.Now().UTC()

	report := domain.DetectionReport{
		RunID:     uuid.New().String(),
		StartedAt: start,
		Strategy:  domain.StrategyNone,
	}

	d.state.Store(StateFetching)
	defer d.state.Store(StateIdle)

	since := start.Add(-cfg.Window())
	records, err := d.failures.QueryFailures(ctx, since)
	if err != nil {
		return report, domain.ErrTransientFetch("failure store query failed", err)
	}
	report.FailuresFetched = len(records)

	if len(records) == 0 {
		d.logger.Info("no failures to analyze",
			slog.String("run_id", report.RunID),
			slog.Duration("window", cfg.Window()))
		report.Duration = time.Since(start)
		d.setLastRun(report)
		return report, nil
	}

	d.state.Store(StateClustering)

	result := d.engine.Detect(ctx, records, start)
	report.Strategy = result.Strategy
	report.Degraded = result.Degraded
	report.DegradedReason = result.DegradedReason
	report.PatternsDetected = len(result.Patterns)
	report.Patterns = result.Patterns

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(patternWorkers)
	for _, p := range result.Patterns {
		g.Go(func() error {
			persisted, notified, perr := d.persistAndNotify(gctx, cfg, p)
			mu.Lock()
			defer mu.Unlock()
			if persisted {
				report.ActionsPersisted++
			}
			if notified {
				report.NotificationsSent++
			}
			if perr != nil {
				report.PatternErrors = append(report.PatternErrors, perr.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(start)
	d.setLastRun(report)

	d.logger.Info("detection run complete",
		slog.String("run_id", report.RunID),
		slog.Int("failures", report.FailuresFetched),
		slog.Int("patterns", report.PatternsDetected),
		slog.Int("actions", report.ActionsPersisted),
		slog.Int("notified", report.NotificationsSent),
		slog.String("strategy", string(report.Strategy)),
		slog.Bool("degraded", report.Degraded),
		slog.Duration("duration", report.Duration))

	return report, nil
}

// persistAndNotify writes the alert action for one pattern and sends its
// notification. A failure affects only this pattern.
func (d *Detector) persistAndNotify(ctx context.Context, cfg *config.Config, p domain.Pattern) (persisted, notified bool, err error) {
	action, err := domain.NewAlertAction(uuid.New().String(), p, time.Now().UTC())
	if err != nil {
		return false, false, domain.ErrPersistence("build action for pattern "+p.PatternID, err)
	}
	if _, err := d.actions.PutAction(ctx, &action); err != nil {
		return false, false, domain.ErrPersistence("persist action for pattern "+p.PatternID, err)
	}

	subject, body, err := formatNotification(p, cfg.Detection.NotifyServicesMax)
	if err != nil {
		return true, false, domain.ErrPersistence("encode notification for pattern "+p.PatternID, err)
	}
	if err := d.notifier.Send(ctx, subject, body); err != nil {
		return true, false, domain.ErrPersistence("notify pattern "+p.PatternID, err)
	}
	return true, true, nil
}

// Ingest normalizes a payload batch from the named source, stores each
// record, and nudges the scheduler so a detection run follows shortly.
// It returns the stored failure ids in batch order.
func (d *Detector) Ingest(ctx context.Context, sourceType string, payloads []map[string]any) ([]string, error) {
	records := source.NormalizeBatch(sourceType, payloads)

	now := time.Now().UTC()
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		rec = source.Finalize(rec, uuid.New().String(), now)
		id, err := d.failures.PutFailure(ctx, &rec)
		if err != nil {
			return ids, domain.ErrTransientFetch("failure store write failed", err)
		}
		ids = append(ids, id)
	}

	if len(ids) > 0 {
		d.nudge()
	}
	return ids, nil
}

// State reports the current detector phase for the stats surface.
func (d *Detector) State() string {
	return d.state.Load().(string)
}

// LastRun returns the most recent detection report, if any run has
// completed since startup.
func (d *Detector) LastRun() (domain.DetectionReport, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastRun == nil {
		return domain.DetectionReport{}, false
	}
	return *d.lastRun, true
}

func (d *Detector) setLastRun(report domain.DetectionReport) {
	d.mu.Lock()
	d.lastRun = &report
	d.mu.Unlock()
}

func (d *Detector) currentConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// nudge wakes the scheduler without blocking; a pending wake coalesces
// bursts into one run.
func (d *Detector) nudge() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

// detectionLoop runs detections on the configured interval and on ingest
// signals. The timer is re-armed each pass so a reloaded interval takes
// effect on the next tick; a zero interval leaves only the signal path.
func (d *Detector) detectionLoop() {
	for {
		interval := d.currentConfig().DetectionInterval()

		var timer *time.Timer
		var tick <-chan time.Time
		if interval > 0 {
			timer = time.NewTimer(interval)
			tick = timer.C
		}

		select {
		case <-d.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-tick:
		case <-d.signal:
			if timer != nil {
				timer.Stop()
			}
		}

		if _, err := d.Run(d.ctx); err != nil {
			d.logger.Error("detection run failed", slog.String("error", err.Error()))
		}
	}
}

// retentionLoop purges failures older than the retention window. A zero
// max age disables the purge but keeps the ticker alive so a reload can
// turn it back on.
func (d *Detector) retentionLoop() {
	for {
		sweep := d.currentConfig().RetentionSweepInterval()
		if sweep <= 0 {
			sweep = time.Hour
		}
		timer := time.NewTimer(sweep)

		select {
		case <-d.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		maxAge := d.currentConfig().RetentionMaxAge()
		if maxAge <= 0 {
			continue
		}

		cutoff := time.Now().UTC().Add(-maxAge)
		deleted, err := d.failures.PurgeBefore(d.ctx, cutoff)
		if err != nil {
			d.logger.Error("retention sweep failed", slog.String("error", err.Error()))
			continue
		}
		if deleted > 0 {
			d.logger.Info("retention sweep complete",
				slog.Int64("deleted", deleted),
				slog.Time("cutoff", cutoff))
		}
	}
}

// watchConfig watches the config file and swaps the active config on
// change. Window, interval, and notify caps take effect on the next run;
// storage and engine wiring stay as built.
func (d *Detector) watchConfig() {
	onChange := func(cfg *config.Config) {
		d.mu.Lock()
		d.cfg = cfg
		d.mu.Unlock()
		d.logger.Info("config reloaded",
			slog.Duration("window", cfg.Window()),
			slog.Duration("interval", cfg.DetectionInterval()))
	}

	if err := config.Watch(d.ctx, d.cfgPath, d.logger, onChange); err != nil && err != context.Canceled {
		d.logger.Error("config watch failed", slog.String("error", err.Error()))
	}
}

// startServer builds the HTTP API around this detector and starts it.
func (d *Detector) startServer() error {
	srv := server.New(server.Options{
		Runtime:   d,
		Failures:  d.failures,
		Actions:   d.actions,
		Extractor: d.extractor,
		Clusterer: d.clusterer,
		Timeout:   d.cfg.ServerTimeout(),
		Logger:    d.logger,
	})

	d.server = &http.Server{
		Addr:         d.cfg.Server.Addr,
		Handler:      srv,
		ReadTimeout:  d.cfg.ServerTimeout(),
		WriteTimeout: d.cfg.ServerTimeout(),
	}

	go func() {
		d.logger.Info("HTTP server listening", slog.String("addr", d.server.Addr))
		if err := d.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Error("server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Detector satisfies the server's runtime surface.
var _ server.Runtime = (*Detector)(nil)
