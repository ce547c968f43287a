// Package detect runs the clustering pass of a detection run: features,
// candidate grouping with fallback, then scoring and naming.
package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/failsift/failsift/internal/cluster"
	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
	"github.com/failsift/failsift/internal/features"
	"github.com/failsift/failsift/internal/logging"
)

// Result is the outcome of one clustering pass.
type Result struct {
	Patterns       []domain.Pattern
	Strategy       domain.Strategy
	Degraded       bool
	DegradedReason string
}

// Engine turns a failure batch into scored patterns. The learned strategy
// is tried first when one is configured (a remote invoker, or the local
// feature pipeline); any learned failure degrades to the deterministic
// fallback without surfacing the error.
type Engine struct {
	invoker   ports.ClusterInvoker
	extractor *features.Extractor
	dbscan    *cluster.DBSCAN
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithInvoker routes the learned strategy through a clustering service.
// Takes precedence over the local pipeline.
func WithInvoker(invoker ports.ClusterInvoker) Option {
	return func(e *Engine) {
		e.invoker = invoker
	}
}

// WithLocalPipeline runs the learned strategy in-process: feature
// extraction followed by density clustering.
func WithLocalPipeline(extractor *features.Extractor, d *cluster.DBSCAN) Option {
	return func(e *Engine) {
		e.extractor = extractor
		e.dbscan = d
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New creates an Engine. With no options it always uses the fallback
// heuristic.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: logging.New("detect"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Detect clusters the batch and scores the resulting candidates. It never
// returns an error: learned-strategy failures degrade to the fallback and
// are reported through the Result.
func (e *Engine) Detect(ctx context.Context, records []domain.FailureRecord, runStart time.Time) *Result {
	if len(records) < cluster.MinClusterSize {
		return &Result{Strategy: domain.StrategyNone}
	}

	res := &Result{Strategy: domain.StrategyFallback}
	var candidates []domain.Candidate

	switch {
	case e.invoker != nil:
		cands, err := e.invoker.Invoke(ctx, records)
		if err != nil {
			e.logger.Warn("clustering service unavailable, using fallback grouping", "error", err)
			res.Degraded = true
			res.DegradedReason = err.Error()
			candidates = cluster.Fallback(records)
		} else {
			res.Strategy = domain.StrategyLearned
			candidates = cands
		}

	case e.extractor != nil && e.dbscan != nil:
		cands, err := e.localCandidates(records)
		if err != nil {
			e.logger.Warn("local clustering failed, using fallback grouping", "error", err)
			res.Degraded = true
			res.DegradedReason = err.Error()
			candidates = cluster.Fallback(records)
		} else {
			res.Strategy = domain.StrategyLearned
			candidates = cands
		}

	default:
		candidates = cluster.Fallback(records)
	}

	res.Patterns = make([]domain.Pattern, 0, len(candidates))
	for i, c := range candidates {
		p, ok := buildPattern(c, res.Strategy, runStart, i)
		if !ok {
			continue
		}
		res.Patterns = append(res.Patterns, p)
	}

	return res
}

func (e *Engine) localCandidates(records []domain.FailureRecord) ([]domain.Candidate, error) {
	m, err := e.extractor.Extract(records)
	if err != nil {
		return nil, domain.ErrClusteringUnavailable("feature extraction failed", err)
	}
	if m.TextWidth == 0 {
		// Nothing textual to measure similarity on. Density clustering
		// over service one-hots alone would just mirror the fallback.
		return nil, domain.ErrClusteringUnavailable("batch yields no text features", nil)
	}

	groups := e.dbscan.Cluster(m.Rows)
	return cluster.FromIndexGroups(records, groups), nil
}
