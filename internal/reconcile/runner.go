package reconcile

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mayple/hubspot-portal-syncer/internal/config"
	"github.com/mayple/hubspot-portal-syncer/internal/domain"
)

// Runner executes every (pair, object type) combination from the config and
// collects the results into a Report. Combinations share no state, so they
// can run in parallel; the report keeps configuration order either way.
type Runner struct {
	cfg         *config.Config
	portals     map[string]PortalAPI
	concurrency int
	dryRun      bool
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConcurrency sets how many combinations run at once. The default is 1,
// matching the original sequential behavior.
func WithConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithDryRun diffs and reports without issuing any create calls.
func WithDryRun(dry bool) RunnerOption {
	return func(r *Runner) { r.dryRun = dry }
}

// NewRunner builds a runner. portals maps config portal names to their API
// clients; every portal referenced by a configured pair must be present.
func NewRunner(cfg *config.Config, portals map[string]PortalAPI, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg, portals: portals, concurrency: 1}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type combination struct {
	pair       config.Pair
	objectType domain.ObjectType
}

// Run reconciles all combinations and returns the aggregate report. A
// failure inside one combination never aborts the others; every failure is
// captured in its Result.
func (r *Runner) Run(ctx context.Context) *Report {
	var combos []combination
	for _, pair := range r.cfg.Pairs {
		for _, objectType := range r.cfg.ObjectTypes {
			combos = append(combos, combination{pair: pair, objectType: objectType})
		}
	}

	results := make([]Result, len(combos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, combo := range combos {
		g.Go(func() error {
			source := r.portals[combo.pair.Source.Name]
			target := r.portals[combo.pair.Target.Name]
			results[i] = Sync(gctx, source, target, combo.pair.Label, combo.objectType, r.dryRun)
			return nil
		})
	}
	// The goroutines only report through the results slice.
	_ = g.Wait()

	return &Report{DryRun: r.dryRun, Results: results}
}
