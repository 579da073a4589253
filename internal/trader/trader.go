// Package trader schedules stored paths across a bounded set of concurrent
// drivers, keeping paths that touch the same books out of each other's way.
package trader

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pmoerman/quadbot/internal/domain"
	"github.com/pmoerman/quadbot/internal/engine"
)

const (
	// DefaultMaxConcurrent bounds how many paths trade at once.
	DefaultMaxConcurrent = 5
	// DefaultExpireAge is how long unprofitable and never-started paths are
	// kept before expiry.
	DefaultExpireAge = 24 * time.Hour
)

// PathRunner drives one path to a terminal state. Implemented by
// engine.Driver.
type PathRunner interface {
	Run(ctx context.Context, p *domain.Path) error
}

// PauseLister supplies the active trading pauses. Implemented by the Redis
// pause registry.
type PauseLister interface {
	Active(ctx context.Context) (map[domain.LegKey]struct{}, error)
}

// Alerter reaches the operator when a path is beyond automatic recovery.
type Alerter interface {
	PathUnrecoverable(ctx context.Context, p *domain.Path) error
}

// Trader runs scheduling rounds: expire stale paths, load the rest in
// insertion order, and hand the runnable ones to concurrent drivers.
type Trader struct {
	store         domain.PathStore
	runner        PathRunner
	pauses        PauseLister
	alerter       Alerter
	maxConcurrent int
	expireAge     time.Duration
	logger        *slog.Logger
}

// New creates a Trader with the default concurrency bound and expiry age.
func New(store domain.PathStore, runner PathRunner, pauses PauseLister, alerter Alerter, logger *slog.Logger) *Trader {
	return &Trader{
		store:         store,
		runner:        runner,
		pauses:        pauses,
		alerter:       alerter,
		maxConcurrent: DefaultMaxConcurrent,
		expireAge:     DefaultExpireAge,
		logger:        logger.With(slog.String("component", "trader")),
	}
}

// SetMaxConcurrent overrides the number of simultaneously driven paths.
func (t *Trader) SetMaxConcurrent(n int) {
	if n > 0 {
		t.maxConcurrent = n
	}
}

// SetExpireAge overrides the path expiry age.
func (t *Trader) SetExpireAge(age time.Duration) {
	if age > 0 {
		t.expireAge = age
	}
}

// Run executes scheduling rounds until the context is cancelled.
func (t *Trader) Run(ctx context.Context, interval time.Duration) error {
	for {
		if err := t.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			t.logger.Error("scheduling round failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// RunOnce performs one scheduling round. Paths are considered oldest first,
// so a path mid-execution finishes before newer opportunities are taken up.
func (t *Trader) RunOnce(ctx context.Context) error {
	if removed, err := t.store.Expire(ctx, t.expireAge); err != nil {
		t.logger.Warn("path expiry failed", slog.String("error", err.Error()))
	} else if removed > 0 {
		t.logger.Info("expired stale paths", slog.Int("removed", removed))
	}

	paths, err := t.store.List(ctx)
	if err != nil {
		return err
	}

	paused, err := t.pauses.Active(ctx)
	if err != nil {
		// Trading on a possibly paused leg is the lesser risk here; the
		// pre-trade checks re-validate everything anyway.
		t.logger.Warn("pause listing failed", slog.String("error", err.Error()))
		paused = map[domain.LegKey]struct{}{}
	}

	seen := make(map[domain.LegKey]struct{})
	launched := 0

	g, gctx := errgroup.WithContext(ctx)
	for i := range paths {
		if launched >= t.maxConcurrent {
			break
		}
		p := &paths[i]

		if p.Status.Terminal() {
			continue
		}
		// Claim the legs before any other skip: a path that cannot run this
		// round must still keep conflicting newer paths off its books.
		if engine.Clash(p, seen) {
			continue
		}
		// Still marked executing means a previous, delayed round owns it.
		if p.Executing {
			continue
		}
		if key, isPaused := engine.Paused(p, paused); isPaused {
			t.logger.Debug("path leg paused",
				slog.String("path", p.ID),
				slog.String("key", key.String()),
			)
			continue
		}

		launched++
		g.Go(func() error {
			if err := t.runner.Run(gctx, p); err != nil {
				return err
			}
			if p.Status == domain.StatusUnrecoverable && t.alerter != nil {
				if err := t.alerter.PathUnrecoverable(gctx, p); err != nil {
					t.logger.Error("unrecoverable alert failed",
						slog.String("path", p.ID),
						slog.String("error", err.Error()),
					)
				}
			}
			return nil
		})
	}

	if launched > 0 {
		t.logger.Info("scheduling round", slog.Int("running", launched), slog.Int("stored", len(paths)))
	}
	return g.Wait()
}
