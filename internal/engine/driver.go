package engine

import (
	"context"
	"log/slog"

	"github.com/pmoerman/quadbot/internal/domain"
)

// Driver runs one path from whatever state it is in to a terminal state,
// persisting after every transition so a crash can never lose a placed
// order's context.
type Driver struct {
	conv   *Converger
	exec   *Executor
	store  domain.PathStore
	logger *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(conv *Converger, exec *Executor, store domain.PathStore, logger *slog.Logger) *Driver {
	return &Driver{
		conv:   conv,
		exec:   exec,
		store:  store,
		logger: logger.With(slog.String("component", "driver")),
	}
}

// Run owns the path until it reaches a terminal state or the context is
// cancelled. The executing flag is persisted first so a concurrently running
// scheduler round will not hand the same path to a second driver.
func (d *Driver) Run(ctx context.Context, p *domain.Path) error {
	log := d.logger.With(slog.String("path", p.ID), slog.String("route", p.Route()))

	p.Executing = true
	if err := d.store.Update(ctx, *p); err != nil {
		p.Executing = false
		return err
	}
	defer func() {
		p.Executing = false
		if err := d.store.Update(context.WithoutCancel(ctx), *p); err != nil {
			log.Error("final path update failed", slog.String("error", err.Error()))
		}
	}()

	retries := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Status.Terminal() {
			log.Info("path finished", slog.String("status", string(p.Status)), slog.Float64("gain", p.Gain))
			return nil
		}

		switch p.Status {
		case domain.StatusBare:
			if err := d.conv.Investigate(ctx, p); err != nil {
				log.Warn("investigation failed", slog.String("error", err.Error()))
				p.Status = domain.StatusUnrecoverable
			}

		case domain.StatusProfitable:
			log.Info("starting execution", slog.Float64("gain", p.Gain))
			p.Status = domain.StatusStart

		case domain.StatusStart:
			p.Status = domain.StatusOrderPlace(1)

		default:
			phase, step := p.Status.StepPhase()
			switch phase {
			case domain.PhasePlace:
				d.exec.PlaceLimitOrder(ctx, p, step)

			case domain.PhaseUncertain:
				// Whether the order is located or not, placement is settled:
				// an order we cannot see again is either filled or never
				// existed, and balance verification decides which.
				d.exec.VerifyLimitOrder(ctx, p, step)
				p.Status = domain.StatusOrderPlaced(step)

			case domain.PhasePlaced:
				retries = 0
				p.Status = domain.StatusBalanceGood(step)

			case domain.PhaseBalance:
				d.exec.VerifyBalance(ctx, p, step, &retries)

			default:
				log.Error("unknown path status", slog.String("status", string(p.Status)))
				p.Status = domain.StatusUnrecoverable
			}
		}

		if err := d.store.Update(ctx, *p); err != nil {
			return err
		}
	}
}
