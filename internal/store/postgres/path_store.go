package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmoerman/quadbot/internal/domain"
)

// PathStore implements domain.PathStore using PostgreSQL. A path is one row
// in paths plus exactly four rows in path_legs, written together in one
// transaction so a path can never be observed with a partial set of legs.
type PathStore struct {
	pool *pgxpool.Pool
}

// NewPathStore creates a new PathStore.
func NewPathStore(pool *pgxpool.Pool) *PathStore {
	return &PathStore{pool: pool}
}

// Create inserts a path and its four legs.
func (s *PathStore) Create(ctx context.Context, p domain.Path) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO paths (id, exchange, gain, status, executing)
		VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Exchange, p.Gain, string(p.Status), p.Executing,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert path: %w", err)
	}

	for step := 1; step <= 4; step++ {
		leg := p.Leg(step)
		_, err = tx.Exec(ctx, `
			INSERT INTO path_legs (path_id, step, market, coin, market_quantity, coin_quantity, rate, order_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, step, leg.Market, leg.Coin, leg.MarketQuantity, leg.CoinQuantity, leg.Rate, nullable(leg.OrderID),
		)
		if err != nil {
			return fmt.Errorf("postgres: insert path leg %d: %w", step, err)
		}
	}

	return tx.Commit(ctx)
}

// Update rewrites a path and its legs. The driver calls this after every
// state transition.
func (s *PathStore) Update(ctx context.Context, p domain.Path) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE paths SET gain = $2, status = $3, executing = $4, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Gain, string(p.Status), p.Executing,
	)
	if err != nil {
		return fmt.Errorf("postgres: update path %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	for step := 1; step <= 4; step++ {
		leg := p.Leg(step)
		_, err = tx.Exec(ctx, `
			UPDATE path_legs SET market_quantity = $3, coin_quantity = $4, rate = $5, order_id = $6
			WHERE path_id = $1 AND step = $2`,
			p.ID, step, leg.MarketQuantity, leg.CoinQuantity, leg.Rate, nullable(leg.OrderID),
		)
		if err != nil {
			return fmt.Errorf("postgres: update path leg %d: %w", step, err)
		}
	}

	return tx.Commit(ctx)
}

// GetByID returns one path with its legs.
func (s *PathStore) GetByID(ctx context.Context, id string) (domain.Path, error) {
	var p domain.Path
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, exchange, gain, status, executing FROM paths WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Exchange, &p.Gain, &status, &p.Executing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Path{}, domain.ErrNotFound
		}
		return domain.Path{}, fmt.Errorf("postgres: get path %s: %w", id, err)
	}
	p.Status = domain.Status(status)

	if err := s.loadLegs(ctx, &p); err != nil {
		return domain.Path{}, err
	}
	return p, nil
}

// List returns all paths in insertion order, so older paths are driven to
// completion before newer ones get a slot.
func (s *PathStore) List(ctx context.Context) ([]domain.Path, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, exchange, gain, status, executing FROM paths
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list paths: %w", err)
	}
	defer rows.Close()

	var paths []domain.Path
	for rows.Next() {
		var p domain.Path
		var status string
		if err := rows.Scan(&p.ID, &p.Exchange, &p.Gain, &status, &p.Executing); err != nil {
			return nil, fmt.Errorf("postgres: scan path: %w", err)
		}
		p.Status = domain.Status(status)
		paths = append(paths, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list paths: %w", err)
	}

	for i := range paths {
		if err := s.loadLegs(ctx, &paths[i]); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// Delete removes a path; its legs go with it via the foreign key.
func (s *PathStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM paths WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete path %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Expire removes paths that will never trade: unprofitable, errored and
// never-started ones older than maxAge. Done paths are kept for the record
// and unrecoverable ones wait for an operator.
func (s *PathStore) Expire(ctx context.Context, maxAge time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM paths
		WHERE status = ANY($1) AND created_at < NOW() - $2::interval`,
		[]string{
			string(domain.StatusBare),
			string(domain.StatusProfitable),
			string(domain.StatusUnprofitable),
			string(domain.StatusError),
		},
		maxAge.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire paths: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PathStore) loadLegs(ctx context.Context, p *domain.Path) error {
	rows, err := s.pool.Query(ctx, `
		SELECT step, market, coin, market_quantity, coin_quantity, rate, order_id
		FROM path_legs WHERE path_id = $1 ORDER BY step`,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("postgres: get path legs %s: %w", p.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var step int
		var leg domain.Leg
		var orderID *string
		if err := rows.Scan(&step, &leg.Market, &leg.Coin, &leg.MarketQuantity, &leg.CoinQuantity, &leg.Rate, &orderID); err != nil {
			return fmt.Errorf("postgres: scan path leg: %w", err)
		}
		if orderID != nil {
			leg.OrderID = *orderID
		}
		if step >= 1 && step <= 4 {
			p.Legs[step-1] = leg
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("postgres: get path legs %s: %w", p.ID, err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ domain.PathStore = (*PathStore)(nil)
