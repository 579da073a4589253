package domain

import (
	"context"
	"time"
)

// PathStore persists paths across bot runs. Paths are listed in insertion
// order so that older paths are driven to completion before newer ones are
// picked up.
type PathStore interface {
	Create(ctx context.Context, p Path) error
	Update(ctx context.Context, p Path) error
	GetByID(ctx context.Context, id string) (Path, error)
	List(ctx context.Context) ([]Path, error)
	Delete(ctx context.Context, id string) error
	// Expire removes unprofitable and never-started paths older than maxAge
	// and returns how many were removed.
	Expire(ctx context.Context, maxAge time.Duration) (int, error)
}
