package cache

import (
	"context"
	"time"

	"storeops/backend/internal/domain"
)

// MatrixCache holds computed attendance summary matrices. Invalidate drops
// every cached matrix; callers invoke it after any clock-in or clock-out.
type MatrixCache interface {
	Get(ctx context.Context, key string) (*domain.AttendanceMatrix, bool, error)
	Set(ctx context.Context, key string, value *domain.AttendanceMatrix, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopMatrixCache struct{}

func (NoopMatrixCache) Get(_ context.Context, _ string) (*domain.AttendanceMatrix, bool, error) {
	return nil, false, nil
}

func (NoopMatrixCache) Set(_ context.Context, _ string, _ *domain.AttendanceMatrix, _ time.Duration) error {
	return nil
}

func (NoopMatrixCache) Invalidate(_ context.Context) error {
	return nil
}
