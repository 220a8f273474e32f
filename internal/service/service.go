package service

import (
	"context"
	"errors"
	"log"
	"time"

	"storeops/backend/internal/cache"
	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
)

// Engine-level failures, mapped by the HTTP layer onto the error taxonomy
// (conflict vs. not-found vs. validation).
var (
	ErrNotOpened        = errors.New("register not opened")
	ErrAlreadyClosed    = errors.New("register already closed")
	ErrAlreadyOpened    = errors.New("register already opened")
	ErrAlreadyClockedIn = errors.New("already clocked in today")
	ErrNoOpenSession    = errors.New("no open attendance session")
)

// Cash-sales scope for register close: per-store, or the shared-till policy
// that sums cash sales across every store.
const (
	CashScopeStore  = "store"
	CashScopeShared = "shared"
)

// Policy for a second Open on the same (store, date).
const (
	ReopenUpdate = "update"
	ReopenReject = "reject"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo         store.Repository
	matrices     cache.MatrixCache
	matrixTTL    time.Duration
	cashScope    string
	reopenPolicy string
	now          func() time.Time
}

type Options struct {
	// CashSalesScope picks the cash-sales sum used at close: CashScopeStore
	// (default) or CashScopeShared.
	CashSalesScope string
	// ReopenPolicy decides what a second Open for the same (store, date)
	// does: ReopenUpdate (default) or ReopenReject.
	ReopenPolicy string
	// MatrixTTL bounds how long a computed attendance matrix may be served
	// from cache.
	MatrixTTL time.Duration
	// Now is the injected clock; defaults to time.Now in UTC. Every derived
	// timestamp in the engines flows through it.
	Now func() time.Time
}

func New(repo store.Repository, matrices cache.MatrixCache, opts Options) *Service {
	if matrices == nil {
		matrices = cache.NoopMatrixCache{}
	}
	if opts.CashSalesScope != CashScopeShared {
		opts.CashSalesScope = CashScopeStore
	}
	if opts.ReopenPolicy != ReopenReject {
		opts.ReopenPolicy = ReopenUpdate
	}
	if opts.MatrixTTL <= 0 {
		opts.MatrixTTL = 60 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:         repo,
		matrices:     matrices,
		matrixTTL:    opts.MatrixTTL,
		cashScope:    opts.CashSalesScope,
		reopenPolicy: opts.ReopenPolicy,
		now:          opts.Now,
	}
}

// parseDate validates a YYYY-MM-DD string and returns its canonical form.
func parseDate(raw string) (string, error) {
	parsed, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return "", store.ErrValidation
	}
	return parsed.Format(domain.DateLayout), nil
}

func (s *Service) requireStore(ctx context.Context, storeID string) (*domain.Store, error) {
	if storeID == "" {
		return nil, store.ErrValidation
	}
	return s.repo.GetStore(ctx, storeID)
}

func (s *Service) logAudit(ctx context.Context, storeID, action, entityType, entityID, detail string) {
	actor, _ := ActorFromContext(ctx)
	err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		StoreID:       storeID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	})
	if err != nil {
		log.Printf("[service] WARN: failed to write audit log action=%s: %v", action, err)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, storeID string, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return s.repo.ListAuditLogs(ctx, storeID, from, to, limit)
}
