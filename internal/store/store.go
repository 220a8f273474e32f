package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"storeops/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("invalid input")
	ErrConflict   = errors.New("conflict")
)

// Repository is the transactional ledger behind the engines. Implementations
// must make CloseRegisterEntry and CloseAttendance single conditional
// statements so at most one close succeeds per key under concurrent calls.
type Repository interface {
	CreateStore(ctx context.Context, s domain.Store) (*domain.Store, error)
	GetStore(ctx context.Context, id string) (*domain.Store, error)
	ListStores(ctx context.Context) ([]domain.Store, error)

	// CreateRegisterEntry returns ErrConflict when an entry already exists
	// for (store, date); the caller decides whether that is an update or a
	// rejection.
	CreateRegisterEntry(ctx context.Context, entry domain.CashRegisterEntry) (*domain.CashRegisterEntry, error)
	GetRegisterEntry(ctx context.Context, storeID string, date string) (*domain.CashRegisterEntry, error)
	UpdateRegisterOpening(ctx context.Context, storeID string, date string, opening decimal.Decimal, appendNotes string) (*domain.CashRegisterEntry, error)
	// CloseRegisterEntry is conditional on the closing balance still being
	// null: ErrNotFound when no row exists, ErrConflict when already closed.
	CloseRegisterEntry(ctx context.Context, storeID string, date string, closing, expected, variance, cashSales decimal.Decimal, appendNotes string, closedAt time.Time) (*domain.CashRegisterEntry, error)
	ListRegisterEntries(ctx context.Context, storeID string, from string, to string) ([]domain.CashRegisterEntry, error)

	CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	GetSale(ctx context.Context, id string) (*domain.SaleRecord, error)
	UpdateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error)
	ListSales(ctx context.Context, storeID string, from string, to string) ([]domain.SaleRecord, error)
	// SumCashSales totals the cash-method amounts for a date; storeID "" sums
	// across every store (shared-till scope).
	SumCashSales(ctx context.Context, storeID string, date string) (decimal.Decimal, error)

	CreateExpense(ctx context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error)
	ListExpenses(ctx context.Context, storeID string, from string, to string) ([]domain.ExpenseRecord, error)
	SumExpenses(ctx context.Context, storeID string, date string) (decimal.Decimal, error)

	// CreateAttendance returns ErrConflict when an open record already
	// exists for (user, date).
	CreateAttendance(ctx context.Context, rec domain.AttendanceRecord) (*domain.AttendanceRecord, error)
	GetOpenAttendance(ctx context.Context, username string, date string) (*domain.AttendanceRecord, error)
	// CloseAttendance is conditional on the logout still being null:
	// ErrNotFound when there is no open record for (user, date).
	CloseAttendance(ctx context.Context, username string, date string, logoutAt time.Time, lat, lng float64, durationMinutes int) (*domain.AttendanceRecord, error)
	ListAttendance(ctx context.Context, storeID string, username string, from string, to string) ([]domain.AttendanceRecord, error)

	CreateProblem(ctx context.Context, problem domain.ProblemReport) (*domain.ProblemReport, error)
	ListProblems(ctx context.Context, storeID string, status string) ([]domain.ProblemReport, error)
	UpdateProblemStatus(ctx context.Context, id string, status string, at time.Time) (*domain.ProblemReport, error)
	CountOpenProblems(ctx context.Context, storeID string) (int, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
