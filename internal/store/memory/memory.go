package memory

import (
	"context"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
	"storeops/backend/internal/xid"
)

// Store is an in-memory Repository used for tests and DATABASE_URL-less dev
// runs. A single mutex serializes every operation, which also gives the
// conditional close semantics the interface requires.
type Store struct {
	mu              sync.RWMutex
	stores          map[string]domain.Store
	registersByKey  map[string]domain.CashRegisterEntry
	salesByID       map[string]domain.SaleRecord
	expensesByID    map[string]domain.ExpenseRecord
	attendanceByID  map[string]domain.AttendanceRecord
	openAttendance  map[string]string
	problemsByID    map[string]domain.ProblemReport
	usersByUsername map[string]domain.UserAccount
	auditLogs       []domain.AuditLog
}

func registerKey(storeID, date string) string {
	return storeID + "|" + date
}

func attendanceKey(username, date string) string {
	return username + "|" + date
}

func New() *Store {
	return &Store{
		stores:          make(map[string]domain.Store),
		registersByKey:  make(map[string]domain.CashRegisterEntry),
		salesByID:       make(map[string]domain.SaleRecord),
		expensesByID:    make(map[string]domain.ExpenseRecord),
		attendanceByID:  make(map[string]domain.AttendanceRecord),
		openAttendance:  make(map[string]string),
		problemsByID:    make(map[string]domain.ProblemReport),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store pre-loaded with the chain's four locations and
// one account per role. Seed passwords come from SEED_*_PASSWORD environment
// variables, with dev defaults and a warning when unset.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	for _, st := range []domain.Store{
		{ID: "arcade-1", Name: "Arcade Zone", Type: domain.StoreTypeArcade, Active: true, CreatedAt: now},
		{ID: "dreamcube-1", Name: "Dreamcube", Type: domain.StoreTypeDreamcube, Active: true, CreatedAt: now},
		{ID: "toys-1", Name: "Toy Corner", Type: domain.StoreTypeToys, Active: true, CreatedAt: now},
		{ID: "booking-1", Name: "Booking Desk", Type: domain.StoreTypeBooking, Active: true, CreatedAt: now},
	} {
		s.stores[st.ID] = st
	}

	for username, account := range seedUsers() {
		s.usersByUsername[username] = account
	}

	return s
}

func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD, SEED_MANAGER_PASSWORD and SEED_STAFF_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     domain.Role
		storeID  string
	}{
		{"admin", adminPwd, domain.RoleAdmin, ""},
		{"manager", managerPwd, domain.RoleManager, "arcade-1"},
		{"staff", staffPwd, domain.RoleStaff, "arcade-1"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			StoreID:   u.storeID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (m *Store) CreateStore(_ context.Context, s domain.Store) (*domain.Store, error) {
	if strings.TrimSpace(s.ID) == "" || strings.TrimSpace(s.Name) == "" || !domain.ValidStoreType(s.Type) {
		return nil, store.ErrValidation
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.stores[s.ID]; exists {
		return nil, store.ErrConflict
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	m.stores[s.ID] = s
	saved := s
	return &saved, nil
}

func (m *Store) GetStore(_ context.Context, id string) (*domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := s
	return &found, nil
}

func (m *Store) ListStores(_ context.Context) ([]domain.Store, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.Store, 0, len(m.stores))
	for _, s := range m.stores {
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Store) CreateRegisterEntry(_ context.Context, entry domain.CashRegisterEntry) (*domain.CashRegisterEntry, error) {
	if entry.StoreID == "" || entry.Date == "" {
		return nil, store.ErrValidation
	}
	if entry.ID == "" {
		entry.ID = xid.New("reg")
	}
	if entry.OpenedAt.IsZero() {
		entry.OpenedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := registerKey(entry.StoreID, entry.Date)
	if _, exists := m.registersByKey[key]; exists {
		return nil, store.ErrConflict
	}
	m.registersByKey[key] = entry
	saved := entry
	return &saved, nil
}

func (m *Store) GetRegisterEntry(_ context.Context, storeID string, date string) (*domain.CashRegisterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.registersByKey[registerKey(storeID, date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := entry
	return &found, nil
}

func (m *Store) UpdateRegisterOpening(_ context.Context, storeID string, date string, opening decimal.Decimal, appendNotes string) (*domain.CashRegisterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := registerKey(storeID, date)
	entry, ok := m.registersByKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	entry.OpeningBalance = opening
	entry.Notes = joinNotes(entry.Notes, appendNotes)
	m.registersByKey[key] = entry
	saved := entry
	return &saved, nil
}

func (m *Store) CloseRegisterEntry(_ context.Context, storeID string, date string, closing, expected, variance, cashSales decimal.Decimal, appendNotes string, closedAt time.Time) (*domain.CashRegisterEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := registerKey(storeID, date)
	entry, ok := m.registersByKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	if entry.ClosingBalance != nil {
		return nil, store.ErrConflict
	}

	entry.ClosingBalance = &closing
	entry.ExpectedCash = &expected
	entry.Variance = &variance
	entry.CashSales = &cashSales
	entry.Notes = joinNotes(entry.Notes, appendNotes)
	at := closedAt.UTC()
	entry.ClosedAt = &at
	m.registersByKey[key] = entry
	saved := entry
	return &saved, nil
}

func (m *Store) ListRegisterEntries(_ context.Context, storeID string, from string, to string) ([]domain.CashRegisterEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.CashRegisterEntry, 0, 32)
	for _, entry := range m.registersByKey {
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if entry.Date < from || entry.Date > to {
			continue
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].StoreID < result[j].StoreID
	})
	return result, nil
}

func (m *Store) CreateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.StoreID == "" || sale.Date == "" {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.salesByID[sale.ID] = sale
	saved := sale
	return &saved, nil
}

func (m *Store) GetSale(_ context.Context, id string) (*domain.SaleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sale, ok := m.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	found := sale
	return &found, nil
}

func (m *Store) UpdateSale(_ context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.salesByID[sale.ID]; !ok {
		return nil, store.ErrNotFound
	}
	m.salesByID[sale.ID] = sale
	saved := sale
	return &saved, nil
}

func (m *Store) ListSales(_ context.Context, storeID string, from string, to string) ([]domain.SaleRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.SaleRecord, 0, 64)
	for _, sale := range m.salesByID {
		if storeID != "" && sale.StoreID != storeID {
			continue
		}
		if sale.Date < from || sale.Date > to {
			continue
		}
		result = append(result, sale)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].Time != result[j].Time {
			return result[i].Time < result[j].Time
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Store) SumCashSales(_ context.Context, storeID string, date string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, sale := range m.salesByID {
		if sale.Date != date {
			continue
		}
		if storeID != "" && sale.StoreID != storeID {
			continue
		}
		sum = sum.Add(sale.CashAmount)
	}
	return sum, nil
}

func (m *Store) CreateExpense(_ context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	if expense.StoreID == "" || expense.Date == "" {
		return nil, store.ErrValidation
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.expensesByID[expense.ID] = expense
	saved := expense
	return &saved, nil
}

func (m *Store) ListExpenses(_ context.Context, storeID string, from string, to string) ([]domain.ExpenseRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.ExpenseRecord, 0, 32)
	for _, expense := range m.expensesByID {
		if storeID != "" && expense.StoreID != storeID {
			continue
		}
		if expense.Date < from || expense.Date > to {
			continue
		}
		result = append(result, expense)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Store) SumExpenses(_ context.Context, storeID string, date string) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	for _, expense := range m.expensesByID {
		if expense.Date != date {
			continue
		}
		if storeID != "" && expense.StoreID != storeID {
			continue
		}
		sum = sum.Add(expense.Amount)
	}
	return sum, nil
}

func (m *Store) CreateAttendance(_ context.Context, rec domain.AttendanceRecord) (*domain.AttendanceRecord, error) {
	if rec.Username == "" || rec.StoreID == "" || rec.Date == "" || rec.LoginAt.IsZero() {
		return nil, store.ErrValidation
	}
	if rec.ID == "" {
		rec.ID = xid.New("att")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := attendanceKey(rec.Username, rec.Date)
	if _, exists := m.openAttendance[key]; exists {
		return nil, store.ErrConflict
	}
	rec.LogoutAt = nil
	rec.LogoutLat = nil
	rec.LogoutLng = nil
	rec.DurationMinutes = nil
	m.attendanceByID[rec.ID] = rec
	m.openAttendance[key] = rec.ID
	saved := rec
	return &saved, nil
}

func (m *Store) GetOpenAttendance(_ context.Context, username string, date string) (*domain.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.openAttendance[attendanceKey(username, date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	rec := m.attendanceByID[id]
	found := rec
	return &found, nil
}

func (m *Store) CloseAttendance(_ context.Context, username string, date string, logoutAt time.Time, lat, lng float64, durationMinutes int) (*domain.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := attendanceKey(username, date)
	id, ok := m.openAttendance[key]
	if !ok {
		return nil, store.ErrNotFound
	}

	rec := m.attendanceByID[id]
	at := logoutAt.UTC()
	rec.LogoutAt = &at
	rec.LogoutLat = &lat
	rec.LogoutLng = &lng
	rec.DurationMinutes = &durationMinutes
	m.attendanceByID[id] = rec
	delete(m.openAttendance, key)
	saved := rec
	return &saved, nil
}

func (m *Store) ListAttendance(_ context.Context, storeID string, username string, from string, to string) ([]domain.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.AttendanceRecord, 0, 64)
	for _, rec := range m.attendanceByID {
		if storeID != "" && rec.StoreID != storeID {
			continue
		}
		if username != "" && rec.Username != username {
			continue
		}
		if rec.Date < from || rec.Date > to {
			continue
		}
		result = append(result, rec)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].Username < result[j].Username
	})
	return result, nil
}

func (m *Store) CreateProblem(_ context.Context, problem domain.ProblemReport) (*domain.ProblemReport, error) {
	if problem.StoreID == "" || problem.Equipment == "" {
		return nil, store.ErrValidation
	}
	if problem.ID == "" {
		problem.ID = xid.New("prob")
	}
	now := time.Now().UTC()
	if problem.CreatedAt.IsZero() {
		problem.CreatedAt = now
	}
	if problem.UpdatedAt.IsZero() {
		problem.UpdatedAt = problem.CreatedAt
	}
	if problem.Status == "" {
		problem.Status = domain.ProblemStatusOpen
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.problemsByID[problem.ID] = problem
	saved := problem
	return &saved, nil
}

func (m *Store) ListProblems(_ context.Context, storeID string, status string) ([]domain.ProblemReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.ProblemReport, 0, 32)
	for _, problem := range m.problemsByID {
		if storeID != "" && problem.StoreID != storeID {
			continue
		}
		if status != "" && problem.Status != status {
			continue
		}
		result = append(result, problem)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *Store) UpdateProblemStatus(_ context.Context, id string, status string, at time.Time) (*domain.ProblemReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	problem, ok := m.problemsByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	problem.Status = status
	problem.UpdatedAt = at.UTC()
	m.problemsByID[id] = problem
	saved := problem
	return &saved, nil
}

func (m *Store) CountOpenProblems(_ context.Context, storeID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, problem := range m.problemsByID {
		if storeID != "" && problem.StoreID != storeID {
			continue
		}
		if problem.Status != domain.ProblemStatusResolved {
			count++
		}
	}
	return count, nil
}

func (m *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || !user.Role.Valid() {
		return store.ErrValidation
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.usersByUsername[user.Username]; exists {
		return store.ErrConflict
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	m.usersByUsername[user.Username] = user
	return nil
}

func (m *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.UserAccount, 0, len(m.usersByUsername))
	for _, user := range m.usersByUsername {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

func (m *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	m.usersByUsername[username] = user
	return nil
}

func (m *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.auditLogs = append(m.auditLogs, entry)
	return nil
}

func (m *Store) ListAuditLogs(_ context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.AuditLog, 0, limit)
	for i := len(m.auditLogs) - 1; i >= 0 && len(result) < limit; i-- {
		entry := m.auditLogs[i]
		if storeID != "" && entry.StoreID != storeID {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		result = append(result, entry)
	}
	return result, nil
}

func joinNotes(existing, extra string) string {
	extra = strings.TrimSpace(extra)
	if extra == "" {
		return existing
	}
	if existing == "" {
		return extra
	}
	return existing + " | " + extra
}
