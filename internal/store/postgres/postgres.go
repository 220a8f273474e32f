package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
	"storeops/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateStore(ctx context.Context, st domain.Store) (*domain.Store, error) {
	if strings.TrimSpace(st.ID) == "" || strings.TrimSpace(st.Name) == "" || !domain.ValidStoreType(st.Type) {
		return nil, store.ErrValidation
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stores (id, name, type, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, st.ID, st.Name, st.Type, st.Active, st.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := st
	return &saved, nil
}

func (s *Store) GetStore(ctx context.Context, id string) (*domain.Store, error) {
	var st domain.Store
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, active, created_at
		FROM stores
		WHERE id = $1
	`, id).Scan(&st.ID, &st.Name, &st.Type, &st.Active, &st.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return &st, nil
}

func (s *Store) ListStores(ctx context.Context) ([]domain.Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, active, created_at
		FROM stores
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]domain.Store, 0, 8)
	for rows.Next() {
		var st domain.Store
		if err := rows.Scan(&st.ID, &st.Name, &st.Type, &st.Active, &st.CreatedAt); err != nil {
			return nil, err
		}
		st.CreatedAt = st.CreatedAt.UTC()
		stores = append(stores, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stores, nil
}

const registerColumns = `id, store_id, entry_date, opening_balance, closing_balance,
	expected_cash, variance, cash_sales, notes, opened_at, closed_at`

func scanRegister(row interface {
	Scan(dest ...any) error
}) (*domain.CashRegisterEntry, error) {
	var entry domain.CashRegisterEntry
	var entryDate time.Time
	var closing, expected, variance, cashSales decimal.NullDecimal
	var notes sql.NullString
	var closedAt sql.NullTime

	err := row.Scan(
		&entry.ID,
		&entry.StoreID,
		&entryDate,
		&entry.OpeningBalance,
		&closing,
		&expected,
		&variance,
		&cashSales,
		&notes,
		&entry.OpenedAt,
		&closedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Date = entryDate.Format(domain.DateLayout)
	entry.OpenedAt = entry.OpenedAt.UTC()
	if closing.Valid {
		entry.ClosingBalance = &closing.Decimal
	}
	if expected.Valid {
		entry.ExpectedCash = &expected.Decimal
	}
	if variance.Valid {
		entry.Variance = &variance.Decimal
	}
	if cashSales.Valid {
		entry.CashSales = &cashSales.Decimal
	}
	if notes.Valid {
		entry.Notes = notes.String
	}
	if closedAt.Valid {
		at := closedAt.Time.UTC()
		entry.ClosedAt = &at
	}
	return &entry, nil
}

func (s *Store) CreateRegisterEntry(ctx context.Context, entry domain.CashRegisterEntry) (*domain.CashRegisterEntry, error) {
	if entry.StoreID == "" || entry.Date == "" {
		return nil, store.ErrValidation
	}
	if entry.ID == "" {
		entry.ID = xid.New("reg")
	}
	if entry.OpenedAt.IsZero() {
		entry.OpenedAt = time.Now().UTC()
	}

	// Unique (store_id, entry_date) keeps at most one row per store and day.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_registers (id, store_id, entry_date, opening_balance, notes, opened_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.StoreID, entry.Date, entry.OpeningBalance, entry.Notes, entry.OpenedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := entry
	return &saved, nil
}

func (s *Store) GetRegisterEntry(ctx context.Context, storeID string, date string) (*domain.CashRegisterEntry, error) {
	entry, err := scanRegister(s.db.QueryRowContext(ctx, `
		SELECT `+registerColumns+`
		FROM cash_registers
		WHERE store_id = $1 AND entry_date = $2
	`, storeID, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *Store) UpdateRegisterOpening(ctx context.Context, storeID string, date string, opening decimal.Decimal, appendNotes string) (*domain.CashRegisterEntry, error) {
	entry, err := scanRegister(s.db.QueryRowContext(ctx, `
		UPDATE cash_registers
		SET opening_balance = $3,
			notes = CASE
				WHEN $4 = '' THEN notes
				WHEN notes IS NULL OR notes = '' THEN $4
				ELSE notes || ' | ' || $4
			END
		WHERE store_id = $1 AND entry_date = $2
		RETURNING `+registerColumns+`
	`, storeID, date, opening, strings.TrimSpace(appendNotes)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

func (s *Store) CloseRegisterEntry(ctx context.Context, storeID string, date string, closing, expected, variance, cashSales decimal.Decimal, appendNotes string, closedAt time.Time) (*domain.CashRegisterEntry, error) {
	if closedAt.IsZero() {
		closedAt = time.Now().UTC()
	}

	// The closing_balance IS NULL guard makes this a single conditional
	// statement: under two concurrent closes only one row update succeeds.
	entry, err := scanRegister(s.db.QueryRowContext(ctx, `
		UPDATE cash_registers
		SET closing_balance = $3, expected_cash = $4, variance = $5, cash_sales = $6,
			notes = CASE
				WHEN $7 = '' THEN notes
				WHEN notes IS NULL OR notes = '' THEN $7
				ELSE notes || ' | ' || $7
			END,
			closed_at = $8
		WHERE store_id = $1 AND entry_date = $2 AND closing_balance IS NULL
		RETURNING `+registerColumns+`
	`, storeID, date, closing, expected, variance, cashSales, strings.TrimSpace(appendNotes), closedAt))
	if err == nil {
		return entry, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// Distinguish "never opened" from "already closed".
	existing, getErr := s.GetRegisterEntry(ctx, storeID, date)
	if getErr != nil {
		return nil, store.ErrNotFound
	}
	if existing.Closed() {
		return nil, store.ErrConflict
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListRegisterEntries(ctx context.Context, storeID string, from string, to string) ([]domain.CashRegisterEntry, error) {
	query := `
		SELECT ` + registerColumns + `
		FROM cash_registers
		WHERE entry_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if storeID != "" {
		query += ` AND store_id = $3`
		args = append(args, storeID)
	}
	query += ` ORDER BY entry_date, store_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CashRegisterEntry, 0, 32)
	for rows.Next() {
		entry, err := scanRegister(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

const saleColumns = `id, store_id, sale_date, sale_time, cash_amount, upi_amount,
	card_amount, booking_amount, total_amount, customer_count, notes, created_at`

func scanSale(row interface {
	Scan(dest ...any) error
}) (*domain.SaleRecord, error) {
	var sale domain.SaleRecord
	var saleDate time.Time
	var saleTime, notes sql.NullString

	err := row.Scan(
		&sale.ID,
		&sale.StoreID,
		&saleDate,
		&saleTime,
		&sale.CashAmount,
		&sale.UPIAmount,
		&sale.CardAmount,
		&sale.BookingAmount,
		&sale.TotalAmount,
		&sale.CustomerCount,
		&notes,
		&sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	sale.Date = saleDate.Format(domain.DateLayout)
	sale.CreatedAt = sale.CreatedAt.UTC()
	if saleTime.Valid {
		sale.Time = saleTime.String
	}
	if notes.Valid {
		sale.Notes = notes.String
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.StoreID == "" || sale.Date == "" {
		return nil, store.ErrValidation
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sales (id, store_id, sale_date, sale_time, cash_amount, upi_amount,
			card_amount, booking_amount, total_amount, customer_count, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`, sale.ID, sale.StoreID, sale.Date, sale.Time, sale.CashAmount, sale.UPIAmount,
		sale.CardAmount, sale.BookingAmount, sale.TotalAmount, sale.CustomerCount, sale.Notes, sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	saved := sale
	return &saved, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.SaleRecord, error) {
	sale, err := scanSale(s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sales
		SET cash_amount = $2, upi_amount = $3, card_amount = $4, booking_amount = $5,
			total_amount = $6, customer_count = $7, notes = $8
		WHERE id = $1
	`, sale.ID, sale.CashAmount, sale.UPIAmount, sale.CardAmount, sale.BookingAmount,
		sale.TotalAmount, sale.CustomerCount, sale.Notes)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	saved := sale
	return &saved, nil
}

func (s *Store) ListSales(ctx context.Context, storeID string, from string, to string) ([]domain.SaleRecord, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE sale_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if storeID != "" {
		query += ` AND store_id = $3`
		args = append(args, storeID)
	}
	query += ` ORDER BY sale_date, sale_time, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.SaleRecord, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) SumCashSales(ctx context.Context, storeID string, date string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(cash_amount), 0)
		FROM sales
		WHERE sale_date = $1`
	args := []any{date}
	if storeID != "" {
		query += ` AND store_id = $2`
		args = append(args, storeID)
	}

	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.ExpenseRecord) (*domain.ExpenseRecord, error) {
	if expense.StoreID == "" || expense.Date == "" {
		return nil, store.ErrValidation
	}
	if expense.ID == "" {
		expense.ID = xid.New("exp")
	}
	if expense.CreatedAt.IsZero() {
		expense.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, store_id, expense_date, category, amount, paid_via, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, expense.ID, expense.StoreID, expense.Date, expense.Category, expense.Amount,
		expense.PaidVia, expense.Notes, expense.CreatedAt)
	if err != nil {
		return nil, err
	}
	saved := expense
	return &saved, nil
}

func (s *Store) ListExpenses(ctx context.Context, storeID string, from string, to string) ([]domain.ExpenseRecord, error) {
	query := `
		SELECT id, store_id, expense_date, category, amount, paid_via, notes, created_at
		FROM expenses
		WHERE expense_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if storeID != "" {
		query += ` AND store_id = $3`
		args = append(args, storeID)
	}
	query += ` ORDER BY expense_date, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := make([]domain.ExpenseRecord, 0, 32)
	for rows.Next() {
		var expense domain.ExpenseRecord
		var expenseDate time.Time
		var notes sql.NullString
		if err := rows.Scan(&expense.ID, &expense.StoreID, &expenseDate, &expense.Category,
			&expense.Amount, &expense.PaidVia, &notes, &expense.CreatedAt); err != nil {
			return nil, err
		}
		expense.Date = expenseDate.Format(domain.DateLayout)
		expense.CreatedAt = expense.CreatedAt.UTC()
		if notes.Valid {
			expense.Notes = notes.String
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) SumExpenses(ctx context.Context, storeID string, date string) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM expenses
		WHERE expense_date = $1`
	args := []any{date}
	if storeID != "" {
		query += ` AND store_id = $2`
		args = append(args, storeID)
	}

	var sum decimal.Decimal
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum); err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

const attendanceColumns = `id, username, store_id, work_date, login_at, login_lat, login_lng,
	logout_at, logout_lat, logout_lng, duration_minutes`

func scanAttendance(row interface {
	Scan(dest ...any) error
}) (*domain.AttendanceRecord, error) {
	var rec domain.AttendanceRecord
	var workDate time.Time
	var logoutAt sql.NullTime
	var logoutLat, logoutLng sql.NullFloat64
	var duration sql.NullInt64

	err := row.Scan(
		&rec.ID,
		&rec.Username,
		&rec.StoreID,
		&workDate,
		&rec.LoginAt,
		&rec.LoginLat,
		&rec.LoginLng,
		&logoutAt,
		&logoutLat,
		&logoutLng,
		&duration,
	)
	if err != nil {
		return nil, err
	}

	rec.Date = workDate.Format(domain.DateLayout)
	rec.LoginAt = rec.LoginAt.UTC()
	if logoutAt.Valid {
		at := logoutAt.Time.UTC()
		rec.LogoutAt = &at
	}
	if logoutLat.Valid {
		rec.LogoutLat = &logoutLat.Float64
	}
	if logoutLng.Valid {
		rec.LogoutLng = &logoutLng.Float64
	}
	if duration.Valid {
		minutes := int(duration.Int64)
		rec.DurationMinutes = &minutes
	}
	return &rec, nil
}

func (s *Store) CreateAttendance(ctx context.Context, rec domain.AttendanceRecord) (*domain.AttendanceRecord, error) {
	if rec.Username == "" || rec.StoreID == "" || rec.Date == "" || rec.LoginAt.IsZero() {
		return nil, store.ErrValidation
	}
	if rec.ID == "" {
		rec.ID = xid.New("att")
	}

	// Partial unique index on (username, work_date) WHERE logout_at IS NULL
	// rejects a second open record for the same user and day.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attendance (id, username, store_id, work_date, login_at, login_lat, login_lng)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.Username, rec.StoreID, rec.Date, rec.LoginAt, rec.LoginLat, rec.LoginLng)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	saved := rec
	return &saved, nil
}

func (s *Store) GetOpenAttendance(ctx context.Context, username string, date string) (*domain.AttendanceRecord, error) {
	rec, err := scanAttendance(s.db.QueryRowContext(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE username = $1 AND work_date = $2 AND logout_at IS NULL
	`, username, date))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) CloseAttendance(ctx context.Context, username string, date string, logoutAt time.Time, lat, lng float64, durationMinutes int) (*domain.AttendanceRecord, error) {
	// Conditional on logout_at IS NULL: a record is closed at most once.
	rec, err := scanAttendance(s.db.QueryRowContext(ctx, `
		UPDATE attendance
		SET logout_at = $3, logout_lat = $4, logout_lng = $5, duration_minutes = $6
		WHERE username = $1 AND work_date = $2 AND logout_at IS NULL
		RETURNING `+attendanceColumns+`
	`, username, date, logoutAt, lat, lng, durationMinutes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *Store) ListAttendance(ctx context.Context, storeID string, username string, from string, to string) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT ` + attendanceColumns + `
		FROM attendance
		WHERE work_date BETWEEN $1 AND $2`
	args := []any{from, to}
	if storeID != "" {
		args = append(args, storeID)
		query += ` AND store_id = $` + itoa(len(args))
	}
	if username != "" {
		args = append(args, username)
		query += ` AND username = $` + itoa(len(args))
	}
	query += ` ORDER BY work_date, username`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.AttendanceRecord, 0, 64)
	for rows.Next() {
		rec, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) CreateProblem(ctx context.Context, problem domain.ProblemReport) (*domain.ProblemReport, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO problem_reports (id, store_id, equipment, description, severity, status,
			reported_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, problem.ID, problem.StoreID, problem.Equipment, problem.Description, problem.Severity,
		problem.Status, problem.ReportedBy, problem.CreatedAt, problem.UpdatedAt)
	if err != nil {
		return nil, err
	}
	saved := problem
	return &saved, nil
}

func (s *Store) ListProblems(ctx context.Context, storeID string, status string) ([]domain.ProblemReport, error) {
	query := `
		SELECT id, store_id, equipment, description, severity, status, reported_by, created_at, updated_at
		FROM problem_reports
		WHERE 1=1`
	args := []any{}
	if storeID != "" {
		args = append(args, storeID)
		query += ` AND store_id = $` + itoa(len(args))
	}
	if status != "" {
		args = append(args, status)
		query += ` AND status = $` + itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	problems := make([]domain.ProblemReport, 0, 32)
	for rows.Next() {
		var p domain.ProblemReport
		if err := rows.Scan(&p.ID, &p.StoreID, &p.Equipment, &p.Description, &p.Severity,
			&p.Status, &p.ReportedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt = p.CreatedAt.UTC()
		p.UpdatedAt = p.UpdatedAt.UTC()
		problems = append(problems, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return problems, nil
}

func (s *Store) UpdateProblemStatus(ctx context.Context, id string, status string, at time.Time) (*domain.ProblemReport, error) {
	var p domain.ProblemReport
	err := s.db.QueryRowContext(ctx, `
		UPDATE problem_reports
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING id, store_id, equipment, description, severity, status, reported_by, created_at, updated_at
	`, id, status, at.UTC()).Scan(&p.ID, &p.StoreID, &p.Equipment, &p.Description, &p.Severity,
		&p.Status, &p.ReportedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (s *Store) CountOpenProblems(ctx context.Context, storeID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM problem_reports
		WHERE status <> 'resolved'`
	args := []any{}
	if storeID != "" {
		args = append(args, storeID)
		query += ` AND store_id = $1`
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" || !user.Role.Valid() {
		return store.ErrValidation
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, store_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, user.Username, user.Password, string(user.Role), user.StoreID, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, store_id, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		var role string
		var storeID sql.NullString
		if err := rows.Scan(&user.Username, &user.Password, &role, &storeID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.Role = domain.Role(role)
		if storeID.Valid {
			user.StoreID = storeID.String
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.StoreID, entry.ActorUsername, string(entry.ActorRole), entry.Action,
		entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, storeID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	query := `
		SELECT id, store_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE 1=1`
	args := []any{}
	if storeID != "" {
		args = append(args, storeID)
		query += ` AND store_id = $` + itoa(len(args))
	}
	if !from.IsZero() {
		args = append(args, from)
		query += ` AND created_at >= $` + itoa(len(args))
	}
	if !to.IsZero() {
		args = append(args, to)
		query += ` AND created_at <= $` + itoa(len(args))
	}
	args = append(args, limit)
	query += ` ORDER BY created_at DESC LIMIT $` + itoa(len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		var role string
		if err := rows.Scan(&entry.ID, &entry.StoreID, &entry.ActorUsername, &role, &entry.Action,
			&entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.ActorRole = domain.Role(role)
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
