package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
	"storeops/backend/internal/xid"
)

func validSaleTime(t string) bool {
	if t == "" {
		return true
	}
	_, err := time.Parse("15:04", t)
	return err == nil
}

// CreateSale records one point-of-sale entry. The total is always derived
// from the per-method amounts; a caller-supplied total is ignored.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest) (*domain.SaleRecord, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if !validSaleTime(req.Time) {
		return nil, store.ErrValidation
	}
	for _, amount := range []decimal.Decimal{req.CashAmount, req.UPIAmount, req.CardAmount, req.BookingAmount} {
		if amount.IsNegative() {
			return nil, store.ErrValidation
		}
	}
	if req.CustomerCount < 0 {
		return nil, store.ErrValidation
	}

	st, err := s.requireStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	sale, err := s.repo.CreateSale(ctx, domain.SaleRecord{
		ID:            xid.New("sale"),
		StoreID:       st.ID,
		Date:          date,
		Time:          req.Time,
		CashAmount:    req.CashAmount,
		UPIAmount:     req.UPIAmount,
		CardAmount:    req.CardAmount,
		BookingAmount: req.BookingAmount,
		TotalAmount:   sumSaleAmounts(req.CashAmount, req.UPIAmount, req.CardAmount, req.BookingAmount),
		CustomerCount: req.CustomerCount,
		Notes:         req.Notes,
		CreatedAt:     s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create sale store=%s date=%s: %w", st.ID, date, err)
	}

	s.logAudit(ctx, st.ID, "sale_create", "sale", sale.ID, fmt.Sprintf("date=%s,total=%s", date, sale.TotalAmount))
	return sale, nil
}

// UpdateSale patches a sale. Only fields present in the request change, and
// the total is re-derived after the patch.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (*domain.SaleRecord, error) {
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.CashAmount != nil {
		sale.CashAmount = *req.CashAmount
	}
	if req.UPIAmount != nil {
		sale.UPIAmount = *req.UPIAmount
	}
	if req.CardAmount != nil {
		sale.CardAmount = *req.CardAmount
	}
	if req.BookingAmount != nil {
		sale.BookingAmount = *req.BookingAmount
	}
	for _, amount := range []decimal.Decimal{sale.CashAmount, sale.UPIAmount, sale.CardAmount, sale.BookingAmount} {
		if amount.IsNegative() {
			return nil, store.ErrValidation
		}
	}
	if req.CustomerCount != nil {
		if *req.CustomerCount < 0 {
			return nil, store.ErrValidation
		}
		sale.CustomerCount = *req.CustomerCount
	}
	if req.Notes != nil {
		sale.Notes = *req.Notes
	}
	sale.TotalAmount = sumSaleAmounts(sale.CashAmount, sale.UPIAmount, sale.CardAmount, sale.BookingAmount)

	updated, err := s.repo.UpdateSale(ctx, *sale)
	if err != nil {
		return nil, fmt.Errorf("update sale id=%s: %w", id, err)
	}

	s.logAudit(ctx, updated.StoreID, "sale_update", "sale", updated.ID, "total="+updated.TotalAmount.String())
	return updated, nil
}

func (s *Service) ListSales(ctx context.Context, storeID, from, to string) ([]domain.SaleRecord, error) {
	fromDate, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := parseDate(to)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, storeID, fromDate, toDate)
}

func sumSaleAmounts(cash, upi, card, booking decimal.Decimal) decimal.Decimal {
	return cash.Add(upi).Add(card).Add(booking)
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.ExpenseRecord, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Category) == "" || req.Amount.IsNegative() {
		return nil, store.ErrValidation
	}

	st, err := s.requireStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	expense, err := s.repo.CreateExpense(ctx, domain.ExpenseRecord{
		ID:        xid.New("exp"),
		StoreID:   st.ID,
		Date:      date,
		Category:  req.Category,
		Amount:    req.Amount,
		PaidVia:   req.PaidVia,
		Notes:     req.Notes,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create expense store=%s date=%s: %w", st.ID, date, err)
	}

	s.logAudit(ctx, st.ID, "expense_create", "expense", expense.ID,
		fmt.Sprintf("date=%s,category=%s,amount=%s", date, req.Category, req.Amount))
	return expense, nil
}

func (s *Service) ListExpenses(ctx context.Context, storeID, from, to string) ([]domain.ExpenseRecord, error) {
	fromDate, err := parseDate(from)
	if err != nil {
		return nil, err
	}
	toDate, err := parseDate(to)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, storeID, fromDate, toDate)
}

func (s *Service) CreateProblem(ctx context.Context, req domain.ProblemCreateRequest) (*domain.ProblemReport, error) {
	if strings.TrimSpace(req.Equipment) == "" || strings.TrimSpace(req.Description) == "" {
		return nil, store.ErrValidation
	}
	severity := req.Severity
	switch severity {
	case "":
		severity = domain.ProblemSeverityMedium
	case domain.ProblemSeverityLow, domain.ProblemSeverityMedium, domain.ProblemSeverityHigh:
	default:
		return nil, store.ErrValidation
	}

	st, err := s.requireStore(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}

	actor, _ := ActorFromContext(ctx)
	now := s.now()
	problem, err := s.repo.CreateProblem(ctx, domain.ProblemReport{
		ID:          xid.New("prob"),
		StoreID:     st.ID,
		Equipment:   req.Equipment,
		Description: req.Description,
		Severity:    severity,
		Status:      domain.ProblemStatusOpen,
		ReportedBy:  actor.Username,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return nil, fmt.Errorf("create problem store=%s: %w", st.ID, err)
	}

	s.logAudit(ctx, st.ID, "problem_create", "problem", problem.ID,
		fmt.Sprintf("equipment=%s,severity=%s", req.Equipment, severity))
	return problem, nil
}

func (s *Service) ListProblems(ctx context.Context, storeID, status string) ([]domain.ProblemReport, error) {
	if status != "" && !domain.ValidProblemStatus(status) {
		return nil, store.ErrValidation
	}
	return s.repo.ListProblems(ctx, storeID, status)
}

func (s *Service) UpdateProblemStatus(ctx context.Context, id string, status string) (*domain.ProblemReport, error) {
	if !domain.ValidProblemStatus(status) {
		return nil, store.ErrValidation
	}

	problem, err := s.repo.UpdateProblemStatus(ctx, id, status, s.now())
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, problem.StoreID, "problem_status", "problem", problem.ID, "status="+status)
	return problem, nil
}

// DailyReport composes one store's day from the ledger: sales totals by
// method, expense total, open problem count and the register status.
func (s *Service) DailyReport(ctx context.Context, storeID string, rawDate string) (*domain.DailyReport, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return nil, err
	}
	st, err := s.requireStore(ctx, storeID)
	if err != nil {
		return nil, err
	}

	sales, err := s.repo.ListSales(ctx, st.ID, date, date)
	if err != nil {
		return nil, fmt.Errorf("daily report store=%s date=%s: %w", st.ID, date, err)
	}

	report := &domain.DailyReport{StoreID: st.ID, Date: date, SaleCount: len(sales)}
	for _, sale := range sales {
		report.CustomerCount += sale.CustomerCount
		report.CashTotal = report.CashTotal.Add(sale.CashAmount)
		report.UPITotal = report.UPITotal.Add(sale.UPIAmount)
		report.CardTotal = report.CardTotal.Add(sale.CardAmount)
		report.BookingTotal = report.BookingTotal.Add(sale.BookingAmount)
		report.SalesTotal = report.SalesTotal.Add(sale.TotalAmount)
	}

	report.ExpenseTotal, err = s.repo.SumExpenses(ctx, st.ID, date)
	if err != nil {
		return nil, fmt.Errorf("daily report store=%s date=%s: sum expenses: %w", st.ID, date, err)
	}
	report.OpenProblems, err = s.repo.CountOpenProblems(ctx, st.ID)
	if err != nil {
		return nil, fmt.Errorf("daily report store=%s date=%s: count problems: %w", st.ID, date, err)
	}

	status, err := s.registerStatusFor(ctx, *st, date)
	if err != nil {
		return nil, err
	}
	report.Register = &status

	return report, nil
}

func (s *Service) CreateStore(ctx context.Context, req domain.StoreCreateRequest) (*domain.Store, error) {
	if strings.TrimSpace(req.Name) == "" || !domain.ValidStoreType(req.Type) {
		return nil, store.ErrValidation
	}

	created, err := s.repo.CreateStore(ctx, domain.Store{
		ID:        xid.New(req.Type),
		Name:      req.Name,
		Type:      req.Type,
		Active:    true,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("create store name=%q: %w", req.Name, err)
	}

	s.logAudit(ctx, created.ID, "store_create", "store", created.ID, "type="+created.Type)
	return created, nil
}

func (s *Service) ListStores(ctx context.Context) ([]domain.Store, error) {
	return s.repo.ListStores(ctx)
}

// ListStaff is the credential-free view of accounts for admin screens.
func (s *Service) ListStaff(ctx context.Context) ([]domain.StaffUser, error) {
	accounts, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	staff := make([]domain.StaffUser, 0, len(accounts))
	for _, account := range accounts {
		staff = append(staff, domain.StaffUser{
			Username:  account.Username,
			Role:      account.Role,
			StoreID:   account.StoreID,
			Active:    account.Active,
			CreatedAt: account.CreatedAt,
		})
	}
	return staff, nil
}
