package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
)

// cashSalesScopeID resolves the store filter used when summing cash sales:
// empty under the shared-till policy, the register's own store otherwise.
func (s *Service) cashSalesScopeID(storeID string) string {
	if s.cashScope == CashScopeShared {
		return ""
	}
	return storeID
}

// OpenRegister creates the day's register entry. When one already exists the
// reopen policy decides between updating it and rejecting the call; a reopen
// never produces a second row, and the response carries Reopened so the
// caller sees the conflict.
func (s *Service) OpenRegister(ctx context.Context, req domain.RegisterOpenRequest) (domain.RegisterOpenResponse, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.RegisterOpenResponse{}, err
	}
	if req.OpeningBalance.IsNegative() {
		return domain.RegisterOpenResponse{}, store.ErrValidation
	}

	st, err := s.requireStore(ctx, req.StoreID)
	if err != nil {
		return domain.RegisterOpenResponse{}, err
	}

	entry, err := s.repo.CreateRegisterEntry(ctx, domain.CashRegisterEntry{
		StoreID:        st.ID,
		Date:           date,
		OpeningBalance: req.OpeningBalance,
		Notes:          req.Notes,
		OpenedAt:       s.now(),
	})
	if err == nil {
		s.logAudit(ctx, st.ID, "register_open", "register", entry.ID, fmt.Sprintf("date=%s,opening=%s", date, req.OpeningBalance))
		return domain.RegisterOpenResponse{
			RegisterID:     entry.ID,
			StoreID:        st.ID,
			StoreName:      st.Name,
			Date:           date,
			OpeningBalance: entry.OpeningBalance,
		}, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return domain.RegisterOpenResponse{}, fmt.Errorf("open register store=%s date=%s: %w", st.ID, date, err)
	}

	if s.reopenPolicy == ReopenReject {
		return domain.RegisterOpenResponse{}, ErrAlreadyOpened
	}

	updated, err := s.repo.UpdateRegisterOpening(ctx, st.ID, date, req.OpeningBalance, req.Notes)
	if err != nil {
		return domain.RegisterOpenResponse{}, fmt.Errorf("reopen register store=%s date=%s: %w", st.ID, date, err)
	}

	s.logAudit(ctx, st.ID, "register_reopen", "register", updated.ID, fmt.Sprintf("date=%s,opening=%s", date, req.OpeningBalance))
	return domain.RegisterOpenResponse{
		RegisterID:     updated.ID,
		StoreID:        st.ID,
		StoreName:      st.Name,
		Date:           date,
		OpeningBalance: updated.OpeningBalance,
		Reopened:       true,
	}, nil
}

// CloseRegister reconciles the drawer: expected = opening + cash sales,
// variance = closing - expected, both exact decimals. The persisted close is
// conditional on the entry still being open, so two racing closes cannot
// both win.
func (s *Service) CloseRegister(ctx context.Context, req domain.RegisterCloseRequest) (domain.RegisterCloseResponse, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return domain.RegisterCloseResponse{}, err
	}
	if req.ClosingBalance.IsNegative() {
		return domain.RegisterCloseResponse{}, store.ErrValidation
	}

	st, err := s.requireStore(ctx, req.StoreID)
	if err != nil {
		return domain.RegisterCloseResponse{}, err
	}

	entry, err := s.repo.GetRegisterEntry(ctx, st.ID, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.RegisterCloseResponse{}, ErrNotOpened
		}
		return domain.RegisterCloseResponse{}, fmt.Errorf("close register store=%s date=%s: %w", st.ID, date, err)
	}
	if entry.Closed() {
		return domain.RegisterCloseResponse{}, ErrAlreadyClosed
	}

	cashSales, err := s.repo.SumCashSales(ctx, s.cashSalesScopeID(st.ID), date)
	if err != nil {
		return domain.RegisterCloseResponse{}, fmt.Errorf("close register store=%s date=%s: sum cash sales: %w", st.ID, date, err)
	}

	expected := entry.OpeningBalance.Add(cashSales)
	variance := req.ClosingBalance.Sub(expected)

	closed, err := s.repo.CloseRegisterEntry(ctx, st.ID, date, req.ClosingBalance, expected, variance, cashSales, req.Notes, s.now())
	if err != nil {
		switch {
		case errors.Is(err, store.ErrConflict):
			return domain.RegisterCloseResponse{}, ErrAlreadyClosed
		case errors.Is(err, store.ErrNotFound):
			return domain.RegisterCloseResponse{}, ErrNotOpened
		}
		return domain.RegisterCloseResponse{}, fmt.Errorf("close register store=%s date=%s: %w", st.ID, date, err)
	}

	s.logAudit(ctx, st.ID, "register_close", "register", closed.ID,
		fmt.Sprintf("date=%s,closing=%s,expected=%s,variance=%s", date, req.ClosingBalance, expected, variance))

	return domain.RegisterCloseResponse{
		StoreID:        st.ID,
		Date:           date,
		OpeningBalance: closed.OpeningBalance,
		ClosingBalance: req.ClosingBalance,
		CashSales:      cashSales,
		ExpectedCash:   expected,
		Variance:       variance,
	}, nil
}

// RegisterStatus reports each matching store's register for a date, with a
// live cash-sales sum so an open drawer's expected position can be previewed
// before closing. Read-only.
func (s *Service) RegisterStatus(ctx context.Context, storeID string, rawDate string) (domain.RegisterStatusResponse, error) {
	date, err := parseDate(rawDate)
	if err != nil {
		return domain.RegisterStatusResponse{}, err
	}

	var stores []domain.Store
	if storeID != "" {
		st, err := s.requireStore(ctx, storeID)
		if err != nil {
			return domain.RegisterStatusResponse{}, err
		}
		stores = []domain.Store{*st}
	} else {
		stores, err = s.repo.ListStores(ctx)
		if err != nil {
			return domain.RegisterStatusResponse{}, fmt.Errorf("register status date=%s: list stores: %w", date, err)
		}
	}

	statuses := make([]domain.RegisterStatus, 0, len(stores))
	for _, st := range stores {
		status, err := s.registerStatusFor(ctx, st, date)
		if err != nil {
			return domain.RegisterStatusResponse{}, err
		}
		statuses = append(statuses, status)
	}

	return domain.RegisterStatusResponse{Date: date, Registers: statuses}, nil
}

func (s *Service) registerStatusFor(ctx context.Context, st domain.Store, date string) (domain.RegisterStatus, error) {
	status := domain.RegisterStatus{
		StoreID:   st.ID,
		StoreName: st.Name,
		StoreType: st.Type,
		Date:      date,
	}

	liveSales, err := s.repo.SumCashSales(ctx, s.cashSalesScopeID(st.ID), date)
	if err != nil {
		return domain.RegisterStatus{}, fmt.Errorf("register status store=%s date=%s: sum cash sales: %w", st.ID, date, err)
	}
	status.LiveCashSales = liveSales
	status.LiveExpected = liveSales

	entry, err := s.repo.GetRegisterEntry(ctx, st.ID, date)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return status, nil
		}
		return domain.RegisterStatus{}, fmt.Errorf("register status store=%s date=%s: %w", st.ID, date, err)
	}

	status.Opened = true
	status.OpeningBalance = entry.OpeningBalance
	status.LiveExpected = entry.OpeningBalance.Add(liveSales)
	status.Notes = entry.Notes
	if entry.Closed() {
		status.Closed = true
		status.ClosingBalance = entry.ClosingBalance
		status.Variance = entry.Variance
	}
	return status, nil
}

// MonthlyRegisterSummary folds one month of register entries into per-store-
// type and overall aggregates. The fold is pure: all accumulation happens in
// value-typed buckets local to this call.
func (s *Service) MonthlyRegisterSummary(ctx context.Context, year int, month int, storeID string) (domain.MonthlyRegisterSummary, error) {
	if year < 2000 || year > 2200 || month < 1 || month > 12 {
		return domain.MonthlyRegisterSummary{}, store.ErrValidation
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	from := first.Format(domain.DateLayout)
	to := last.Format(domain.DateLayout)

	if storeID != "" {
		if _, err := s.requireStore(ctx, storeID); err != nil {
			return domain.MonthlyRegisterSummary{}, err
		}
	}

	entries, err := s.repo.ListRegisterEntries(ctx, storeID, from, to)
	if err != nil {
		return domain.MonthlyRegisterSummary{}, fmt.Errorf("monthly register summary %04d-%02d: %w", year, month, err)
	}

	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return domain.MonthlyRegisterSummary{}, fmt.Errorf("monthly register summary %04d-%02d: list stores: %w", year, month, err)
	}
	typeByStore := make(map[string]string, len(stores))
	for _, st := range stores {
		typeByStore[st.ID] = st.Type
	}

	byType := make(map[string]domain.RegisterAggregate)
	var overall domain.RegisterAggregate
	for _, entry := range entries {
		storeType := typeByStore[entry.StoreID]
		if storeType == "" {
			storeType = "unknown"
		}
		byType[storeType] = accumulateRegister(byType[storeType], entry)
		overall = accumulateRegister(overall, entry)
	}

	for storeType, agg := range byType {
		byType[storeType] = finalizeRegisterAggregate(agg)
	}
	overall = finalizeRegisterAggregate(overall)

	return domain.MonthlyRegisterSummary{
		Year:        year,
		Month:       month,
		ByStoreType: byType,
		Overall:     overall,
	}, nil
}

func accumulateRegister(agg domain.RegisterAggregate, entry domain.CashRegisterEntry) domain.RegisterAggregate {
	agg.DaysOpened++
	agg.TotalOpening = agg.TotalOpening.Add(entry.OpeningBalance)
	if !entry.Closed() {
		return agg
	}

	agg.DaysClosed++
	agg.TotalClosing = agg.TotalClosing.Add(*entry.ClosingBalance)
	if entry.ExpectedCash != nil {
		agg.TotalExpected = agg.TotalExpected.Add(*entry.ExpectedCash)
	}
	if entry.CashSales != nil {
		agg.TotalCashSales = agg.TotalCashSales.Add(*entry.CashSales)
	}
	if entry.Variance != nil {
		agg.TotalVariance = agg.TotalVariance.Add(*entry.Variance)
		// Perfect match means exact decimal equality with zero, not a
		// rounded display value.
		if entry.Variance.IsZero() {
			agg.PerfectMatches++
		} else {
			agg.VarianceDays++
		}
	}
	return agg
}

func finalizeRegisterAggregate(agg domain.RegisterAggregate) domain.RegisterAggregate {
	if agg.DaysOpened > 0 {
		agg.AverageOpening = agg.TotalOpening.DivRound(decimal.NewFromInt(int64(agg.DaysOpened)), 2)
	}
	if agg.DaysClosed > 0 {
		agg.AverageVariance = agg.TotalVariance.DivRound(decimal.NewFromInt(int64(agg.DaysClosed)), 2)
	}
	return agg
}
