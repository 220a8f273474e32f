package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
	"storeops/backend/internal/store/memory"
)

var testClock = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestService(opts Options) *Service {
	repo := memory.NewSeeded()
	if opts.Now == nil {
		opts.Now = func() time.Time { return testClock }
	}
	return New(repo, nil, opts)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     domain.RoleAdmin,
	})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestRegisterCloseExactReconciliation(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("500.00"),
	})
	if err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	for _, cash := range []string{"120.50", "79.50"} {
		_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
			StoreID:    "arcade-1",
			Date:       "2026-03-15",
			CashAmount: dec(cash),
		})
		if err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
	}

	resp, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		ClosingBalance: dec("700.00"),
	})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	if !resp.ExpectedCash.Equal(dec("700.00")) {
		t.Fatalf("expected cash 700.00, got %s", resp.ExpectedCash)
	}
	if !resp.Variance.IsZero() {
		t.Fatalf("expected zero variance, got %s", resp.Variance)
	}
	if !resp.CashSales.Equal(dec("200.00")) {
		t.Fatalf("expected cash sales 200.00, got %s", resp.CashSales)
	}
}

func TestRegisterCloseVarianceIsExact(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "toys-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("100.10"),
	})
	if err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		StoreID:    "toys-1",
		Date:       "2026-03-15",
		CashAmount: dec("0.20"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	resp, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		StoreID:        "toys-1",
		Date:           "2026-03-15",
		ClosingBalance: dec("100.00"),
	})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	// 100.00 - (100.10 + 0.20) must come out exactly -0.30, no float drift.
	if !resp.Variance.Equal(dec("-0.30")) {
		t.Fatalf("expected variance -0.30, got %s", resp.Variance)
	}
}

func TestRegisterCloseWithoutOpenFails(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.CloseRegister(adminCtx(), domain.RegisterCloseRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		ClosingBalance: dec("100.00"),
	})
	if !errors.Is(err, ErrNotOpened) {
		t.Fatalf("expected ErrNotOpened, got %v", err)
	}
}

func TestRegisterSecondCloseFailsAndKeepsFirst(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("300.00"),
	})
	if err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	first, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		ClosingBalance: dec("310.00"),
	})
	if err != nil {
		t.Fatalf("first close failed: %v", err)
	}

	_, err = svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		ClosingBalance: dec("999.99"),
	})
	if !errors.Is(err, ErrAlreadyClosed) {
		t.Fatalf("expected ErrAlreadyClosed, got %v", err)
	}

	status, err := svc.RegisterStatus(ctx, "arcade-1", "2026-03-15")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(status.Registers) != 1 || !status.Registers[0].Closed {
		t.Fatalf("expected one closed register")
	}
	if !status.Registers[0].ClosingBalance.Equal(first.ClosingBalance) {
		t.Fatalf("second close mutated state: %s", status.Registers[0].ClosingBalance)
	}
}

func TestRegisterReopenUpdatesExistingEntry(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("200.00"),
		Notes:          "till float counted",
	})
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}

	resp, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("250.00"),
		Notes:          "float corrected",
	})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if !resp.Reopened {
		t.Fatalf("expected Reopened flag on second open")
	}
	if !resp.OpeningBalance.Equal(dec("250.00")) {
		t.Fatalf("expected updated opening 250.00, got %s", resp.OpeningBalance)
	}

	status, err := svc.RegisterStatus(ctx, "arcade-1", "2026-03-15")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if len(status.Registers) != 1 {
		t.Fatalf("reopen must not create a second entry, got %d", len(status.Registers))
	}
	// The reopen note is appended to the original, not overwritten.
	if got := status.Registers[0].Notes; got != "till float counted | float corrected" {
		t.Fatalf("expected joined notes, got %q", got)
	}
}

func TestRegisterReopenRejectedUnderRejectPolicy(t *testing.T) {
	svc := newTestService(Options{ReopenPolicy: ReopenReject})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("200.00"),
	})
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}

	_, err = svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("250.00"),
	})
	if !errors.Is(err, ErrAlreadyOpened) {
		t.Fatalf("expected ErrAlreadyOpened, got %v", err)
	}
}

func TestRegisterCloseSharedCashScope(t *testing.T) {
	svc := newTestService(Options{CashSalesScope: CashScopeShared})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("100.00"),
	})
	if err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	// Cash taken at a different store still lands in the shared till.
	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		StoreID:    "toys-1",
		Date:       "2026-03-15",
		CashAmount: dec("50.00"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	resp, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		ClosingBalance: dec("150.00"),
	})
	if err != nil {
		t.Fatalf("close register failed: %v", err)
	}
	if !resp.CashSales.Equal(dec("50.00")) {
		t.Fatalf("expected shared cash sales 50.00, got %s", resp.CashSales)
	}
	if !resp.Variance.IsZero() {
		t.Fatalf("expected zero variance, got %s", resp.Variance)
	}
}

func TestRegisterOpenRejectsNegativeBalance(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.OpenRegister(adminCtx(), domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("-1.00"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterOpenRejectsBadDate(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.OpenRegister(adminCtx(), domain.RegisterOpenRequest{
		StoreID:        "arcade-1",
		Date:           "15-03-2026",
		OpeningBalance: dec("100.00"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMonthlyRegisterSummaryFold(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	days := []struct {
		storeID string
		date    string
		opening string
		cash    string
		closing string
	}{
		{"arcade-1", "2026-03-01", "100.00", "40.00", "140.00"}, // perfect
		{"arcade-1", "2026-03-02", "100.00", "40.00", "139.00"}, // short 1.00
		{"toys-1", "2026-03-03", "200.00", "10.00", "210.00"},   // perfect
	}
	for _, d := range days {
		if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
			StoreID: d.storeID, Date: d.date, OpeningBalance: dec(d.opening),
		}); err != nil {
			t.Fatalf("open %s/%s failed: %v", d.storeID, d.date, err)
		}
		if _, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
			StoreID: d.storeID, Date: d.date, CashAmount: dec(d.cash),
		}); err != nil {
			t.Fatalf("sale %s/%s failed: %v", d.storeID, d.date, err)
		}
		if _, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
			StoreID: d.storeID, Date: d.date, ClosingBalance: dec(d.closing),
		}); err != nil {
			t.Fatalf("close %s/%s failed: %v", d.storeID, d.date, err)
		}
	}

	// One opened-but-never-closed day must count as opened only.
	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID: "arcade-1", Date: "2026-03-04", OpeningBalance: dec("100.00"),
	}); err != nil {
		t.Fatalf("open unclosed day failed: %v", err)
	}

	summary, err := svc.MonthlyRegisterSummary(ctx, 2026, 3, "")
	if err != nil {
		t.Fatalf("monthly summary failed: %v", err)
	}

	if summary.Overall.DaysOpened != 4 {
		t.Fatalf("expected 4 days opened, got %d", summary.Overall.DaysOpened)
	}
	if summary.Overall.DaysClosed != 3 {
		t.Fatalf("expected 3 days closed, got %d", summary.Overall.DaysClosed)
	}
	if summary.Overall.PerfectMatches != 2 {
		t.Fatalf("expected 2 perfect matches, got %d", summary.Overall.PerfectMatches)
	}
	if summary.Overall.VarianceDays != 1 {
		t.Fatalf("expected 1 variance day, got %d", summary.Overall.VarianceDays)
	}
	if !summary.Overall.TotalVariance.Equal(dec("-1.00")) {
		t.Fatalf("expected total variance -1.00, got %s", summary.Overall.TotalVariance)
	}

	arcade := summary.ByStoreType[domain.StoreTypeArcade]
	if arcade.DaysOpened != 3 || arcade.DaysClosed != 2 {
		t.Fatalf("unexpected arcade bucket: opened=%d closed=%d", arcade.DaysOpened, arcade.DaysClosed)
	}
	toys := summary.ByStoreType[domain.StoreTypeToys]
	if toys.PerfectMatches != 1 {
		t.Fatalf("expected toys perfect match, got %d", toys.PerfectMatches)
	}
}

func TestMonthlyRegisterSummaryRejectsBadMonth(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.MonthlyRegisterSummary(adminCtx(), 2026, 13, "")
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterStatusLiveExpectedBeforeClose(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	_, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID:        "dreamcube-1",
		Date:           "2026-03-15",
		OpeningBalance: dec("80.00"),
	})
	if err != nil {
		t.Fatalf("open register failed: %v", err)
	}
	_, err = svc.CreateSale(ctx, domain.SaleCreateRequest{
		StoreID:    "dreamcube-1",
		Date:       "2026-03-15",
		CashAmount: dec("25.00"),
		UPIAmount:  dec("40.00"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	status, err := svc.RegisterStatus(ctx, "dreamcube-1", "2026-03-15")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	reg := status.Registers[0]
	if !reg.Opened || reg.Closed {
		t.Fatalf("expected open register")
	}
	// Only the cash method feeds the drawer.
	if !reg.LiveCashSales.Equal(dec("25.00")) {
		t.Fatalf("expected live cash sales 25.00, got %s", reg.LiveCashSales)
	}
	if !reg.LiveExpected.Equal(dec("105.00")) {
		t.Fatalf("expected live expected 105.00, got %s", reg.LiveExpected)
	}
}
