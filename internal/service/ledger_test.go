package service

import (
	"errors"
	"testing"
	"time"

	"storeops/backend/internal/domain"
	"storeops/backend/internal/store"
)

func TestCreateSaleDerivesTotal(t *testing.T) {
	svc := newTestService(Options{})

	sale, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		StoreID:       "arcade-1",
		Date:          "2026-03-15",
		Time:          "14:30",
		CashAmount:    dec("10.00"),
		UPIAmount:     dec("20.00"),
		CardAmount:    dec("5.50"),
		BookingAmount: dec("4.50"),
		CustomerCount: 3,
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}
	if !sale.TotalAmount.Equal(dec("40.00")) {
		t.Fatalf("expected total 40.00, got %s", sale.TotalAmount)
	}
}

func TestCreateSaleRejectsNegativeAmount(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		StoreID:    "arcade-1",
		Date:       "2026-03-15",
		CashAmount: dec("-5.00"),
	})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateSaleRejectsUnknownStore(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.CreateSale(adminCtx(), domain.SaleCreateRequest{
		StoreID:    "nope-1",
		Date:       "2026-03-15",
		CashAmount: dec("5.00"),
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSaleRederivesTotal(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	sale, err := svc.CreateSale(ctx, domain.SaleCreateRequest{
		StoreID:    "arcade-1",
		Date:       "2026-03-15",
		CashAmount: dec("10.00"),
		UPIAmount:  dec("20.00"),
	})
	if err != nil {
		t.Fatalf("create sale failed: %v", err)
	}

	newCash := dec("15.00")
	updated, err := svc.UpdateSale(ctx, sale.ID, domain.SaleUpdateRequest{CashAmount: &newCash})
	if err != nil {
		t.Fatalf("update sale failed: %v", err)
	}
	if !updated.TotalAmount.Equal(dec("35.00")) {
		t.Fatalf("expected rederived total 35.00, got %s", updated.TotalAmount)
	}
	if !updated.UPIAmount.Equal(dec("20.00")) {
		t.Fatalf("untouched field changed: %s", updated.UPIAmount)
	}
}

func TestProblemLifecycle(t *testing.T) {
	svc := newTestService(Options{})
	ctx := managerCtx()

	problem, err := svc.CreateProblem(ctx, domain.ProblemCreateRequest{
		StoreID:     "arcade-1",
		Equipment:   "claw machine 3",
		Description: "claw not gripping",
	})
	if err != nil {
		t.Fatalf("create problem failed: %v", err)
	}
	if problem.Status != domain.ProblemStatusOpen {
		t.Fatalf("expected open status, got %s", problem.Status)
	}
	if problem.Severity != domain.ProblemSeverityMedium {
		t.Fatalf("expected default severity medium, got %s", problem.Severity)
	}
	if problem.ReportedBy != "manager" {
		t.Fatalf("expected reporter manager, got %s", problem.ReportedBy)
	}

	updated, err := svc.UpdateProblemStatus(ctx, problem.ID, domain.ProblemStatusResolved)
	if err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if updated.Status != domain.ProblemStatusResolved {
		t.Fatalf("expected resolved, got %s", updated.Status)
	}

	_, err = svc.UpdateProblemStatus(ctx, problem.ID, "broken")
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad status, got %v", err)
	}
}

func TestDailyReportComposesTotals(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID: "arcade-1", Date: "2026-03-15", OpeningBalance: dec("100.00"),
	}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}

	for _, sale := range []domain.SaleCreateRequest{
		{StoreID: "arcade-1", Date: "2026-03-15", CashAmount: dec("30.00"), UPIAmount: dec("10.00"), CustomerCount: 2},
		{StoreID: "arcade-1", Date: "2026-03-15", CardAmount: dec("15.00"), CustomerCount: 1},
	} {
		if _, err := svc.CreateSale(ctx, sale); err != nil {
			t.Fatalf("create sale failed: %v", err)
		}
	}
	if _, err := svc.CreateExpense(ctx, domain.ExpenseCreateRequest{
		StoreID: "arcade-1", Date: "2026-03-15", Category: "maintenance", Amount: dec("12.00"),
	}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}
	if _, err := svc.CreateProblem(ctx, domain.ProblemCreateRequest{
		StoreID: "arcade-1", Equipment: "air hockey", Description: "puck jam",
	}); err != nil {
		t.Fatalf("create problem failed: %v", err)
	}

	report, err := svc.DailyReport(ctx, "arcade-1", "2026-03-15")
	if err != nil {
		t.Fatalf("daily report failed: %v", err)
	}
	if report.SaleCount != 2 || report.CustomerCount != 3 {
		t.Fatalf("unexpected counts: sales=%d customers=%d", report.SaleCount, report.CustomerCount)
	}
	if !report.SalesTotal.Equal(dec("55.00")) {
		t.Fatalf("expected sales total 55.00, got %s", report.SalesTotal)
	}
	if !report.CashTotal.Equal(dec("30.00")) {
		t.Fatalf("expected cash total 30.00, got %s", report.CashTotal)
	}
	if !report.ExpenseTotal.Equal(dec("12.00")) {
		t.Fatalf("expected expense total 12.00, got %s", report.ExpenseTotal)
	}
	if report.OpenProblems != 1 {
		t.Fatalf("expected 1 open problem, got %d", report.OpenProblems)
	}
	if report.Register == nil || !report.Register.Opened {
		t.Fatalf("expected open register in report")
	}
	if !report.Register.LiveExpected.Equal(dec("130.00")) {
		t.Fatalf("expected live expected 130.00, got %s", report.Register.LiveExpected)
	}
}

func TestCreateStoreValidatesType(t *testing.T) {
	svc := newTestService(Options{})

	_, err := svc.CreateStore(adminCtx(), domain.StoreCreateRequest{Name: "Annex", Type: "warehouse"})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	created, err := svc.CreateStore(adminCtx(), domain.StoreCreateRequest{Name: "Annex", Type: domain.StoreTypeToys})
	if err != nil {
		t.Fatalf("create store failed: %v", err)
	}
	if created.Type != domain.StoreTypeToys || !created.Active {
		t.Fatalf("unexpected store: %+v", created)
	}
}

func TestAuditTrailRecordsRegisterActions(t *testing.T) {
	svc := newTestService(Options{})
	ctx := adminCtx()

	if _, err := svc.OpenRegister(ctx, domain.RegisterOpenRequest{
		StoreID: "arcade-1", Date: "2026-03-15", OpeningBalance: dec("100.00"),
	}); err != nil {
		t.Fatalf("open register failed: %v", err)
	}
	if _, err := svc.CloseRegister(ctx, domain.RegisterCloseRequest{
		StoreID: "arcade-1", Date: "2026-03-15", ClosingBalance: dec("100.00"),
	}); err != nil {
		t.Fatalf("close register failed: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "arcade-1", time.Time{}, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list audit logs failed: %v", err)
	}

	actions := map[string]bool{}
	for _, entry := range logs {
		actions[entry.Action] = true
		if entry.ActorUsername != "admin" {
			t.Fatalf("expected actor admin, got %s", entry.ActorUsername)
		}
	}
	if !actions["register_open"] || !actions["register_close"] {
		t.Fatalf("expected open and close audit entries, got %v", actions)
	}
}
