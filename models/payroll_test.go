package models_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mmdatafocus/pipeworks_backend/models"
)

func mustCreateEmployee(t *testing.T, ctx context.Context, name string, salary string) *models.Employee {
	t.Helper()
	e, err := models.CreateEmployee(ctx, &models.NewEmployee{Name: name, MonthlySalary: loose(salary)})
	if err != nil {
		t.Fatalf("CreateEmployee: %v", err)
	}
	return e
}

func TestPostSalaryPaymentAccumulates(t *testing.T) {
	ctx := setupTestDB(t)
	ali := mustCreateEmployee(t, ctx, "Ali", "30000")

	for _, paid := range []string{"10000", "5000"} {
		if _, err := models.PostSalaryPayment(ctx, &models.NewSalaryPayment{
			EmployeeId: ali.ID,
			Month:      "10",
			Year:       loose("2024"),
			PaidAmount: loose(paid),
		}); err != nil {
			t.Fatalf("PostSalaryPayment(%s): %v", paid, err)
		}
	}

	records, err := models.GetSalaries(ctx, "October", 2024)
	if err != nil {
		t.Fatalf("GetSalaries: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record per employee and month, got %d", len(records))
	}
	r := records[0]
	if r.Month != "2024-10" || r.Year != 2024 {
		t.Fatalf("unexpected period %s/%d", r.Month, r.Year)
	}
	requireDec(t, "paid", r.PaidAmount, "15000")
	requireDec(t, "balance", r.BalanceRemaining, "15000")
	if r.FullyPaid {
		t.Fatalf("record should not be fully paid")
	}
	if r.Employee == nil || r.Employee.Name != "Ali" {
		t.Fatalf("employee not loaded: %+v", r.Employee)
	}

	expenses, err := models.GetExpenseMonth(ctx, "2024-10")
	if err != nil {
		t.Fatalf("GetExpenseMonth: %v", err)
	}
	if len(expenses.Entries) != 2 {
		t.Fatalf("expected 2 salary expense entries, got %d", len(expenses.Entries))
	}
	requireDec(t, "expense total", expenses.Total, "15000")
}

func TestPostSalaryAdvanceGoesToNextMonth(t *testing.T) {
	ctx := setupTestDB(t)
	ali := mustCreateEmployee(t, ctx, "Ali", "30000")

	result, err := models.PostSalaryPayment(ctx, &models.NewSalaryPayment{
		EmployeeId:  ali.ID,
		Month:       "2024-10",
		PaidAmount:  loose("30000"),
		AdvancePaid: loose("5000"),
	})
	if err != nil {
		t.Fatalf("PostSalaryPayment: %v", err)
	}
	if result.Record.Month != "2024-10" || !result.Record.FullyPaid {
		t.Fatalf("unexpected october record %+v", result.Record)
	}
	if result.Advance == nil || result.Advance.Month != "2024-11" {
		t.Fatalf("expected november advance record, got %+v", result.Advance)
	}
	requireDec(t, "november advance", result.Advance.AdvancePaid, "5000")
	requireDec(t, "november balance", result.Advance.BalanceRemaining, "25000")

	october, err := models.GetExpenseMonth(ctx, "2024-10")
	if err != nil {
		t.Fatalf("GetExpenseMonth: %v", err)
	}
	if len(october.Entries) != 2 {
		t.Fatalf("expected salary and advance entries in october, got %d", len(october.Entries))
	}
	refs := map[string]string{}
	for _, e := range october.Entries {
		refs[e.Description] = e.Reference
	}
	if refs[models.ExpenseSalaries] != "Ali (2024-10)" {
		t.Fatalf("unexpected salary reference %q", refs[models.ExpenseSalaries])
	}
	if refs[models.ExpenseSalaryAdvance] != "Ali (advance for 2024-11)" {
		t.Fatalf("unexpected advance reference %q", refs[models.ExpenseSalaryAdvance])
	}
	requireDec(t, "october expenses", october.Total, "35000")

	november, err := models.GetExpenseMonth(ctx, "2024-11")
	if err != nil {
		t.Fatalf("GetExpenseMonth: %v", err)
	}
	if len(november.Entries) != 0 {
		t.Fatalf("advance must not be expensed in november, got %d entries", len(november.Entries))
	}
}

func TestAdjustSalarySetsFigures(t *testing.T) {
	ctx := setupTestDB(t)
	ali := mustCreateEmployee(t, ctx, "Ali", "30000")
	if _, err := models.PostSalaryPayment(ctx, &models.NewSalaryPayment{
		EmployeeId: ali.ID, Month: "2024-10", PaidAmount: loose("10000"),
	}); err != nil {
		t.Fatalf("PostSalaryPayment: %v", err)
	}

	record, err := models.AdjustSalary(ctx, &models.SalaryAdjustment{
		EmployeeId:  ali.ID,
		Month:       "2024-10",
		TotalSalary: loose("32000"),
		PaidAmount:  loose("2000"),
	})
	if err != nil {
		t.Fatalf("AdjustSalary: %v", err)
	}
	requireDec(t, "total", record.TotalSalary, "32000")
	requireDec(t, "paid", record.PaidAmount, "2000")
	requireDec(t, "balance", record.BalanceRemaining, "30000")

	expenses, err := models.GetExpenseMonth(ctx, "2024-10")
	if err != nil {
		t.Fatalf("GetExpenseMonth: %v", err)
	}
	if len(expenses.Entries) != 1 {
		t.Fatalf("adjustment must not add expense entries, got %d", len(expenses.Entries))
	}
}

func TestPostSalaryUnknownEmployee(t *testing.T) {
	ctx := setupTestDB(t)
	_, err := models.PostSalaryPayment(ctx, &models.NewSalaryPayment{EmployeeId: 42, Month: "2024-10", PaidAmount: loose("1")})
	if !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClosedExpenseMonthRejectsWrites(t *testing.T) {
	ctx := setupTestDB(t)
	ali := mustCreateEmployee(t, ctx, "Ali", "30000")

	saved, err := models.ReplaceExpenseEntries(ctx, &models.NewExpenseMonth{
		Month: "2024-10",
		Entries: []models.NewExpenseEntry{
			{Description: "Rent", Amount: loose("12000")},
			{Description: "  "},
			{Description: "Electricity", Amount: looseJSON(t, `"3,500"`)},
		},
	})
	if err != nil {
		t.Fatalf("ReplaceExpenseEntries: %v", err)
	}
	if len(saved.Entries) != 2 {
		t.Fatalf("expected blank row to be dropped, got %d entries", len(saved.Entries))
	}
	requireDec(t, "total", saved.Total, "15500")

	closed, err := models.CloseExpenseMonth(ctx, "2024-10")
	if err != nil {
		t.Fatalf("CloseExpenseMonth: %v", err)
	}
	if !closed.Month.IsClosed() || closed.NextMonth != "2024-11" {
		t.Fatalf("unexpected close result %+v", closed)
	}

	if _, err := models.CloseExpenseMonth(ctx, "2024-10"); !errors.Is(err, models.ErrAlreadyProcessed) {
		t.Fatalf("expected second close to be rejected, got %v", err)
	}
	if _, err := models.ReplaceExpenseEntries(ctx, &models.NewExpenseMonth{Month: "2024-10"}); !errors.Is(err, models.ErrMonthClosed) {
		t.Fatalf("expected autosave into closed month to be rejected, got %v", err)
	}
	if _, err := models.PostSalaryPayment(ctx, &models.NewSalaryPayment{
		EmployeeId: ali.ID, Month: "2024-10", PaidAmount: loose("1000"),
	}); !errors.Is(err, models.ErrMonthClosed) {
		t.Fatalf("expected salary into closed month to be rejected, got %v", err)
	}

	records, err := models.GetSalaries(ctx, "2024-10", 0)
	if err != nil {
		t.Fatalf("GetSalaries: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("rejected salary left %d records behind", len(records))
	}

	months, err := models.ListExpenseMonths(ctx)
	if err != nil {
		t.Fatalf("ListExpenseMonths: %v", err)
	}
	if len(months) != 1 || months[0].Status != models.ExpenseMonthClosed {
		t.Fatalf("unexpected months %+v", months)
	}
}

func TestCompanyMonthKey(t *testing.T) {
	s := models.Settings{StartDay: 25}
	cases := map[string]string{
		"2024-10-24": "2024-09",
		"2024-10-25": "2024-10",
		"2024-01-10": "2023-12",
	}
	for day, want := range cases {
		d, err := models.ParseDate(day)
		if err != nil {
			t.Fatalf("ParseDate(%s): %v", day, err)
		}
		if got := s.CompanyMonthKey(d); got != want {
			t.Fatalf("%s: expected %s, got %s", day, want, got)
		}
	}
	// EndDay is implied by StartDay, so an explicit one does not move the boundary.
	explicit := models.Settings{StartDay: 25, EndDay: 24}
	for day, want := range cases {
		if got := explicit.CompanyMonthKey(mustDate(t, day)); got != want {
			t.Fatalf("%s with endDay 24: expected %s, got %s", day, want, got)
		}
	}
	if got := models.DefaultSettings().CompanyMonthKey(mustDate(t, "2024-10-01")); got != "2024-10" {
		t.Fatalf("default settings: expected 2024-10, got %s", got)
	}
}
