package integration_test

import (
	"context"
	"testing"

	"github.com/xuri/excelize/v2"
)

type sheetSpec struct {
	name string
	rows [][]any
}

func buildWorkbook(t *testing.T, sheets ...sheetSpec) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			t.Fatalf("add sheet %q: %v", sheet.name, err)
		}
		for rowIdx, cells := range sheet.rows {
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(sheet.name, cell, &cells); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("serialize workbook: %v", err)
	}
	return buf.Bytes()
}

func fullWorkbook(t *testing.T) []byte {
	t.Helper()
	return buildWorkbook(t,
		sheetSpec{name: "Groups", rows: [][]any{
			{"Name", "Teacher Username", "Days Of Week", "Start Time", "End Time", "Subject"},
			{"Algebra-1", "t1", "mon,wed,fri", "09:00", "10:30", "Math"},
			{"Geometry-2", "t1", "tue,thu", "11:00", "12:30", "Math"},
		}},
		sheetSpec{name: "Students", rows: [][]any{
			{"Username", "First Name", "Last Name", "Phone", "Group Name"},
			{"s1", "Ali", "Vali", "+998901112233", "Algebra-1"},
			{"s2", "Olim", "Karimov", "", "Geometry-2"},
		}},
		sheetSpec{name: "Payments", rows: [][]any{
			{"Student Username", "Group Name", "Amount", "Due Date", "Status"},
			{"s1", "Algebra-1", "150000", "2025-01-10", ""},
			{"s2", "Geometry-2", "175000.50", "10.01.2025", "paid"},
		}},
	)
}

func TestImportEndToEnd(t *testing.T) {
	env := setupIntegrationEnv(t)
	ctx := context.Background()

	res, err := env.engine.Import(ctx, env.center.ID, fullWorkbook(t))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if !res.Committed {
		t.Fatal("expected commit")
	}
	if res.Summary.GroupsCreated != 2 || res.Summary.StudentsCreated != 2 ||
		res.Summary.StudentGroupLinksCreated != 2 || res.Summary.PaymentsCreated != 2 ||
		res.Summary.SubjectsCreated != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}

	if got := env.countRows("study_groups"); got != 2 {
		t.Fatalf("study_groups = %d", got)
	}
	if got := env.countRows("payments"); got != 2 {
		t.Fatalf("payments = %d", got)
	}

	// Amount round-trips through NUMERIC with cents intact.
	var amount float64
	err = env.db.QueryRowContext(ctx,
		`SELECT amount FROM payments p JOIN users u ON u.id = p.student_id WHERE u.username = 's2'`,
	).Scan(&amount)
	if err != nil {
		t.Fatalf("query amount: %v", err)
	}
	if amount != 175000.50 {
		t.Fatalf("amount = %v", amount)
	}

	var paidCount int
	err = env.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payments WHERE status = 'paid' AND paid_date IS NOT NULL`,
	).Scan(&paidCount)
	if err != nil {
		t.Fatalf("query paid: %v", err)
	}
	if paidCount != 1 {
		t.Fatalf("paid payments = %d", paidCount)
	}
}

func TestImportEndToEndIdempotent(t *testing.T) {
	env := setupIntegrationEnv(t)
	ctx := context.Background()
	data := fullWorkbook(t)

	if _, err := env.engine.Import(ctx, env.center.ID, data); err != nil {
		t.Fatalf("first import: %v", err)
	}
	res, err := env.engine.Import(ctx, env.center.ID, data)
	if err != nil {
		t.Fatalf("second import: %v", err)
	}
	if res.Summary.GroupsCreated != 0 || res.Summary.StudentsCreated != 0 || res.Summary.PaymentsCreated != 0 {
		t.Fatalf("second run created entities: %+v", res.Summary)
	}
	if res.Summary.PaymentsSkipped != 2 {
		t.Fatalf("payments skipped = %d", res.Summary.PaymentsSkipped)
	}

	if got := env.countRows("payments"); got != 2 {
		t.Fatalf("payments after re-import = %d", got)
	}
	if got := env.countRows("group_students"); got != 2 {
		t.Fatalf("memberships after re-import = %d", got)
	}
}

func TestImportEndToEndRollback(t *testing.T) {
	env := setupIntegrationEnv(t)
	ctx := context.Background()

	data := buildWorkbook(t,
		sheetSpec{name: "Groups", rows: [][]any{
			{"Name", "Teacher Username", "Start Time", "End Time"},
			{"Algebra-1", "t1", "09:00", "10:30"},
		}},
		sheetSpec{name: "Payments", rows: [][]any{
			{"Student Username", "Group Name", "Amount", "Due Date"},
			{"missing-student", "Algebra-1", "150000", "2025-01-10"},
		}},
	)

	res, err := env.engine.Import(ctx, env.center.ID, data)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Committed {
		t.Fatal("expected rollback")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v", res.Errors)
	}

	// The valid group from the same run must not survive the rollback.
	if got := env.countRows("study_groups"); got != 0 {
		t.Fatalf("study_groups after rollback = %d", got)
	}
	if got := env.countRows("payments"); got != 0 {
		t.Fatalf("payments after rollback = %d", got)
	}
}
