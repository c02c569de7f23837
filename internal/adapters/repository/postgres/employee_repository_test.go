package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type stubRow struct {
	scanFn func(dest ...interface{}) error
}

func (s stubRow) Scan(dest ...interface{}) error {
	return s.scanFn(dest...)
}

func ptr(v string) *string {
	return &v
}

func TestScanEmployee_Success(t *testing.T) {
	t.Parallel()

	createdAt := time.Now().UTC()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		if len(dest) != 14 {
			return errors.New("unexpected dest length")
		}
		*(dest[0].(*string)) = "emp-1"
		*(dest[1].(*string)) = "Taro"
		*(dest[2].(*string)) = "Yamada"
		*(dest[3].(*string)) = "03-0000-0000"
		*(dest[4].(*string)) = "taro@example.com"
		*(dest[5].(*string)) = string(employee.StatusActive)
		*(dest[6].(**string)) = ptr("mgr-1")
		*(dest[7].(**string)) = ptr("acc-1")
		*(dest[8].(*time.Time)) = createdAt
		*(dest[9].(*time.Time)) = createdAt
		*(dest[10].(**string)) = ptr("mgr-1")
		*(dest[11].(**string)) = ptr("Hanako")
		*(dest[12].(**string)) = ptr("Sato")
		*(dest[13].(*int)) = 2
		return nil
	}}

	emp, err := scanEmployee(row)
	if err != nil {
		t.Fatalf("scanEmployee returned error: %v", err)
	}

	if emp.Manager == nil || emp.Manager.LastName != "Sato" {
		t.Fatalf("expected manager reference, got %+v", emp.Manager)
	}
	if emp.AccountID == nil || *emp.AccountID != "acc-1" {
		t.Fatalf("expected account id, got %+v", emp.AccountID)
	}
	if emp.ReportCount != 2 || emp.Status != employee.StatusActive {
		t.Fatalf("unexpected employee %+v", emp)
	}
}

func TestScanEmployee_NoRows(t *testing.T) {
	t.Parallel()

	row := stubRow{scanFn: func(dest ...interface{}) error {
		return pgx.ErrNoRows
	}}

	_, err := scanEmployee(row)
	if !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestTranslateEmployeePgError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want error
	}{
		{&pgconn.PgError{Code: uniqueViolationCode, ConstraintName: "employees_email_key"}, employee.ErrEmailAlreadyExists},
		{&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "employees_manager_id_fkey"}, employee.ErrManagerNotFound},
		{&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "employee_departments_department_id_fkey"}, employee.ErrDepartmentNotFound},
		{&pgconn.PgError{Code: checkViolationCode, ConstraintName: "employees_manager_not_self"}, employee.ErrManagerIsSelf},
		{pgx.ErrNoRows, employee.ErrEmployeeNotFound},
	}
	for _, tc := range cases {
		if got := translateEmployeePgError(tc.err); !errors.Is(got, tc.want) {
			t.Fatalf("translate(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}

	other := errors.New("other")
	if translateEmployeePgError(other) != other {
		t.Fatalf("unexpected translation for generic error")
	}
}

var employeeColumns = []string{
	"id", "first_name", "last_name", "telephone", "email", "status", "manager_id", "account_id",
	"created_at", "updated_at", "m_id", "m_first_name", "m_last_name", "reports",
}

func TestEmployeeRepository_List_FilterSortAndPage(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT count\(\*\) FROM employees e WHERE strpos\(e\.first_name, \$1\) > 0`).
		WithArgs("Ev").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(3))

	mock.ExpectQuery(`WHERE strpos\(e\.first_name, \$1\) > 0 ORDER BY e\.email COLLATE "C" DESC, e\.last_name COLLATE "C" ASC, e\.first_name COLLATE "C" ASC, e\.id ASC\s+LIMIT \$2\s+OFFSET \$3`).
		WithArgs("Ev", 2, 2).
		WillReturnRows(pgxmock.NewRows(employeeColumns).
			AddRow("emp-3", "Eva", "Suzuki", "", "eva@example.com", "ACTIVE", nil, nil, now, now, nil, nil, nil, 0))

	mock.ExpectQuery(`FROM employee_departments ed\s+JOIN departments d ON d\.id = ed\.department_id\s+WHERE ed\.employee_id = ANY\(\$1\)`).
		WithArgs([]string{"emp-3"}).
		WillReturnRows(pgxmock.NewRows([]string{"employee_id", "id", "name"}).
			AddRow("emp-3", "dept-1", "Engineering"))

	items, total, err := repo.List(context.Background(), employee.ListCriteria{
		Where: query.Like(employee.FieldFirstName, "Ev"),
		Sort:  &query.Sort{Key: employee.SortEmail, Direction: query.Desc},
		Page:  query.NewPage(2, 2),
	})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}

	if total != 3 || len(items) != 1 {
		t.Fatalf("expected total 3 and 1 item, got %d and %d", total, len(items))
	}
	if len(items[0].Departments) != 1 || items[0].Departments[0].Name != "Engineering" {
		t.Fatalf("expected department reference, got %+v", items[0].Departments)
	}
	if items[0].Manager != nil {
		t.Fatalf("expected no manager, got %+v", items[0].Manager)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_List_PageBeyondTotalSkipsQuery(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(`SELECT count\(\*\) FROM employees e WHERE TRUE`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), employee.ListCriteria{Where: query.All(), Page: query.NewPage(5, 10)})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if total != 1 || len(items) != 0 {
		t.Fatalf("expected empty page with total 1, got %d items, total %d", len(items), total)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_ReplaceDepartments(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	at := time.Now().UTC()
	ids := []string{"dept-1", "dept-2"}

	mock.ExpectQuery(`SELECT id FROM employees WHERE id = \$1 FOR UPDATE`).
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("emp-1"))
	mock.ExpectExec(`DELETE FROM employee_departments WHERE employee_id = \$1`).
		WithArgs("emp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO employee_departments`).
		WithArgs("emp-1", ids, at).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	if err := repo.ReplaceDepartments(context.Background(), "emp-1", ids, at); err != nil {
		t.Fatalf("ReplaceDepartments returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestEmployeeRepository_ReplaceDepartments_UnknownDepartment(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	at := time.Now().UTC()

	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("emp-1"))
	mock.ExpectExec(`DELETE FROM employee_departments`).
		WithArgs("emp-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO employee_departments`).
		WithArgs("emp-1", []string{"dept-x"}, at).
		WillReturnError(&pgconn.PgError{Code: foreignKeyViolationCode, ConstraintName: "employee_departments_department_id_fkey"})

	err = repo.ReplaceDepartments(context.Background(), "emp-1", []string{"dept-x"}, at)
	if !errors.Is(err, employee.ErrDepartmentNotFound) {
		t.Fatalf("expected ErrDepartmentNotFound, got %v", err)
	}
}

func TestEmployeeRepository_ManagerChain(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)

	mock.ExpectQuery(`WITH RECURSIVE chain`).
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("emp-1").AddRow("emp-2"))

	chain, err := repo.ManagerChain(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("ManagerChain returned error: %v", err)
	}
	if len(chain) != 2 || chain[1] != "emp-2" {
		t.Fatalf("unexpected chain %v", chain)
	}
}

func TestEmployeeRepository_UpdateNotFound(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	defer mock.Close()

	repo := NewEmployeeRepository(mock)
	e := &employee.Employee{ID: "emp-9", FirstName: "A", LastName: "B", Email: "a@example.com", Status: employee.StatusActive, UpdatedAt: time.Now().UTC()}

	mock.ExpectExec(`UPDATE employees`).
		WithArgs(e.FirstName, e.LastName, e.Telephone, e.Email, string(e.Status), e.ManagerID, e.UpdatedAt, e.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if _, err := repo.Update(context.Background(), e); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}
