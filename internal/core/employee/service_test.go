package employee_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/adapters/repository/memory"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	"golang.org/x/crypto/bcrypt"
)

type stubClock struct {
	now time.Time
}

func (s *stubClock) Now() time.Time {
	return s.now
}

type recordingAuditor struct {
	events []access.AuditEvent
}

func (a *recordingAuditor) Record(_ context.Context, ev access.AuditEvent) {
	a.events = append(a.events, ev)
}

type fixture struct {
	store     *memory.Store
	employees *employee.Service
	depts     *department.Service
	audit     *recordingAuditor
}

func newFixture(t *testing.T, opts ...employee.Option) *fixture {
	t.Helper()

	authz, err := access.NewPolicyAuthorizer()
	if err != nil {
		t.Fatalf("NewPolicyAuthorizer returned error: %v", err)
	}

	store := memory.NewStore()
	clock := &stubClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	audit := &recordingAuditor{}

	base := []employee.Option{
		employee.WithAuditor(audit),
		employee.WithPasswordHasher(account.NewBcryptHasher(bcrypt.MinCost)),
		employee.WithDefaultPassword("changeme"),
	}
	empSvc := employee.NewService(store.Employees(), store.Accounts(), store.Departments(), authz, clock, store, append(base, opts...)...)
	deptSvc := department.NewService(store.Departments(), store.Employees(), store.Accounts(), authz, nil, clock, store)

	return &fixture{store: store, employees: empSvc, depts: deptSvc, audit: audit}
}

func adminCtx() context.Context {
	return access.WithSession(context.Background(), access.Session{AccountID: "admin", Role: access.RoleHRAdmin})
}

func sessionCtx(role access.Role, employeeID string) context.Context {
	return access.WithSession(context.Background(), access.Session{AccountID: "acc-" + employeeID, Role: role, EmployeeID: &employeeID})
}

func (f *fixture) createDepartment(t *testing.T, name string) *department.Department {
	t.Helper()
	d, err := f.depts.CreateDepartment(adminCtx(), department.CreateDepartmentInput{Name: name})
	if err != nil {
		t.Fatalf("CreateDepartment(%s) returned error: %v", name, err)
	}
	return d
}

func (f *fixture) createEmployee(t *testing.T, first, last string, managerID *string, deptIDs ...string) *employee.Employee {
	t.Helper()
	e, err := f.employees.CreateEmployee(adminCtx(), employee.CreateEmployeeInput{
		FirstName:     first,
		LastName:      last,
		Email:         fmt.Sprintf("%s.%s@test.com", first, last),
		ManagerID:     managerID,
		DepartmentIDs: deptIDs,
	})
	if err != nil {
		t.Fatalf("CreateEmployee(%s) returned error: %v", first, err)
	}
	return e
}

func ids(items []*employee.Employee) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, e := range items {
		out[e.ID] = true
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}

func TestService_CreateEmployee_LinksAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.createDepartment(t, "Engineering")

	created, err := f.employees.CreateEmployee(adminCtx(), employee.CreateEmployeeInput{
		FirstName:     " Eve ",
		LastName:      "Employee",
		Email:         "Eve@Test.com",
		DepartmentIDs: []string{eng.ID, eng.ID},
	})
	if err != nil {
		t.Fatalf("CreateEmployee returned error: %v", err)
	}

	if created.Email != "eve@test.com" || created.FirstName != "Eve" {
		t.Fatalf("expected normalized values, got %+v", created)
	}
	if created.Status != employee.StatusActive {
		t.Fatalf("expected ACTIVE, got %s", created.Status)
	}
	if len(created.Departments) != 1 || created.Departments[0].ID != eng.ID {
		t.Fatalf("expected single Engineering membership, got %+v", created.Departments)
	}
	if created.AccountID == nil {
		t.Fatalf("expected linked account")
	}

	acc, err := f.store.Accounts().FindByEmployeeID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("FindByEmployeeID returned error: %v", err)
	}
	if acc.ID != *created.AccountID || acc.Role != access.RoleEmployee || acc.Email != "eve@test.com" {
		t.Fatalf("unexpected account: %+v", acc)
	}
	if err := account.NewBcryptHasher(bcrypt.MinCost).Compare(acc.PasswordHash, "changeme"); err != nil {
		t.Fatalf("expected default password hash: %v", err)
	}

	if len(f.audit.events) != 1 || !f.audit.events[0].Success || f.audit.events[0].TargetID != created.ID {
		t.Fatalf("expected successful create audit event, got %+v", f.audit.events)
	}
}

func TestService_CreateEmployee_DuplicateEmailLeavesNoOrphans(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createEmployee(t, "eve", "one", nil)

	_, err := f.employees.CreateEmployee(adminCtx(), employee.CreateEmployeeInput{
		FirstName: "Eve", LastName: "Two", Email: "EVE.ONE@test.com",
	})
	if !errors.Is(err, employee.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	res, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if res.Total != 1 {
		t.Fatalf("expected a single employee, got %d", res.Total)
	}
}

func TestService_CreateEmployee_EmailTakenByAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	admins := account.NewService(f.store.Accounts(), account.NewBcryptHasher(bcrypt.MinCost), f.store.Employees(), nil, f.store)
	if _, err := admins.BootstrapAdmin(context.Background(), account.BootstrapAdminInput{Email: "root@test.com", Password: "pw"}); err != nil {
		t.Fatalf("BootstrapAdmin returned error: %v", err)
	}

	_, err := f.employees.CreateEmployee(adminCtx(), employee.CreateEmployeeInput{
		FirstName: "Root", LastName: "User", Email: "root@test.com",
	})
	if !errors.Is(err, employee.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}
}

func TestService_CreateEmployee_UnknownDepartmentRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.employees.CreateEmployee(adminCtx(), employee.CreateEmployeeInput{
		FirstName:     "Eve",
		LastName:      "Employee",
		Email:         "eve@test.com",
		DepartmentIDs: []string{"99999999-9999-9999-9999-999999999999"},
	})
	if !errors.Is(err, employee.ErrDepartmentNotFound) {
		t.Fatalf("expected ErrDepartmentNotFound, got %v", err)
	}

	if _, err := f.store.Accounts().FindByEmail(context.Background(), "eve@test.com"); !errors.Is(err, account.ErrAccountNotFound) {
		t.Fatalf("expected no orphan account, got %v", err)
	}
}

func TestService_CreateEmployee_Validation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	cases := []struct {
		name string
		in   employee.CreateEmployeeInput
		want error
	}{
		{"missing first name", employee.CreateEmployeeInput{LastName: "L", Email: "a@test.com"}, employee.ErrInvalidFirstName},
		{"missing last name", employee.CreateEmployeeInput{FirstName: "F", Email: "a@test.com"}, employee.ErrInvalidLastName},
		{"bad email", employee.CreateEmployeeInput{FirstName: "F", LastName: "L", Email: "nope"}, employee.ErrInvalidEmail},
		{"bad department id", employee.CreateEmployeeInput{FirstName: "F", LastName: "L", Email: "a@test.com", DepartmentIDs: []string{"x"}}, employee.ErrInvalidID},
		{"bad status", employee.CreateEmployeeInput{FirstName: "F", LastName: "L", Email: "a@test.com", Status: ptr(employee.Status("GONE"))}, employee.ErrInvalidStatus},
	}

	for _, tc := range cases {
		if _, err := f.employees.CreateEmployee(adminCtx(), tc.in); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestService_CreateEmployee_RequiresAdminAndPassword(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	in := employee.CreateEmployeeInput{FirstName: "F", LastName: "L", Email: "a@test.com"}

	if _, err := f.employees.CreateEmployee(context.Background(), in); !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, err := f.employees.CreateEmployee(sessionCtx(access.RoleManager, "m"), in); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	noPassword := newFixture(t, employee.WithDefaultPassword(""))
	if _, err := noPassword.employees.CreateEmployee(adminCtx(), in); !errors.Is(err, employee.ErrDefaultPasswordMissing) {
		t.Fatalf("expected ErrDefaultPasswordMissing, got %v", err)
	}
}

func TestService_ListEmployees_EmployeeScope(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eve := f.createEmployee(t, "eve", "a", nil)
	f.createEmployee(t, "bob", "b", nil)

	res, err := f.employees.ListEmployees(sessionCtx(access.RoleEmployee, eve.ID), employee.ListEmployeesInput{})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if res.Total != 1 || len(res.Employees) != 1 || res.Employees[0].ID != eve.ID {
		t.Fatalf("expected only self, got %+v", res)
	}

	unlinked := access.WithSession(context.Background(), access.Session{AccountID: "x", Role: access.RoleEmployee})
	res, err = f.employees.ListEmployees(unlinked, employee.ListEmployeesInput{})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if res.Total != 0 || len(res.Employees) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestService_ListEmployees_ManagerScope(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.createDepartment(t, "Engineering")
	ops := f.createDepartment(t, "Operations")

	mgr := f.createEmployee(t, "mia", "manager", nil)
	report := f.createEmployee(t, "rob", "report", &mgr.ID)
	member := f.createEmployee(t, "meg", "member", nil, eng.ID)
	outsider := f.createEmployee(t, "oli", "outsider", nil, ops.ID)

	if _, err := f.depts.UpdateDepartment(adminCtx(), department.UpdateDepartmentInput{ID: eng.ID, ManagerID: &mgr.ID, ManagerIDSet: true}); err != nil {
		t.Fatalf("UpdateDepartment returned error: %v", err)
	}

	ctx := sessionCtx(access.RoleManager, mgr.ID)
	res, err := f.employees.ListEmployees(ctx, employee.ListEmployeesInput{})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}

	got := ids(res.Employees)
	if len(got) != 3 || !got[mgr.ID] || !got[report.ID] || !got[member.ID] {
		t.Fatalf("expected self, report and member, got %+v", got)
	}

	if _, err := f.employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: outsider.ID}); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected out-of-scope get to be not found, got %v", err)
	}

	// 絞り込みは可視範囲を広げません。
	res, err = f.employees.ListEmployees(ctx, employee.ListEmployeesInput{Filter: employee.Filter{DepartmentIDs: []string{ops.ID}}})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if res.Total != 0 {
		t.Fatalf("expected filter to only narrow scope, got %+v", ids(res.Employees))
	}
}

func TestService_ListEmployees_FilterByManagerIsInclusive(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.createDepartment(t, "Engineering")
	mgr := f.createEmployee(t, "mia", "manager", nil)
	report := f.createEmployee(t, "rob", "report", &mgr.ID)
	member := f.createEmployee(t, "meg", "member", nil, eng.ID)
	f.createEmployee(t, "oli", "outsider", nil)

	if _, err := f.depts.UpdateDepartment(adminCtx(), department.UpdateDepartmentInput{ID: eng.ID, ManagerID: &mgr.ID, ManagerIDSet: true}); err != nil {
		t.Fatalf("UpdateDepartment returned error: %v", err)
	}

	res, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Filter: employee.Filter{ManagerID: mgr.ID}})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	got := ids(res.Employees)
	if len(got) != 2 || !got[report.ID] || !got[member.ID] {
		t.Fatalf("expected report and member, got %+v", got)
	}
}

func TestService_ListEmployees_RejectsInvalidFilterAndSort(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	if _, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Filter: employee.Filter{Statuses: []string{"ARCHIVED"}}}); !errors.Is(err, employee.ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Sort: &query.SortInput{Field: "salary"}}); !errors.Is(err, query.ErrInvalidSortField) {
		t.Fatalf("expected ErrInvalidSortField, got %v", err)
	}
}

func TestService_ListEmployees_PagesReconstructSortedSet(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	names := []string{"delta", "alpha", "echo", "charlie", "bravo", "alpha"}
	for i, n := range names {
		f.createEmployee(t, fmt.Sprintf("f%d", i), n, nil)
	}

	var all []*employee.Employee
	for page := 1; page <= 3; page++ {
		res, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Page: page, PageSize: 2})
		if err != nil {
			t.Fatalf("ListEmployees returned error: %v", err)
		}
		if res.Total != len(names) || res.PageSize != 2 || res.Page != page {
			t.Fatalf("unexpected paging metadata: %+v", res)
		}
		all = append(all, res.Employees...)
	}

	if len(all) != len(names) || len(ids(all)) != len(names) {
		t.Fatalf("expected %d distinct employees, got %d", len(names), len(ids(all)))
	}
	for i := 1; i < len(all); i++ {
		prev, cur := all[i-1], all[i]
		if prev.LastName > cur.LastName || (prev.LastName == cur.LastName && prev.FirstName > cur.FirstName) {
			t.Fatalf("expected default order by last then first name, got %s %s before %s %s", prev.LastName, prev.FirstName, cur.LastName, cur.FirstName)
		}
	}

	res, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Sort: &query.SortInput{Field: "lastName", Direction: "desc"}, PageSize: 1000})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if res.PageSize != query.MaxPageSize || res.Employees[0].LastName != "echo" {
		t.Fatalf("expected clamped page size and descending order, got %d / %s", res.PageSize, res.Employees[0].LastName)
	}
}

func TestService_ListEmployees_HugePageIsEmpty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.createEmployee(t, "eve", "employee", nil)

	res, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Page: math.MaxInt / 100, PageSize: 200})
	if err != nil {
		t.Fatalf("ListEmployees returned error: %v", err)
	}
	if len(res.Employees) != 0 || res.Total != 1 {
		t.Fatalf("expected empty page with total 1, got %d items total %d", len(res.Employees), res.Total)
	}
	if res.Page != query.MaxPageNumber || res.PageSize != query.MaxPageSize {
		t.Fatalf("expected clamped page, got page=%d size=%d", res.Page, res.PageSize)
	}
}

func TestService_ListEmployees_SortByManagerPutsUnmanagedLast(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	zed := f.createEmployee(t, "zed", "zulu", nil)
	amy := f.createEmployee(t, "amy", "alpha", nil)
	underZed := f.createEmployee(t, "u1", "one", &zed.ID)
	underAmy := f.createEmployee(t, "u2", "two", &amy.ID)

	for _, dir := range []string{"asc", "desc"} {
		res, err := f.employees.ListEmployees(adminCtx(), employee.ListEmployeesInput{Sort: &query.SortInput{Field: "manager", Direction: dir}})
		if err != nil {
			t.Fatalf("ListEmployees returned error: %v", err)
		}
		first, second := res.Employees[0].ID, res.Employees[1].ID
		want := []string{underAmy.ID, underZed.ID}
		if dir == "desc" {
			want = []string{underZed.ID, underAmy.ID}
		}
		if first != want[0] || second != want[1] {
			t.Fatalf("%s: unexpected order %s, %s", dir, first, second)
		}
		if res.Employees[2].Manager != nil || res.Employees[3].Manager != nil {
			t.Fatalf("%s: expected unmanaged employees last", dir)
		}
	}
}

func TestService_UpdateEmployee_SelfService(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eve := f.createEmployee(t, "eve", "employee", nil)
	ctx := sessionCtx(access.RoleEmployee, eve.ID)

	updated, err := f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: eve.ID, Telephone: ptr("555-0100")})
	if err != nil {
		t.Fatalf("UpdateEmployee returned error: %v", err)
	}
	if updated.Telephone != "555-0100" || updated.FirstName != eve.FirstName || updated.Status != eve.Status {
		t.Fatalf("expected only telephone to change, got %+v", updated)
	}

	_, err = f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{
		ID:        eve.ID,
		Telephone: ptr("555-0199"),
		Status:    ptr(employee.StatusInactive),
	})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	after, err := f.employees.GetEmployee(ctx, employee.GetEmployeeInput{ID: eve.ID})
	if err != nil {
		t.Fatalf("GetEmployee returned error: %v", err)
	}
	if after.Telephone != "555-0100" {
		t.Fatalf("expected no partial apply, got telephone %s", after.Telephone)
	}
}

func sameIgnoringUpdatedAt(a, b *employee.Employee) bool {
	x, y := *a, *b
	x.UpdatedAt, y.UpdatedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(x, y)
}

func TestService_UpdateEmployee_UnchangedValuesAreIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.createDepartment(t, "Engineering")
	ops := f.createDepartment(t, "Operations")
	boss := f.createEmployee(t, "bob", "boss", nil)
	eve := f.createEmployee(t, "eve", "employee", &boss.ID, eng.ID, ops.ID)

	before, err := f.employees.GetEmployee(adminCtx(), employee.GetEmployeeInput{ID: eve.ID})
	if err != nil {
		t.Fatalf("GetEmployee returned error: %v", err)
	}
	deptIDs := make([]string, 0, len(before.Departments))
	for _, d := range before.Departments {
		deptIDs = append(deptIDs, d.ID)
	}

	byAdmin, err := f.employees.UpdateEmployee(adminCtx(), employee.UpdateEmployeeInput{
		ID:               eve.ID,
		FirstName:        ptr(before.FirstName),
		LastName:         ptr(before.LastName),
		Email:            ptr(before.Email),
		ManagerID:        before.ManagerID,
		ManagerIDSet:     true,
		DepartmentIDs:    deptIDs,
		DepartmentIDsSet: true,
	})
	if err != nil {
		t.Fatalf("admin UpdateEmployee returned error: %v", err)
	}
	if !sameIgnoringUpdatedAt(before, byAdmin) {
		t.Fatalf("expected admin update to leave record unchanged\nbefore: %+v\nafter:  %+v", before, byAdmin)
	}

	bySelf, err := f.employees.UpdateEmployee(sessionCtx(access.RoleEmployee, eve.ID), employee.UpdateEmployeeInput{
		ID:    eve.ID,
		Email: ptr(before.Email),
	})
	if err != nil {
		t.Fatalf("self UpdateEmployee returned error: %v", err)
	}
	if !sameIgnoringUpdatedAt(before, bySelf) {
		t.Fatalf("expected self update to leave record unchanged\nbefore: %+v\nafter:  %+v", before, bySelf)
	}

	acc, err := f.store.Accounts().FindByEmployeeID(context.Background(), eve.ID)
	if err != nil {
		t.Fatalf("FindByEmployeeID returned error: %v", err)
	}
	if acc.Email != before.Email {
		t.Fatalf("expected account email %s, got %s", before.Email, acc.Email)
	}
}

func TestService_UpdateEmployee_PrivilegedFieldsForbiddenForNonAdmin(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eve := f.createEmployee(t, "eve", "employee", nil)
	ctx := sessionCtx(access.RoleManager, eve.ID)

	inputs := []employee.UpdateEmployeeInput{
		{ID: eve.ID, Status: ptr(eve.Status)},
		{ID: eve.ID, ManagerIDSet: true},
		{ID: eve.ID, DepartmentIDsSet: true, DepartmentIDs: []string{}},
	}
	for i, in := range inputs {
		if _, err := f.employees.UpdateEmployee(ctx, in); !errors.Is(err, access.ErrForbidden) {
			t.Fatalf("case %d: expected ErrForbidden, got %v", i, err)
		}
	}
}

func TestService_UpdateEmployee_OtherEmployee(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	mgr := f.createEmployee(t, "mia", "manager", nil)
	report := f.createEmployee(t, "rob", "report", &mgr.ID)
	stranger := f.createEmployee(t, "sam", "stranger", nil)

	ctx := sessionCtx(access.RoleManager, mgr.ID)
	if _, err := f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: report.ID, FirstName: ptr("Robert")}); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for visible report, got %v", err)
	}
	if _, err := f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: stranger.ID, FirstName: ptr("Samuel")}); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound for invisible employee, got %v", err)
	}
}

func TestService_UpdateEmployee_EmailPropagatesToAccount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eve := f.createEmployee(t, "eve", "employee", nil)
	bob := f.createEmployee(t, "bob", "builder", nil)
	ctx := sessionCtx(access.RoleEmployee, eve.ID)

	if _, err := f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: eve.ID, Email: ptr(bob.Email)}); !errors.Is(err, employee.ErrEmailAlreadyExists) {
		t.Fatalf("expected ErrEmailAlreadyExists, got %v", err)
	}

	updated, err := f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: eve.ID, Email: ptr(" EVE@NEW.test ")})
	if err != nil {
		t.Fatalf("UpdateEmployee returned error: %v", err)
	}
	if updated.Email != "eve@new.test" {
		t.Fatalf("expected normalized email, got %s", updated.Email)
	}

	acc, err := f.store.Accounts().FindByID(context.Background(), *eve.AccountID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if acc.Email != "eve@new.test" {
		t.Fatalf("expected account email to follow, got %s", acc.Email)
	}

	// 同じ値での更新は成功し、他の項目を変えません。
	again, err := f.employees.UpdateEmployee(ctx, employee.UpdateEmployeeInput{ID: eve.ID, Email: ptr("eve@new.test")})
	if err != nil {
		t.Fatalf("idempotent update returned error: %v", err)
	}
	if again.FirstName != updated.FirstName || again.Telephone != updated.Telephone || again.Status != updated.Status {
		t.Fatalf("expected unchanged record, got %+v", again)
	}
}

func TestService_UpdateEmployee_AdminFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eng := f.createDepartment(t, "Engineering")
	ops := f.createDepartment(t, "Operations")
	mgr := f.createEmployee(t, "mia", "manager", nil)
	eve := f.createEmployee(t, "eve", "employee", nil, eng.ID)

	updated, err := f.employees.UpdateEmployee(adminCtx(), employee.UpdateEmployeeInput{
		ID:               eve.ID,
		Status:           ptr(employee.StatusInactive),
		ManagerID:        &mgr.ID,
		ManagerIDSet:     true,
		DepartmentIDs:    []string{ops.ID},
		DepartmentIDsSet: true,
	})
	if err != nil {
		t.Fatalf("UpdateEmployee returned error: %v", err)
	}
	if updated.Status != employee.StatusInactive || updated.ManagerID == nil || *updated.ManagerID != mgr.ID {
		t.Fatalf("unexpected status or manager: %+v", updated)
	}
	if len(updated.Departments) != 1 || updated.Departments[0].ID != ops.ID {
		t.Fatalf("expected memberships to be replaced, got %+v", updated.Departments)
	}

	cleared, err := f.employees.UpdateEmployee(adminCtx(), employee.UpdateEmployeeInput{ID: eve.ID, ManagerIDSet: true, DepartmentIDsSet: true})
	if err != nil {
		t.Fatalf("UpdateEmployee returned error: %v", err)
	}
	if cleared.ManagerID != nil || len(cleared.Departments) != 0 {
		t.Fatalf("expected manager and memberships cleared, got %+v", cleared)
	}
}

func TestService_UpdateEmployee_ManagerValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.createEmployee(t, "a", "a", nil)
	b := f.createEmployee(t, "b", "b", &a.ID)
	c := f.createEmployee(t, "c", "c", &b.ID)

	cases := []struct {
		name      string
		target    string
		managerID string
		want      error
	}{
		{"self", a.ID, a.ID, employee.ErrManagerIsSelf},
		{"cycle", a.ID, c.ID, employee.ErrManagerCycle},
		{"unknown", a.ID, "99999999-9999-9999-9999-999999999999", employee.ErrManagerNotFound},
		{"malformed", a.ID, "nope", employee.ErrInvalidID},
	}

	for _, tc := range cases {
		_, err := f.employees.UpdateEmployee(adminCtx(), employee.UpdateEmployeeInput{ID: tc.target, ManagerID: ptr(tc.managerID), ManagerIDSet: true})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestService_DeactivateEmployee(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	eve := f.createEmployee(t, "eve", "employee", nil)

	if _, err := f.employees.DeactivateEmployee(sessionCtx(access.RoleEmployee, eve.ID), employee.DeactivateEmployeeInput{ID: eve.ID}); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	got, err := f.employees.DeactivateEmployee(adminCtx(), employee.DeactivateEmployeeInput{ID: eve.ID})
	if err != nil {
		t.Fatalf("DeactivateEmployee returned error: %v", err)
	}
	if got.Status != employee.StatusInactive {
		t.Fatalf("expected INACTIVE, got %s", got.Status)
	}

	// INACTIVE でも本人の基本情報は更新できます。
	if _, err := f.employees.UpdateEmployee(sessionCtx(access.RoleEmployee, eve.ID), employee.UpdateEmployeeInput{ID: eve.ID, LastName: ptr("Renamed")}); err != nil {
		t.Fatalf("expected self update of inactive employee to succeed, got %v", err)
	}

	if _, err := f.employees.DeactivateEmployee(adminCtx(), employee.DeactivateEmployeeInput{ID: "99999999-9999-9999-9999-999999999999"}); !errors.Is(err, employee.ErrEmployeeNotFound) {
		t.Fatalf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestService_GetEmployee_InvalidID(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	if _, err := f.employees.GetEmployee(adminCtx(), employee.GetEmployeeInput{ID: "abc"}); !errors.Is(err, employee.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}
