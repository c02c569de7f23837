package memory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// EmployeeRepository はメモリ上の社員リポジトリです。
type EmployeeRepository struct {
	store *Store
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	var created *employee.Employee
	err := r.store.write(ctx, func(d *dataset) error {
		if err := d.checkEmployee(e, ""); err != nil {
			return err
		}
		row := baseEmployee(e)
		row.ID = uuid.NewString()
		d.employees[row.ID] = row
		created = d.employeeView(row)
		return nil
	})
	return created, err
}

// Update は社員の基本情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	var updated *employee.Employee
	err := r.store.write(ctx, func(d *dataset) error {
		existing, ok := d.employees[e.ID]
		if !ok {
			return employee.ErrEmployeeNotFound
		}
		if err := d.checkEmployee(e, e.ID); err != nil {
			return err
		}
		row := baseEmployee(e)
		row.CreatedAt = existing.CreatedAt
		if row.AccountID == nil {
			row.AccountID = cloneString(existing.AccountID)
		}
		d.employees[row.ID] = row
		updated = d.employeeView(row)
		return nil
	})
	return updated, err
}

// FindByID は参照情報を含む社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	var found *employee.Employee
	err := r.store.read(ctx, func(d *dataset) error {
		row, ok := d.employees[id]
		if !ok {
			return employee.ErrEmployeeNotFound
		}
		found = d.employeeView(row)
		return nil
	})
	return found, err
}

// FindByEmail はメールアドレスで社員を取得します。
func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*employee.Employee, error) {
	var found *employee.Employee
	err := r.store.read(ctx, func(d *dataset) error {
		for _, row := range d.employees {
			if row.Email == email {
				found = d.employeeView(row)
				return nil
			}
		}
		return employee.ErrEmployeeNotFound
	})
	return found, err
}

// EmailInUse はメールアドレスが社員に使用されているかを返します。
func (r *EmployeeRepository) EmailInUse(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return false, nil
	default:
		return false, err
	}
}

// FindOne は述語に一致する社員を ID 順で 1 件取得します。
func (r *EmployeeRepository) FindOne(ctx context.Context, where query.Expr) (*employee.Employee, error) {
	var found *employee.Employee
	err := r.store.read(ctx, func(d *dataset) error {
		rows, err := d.matchEmployees(where)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return employee.ErrEmployeeNotFound
		}
		slices.SortFunc(rows, func(a, b employee.Employee) int { return cmp.Compare(a.ID, b.ID) })
		found = d.employeeView(rows[0])
		return nil
	})
	return found, err
}

// List は述語に一致する社員を並び替えてページ単位で返します。
func (r *EmployeeRepository) List(ctx context.Context, criteria employee.ListCriteria) ([]*employee.Employee, int, error) {
	var (
		items []*employee.Employee
		total int
	)
	err := r.store.read(ctx, func(d *dataset) error {
		rows, err := d.matchEmployees(criteria.Where)
		if err != nil {
			return err
		}
		views := make([]*employee.Employee, 0, len(rows))
		for _, row := range rows {
			views = append(views, d.employeeView(row))
		}
		slices.SortStableFunc(views, employeeComparator(criteria.Sort))

		total = len(views)
		items = query.Window(views, criteria.Page)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// LockForUpdate は社員の存在を確認します。書き込みはストア全体の排他ロックで直列化されています。
func (r *EmployeeRepository) LockForUpdate(ctx context.Context, id string) error {
	return r.store.write(ctx, func(d *dataset) error {
		if _, ok := d.employees[id]; !ok {
			return employee.ErrEmployeeNotFound
		}
		return nil
	})
}

// ReplaceDepartments は社員の所属をすべて削除し、指定された部署で作り直します。
func (r *EmployeeRepository) ReplaceDepartments(ctx context.Context, employeeID string, departmentIDs []string, at time.Time) error {
	return r.store.write(ctx, func(d *dataset) error {
		if _, ok := d.employees[employeeID]; !ok {
			return employee.ErrEmployeeNotFound
		}
		for _, id := range departmentIDs {
			if _, ok := d.departments[id]; !ok {
				return employee.ErrDepartmentNotFound
			}
		}
		for key := range d.memberships {
			if key.EmployeeID == employeeID {
				delete(d.memberships, key)
			}
		}
		for _, id := range departmentIDs {
			d.memberships[membershipKey{EmployeeID: employeeID, DepartmentID: id}] = at
		}
		return nil
	})
}

// ManagerChain は id から上長を辿った ID 列を返します。循環があれば一巡したところで止まります。
func (r *EmployeeRepository) ManagerChain(ctx context.Context, id string) ([]string, error) {
	var chain []string
	err := r.store.read(ctx, func(d *dataset) error {
		seen := make(map[string]struct{})
		current := id
		for {
			row, ok := d.employees[current]
			if !ok {
				return nil
			}
			if _, dup := seen[current]; dup {
				return nil
			}
			seen[current] = struct{}{}
			chain = append(chain, current)
			if row.ManagerID == nil {
				return nil
			}
			current = *row.ManagerID
		}
	})
	return chain, err
}

// Exists は社員が存在するかを返します。
func (r *EmployeeRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.store.read(ctx, func(d *dataset) error {
		_, ok = d.employees[id]
		return nil
	})
	return ok, err
}

func (d *dataset) checkEmployee(e *employee.Employee, selfID string) error {
	for _, row := range d.employees {
		if row.ID != selfID && row.Email == e.Email {
			return employee.ErrEmailAlreadyExists
		}
	}
	if e.ManagerID != nil {
		if _, ok := d.employees[*e.ManagerID]; !ok {
			return employee.ErrManagerNotFound
		}
	}
	return nil
}

func (d *dataset) matchEmployees(where query.Expr) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, row := range d.employees {
		ok, err := query.Eval(where, employeeRecord{d: d, e: row})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

// employeeView は保存行に上長、所属部署、部下数を付与した読み取りモデルを返します。
func (d *dataset) employeeView(row employee.Employee) *employee.Employee {
	view := row
	view.ManagerID = cloneString(row.ManagerID)
	view.AccountID = cloneString(row.AccountID)

	if row.ManagerID != nil {
		if m, ok := d.employees[*row.ManagerID]; ok {
			view.Manager = &employee.ManagerRef{ID: m.ID, FirstName: m.FirstName, LastName: m.LastName}
		}
	}

	view.Departments = []employee.DepartmentRef{}
	for key := range d.memberships {
		if key.EmployeeID != row.ID {
			continue
		}
		if dept, ok := d.departments[key.DepartmentID]; ok {
			view.Departments = append(view.Departments, employee.DepartmentRef{ID: dept.ID, Name: dept.Name})
		}
	}
	slices.SortFunc(view.Departments, func(a, b employee.DepartmentRef) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})

	for _, other := range d.employees {
		if other.ManagerID != nil && *other.ManagerID == row.ID {
			view.ReportCount++
		}
	}
	return &view
}

func baseEmployee(e *employee.Employee) employee.Employee {
	return employee.Employee{
		ID:        e.ID,
		FirstName: e.FirstName,
		LastName:  e.LastName,
		Telephone: e.Telephone,
		Email:     e.Email,
		Status:    e.Status,
		ManagerID: cloneString(e.ManagerID),
		AccountID: cloneString(e.AccountID),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

// employeeComparator は指定項目、既定順（姓、名）、ID の順で比較します。
func employeeComparator(sort *query.Sort) func(a, b *employee.Employee) int {
	byDefault := func(a, b *employee.Employee) int {
		return cmp.Or(cmp.Compare(a.LastName, b.LastName), cmp.Compare(a.FirstName, b.FirstName))
	}
	return func(a, b *employee.Employee) int {
		primary := 0
		if sort != nil {
			primary = compareEmployeeKey(sort, a, b)
		}
		return cmp.Or(primary, byDefault(a, b), cmp.Compare(a.ID, b.ID))
	}
}

func compareEmployeeKey(sort *query.Sort, a, b *employee.Employee) int {
	if sort.Key == employee.SortManager {
		// 上長のいない社員は方向に関わらず末尾です。
		switch {
		case a.Manager == nil && b.Manager == nil:
			return 0
		case a.Manager == nil:
			return 1
		case b.Manager == nil:
			return -1
		}
		return directed(sort, cmp.Or(
			cmp.Compare(a.Manager.LastName, b.Manager.LastName),
			cmp.Compare(a.Manager.FirstName, b.Manager.FirstName),
		))
	}

	var c int
	switch sort.Key {
	case employee.SortFirstName:
		c = cmp.Compare(a.FirstName, b.FirstName)
	case employee.SortLastName:
		c = cmp.Compare(a.LastName, b.LastName)
	case employee.SortEmail:
		c = cmp.Compare(a.Email, b.Email)
	case employee.SortStatus:
		c = cmp.Compare(a.Status, b.Status)
	case employee.SortCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	case employee.SortDepartments:
		c = cmp.Compare(len(a.Departments), len(b.Departments))
	case employee.SortReports:
		c = cmp.Compare(a.ReportCount, b.ReportCount)
	}
	return directed(sort, c)
}

func directed(sort *query.Sort, c int) int {
	if sort.Descending() {
		return -c
	}
	return c
}
