package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// DepartmentRepository はメモリ上の部署リポジトリです。
type DepartmentRepository struct {
	store *Store
}

// Create は部署を新規作成します。
func (r *DepartmentRepository) Create(ctx context.Context, dept *department.Department) (*department.Department, error) {
	var created *department.Department
	err := r.store.write(ctx, func(d *dataset) error {
		if err := d.checkDepartment(dept, ""); err != nil {
			return err
		}
		row := baseDepartment(dept)
		row.ID = uuid.NewString()
		d.departments[row.ID] = row
		created = d.departmentView(row)
		return nil
	})
	return created, err
}

// Update は部署を更新します。
func (r *DepartmentRepository) Update(ctx context.Context, dept *department.Department) (*department.Department, error) {
	var updated *department.Department
	err := r.store.write(ctx, func(d *dataset) error {
		existing, ok := d.departments[dept.ID]
		if !ok {
			return department.ErrDepartmentNotFound
		}
		if err := d.checkDepartment(dept, dept.ID); err != nil {
			return err
		}
		row := baseDepartment(dept)
		row.CreatedAt = existing.CreatedAt
		d.departments[row.ID] = row
		updated = d.departmentView(row)
		return nil
	})
	return updated, err
}

// Delete は部署を削除します。所属行が残っている場合は削除しません。
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	return r.store.write(ctx, func(d *dataset) error {
		if _, ok := d.departments[id]; !ok {
			return department.ErrDepartmentNotFound
		}
		if d.memberCount(id) > 0 {
			return department.ErrDepartmentNotEmpty
		}
		delete(d.departments, id)
		return nil
	})
}

// FindByID は部署を取得します。
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*department.Department, error) {
	var found *department.Department
	err := r.store.read(ctx, func(d *dataset) error {
		row, ok := d.departments[id]
		if !ok {
			return department.ErrDepartmentNotFound
		}
		found = d.departmentView(row)
		return nil
	})
	return found, err
}

// FindByName は部署名で部署を取得します。
func (r *DepartmentRepository) FindByName(ctx context.Context, name string) (*department.Department, error) {
	var found *department.Department
	err := r.store.read(ctx, func(d *dataset) error {
		for _, row := range d.departments {
			if row.Name == name {
				found = d.departmentView(row)
				return nil
			}
		}
		return department.ErrDepartmentNotFound
	})
	return found, err
}

// FindOne は述語に一致する部署を ID 順で 1 件取得します。
func (r *DepartmentRepository) FindOne(ctx context.Context, where query.Expr) (*department.Department, error) {
	var found *department.Department
	err := r.store.read(ctx, func(d *dataset) error {
		rows, err := d.matchDepartments(where)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return department.ErrDepartmentNotFound
		}
		slices.SortFunc(rows, func(a, b department.Department) int { return cmp.Compare(a.ID, b.ID) })
		found = d.departmentView(rows[0])
		return nil
	})
	return found, err
}

// List は述語に一致する部署を並び替えてページ単位で返します。
func (r *DepartmentRepository) List(ctx context.Context, criteria department.ListCriteria) ([]*department.Department, int, error) {
	var (
		items []*department.Department
		total int
	)
	err := r.store.read(ctx, func(d *dataset) error {
		rows, err := d.matchDepartments(criteria.Where)
		if err != nil {
			return err
		}
		views := make([]*department.Department, 0, len(rows))
		for _, row := range rows {
			views = append(views, d.departmentView(row))
		}
		slices.SortStableFunc(views, departmentComparator(criteria.Sort))

		total = len(views)
		items = query.Window(views, criteria.Page)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// CountMembers は部署の所属者数を返します。
func (r *DepartmentRepository) CountMembers(ctx context.Context, id string) (int, error) {
	var n int
	err := r.store.read(ctx, func(d *dataset) error {
		n = d.memberCount(id)
		return nil
	})
	return n, err
}

// ListIDsByManager は指定社員が責任者の部署 ID を返します。
func (r *DepartmentRepository) ListIDsByManager(ctx context.Context, managerID string) ([]string, error) {
	var ids []string
	err := r.store.read(ctx, func(d *dataset) error {
		for _, row := range d.departments {
			if row.ManagerID != nil && *row.ManagerID == managerID {
				ids = append(ids, row.ID)
			}
		}
		slices.Sort(ids)
		return nil
	})
	return ids, err
}

// MissingIDs は存在しない部署 ID を入力順で返します。
func (r *DepartmentRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	var missing []string
	err := r.store.read(ctx, func(d *dataset) error {
		for _, id := range ids {
			if _, ok := d.departments[id]; !ok {
				missing = append(missing, id)
			}
		}
		return nil
	})
	return missing, err
}

func (d *dataset) checkDepartment(dept *department.Department, selfID string) error {
	for _, row := range d.departments {
		if row.ID != selfID && row.Name == dept.Name {
			return department.ErrNameAlreadyExists
		}
	}
	if dept.ManagerID != nil {
		if _, ok := d.employees[*dept.ManagerID]; !ok {
			return department.ErrManagerNotFound
		}
	}
	return nil
}

func (d *dataset) matchDepartments(where query.Expr) ([]department.Department, error) {
	var out []department.Department
	for _, row := range d.departments {
		ok, err := query.Eval(where, departmentRecord{d: d, dept: row})
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (d *dataset) memberCount(departmentID string) int {
	n := 0
	for key := range d.memberships {
		if key.DepartmentID == departmentID {
			n++
		}
	}
	return n
}

func (d *dataset) departmentView(row department.Department) *department.Department {
	view := row
	view.ManagerID = cloneString(row.ManagerID)
	if row.ManagerID != nil {
		if m, ok := d.employees[*row.ManagerID]; ok {
			view.Manager = &department.ManagerRef{ID: m.ID, FirstName: m.FirstName, LastName: m.LastName}
		}
	}
	view.MemberCount = d.memberCount(row.ID)
	return &view
}

func baseDepartment(dept *department.Department) department.Department {
	return department.Department{
		ID:        dept.ID,
		Name:      dept.Name,
		Status:    dept.Status,
		ManagerID: cloneString(dept.ManagerID),
		CreatedAt: dept.CreatedAt,
		UpdatedAt: dept.UpdatedAt,
	}
}

// departmentComparator は指定項目、部署名、ID の順で比較します。
func departmentComparator(sort *query.Sort) func(a, b *department.Department) int {
	return func(a, b *department.Department) int {
		primary := 0
		if sort != nil {
			primary = compareDepartmentKey(sort, a, b)
		}
		return cmp.Or(primary, cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	}
}

func compareDepartmentKey(sort *query.Sort, a, b *department.Department) int {
	switch sort.Key {
	case department.SortManager:
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
	case department.SortName:
		return directed(sort, cmp.Compare(a.Name, b.Name))
	case department.SortStatus:
		return directed(sort, cmp.Compare(a.Status, b.Status))
	case department.SortCreatedAt:
		return directed(sort, a.CreatedAt.Compare(b.CreatedAt))
	default:
		return 0
	}
}
