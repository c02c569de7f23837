package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	pgdb "github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/db/postgres"
)

const departmentSelect = `
        SELECT d.id,
               d.name,
               d.status,
               d.manager_id,
               d.created_at,
               d.updated_at,
               m.id,
               m.first_name,
               m.last_name,
               (SELECT count(*) FROM employee_departments ed WHERE ed.department_id = d.id)
          FROM departments d
          LEFT JOIN employees m ON m.id = d.manager_id`

// DepartmentRepository は PostgreSQL を利用した部署永続化の実装です。
type DepartmentRepository struct {
	pool pgdb.Queryer
}

// NewDepartmentRepository は DepartmentRepository を生成します。
func NewDepartmentRepository(pool pgdb.Queryer) *DepartmentRepository {
	return &DepartmentRepository{pool: pool}
}

// Create は部署を新規作成します。
func (r *DepartmentRepository) Create(ctx context.Context, d *department.Department) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var id string
	err := exec.QueryRow(ctx, `
        INSERT INTO departments (name, status, manager_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id
    `, d.Name, string(d.Status), d.ManagerID, d.CreatedAt, d.UpdatedAt).Scan(&id)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return r.FindByID(ctx, id)
}

// Update は部署情報を更新します。
func (r *DepartmentRepository) Update(ctx context.Context, d *department.Department) (*department.Department, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE departments
           SET name = $1,
               status = $2,
               manager_id = $3,
               updated_at = $4
         WHERE id = $5
    `, d.Name, string(d.Status), d.ManagerID, d.UpdatedAt, d.ID)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, department.ErrDepartmentNotFound
	}
	return r.FindByID(ctx, d.ID)
}

// Delete は部署を削除します。所属者がいる場合は ErrDepartmentNotEmpty です。
func (r *DepartmentRepository) Delete(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return translateDepartmentPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return department.ErrDepartmentNotFound
	}
	return nil
}

// FindByID は ID で部署を取得します。
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*department.Department, error) {
	return r.FindOne(ctx, query.IDs(id))
}

// FindByName は部署名で部署を取得します。
func (r *DepartmentRepository) FindByName(ctx context.Context, name string) (*department.Department, error) {
	return r.FindOne(ctx, query.Eq(department.FieldName, name))
}

// FindOne は述語に一致する部署を ID 順で 1 件取得します。
func (r *DepartmentRepository) FindOne(ctx context.Context, where query.Expr) (*department.Department, error) {
	b := &sqlBuilder{}
	cond, err := b.where(where, departmentTable("d"))
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, departmentSelect+`
         WHERE `+cond+`
         ORDER BY d.id
         LIMIT 1
    `, b.args...)

	found, err := scanDepartment(row)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return found, nil
}

// List は述語に一致する部署を並び替えてページ単位で返します。
func (r *DepartmentRepository) List(ctx context.Context, criteria department.ListCriteria) ([]*department.Department, int, error) {
	b := &sqlBuilder{}
	cond, err := b.where(criteria.Where, departmentTable("d"))
	if err != nil {
		return nil, 0, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var total int
	if err := exec.QueryRow(ctx, `SELECT count(*) FROM departments d WHERE `+cond, b.args...).Scan(&total); err != nil {
		return nil, 0, translateDepartmentPgError(err)
	}

	departments := make([]*department.Department, 0, criteria.Page.Limit())
	if total == 0 || criteria.Page.Offset() >= total {
		return departments, total, nil
	}

	limitPlaceholder := b.placeholder(criteria.Page.Limit())
	offsetPlaceholder := b.placeholder(criteria.Page.Offset())

	rows, err := exec.Query(ctx, departmentSelect+`
         WHERE `+cond+departmentOrderBy(criteria.Sort)+`
         LIMIT `+limitPlaceholder+`
        OFFSET `+offsetPlaceholder, b.args...)
	if err != nil {
		return nil, 0, translateDepartmentPgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, translateDepartmentPgError(err)
		}
		departments = append(departments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateDepartmentPgError(err)
	}
	return departments, total, nil
}

// CountMembers は部署の所属者数を返します。
func (r *DepartmentRepository) CountMembers(ctx context.Context, id string) (int, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var n int
	if err := exec.QueryRow(ctx, `SELECT count(*) FROM employee_departments WHERE department_id = $1`, id).Scan(&n); err != nil {
		return 0, translateDepartmentPgError(err)
	}
	return n, nil
}

// ListIDsByManager は社員が責任者を務める部署の ID を返します。
func (r *DepartmentRepository) ListIDsByManager(ctx context.Context, managerID string) ([]string, error) {
	return r.collectIDs(ctx, `SELECT id FROM departments WHERE manager_id = $1 ORDER BY id`, managerID)
}

// MissingIDs は ids のうち存在しない部署 ID を返します。
func (r *DepartmentRepository) MissingIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.collectIDs(ctx, `
        SELECT want.id::text
          FROM unnest($1::uuid[]) WITH ORDINALITY AS want (id, pos)
         WHERE NOT EXISTS (SELECT 1 FROM departments d WHERE d.id = want.id)
         ORDER BY want.pos
    `, ids)
}

func (r *DepartmentRepository) collectIDs(ctx context.Context, sql string, args ...any) ([]string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, translateDepartmentPgError(err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, translateDepartmentPgError(err)
	}
	return ids, nil
}

func departmentOrderBy(sort *query.Sort) string {
	var keys []string
	if sort != nil {
		dir := direction(sort)
		switch sort.Key {
		case department.SortName:
			keys = []string{`d.name COLLATE "C" ` + dir}
		case department.SortStatus:
			keys = []string{"d.status " + dir}
		case department.SortCreatedAt:
			keys = []string{"d.created_at " + dir}
		case department.SortManager:
			keys = []string{
				`m.last_name COLLATE "C" ` + dir + " NULLS LAST",
				`m.first_name COLLATE "C" ` + dir + " NULLS LAST",
			}
		}
	}
	return orderBy(keys, []string{`d.name COLLATE "C" ASC`}, "d.id")
}

func scanDepartment(row pgx.Row) (*department.Department, error) {
	var (
		d            department.Department
		status       string
		managerID    *string
		refID        *string
		refFirstName *string
		refLastName  *string
	)

	if err := row.Scan(
		&d.ID,
		&d.Name,
		&status,
		&managerID,
		&d.CreatedAt,
		&d.UpdatedAt,
		&refID,
		&refFirstName,
		&refLastName,
		&d.MemberCount,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, department.ErrDepartmentNotFound
		}
		return nil, err
	}

	d.Status = department.Status(status)
	d.ManagerID = managerID
	if refID != nil {
		d.Manager = &department.ManagerRef{ID: *refID, FirstName: deref(refFirstName), LastName: deref(refLastName)}
	}
	return &d, nil
}

func translateDepartmentPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return department.ErrDepartmentNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return department.ErrNameAlreadyExists
		case foreignKeyViolationCode:
			switch pgErr.ConstraintName {
			case "departments_manager_id_fkey":
				return department.ErrManagerNotFound
			case "employee_departments_department_id_fkey":
				return department.ErrDepartmentNotEmpty
			default:
				return err
			}
		case checkViolationCode:
			return department.ErrInvalidStatus
		}
	}

	return err
}
