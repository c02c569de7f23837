package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	pgdb "github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/db/postgres"
)

const (
	uniqueViolationCode     = "23505"
	foreignKeyViolationCode = "23503"
	checkViolationCode      = "23514"
)

const employeeSelect = `
        SELECT e.id,
               e.first_name,
               e.last_name,
               e.telephone,
               e.email,
               e.status,
               e.manager_id,
               a.id,
               e.created_at,
               e.updated_at,
               m.id,
               m.first_name,
               m.last_name,
               (SELECT count(*) FROM employees r WHERE r.manager_id = e.id)
          FROM employees e
          LEFT JOIN employees m ON m.id = e.manager_id
          LEFT JOIN accounts a ON a.employee_id = e.id`

// EmployeeRepository は PostgreSQL を利用した社員永続化の実装です。
type EmployeeRepository struct {
	pool pgdb.Queryer
}

// NewEmployeeRepository は EmployeeRepository を生成します。
func NewEmployeeRepository(pool pgdb.Queryer) *EmployeeRepository {
	return &EmployeeRepository{pool: pool}
}

// Create は社員を新規作成します。
func (r *EmployeeRepository) Create(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var id string
	err := exec.QueryRow(ctx, `
        INSERT INTO employees (first_name, last_name, telephone, email, status, manager_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `,
		e.FirstName,
		e.LastName,
		e.Telephone,
		e.Email,
		string(e.Status),
		e.ManagerID,
		e.CreatedAt,
		e.UpdatedAt,
	).Scan(&id)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	return r.FindByID(ctx, id)
}

// Update は社員の基本情報を更新します。
func (r *EmployeeRepository) Update(ctx context.Context, e *employee.Employee) (*employee.Employee, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, `
        UPDATE employees
           SET first_name = $1,
               last_name = $2,
               telephone = $3,
               email = $4,
               status = $5,
               manager_id = $6,
               updated_at = $7
         WHERE id = $8
    `,
		e.FirstName,
		e.LastName,
		e.Telephone,
		e.Email,
		string(e.Status),
		e.ManagerID,
		e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return nil, employee.ErrEmployeeNotFound
	}
	return r.FindByID(ctx, e.ID)
}

// FindByID は参照情報を含む社員を取得します。
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	return r.FindOne(ctx, query.IDs(id))
}

// FindByEmail はメールアドレスで社員を取得します。
func (r *EmployeeRepository) FindByEmail(ctx context.Context, email string) (*employee.Employee, error) {
	return r.FindOne(ctx, query.Eq(employee.FieldEmail, email))
}

// EmailInUse はメールアドレスが社員に使用されているかを返します。
func (r *EmployeeRepository) EmailInUse(ctx context.Context, email string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var ok bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE email = $1)`, email).Scan(&ok); err != nil {
		return false, translateEmployeePgError(err)
	}
	return ok, nil
}

// FindOne は述語に一致する社員を ID 順で 1 件取得します。
func (r *EmployeeRepository) FindOne(ctx context.Context, where query.Expr) (*employee.Employee, error) {
	b := &sqlBuilder{}
	cond, err := b.where(where, employeeTable("e"))
	if err != nil {
		return nil, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, employeeSelect+`
         WHERE `+cond+`
         ORDER BY e.id
         LIMIT 1
    `, b.args...)

	found, err := scanEmployee(row)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	if err := r.attachDepartments(ctx, exec, []*employee.Employee{found}); err != nil {
		return nil, err
	}
	return found, nil
}

// List は述語に一致する社員を並び替えてページ単位で返します。
func (r *EmployeeRepository) List(ctx context.Context, criteria employee.ListCriteria) ([]*employee.Employee, int, error) {
	b := &sqlBuilder{}
	cond, err := b.where(criteria.Where, employeeTable("e"))
	if err != nil {
		return nil, 0, err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)

	var total int
	if err := exec.QueryRow(ctx, `SELECT count(*) FROM employees e WHERE `+cond, b.args...).Scan(&total); err != nil {
		return nil, 0, translateEmployeePgError(err)
	}

	employees := make([]*employee.Employee, 0, criteria.Page.Limit())
	if total == 0 || criteria.Page.Offset() >= total {
		return employees, total, nil
	}

	limitPlaceholder := b.placeholder(criteria.Page.Limit())
	offsetPlaceholder := b.placeholder(criteria.Page.Offset())

	sql := employeeSelect + `
         WHERE ` + cond + employeeOrderBy(criteria.Sort) + `
         LIMIT ` + limitPlaceholder + `
        OFFSET ` + offsetPlaceholder

	rows, err := exec.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, 0, translateEmployeePgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, 0, translateEmployeePgError(err)
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, translateEmployeePgError(err)
	}
	rows.Close()

	if err := r.attachDepartments(ctx, exec, employees); err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

// LockForUpdate は社員行を SELECT ... FOR UPDATE でロックします。
func (r *EmployeeRepository) LockForUpdate(ctx context.Context, id string) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var locked string
	if err := exec.QueryRow(ctx, `SELECT id FROM employees WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		return translateEmployeePgError(err)
	}
	return nil
}

// ReplaceDepartments は社員行をロックしたうえで所属をすべて削除し、指定された部署で作り直します。
func (r *EmployeeRepository) ReplaceDepartments(ctx context.Context, employeeID string, departmentIDs []string, at time.Time) error {
	if err := r.LockForUpdate(ctx, employeeID); err != nil {
		return err
	}

	exec := pgdb.QueryerFromContext(ctx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM employee_departments WHERE employee_id = $1`, employeeID); err != nil {
		return translateEmployeePgError(err)
	}
	if len(departmentIDs) == 0 {
		return nil
	}

	if _, err := exec.Exec(ctx, `
        INSERT INTO employee_departments (employee_id, department_id, created_at)
        SELECT $1, d, $3
          FROM unnest($2::uuid[]) AS d
    `, employeeID, departmentIDs, at); err != nil {
		return translateEmployeePgError(err)
	}
	return nil
}

// ManagerChain は id から上長を辿った ID 列を返します。循環があれば一巡したところで止まります。
func (r *EmployeeRepository) ManagerChain(ctx context.Context, id string) ([]string, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	rows, err := exec.Query(ctx, `
        WITH RECURSIVE chain (id, manager_id, depth, path) AS (
            SELECT id, manager_id, 1, ARRAY[id]
              FROM employees
             WHERE id = $1
            UNION ALL
            SELECT e.id, e.manager_id, c.depth + 1, c.path || e.id
              FROM employees e
              JOIN chain c ON e.id = c.manager_id
             WHERE NOT e.id = ANY(c.path)
        )
        SELECT id FROM chain ORDER BY depth
    `, id)
	if err != nil {
		return nil, translateEmployeePgError(err)
	}
	defer rows.Close()

	var chain []string
	for rows.Next() {
		var current string
		if err := rows.Scan(&current); err != nil {
			return nil, err
		}
		chain = append(chain, current)
	}
	if err := rows.Err(); err != nil {
		return nil, translateEmployeePgError(err)
	}
	return chain, nil
}

// Exists は社員が存在するかを返します。
func (r *EmployeeRepository) Exists(ctx context.Context, id string) (bool, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	var ok bool
	if err := exec.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM employees WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, translateEmployeePgError(err)
	}
	return ok, nil
}

// attachDepartments はページ内の社員に所属部署の参照を部署名順で付与します。
func (r *EmployeeRepository) attachDepartments(ctx context.Context, exec pgdb.Queryer, employees []*employee.Employee) error {
	if len(employees) == 0 {
		return nil
	}

	ids := make([]string, 0, len(employees))
	byID := make(map[string]*employee.Employee, len(employees))
	for _, e := range employees {
		e.Departments = []employee.DepartmentRef{}
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}

	rows, err := exec.Query(ctx, `
        SELECT ed.employee_id, d.id, d.name
          FROM employee_departments ed
          JOIN departments d ON d.id = ed.department_id
         WHERE ed.employee_id = ANY($1)
         ORDER BY d.name COLLATE "C", d.id
    `, ids)
	if err != nil {
		return translateEmployeePgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var employeeID string
		var ref employee.DepartmentRef
		if err := rows.Scan(&employeeID, &ref.ID, &ref.Name); err != nil {
			return err
		}
		if e, ok := byID[employeeID]; ok {
			e.Departments = append(e.Departments, ref)
		}
	}
	return translateEmployeePgError(rows.Err())
}

func employeeOrderBy(sort *query.Sort) string {
	var keys []string
	if sort != nil {
		dir := direction(sort)
		switch sort.Key {
		case employee.SortFirstName:
			keys = []string{`e.first_name COLLATE "C" ` + dir}
		case employee.SortLastName:
			keys = []string{`e.last_name COLLATE "C" ` + dir}
		case employee.SortEmail:
			keys = []string{`e.email COLLATE "C" ` + dir}
		case employee.SortStatus:
			keys = []string{"e.status " + dir}
		case employee.SortCreatedAt:
			keys = []string{"e.created_at " + dir}
		case employee.SortManager:
			keys = []string{
				`m.last_name COLLATE "C" ` + dir + " NULLS LAST",
				`m.first_name COLLATE "C" ` + dir + " NULLS LAST",
			}
		case employee.SortDepartments:
			keys = []string{"(SELECT count(*) FROM employee_departments x WHERE x.employee_id = e.id) " + dir}
		case employee.SortReports:
			keys = []string{"(SELECT count(*) FROM employees x WHERE x.manager_id = e.id) " + dir}
		}
	}
	return orderBy(keys, []string{`e.last_name COLLATE "C" ASC`, `e.first_name COLLATE "C" ASC`}, "e.id")
}

func scanEmployee(row pgx.Row) (*employee.Employee, error) {
	var (
		e            employee.Employee
		status       string
		managerID    *string
		accountID    *string
		refID        *string
		refFirstName *string
		refLastName  *string
	)

	if err := row.Scan(
		&e.ID,
		&e.FirstName,
		&e.LastName,
		&e.Telephone,
		&e.Email,
		&status,
		&managerID,
		&accountID,
		&e.CreatedAt,
		&e.UpdatedAt,
		&refID,
		&refFirstName,
		&refLastName,
		&e.ReportCount,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, employee.ErrEmployeeNotFound
		}
		return nil, err
	}

	e.Status = employee.Status(status)
	e.ManagerID = managerID
	e.AccountID = accountID
	if refID != nil {
		e.Manager = &employee.ManagerRef{ID: *refID, FirstName: deref(refFirstName), LastName: deref(refLastName)}
	}
	return &e, nil
}

func translateEmployeePgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return employee.ErrEmployeeNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			return employee.ErrEmailAlreadyExists
		case foreignKeyViolationCode:
			switch pgErr.ConstraintName {
			case "employees_manager_id_fkey":
				return employee.ErrManagerNotFound
			case "employee_departments_department_id_fkey":
				return employee.ErrDepartmentNotFound
			case "employee_departments_employee_id_fkey":
				return employee.ErrEmployeeNotFound
			default:
				return err
			}
		case checkViolationCode:
			switch pgErr.ConstraintName {
			case "employees_manager_not_self":
				return employee.ErrManagerIsSelf
			case "employees_status_check":
				return employee.ErrInvalidStatus
			default:
				return err
			}
		}
	}

	return err
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
