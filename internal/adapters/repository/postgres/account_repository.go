package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	pgdb "github.com/ogurasousui/codex-grpc-org-rbac/internal/platform/db/postgres"
)

// AccountRepository は PostgreSQL を利用したログインアカウント永続化の実装です。
type AccountRepository struct {
	pool pgdb.Queryer
}

// NewAccountRepository は AccountRepository を生成します。
func NewAccountRepository(pool pgdb.Queryer) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create はアカウントを新規作成します。
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) (*account.Account, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        INSERT INTO accounts (email, password_hash, role, employee_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, email, password_hash, role, employee_id, created_at, updated_at
    `, a.Email, a.PasswordHash, string(a.Role), a.EmployeeID, a.CreatedAt, a.UpdatedAt)

	created, err := scanAccount(row)
	if err != nil {
		return nil, translateAccountPgError(err)
	}
	return created, nil
}

// FindByID は ID でアカウントを取得します。
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return r.findOne(ctx, "id", id)
}

// FindByEmail はメールアドレスでアカウントを取得します。
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.findOne(ctx, "email", email)
}

// FindByEmployeeID は社員に紐づくアカウントを取得します。
func (r *AccountRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*account.Account, error) {
	return r.findOne(ctx, "employee_id", employeeID)
}

// UpdateEmail はメールアドレスを更新します。
func (r *AccountRepository) UpdateEmail(ctx context.Context, id, email string, at time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET email = $1, updated_at = $2 WHERE id = $3`, email, at, id)
}

// UpdateRole はロールを更新します。
func (r *AccountRepository) UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) error {
	if !role.Valid() {
		return account.ErrInvalidRole
	}
	return r.exec(ctx, `UPDATE accounts SET role = $1, updated_at = $2 WHERE id = $3`, string(role), at, id)
}

// LinkEmployee はアカウントを社員に紐づけます。
func (r *AccountRepository) LinkEmployee(ctx context.Context, id, employeeID string, at time.Time) error {
	return r.exec(ctx, `UPDATE accounts SET employee_id = $1, updated_at = $2 WHERE id = $3`, employeeID, at, id)
}

// findOne の column は呼び出し側の定数のみを受け取ります。
func (r *AccountRepository) findOne(ctx context.Context, column, value string) (*account.Account, error) {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	row := exec.QueryRow(ctx, `
        SELECT id, email, password_hash, role, employee_id, created_at, updated_at
          FROM accounts
         WHERE `+column+` = $1
         LIMIT 1
    `, value)

	found, err := scanAccount(row)
	if err != nil {
		return nil, translateAccountPgError(err)
	}
	return found, nil
}

func (r *AccountRepository) exec(ctx context.Context, sql string, args ...any) error {
	exec := pgdb.QueryerFromContext(ctx, r.pool)
	tag, err := exec.Exec(ctx, sql, args...)
	if err != nil {
		return translateAccountPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		a          account.Account
		role       string
		employeeID *string
	)

	if err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &role, &employeeID, &a.CreatedAt, &a.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}

	a.Role = access.ParseRole(role)
	a.EmployeeID = employeeID
	return &a, nil
}

func translateAccountPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return account.ErrAccountNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case uniqueViolationCode:
			if pgErr.ConstraintName == "accounts_email_key" {
				return account.ErrEmailAlreadyExists
			}
			return err
		case foreignKeyViolationCode:
			return employee.ErrEmployeeNotFound
		case checkViolationCode:
			return account.ErrInvalidRole
		}
	}

	return err
}
