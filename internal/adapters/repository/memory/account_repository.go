package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
)

// AccountRepository はメモリ上のログインアカウントリポジトリです。
type AccountRepository struct {
	store *Store
}

// Create はアカウントを新規作成します。
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) (*account.Account, error) {
	var created *account.Account
	err := r.store.write(ctx, func(d *dataset) error {
		for _, row := range d.accounts {
			if row.Email == a.Email {
				return account.ErrEmailAlreadyExists
			}
		}
		row := *a
		row.ID = uuid.NewString()
		row.EmployeeID = cloneString(a.EmployeeID)
		d.accounts[row.ID] = row
		created = cloneAccount(row)
		return nil
	})
	return created, err
}

// FindByID は ID でアカウントを取得します。
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*account.Account, error) {
	return r.findOne(ctx, func(a account.Account) bool { return a.ID == id })
}

// FindByEmail はメールアドレスでアカウントを取得します。
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.findOne(ctx, func(a account.Account) bool { return a.Email == email })
}

// FindByEmployeeID は社員に紐づくアカウントを取得します。
func (r *AccountRepository) FindByEmployeeID(ctx context.Context, employeeID string) (*account.Account, error) {
	return r.findOne(ctx, func(a account.Account) bool {
		return a.EmployeeID != nil && *a.EmployeeID == employeeID
	})
}

// UpdateEmail はメールアドレスを更新します。
func (r *AccountRepository) UpdateEmail(ctx context.Context, id, email string, at time.Time) error {
	return r.update(ctx, id, func(d *dataset, a *account.Account) error {
		for _, row := range d.accounts {
			if row.ID != id && row.Email == email {
				return account.ErrEmailAlreadyExists
			}
		}
		a.Email = email
		a.UpdatedAt = at
		return nil
	})
}

// UpdateRole はロールを更新します。
func (r *AccountRepository) UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) error {
	return r.update(ctx, id, func(_ *dataset, a *account.Account) error {
		if !role.Valid() {
			return account.ErrInvalidRole
		}
		a.Role = role
		a.UpdatedAt = at
		return nil
	})
}

// LinkEmployee はアカウントを社員に紐づけます。
func (r *AccountRepository) LinkEmployee(ctx context.Context, id, employeeID string, at time.Time) error {
	return r.update(ctx, id, func(d *dataset, a *account.Account) error {
		if _, ok := d.employees[employeeID]; !ok {
			return employee.ErrEmployeeNotFound
		}
		a.EmployeeID = &employeeID
		a.UpdatedAt = at
		return nil
	})
}

func (r *AccountRepository) findOne(ctx context.Context, match func(account.Account) bool) (*account.Account, error) {
	var found *account.Account
	err := r.store.read(ctx, func(d *dataset) error {
		for _, row := range d.accounts {
			if match(row) {
				found = cloneAccount(row)
				return nil
			}
		}
		return account.ErrAccountNotFound
	})
	return found, err
}

func (r *AccountRepository) update(ctx context.Context, id string, fn func(d *dataset, a *account.Account) error) error {
	return r.store.write(ctx, func(d *dataset) error {
		row, ok := d.accounts[id]
		if !ok {
			return account.ErrAccountNotFound
		}
		if err := fn(d, &row); err != nil {
			return err
		}
		d.accounts[id] = row
		return nil
	})
}

func cloneAccount(a account.Account) *account.Account {
	a.EmployeeID = cloneString(a.EmployeeID)
	return &a
}
