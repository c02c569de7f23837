package account

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
)

// Repository はログインアカウント永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, account *Account) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByEmployeeID(ctx context.Context, employeeID string) (*Account, error)
	UpdateEmail(ctx context.Context, id, email string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role access.Role, at time.Time) error
	LinkEmployee(ctx context.Context, id, employeeID string, at time.Time) error
}
