package account

import (
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
)

// Account はログインアカウントです。社員とは 1:1 で紐づきますが、管理者は紐づかないこともあります。
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	Role         access.Role
	EmployeeID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
