package department

import (
	"context"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Repository は部署永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, department *Department) (*Department, error)
	Update(ctx context.Context, department *Department) (*Department, error)
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Department, error)
	FindByName(ctx context.Context, name string) (*Department, error)
	FindOne(ctx context.Context, where query.Expr) (*Department, error)
	List(ctx context.Context, criteria ListCriteria) ([]*Department, int, error)
	CountMembers(ctx context.Context, id string) (int, error)
	ListIDsByManager(ctx context.Context, managerID string) ([]string, error)
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}

// ListCriteria は一覧取得条件です。Sort が nil の場合は既定順です。
type ListCriteria struct {
	Where query.Expr
	Sort  *query.Sort
	Page  query.Page
}

// EmployeeDirectory は責任者として指定された社員の存在確認を行います。
type EmployeeDirectory interface {
	Exists(ctx context.Context, id string) (bool, error)
}
