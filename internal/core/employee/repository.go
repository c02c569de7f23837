package employee

import (
	"context"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Repository は社員永続化の抽象です。
type Repository interface {
	Create(ctx context.Context, employee *Employee) (*Employee, error)
	Update(ctx context.Context, employee *Employee) (*Employee, error)
	// FindByID は参照情報を含む社員を取得します。
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindByEmail(ctx context.Context, email string) (*Employee, error)
	// FindOne は述語に一致する社員を 1 件取得します。一致しなければ ErrEmployeeNotFound です。
	FindOne(ctx context.Context, where query.Expr) (*Employee, error)
	List(ctx context.Context, criteria ListCriteria) ([]*Employee, int, error)
	// LockForUpdate は更新完了まで社員行を排他ロックします。
	LockForUpdate(ctx context.Context, id string) error
	ReplaceDepartments(ctx context.Context, employeeID string, departmentIDs []string, at time.Time) error
	// ManagerChain は id から上長を辿った ID 列を返します（id 自身を含む）。
	ManagerChain(ctx context.Context, id string) ([]string, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// ListCriteria は一覧取得条件です。Sort が nil の場合は既定順です。
type ListCriteria struct {
	Where query.Expr
	Sort  *query.Sort
	Page  query.Page
}

// DepartmentDirectory は社員のスコープ判定と所属検証に必要な部署情報を提供します。
type DepartmentDirectory interface {
	ListIDsByManager(ctx context.Context, managerID string) ([]string, error)
	// MissingIDs は存在しない部署 ID を返します。
	MissingIDs(ctx context.Context, ids []string) ([]string, error)
}
