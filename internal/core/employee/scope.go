package employee

import (
	"context"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Scope はセッションが参照できる社員の述語を返します。
//
// EMPLOYEE は本人のみ、MANAGER は本人と直属の部下と管理部署の所属者、HRADMIN はすべてです。
// 社員に紐づかないセッションと未知のロールはどの行にも一致しません。
func Scope(ctx context.Context, s access.Session, departments DepartmentDirectory) (query.Expr, error) {
	switch s.Role {
	case access.RoleHRAdmin:
		return query.All(), nil
	case access.RoleManager:
		self, ok := s.LinkedEmployeeID()
		if !ok {
			return query.None(), nil
		}
		managed, err := departments.ListIDsByManager(ctx, self)
		if err != nil {
			return nil, err
		}
		return query.Disj(
			query.IDs(self),
			query.Eq(FieldManagerID, self),
			query.Has(RelMemberships, query.In(FieldMembershipDepartmentID, managed...)),
		), nil
	case access.RoleEmployee:
		self, ok := s.LinkedEmployeeID()
		if !ok {
			return query.None(), nil
		}
		return query.IDs(self), nil
	default:
		return query.None(), nil
	}
}
