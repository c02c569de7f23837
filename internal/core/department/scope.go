package department

import (
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Scope はセッションが参照できる部署の述語を返します。
func Scope(s access.Session) query.Expr {
	switch s.Role {
	case access.RoleHRAdmin:
		return query.All()
	case access.RoleManager:
		self, ok := s.LinkedEmployeeID()
		if !ok {
			return query.None()
		}
		return query.Eq(FieldManagerID, self)
	case access.RoleEmployee:
		self, ok := s.LinkedEmployeeID()
		if !ok {
			return query.None()
		}
		return query.Has(RelMembers, query.Eq(FieldMemberEmployeeID, self))
	default:
		return query.None()
	}
}
