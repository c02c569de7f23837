package employee

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Filter は一覧取得時の絞り込み条件です。空の項目は条件に含めません。
type Filter struct {
	FirstName     string
	LastName      string
	Email         string
	Statuses      []string
	DepartmentIDs []string
	ManagerID     string
}

// Expr は絞り込み条件を述語に変換します。不正な状態値や ID はエラーです。
func (f Filter) Expr() (query.Expr, error) {
	terms := []query.Expr{
		query.Like(FieldFirstName, strings.TrimSpace(f.FirstName)),
		query.Like(FieldLastName, strings.TrimSpace(f.LastName)),
		query.Like(FieldEmail, strings.TrimSpace(f.Email)),
	}

	if statuses := query.Unique(f.Statuses); len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, raw := range statuses {
			st, err := ParseStatus(raw)
			if err != nil {
				return nil, err
			}
			values = append(values, string(st))
		}
		terms = append(terms, query.In(FieldStatus, values...))
	}

	if raw := query.Unique(f.DepartmentIDs); len(raw) > 0 {
		ids, err := normalizeIDs(raw)
		if err != nil {
			return nil, err
		}
		terms = append(terms, query.Has(RelMemberships, query.In(FieldMembershipDepartmentID, ids...)))
	}

	if raw := strings.TrimSpace(f.ManagerID); raw != "" {
		managerID, err := normalizeID(raw)
		if err != nil {
			return nil, err
		}
		terms = append(terms, query.Disj(
			query.Eq(FieldManagerID, managerID),
			query.Has(RelDepartments, query.Eq(FieldDepartmentManagerID, managerID)),
		))
	}

	return query.Conj(terms...), nil
}

func normalizeIDs(raw []string) ([]string, error) {
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		id, err := normalizeID(r)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return query.Unique(ids), nil
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := uuid.Parse(trimmed)
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}
