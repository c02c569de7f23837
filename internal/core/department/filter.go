package department

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Filter は一覧取得時の絞り込み条件です。
type Filter struct {
	Name      string
	Statuses  []string
	ManagerID string
}

// Expr は絞り込み条件を述語に変換します。
func (f Filter) Expr() (query.Expr, error) {
	terms := []query.Expr{query.Like(FieldName, strings.TrimSpace(f.Name))}

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

	if raw := strings.TrimSpace(f.ManagerID); raw != "" {
		id, err := normalizeID(raw)
		if err != nil {
			return nil, err
		}
		terms = append(terms, query.Eq(FieldManagerID, id))
	}

	return query.Conj(terms...), nil
}

func normalizeID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrInvalidID
	}
	return parsed.String(), nil
}
