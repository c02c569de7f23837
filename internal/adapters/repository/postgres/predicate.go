package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// sqlTable は述語の論理名を SQL の列に対応付けます。
type sqlTable struct {
	id        string
	columns   map[query.Field]string
	relations map[query.Relation]sqlRelation
}

// sqlRelation は alias を付けた関連先の FROM 句、親行との結合条件、関連先の列を返します。
type sqlRelation func(alias string, parent sqlTable) (from, link string, child sqlTable)

func employeeTable(alias string) sqlTable {
	return sqlTable{
		id: alias + ".id",
		columns: map[query.Field]string{
			employee.FieldFirstName: alias + ".first_name",
			employee.FieldLastName:  alias + ".last_name",
			employee.FieldEmail:     alias + ".email",
			employee.FieldStatus:    alias + ".status",
			employee.FieldManagerID: alias + ".manager_id",
		},
		relations: map[query.Relation]sqlRelation{
			employee.RelMemberships: func(a string, parent sqlTable) (string, string, sqlTable) {
				return "employee_departments " + a,
					a + ".employee_id = " + parent.id,
					sqlTable{columns: map[query.Field]string{
						employee.FieldMembershipDepartmentID: a + ".department_id",
					}}
			},
			employee.RelDepartments: func(a string, parent sqlTable) (string, string, sqlTable) {
				return "employee_departments " + a + " JOIN departments " + a + "d ON " + a + "d.id = " + a + ".department_id",
					a + ".employee_id = " + parent.id,
					sqlTable{id: a + "d.id", columns: map[query.Field]string{
						employee.FieldDepartmentManagerID: a + "d.manager_id",
					}}
			},
		},
	}
}

func departmentTable(alias string) sqlTable {
	return sqlTable{
		id: alias + ".id",
		columns: map[query.Field]string{
			department.FieldName:      alias + ".name",
			department.FieldStatus:    alias + ".status",
			department.FieldManagerID: alias + ".manager_id",
		},
		relations: map[query.Relation]sqlRelation{
			department.RelMembers: func(a string, parent sqlTable) (string, string, sqlTable) {
				return "employee_departments " + a,
					a + ".department_id = " + parent.id,
					sqlTable{columns: map[query.Field]string{
						department.FieldMemberEmployeeID: a + ".employee_id",
					}}
			},
		},
	}
}

// sqlBuilder は述語を WHERE 句に変換し、プレースホルダ引数を蓄積します。
type sqlBuilder struct {
	args    []any
	aliases int
}

func (b *sqlBuilder) placeholder(v any) string {
	b.args = append(b.args, v)
	return "$" + strconv.Itoa(len(b.args))
}

func (b *sqlBuilder) where(e query.Expr, t sqlTable) (string, error) {
	switch v := e.(type) {
	case nil, query.MatchAll:
		return "TRUE", nil
	case query.MatchNone:
		return "FALSE", nil
	case query.MatchIDs:
		if t.id == "" {
			return "", fmt.Errorf("postgres: relation has no id column")
		}
		return t.id + " = ANY(" + b.placeholder(v.IDs) + ")", nil
	case query.Equals:
		col, err := t.column(v.Field)
		if err != nil {
			return "", err
		}
		return col + " = " + b.placeholder(v.Value), nil
	case query.Contains:
		col, err := t.column(v.Field)
		if err != nil {
			return "", err
		}
		return "strpos(" + col + ", " + b.placeholder(v.Value) + ") > 0", nil
	case query.InSet:
		col, err := t.column(v.Field)
		if err != nil {
			return "", err
		}
		return col + " = ANY(" + b.placeholder(v.Values) + ")", nil
	case query.Exists:
		rel, ok := t.relations[v.Relation]
		if !ok {
			return "", fmt.Errorf("postgres: unknown relation %q", v.Relation)
		}
		b.aliases++
		from, link, child := rel("r"+strconv.Itoa(b.aliases), t)
		inner, err := b.where(v.Where, child)
		if err != nil {
			return "", err
		}
		return "EXISTS (SELECT 1 FROM " + from + " WHERE " + link + " AND " + inner + ")", nil
	case query.And:
		return b.join(v.Terms, " AND ", t)
	case query.Or:
		return b.join(v.Terms, " OR ", t)
	default:
		return "", fmt.Errorf("postgres: unsupported predicate %T", e)
	}
}

func (b *sqlBuilder) join(terms []query.Expr, sep string, t sqlTable) (string, error) {
	if len(terms) == 0 {
		if sep == " AND " {
			return "TRUE", nil
		}
		return "FALSE", nil
	}
	parts := make([]string, 0, len(terms))
	for _, term := range terms {
		sql, err := b.where(term, t)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (t sqlTable) column(f query.Field) (string, error) {
	col, ok := t.columns[f]
	if !ok {
		return "", fmt.Errorf("postgres: unknown field %q", f)
	}
	return col, nil
}

// orderBy は並び替え句を組み立てます。keys の後ろに defaults と ID が続きます。
func orderBy(keys []string, defaults []string, id string) string {
	parts := make([]string, 0, len(keys)+len(defaults)+1)
	parts = append(parts, keys...)
	parts = append(parts, defaults...)
	parts = append(parts, id+" ASC")
	return " ORDER BY " + strings.Join(parts, ", ")
}

func direction(sort *query.Sort) string {
	if sort.Descending() {
		return "DESC"
	}
	return "ASC"
}
