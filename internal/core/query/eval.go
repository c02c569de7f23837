package query

import (
	"fmt"
	"strings"
)

// Record はメモリ上で述語を評価するための行の抽象です。
type Record interface {
	RecordID() string
	// Value は属性値を返します。NULL の場合は false を返します。
	Value(f Field) (string, bool)
	Related(rel Relation) []Record
}

// Eval は述語を行に対して評価します。
func Eval(e Expr, r Record) (bool, error) {
	switch v := e.(type) {
	case nil, MatchAll:
		return true, nil
	case MatchNone:
		return false, nil
	case MatchIDs:
		return contains(v.IDs, r.RecordID()), nil
	case Equals:
		got, ok := r.Value(v.Field)
		return ok && got == v.Value, nil
	case Contains:
		got, ok := r.Value(v.Field)
		return ok && strings.Contains(got, v.Value), nil
	case InSet:
		got, ok := r.Value(v.Field)
		return ok && contains(v.Values, got), nil
	case Exists:
		for _, rel := range r.Related(v.Relation) {
			matched, err := Eval(v.Where, rel)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	case And:
		for _, t := range v.Terms {
			matched, err := Eval(t, r)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	case Or:
		for _, t := range v.Terms {
			matched, err := Eval(t, r)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("query: unsupported expression %T", e)
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
