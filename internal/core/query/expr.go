// Package query は可視範囲とフィルタを表す述語木、並び順、ページングを提供します。
//
// 述語はストレージ非依存の値で、PostgreSQL アダプタは SQL に、メモリアダプタは Eval で評価します。
package query

import "strings"

// Field はエンティティ属性の論理名です。
type Field string

// Relation はエンティティから辿れる関連の論理名です。
type Relation string

// Expr は述語木のノードです。
type Expr interface {
	isExpr()
}

// MatchAll はすべての行に一致します。
type MatchAll struct{}

// MatchNone はどの行にも一致しません。
type MatchNone struct{}

// MatchIDs は ID が集合に含まれる行に一致します。
type MatchIDs struct {
	IDs []string
}

// Equals は属性値が一致する行に一致します。
type Equals struct {
	Field Field
	Value string
}

// Contains は属性値に部分文字列を含む行に一致します（大文字小文字を区別）。
type Contains struct {
	Field Field
	Value string
}

// InSet は属性値が集合に含まれる行に一致します。
type InSet struct {
	Field  Field
	Values []string
}

// Exists は関連先に条件を満たす行が 1 件以上ある行に一致します。
type Exists struct {
	Relation Relation
	Where    Expr
}

// And は論理積です。
type And struct {
	Terms []Expr
}

// Or は論理和です。
type Or struct {
	Terms []Expr
}

func (MatchAll) isExpr()  {}
func (MatchNone) isExpr() {}
func (MatchIDs) isExpr()  {}
func (Equals) isExpr()    {}
func (Contains) isExpr()  {}
func (InSet) isExpr()     {}
func (Exists) isExpr()    {}
func (And) isExpr()       {}
func (Or) isExpr()        {}

// All は MatchAll を返します。
func All() Expr { return MatchAll{} }

// None は MatchNone を返します。
func None() Expr { return MatchNone{} }

// IDs は ID 集合の述語を返します。空集合は None に縮退します。
func IDs(ids ...string) Expr {
	uniq := Unique(ids)
	if len(uniq) == 0 {
		return None()
	}
	return MatchIDs{IDs: uniq}
}

// Eq は等価比較の述語を返します。
func Eq(f Field, v string) Expr { return Equals{Field: f, Value: v} }

// Like は部分一致の述語を返します。空文字列は All に縮退します。
func Like(f Field, v string) Expr {
	if v == "" {
		return All()
	}
	return Contains{Field: f, Value: v}
}

// In は集合所属の述語を返します。空集合は None に縮退します。
func In(f Field, values ...string) Expr {
	uniq := Unique(values)
	if len(uniq) == 0 {
		return None()
	}
	return InSet{Field: f, Values: uniq}
}

// Has は関連先の存在条件を返します。where が None なら None に縮退します。
func Has(rel Relation, where Expr) Expr {
	if where == nil {
		where = All()
	}
	if _, ok := where.(MatchNone); ok {
		return None()
	}
	return Exists{Relation: rel, Where: where}
}

// Conj は論理積を組み立てます。All は取り除かれ、None を含めば None になります。
func Conj(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil, MatchAll:
			continue
		case MatchNone:
			return None()
		case And:
			flat = append(flat, v.Terms...)
		default:
			flat = append(flat, v)
		}
	}
	switch len(flat) {
	case 0:
		return All()
	case 1:
		return flat[0]
	default:
		return And{Terms: flat}
	}
}

// Disj は論理和を組み立てます。None は取り除かれ、All を含めば All になります。
func Disj(terms ...Expr) Expr {
	flat := make([]Expr, 0, len(terms))
	for _, t := range terms {
		switch v := t.(type) {
		case nil, MatchNone:
			continue
		case MatchAll:
			return All()
		case Or:
			flat = append(flat, v.Terms...)
		default:
			flat = append(flat, v)
		}
	}
	switch len(flat) {
	case 0:
		return None()
	case 1:
		return flat[0]
	default:
		return Or{Terms: flat}
	}
}

// IsNone は述語がどの行にも一致しないことが静的に分かるかを返します。
func IsNone(e Expr) bool {
	_, ok := e.(MatchNone)
	return ok
}

// Unique は空白要素を除き、順序を保って重複を取り除きます。
func Unique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
