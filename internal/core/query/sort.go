package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSortField は並び替え項目が許可されていない場合に返却されます。
	ErrInvalidSortField = errors.New("query: invalid sort field")
	// ErrInvalidSortDirection は並び替え方向が不正な場合に返却されます。
	ErrInvalidSortDirection = errors.New("query: invalid sort direction")
)

// Direction は並び替え方向です。
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey は並び替え項目の論理名です。
type SortKey string

// Sort は並び替え指定です。
type Sort struct {
	Key       SortKey
	Direction Direction
}

// SortInput は呼び出し元から受け取る未検証の並び替え指定です。
type SortInput struct {
	Field     string
	Direction string
}

// ResolveSort は入力を検証し Sort を返します。in が nil または項目が空の場合は nil（既定順）を返します。
func ResolveSort(in *SortInput, allowed ...SortKey) (*Sort, error) {
	if in == nil || strings.TrimSpace(in.Field) == "" {
		return nil, nil
	}

	key := SortKey(strings.TrimSpace(in.Field))
	if !containsKey(allowed, key) {
		return nil, fmt.Errorf("%q: %w", in.Field, ErrInvalidSortField)
	}

	dir, err := ParseDirection(in.Direction)
	if err != nil {
		return nil, err
	}

	return &Sort{Key: key, Direction: dir}, nil
}

// ParseDirection は方向文字列を解釈します。空文字列は昇順です。
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", fmt.Errorf("%q: %w", raw, ErrInvalidSortDirection)
	}
}

// Descending は降順かどうかを返します。
func (s Sort) Descending() bool {
	return s.Direction == Desc
}

func containsKey(keys []SortKey, key SortKey) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
