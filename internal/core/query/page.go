package query

import "math"

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
	// MaxPageNumber は Offset が int に収まる最大のページ番号です。
	MaxPageNumber = math.MaxInt / MaxPageSize
)

// Page は 1 始まりのページ指定です。
type Page struct {
	Number int
	Size   int
}

// NewPage はページ番号とページサイズを許容範囲に丸めます。
func NewPage(number, size int) Page {
	switch {
	case number < 1:
		number = 1
	case number > MaxPageNumber:
		number = MaxPageNumber
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset は先頭から読み飛ばす件数を返します。
func (p Page) Offset() int {
	if p.Number < 1 || p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Limit は取得件数を返します。
func (p Page) Limit() int {
	return p.Size
}

// Window はメモリ上のスライスからページ範囲を切り出します。
func Window[T any](items []T, p Page) []T {
	start := p.Offset()
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := start + p.Limit()
	if end > len(items) || end < start {
		end = len(items)
	}
	return items[start:end]
}
