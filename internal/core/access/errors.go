package access

import "errors"

var (
	// ErrUnauthenticated はセッションが存在しない場合に返却されます。
	ErrUnauthenticated = errors.New("access: unauthenticated")
	// ErrForbidden はロールまたは所有者チェックに失敗した場合に返却されます。
	ErrForbidden = errors.New("access: forbidden")
)
