package account

import "errors"

var (
	// ErrAccountNotFound はアカウントが存在しない場合に返却されます。
	ErrAccountNotFound = errors.New("account: not found")
	// ErrEmailAlreadyExists はメールアドレス重複時に返却されます。
	ErrEmailAlreadyExists = errors.New("account: email already exists")
	// ErrInvalidEmail はメールアドレスが不正な場合に返却されます。
	ErrInvalidEmail = errors.New("account: invalid email")
	// ErrInvalidPassword はパスワードが不正な場合に返却されます。
	ErrInvalidPassword = errors.New("account: invalid password")
	ErrInvalidRole     = errors.New("account: invalid role")
)
