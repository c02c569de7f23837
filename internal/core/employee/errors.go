package employee

import "errors"

var (
	ErrInvalidID          = errors.New("employee: invalid id")
	ErrInvalidEmail       = errors.New("employee: invalid email")
	ErrInvalidLastName    = errors.New("employee: invalid last name")
	ErrInvalidFirstName   = errors.New("employee: invalid first name")
	ErrInvalidTelephone   = errors.New("employee: invalid telephone")
	ErrInvalidStatus      = errors.New("employee: invalid status")
	ErrEmployeeNotFound   = errors.New("employee: not found")
	ErrEmailAlreadyExists = errors.New("employee: email already exists")
	ErrDepartmentNotFound = errors.New("employee: department not found")
	ErrManagerNotFound    = errors.New("employee: manager not found")
	ErrManagerIsSelf      = errors.New("employee: manager cannot be the employee itself")
	ErrManagerCycle       = errors.New("employee: manager assignment creates a cycle")
	// ErrDefaultPasswordMissing は初期パスワードが設定されていない場合に返却されます。
	ErrDefaultPasswordMissing = errors.New("employee: default password not configured")
)
