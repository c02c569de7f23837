package department

import "errors"

var (
	// ErrDepartmentNotFound は部署が存在しない場合に返却されます。
	ErrDepartmentNotFound = errors.New("department: not found")
	// ErrNameAlreadyExists は部署名重複時に返却されます。
	ErrNameAlreadyExists = errors.New("department: name already exists")
	// ErrInvalidName は部署名が不正な場合に返却されます。
	ErrInvalidName = errors.New("department: invalid name")
	// ErrInvalidStatus はステータスが不正な場合に返却されます。
	ErrInvalidStatus = errors.New("department: invalid status")
	// ErrInvalidID は ID が不正な場合に返却されます。
	ErrInvalidID = errors.New("department: invalid id")
	// ErrManagerNotFound は責任者に指定された社員が存在しない場合に返却されます。
	ErrManagerNotFound = errors.New("department: manager not found")
	// ErrDepartmentNotEmpty は所属者がいる部署を削除しようとした場合に返却されます。
	ErrDepartmentNotEmpty = errors.New("department: department has members")
)
