package handler

import (
	"errors"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/access"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/account"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, access.ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidEmail),
		errors.Is(err, employee.ErrInvalidFirstName),
		errors.Is(err, employee.ErrInvalidLastName),
		errors.Is(err, employee.ErrInvalidTelephone),
		errors.Is(err, employee.ErrInvalidStatus),
		errors.Is(err, employee.ErrDepartmentNotFound),
		errors.Is(err, employee.ErrManagerNotFound),
		errors.Is(err, employee.ErrManagerIsSelf),
		errors.Is(err, employee.ErrManagerCycle),
		errors.Is(err, department.ErrInvalidID),
		errors.Is(err, department.ErrInvalidName),
		errors.Is(err, department.ErrInvalidStatus),
		errors.Is(err, department.ErrManagerNotFound),
		errors.Is(err, department.ErrDepartmentNotEmpty),
		errors.Is(err, account.ErrInvalidEmail),
		errors.Is(err, account.ErrInvalidPassword),
		errors.Is(err, query.ErrInvalidSortField),
		errors.Is(err, query.ErrInvalidSortDirection):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, employee.ErrEmailAlreadyExists),
		errors.Is(err, department.ErrNameAlreadyExists),
		errors.Is(err, account.ErrEmailAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, employee.ErrEmployeeNotFound),
		errors.Is(err, department.ErrDepartmentNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		// 内部エラーの詳細はクライアントに返しません。
		return status.Error(codes.Internal, "internal error")
	}
}
