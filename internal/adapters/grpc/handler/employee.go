package handler

import (
	"context"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	"google.golang.org/protobuf/types/known/structpb"
)

// EmployeeGrpcHandler は EmployeeService の gRPC 実装です。
type EmployeeGrpcHandler struct {
	svc employee.UseCase
}

var _ EmployeeServiceServer = (*EmployeeGrpcHandler)(nil)

// NewEmployeeGrpcHandler は EmployeeGrpcHandler を生成します。
func NewEmployeeGrpcHandler(svc employee.UseCase) *EmployeeGrpcHandler {
	return &EmployeeGrpcHandler{svc: svc}
}

type employeeFilterRequest struct {
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Email         string   `json:"email"`
	Statuses      []string `json:"statuses"`
	DepartmentIDs []string `json:"departmentIds"`
	ManagerID     string   `json:"managerId"`
}

type listEmployeesRequest struct {
	Filter   employeeFilterRequest `json:"filter"`
	Sort     *sortRequest          `json:"sort"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"pageSize"`
}

type createEmployeeRequest struct {
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Telephone     string   `json:"telephone"`
	Email         string   `json:"email"`
	Status        *string  `json:"status"`
	ManagerID     *string  `json:"managerId"`
	DepartmentIDs []string `json:"departmentIds"`
}

type updateEmployeeRequest struct {
	ID            string             `json:"id"`
	FirstName     *string            `json:"firstName"`
	LastName      *string            `json:"lastName"`
	Telephone     *string            `json:"telephone"`
	Email         *string            `json:"email"`
	Status        *string            `json:"status"`
	ManagerID     optional[string]   `json:"managerId"`
	DepartmentIDs optional[[]string] `json:"departmentIds"`
}

// ListEmployees は可視範囲内の社員一覧を返します。
func (h *EmployeeGrpcHandler) ListEmployees(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listEmployeesRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	var sort *query.SortInput
	if in.Sort != nil {
		sort = &query.SortInput{Field: in.Sort.Field, Direction: in.Sort.Direction}
	}

	res, err := h.svc.ListEmployees(ctx, employee.ListEmployeesInput{
		Filter: employee.Filter{
			FirstName:     in.Filter.FirstName,
			LastName:      in.Filter.LastName,
			Email:         in.Filter.Email,
			Statuses:      in.Filter.Statuses,
			DepartmentIDs: in.Filter.DepartmentIDs,
			ManagerID:     in.Filter.ManagerID,
		},
		Sort:     sort,
		Page:     in.Page,
		PageSize: in.PageSize,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	items := make([]any, 0, len(res.Employees))
	for _, e := range res.Employees {
		items = append(items, employeeToMap(e))
	}
	return encodeResponse(pageResult(items, res.Total, res.Page, res.PageSize))
}

// GetEmployee は社員を 1 件返します。
func (h *EmployeeGrpcHandler) GetEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	found, err := h.svc.GetEmployee(ctx, employee.GetEmployeeInput{ID: in.ID})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": employeeToMap(found)})
}

// CreateEmployee は社員を作成します。
func (h *EmployeeGrpcHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in createEmployeeRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	var statusPtr *employee.Status
	if in.Status != nil {
		st, err := employee.ParseStatus(*in.Status)
		if err != nil {
			return nil, toStatusError(err)
		}
		statusPtr = &st
	}

	created, err := h.svc.CreateEmployee(ctx, employee.CreateEmployeeInput{
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Telephone:     in.Telephone,
		Email:         in.Email,
		Status:        statusPtr,
		ManagerID:     in.ManagerID,
		DepartmentIDs: in.DepartmentIDs,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": employeeToMap(created)})
}

// UpdateEmployee は社員情報を部分更新します。managerId に null を指定すると上長を解除します。
func (h *EmployeeGrpcHandler) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateEmployeeRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	var statusPtr *employee.Status
	if in.Status != nil {
		st, err := employee.ParseStatus(*in.Status)
		if err != nil {
			return nil, toStatusError(err)
		}
		statusPtr = &st
	}

	var departmentIDs []string
	if in.DepartmentIDs.Value != nil {
		departmentIDs = *in.DepartmentIDs.Value
	}

	updated, err := h.svc.UpdateEmployee(ctx, employee.UpdateEmployeeInput{
		ID:               in.ID,
		FirstName:        in.FirstName,
		LastName:         in.LastName,
		Telephone:        in.Telephone,
		Email:            in.Email,
		Status:           statusPtr,
		ManagerID:        in.ManagerID.Value,
		ManagerIDSet:     in.ManagerID.Set,
		DepartmentIDs:    departmentIDs,
		DepartmentIDsSet: in.DepartmentIDs.Set,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": employeeToMap(updated)})
}

// DeactivateEmployee は社員を無効化します。
func (h *EmployeeGrpcHandler) DeactivateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	updated, err := h.svc.DeactivateEmployee(ctx, employee.DeactivateEmployeeInput{ID: in.ID})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"employee": employeeToMap(updated)})
}

func employeeToMap(e *employee.Employee) map[string]any {
	if e == nil {
		return nil
	}

	var manager any
	if e.Manager != nil {
		manager = map[string]any{
			"id":        e.Manager.ID,
			"firstName": e.Manager.FirstName,
			"lastName":  e.Manager.LastName,
		}
	}

	departments := make([]any, 0, len(e.Departments))
	for _, d := range e.Departments {
		departments = append(departments, map[string]any{"id": d.ID, "name": d.Name})
	}

	return map[string]any{
		"id":              e.ID,
		"firstName":       e.FirstName,
		"lastName":        e.LastName,
		"telephone":       e.Telephone,
		"email":           e.Email,
		"status":          string(e.Status),
		"managerId":       optionalString(e.ManagerID),
		"manager":         manager,
		"departments":     departments,
		"departmentCount": len(e.Departments),
		"reportCount":     e.ReportCount,
		"accountId":       optionalString(e.AccountID),
		"createdAt":       formatTime(e.CreatedAt),
		"updatedAt":       formatTime(e.UpdatedAt),
	}
}
