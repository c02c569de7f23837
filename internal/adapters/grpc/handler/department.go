package handler

import (
	"context"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
	"google.golang.org/protobuf/types/known/structpb"
)

// DepartmentGrpcHandler は DepartmentService の gRPC 実装です。
type DepartmentGrpcHandler struct {
	svc department.UseCase
}

var _ DepartmentServiceServer = (*DepartmentGrpcHandler)(nil)

// NewDepartmentGrpcHandler は DepartmentGrpcHandler を生成します。
func NewDepartmentGrpcHandler(svc department.UseCase) *DepartmentGrpcHandler {
	return &DepartmentGrpcHandler{svc: svc}
}

type listDepartmentsRequest struct {
	Filter struct {
		Name      string   `json:"name"`
		Statuses  []string `json:"statuses"`
		ManagerID string   `json:"managerId"`
	} `json:"filter"`
	Sort     *sortRequest `json:"sort"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

type createDepartmentRequest struct {
	Name      string  `json:"name"`
	Status    *string `json:"status"`
	ManagerID *string `json:"managerId"`
}

type updateDepartmentRequest struct {
	ID        string           `json:"id"`
	Name      *string          `json:"name"`
	Status    *string          `json:"status"`
	ManagerID optional[string] `json:"managerId"`
}

// ListDepartments は可視範囲内の部署一覧を返します。
func (h *DepartmentGrpcHandler) ListDepartments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listDepartmentsRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	var sort *query.SortInput
	if in.Sort != nil {
		sort = &query.SortInput{Field: in.Sort.Field, Direction: in.Sort.Direction}
	}

	res, err := h.svc.ListDepartments(ctx, department.ListDepartmentsInput{
		Filter: department.Filter{
			Name:      in.Filter.Name,
			Statuses:  in.Filter.Statuses,
			ManagerID: in.Filter.ManagerID,
		},
		Sort:     sort,
		Page:     in.Page,
		PageSize: in.PageSize,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	items := make([]any, 0, len(res.Departments))
	for _, d := range res.Departments {
		items = append(items, departmentToMap(d))
	}
	return encodeResponse(pageResult(items, res.Total, res.Page, res.PageSize))
}

// GetDepartment は部署を 1 件返します。
func (h *DepartmentGrpcHandler) GetDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	found, err := h.svc.GetDepartment(ctx, department.GetDepartmentInput{ID: in.ID})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"department": departmentToMap(found)})
}

// CreateDepartment は部署を作成します。
func (h *DepartmentGrpcHandler) CreateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in createDepartmentRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	statusPtr, err := parseDepartmentStatus(in.Status)
	if err != nil {
		return nil, toStatusError(err)
	}

	created, err := h.svc.CreateDepartment(ctx, department.CreateDepartmentInput{
		Name:      in.Name,
		Status:    statusPtr,
		ManagerID: in.ManagerID,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"department": departmentToMap(created)})
}

// UpdateDepartment は部署を部分更新します。managerId に null を指定すると責任者を解除します。
func (h *DepartmentGrpcHandler) UpdateDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in updateDepartmentRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	statusPtr, err := parseDepartmentStatus(in.Status)
	if err != nil {
		return nil, toStatusError(err)
	}

	updated, err := h.svc.UpdateDepartment(ctx, department.UpdateDepartmentInput{
		ID:           in.ID,
		Name:         in.Name,
		Status:       statusPtr,
		ManagerID:    in.ManagerID.Value,
		ManagerIDSet: in.ManagerID.Set,
	})
	if err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{"department": departmentToMap(updated)})
}

// DeleteDepartment は所属者のいない部署を削除します。
func (h *DepartmentGrpcHandler) DeleteDepartment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in idRequest
	if err := decodeRequest(req, &in); err != nil {
		return nil, err
	}

	if err := h.svc.DeleteDepartment(ctx, department.DeleteDepartmentInput{ID: in.ID}); err != nil {
		return nil, toStatusError(err)
	}
	return encodeResponse(map[string]any{})
}

func parseDepartmentStatus(raw *string) (*department.Status, error) {
	if raw == nil {
		return nil, nil
	}
	st, err := department.ParseStatus(*raw)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func departmentToMap(d *department.Department) map[string]any {
	if d == nil {
		return nil
	}

	var manager any
	if d.Manager != nil {
		manager = map[string]any{
			"id":        d.Manager.ID,
			"firstName": d.Manager.FirstName,
			"lastName":  d.Manager.LastName,
		}
	}

	return map[string]any{
		"id":          d.ID,
		"name":        d.Name,
		"status":      string(d.Status),
		"managerId":   optionalString(d.ManagerID),
		"manager":     manager,
		"memberCount": d.MemberCount,
		"createdAt":   formatTime(d.CreatedAt),
		"updatedAt":   formatTime(d.UpdatedAt),
	}
}
