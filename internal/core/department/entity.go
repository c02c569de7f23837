package department

import (
	"strings"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Status は部署の状態を表します。
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// ParseStatus は状態文字列を解釈します。未知の値は ErrInvalidStatus です。
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, nil
	case StatusInactive:
		return StatusInactive, nil
	default:
		return "", ErrInvalidStatus
	}
}

// Department は部署エンティティです。
type Department struct {
	ID          string
	Name        string
	Status      Status
	ManagerID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Manager     *ManagerRef
	MemberCount int
}

// ManagerRef は部署責任者の参照情報です。
type ManagerRef struct {
	ID        string
	FirstName string
	LastName  string
}

// 述語で参照する部署の属性と関連です。
const (
	FieldName      query.Field = "name"
	FieldStatus    query.Field = "status"
	FieldManagerID query.Field = "managerId"

	// RelMembers は部署の所属行です。FieldMemberEmployeeID を持ちます。
	RelMembers            query.Relation = "members"
	FieldMemberEmployeeID query.Field    = "employeeId"
)

// 並び替え可能な項目です。
const (
	SortName      query.SortKey = "name"
	SortManager   query.SortKey = "manager"
	SortStatus    query.SortKey = "status"
	SortCreatedAt query.SortKey = "createdAt"
)

// SortKeys は並び替え可能な項目の一覧です。
var SortKeys = []query.SortKey{SortName, SortManager, SortStatus, SortCreatedAt}
