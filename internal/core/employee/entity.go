package employee

import (
	"strings"
	"time"

	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

// Status は社員の状態を表します。
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

// Employee は社員エンティティです。Manager 以降は読み取り時に付与される参照情報です。
type Employee struct {
	ID          string
	FirstName   string
	LastName    string
	Telephone   string
	Email       string
	Status      Status
	ManagerID   *string
	AccountID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Manager     *ManagerRef
	Departments []DepartmentRef
	ReportCount int
}

// ManagerRef は上長の参照情報です。
type ManagerRef struct {
	ID        string
	FirstName string
	LastName  string
}

// DepartmentRef は所属部署の参照情報です。
type DepartmentRef struct {
	ID   string
	Name string
}

// 述語で参照する社員の属性と関連です。
const (
	FieldFirstName query.Field = "firstName"
	FieldLastName  query.Field = "lastName"
	FieldEmail     query.Field = "email"
	FieldStatus    query.Field = "status"
	FieldManagerID query.Field = "managerId"

	// RelMemberships は社員の所属行です。FieldMembershipDepartmentID を持ちます。
	RelMemberships              query.Relation = "memberships"
	FieldMembershipDepartmentID query.Field    = "departmentId"

	// RelDepartments は社員が所属する部署です。FieldDepartmentManagerID を持ちます。
	RelDepartments           query.Relation = "departments"
	FieldDepartmentManagerID query.Field    = "managerId"
)

// 並び替え可能な項目です。
const (
	SortFirstName   query.SortKey = "firstName"
	SortLastName    query.SortKey = "lastName"
	SortEmail       query.SortKey = "email"
	SortStatus      query.SortKey = "status"
	SortCreatedAt   query.SortKey = "createdAt"
	SortManager     query.SortKey = "manager"
	SortDepartments query.SortKey = "departments"
	SortReports     query.SortKey = "reports"
)

// SortKeys は並び替え可能な項目の一覧です。
var SortKeys = []query.SortKey{
	SortFirstName, SortLastName, SortEmail, SortStatus, SortCreatedAt, SortManager, SortDepartments, SortReports,
}
