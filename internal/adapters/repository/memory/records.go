package memory

import (
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/department"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/employee"
	"github.com/ogurasousui/codex-grpc-org-rbac/internal/core/query"
)

type membershipRecord struct {
	key membershipKey
}

func (r membershipRecord) RecordID() string {
	return r.key.EmployeeID + "/" + r.key.DepartmentID
}

func (r membershipRecord) Value(f query.Field) (string, bool) {
	switch f {
	case employee.FieldMembershipDepartmentID:
		return r.key.DepartmentID, true
	case department.FieldMemberEmployeeID:
		return r.key.EmployeeID, true
	default:
		return "", false
	}
}

func (membershipRecord) Related(query.Relation) []query.Record { return nil }

type employeeRecord struct {
	d *dataset
	e employee.Employee
}

func (r employeeRecord) RecordID() string { return r.e.ID }

func (r employeeRecord) Value(f query.Field) (string, bool) {
	switch f {
	case employee.FieldFirstName:
		return r.e.FirstName, true
	case employee.FieldLastName:
		return r.e.LastName, true
	case employee.FieldEmail:
		return r.e.Email, true
	case employee.FieldStatus:
		return string(r.e.Status), true
	case employee.FieldManagerID:
		if r.e.ManagerID == nil {
			return "", false
		}
		return *r.e.ManagerID, true
	default:
		return "", false
	}
}

func (r employeeRecord) Related(rel query.Relation) []query.Record {
	var out []query.Record
	for key := range r.d.memberships {
		if key.EmployeeID != r.e.ID {
			continue
		}
		switch rel {
		case employee.RelMemberships:
			out = append(out, membershipRecord{key: key})
		case employee.RelDepartments:
			if dept, ok := r.d.departments[key.DepartmentID]; ok {
				out = append(out, departmentRecord{d: r.d, dept: dept})
			}
		}
	}
	return out
}

type departmentRecord struct {
	d    *dataset
	dept department.Department
}

func (r departmentRecord) RecordID() string { return r.dept.ID }

func (r departmentRecord) Value(f query.Field) (string, bool) {
	switch f {
	case department.FieldName:
		return r.dept.Name, true
	case department.FieldStatus:
		return string(r.dept.Status), true
	// employee.FieldDepartmentManagerID も同じ名前です。
	case department.FieldManagerID:
		if r.dept.ManagerID == nil {
			return "", false
		}
		return *r.dept.ManagerID, true
	default:
		return "", false
	}
}

func (r departmentRecord) Related(rel query.Relation) []query.Record {
	if rel != department.RelMembers {
		return nil
	}
	var out []query.Record
	for key := range r.d.memberships {
		if key.DepartmentID == r.dept.ID {
			out = append(out, membershipRecord{key: key})
		}
	}
	return out
}
