package models

type Role string

const (
	RoleStudent    Role = "student"
	RoleDepartment Role = "department"
	RoleOSAS       Role = "osas"
)

// Caller identifies who invokes a lifecycle operation. It is always passed
// explicitly; services never look up a session on their own.
type Caller struct {
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
}

func OSAS() Caller {
	return Caller{Role: RoleOSAS}
}

func Department(id string) Caller {
	return Caller{Role: RoleDepartment, DepartmentID: id}
}

func (c Caller) IsOSAS() bool {
	return c.Role == RoleOSAS
}

func (c Caller) IsDepartment() bool {
	return c.Role == RoleDepartment && c.DepartmentID != ""
}

// CanManage reports whether the caller may act on a record owned by departmentID.
func (c Caller) CanManage(departmentID string) bool {
	if c.IsOSAS() {
		return true
	}
	return c.IsDepartment() && c.DepartmentID == departmentID
}
