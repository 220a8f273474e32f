package domain

// Role is the closed set of account roles. Access checks go through the
// capability table below rather than ad-hoc role lists at call sites.
type Role string

const (
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleStaff, RoleManager, RoleAdmin:
		return true
	}
	return false
}

type Capability string

const (
	CapRegisterOperate  Capability = "register:operate"
	CapRegisterReport   Capability = "register:report"
	CapAttendanceRecord Capability = "attendance:record"
	CapAttendanceReport Capability = "attendance:report"
	CapSalesRecord      Capability = "sales:record"
	CapSalesManage      Capability = "sales:manage"
	CapLedgerRead       Capability = "ledger:read"
	CapProblemReport    Capability = "problem:report"
	CapProblemManage    Capability = "problem:manage"
	CapStoreAdmin       Capability = "store:admin"
	CapUserAdmin        Capability = "user:admin"
	CapAuditRead        Capability = "audit:read"
)

// capabilityGrants is the single source of truth for which roles hold which
// capability. Admins do not clock in/out; attendance reporting only covers
// staff and managers.
var capabilityGrants = map[Capability][]Role{
	CapRegisterOperate:  {RoleStaff, RoleManager, RoleAdmin},
	CapRegisterReport:   {RoleManager, RoleAdmin},
	CapAttendanceRecord: {RoleStaff, RoleManager},
	CapAttendanceReport: {RoleManager, RoleAdmin},
	CapSalesRecord:      {RoleStaff, RoleManager, RoleAdmin},
	CapSalesManage:      {RoleManager, RoleAdmin},
	CapLedgerRead:       {RoleStaff, RoleManager, RoleAdmin},
	CapProblemReport:    {RoleStaff, RoleManager, RoleAdmin},
	CapProblemManage:    {RoleManager, RoleAdmin},
	CapStoreAdmin:       {RoleAdmin},
	CapUserAdmin:        {RoleAdmin},
	CapAuditRead:        {RoleAdmin},
}

func (r Role) Can(cap Capability) bool {
	for _, granted := range capabilityGrants[cap] {
		if granted == r {
			return true
		}
	}
	return false
}

// AttendanceEligible reports whether a user's days appear in the attendance
// summary matrix.
func (r Role) AttendanceEligible() bool {
	return r == RoleStaff || r == RoleManager
}
