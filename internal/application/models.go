package application

import "time"

// Role identifies the permission tier of an authenticated user.
type Role string

const (
	// RoleTechnician is the default tier; technicians punch time against work orders.
	RoleTechnician Role = "technician"
	// RoleTechnicalAdvisor assigns and reviews work and may correct any punch.
	RoleTechnicalAdvisor Role = "technical_advisor"
	// RoleAdmin has unrestricted access.
	RoleAdmin Role = "admin"
)

// ValidRole reports whether role is one of the recognised roles.
func ValidRole(role Role) bool {
	switch role {
	case RoleTechnician, RoleTechnicalAdvisor, RoleAdmin:
		return true
	}
	return false
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
	Role   Role
}

// Privileged reports whether the principal bypasses ownership and closure
// checks on punch mutation.
func (p Principal) Privileged() bool {
	return p.Role == RoleAdmin || p.Role == RoleTechnicalAdvisor
}

// PunchKind classifies a time punch.
type PunchKind string

const (
	// PunchKindWork counts toward a work order's actual hours.
	PunchKindWork PunchKind = "work"
	// PunchKindTravel tracks kilometers; excluded from actual hours.
	PunchKindTravel PunchKind = "travel"
	// PunchKindOther records breaks, subtracted from daily rollups.
	PunchKindOther PunchKind = "other"
)

// ValidPunchKind reports whether kind is one of the recognised punch kinds.
func ValidPunchKind(kind PunchKind) bool {
	switch kind {
	case PunchKindWork, PunchKindTravel, PunchKindOther:
		return true
	}
	return false
}

// TimePunch represents one open or closed interval of tracked time.
// A nil ClockOut marks the punch as active.
type TimePunch struct {
	ID          string
	UserID      string
	WorkOrderID *string
	TaskID      *string
	Kind        PunchKind
	ClockIn     time.Time
	ClockOut    *time.Time
	Kilometers  *float64
	PunchDate   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Active reports whether the punch has no clock-out yet.
func (p TimePunch) Active() bool {
	return p.ClockOut == nil
}

// Duration returns the punch length, or zero while the punch is active.
func (p TimePunch) Duration() time.Duration {
	if p.ClockOut == nil {
		return 0
	}
	return p.ClockOut.Sub(p.ClockIn)
}

// Hours returns the punch length in fractional hours.
func (p TimePunch) Hours() float64 {
	return p.Duration().Hours()
}

// WorkOrderStatus tracks a work order through its lifecycle.
type WorkOrderStatus string

const (
	WorkOrderStatusNew             WorkOrderStatus = "new"
	WorkOrderStatusDemand          WorkOrderStatus = "demand"
	WorkOrderStatusAssigned        WorkOrderStatus = "assigned"
	WorkOrderStatusInProgress      WorkOrderStatus = "in-progress"
	WorkOrderStatusCompleted       WorkOrderStatus = "completed"
	WorkOrderStatusClosedForReview WorkOrderStatus = "closedForReview"
)

// Closed reports whether the status freezes punches for non-privileged actors.
func (s WorkOrderStatus) Closed() bool {
	return s == WorkOrderStatusCompleted || s == WorkOrderStatusClosedForReview
}

// WorkOrder carries the fields the punch engine operates on. ActualHours and
// Efficiency are write-through caches owned by the aggregator, not
// independently authoritative values.
type WorkOrder struct {
	ID          string
	Title       string
	Status      WorkOrderStatus
	AssignedTo  *string
	ActualHours float64
	Efficiency  *float64
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Tasks       []WorkOrderTask
}

// WorkOrderTask is a budgeted unit of work inside a work order.
type WorkOrderTask struct {
	ID            string
	WorkOrderID   string
	Title         string
	Description   *string
	BudgetedHours float64
	SortOrder     int
}

// PunchTarget narrows a clock-in or clock-out to a work order or task.
// The zero value targets a general punch.
type PunchTarget struct {
	WorkOrderID *string
	TaskID      *string
}

// ClockInParams wraps the data required to open a punch.
type ClockInParams struct {
	Principal Principal
	Kind      PunchKind
	Target    PunchTarget
	At        time.Time
}

// ClockOutParams wraps the data required to close the active punch.
type ClockOutParams struct {
	Principal  Principal
	Target     PunchTarget
	At         time.Time
	Kilometers *float64
}

// ToggleTaskPunchParams wraps the data for the per-task toggle endpoint.
type ToggleTaskPunchParams struct {
	Principal   Principal
	TaskID      string
	WorkOrderID string
}

// RecordBreakParams wraps the data for a retroactive break deduction.
type RecordBreakParams struct {
	Principal Principal
	Minutes   int
}

// EditPunchParams wraps the data for an authorized interval correction.
type EditPunchParams struct {
	Principal  Principal
	PunchID    string
	ClockIn    time.Time
	ClockOut   time.Time
	Kilometers *float64
}

// PunchFilter narrows punch listings.
type PunchFilter struct {
	UserID      string
	WorkOrderID *string
	Kind        PunchKind
	From        *time.Time
	To          *time.Time
}

// OverlapWarning reports that a corrected punch interval overlaps another
// punch belonging to the same user. Surfaced to callers, never fatal.
type OverlapWarning struct {
	PunchID     string
	WithPunchID string
	Start       time.Time
	End         time.Time
}

// WorkOrderInput captures caller provided work order fields.
type WorkOrderInput struct {
	Title string
}

// CreateWorkOrderParams wraps the data required to create a work order.
type CreateWorkOrderParams struct {
	Principal Principal
	Input     WorkOrderInput
}

// AssignWorkOrderParams wraps the data required to assign a work order.
type AssignWorkOrderParams struct {
	Principal   Principal
	WorkOrderID string
	AssigneeID  string
}

// TaskInput captures caller provided task fields.
type TaskInput struct {
	Title         string
	Description   *string
	BudgetedHours float64
	SortOrder     int
}

// AddTaskParams wraps the data required to add a task to a work order.
type AddTaskParams struct {
	Principal   Principal
	WorkOrderID string
	Input       TaskInput
}

// UpdateTaskHoursParams wraps the data required to re-budget a task.
type UpdateTaskHoursParams struct {
	Principal     Principal
	WorkOrderID   string
	TaskID        string
	BudgetedHours float64
}

// UserStats aggregates the read-side rollups shown on a technician's dashboard.
type UserStats struct {
	HoursToday    float64
	HoursThisWeek float64
	KmToday       float64
	KmThisWeek    float64
	KmOverall     float64
	ActivePunch   *TimePunch
}

// User represents an employee account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserInput captures caller provided user attributes.
type UserInput struct {
	Email       string
	DisplayName string
	Role        Role
	Password    string
}

// CreateUserParams wraps the data required to create a user.
type CreateUserParams struct {
	Principal Principal
	Input     UserInput
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}
