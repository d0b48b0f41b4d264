package persistence

import "time"

// TimePunch is the stored form of one tracked time interval.
type TimePunch struct {
	ID          string
	UserID      string
	WorkOrderID *string
	TaskID      *string
	Kind        string
	ClockIn     time.Time
	ClockOut    *time.Time
	Kilometers  *float64
	PunchDate   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkOrder is the stored form of a work order. ActualHours and Efficiency
// are refreshed by the repository whenever a linked punch is written.
type WorkOrder struct {
	ID          string
	Title       string
	Status      string
	AssignedTo  *string
	ActualHours float64
	Efficiency  *float64
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkOrderTask is the stored form of a budgeted unit of work.
type WorkOrderTask struct {
	ID            string
	WorkOrderID   string
	Title         string
	Description   *string
	BudgetedHours float64
	SortOrder     int
}

// User is the stored form of an employee account.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	Role         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the stored form of an authenticated session.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// PunchFilter narrows punch queries.
type PunchFilter struct {
	UserID      string
	WorkOrderID *string
	Kind        string
	From        *time.Time
	To          *time.Time
}

// CloseResult carries the frozen aggregates written when a work order closes.
type CloseResult struct {
	ActualHours   float64
	BudgetedHours float64
	Efficiency    *float64
	CompletedAt   time.Time
}
