package persistence

import (
	"context"
	"time"
)

// PunchRepository stores time punches. Mutations that reference a work order
// refresh that work order's actual_hours cache in the same transaction.
type PunchRepository interface {
	// InsertOpen creates an open punch (null clock-out). It fails with
	// ErrActivePunchExists when the user already has an open punch, evaluated
	// atomically by the storage layer. When advanceWorkOrder is true and the
	// linked work order is in the assigned status it moves to in-progress.
	InsertOpen(ctx context.Context, punch TimePunch, advanceWorkOrder bool) (TimePunch, error)
	// InsertClosed creates a punch that is already closed, such as a break.
	InsertClosed(ctx context.Context, punch TimePunch) (TimePunch, error)
	// Close sets the clock-out and optional kilometers of an open punch.
	Close(ctx context.Context, id string, clockOut time.Time, kilometers *float64) (TimePunch, error)
	// UpdateInterval rewrites both timestamps and optionally kilometers.
	UpdateInterval(ctx context.Context, id string, clockIn, clockOut time.Time, kilometers *float64) (TimePunch, error)
	// Delete removes a punch.
	Delete(ctx context.Context, id string) error
	// GetPunch retrieves a punch by ID.
	GetPunch(ctx context.Context, id string) (TimePunch, error)
	// ActivePunch returns the user's open punch, or ErrNotFound when none exists.
	ActivePunch(ctx context.Context, userID string) (TimePunch, error)
	// ListPunches enumerates punches matching the filter, ordered by clock-in.
	ListPunches(ctx context.Context, filter PunchFilter) ([]TimePunch, error)
	// ListStale returns open punches whose clock-in is at or before the cutoff.
	ListStale(ctx context.Context, cutoff time.Time) ([]TimePunch, error)
}

// WorkOrderRepository stores work orders, their tasks, and the derived
// aggregate columns.
type WorkOrderRepository interface {
	CreateWorkOrder(ctx context.Context, order WorkOrder) error
	GetWorkOrder(ctx context.Context, id string) (WorkOrder, error)
	ListWorkOrders(ctx context.Context) ([]WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, status string, assignedTo *string) error
	// CloseWorkOrder recomputes actual and budgeted hours from current punch
	// and task data, derives efficiency, and freezes all three with the
	// completed status in one transaction.
	CloseWorkOrder(ctx context.Context, id string, completedAt time.Time) (CloseResult, error)
	// ActualHours recomputes the work-kind punch sum without persisting it.
	ActualHours(ctx context.Context, id string) (float64, error)
	// BudgetedHours sums the budgeted hours of the work order's tasks.
	BudgetedHours(ctx context.Context, id string) (float64, error)
	AddTask(ctx context.Context, task WorkOrderTask) error
	GetTask(ctx context.Context, id string) (WorkOrderTask, error)
	ListTasks(ctx context.Context, workOrderID string) ([]WorkOrderTask, error)
	UpdateTaskHours(ctx context.Context, id string, budgetedHours float64) error
}

// UserRepository exposes CRUD operations for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
