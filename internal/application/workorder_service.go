package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

// WorkOrderRepository captures the persistence interactions needed by the service.
type WorkOrderRepository interface {
	CreateWorkOrder(ctx context.Context, order WorkOrder) error
	GetWorkOrder(ctx context.Context, id string) (WorkOrder, error)
	ListWorkOrders(ctx context.Context) ([]WorkOrder, error)
	UpdateStatus(ctx context.Context, id string, status WorkOrderStatus, assignedTo *string) error
	CloseWorkOrder(ctx context.Context, id string, completedAt time.Time) (WorkOrder, error)
	ActualHours(ctx context.Context, id string) (float64, error)
	BudgetedHours(ctx context.Context, id string) (float64, error)
	AddTask(ctx context.Context, task WorkOrderTask) error
	GetTask(ctx context.Context, id string) (WorkOrderTask, error)
	ListTasks(ctx context.Context, workOrderID string) ([]WorkOrderTask, error)
	UpdateTaskHours(ctx context.Context, id string, budgetedHours float64) error
}

// UserDirectory exposes user existence checks for assignment validation.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// WorkOrderService owns the work-order lifecycle and the derived
// actual-hours/efficiency aggregates. Closing recomputes from current punch
// data every time, so a re-close after punch edits refreshes the frozen
// numbers rather than replaying the first close.
type WorkOrderService struct {
	orders      WorkOrderRepository
	users       UserDirectory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewWorkOrderService wires dependencies for work order operations.
func NewWorkOrderService(orders WorkOrderRepository, users UserDirectory, idGenerator func() string, now func() time.Time, logger *slog.Logger) *WorkOrderService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &WorkOrderService{
		orders:      orders,
		users:       users,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateWorkOrder validates the request before delegating to persistence.
// Technicians create demands awaiting advisor conversion; advisors and
// admins create orders directly in the new status.
func (s *WorkOrderService) CreateWorkOrder(ctx context.Context, params CreateWorkOrderParams) (WorkOrder, error) {
	if s == nil || s.orders == nil {
		return WorkOrder{}, fmt.Errorf("work order repository not configured")
	}

	vErr := &ValidationError{}
	title := strings.TrimSpace(params.Input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	if vErr.HasErrors() {
		return WorkOrder{}, vErr
	}

	status := WorkOrderStatusNew
	if !params.Principal.Privileged() {
		status = WorkOrderStatusDemand
	}

	now := s.now()
	order := WorkOrder{
		ID:        s.idGenerator(),
		Title:     title,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.orders.CreateWorkOrder(ctx, order); err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}

	serviceLogger(ctx, s.logger, "workorder", "create").
		InfoContext(ctx, "work order created", "work_order_id", order.ID, "status", order.Status)
	return order, nil
}

// GetWorkOrder retrieves a work order with its tasks.
func (s *WorkOrderService) GetWorkOrder(ctx context.Context, id string) (WorkOrder, error) {
	if s == nil || s.orders == nil {
		return WorkOrder{}, fmt.Errorf("work order repository not configured")
	}

	order, err := s.orders.GetWorkOrder(ctx, id)
	if err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}

	tasks, err := s.orders.ListTasks(ctx, id)
	if err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}
	order.Tasks = tasks

	return order, nil
}

// ListWorkOrders enumerates all work orders.
func (s *WorkOrderService) ListWorkOrders(ctx context.Context) ([]WorkOrder, error) {
	if s == nil || s.orders == nil {
		return nil, fmt.Errorf("work order repository not configured")
	}
	orders, err := s.orders.ListWorkOrders(ctx)
	if err != nil {
		return nil, mapWorkOrderRepoError(err)
	}
	return orders, nil
}

// Assign moves a work order to the assigned status and records the assignee.
// Only advisors and admins may assign. Assigning a demand converts it.
func (s *WorkOrderService) Assign(ctx context.Context, params AssignWorkOrderParams) (WorkOrder, error) {
	if s == nil || s.orders == nil {
		return WorkOrder{}, fmt.Errorf("work order repository not configured")
	}

	if !params.Principal.Privileged() {
		return WorkOrder{}, ErrForbidden
	}

	order, err := s.orders.GetWorkOrder(ctx, params.WorkOrderID)
	if err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}
	if order.Status.Closed() {
		vErr := &ValidationError{}
		vErr.add("status", "closed work orders cannot be assigned")
		return WorkOrder{}, vErr
	}

	if s.users != nil {
		exists, err := s.users.UserExists(ctx, params.AssigneeID)
		if err != nil {
			return WorkOrder{}, err
		}
		if !exists {
			vErr := &ValidationError{}
			vErr.add("assignee_id", "assignee does not exist")
			return WorkOrder{}, vErr
		}
	}

	assignee := params.AssigneeID
	if err := s.orders.UpdateStatus(ctx, params.WorkOrderID, WorkOrderStatusAssigned, &assignee); err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}

	serviceLogger(ctx, s.logger, "workorder", "assign").
		InfoContext(ctx, "work order assigned", "work_order_id", params.WorkOrderID, "assignee", assignee)
	return s.orders.GetWorkOrder(ctx, params.WorkOrderID)
}

// SubmitForReview moves a work order to closedForReview, freezing its punches
// for non-privileged actors without computing efficiency.
func (s *WorkOrderService) SubmitForReview(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	if s == nil || s.orders == nil {
		return WorkOrder{}, fmt.Errorf("work order repository not configured")
	}

	order, err := s.orders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}

	if !principal.Privileged() {
		if order.AssignedTo == nil || *order.AssignedTo != principal.UserID {
			return WorkOrder{}, ErrForbidden
		}
	}

	if err := s.orders.UpdateStatus(ctx, workOrderID, WorkOrderStatusClosedForReview, order.AssignedTo); err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}

	serviceLogger(ctx, s.logger, "workorder", "submit_review").
		InfoContext(ctx, "work order submitted for review", "work_order_id", workOrderID)
	return s.orders.GetWorkOrder(ctx, workOrderID)
}

// Close recomputes actual and budgeted hours from current data, derives
// efficiency, and freezes all three with the completed status. The
// computation and persistence happen in one storage transaction.
func (s *WorkOrderService) Close(ctx context.Context, principal Principal, workOrderID string) (WorkOrder, error) {
	if s == nil || s.orders == nil {
		return WorkOrder{}, fmt.Errorf("work order repository not configured")
	}

	if !principal.Privileged() {
		return WorkOrder{}, ErrForbidden
	}

	closed, err := s.orders.CloseWorkOrder(ctx, workOrderID, s.now())
	if err != nil {
		return WorkOrder{}, mapWorkOrderRepoError(err)
	}

	logger := serviceLogger(ctx, s.logger, "workorder", "close", "work_order_id", workOrderID)
	if closed.Efficiency != nil {
		logger.InfoContext(ctx, "work order closed", "actual_hours", closed.ActualHours, "efficiency", *closed.Efficiency)
	} else {
		logger.InfoContext(ctx, "work order closed without efficiency", "actual_hours", closed.ActualHours)
	}
	return closed, nil
}

// ComputeActualHours recomputes the work-kind punch sum without persisting it.
func (s *WorkOrderService) ComputeActualHours(ctx context.Context, workOrderID string) (float64, error) {
	if s == nil || s.orders == nil {
		return 0, fmt.Errorf("work order repository not configured")
	}
	hours, err := s.orders.ActualHours(ctx, workOrderID)
	if err != nil {
		return 0, mapWorkOrderRepoError(err)
	}
	return hours, nil
}

// ComputeBudgetedHours sums the budgeted hours of the work order's tasks.
func (s *WorkOrderService) ComputeBudgetedHours(ctx context.Context, workOrderID string) (float64, error) {
	if s == nil || s.orders == nil {
		return 0, fmt.Errorf("work order repository not configured")
	}
	hours, err := s.orders.BudgetedHours(ctx, workOrderID)
	if err != nil {
		return 0, mapWorkOrderRepoError(err)
	}
	return hours, nil
}

// AddTask attaches a budgeted task to a work order. Advisors and admins only.
func (s *WorkOrderService) AddTask(ctx context.Context, params AddTaskParams) (WorkOrderTask, error) {
	if s == nil || s.orders == nil {
		return WorkOrderTask{}, fmt.Errorf("work order repository not configured")
	}

	if !params.Principal.Privileged() {
		return WorkOrderTask{}, ErrForbidden
	}

	vErr := &ValidationError{}
	title := strings.TrimSpace(params.Input.Title)
	if title == "" {
		vErr.add("title", "title is required")
	}
	if params.Input.BudgetedHours <= 0 {
		vErr.add("budgeted_hours", "budgeted hours must be positive")
	}
	if vErr.HasErrors() {
		return WorkOrderTask{}, vErr
	}

	if _, err := s.orders.GetWorkOrder(ctx, params.WorkOrderID); err != nil {
		return WorkOrderTask{}, mapWorkOrderRepoError(err)
	}

	task := WorkOrderTask{
		ID:            s.idGenerator(),
		WorkOrderID:   params.WorkOrderID,
		Title:         title,
		Description:   params.Input.Description,
		BudgetedHours: params.Input.BudgetedHours,
		SortOrder:     params.Input.SortOrder,
	}

	if err := s.orders.AddTask(ctx, task); err != nil {
		return WorkOrderTask{}, mapWorkOrderRepoError(err)
	}

	serviceLogger(ctx, s.logger, "workorder", "add_task").
		InfoContext(ctx, "task added", "work_order_id", params.WorkOrderID, "task_id", task.ID)
	return task, nil
}

// UpdateTaskHours re-budgets an existing task. Task identity is immutable
// once hours are punched against it, but the budget stays editable for
// privileged roles.
func (s *WorkOrderService) UpdateTaskHours(ctx context.Context, params UpdateTaskHoursParams) (WorkOrderTask, error) {
	if s == nil || s.orders == nil {
		return WorkOrderTask{}, fmt.Errorf("work order repository not configured")
	}

	if !params.Principal.Privileged() {
		return WorkOrderTask{}, ErrForbidden
	}

	if params.BudgetedHours <= 0 {
		vErr := &ValidationError{}
		vErr.add("budgeted_hours", "budgeted hours must be positive")
		return WorkOrderTask{}, vErr
	}

	task, err := s.orders.GetTask(ctx, params.TaskID)
	if err != nil {
		return WorkOrderTask{}, mapWorkOrderRepoError(err)
	}
	if task.WorkOrderID != params.WorkOrderID {
		vErr := &ValidationError{}
		vErr.add("task_id", "task does not belong to the work order")
		return WorkOrderTask{}, vErr
	}

	if err := s.orders.UpdateTaskHours(ctx, params.TaskID, params.BudgetedHours); err != nil {
		return WorkOrderTask{}, mapWorkOrderRepoError(err)
	}

	task.BudgetedHours = params.BudgetedHours
	return task, nil
}

// Efficiency derives budgeted / actual * 100, defined only when both inputs
// are positive.
func Efficiency(budgetedHours, actualHours float64) *float64 {
	if budgetedHours <= 0 || actualHours <= 0 {
		return nil
	}
	value := budgetedHours / actualHours * 100
	return &value
}

func mapWorkOrderRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("budgeted_hours", "budgeted hours must be positive")
		return vErr
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		vErr := &ValidationError{}
		vErr.add("work_order_id", "related records are missing")
		return vErr
	}
	return err
}
