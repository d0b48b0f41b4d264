package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

const workOrderColumns = "id, title, status, assigned_to, actual_hours, efficiency, completed_at, created_at, updated_at"
const taskColumns = "id, work_order_id, title, description, budgeted_hours, sort_order"

// WorkOrderRepository implements persistence.WorkOrderRepository on SQLite.
type WorkOrderRepository struct {
	pool *ConnectionPool
}

// NewWorkOrderRepository creates a SQLite work order repository.
func NewWorkOrderRepository(pool *ConnectionPool) *WorkOrderRepository {
	return &WorkOrderRepository{pool: pool}
}

// CreateWorkOrder inserts a new work order.
func (r *WorkOrderRepository) CreateWorkOrder(ctx context.Context, order persistence.WorkOrder) error {
	if order.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO work_orders (`+workOrderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.Title,
		order.Status,
		nullString(order.AssignedTo),
		order.ActualHours,
		nullFloat(order.Efficiency),
		nullTime(order.CompletedAt),
		formatTime(order.CreatedAt),
		formatTime(order.UpdatedAt),
	)
	return mapError(err)
}

// GetWorkOrder retrieves a work order by ID.
func (r *WorkOrderRepository) GetWorkOrder(ctx context.Context, id string) (persistence.WorkOrder, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders WHERE id = ?`, id)
	return scanWorkOrder(row)
}

// ListWorkOrders returns all work orders ordered by creation time.
func (r *WorkOrderRepository) ListWorkOrders(ctx context.Context) ([]persistence.WorkOrder, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+workOrderColumns+` FROM work_orders ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var orders []persistence.WorkOrder
	for rows.Next() {
		order, err := scanWorkOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return orders, nil
}

// UpdateStatus rewrites the status and assignee of a work order.
func (r *WorkOrderRepository) UpdateStatus(ctx context.Context, id string, status string, assignedTo *string) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE work_orders SET status = ?, assigned_to = ?, updated_at = ? WHERE id = ?`,
		status, nullString(assignedTo), formatTime(time.Now().UTC()), id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// CloseWorkOrder recomputes actual and budgeted hours from current punch and
// task data, derives efficiency, and freezes all three with the completed
// status. Reading the inputs and writing the result share one transaction, so
// a punch write cannot slip between them.
func (r *WorkOrderRepository) CloseWorkOrder(ctx context.Context, id string, completedAt time.Time) (persistence.CloseResult, error) {
	var result persistence.CloseResult
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM work_orders WHERE id = ?`, id).Scan(&exists); err != nil {
			return mapError(err)
		}
		if exists == 0 {
			return persistence.ErrNotFound
		}

		actual, err := sumWorkHoursTx(ctx, tx, id)
		if err != nil {
			return err
		}

		var budgeted float64
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(budgeted_hours), 0) FROM work_order_tasks WHERE work_order_id = ?`, id).Scan(&budgeted)
		if err != nil {
			return mapError(err)
		}

		var efficiency *float64
		if budgeted > 0 && actual > 0 {
			value := budgeted / actual * 100
			efficiency = &value
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE work_orders SET status = 'completed', actual_hours = ?, efficiency = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
			actual, nullFloat(efficiency), formatTime(completedAt), formatTime(completedAt), id)
		if err != nil {
			return mapError(err)
		}

		result = persistence.CloseResult{
			ActualHours:   actual,
			BudgetedHours: budgeted,
			Efficiency:    efficiency,
			CompletedAt:   completedAt,
		}
		return nil
	})
	if err != nil {
		return persistence.CloseResult{}, err
	}
	return result, nil
}

// ActualHours recomputes the work-kind punch sum without persisting it.
func (r *WorkOrderRepository) ActualHours(ctx context.Context, id string) (float64, error) {
	var total float64
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		total, err = sumWorkHoursTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// BudgetedHours sums the budgeted hours of the work order's tasks.
func (r *WorkOrderRepository) BudgetedHours(ctx context.Context, id string) (float64, error) {
	var total float64
	err := r.pool.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(budgeted_hours), 0) FROM work_order_tasks WHERE work_order_id = ?`, id).Scan(&total)
	if err != nil {
		return 0, mapError(err)
	}
	return total, nil
}

// AddTask inserts a budgeted task for a work order.
func (r *WorkOrderRepository) AddTask(ctx context.Context, task persistence.WorkOrderTask) error {
	if task.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := r.pool.db.ExecContext(ctx,
		`INSERT INTO work_order_tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.WorkOrderID,
		task.Title,
		nullString(task.Description),
		task.BudgetedHours,
		task.SortOrder,
	)
	return mapError(err)
}

// GetTask retrieves a task by ID.
func (r *WorkOrderRepository) GetTask(ctx context.Context, id string) (persistence.WorkOrderTask, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM work_order_tasks WHERE id = ?`, id)
	return scanTask(row)
}

// ListTasks returns the work order's tasks in sort order.
func (r *WorkOrderRepository) ListTasks(ctx context.Context, workOrderID string) ([]persistence.WorkOrderTask, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM work_order_tasks WHERE work_order_id = ? ORDER BY sort_order ASC, id ASC`, workOrderID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var tasks []persistence.WorkOrderTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return tasks, nil
}

// UpdateTaskHours rewrites a task's budget.
func (r *WorkOrderRepository) UpdateTaskHours(ctx context.Context, id string, budgetedHours float64) error {
	result, err := r.pool.db.ExecContext(ctx,
		`UPDATE work_order_tasks SET budgeted_hours = ? WHERE id = ?`, budgetedHours, id)
	if err != nil {
		return mapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func scanWorkOrder(row rowScanner) (persistence.WorkOrder, error) {
	var order persistence.WorkOrder
	var assignedTo, completedAtStr sql.NullString
	var efficiency sql.NullFloat64
	var createdAtStr, updatedAtStr string

	err := row.Scan(
		&order.ID,
		&order.Title,
		&order.Status,
		&assignedTo,
		&order.ActualHours,
		&efficiency,
		&completedAtStr,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.WorkOrder{}, mapError(err)
	}

	order.AssignedTo = stringPtr(assignedTo)
	order.Efficiency = floatPtr(efficiency)

	if order.CompletedAt, err = timePtr(completedAtStr, "completed_at"); err != nil {
		return persistence.WorkOrder{}, err
	}
	if order.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.WorkOrder{}, err
	}
	if order.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.WorkOrder{}, err
	}

	return order, nil
}

func scanTask(row rowScanner) (persistence.WorkOrderTask, error) {
	var task persistence.WorkOrderTask
	var description sql.NullString

	err := row.Scan(
		&task.ID,
		&task.WorkOrderID,
		&task.Title,
		&description,
		&task.BudgetedHours,
		&task.SortOrder,
	)
	if err != nil {
		return persistence.WorkOrderTask{}, mapError(err)
	}

	task.Description = stringPtr(description)
	return task, nil
}
