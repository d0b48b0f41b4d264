package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

const punchColumns = "id, user_id, work_order_id, task_id, kind, clock_in, clock_out, kilometers, punch_date, created_at, updated_at"

// PunchRepository implements persistence.PunchRepository on SQLite. Every
// write that touches a work order refreshes that order's actual_hours column
// in the same transaction, so the cached aggregate can never drift from the
// punch rows.
type PunchRepository struct {
	pool     *ConnectionPool
	location *time.Location
}

// NewPunchRepository creates a SQLite punch repository. The location is used
// to re-derive punch_date when an interval edit moves the clock-in to a
// different calendar day.
func NewPunchRepository(pool *ConnectionPool, location *time.Location) *PunchRepository {
	if location == nil {
		location = time.Local
	}
	return &PunchRepository{pool: pool, location: location}
}

// InsertOpen creates an open punch. The one_active_punch_per_user index
// rejects the insert atomically when the user already holds an open punch;
// that violation surfaces as ErrActivePunchExists. When advanceWorkOrder is
// set and the punch targets an assigned work order, the order moves to
// in-progress in the same transaction. The actual-hours refresh runs like
// every other punch write; the open punch itself contributes nothing until
// it closes.
func (r *PunchRepository) InsertOpen(ctx context.Context, punch persistence.TimePunch, advanceWorkOrder bool) (persistence.TimePunch, error) {
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.insertPunch(ctx, tx, punch); err != nil {
			return err
		}
		if advanceWorkOrder && punch.WorkOrderID != nil {
			_, err := tx.ExecContext(ctx,
				`UPDATE work_orders SET status = 'in-progress', updated_at = ? WHERE id = ? AND status = 'assigned'`,
				formatTime(punch.CreatedAt), *punch.WorkOrderID)
			if err != nil {
				return mapError(err)
			}
		}
		return r.refreshActualHours(ctx, tx, punch.WorkOrderID, punch.UpdatedAt)
	})
	if err != nil {
		return persistence.TimePunch{}, err
	}
	return punch, nil
}

// InsertClosed creates a punch that already carries a clock-out, such as a
// break deduction.
func (r *PunchRepository) InsertClosed(ctx context.Context, punch persistence.TimePunch) (persistence.TimePunch, error) {
	if punch.ClockOut == nil {
		return persistence.TimePunch{}, persistence.ErrConstraintViolation
	}
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if err := r.insertPunch(ctx, tx, punch); err != nil {
			return err
		}
		return r.refreshActualHours(ctx, tx, punch.WorkOrderID, punch.UpdatedAt)
	})
	if err != nil {
		return persistence.TimePunch{}, err
	}
	return punch, nil
}

// Close sets the clock-out of an open punch and refreshes the linked work
// order's actual hours.
func (r *PunchRepository) Close(ctx context.Context, id string, clockOut time.Time, kilometers *float64) (persistence.TimePunch, error) {
	var closed persistence.TimePunch
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.getPunchTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.ClockOut != nil {
			return persistence.ErrConstraintViolation
		}

		now := time.Now().UTC()
		kmValue := nullFloat(kilometers)
		if kilometers == nil {
			kmValue = nullFloat(current.Kilometers)
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE time_punches SET clock_out = ?, kilometers = ?, updated_at = ? WHERE id = ?`,
			formatTime(clockOut), kmValue, formatTime(now), id)
		if err != nil {
			return mapError(err)
		}

		if err := r.refreshActualHours(ctx, tx, current.WorkOrderID, now); err != nil {
			return err
		}

		closed, err = r.getPunchTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return persistence.TimePunch{}, err
	}
	return closed, nil
}

// UpdateInterval rewrites both timestamps and optionally kilometers. The
// punch_date is re-derived from the new clock-in so daily rollups follow the
// corrected interval.
func (r *PunchRepository) UpdateInterval(ctx context.Context, id string, clockIn, clockOut time.Time, kilometers *float64) (persistence.TimePunch, error) {
	var updated persistence.TimePunch
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.getPunchTx(ctx, tx, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		kmValue := nullFloat(kilometers)
		if kilometers == nil {
			kmValue = nullFloat(current.Kilometers)
		}
		punchDate := clockIn.In(r.location).Format("2006-01-02")
		_, err = tx.ExecContext(ctx,
			`UPDATE time_punches SET clock_in = ?, clock_out = ?, kilometers = ?, punch_date = ?, updated_at = ? WHERE id = ?`,
			formatTime(clockIn), formatTime(clockOut), kmValue, punchDate, formatTime(now), id)
		if err != nil {
			return mapError(err)
		}

		if err := r.refreshActualHours(ctx, tx, current.WorkOrderID, now); err != nil {
			return err
		}

		updated, err = r.getPunchTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return persistence.TimePunch{}, err
	}
	return updated, nil
}

// Delete removes a punch and refreshes the linked work order's actual hours,
// which may reduce them.
func (r *PunchRepository) Delete(ctx context.Context, id string) error {
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.getPunchTx(ctx, tx, id)
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM time_punches WHERE id = ?`, id)
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

		return r.refreshActualHours(ctx, tx, current.WorkOrderID, time.Now().UTC())
	})
}

// GetPunch retrieves a punch by ID.
func (r *PunchRepository) GetPunch(ctx context.Context, id string) (persistence.TimePunch, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+punchColumns+` FROM time_punches WHERE id = ?`, id)
	return scanPunch(row)
}

// ActivePunch returns the user's open punch, or ErrNotFound when none exists.
func (r *PunchRepository) ActivePunch(ctx context.Context, userID string) (persistence.TimePunch, error) {
	row := r.pool.db.QueryRowContext(ctx,
		`SELECT `+punchColumns+` FROM time_punches WHERE user_id = ? AND clock_out IS NULL`, userID)
	return scanPunch(row)
}

// ListPunches enumerates punches matching the filter, ordered by clock-in.
func (r *PunchRepository) ListPunches(ctx context.Context, filter persistence.PunchFilter) ([]persistence.TimePunch, error) {
	query := `SELECT ` + punchColumns + ` FROM time_punches`

	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.WorkOrderID != nil {
		conditions = append(conditions, "work_order_id = ?")
		args = append(args, *filter.WorkOrderID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.From != nil {
		conditions = append(conditions, "clock_in >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "clock_in < ?")
		args = append(args, formatTime(*filter.To))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY clock_in ASC, id ASC"

	rows, err := r.pool.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectPunches(rows)
}

// ListStale returns open punches whose clock-in is at or before the cutoff.
func (r *PunchRepository) ListStale(ctx context.Context, cutoff time.Time) ([]persistence.TimePunch, error) {
	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+punchColumns+` FROM time_punches
		 WHERE clock_out IS NULL AND clock_in <= ?
		 ORDER BY clock_in ASC`, formatTime(cutoff))
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	return collectPunches(rows)
}

func (r *PunchRepository) insertPunch(ctx context.Context, tx *sql.Tx, punch persistence.TimePunch) error {
	if punch.ID == "" {
		return persistence.ErrConstraintViolation
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO time_punches (`+punchColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		punch.ID,
		punch.UserID,
		nullString(punch.WorkOrderID),
		nullString(punch.TaskID),
		punch.Kind,
		formatTime(punch.ClockIn),
		nullTime(punch.ClockOut),
		nullFloat(punch.Kilometers),
		punch.PunchDate,
		formatTime(punch.CreatedAt),
		formatTime(punch.UpdatedAt),
	)
	return mapError(err)
}

// refreshActualHours recomputes the work order's actual hours from its closed
// work-kind punches and writes the result. Durations are summed in Go so the
// arithmetic matches the aggregation engine exactly.
func (r *PunchRepository) refreshActualHours(ctx context.Context, tx *sql.Tx, workOrderID *string, now time.Time) error {
	if workOrderID == nil {
		return nil
	}

	total, err := sumWorkHoursTx(ctx, tx, *workOrderID)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE work_orders SET actual_hours = ?, updated_at = ? WHERE id = ?`,
		total, formatTime(now), *workOrderID)
	return mapError(err)
}

// sumWorkHoursTx totals the closed work-kind punch durations for a work order.
func sumWorkHoursTx(ctx context.Context, tx *sql.Tx, workOrderID string) (float64, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT clock_in, clock_out FROM time_punches
		 WHERE work_order_id = ? AND kind = 'work' AND clock_out IS NOT NULL`, workOrderID)
	if err != nil {
		return 0, mapError(err)
	}
	defer rows.Close()

	var total float64
	for rows.Next() {
		var inStr, outStr string
		if err := rows.Scan(&inStr, &outStr); err != nil {
			return 0, mapError(err)
		}
		clockIn, err := parseTime(inStr, "clock_in")
		if err != nil {
			return 0, err
		}
		clockOut, err := parseTime(outStr, "clock_out")
		if err != nil {
			return 0, err
		}
		total += clockOut.Sub(clockIn).Hours()
	}
	if err := rows.Err(); err != nil {
		return 0, mapError(err)
	}
	return total, nil
}

func (r *PunchRepository) getPunchTx(ctx context.Context, tx *sql.Tx, id string) (persistence.TimePunch, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+punchColumns+` FROM time_punches WHERE id = ?`, id)
	return scanPunch(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPunch(row rowScanner) (persistence.TimePunch, error) {
	var punch persistence.TimePunch
	var workOrderID, taskID, clockOutStr sql.NullString
	var kilometers sql.NullFloat64
	var clockInStr, createdAtStr, updatedAtStr string

	err := row.Scan(
		&punch.ID,
		&punch.UserID,
		&workOrderID,
		&taskID,
		&punch.Kind,
		&clockInStr,
		&clockOutStr,
		&kilometers,
		&punch.PunchDate,
		&createdAtStr,
		&updatedAtStr,
	)
	if err != nil {
		return persistence.TimePunch{}, mapError(err)
	}

	punch.WorkOrderID = stringPtr(workOrderID)
	punch.TaskID = stringPtr(taskID)
	punch.Kilometers = floatPtr(kilometers)

	if punch.ClockIn, err = parseTime(clockInStr, "clock_in"); err != nil {
		return persistence.TimePunch{}, err
	}
	if punch.ClockOut, err = timePtr(clockOutStr, "clock_out"); err != nil {
		return persistence.TimePunch{}, err
	}
	if punch.CreatedAt, err = parseTime(createdAtStr, "created_at"); err != nil {
		return persistence.TimePunch{}, err
	}
	if punch.UpdatedAt, err = parseTime(updatedAtStr, "updated_at"); err != nil {
		return persistence.TimePunch{}, err
	}

	return punch, nil
}

func collectPunches(rows *sql.Rows) ([]persistence.TimePunch, error) {
	var punches []persistence.TimePunch
	for rows.Next() {
		punch, err := scanPunch(rows)
		if err != nil {
			return nil, err
		}
		punches = append(punches, punch)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return punches, nil
}
