package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/fieldservice/internal/persistence"
)

func newTestPunch(id, userID string, clockIn time.Time) persistence.TimePunch {
	return persistence.TimePunch{
		ID:        id,
		UserID:    userID,
		Kind:      "work",
		ClockIn:   clockIn,
		PunchDate: clockIn.UTC().Format("2006-01-02"),
		CreatedAt: clockIn,
		UpdatedAt: clockIn,
	}
}

func TestPunchRepository_InsertOpen_SecondOpenPunchRejected(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	if _, err := repo.InsertOpen(ctx, newTestPunch("p1", "tech1", start), false); err != nil {
		t.Fatalf("First InsertOpen failed: %v", err)
	}

	_, err := repo.InsertOpen(ctx, newTestPunch("p2", "tech1", start.Add(time.Minute)), false)
	if !errors.Is(err, persistence.ErrActivePunchExists) {
		t.Fatalf("Expected ErrActivePunchExists, got %v", err)
	}
}

func TestPunchRepository_InsertOpen_AllowedAfterClose(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	if _, err := repo.InsertOpen(ctx, newTestPunch("p1", "tech1", start), false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}
	if _, err := repo.Close(ctx, "p1", start.Add(time.Hour), nil); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := repo.InsertOpen(ctx, newTestPunch("p2", "tech1", start.Add(2*time.Hour)), false); err != nil {
		t.Fatalf("InsertOpen after close failed: %v", err)
	}
}

func TestPunchRepository_InsertOpen_AdvancesAssignedWorkOrder(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	seedWorkOrder(t, pool, "wo1", "assigned")
	punches := NewPunchRepository(pool, time.UTC)
	orders := NewWorkOrderRepository(pool)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	punch := newTestPunch("p1", "tech1", start)
	workOrderID := "wo1"
	punch.WorkOrderID = &workOrderID

	if _, err := punches.InsertOpen(ctx, punch, true); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}

	order, err := orders.GetWorkOrder(ctx, "wo1")
	if err != nil {
		t.Fatalf("GetWorkOrder failed: %v", err)
	}
	if order.Status != "in-progress" {
		t.Errorf("Expected status in-progress, got %s", order.Status)
	}
}

func TestPunchRepository_InsertOpen_RefreshesActualHours(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	seedUser(t, pool, "tech2")
	seedWorkOrder(t, pool, "wo1", "in-progress")
	punches := NewPunchRepository(pool, time.UTC)
	orders := NewWorkOrderRepository(pool)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	workOrderID := "wo1"

	closed := newTestPunch("p1", "tech1", start)
	closed.WorkOrderID = &workOrderID
	clockOut := start.Add(2 * time.Hour)
	closed.ClockOut = &clockOut
	if _, err := punches.InsertClosed(ctx, closed); err != nil {
		t.Fatalf("InsertClosed failed: %v", err)
	}

	open := newTestPunch("p2", "tech2", start.Add(3*time.Hour))
	open.WorkOrderID = &workOrderID
	if _, err := punches.InsertOpen(ctx, open, false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}

	order, err := orders.GetWorkOrder(ctx, "wo1")
	if err != nil {
		t.Fatalf("GetWorkOrder failed: %v", err)
	}
	if order.ActualHours != 2.0 {
		t.Errorf("Expected actual hours 2.0 with the open punch excluded, got %v", order.ActualHours)
	}
}

func TestPunchRepository_Close_RefreshesActualHours(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	seedWorkOrder(t, pool, "wo1", "in-progress")
	punches := NewPunchRepository(pool, time.UTC)
	orders := NewWorkOrderRepository(pool)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	punch := newTestPunch("p1", "tech1", start)
	workOrderID := "wo1"
	punch.WorkOrderID = &workOrderID

	if _, err := punches.InsertOpen(ctx, punch, false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}

	closed, err := punches.Close(ctx, "p1", start.Add(90*time.Minute), nil)
	if err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if closed.ClockOut == nil {
		t.Fatal("Expected clock-out to be set")
	}

	order, err := orders.GetWorkOrder(ctx, "wo1")
	if err != nil {
		t.Fatalf("GetWorkOrder failed: %v", err)
	}
	if order.ActualHours != 1.5 {
		t.Errorf("Expected actual hours 1.5, got %v", order.ActualHours)
	}
}

func TestPunchRepository_Close_AlreadyClosedRejected(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	if _, err := repo.InsertOpen(ctx, newTestPunch("p1", "tech1", start), false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}
	if _, err := repo.Close(ctx, "p1", start.Add(time.Hour), nil); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := repo.Close(ctx, "p1", start.Add(2*time.Hour), nil)
	if !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation, got %v", err)
	}
}

func TestPunchRepository_Delete_ReducesActualHours(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	seedWorkOrder(t, pool, "wo1", "in-progress")
	punches := NewPunchRepository(pool, time.UTC)
	orders := NewWorkOrderRepository(pool)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	workOrderID := "wo1"

	punch := newTestPunch("p1", "tech1", start)
	punch.WorkOrderID = &workOrderID
	clockOut := start.Add(2 * time.Hour)
	punch.ClockOut = &clockOut

	if _, err := punches.InsertClosed(ctx, punch); err != nil {
		t.Fatalf("InsertClosed failed: %v", err)
	}

	order, err := orders.GetWorkOrder(ctx, "wo1")
	if err != nil {
		t.Fatalf("GetWorkOrder failed: %v", err)
	}
	if order.ActualHours != 2.0 {
		t.Fatalf("Expected actual hours 2.0, got %v", order.ActualHours)
	}

	if err := punches.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	order, err = orders.GetWorkOrder(ctx, "wo1")
	if err != nil {
		t.Fatalf("GetWorkOrder failed: %v", err)
	}
	if order.ActualHours != 0 {
		t.Errorf("Expected actual hours 0 after delete, got %v", order.ActualHours)
	}
}

func TestPunchRepository_UpdateInterval_RederivesPunchDate(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()
	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	punch := newTestPunch("p1", "tech1", start)
	clockOut := start.Add(time.Hour)
	punch.ClockOut = &clockOut
	if _, err := repo.InsertClosed(ctx, punch); err != nil {
		t.Fatalf("InsertClosed failed: %v", err)
	}

	newStart := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	updated, err := repo.UpdateInterval(ctx, "p1", newStart, newStart.Add(2*time.Hour), nil)
	if err != nil {
		t.Fatalf("UpdateInterval failed: %v", err)
	}

	if updated.PunchDate != "2025-03-04" {
		t.Errorf("Expected punch date 2025-03-04, got %s", updated.PunchDate)
	}
	if updated.ClockOut == nil || !updated.ClockOut.Equal(newStart.Add(2*time.Hour)) {
		t.Errorf("Expected clock-out %v, got %v", newStart.Add(2*time.Hour), updated.ClockOut)
	}
}

func TestPunchRepository_ActivePunch(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()

	if _, err := repo.ActivePunch(ctx, "tech1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound with no punches, got %v", err)
	}

	start := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	if _, err := repo.InsertOpen(ctx, newTestPunch("p1", "tech1", start), false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}

	active, err := repo.ActivePunch(ctx, "tech1")
	if err != nil {
		t.Fatalf("ActivePunch failed: %v", err)
	}
	if active.ID != "p1" {
		t.Errorf("Expected punch p1, got %s", active.ID)
	}
}

func TestPunchRepository_ListPunches_Filters(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	seedUser(t, pool, "tech2")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

	insertClosedPunch := func(id, userID, kind string, start time.Time, hours float64) {
		punch := newTestPunch(id, userID, start)
		punch.Kind = kind
		end := start.Add(time.Duration(hours * float64(time.Hour)))
		punch.ClockOut = &end
		if _, err := repo.InsertClosed(ctx, punch); err != nil {
			t.Fatalf("InsertClosed %s failed: %v", id, err)
		}
	}

	insertClosedPunch("p1", "tech1", "work", day.Add(9*time.Hour), 2)
	insertClosedPunch("p2", "tech1", "travel", day.Add(12*time.Hour), 1)
	insertClosedPunch("p3", "tech2", "work", day.Add(9*time.Hour), 3)

	mine, err := repo.ListPunches(ctx, persistence.PunchFilter{UserID: "tech1"})
	if err != nil {
		t.Fatalf("ListPunches failed: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("Expected 2 punches for tech1, got %d", len(mine))
	}
	if mine[0].ID != "p1" || mine[1].ID != "p2" {
		t.Errorf("Expected clock-in ordering p1, p2; got %s, %s", mine[0].ID, mine[1].ID)
	}

	travel, err := repo.ListPunches(ctx, persistence.PunchFilter{UserID: "tech1", Kind: "travel"})
	if err != nil {
		t.Fatalf("ListPunches with kind failed: %v", err)
	}
	if len(travel) != 1 || travel[0].ID != "p2" {
		t.Errorf("Expected only p2 for travel filter, got %d punches", len(travel))
	}

	from := day.Add(11 * time.Hour)
	late, err := repo.ListPunches(ctx, persistence.PunchFilter{UserID: "tech1", From: &from})
	if err != nil {
		t.Fatalf("ListPunches with from failed: %v", err)
	}
	if len(late) != 1 || late[0].ID != "p2" {
		t.Errorf("Expected only p2 after 11:00, got %d punches", len(late))
	}
}

func TestPunchRepository_ListStale(t *testing.T) {
	pool := openTestPool(t)
	seedUser(t, pool, "tech1")
	seedUser(t, pool, "tech2")
	repo := NewPunchRepository(pool, time.UTC)

	ctx := context.Background()
	old := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	recent := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	if _, err := repo.InsertOpen(ctx, newTestPunch("p1", "tech1", old), false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}
	if _, err := repo.InsertOpen(ctx, newTestPunch("p2", "tech2", recent), false); err != nil {
		t.Fatalf("InsertOpen failed: %v", err)
	}

	stale, err := repo.ListStale(ctx, old.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListStale failed: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != "p1" {
		t.Fatalf("Expected only the old punch to be stale, got %d punches", len(stale))
	}
}
