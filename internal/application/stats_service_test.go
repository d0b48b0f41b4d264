package application

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/example/fieldservice/internal/rollup"
)

func statsPunch(id, userID string, kind PunchKind, clockIn time.Time, hours float64, km *float64) TimePunch {
	out := clockIn.Add(time.Duration(hours * float64(time.Hour)))
	return TimePunch{
		ID:         id,
		UserID:     userID,
		Kind:       kind,
		ClockIn:    clockIn,
		ClockOut:   &out,
		Kilometers: km,
		PunchDate:  clockIn.UTC().Format("2006-01-02"),
	}
}

func TestStatsService_UserStats(t *testing.T) {
	t.Parallel()

	// Monday 2025-03-03. The week window is Mar 3 through Mar 9.
	repo := newFakePunchRepo()
	today := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	kmToday := 20.0
	kmLastWeek := 99.0

	repo.punches["work"] = statsPunch("work", "tech1", PunchKindWork, today, 8, nil)
	repo.punches["break"] = statsPunch("break", "tech1", PunchKindOther, today.Add(4*time.Hour), 0.5, nil)
	repo.punches["travel"] = statsPunch("travel", "tech1", PunchKindTravel, today.Add(9*time.Hour), 1, &kmToday)
	repo.punches["old-travel"] = statsPunch("old-travel", "tech1", PunchKindTravel, lastWeek, 1, &kmLastWeek)
	repo.punches["other-user"] = statsPunch("other-user", "tech2", PunchKindWork, today, 6, nil)

	svc := NewStatsService(repo, rollup.NewEngine(time.UTC), func() time.Time { return today.Add(10 * time.Hour) }, nil)

	stats, err := svc.UserStats(context.Background(), technician("tech1"))
	if err != nil {
		t.Fatalf("user stats failed: %v", err)
	}

	if math.Abs(stats.HoursToday-7.5) > 1e-9 {
		t.Errorf("expected 7.5 net hours today, got %v", stats.HoursToday)
	}
	if math.Abs(stats.HoursThisWeek-7.5) > 1e-9 {
		t.Errorf("expected 7.5 net hours this week, got %v", stats.HoursThisWeek)
	}
	if stats.KmToday != 20 {
		t.Errorf("expected 20 km today, got %v", stats.KmToday)
	}
	if stats.KmThisWeek != 20 {
		t.Errorf("expected 20 km this week, got %v", stats.KmThisWeek)
	}
	if stats.KmOverall != 119 {
		t.Errorf("expected 119 km overall, got %v", stats.KmOverall)
	}
	if stats.ActivePunch != nil {
		t.Errorf("expected no active punch, got %+v", stats.ActivePunch)
	}
}

func TestStatsService_UserStats_ActivePunchExcludedFromHours(t *testing.T) {
	t.Parallel()

	repo := newFakePunchRepo()
	today := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	repo.punches["open"] = TimePunch{
		ID:        "open",
		UserID:    "tech1",
		Kind:      PunchKindWork,
		ClockIn:   today,
		PunchDate: "2025-03-03",
	}

	svc := NewStatsService(repo, rollup.NewEngine(time.UTC), func() time.Time { return today.Add(2 * time.Hour) }, nil)

	stats, err := svc.UserStats(context.Background(), technician("tech1"))
	if err != nil {
		t.Fatalf("user stats failed: %v", err)
	}
	if stats.HoursToday != 0 {
		t.Errorf("expected open punch to contribute no hours, got %v", stats.HoursToday)
	}
	if stats.ActivePunch == nil || stats.ActivePunch.ID != "open" {
		t.Errorf("expected the open punch on the stats, got %+v", stats.ActivePunch)
	}
}

func TestStatsService_UserStats_BreaksFloorAtZero(t *testing.T) {
	t.Parallel()

	repo := newFakePunchRepo()
	today := time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)
	repo.punches["work"] = statsPunch("work", "tech1", PunchKindWork, today, 1, nil)
	repo.punches["break"] = statsPunch("break", "tech1", PunchKindOther, today.Add(2*time.Hour), 2, nil)

	svc := NewStatsService(repo, rollup.NewEngine(time.UTC), func() time.Time { return today.Add(5 * time.Hour) }, nil)

	stats, err := svc.UserStats(context.Background(), technician("tech1"))
	if err != nil {
		t.Fatalf("user stats failed: %v", err)
	}
	if stats.HoursToday != 0 {
		t.Errorf("expected net hours floored at zero, got %v", stats.HoursToday)
	}
}
