package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/fieldservice/internal/persistence"
	"github.com/example/fieldservice/internal/rollup"
)

// StatsService derives the daily and weekly rollups for a user's dashboard.
// Everything is recomputed from the full punch history per request; edits and
// deletes can rewrite history at any time, so nothing here is cached.
type StatsService struct {
	punches PunchRepository
	engine  *rollup.Engine
	now     func() time.Time
	logger  *slog.Logger
}

// NewStatsService wires dependencies for rollup queries.
func NewStatsService(punches PunchRepository, engine *rollup.Engine, now func() time.Time, logger *slog.Logger) *StatsService {
	if now == nil {
		now = time.Now
	}
	if engine == nil {
		engine = rollup.NewEngine(nil)
	}
	return &StatsService{
		punches: punches,
		engine:  engine,
		now:     now,
		logger:  defaultLogger(logger),
	}
}

// UserStats computes hours and kilometer totals for the principal.
func (s *StatsService) UserStats(ctx context.Context, principal Principal) (UserStats, error) {
	if s == nil || s.punches == nil {
		return UserStats{}, fmt.Errorf("punch repository not configured")
	}

	punches, err := s.punches.ListPunches(ctx, PunchFilter{UserID: principal.UserID})
	if err != nil {
		return UserStats{}, err
	}

	entries := make([]rollup.Punch, 0, len(punches))
	for _, punch := range punches {
		entries = append(entries, rollup.Punch{
			Kind:       string(punch.Kind),
			ClockIn:    punch.ClockIn,
			ClockOut:   punch.ClockOut,
			Kilometers: punch.Kilometers,
			PunchDate:  punch.PunchDate,
		})
	}

	reference := s.now()
	day := s.engine.DayRange(reference)
	week := s.engine.WeekRange(reference)

	stats := UserStats{
		HoursToday:    rollup.NetHours(entries, day),
		HoursThisWeek: rollup.NetHours(entries, week),
		KmToday:       rollup.Kilometers(entries, day),
		KmThisWeek:    rollup.Kilometers(entries, week),
		KmOverall:     rollup.TotalKilometers(entries),
	}

	active, err := s.punches.ActivePunch(ctx, principal.UserID)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) {
			return UserStats{}, err
		}
	} else {
		stats.ActivePunch = &active
	}

	serviceLogger(ctx, s.logger, "stats", "user_stats", "user_id", principal.UserID).
		DebugContext(ctx, "rollups computed", "hours_today", stats.HoursToday, "hours_week", stats.HoursThisWeek)
	return stats, nil
}
