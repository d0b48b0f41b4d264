// Package rollup derives read-side daily and weekly totals from a user's
// punch history. Totals are recomputed from the full punch set on every
// request because edits and deletes can rewrite history at any time.
package rollup

import "time"

// Punch kinds mirrored from the ledger. Only these three exist.
const (
	KindWork   = "work"
	KindTravel = "travel"
	KindOther  = "other"
)

// Punch is the slice of a ledger row the rollup engine needs.
type Punch struct {
	Kind       string
	ClockIn    time.Time
	ClockOut   *time.Time
	Kilometers *float64
	// PunchDate is the calendar day the punch is attributed to, in ISO form
	// (2006-01-02). Attribution follows the clock-in day, so a punch spanning
	// midnight counts entirely toward its first day.
	PunchDate string
}

// Hours returns the punch length in fractional hours. Active punches
// contribute nothing until they are closed.
func (p Punch) Hours() float64 {
	if p.ClockOut == nil {
		return 0
	}
	return p.ClockOut.Sub(p.ClockIn).Hours()
}

// DateRange bounds a set of punch dates, inclusive on both ends. ISO date
// strings order lexicographically, so containment is plain string comparison.
type DateRange struct {
	From string
	To   string
}

// Contains reports whether the punch date falls inside the range.
func (r DateRange) Contains(date string) bool {
	return date >= r.From && date <= r.To
}

// Engine resolves calendar windows in a fixed location so that "today" and
// "this week" are stable regardless of the server's zone.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that resolves windows in the provided
// location. If loc is nil, the local zone is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{location: loc}
}

// DayRange returns the single-day range containing the reference time.
func (e *Engine) DayRange(reference time.Time) DateRange {
	day := reference.In(e.location).Format("2006-01-02")
	return DateRange{From: day, To: day}
}

// WeekRange returns the Monday-start week containing the reference time.
func (e *Engine) WeekRange(reference time.Time) DateRange {
	local := reference.In(e.location)
	// In Go, Monday == 1 and Sunday == 0.
	offset := (int(local.Weekday()) + 6) % 7
	monday := local.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)
	return DateRange{
		From: monday.Format("2006-01-02"),
		To:   sunday.Format("2006-01-02"),
	}
}

// NetHours sums work-kind durations inside the range, subtracts other-kind
// (break) durations in the same range, and floors the result at zero.
func NetHours(punches []Punch, r DateRange) float64 {
	var work, breaks float64
	for _, punch := range punches {
		if !r.Contains(punch.PunchDate) {
			continue
		}
		switch punch.Kind {
		case KindWork:
			work += punch.Hours()
		case KindOther:
			breaks += punch.Hours()
		}
	}
	net := work - breaks
	if net < 0 {
		return 0
	}
	return net
}

// Kilometers sums the kilometers of travel-kind punches inside the range.
func Kilometers(punches []Punch, r DateRange) float64 {
	var total float64
	for _, punch := range punches {
		if punch.Kind != KindTravel || punch.Kilometers == nil {
			continue
		}
		if !r.Contains(punch.PunchDate) {
			continue
		}
		total += *punch.Kilometers
	}
	return total
}

// TotalKilometers sums the kilometers of all travel-kind punches.
func TotalKilometers(punches []Punch) float64 {
	var total float64
	for _, punch := range punches {
		if punch.Kind != KindTravel || punch.Kilometers == nil {
			continue
		}
		total += *punch.Kilometers
	}
	return total
}

// WorkHours sums closed work-kind durations without break subtraction.
// Work-order actual hours use this over the punches linked to one order.
func WorkHours(punches []Punch) float64 {
	var total float64
	for _, punch := range punches {
		if punch.Kind != KindWork {
			continue
		}
		total += punch.Hours()
	}
	return total
}
