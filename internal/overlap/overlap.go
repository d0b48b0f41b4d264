// Package overlap detects overlapping punch intervals for a single user.
// The punch ledger tolerates overlaps introduced by manual corrections; the
// detector exists so callers can surface them as warnings, not reject them.
package overlap

import "time"

// Interval is one closed punch interval under inspection.
type Interval struct {
	PunchID string
	Start   time.Time
	End     time.Time
}

// Overlap details an overlapping interval pair that callers can present to users.
type Overlap struct {
	PunchID     string
	WithPunchID string
	// Start and End bound the shared portion of the two intervals.
	Start time.Time
	End   time.Time
}

// Detect identifies overlaps between the candidate interval and existing ones.
// Intervals that merely touch at an endpoint do not overlap. Zero-length or
// inverted candidates yield nothing.
func Detect(existing []Interval, candidate Interval) []Overlap {
	if !candidate.Start.Before(candidate.End) {
		return nil
	}

	var overlaps []Overlap
	for _, other := range existing {
		if other.PunchID == candidate.PunchID {
			continue
		}
		if !other.Start.Before(other.End) {
			continue
		}
		if !candidate.Start.Before(other.End) || !other.Start.Before(candidate.End) {
			continue
		}

		shared := Overlap{
			PunchID:     candidate.PunchID,
			WithPunchID: other.PunchID,
			Start:       laterOf(candidate.Start, other.Start),
			End:         earlierOf(candidate.End, other.End),
		}
		overlaps = append(overlaps, shared)
	}

	return overlaps
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
