// Package deadline classifies end dates against the current date and projects
// schedule risk from progress. All functions are pure: "today" is always an
// explicit parameter so callers (and tests) control the clock.
package deadline

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format used across the API and store.
const DateLayout = "2006-01-02"

// warningWindowDays is the inclusive number of days before an end date at
// which an item switches from on-time to warning.
const warningWindowDays = 7

// riskLagPercent is how far (in percentage points) progress may trail the
// time-proportional expectation before a warning-window item counts as at risk.
const riskLagPercent = 10

type Classification string

const (
	OnTime  Classification = "on-time"
	Warning Classification = "warning"
	Overdue Classification = "overdue"
	Unknown Classification = "unknown"
)

// Verdict is the result of classifying a single end date. Exactly one of
// DaysRemaining/DaysOverdue is meaningful for a given classification; the
// other is zero.
type Verdict struct {
	Classification Classification `json:"classification" enum:"on-time,warning,overdue,unknown"`
	DaysRemaining  int            `json:"days_remaining"`
	DaysOverdue    int            `json:"days_overdue"`
	IsOverdue      bool           `json:"is_overdue"`
}

// InvalidDateError reports a date string that is not a YYYY-MM-DD calendar
// date. It is distinct from a policy denial or a missing date, both of which
// are legitimate non-error outcomes.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid calendar date %q (want YYYY-MM-DD)", e.Value)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &InvalidDateError{Value: s}
	}
	return t, nil
}

// truncate drops the time-of-day component so day math never sees partial days.
func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b (negative when b
// precedes a).
func daysBetween(a, b time.Time) int {
	return int(truncate(b).Sub(truncate(a)).Hours() / 24)
}

// Evaluate classifies endDate against today. An empty endDate yields Unknown.
// The progress argument does not influence classification: a fully complete
// item past its end date still reports overdue, matching how the dashboard
// treats deadline truth as date-based. It is part of the signature so callers
// evaluate records uniformly.
func Evaluate(endDate string, progress int, today time.Time) (Verdict, error) {
	_ = progress
	if endDate == "" {
		return Verdict{Classification: Unknown}, nil
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return Verdict{}, err
	}
	daysDiff := daysBetween(today, end)
	switch {
	case daysDiff < 0:
		return Verdict{
			Classification: Overdue,
			DaysOverdue:    -daysDiff,
			IsOverdue:      true,
		}, nil
	case daysDiff <= warningWindowDays:
		return Verdict{
			Classification: Warning,
			DaysRemaining:  daysDiff,
		}, nil
	default:
		return Verdict{
			Classification: OnTime,
			DaysRemaining:  daysDiff,
		}, nil
	}
}

// IsAtRisk reports whether an item is behind schedule: overdue outright, or
// inside the warning window while trailing its time-proportional expected
// progress by more than riskLagPercent. Items missing either date are never
// at risk. The overdue decision is delegated to Evaluate so the two can never
// disagree about what counts as overdue.
func IsAtRisk(endDate, startDate string, progress int, today time.Time) (bool, error) {
	if endDate == "" || startDate == "" {
		return false, nil
	}
	verdict, err := Evaluate(endDate, progress, today)
	if err != nil {
		return false, err
	}
	start, err := ParseDate(startDate)
	if err != nil {
		return false, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return false, err
	}
	totalDays := daysBetween(start, end)
	elapsedDays := daysBetween(start, today)
	expected := 0.0
	if totalDays > 0 {
		expected = float64(elapsedDays) / float64(totalDays) * 100
	}
	if verdict.IsOverdue {
		return true, nil
	}
	return verdict.Classification == Warning && float64(progress) < expected-riskLagPercent, nil
}

// Snapshot is the subset of a tracked record that risk aggregation needs.
type Snapshot struct {
	StartDate string
	EndDate   string
	Progress  int
	Status    string
}

// CountAtRisk tallies at-risk items across a collection, skipping records in
// terminal states. Records whose dates fail to parse are skipped rather than
// aborting the whole aggregate.
func CountAtRisk(items []Snapshot, today time.Time) int {
	count := 0
	for _, it := range items {
		if it.Status == "completed" || it.Status == "cancelled" {
			continue
		}
		atRisk, err := IsAtRisk(it.EndDate, it.StartDate, it.Progress, today)
		if err != nil {
			continue
		}
		if atRisk {
			count++
		}
	}
	return count
}
