package deadline

import (
	"errors"
	"testing"
	"time"
)

var today = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func date(days int) string {
	return today.AddDate(0, 0, days).Format(DateLayout)
}

func TestEvaluateClassification(t *testing.T) {
	cases := []struct {
		name          string
		endDate       string
		want          Classification
		daysRemaining int
		daysOverdue   int
		isOverdue     bool
	}{
		{"seven days out is warning", date(7), Warning, 7, 0, false},
		{"eight days out is on time", date(8), OnTime, 8, 0, false},
		{"one day out is warning", date(1), Warning, 1, 0, false},
		{"due today is warning", date(0), Warning, 0, 0, false},
		{"one day past is overdue", date(-1), Overdue, 0, 1, true},
		{"long past is overdue", date(-30), Overdue, 0, 30, true},
		{"far future is on time", date(120), OnTime, 120, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := Evaluate(tc.endDate, 0, today)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if v.Classification != tc.want {
				t.Fatalf("classification = %s, want %s", v.Classification, tc.want)
			}
			if v.DaysRemaining != tc.daysRemaining || v.DaysOverdue != tc.daysOverdue {
				t.Fatalf("days = %d/%d, want %d/%d", v.DaysRemaining, v.DaysOverdue, tc.daysRemaining, tc.daysOverdue)
			}
			if v.IsOverdue != tc.isOverdue {
				t.Fatalf("isOverdue = %v, want %v", v.IsOverdue, tc.isOverdue)
			}
		})
	}
}

func TestEvaluateMissingDate(t *testing.T) {
	v, err := Evaluate("", 50, today)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if v.Classification != Unknown || v.IsOverdue {
		t.Fatalf("expected unknown verdict, got %+v", v)
	}
}

func TestEvaluateIgnoresProgress(t *testing.T) {
	// A complete item past its end date still reports overdue.
	v, err := Evaluate(date(-3), 100, today)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !v.IsOverdue || v.DaysOverdue != 3 {
		t.Fatalf("expected overdue by 3 days, got %+v", v)
	}
}

func TestEvaluateMalformedDate(t *testing.T) {
	for _, bad := range []string{"2024-13-40", "yesterday", "03/15/2024"} {
		_, err := Evaluate(bad, 0, today)
		var invalid *InvalidDateError
		if !errors.As(err, &invalid) {
			t.Fatalf("expected InvalidDateError for %q, got %v", bad, err)
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	a, _ := Evaluate(date(5), 40, today)
	b, _ := Evaluate(date(5), 40, today)
	if a != b {
		t.Fatalf("same inputs produced %+v and %+v", a, b)
	}
}

func TestIsAtRisk(t *testing.T) {
	cases := []struct {
		name     string
		start    string
		end      string
		progress int
		want     bool
	}{
		{"missing end date", date(-10), "", 0, false},
		{"missing start date", "", date(3), 0, false},
		{"overdue always at risk", date(-20), date(-1), 100, true},
		// 100 days elapsed of 105 total, expected ~95; warning window.
		{"warning and lagging", date(-100), date(5), 30, true},
		{"warning but close to expected", date(-100), date(5), 90, false},
		{"on time never at risk", date(-10), date(60), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := IsAtRisk(tc.end, tc.start, tc.progress, today)
			if err != nil {
				t.Fatalf("isAtRisk: %v", err)
			}
			if got != tc.want {
				t.Fatalf("isAtRisk = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsAtRiskZeroLengthSchedule(t *testing.T) {
	// start == end: expected progress collapses to 0, so a warning-window
	// item cannot be flagged by the lag rule.
	got, err := IsAtRisk(date(2), date(2), 0, today)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Fatalf("zero-length schedule should not be at risk via lag rule")
	}
}

func TestIsAtRiskMalformedDate(t *testing.T) {
	_, err := IsAtRisk("not-a-date", date(-5), 10, today)
	var invalid *InvalidDateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDateError, got %v", err)
	}
}

func TestCountAtRisk(t *testing.T) {
	items := []Snapshot{
		{StartDate: date(-20), EndDate: date(-1), Progress: 50, Status: "active"},    // overdue
		{StartDate: date(-20), EndDate: date(-1), Progress: 50, Status: "completed"}, // terminal, skipped
		{StartDate: date(-20), EndDate: date(-1), Progress: 50, Status: "cancelled"}, // terminal, skipped
		{StartDate: date(-100), EndDate: date(5), Progress: 10, Status: "active"},    // warning + lagging
		{StartDate: date(-10), EndDate: date(60), Progress: 0, Status: "active"},     // on time
		{StartDate: "", EndDate: date(-1), Progress: 0, Status: "active"},            // missing start
		{StartDate: "bogus", EndDate: date(-1), Progress: 0, Status: "active"},       // unparseable, skipped
	}
	if got := CountAtRisk(items, today); got != 2 {
		t.Fatalf("countAtRisk = %d, want 2", got)
	}
}
