// Package probation derives a trainee's multi-week probation status from
// raw KPI-action records, per-week numeric targets, and calendar
// boundaries. All inputs come from the backend through the gateway;
// everything this package produces is recomputed on demand and never
// persisted.
package probation

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used by the backend.
const DateLayout = "2006-01-02"

// DefaultWeekCount is the length of a probation period in weeks.
const DefaultWeekCount = 12

// OnTrackThreshold is the minimum historical success rate
// (weeks_successful / weeks_completed) for a trainee to be considered on
// track. Fixed policy constant.
const OnTrackThreshold = 0.75

// WeekStatus classifies a week relative to today.
type WeekStatus string

const (
	WeekUpcoming  WeekStatus = "upcoming"  // today < start_date
	WeekCurrent   WeekStatus = "current"   // start_date <= today <= end_date
	WeekCompleted WeekStatus = "completed" // today > end_date
)

// Sale is a trainee record.
type Sale struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	StartingDate string `json:"starting_date"`
	RankID       string `json:"rank_id,omitempty"`
	MentorID     string `json:"mentor_id,omitempty"`
}

// Week is one 7-day probation interval anchored to the trainee's
// starting date. Weeks are contiguous and non-overlapping:
// start(n+1) = end(n) + 1 day.
type Week struct {
	ID          string `json:"id,omitempty"`
	SalesID     string `json:"sales_id"`
	WeekNumber  int    `json:"week_number"`
	MonthNumber int    `json:"month_number"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// Start parses the week's start date.
func (w Week) Start() (time.Time, error) {
	t, err := time.Parse(DateLayout, w.StartDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("week %d: bad start_date %q: %w", w.WeekNumber, w.StartDate, err)
	}
	return t, nil
}

// End parses the week's end date.
func (w Week) End() (time.Time, error) {
	t, err := time.Parse(DateLayout, w.EndDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("week %d: bad end_date %q: %w", w.WeekNumber, w.EndDate, err)
	}
	return t, nil
}

// KpiTarget is the numeric goal for one KPI in one week, scoped to one
// trainee.
type KpiTarget struct {
	ID          string  `json:"id,omitempty"`
	SalesID     string  `json:"sales_id"`
	WeekID      string  `json:"week_id"`
	KpiID       string  `json:"kpi_id"`
	TargetCount float64 `json:"target_count"`
}

// KpiActionRecord is one logged occurrence contributing toward a target.
// Multiple records per (sales_id, week_id, kpi_id) are summed.
type KpiActionRecord struct {
	ID        string  `json:"id,omitempty"`
	SalesID   string  `json:"sales_id"`
	WeekID    string  `json:"week_id"`
	KpiID     string  `json:"kpi_id"`
	DateAdded string  `json:"date_added"`
	Count     float64 `json:"count"`
}

// KpiDetail is one KPI's standing within a week.
type KpiDetail struct {
	KpiID      string  `json:"kpi_id"`
	Target     float64 `json:"target"`
	Actual     float64 `json:"actual"`
	Percentage float64 `json:"percentage"`
	Achieved   bool    `json:"achieved"`
}

// WeekProgress is the derived standing of one week. Not persisted.
type WeekProgress struct {
	WeekID          string      `json:"week_id"`
	WeekNumber      int         `json:"week_number"`
	StartDate       string      `json:"start_date"`
	EndDate         string      `json:"end_date"`
	Status          WeekStatus  `json:"status"`
	KpiDetails      []KpiDetail `json:"kpi_details"`
	OverallProgress int         `json:"overall_progress"`
	PassCriteriaMet bool        `json:"pass_criteria_met"`
}

// ProbationProgress is the derived roll-up over a trainee's probation
// period. Not persisted; cached with a short TTL and invalidated whenever
// an underlying KPI-action record changes.
type ProbationProgress struct {
	SalesID           string         `json:"sales_id"`
	CurrentWeek       *int           `json:"current_week,omitempty"`
	ProbationProgress int            `json:"probation_progress"`
	WeeksTotal        int            `json:"weeks_total"`
	WeeksCompleted    int            `json:"weeks_completed"`
	WeeksSuccessful   int            `json:"weeks_successful"`
	OnTrackToPass     bool           `json:"on_track_to_pass"`
	WeeklyDetails     []WeekProgress `json:"weekly_details"`
}
