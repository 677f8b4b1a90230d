package probation

import "time"

// PlanWeeks builds the fixed batch of contiguous 7-day weeks anchored to
// a trainee's starting date. Week n covers days [start+(n-1)*7, start+n*7-1],
// so each week's start is exactly one day after the previous week's end.
// month_number groups weeks in fours (weeks 1-4 are month 1, and so on).
func PlanWeeks(salesID string, startingDate time.Time, weekCount int) []Week {
	if weekCount <= 0 {
		weekCount = DefaultWeekCount
	}

	start := truncateToDay(startingDate)
	weeks := make([]Week, 0, weekCount)
	for n := 1; n <= weekCount; n++ {
		ws := start.AddDate(0, 0, (n-1)*7)
		we := ws.AddDate(0, 0, 6)
		weeks = append(weeks, Week{
			SalesID:     salesID,
			WeekNumber:  n,
			MonthNumber: (n-1)/4 + 1,
			StartDate:   ws.Format(DateLayout),
			EndDate:     we.Format(DateLayout),
		})
	}
	return weeks
}

// StatusOn classifies the week relative to the given day. Date parse
// failures classify as upcoming so malformed records never count as
// completed (and therefore never count as failed weeks).
func (w Week) StatusOn(today time.Time) WeekStatus {
	start, err := w.Start()
	if err != nil {
		return WeekUpcoming
	}
	end, err := w.End()
	if err != nil {
		return WeekUpcoming
	}

	day := truncateToDay(today)
	switch {
	case day.Before(start):
		return WeekUpcoming
	case day.After(end):
		return WeekCompleted
	default:
		return WeekCurrent
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
