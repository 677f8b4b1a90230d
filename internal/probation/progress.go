package probation

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ComputeWeekProgress derives one week's standing from its targets and
// the trainee's logged actions. Action counts sharing a kpi_id are
// summed; each KPI's percentage is capped at 100 so overachievement on
// one KPI can offset shortfalls on another only up to its own target.
//
// A week with no targets yields overall_progress 0 and
// pass_criteria_met false: an unconfigured week counts as a failed week,
// not a skipped one, so incomplete setup never inflates progress.
func ComputeWeekProgress(week Week, targets []KpiTarget, actions []KpiActionRecord) WeekProgress {
	actualByKpi := make(map[string]float64)
	for _, a := range actions {
		if a.WeekID == week.ID {
			actualByKpi[a.KpiID] += a.Count
		}
	}

	details := make([]KpiDetail, 0, len(targets))
	sum := 0.0
	for _, t := range targets {
		if t.WeekID != week.ID {
			continue
		}

		actual := actualByKpi[t.KpiID]

		var pct float64
		var achieved bool
		if t.TargetCount <= 0 {
			// A zero target is trivially met.
			pct = 100
			achieved = true
		} else {
			pct = math.Min(actual/t.TargetCount*100, 100)
			achieved = actual >= t.TargetCount
		}

		details = append(details, KpiDetail{
			KpiID:      t.KpiID,
			Target:     t.TargetCount,
			Actual:     actual,
			Percentage: pct,
			Achieved:   achieved,
		})
		sum += pct
	}

	overall := 0
	if len(details) > 0 {
		overall = int(math.Round(sum / float64(len(details))))
	}

	return WeekProgress{
		WeekID:          week.ID,
		WeekNumber:      week.WeekNumber,
		StartDate:       week.StartDate,
		EndDate:         week.EndDate,
		KpiDetails:      details,
		OverallProgress: overall,
		// Strict threshold on the week-level average, not per KPI.
		PassCriteriaMet: overall >= 100 && len(details) > 0,
	}
}

// computeProbation rolls per-week standings up into the probation
// summary. today drives the upcoming/current/completed classification.
func computeProbation(salesID string, weeks []Week, targets []KpiTarget, actions []KpiActionRecord, now time.Time, log zerolog.Logger) ProbationProgress {

	sorted := make([]Week, len(weeks))
	copy(sorted, weeks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WeekNumber < sorted[j].WeekNumber
	})

	result := ProbationProgress{
		SalesID:       salesID,
		WeeksTotal:    len(sorted),
		WeeklyDetails: make([]WeekProgress, 0, len(sorted)),
	}

	for _, w := range sorted {
		wp := ComputeWeekProgress(w, targets, actions)
		wp.Status = w.StatusOn(now)

		switch wp.Status {
		case WeekCurrent:
			num := w.WeekNumber
			result.CurrentWeek = &num
		case WeekCompleted:
			result.WeeksCompleted++
			if wp.PassCriteriaMet {
				result.WeeksSuccessful++
			} else if len(wp.KpiDetails) == 0 {
				// Counted as failed; flagged so incomplete setup is visible.
				log.Warn().
					Str("sales_id", salesID).
					Int("week_number", w.WeekNumber).
					Msg("Completed week has no KPI targets configured, counting as failed")
			}
		}

		result.WeeklyDetails = append(result.WeeklyDetails, wp)
	}

	if result.WeeksTotal > 0 {
		result.ProbationProgress = int(math.Round(float64(result.WeeksSuccessful) / float64(result.WeeksTotal) * 100))
	}

	// Optimistic default before any week has completed; afterwards the
	// historical success rate must meet the policy threshold.
	result.OnTrackToPass = result.WeeksCompleted == 0 ||
		float64(result.WeeksSuccessful)/float64(result.WeeksCompleted) >= OnTrackThreshold

	return result
}
