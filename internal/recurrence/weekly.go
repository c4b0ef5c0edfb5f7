// Package recurrence expands repeating booking requests into concrete
// occurrence dates. Pure date math, no I/O.
package recurrence

import "time"

const dateLayout = "2006-01-02"

// DefaultMaxOccurrences bounds a weekly series when the caller sets no cap.
const DefaultMaxOccurrences = 60

// Occurrence is one generated slot: a calendar date plus the unchanged
// time-of-day string.
type Occurrence struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Bounds limits a weekly series by a count or an end date. When both are
// set, whichever bound is reached first wins.
type Bounds struct {
	Count   int
	EndDate string
}

// ComputeWeeklyOccurrences produces the sequence of weekly occurrences
// starting at startDate (YYYY-MM-DD), stepping 7 days and preserving
// timeOfDay verbatim, until the requested bound is reached. The series is
// always hard capped at maxOccurrences regardless of the request. An
// unparseable date yields an empty sequence, never an error.
func ComputeWeeklyOccurrences(startDate, timeOfDay string, bounds Bounds, maxOccurrences int) []Occurrence {
	start, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}

	var end time.Time
	if bounds.EndDate != "" {
		end, err = time.Parse(dateLayout, bounds.EndDate)
		if err != nil {
			return nil
		}
	}

	var out []Occurrence
	for date := start; len(out) < maxOccurrences; date = date.AddDate(0, 0, 7) {
		if bounds.Count > 0 && len(out) >= bounds.Count {
			break
		}
		if !end.IsZero() && date.After(end) {
			break
		}
		out = append(out, Occurrence{Date: date.Format(dateLayout), Time: timeOfDay})
	}
	return out
}
