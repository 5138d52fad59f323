package models

import "fmt"

// AbsenceReason explains why a source reported no aggregate for a window
type AbsenceReason string

const (
	ReasonNoRows      AbsenceReason = "no_rows"
	ReasonAllOutliers AbsenceReason = "all_outliers"
	ReasonNullPrices  AbsenceReason = "null_prices"
	ReasonNoMatch     AbsenceReason = "no_match"
	ReasonUnavailable AbsenceReason = "unavailable"
	ReasonTimeout     AbsenceReason = "timeout"
	ReasonInternal    AbsenceReason = "internal_error"
	ReasonSkipped     AbsenceReason = "not_requested"
)

// Outcome is the tagged result of one aggregation: Present(Aggregate) or Absent(reason).
// Outlier diagnostics travel with absent outcomes too. Outliers is capped,
// Excluded is the full number of rows dropped as outliers.
type Outcome struct {
	Aggregate *Aggregate
	Reason    AbsenceReason
	Outliers  []OutlierRow
	Excluded  int
}

// Present wraps an aggregate
func Present(a *Aggregate) Outcome {
	return Outcome{Aggregate: a, Outliers: a.Outliers, Excluded: a.ExcludedOutliers}
}

// Absent builds an absent outcome
func Absent(reason AbsenceReason) Outcome {
	return Outcome{Reason: reason}
}

// IsPresent reports whether the outcome carries an aggregate
func (o Outcome) IsPresent() bool {
	return o.Aggregate != nil
}

func (o Outcome) String() string {
	if o.IsPresent() {
		return fmt.Sprintf("present(%s %dd)", o.Aggregate.Source, o.Aggregate.WindowDays)
	}
	return fmt.Sprintf("absent(%s)", o.Reason)
}

// WindowKey formats a lookback window as used in responses, e.g. "30d"
func WindowKey(days int) string {
	return fmt.Sprintf("%dd", days)
}

// SourceReport collects all window outcomes of one source for one request
type SourceReport struct {
	Source  Source
	Route   RouteKey
	Windows map[int]Outcome
	Match   *MatchResult
}

// AbsentReport marks every window of a source absent with the same reason
func AbsentReport(source Source, route RouteKey, windows []int, reason AbsenceReason) SourceReport {
	r := SourceReport{Source: source, Route: route, Windows: make(map[int]Outcome, len(windows))}
	for _, w := range windows {
		r.Windows[w] = Absent(reason)
	}
	return r
}

// Present reports whether any window of the source has data
func (r SourceReport) Present() bool {
	for _, o := range r.Windows {
		if o.IsPresent() {
			return true
		}
	}
	return false
}
