package evolution

import (
	"sort"
	"time"
)

// DeriveCadence returns the median number of days between distinct evaluation dates,
// or fallback when there are fewer than two distinct dates.
func DeriveCadence(dates []time.Time, fallback float64) float64 {
	if fallback <= 0 {
		fallback = DefaultCadenceDays
	}
	days := make([]time.Time, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, d := range dates {
		key := d.UTC().Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, d.UTC())
	}
	if len(days) < 2 {
		return fallback
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	intervals := make([]float64, 0, len(days)-1)
	for i := 1; i < len(days); i++ {
		intervals = append(intervals, days[i].Sub(days[i-1]).Hours()/24)
	}
	sort.Float64s(intervals)

	mid := len(intervals) / 2
	var median float64
	if len(intervals)%2 == 0 {
		median = (intervals[mid-1] + intervals[mid]) / 2
	} else {
		median = intervals[mid]
	}
	if median < 1 {
		return 1
	}
	return round2(median)
}
