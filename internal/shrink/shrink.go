// Package shrink implements the RRD-style in-place compaction that
// halves every series in a job's metrics and doubles the sample rate,
// triggered every 4096 ticks.
package shrink

import "github.com/oxfordcbrg/spsd/internal/timeseries"

// Apply halves every series of every metric in j, doubles j.Rate, and
// sets j.RewritePending. If j.Tick is odd, the last sample of every
// series is duplicated and j.Tick incremented first so the halving
// always operates on an even length.
func Apply(j *timeseries.JobState) {
	if j.Tick%2 != 0 {
		duplicateTail(j)
		j.Tick++
	}

	for _, m := range j.Metrics {
		for _, key := range m.Keys() {
			m.Replace(key, halve(m.Series(key)))
		}
	}

	j.Tick /= 2
	j.Rate *= 2
	j.RewritePending = true
}

func duplicateTail(j *timeseries.JobState) {
	for _, m := range j.Metrics {
		for _, key := range m.Keys() {
			series := m.Series(key)
			last := series[len(series)-1]
			m.Replace(key, append(series, last))
		}
	}
}

// halve implements the shrink arithmetic contract: for every odd 0-based
// index i in [0, L), v[(i+1)/2-1] = v[i], then truncate to L/2. The
// retained samples are exactly those at original indices 1, 3, 5, ... --
// pairs collapse to their second element.
func halve(v []float64) []float64 {
	l := len(v)
	for i := 1; i < l; i += 2 {
		v[(i+1)/2-1] = v[i]
	}
	return v[:l/2]
}
