// Package timeseries holds the in-memory sample store: one Metric per
// observed dimension (cpu, mem, read, write, per-GPU load/mem/power),
// each holding one series per entity key. It enforces the per-tick
// length invariant every sampling step must leave intact.
package timeseries

import "sort"

// Metric is one dimension of observation: a requested/quota string, the
// table path it will be written to, and a series per entity key.
type Metric struct {
	Name string

	requested  string
	outputPath string
	series     map[string][]float64
	keys       []string // sorted, recomputed on insert
}

// NewMetric returns an empty Metric ready for AdvanceTick/Add calls.
func NewMetric(name, requested, outputPath string) *Metric {
	return &Metric{
		Name:       name,
		requested:  requested,
		outputPath: outputPath,
		series:     make(map[string][]float64),
	}
}

// Requested returns the textual quota/request string for this metric.
func (m *Metric) Requested() string {
	return m.requested
}

// OutputPath returns the absolute path this metric's table is written to.
func (m *Metric) OutputPath() string {
	return m.outputPath
}

// Keys returns the metric's entity keys in stable sorted order. The
// returned slice must not be mutated by the caller.
func (m *Metric) Keys() []string {
	return m.keys
}

// Series returns the stored values for key, or nil if key is unknown.
func (m *Metric) Series(key string) []float64 {
	return m.series[key]
}

// Len returns the current series length (the tick count this metric has
// observed), derived from an arbitrary series since all share length.
func (m *Metric) Len() int {
	if len(m.keys) == 0 {
		return 0
	}
	return len(m.series[m.keys[0]])
}

// HasKey reports whether key already has a series.
func (m *Metric) HasKey(key string) bool {
	_, ok := m.series[key]
	return ok
}

// AdvanceTick appends a zero value to every existing series. It must be
// called once per tick, before any Add call for that tick.
func (m *Metric) AdvanceTick() {
	for k, v := range m.series {
		m.series[k] = append(v, 0)
	}
}

// Add folds value into key's series for the current tick. If key is new,
// a series of length tick is allocated (tick-1 backfilled zeros plus the
// new value) and rewritePending is reported true. Otherwise value is
// summed into the series' last element.
func (m *Metric) Add(key string, value float64, tick int) (rewritePending bool) {
	series, ok := m.series[key]
	if !ok {
		series = make([]float64, tick)
		series[tick-1] = value
		m.series[key] = series
		m.insertKey(key)
		return true
	}
	series[len(series)-1] += value
	return false
}

func (m *Metric) insertKey(key string) {
	i := sort.SearchStrings(m.keys, key)
	m.keys = append(m.keys, "")
	copy(m.keys[i+1:], m.keys[i:])
	m.keys[i] = key
}

// Replace swaps key's series wholesale, used by internal/shrink to
// install the halved series without this package needing to know the
// halving arithmetic.
func (m *Metric) Replace(key string, values []float64) {
	m.series[key] = values
}

// JobState aggregates every Metric tracked for one job plus the
// bookkeeping fields shared across all of them: tick, rate,
// rewritePending and the cgroup identity the process probe filters on.
type JobState struct {
	Tick           int
	Rate           int // seconds per tick
	RewritePending bool
	CgroupID       string
	JobLabel       string

	Metrics map[string]*Metric
}

// NewJobState returns a JobState with Tick=0 and Rate=1, matching the
// sampler's first AdvanceTick bringing Tick to 1.
func NewJobState(jobLabel, cgroupID string) *JobState {
	return &JobState{
		Tick:     0,
		Rate:     1,
		CgroupID: cgroupID,
		JobLabel: jobLabel,
		Metrics:  make(map[string]*Metric),
	}
}

// AddMetric registers m under name, keyed by m.Name.
func (j *JobState) AddMetric(m *Metric) {
	j.Metrics[m.Name] = m
}

// EnsureMetric returns the existing metric named name, or creates and
// registers one with the given requested/outputPath if none exists yet.
// Used for GPU metrics, whose names (and count) are only known once
// devices are enumerated at runtime.
func (j *JobState) EnsureMetric(name, requested, outputPath string) *Metric {
	if m, ok := j.Metrics[name]; ok {
		return m
	}
	m := NewMetric(name, requested, outputPath)
	j.Metrics[name] = m
	return m
}

// AdvanceTick increments the shared tick counter and advances every
// registered metric's series by one zero-filled slot.
func (j *JobState) AdvanceTick() {
	j.Tick++
	for _, m := range j.Metrics {
		m.AdvanceTick()
	}
}

// Add folds value into metric's key series for the current tick, setting
// RewritePending if a new key was created.
func (j *JobState) Add(metric, key string, value float64) {
	m, ok := j.Metrics[metric]
	if !ok {
		return
	}
	if m.Add(key, value, j.Tick) {
		j.RewritePending = true
	}
}

// EnsureKey creates key in metric (backfilled with zeros) if it does not
// already exist, without adding a value for the current tick. Used by
// callers (the sampler, folding process samples) that must create a key across all four
// process-level metrics together, per the shared-key-set invariant.
func (j *JobState) EnsureKey(metric, key string) {
	m, ok := j.Metrics[metric]
	if !ok {
		return
	}
	if m.HasKey(key) {
		return
	}
	if m.Add(key, 0, j.Tick) {
		j.RewritePending = true
	}
}
