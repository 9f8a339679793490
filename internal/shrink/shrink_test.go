package shrink

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxfordcbrg/spsd/internal/timeseries"
)

func buildJobState(t *testing.T, values []float64) (*timeseries.JobState, string) {
	t.Helper()
	j := timeseries.NewJobState("sps-local", "cg1")
	m := timeseries.NewMetric("cpu", "0", "/tmp/cpu.tsv")
	j.AddMetric(m)
	tick := len(values)
	for i, v := range values {
		if i > 0 {
			j.AdvanceTick()
		} else {
			j.Tick = 1
			m.AdvanceTick()
		}
		m.Add("worker", v, i+1)
	}
	j.Tick = tick
	return j, "worker"
}

func TestHalveSequentialSeries(t *testing.T) {
	values := make([]float64, 0, 8)
	for i := 1; i <= 8; i++ {
		values = append(values, float64(i))
	}
	j, key := buildJobState(t, values)
	j.Rate = 1

	Apply(j)

	assert.Equal(t, 4, j.Tick)
	assert.Equal(t, 2, j.Rate)
	assert.True(t, j.RewritePending)
	assert.Equal(t, []float64{2, 4, 6, 8}, j.Metrics["cpu"].Series(key))
}

func TestHalveConstantSeriesPreservesValue(t *testing.T) {
	values := []float64{5, 5, 5, 5, 5, 5}
	j, key := buildJobState(t, values)
	j.Rate = 1

	Apply(j)

	assert.Equal(t, []float64{5, 5, 5}, j.Metrics["cpu"].Series(key))
}

func TestOddTickDuplicatesTailBeforeHalving(t *testing.T) {
	values := []float64{1, 2, 3}
	j, key := buildJobState(t, values)
	j.Rate = 1

	Apply(j)

	// odd tick 3 -> duplicate tail -> [1,2,3,3] -> halve -> [2,3]
	assert.Equal(t, []float64{2, 3}, j.Metrics["cpu"].Series(key))
	assert.Equal(t, 2, j.Tick)
}

func TestShrinkAtFourThousandNinetySixBoundary(t *testing.T) {
	values := make([]float64, 4096)
	for i := range values {
		values[i] = float64(i + 1)
	}
	j, key := buildJobState(t, values)
	j.Rate = 1

	Apply(j)

	assert.Equal(t, 2048, j.Tick)
	assert.Equal(t, 2, j.Rate)
	series := j.Metrics["cpu"].Series(key)
	assert.Len(t, series, 2048)
	assert.Equal(t, float64(2), series[0])
	assert.Equal(t, float64(4096), series[2047])
}
