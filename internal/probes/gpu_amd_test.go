package probes

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	output []byte
	err    error
}

func (f fakeRunner) Run(name string, args ...string) ([]byte, error) {
	return f.output, f.err
}

func TestROCmProbeParsesJSON(t *testing.T) {
	runner := fakeRunner{output: []byte(`{
		"card0": {
			"GPU use (%)": "42",
			"VRAM Total Used Memory (B)": "1073741824",
			"Average Graphics Package Power (W)": "150"
		}
	}`)}

	samples, ok := ROCmProbe(runner)

	require.True(t, ok)
	require.Len(t, samples, 1)
	assert.InDelta(t, 42, samples[0].UtilizationPct, 0.001)
	assert.InDelta(t, 1.0, samples[0].MemoryUsedGB, 0.001)
	assert.InDelta(t, 150, samples[0].PowerWatts, 0.001)
}

func TestROCmProbeMicrowattFallback(t *testing.T) {
	runner := fakeRunner{output: []byte(`{
		"card0": {
			"Current Socket Graphics Package Power (µW)": "150000000"
		}
	}`)}

	samples, ok := ROCmProbe(runner)

	require.True(t, ok)
	require.Len(t, samples, 1)
	assert.InDelta(t, 150, samples[0].PowerWatts, 0.001)
}

func TestROCmProbeBinaryMissing(t *testing.T) {
	runner := fakeRunner{err: errors.New("exec: \"rocm-smi\": executable file not found in $PATH")}

	_, ok := ROCmProbe(runner)

	assert.False(t, ok)
}

func TestROCmProbeMultipleCardsIndexedInOrder(t *testing.T) {
	runner := fakeRunner{output: []byte(`{
		"card1": {"GPU use (%)": "10"},
		"card0": {"GPU use (%)": "20"}
	}`)}

	samples, ok := ROCmProbe(runner)

	require.True(t, ok)
	require.Len(t, samples, 2)
	assert.Equal(t, 0, samples[0].Index)
	assert.InDelta(t, 20, samples[0].UtilizationPct, 0.001)
	assert.Equal(t, 1, samples[1].Index)
	assert.InDelta(t, 10, samples[1].UtilizationPct, 0.001)
}

func TestROCmProbeOrdersByNumericSuffixNotLexicographically(t *testing.T) {
	runner := fakeRunner{output: []byte(`{
		"card10": {"GPU use (%)": "10"},
		"card2": {"GPU use (%)": "2"},
		"card0": {"GPU use (%)": "0"}
	}`)}

	samples, ok := ROCmProbe(runner)

	require.True(t, ok)
	require.Len(t, samples, 3)
	assert.Equal(t, 0, samples[0].Index)
	assert.InDelta(t, 0, samples[0].UtilizationPct, 0.001)
	assert.Equal(t, 1, samples[1].Index)
	assert.InDelta(t, 2, samples[1].UtilizationPct, 0.001)
	assert.Equal(t, 2, samples[2].Index)
	assert.InDelta(t, 10, samples[2].UtilizationPct, 0.001)
}
