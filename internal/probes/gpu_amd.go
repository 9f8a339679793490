package probes

import (
	"encoding/json"
	"math"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// rocmSmiJSON mirrors the subset of rocm-smi's --json output this probe
// consumes; field names match rocm-smi's own card<N> key layout.
type rocmSmiJSON map[string]map[string]string

// ROCmProbe shells out to rocm-smi for AMD GPU telemetry. No pure-Go
// ROCm SMI binding exists, so this is the one probe built on a
// subprocess instead of a library call. Returns ok=false if the binary
// is missing or its output cannot be parsed -- never a fatal error.
func ROCmProbe(runner CommandRunner) (samples []GPUSample, ok bool) {
	out, err := runner.Run("rocm-smi", "--showuse", "--showmemuse", "--showpower", "--json")
	if err != nil {
		return nil, false
	}

	var parsed rocmSmiJSON
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, false
	}

	index := 0
	for _, card := range sortedCardKeys(parsed) {
		fields := parsed[card]
		sample := GPUSample{Index: index, ProcessMemoryGB: map[string]float64{}}

		if v, ok := parseFloat(fields["GPU use (%)"]); ok {
			sample.UtilizationPct = v
		}
		if v, ok := parseFloat(fields["VRAM Total Used Memory (B)"]); ok {
			sample.MemoryUsedGB = v / (1024 * 1024 * 1024)
		}
		if v, ok := firstNonEmptyFloat(fields,
			"Average Graphics Package Power (W)",
			"Current Socket Graphics Package Power (µW)"); ok {
			sample.PowerWatts = v
		}

		samples = append(samples, sample)
		index++
	}
	return samples, len(samples) > 0
}

// firstNonEmptyFloat tries each key in order; a key whose value is
// reported in microwatts (rocm-smi's power draw field on some ROCm
// versions) is converted to watts by dividing by 1,000,000.
func firstNonEmptyFloat(fields map[string]string, keys ...string) (float64, bool) {
	for _, k := range keys {
		raw, present := fields[k]
		if !present || raw == "" {
			continue
		}
		v, ok := parseFloat(raw)
		if !ok {
			continue
		}
		if k == "Current Socket Graphics Package Power (µW)" {
			v /= 1000000
		}
		return v, true
	}
	return 0, false
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// sortedCardKeys orders rocm-smi's "card<N>" keys by their numeric
// suffix rather than lexicographically, so card10 does not sort before
// card2 and scramble the stable global GPU index.
func sortedCardKeys(m rocmSmiJSON) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return cardNumber(keys[i]) < cardNumber(keys[j])
	})
	return keys
}

// cardNumber extracts the integer suffix from a "card<N>" key. Keys that
// don't match the expected shape sort last.
func cardNumber(card string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(card, "card"))
	if err != nil {
		return math.MaxInt
	}
	return n
}

// CommandRunner abstracts subprocess execution so the probe is testable
// without actually invoking rocm-smi.
type CommandRunner interface {
	Run(name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(name string, args ...string) ([]byte, error) {
	return exec.Command(name, args...).Output()
}
