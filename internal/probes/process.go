// Package probes maps external system state -- the process table and GPU
// telemetry libraries -- into the per-sample tuples the sampler folds
// into the time-series store. Every probe here is written to read state
// directly and drop anything it cannot parse rather than fail the tick.
package probes

import (
	"os"
	"strconv"
	"strings"

	"github.com/oxfordcbrg/spsd/pkg/constants"
)

// clockTicksPerSecond is the conventional Linux USER_HZ value exposed by
// sysconf(_SC_CLK_TCK) on every mainstream distribution; there is no
// portable way to query it from Go without cgo, and every production
// kernel we target reports 100.
const clockTicksPerSecond = 100

// ProcessSample is one entity's contribution to the four process-level
// metrics for a single tick, already keyed by comm but not yet aggregated
// across PIDs sharing that comm -- callers sum duplicates themselves via
// timeseries.JobState.Add.
type ProcessSample struct {
	Comm    string
	CPU     float64 // CPU-equivalents (user+system seconds / wall runtime)
	RSSGB   float64
	ReadGB  float64
	WriteGB float64
}

// ProcessProbe walks /proc, keeping only entries whose cgroup matches
// cgroupID, and returns one ProcessSample per readable PID. Any read
// failure on a given PID (it exited mid-scan, a file is unreadable)
// silently drops that PID rather than failing the tick.
func ProcessProbe(procRoot, cgroupID string, uptimeSeconds float64) []ProcessSample {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil
	}

	var samples []ProcessSample
	for _, e := range entries {
		if !e.IsDir() || !isNumeric(e.Name()) {
			continue
		}
		pidDir := procRoot + "/" + e.Name()
		if !sameCgroup(pidDir, cgroupID) {
			continue
		}
		sample, ok := readProcessSample(pidDir, uptimeSeconds)
		if !ok {
			continue
		}
		samples = append(samples, sample)
	}
	return samples
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OwnCgroup reads the cgroup identifier of the calling process, the
// value the bootstrap step captures once at startup to define "belongs
// to this job".
func OwnCgroup(procRoot string) (string, bool) {
	data, err := os.ReadFile(procRoot + "/self/cgroup")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func sameCgroup(pidDir, cgroupID string) bool {
	data, err := os.ReadFile(pidDir + "/cgroup")
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(data)) == cgroupID
}

func readProcessSample(pidDir string, uptimeSeconds float64) (ProcessSample, bool) {
	comm, ok := readComm(pidDir)
	if !ok {
		return ProcessSample{}, false
	}

	fields, ok := readStatFields(pidDir)
	if !ok {
		return ProcessSample{}, false
	}

	// fields[i] holds stat field (i+3): the parenthesized comm consumes
	// fields 1-2, and tokenizing begins right after it at field 3 (state).
	utime := fields[11]     // stat field 14
	stime := fields[12]     // stat field 15
	starttime := fields[19] // stat field 22
	rssPages := fields[21]  // stat field 24

	cpuTicks, err1 := strconv.ParseFloat(utime, 64)
	sysTicks, err2 := strconv.ParseFloat(stime, 64)
	startTicks, err3 := strconv.ParseFloat(starttime, 64)
	rss, err4 := strconv.ParseFloat(rssPages, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return ProcessSample{}, false
	}

	wallSeconds := uptimeSeconds - startTicks/clockTicksPerSecond
	var cpu float64
	if wallSeconds > 0 {
		cpu = (cpuTicks + sysTicks) / clockTicksPerSecond / wallSeconds
	}
	rssGB := rss * constants.DefaultPageSize / (1024 * 1024 * 1024)

	readBytes, writeBytes, ok := readIOCounters(pidDir)
	if !ok {
		return ProcessSample{}, false
	}

	return ProcessSample{
		Comm:    comm,
		CPU:     cpu,
		RSSGB:   rssGB,
		ReadGB:  readBytes / (1024 * 1024 * 1024),
		WriteGB: writeBytes / (1024 * 1024 * 1024),
	}, true
}

func readComm(pidDir string) (string, bool) {
	data, err := os.ReadFile(pidDir + "/comm")
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

// readStatFields returns the whitespace-separated tokens of /proc/<pid>/stat
// after the command-name parenthetical, which may itself contain spaces.
// fields[0] is stat field 3 (state); callers index from there.
func readStatFields(pidDir string) ([]string, bool) {
	data, err := os.ReadFile(pidDir + "/stat")
	if err != nil {
		return nil, false
	}
	line := string(data)
	open := strings.Index(line, "(")
	shut := strings.LastIndex(line, ")")
	if open < 0 || shut < 0 || shut < open {
		return nil, false
	}
	rest := strings.Fields(line[shut+1:])
	if len(rest) < 22 {
		return nil, false
	}
	return rest, true
}

// readIOCounters parses /proc/<pid>/io, returning the read_bytes and
// write_bytes values, the 10th and 12th whitespace-separated tokens
// (0-based indices 9 and 11).
func readIOCounters(pidDir string) (readBytes, writeBytes float64, ok bool) {
	data, err := os.ReadFile(pidDir + "/io")
	if err != nil {
		return 0, 0, false
	}
	tokens := strings.Fields(string(data))
	if len(tokens) < 12 {
		return 0, 0, false
	}
	rb, err1 := strconv.ParseFloat(tokens[9], 64)
	wb, err2 := strconv.ParseFloat(tokens[11], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return rb, wb, true
}

// Uptime reads the system uptime in seconds from /proc/uptime.
func Uptime(procRoot string) (float64, bool) {
	data, err := os.ReadFile(procRoot + "/uptime")
	if err != nil {
		return 0, false
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0, false
	}
	up, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return up, true
}
