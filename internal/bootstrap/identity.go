// Package bootstrap resolves a job's identity, output directory, and
// memory request before the sampler loop starts, and performs the
// detach-from-terminal daemonization step.
package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	sperrors "github.com/oxfordcbrg/spsd/pkg/errors"
)

// Identity carries the resolved job arguments, preferring explicit CLI
// values over the batch scheduler's environment variables.
type Identity struct {
	JobID      string
	CPUs       string
	ArrayJobID string
	ArrayTask  string
}

// ResolveIdentity fills unset fields from the scheduler's environment
// variables (SLURM_JOB_ID, SLURM_CPUS_ON_NODE, SLURM_ARRAY_JOB_ID,
// SLURM_ARRAY_TASK_ID). CLI-provided values are never overridden.
func ResolveIdentity(cli Identity) Identity {
	resolved := cli
	if resolved.JobID == "" {
		resolved.JobID = os.Getenv("SLURM_JOB_ID")
	}
	if resolved.CPUs == "" {
		resolved.CPUs = os.Getenv("SLURM_CPUS_ON_NODE")
	}
	if resolved.ArrayJobID == "" {
		resolved.ArrayJobID = os.Getenv("SLURM_ARRAY_JOB_ID")
	}
	if resolved.ArrayTask == "" {
		resolved.ArrayTask = os.Getenv("SLURM_ARRAY_TASK_ID")
	}
	return resolved
}

// Label returns the textual job label used in output paths and headers:
// "<array_job>_<array_task>" if both are set, else "<job_id>" if set,
// else the literal "local".
func (id Identity) Label() string {
	if id.ArrayJobID != "" && id.ArrayTask != "" {
		return id.ArrayJobID + "_" + id.ArrayTask
	}
	if id.JobID != "" {
		return id.JobID
	}
	return "local"
}

// RotateOutputDir returns a usable output directory path named
// "sps-<label>", rotating to ".1".."9" on collision. Returns
// ErrRotationExhausted if every slot is taken.
func RotateOutputDir(baseDir, label string) (string, error) {
	base := joinPath(baseDir, "sps-"+label)
	if !exists(base) {
		return base, nil
	}
	for i := 1; i <= 9; i++ {
		candidate := base + "." + strconv.Itoa(i)
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", sperrors.WrapBootstrapError("rotate-output-dir", sperrors.ErrRotationExhausted)
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimRight(dir, "/") + "/" + name
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// MemoryRequestGB reads the batch scheduler's memory soft-limit cgroup
// file under cgroupRoot for uid/jobID, converting bytes to gigabytes. A
// missing or unreadable file is not an error: it returns "0", matching
// the original daemon's fallback.
func MemoryRequestGB(cgroupRoot string, uid, jobID string) string {
	path := fmt.Sprintf("%s/memory/slurm/uid_%s/job_%s/memory.soft_limit_in_bytes", cgroupRoot, uid, jobID)
	data, err := os.ReadFile(path)
	if err != nil {
		return "0"
	}
	bytes, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return "0"
	}
	gb := bytes / (1024 * 1024 * 1024)
	return strconv.FormatFloat(gb, 'g', -1, 64)
}
