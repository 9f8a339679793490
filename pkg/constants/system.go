package constants

// System constants used across the daemon.

const (
	// Memory and storage units
	BinaryUnit = 1024 // Base unit for binary calculations (KB, MB, GB)

	// DefaultPageSize is the memory page size used to convert
	// /proc/<pid>/stat RSS pages into bytes.
	DefaultPageSize = 4096
)

// File permissions and modes
const (
	DefaultFileMode = 0644 // Permission for created table/log files
	DefaultDirMode  = 0755 // Permission for created output directories
)

// Sampling defaults
const (
	// DefaultSampleRateSeconds is the tick period used when the tuning
	// file's sample_rate_seconds is unset or non-positive.
	DefaultSampleRateSeconds = 1

	// ShrinkIntervalTicks is the number of ticks accumulated in a
	// resolution level before it halves in place.
	ShrinkIntervalTicks = 4096
)
