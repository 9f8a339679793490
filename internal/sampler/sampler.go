// Package sampler drives the main loop: advance tick, run probes, fold
// results into the store, write tables, shrink on schedule, sleep. It is
// strictly single-threaded; context.Context is used only to let a
// foreground run or a test stop the loop cleanly between ticks, never to
// parallelize any step.
package sampler

import (
	"context"
	"fmt"
	"time"

	"github.com/oxfordcbrg/spsd/internal/probes"
	"github.com/oxfordcbrg/spsd/internal/shrink"
	"github.com/oxfordcbrg/spsd/internal/timeseries"
	"github.com/oxfordcbrg/spsd/internal/writer"
	"github.com/oxfordcbrg/spsd/pkg/logger"
)

const (
	metricCPU   = "cpu"
	metricMem   = "mem"
	metricRead  = "read"
	metricWrite = "write"
)

// ProcessSource returns the process samples visible this tick. Backed by
// probes.ProcessProbe in production; swappable in tests.
type ProcessSource func() []probes.ProcessSample

// GPUSource returns the GPU samples visible this tick, or ok=false if
// the backing library is unavailable.
type GPUSource func() ([]probes.GPUSample, bool)

// Config wires a JobState to its data sources and the shrink cadence.
// MetricPath builds the absolute table path for a dynamically discovered
// GPU metric name (e.g. "gpu_load-0"); the four process-level metrics
// are expected to already be registered on Job before Run starts.
type Config struct {
	Job            *timeseries.JobState
	Processes      ProcessSource
	NVIDIA         GPUSource
	AMD            GPUSource
	ShrinkInterval int
	Log            *logger.Logger
	MetricPath     func(metricName string) string

	// Sleep is called with the current rate in seconds at the end of
	// every iteration. Defaults to a real time.Sleep-equivalent driven by
	// ctx; tests substitute a no-op to exercise many ticks quickly.
	Sleep func(ctx context.Context, rateSeconds int)
}

// Run drives the sampling loop until ctx is cancelled. The loop is
// infinite in production; it returns nil on ctx cancellation (foreground
// mode, tests) and a non-nil error when writing a table fails.
func Run(ctx context.Context, cfg Config) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		cfg.Job.AdvanceTick()

		for _, sample := range cfg.Processes() {
			cfg.Job.EnsureKey(metricCPU, sample.Comm)
			cfg.Job.EnsureKey(metricMem, sample.Comm)
			cfg.Job.EnsureKey(metricRead, sample.Comm)
			cfg.Job.EnsureKey(metricWrite, sample.Comm)
			cfg.Job.Add(metricCPU, sample.Comm, sample.CPU)
			cfg.Job.Add(metricMem, sample.Comm, sample.RSSGB)
			cfg.Job.Add(metricRead, sample.Comm, sample.ReadGB)
			cfg.Job.Add(metricWrite, sample.Comm, sample.WriteGB)
		}

		nvidiaCount := addGPUSamples(cfg.Job, cfg.NVIDIA, cfg.Log, cfg.MetricPath, "nvidia", 0)
		addGPUSamples(cfg.Job, cfg.AMD, cfg.Log, cfg.MetricPath, "amd", nvidiaCount)

		if err := writeMetrics(cfg.Job); err != nil {
			return err
		}

		if cfg.Job.Tick%cfg.ShrinkInterval == 0 {
			shrink.Apply(cfg.Job)
		}

		if ctx.Err() != nil {
			return nil
		}
		sleep := cfg.Sleep
		if sleep == nil {
			sleep = realSleep
		}
		sleep(ctx, cfg.Job.Rate)
	}
}

func realSleep(ctx context.Context, rateSeconds int) {
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(rateSeconds) * time.Second):
	}
}

// addGPUSamples folds source's samples into job, offsetting their device
// index by indexOffset so NVIDIA devices occupy [0, Nn) and AMD devices
// occupy [Nn, Nn+Na), and returns how many devices it contributed so the
// caller can offset the next vendor's indices.
func addGPUSamples(job *timeseries.JobState, source GPUSource, log *logger.Logger, metricPath func(string) string, vendor string, indexOffset int) int {
	if source == nil {
		return 0
	}
	samples, ok := source()
	if !ok {
		if log != nil {
			log.Warn("gpu telemetry unavailable", "vendor", vendor)
		}
		return 0
	}
	for _, s := range samples {
		index := s.Index + indexOffset
		loadMetric := gpuMetricName("gpu_load", index)
		memMetric := gpuMetricName("gpu_mem", index)
		powerMetric := gpuMetricName("gpu_power", index)

		job.EnsureMetric(loadMetric, "0", metricPath(loadMetric))
		job.EnsureMetric(memMetric, "0", metricPath(memMetric))
		job.EnsureMetric(powerMetric, "0", metricPath(powerMetric))

		job.EnsureKey(loadMetric, "total")
		job.Add(loadMetric, "total", s.UtilizationPct)
		job.EnsureKey(memMetric, "total")
		job.Add(memMetric, "total", s.MemoryUsedGB)
		job.EnsureKey(powerMetric, "total")
		job.Add(powerMetric, "total", s.PowerWatts)

		for comm, memGB := range s.ProcessMemoryGB {
			job.EnsureKey(memMetric, comm)
			job.Add(memMetric, comm, memGB)
		}
	}
	return len(samples)
}

func gpuMetricName(kind string, index int) string {
	return fmt.Sprintf("%s-%d", kind, index)
}

func writeMetrics(job *timeseries.JobState) error {
	if job.RewritePending {
		for _, m := range job.Metrics {
			if err := writer.RewriteTab(m, job.Tick, job.Rate); err != nil {
				return err
			}
		}
		job.RewritePending = false
		return nil
	}
	for _, m := range job.Metrics {
		if err := writer.AppendTab(m, job.Tick, job.Rate); err != nil {
			return err
		}
	}
	return nil
}
