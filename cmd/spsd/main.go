// Command spsd is the per-job resource-profiling daemon: launched once
// per batch-scheduler job, it samples CPU, memory, disk I/O and GPU
// telemetry for the job's cgroup until killed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/oxfordcbrg/spsd/internal/bootstrap"
	"github.com/oxfordcbrg/spsd/internal/probes"
	"github.com/oxfordcbrg/spsd/internal/sampler"
	"github.com/oxfordcbrg/spsd/internal/timeseries"
	"github.com/oxfordcbrg/spsd/pkg/errors"
	"github.com/oxfordcbrg/spsd/pkg/logger"
	"github.com/oxfordcbrg/spsd/pkg/spsconfig"
)

const procRoot = "/proc"
const cgroupRoot = "/sys/fs/cgroup"

func main() {
	args, err := bootstrap.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, _, err := spsconfig.Load(args.ConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading config:", err)
		os.Exit(1)
	}

	identity := bootstrap.ResolveIdentity(bootstrap.Identity{
		JobID:      args.JobID,
		CPUs:       args.CPUs,
		ArrayJobID: args.ArrayJobID,
		ArrayTask:  args.ArrayTask,
	})
	label := identity.Label()

	// Daemonize before resolving the output directory: Daemonize re-execs
	// the whole binary, so a child that ran after RotateOutputDir would
	// re-run main() from the top and rotate past the directory its own
	// parent just created. Re-exec first so only the surviving process
	// ever resolves/creates sps-<label>, matching daemon(3)'s in-place
	// fork the original daemon relied on.
	if !args.Foreground {
		if err := bootstrap.Daemonize(); err != nil {
			fmt.Fprintln(os.Stderr, errors.WrapBootstrapError("daemonize", err))
			os.Exit(1)
		}
	}

	outDir, err := bootstrap.RotateOutputDir(args.OutputPath, label)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, errors.WrapBootstrapError("mkdir-output-dir", err))
		os.Exit(1)
	}

	logPath := filepath.Join(outDir, filepath.Base(outDir)+".log")
	logFile, err := os.OpenFile(logPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintln(os.Stderr, errors.WrapBootstrapError("open-log", err))
		os.Exit(1)
	}
	defer logFile.Close()

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logger.INFO
	}
	log := logger.NewWithConfig(logger.Config{Level: level, Output: logFile, Format: cfg.LogFormat})
	mode := "daemon"
	if args.Foreground {
		mode = "foreground"
	}
	log.SetMode(mode)

	log.Info("starting", "label", label, "out_dir", outDir)

	cgroupID, ok := probes.OwnCgroup(procRoot)
	if !ok {
		log.Fatal("failed to read own cgroup identifier", "error", errors.WrapRuntimeError("own-cgroup", errors.ErrCgroupUnavailable))
	}

	job := timeseries.NewJobState(label, cgroupID)
	job.Rate = cfg.SampleRateSeconds
	requestedMem := bootstrap.MemoryRequestGB(cgroupRoot, currentUID(), identity.JobID)
	registerProcessMetrics(job, outDir, requestedMem, identity.CPUs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if args.Foreground {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigs
			log.Info("received termination signal, stopping")
			cancel()
		}()
	}

	runnerCfg := sampler.Config{
		Job: job,
		Processes: func() []probes.ProcessSample {
			uptime, ok := probes.Uptime(procRoot)
			if !ok {
				log.Warn("uptime unavailable this tick", "error", errors.WrapRuntimeError("read-uptime", errors.ErrUptimeUnavailable))
				return nil
			}
			return probes.ProcessProbe(procRoot, cgroupID, uptime)
		},
		NVIDIA: func() ([]probes.GPUSample, bool) {
			if !cfg.GPUPollEnabled {
				return nil, false
			}
			return probes.NVMLProbe()
		},
		AMD: func() ([]probes.GPUSample, bool) {
			if !cfg.GPUPollEnabled {
				return nil, false
			}
			return probes.ROCmProbe(probes.ExecRunner{})
		},
		ShrinkInterval: cfg.ShrinkIntervalTicks,
		Log:            log,
		MetricPath: func(metricName string) string {
			return filepath.Join(outDir, filepath.Base(outDir)+"-"+metricName+".tsv")
		},
	}

	if err := sampler.Run(ctx, runnerCfg); err != nil {
		log.Fatal("sampler loop exited with error", "error", err)
	}
	log.Info("stopped")
}

func registerProcessMetrics(job *timeseries.JobState, outDir, requestedMem, requestedCPU string) {
	base := filepath.Base(outDir)
	metrics := []struct {
		name      string
		requested string
	}{
		{"cpu", requestedCPU},
		{"mem", requestedMem},
		{"read", "0"},
		{"write", "0"},
	}
	for _, m := range metrics {
		path := filepath.Join(outDir, base+"-"+m.name+".tsv")
		job.AddMetric(timeseries.NewMetric(m.name, m.requested, path))
	}
}

func currentUID() string {
	return fmt.Sprintf("%d", os.Getuid())
}
