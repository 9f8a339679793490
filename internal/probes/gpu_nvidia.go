package probes

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// nvmlInitOnce guards nvml.Init so it runs at most once per process: the
// daemon polls every tick for its entire job lifetime, and re-running
// the driver handshake on every tick is needless overhead and a source
// of intermittent failures under some driver versions. There is no
// corresponding Shutdown -- it runs for the life of the daemon and the
// driver reclaims the context on process exit.
var (
	nvmlInitOnce sync.Once
	nvmlInitOK   bool
)

func ensureNVMLInit() bool {
	nvmlInitOnce.Do(func() {
		nvmlInitOK = nvml.Init() == nvml.SUCCESS
	})
	return nvmlInitOK
}

// GPUSample is one device's contribution to the gpu_load/gpu_mem/gpu_power
// metrics for a single tick, plus the per-process memory breakdown used
// only for the gpu_mem metric's per-comm entity keys.
type GPUSample struct {
	Index           int
	UtilizationPct  float64
	MemoryUsedGB    float64
	PowerWatts      float64
	ProcessMemoryGB map[string]float64 // comm -> GPU memory used
}

// NVMLProbe enumerates NVIDIA devices via go-nvml, reporting utilization,
// memory, power and per-process memory for each. If NVML cannot be
// initialized (library absent, no driver) it returns nil and ok=false;
// the caller logs a warning and treats NVIDIA metrics as simply absent,
// never a fatal error.
func NVMLProbe() (samples []GPUSample, ok bool) {
	if !ensureNVMLInit() {
		return nil, false
	}

	count, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return nil, false
	}

	samples = make([]GPUSample, 0, count)
	for i := 0; i < count; i++ {
		device, ret := nvml.DeviceGetHandleByIndex(i)
		if ret != nvml.SUCCESS {
			continue
		}
		samples = append(samples, readNVMLDevice(device, i))
	}
	return samples, true
}

func readNVMLDevice(device nvml.Device, index int) GPUSample {
	sample := GPUSample{Index: index, ProcessMemoryGB: make(map[string]float64)}

	if util, ret := device.GetUtilizationRates(); ret == nvml.SUCCESS {
		sample.UtilizationPct = float64(util.Gpu)
	}
	if mem, ret := device.GetMemoryInfo(); ret == nvml.SUCCESS {
		sample.MemoryUsedGB = float64(mem.Used) / (1024 * 1024 * 1024)
	}
	if milliwatts, ret := device.GetPowerUsage(); ret == nvml.SUCCESS {
		sample.PowerWatts = float64(milliwatts) / 1000
	}

	for _, p := range nvmlProcesses(device) {
		comm := resolveComm(int(p.Pid))
		sample.ProcessMemoryGB[comm] += float64(p.UsedGpuMemory) / (1024 * 1024 * 1024)
	}
	return sample
}

// nvmlProcesses merges compute and graphics process lists. go-nvml's
// GetComputeRunningProcesses/GetGraphicsRunningProcesses each query the
// required count and fetch in one call internally, so there is no
// manual two-phase buffer management here -- one call per list, per tick.
func nvmlProcesses(device nvml.Device) []nvml.ProcessInfo {
	var all []nvml.ProcessInfo
	if procs, ret := device.GetComputeRunningProcesses(); ret == nvml.SUCCESS {
		all = append(all, procs...)
	}
	if procs, ret := device.GetGraphicsRunningProcesses(); ret == nvml.SUCCESS {
		all = append(all, procs...)
	}
	return all
}

// resolveComm maps a PID reported by NVML to the comm name the process
// and io metrics are keyed by, so GPU memory series line up with the
// same entity keys as CPU/mem/read/write.
func resolveComm(pid int) string {
	data, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/comm")
	if err != nil {
		return "unknown"
	}
	return strings.TrimSpace(string(data))
}
