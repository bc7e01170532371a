package telemetry

import (
	"net"
	"os"
	"runtime"
	"syscall"
	"time"
)

// bytesPerMB converts bytes to megabytes for snapshot fields.
const bytesPerMB = 1024 * 1024

// Logger defines the logging interface used by the Collector.
type Logger interface {
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Collector produces telemetry snapshots for the device.
//
// Collection is best-effort per field: a failure to read one metric
// (storage, network, ...) drops that field and keeps the rest. A
// partial snapshot is always better than none.
type Collector struct {
	deviceID  string
	version   string
	dataDir   string
	startedAt time.Time
	logger    Logger
}

// New creates a collector for the given device.
//
// Parameters:
//   - deviceID: Stable device identifier included in every snapshot
//   - version: Agent version included in every snapshot
//   - dataDir: Directory whose filesystem is reported as storage
func New(deviceID, version, dataDir string) *Collector {
	return &Collector{
		deviceID:  deviceID,
		version:   version,
		dataDir:   dataDir,
		startedAt: time.Now(),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the collector.
func (c *Collector) SetLogger(logger Logger) {
	c.logger = logger
}

// Collect produces a telemetry snapshot.
//
// currentURL is a display-state hint supplied by the caller; it is
// included verbatim when non-empty.
func (c *Collector) Collect(currentURL string) map[string]any {
	snapshot := map[string]any{
		"deviceId":   c.deviceID,
		"timestamp":  time.Now().Unix(),
		"appVersion": c.version,
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"numCpu":     runtime.NumCPU(),
		"uptime":     int64(time.Since(c.startedAt).Seconds()),
	}

	if hostname, err := os.Hostname(); err == nil {
		snapshot["hostname"] = hostname
	} else {
		c.logger.Warn("hostname unavailable", "error", err)
	}

	c.collectMemory(snapshot)
	c.collectStorage(snapshot)
	c.collectNetwork(snapshot)

	if currentURL != "" {
		snapshot["currentUrl"] = currentURL
	}

	return snapshot
}

// collectMemory adds process memory fields.
func (c *Collector) collectMemory(snapshot map[string]any) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	snapshot["memoryAlloc"] = stats.Alloc / bytesPerMB
	snapshot["memorySys"] = stats.Sys / bytesPerMB
	snapshot["goroutines"] = runtime.NumGoroutine()
}

// collectStorage adds filesystem usage for the data directory.
func (c *Collector) collectStorage(snapshot map[string]any) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(c.dataDir, &stat); err != nil {
		c.logger.Warn("storage info unavailable", "dir", c.dataDir, "error", err)
		return
	}

	blockSize := uint64(stat.Bsize) //nolint:gosec // Bsize is non-negative on Linux
	total := stat.Blocks * blockSize / bytesPerMB
	free := stat.Bavail * blockSize / bytesPerMB

	snapshot["storageTotal"] = total
	snapshot["storageFree"] = free
	if total > 0 {
		snapshot["storageUsedPercent"] = int((total - free) * 100 / total)
	}
}

// collectNetwork adds the first non-loopback IP address.
func (c *Collector) collectNetwork(snapshot map[string]any) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		c.logger.Warn("network info unavailable", "error", err)
		return
	}

	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			snapshot["ipAddress"] = ip4.String()
			return
		}
	}
}
