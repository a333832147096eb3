package monitor

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spondex/internal/shared"
)

const (
	commandTimeout = 15 * time.Second
	statusTimeout  = 10 * time.Second

	// rebootTolerance absorbs rounding drift in the computed boot time
	// between runs.
	rebootTolerance = 5 * time.Second
)

// Alert is one triggered condition. Severity is "critical" unless a check
// downgrades it.
type Alert struct {
	Name     string
	Message  string
	Severity string
}

func criticalAlert(name, message string) Alert {
	return Alert{Name: name, Message: message, Severity: "critical"}
}

func warningAlert(name, message string) Alert {
	return Alert{Name: name, Message: message, Severity: "warning"}
}

// CheckContext carries the shared dependencies of a monitoring run.
type CheckContext struct {
	Config shared.MonitorConfig
	Store  *StateStore
	Logger *log.Logger
	Now    time.Time
}

// Check inspects one aspect of the host and reports samples plus alerts.
type Check func(ctx context.Context, c *CheckContext) ([]Metric, []Alert)

// AllChecks returns the full check set in execution order.
func AllChecks() []Check {
	return []Check{
		checkLoad,
		checkMemory,
		checkOOM,
		checkDockerDaemon,
		checkContainers,
		checkDatabase,
		checkAppStatus,
		checkReboot,
		checkDiskIOPS,
		checkDiskUsage,
		checkLogs,
	}
}

// loadPercent converts a load average into a percentage of core capacity.
func loadPercent(value float64, cores int) int {
	if cores < 1 {
		cores = 1
	}
	percent := int(math.Round(value / float64(cores) * 100))
	if percent < 0 {
		return 0
	}
	return percent
}

// checkLoad samples /proc/loadavg and alerts when the windowed 1-minute
// average exceeds full core capacity.
func checkLoad(_ context.Context, c *CheckContext) ([]Metric, []Alert) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		c.Logger.Warn("load check skipped", "error", err)
		return nil, nil
	}

	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return nil, nil
	}

	var pcts [3]int
	for i := 0; i < 3; i++ {
		value, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, nil
		}
		pcts[i] = loadPercent(value, c.Config.CPUCores)
	}

	metrics := []Metric{
		NumberMetric("loadavg_1_percent", pcts[0], c.Now),
		NumberMetric("loadavg_5_percent", pcts[1], c.Now),
		NumberMetric("loadavg_15_percent", pcts[2], c.Now),
	}

	var alerts []Alert
	windowStart := c.Now.Add(-time.Duration(c.Config.LoadWindowMinutes) * time.Minute)
	samples, err := c.Store.FetchMetricWindow("loadavg_1_percent", windowStart)
	if err != nil {
		c.Logger.Warn("load history unavailable", "error", err)
		samples = nil
	}

	sum := pcts[0]
	count := 1
	for _, sample := range samples {
		sum += sample.Int()
		count++
	}
	avg := sum / count
	if avg > 100 {
		alerts = append(alerts, criticalAlert(
			"load_average_high",
			fmt.Sprintf("Average CPU load over last %d minutes is %d%% (> 100%%).", c.Config.LoadWindowMinutes, avg),
		))
	}
	return metrics, alerts
}

// memoryUsedPercent computes used memory from /proc/meminfo contents.
func memoryUsedPercent(r io.Reader) (int, error) {
	values := map[string]int64{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, rest, found := strings.Cut(scanner.Text(), ":")
		if !found {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		kb, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			continue
		}
		values[strings.TrimSpace(key)] = kb
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}

	total := values["MemTotal"]
	if total <= 0 {
		return 0, fmt.Errorf("meminfo missing MemTotal")
	}
	available := values["MemAvailable"]
	used := float64(total-available) / float64(total)
	return int(math.Round(used * 100)), nil
}

func checkMemory(_ context.Context, c *CheckContext) ([]Metric, []Alert) {
	fp, err := os.Open("/proc/meminfo")
	if err != nil {
		c.Logger.Warn("memory check skipped", "error", err)
		return nil, nil
	}
	defer fp.Close()

	usedPercent, err := memoryUsedPercent(fp)
	if err != nil {
		c.Logger.Warn("memory check failed", "error", err)
		return nil, nil
	}

	metrics := []Metric{NumberMetric("memory_used_percent", usedPercent, c.Now)}
	threshold := c.Config.MemoryThreshold
	if threshold <= 0 {
		threshold = 0.95
	}

	var alerts []Alert
	if float64(usedPercent) >= threshold*100 {
		alerts = append(alerts, criticalAlert(
			"memory_exhausted",
			fmt.Sprintf("Memory usage at %d%% (threshold %d%%)", usedPercent, int(threshold*100)),
		))
	}
	return metrics, alerts
}

// runCommand executes a host command with a bounded timeout and returns its
// combined stdout. The boolean reports a zero exit status.
func runCommand(ctx context.Context, name string, args ...string) (string, bool) {
	cctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	out, err := exec.CommandContext(cctx, name, args...).Output()
	return strings.TrimSpace(string(out)), err == nil
}

// checkOOM scans recent kernel journal lines for OOM-killer activity since
// the previous run.
func checkOOM(ctx context.Context, c *CheckContext) ([]Metric, []Alert) {
	args := []string{"-k", "-n", "200", "--no-pager"}
	if lastSeen, ok, err := c.Store.State("oom_last_timestamp"); err == nil && ok {
		if since, err := time.Parse(time.RFC3339, lastSeen); err == nil {
			args = append(args, "--since", since.Format("2006-01-02 15:04:05"))
		}
	}

	output, ok := runCommand(ctx, "journalctl", args...)
	if err := c.Store.SetState("oom_last_timestamp", c.Now.UTC().Format(time.RFC3339)); err != nil {
		c.Logger.Warn("failed to record oom cursor", "error", err)
	}
	if !ok {
		return nil, nil
	}

	var found []string
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "Out of memory") || strings.Contains(line, "Kill process") {
			found = append(found, line)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	if len(found) > 5 {
		found = found[len(found)-5:]
	}
	return nil, []Alert{criticalAlert("oom_detected", strings.Join(found, "\n"))}
}

func checkDockerDaemon(ctx context.Context, c *CheckContext) ([]Metric, []Alert) {
	service := c.Config.DockerService
	if service == "" {
		service = "docker"
	}
	output, ok := runCommand(ctx, "systemctl", "is-active", service)
	if !ok || output != "active" {
		message := output
		if message == "" {
			message = "docker inactive"
		}
		return nil, []Alert{criticalAlert("docker_not_running", message)}
	}
	return nil, nil
}

func containerRunning(ctx context.Context, name string) bool {
	output, ok := runCommand(ctx, "docker", "inspect", "-f", "{{.State.Running}}", name)
	return ok && output == "true"
}

func checkContainers(ctx context.Context, c *CheckContext) ([]Metric, []Alert) {
	var metrics []Metric
	var alerts []Alert
	for _, check := range c.Config.AppChecks {
		running := containerRunning(ctx, check.Container)
		metrics = append(metrics, StatusMetric("container_status_"+check.Container, running, c.Now))
		if !running {
			label := check.Name
			if label == "" {
				label = check.Container
			}
			alerts = append(alerts, criticalAlert(
				fmt.Sprintf("container_%s_down", label),
				fmt.Sprintf("Container %s is not running", label),
			))
		}
	}
	return metrics, alerts
}

// checkDatabase verifies the database container is running and its TCP port
// answers, recording connect latency as the trivial-query proxy.
func checkDatabase(ctx context.Context, c *CheckContext) ([]Metric, []Alert) {
	cfg := c.Config.DBCheck
	var metrics []Metric
	var alerts []Alert

	if cfg.Container != "" {
		running := containerRunning(ctx, cfg.Container)
		metrics = append(metrics, StatusMetric("db_container_status", running, c.Now))
		if !running {
			alerts = append(alerts, criticalAlert(
				"db_container_down",
				fmt.Sprintf("Database container %s is not running", cfg.Container),
			))
		}
	}

	if cfg.Host == "" || cfg.Port == 0 {
		return metrics, alerts
	}

	address := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	start := time.Now()
	conn, err := net.DialTimeout("tcp", address, 3*time.Second)
	latency := time.Since(start)
	if err != nil {
		metrics = append(metrics, StatusMetric("db_port_status", false, c.Now))
		alerts = append(alerts, criticalAlert("db_port_unavailable", fmt.Sprintf("Cannot connect to DB port: %v", err)))
		return metrics, alerts
	}
	conn.Close()

	metrics = append(metrics,
		StatusMetric("db_port_status", true, c.Now),
		NumberMetric("db_query_latency_ms", int(latency.Milliseconds()), c.Now),
	)
	return metrics, alerts
}

// statusResponse is the shape served by the sync process's /status endpoint.
type statusResponse struct {
	Service       string  `json:"service"`
	Healthy       *bool   `json:"healthy"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	LastPassAt    string  `json:"last_pass_at"`
}

// evaluateStatusPayload validates a /status response body against the
// required shape and health flag.
func evaluateStatusPayload(body []byte) (uptime int, problem string) {
	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return 0, fmt.Sprintf("invalid JSON: %v", err)
	}

	var missing []string
	if status.Service == "" {
		missing = append(missing, "service")
	}
	if status.Healthy == nil {
		missing = append(missing, "healthy")
	}
	if status.LastPassAt == "" {
		missing = append(missing, "last_pass_at")
	}
	if len(missing) > 0 {
		return 0, fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", "))
	}

	if status.UptimeSeconds < 0 {
		return 0, fmt.Sprintf("implausible uptime %v", status.UptimeSeconds)
	}
	if !*status.Healthy {
		return int(status.UptimeSeconds), "application reports unhealthy status"
	}
	return int(status.UptimeSeconds), ""
}

func checkAppStatus(ctx context.Context, c *CheckContext) ([]Metric, []Alert) {
	url := c.Config.StatusURL
	if url == "" {
		return nil, nil
	}

	cctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, []Alert{criticalAlert("app_status_check_error", err.Error())}
	}

	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return []Metric{
				StatusMetric("app_status_health", false, c.Now),
				NumberMetric("app_status_http_code", 0, c.Now),
			}, []Alert{criticalAlert(
				"app_status_unreachable",
				fmt.Sprintf("Application status endpoint unreachable: %v", err),
			)}
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	metrics := []Metric{
		NumberMetric("app_status_latency_ms", int(latency.Milliseconds()), c.Now),
		NumberMetric("app_status_http_code", resp.StatusCode, c.Now),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		metrics = append(metrics, StatusMetric("app_status_health", false, c.Now))
		return metrics, []Alert{criticalAlert("app_status_check_error", err.Error())}
	}

	if resp.StatusCode != http.StatusOK {
		metrics = append(metrics, StatusMetric("app_status_health", false, c.Now))
		return metrics, []Alert{criticalAlert(
			"app_status_http_error",
			fmt.Sprintf("Application status endpoint returned HTTP %d", resp.StatusCode),
		)}
	}

	uptime, problem := evaluateStatusPayload(body)
	if problem != "" {
		metrics = append(metrics, StatusMetric("app_status_health", false, c.Now))
		return metrics, []Alert{criticalAlert("app_status_unhealthy", problem)}
	}

	metrics = append(metrics,
		StatusMetric("app_status_health", true, c.Now),
		NumberMetric("app_uptime_seconds", uptime, c.Now),
	)
	return metrics, nil
}

// rebootAlert compares the computed boot time against the previously stored
// one and reports an alert message when the host rebooted in between.
func rebootAlert(bootTime time.Time, lastRaw string) string {
	if lastRaw == "" {
		return ""
	}
	lastBoot, err := time.Parse(time.RFC3339, lastRaw)
	if err != nil {
		return ""
	}
	if bootTime.After(lastBoot.Add(rebootTolerance)) {
		return fmt.Sprintf("Server reboot detected at %s", bootTime.Format("2006-01-02 15:04"))
	}
	return ""
}

func checkReboot(_ context.Context, c *CheckContext) ([]Metric, []Alert) {
	data, err := os.ReadFile("/proc/uptime")
	if err != nil {
		c.Logger.Warn("reboot check skipped", "error", err)
		return nil, nil
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, nil
	}
	uptimeSeconds, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, nil
	}

	bootTime := c.Now.Add(-time.Duration(uptimeSeconds * float64(time.Second))).UTC()
	var alerts []Alert
	if lastRaw, ok, err := c.Store.State("last_boot_timestamp"); err == nil && ok {
		if message := rebootAlert(bootTime, lastRaw); message != "" {
			alerts = append(alerts, criticalAlert("server_reboot", message))
		}
	}
	if err := c.Store.SetState("last_boot_timestamp", bootTime.Format(time.RFC3339)); err != nil {
		c.Logger.Warn("failed to record boot timestamp", "error", err)
	}

	return []Metric{NumberMetric("uptime_seconds", int(math.Round(uptimeSeconds)), c.Now)}, alerts
}

// diskCounters holds cumulative read/write operation counts per device.
type diskCounters struct {
	ReadIOs  int64 `json:"read_ios"`
	WriteIOs int64 `json:"write_ios"`
}

// parseDiskstats extracts per-device IO counters from /proc/diskstats
// contents.
func parseDiskstats(r io.Reader) map[string]diskCounters {
	stats := map[string]diskCounters{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 14 {
			continue
		}
		readIOs, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil {
			continue
		}
		writeIOs, err := strconv.ParseInt(parts[7], 10, 64)
		if err != nil {
			continue
		}
		stats[parts[2]] = diskCounters{ReadIOs: readIOs, WriteIOs: writeIOs}
	}
	return stats
}

type diskstatsState struct {
	Timestamp int64                   `json:"timestamp"`
	Stats     map[string]diskCounters `json:"stats"`
}

// deviceIOPS converts counter deltas into operations per minute so
// thresholds stay easy to reason about.
func deviceIOPS(prev, curr diskCounters, elapsed time.Duration, includeReads, includeWrites bool) int {
	var total int64
	if includeReads && curr.ReadIOs > prev.ReadIOs {
		total += curr.ReadIOs - prev.ReadIOs
	}
	if includeWrites && curr.WriteIOs > prev.WriteIOs {
		total += curr.WriteIOs - prev.WriteIOs
	}
	return int(math.Ceil(float64(total) / elapsed.Seconds() * 60))
}

func checkDiskIOPS(_ context.Context, c *CheckContext) ([]Metric, []Alert) {
	if len(c.Config.DiskDevices) == 0 {
		return nil, nil
	}

	fp, err := os.Open("/proc/diskstats")
	if err != nil {
		c.Logger.Warn("disk iops check skipped", "error", err)
		return nil, nil
	}
	stats := parseDiskstats(fp)
	fp.Close()

	var prev diskstatsState
	hadPrev, err := c.Store.JSONState("diskstats", &prev)
	if err != nil {
		c.Logger.Warn("disk iops state unavailable", "error", err)
	}

	nowUnix := c.Now.Unix()
	if err := c.Store.SetJSONState("diskstats", diskstatsState{Timestamp: nowUnix, Stats: stats}); err != nil {
		c.Logger.Warn("failed to record disk counters", "error", err)
	}

	if !hadPrev || prev.Timestamp >= nowUnix {
		return nil, nil
	}
	elapsed := time.Duration(nowUnix-prev.Timestamp) * time.Second

	var metrics []Metric
	var alerts []Alert
	for _, device := range c.Config.DiskDevices {
		curr, okCurr := stats[device.Name]
		last, okPrev := prev.Stats[device.Name]
		if !okCurr || !okPrev {
			continue
		}
		iops := deviceIOPS(last, curr, elapsed, device.IncludeReads, device.IncludeWrites)
		metrics = append(metrics, NumberMetric("disk_iops_"+device.Name, iops, c.Now))
		if iops > device.MaxIOPS {
			alerts = append(alerts, criticalAlert(
				"disk_iops_high",
				fmt.Sprintf("Device %s IOPS %d > threshold %d", device.Name, iops, device.MaxIOPS),
			))
		}
	}
	return metrics, alerts
}

// evalDiskUsage applies the warn/critical thresholds to one mount's totals.
func evalDiskUsage(cfg shared.DiskUsageConfig, total, free uint64, now time.Time) ([]Metric, []Alert) {
	usedPercent := 0
	if total > 0 {
		usedPercent = int(math.Round(float64(total-free) / float64(total) * 100))
	}
	freeGB := float64(free) / (1 << 30)

	metrics := []Metric{
		NumberMetric("disk_used_percent_"+cfg.Name, usedPercent, now),
		NumberMetric("disk_free_gb_"+cfg.Name, int(math.Floor(freeGB)), now),
	}

	ok := usedPercent < cfg.CriticalPercent && int(math.Floor(freeGB)) >= cfg.MinFreeGB
	metrics = append(metrics, StatusMetric("disk_usage_status_"+cfg.Name, ok, now))

	var alerts []Alert
	if !ok {
		alerts = append(alerts, criticalAlert(
			"disk_space_exhausted",
			fmt.Sprintf("Disk %s at %s usage %d%% with %.1f GiB free (< %d GiB).", cfg.Name, cfg.Path, usedPercent, freeGB, cfg.MinFreeGB),
		))
	} else if usedPercent >= cfg.WarnPercent {
		alerts = append(alerts, warningAlert(
			"disk_space_low",
			fmt.Sprintf("Disk %s at %s usage %d%% with %.1f GiB free (warn threshold %d%%).", cfg.Name, cfg.Path, usedPercent, freeGB, cfg.WarnPercent),
		))
	}
	return metrics, alerts
}

func checkDiskUsage(_ context.Context, c *CheckContext) ([]Metric, []Alert) {
	var metrics []Metric
	var alerts []Alert
	for _, usage := range c.Config.DiskUsage {
		var stat syscall.Statfs_t
		if err := syscall.Statfs(usage.Path, &stat); err != nil {
			metrics = append(metrics, StatusMetric("disk_usage_status_"+usage.Name, false, c.Now))
			alerts = append(alerts, criticalAlert("disk_path_missing", fmt.Sprintf("Disk path %s not found", usage.Path)))
			continue
		}

		total := stat.Blocks * uint64(stat.Bsize)
		free := stat.Bavail * uint64(stat.Bsize)
		m, a := evalDiskUsage(usage, total, free, c.Now)
		metrics = append(metrics, m...)
		alerts = append(alerts, a...)
	}
	return metrics, alerts
}

// logOffset is the persisted read position for one scanned log file.
type logOffset struct {
	Position int64  `json:"position"`
	Inode    uint64 `json:"inode"`
}

// scanLogTail returns lines containing pattern among the new content past
// offset, plus the updated offset. Rotation (inode change or truncation)
// restarts from the beginning.
func scanLogTail(path, pattern string, state logOffset) ([]string, logOffset, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, state, err
	}
	defer fp.Close()

	info, err := fp.Stat()
	if err != nil {
		return nil, state, err
	}

	var inode uint64
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		inode = sys.Ino
	}
	if state.Inode != inode || state.Position > info.Size() {
		state.Position = 0
	}
	state.Inode = inode

	if _, err := fp.Seek(state.Position, io.SeekStart); err != nil {
		return nil, state, err
	}

	var matches []string
	scanner := bufio.NewScanner(fp)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		if strings.Contains(scanner.Text(), pattern) {
			matches = append(matches, scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, state, err
	}

	position, err := fp.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, state, err
	}
	state.Position = position
	return matches, state, nil
}

func checkLogs(_ context.Context, c *CheckContext) ([]Metric, []Alert) {
	var alerts []Alert
	for _, logCfg := range c.Config.LogChecks {
		key := "log_offset:" + filepath.Clean(logCfg.Path)

		var state logOffset
		if _, err := c.Store.JSONState(key, &state); err != nil {
			c.Logger.Warn("log offset unavailable", "path", logCfg.Path, "error", err)
			continue
		}

		matches, next, err := scanLogTail(logCfg.Path, logCfg.Pattern, state)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			c.Logger.Warn("log scan failed", "path", logCfg.Path, "error", err)
			continue
		}
		if err := c.Store.SetJSONState(key, next); err != nil {
			c.Logger.Warn("failed to record log offset", "path", logCfg.Path, "error", err)
		}

		if len(matches) > 0 {
			if len(matches) > 5 {
				matches = matches[len(matches)-5:]
			}
			alerts = append(alerts, criticalAlert(
				"log_error",
				fmt.Sprintf("Pattern %q found in %s:\n%s", logCfg.Pattern, logCfg.Path, strings.Join(matches, "\n")),
			))
		}
	}
	return nil, alerts
}
