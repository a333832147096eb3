package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spondex/internal/shared"
)

func TestLoadPercent(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		cores int
		want  int
	}{
		{"full single core", 1.0, 1, 100},
		{"half of two cores", 1.0, 2, 50},
		{"overloaded", 4.5, 2, 225},
		{"zero cores clamps to one", 2.0, 0, 200},
		{"rounds", 1.349, 1, 135},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loadPercent(tt.value, tt.cores); got != tt.want {
				t.Errorf("loadPercent(%v, %d) = %d, want %d", tt.value, tt.cores, got, tt.want)
			}
		})
	}
}

func TestMemoryUsedPercent(t *testing.T) {
	t.Run("computes from total and available", func(t *testing.T) {
		meminfo := "MemTotal:       8000000 kB\nMemFree:         500000 kB\nMemAvailable:   2000000 kB\n"
		got, err := memoryUsedPercent(strings.NewReader(meminfo))
		if err != nil {
			t.Fatalf("memoryUsedPercent failed: %v", err)
		}
		if got != 75 {
			t.Errorf("expected 75%%, got %d%%", got)
		}
	})

	t.Run("missing MemTotal is an error", func(t *testing.T) {
		if _, err := memoryUsedPercent(strings.NewReader("MemAvailable: 100 kB\n")); err == nil {
			t.Error("expected error for missing MemTotal")
		}
	})
}

func TestEvaluateStatusPayload(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantProblem string
		wantUptime  int
	}{
		{
			"healthy",
			`{"service":"spondex","healthy":true,"uptime_seconds":120,"last_pass_at":"2025-06-01T12:00:00Z"}`,
			"", 120,
		},
		{
			"unhealthy flag",
			`{"service":"spondex","healthy":false,"uptime_seconds":120,"last_pass_at":"2025-06-01T12:00:00Z"}`,
			"application reports unhealthy status", 120,
		},
		{
			"missing fields",
			`{"uptime_seconds":120}`,
			"missing required fields: service, healthy, last_pass_at", 0,
		},
		{
			"negative uptime",
			`{"service":"spondex","healthy":true,"uptime_seconds":-5,"last_pass_at":"2025-06-01T12:00:00Z"}`,
			"implausible uptime -5", 0,
		},
		{
			"not json",
			`<html>`,
			"invalid JSON", 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uptime, problem := evaluateStatusPayload([]byte(tt.body))
			if tt.wantProblem == "" && problem != "" {
				t.Fatalf("unexpected problem: %s", problem)
			}
			if tt.wantProblem != "" && !strings.Contains(problem, strings.SplitN(tt.wantProblem, ":", 2)[0]) {
				t.Errorf("expected problem containing %q, got %q", tt.wantProblem, problem)
			}
			if uptime != tt.wantUptime {
				t.Errorf("expected uptime %d, got %d", tt.wantUptime, uptime)
			}
		})
	}
}

func TestRebootAlert(t *testing.T) {
	boot := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	t.Run("no previous boot recorded", func(t *testing.T) {
		if msg := rebootAlert(boot, ""); msg != "" {
			t.Errorf("expected no alert, got %q", msg)
		}
	})

	t.Run("same boot within tolerance", func(t *testing.T) {
		last := boot.Add(-2 * time.Second).Format(time.RFC3339)
		if msg := rebootAlert(boot, last); msg != "" {
			t.Errorf("expected no alert within tolerance, got %q", msg)
		}
	})

	t.Run("reboot detected", func(t *testing.T) {
		last := boot.Add(-time.Hour).Format(time.RFC3339)
		msg := rebootAlert(boot, last)
		if !strings.Contains(msg, "Server reboot detected") {
			t.Errorf("expected reboot alert, got %q", msg)
		}
	})

	t.Run("unparseable stored timestamp", func(t *testing.T) {
		if msg := rebootAlert(boot, "not-a-time"); msg != "" {
			t.Errorf("expected no alert for bad timestamp, got %q", msg)
		}
	})
}

func TestParseDiskstats(t *testing.T) {
	contents := `   8       0 sda 1500 20 30 40 2500 60 70 80 0 100 110
   8       1 sda1 10 0 0 0 10 0 0 0 0 0 0
 253       0 dm-0 short line`

	stats := parseDiskstats(strings.NewReader(contents))
	if len(stats) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(stats))
	}
	if stats["sda"].ReadIOs != 1500 || stats["sda"].WriteIOs != 2500 {
		t.Errorf("unexpected sda counters: %+v", stats["sda"])
	}
	if _, ok := stats["dm-0"]; ok {
		t.Error("short lines should be skipped")
	}
}

func TestDeviceIOPS(t *testing.T) {
	prev := diskCounters{ReadIOs: 1000, WriteIOs: 2000}
	curr := diskCounters{ReadIOs: 1600, WriteIOs: 2300}

	t.Run("reads and writes per minute", func(t *testing.T) {
		// 900 ops over 60s = 900 ops/min
		if got := deviceIOPS(prev, curr, time.Minute, true, true); got != 900 {
			t.Errorf("expected 900, got %d", got)
		}
	})

	t.Run("writes only", func(t *testing.T) {
		if got := deviceIOPS(prev, curr, time.Minute, false, true); got != 300 {
			t.Errorf("expected 300, got %d", got)
		}
	})

	t.Run("counter reset yields zero delta", func(t *testing.T) {
		reset := diskCounters{ReadIOs: 5, WriteIOs: 5}
		if got := deviceIOPS(prev, reset, time.Minute, true, true); got != 0 {
			t.Errorf("expected 0 after counter reset, got %d", got)
		}
	})
}

func TestEvalDiskUsage(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := shared.DiskUsageConfig{
		Name:            "root",
		Path:            "/",
		WarnPercent:     85,
		CriticalPercent: 95,
		MinFreeGB:       2,
	}
	const gb = uint64(1) << 30

	t.Run("healthy disk", func(t *testing.T) {
		metrics, alerts := evalDiskUsage(cfg, 100*gb, 50*gb, now)
		if len(alerts) != 0 {
			t.Fatalf("expected no alerts, got %+v", alerts)
		}
		if len(metrics) != 3 {
			t.Fatalf("expected 3 metrics, got %d", len(metrics))
		}
		if metrics[2].Value != "OK" {
			t.Errorf("expected OK status, got %s", metrics[2].Value)
		}
	})

	t.Run("warn threshold", func(t *testing.T) {
		_, alerts := evalDiskUsage(cfg, 100*gb, 10*gb, now)
		if len(alerts) != 1 || alerts[0].Severity != "warning" {
			t.Fatalf("expected one warning alert, got %+v", alerts)
		}
	})

	t.Run("below minimum free space", func(t *testing.T) {
		metrics, alerts := evalDiskUsage(cfg, 100*gb, 1*gb, now)
		if len(alerts) != 1 || alerts[0].Name != "disk_space_exhausted" {
			t.Fatalf("expected critical alert, got %+v", alerts)
		}
		if metrics[2].Value != "FAIL" {
			t.Errorf("expected FAIL status, got %s", metrics[2].Value)
		}
	})
}

func TestScanLogTail(t *testing.T) {
	writeLog := func(t *testing.T, path, content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write log: %v", err)
		}
	}

	t.Run("finds pattern and advances offset", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		writeLog(t, path, "ok line\nERROR something broke\n")

		matches, state, err := scanLogTail(path, "ERROR", logOffset{})
		if err != nil {
			t.Fatalf("scanLogTail failed: %v", err)
		}
		if len(matches) != 1 {
			t.Fatalf("expected 1 match, got %d", len(matches))
		}

		// Second scan from the stored offset sees nothing new.
		matches, state, err = scanLogTail(path, "ERROR", state)
		if err != nil {
			t.Fatalf("second scan failed: %v", err)
		}
		if len(matches) != 0 {
			t.Errorf("expected no new matches, got %d", len(matches))
		}

		// Appended content past the offset is picked up.
		fp, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			t.Fatalf("failed to append: %v", err)
		}
		fp.WriteString("ERROR again\n")
		fp.Close()

		matches, _, err = scanLogTail(path, "ERROR", state)
		if err != nil {
			t.Fatalf("third scan failed: %v", err)
		}
		if len(matches) != 1 || matches[0] != "ERROR again" {
			t.Errorf("expected appended match, got %v", matches)
		}
	})

	t.Run("truncation restarts from the beginning", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		writeLog(t, path, "ERROR one\nERROR two\nfiller to push the offset forward\n")

		_, state, err := scanLogTail(path, "ERROR", logOffset{})
		if err != nil {
			t.Fatalf("scanLogTail failed: %v", err)
		}

		writeLog(t, path, "ERROR fresh\n")
		matches, _, err := scanLogTail(path, "ERROR", state)
		if err != nil {
			t.Fatalf("scan after truncation failed: %v", err)
		}
		if len(matches) != 1 || matches[0] != "ERROR fresh" {
			t.Errorf("expected restart after truncation, got %v", matches)
		}
	})

	t.Run("missing file surfaces not-exist", func(t *testing.T) {
		_, _, err := scanLogTail(filepath.Join(t.TempDir(), "absent.log"), "ERROR", logOffset{})
		if !os.IsNotExist(err) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}
