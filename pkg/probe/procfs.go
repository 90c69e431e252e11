package probe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/anna-project/annad/pkg/masking"
	"github.com/anna-project/annad/pkg/models"
)

// readFileString reads a whole file and returns it as a string, in the
// style of util.ReadFileString.
func readFileString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// readFileLines reads a file and returns its lines.
func readFileLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}

// parseKeyValueLines parses "Key: value" or "Key value" lines into a map,
// trimming whitespace from both sides.
func parseKeyValueLines(lines []string) map[string]string {
	m := make(map[string]string, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var key, val string
		if idx := strings.Index(line, ":"); idx >= 0 {
			key = strings.TrimSpace(line[:idx])
			val = strings.TrimSpace(line[idx+1:])
		} else {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			key, val = fields[0], strings.Join(fields[1:], " ")
		}
		m[key] = val
	}
	return m
}

func parseUint64(s string) uint64 {
	v, _ := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	return v
}

func parseFloat64(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func parseKB(s string) int64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, " kB")
	s = strings.TrimSpace(s)
	v, _ := strconv.ParseInt(s, 10, 64)
	return v / 1024 // meminfo reports kB; Snapshot wants MB
}

// RegisterBuiltins wires the STATIC/SLOW/VOLATILE probes the Scheduler
// ticks every cycle: /proc and /sys readers plus exec-based probes for
// values the kernel doesn't expose directly. masker redacts network
// addresses before they leave the probe boundary (§3.1).
func RegisterBuiltins(r *Registry, masker *masking.Service) {
	r.Register(Probe{
		Name:      "cpu_loadavg",
		Stability: models.StabilityVolatile,
		Category:  "load-average",
		Collect: func(ctx context.Context) (string, error) {
			return readFileString("/proc/loadavg")
		},
		Parse: func(raw string) map[string]string {
			fields := strings.Fields(raw)
			out := map[string]string{}
			if len(fields) >= 3 {
				out["load_avg_1"] = fields[0]
				out["load_avg_5"] = fields[1]
				out["load_avg_15"] = fields[2]
			}
			return out
		},
	})

	r.Register(Probe{
		Name:      "cpu_stat",
		Stability: models.StabilityVolatile,
		Category:  "cpu-utilization",
		Collect: func(ctx context.Context) (string, error) {
			lines, err := readFileLines("/proc/stat")
			if err != nil {
				return "", err
			}
			return strings.Join(lines, "\n"), nil
		},
		Parse: func(raw string) map[string]string {
			out := map[string]string{}
			cores := 0
			for _, line := range strings.Split(raw, "\n") {
				if strings.HasPrefix(line, "cpu") && !strings.HasPrefix(line, "cpu ") {
					cores++
				}
			}
			out["core_count"] = strconv.Itoa(cores)
			return out
		},
	})

	r.Register(Probe{
		Name:      "cpu_model",
		Stability: models.StabilityStatic,
		Category:  "cpu-model",
		Collect: func(ctx context.Context) (string, error) {
			return readFileString("/proc/cpuinfo")
		},
		Parse: func(raw string) map[string]string {
			for _, line := range strings.Split(raw, "\n") {
				if strings.HasPrefix(line, "model name") {
					kv := parseKeyValueLines([]string{line})
					return map[string]string{"model": kv["model name"]}
				}
			}
			return nil
		},
	})

	r.Register(Probe{
		Name:      "meminfo",
		Stability: models.StabilityVolatile,
		Category:  "memory-usage",
		Collect: func(ctx context.Context) (string, error) {
			return readFileString("/proc/meminfo")
		},
		Parse: func(raw string) map[string]string {
			kv := parseKeyValueLines(strings.Split(raw, "\n"))
			total := parseKB(kv["MemTotal"])
			free := parseKB(kv["MemFree"])
			cached := parseKB(kv["Cached"])
			swapTotal := parseKB(kv["SwapTotal"])
			swapFree := parseKB(kv["SwapFree"])
			return map[string]string{
				"total_mb":  strconv.FormatInt(total, 10),
				"free_mb":   strconv.FormatInt(free, 10),
				"cached_mb": strconv.FormatInt(cached, 10),
				"used_mb":   strconv.FormatInt(total-free-cached, 10),
				"swap_mb":   strconv.FormatInt(swapTotal-swapFree, 10),
			}
		},
	})

	r.Register(Probe{
		Name:      "kernel_version",
		Stability: models.StabilityStatic,
		Category:  "kernel-version",
		Collect: func(ctx context.Context) (string, error) {
			return readFileString("/proc/version")
		},
		Parse: func(raw string) map[string]string {
			return map[string]string{"version": strings.TrimSpace(raw)}
		},
	})

	r.Register(Probe{
		Name:      "uptime",
		Stability: models.StabilityVolatile,
		Category:  "uptime",
		Collect: func(ctx context.Context) (string, error) {
			return readFileString("/proc/uptime")
		},
		Parse: func(raw string) map[string]string {
			fields := strings.Fields(raw)
			if len(fields) == 0 {
				return nil
			}
			return map[string]string{"uptime_s": fields[0]}
		},
	})

	r.Register(Probe{
		Name:      "disk_usage_root",
		Stability: models.StabilityVolatile,
		Category:  "disk-usage-root",
		Collect: func(ctx context.Context) (string, error) {
			return execCombined(ctx, "df", "-kP", "/")
		},
		Parse: func(raw string) map[string]string {
			lines := strings.Split(strings.TrimSpace(raw), "\n")
			if len(lines) < 2 {
				return nil
			}
			fields := strings.Fields(lines[len(lines)-1])
			if len(fields) < 5 {
				return nil
			}
			return map[string]string{
				"capacity_mb": fmt.Sprintf("%d", parseUint64(fields[1])/1024),
				"used_pct":    strings.TrimSuffix(fields[4], "%"),
			}
		},
	})

	r.Register(Probe{
		Name:      "systemd_failed_units",
		Stability: models.StabilitySlow,
		Category:  "service-state:failed",
		Collect: func(ctx context.Context) (string, error) {
			return execCombined(ctx, "systemctl", "list-units", "--state=failed", "--no-legend", "--plain")
		},
		Parse: func(raw string) map[string]string {
			failed := strings.TrimSpace(raw)
			count := 0
			if failed != "" {
				count = len(strings.Split(failed, "\n"))
			}
			return map[string]string{"failed_count": strconv.Itoa(count)}
		},
	})

	r.Register(Probe{
		Name:      "installed_packages",
		Stability: models.StabilitySlow,
		Category:  "installed-package:*",
		Collect: func(ctx context.Context) (string, error) {
			return execCombined(ctx, "pacman", "-Q")
		},
		Parse: func(raw string) map[string]string {
			lines := strings.Split(strings.TrimSpace(raw), "\n")
			out := map[string]string{"count": strconv.Itoa(len(lines))}
			return out
		},
	})

	r.Register(Probe{
		Name:      "net_interfaces",
		Stability: models.StabilityVolatile,
		Category:  "network-state",
		Collect: func(ctx context.Context) (string, error) {
			return execCombined(ctx, "ip", "-o", "addr", "show")
		},
		Parse: func(raw string) map[string]string {
			out := map[string]string{}
			for i, line := range strings.Split(strings.TrimSpace(raw), "\n") {
				fields := strings.Fields(line)
				if len(fields) < 4 {
					continue
				}
				iface := fields[1]
				addr := fields[3]
				if masker != nil {
					addr = masker.RedactAddress(addr)
				}
				out[fmt.Sprintf("iface_%d", i)] = iface
				out[fmt.Sprintf("addr_%d", i)] = addr
			}
			return out
		},
	})

	r.Register(Probe{
		Name:      "battery_level",
		Stability: models.StabilityVolatile,
		Category:  "battery-level",
		Collect: func(ctx context.Context) (string, error) {
			capacity, err := readFileString("/sys/class/power_supply/BAT0/capacity")
			if err != nil {
				return "", err
			}
			status, _ := readFileString("/sys/class/power_supply/BAT0/status")
			return strings.TrimSpace(capacity) + " " + strings.TrimSpace(status), nil
		},
		Parse: func(raw string) map[string]string {
			fields := strings.Fields(raw)
			out := map[string]string{}
			if len(fields) >= 1 {
				out["percent"] = fields[0]
			}
			if len(fields) >= 2 {
				out["on_ac"] = strconv.FormatBool(strings.EqualFold(fields[1], "Charging") || strings.EqualFold(fields[1], "Full"))
			}
			return out
		},
	})

	r.Register(Probe{
		Name:      "gpu_nvidia",
		Stability: models.StabilityVolatile,
		Category:  "gpu-utilization",
		Collect: func(ctx context.Context) (string, error) {
			return execCombined(ctx, "nvidia-smi",
				"--query-gpu=name,utilization.gpu,temperature.gpu,memory.used,memory.total",
				"--format=csv,noheader,nounits")
		},
		Parse: func(raw string) map[string]string {
			line := strings.TrimSpace(strings.Split(raw, "\n")[0])
			fields := strings.Split(line, ",")
			if len(fields) < 5 {
				return nil
			}
			return map[string]string{
				"device":      strings.TrimSpace(fields[0]),
				"util_pct":    strings.TrimSpace(fields[1]),
				"temp_c":      strings.TrimSpace(fields[2]),
				"mem_used_mb": strings.TrimSpace(fields[3]),
				"mem_total_mb": strings.TrimSpace(fields[4]),
			}
		},
	})
}

// execCombined runs name with args under ctx and returns combined
// stdout+stderr, mirroring the teacher's timeout-bound exec helpers.
func execCombined(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}
