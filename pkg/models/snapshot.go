package models

// Snapshot is a point-in-time observation of the host. Every nested metric
// in one Snapshot carries the same timestamp (TS); Snapshots are immutable
// once constructed and owned exclusively by the Telemetry Store.
type Snapshot struct {
	TS       int64  `json:"ts"` // seconds since epoch, monotonic per host
	HostID   string `json:"host_id"`
	Kernel   string `json:"kernel"`
	Distro   string `json:"distro"`
	UptimeS  int64  `json:"uptime_s"`

	CPU       CPUMetrics             `json:"cpu"`
	Mem       MemMetrics             `json:"mem"`
	Disks     []DiskMetrics          `json:"disks"`
	Net       []NetMetrics           `json:"net"`
	Power     PowerMetrics           `json:"power"`
	GPUs      []GPUMetrics           `json:"gpus"`
	Processes []ProcessMetrics       `json:"processes"`
	Units     []SystemdUnitState     `json:"units"`
}

// CPUMetrics groups per-core and load-average readings.
type CPUMetrics struct {
	Cores     []CPUCore `json:"cores"`
	LoadAvg1  float64   `json:"load_avg_1"`
	LoadAvg5  float64   `json:"load_avg_5"`
	LoadAvg15 float64   `json:"load_avg_15"`
}

// CPUCore is one logical core's reading.
type CPUCore struct {
	Index   int     `json:"index"`
	UtilPct float64 `json:"util_pct"`
	TempC   float64 `json:"temp_c,omitempty"`
}

// MemMetrics is system memory in MB.
type MemMetrics struct {
	TotalMB  int64 `json:"total_mb"`
	UsedMB   int64 `json:"used_mb"`
	FreeMB   int64 `json:"free_mb"`
	CachedMB int64 `json:"cached_mb"`
	SwapMB   int64 `json:"swap_mb"`
}

// DiskMetrics is one mounted filesystem's reading.
type DiskMetrics struct {
	Mount       string  `json:"mount"`
	FSType      string  `json:"fs_type"`
	CapacityMB  int64   `json:"capacity_mb"`
	UsedPct     float64 `json:"used_pct"`
	InodePct    float64 `json:"inode_pct"`
	ReadRateKB  float64 `json:"read_rate_kb"`
	WriteRateKB float64 `json:"write_rate_kb"`
}

// NetMetrics is one network interface's reading. Addresses and RSSI are
// redacted by pkg/masking before leaving the Probe Registry boundary.
type NetMetrics struct {
	Interface   string  `json:"interface"`
	LinkUp      bool    `json:"link_up"`
	RXRateKB    float64 `json:"rx_rate_kb"`
	TXRateKB    float64 `json:"tx_rate_kb"`
	AddressRedacted string `json:"address_redacted,omitempty"`
	RSSIRedacted    string `json:"rssi_redacted,omitempty"`
	VPN         bool    `json:"vpn"`
}

// PowerMetrics is battery/AC state.
type PowerMetrics struct {
	Percent       float64 `json:"percent"`
	OnAC          bool    `json:"on_ac"`
	TimeToEmptyM  int64   `json:"time_to_empty_m,omitempty"`
	TimeToFullM   int64   `json:"time_to_full_m,omitempty"`
	Watts         float64 `json:"watts,omitempty"`
}

// GPUMetrics is one GPU device's reading.
type GPUMetrics struct {
	Device  string  `json:"device"`
	UtilPct float64 `json:"util_pct"`
	TempC   float64 `json:"temp_c"`
	MemUsedMB int64 `json:"mem_used_mb"`
	MemTotalMB int64 `json:"mem_total_mb"`
}

// ProcessMetrics is one top-N process entry.
type ProcessMetrics struct {
	PID     int     `json:"pid"`
	Name    string  `json:"name"`
	UtilPct float64 `json:"util_pct"`
	MemMB   int64   `json:"mem_mb"`
	State   string  `json:"state"`
}

// SystemdUnitState is one monitored unit's reported state.
type SystemdUnitState struct {
	Name   string `json:"name"`
	Active string `json:"active"` // active | inactive | failed | activating
	Sub    string `json:"sub"`
}
