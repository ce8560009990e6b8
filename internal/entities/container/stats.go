package container

// Metrics is the point-in-time resource snapshot for one container, keyed by
// container id in the push payload. Numeric fields stay zero when the backend
// omits or nulls them so they are always safe in arithmetic.
type Metrics struct {
	Name       string  `json:"name,omitempty"`
	Status     Status  `json:"status,omitempty"`
	CpuPercent float64 `json:"cpu_percent"`
	// CpuCount is the number of cores visible to the container, 0 if unknown.
	CpuCount int `json:"cpu_count,omitempty"`
	// CpuLimit is the hard CPU limit in cores, 0 if unlimited.
	CpuLimit  float64 `json:"cpu_limit,omitempty"`
	CpuShares int     `json:"cpu_shares,omitempty"`

	MemoryUsage uint64 `json:"memory_usage"`
	// MemoryLimit is 0 when the container is only bounded by the host.
	MemoryLimit uint64 `json:"memory_limit"`

	// Cumulative byte counters since container start.
	NetworkRx uint64 `json:"network_rx"`
	NetworkTx uint64 `json:"network_tx"`
	IoRead    uint64 `json:"io_read"`
	IoWrite   uint64 `json:"io_write"`

	Uptime float64 `json:"uptime"`
}

// SystemInfo carries host-level figures included in every push event.
// Field names match the backend's Docker-derived keys.
type SystemInfo struct {
	MemTotal uint64 `json:"MemTotal"`
	NCPU     int    `json:"NCPU"`
}

// PushPayload is the body of an update_stats push event. Containers is a
// complete snapshot: each entry replaces the previous metrics for that id
// wholesale, there is no field-level merge.
type PushPayload struct {
	Containers  map[string]Metrics `json:"containers"`
	SystemInfo  SystemInfo         `json:"system_info"`
	CustomNames Overlay            `json:"custom_names"`
}
