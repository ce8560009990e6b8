package dashboard

import (
	"sort"
	"strings"
	"time"

	"deckhand/internal/entities/container"
)

// SortField selects the column the entity list is ordered by.
type SortField string

const (
	SortName    SortField = "name"
	SortStatus  SortField = "status"
	SortCpu     SortField = "cpu"
	SortMemory  SortField = "memory"
	SortNetRx   SortField = "network_rx"
	SortNetTx   SortField = "network_tx"
	SortIoRead  SortField = "io_read"
	SortIoWrite SortField = "io_write"
	SortUptime  SortField = "uptime"
)

// ParseSortField reports whether s names a known sort field.
func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(s); f {
	case SortName, SortStatus, SortCpu, SortMemory, SortNetRx, SortNetTx,
		SortIoRead, SortIoWrite, SortUptime:
		return f, true
	default:
		return "", false
	}
}

// SortDir is the sort direction. Desc flips the comparator output, not the
// input order, so ties stay in insertion order either way.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// ViewMode selects between the flat sorted list and the grouped layout.
type ViewMode string

const (
	ModeList    ViewMode = "list"
	ModeGrouped ViewMode = "grouped"
)

// Row is one entity joined with its metrics and resolved display fields.
type Row struct {
	Id          string            `json:"id"`
	Name        string            `json:"name"`
	DefaultName string            `json:"default_name"`
	Group       string            `json:"group"`
	GroupName   string            `json:"group_name"`
	Status      container.Status  `json:"status"`
	Metrics     container.Metrics `json:"metrics"`
}

// Totals aggregates metrics across a set of entities. Usage counters are
// summed; MemoryLimit and CpuCount take the max because they reflect
// host-level ceilings, not additive ones.
type Totals struct {
	CpuPercent  float64 `json:"cpu_percent"`
	CpuCount    int     `json:"cpu_count"`
	MemoryUsage uint64  `json:"memory_usage"`
	MemoryLimit uint64  `json:"memory_limit"`
	NetworkRx   uint64  `json:"network_rx"`
	NetworkTx   uint64  `json:"network_tx"`
	IoRead      uint64  `json:"io_read"`
	IoWrite     uint64  `json:"io_write"`
}

// Group is one bucket of the grouped view.
type Group struct {
	Id      string `json:"id"`
	Name    string `json:"name"`
	Running int    `json:"running"`
	Rows    []Row  `json:"rows"`
	Totals  Totals `json:"totals"`
}

// NetworkSeries is the rolling window of aggregate network totals together
// with the unit the chart should render in.
type NetworkSeries struct {
	Rx          []uint64 `json:"rx"`
	Tx          []uint64 `json:"tx"`
	Unit        string   `json:"unit"`
	UnitDivisor float64  `json:"unit_divisor"`
}

// View is the complete renderable model derived from the entity store, the
// overlay, and the display preferences. It is immutable once published.
type View struct {
	Rows         []Row                `json:"rows"`
	Groups       []Group              `json:"groups"`
	Totals       Totals               `json:"totals"`
	Network      NetworkSeries        `json:"network"`
	System       container.SystemInfo `json:"system"`
	SortField    SortField            `json:"sort_field"`
	SortDir      SortDir              `json:"sort_dir"`
	Mode         ViewMode             `json:"mode"`
	Connectivity string               `json:"connectivity"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// buildRows joins entities with their metrics and resolves display names
// and groups through the overlay. Input order is preserved.
func buildRows(entities []container.Entity, metricsFor func(string) container.Metrics, overlay container.Overlay) []Row {
	rows := make([]Row, 0, len(entities))
	for _, e := range entities {
		group := overlay.ResolveGroup(e)
		rows = append(rows, Row{
			Id:          e.Id,
			Name:        overlay.DisplayName(e),
			DefaultName: e.Name,
			Group:       group,
			GroupName:   overlay.DisplayGroupName(group),
			Status:      e.Status,
			Metrics:     metricsFor(e.Id),
		})
	}
	return rows
}

// sortRows orders rows by the selected field. The sort is stable, so rows
// with equal keys keep their insertion order.
func sortRows(rows []Row, field SortField, dir SortDir) {
	sort.SliceStable(rows, func(i, j int) bool {
		c := compareRows(rows[i], rows[j], field)
		if dir == SortDesc {
			c = -c
		}
		return c < 0
	})
}

func compareRows(a, b Row, field SortField) int {
	switch field {
	case SortName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case SortStatus:
		return statusRank(a.Status) - statusRank(b.Status)
	case SortCpu:
		return compareFloat(a.Metrics.CpuPercent, b.Metrics.CpuPercent)
	case SortMemory:
		return compareUint(a.Metrics.MemoryUsage, b.Metrics.MemoryUsage)
	case SortNetRx:
		return compareUint(a.Metrics.NetworkRx, b.Metrics.NetworkRx)
	case SortNetTx:
		return compareUint(a.Metrics.NetworkTx, b.Metrics.NetworkTx)
	case SortIoRead:
		return compareUint(a.Metrics.IoRead, b.Metrics.IoRead)
	case SortIoWrite:
		return compareUint(a.Metrics.IoWrite, b.Metrics.IoWrite)
	case SortUptime:
		return compareFloat(a.Metrics.Uptime, b.Metrics.Uptime)
	default:
		return 0
	}
}

// statusRank orders "running" above any other status.
func statusRank(s container.Status) int {
	if s == container.StatusRunning {
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// groupRows buckets rows by resolved group. Buckets appear in
// first-appearance order, then groups with at least one running entity are
// stably moved to the front.
func groupRows(rows []Row) []Group {
	index := map[string]int{}
	groups := make([]Group, 0)
	for _, row := range rows {
		i, ok := index[row.Group]
		if !ok {
			i = len(groups)
			index[row.Group] = i
			groups = append(groups, Group{Id: row.Group, Name: row.GroupName})
		}
		groups[i].Rows = append(groups[i].Rows, row)
		if row.Status == container.StatusRunning {
			groups[i].Running++
		}
	}
	for i := range groups {
		groups[i].Totals = sumTotals(groups[i].Rows)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Running > 0 && groups[j].Running == 0
	})
	return groups
}

// sumTotals aggregates metrics across a row set per the sum/max rules.
func sumTotals(rows []Row) Totals {
	var t Totals
	for _, row := range rows {
		m := row.Metrics
		t.CpuPercent += m.CpuPercent
		t.MemoryUsage += m.MemoryUsage
		t.NetworkRx += m.NetworkRx
		t.NetworkTx += m.NetworkTx
		t.IoRead += m.IoRead
		t.IoWrite += m.IoWrite
		if m.MemoryLimit > t.MemoryLimit {
			t.MemoryLimit = m.MemoryLimit
		}
		if m.CpuCount > t.CpuCount {
			t.CpuCount = m.CpuCount
		}
	}
	return t
}

// chart units, largest first, powers of 1000
var chartUnits = []struct {
	label     string
	threshold float64
}{
	{"TB", 1e12},
	{"GB", 1e9},
	{"MB", 1e6},
	{"KB", 1e3},
	{"B", 1},
}

// chartUnit picks the largest unit whose threshold the window maximum
// reaches. The divisor is floored at 1 so callers never divide by zero.
func chartUnit(peak float64) (string, float64) {
	for _, u := range chartUnits {
		if peak >= u.threshold {
			return u.label, u.threshold
		}
	}
	return "B", 1
}

// buildNetworkSeries packages the rolling windows with their display unit.
func buildNetworkSeries(rx, tx []uint64) NetworkSeries {
	var peak float64
	for _, v := range rx {
		peak = max(peak, float64(v))
	}
	for _, v := range tx {
		peak = max(peak, float64(v))
	}
	unit, divisor := chartUnit(peak)
	return NetworkSeries{Rx: rx, Tx: tx, Unit: unit, UnitDivisor: divisor}
}
