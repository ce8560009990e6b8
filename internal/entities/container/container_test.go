package container

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusRunning, ParseStatus("running"))
	assert.Equal(t, StatusRunning, ParseStatus(" Running "))
	assert.Equal(t, StatusStopped, ParseStatus("exited"))
	assert.Equal(t, StatusStopped, ParseStatus("stopped"))
	assert.Equal(t, StatusStopped, ParseStatus("dead"))
	assert.Equal(t, StatusOther, ParseStatus("restarting"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
}

func TestStatusJSONRoundTrip(t *testing.T) {
	var e Entity
	err := json.Unmarshal([]byte(`{"id":"abc","name":"web-1","status":"running"}`), &e)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, e.Status)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"abc","name":"web-1","status":"running"}`, string(out))
}

func TestStatusUnmarshalMalformed(t *testing.T) {
	// a numeric status is malformed but must not fail the whole payload,
	// and must not pass as a known status either
	var e Entity
	err := json.Unmarshal([]byte(`{"id":"abc","name":"web-1","status":7}`), &e)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, e.Status)
}

func TestMetricsZeroDefaults(t *testing.T) {
	var m Metrics
	err := json.Unmarshal([]byte(`{"cpu_percent":12.5,"cpu_limit":null,"memory_usage":1024}`), &m)
	require.NoError(t, err)
	assert.Equal(t, 12.5, m.CpuPercent)
	assert.Equal(t, uint64(1024), m.MemoryUsage)
	// absent and null fields stay zero
	assert.Zero(t, m.CpuLimit)
	assert.Zero(t, m.CpuCount)
	assert.Zero(t, m.NetworkRx)
	assert.Zero(t, m.Uptime)
	assert.Equal(t, StatusUnknown, m.Status, "absent status must not look like a real one")
}

func TestDefaultGroup(t *testing.T) {
	assert.Equal(t, "web", DefaultGroup("web-1"))
	assert.Equal(t, "web", DefaultGroup("web_backend_2"))
	assert.Equal(t, "redis", DefaultGroup("redis"))
	assert.Equal(t, "db", DefaultGroup("db-replica_1"))
	assert.Equal(t, "", DefaultGroup(""))
}

func TestOverlayResolution(t *testing.T) {
	e := Entity{Id: "c1", Name: "web-1", Status: StatusRunning}
	o := NewOverlay()

	assert.Equal(t, "web-1", o.DisplayName(e))
	assert.Equal(t, "web", o.ResolveGroup(e))
	assert.Equal(t, "web", o.DisplayGroupName("web"))

	o.Containers["c1"] = "frontend"
	o.ContainerGroups["c1"] = "custom"
	o.Groups["custom"] = "My Stack"

	assert.Equal(t, "frontend", o.DisplayName(e))
	assert.Equal(t, "custom", o.ResolveGroup(e))
	assert.Equal(t, "My Stack", o.DisplayGroupName("custom"))

	// clearing the override reverts to the derived group
	delete(o.ContainerGroups, "c1")
	assert.Equal(t, "web", o.ResolveGroup(e))
}

func TestOverlayCloneIsDeep(t *testing.T) {
	var zero Overlay
	c := zero.Clone()
	require.NotNil(t, c.Containers)

	o := NewOverlay()
	o.Containers["c1"] = "a"
	c = o.Clone()
	c.Containers["c1"] = "b"
	assert.Equal(t, "a", o.Containers["c1"])
}
