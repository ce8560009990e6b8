package dashboard

import (
	"testing"

	"deckhand/internal/entities/container"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceAllPrunesMetrics(t *testing.T) {
	s := newEntityStore()
	s.replaceAll([]container.Entity{
		{Id: "a", Name: "api-1"},
		{Id: "b", Name: "db-1"},
	})
	s.applyMetrics(map[string]container.Metrics{
		"a": {CpuPercent: 1},
		"b": {CpuPercent: 2},
	})

	s.replaceAll([]container.Entity{{Id: "a", Name: "api-1"}})
	assert.Equal(t, 1, s.count())
	assert.Zero(t, s.metricsFor("b").CpuPercent, "metrics for removed ids are pruned")
	assert.Equal(t, 1.0, s.metricsFor("a").CpuPercent)
}

func TestApplyMetricsRefreshesEntity(t *testing.T) {
	s := newEntityStore()
	s.replaceAll([]container.Entity{{Id: "a", Name: "api-1", Status: container.StatusRunning}})

	s.applyMetrics(map[string]container.Metrics{
		"a": {Name: "api-1-renamed", Status: container.StatusStopped, MemoryUsage: 9},
	})
	snap := s.snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "api-1-renamed", snap[0].Name)
	assert.Equal(t, container.StatusStopped, snap[0].Status)
	assert.Equal(t, uint64(9), s.metricsFor("a").MemoryUsage)
}

func TestApplyMetricsKeepsStatusWhenAbsent(t *testing.T) {
	s := newEntityStore()
	s.replaceAll([]container.Entity{{Id: "a", Name: "api-1", Status: container.StatusRunning}})

	// a partial metrics entry without a status key decodes to StatusUnknown
	s.applyMetrics(map[string]container.Metrics{"a": {CpuPercent: 1}})
	snap := s.snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, container.StatusRunning, snap[0].Status, "missing status must not null out the known one")
	assert.Equal(t, 1.0, s.metricsFor("a").CpuPercent)
}

func TestApplyMetricsCreatesUnseenIdsDeterministically(t *testing.T) {
	s := newEntityStore()
	s.replaceAll([]container.Entity{{Id: "m", Name: "mid"}})

	s.applyMetrics(map[string]container.Metrics{
		"z": {Name: "zed"},
		"a": {Name: "alpha"},
	})
	snap := s.snapshot()
	require.Len(t, snap, 3)
	// existing order is preserved, new ids append in sorted order
	assert.Equal(t, "m", snap[0].Id)
	assert.Equal(t, "a", snap[1].Id)
	assert.Equal(t, "z", snap[2].Id)
}

func TestInteractionGuardRefcount(t *testing.T) {
	g := newInteractionGuard()
	assert.False(t, g.active())

	g.begin(ReasonEdit)
	g.begin(ReasonDrag)
	g.end(ReasonEdit)
	assert.True(t, g.active(), "ending one reason must not clear another's hold")

	g.end(ReasonDrag)
	assert.False(t, g.active())

	g.end(ReasonDrag)
	assert.False(t, g.active(), "ending below zero stays clamped")
}
