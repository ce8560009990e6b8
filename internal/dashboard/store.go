// Package dashboard implements the live state synchronizer: it reconciles
// periodic pulls, pushed snapshots, and optimistic local mutations into one
// consistent derived view.
package dashboard

import (
	"sort"

	"deckhand/internal/entities/container"
)

// entityStore is the canonical mapping of entity id to its latest known
// attributes and metrics. Merges always swap whole maps so readers never
// observe a partial write. Only the session goroutine touches it.
type entityStore struct {
	entities map[string]container.Entity
	metrics  map[string]container.Metrics
	// order preserves first-observation order; it is the tie-break for
	// every stable sort downstream.
	order []string
}

func newEntityStore() *entityStore {
	return &entityStore{
		entities: map[string]container.Entity{},
		metrics:  map[string]container.Metrics{},
	}
}

// replaceAll replaces the full entity set from a pull result. Ids absent
// from the payload are removed, covering container removal and
// replacement-by-restart. Metrics of removed ids are pruned.
func (s *entityStore) replaceAll(entities []container.Entity) {
	next := make(map[string]container.Entity, len(entities))
	order := make([]string, 0, len(entities))
	for _, e := range entities {
		if _, dup := next[e.Id]; dup {
			continue
		}
		next[e.Id] = e
		order = append(order, e.Id)
	}

	nextMetrics := make(map[string]container.Metrics, len(s.metrics))
	for id, m := range s.metrics {
		if _, ok := next[id]; ok {
			nextMetrics[id] = m
		}
	}

	s.entities = next
	s.metrics = nextMetrics
	s.order = order
}

// applyMetrics merges one push snapshot: metrics are replaced wholesale per
// id (no field-level merge), entity attributes are refreshed, and ids seen
// for the first time are created. Entities are only removed by pulls.
func (s *entityStore) applyMetrics(snapshot map[string]container.Metrics) {
	nextEntities := make(map[string]container.Entity, len(s.entities))
	for id, e := range s.entities {
		nextEntities[id] = e
	}
	nextMetrics := make(map[string]container.Metrics, len(s.metrics))
	for id, m := range s.metrics {
		nextMetrics[id] = m
	}

	var created []string
	for id, m := range snapshot {
		nextMetrics[id] = m
		e, known := nextEntities[id]
		if !known {
			created = append(created, id)
			e = container.Entity{Id: id}
		}
		if m.Name != "" {
			e.Name = m.Name
		}
		if m.Status != container.StatusUnknown {
			e.Status = m.Status
		}
		nextEntities[id] = e
	}
	// map iteration order is random; keep creation order deterministic
	sort.Strings(created)

	s.entities = nextEntities
	s.metrics = nextMetrics
	s.order = append(s.order, created...)
}

// snapshot returns the entities in observation order. The slice is a copy.
func (s *entityStore) snapshot() []container.Entity {
	out := make([]container.Entity, 0, len(s.order))
	for _, id := range s.order {
		if e, ok := s.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out
}

// metricsFor returns the latest metrics for an id, zero-valued when none
// have been observed yet.
func (s *entityStore) metricsFor(id string) container.Metrics {
	return s.metrics[id]
}

func (s *entityStore) count() int {
	return len(s.entities)
}
