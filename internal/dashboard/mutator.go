package dashboard

import (
	"deckhand/internal/entities/container"
	"deckhand/internal/gateway"
)

// fieldScope identifies which overlay map a mutation targets.
type fieldScope uint8

const (
	scopeContainerName fieldScope = iota
	scopeGroupName
	scopeContainerGroup
)

// fieldKey addresses one overlay field. Versions, pending counts, and edit
// marks are all tracked per key so mutations on different fields never
// interfere.
type fieldKey struct {
	scope fieldScope
	id    string
}

// overlayGet reads one field from an overlay.
func overlayGet(o container.Overlay, key fieldKey) (string, bool) {
	switch key.scope {
	case scopeContainerName:
		v, ok := o.Containers[key.id]
		return v, ok
	case scopeGroupName:
		v, ok := o.Groups[key.id]
		return v, ok
	default:
		v, ok := o.ContainerGroups[key.id]
		return v, ok
	}
}

// overlaySet writes one field into an overlay; set=false removes it.
func overlaySet(o container.Overlay, key fieldKey, value string, set bool) {
	var m map[string]string
	switch key.scope {
	case scopeContainerName:
		m = o.Containers
	case scopeGroupName:
		m = o.Groups
	default:
		m = o.ContainerGroups
	}
	if set {
		m[key.id] = value
	} else {
		delete(m, key.id)
	}
}

// beginMutation applies the optimistic value, clears any edit mark on the
// field, bumps the field's version counter, and marks the field pending so
// remote merges cannot overwrite it while the call is in flight. It returns
// the version the caller must hand to finishMutation.
func (s *Session) beginMutation(key fieldKey, value string, set bool) uint64 {
	overlaySet(s.overlay, key, value, set)
	s.clearEdit(key)
	s.mutSeq[key]++
	s.pending[key]++
	s.publish()
	return s.mutSeq[key]
}

// finishMutation settles one mutation. On failure the captured pre-mutation
// value is restored, but only if no newer mutation has started on the same
// field since: a superseded call must never clobber its successor's value.
func (s *Session) finishMutation(key fieldKey, version uint64, prev string, had bool, ok bool) {
	if s.pending[key] > 0 {
		s.pending[key]--
		if s.pending[key] == 0 {
			delete(s.pending, key)
		}
	}
	if ok {
		return
	}
	if s.mutSeq[key] != version {
		s.log.Debug("Stale mutation failure ignored", "id", key.id)
		return
	}
	s.log.Warn("Mutation rejected, reverting", "id", key.id)
	overlaySet(s.overlay, key, prev, had)
	s.publish()
}

// mutate runs the full optimistic protocol: capture, apply, dispatch the
// remote call off the loop, and settle back on the loop. A late result after
// shutdown is dropped by enqueue.
func (s *Session) mutate(key fieldKey, value string, set bool, req gateway.Mutation) {
	s.enqueue(func() {
		prev, had := overlayGet(s.overlay, key)
		version := s.beginMutation(key, value, set)
		ctx := s.runCtx
		go func() {
			ok := s.gw.Mutate(ctx, req)
			s.enqueue(func() {
				s.finishMutation(key, version, prev, had, ok)
			})
		}()
	})
}

// RenameContainer assigns a custom display name to a container.
func (s *Session) RenameContainer(id, name string) {
	s.mutate(fieldKey{scopeContainerName, id}, name, true,
		gateway.Mutation{Kind: gateway.SetContainerName, Id: id, Name: name})
}

// ResetContainerName reverts a container to its runtime default name.
func (s *Session) ResetContainerName(id string) {
	s.mutate(fieldKey{scopeContainerName, id}, "", false,
		gateway.Mutation{Kind: gateway.ClearContainerName, Id: id})
}

// RenameGroup assigns a custom display name to a group.
func (s *Session) RenameGroup(groupId, name string) {
	s.mutate(fieldKey{scopeGroupName, groupId}, name, true,
		gateway.Mutation{Kind: gateway.SetGroupName, Id: groupId, Name: name})
}

// ResetGroupName reverts a group to its derived display name.
func (s *Session) ResetGroupName(groupId string) {
	s.mutate(fieldKey{scopeGroupName, groupId}, "", false,
		gateway.Mutation{Kind: gateway.ClearGroupName, Id: groupId})
}

// MoveToGroup assigns a container to a group, overriding the derived one.
func (s *Session) MoveToGroup(id, groupId string) {
	s.mutate(fieldKey{scopeContainerGroup, id}, groupId, true,
		gateway.Mutation{Kind: gateway.SetContainerGroup, Id: id, Name: groupId})
}

// ResetGroup clears a container's group override.
func (s *Session) ResetGroup(id string) {
	s.mutate(fieldKey{scopeContainerGroup, id}, "", false,
		gateway.Mutation{Kind: gateway.ClearContainerGroup, Id: id})
}
