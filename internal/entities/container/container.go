// Package container defines the wire types shared between the stats backend
// and the dashboard core.
package container

import (
	"encoding/json"
	"strings"
)

// Status is the lifecycle status of a monitored container.
type Status uint8

const (
	// StatusUnknown is the zero value: no status observed. Merges must
	// never let it overwrite a previously known status.
	StatusUnknown Status = iota
	StatusRunning
	StatusStopped
	StatusOther
)

// ParseStatus maps a runtime status string to a Status. Anything present
// that the dashboard does not distinguish collapses to StatusOther; only an
// empty string is StatusUnknown.
func ParseStatus(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return StatusUnknown
	case "running":
		return StatusRunning
	case "stopped", "exited", "dead":
		return StatusStopped
	default:
		return StatusOther
	}
}

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopped:
		return "stopped"
	case StatusOther:
		return "other"
	default:
		return "unknown"
	}
}

// UnmarshalJSON accepts the backend's free-form status strings. An absent,
// null, or non-string status is not an error; it decodes to StatusUnknown
// so it cannot clobber a known status downstream.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		*s = StatusUnknown
		return nil
	}
	*s = ParseStatus(str)
	return nil
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Entity is one monitored container as reported by the pull endpoint.
// Name is the default name derived from the runtime, before any overlay.
type Entity struct {
	Id     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// DefaultGroup returns the token preceding the first "-" or "_" in the
// default name, or the whole name when no separator exists.
func DefaultGroup(name string) string {
	if i := strings.IndexAny(name, "-_"); i >= 0 {
		return name[:i]
	}
	return name
}

// Overlay holds the user-assigned display names and groupings layered over
// the defaults. All maps are sparse: absence means "use default".
type Overlay struct {
	Containers      map[string]string `json:"containers"`
	Groups          map[string]string `json:"groups"`
	ContainerGroups map[string]string `json:"container_groups"`
}

// NewOverlay returns an Overlay with all maps initialized.
func NewOverlay() Overlay {
	return Overlay{
		Containers:      map[string]string{},
		Groups:          map[string]string{},
		ContainerGroups: map[string]string{},
	}
}

// Clone returns a deep copy. The zero value is safe to clone.
func (o Overlay) Clone() Overlay {
	c := NewOverlay()
	for k, v := range o.Containers {
		c.Containers[k] = v
	}
	for k, v := range o.Groups {
		c.Groups[k] = v
	}
	for k, v := range o.ContainerGroups {
		c.ContainerGroups[k] = v
	}
	return c
}

// DisplayName resolves the name shown for an entity: the overlay value when
// present, else the entity's default name.
func (o Overlay) DisplayName(e Entity) string {
	if name, ok := o.Containers[e.Id]; ok {
		return name
	}
	return e.Name
}

// DisplayGroupName resolves the name shown for a group id.
func (o Overlay) DisplayGroupName(groupId string) string {
	if name, ok := o.Groups[groupId]; ok {
		return name
	}
	return groupId
}

// ResolveGroup returns the group an entity belongs to: the overlay
// assignment when present, else the group derived from the default name.
func (o Overlay) ResolveGroup(e Entity) string {
	if group, ok := o.ContainerGroups[e.Id]; ok {
		return group
	}
	return DefaultGroup(e.Name)
}
