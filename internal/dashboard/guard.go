package dashboard

// Reason categorizes why remote naming/grouping updates are suppressed.
type Reason uint8

const (
	// ReasonEdit means an edit form is open.
	ReasonEdit Reason = iota
	// ReasonDrag means a drag operation is in progress.
	ReasonDrag
)

// ParseReason maps the wire strings used by the view API.
func ParseReason(s string) (Reason, bool) {
	switch s {
	case "edit":
		return ReasonEdit, true
	case "drag":
		return ReasonDrag, true
	default:
		return 0, false
	}
}

// interactionGuard reference-counts concurrent interactions per reason so
// that ending one interaction never clears a guard held by another. While
// active, remote overlay changes are held back; metrics keep flowing.
type interactionGuard struct {
	counts map[Reason]int
}

func newInteractionGuard() *interactionGuard {
	return &interactionGuard{counts: map[Reason]int{}}
}

func (g *interactionGuard) begin(r Reason) {
	g.counts[r]++
}

// end releases one hold. Unbalanced ends are clamped, not an error.
func (g *interactionGuard) end(r Reason) {
	if g.counts[r] > 0 {
		g.counts[r]--
	}
}

// active reports whether any interaction holds the guard.
func (g *interactionGuard) active() bool {
	for _, n := range g.counts {
		if n > 0 {
			return true
		}
	}
	return false
}
