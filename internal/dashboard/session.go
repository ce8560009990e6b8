package dashboard

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"deckhand/internal/entities/container"
	"deckhand/internal/fifo"
	"deckhand/internal/gateway"
)

const (
	defaultPullInterval = 10 * time.Second
	// seriesLen is how many push cycles of aggregate network totals the
	// throughput chart keeps.
	seriesLen = 10
)

// Gateway is the backend surface the session consumes. Satisfied by
// gateway.Client; tests substitute a fake.
type Gateway interface {
	PullEntities(ctx context.Context) ([]container.Entity, bool)
	PullOverlay(ctx context.Context) (container.Overlay, bool)
	Mutate(ctx context.Context, m gateway.Mutation) bool
	RequestRefresh()
	Events() <-chan gateway.Event
}

// Options configures a Session.
type Options struct {
	Gateway      Gateway
	Logger       *slog.Logger
	PullInterval time.Duration
	SortField    SortField
	SortDir      SortDir
	Mode         ViewMode
	// OnPrefsChange fires on the loop goroutine whenever a display
	// preference changes, so the caller can persist it.
	OnPrefsChange func(field SortField, dir SortDir, mode ViewMode)
}

// Session owns all dashboard state for one mounted view: the entity store,
// the naming overlay, interaction guards, in-flight mutation bookkeeping,
// and the derived view. All state is touched only on the Run goroutine;
// external callers are marshalled onto it through the calls channel. The
// derived view is the one exception: it is immutable once built and is
// published through an atomic pointer so readers never block the loop.
type Session struct {
	gw  Gateway
	log *slog.Logger

	store   *entityStore
	overlay container.Overlay
	guard   *interactionGuard
	sys     container.SystemInfo

	sortField SortField
	sortDir   SortDir
	mode      ViewMode
	onPrefs   func(SortField, SortDir, ViewMode)

	rx *fifo.Queue[uint64]
	tx *fifo.Queue[uint64]

	// per-field optimistic mutation bookkeeping
	mutSeq  map[fieldKey]uint64
	pending map[fieldKey]int
	edits   map[fieldKey]bool

	pullInterval time.Duration
	connectivity string
	offline      bool

	calls  chan func()
	done   chan struct{}
	runCtx context.Context

	view atomic.Pointer[View]
}

// NewSession builds a session and publishes an initial empty view. Run must
// be called before the view starts tracking the backend.
func NewSession(opts Options) *Session {
	s := &Session{
		gw:           opts.Gateway,
		log:          opts.Logger,
		store:        newEntityStore(),
		overlay:      container.NewOverlay(),
		guard:        newInteractionGuard(),
		sortField:    opts.SortField,
		sortDir:      opts.SortDir,
		mode:         opts.Mode,
		onPrefs:      opts.OnPrefsChange,
		rx:           fifo.NewQueue[uint64](seriesLen),
		tx:           fifo.NewQueue[uint64](seriesLen),
		mutSeq:       map[fieldKey]uint64{},
		pending:      map[fieldKey]int{},
		edits:        map[fieldKey]bool{},
		pullInterval: opts.PullInterval,
		connectivity: "connecting",
		offline:      true,
		calls:        make(chan func(), 64),
		done:         make(chan struct{}),
		runCtx:       context.Background(),
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.pullInterval <= 0 {
		s.pullInterval = defaultPullInterval
	}
	if s.sortField == "" {
		s.sortField = SortName
	}
	if s.sortDir == "" {
		s.sortDir = SortAsc
	}
	if s.mode == "" {
		s.mode = ModeList
	}
	s.publish()
	return s
}

// Run is the reconciliation loop. It blocks until ctx is cancelled; all
// session state is owned by this goroutine. Cancelling ctx tears the
// session down, and any in-flight mutation result arriving afterwards is
// silently dropped.
func (s *Session) Run(ctx context.Context) {
	defer close(s.done)
	s.runCtx = ctx

	ticker := time.NewTicker(s.pullInterval)
	defer ticker.Stop()

	s.pullCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-s.calls:
			fn()
		case <-ticker.C:
			s.pullCycle(ctx)
		case ev, ok := <-s.gw.Events():
			if !ok {
				return
			}
			s.handleEvent(ctx, ev)
		}
	}
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// View returns the latest published view. Safe from any goroutine.
func (s *Session) View() *View {
	return s.view.Load()
}

// enqueue marshals fn onto the loop goroutine. After shutdown it becomes a
// no-op so late mutation results cannot touch dead state.
func (s *Session) enqueue(fn func()) {
	select {
	case s.calls <- fn:
	case <-s.done:
	}
}

// pullCycle fetches the full entity list and overlay. Entities always merge
// (the guard covers naming only); the overlay merge defers to guards and
// pending mutations. A failed pull skips that half of the cycle.
func (s *Session) pullCycle(ctx context.Context) {
	if entities, ok := s.gw.PullEntities(ctx); ok {
		s.store.replaceAll(entities)
	}
	if overlay, ok := s.gw.PullOverlay(ctx); ok {
		s.mergeOverlay(overlay)
	}
	s.publish()
}

// applyPush merges one push snapshot: metrics unconditionally, overlay only
// when unguarded, then appends the fleet-wide network totals to the rolling
// series.
func (s *Session) applyPush(p *container.PushPayload) {
	s.store.applyMetrics(p.Containers)
	s.sys = p.SystemInfo
	s.mergeOverlay(p.CustomNames)

	var rx, tx uint64
	for _, e := range s.store.snapshot() {
		m := s.store.metricsFor(e.Id)
		rx += m.NetworkRx
		tx += m.NetworkTx
	}
	s.rx.Push(rx)
	s.tx.Push(tx)
	s.publish()
}

// mergeOverlay adopts a remote overlay unless an interaction guard is held.
// Fields with a pending mutation or an open edit keep their local value; the
// remote wins everywhere else.
func (s *Session) mergeOverlay(remote container.Overlay) {
	if s.guard.active() {
		return
	}
	next := remote.Clone()
	for key := range s.pending {
		value, ok := overlayGet(s.overlay, key)
		overlaySet(next, key, value, ok)
	}
	for key := range s.edits {
		value, ok := overlayGet(s.overlay, key)
		overlaySet(next, key, value, ok)
	}
	s.overlay = next
}

func (s *Session) handleEvent(ctx context.Context, ev gateway.Event) {
	switch ev.Kind {
	case gateway.EventSnapshot:
		s.applyPush(ev.Snapshot)
	case gateway.EventConnState:
		s.connectivity = ev.State.String()
		if ev.State == gateway.StateConnected {
			if s.offline {
				// Pushes may have been missed during the outage:
				// force one pull and ask for an immediate push.
				s.offline = false
				s.pullCycle(ctx)
				s.gw.RequestRefresh()
			}
		} else {
			s.offline = true
		}
		s.publish()
	}
}

// publish recomputes the derived view from current state and swaps it in.
func (s *Session) publish() {
	rows := buildRows(s.store.snapshot(), s.store.metricsFor, s.overlay)
	sortRows(rows, s.sortField, s.sortDir)
	v := &View{
		Rows:         rows,
		Totals:       sumTotals(rows),
		Network:      buildNetworkSeries(s.rx.Values(), s.tx.Values()),
		System:       s.sys,
		SortField:    s.sortField,
		SortDir:      s.sortDir,
		Mode:         s.mode,
		Connectivity: s.connectivity,
		UpdatedAt:    time.Now(),
	}
	if s.mode == ModeGrouped {
		v.Groups = groupRows(rows)
	}
	s.view.Store(v)
}

// BeginInteraction raises the guard for one reason category. While any
// guard is held, remote overlay changes are deferred; metrics keep flowing.
func (s *Session) BeginInteraction(r Reason) {
	s.enqueue(func() { s.guard.begin(r) })
}

// EndInteraction releases one guard hold.
func (s *Session) EndInteraction(r Reason) {
	s.enqueue(func() { s.guard.end(r) })
}

// EditContainerName marks a container's name field as under edit. The mark
// protects that field from remote merges until the edit ends or a mutation
// on the field settles it.
func (s *Session) EditContainerName(id string, editing bool) {
	s.setEdit(fieldKey{scopeContainerName, id}, editing)
}

// EditGroupName marks a group's display name field as under edit.
func (s *Session) EditGroupName(groupId string, editing bool) {
	s.setEdit(fieldKey{scopeGroupName, groupId}, editing)
}

// EditContainerGroup marks a container's group assignment as under edit.
func (s *Session) EditContainerGroup(id string, editing bool) {
	s.setEdit(fieldKey{scopeContainerGroup, id}, editing)
}

func (s *Session) setEdit(key fieldKey, editing bool) {
	s.enqueue(func() {
		if editing {
			if !s.edits[key] {
				s.edits[key] = true
				s.guard.begin(ReasonEdit)
			}
		} else {
			s.clearEdit(key)
		}
	})
}

// clearEdit drops an edit mark and the guard hold it carried. Also called
// when a mutation on the field starts, since submitting is what closes the
// edit form.
func (s *Session) clearEdit(key fieldKey) {
	if s.edits[key] {
		delete(s.edits, key)
		s.guard.end(ReasonEdit)
	}
}

// SetSortField changes the sort column and republishes.
func (s *Session) SetSortField(f SortField) {
	s.enqueue(func() {
		if _, ok := ParseSortField(string(f)); !ok {
			return
		}
		s.sortField = f
		s.publish()
		s.notifyPrefs()
	})
}

// SetSortDir changes the sort direction and republishes.
func (s *Session) SetSortDir(d SortDir) {
	s.enqueue(func() {
		if d != SortAsc && d != SortDesc {
			return
		}
		s.sortDir = d
		s.publish()
		s.notifyPrefs()
	})
}

// SetViewMode switches between the list and grouped layouts.
func (s *Session) SetViewMode(m ViewMode) {
	s.enqueue(func() {
		if m != ModeList && m != ModeGrouped {
			return
		}
		s.mode = m
		s.publish()
		s.notifyPrefs()
	})
}

func (s *Session) notifyPrefs() {
	if s.onPrefs != nil {
		s.onPrefs(s.sortField, s.sortDir, s.mode)
	}
}
