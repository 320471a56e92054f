package display

import (
	"fmt"
	"sync"

	"golang.org/x/xerrors"

	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/quartzic/remdisp/geometry"
)

// Manager owns the live head set and reconciles every incoming monitor
// topology against it. All head and output mutation happens on the
// engine loop goroutine; the remote-display transport hands topology
// updates over through the task queue and never waits for them.
type Manager struct {
	service   *dbusutil.Service
	config    *Config
	outputMgr OutputManager

	tasksMu sync.Mutex
	tasks   []func()
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}

	heads     []*Head
	headIndex uint32

	// defaultHeadID pins the head reused for the primary monitor across
	// updates, independent of geometry matching. Downstream consumers
	// depend on a stable default output.
	defaultHeadID  HeadID
	hasDefaultHead bool

	// accumulated bounding regions of the active head set, authoritative
	// only between reconciliation passes.
	regionClient geometry.Region
	regionLocal  geometry.Region

	// scalingDegraded records whether the last applied update had its
	// scaling forced off due to complex placement.
	scalingDegraded bool
}

func newManager(service *dbusutil.Service, cfg *Config, outputMgr OutputManager) *Manager {
	return &Manager{
		service:   service,
		config:    cfg,
		outputMgr: outputMgr,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (m *Manager) start() {
	go m.loop()
}

func (m *Manager) stop() {
	close(m.quit)
	<-m.done
}

// post enqueues fn on the engine loop and returns immediately. Tasks run
// in strict FIFO order, one at a time.
func (m *Manager) post(fn func()) {
	m.tasksMu.Lock()
	m.tasks = append(m.tasks, fn)
	m.tasksMu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// run enqueues fn and waits for it to complete. Used by the query
// surface so reads never interleave with a reconciliation pass.
func (m *Manager) run(fn func()) {
	ch := make(chan struct{})
	m.post(func() {
		fn()
		close(ch)
	})
	<-ch
}

func (m *Manager) loop() {
	defer close(m.done)
	for {
		select {
		case <-m.wake:
			m.drainTasks()
		case <-m.quit:
			m.drainTasks()
			return
		}
	}
}

func (m *Manager) drainTasks() {
	for {
		m.tasksMu.Lock()
		tasks := m.tasks
		m.tasks = nil
		m.tasksMu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// AdjustMonitorLayout hands a topology report from the transport to the
// engine. It is safe to call from any goroutine and never blocks on the
// reconciliation; updates apply in arrival order with no coalescing.
func (m *Manager) AdjustMonitorLayout(records []MonitorRecord) {
	recs := make([]MonitorRecord, len(records))
	copy(recs, records)
	m.post(func() {
		err := m.applyMonitorLayout(recs)
		if err != nil {
			logger.Warning("monitor layout update not applied:", err)
		}
	})
}

// applyMonitorLayout is the reconciliation entry point. It runs on the
// engine loop only.
func (m *Manager) applyMonitorLayout(records []MonitorRecord) error {
	result, err := validateAndComputeLayout(m.config, records)
	if err != nil {
		// previous layout remains authoritative
		return err
	}
	m.scalingDegraded = result.scalingDegraded

	claimed := m.beginLayoutChange(result.monitors)
	var applyErr error
	for i := range result.monitors {
		if claimed&(1<<uint(i)) != 0 {
			continue
		}
		err = m.applyMonitorChange(&result.monitors[i])
		if err != nil {
			// abort the remaining monitors; heads already matched stay
			// as applied, there is no rollback
			applyErr = xerrors.Errorf("apply monitor %d: %w", i, err)
			break
		}
	}
	m.endLayoutChange()
	return applyErr
}

// beginLayoutChange moves every active head to pending, clears the
// accumulated regions and claims heads whose stored descriptor is
// identical to an incoming one. Claimed descriptor indices are returned
// as a bitmask.
func (m *Manager) beginLayoutChange(monitors []MonitorDescriptor) uint32 {
	m.regionClient.Clear()
	m.regionLocal.Clear()
	for _, h := range m.heads {
		h.state = headPending
	}

	var claimed uint32
	for i := range monitors {
		for _, h := range m.heads {
			if h.state != headPending {
				continue
			}
			if h.monitor == monitors[i] {
				logger.Debugf("head mode exact match: %v, x:%d, y:%d, width:%d, height:%d, is_primary:%v",
					h.name, h.monitor.Record.X, h.monitor.Record.Y,
					h.monitor.Record.Width, h.monitor.Record.Height,
					h.monitor.Record.IsPrimary)
				h.state = headMovePending
				claimed |= 1 << uint(i)
				m.accumulateRegions(&monitors[i])
				break
			}
		}
	}
	return claimed
}

// applyMonitorChange reuses or creates a head for one unclaimed
// descriptor.
func (m *Manager) applyMonitorChange(mon *MonitorDescriptor) error {
	head, updateMode := m.findReuseCandidate(mon)

	if head != nil {
		logger.Debugf("head mode change: %v OLD width:%d, height:%d, scale:%d, clientScale:%.2f",
			head.name, head.monitor.Record.Width, head.monitor.Record.Height,
			head.monitor.OutputScale, head.monitor.ClientScale)
		head.setMonitor(mon)
		head.state = headMovePending
		if updateMode {
			m.applyModeChange(head, mon)
		}
	} else {
		_, err := m.createHead(mon)
		if err != nil {
			return err
		}
	}

	m.accumulateRegions(mon)
	return nil
}

// findReuseCandidate searches the pending heads for one to reuse. The
// primary monitor always reuses the designated default head when it is
// available; otherwise candidates match on width+height+scale (no mode
// change), then on client position, then the first pending head with the
// same primary flag is taken. The returned flag reports whether the
// reuse requires a mode change on the bound output.
func (m *Manager) findReuseCandidate(mon *MonitorDescriptor) (*Head, bool) {
	if mon.Record.IsPrimary && m.hasDefaultHead {
		if h := m.headByID(m.defaultHeadID); h != nil && h.state == headPending {
			sameMode := h.monitor.Record.Width == mon.Record.Width &&
				h.monitor.Record.Height == mon.Record.Height &&
				h.monitor.OutputScale == mon.OutputScale
			return h, !sameMode
		}
	}

	var fallback *Head
	for _, h := range m.heads {
		if h.state != headPending {
			continue
		}
		if h.monitor.Record.IsPrimary != mon.Record.IsPrimary {
			continue
		}
		if h.monitor.Record.Width == mon.Record.Width &&
			h.monitor.Record.Height == mon.Record.Height &&
			h.monitor.OutputScale == mon.OutputScale {
			// size mode match (width/height/scale), reuse without a
			// mode change
			return h, false
		}
		if h.monitor.Record.X == mon.Record.X &&
			h.monitor.Record.Y == mon.Record.Y {
			// position match in client space
			return h, true
		}
		if fallback == nil {
			fallback = h
		}
	}
	if fallback != nil {
		return fallback, true
	}
	return nil, false
}

// applyModeChange pushes the new mode to the head's bound output.
// Failures are logged and the pass continues; the output may stay
// inconsistent with the descriptor until the next successful update.
func (m *Manager) applyModeChange(head *Head, mon *MonitorDescriptor) {
	out := head.output
	if out == nil {
		// mode is set when the output layer enables an output for it
		logger.Debugf("output doesn't exist for head %v", head.name)
		return
	}

	logger.Debugf("head mode change: %v NEW width:%d, height:%d, scale:%d, clientScale:%.2f",
		head.name, mon.Record.Width, mon.Record.Height, mon.OutputScale, mon.ClientScale)
	if out.Scale() != mon.OutputScale {
		out.Disable()
		// reset scale first, outputs reject in-place scale mutation
		out.SetScale(0)
		out.SetScale(mon.OutputScale)
		err := out.Enable()
		if err != nil {
			logger.Warningf("failed to re-enable output %v: %v", out.Name(), err)
		}
	}
	err := out.SetNativeMode(mon.Record.Width, mon.Record.Height, mon.OutputScale)
	if err != nil {
		logger.Warningf("failed to set native mode on output %v: %v", out.Name(), err)
	}
	out.SetPhysicalSize(mon.Record.PhysicalWidthMm, mon.Record.PhysicalHeightMm)
	out.SetTransformIdentity()

	// output size must match the monitor's rect in local space
	w, h := out.Size()
	if w != mon.LocalRect.Width || h != mon.LocalRect.Height {
		logger.Errorf("output %v size %dx%d does not match local rect %dx%d",
			out.Name(), w, h, mon.LocalRect.Width, mon.LocalRect.Height)
	}
}

// endLayoutChange finalizes the pass: matched heads become active and
// bound outputs are repositioned, anything still pending is destroyed.
func (m *Manager) endLayoutChange() {
	for _, h := range m.heads {
		if h.state != headMovePending {
			continue
		}
		h.state = headActive
		if h.output == nil {
			// newly matched head without output; position is applied
			// when the output layer enables one
			continue
		}
		x, y := h.output.Position()
		if x != h.monitor.LocalRect.X || y != h.monitor.LocalRect.Y {
			logger.Debugf("move head/output %v (%d,%d) -> (%d,%d)",
				h.name, x, y, h.monitor.LocalRect.X, h.monitor.LocalRect.Y)
			// notify downstream consumers of the new output position
			err := h.output.Move(h.monitor.LocalRect.X, h.monitor.LocalRect.Y)
			if err != nil {
				logger.Warningf("failed to move output %v: %v", h.output.Name(), err)
			}
		}
	}

	kept := make([]*Head, 0, len(m.heads))
	for _, h := range m.heads {
		if h.state == headPending {
			m.destroyHead(h)
		} else {
			kept = append(kept, h)
		}
	}
	m.heads = kept

	m.checkLayoutInvariants()
}

func (m *Manager) checkLayoutInvariants() {
	primaryCount := 0
	for _, h := range m.heads {
		if h.state != headActive {
			logger.Errorf("head %v left in state %v after reconciliation", h.name, h.state)
		}
		if h.monitor.Record.IsPrimary {
			primaryCount++
			if h.monitor.Record.X != 0 || h.monitor.Record.Y != 0 {
				logger.Errorf("primary head %v is at (%d,%d), not the client origin",
					h.name, h.monitor.Record.X, h.monitor.Record.Y)
			}
			logger.Debugf("client origin (0,0) is (%d,%d) in local space",
				h.monitor.LocalRect.X, h.monitor.LocalRect.Y)
		}
	}
	if primaryCount != 1 {
		logger.Errorf("%d primary heads active after reconciliation", primaryCount)
	}
	ce := m.regionClient.Extents()
	le := m.regionLocal.Extents()
	logger.Debugf("client virtual desktop is (%d,%d) - (%d,%d)", ce.X1, ce.Y1, ce.X2, ce.Y2)
	logger.Debugf("local virtual desktop is (%d,%d) - (%d,%d)", le.X1, le.Y1, le.X2, le.Y2)
}

func (m *Manager) accumulateRegions(mon *MonitorDescriptor) {
	m.regionClient.UnionRect(mon.Record.clientRect())
	m.regionLocal.UnionRect(mon.LocalRect)
}

// createHead creates a new head in the awaiting-placement state: no
// output is bound yet, the output layer binds one when it next enables
// an output. A creation failure aborts the rest of the pass.
func (m *Manager) createHead(mon *MonitorDescriptor) (*Head, error) {
	h := &Head{
		id:    HeadID(m.headIndex),
		name:  fmt.Sprintf("remote-%x", m.headIndex),
		state: headActive,
	}
	m.headIndex++
	h.setMonitor(mon)
	m.heads = append(m.heads, h)

	if mon.Record.IsPrimary {
		if !m.hasDefaultHead {
			logger.Debug("default head is being added:", h.name)
			m.defaultHeadID = h.id
			m.hasDefaultHead = true
		}
	}

	if m.outputMgr != nil {
		err := m.outputMgr.CreateHead(h)
		if err != nil {
			m.heads = m.heads[:len(m.heads)-1]
			if m.hasDefaultHead && m.defaultHeadID == h.id {
				m.hasDefaultHead = false
			}
			return nil, xerrors.Errorf("create head %v: %w", h.name, err)
		}
	}
	return h, nil
}

func (m *Manager) destroyHead(h *Head) {
	logger.Debugf("destroy head %v", h.name)
	h.output = nil
	if m.outputMgr != nil {
		m.outputMgr.DestroyHead(h)
	}
	h.releaseRegions()
	if m.hasDefaultHead && m.defaultHeadID == h.id {
		m.hasDefaultHead = false
	}
}

func (m *Manager) headByID(id HeadID) *Head {
	for _, h := range m.heads {
		if h.id == id {
			return h
		}
	}
	return nil
}

func (m *Manager) headByOutput(out Output) *Head {
	for _, h := range m.heads {
		if h.output == out {
			return h
		}
	}
	return nil
}

func (m *Manager) primaryHead() *Head {
	for _, h := range m.heads {
		if h.state == headActive && h.monitor.Record.IsPrimary {
			return h
		}
	}
	return nil
}

// HandleOutputEnabled binds an output to its head and applies the
// head's placement to it. The output layer calls this after enabling an
// output for a head created during reconciliation.
func (m *Manager) HandleOutputEnabled(id HeadID, out Output) {
	m.run(func() {
		h := m.headByID(id)
		if h == nil {
			logger.Warningf("output %v enabled for unknown head %v", out.Name(), id)
			return
		}
		h.output = out
		x, y := out.Position()
		logger.Debugf("move head/output %v (%d,%d) -> (%d,%d)",
			h.name, x, y, h.monitor.LocalRect.X, h.monitor.LocalRect.Y)
		err := out.Move(h.monitor.LocalRect.X, h.monitor.LocalRect.Y)
		if err != nil {
			logger.Warningf("failed to move output %v: %v", out.Name(), err)
		}
	})
}

// OutputConfig reports the client resolution and scale an output for
// this head should be configured with.
func (m *Manager) OutputConfig(id HeadID) (width, height uint32, scale int, ok bool) {
	m.run(func() {
		h := m.headByID(id)
		if h == nil || h.monitor.Record.Width == 0 || h.monitor.Record.Height == 0 {
			return
		}
		width = h.monitor.Record.Width
		height = h.monitor.Record.Height
		scale = h.monitor.OutputScale
		ok = true
	})
	return
}

// HeadPhysicalSize reports the client-provided physical size of a head
// in millimeters.
func (m *Manager) HeadPhysicalSize(id HeadID) (widthMm, heightMm uint32, ok bool) {
	m.run(func() {
		h := m.headByID(id)
		if h == nil {
			return
		}
		widthMm = h.monitor.Record.PhysicalWidthMm
		heightMm = h.monitor.Record.PhysicalHeightMm
		ok = true
	})
	return
}
