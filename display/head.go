package display

import (
	"fmt"

	"github.com/quartzic/remdisp/geometry"
)

// HeadID identifies a head for its whole lifetime. IDs are never reused
// within one engine instance.
type HeadID uint32

// headState is the per-head reconciliation tag. Outside a reconciliation
// pass every head is Active; the other states exist only between the
// begin and end phases of one pass.
type headState int

const (
	headActive headState = iota
	headPending
	headMovePending
)

func (s headState) String() string {
	switch s {
	case headActive:
		return "active"
	case headPending:
		return "pending"
	case headMovePending:
		return "move-pending"
	default:
		return fmt.Sprintf("unknown state %d", int(s))
	}
}

// Head is a persistent internal display resource. Its identity is stable
// across topology updates whenever the reconciler can reuse it.
type Head struct {
	id    HeadID
	name  string
	state headState

	monitor MonitorDescriptor

	// regions are kept as single-rectangle regions for the union
	// bookkeeping done by the region tracker.
	regionClient geometry.Region
	regionLocal  geometry.Region

	// output is the bound renderable resource, nil until the output
	// layer enables one for this head.
	output Output
}

func (h *Head) ID() HeadID {
	return h.id
}

func (h *Head) Name() string {
	return h.name
}

// Monitor returns the head's current descriptor.
func (h *Head) Monitor() MonitorDescriptor {
	return h.monitor
}

// Output returns the bound output, or nil.
func (h *Head) Output() Output {
	return h.output
}

func (h *Head) String() string {
	return fmt.Sprintf("<Head id=%d name=%s>", h.id, h.name)
}

// setMonitor overwrites the stored descriptor and rebuilds both regions.
func (h *Head) setMonitor(monitor *MonitorDescriptor) {
	h.monitor = *monitor
	h.regionClient.Clear()
	h.regionClient.UnionRect(monitor.Record.clientRect())
	h.regionLocal.Clear()
	h.regionLocal.UnionRect(monitor.LocalRect)
}

func (h *Head) releaseRegions() {
	h.regionClient.Clear()
	h.regionLocal.Clear()
}

func (h *Head) dumpInfoForDebug() {
	logger.Debugf("head %v, id: %v, state: %v, primary: %v, client: %v+%v,%vx%v, local: %v+%v,%vx%v, scale: %v, clientScale: %.2f, output: %v",
		h.name, h.id, h.state,
		h.monitor.Record.IsPrimary,
		h.monitor.Record.X, h.monitor.Record.Y,
		h.monitor.Record.Width, h.monitor.Record.Height,
		h.monitor.LocalRect.X, h.monitor.LocalRect.Y,
		h.monitor.LocalRect.Width, h.monitor.LocalRect.Height,
		h.monitor.OutputScale, h.monitor.ClientScale,
		h.output != nil)
}
