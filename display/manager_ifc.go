package display

import (
	"bytes"
	"fmt"

	dbus "github.com/godbus/dbus/v5"
	"github.com/linuxdeepin/go-lib/dbusutil"
	"github.com/quartzic/remdisp/geometry"
)

func (m *Manager) GetInterfaceName() string {
	return dbusInterface
}

// PrimaryOutput returns the output bound to the primary head, or nil if
// there is no primary head or it awaits placement.
func (m *Manager) PrimaryOutput() (out Output) {
	m.run(func() {
		if h := m.primaryHead(); h != nil {
			out = h.output
		}
	})
	return
}

// PrimarySize returns the primary monitor's client resolution.
func (m *Manager) PrimarySize() (width, height uint32, ok bool) {
	m.run(func() {
		if h := m.primaryHead(); h != nil {
			width = h.monitor.Record.Width
			height = h.monitor.Record.Height
			ok = true
		}
	})
	return
}

// ClientExtents returns the bounding box of the active head set in
// client space.
func (m *Manager) ClientExtents() (extents geometry.Box) {
	m.run(func() {
		extents = m.regionClient.Extents()
	})
	return
}

// LocalExtents returns the bounding box of the active head set in local
// space.
func (m *Manager) LocalExtents() (extents geometry.Box) {
	m.run(func() {
		extents = m.regionLocal.Extents()
	})
	return
}

// ScalingDegraded reports whether the last applied update had scaling
// forced off because of complex monitor placement.
func (m *Manager) ScalingDegraded() (degraded bool) {
	m.run(func() {
		degraded = m.scalingDegraded
	})
	return
}

// GetPrimarySize is the D-Bus form of PrimarySize.
func (m *Manager) GetPrimarySize() (width, height uint32, busErr *dbus.Error) {
	width, height, ok := m.PrimarySize()
	if !ok {
		return 0, 0, dbusutil.ToError(fmt.Errorf("no primary head"))
	}
	return width, height, nil
}

// GetClientExtents is the D-Bus form of ClientExtents.
func (m *Manager) GetClientExtents() (x1, y1, x2, y2 int32, busErr *dbus.Error) {
	e := m.ClientExtents()
	return e.X1, e.Y1, e.X2, e.Y2, nil
}

// MapToLocal maps a client-space point to local space over D-Bus,
// returning the containing output's name.
func (m *Manager) MapToLocal(x, y int32) (output string, lx, ly int32, busErr *dbus.Error) {
	out, lx, ly, ok := m.ToLocal(x, y)
	if !ok {
		return "", 0, 0, dbusutil.ToError(fmt.Errorf("point (%d,%d) is outside of any monitor", x, y))
	}
	if out != nil {
		output = out.Name()
	}
	return output, lx, ly, nil
}

// DumpMonitors returns a diagnostic dump of the live head set.
func (m *Manager) DumpMonitors() (dump string, busErr *dbus.Error) {
	m.run(func() {
		var buf bytes.Buffer
		for _, h := range m.heads {
			h.dumpInfoForDebug()
			fmt.Fprintf(&buf, "head: %v: state:%v, is_primary:%v\n",
				h.name, h.state, h.monitor.Record.IsPrimary)
			fmt.Fprintf(&buf, "    client x:%d, y:%d, width:%d, height:%d\n",
				h.monitor.Record.X, h.monitor.Record.Y,
				h.monitor.Record.Width, h.monitor.Record.Height)
			fmt.Fprintf(&buf, "    local x:%d, y:%d, width:%d, height:%d\n",
				h.monitor.LocalRect.X, h.monitor.LocalRect.Y,
				h.monitor.LocalRect.Width, h.monitor.LocalRect.Height)
			fmt.Fprintf(&buf, "    physicalWidth:%dmm, physicalHeight:%dmm, orientation:%d\n",
				h.monitor.Record.PhysicalWidthMm, h.monitor.Record.PhysicalHeightMm,
				h.monitor.Record.Orientation)
			fmt.Fprintf(&buf, "    scale:%d, clientScale:%.2f\n",
				h.monitor.OutputScale, h.monitor.ClientScale)
			if h.output != nil {
				ox, oy := h.output.Position()
				ow, oh := h.output.Size()
				fmt.Fprintf(&buf, "    assigned output: %v x:%d, y:%d, width:%d, height:%d, scale:%d\n",
					h.output.Name(), ox, oy, ow, oh, h.output.Scale())
			} else {
				fmt.Fprintf(&buf, "    assigned output: (no output)\n")
			}
		}
		ce := m.regionClient.Extents()
		le := m.regionLocal.Extents()
		fmt.Fprintf(&buf, "client virtual desktop: (%d,%d) - (%d,%d)\n", ce.X1, ce.Y1, ce.X2, ce.Y2)
		fmt.Fprintf(&buf, "local virtual desktop: (%d,%d) - (%d,%d)\n", le.X1, le.Y1, le.X2, le.Y2)
		fmt.Fprintf(&buf, "scaling degraded: %v\n", m.scalingDegraded)
		dump = buf.String()
	})
	return dump, nil
}
