package display

// Coordinate mapping between client pixel space and local compositing
// space. These are read-only scans over the active head set and must run
// on the engine loop (input-event translation lives there); the exported
// D-Bus variants in manager_ifc.go marshal onto it.

// toLocal maps a client-space point to local space. The first active
// head whose client region contains the point wins; client regions are
// disjoint, so at most one does. Returns the head's bound output (may be
// nil while awaiting placement) and false if no head contains the point.
func (m *Manager) toLocal(x, y int32) (Output, int32, int32, bool) {
	for _, h := range m.heads {
		if h.state != headActive || !h.regionClient.ContainsPoint(x, y) {
			continue
		}
		scale := 1.0 / h.monitor.ClientScale
		// translate to the offset from this head in client space
		sx := x - h.monitor.Record.X
		sy := y - h.monitor.Record.Y
		// scale into local units
		sx = scaleCoord(sx, scale)
		sy = scaleCoord(sy, scale)
		// translate to the head's position in local space
		sx += h.monitor.LocalRect.X
		sy += h.monitor.LocalRect.Y
		logger.Debugf("toLocal: (%d,%d) -> (%d,%d) at head %v", x, y, sx, sy, h.name)
		return h.output, sx, sy, true
	}
	// the point is outside of any monitor
	return nil, 0, 0, false
}

// toClient maps a local-space point back to client space through the
// single head bound to the given output.
func (m *Manager) toClient(out Output, x, y int32) (int32, int32, bool) {
	h := m.headByOutput(out)
	if h == nil {
		return 0, 0, false
	}
	scale := h.monitor.ClientScale
	sx := x - h.monitor.LocalRect.X
	sy := y - h.monitor.LocalRect.Y
	sx = scaleCoord(sx, scale)
	sy = scaleCoord(sy, scale)
	sx += h.monitor.Record.X
	sy += h.monitor.Record.Y
	logger.Debugf("toClient: (%d,%d) -> (%d,%d) at head %v", x, y, sx, sy, h.name)
	return sx, sy, true
}

// sizeToLocal scales a width/height pair from client to local units for
// the head containing the given client point. No translation component.
func (m *Manager) sizeToLocal(x, y int32, width, height uint32) (uint32, uint32, bool) {
	for _, h := range m.heads {
		if h.state != headActive || !h.regionClient.ContainsPoint(x, y) {
			continue
		}
		scale := 1.0 / h.monitor.ClientScale
		return scaleSize(width, scale), scaleSize(height, scale), true
	}
	return 0, 0, false
}

// sizeToClient scales a width/height pair from local to client units for
// the head bound to the given output.
func (m *Manager) sizeToClient(out Output, width, height uint32) (uint32, uint32, bool) {
	h := m.headByOutput(out)
	if h == nil {
		return 0, 0, false
	}
	scale := h.monitor.ClientScale
	return scaleSize(width, scale), scaleSize(height, scale), true
}

func scaleCoord(v int32, scale float64) int32 {
	return int32(float64(v) * scale)
}

func scaleSize(v uint32, scale float64) uint32 {
	return uint32(float64(v) * scale)
}

// ToLocal is the goroutine-safe form of toLocal for callers outside the
// engine loop.
func (m *Manager) ToLocal(x, y int32) (out Output, lx, ly int32, ok bool) {
	m.run(func() {
		out, lx, ly, ok = m.toLocal(x, y)
	})
	return
}

// ToClient is the goroutine-safe form of toClient.
func (m *Manager) ToClient(output Output, x, y int32) (cx, cy int32, ok bool) {
	m.run(func() {
		cx, cy, ok = m.toClient(output, x, y)
	})
	return
}
