package display

import (
	"errors"
	"sort"

	"golang.org/x/xerrors"

	"github.com/quartzic/remdisp/geometry"
)

// ErrInvalidTopology is returned when a reported topology has a malformed
// primary designation (zero or several primaries, or a primary away from
// the client-space origin) or an unrepresentable monitor count. It is the
// only hard validation failure; everything else degrades.
var ErrInvalidTopology = errors.New("invalid monitor topology")

type connectivity int

const (
	connectedHorizontally connectivity = iota
	connectedVertically
	connectedComplex
)

func (c connectivity) String() string {
	switch c {
	case connectedHorizontally:
		return "horizontal"
	case connectedVertically:
		return "vertical"
	default:
		return "complex"
	}
}

// layoutResult is the outcome of validating one topology report.
type layoutResult struct {
	monitors     []MonitorDescriptor
	connectivity connectivity
	// scalingDegraded is set when scaling was requested but the placement
	// is too complex to honor it; scale has been forced to 1 everywhere.
	scalingDegraded bool
}

// validateAndComputeLayout validates a topology report and assigns every
// monitor its local-space rectangle. The returned slice preserves the
// report order; sorting for connectivity and placement is internal.
func validateAndComputeLayout(cfg *Config, records []MonitorRecord) (*layoutResult, error) {
	if len(records) == 0 || len(records) > maxMonitors {
		return nil, xerrors.Errorf("monitor count %d: %w", len(records), ErrInvalidTopology)
	}

	monitors := make([]MonitorDescriptor, len(records))
	for i := range records {
		monitors[i] = MonitorDescriptor{
			Record:      records[i],
			OutputScale: cfg.outputScaleFor(&records[i]),
			ClientScale: cfg.clientScaleFor(&records[i]),
		}
		monitors[i].dumpInfoForDebug(i)
	}

	scalingUsed := false
	primaryCount := 0
	var upperLeftX, upperLeftY int32
	for i := range monitors {
		rec := &monitors[i].Record
		if rec.IsPrimary {
			primaryCount++
			if primaryCount > 1 {
				return nil, xerrors.Errorf("client reported %d primary monitors: %w",
					primaryCount, ErrInvalidTopology)
			}
			if rec.X != 0 || rec.Y != 0 {
				return nil, xerrors.Errorf("primary monitor is at (%d,%d), not the origin: %w",
					rec.X, rec.Y, ErrInvalidTopology)
			}
		}
		if monitors[i].ClientScale != 1.0 {
			scalingUsed = true
		}
		if rec.X < upperLeftX {
			upperLeftX = rec.X
		}
		if rec.Y < upperLeftY {
			upperLeftY = rec.Y
		}
	}
	if primaryCount == 0 {
		return nil, xerrors.Errorf("client reported no primary monitor: %w", ErrInvalidTopology)
	}
	logger.Debugf("client desktop upper left coordinate (%d,%d)", upperLeftX, upperLeftY)

	conn, order := classifyConnectivity(monitors)

	result := &layoutResult{monitors: monitors, connectivity: conn}

	scalingSupported := true
	if scalingUsed && conn == connectedComplex {
		// scaling can't be honored in complex monitor placement
		logger.Warning("scaling is used, but can't be supported in complex monitor placement")
		scalingSupported = false
		result.scalingDegraded = true
	}

	if scalingUsed && scalingSupported {
		var offsetFromOrigin int32
		for _, i := range order {
			mon := &monitors[i]
			scale := int32(mon.OutputScale)
			mon.LocalRect.Width = mon.Record.Width / uint32(mon.OutputScale)
			mon.LocalRect.Height = mon.Record.Height / uint32(mon.OutputScale)
			if conn == connectedHorizontally {
				mon.LocalRect.X = offsetFromOrigin
				mon.LocalRect.Y = abs32((upperLeftY - mon.Record.Y) / scale)
				offsetFromOrigin += int32(mon.LocalRect.Width)
			} else {
				mon.LocalRect.X = abs32((upperLeftX - mon.Record.X) / scale)
				mon.LocalRect.Y = offsetFromOrigin
				offsetFromOrigin += int32(mon.LocalRect.Height)
			}
		}
	} else {
		// no scaling, or placement too complex to scale: local space is
		// client space translated so the upper-left corner lands on (0,0)
		for i := range monitors {
			mon := &monitors[i]
			mon.LocalRect = geometry.Rect{
				X:      mon.Record.X + abs32(upperLeftX),
				Y:      mon.Record.Y + abs32(upperLeftY),
				Width:  mon.Record.Width,
				Height: mon.Record.Height,
			}
			mon.OutputScale = 1
			mon.ClientScale = 1.0
		}
	}

	for i := range monitors {
		if monitors[i].LocalRect.X < 0 || monitors[i].LocalRect.Y < 0 {
			logger.Errorf("computed local rect with negative origin: %v", &monitors[i])
		}
		monitors[i].dumpInfoForDebug(i)
	}

	return result, nil
}

// classifyConnectivity decides whether the monitors form a contiguous 1-D
// chain along one axis. It returns the classification and the traversal
// order along the connected axis (report order for complex placements).
func classifyConnectivity(monitors []MonitorDescriptor) (connectivity, []int) {
	order := make([]int, len(monitors))
	for i := range order {
		order[i] = i
	}
	if len(monitors) == 1 {
		return connectedHorizontally, order
	}

	// first, try monitors sorted horizontally
	sort.SliceStable(order, func(a, b int) bool {
		return monitors[order[a]].Record.X < monitors[order[b]].Record.X
	})
	if chainConnected(monitors, order, true) {
		logger.Debug("all monitors are horizontally placed")
		return connectedHorizontally, order
	}

	// next, try monitors sorted vertically
	sort.SliceStable(order, func(a, b int) bool {
		return monitors[order[a]].Record.Y < monitors[order[b]].Record.Y
	})
	if chainConnected(monitors, order, false) {
		logger.Debug("all monitors are vertically placed")
		return connectedVertically, order
	}

	return connectedComplex, order
}

// chainConnected checks that each monitor's trailing edge exactly abuts
// the next monitor's leading edge along the main axis, and that their
// cross-axis intervals share at least one row/column.
func chainConnected(monitors []MonitorDescriptor, order []int, horizontal bool) bool {
	first := &monitors[order[0]].Record
	var offset int32
	if horizontal {
		offset = first.X + int32(first.Width)
	} else {
		offset = first.Y + int32(first.Height)
	}
	for n := 1; n < len(order); n++ {
		prev := &monitors[order[n-1]].Record
		cur := &monitors[order[n]].Record
		if horizontal {
			if offset != cur.X {
				logger.Debugf("monitors not horizontally connected at %d (x check)", n)
				return false
			}
			offset += int32(cur.Width)
			if !geometry.LinesIntersect(prev.Y, prev.Y+int32(prev.Height),
				cur.Y, cur.Y+int32(cur.Height)) {
				logger.Debugf("monitors not horizontally connected at %d (y check)", n)
				return false
			}
		} else {
			if offset != cur.Y {
				logger.Debugf("monitors not vertically connected at %d (y check)", n)
				return false
			}
			offset += int32(cur.Height)
			if !geometry.LinesIntersect(prev.X, prev.X+int32(prev.Width),
				cur.X, cur.X+int32(cur.Width)) {
				logger.Debugf("monitors not vertically connected at %d (x check)", n)
				return false
			}
		}
	}
	return true
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}
