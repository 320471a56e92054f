package display

import (
	"fmt"

	"github.com/quartzic/remdisp/geometry"
)

// Orientation values as reported by the remote client, in degrees.
const (
	OrientationLandscape        uint32 = 0
	OrientationPortrait         uint32 = 90
	OrientationLandscapeFlipped uint32 = 180
	OrientationPortraitFlipped  uint32 = 270
)

// maxMonitors bounds one topology report. Reports beyond this are not
// representable and rejected as invalid.
const maxMonitors = 16

// MonitorRecord is one monitor as reported by the remote client, in
// client pixel coordinates. Scale factors are percent based (100 = 1x).
type MonitorRecord struct {
	X                  int32
	Y                  int32
	Width              uint32
	Height             uint32
	IsPrimary          bool
	PhysicalWidthMm    uint32
	PhysicalHeightMm   uint32
	Orientation        uint32
	DesktopScaleFactor uint32
	DeviceScaleFactor  uint32
}

func (r MonitorRecord) clientRect() geometry.Rect {
	return geometry.Rect{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// MonitorDescriptor is a validated monitor record plus the scale and
// local-space placement computed for it. Two descriptors are considered
// the same monitor configuration iff they are equal as values.
type MonitorDescriptor struct {
	Record MonitorRecord

	// OutputScale is the integer scale applied to the output, always >= 1.
	OutputScale int
	// ClientScale is the true client to local ratio.
	ClientScale float64
	// LocalRect is the monitor's rectangle in local compositing space.
	LocalRect geometry.Rect
}

func (d *MonitorDescriptor) String() string {
	return fmt.Sprintf("<monitor client=%d,%d %dx%d primary=%v scale=%d clientScale=%.2f local=%d,%d %dx%d>",
		d.Record.X, d.Record.Y, d.Record.Width, d.Record.Height,
		d.Record.IsPrimary, d.OutputScale, d.ClientScale,
		d.LocalRect.X, d.LocalRect.Y, d.LocalRect.Width, d.LocalRect.Height)
}

func (d *MonitorDescriptor) dumpInfoForDebug(i int) {
	logger.Debugf("monitor[%d]: x:%d, y:%d, width:%d, height:%d, is_primary:%v",
		i, d.Record.X, d.Record.Y, d.Record.Width, d.Record.Height, d.Record.IsPrimary)
	logger.Debugf("monitor[%d]: physicalWidth:%d, physicalHeight:%d, orientation:%d",
		i, d.Record.PhysicalWidthMm, d.Record.PhysicalHeightMm, d.Record.Orientation)
	logger.Debugf("monitor[%d]: desktopScaleFactor:%d, deviceScaleFactor:%d",
		i, d.Record.DesktopScaleFactor, d.Record.DeviceScaleFactor)
	logger.Debugf("monitor[%d]: scale:%d, clientScale:%.2f, local x:%d, y:%d, width:%d, height:%d",
		i, d.OutputScale, d.ClientScale,
		d.LocalRect.X, d.LocalRect.Y, d.LocalRect.Width, d.LocalRect.Height)
}
