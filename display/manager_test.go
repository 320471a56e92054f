package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/xerrors"

	"github.com/quartzic/remdisp/geometry"
)

type fakeOutput struct {
	name    string
	x, y    int32
	width   uint32
	height  uint32
	scale   int
	enabled bool

	disableCalls int
	enableCalls  int
	moveCalls    int
	modeCalls    int
	scaleHistory []int
}

func (o *fakeOutput) Name() string                { return o.name }
func (o *fakeOutput) Position() (int32, int32)    { return o.x, o.y }
func (o *fakeOutput) Size() (uint32, uint32)      { return o.width, o.height }
func (o *fakeOutput) Scale() int                  { return o.scale }
func (o *fakeOutput) Disable()                    { o.enabled = false; o.disableCalls++ }
func (o *fakeOutput) SetTransformIdentity()       {}
func (o *fakeOutput) SetPhysicalSize(w, h uint32) {}

func (o *fakeOutput) Enable() error {
	o.enabled = true
	o.enableCalls++
	return nil
}

func (o *fakeOutput) SetScale(scale int) {
	o.scale = scale
	o.scaleHistory = append(o.scaleHistory, scale)
}

func (o *fakeOutput) SetNativeMode(width, height uint32, scale int) error {
	o.modeCalls++
	o.width = width / uint32(scale)
	o.height = height / uint32(scale)
	return nil
}

func (o *fakeOutput) Move(x, y int32) error {
	o.moveCalls++
	o.x = x
	o.y = y
	return nil
}

type fakeOutputManager struct {
	created   []*Head
	destroyed []*Head
	createErr error
	failAfter int // fail CreateHead once this many creates have happened, 0 = never
}

func (om *fakeOutputManager) CreateHead(h *Head) error {
	if om.failAfter > 0 && len(om.created) >= om.failAfter {
		return om.createErr
	}
	om.created = append(om.created, h)
	return nil
}

func (om *fakeOutputManager) DestroyHead(h *Head) {
	om.destroyed = append(om.destroyed, h)
}

func newTestManager(cfg *Config) (*Manager, *fakeOutputManager) {
	if cfg == nil {
		cfg = defaultConfig()
	}
	om := &fakeOutputManager{}
	m := newManager(nil, cfg, om)
	return m, om
}

func bindOutput(h *Head, scale int) *fakeOutput {
	out := &fakeOutput{
		name:    "output-" + h.name,
		x:       h.monitor.LocalRect.X,
		y:       h.monitor.LocalRect.Y,
		width:   h.monitor.LocalRect.Width,
		height:  h.monitor.LocalRect.Height,
		scale:   scale,
		enabled: true,
	}
	h.output = out
	return out
}

func singleMonitor() []MonitorRecord {
	return []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true, DesktopScaleFactor: 100},
	}
}

func dualMonitors() []MonitorRecord {
	return []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true, DesktopScaleFactor: 100},
		{X: 1920, Y: 0, Width: 1920, Height: 1080, DesktopScaleFactor: 100},
	}
}

func Test_ApplySingleMonitor(t *testing.T) {
	m, om := newTestManager(nil)

	err := m.applyMonitorLayout(singleMonitor())
	require.NoError(t, err)

	require.Len(t, m.heads, 1)
	h := m.heads[0]
	assert.Equal(t, headActive, h.state)
	assert.True(t, h.monitor.Record.IsPrimary)
	assert.Equal(t, geometry.Rect{X: 0, Y: 0, Width: 1920, Height: 1080}, h.monitor.LocalRect)
	assert.Len(t, om.created, 1)
	assert.Empty(t, om.destroyed)
	assert.True(t, m.hasDefaultHead)
	assert.Equal(t, h.id, m.defaultHeadID)

	assert.Equal(t, geometry.Box{X1: 0, Y1: 0, X2: 1920, Y2: 1080}, m.regionClient.Extents())
	assert.Equal(t, geometry.Box{X1: 0, Y1: 0, X2: 1920, Y2: 1080}, m.regionLocal.Extents())
}

// Count conservation: active heads equal validated descriptors.
func Test_CountConservation(t *testing.T) {
	m, _ := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(singleMonitor()))
	assert.Len(t, m.heads, 1)

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	assert.Len(t, m.heads, 2)

	require.NoError(t, m.applyMonitorLayout(singleMonitor()))
	assert.Len(t, m.heads, 1)
}

// Identity preservation: a byte-identical descriptor keeps its head.
func Test_IdentityPreservedOnExactMatch(t *testing.T) {
	m, om := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	require.Len(t, m.heads, 2)
	id0, id1 := m.heads[0].id, m.heads[1].id

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	require.Len(t, m.heads, 2)
	assert.Equal(t, id0, m.heads[0].id)
	assert.Equal(t, id1, m.heads[1].id)
	assert.Len(t, om.created, 2)
	assert.Empty(t, om.destroyed)
}

// A rejected update leaves the previous layout authoritative.
func Test_InvalidUpdateKeepsPreviousLayout(t *testing.T) {
	m, om := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	require.Len(t, m.heads, 2)

	twoPrimaries := []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true},
		{X: 1920, Y: 0, Width: 1920, Height: 1080, IsPrimary: true},
	}
	err := m.applyMonitorLayout(twoPrimaries)
	assert.True(t, xerrors.Is(err, ErrInvalidTopology))

	assert.Len(t, m.heads, 2)
	for _, h := range m.heads {
		assert.Equal(t, headActive, h.state)
	}
	assert.NotNil(t, m.primaryHead())
	assert.Empty(t, om.destroyed)
	assert.Equal(t, geometry.Box{X1: 0, Y1: 0, X2: 3840, Y2: 1080}, m.regionClient.Extents())
}

// Shrinking from two monitors to one reuses the primary head and
// destroys the stale one with exactly one destroy call.
func Test_ShrinkDestroysStaleHead(t *testing.T) {
	m, om := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	require.Len(t, m.heads, 2)
	primaryID := m.primaryHead().id
	var secondaryID HeadID
	for _, h := range m.heads {
		if !h.monitor.Record.IsPrimary {
			secondaryID = h.id
		}
	}

	require.NoError(t, m.applyMonitorLayout(singleMonitor()))
	require.Len(t, m.heads, 1)
	assert.Equal(t, primaryID, m.heads[0].id)
	require.Len(t, om.destroyed, 1)
	assert.Equal(t, secondaryID, om.destroyed[0].id)
}

// The default head is pinned to the primary monitor across updates even
// when its geometry matches nothing.
func Test_PrimaryPinnedToDefaultHead(t *testing.T) {
	m, _ := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(singleMonitor()))
	defaultID := m.defaultHeadID

	resized := []MonitorRecord{
		{X: 0, Y: 0, Width: 2560, Height: 1440, IsPrimary: true},
	}
	require.NoError(t, m.applyMonitorLayout(resized))
	require.Len(t, m.heads, 1)
	assert.Equal(t, defaultID, m.heads[0].id)
	assert.Equal(t, uint32(2560), m.heads[0].monitor.Record.Width)
}

func Test_ReuseMatchingPrecedence(t *testing.T) {
	m, _ := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	var secondary *Head
	for _, h := range m.heads {
		if !h.monitor.Record.IsPrimary {
			secondary = h
		}
	}
	require.NotNil(t, secondary)

	// same width/height/scale at a new client position: size-mode reuse,
	// no mode change needed on the output
	out := bindOutput(secondary, 1)
	moved := []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true, DesktopScaleFactor: 100},
		{X: 1920, Y: 100, Width: 1920, Height: 1080, DesktopScaleFactor: 100},
	}
	require.NoError(t, m.applyMonitorLayout(moved))
	assert.Equal(t, secondary.id, m.headByOutput(out).id)
	assert.Zero(t, out.modeCalls)

	// same client position with a new size: slot reuse with mode change
	resized := []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true, DesktopScaleFactor: 100},
		{X: 1920, Y: 100, Width: 2560, Height: 1440, DesktopScaleFactor: 100},
	}
	require.NoError(t, m.applyMonitorLayout(resized))
	assert.Equal(t, secondary.id, m.headByOutput(out).id)
	assert.Equal(t, 1, out.modeCalls)
	assert.Equal(t, uint32(2560), out.width)
	assert.Equal(t, uint32(1440), out.height)
}

// A scale change must disable the output, reset the scale through the
// unset sentinel, re-enable, and end with the output sized to the local
// rectangle.
func Test_ModeChangeWithScaleChange(t *testing.T) {
	cfg := &Config{ScalePolicy: ScalePolicyTruncate}
	m, _ := newTestManager(cfg)

	require.NoError(t, m.applyMonitorLayout(singleMonitor()))
	h := m.heads[0]
	out := bindOutput(h, 1)

	scaled := []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true, DesktopScaleFactor: 200},
	}
	require.NoError(t, m.applyMonitorLayout(scaled))

	assert.Equal(t, 1, out.disableCalls)
	assert.Equal(t, 1, out.enableCalls)
	assert.Equal(t, []int{0, 2}, out.scaleHistory)
	assert.Equal(t, 1, out.modeCalls)
	assert.True(t, out.enabled)
	// postcondition: output size equals the computed local rect
	assert.Equal(t, h.monitor.LocalRect.Width, out.width)
	assert.Equal(t, h.monitor.LocalRect.Height, out.height)
}

// Finalization repositions bound outputs whose local origin changed.
func Test_OutputMovedOnReposition(t *testing.T) {
	m, _ := newTestManager(nil)

	require.NoError(t, m.applyMonitorLayout(dualMonitors()))
	var secondary *Head
	for _, h := range m.heads {
		if !h.monitor.Record.IsPrimary {
			secondary = h
		}
	}
	out := bindOutput(secondary, 1)

	// a wider primary pushes the secondary's local rect to the right
	wider := []MonitorRecord{
		{X: 0, Y: 0, Width: 2560, Height: 1080, IsPrimary: true, DesktopScaleFactor: 100},
		{X: 2560, Y: 0, Width: 1920, Height: 1080, DesktopScaleFactor: 100},
	}
	require.NoError(t, m.applyMonitorLayout(wider))

	assert.Equal(t, 1, out.moveCalls)
	assert.Equal(t, int32(2560), out.x)
	assert.Equal(t, int32(0), out.y)
}

// Disjointness: client and local regions of active heads never overlap.
func Test_RegionDisjointness(t *testing.T) {
	cfg := &Config{ScalePolicy: ScalePolicyTruncate}
	m, _ := newTestManager(cfg)

	records := []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true, DesktopScaleFactor: 200},
		{X: 1920, Y: -200, Width: 1920, Height: 1080, DesktopScaleFactor: 100},
		{X: 3840, Y: 0, Width: 1280, Height: 720, DesktopScaleFactor: 100},
	}
	require.NoError(t, m.applyMonitorLayout(records))
	require.Len(t, m.heads, 3)

	for i := 0; i < len(m.heads); i++ {
		for j := i + 1; j < len(m.heads); j++ {
			assert.False(t, m.heads[i].regionClient.Intersects(&m.heads[j].regionClient),
				"client regions of %v and %v overlap", m.heads[i], m.heads[j])
			assert.False(t, m.heads[i].regionLocal.Intersects(&m.heads[j].regionLocal),
				"local regions of %v and %v overlap", m.heads[i], m.heads[j])
		}
	}
}

// A head-creation failure aborts the rest of the pass; earlier heads
// stay as applied, there is no rollback.
func Test_CreateFailurePartialApplication(t *testing.T) {
	m, om := newTestManager(nil)
	om.createErr = xerrors.New("out of head resources")
	om.failAfter = 1

	err := m.applyMonitorLayout(dualMonitors())
	require.Error(t, err)

	require.Len(t, m.heads, 1)
	assert.Equal(t, headActive, m.heads[0].state)
	assert.True(t, m.heads[0].monitor.Record.IsPrimary)
}

// Updates posted from the transport goroutine apply in arrival order.
func Test_QueueAppliesInOrder(t *testing.T) {
	m, _ := newTestManager(nil)
	m.start()
	defer m.stop()

	m.AdjustMonitorLayout(dualMonitors())
	m.AdjustMonitorLayout(singleMonitor())
	resized := []MonitorRecord{
		{X: 0, Y: 0, Width: 2560, Height: 1440, IsPrimary: true},
	}
	m.AdjustMonitorLayout(resized)

	var count int
	var width uint32
	m.run(func() {
		count = len(m.heads)
		width = m.heads[0].monitor.Record.Width
	})
	assert.Equal(t, 1, count)
	assert.Equal(t, uint32(2560), width)

	w, h, ok := m.PrimarySize()
	assert.True(t, ok)
	assert.Equal(t, uint32(2560), w)
	assert.Equal(t, uint32(1440), h)
}

func Test_HeadQueries(t *testing.T) {
	m, _ := newTestManager(nil)
	m.start()
	defer m.stop()

	records := []MonitorRecord{
		{X: 0, Y: 0, Width: 1920, Height: 1080, IsPrimary: true,
			PhysicalWidthMm: 520, PhysicalHeightMm: 290},
	}
	m.AdjustMonitorLayout(records)

	var id HeadID
	m.run(func() { id = m.heads[0].id })

	w, h, scale, ok := m.OutputConfig(id)
	assert.True(t, ok)
	assert.Equal(t, uint32(1920), w)
	assert.Equal(t, uint32(1080), h)
	assert.Equal(t, 1, scale)

	wmm, hmm, ok := m.HeadPhysicalSize(id)
	assert.True(t, ok)
	assert.Equal(t, uint32(520), wmm)
	assert.Equal(t, uint32(290), hmm)

	_, _, _, ok = m.OutputConfig(id + 100)
	assert.False(t, ok)

	ext := m.ClientExtents()
	assert.Equal(t, geometry.Box{X1: 0, Y1: 0, X2: 1920, Y2: 1080}, ext)
}
