package backend

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode is a scripted event node
type fakeNode struct {
	name  string
	id    evdev.InputID
	caps  map[evdev.EvType][]evdev.EvCode
	abs   map[evdev.EvCode]evdev.AbsInfo
	props []evdev.EvProp
	state map[evdev.EvType]evdev.StateMap

	events chan *evdev.InputEvent
	errs   chan error
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []evdev.InputEvent
	grabbed bool
}

func newFakeNode(name string, caps map[evdev.EvType][]evdev.EvCode, abs map[evdev.EvCode]evdev.AbsInfo, props ...evdev.EvProp) *fakeNode {
	if abs == nil {
		abs = make(map[evdev.EvCode]evdev.AbsInfo)
	}
	return &fakeNode{
		name:   name,
		id:     evdev.InputID{Vendor: 0x046d, Product: 0xc52b},
		caps:   caps,
		abs:    abs,
		props:  props,
		events: make(chan *evdev.InputEvent, 64),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (f *fakeNode) Name() (string, error)           { return f.name, nil }
func (f *fakeNode) InputID() (evdev.InputID, error) { return f.id, nil }
func (f *fakeNode) Properties() []evdev.EvProp      { return f.props }

func (f *fakeNode) CapableEvents(t evdev.EvType) []evdev.EvCode {
	return f.caps[t]
}

func (f *fakeNode) AbsInfos() (map[evdev.EvCode]evdev.AbsInfo, error) {
	return f.abs, nil
}

func (f *fakeNode) State(t evdev.EvType) (evdev.StateMap, error) {
	if st, ok := f.state[t]; ok {
		return st, nil
	}
	return evdev.StateMap{}, nil
}

func (f *fakeNode) ReadOne() (*evdev.InputEvent, error) {
	select {
	case <-f.done:
		return nil, os.ErrClosed
	default:
	}
	select {
	case ev := <-f.events:
		return ev, nil
	case err := <-f.errs:
		return nil, err
	case <-f.done:
		return nil, os.ErrClosed
	}
}

func (f *fakeNode) WriteOne(ev *evdev.InputEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, *ev)
	return nil
}

func (f *fakeNode) Grab() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.grabbed = true
	return nil
}

func (f *fakeNode) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeNode) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

func (f *fakeNode) send(events ...*evdev.InputEvent) {
	for _, ev := range events {
		f.events <- ev
	}
}

func (f *fakeNode) fail(err error) {
	f.errs <- err
}

func keyboardNode() *fakeNode {
	return newFakeNode("Test Keyboard", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.KEY_ESC, evdev.KEY_A, evdev.KEY_B, evdev.KEY_LEFTSHIFT},
		evdev.EV_LED: {evdev.LED_NUML, evdev.LED_CAPSL, evdev.LED_SCROLLL},
	}, nil)
}

func mouseNode() *fakeNode {
	return newFakeNode("Test Mouse", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE},
		evdev.EV_REL: {evdev.REL_X, evdev.REL_Y, evdev.REL_WHEEL, evdev.REL_HWHEEL, relWheelHiRes},
	}, nil)
}

func absolutePointerNode() *fakeNode {
	return newFakeNode("QEMU Tablet", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_LEFT, evdev.BTN_RIGHT},
	}, map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X: {Minimum: 0, Maximum: 32767},
		evdev.ABS_Y: {Minimum: 0, Maximum: 32767},
	})
}

func touchscreenNode() *fakeNode {
	return newFakeNode("Test Touchscreen", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_TOUCH},
	}, map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X:              {Minimum: 0, Maximum: 1000},
		evdev.ABS_Y:              {Minimum: 0, Maximum: 1000},
		evdev.ABS_MT_SLOT:        {Minimum: 0, Maximum: 9},
		evdev.ABS_MT_POSITION_X:  {Minimum: 0, Maximum: 1000, Resolution: 4},
		evdev.ABS_MT_POSITION_Y:  {Minimum: 0, Maximum: 1000, Resolution: 4},
		evdev.ABS_MT_TRACKING_ID: {Minimum: 0, Maximum: 65535},
	}, evdev.INPUT_PROP_DIRECT)
}

func singleTouchNode() *fakeNode {
	return newFakeNode("Resistive Screen", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_TOUCH},
	}, map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X: {Minimum: 0, Maximum: 100},
		evdev.ABS_Y: {Minimum: 0, Maximum: 100},
	}, evdev.INPUT_PROP_DIRECT)
}

func touchpadNode() *fakeNode {
	return newFakeNode("Test Touchpad", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {
			evdev.BTN_LEFT, evdev.BTN_TOUCH, evdev.BTN_TOOL_FINGER,
			evdev.BTN_TOOL_DOUBLETAP, evdev.BTN_TOOL_TRIPLETAP,
		},
	}, map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X:              {Minimum: 0, Maximum: 1000, Resolution: 10},
		evdev.ABS_Y:              {Minimum: 0, Maximum: 600, Resolution: 10},
		evdev.ABS_MT_SLOT:        {Minimum: 0, Maximum: 4},
		evdev.ABS_MT_POSITION_X:  {Minimum: 0, Maximum: 1000, Resolution: 10},
		evdev.ABS_MT_POSITION_Y:  {Minimum: 0, Maximum: 600, Resolution: 10},
		evdev.ABS_MT_TRACKING_ID: {Minimum: 0, Maximum: 65535},
	}, evdev.INPUT_PROP_POINTER)
}

func tabletNode() *fakeNode {
	return newFakeNode("Test Pen", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_TOOL_PEN, evdev.BTN_TOOL_RUBBER, evdev.BTN_TOUCH, evdev.BTN_STYLUS},
	}, map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_X:        {Minimum: 0, Maximum: 10000, Resolution: 100},
		evdev.ABS_Y:        {Minimum: 0, Maximum: 10000, Resolution: 100},
		evdev.ABS_PRESSURE: {Minimum: 0, Maximum: 1023},
	})
}

func padNode() *fakeNode {
	return newFakeNode("Test Pad", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: {evdev.BTN_0, evdev.BTN_1, evdev.BTN_2},
	}, map[evdev.EvCode]evdev.AbsInfo{
		evdev.ABS_WHEEL: {Minimum: 0, Maximum: 71},
		evdev.ABS_RX:    {Minimum: 0, Maximum: 4096},
	})
}

func switchNode() *fakeNode {
	return newFakeNode("Lid Switch", map[evdev.EvType][]evdev.EvCode{
		evdev.EV_SW: {evdev.SW_LID, evdev.SW_TABLET_MODE},
	}, nil)
}

func input(typ evdev.EvType, code evdev.EvCode, value int32) *evdev.InputEvent {
	return &evdev.InputEvent{
		Time:  syscall.Timeval{Sec: 1, Usec: 500},
		Type:  typ,
		Code:  code,
		Value: value,
	}
}

func syn() *evdev.InputEvent {
	return input(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

const frameUsec = 1_000_500

func newTestDecoder(t *testing.T, node *fakeNode, counts *seatCounts) *decoder {
	t.Helper()
	info, err := probe(node)
	require.NoError(t, err)
	return newDecoder(&Device{Name: node.name, Capabilities: info.capabilities()}, info, counts)
}

// frame feeds events followed by SYN_REPORT
func frame(d *decoder, events ...*evdev.InputEvent) []Event {
	var out []Event
	for _, ev := range events {
		out = append(out, d.feed(ev)...)
	}
	return append(out, d.feed(syn())...)
}

func kinds(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = fmt.Sprintf("%T", ev)
	}
	return out
}

func TestCapabilities(t *testing.T) {
	tests := []struct {
		name string
		node *fakeNode
		want Capability
	}{
		{"keyboard", keyboardNode(), CapKeyboard},
		{"mouse", mouseNode(), CapPointer},
		{"absolute pointer", absolutePointerNode(), CapPointer},
		{"touchscreen", touchscreenNode(), CapTouch},
		{"single touch", singleTouchNode(), CapTouch},
		{"touchpad", touchpadNode(), CapPointer | CapGesture},
		{"tablet", tabletNode(), CapTabletTool},
		{"pad", padNode(), CapTabletPad},
		{"switch", switchNode(), CapSwitch},
		{"nothing", newFakeNode("Empty", nil, nil), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := probe(tt.node)
			require.NoError(t, err)
			assert.Equal(t, tt.want, info.capabilities())
		})
	}
}

func TestIsButtonRanges(t *testing.T) {
	assert.False(t, isButton(evdev.KEY_A))
	assert.True(t, isButton(evdev.BTN_LEFT))
	assert.True(t, isButton(evdev.BTN_0))
	assert.True(t, isButton(btnDpadUp))
	assert.False(t, isButton(keyAlsToggle))
	assert.True(t, isButton(btnTriggerHappy))
}

func TestDecodeKeySeatCount(t *testing.T) {
	counts := newSeatCounts()
	a := newTestDecoder(t, keyboardNode(), counts)
	b := newTestDecoder(t, keyboardNode(), counts)

	out := frame(a, input(evdev.EV_KEY, evdev.KEY_A, 1))
	require.Len(t, out, 1)
	assert.Equal(t, Key{Header: Header{Dev: a.dev, TimeUsec: frameUsec}, Code: uint32(evdev.KEY_A), Pressed: true, SeatCount: 1}, out[0])

	out = frame(b, input(evdev.EV_KEY, evdev.KEY_A, 1))
	require.Len(t, out, 1)
	assert.Equal(t, uint32(2), out[0].(Key).SeatCount)

	// autorepeat and duplicate presses are dropped
	assert.Empty(t, frame(a, input(evdev.EV_KEY, evdev.KEY_A, 2)))
	assert.Empty(t, frame(a, input(evdev.EV_KEY, evdev.KEY_A, 1)))

	out = frame(a, input(evdev.EV_KEY, evdev.KEY_A, 0))
	require.Len(t, out, 1)
	assert.Equal(t, uint32(1), out[0].(Key).SeatCount)

	out = frame(b, input(evdev.EV_KEY, evdev.KEY_A, 0))
	require.Len(t, out, 1)
	assert.False(t, out[0].(Key).Pressed)
	assert.Equal(t, uint32(0), out[0].(Key).SeatCount)
}

func TestDecodeRelativePointer(t *testing.T) {
	d := newTestDecoder(t, mouseNode(), newSeatCounts())
	hdr := Header{Dev: d.dev, TimeUsec: frameUsec}

	out := frame(d,
		input(evdev.EV_REL, evdev.REL_X, 5),
		input(evdev.EV_REL, evdev.REL_Y, -3),
		input(evdev.EV_REL, evdev.REL_X, 2),
	)
	assert.Equal(t, []Event{PointerMotion{Header: hdr, DX: 7, DY: -3, DXUnaccel: 7, DYUnaccel: -3}}, out)

	out = frame(d, input(evdev.EV_KEY, evdev.BTN_RIGHT, 1))
	assert.Equal(t, []Event{PointerButton{Header: hdr, Code: uint32(evdev.BTN_RIGHT), Pressed: true, SeatCount: 1}}, out)

	out = frame(d, input(evdev.EV_REL, evdev.REL_WHEEL, 1))
	assert.Equal(t, []Event{PointerAxis{
		Header:           hdr,
		Source:           AxisSourceWheel,
		HasVertical:      true,
		Vertical:         -15,
		DiscreteVertical: -1,
	}}, out)

	out = frame(d, input(evdev.EV_REL, evdev.REL_HWHEEL, -2))
	assert.Equal(t, []Event{PointerAxis{
		Header:             hdr,
		Source:             AxisSourceWheel,
		HasHorizontal:      true,
		Horizontal:         -30,
		DiscreteHorizontal: -2,
	}}, out)
}

func TestDecodeHiResWheel(t *testing.T) {
	d := newTestDecoder(t, mouseNode(), newSeatCounts())

	out := frame(d, input(evdev.EV_REL, relWheelHiRes, 60))
	require.Len(t, out, 1)
	axis := out[0].(PointerAxis)
	assert.InDelta(t, -0.5, axis.DiscreteVertical, 1e-9)
	assert.InDelta(t, -7.5, axis.Vertical, 1e-9)

	// once hi-res is seen the legacy wheel is redundant
	out = frame(d,
		input(evdev.EV_REL, relWheelHiRes, -120),
		input(evdev.EV_REL, evdev.REL_WHEEL, -1),
	)
	require.Len(t, out, 1)
	assert.InDelta(t, 1.0, out[0].(PointerAxis).DiscreteVertical, 1e-9)
}

func TestDecodeHiResWheelDetent(t *testing.T) {
	d := newTestDecoder(t, mouseNode(), newSeatCounts())

	// eight 15 unit steps make one notch up
	var discrete float64
	for i := 0; i < 8; i++ {
		out := frame(d, input(evdev.EV_REL, relWheelHiRes, 15))
		require.Len(t, out, 1)
		axis := out[0].(PointerAxis)
		assert.Equal(t, AxisSourceWheel, axis.Source)
		assert.InDelta(t, -0.125, axis.DiscreteVertical, 1e-9)
		discrete += axis.DiscreteVertical
	}
	assert.InDelta(t, -1.0, discrete, 1e-9)
}

func TestDecodeAbsolutePointer(t *testing.T) {
	d := newTestDecoder(t, absolutePointerNode(), newSeatCounts())
	out := frame(d,
		input(evdev.EV_ABS, evdev.ABS_X, 32767),
		input(evdev.EV_ABS, evdev.ABS_Y, 0),
	)
	assert.Equal(t, []Event{PointerMotionAbsolute{Header: Header{Dev: d.dev, TimeUsec: frameUsec}, X: 1, Y: 0}}, out)
}

func TestDecodeMultitouch(t *testing.T) {
	counts := newSeatCounts()
	d := newTestDecoder(t, touchscreenNode(), counts)
	hdr := Header{Dev: d.dev, TimeUsec: frameUsec}

	out := frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 10),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 500),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 250),
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 1),
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 11),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 100),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 100),
		input(evdev.EV_KEY, evdev.BTN_TOUCH, 1),
	)
	assert.Equal(t, []Event{
		TouchDown{Header: hdr, Slot: 0, X: 0.5, Y: 0.25},
		TouchDown{Header: hdr, Slot: 1, X: 0.1, Y: 0.1},
		TouchFrame{Header: hdr},
	}, out)

	out = frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 600),
	)
	assert.Equal(t, []Event{
		TouchMotion{Header: hdr, Slot: 0, X: 0.6, Y: 0.25},
		TouchFrame{Header: hdr},
	}, out)

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1))
	assert.Equal(t, []Event{TouchUp{Header: hdr, Slot: 0}, TouchFrame{Header: hdr}}, out)

	// a second screen gets the lowest free seat slot
	other := newTestDecoder(t, touchscreenNode(), counts)
	out = frame(other,
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 3),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 0),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 0),
	)
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].(TouchDown).Slot)

	// removal cancels what is still down
	out = d.release(7)
	assert.Equal(t, []Event{
		TouchCancel{Header: Header{Dev: d.dev, TimeUsec: 7}, Slot: 1},
		TouchFrame{Header: Header{Dev: d.dev, TimeUsec: 7}},
	}, out)
	assert.False(t, counts.slots[1])
	assert.True(t, counts.slots[0])
}

func TestDecodeTouchBeganAndEndedInOneFrame(t *testing.T) {
	d := newTestDecoder(t, touchscreenNode(), newSeatCounts())
	out := frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 1),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 10),
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1),
	)
	assert.Empty(t, out)
	assert.Empty(t, d.counts.slots)
}

func TestDecodeSingleTouch(t *testing.T) {
	d := newTestDecoder(t, singleTouchNode(), newSeatCounts())

	out := frame(d,
		input(evdev.EV_ABS, evdev.ABS_X, 50),
		input(evdev.EV_ABS, evdev.ABS_Y, 25),
		input(evdev.EV_KEY, evdev.BTN_TOUCH, 1),
	)
	assert.Equal(t, []string{"backend.TouchDown", "backend.TouchFrame"}, kinds(out))
	down := out[0].(TouchDown)
	assert.Equal(t, 0.5, down.X)
	assert.Equal(t, 0.25, down.Y)

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_X, 75))
	assert.Equal(t, []string{"backend.TouchMotion", "backend.TouchFrame"}, kinds(out))

	out = frame(d, input(evdev.EV_KEY, evdev.BTN_TOUCH, 0))
	assert.Equal(t, []string{"backend.TouchUp", "backend.TouchFrame"}, kinds(out))
}

func TestDecodeTouchpadScroll(t *testing.T) {
	d := newTestDecoder(t, touchpadNode(), newSeatCounts())
	hdr := Header{Dev: d.dev, TimeUsec: frameUsec}

	assert.Empty(t, frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 1),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 100),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 100),
		input(evdev.EV_KEY, evdev.BTN_TOUCH, 1),
		input(evdev.EV_KEY, evdev.BTN_TOOL_FINGER, 1),
	))

	// 10 units at 10 units/mm
	out := frame(d, input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 110))
	assert.Equal(t, []Event{PointerMotion{Header: hdr, DX: 4, DXUnaccel: 4}}, out)

	assert.Empty(t, frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 1),
		input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, 2),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 300),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 300),
		input(evdev.EV_KEY, evdev.BTN_TOOL_FINGER, 0),
		input(evdev.EV_KEY, evdev.BTN_TOOL_DOUBLETAP, 1),
	))

	out = frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 120),
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 1),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 320),
	)
	assert.Equal(t, []Event{PointerAxis{
		Header:      hdr,
		Source:      AxisSourceFinger,
		HasVertical: true,
		Vertical:    8,
	}}, out)

	// lifting a finger stops the scroll
	out = frame(d, input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1))
	assert.Equal(t, []Event{PointerAxis{
		Header:        hdr,
		Source:        AxisSourceFinger,
		HasHorizontal: true,
		HasVertical:   true,
	}}, out)

	out = frame(d,
		input(evdev.EV_ABS, evdev.ABS_MT_SLOT, 0),
		input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 120),
	)
	assert.Equal(t, []Event{PointerMotion{Header: hdr, DX: 4, DXUnaccel: 4}}, out)

	// clicks go through as buttons
	out = frame(d, input(evdev.EV_KEY, evdev.BTN_LEFT, 1))
	assert.Equal(t, []string{"backend.PointerButton"}, kinds(out))
}

func TestDecodeTouchpadSwipe(t *testing.T) {
	d := newTestDecoder(t, touchpadNode(), newSeatCounts())

	var down []*evdev.InputEvent
	for i := int32(0); i < 3; i++ {
		down = append(down,
			input(evdev.EV_ABS, evdev.ABS_MT_SLOT, i),
			input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, i+1),
			input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 100*(i+1)),
			input(evdev.EV_ABS, evdev.ABS_MT_POSITION_Y, 100),
		)
	}
	out := frame(d, down...)
	require.Len(t, out, 1)
	assert.Equal(t, GestureSwipe{Header: out[0].(GestureSwipe).Header, Phase: GestureBegin, Fingers: 3}, out[0])

	var moved []*evdev.InputEvent
	for i := int32(0); i < 3; i++ {
		moved = append(moved,
			input(evdev.EV_ABS, evdev.ABS_MT_SLOT, i),
			input(evdev.EV_ABS, evdev.ABS_MT_POSITION_X, 100*(i+1)+30),
		)
	}
	out = frame(d, moved...)
	require.Len(t, out, 1)
	update := out[0].(GestureSwipe)
	assert.Equal(t, GestureUpdate, update.Phase)
	assert.Equal(t, 3, update.Fingers)
	assert.InDelta(t, 12, update.DX, 1e-9)
	assert.Zero(t, update.DY)

	var up []*evdev.InputEvent
	for i := int32(0); i < 3; i++ {
		up = append(up,
			input(evdev.EV_ABS, evdev.ABS_MT_SLOT, i),
			input(evdev.EV_ABS, evdev.ABS_MT_TRACKING_ID, -1),
		)
	}
	out = frame(d, up...)
	require.Len(t, out, 1)
	assert.Equal(t, GestureEnd, out[0].(GestureSwipe).Phase)
}

func TestDecodeTabletOrdering(t *testing.T) {
	d := newTestDecoder(t, tabletNode(), newSeatCounts())
	pen := ToolID{Serial: 99, Type: ToolPen}

	out := frame(d,
		input(evdev.EV_KEY, evdev.BTN_TOOL_PEN, 1),
		input(evdev.EV_MSC, evdev.MSC_SERIAL, 99),
		input(evdev.EV_ABS, evdev.ABS_X, 5000),
		input(evdev.EV_ABS, evdev.ABS_Y, 2500),
	)
	require.Len(t, out, 1)
	prox := out[0].(TabletToolProximity)
	assert.True(t, prox.In)
	assert.Equal(t, pen, prox.Tool)
	assert.Equal(t, 0.5, prox.Axes.X)
	assert.Equal(t, 0.25, prox.Axes.Y)
	assert.Zero(t, prox.Axes.DX)

	out = frame(d,
		input(evdev.EV_ABS, evdev.ABS_X, 6000),
		input(evdev.EV_ABS, evdev.ABS_PRESSURE, 1023),
		input(evdev.EV_KEY, evdev.BTN_TOUCH, 1),
	)
	require.Len(t, out, 1)
	tip := out[0].(TabletToolTip)
	assert.True(t, tip.Down)
	assert.Equal(t, 1.0, tip.Axes.Pressure)
	assert.InDelta(t, 40, tip.Axes.DX, 1e-9)

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_Y, 3000))
	assert.Equal(t, []string{"backend.TabletToolAxis"}, kinds(out))
	assert.InDelta(t, 20, out[0].(TabletToolAxis).Axes.DY, 1e-9)

	out = frame(d, input(evdev.EV_KEY, evdev.BTN_STYLUS, 1))
	require.Len(t, out, 1)
	btn := out[0].(TabletToolButton)
	assert.Equal(t, uint32(evdev.BTN_STYLUS), btn.Button)
	assert.Equal(t, pen, btn.Tool)

	out = frame(d,
		input(evdev.EV_KEY, evdev.BTN_TOUCH, 0),
		input(evdev.EV_ABS, evdev.ABS_PRESSURE, 0),
		input(evdev.EV_KEY, evdev.BTN_STYLUS, 0),
		input(evdev.EV_KEY, evdev.BTN_TOOL_PEN, 0),
	)
	assert.Equal(t, []string{
		"backend.TabletToolButton",
		"backend.TabletToolTip",
		"backend.TabletToolProximity",
	}, kinds(out))
	assert.False(t, out[2].(TabletToolProximity).In)
	assert.Equal(t, pen, out[2].(TabletToolProximity).Tool)

	// the serial does not carry over to the next tool
	out = frame(d, input(evdev.EV_KEY, evdev.BTN_TOOL_RUBBER, 1))
	require.Len(t, out, 1)
	assert.Equal(t, ToolID{Type: ToolEraser}, out[0].(TabletToolProximity).Tool)

	out = d.release(9)
	require.Len(t, out, 1)
	assert.False(t, out[0].(TabletToolProximity).In)
}

func TestDecodePad(t *testing.T) {
	d := newTestDecoder(t, padNode(), newSeatCounts())

	out := frame(d, input(evdev.EV_KEY, evdev.BTN_1, 1))
	require.Len(t, out, 1)
	assert.Equal(t, TabletPadButton{Header: Header{Dev: d.dev, TimeUsec: frameUsec}, Button: 1, Pressed: true}, out[0])

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_WHEEL, 18))
	require.Len(t, out, 1)
	ring := out[0].(TabletPadRing)
	assert.InDelta(t, 18.0/71*360, ring.Angle, 1e-9)
	assert.Equal(t, PadSourceFinger, ring.Source)

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_WHEEL, 0))
	assert.Equal(t, -1.0, out[0].(TabletPadRing).Angle)

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_RX, 8))
	require.Len(t, out, 1)
	assert.InDelta(t, 0.25, out[0].(TabletPadStrip).Position, 1e-9)

	out = frame(d, input(evdev.EV_ABS, evdev.ABS_RX, 0))
	assert.Equal(t, -1.0, out[0].(TabletPadStrip).Position)
}

func TestDecodeSwitch(t *testing.T) {
	d := newTestDecoder(t, switchNode(), newSeatCounts())
	out := frame(d,
		input(evdev.EV_SW, evdev.SW_TABLET_MODE, 1),
		input(evdev.EV_SW, evdev.SW_LID, 0),
	)
	assert.Equal(t, []Event{
		SwitchToggle{Header: Header{Dev: d.dev, TimeUsec: frameUsec}, Switch: SwitchTabletMode, On: true},
		SwitchToggle{Header: Header{Dev: d.dev, TimeUsec: frameUsec}, Switch: SwitchLid, On: false},
	}, out)
}

func TestDecodeSynDropped(t *testing.T) {
	d := newTestDecoder(t, mouseNode(), newSeatCounts())

	assert.Empty(t, frame(d,
		input(evdev.EV_REL, evdev.REL_X, 5),
		input(evdev.EV_SYN, evdev.SYN_DROPPED, 0),
		input(evdev.EV_REL, evdev.REL_X, 3),
	))

	out := frame(d, input(evdev.EV_REL, evdev.REL_X, 1))
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].(PointerMotion).DX)
}

func TestDecoderReleaseHeldKeys(t *testing.T) {
	counts := newSeatCounts()
	d := newTestDecoder(t, keyboardNode(), counts)
	frame(d,
		input(evdev.EV_KEY, evdev.KEY_B, 1),
		input(evdev.EV_KEY, evdev.KEY_A, 1),
	)

	out := d.release(42)
	hdr := Header{Dev: d.dev, TimeUsec: 42}
	assert.Equal(t, []Event{
		Key{Header: hdr, Code: uint32(evdev.KEY_A)},
		Key{Header: hdr, Code: uint32(evdev.KEY_B)},
	}, out)
	assert.Empty(t, counts.keys)
	assert.Empty(t, d.release(43))
}
