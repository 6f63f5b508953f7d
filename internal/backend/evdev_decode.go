package backend

import (
	"math"
	"sort"

	evdev "github.com/holoplot/go-evdev"
)

// codes newer than some kernel headers
const (
	relWheelHiRes   = 0x0b
	relHWheelHiRes  = 0x0c
	btnStylus3      = 0x149
	btnDpadUp       = 0x220
	keyAlsToggle    = 0x230
	btnTriggerHappy = 0x2c0
)

// hiResPerNotch is the REL_*_HI_RES value of one wheel notch
const hiResPerNotch = 120.0

// wheelDegreesPerNotch is the rotation reported for one notch
const wheelDegreesPerNotch = 15.0

// touchpadUnitsPerMM converts touchpad travel to pointer motion
const touchpadUnitsPerMM = 4.0

// seatCounts holds the counters every device on a seat shares
type seatCounts struct {
	keys  map[uint32]uint32
	slots map[int]bool
}

func newSeatCounts() *seatCounts {
	return &seatCounts{
		keys:  make(map[uint32]uint32),
		slots: make(map[int]bool),
	}
}

func (c *seatCounts) press(code uint32) uint32 {
	c.keys[code]++
	return c.keys[code]
}

func (c *seatCounts) release(code uint32) uint32 {
	if c.keys[code] == 0 {
		return 0
	}
	c.keys[code]--
	if c.keys[code] == 0 {
		delete(c.keys, code)
		return 0
	}
	return c.keys[code]
}

// allocSlot returns the lowest seat slot not in use
func (c *seatCounts) allocSlot() int {
	for i := 0; ; i++ {
		if !c.slots[i] {
			c.slots[i] = true
			return i
		}
	}
}

func (c *seatCounts) freeSlot(slot int) {
	delete(c.slots, slot)
}

// deviceInfo is what a device node advertises
type deviceInfo struct {
	keys  map[evdev.EvCode]bool
	rels  map[evdev.EvCode]bool
	abs   map[evdev.EvCode]evdev.AbsInfo
	sws   map[evdev.EvCode]bool
	leds  bool
	props map[evdev.EvProp]bool
}

func probe(dev InputDevice) (deviceInfo, error) {
	info := deviceInfo{
		keys:  codeSet(dev.CapableEvents(evdev.EV_KEY)),
		rels:  codeSet(dev.CapableEvents(evdev.EV_REL)),
		sws:   codeSet(dev.CapableEvents(evdev.EV_SW)),
		leds:  len(dev.CapableEvents(evdev.EV_LED)) > 0,
		props: make(map[evdev.EvProp]bool),
	}
	for _, p := range dev.Properties() {
		info.props[p] = true
	}
	abs, err := dev.AbsInfos()
	if err != nil {
		return info, err
	}
	info.abs = abs
	return info, nil
}

func codeSet(codes []evdev.EvCode) map[evdev.EvCode]bool {
	m := make(map[evdev.EvCode]bool, len(codes))
	for _, c := range codes {
		m[c] = true
	}
	return m
}

func (i deviceInfo) hasAbs(code evdev.EvCode) bool {
	_, ok := i.abs[code]
	return ok
}

// deviceKind picks how a device's frames are decoded
type deviceKind int

const (
	kindOther deviceKind = iota
	kindTouchscreen
	kindTouchpad
	kindTablet
	kindPad
)

func (i deviceInfo) kind() deviceKind {
	switch {
	case i.keys[evdev.BTN_0] && !i.keys[evdev.BTN_TOOL_PEN] && (i.hasAbs(evdev.ABS_WHEEL) || i.hasAbs(evdev.ABS_RX)):
		return kindPad
	case i.keys[evdev.BTN_TOOL_PEN] || i.keys[evdev.BTN_STYLUS]:
		return kindTablet
	case i.hasAbs(evdev.ABS_MT_POSITION_X) || (i.keys[evdev.BTN_TOUCH] && i.hasAbs(evdev.ABS_X)):
		if i.props[evdev.INPUT_PROP_DIRECT] {
			return kindTouchscreen
		}
		if i.props[evdev.INPUT_PROP_POINTER] || i.keys[evdev.BTN_TOOL_FINGER] {
			return kindTouchpad
		}
	}
	return kindOther
}

// capabilities classifies the device for the seat
func (i deviceInfo) capabilities() Capability {
	var c Capability
	switch i.kind() {
	case kindTablet:
		c |= CapTabletTool
	case kindPad:
		c |= CapTabletPad
	case kindTouchscreen:
		c |= CapTouch
	case kindTouchpad:
		c |= CapPointer | CapGesture
	default:
		if i.rels[evdev.REL_X] && i.rels[evdev.REL_Y] {
			c |= CapPointer
		}
		if i.keys[evdev.BTN_LEFT] && i.hasAbs(evdev.ABS_X) {
			c |= CapPointer
		}
	}
	for code := range i.keys {
		if code >= evdev.KEY_ESC && code < evdev.BTN_MISC {
			c |= CapKeyboard
			break
		}
	}
	if i.sws[evdev.SW_LID] || i.sws[evdev.SW_TABLET_MODE] {
		c |= CapSwitch
	}
	return c
}

func isButton(code evdev.EvCode) bool {
	return (code >= evdev.BTN_MISC && code < evdev.KEY_OK) ||
		(code >= btnDpadUp && code < keyAlsToggle) ||
		code >= btnTriggerHappy
}

func eventTime(ev *evdev.InputEvent) uint64 {
	return uint64(ev.Time.Sec)*1_000_000 + uint64(ev.Time.Usec)
}

type mtSlot struct {
	active       bool
	began, ended bool
	dirty        bool
	seatSlot     int
	x, y         float64
	lastX, lastY float64
}

// decoder turns one device's SYN_REPORT frames into backend events
type decoder struct {
	dev    *Device
	info   deviceInfo
	kind   deviceKind
	counts *seatCounts

	held     map[evdev.EvCode]bool
	dropping bool
	out      []Event

	// relative pointer state for the current frame
	dx, dy          float64
	wheel, hwheel   float64
	hiWheel, hiHWhl float64
	absX, absY      float64
	absDirty        bool
	sawHiResScroll  bool

	// touch
	slot  int
	slots []mtSlot

	// touchpad gesture state
	scrolling bool
	swiping   bool

	// tablet
	tool               ToolID
	toolIn             bool
	proxChanged        bool
	tip                bool
	tipChanged         bool
	axes               TabletAxes
	axesDirty          bool
	rawX, rawY         float64
	lastRawX, lastRawY float64
	toolButtons        []TabletToolButton

	// pad
	padButtons []evdev.EvCode
}

func newDecoder(dev *Device, info deviceInfo, counts *seatCounts) *decoder {
	d := &decoder{
		dev:    dev,
		info:   info,
		kind:   info.kind(),
		counts: counts,
		held:   make(map[evdev.EvCode]bool),
	}

	n := 1
	if a, ok := info.abs[evdev.ABS_MT_SLOT]; ok && a.Maximum >= 0 {
		n = int(a.Maximum) + 1
	}
	d.slots = make([]mtSlot, n)

	if d.kind == kindPad {
		for code := range info.keys {
			if isButton(code) {
				d.padButtons = append(d.padButtons, code)
			}
		}
		sort.Slice(d.padButtons, func(a, b int) bool { return d.padButtons[a] < d.padButtons[b] })
	}
	return d
}

// normalize maps an absolute axis value to [0,1]
func (d *decoder) normalize(code evdev.EvCode, v int32) float64 {
	a, ok := d.info.abs[code]
	if !ok || a.Maximum <= a.Minimum {
		return 0
	}
	return float64(v-a.Minimum) / float64(a.Maximum-a.Minimum)
}

// millimetres converts a travel in device units
func (d *decoder) millimetres(code evdev.EvCode, delta float64) float64 {
	a := d.info.abs[code]
	if a.Resolution > 0 {
		return delta / float64(a.Resolution)
	}
	if a.Maximum > a.Minimum {
		// Assume a 100mm wide surface
		return delta / float64(a.Maximum-a.Minimum) * 100
	}
	return delta
}

// feed processes one input event and returns the events of a completed
// frame, if any
func (d *decoder) feed(ev *evdev.InputEvent) []Event {
	if ev.Type == evdev.EV_SYN {
		switch ev.Code {
		case evdev.SYN_DROPPED:
			d.dropping = true
			d.resetFrame()
		case evdev.SYN_REPORT:
			if d.dropping {
				d.dropping = false
				d.resetFrame()
				return nil
			}
			d.flush(eventTime(ev))
			out := d.out
			d.out = nil
			return out
		}
		return nil
	}
	if d.dropping {
		return nil
	}

	switch ev.Type {
	case evdev.EV_KEY:
		d.key(ev)
	case evdev.EV_REL:
		d.rel(ev)
	case evdev.EV_ABS:
		d.abs(ev)
	case evdev.EV_MSC:
		if ev.Code == evdev.MSC_SERIAL && d.kind == kindTablet {
			d.tool.Serial = uint64(uint32(ev.Value))
		}
	case evdev.EV_SW:
		d.sw(ev)
	}
	return nil
}

func (d *decoder) resetFrame() {
	d.dx, d.dy = 0, 0
	d.wheel, d.hwheel = 0, 0
	d.hiWheel, d.hiHWhl = 0, 0
	d.absDirty = false
	d.toolButtons = nil
	d.out = nil
}

func (d *decoder) header(usec uint64) Header {
	return Header{Dev: d.dev, TimeUsec: usec}
}

func toolType(code evdev.EvCode) (ToolType, bool) {
	switch code {
	case evdev.BTN_TOOL_PEN:
		return ToolPen, true
	case evdev.BTN_TOOL_RUBBER:
		return ToolEraser, true
	case evdev.BTN_TOOL_BRUSH:
		return ToolBrush, true
	case evdev.BTN_TOOL_PENCIL:
		return ToolPencil, true
	case evdev.BTN_TOOL_AIRBRUSH:
		return ToolAirbrush, true
	case evdev.BTN_TOOL_MOUSE:
		return ToolMouse, true
	case evdev.BTN_TOOL_LENS:
		return ToolLens, true
	}
	return ToolUnknown, false
}

func (d *decoder) key(ev *evdev.InputEvent) {
	// The seat synthesizes its own repeat
	if ev.Value == 2 {
		return
	}
	pressed := ev.Value != 0
	usec := eventTime(ev)

	switch d.kind {
	case kindTablet:
		if t, ok := toolType(ev.Code); ok {
			if pressed {
				d.tool.Type = t
			}
			d.toolIn = pressed
			d.proxChanged = true
			return
		}
		switch ev.Code {
		case evdev.BTN_TOUCH:
			d.tip = pressed
			d.tipChanged = true
		case evdev.BTN_STYLUS, evdev.BTN_STYLUS2, btnStylus3,
			evdev.BTN_LEFT, evdev.BTN_RIGHT, evdev.BTN_MIDDLE, evdev.BTN_SIDE, evdev.BTN_EXTRA:
			d.toolButtons = append(d.toolButtons, TabletToolButton{
				Header:  d.header(usec),
				Button:  uint32(ev.Code),
				Pressed: pressed,
			})
		}
		return

	case kindPad:
		for i, code := range d.padButtons {
			if code == ev.Code {
				d.out = append(d.out, TabletPadButton{
					Header:  d.header(usec),
					Button:  uint32(i),
					Pressed: pressed,
				})
				return
			}
		}
		return

	case kindTouchscreen:
		if ev.Code == evdev.BTN_TOUCH {
			// Single touch screens; MT screens track contacts by id
			if !d.info.hasAbs(evdev.ABS_MT_POSITION_X) {
				s := &d.slots[0]
				if pressed && !s.active {
					s.active, s.began = true, true
				} else if !pressed && s.active {
					s.ended = true
				}
			}
			return
		}

	case kindTouchpad:
		// BTN_TOOL_FINGER through BTN_TOOL_QUADTAP, BTN_TOUCH included;
		// contacts are tracked from the MT slots
		if ev.Code >= evdev.BTN_TOOL_FINGER && ev.Code <= evdev.BTN_TOOL_QUADTAP {
			return
		}
	}

	if d.held[ev.Code] == pressed {
		return
	}
	if pressed {
		d.held[ev.Code] = true
	} else {
		delete(d.held, ev.Code)
	}
	d.out = append(d.out, d.transition(usec, ev.Code, pressed))
}

// transition builds a key or button event and updates the seat count
func (d *decoder) transition(usec uint64, code evdev.EvCode, pressed bool) Event {
	var count uint32
	if pressed {
		count = d.counts.press(uint32(code))
	} else {
		count = d.counts.release(uint32(code))
	}
	if isButton(code) {
		return PointerButton{
			Header:    d.header(usec),
			Code:      uint32(code),
			Pressed:   pressed,
			SeatCount: count,
		}
	}
	return Key{
		Header:    d.header(usec),
		Code:      uint32(code),
		Pressed:   pressed,
		SeatCount: count,
	}
}

func (d *decoder) rel(ev *evdev.InputEvent) {
	v := float64(ev.Value)
	switch ev.Code {
	case evdev.REL_X:
		d.dx += v
	case evdev.REL_Y:
		d.dy += v
	case evdev.REL_WHEEL:
		d.wheel += v
	case evdev.REL_HWHEEL:
		d.hwheel += v
	case relWheelHiRes:
		d.hiWheel += v
		d.sawHiResScroll = true
	case relHWheelHiRes:
		d.hiHWhl += v
		d.sawHiResScroll = true
	}
}

func (d *decoder) abs(ev *evdev.InputEvent) {
	switch d.kind {
	case kindTouchscreen, kindTouchpad:
		d.touchAbs(ev)
	case kindTablet:
		d.tabletAbs(ev)
	case kindPad:
		d.padAbs(ev)
	default:
		switch ev.Code {
		case evdev.ABS_X:
			d.absX = d.normalize(ev.Code, ev.Value)
			d.absDirty = true
		case evdev.ABS_Y:
			d.absY = d.normalize(ev.Code, ev.Value)
			d.absDirty = true
		}
	}
}

func (d *decoder) touchAbs(ev *evdev.InputEvent) {
	if ev.Code == evdev.ABS_MT_SLOT {
		d.slot = int(ev.Value)
		return
	}

	mt := d.info.hasAbs(evdev.ABS_MT_POSITION_X)
	slot := d.slot
	if !mt {
		slot = 0
	}
	if slot < 0 || slot >= len(d.slots) {
		return
	}
	s := &d.slots[slot]

	switch {
	case ev.Code == evdev.ABS_MT_TRACKING_ID:
		if ev.Value < 0 {
			if s.active {
				s.ended = true
			}
		} else if !s.active {
			s.active, s.began = true, true
		}
	case ev.Code == evdev.ABS_MT_POSITION_X || (!mt && ev.Code == evdev.ABS_X):
		s.x = float64(ev.Value)
		s.dirty = true
	case ev.Code == evdev.ABS_MT_POSITION_Y || (!mt && ev.Code == evdev.ABS_Y):
		s.y = float64(ev.Value)
		s.dirty = true
	}
}

func (d *decoder) tabletAbs(ev *evdev.InputEvent) {
	v := ev.Value
	switch ev.Code {
	case evdev.ABS_X:
		d.rawX = float64(v)
		d.axes.X = d.normalize(ev.Code, v)
	case evdev.ABS_Y:
		d.rawY = float64(v)
		d.axes.Y = d.normalize(ev.Code, v)
	case evdev.ABS_PRESSURE:
		d.axes.Pressure = d.normalize(ev.Code, v)
	case evdev.ABS_DISTANCE:
		d.axes.Distance = d.normalize(ev.Code, v)
	case evdev.ABS_TILT_X:
		d.axes.TiltX = d.tilt(ev.Code, v)
	case evdev.ABS_TILT_Y:
		d.axes.TiltY = d.tilt(ev.Code, v)
	case evdev.ABS_Z:
		d.axes.Rotation = d.normalize(ev.Code, v) * 360
	case evdev.ABS_WHEEL:
		d.axes.Slider = d.normalize(ev.Code, v)*2 - 1
	default:
		return
	}
	d.axesDirty = true
}

// tilt returns degrees from vertical. Without a resolution the range is
// assumed to span -64..64 degrees.
func (d *decoder) tilt(code evdev.EvCode, v int32) float64 {
	a := d.info.abs[code]
	if a.Resolution > 0 {
		return float64(v) / float64(a.Resolution) * 180 / math.Pi
	}
	return (d.normalize(code, v)*2 - 1) * 64
}

func (d *decoder) padAbs(ev *evdev.InputEvent) {
	usec := eventTime(ev)
	switch ev.Code {
	case evdev.ABS_WHEEL:
		angle := -1.0
		if ev.Value != 0 {
			angle = d.normalize(ev.Code, ev.Value) * 360
		}
		d.out = append(d.out, TabletPadRing{
			Header: d.header(usec),
			Number: 0,
			Angle:  angle,
			Source: PadSourceFinger,
		})
	case evdev.ABS_RX, evdev.ABS_RY:
		number := 0
		if ev.Code == evdev.ABS_RY {
			number = 1
		}
		d.out = append(d.out, TabletPadStrip{
			Header:   d.header(usec),
			Number:   number,
			Position: d.stripPosition(ev.Code, ev.Value),
			Source:   PadSourceFinger,
		})
	}
}

// stripPosition decodes the one-hot strip value; -1 means the finger lifted
func (d *decoder) stripPosition(code evdev.EvCode, v int32) float64 {
	if v <= 0 {
		return -1
	}
	a := d.info.abs[code]
	if a.Maximum <= 1 {
		return 0
	}
	return math.Log2(float64(v)) / math.Log2(float64(a.Maximum))
}

func (d *decoder) sw(ev *evdev.InputEvent) {
	var kind SwitchKind
	switch ev.Code {
	case evdev.SW_LID:
		kind = SwitchLid
	case evdev.SW_TABLET_MODE:
		kind = SwitchTabletMode
	default:
		return
	}
	d.out = append(d.out, SwitchToggle{
		Header: d.header(eventTime(ev)),
		Switch: kind,
		On:     ev.Value != 0,
	})
}

// flush completes the frame
func (d *decoder) flush(usec uint64) {
	switch d.kind {
	case kindTouchscreen:
		d.flushTouch(usec)
	case kindTouchpad:
		d.flushTouchpad(usec)
	case kindTablet:
		d.flushTablet(usec)
	}
	d.flushPointer(usec)
}

func (d *decoder) flushPointer(usec uint64) {
	if d.dx != 0 || d.dy != 0 {
		d.out = append(d.out, PointerMotion{
			Header:    d.header(usec),
			DX:        d.dx,
			DY:        d.dy,
			DXUnaccel: d.dx,
			DYUnaccel: d.dy,
		})
	}
	if d.absDirty {
		d.out = append(d.out, PointerMotionAbsolute{
			Header: d.header(usec),
			X:      d.absX,
			Y:      d.absY,
		})
	}

	// REL_WHEEL counts scrolling up as positive
	v, h := d.wheel, d.hwheel
	if d.sawHiResScroll {
		v, h = d.hiWheel/hiResPerNotch, d.hiHWhl/hiResPerNotch
	}
	if v != 0 || h != 0 {
		d.out = append(d.out, PointerAxis{
			Header:             d.header(usec),
			Source:             AxisSourceWheel,
			HasHorizontal:      h != 0,
			HasVertical:        v != 0,
			Horizontal:         h * wheelDegreesPerNotch,
			Vertical:           -v * wheelDegreesPerNotch,
			DiscreteHorizontal: h,
			DiscreteVertical:   -v,
		})
	}

	d.dx, d.dy = 0, 0
	d.wheel, d.hwheel = 0, 0
	d.hiWheel, d.hiHWhl = 0, 0
	d.absDirty = false
}

func (d *decoder) flushTouch(usec uint64) {
	xCode, yCode := evdev.EvCode(evdev.ABS_MT_POSITION_X), evdev.EvCode(evdev.ABS_MT_POSITION_Y)
	if !d.info.hasAbs(xCode) {
		xCode, yCode = evdev.ABS_X, evdev.ABS_Y
	}

	emitted := false
	for i := range d.slots {
		s := &d.slots[i]
		switch {
		case s.began && s.ended:
			s.began, s.ended, s.active = false, false, false
		case s.began:
			s.seatSlot = d.counts.allocSlot()
			d.out = append(d.out, TouchDown{
				Header: d.header(usec),
				Slot:   s.seatSlot,
				X:      d.normalize(xCode, int32(s.x)),
				Y:      d.normalize(yCode, int32(s.y)),
			})
			emitted = true
		case s.ended:
			d.out = append(d.out, TouchUp{Header: d.header(usec), Slot: s.seatSlot})
			d.counts.freeSlot(s.seatSlot)
			s.active = false
			emitted = true
		case s.active && s.dirty:
			d.out = append(d.out, TouchMotion{
				Header: d.header(usec),
				Slot:   s.seatSlot,
				X:      d.normalize(xCode, int32(s.x)),
				Y:      d.normalize(yCode, int32(s.y)),
			})
			emitted = true
		}
		s.began, s.ended, s.dirty = false, false, false
	}
	if emitted {
		d.out = append(d.out, TouchFrame{Header: d.header(usec)})
	}
}

// flushTouchpad turns finger motion into pointer motion with one finger,
// two finger scrolling and three or more finger swipes
func (d *decoder) flushTouchpad(usec uint64) {
	fingers := 0
	var sumDX, sumDY float64
	moved := 0
	for i := range d.slots {
		s := &d.slots[i]
		if s.ended {
			s.active = false
		}
		if s.active {
			fingers++
			if !s.began && s.dirty {
				sumDX += s.x - s.lastX
				sumDY += s.y - s.lastY
				moved++
			}
			s.lastX, s.lastY = s.x, s.y
		}
		s.began, s.ended, s.dirty = false, false, false
	}

	var dx, dy float64
	if moved > 0 {
		dx = d.millimetres(evdev.ABS_MT_POSITION_X, sumDX/float64(moved)) * touchpadUnitsPerMM
		dy = d.millimetres(evdev.ABS_MT_POSITION_Y, sumDY/float64(moved)) * touchpadUnitsPerMM
	}

	if d.scrolling && fingers != 2 {
		d.scrolling = false
		d.out = append(d.out, PointerAxis{
			Header:        d.header(usec),
			Source:        AxisSourceFinger,
			HasHorizontal: true,
			HasVertical:   true,
		})
	}
	if d.swiping && fingers < 3 {
		d.swiping = false
		d.out = append(d.out, GestureSwipe{
			Header:  d.header(usec),
			Phase:   GestureEnd,
			Fingers: 3,
		})
	}

	switch {
	case fingers == 1 && moved > 0:
		d.dx += dx
		d.dy += dy
	case fingers == 2 && moved > 0:
		d.scrolling = true
		d.out = append(d.out, PointerAxis{
			Header:        d.header(usec),
			Source:        AxisSourceFinger,
			HasHorizontal: dx != 0,
			HasVertical:   dy != 0,
			Horizontal:    dx,
			Vertical:      dy,
		})
	case fingers >= 3:
		if !d.swiping {
			d.swiping = true
			d.out = append(d.out, GestureSwipe{
				Header:  d.header(usec),
				Phase:   GestureBegin,
				Fingers: fingers,
			})
		}
		if moved > 0 {
			d.out = append(d.out, GestureSwipe{
				Header:  d.header(usec),
				Phase:   GestureUpdate,
				Fingers: fingers,
				DX:      dx,
				DY:      dy,
			})
		}
	}
}

// flushTablet emits the frame in proximity, tip, axis, button order, with
// tip up and proximity out last
func (d *decoder) flushTablet(usec uint64) {
	hdr := d.header(usec)
	axes := d.axes
	if d.axesDirty && !d.proxChanged {
		axes.DX = d.millimetres(evdev.ABS_X, d.rawX-d.lastRawX) * touchpadUnitsPerMM
		axes.DY = d.millimetres(evdev.ABS_Y, d.rawY-d.lastRawY) * touchpadUnitsPerMM
	}
	d.lastRawX, d.lastRawY = d.rawX, d.rawY

	if d.proxChanged && d.toolIn {
		d.out = append(d.out, TabletToolProximity{Header: hdr, Tool: d.tool, In: true, Axes: axes})
	}
	if d.toolIn || d.proxChanged {
		switch {
		case d.tipChanged && d.tip:
			d.out = append(d.out, TabletToolTip{Header: hdr, Tool: d.tool, Down: true, Axes: axes})
		case d.axesDirty && !d.proxChanged:
			d.out = append(d.out, TabletToolAxis{Header: hdr, Tool: d.tool, Axes: axes})
		}
		for _, b := range d.toolButtons {
			b.Tool = d.tool
			b.Axes = axes
			d.out = append(d.out, b)
		}
		if d.tipChanged && !d.tip {
			d.out = append(d.out, TabletToolTip{Header: hdr, Tool: d.tool, Down: false, Axes: axes})
		}
	}
	if d.proxChanged && !d.toolIn {
		d.out = append(d.out, TabletToolProximity{Header: hdr, Tool: d.tool, In: false, Axes: axes})
		d.tool.Serial = 0
	}

	d.proxChanged, d.tipChanged, d.axesDirty = false, false, false
	d.toolButtons = nil
}

// release synthesizes the events that end everything the device still
// holds, for a device about to be removed
func (d *decoder) release(usec uint64) []Event {
	var out []Event

	codes := make([]evdev.EvCode, 0, len(d.held))
	for code := range d.held {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(a, b int) bool { return codes[a] < codes[b] })
	for _, code := range codes {
		out = append(out, d.transition(usec, code, false))
	}
	d.held = make(map[evdev.EvCode]bool)

	if d.kind == kindTouchscreen {
		cancelled := false
		for i := range d.slots {
			s := &d.slots[i]
			if s.active && !s.began {
				out = append(out, TouchCancel{Header: d.header(usec), Slot: s.seatSlot})
				d.counts.freeSlot(s.seatSlot)
				cancelled = true
			}
			*s = mtSlot{}
		}
		if cancelled {
			out = append(out, TouchFrame{Header: d.header(usec)})
		}
	}

	if d.kind == kindTablet && d.toolIn {
		out = append(out, TabletToolProximity{Header: d.header(usec), Tool: d.tool, In: false, Axes: d.axes})
		d.toolIn = false
	}
	return out
}
