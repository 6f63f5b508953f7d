package eventlog

import (
	"fmt"
	"math"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/bnema/inputseat/internal/backend"
	"github.com/bnema/inputseat/internal/keymap"
	"github.com/bnema/inputseat/internal/seat"
)

// Record is the stored form of one normalized event. Fields a kind does not
// use stay zero.
type Record struct {
	Kind      seat.EventKind
	TimeUsec  uint64
	Device    string
	DeviceID  int
	Modifiers keymap.Modifiers
	Flags     seat.EventFlags

	X, Y     float64
	DX, DY   float64
	Relative bool

	Code      uint32
	Button    int
	Sequence  int
	Direction seat.ScrollDirection
	Source    int
	Finish    seat.ScrollFinish

	Phase   seat.GesturePhase
	Fingers int
	Scale   float64
	Angle   float64
	Value   float64

	Number int
	Group  uint32
	Mode   uint32
	Tool   backend.ToolID
}

// Field numbers of the wire message
const (
	fieldKind      protowire.Number = 1
	fieldTime      protowire.Number = 2
	fieldDevice    protowire.Number = 3
	fieldDeviceID  protowire.Number = 4
	fieldModifiers protowire.Number = 5
	fieldFlags     protowire.Number = 6
	fieldX         protowire.Number = 7
	fieldY         protowire.Number = 8
	fieldDX        protowire.Number = 9
	fieldDY        protowire.Number = 10
	fieldRelative  protowire.Number = 11
	fieldCode      protowire.Number = 12
	fieldButton    protowire.Number = 13
	fieldSequence  protowire.Number = 14
	fieldDirection protowire.Number = 15
	fieldSource    protowire.Number = 16
	fieldFinish    protowire.Number = 17
	fieldPhase     protowire.Number = 18
	fieldFingers   protowire.Number = 19
	fieldScale     protowire.Number = 20
	fieldAngle     protowire.Number = 21
	fieldValue     protowire.Number = 22
	fieldNumber    protowire.Number = 23
	fieldGroup     protowire.Number = 24
	fieldMode      protowire.Number = 25
	fieldSerial    protowire.Number = 26
	fieldToolType  protowire.Number = 27
)

// FromEvent captures a normalized event
func FromEvent(ev seat.Event) Record {
	h := ev.Header()
	r := Record{
		Kind:      ev.Kind(),
		TimeUsec:  h.TimeUsec,
		Modifiers: h.Modifiers,
		Flags:     h.Flags,
	}
	dev := h.Source
	if dev == nil {
		dev = h.Device
	}
	if dev != nil {
		r.Device = dev.Name()
		r.DeviceID = dev.ID()
	}

	switch e := ev.(type) {
	case *seat.KeyEvent:
		r.Code = e.Code
	case *seat.MotionEvent:
		r.X, r.Y = e.X, e.Y
		r.Relative = e.Relative
		r.DX, r.DY = e.DX, e.DY
		if e.Tool != nil {
			r.Tool = e.Tool.ID()
		}
	case *seat.ButtonEvent:
		r.Button = e.Button
		r.Code = e.Code
		r.X, r.Y = e.X, e.Y
		if e.Tool != nil {
			r.Tool = e.Tool.ID()
		}
	case *seat.ScrollEvent:
		r.Direction = e.Direction
		r.DX, r.DY = e.DX, e.DY
		r.X, r.Y = e.X, e.Y
		r.Source = int(e.Source)
		r.Finish = e.Finish
	case *seat.TouchEvent:
		r.Sequence = e.Sequence
		r.X, r.Y = e.X, e.Y
	case *seat.PinchEvent:
		r.Phase = e.Phase
		r.Fingers = e.Fingers
		r.X, r.Y = e.X, e.Y
		r.DX, r.DY = e.DX, e.DY
		r.Angle = e.AngleDelta
		r.Scale = e.Scale
	case *seat.SwipeEvent:
		r.Phase = e.Phase
		r.Fingers = e.Fingers
		r.X, r.Y = e.X, e.Y
		r.DX, r.DY = e.DX, e.DY
	case *seat.ProximityEvent:
		if e.Tool != nil {
			r.Tool = e.Tool.ID()
		}
	case *seat.PadButtonEvent:
		r.Button = int(e.Button)
		r.Group, r.Mode = e.Group, e.Mode
	case *seat.PadStripEvent:
		r.Number = e.Number
		r.Value = e.Value
		r.Source = int(e.Source)
		r.Group, r.Mode = e.Group, e.Mode
	case *seat.PadRingEvent:
		r.Number = e.Number
		r.Angle = e.Angle
		r.Source = int(e.Source)
		r.Group, r.Mode = e.Group, e.Mode
	}
	return r
}

// Event rebuilds a normalized event. Device handles and tools are not
// stored, so the header carries no device.
func (r Record) Event() seat.Event {
	h := seat.EventHeader{
		TimeUsec:  r.TimeUsec,
		Modifiers: r.Modifiers,
		Flags:     r.Flags,
	}

	switch r.Kind {
	case seat.KindKeyPress, seat.KindKeyRelease:
		return &seat.KeyEvent{EventHeader: h, Pressed: r.Kind == seat.KindKeyPress, Code: r.Code}
	case seat.KindMotion:
		return &seat.MotionEvent{
			EventHeader: h,
			X:           r.X,
			Y:           r.Y,
			Relative:    r.Relative,
			DX:          r.DX,
			DY:          r.DY,
			DXUnaccel:   r.DX,
			DYUnaccel:   r.DY,
		}
	case seat.KindButtonPress, seat.KindButtonRelease:
		return &seat.ButtonEvent{
			EventHeader: h,
			Pressed:     r.Kind == seat.KindButtonPress,
			Button:      r.Button,
			Code:        r.Code,
			X:           r.X,
			Y:           r.Y,
		}
	case seat.KindScroll:
		return &seat.ScrollEvent{
			EventHeader: h,
			Direction:   r.Direction,
			DX:          r.DX,
			DY:          r.DY,
			X:           r.X,
			Y:           r.Y,
			Source:      backend.AxisSource(r.Source),
			Finish:      r.Finish,
		}
	case seat.KindTouchBegin, seat.KindTouchUpdate, seat.KindTouchEnd, seat.KindTouchCancel:
		phase := seat.TouchPhase(r.Kind - seat.KindTouchBegin)
		return &seat.TouchEvent{EventHeader: h, Phase: phase, Sequence: r.Sequence, X: r.X, Y: r.Y}
	case seat.KindPinch:
		return &seat.PinchEvent{
			EventHeader: h,
			Phase:       r.Phase,
			Fingers:     r.Fingers,
			X:           r.X,
			Y:           r.Y,
			DX:          r.DX,
			DY:          r.DY,
			AngleDelta:  r.Angle,
			Scale:       r.Scale,
		}
	case seat.KindSwipe:
		return &seat.SwipeEvent{EventHeader: h, Phase: r.Phase, Fingers: r.Fingers, X: r.X, Y: r.Y, DX: r.DX, DY: r.DY}
	case seat.KindProximityIn, seat.KindProximityOut:
		return &seat.ProximityEvent{EventHeader: h, In: r.Kind == seat.KindProximityIn}
	case seat.KindPadButtonPress, seat.KindPadButtonRelease:
		return &seat.PadButtonEvent{
			EventHeader: h,
			Pressed:     r.Kind == seat.KindPadButtonPress,
			Button:      uint32(r.Button),
			Group:       r.Group,
			Mode:        r.Mode,
		}
	case seat.KindPadStrip:
		return &seat.PadStripEvent{
			EventHeader: h,
			Number:      r.Number,
			Value:       r.Value,
			Source:      backend.PadSource(r.Source),
			Group:       r.Group,
			Mode:        r.Mode,
		}
	case seat.KindPadRing:
		return &seat.PadRingEvent{
			EventHeader: h,
			Number:      r.Number,
			Angle:       r.Angle,
			Source:      backend.PadSource(r.Source),
			Group:       r.Group,
			Mode:        r.Mode,
		}
	case seat.KindDeviceAdded, seat.KindDeviceRemoved:
		return &seat.DeviceEvent{EventHeader: h, Added: r.Kind == seat.KindDeviceAdded}
	}
	return nil
}

func (r Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%6d.%06d %-18s", r.TimeUsec/1_000_000, r.TimeUsec%1_000_000, r.Kind)
	if r.Device != "" {
		fmt.Fprintf(&b, " [%d:%s]", r.DeviceID, r.Device)
	}

	switch r.Kind {
	case seat.KindKeyPress, seat.KindKeyRelease:
		fmt.Fprintf(&b, " code=%d", r.Code)
	case seat.KindMotion:
		fmt.Fprintf(&b, " x=%.2f y=%.2f", r.X, r.Y)
		if r.Relative {
			fmt.Fprintf(&b, " dx=%.2f dy=%.2f", r.DX, r.DY)
		}
	case seat.KindButtonPress, seat.KindButtonRelease:
		fmt.Fprintf(&b, " button=%d code=%#x", r.Button, r.Code)
	case seat.KindScroll:
		fmt.Fprintf(&b, " %s source=%s", r.Direction, backend.AxisSource(r.Source))
		if r.Direction == seat.ScrollSmooth {
			fmt.Fprintf(&b, " dx=%.2f dy=%.2f", r.DX, r.DY)
		}
		if r.Finish != 0 {
			fmt.Fprintf(&b, " finish=%d", r.Finish)
		}
	case seat.KindTouchBegin, seat.KindTouchUpdate, seat.KindTouchEnd, seat.KindTouchCancel:
		fmt.Fprintf(&b, " seq=%d x=%.2f y=%.2f", r.Sequence, r.X, r.Y)
	case seat.KindPinch:
		fmt.Fprintf(&b, " %s fingers=%d dx=%.2f dy=%.2f scale=%.3f angle=%.2f",
			r.Phase, r.Fingers, r.DX, r.DY, r.Scale, r.Angle)
	case seat.KindSwipe:
		fmt.Fprintf(&b, " %s fingers=%d dx=%.2f dy=%.2f", r.Phase, r.Fingers, r.DX, r.DY)
	case seat.KindProximityIn, seat.KindProximityOut:
		fmt.Fprintf(&b, " tool=%s serial=%d", r.Tool.Type, r.Tool.Serial)
	case seat.KindPadButtonPress, seat.KindPadButtonRelease:
		fmt.Fprintf(&b, " button=%d group=%d mode=%d", r.Button, r.Group, r.Mode)
	case seat.KindPadStrip:
		fmt.Fprintf(&b, " strip=%d value=%.3f mode=%d", r.Number, r.Value, r.Mode)
	case seat.KindPadRing:
		fmt.Fprintf(&b, " ring=%d angle=%.1f mode=%d", r.Number, r.Angle, r.Mode)
	}

	if r.Modifiers != 0 {
		fmt.Fprintf(&b, " mods=%s", r.Modifiers)
	}
	if r.Flags&seat.FlagRepeated != 0 {
		b.WriteString(" repeated")
	}
	if r.Flags&seat.FlagEmulated != 0 {
		b.WriteString(" emulated")
	}
	return b.String()
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendInt(b []byte, num protowire.Number, v int) []byte {
	return appendUint(b, num, protowire.EncodeZigZag(int64(v)))
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendUint(b, num, protowire.EncodeBool(v))
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func (r *Record) marshal(b []byte) []byte {
	b = appendUint(b, fieldKind, uint64(r.Kind))
	b = appendUint(b, fieldTime, r.TimeUsec)
	b = appendString(b, fieldDevice, r.Device)
	b = appendInt(b, fieldDeviceID, r.DeviceID)
	b = appendUint(b, fieldModifiers, uint64(r.Modifiers))
	b = appendUint(b, fieldFlags, uint64(r.Flags))
	b = appendDouble(b, fieldX, r.X)
	b = appendDouble(b, fieldY, r.Y)
	b = appendDouble(b, fieldDX, r.DX)
	b = appendDouble(b, fieldDY, r.DY)
	b = appendBool(b, fieldRelative, r.Relative)
	b = appendUint(b, fieldCode, uint64(r.Code))
	b = appendInt(b, fieldButton, r.Button)
	b = appendInt(b, fieldSequence, r.Sequence)
	b = appendUint(b, fieldDirection, uint64(r.Direction))
	b = appendInt(b, fieldSource, r.Source)
	b = appendUint(b, fieldFinish, uint64(r.Finish))
	b = appendUint(b, fieldPhase, uint64(r.Phase))
	b = appendInt(b, fieldFingers, r.Fingers)
	b = appendDouble(b, fieldScale, r.Scale)
	b = appendDouble(b, fieldAngle, r.Angle)
	b = appendDouble(b, fieldValue, r.Value)
	b = appendInt(b, fieldNumber, r.Number)
	b = appendUint(b, fieldGroup, uint64(r.Group))
	b = appendUint(b, fieldMode, uint64(r.Mode))
	b = appendUint(b, fieldSerial, r.Tool.Serial)
	b = appendUint(b, fieldToolType, uint64(r.Tool.Type))
	return b
}

func (r *Record) unmarshal(b []byte) error {
	*r = Record{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			var v uint64
			v, n = protowire.ConsumeVarint(b)
			if n >= 0 {
				r.setVarint(num, v)
			}
		case protowire.Fixed64Type:
			var v uint64
			v, n = protowire.ConsumeFixed64(b)
			if n >= 0 {
				r.setDouble(num, math.Float64frombits(v))
			}
		case protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 && num == fieldDevice {
				r.Device = string(v)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

func (r *Record) setVarint(num protowire.Number, v uint64) {
	signed := int(protowire.DecodeZigZag(v))
	switch num {
	case fieldKind:
		r.Kind = seat.EventKind(v)
	case fieldTime:
		r.TimeUsec = v
	case fieldDeviceID:
		r.DeviceID = signed
	case fieldModifiers:
		r.Modifiers = keymap.Modifiers(v)
	case fieldFlags:
		r.Flags = seat.EventFlags(v)
	case fieldRelative:
		r.Relative = protowire.DecodeBool(v)
	case fieldCode:
		r.Code = uint32(v)
	case fieldButton:
		r.Button = signed
	case fieldSequence:
		r.Sequence = signed
	case fieldDirection:
		r.Direction = seat.ScrollDirection(v)
	case fieldSource:
		r.Source = signed
	case fieldFinish:
		r.Finish = seat.ScrollFinish(v)
	case fieldPhase:
		r.Phase = seat.GesturePhase(v)
	case fieldFingers:
		r.Fingers = signed
	case fieldNumber:
		r.Number = signed
	case fieldGroup:
		r.Group = uint32(v)
	case fieldMode:
		r.Mode = uint32(v)
	case fieldSerial:
		r.Tool.Serial = v
	case fieldToolType:
		r.Tool.Type = backend.ToolType(v)
	}
}

func (r *Record) setDouble(num protowire.Number, v float64) {
	switch num {
	case fieldX:
		r.X = v
	case fieldY:
		r.Y = v
	case fieldDX:
		r.DX = v
	case fieldDY:
		r.DY = v
	case fieldScale:
		r.Scale = v
	case fieldAngle:
		r.Angle = v
	case fieldValue:
		r.Value = v
	}
}
