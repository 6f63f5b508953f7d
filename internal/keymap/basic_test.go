package keymap

import (
	"testing"

	evdev "github.com/gvalkov/golang-evdev"
	"github.com/stretchr/testify/assert"
)

func TestBasicUpdateKey(t *testing.T) {
	tests := []struct {
		name      string
		keys      []uint32
		dirs      []Direction
		wantMods  Modifiers
		wantLEDs  LED
		lastFlags StateComponent
	}{
		{
			name:      "plain key changes nothing",
			keys:      []uint32{evdev.KEY_A},
			dirs:      []Direction{KeyDown},
			wantMods:  0,
			lastFlags: 0,
		},
		{
			name:      "shift held",
			keys:      []uint32{evdev.KEY_LEFTSHIFT},
			dirs:      []Direction{KeyDown},
			wantMods:  ShiftMask,
			lastFlags: ModsDepressed | ModsEffective,
		},
		{
			name:      "both shifts need both releases",
			keys:      []uint32{evdev.KEY_LEFTSHIFT, evdev.KEY_RIGHTSHIFT, evdev.KEY_LEFTSHIFT},
			dirs:      []Direction{KeyDown, KeyDown, KeyUp},
			wantMods:  ShiftMask,
			lastFlags: 0,
		},
		{
			name:      "caps lock toggles on press",
			keys:      []uint32{evdev.KEY_CAPSLOCK, evdev.KEY_CAPSLOCK},
			dirs:      []Direction{KeyDown, KeyUp},
			wantMods:  LockMask,
			wantLEDs:  LEDCapsLock,
			lastFlags: ModsDepressed,
		},
		{
			name:      "num lock twice is off",
			keys:      []uint32{evdev.KEY_NUMLOCK, evdev.KEY_NUMLOCK, evdev.KEY_NUMLOCK, evdev.KEY_NUMLOCK},
			dirs:      []Direction{KeyDown, KeyUp, KeyDown, KeyUp},
			wantMods:  0,
			wantLEDs:  0,
			lastFlags: ModsDepressed | ModsEffective,
		},
		{
			name:      "scroll lock LED",
			keys:      []uint32{evdev.KEY_SCROLLLOCK},
			dirs:      []Direction{KeyDown},
			wantMods:  Mod3Mask,
			wantLEDs:  LEDScrollLock,
			lastFlags: ModsDepressed | ModsLocked | ModsEffective | LEDs,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewBasic(1).NewState()
			var last StateComponent
			for i, k := range tt.keys {
				last = st.UpdateKey(k, tt.dirs[i])
			}
			assert.Equal(t, tt.wantMods, Modifiers(st.SerializeMods(ModsEffective)))
			assert.Equal(t, tt.wantLEDs, st.LEDs())
			assert.Equal(t, tt.lastFlags, last)
		})
	}
}

func TestBasicUpdateMask(t *testing.T) {
	km := NewBasic(3)
	st := km.NewState()

	changed := st.UpdateMask(uint32(ShiftMask), 0, uint32(Mod2Mask), 0, 0, 2)
	assert.NotZero(t, changed&ModsLocked)
	assert.NotZero(t, changed&LEDs)
	assert.NotZero(t, changed&LayoutEffective)
	assert.Equal(t, uint32(2), st.SerializeLayout(LayoutEffective))
	assert.Equal(t, LEDNumLock, st.LEDs())
	assert.Equal(t, uint32(Mod2Mask), st.SerializeMods(ModsLocked))
	assert.Equal(t, uint32(ShiftMask|Mod2Mask), st.SerializeMods(ModsEffective))

	// same mask again is not a change
	assert.Zero(t, st.UpdateMask(uint32(ShiftMask), 0, uint32(Mod2Mask), 0, 0, 2))

	// wraps around the layout count
	st.UpdateMask(0, 0, 0, 1, 0, 2)
	assert.Equal(t, uint32(0), st.SerializeLayout(LayoutEffective))
}

func TestBasicKeymap(t *testing.T) {
	km := NewBasic(0)
	assert.Equal(t, 1, km.NumLayouts())
	assert.Equal(t, 4, km.ModIndex("Mod2"))
	assert.Equal(t, -1, km.ModIndex("Hyper"))
	assert.True(t, km.KeyRepeats(evdev.KEY_A))
	assert.False(t, km.KeyRepeats(evdev.KEY_LEFTCTRL))
	assert.False(t, km.KeyRepeats(evdev.KEY_CAPSLOCK))
	assert.Same(t, km, km.NewState().Keymap())
}

func TestTranslateState(t *testing.T) {
	st := NewBasic(1).NewState()
	st.UpdateKey(evdev.KEY_LEFTCTRL, KeyDown)

	got := TranslateState(st, Button1Mask)
	assert.Equal(t, ControlMask|Button1Mask, got)
	assert.Equal(t, "ctrl+b1", got.String())
	assert.Equal(t, Button3Mask, TranslateState(nil, Button3Mask))
	assert.Equal(t, "none", Modifiers(0).String())
}
