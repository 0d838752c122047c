package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInventoryPriority(t *testing.T) {
	headset := NewDevice(Bluetooth, "JBL-X")

	for mask := 0; mask < 16; mask++ {
		hw := HardwareState{
			WiredHeadset: mask&2 != 0,
			Telephony:    mask&4 != 0,
			Speaker:      mask&8 != 0,
		}
		if mask&1 != 0 {
			hw.BluetoothHeadset = &headset
		}

		var want []DeviceType
		if hw.BluetoothHeadset != nil {
			want = append(want, Bluetooth)
		}
		if hw.WiredHeadset {
			want = append(want, WiredHeadset)
		}
		if hw.Telephony && !hw.WiredHeadset {
			want = append(want, Earpiece)
		}
		if hw.Speaker {
			want = append(want, Speakerphone)
		}

		inv := buildInventory(hw)
		var got []DeviceType
		for _, d := range inv {
			got = append(got, d.Type)
		}
		assert.Equal(t, want, got, "hardware %+v", hw)

		sel := resolveSelection(inv, nil, nil)
		if len(want) == 0 {
			assert.Nil(t, sel.Selected, "hardware %+v", hw)
			continue
		}
		require.NotNil(t, sel.Selected, "hardware %+v", hw)
		assert.Equal(t, want[0], sel.Selected.Type, "hardware %+v", hw)
	}
}

func TestBuildInventoryTelephonyOnly(t *testing.T) {
	inv := buildInventory(HardwareState{Telephony: true, Speaker: true})
	assert.Equal(t, []Device{
		{Type: Earpiece, Name: "Earpiece"},
		{Type: Speakerphone, Name: "Speakerphone"},
	}, inv)

	sel := resolveSelection(inv, nil, nil)
	require.NotNil(t, sel.Selected)
	assert.Equal(t, Earpiece, sel.Selected.Type)
}

func TestResolveSelectionIdempotent(t *testing.T) {
	headset := NewDevice(Bluetooth, "JBL-X")
	hw := HardwareState{BluetoothHeadset: &headset, WiredHeadset: true, Speaker: true}
	user := NewDevice(Speakerphone, "")

	inv1 := buildInventory(hw)
	sel1 := resolveSelection(inv1, &user, nil)
	inv2 := buildInventory(hw)
	sel2 := resolveSelection(inv2, sel1.UserSelected, sel1.Selected)

	assert.Equal(t, inv1, inv2)
	assert.Equal(t, sel1.Selected, sel2.Selected)
	assert.Equal(t, sel1.UserSelected, sel2.UserSelected)
	assert.True(t, sel1.Changed)
	assert.False(t, sel2.Changed)
}

func TestResolveSelectionUserOverride(t *testing.T) {
	headset := NewDevice(Bluetooth, "JBL-X")
	speaker := NewDevice(Speakerphone, "")

	inv := buildInventory(HardwareState{BluetoothHeadset: &headset, Speaker: true})
	sel := resolveSelection(inv, &speaker, nil)
	require.NotNil(t, sel.Selected)
	assert.Equal(t, speaker, *sel.Selected)
	assert.Equal(t, &speaker, sel.UserSelected)

	// The override does not alias the caller's value.
	speaker.Name = "mutated"
	assert.Equal(t, "Speakerphone", sel.Selected.Name)
}

func TestResolveSelectionClearsMissingOverride(t *testing.T) {
	headset := NewDevice(Bluetooth, "JBL-X")

	inv := buildInventory(HardwareState{Telephony: true, Speaker: true})
	sel := resolveSelection(inv, &headset, &headset)

	assert.Nil(t, sel.UserSelected)
	require.NotNil(t, sel.Selected)
	assert.Equal(t, Earpiece, sel.Selected.Type)
	assert.True(t, sel.Changed)
}

func TestResolveSelectionEmpty(t *testing.T) {
	sel := resolveSelection(nil, nil, nil)
	assert.Nil(t, sel.Selected)
	assert.False(t, sel.Changed)
}
