package audio

// HardwareState is the input to an inventory rebuild. It is assembled from
// the latest hardware signals each time one fires.
type HardwareState struct {
	// BluetoothHeadset is the connected voice headset, if any.
	BluetoothHeadset *Device
	WiredHeadset     bool
	Telephony        bool
	Speaker          bool
}

// buildInventory lists the available devices in priority order: Bluetooth,
// wired headset, earpiece, speakerphone. The earpiece is only offered when
// no wired headset is plugged in.
func buildInventory(hw HardwareState) []Device {
	devices := make([]Device, 0, 4)
	if hw.BluetoothHeadset != nil {
		devices = append(devices, NewDevice(Bluetooth, hw.BluetoothHeadset.Name))
	}
	if hw.WiredHeadset {
		devices = append(devices, NewDevice(WiredHeadset, ""))
	}
	if hw.Telephony && !hw.WiredHeadset {
		devices = append(devices, NewDevice(Earpiece, ""))
	}
	if hw.Speaker {
		devices = append(devices, NewDevice(Speakerphone, ""))
	}
	return devices
}

// Selection is the outcome of running the policy over an inventory.
type Selection struct {
	// Selected is the device that should be routed, nil only for an empty
	// inventory.
	Selected *Device
	// UserSelected is the surviving user override. It is cleared when the
	// device it names is no longer in the inventory.
	UserSelected *Device
	// Changed reports whether Selected differs from the previous selection.
	Changed bool
}

// resolveSelection picks the active device. A user override wins while its
// device is present; otherwise the first device of the inventory does. The
// result depends only on the arguments, so repeated rebuilds with the same
// hardware state produce the same selection.
func resolveSelection(inventory []Device, user, previous *Device) Selection {
	var sel Selection
	if user != nil && containsDevice(inventory, *user) {
		sel.UserSelected = copyDevice(user)
	}

	switch {
	case sel.UserSelected != nil:
		sel.Selected = copyDevice(sel.UserSelected)
	case len(inventory) > 0:
		first := inventory[0]
		sel.Selected = &first
	}
	sel.Changed = !sameDevice(sel.Selected, previous)
	return sel
}
