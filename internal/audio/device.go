package audio

import (
	"fmt"
	"strings"
)

// DeviceType identifies the physical audio path a Device represents.
type DeviceType int

const (
	Speakerphone DeviceType = iota + 1
	WiredHeadset
	Earpiece
	Bluetooth
)

// Default display names used when the hardware does not supply one.
const (
	speakerphoneName = "Speakerphone"
	wiredHeadsetName = "Wired Headset"
	earpieceName     = "Earpiece"
	bluetoothName    = "Bluetooth"
)

func (t DeviceType) String() string {
	switch t {
	case Speakerphone:
		return "speakerphone"
	case WiredHeadset:
		return "wired_headset"
	case Earpiece:
		return "earpiece"
	case Bluetooth:
		return "bluetooth"
	}
	return fmt.Sprintf("DeviceType(%d)", int(t))
}

// MarshalText encodes the type by name for JSON and YAML.
func (t DeviceType) MarshalText() ([]byte, error) {
	switch t {
	case Speakerphone, WiredHeadset, Earpiece, Bluetooth:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("unknown device type %d", int(t))
}

// UnmarshalText accepts the names produced by MarshalText. Hyphens and case
// are ignored so "Wired-Headset" is also accepted.
func (t *DeviceType) UnmarshalText(b []byte) error {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(b))), "-", "_")
	switch s {
	case "speakerphone", "speaker":
		*t = Speakerphone
	case "wired_headset", "wired", "headset":
		*t = WiredHeadset
	case "earpiece":
		*t = Earpiece
	case "bluetooth", "bt":
		*t = Bluetooth
	default:
		return fmt.Errorf("unknown device type %q", string(b))
	}
	return nil
}

// Device is an available audio output path. Devices are plain values and
// compare equal when both type and name match.
type Device struct {
	Type DeviceType `json:"type" yaml:"type"`
	Name string     `json:"name" yaml:"name"`
}

// NewDevice returns a device of the given type, falling back to the default
// display name for that type when name is empty.
func NewDevice(t DeviceType, name string) Device {
	if name == "" {
		name = defaultName(t)
	}
	return Device{Type: t, Name: name}
}

func (d Device) String() string {
	return fmt.Sprintf("%s(%s)", d.Type, d.Name)
}

func defaultName(t DeviceType) string {
	switch t {
	case Speakerphone:
		return speakerphoneName
	case WiredHeadset:
		return wiredHeadsetName
	case Earpiece:
		return earpieceName
	case Bluetooth:
		return bluetoothName
	}
	return ""
}

// copyDevice returns a pointer to a fresh copy of d, or nil.
func copyDevice(d *Device) *Device {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func sameDevice(a, b *Device) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func containsDevice(devices []Device, d Device) bool {
	for _, candidate := range devices {
		if candidate == d {
			return true
		}
	}
	return false
}

func deviceLabel(d *Device) string {
	if d == nil {
		return "none"
	}
	return d.String()
}
