package audio

import (
	"fmt"
	"strings"
)

// AudioMode is the OS-level hint describing the intended use of the audio
// stack.
type AudioMode int

const (
	ModeNormal AudioMode = iota
	ModeRingtone
	ModeInCall
	ModeInCommunication
)

func (m AudioMode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeRingtone:
		return "ringtone"
	case ModeInCall:
		return "in_call"
	case ModeInCommunication:
		return "in_communication"
	}
	return fmt.Sprintf("AudioMode(%d)", int(m))
}

// MarshalText encodes the mode by name.
func (m AudioMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (m *AudioMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "normal", "":
		*m = ModeNormal
	case "ringtone":
		*m = ModeRingtone
	case "in_call":
		*m = ModeInCall
	case "in_communication":
		*m = ModeInCommunication
	default:
		return fmt.Errorf("unknown audio mode %q", string(b))
	}
	return nil
}

// SCOState reports the Bluetooth voice channel state.
type SCOState int

const (
	SCODisconnected SCOState = iota
	SCOConnecting
	SCOConnected
)

func (s SCOState) String() string {
	switch s {
	case SCODisconnected:
		return "disconnected"
	case SCOConnecting:
		return "connecting"
	case SCOConnected:
		return "connected"
	}
	return fmt.Sprintf("SCOState(%d)", int(s))
}

// Capabilities reports fixed hardware features, read once at Start.
type Capabilities interface {
	// HasTelephony reports whether the host has a voice radio, which
	// implies a built-in earpiece.
	HasTelephony() bool
	// HasSpeaker reports whether a loudspeaker output exists.
	HasSpeaker() bool
}

// AudioSession is the process-wide OS audio state the engine owns while
// active. Setters are fire-and-forget requests; a returned error is logged
// and otherwise ignored.
type AudioSession interface {
	Mode() AudioMode
	SetMode(AudioMode) error
	MicrophoneMuted() bool
	SetMicrophoneMute(muted bool) error
	SpeakerphoneOn() bool
	SetSpeakerphoneOn(on bool) error
	// RequestAudioFocus asks for transient voice-communication focus.
	RequestAudioFocus() error
	AbandonAudioFocus() error
}

// HeadsetDetector delivers wired headset plug state.
type HeadsetDetector interface {
	// HeadsetPlugged reports the current state. It is read once at start
	// because no event fires for a headset plugged in before registration.
	HeadsetPlugged() bool
	// WatchHeadset registers onChange for plug/unplug events. Callbacks may
	// arrive on any goroutine, repeated or out of order. The returned func
	// unregisters.
	WatchHeadset(onChange func(plugged bool)) (unwatch func(), err error)
}

// BluetoothDevice is a remote device as reported by the adapter.
type BluetoothDevice struct {
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name" yaml:"name"`
	// Class is the raw Class of Device value.
	Class uint32 `json:"class" yaml:"class"`
}

// BluetoothEvents receives adapter notifications. Any field may be nil.
type BluetoothEvents struct {
	Connected       func(BluetoothDevice)
	Disconnected    func(BluetoothDevice)
	SCOStateChanged func(SCOState)
}

// BluetoothAdapter is the host's Bluetooth stack.
type BluetoothAdapter interface {
	// ConnectedHeadsets lists devices already connected when the engine
	// starts; the adapter does not replay connect events for them.
	ConnectedHeadsets() ([]BluetoothDevice, error)
	WatchBluetooth(events BluetoothEvents) (unwatch func(), err error)
	// StartSCO opens the voice channel to the connected headset at
	// address. StopSCO closes whichever channel StartSCO opened.
	StartSCO(address string) error
	StopSCO() error
}

// Platform is everything the engine needs from the host. It replaces global
// access to system services so the engine can run against a fake.
type Platform interface {
	Capabilities
	AudioSession
	HeadsetDetector
	// Bluetooth returns nil when the host has no adapter.
	Bluetooth() BluetoothAdapter
}

// SessionState is the saved audio session, captured when the engine becomes
// active and restored when it leaves the active state.
type SessionState struct {
	Mode            AudioMode `json:"mode" yaml:"mode"`
	MicrophoneMuted bool      `json:"microphone_muted" yaml:"microphone_muted"`
	SpeakerphoneOn  bool      `json:"speakerphone_on" yaml:"speakerphone_on"`
}

// Bluetooth Class of Device values accepted as voice headsets. The masked
// value combines the major and minor device class fields.
const (
	classDeviceMask      uint32 = 0x1FFC
	classWearableHeadset uint32 = 0x0404
	classHandsfree       uint32 = 0x0408
	classCarAudio        uint32 = 0x0420
)

// IsHeadsetClass reports whether a Class of Device value is a handsfree,
// wearable headset or car audio device.
func IsHeadsetClass(class uint32) bool {
	switch class & classDeviceMask {
	case classWearableHeadset, classHandsfree, classCarAudio:
		return true
	}
	return false
}
