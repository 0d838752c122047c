package audio

import (
	"fmt"

	applog "audioroute/internal/log"
)

// LifecycleState is the routing engine's state.
type LifecycleState int

const (
	Stopped LifecycleState = iota
	Started
	Active
)

func (s LifecycleState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case Active:
		return "active"
	}
	return fmt.Sprintf("LifecycleState(%d)", int(s))
}

// MarshalText encodes the state by name.
func (s LifecycleState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is the device inventory and selection handed to listeners. It is
// a copy; listeners may keep or modify it freely.
type Snapshot struct {
	State        LifecycleState `json:"state"`
	Devices      []Device       `json:"devices"`
	Selected     *Device        `json:"selected,omitempty"`
	UserSelected *Device        `json:"user_selected,omitempty"`
}

// Listener receives a Snapshot after every inventory rebuild.
type Listener func(Snapshot)

// router is the routing state machine. It must only be used from its
// loop; Engine is the public, goroutine-safe front.
type router struct {
	platform Platform
	notify   func(Listener, Snapshot)

	state     LifecycleState
	listener  Listener
	bluetooth *bluetoothLink
	signals   *hardwareSignals

	hw           HardwareState
	devices      []Device
	userSelected *Device
	selected     *Device
	applied      *Device
	saved        *SessionState
}

func newRouter(p Platform, post func(func()), notify func(Listener, Snapshot)) *router {
	r := &router{
		platform: p,
		notify:   notify,
	}
	r.bluetooth = newBluetoothLink(p.Bluetooth(), post, r.onBluetoothChange)
	r.signals = newHardwareSignals(p, post, r.onHeadsetChange)
	return r
}

func (r *router) start(listener Listener) {
	if r.state != Stopped {
		applog.Debugf("router: start ignored, already %s", r.state)
		return
	}
	r.listener = listener
	r.hw.Telephony = r.platform.HasTelephony()
	r.hw.Speaker = r.platform.HasSpeaker()
	r.bluetooth.start()
	r.signals.start()
	r.state = Started

	applog.WithFields(applog.Fields{
		"function":  "router.start",
		"telephony": r.hw.Telephony,
		"speaker":   r.hw.Speaker,
	}).Info("Audio routing started")

	// A headset plugged in before registration never produces an event.
	r.hw.WiredHeadset = r.signals.refresh()
	r.rebuild()
}

func (r *router) activate() {
	switch r.state {
	case Stopped:
		illegalTransition("activate", r.state)
	case Started:
		if r.saved != nil {
			illegalTransition("capture session twice", r.state)
		}
		saved := r.captureSession()
		r.saved = &saved

		r.request("unmute microphone", r.platform.SetMicrophoneMute(false))
		r.request("request audio focus", r.platform.RequestAudioFocus())
		r.request("set mode", r.platform.SetMode(ModeInCommunication))
		r.state = Active
		r.applied = nil

		applog.WithFields(applog.Fields{
			"function": "router.activate",
			"saved":    saved,
			"selected": deviceLabel(r.selected),
		}).Info("Audio routing activated")

		if r.selected != nil {
			r.applySelected()
		}
	case Active:
		if r.selected != nil && !sameDevice(r.selected, r.applied) {
			r.applySelected()
		}
	}
}

func (r *router) deactivate() {
	switch r.state {
	case Stopped:
		illegalTransition("deactivate", r.state)
	case Started:
		applog.Debugf("router: deactivate ignored, not active")
	case Active:
		r.leaveActive()
	}
}

// leaveActive runs the whole restore sequence. Each step is attempted even
// if an earlier one reported an error.
func (r *router) leaveActive() {
	defer func() {
		r.saved = nil
		r.applied = nil
		r.state = Started
	}()

	r.bluetooth.deactivate()
	if r.saved != nil {
		r.restoreSession(*r.saved)
	}
	r.request("abandon audio focus", r.platform.AbandonAudioFocus())

	applog.WithFields(applog.Fields{
		"function": "router.deactivate",
		"restored": r.saved,
	}).Info("Audio routing deactivated")
}

func (r *router) stop() {
	switch r.state {
	case Stopped:
		return
	case Active:
		r.leaveActive()
		fallthrough
	case Started:
		r.signals.stop()
		r.bluetooth.stop()
		r.hw.BluetoothHeadset = nil
		r.hw.WiredHeadset = false
		r.listener = nil
		r.state = Stopped
		applog.Infof("router: audio routing stopped")
	}
}

// selectDevice records a user override; nil returns to automatic
// selection.
func (r *router) selectDevice(d *Device) {
	r.userSelected = copyDevice(d)
	applog.WithFields(applog.Fields{
		"function": "router.selectDevice",
		"device":   deviceLabel(d),
	}).Info("User device selection")
	if r.state != Stopped {
		r.rebuild()
	}
}

func (r *router) selectedDevice() *Device {
	return copyDevice(r.selected)
}

func (r *router) audioDevices() []Device {
	return append([]Device(nil), r.devices...)
}

func (r *router) snapshot() Snapshot {
	return Snapshot{
		State:        r.state,
		Devices:      r.audioDevices(),
		Selected:     copyDevice(r.selected),
		UserSelected: copyDevice(r.userSelected),
	}
}

func (r *router) onHeadsetChange(plugged bool) {
	r.hw.WiredHeadset = plugged
	if r.state != Stopped {
		r.rebuild()
	}
}

// onBluetoothChange rebuilds after a headset connects or disconnects. A
// newly connected headset drops any user override so Bluetooth takes the
// route.
func (r *router) onBluetoothChange(newHeadset bool) {
	if r.state == Stopped {
		return
	}
	if newHeadset && r.userSelected != nil {
		applog.WithFields(applog.Fields{
			"function": "router.onBluetoothChange",
			"device":   r.userSelected.String(),
		}).Info("Bluetooth headset connected, clearing user selection")
		r.userSelected = nil
	}
	r.rebuild()
}

// rebuild recomputes the inventory from scratch, resolves the selection,
// applies it when active, and notifies the listener.
func (r *router) rebuild() {
	r.hw.BluetoothHeadset = r.bluetooth.device()
	r.devices = buildInventory(r.hw)

	sel := resolveSelection(r.devices, r.userSelected, r.selected)
	if r.userSelected != nil && sel.UserSelected == nil {
		applog.WithFields(applog.Fields{
			"function": "router.rebuild",
			"device":   r.userSelected.String(),
		}).Info("User selected device no longer available")
	}
	r.userSelected = sel.UserSelected
	r.selected = sel.Selected

	if sel.Changed {
		applog.WithFields(applog.Fields{
			"function": "router.rebuild",
			"selected": deviceLabel(r.selected),
			"devices":  len(r.devices),
		}).Info("Selected audio device changed")
	}

	if r.state == Active && r.selected != nil && !sameDevice(r.selected, r.applied) {
		r.applySelected()
	}

	if r.listener != nil && r.notify != nil {
		r.notify(r.listener, r.snapshot())
	}
}

// applySelected routes audio to the selected device.
func (r *router) applySelected() {
	d := *r.selected
	switch d.Type {
	case Bluetooth:
		r.request("disable speakerphone", r.platform.SetSpeakerphoneOn(false))
		r.bluetooth.activate()
	case Earpiece, WiredHeadset:
		r.request("disable speakerphone", r.platform.SetSpeakerphoneOn(false))
		r.bluetooth.deactivate()
	case Speakerphone:
		r.request("enable speakerphone", r.platform.SetSpeakerphoneOn(true))
		r.bluetooth.deactivate()
	}
	r.applied = &d
	applog.Debugf("router: routed audio to %s", d)
}

func (r *router) captureSession() SessionState {
	return SessionState{
		Mode:            r.platform.Mode(),
		MicrophoneMuted: r.platform.MicrophoneMuted(),
		SpeakerphoneOn:  r.platform.SpeakerphoneOn(),
	}
}

func (r *router) restoreSession(s SessionState) {
	r.request("restore mode", r.platform.SetMode(s.Mode))
	r.request("restore microphone mute", r.platform.SetMicrophoneMute(s.MicrophoneMuted))
	r.request("restore speakerphone", r.platform.SetSpeakerphoneOn(s.SpeakerphoneOn))
}

// request logs a failed OS request. The engine carries on regardless.
func (r *router) request(what string, err error) {
	if err == nil {
		return
	}
	applog.WithFields(applog.Fields{
		"request": what,
		"error":   err.Error(),
	}).Warn("Platform audio request failed")
}
