// Package sim provides an in-memory audio platform whose hardware is driven
// by method calls or by a YAML scenario. It records every request the
// routing engine makes so behavior can be inspected after the fact.
package sim

import (
	"fmt"
	"sync"

	"audioroute/internal/audio"
)

// Hardware describes the simulated host.
type Hardware struct {
	Telephony    bool                    `yaml:"telephony"`
	Speaker      bool                    `yaml:"speaker"`
	Bluetooth    bool                    `yaml:"bluetooth"`
	WiredHeadset bool                    `yaml:"wired_headset"`
	Headsets     []audio.BluetoothDevice `yaml:"headsets"`
}

// Platform is a goroutine-safe fake of the host audio stack.
type Platform struct {
	mu sync.Mutex

	hw        Hardware
	session   audio.SessionState
	focusHeld bool
	scoActive bool

	headsetWatchers map[int]func(bool)
	btWatchers      map[int]audio.BluetoothEvents
	nextWatcher     int

	requests []string
}

var _ audio.Platform = (*Platform)(nil)

// New returns a platform with the given hardware and initial session.
func New(hw Hardware, session audio.SessionState) *Platform {
	hw.Headsets = append([]audio.BluetoothDevice(nil), hw.Headsets...)
	return &Platform{
		hw:              hw,
		session:         session,
		headsetWatchers: make(map[int]func(bool)),
		btWatchers:      make(map[int]audio.BluetoothEvents),
	}
}

func (p *Platform) record(format string, args ...any) {
	p.requests = append(p.requests, fmt.Sprintf(format, args...))
}

func (p *Platform) HasTelephony() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hw.Telephony
}

func (p *Platform) HasSpeaker() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hw.Speaker
}

func (p *Platform) Mode() audio.AudioMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.Mode
}

func (p *Platform) SetMode(m audio.AudioMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.Mode = m
	p.record("mode %s", m)
	return nil
}

func (p *Platform) MicrophoneMuted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.MicrophoneMuted
}

func (p *Platform) SetMicrophoneMute(muted bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.MicrophoneMuted = muted
	p.record("microphone muted=%t", muted)
	return nil
}

func (p *Platform) SpeakerphoneOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session.SpeakerphoneOn
}

func (p *Platform) SetSpeakerphoneOn(on bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session.SpeakerphoneOn = on
	p.record("speakerphone on=%t", on)
	return nil
}

func (p *Platform) RequestAudioFocus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focusHeld = true
	p.record("focus request")
	return nil
}

func (p *Platform) AbandonAudioFocus() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.focusHeld = false
	p.record("focus abandon")
	return nil
}

func (p *Platform) HeadsetPlugged() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hw.WiredHeadset
}

func (p *Platform) WatchHeadset(onChange func(bool)) (func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextWatcher
	p.nextWatcher++
	p.headsetWatchers[id] = onChange
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.headsetWatchers, id)
	}, nil
}

// Bluetooth returns nil when the simulated host has no adapter.
func (p *Platform) Bluetooth() audio.BluetoothAdapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.hw.Bluetooth {
		return nil
	}
	return (*adapter)(p)
}

// adapter is the Bluetooth view of a Platform.
type adapter Platform

func (a *adapter) ConnectedHeadsets() ([]audio.BluetoothDevice, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]audio.BluetoothDevice(nil), a.hw.Headsets...), nil
}

func (a *adapter) WatchBluetooth(events audio.BluetoothEvents) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextWatcher
	a.nextWatcher++
	a.btWatchers[id] = events
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.btWatchers, id)
	}, nil
}

func (a *adapter) StartSCO(address string) error {
	a.mu.Lock()
	a.scoActive = true
	(*Platform)(a).record("sco start %s", address)
	watchers := a.bluetoothWatchers()
	a.mu.Unlock()

	for _, w := range watchers {
		if w.SCOStateChanged != nil {
			w.SCOStateChanged(audio.SCOConnected)
		}
	}
	return nil
}

func (a *adapter) StopSCO() error {
	a.mu.Lock()
	a.scoActive = false
	(*Platform)(a).record("sco stop")
	watchers := a.bluetoothWatchers()
	a.mu.Unlock()

	for _, w := range watchers {
		if w.SCOStateChanged != nil {
			w.SCOStateChanged(audio.SCODisconnected)
		}
	}
	return nil
}

func (a *adapter) bluetoothWatchers() []audio.BluetoothEvents {
	out := make([]audio.BluetoothEvents, 0, len(a.btWatchers))
	for _, w := range a.btWatchers {
		out = append(out, w)
	}
	return out
}

// PlugHeadset changes the wired headset state and notifies watchers, even
// if the state did not change.
func (p *Platform) PlugHeadset(plugged bool) {
	p.mu.Lock()
	p.hw.WiredHeadset = plugged
	watchers := make([]func(bool), 0, len(p.headsetWatchers))
	for _, w := range p.headsetWatchers {
		watchers = append(watchers, w)
	}
	p.mu.Unlock()

	for _, w := range watchers {
		w(plugged)
	}
}

// ConnectBluetooth adds dev to the connected set and raises a connect
// event. Non-headset devices are reported too; filtering is the engine's
// job.
func (p *Platform) ConnectBluetooth(dev audio.BluetoothDevice) {
	p.mu.Lock()
	p.hw.Headsets = append(p.hw.Headsets, dev)
	watchers := (*adapter)(p).bluetoothWatchers()
	p.mu.Unlock()

	for _, w := range watchers {
		if w.Connected != nil {
			w.Connected(dev)
		}
	}
}

// DisconnectBluetooth removes dev and raises a disconnect event, whether or
// not it was connected.
func (p *Platform) DisconnectBluetooth(dev audio.BluetoothDevice) {
	p.mu.Lock()
	kept := p.hw.Headsets[:0]
	for _, h := range p.hw.Headsets {
		if h.Address != dev.Address {
			kept = append(kept, h)
		}
	}
	p.hw.Headsets = kept
	p.scoActive = false
	watchers := (*adapter)(p).bluetoothWatchers()
	p.mu.Unlock()

	for _, w := range watchers {
		if w.Disconnected != nil {
			w.Disconnected(dev)
		}
	}
}

// Session returns the current simulated audio session.
func (p *Platform) Session() audio.SessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// FocusHeld reports whether audio focus is currently granted.
func (p *Platform) FocusHeld() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focusHeld
}

// SCOActive reports whether the SCO channel is up.
func (p *Platform) SCOActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scoActive
}

// Requests returns and clears the recorded OS requests.
func (p *Platform) Requests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.requests
	p.requests = nil
	return out
}

// Watchers reports how many headset and Bluetooth registrations are live.
func (p *Platform) Watchers() (headset, bluetooth int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.headsetWatchers), len(p.btWatchers)
}
