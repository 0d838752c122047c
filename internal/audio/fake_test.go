package audio

import (
	"errors"
)

// fakePlatform records every OS request the engine makes.
type fakePlatform struct {
	telephony bool
	speaker   bool

	mode      AudioMode
	muted     bool
	speakerOn bool
	focusHeld bool

	plugged   bool
	onHeadset func(bool)
	unwatched int

	bt *fakeAdapter

	calls   []string
	failAll bool
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{telephony: true, speaker: true}
}

func (f *fakePlatform) record(call string) error {
	f.calls = append(f.calls, call)
	if f.failAll {
		return errors.New("platform failure")
	}
	return nil
}

func (f *fakePlatform) HasTelephony() bool { return f.telephony }
func (f *fakePlatform) HasSpeaker() bool   { return f.speaker }

func (f *fakePlatform) Mode() AudioMode { return f.mode }
func (f *fakePlatform) SetMode(m AudioMode) error {
	f.mode = m
	return f.record("mode:" + m.String())
}

func (f *fakePlatform) MicrophoneMuted() bool { return f.muted }
func (f *fakePlatform) SetMicrophoneMute(m bool) error {
	f.muted = m
	if m {
		return f.record("mute")
	}
	return f.record("unmute")
}

func (f *fakePlatform) SpeakerphoneOn() bool { return f.speakerOn }
func (f *fakePlatform) SetSpeakerphoneOn(on bool) error {
	f.speakerOn = on
	if on {
		return f.record("speaker:on")
	}
	return f.record("speaker:off")
}

func (f *fakePlatform) RequestAudioFocus() error {
	f.focusHeld = true
	return f.record("focus:request")
}

func (f *fakePlatform) AbandonAudioFocus() error {
	f.focusHeld = false
	return f.record("focus:abandon")
}

func (f *fakePlatform) HeadsetPlugged() bool { return f.plugged }

func (f *fakePlatform) WatchHeadset(onChange func(bool)) (func(), error) {
	f.onHeadset = onChange
	return func() {
		f.onHeadset = nil
		f.unwatched++
	}, nil
}

func (f *fakePlatform) Bluetooth() BluetoothAdapter {
	if f.bt == nil {
		return nil
	}
	return f.bt
}

// plug delivers a headset event as the OS would, if anyone is listening.
func (f *fakePlatform) plug(plugged bool) {
	f.plugged = plugged
	if f.onHeadset != nil {
		f.onHeadset(plugged)
	}
}

func (f *fakePlatform) takeCalls() []string {
	calls := f.calls
	f.calls = nil
	return calls
}

type fakeAdapter struct {
	connected []BluetoothDevice
	events    BluetoothEvents
	watching  bool

	scoStarts  int
	scoStops   int
	scoAddress string
}

func (a *fakeAdapter) ConnectedHeadsets() ([]BluetoothDevice, error) {
	return append([]BluetoothDevice(nil), a.connected...), nil
}

func (a *fakeAdapter) WatchBluetooth(events BluetoothEvents) (func(), error) {
	a.events = events
	a.watching = true
	return func() {
		a.events = BluetoothEvents{}
		a.watching = false
	}, nil
}

func (a *fakeAdapter) StartSCO(address string) error {
	a.scoStarts++
	a.scoAddress = address
	return nil
}

func (a *fakeAdapter) StopSCO() error {
	a.scoStops++
	return nil
}

func (a *fakeAdapter) connect(dev BluetoothDevice) {
	if a.events.Connected != nil {
		a.events.Connected(dev)
	}
}

func (a *fakeAdapter) disconnect(dev BluetoothDevice) {
	if a.events.Disconnected != nil {
		a.events.Disconnected(dev)
	}
}

var (
	jbl = BluetoothDevice{Address: "00:11:22:33:44:55", Name: "JBL-X", Class: 0x240404}
	car = BluetoothDevice{Address: "66:77:88:99:AA:BB", Name: "Car Kit", Class: 0x200420}
	kbd = BluetoothDevice{Address: "DE:AD:BE:EF:00:01", Name: "Keyboard", Class: 0x002540}
)

// syncPost runs posted tasks immediately, standing in for the loop in
// single-goroutine tests.
func syncPost(fn func()) { fn() }

// newTestRouter wires a router to p with synchronous posting and
// synchronous listener delivery.
func newTestRouter(p Platform) *router {
	return newRouter(p, syncPost, func(l Listener, s Snapshot) { l(s) })
}

func collect(into *[]Snapshot) Listener {
	return func(s Snapshot) { *into = append(*into, s) }
}
