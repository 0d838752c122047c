package audio

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterStartScenarioA(t *testing.T) {
	p := newFakePlatform()
	r := newTestRouter(p)
	var got []Snapshot

	r.start(collect(&got))

	require.Len(t, got, 1, "start performs one forced rebuild")
	assert.Equal(t, []Device{NewDevice(Earpiece, ""), NewDevice(Speakerphone, "")}, got[0].Devices)
	require.NotNil(t, got[0].Selected)
	assert.Equal(t, Earpiece, got[0].Selected.Type)
	assert.Equal(t, Started, r.state)
	assert.Empty(t, p.calls, "starting does not touch the audio session")
}

func TestRouterStartSeesPrePluggedHeadset(t *testing.T) {
	p := newFakePlatform()
	p.plugged = true
	r := newTestRouter(p)
	var got []Snapshot

	r.start(collect(&got))

	require.Len(t, got, 1)
	assert.Equal(t, []Device{NewDevice(WiredHeadset, ""), NewDevice(Speakerphone, "")}, got[0].Devices)
	assert.Equal(t, WiredHeadset, got[0].Selected.Type)
}

func TestRouterStartStopIdempotent(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{}
	r := newTestRouter(p)
	var got []Snapshot

	r.stop()
	assert.Equal(t, Stopped, r.state)

	r.start(collect(&got))
	r.start(collect(&got))
	assert.Len(t, got, 1)

	r.stop()
	r.stop()
	assert.Equal(t, Stopped, r.state)
	assert.Equal(t, 1, p.unwatched)
	assert.False(t, p.bt.watching)
	assert.Empty(t, p.calls)
}

func TestRouterIllegalTransitions(t *testing.T) {
	r := newTestRouter(newFakePlatform())

	assertIllegal := func(fn func()) {
		t.Helper()
		defer func() {
			rec := recover()
			require.NotNil(t, rec, "expected panic")
			err, ok := rec.(error)
			require.True(t, ok)
			assert.True(t, errors.Is(err, ErrIllegalTransition))
		}()
		fn()
	}

	assertIllegal(r.deactivate)
	assertIllegal(r.activate)
	assert.Equal(t, Stopped, r.state)
}

func TestRouterActivateSnapshotRoundTrip(t *testing.T) {
	p := newFakePlatform()
	p.mode = ModeRingtone
	p.muted = true
	p.speakerOn = true
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))

	r.activate()
	assert.Equal(t, Active, r.state)
	assert.Equal(t, []string{
		"unmute",
		"focus:request",
		"mode:in_communication",
		"speaker:off",
	}, p.takeCalls())
	assert.False(t, p.muted)
	assert.True(t, p.focusHeld)
	assert.Equal(t, ModeInCommunication, p.mode)
	assert.Equal(t, &SessionState{Mode: ModeRingtone, MicrophoneMuted: true, SpeakerphoneOn: true}, r.saved)

	r.deactivate()
	assert.Equal(t, Started, r.state)
	assert.Equal(t, ModeRingtone, p.mode)
	assert.True(t, p.muted)
	assert.True(t, p.speakerOn)
	assert.False(t, p.focusHeld)
	assert.Nil(t, r.saved)

	// A second deactivate while started is a no-op.
	p.takeCalls()
	r.deactivate()
	assert.Empty(t, p.calls)
}

func TestRouterActivateReentrant(t *testing.T) {
	p := newFakePlatform()
	r := newTestRouter(p)
	r.start(nil)
	r.activate()
	p.takeCalls()

	r.activate()
	assert.Empty(t, p.calls, "unchanged selection is not re-applied")

	// Change the selection behind the router's back, as a rebuild would
	// between activations.
	speaker := NewDevice(Speakerphone, "")
	r.selected = &speaker
	r.activate()
	assert.Equal(t, []string{"speaker:on"}, p.takeCalls())
	assert.Equal(t, &SessionState{}, r.saved, "snapshot is not retaken")
}

func TestRouterScenarioBBluetoothConnectsWhileActive(t *testing.T) {
	p := newFakePlatform()
	p.telephony = false
	p.bt = &fakeAdapter{}
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))
	r.activate()
	require.True(t, p.speakerOn)
	p.takeCalls()

	p.bt.connect(jbl)

	last := got[len(got)-1]
	assert.Equal(t, []Device{NewDevice(Bluetooth, "JBL-X"), NewDevice(Speakerphone, "")}, last.Devices)
	assert.Equal(t, NewDevice(Bluetooth, "JBL-X"), *last.Selected)
	assert.Equal(t, 1, p.bt.scoStarts)
	assert.False(t, p.speakerOn)
	assert.Equal(t, []string{"speaker:off"}, p.takeCalls())

	p.bt.disconnect(jbl)
	last = got[len(got)-1]
	assert.Equal(t, Speakerphone, last.Selected.Type)
	assert.True(t, p.speakerOn)
}

func TestRouterScenarioCUserPicksSpeaker(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{connected: []BluetoothDevice{jbl}}
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))
	require.Equal(t, Bluetooth, got[0].Selected.Type)

	speaker := NewDevice(Speakerphone, "")
	r.selectDevice(&speaker)
	last := got[len(got)-1]
	assert.Equal(t, speaker, *last.Selected)
	assert.Equal(t, speaker, *last.UserSelected)

	// Hardware noise does not dislodge the override.
	p.plug(true)
	p.plug(false)
	assert.Equal(t, speaker, *r.selectedDevice())

	r.selectDevice(nil)
	assert.Equal(t, Bluetooth, r.selectedDevice().Type)
	assert.Nil(t, got[len(got)-1].UserSelected)
}

func TestRouterScenarioDUnplugSelectedHeadset(t *testing.T) {
	p := newFakePlatform()
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))
	r.activate()

	p.plug(true)
	headset := NewDevice(WiredHeadset, "")
	r.selectDevice(&headset)
	require.Equal(t, headset, *r.selectedDevice())
	require.NotNil(t, r.userSelected)

	p.plug(false)
	last := got[len(got)-1]
	assert.Nil(t, r.userSelected)
	assert.Nil(t, last.UserSelected)
	assert.NotContains(t, last.Devices, headset)
	assert.Equal(t, Earpiece, last.Selected.Type)
	assert.False(t, p.speakerOn)
}

func TestRouterBluetoothConnectClearsEarpieceOverride(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{}
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))
	r.activate()

	earpiece := NewDevice(Earpiece, "")
	r.selectDevice(&earpiece)
	require.Equal(t, earpiece, *r.selectedDevice())
	p.takeCalls()

	p.bt.connect(jbl)

	bt := NewDevice(Bluetooth, "JBL-X")
	assert.Equal(t, bt, *r.selectedDevice())
	assert.Nil(t, r.userSelected)
	last := got[len(got)-1]
	assert.Nil(t, last.UserSelected)
	assert.Equal(t, bt, *last.Selected)
	assert.Equal(t, 1, p.bt.scoStarts)
	assert.Equal(t, jbl.Address, p.bt.scoAddress)
	assert.Equal(t, []string{"speaker:off"}, p.takeCalls())
}

func TestRouterDuplicateConnectKeepsOverride(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{}
	r := newTestRouter(p)
	r.start(nil)
	p.bt.connect(jbl)

	speaker := NewDevice(Speakerphone, "")
	r.selectDevice(&speaker)
	p.bt.connect(jbl)

	assert.Equal(t, speaker, *r.selectedDevice(), "same headset again is not a new connection")
	require.NotNil(t, r.userSelected)
}

func TestRouterDuplicateSignalsAreHarmless(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{}
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))

	p.bt.connect(jbl)
	p.bt.connect(jbl)
	p.plug(true)
	p.plug(true)

	n := len(got)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, got[n-2], got[n-1])
}

func TestRouterRedundantSignalsSendNoRequests(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{}
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))
	p.bt.connect(jbl)
	r.activate()
	require.Equal(t, 1, p.bt.scoStarts)
	p.takeCalls()
	before := len(got)

	p.bt.connect(jbl)
	p.plug(true)
	p.plug(true)
	r.activate()

	assert.Equal(t, 1, p.bt.scoStarts)
	assert.Equal(t, 0, p.bt.scoStops)
	assert.Empty(t, p.takeCalls())
	assert.Len(t, got, before+3, "every signal still notifies")
	assert.Equal(t, Bluetooth, got[len(got)-1].Selected.Type)
}

func TestRouterSCOFollowsTrackedHeadset(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{connected: []BluetoothDevice{kbd, car, jbl}}
	r := newTestRouter(p)
	r.start(nil)
	r.activate()

	assert.Equal(t, NewDevice(Bluetooth, "Car Kit"), *r.selectedDevice())
	assert.Equal(t, car.Address, p.bt.scoAddress)

	// Another headset takes over the link; the old channel is released first.
	p.bt.connect(jbl)
	assert.Equal(t, NewDevice(Bluetooth, "JBL-X"), *r.selectedDevice())
	assert.Equal(t, 2, p.bt.scoStarts)
	assert.Equal(t, 1, p.bt.scoStops)
	assert.Equal(t, jbl.Address, p.bt.scoAddress)
}

func TestRouterDropsEventsFromEarlierRegistration(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{}
	var queued []func()
	r := newRouter(p, func(fn func()) { queued = append(queued, fn) }, func(l Listener, s Snapshot) { l(s) })
	r.start(nil)

	// Events arrive but are still queued when the router restarts.
	p.plug(true)
	p.bt.connect(jbl)
	r.stop()
	p.plugged = false
	r.start(nil)

	for _, fn := range queued {
		fn()
	}
	assert.False(t, r.hw.WiredHeadset)
	assert.Nil(t, r.bluetooth.device())
	assert.Equal(t, []Device{NewDevice(Earpiece, ""), NewDevice(Speakerphone, "")}, r.audioDevices())
}

func TestRouterStopWhileActiveRestores(t *testing.T) {
	p := newFakePlatform()
	p.bt = &fakeAdapter{connected: []BluetoothDevice{jbl}}
	p.mode = ModeNormal
	r := newTestRouter(p)
	r.start(nil)
	r.activate()
	require.Equal(t, 1, p.bt.scoStarts)

	r.stop()
	assert.Equal(t, Stopped, r.state)
	assert.Equal(t, 1, p.bt.scoStops)
	assert.Equal(t, ModeNormal, p.mode)
	assert.False(t, p.focusHeld)
	assert.False(t, p.bt.watching)
	assert.Nil(t, r.listener)
}

func TestRouterPlatformFailuresAreAbsorbed(t *testing.T) {
	p := newFakePlatform()
	p.failAll = true
	r := newTestRouter(p)
	r.start(nil)

	assert.NotPanics(t, r.activate)
	assert.Equal(t, Active, r.state)
	assert.NotPanics(t, r.deactivate)
	assert.Equal(t, Started, r.state)
	assert.Contains(t, p.calls, "focus:abandon", "restore continues past failures")
}

func TestRouterEmptyInventory(t *testing.T) {
	p := newFakePlatform()
	p.telephony = false
	p.speaker = false
	r := newTestRouter(p)
	var got []Snapshot
	r.start(collect(&got))
	r.activate()

	require.Len(t, got, 1)
	assert.Empty(t, got[0].Devices)
	assert.Nil(t, got[0].Selected)
	assert.Nil(t, r.selectedDevice())
}

func TestRouterQueriesReturnCopies(t *testing.T) {
	r := newTestRouter(newFakePlatform())
	r.start(nil)

	sel := r.selectedDevice()
	sel.Name = "changed"
	devices := r.audioDevices()
	devices[0].Name = "changed"

	assert.Equal(t, "Earpiece", r.selectedDevice().Name)
	assert.Equal(t, "Earpiece", r.audioDevices()[0].Name)
}

func TestRouterSelectWhileStopped(t *testing.T) {
	p := newFakePlatform()
	r := newTestRouter(p)
	speaker := NewDevice(Speakerphone, "")

	r.selectDevice(&speaker)
	assert.Nil(t, r.selectedDevice(), "no inventory until started")

	r.start(nil)
	assert.Equal(t, speaker, *r.selectedDevice())
}
