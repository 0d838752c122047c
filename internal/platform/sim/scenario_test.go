package sim

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audioroute/internal/audio"
)

const callScenario = `
name: call with headset churn
hardware:
  telephony: true
  speaker: true
  bluetooth: true
session:
  mode: ringtone
  microphone_muted: true
steps:
  - action: start
  - action: activate
  - action: plug_headset
  - action: bt_connect
    device: {address: "00:11:22:33:44:55", name: JBL-X, class: 0x240404}
  - action: select
    select: {type: speaker}
  - action: auto
  - action: bt_disconnect
    device: {address: "00:11:22:33:44:55", name: JBL-X}
  - action: unplug_headset
  - action: deactivate
  - action: stop
`

func TestParseScenario(t *testing.T) {
	sc, err := ParseScenario([]byte(callScenario))
	require.NoError(t, err)

	assert.Equal(t, "call with headset churn", sc.Name)
	assert.True(t, sc.Hardware.Bluetooth)
	assert.Equal(t, audio.ModeRingtone, sc.Session.Mode)
	assert.True(t, sc.Session.MicrophoneMuted)
	require.Len(t, sc.Steps, 10)
	assert.Equal(t, uint32(0x240404), sc.Steps[3].Device.Class)
	assert.Equal(t, audio.Speakerphone, sc.Steps[4].Select.Type)
}

func TestParseScenarioRejectsBadSteps(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown action", "steps: [{action: reboot}]"},
		{"connect without device", "steps: [{action: bt_connect}]"},
		{"select without target", "steps: [{action: select}]"},
		{"bad device type", "steps: [{action: select, select: {type: hdmi}}]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}

	_, err := ParseScenario([]byte("steps: [{action: reboot}]"))
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestLoadScenario(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.yaml")
	require.NoError(t, os.WriteFile(path, []byte(callScenario), 0o644))

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Len(t, sc.Steps, 10)

	_, err = LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestScenarioRun(t *testing.T) {
	sc, err := ParseScenario([]byte(callScenario))
	require.NoError(t, err)

	p := sc.Platform()
	e := audio.NewEngine(p)
	defer e.Close()

	type result struct {
		action   string
		state    audio.LifecycleState
		selected audio.DeviceType
	}
	var results []result
	err = sc.Run(e, p, nil, func(step Step, snap audio.Snapshot) {
		r := result{action: step.Action, state: snap.State}
		if snap.Selected != nil {
			r.selected = snap.Selected.Type
		}
		results = append(results, r)
	})
	require.NoError(t, err)

	assert.Equal(t, []result{
		{ActionStart, audio.Started, audio.Earpiece},
		{ActionActivate, audio.Active, audio.Earpiece},
		{ActionPlugHeadset, audio.Active, audio.WiredHeadset},
		{ActionBTConnect, audio.Active, audio.Bluetooth},
		{ActionSelect, audio.Active, audio.Speakerphone},
		{ActionAuto, audio.Active, audio.Bluetooth},
		{ActionBTDisconnect, audio.Active, audio.WiredHeadset},
		{ActionUnplugHeadset, audio.Active, audio.Earpiece},
		{ActionDeactivate, audio.Started, audio.Earpiece},
		{ActionStop, audio.Stopped, audio.Earpiece},
	}, results)

	assert.Equal(t, audio.SessionState{Mode: audio.ModeRingtone, MicrophoneMuted: true}, p.Session())
	assert.False(t, p.FocusHeld())
	assert.False(t, p.SCOActive())

	headset, bluetooth := p.Watchers()
	assert.Zero(t, headset)
	assert.Zero(t, bluetooth)
}

func TestScenarioRunStopsAtIllegalStep(t *testing.T) {
	sc := &Scenario{
		Hardware: Hardware{Speaker: true},
		Steps:    []Step{{Action: ActionActivate}},
	}
	p := sc.Platform()
	e := audio.NewEngine(p)
	defer e.Close()

	assert.Panics(t, func() { _ = sc.Run(e, p, nil, nil) })
}
