package platform

import (
	"bytes"
	"testing"

	"github.com/gordonklaus/portaudio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputsFrom(t *testing.T) {
	alsa := &portaudio.HostApiInfo{Name: "ALSA"}
	devices := []*portaudio.DeviceInfo{
		{Name: "USB Mic", MaxInputChannels: 1},
		{Name: "Speakers", MaxOutputChannels: 2, DefaultSampleRate: 48000, HostApi: alsa},
		nil,
		{Name: "HDMI", MaxOutputChannels: 8, DefaultSampleRate: 44100},
	}

	outputs := outputsFrom(devices, "Speakers")
	require.Len(t, outputs, 2)
	assert.Equal(t, OutputDevice{
		Index: 1, Name: "Speakers", HostAPI: "ALSA", Channels: 2, SampleRate: 48000, Default: true,
	}, outputs[0])
	assert.Equal(t, 3, outputs[1].Index)
	assert.False(t, outputs[1].Default)
	assert.Empty(t, outputs[1].HostAPI)
}

func TestListOutputs(t *testing.T) {
	var buf bytes.Buffer
	ListOutputs(&buf, []OutputDevice{{Index: 1, Name: "Speakers", HostAPI: "ALSA", Channels: 2, SampleRate: 48000, Default: true}})
	assert.Contains(t, buf.String(), "[1] Speakers [default]")
	assert.Contains(t, buf.String(), "48000 Hz")

	buf.Reset()
	ListOutputs(&buf, nil)
	assert.Contains(t, buf.String(), "(none)")
}
