package platform

import (
	"fmt"
	"io"

	"github.com/gordonklaus/portaudio"
)

// OutputDevice is a playback-capable device as PortAudio sees it.
type OutputDevice struct {
	Index      int
	Name       string
	HostAPI    string
	Channels   int
	SampleRate float64
	Default    bool
}

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with a Terminate() call.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize().
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// OutputDevices returns every device with at least one output channel.
// PortAudio must be initialized.
func OutputDevices() ([]OutputDevice, error) {
	devices, err := paDevices()
	if err != nil {
		return nil, err
	}
	var defaultName string
	if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultName = def.Name
	}
	return outputsFrom(devices, defaultName), nil
}

func outputsFrom(devices []*portaudio.DeviceInfo, defaultName string) []OutputDevice {
	var out []OutputDevice
	for i, device := range devices {
		if device == nil || device.MaxOutputChannels <= 0 {
			continue
		}
		d := OutputDevice{
			Index:      i,
			Name:       device.Name,
			Channels:   device.MaxOutputChannels,
			SampleRate: device.DefaultSampleRate,
			Default:    device.Name == defaultName,
		}
		if device.HostApi != nil {
			d.HostAPI = device.HostApi.Name
		}
		out = append(out, d)
	}
	return out
}

// HasOutput reports whether PortAudio sees any playback device. Errors
// count as no device.
func HasOutput() bool {
	if err := Initialize(); err != nil {
		return false
	}
	defer Terminate()
	outputs, err := OutputDevices()
	return err == nil && len(outputs) > 0
}

// ListOutputs prints every output device.
func ListOutputs(w io.Writer, outputs []OutputDevice) {
	fmt.Fprintf(w, "\nOutput Devices\n\n")
	if len(outputs) == 0 {
		fmt.Fprintf(w, "    (none)\n\n")
		return
	}
	for _, d := range outputs {
		marker := ""
		if d.Default {
			marker = " [default]"
		}
		fmt.Fprintf(w, "[%d] %s%s\n", d.Index, d.Name, marker)
		fmt.Fprintf(w, "    Host API: %s, Output channels: %d\n", d.HostAPI, d.Channels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n", d.SampleRate)
		fmt.Fprintln(w)
	}
}

// paDevices returns all available PortAudio devices.
func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	return devices, nil
}
