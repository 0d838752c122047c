package config

import "time"

// Defaults for the routing daemon. Zero values in a config file fall back to
// these only where noted in LoadConfig; everything else is taken literally.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultJackFile = "/run/audioroute/headset" // Written by the jack-sense udev rule.

	DefaultBluetoothAdapter = "hci0"
	DefaultVoiceProfile     = "headset_head_unit" // HFP/HSP, carries the SCO channel.
	DefaultMediaProfile     = "a2dp_sink"

	DefaultPulseApplication = "audioroute"

	DefaultWebSocketAddr   = ":8080"
	DefaultUDPTarget       = "127.0.0.1:9090"
	DefaultUDPSendInterval = 0 * time.Millisecond // Send on every snapshot.

	// Speaker probing modes for HardwareConfig.Speaker.
	SpeakerAuto   = "auto" // Any portaudio output device counts as a speaker.
	SpeakerAlways = "always"
	SpeakerNever  = "never"
)

// HardwareConfig describes what the host has that cannot be probed.
type HardwareConfig struct {
	Telephony bool   `yaml:"telephony"` // The host has an earpiece.
	Speaker   string `yaml:"speaker"`   // auto, always or never.
	JackFile  string `yaml:"jack_file"` // File whose content is 1 while a headset is plugged.
}

// BluetoothConfig selects the BlueZ adapter and card profiles.
type BluetoothConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Adapter      string `yaml:"adapter"`
	VoiceProfile string `yaml:"voice_profile"` // Card profile that opens SCO.
	MediaProfile string `yaml:"media_profile"` // Card profile restored when SCO closes.
}

// PulseConfig names the sinks and source the platform drives.
type PulseConfig struct {
	Application  string `yaml:"application"`
	Server       string `yaml:"server,omitempty"`
	SpeakerSink  string `yaml:"speaker_sink"`  // Empty keeps the server default.
	EarpieceSink string `yaml:"earpiece_sink"` // Used when the speaker is off.
	Source       string `yaml:"source"`        // Microphone; empty uses the default source.
}

// TransportConfig holds settings for publishing snapshots.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddr    string        `yaml:"websocket_addr"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"` // Minimum gap between packets.
}

// TUIConfig controls the terminal device picker.
type TUIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Hardware: HardwareConfig{
			Telephony: false,
			Speaker:   SpeakerAuto,
			JackFile:  DefaultJackFile,
		},
		Bluetooth: BluetoothConfig{
			Enabled:      true,
			Adapter:      DefaultBluetoothAdapter,
			VoiceProfile: DefaultVoiceProfile,
			MediaProfile: DefaultMediaProfile,
		},
		Pulse: PulseConfig{
			Application: DefaultPulseApplication,
		},
		Transport: TransportConfig{
			WebSocketEnabled: false,
			WebSocketAddr:    DefaultWebSocketAddr,
			UDPEnabled:       false,
			UDPTargetAddress: DefaultUDPTarget,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
