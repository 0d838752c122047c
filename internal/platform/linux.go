// Package platform binds the routing engine to a Linux desktop audio stack:
// BlueZ over the system bus for Bluetooth headsets, a PulseAudio-compatible
// server for the session, a jack state file for wired headsets and
// PortAudio for speaker detection.
package platform

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"audioroute/internal/audio"
	"audioroute/internal/config"
	applog "audioroute/internal/log"
)

// Linux is an audio.Platform assembled from the host's services.
type Linux struct {
	*PulseSession
	*JackDetector

	telephony bool
	speaker   bool
	bluetooth *BlueZ
}

var _ audio.Platform = (*Linux)(nil)

// Open connects to the host services named in cfg. A missing Bluetooth
// adapter or system bus is not an error; the platform simply reports no
// adapter.
func Open(cfg *config.Config) (*Linux, error) {
	session, err := DialPulse(cfg.Pulse)
	if err != nil {
		return nil, err
	}

	p := &Linux{
		PulseSession: session,
		JackDetector: NewJackDetector(cfg.Hardware.JackFile),
		telephony:    cfg.Hardware.Telephony,
		speaker:      probeSpeaker(cfg.Hardware.Speaker),
	}

	if cfg.Bluetooth.Enabled {
		p.bluetooth, err = openBlueZ(cfg.Bluetooth, session)
		if err != nil {
			entry := applog.WithFields(applog.Fields{
				"function": "platform.Open",
				"adapter":  cfg.Bluetooth.Adapter,
				"error":    err.Error(),
			})
			if IsNoAdapter(err) {
				entry.Info("No Bluetooth adapter")
			} else {
				entry.Warn("Bluetooth unavailable, continuing without it")
			}
		}
	}

	applog.WithFields(applog.Fields{
		"function":  "platform.Open",
		"telephony": p.telephony,
		"speaker":   p.speaker,
		"bluetooth": p.bluetooth != nil,
	}).Info("Platform ready")
	return p, nil
}

func openBlueZ(cfg config.BluetoothConfig, cards CardProfiles) (*BlueZ, error) {
	// SystemBus is shared by the process and must not be closed.
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: system bus: %v", audio.ErrNoBluetoothAdapter, err)
	}
	return NewBlueZ(conn, cfg.Adapter, cfg.VoiceProfile, cfg.MediaProfile, cards)
}

func probeSpeaker(mode string) bool {
	switch mode {
	case config.SpeakerAlways:
		return true
	case config.SpeakerNever:
		return false
	default:
		return HasOutput()
	}
}

func (p *Linux) HasTelephony() bool { return p.telephony }
func (p *Linux) HasSpeaker() bool   { return p.speaker }

// Bluetooth returns nil when no adapter was found. The explicit nil keeps
// the interface value itself nil.
func (p *Linux) Bluetooth() audio.BluetoothAdapter {
	if p.bluetooth == nil {
		return nil
	}
	return p.bluetooth
}

// Close releases the server connection.
func (p *Linux) Close() error {
	p.PulseSession.Close()
	return nil
}

// IsNoAdapter reports whether err means the host has no usable adapter.
func IsNoAdapter(err error) bool {
	return errors.Is(err, audio.ErrNoBluetoothAdapter)
}
