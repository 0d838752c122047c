package platform

import (
	"fmt"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"audioroute/internal/audio"
	"audioroute/internal/config"
	applog "audioroute/internal/log"
)

// requester is the part of *pulse.Client the session needs.
type requester interface {
	RawRequest(cmd pulseproto.RequestArgs, rpl pulseproto.Reply) error
}

// PulseSession drives the audio session through a PulseAudio (or
// pipewire-pulse) server. The microphone is the configured source, the
// speakerphone is a choice between two sinks, and SCO is a card profile.
// PulseAudio has no notion of audio mode or focus, so those are held here
// and only logged.
type PulseSession struct {
	client requester
	closer func()
	cfg    config.PulseConfig

	mu        sync.Mutex
	mode      audio.AudioMode
	speakerOn bool
	focusHeld bool
}

var _ audio.AudioSession = (*PulseSession)(nil)

// DialPulse connects to the server named in cfg, or the default server.
func DialPulse(cfg config.PulseConfig) (*PulseSession, error) {
	opts := []pulse.ClientOption{pulse.ClientApplicationName(cfg.Application)}
	if cfg.Server != "" {
		opts = append(opts, pulse.ClientServerString(cfg.Server))
	}
	client, err := pulse.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	s := newPulseSession(client, cfg)
	s.closer = client.Close
	return s, nil
}

func newPulseSession(client requester, cfg config.PulseConfig) *PulseSession {
	s := &PulseSession{client: client, cfg: cfg}
	if cfg.SpeakerSink != "" {
		var info pulseproto.GetServerInfoReply
		if err := client.RawRequest(&pulseproto.GetServerInfo{}, &info); err == nil {
			s.speakerOn = info.DefaultSinkName == cfg.SpeakerSink
		}
	}
	return s
}

// Close disconnects from the server.
func (s *PulseSession) Close() {
	if s.closer != nil {
		s.closer()
	}
}

func (s *PulseSession) Mode() audio.AudioMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *PulseSession) SetMode(m audio.AudioMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = m
	applog.Debugf("pulse: audio mode %s", m)
	return nil
}

func (s *PulseSession) source() (string, error) {
	if s.cfg.Source != "" {
		return s.cfg.Source, nil
	}
	var info pulseproto.GetServerInfoReply
	if err := s.client.RawRequest(&pulseproto.GetServerInfo{}, &info); err != nil {
		return "", fmt.Errorf("read server info: %w", err)
	}
	return info.DefaultSourceName, nil
}

// MicrophoneMuted reads the source's mute flag. An unreachable server
// reports unmuted.
func (s *PulseSession) MicrophoneMuted() bool {
	name, err := s.source()
	if err != nil {
		applog.Warnf("pulse: %v", err)
		return false
	}
	var info pulseproto.GetSourceInfoReply
	err = s.client.RawRequest(&pulseproto.GetSourceInfo{
		SourceIndex: pulseproto.Undefined,
		SourceName:  name,
	}, &info)
	if err != nil {
		applog.Warnf("pulse: read source %q: %v", name, err)
		return false
	}
	return info.Mute
}

func (s *PulseSession) SetMicrophoneMute(muted bool) error {
	name, err := s.source()
	if err != nil {
		return err
	}
	err = s.client.RawRequest(&pulseproto.SetSourceMute{
		SourceIndex: pulseproto.Undefined,
		SourceName:  name,
		Mute:        muted,
	}, nil)
	if err != nil {
		return fmt.Errorf("set mute on %q: %w", name, err)
	}
	return nil
}

func (s *PulseSession) SpeakerphoneOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerOn
}

// SetSpeakerphoneOn moves the default sink to the speaker sink or back to
// the earpiece sink. An unset sink name leaves the server untouched.
func (s *PulseSession) SetSpeakerphoneOn(on bool) error {
	sink := s.cfg.EarpieceSink
	if on {
		sink = s.cfg.SpeakerSink
	}
	if sink != "" {
		if err := s.client.RawRequest(&pulseproto.SetDefaultSink{SinkName: sink}, nil); err != nil {
			return fmt.Errorf("set default sink %q: %w", sink, err)
		}
	}
	s.mu.Lock()
	s.speakerOn = on
	s.mu.Unlock()
	return nil
}

func (s *PulseSession) RequestAudioFocus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusHeld = true
	applog.Debugf("pulse: audio focus held")
	return nil
}

func (s *PulseSession) AbandonAudioFocus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focusHeld = false
	applog.Debugf("pulse: audio focus released")
	return nil
}

// SetCardProfile switches card to profile.
func (s *PulseSession) SetCardProfile(card, profile string) error {
	err := s.client.RawRequest(&pulseproto.SetCardProfile{
		CardIndex:   pulseproto.Undefined,
		CardName:    card,
		ProfileName: profile,
	}, nil)
	if err != nil {
		return fmt.Errorf("set profile %q on %q: %w", profile, card, err)
	}
	applog.WithFields(applog.Fields{
		"function": "PulseSession.SetCardProfile",
		"card":     card,
		"profile":  profile,
	}).Debug("Card profile switched")
	return nil
}

// Sinks lists the server's sink names, for the list command.
func (s *PulseSession) Sinks() ([]string, error) {
	var infos pulseproto.GetSinkInfoListReply
	if err := s.client.RawRequest(&pulseproto.GetSinkInfoList{}, &infos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info == nil {
			continue
		}
		names = append(names, info.SinkName)
	}
	return names, nil
}
