package audio

import (
	applog "audioroute/internal/log"
)

// hardwareSignals relays wired headset plug events onto the loop. It holds
// no state besides its registration. Each registration has a generation so
// events queued by an earlier registration are dropped after a restart.
type hardwareSignals struct {
	detector  HeadsetDetector
	post      func(func())
	onHeadset func(plugged bool)

	started    bool
	generation uint64
	unwatch    func()
}

func newHardwareSignals(detector HeadsetDetector, post func(func()), onHeadset func(bool)) *hardwareSignals {
	return &hardwareSignals{
		detector:  detector,
		post:      post,
		onHeadset: onHeadset,
	}
}

func (s *hardwareSignals) start() {
	if s.started {
		return
	}
	s.generation++
	gen := s.generation
	unwatch, err := s.detector.WatchHeadset(func(plugged bool) {
		s.post(func() {
			if s.started && s.generation == gen {
				s.onHeadset(plugged)
			}
		})
	})
	if err != nil {
		applog.WithFields(applog.Fields{
			"function": "hardwareSignals.start",
			"error":    err.Error(),
		}).Warn("Failed to watch wired headset")
	}
	s.unwatch = unwatch
	s.started = true
}

// refresh reads the current plug state directly, for the forced rebuild at
// start.
func (s *hardwareSignals) refresh() bool {
	return s.detector.HeadsetPlugged()
}

func (s *hardwareSignals) stop() {
	if !s.started {
		return
	}
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	s.started = false
}
