package audio

import (
	applog "audioroute/internal/log"
)

type linkState int

const (
	linkIdle linkState = iota
	linkWatching
)

// bluetoothLink tracks the single Bluetooth voice headset the engine may
// route to. Adapter callbacks are posted onto the loop before they touch
// the link, and connection changes are reported through onChange. The
// argument is true when a headset other than the tracked one connected.
type bluetoothLink struct {
	adapter  BluetoothAdapter
	post     func(func())
	onChange func(newHeadset bool)

	state        linkState
	connected    *BluetoothDevice
	scoRequested bool
	scoAddress   string
	scoState     SCOState
	generation   uint64
	unwatch      func()
}

func newBluetoothLink(adapter BluetoothAdapter, post func(func()), onChange func(newHeadset bool)) *bluetoothLink {
	return &bluetoothLink{
		adapter:  adapter,
		post:     post,
		onChange: onChange,
	}
}

// start looks up a headset that was already connected and registers for
// connection and SCO events. Without an adapter it does nothing and the
// link never reports a connection.
func (l *bluetoothLink) start() {
	if l.state == linkWatching {
		return
	}
	if l.adapter == nil {
		applog.Debugf("bluetooth: no adapter, link stays idle")
		return
	}

	// Existing connections produce no connect event, so ask for them.
	headsets, err := l.adapter.ConnectedHeadsets()
	if err != nil {
		applog.WithFields(applog.Fields{
			"function": "bluetoothLink.start",
			"error":    err.Error(),
		}).Warn("Failed to query connected headsets")
	}
	for _, dev := range headsets {
		if IsHeadsetClass(dev.Class) {
			d := dev
			l.connected = &d
			break
		}
	}

	// Events still queued from an earlier registration are dropped.
	l.generation++
	gen := l.generation
	current := func(fn func()) {
		l.post(func() {
			if l.generation == gen {
				fn()
			}
		})
	}
	unwatch, err := l.adapter.WatchBluetooth(BluetoothEvents{
		Connected: func(dev BluetoothDevice) {
			current(func() { l.handleConnected(dev) })
		},
		Disconnected: func(dev BluetoothDevice) {
			current(func() { l.handleDisconnected(dev) })
		},
		SCOStateChanged: func(s SCOState) {
			current(func() { l.handleSCOState(s) })
		},
	})
	if err != nil {
		applog.WithFields(applog.Fields{
			"function": "bluetoothLink.start",
			"error":    err.Error(),
		}).Warn("Failed to watch bluetooth events")
	}
	l.unwatch = unwatch
	l.state = linkWatching

	applog.WithFields(applog.Fields{
		"function":  "bluetoothLink.start",
		"connected": l.connected != nil,
	}).Debug("Bluetooth link watching")
}

// stop unregisters from the adapter and forgets the connected headset
// without reporting a disconnect.
func (l *bluetoothLink) stop() {
	if l.state == linkIdle {
		return
	}
	if l.unwatch != nil {
		l.unwatch()
		l.unwatch = nil
	}
	l.connected = nil
	l.scoRequested = false
	l.scoState = SCODisconnected
	l.state = linkIdle
}

// activate requests the SCO voice channel to the tracked headset. The
// request is fire-and-forget and is not repeated for the same headset.
func (l *bluetoothLink) activate() {
	if l.adapter == nil || l.connected == nil {
		return
	}
	if l.scoRequested {
		if l.scoAddress == l.connected.Address {
			return
		}
		l.deactivate()
	}
	if err := l.adapter.StartSCO(l.connected.Address); err != nil {
		applog.WithFields(applog.Fields{
			"function": "bluetoothLink.activate",
			"device":   l.connected.Name,
			"error":    err.Error(),
		}).Warn("SCO start request failed")
	}
	l.scoRequested = true
	l.scoAddress = l.connected.Address
}

// deactivate releases the SCO channel if this link requested it.
func (l *bluetoothLink) deactivate() {
	if l.adapter == nil || !l.scoRequested {
		return
	}
	if err := l.adapter.StopSCO(); err != nil {
		applog.WithFields(applog.Fields{
			"function": "bluetoothLink.deactivate",
			"error":    err.Error(),
		}).Warn("SCO stop request failed")
	}
	l.scoRequested = false
}

// device returns the routable device for the connected headset, or nil.
func (l *bluetoothLink) device() *Device {
	if l.connected == nil {
		return nil
	}
	d := NewDevice(Bluetooth, l.connected.Name)
	return &d
}

func (l *bluetoothLink) handleConnected(dev BluetoothDevice) {
	if l.state != linkWatching {
		return
	}
	if !IsHeadsetClass(dev.Class) {
		applog.WithFields(applog.Fields{
			"function": "bluetoothLink.handleConnected",
			"address":  dev.Address,
			"class":    dev.Class,
		}).Debug("Ignoring non-headset bluetooth device")
		return
	}
	newHeadset := l.connected == nil || l.connected.Address != dev.Address
	l.connected = &dev
	applog.WithFields(applog.Fields{
		"function": "bluetoothLink.handleConnected",
		"address":  dev.Address,
		"name":     dev.Name,
		"new":      newHeadset,
	}).Info("Bluetooth headset connected")
	l.onChange(newHeadset)
}

func (l *bluetoothLink) handleDisconnected(dev BluetoothDevice) {
	if l.state != linkWatching {
		return
	}
	if l.connected == nil || l.connected.Address != dev.Address {
		applog.WithFields(applog.Fields{
			"function": "bluetoothLink.handleDisconnected",
			"address":  dev.Address,
		}).Debug("Ignoring disconnect for untracked device")
		return
	}
	l.connected = nil
	l.scoRequested = false
	applog.WithFields(applog.Fields{
		"function": "bluetoothLink.handleDisconnected",
		"address":  dev.Address,
	}).Info("Bluetooth headset disconnected")
	l.onChange(false)
}

func (l *bluetoothLink) handleSCOState(s SCOState) {
	if l.state != linkWatching {
		return
	}
	l.scoState = s
	applog.Debugf("bluetooth: SCO %s", s)
}
