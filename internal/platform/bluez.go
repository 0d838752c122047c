package platform

import (
	"fmt"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"

	"audioroute/internal/audio"
	applog "audioroute/internal/log"
)

// BlueZ D-Bus names.
const (
	bluezBus          = "org.bluez"
	bluezAdapter1     = "org.bluez.Adapter1"
	bluezDevice1      = "org.bluez.Device1"
	dbusObjectManager = "org.freedesktop.DBus.ObjectManager"
	dbusProperties    = "org.freedesktop.DBus.Properties"
)

// CardProfiles switches a sound card between profiles. The Bluetooth voice
// channel opens when a headset's card moves to its voice profile.
type CardProfiles interface {
	SetCardProfile(card, profile string) error
}

type managedObjects = map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// BlueZ is the Bluetooth adapter backed by the BlueZ D-Bus API. SCO is
// opened and closed by switching the headset's sound card profile.
type BlueZ struct {
	conn         *dbus.Conn
	adapter      string
	cards        CardProfiles
	voiceProfile string
	mediaProfile string

	mu       sync.Mutex
	known    map[dbus.ObjectPath]audio.BluetoothDevice
	sco      *audio.BluetoothDevice
	watchers map[int]audio.BluetoothEvents
	nextID   int
}

var _ audio.BluetoothAdapter = (*BlueZ)(nil)

// NewBlueZ binds to the named adapter. It returns audio.ErrNoBluetoothAdapter
// when BlueZ does not expose that adapter.
func NewBlueZ(conn *dbus.Conn, adapter, voiceProfile, mediaProfile string, cards CardProfiles) (*BlueZ, error) {
	b := &BlueZ{
		conn:         conn,
		adapter:      adapter,
		cards:        cards,
		voiceProfile: voiceProfile,
		mediaProfile: mediaProfile,
		known:        make(map[dbus.ObjectPath]audio.BluetoothDevice),
		watchers:     make(map[int]audio.BluetoothEvents),
	}

	objects, err := b.managedObjects()
	if err != nil {
		return nil, err
	}
	if _, ok := objects[b.adapterPath()][bluezAdapter1]; !ok {
		return nil, fmt.Errorf("%w: %s", audio.ErrNoBluetoothAdapter, adapter)
	}
	return b, nil
}

func (b *BlueZ) adapterPath() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + b.adapter)
}

func (b *BlueZ) managedObjects() (managedObjects, error) {
	var objects managedObjects
	call := b.conn.Object(bluezBus, "/").Call(dbusObjectManager+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("GetManagedObjects failed: %w", call.Err)
	}
	if err := call.Store(&objects); err != nil {
		return nil, fmt.Errorf("GetManagedObjects decode failed: %w", err)
	}
	return objects, nil
}

// ConnectedHeadsets lists connected devices on the adapter. Class filtering
// is left to the caller.
func (b *BlueZ) ConnectedHeadsets() ([]audio.BluetoothDevice, error) {
	objects, err := b.managedObjects()
	if err != nil {
		return nil, err
	}

	prefix := string(b.adapterPath()) + "/"
	var out []audio.BluetoothDevice
	b.mu.Lock()
	defer b.mu.Unlock()
	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[bluezDevice1]
		if !ok {
			continue
		}
		dev, connected := deviceFromProps(path, props)
		if !connected {
			continue
		}
		b.known[path] = dev
		out = append(out, dev)
	}
	return out, nil
}

// WatchBluetooth subscribes to Device1 property changes. Callbacks run on a
// private goroutine.
func (b *BlueZ) WatchBluetooth(events audio.BluetoothEvents) (func(), error) {
	rule := fmt.Sprintf(
		"type='signal',sender='%s',interface='%s',member='PropertiesChanged',arg0='%s'",
		bluezBus, dbusProperties, bluezDevice1,
	)
	if call := b.conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0, rule); call.Err != nil {
		return nil, fmt.Errorf("failed to add signal match: %w", call.Err)
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.watchers[id] = events
	b.mu.Unlock()

	sigCh := make(chan *dbus.Signal, 64)
	stopCh := make(chan struct{})
	b.conn.Signal(sigCh)

	go func() {
		for {
			select {
			case <-stopCh:
				return
			case sig, ok := <-sigCh:
				if !ok {
					return
				}
				b.handleSignal(sig, events)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			b.conn.RemoveSignal(sigCh)
			b.conn.BusObject().Call("org.freedesktop.DBus.RemoveMatch", 0, rule)
			b.mu.Lock()
			delete(b.watchers, id)
			b.mu.Unlock()
		})
	}, nil
}

func (b *BlueZ) handleSignal(sig *dbus.Signal, events audio.BluetoothEvents) {
	if sig.Name != dbusProperties+".PropertiesChanged" || len(sig.Body) < 2 {
		return
	}
	if iface, _ := sig.Body[0].(string); iface != bluezDevice1 {
		return
	}
	if !strings.HasPrefix(string(sig.Path), string(b.adapterPath())+"/") {
		return
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}
	v, ok := changed["Connected"]
	if !ok {
		return
	}
	connected, _ := v.Value().(bool)

	if connected {
		dev, err := b.device(sig.Path)
		if err != nil {
			applog.WithFields(applog.Fields{
				"function": "BlueZ.handleSignal",
				"path":     string(sig.Path),
				"error":    err.Error(),
			}).Warn("Failed to read connected device")
			return
		}
		if events.Connected != nil {
			events.Connected(dev)
		}
		return
	}

	b.mu.Lock()
	dev, ok := b.known[sig.Path]
	delete(b.known, sig.Path)
	if b.sco != nil && b.sco.Address == dev.Address {
		b.sco = nil
	}
	b.mu.Unlock()
	if !ok {
		dev = audio.BluetoothDevice{Address: addressFromPath(sig.Path)}
	}
	if events.Disconnected != nil {
		events.Disconnected(dev)
	}
}

func (b *BlueZ) device(path dbus.ObjectPath) (audio.BluetoothDevice, error) {
	var props map[string]dbus.Variant
	call := b.conn.Object(bluezBus, path).Call(dbusProperties+".GetAll", 0, bluezDevice1)
	if call.Err != nil {
		return audio.BluetoothDevice{}, call.Err
	}
	if err := call.Store(&props); err != nil {
		return audio.BluetoothDevice{}, err
	}
	dev, _ := deviceFromProps(path, props)

	b.mu.Lock()
	b.known[path] = dev
	b.mu.Unlock()
	return dev, nil
}

// StartSCO moves the card of the headset at address to the voice
// profile. The headset must be one this adapter reported as connected.
func (b *BlueZ) StartSCO(address string) error {
	dev, ok := b.headset(address)
	if !ok {
		return fmt.Errorf("no connected headset %s for SCO", address)
	}
	b.notifySCO(audio.SCOConnecting)
	if err := b.cards.SetCardProfile(cardName(dev.Address), b.voiceProfile); err != nil {
		b.notifySCO(audio.SCODisconnected)
		return fmt.Errorf("failed to open SCO on %s: %w", dev.Address, err)
	}
	b.mu.Lock()
	b.sco = &dev
	b.mu.Unlock()
	b.notifySCO(audio.SCOConnected)
	return nil
}

// StopSCO returns the headset's card to the media profile.
func (b *BlueZ) StopSCO() error {
	b.mu.Lock()
	dev := b.sco
	b.sco = nil
	b.mu.Unlock()
	if dev == nil {
		return nil
	}
	defer b.notifySCO(audio.SCODisconnected)
	if err := b.cards.SetCardProfile(cardName(dev.Address), b.mediaProfile); err != nil {
		return fmt.Errorf("failed to close SCO on %s: %w", dev.Address, err)
	}
	return nil
}

func (b *BlueZ) headset(address string) (audio.BluetoothDevice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, dev := range b.known {
		if dev.Address == address && audio.IsHeadsetClass(dev.Class) {
			return dev, true
		}
	}
	return audio.BluetoothDevice{}, false
}

func (b *BlueZ) notifySCO(s audio.SCOState) {
	b.mu.Lock()
	watchers := make([]audio.BluetoothEvents, 0, len(b.watchers))
	for _, w := range b.watchers {
		watchers = append(watchers, w)
	}
	b.mu.Unlock()
	for _, w := range watchers {
		if w.SCOStateChanged != nil {
			w.SCOStateChanged(s)
		}
	}
}

// deviceFromProps decodes a Device1 property map. The second result is the
// Connected property.
func deviceFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) (audio.BluetoothDevice, bool) {
	dev := audio.BluetoothDevice{Address: addressFromPath(path)}
	if v, ok := props["Address"]; ok {
		if s, ok := v.Value().(string); ok {
			dev.Address = s
		}
	}
	for _, key := range []string{"Alias", "Name"} {
		if v, ok := props[key]; ok {
			if s, ok := v.Value().(string); ok && s != "" {
				dev.Name = s
				break
			}
		}
	}
	if dev.Name == "" {
		dev.Name = dev.Address
	}
	if v, ok := props["Class"]; ok {
		if c, ok := v.Value().(uint32); ok {
			dev.Class = c
		}
	}
	connected := false
	if v, ok := props["Connected"]; ok {
		connected, _ = v.Value().(bool)
	}
	return dev, connected
}

// addressFromPath recovers the MAC address from a BlueZ device path.
// Example: "/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF" -> "AA:BB:CC:DD:EE:FF"
func addressFromPath(path dbus.ObjectPath) string {
	s := string(path)
	i := strings.LastIndex(s, "/dev_")
	if i < 0 {
		return ""
	}
	return strings.ReplaceAll(s[i+len("/dev_"):], "_", ":")
}

// cardName is the PulseAudio card BlueZ registers for a device.
func cardName(address string) string {
	return "bluez_card." + strings.ReplaceAll(address, ":", "_")
}
