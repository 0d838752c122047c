// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"audioroute/internal/audio"
	applog "audioroute/internal/log"
	"audioroute/internal/transport"
)

// UDPPublisher packs snapshot messages into a binary format and sends them
// over UDP using a UDPSender. With a zero interval every message is sent as
// it arrives; otherwise only the latest message is sent once per tick.
type UDPPublisher struct {
	sender   *UDPSender    // The underlying UDP sender instance.
	interval time.Duration // Minimum gap between packets; 0 sends immediately.

	ticker   *time.Ticker   // Ticker that triggers packet sending.
	doneChan chan struct{}  // Channel used to signal the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects ticker, doneChan, pending and packetBuffer.

	pending      *transport.SnapshotMessage // Latest unsent message when rate limited.
	packetBuffer *bytes.Buffer              // Reusable buffer for constructing the binary packet.
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval < 0 {
		interval = 0
		applog.Warnf("UDPPublisher: Negative interval provided, sending immediately")
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start begins the periodic flush when an interval is set. It is a no-op
// otherwise, and when already started.
func (p *UDPPublisher) Start() {
	if p.interval == 0 {
		return
	}
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Capture local variables for the goroutine to avoid data races on p.ticker/p.doneChan
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			select {
			case <-ticker.C:
				p.flush()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop gracefully signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	p.flush()
	return nil
}

// Send queues or sends a transport.SnapshotMessage. Other values are
// rejected.
func (p *UDPPublisher) Send(data any) error {
	msg, ok := data.(transport.SnapshotMessage)
	if !ok {
		return fmt.Errorf("UDPPublisher: cannot send %T", data)
	}
	p.mu.Lock()
	if p.ticker != nil {
		p.pending = &msg
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()
	return p.sendPacket(msg)
}

func (p *UDPPublisher) flush() {
	p.mu.Lock()
	msg := p.pending
	p.pending = nil
	p.mu.Unlock()
	if msg != nil {
		_ = p.sendPacket(*msg)
	}
}

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Session           | [16]byte       | 16           | Engine session UUID     |
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| State             | uint8          | 1            | 0 stopped, 1 started,   |
|                   |                |              | 2 active                |
| Selected          | int8           | 1            | Index into devices, -1  |
| Override          | uint8          | 1            | 1 if user selected      |
| Device Count      | uint8          | 1            | Number of devices (N)   |
| Devices           | N * entry      | variable     | See below               |
+-----------------------------------------------------------------------------+

Device entry: Type (uint8), Name length (uint8), Name (UTF-8, at most 255 bytes).
*/

// sendPacket packs msg into the reusable buffer and sends it.
func (p *UDPPublisher) sendPacket(msg transport.SnapshotMessage) error {
	p.mu.Lock()
	p.packetBuffer.Reset()
	err := EncodeSnapshot(p.packetBuffer, msg)
	packet := append([]byte(nil), p.packetBuffer.Bytes()...)
	p.mu.Unlock()

	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return err
	}

	// Error logging is handled within sender.Send.
	if err := p.sender.Send(packet); err != nil {
		return err
	}
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", msg.Sequence, len(packet))
	return nil
}

// EncodeSnapshot writes msg in the packet format above.
func EncodeSnapshot(w io.Writer, msg transport.SnapshotMessage) error {
	if len(msg.Devices) > 255 {
		return fmt.Errorf("too many devices: %d", len(msg.Devices))
	}
	selected := int8(-1)
	if msg.Selected != nil {
		for i, d := range msg.Devices {
			if d == *msg.Selected {
				selected = int8(i)
				break
			}
		}
	}
	var override uint8
	if msg.UserSelected != nil {
		override = 1
	}

	header := struct {
		Session   [16]byte
		Sequence  uint32
		Timestamp int64
		State     uint8
		Selected  int8
		Override  uint8
		Count     uint8
	}{
		Session:   msg.Session,
		Sequence:  msg.Sequence,
		Timestamp: msg.Time.UnixNano(),
		State:     uint8(msg.State),
		Selected:  selected,
		Override:  override,
		Count:     uint8(len(msg.Devices)),
	}
	if err := binary.Write(w, binary.BigEndian, header); err != nil {
		return err
	}
	for _, d := range msg.Devices {
		name := d.Name
		if len(name) > 255 {
			name = name[:255]
		}
		if _, err := w.Write([]byte{uint8(d.Type), uint8(len(name))}); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSnapshot reads a packet produced by EncodeSnapshot.
func DecodeSnapshot(r io.Reader) (transport.SnapshotMessage, error) {
	var header struct {
		Session   [16]byte
		Sequence  uint32
		Timestamp int64
		State     uint8
		Selected  int8
		Override  uint8
		Count     uint8
	}
	if err := binary.Read(r, binary.BigEndian, &header); err != nil {
		return transport.SnapshotMessage{}, fmt.Errorf("read header: %w", err)
	}

	msg := transport.SnapshotMessage{
		Type:     transport.MessageTypeSnapshot,
		Session:  uuid.UUID(header.Session),
		Sequence: header.Sequence,
		Time:     time.Unix(0, header.Timestamp),
		State:    audio.LifecycleState(header.State),
		Devices:  make([]audio.Device, 0, header.Count),
	}
	for i := 0; i < int(header.Count); i++ {
		var entry [2]byte
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return msg, fmt.Errorf("read device %d: %w", i, err)
		}
		name := make([]byte, entry[1])
		if _, err := io.ReadFull(r, name); err != nil {
			return msg, fmt.Errorf("read device %d name: %w", i, err)
		}
		msg.Devices = append(msg.Devices, audio.Device{Type: audio.DeviceType(entry[0]), Name: string(name)})
	}
	if header.Selected >= 0 {
		if int(header.Selected) >= len(msg.Devices) {
			return msg, errors.New("selected index out of range")
		}
		d := msg.Devices[header.Selected]
		msg.Selected = &d
		if header.Override == 1 {
			u := d
			msg.UserSelected = &u
		}
	}
	return msg, nil
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

// Ensure UDPPublisher satisfies the transport interface at compile time.
var _ transport.Transport = (*UDPPublisher)(nil)
