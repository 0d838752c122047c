package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"audioroute/internal/audio"
)

// Transport defines a generic interface for sending snapshots or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Selector receives device choices from remote clients. *audio.Engine
// satisfies it.
type Selector interface {
	SelectDevice(d *audio.Device) error
}

// SnapshotMessage is the wire form of an audio.Snapshot.
type SnapshotMessage struct {
	Type         string               `json:"type"`
	Session      uuid.UUID            `json:"session"`
	Sequence     uint32               `json:"sequence"`
	Time         time.Time            `json:"time"`
	State        audio.LifecycleState `json:"state"`
	Devices      []audio.Device       `json:"devices"`
	Selected     *audio.Device        `json:"selected,omitempty"`
	UserSelected *audio.Device        `json:"user_selected,omitempty"`
}

// MessageTypeSnapshot tags SnapshotMessage on the wire.
const MessageTypeSnapshot = "snapshot"

// Publisher stamps snapshots with a per-process session ID and a sequence
// number and hands them to a transport. Its Publish method is an
// audio.Listener.
type Publisher struct {
	session uuid.UUID
	out     Transport

	mu  sync.Mutex
	seq uint32
	now func() time.Time
}

func NewPublisher(out Transport) *Publisher {
	return &Publisher{
		session: uuid.New(),
		out:     out,
		now:     time.Now,
	}
}

// Session returns the ID stamped on every message.
func (p *Publisher) Session() uuid.UUID {
	return p.session
}

// Message converts s to its wire form, consuming a sequence number.
func (p *Publisher) Message(s audio.Snapshot) SnapshotMessage {
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	devices := s.Devices
	if devices == nil {
		devices = []audio.Device{}
	}
	return SnapshotMessage{
		Type:         MessageTypeSnapshot,
		Session:      p.session,
		Sequence:     seq,
		Time:         p.now(),
		State:        s.State,
		Devices:      devices,
		Selected:     s.Selected,
		UserSelected: s.UserSelected,
	}
}

// Publish sends s. Transport errors are dropped; transports log their own.
func (p *Publisher) Publish(s audio.Snapshot) {
	_ = p.out.Send(p.Message(s))
}

// Fanout sends every message to several transports.
type Fanout []Transport

func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
