// SPDX-License-Identifier: MIT
/*
Package audio selects and activates the physical audio path (earpiece,
speakerphone, wired headset, Bluetooth headset) for a live voice session and
keeps that choice consistent while hardware comes and goes.

Threading:
  - All routing state lives on one Loop goroutine; there are no locks.
  - Hardware callbacks are posted onto the loop before touching state.
  - Engine methods marshal onto the loop and may be called from anywhere.
  - Listeners run on a separate dispatcher goroutine, in rebuild order, so
    they may call back into the Engine.
*/
package audio

import (
	"sync"

	applog "audioroute/internal/log"
)

// Engine is the public front of the routing state machine
// (Stopped -> Started -> Active).
type Engine struct {
	loop     *Loop
	router   *router
	dispatch *dispatcher

	closeOnce sync.Once
}

// NewEngine creates an engine bound to the given platform. The engine is
// Stopped until Start is called.
func NewEngine(p Platform) *Engine {
	loop := NewLoop()
	d := newDispatcher()
	e := &Engine{
		loop:     loop,
		dispatch: d,
	}
	post := func(fn func()) {
		if !loop.Post(fn) {
			applog.Debugf("engine: dropped hardware signal after close")
		}
	}
	e.router = newRouter(p, post, func(l Listener, s Snapshot) {
		d.push(func() { l(s) })
	})
	return e
}

// Start registers listener and begins watching hardware. It is a no-op if
// the engine is already started or active.
func (e *Engine) Start(listener Listener) error {
	return e.loop.Do(func() { e.router.start(listener) })
}

// Activate takes over the audio session and routes to the selected device.
// Calling it while active re-applies the selection if it changed. Calling
// it while stopped panics with ErrIllegalTransition.
func (e *Engine) Activate() error {
	return e.loop.Do(e.router.activate)
}

// Deactivate restores the audio session saved by Activate. It is a no-op
// while started and panics with ErrIllegalTransition while stopped.
func (e *Engine) Deactivate() error {
	return e.loop.Do(e.router.deactivate)
}

// Stop deactivates if needed and unregisters from all hardware signals.
// It is a no-op while stopped.
func (e *Engine) Stop() error {
	return e.loop.Do(e.router.stop)
}

// SelectDevice sets the user's preferred device. A nil device returns to
// automatic, priority-based selection.
func (e *Engine) SelectDevice(d *Device) error {
	d = copyDevice(d)
	return e.loop.Do(func() { e.router.selectDevice(d) })
}

// SelectedDevice returns a copy of the selected device, or nil.
func (e *Engine) SelectedDevice() *Device {
	var d *Device
	_ = e.loop.Do(func() { d = e.router.selectedDevice() })
	return d
}

// AudioDevices returns a copy of the current inventory in priority order.
func (e *Engine) AudioDevices() []Device {
	var devices []Device
	_ = e.loop.Do(func() { devices = e.router.audioDevices() })
	return devices
}

// State returns the lifecycle state. A closed engine reports Stopped.
func (e *Engine) State() LifecycleState {
	state := Stopped
	_ = e.loop.Do(func() { state = e.router.state })
	return state
}

// Snapshot returns the current inventory and selection.
func (e *Engine) Snapshot() Snapshot {
	var s Snapshot
	_ = e.loop.Do(func() { s = e.router.snapshot() })
	return s
}

// Close stops the engine, delivers pending listener notifications, and
// releases its goroutines. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		err = e.Stop()
		e.loop.Close()
		e.dispatch.close()
	})
	return err
}

// dispatcher runs listener callbacks in order on its own goroutine. Its
// queue is unbounded so the loop never blocks on a slow listener.
type dispatcher struct {
	mu    sync.Mutex
	queue []func()
	wake  chan struct{}
	quit  chan struct{}
	done  chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) push(fn func()) {
	d.mu.Lock()
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.wake:
			d.drain()
		case <-d.quit:
			d.drain()
			return
		}
	}
}

func (d *dispatcher) drain() {
	for {
		d.mu.Lock()
		if len(d.queue) == 0 {
			d.mu.Unlock()
			return
		}
		fn := d.queue[0]
		d.queue[0] = nil
		d.queue = d.queue[1:]
		d.mu.Unlock()
		fn()
	}
}

func (d *dispatcher) close() {
	close(d.quit)
	<-d.done
}
