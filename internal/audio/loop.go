package audio

import (
	"sync"
)

// loopQueueSize bounds the number of posted tasks waiting for the loop.
// Posting blocks once it is full.
const loopQueueSize = 64

// Loop is a single goroutine that runs posted functions one at a time in
// FIFO order. Everything the routing engine owns is touched only from
// inside a Loop task, so the engine needs no locks.
type Loop struct {
	tasks   chan func()
	quit    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewLoop starts a loop goroutine.
func NewLoop() *Loop {
	l := &Loop{
		tasks:   make(chan func(), loopQueueSize),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.stopped)
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-l.quit:
			return
		}
	}
}

// Post queues fn without waiting for it to run. It reports false when the
// loop has been closed. Post must not be called from inside a loop task
// while the queue may be full.
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.quit:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.quit:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish. A panic raised by fn
// is re-raised on the calling goroutine. Calling Do from inside a loop task
// deadlocks.
func (l *Loop) Do(fn func()) error {
	var (
		recovered any
		finished  = make(chan struct{})
	)
	task := func() {
		defer func() {
			recovered = recover()
			close(finished)
		}()
		fn()
	}
	if !l.Post(task) {
		return ErrEngineClosed
	}

	select {
	case <-finished:
	case <-l.stopped:
		select {
		case <-finished:
		default:
			return ErrEngineClosed
		}
	}
	if recovered != nil {
		panic(recovered)
	}
	return nil
}

// Close stops the loop after the task in progress, if any. Tasks still
// queued are dropped. Close is idempotent and waits for the goroutine.
func (l *Loop) Close() {
	l.once.Do(func() { close(l.quit) })
	<-l.stopped
}
