package handler

import (
	"sync"

	"github.com/rs/zerolog"
)

// outbox runs outbound work for one connection on its own goroutine so
// session callbacks never block the event loop on socket or Redis I/O.
// Posting never blocks: when a stalled peer fills the buffer the work is
// dropped, and the write deadline tears the connection down soon after.
type outbox struct {
	ch  chan func()
	log zerolog.Logger

	mu     sync.Mutex
	closed bool
}

func newOutbox(size int, log zerolog.Logger) *outbox {
	o := &outbox{ch: make(chan func(), size), log: log}
	go o.run()
	return o
}

func (o *outbox) run() {
	for fn := range o.ch {
		fn()
	}
}

// post enqueues fn, preserving post order. No-op after close.
func (o *outbox) post(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.ch <- fn:
	default:
		o.log.Warn().Msg("Outbound buffer full, dropping event")
	}
}

func (o *outbox) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.closed = true
	close(o.ch)
}
