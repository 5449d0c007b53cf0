package flu

import "sync"

// dispatcher serializes all operations onto a single owner goroutine that
// drains a request channel in arrival order (spec.md §4.6, and the Design
// Notes §9 recommendation to model single-ownership as "a dedicated thread
// draining a bounded request channel" rather than a mutex - it gives
// clearer queueing semantics and a natural place to implement [FLU.Stop]).
//
// Recovery already ran during [Open] (see flu.go), so the owner goroutine
// never needs to special-case the first request.
//
// mu guards closed and serializes submit against stop: a send on reqCh must
// never race a close of reqCh, and once stop has run, no further sends may
// be attempted (sending on a closed channel panics).
type dispatcher struct {
	reqCh chan func(*core)
	done  chan struct{}

	mu     sync.Mutex
	closed bool
}

const dispatcherQueueDepth = 64

func startDispatcher(c *core) *dispatcher {
	d := &dispatcher{
		reqCh: make(chan func(*core), dispatcherQueueDepth),
		done:  make(chan struct{}),
	}

	go func() {
		defer close(d.done)

		for fn := range d.reqCh {
			fn(c)
		}
	}()

	return d
}

// submit runs fn on the owner goroutine and blocks until it has completed.
// fn must not be called again after submit returns - submit hands it to the
// owner exactly once.
//
// submit reports false without running fn if stop has already run; callers
// must treat that as [ErrClosed].
func (d *dispatcher) submit(fn func(*core)) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	result := make(chan struct{})

	d.reqCh <- func(c *core) {
		fn(c)
		close(result)
	}

	<-result

	return true
}

// stop drains any queued requests, runs a final fn (used to flush hard
// state) exactly once, then shuts the owner goroutine down.
//
// stop is idempotent: a second call is a no-op and reports false, so
// [FLU.Stop] can call it unconditionally without double-closing reqCh.
func (d *dispatcher) stop(final func(*core)) bool {
	d.mu.Lock()

	if d.closed {
		d.mu.Unlock()
		return false
	}

	d.closed = true

	result := make(chan struct{})

	d.reqCh <- func(c *core) {
		final(c)
		close(result)
	}

	<-result
	close(d.reqCh)
	d.mu.Unlock()

	<-d.done

	return true
}
