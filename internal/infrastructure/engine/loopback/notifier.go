package loopback

import "sync"

// notifier delivers queued callbacks in order on its own goroutine. push never
// blocks, so engine methods can queue while the receiver is busy calling them.
type notifier struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

func newNotifier() *notifier {
	return &notifier{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (n *notifier) push(fn func()) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.pending = append(n.pending, fn)
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	for {
		select {
		case <-n.done:
			return
		case <-n.wake:
		}

		for {
			n.mu.Lock()
			if n.closed || len(n.pending) == 0 {
				n.mu.Unlock()
				break
			}
			fn := n.pending[0]
			n.pending = n.pending[1:]
			n.mu.Unlock()
			fn()
		}
	}
}

// close drops anything not yet delivered.
func (n *notifier) close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.pending = nil
	close(n.done)
}
