package registry

import "sync"

// notifier is a level-to-edge broadcast: arm captures the channel to wait
// on, notify closes it and installs a fresh one. Arming before reading
// the counter and notifying while the counter's own lock is still held
// (done by callers, not here) is what makes the zero-to-positive
// transition race-free — the Go equivalent of tokio::sync::Notify used
// in the source's walk_blocks loop.
type notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func newNotifier() *notifier {
	return &notifier{ch: make(chan struct{})}
}

// arm returns the channel that will close on the next notify call made
// after this point in time.
func (n *notifier) arm() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// notify wakes every armed waiter and resets for the next generation.
func (n *notifier) notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.ch)
	n.ch = make(chan struct{})
}
