// Package gate provides a non-blocking single-flight token shared by the
// interactive session and the batch runner.
package gate

import "sync"

// Gate is a single-flight token. At most one Handle is outstanding at a time.
type Gate struct {
	token chan struct{}
}

func New() *Gate {
	g := &Gate{token: make(chan struct{}, 1)}
	g.token <- struct{}{}
	return g
}

// TryAcquire takes the token without blocking
func (g *Gate) TryAcquire() (*Handle, bool) {
	select {
	case <-g.token:
		return &Handle{gate: g}, true
	default:
		return nil, false
	}
}

// Held reports whether a handle is currently outstanding
func (g *Gate) Held() bool {
	return len(g.token) == 0
}

// Handle is proof of ownership of a Gate. Release is idempotent.
type Handle struct {
	gate *Gate
	once sync.Once
}

func (h *Handle) Release() {
	h.once.Do(func() {
		h.gate.token <- struct{}{}
	})
}
