// Package interrupt turns repeated interrupt signals into an explicit stop token.
package interrupt

import (
	"context"
	"os"
	"sync"
)

// State of a stop token
type State int

const (
	Running       State = iota // no stop requested
	StopRequested              // finish the current cycle and shut down cleanly
	ForceExit                  // second request: abandon orderly shutdown
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case StopRequested:
		return "stop-requested"
	case ForceExit:
		return "force-exit"
	default:
		return "unknown"
	}
}

// Token is checked by the capture loop at safe points. It is safe for concurrent use.
type Token struct {
	mu    sync.Mutex
	state State
	done  chan struct{}
}

// NewToken returns a token in the Running state
func NewToken() *Token {
	return &Token{done: make(chan struct{})}
}

// Request advances the token one step and returns the new state.
// Running becomes StopRequested, anything later becomes ForceExit.
func (t *Token) Request() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.state {
	case Running:
		t.state = StopRequested
		close(t.done)
	default:
		t.state = ForceExit
	}
	return t.state
}

// State returns the current state
func (t *Token) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Stopped reports whether any stop was requested
func (t *Token) Stopped() bool {
	return t.State() != Running
}

// Done is closed on the first stop request
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Watch advances token for every signal received until ctx ends.
// onStop runs on the first request and onForce on every later one.
func Watch(ctx context.Context, token *Token, signals <-chan os.Signal, onStop func(os.Signal), onForce func(os.Signal)) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			switch token.Request() {
			case StopRequested:
				if onStop != nil {
					onStop(sig)
				}
			case ForceExit:
				if onForce != nil {
					onForce(sig)
				}
			}
		}
	}
}
