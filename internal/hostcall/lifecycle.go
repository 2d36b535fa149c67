// SPDX-License-Identifier: MPL-2.0

package hostcall

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

const (
	// PhaseNew means the server was created but Start has not been called.
	PhaseNew Phase = iota
	// PhaseStarting means Start is binding the listener.
	PhaseStarting
	// PhaseServing means the listener is accepting callback connections.
	PhaseServing
	// PhaseDraining means Stop is waiting for in-flight sessions.
	PhaseDraining
	// PhaseStopped is terminal: shutdown completed.
	PhaseStopped
	// PhaseFailed is terminal: startup or serving hit a fatal error.
	PhaseFailed
)

// Phase is the position of a callback server in its lifecycle. Phases only
// move forward; a stopped or failed server cannot be restarted.
type Phase int32

// String returns the phase name used in logs and error messages.
func (p Phase) String() string {
	switch p {
	case PhaseNew:
		return "new"
	case PhaseStarting:
		return "starting"
	case PhaseServing:
		return "serving"
	case PhaseDraining:
		return "draining"
	case PhaseStopped:
		return "stopped"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase is final.
func (p Phase) Terminal() bool {
	return p == PhaseStopped || p == PhaseFailed
}

// lifecycle drives the callback server's phase machine. Reads are
// lock-free; transitions go through compare-and-swap so concurrent Start
// and Stop calls cannot double-run shutdown.
type lifecycle struct {
	phase atomic.Int32

	mu      sync.Mutex
	failure error
	ctx     context.Context
	stop    context.CancelFunc

	// ready is closed once the listener accepts connections.
	ready chan struct{}
	errs  chan error
	tasks sync.WaitGroup
}

func newLifecycle() *lifecycle {
	lc := &lifecycle{
		ready: make(chan struct{}),
		errs:  make(chan error, 1),
	}
	lc.phase.Store(int32(PhaseNew))
	return lc
}

// Phase returns the current phase.
func (l *lifecycle) Phase() Phase {
	return Phase(l.phase.Load())
}

// begin moves New to Starting and arms the internal context. A ctx that is
// already cancelled fails the lifecycle before any work happens.
func (l *lifecycle) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		l.fail(fmt.Errorf("context cancelled before start: %w", err))
		return l.failureErr()
	}

	if !l.phase.CompareAndSwap(int32(PhaseNew), int32(PhaseStarting)) {
		return fmt.Errorf("cannot start server in phase %s", l.Phase())
	}

	l.mu.Lock()
	l.ctx, l.stop = context.WithCancel(context.Background())
	l.mu.Unlock()

	return nil
}

// serving marks the listener as accepting and unblocks awaitReady callers.
func (l *lifecycle) serving() {
	if l.phase.CompareAndSwap(int32(PhaseStarting), int32(PhaseServing)) {
		close(l.ready)
	}
}

// fail records err as the terminal failure and cancels the internal
// context. The error is also delivered to the errs channel.
func (l *lifecycle) fail(err error) {
	l.mu.Lock()
	l.failure = err
	stop := l.stop
	l.mu.Unlock()

	l.phase.Store(int32(PhaseFailed))
	if stop != nil {
		stop()
	}
	l.report(err)
}

// drain moves a starting or serving lifecycle to Draining and cancels the
// internal context. The return value says whether the caller owns
// shutdown: false means the server never started, already failed, or
// another caller is draining it.
func (l *lifecycle) drain() bool {
	for {
		switch p := l.Phase(); p {
		case PhaseNew:
			if l.phase.CompareAndSwap(int32(PhaseNew), int32(PhaseStopped)) {
				return false
			}
		case PhaseStarting, PhaseServing:
			if l.phase.CompareAndSwap(int32(p), int32(PhaseDraining)) {
				l.mu.Lock()
				stop := l.stop
				l.mu.Unlock()
				if stop != nil {
					stop()
				}
				return true
			}
		default:
			// Draining, Stopped or Failed: someone else finished or is
			// finishing the shutdown.
			return false
		}
	}
}

// finish marks shutdown complete. Call only after waitIdle has returned.
func (l *lifecycle) finish() {
	l.phase.Store(int32(PhaseStopped))
}

// track runs fn on a goroutine counted toward waitIdle.
func (l *lifecycle) track(fn func()) {
	l.tasks.Add(1)
	go func() {
		defer l.tasks.Done()
		fn()
	}()
}

// waitIdle blocks until every tracked goroutine has returned.
func (l *lifecycle) waitIdle() {
	l.tasks.Wait()
}

// awaitReady blocks until the lifecycle reaches Serving or ctx ends.
func (l *lifecycle) awaitReady(ctx context.Context) error {
	select {
	case <-l.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server ready: %w", ctx.Err())
	}
}

// context returns the internal context, or nil before begin has run.
func (l *lifecycle) context() context.Context {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctx
}

// report delivers err to the errs channel without blocking. When the
// buffer is full the error is dropped; the terminal failure is still
// available through failureErr.
func (l *lifecycle) report(err error) {
	select {
	case l.errs <- err:
	default:
	}
}

// failureErr returns the error recorded by fail, or nil.
func (l *lifecycle) failureErr() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failure
}

// closeErrs closes the errs channel so range consumers terminate. Call
// only after the lifecycle reached a terminal phase.
func (l *lifecycle) closeErrs() {
	close(l.errs)
}
