// Package schedule runs self-rescheduling work on a timer chain that can be
// restarted and that never fires after it has been stopped.
package schedule

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"
)

// Func performs one tick and returns the delay before the next one
type Func func(ctx context.Context) time.Duration

// Loop drives a Func. The first tick runs immediately after Start.
type Loop struct {
	name string
	fn   Func

	// mutex guards running, generation and cancel.
	mutex      sync.Mutex
	running    bool
	generation uint64
	cancel     context.CancelFunc

	// tickMutex is held for the liveness check and the tick body, so Stop
	// can wait out an in-flight tick.
	tickMutex sync.Mutex
	done      chan struct{}
}

// NewLoop creates a stopped loop
func NewLoop(name string, fn Func) *Loop {
	return &Loop{name: name, fn: fn}
}

// Start begins a new timer chain, replacing any chain already running. When
// Start returns no tick of the replaced chain is executing and none will
// start. Start must not be called from inside the loop's Func.
func (l *Loop) Start(ctx context.Context) {
	ctx = logging.EnsureLogger(ctx)

	// Same lock order as tick: tickMutex, then mutex.
	l.tickMutex.Lock()
	defer l.tickMutex.Unlock()
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.running {
		l.cancel()
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.running = true
	l.generation++
	l.cancel = cancel
	l.done = make(chan struct{})

	logging.Debugw(ctx, "Starting loop", "loop", l.name, "generation", l.generation)
	go l.run(loopCtx, l.generation, l.done)
}

// Stop ends the current chain. When Stop returns no tick is executing and
// none will start. Stop must not be called from inside the loop's Func.
func (l *Loop) Stop() {
	l.mutex.Lock()
	if !l.running {
		l.mutex.Unlock()
		return
	}
	l.running = false
	l.generation++
	l.cancel()
	l.mutex.Unlock()

	l.tickMutex.Lock()
	defer l.tickMutex.Unlock()
}

// Running reports whether a chain is active
func (l *Loop) Running() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.running
}

// Done is closed when the most recently started chain exits
func (l *Loop) Done() <-chan struct{} {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.done
}

func (l *Loop) alive(generation uint64) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.running && l.generation == generation
}

func (l *Loop) run(ctx context.Context, generation uint64, done chan struct{}) {
	defer close(done)
	defer func() {
		// A chain that ends on its own (parent context or panic) is no longer running.
		l.mutex.Lock()
		if l.generation == generation {
			l.running = false
		}
		l.mutex.Unlock()
	}()
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			logging.Errorw(ctx, "Loop: recovered from panic",
				"loop", l.name, "error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Debugw(ctx, "Loop stopping", "loop", l.name, "generation", generation)
			return
		case <-timer.C:
		}

		next, ok := l.tick(ctx, generation)
		if !ok {
			return
		}
		timer.Reset(next)
	}
}

func (l *Loop) tick(ctx context.Context, generation uint64) (time.Duration, bool) {
	l.tickMutex.Lock()
	defer l.tickMutex.Unlock()

	if !l.alive(generation) {
		return 0, false
	}
	return l.fn(ctx), true
}
