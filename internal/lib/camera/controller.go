package camera

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dpup/prefab/errors"
	"github.com/dpup/prefab/logging"

	"github.com/dpup/ridemap/internal/host"
	"github.com/dpup/ridemap/internal/lib/schedule"
	"github.com/dpup/ridemap/internal/metrics"
)

// InputSource supplies the values sampled at the start of each tick
type InputSource interface {
	Inputs() Inputs
}

// Option configures a Controller
type Option func(*Controller)

// WithSettings overrides DefaultSettings
func WithSettings(s Settings) Option {
	return func(c *Controller) { c.settings = s }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller drives the chase camera while navigation mode is on. Smoothing
// state lives here, is reset on entering navigation mode and is dropped on
// leaving it.
type Controller struct {
	camera   host.Camera
	source   InputSource
	settings Settings
	now      func() time.Time
	loop     *schedule.Loop

	mutex      sync.Mutex
	navigating bool
	state      State
	lastPose   *host.CameraPose
}

// NewController creates a controller that is not navigating
func NewController(camera host.Camera, source InputSource, opts ...Option) *Controller {
	c := &Controller{
		camera:   camera,
		source:   source,
		settings: DefaultSettings(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.loop = schedule.NewLoop("navigation-camera", c.runTick)
	return c
}

// SetNavigating turns navigation mode on or off. Turning it on resets the
// smoothing state and starts a tick chain whose first tick runs at once.
// Turning it off stops the chain; no tick runs after SetNavigating(false) returns.
func (c *Controller) SetNavigating(ctx context.Context, on bool) {
	c.mutex.Lock()
	if c.navigating == on {
		c.mutex.Unlock()
		return
	}
	c.navigating = on
	if on {
		c.state = State{}
		c.lastPose = nil
	}
	c.mutex.Unlock()

	if on {
		logging.Infow(ctx, "Navigation camera started", "interval", c.settings.Interval)
		c.loop.Start(ctx)
		return
	}

	c.loop.Stop()
	c.mutex.Lock()
	c.state = State{}
	c.mutex.Unlock()
	logging.Infow(ctx, "Navigation camera stopped")
}

// Restart replaces the running tick chain with a fresh one, keeping the
// smoothing state. It does nothing when not navigating.
func (c *Controller) Restart(ctx context.Context) {
	if !c.Navigating() {
		return
	}
	c.loop.Start(ctx)
}

// Navigating reports whether navigation mode is on
func (c *Controller) Navigating() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.navigating
}

// State returns a copy of the smoothing state
func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	s := c.state
	if s.LastLocation != nil {
		loc := *s.LastLocation
		s.LastLocation = &loc
	}
	return s
}

// LastPose returns the most recent pose the host accepted
func (c *Controller) LastPose() (host.CameraPose, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.lastPose == nil {
		return host.CameraPose{}, false
	}
	return *c.lastPose, true
}

// Tick runs one camera update. It returns the reason the tick produced no
// pose, or SkipNone when a pose was handed to the host. A host failure leaves
// the smoothing state untouched so the next tick retries.
func (c *Controller) Tick(ctx context.Context) SkipReason {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.navigating {
		return SkipNotNavigating
	}

	next, pose, skip := Step(c.state, c.source.Inputs(), c.now(), c.settings)
	if skip != SkipNone {
		metrics.CameraTicks.WithLabelValues(string(skip)).Inc()
		return skip
	}

	if err := c.camera.SetCamera(pose); err != nil {
		metrics.CameraErrors.Inc()
		metrics.CameraTicks.WithLabelValues(string(SkipHostError)).Inc()
		logging.Warnw(ctx, "Navigation camera: set camera failed", "error", err)
		return SkipHostError
	}

	c.state = next
	c.lastPose = &pose
	metrics.CameraTicks.WithLabelValues("applied").Inc()
	return SkipNone
}

// runTick keeps the chain alive across a panicking host; the panicked tick
// leaves the smoothing state as it was.
func (c *Controller) runTick(ctx context.Context) (next time.Duration) {
	next = c.settings.Interval
	defer func() {
		if r := recover(); r != nil {
			err, _ := errors.ParseStack(debug.Stack())
			skipFrames := 3
			numFrames := 5
			metrics.CameraErrors.Inc()
			metrics.CameraTicks.WithLabelValues(string(SkipHostError)).Inc()
			logging.Errorw(ctx, "Navigation camera: recovered from panic",
				"error", r, "error.stack_trace", err.MinimalStack(skipFrames, numFrames))
		}
	}()

	c.Tick(ctx)
	return next
}
