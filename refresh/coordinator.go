package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrRefreshPanicked is returned to every waiter when the refresh function panics.
var ErrRefreshPanicked = errors.New("refresh function panicked")

// Func performs one refresh call. The context is detached from the callers that triggered
// it and bounded by Options.Timeout.
type Func[T any] func(ctx context.Context) (T, error)

// Outcome reports a finished refresh to the observer hook.
type Outcome struct {
	// Waiters counts callers still waiting when the call returned. Callers whose context
	// ended before that have already left the queue and are not included.
	Waiters  int
	Duration time.Duration
	Err      error
}

// Options configures a Coordinator.
type Options struct {
	// Timeout bounds a single refresh call. Zero means 30s.
	Timeout time.Duration
	// OnStart is invoked when a refresh begins, with the coordinator lock held. It must not
	// call back into the coordinator.
	OnStart func()
	// OnComplete is invoked after the refresh call returned and before its result is
	// published. It may call Seed or Reset. A non-nil return value runs after the waiters
	// have been released and the coordinator is idle, so it may make calls that go back
	// through Do.
	OnComplete func(Outcome) (after func())
}

type result[T any] struct {
	value      T
	generation uint64
	err        error
}

// Coordinator guarantees at most one refresh in flight and fans its outcome out to every
// waiter queued during that flight.
type Coordinator[T any] struct {
	fn   Func[T]
	opts Options

	mu         sync.Mutex
	refreshing bool
	waiters    []chan result[T]
	generation uint64
	last       T
	lastErr    error
	hasLast    bool
	seeded     bool
}

// New builds a Coordinator around fn.
func New[T any](fn Func[T], opts Options) *Coordinator[T] {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Coordinator[T]{fn: fn, opts: opts}
}

// Generation returns the number of completed refreshes plus seeds and resets. Callers
// record it before using a credential and hand it back to Do when that credential is
// rejected.
func (c *Coordinator[T]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// InFlight reports whether a refresh is currently running.
func (c *Coordinator[T]) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Do returns a refreshed value for a caller whose credential from generation observed was
// rejected.
//
// If a refresh has already completed after observed, its outcome is returned without a new
// call. If one is in flight the caller joins its queue. Otherwise Do starts it. ctx only
// bounds how long this caller waits.
func (c *Coordinator[T]) Do(ctx context.Context, observed uint64) (T, uint64, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if observed < c.generation && !c.refreshing && (c.hasLast || c.lastErr != nil) {
		v, gen, err := c.last, c.generation, c.lastErr
		c.mu.Unlock()
		return v, gen, err
	}

	ch := make(chan result[T], 1)
	c.waiters = append(c.waiters, ch)
	if !c.refreshing {
		c.refreshing = true
		if c.opts.OnStart != nil {
			c.opts.OnStart()
		}
		go c.run()
	}
	c.mu.Unlock()

	select {
	case r := <-ch:
		return r.value, r.generation, r.err
	case <-ctx.Done():
		c.leave(ch)
		var zero T
		return zero, 0, ctx.Err()
	}
}

// leave removes a cancelled waiter. After publication the queue is already empty and the
// buffered result is simply never read.
func (c *Coordinator[T]) leave(ch chan result[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, w := range c.waiters {
		if w == ch {
			c.waiters = append(c.waiters[:i], c.waiters[i+1:]...)
			return
		}
	}
}

// Seed installs a value obtained outside the coordinator, such as a fresh login, and
// advances the generation so that credentials from before the seed are treated as stale.
// A refresh already in flight is not interrupted. If it succeeds its result supersedes the
// seed; if it fails its waiters receive the seeded value instead of the error.
func (c *Coordinator[T]) Seed(v T) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing {
		c.seeded = true
	}
	c.generation++
	c.last = v
	c.lastErr = nil
	c.hasLast = true
	return c.generation
}

// Reset forgets the last value and advances the generation. Stale callers then start a
// fresh refresh rather than replaying a value that was revoked.
func (c *Coordinator[T]) Reset() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	c.generation++
	c.seeded = false
	c.last = zero
	c.lastErr = nil
	c.hasLast = false
	return c.generation
}

func (c *Coordinator[T]) run() {
	start := time.Now()
	var (
		value T
		err   error
	)

	defer func() {
		// The hook runs while the refresh still counts as in flight, so callers arriving
		// meanwhile join this batch instead of starting another refresh.
		var after func()
		if c.opts.OnComplete != nil {
			c.mu.Lock()
			waiting := len(c.waiters)
			c.mu.Unlock()
			after = c.opts.OnComplete(Outcome{
				Waiters:  waiting,
				Duration: time.Since(start),
				Err:      err,
			})
		}

		c.mu.Lock()
		if err != nil && c.seeded {
			value, err = c.last, nil
		}
		c.generation++
		gen := c.generation
		c.last, c.lastErr, c.hasLast = value, err, err == nil
		waiters := c.waiters
		c.waiters = nil
		c.refreshing = false
		c.seeded = false
		c.mu.Unlock()

		res := result[T]{value: value, generation: gen, err: err}
		for _, w := range waiters {
			w <- res
		}
		if after != nil {
			after()
		}
	}()

	value, err = c.call()
}

func (c *Coordinator[T]) call() (value T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			value = zero
			err = fmt.Errorf("%w: %v", ErrRefreshPanicked, r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.fn(ctx)
}
