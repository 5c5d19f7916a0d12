package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

// Policy supplies the source-specific half of a ResourcePool. The pool owns
// bookkeeping and synchronization; the policy knows how to open, position and
// close resources of type R and the iterators of type I handed to consumers.
//
// SelectExisting is called with the pool lock held and must not block. The
// other hooks run outside the lock and may perform I/O.
type Policy[R any, I comparable] interface {
	// MaxResources is the ceiling on live resources. Zero means unbounded.
	MaxResources() int
	// CreateResource opens a new resource. live is the number of resources
	// that exist or are being created at the time of the call.
	CreateResource(ctx context.Context, live int) (R, error)
	// SelectExisting returns the position in idle of a resource that can
	// serve seg, or -1 when none can. idle is ordered most recently released
	// first. The policy may reposition the chosen resource.
	SelectExisting(seg Segment, idle []R) int
	// BuildIterator creates the iterator handed to a consumer. Each call must
	// return a distinct value.
	BuildIterator(ctx context.Context, seg Segment, r R) (I, error)
	// CloseIterator ends a lease. It must leave r reusable.
	CloseIterator(it I, r R) error
	// CloseResource releases r for good.
	CloseResource(r R) error
}

// Observer receives pool events. Implementations must be safe for concurrent
// use; metrics.TrackObserver is the production one.
type Observer interface {
	ResourceCreated()
	ResourceReused()
	LeaseWaited(d time.Duration)
	SizeChanged(total, idle int)
}

type nopObserver struct{}

func (nopObserver) ResourceCreated()            {}
func (nopObserver) ResourceReused()             {}
func (nopObserver) LeaseWaited(time.Duration)   {}
func (nopObserver) SizeChanged(total, idle int) {}

// Option configures a ResourcePool.
type Option func(*options)

type options struct {
	logger   *zap.Logger
	observer Observer
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithObserver installs an event observer.
func WithObserver(obs Observer) Option {
	return func(o *options) { o.observer = obs }
}

// Stats is a point-in-time snapshot of a pool.
type Stats struct {
	Size    int
	Idle    int
	Leased  int
	Created int64
	Reused  int64
	Waits   int64
}

// ResourcePool leases iterators over a set of reusable resources. A resource
// is either idle or assigned to exactly one outstanding iterator. The pool is
// safe for concurrent use.
type ResourcePool[R any, I comparable] struct {
	name     string
	policy   Policy[R, I]
	logger   *zap.Logger
	observer Observer

	mu          sync.Mutex
	all         []R
	idle        []int // arena indices, most recently released last
	assignments map[I]int
	pending     int
	closed      bool
	released    chan struct{}

	stats struct {
		created int64
		reused  int64
		waits   int64
	}
}

// NewResourcePool creates an empty pool. No resource is opened until the
// first Acquire or Prime.
func NewResourcePool[R any, I comparable](name string, policy Policy[R, I], opts ...Option) *ResourcePool[R, I] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.observer == nil {
		o.observer = nopObserver{}
	}
	return &ResourcePool[R, I]{
		name:        name,
		policy:      policy,
		logger:      o.logger.With(zap.String("component", "resource_pool"), zap.String("pool", name)),
		observer:    o.observer,
		assignments: make(map[I]int),
		released:    make(chan struct{}),
	}
}

// Name returns the pool name given at construction.
func (p *ResourcePool[R, I]) Name() string { return p.name }

// Acquire leases an iterator for seg. It reuses an idle resource the policy
// accepts, creates a new one while under the ceiling, and otherwise waits
// for a release or for ctx to end. An unset segment is a contract violation.
func (p *ResourcePool[R, I]) Acquire(ctx context.Context, seg Segment) (I, error) {
	var zero I
	if !seg.IsSet() {
		errors.Violation("pool %s: acquire with an unset segment", p.name)
	}

	idx, r, err := p.reserve(ctx, seg)
	if err != nil {
		return zero, err
	}

	it, err := p.policy.BuildIterator(ctx, seg, r)
	if err != nil {
		p.mu.Lock()
		if !p.closed {
			p.idle = append(p.idle, idx)
		}
		p.signal()
		p.mu.Unlock()
		p.logger.Debug("iterator build failed", zap.Stringer("segment", seg), zap.Error(err))
		return zero, err
	}

	p.mu.Lock()
	if _, dup := p.assignments[it]; dup {
		p.mu.Unlock()
		errors.Violation("pool %s: policy returned an iterator that is already leased", p.name)
	}
	p.assignments[it] = idx
	p.mu.Unlock()

	return it, nil
}

// reserve returns an arena slot that belongs to the caller until it is
// recorded as an assignment or pushed back to idle.
func (p *ResourcePool[R, I]) reserve(ctx context.Context, seg Segment) (int, R, error) {
	var zero R
	var waitStart time.Time

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return -1, zero, errors.Newf(errors.ErrorTypeClosed, "pool %s is closed", p.name)
		}

		if len(p.idle) > 0 {
			candidates := p.idleResources()
			pick := p.policy.SelectExisting(seg, candidates)
			if pick >= len(candidates) {
				p.mu.Unlock()
				errors.Violation("pool %s: policy selected idle resource %d of %d", p.name, pick, len(candidates))
			}
			if pick >= 0 {
				idx := p.takeIdle(pick)
				r := p.all[idx]
				total, idle := len(p.all), len(p.idle)
				p.mu.Unlock()

				atomic.AddInt64(&p.stats.reused, 1)
				p.observer.ResourceReused()
				p.observer.SizeChanged(total, idle)
				p.observeWait(waitStart)
				return idx, r, nil
			}
		}

		live := len(p.all) + p.pending
		if max := p.policy.MaxResources(); max <= 0 || live < max {
			p.pending++
			p.mu.Unlock()

			idx, r, err := p.create(ctx, live)
			if err != nil {
				return -1, zero, err
			}
			p.observeWait(waitStart)
			p.logger.Debug("resource created", zap.Stringer("segment", seg), zap.Int("live", live+1))
			return idx, r, nil
		}

		if n := len(p.idle); n > 0 {
			p.mu.Unlock()
			errors.Violation("pool %s: resource ceiling %d reached and all %d idle resources refused %s",
				p.name, p.policy.MaxResources(), n, seg)
		}

		wake := p.released
		p.mu.Unlock()

		if waitStart.IsZero() {
			waitStart = time.Now()
			atomic.AddInt64(&p.stats.waits, 1)
		}
		select {
		case <-wake:
		case <-ctx.Done():
			return -1, zero, errors.Wrap(ctx.Err(), errors.ErrorTypeCanceled,
				"gave up waiting for a resource from pool "+p.name)
		}
	}
}

// create runs CreateResource outside the lock. The caller must already have
// counted the attempt in p.pending.
func (p *ResourcePool[R, I]) create(ctx context.Context, live int) (int, R, error) {
	var zero R

	r, err := p.policy.CreateResource(ctx, live)

	p.mu.Lock()
	p.pending--
	if err != nil {
		// A waiter may now be allowed to try its own creation.
		p.signal()
		p.mu.Unlock()
		return -1, zero, err
	}
	if p.closed {
		p.mu.Unlock()
		_ = p.policy.CloseResource(r)
		return -1, zero, errors.Newf(errors.ErrorTypeClosed, "pool %s closed while opening a resource", p.name)
	}
	p.all = append(p.all, r)
	idx := len(p.all) - 1
	total, idle := len(p.all), len(p.idle)
	p.mu.Unlock()

	atomic.AddInt64(&p.stats.created, 1)
	p.observer.ResourceCreated()
	p.observer.SizeChanged(total, idle)
	return idx, r, nil
}

// Release ends the lease of it, closes it through the policy and returns its
// resource to idle. Releasing an iterator this pool did not hand out, or one
// that was already released, is a contract violation. The returned error is
// the policy's CloseIterator error; the resource is recycled regardless.
func (p *ResourcePool[R, I]) Release(it I) error {
	p.mu.Lock()
	idx, ok := p.assignments[it]
	if !ok {
		p.mu.Unlock()
		errors.Violation("pool %s: released an iterator that is not leased from it", p.name)
	}
	delete(p.assignments, it)
	r := p.all[idx]
	p.mu.Unlock()

	closeErr := p.policy.CloseIterator(it, r)

	p.mu.Lock()
	if idx < 0 || idx >= len(p.all) || p.isIdle(idx) {
		p.mu.Unlock()
		errors.Violation("pool %s: resource %d returned twice", p.name, idx)
	}
	if p.closed {
		p.mu.Unlock()
		return closeErr
	}
	p.idle = append(p.idle, idx)
	p.signal()
	total, idle := len(p.all), len(p.idle)
	p.mu.Unlock()

	p.observer.SizeChanged(total, idle)
	if closeErr != nil {
		p.logger.Warn("iterator close failed", zap.Error(closeErr))
	}
	return closeErr
}

// Prime opens one resource straight into idle unless the ceiling is already
// reached. Sources use it to read header metadata before the first lease.
func (p *ResourcePool[R, I]) Prime(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.Newf(errors.ErrorTypeClosed, "pool %s is closed", p.name)
	}
	live := len(p.all) + p.pending
	if max := p.policy.MaxResources(); max > 0 && live >= max {
		p.mu.Unlock()
		return nil
	}
	p.pending++
	p.mu.Unlock()

	idx, _, err := p.create(ctx, live)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if !p.closed {
		p.idle = append(p.idle, idx)
		p.signal()
	}
	p.mu.Unlock()
	return nil
}

// Resources returns a snapshot of every resource the pool has opened, in
// creation order.
func (p *ResourcePool[R, I]) Resources() []R {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]R, len(p.all))
	copy(out, p.all)
	return out
}

// Close closes every resource and fails all current and future waiters.
// Iterators still leased become unusable; they are logged as leaked.
func (p *ResourcePool[R, I]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	all := p.all
	leaked := len(p.assignments)
	p.idle = nil
	p.signal()
	p.mu.Unlock()

	if leaked > 0 {
		p.logger.Warn("closing pool with outstanding leases", zap.Int("leaked", leaked))
	}

	var errs error
	for _, r := range all {
		errs = multierr.Append(errs, p.policy.CloseResource(r))
	}
	p.observer.SizeChanged(0, 0)
	p.logger.Debug("pool closed", zap.Int("resources", len(all)))
	return errs
}

// Size returns the number of resources opened so far.
func (p *ResourcePool[R, I]) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}

// IdleCount returns the number of resources waiting for a lease.
func (p *ResourcePool[R, I]) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Leased returns the number of outstanding iterators.
func (p *ResourcePool[R, I]) Leased() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.assignments)
}

// Stats returns a snapshot of pool occupancy and lifetime counters.
func (p *ResourcePool[R, I]) Stats() Stats {
	p.mu.Lock()
	s := Stats{Size: len(p.all), Idle: len(p.idle), Leased: len(p.assignments)}
	p.mu.Unlock()
	s.Created = atomic.LoadInt64(&p.stats.created)
	s.Reused = atomic.LoadInt64(&p.stats.reused)
	s.Waits = atomic.LoadInt64(&p.stats.waits)
	return s
}

func (p *ResourcePool[R, I]) observeWait(start time.Time) {
	if !start.IsZero() {
		p.observer.LeaseWaited(time.Since(start))
	}
}

// idleResources lists idle resources most recently released first.
// Requires p.mu.
func (p *ResourcePool[R, I]) idleResources() []R {
	out := make([]R, len(p.idle))
	for i := range p.idle {
		out[i] = p.all[p.idle[len(p.idle)-1-i]]
	}
	return out
}

// takeIdle removes the pick-th entry of idleResources order. Requires p.mu.
func (p *ResourcePool[R, I]) takeIdle(pick int) int {
	pos := len(p.idle) - 1 - pick
	idx := p.idle[pos]
	p.idle = append(p.idle[:pos], p.idle[pos+1:]...)
	return idx
}

func (p *ResourcePool[R, I]) isIdle(idx int) bool {
	for _, i := range p.idle {
		if i == idx {
			return true
		}
	}
	return false
}

// signal wakes every goroutine blocked in reserve. Requires p.mu.
func (p *ResourcePool[R, I]) signal() {
	close(p.released)
	p.released = make(chan struct{})
}
