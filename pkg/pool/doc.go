// Package pool implements position-aware leasing of reusable track
// resources. It is the concurrency core of trackpool: many traversal workers
// ask for an iterator near a reference coordinate and the pool decides
// whether an idle, already-advanced resource can serve the request or a new
// one has to be opened.
//
// Architecture
//
// ResourcePool[R, I] owns the bookkeeping: an arena of every resource it has
// opened, the idle subset and a table mapping each outstanding iterator to
// the resource it was built from. A Policy[R, I] owns the semantics: how many
// resources may exist, how to open one, which idle resource fits a Segment,
// and how to build and close iterators.
//
// Two policies live in package track:
//
//   - stream-backed: a single-pass source that can be opened exactly once.
//     The ceiling is one resource and reuse depends on the current position.
//   - index-backed: a randomly accessible source that can be opened many
//     times. Any idle resource serves any request.
//
// Segments
//
// A Segment is either PositionedAt(loc), meaning the consumer will read
// forward from loc, or EntireStream(), meaning it will read every record.
//
// Usage
//
//	p := pool.NewResourcePool[*handle, *lease]("genes", policy,
//		pool.WithLogger(logger),
//		pool.WithObserver(metrics.NewTrackObserver("genes")),
//	)
//	it, err := p.Acquire(ctx, pool.PositionedAt(loc))
//	if err != nil {
//		return err
//	}
//	defer p.Release(it)
//
// Contract violations
//
// Bookkeeping bugs, such as releasing an iterator twice, panic with an
// *errors.Error of type contract. Goroutine boundaries convert them with
// errors.RecoverViolation.
package pool
