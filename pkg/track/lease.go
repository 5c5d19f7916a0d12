package track

import (
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// lease is the Iterator handed to a consumer. Every Acquire produces a new
// lease, so the pool can tell leases of the same resource apart.
type lease struct {
	inner   Iterator
	release func() error
	done    bool
}

var errLeaseDone = errors.New(errors.ErrorTypeValidation, "iterator used after it was returned to its source")

func (l *lease) HasNext() bool {
	return !l.done && l.inner.HasNext()
}

func (l *lease) Next() (*RecordList, error) {
	if l.done {
		return nil, errLeaseDone
	}
	return l.inner.Next()
}

func (l *lease) SeekForward(interval genome.Loc) (*RecordList, error) {
	if l.done {
		return nil, errLeaseDone
	}
	return l.inner.SeekForward(interval)
}

func (l *lease) Position() *genome.Loc {
	if l.done {
		return nil
	}
	return l.inner.Position()
}

func (l *lease) PeekNextLocation() *genome.Loc {
	if l.done {
		return nil
	}
	return l.inner.PeekNextLocation()
}

// Close returns the lease to its source. Closing twice is a no-op.
func (l *lease) Close() error {
	if l.done || l.release == nil {
		return nil
	}
	return l.release()
}

// finish ends the lease without touching the pool.
func (l *lease) finish() {
	l.done = true
	l.release = nil
}
