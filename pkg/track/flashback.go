package track

import (
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// FlashbackIterator remembers the last window record lists it produced so
// that a single-pass iterator can be moved back a short distance without
// reopening its source. Replayed lists are yielded before the inner iterator
// is consulted again.
type FlashbackIterator struct {
	inner  Iterator
	window int

	past    []*RecordList // oldest first
	ahead   []*RecordList // replay queue, next first
	evicted bool

	// seekFloor is the start of the last query that reached the inner
	// iterator. Records before it may have been skipped unseen.
	seekFloor *genome.Loc

	pos *genome.Loc
}

// NewFlashbackIterator wraps inner with a history of window record lists.
func NewFlashbackIterator(inner Iterator, window int) *FlashbackIterator {
	if window < 1 {
		window = 1
	}
	return &FlashbackIterator{inner: inner, window: window}
}

// HasNext reports whether a replayed or fresh site remains.
func (f *FlashbackIterator) HasNext() bool {
	return len(f.ahead) > 0 || f.inner.HasNext()
}

// PeekNextLocation returns the site Next would move to.
func (f *FlashbackIterator) PeekNextLocation() *genome.Loc {
	if len(f.ahead) > 0 {
		loc := f.ahead[0].Location.StartPoint()
		return &loc
	}
	return f.inner.PeekNextLocation()
}

// Next yields the next replayed list, or the inner iterator's next one.
func (f *FlashbackIterator) Next() (*RecordList, error) {
	var rl *RecordList
	if len(f.ahead) > 0 {
		rl = f.ahead[0]
		f.ahead[0] = nil
		f.ahead = f.ahead[1:]
	} else {
		var err error
		rl, err = f.inner.Next()
		if err != nil {
			return nil, err
		}
	}
	f.remember(rl)
	loc := rl.Location.StopPoint()
	f.pos = &loc
	return rl, nil
}

// SeekForward answers from the replay queue first and queries the inner
// iterator only for what lies beyond it.
func (f *FlashbackIterator) SeekForward(interval genome.Loc) (*RecordList, error) {
	if f.pos != nil {
		if interval.ContigIndex < f.pos.ContigIndex ||
			(interval.ContigIndex == f.pos.ContigIndex && interval.Start < f.pos.Start) {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"out of order query: %s starts before the current position %s", interval, *f.pos)
		}
	}

	if len(f.ahead) == 0 {
		if rest, ok := f.beyondInner(interval); ok && rest == interval {
			rl, err := f.inner.SeekForward(interval)
			if err != nil {
				return nil, err
			}
			f.markSeek(interval)
			f.settle(interval, rl)
			return rl, nil
		}
	}

	seen := make(map[Feature]struct{})
	var recs []Feature
	collect := func(rl *RecordList) {
		for _, r := range rl.Records {
			if _, dup := seen[r]; dup || !r.Location().Overlaps(interval) {
				continue
			}
			seen[r] = struct{}{}
			recs = append(recs, r)
		}
	}

	for len(f.ahead) > 0 && !f.ahead[0].Location.IsPast(interval) {
		rl := f.ahead[0]
		f.ahead[0] = nil
		f.ahead = f.ahead[1:]
		collect(rl)
		f.remember(rl)
	}

	if len(f.ahead) == 0 {
		if rest, ok := f.beyondInner(interval); ok {
			rl, err := f.inner.SeekForward(rest)
			if err != nil {
				return nil, err
			}
			f.markSeek(rest)
			if rl != nil {
				collect(rl)
				f.remember(rl)
			}
		}
	}

	var out *RecordList
	if len(recs) > 0 {
		out = &RecordList{Name: f.name(), Location: interval, Records: recs}
	}
	f.settle(interval, nil)
	return out, nil
}

// beyondInner clips interval to the part the inner iterator has not reached.
func (f *FlashbackIterator) beyondInner(interval genome.Loc) (genome.Loc, bool) {
	ip := f.inner.Position()
	if ip == nil || interval.ContigIndex > ip.ContigIndex {
		return interval, true
	}
	switch {
	case interval.ContigIndex < ip.ContigIndex || (interval.Stop <= ip.Stop && interval.Start < ip.Stop):
		return genome.Loc{}, false
	case interval.Start >= ip.Stop:
		return interval, true
	}
	rest := interval
	rest.Start = ip.Stop + 1
	return rest, true
}

func (f *FlashbackIterator) markSeek(interval genome.Loc) {
	loc := interval.StartPoint()
	f.seekFloor = &loc
}

// settle records a query result and moves the position to the query end.
func (f *FlashbackIterator) settle(interval genome.Loc, rl *RecordList) {
	if rl != nil {
		f.remember(rl)
	}
	loc := interval.StopPoint()
	f.pos = &loc
}

func (f *FlashbackIterator) remember(rl *RecordList) {
	f.past = append(f.past, rl)
	if len(f.past) > f.window {
		f.past[0] = nil
		f.past = f.past[1:]
		f.evicted = true
	}
}

// CanFlashBackTo reports whether replaying history can reproduce everything
// from target onwards. A false result is a normal outcome.
func (f *FlashbackIterator) CanFlashBackTo(target genome.Loc) bool {
	if f.seekFloor != nil && target.Compare(*f.seekFloor) < 0 {
		return false
	}
	var farthest *genome.Loc
	if len(f.past) > 0 {
		loc := f.past[0].Location
		farthest = &loc
	} else {
		farthest = f.PeekNextLocation()
	}
	if farthest == nil {
		return true
	}
	return !farthest.IsPast(target)
}

// FlashBackTo queues every remembered list that is not before target for
// replay, leaving the position strictly before target.
func (f *FlashbackIterator) FlashBackTo(target genome.Loc) error {
	if !f.CanFlashBackTo(target) {
		return errors.Newf(errors.ErrorTypeCapability, "cannot flash back to %s", target)
	}
	i := len(f.past)
	for i > 0 && !f.past[i-1].Location.IsBefore(target) {
		i--
	}
	f.replayFrom(i)
	// A query that found nothing may have left the position inside target.
	if f.pos != nil && !f.pos.IsBefore(target) {
		loc := target.At(target.Start - 1)
		f.pos = &loc
	}
	return nil
}

// CanRewindToStart reports whether the whole history since the first record
// is still held.
func (f *FlashbackIterator) CanRewindToStart() bool {
	return !f.evicted && f.seekFloor == nil
}

// RewindToStart queues the entire history for replay and clears the
// position.
func (f *FlashbackIterator) RewindToStart() error {
	if !f.CanRewindToStart() {
		return errors.New(errors.ErrorTypeCapability, "history no longer reaches the start of the track")
	}
	f.replayFrom(0)
	f.pos = nil
	return nil
}

func (f *FlashbackIterator) replayFrom(i int) {
	moved := f.past[i:]
	if len(moved) == 0 {
		return
	}
	ahead := make([]*RecordList, 0, len(moved)+len(f.ahead))
	ahead = append(ahead, moved...)
	ahead = append(ahead, f.ahead...)
	f.ahead = ahead
	f.past = f.past[:i:i]

	switch {
	case len(f.past) > 0:
		loc := f.past[len(f.past)-1].Location.StopPoint()
		f.pos = &loc
	default:
		head := f.ahead[0].Location
		loc := head.At(head.Start - 1)
		f.pos = &loc
	}
}

// Position is the stop of the last list produced, or just before the next
// replayed one after a flashback.
func (f *FlashbackIterator) Position() *genome.Loc {
	if f.pos != nil {
		loc := *f.pos
		return &loc
	}
	return nil
}

// Close closes the inner iterator.
func (f *FlashbackIterator) Close() error {
	f.past, f.ahead = nil, nil
	return f.inner.Close()
}

func (f *FlashbackIterator) name() string {
	if n, ok := f.inner.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}
