// Package track exposes reference-ordered annotation tracks to concurrent
// consumers. A Source leases position-aware iterators out of a
// pool.ResourcePool whose policy depends on how the track is stored.
package track

import (
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// Feature is a single decoded record of a track. Implementations must be
// comparable; codecs return pointers.
type Feature interface {
	Location() genome.Loc
	Name() string
}

// FeatureReader yields features in reference order. Read returns io.EOF once
// the data is exhausted.
type FeatureReader interface {
	Read() (Feature, error)
	Close() error
}

// RecordList groups every record overlapping a site or query interval.
type RecordList struct {
	Name     string
	Location genome.Loc
	Records  []Feature
}

// Len returns the number of records in the list.
func (l *RecordList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Records)
}

// Header is the metadata block that precedes the records of a track.
type Header struct {
	Format string
	Lines  []string
}

// Equal reports whether both headers carry the same format and lines.
func (h Header) Equal(o Header) bool {
	if h.Format != o.Format || len(h.Lines) != len(o.Lines) {
		return false
	}
	for i := range h.Lines {
		if h.Lines[i] != o.Lines[i] {
			return false
		}
	}
	return true
}

// Iterator is a forward-only, position-aware cursor over a track.
//
// Next advances to the next reference site covered by at least one record
// and returns every record overlapping it. SeekForward jumps to an interval
// at or after the current position and returns the records overlapping it,
// or nil when there are none. After a SeekForward to an interval longer than
// one base, Next is refused until a single-base SeekForward.
type Iterator interface {
	HasNext() bool
	Next() (*RecordList, error)
	SeekForward(interval genome.Loc) (*RecordList, error)
	// Position is nil until the iterator is first advanced.
	Position() *genome.Loc
	// PeekNextLocation is the site Next would move to, nil at the end.
	PeekNextLocation() *genome.Loc
	Close() error
}
