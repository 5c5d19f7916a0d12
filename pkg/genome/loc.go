// Package genome provides the reference coordinate model used by trackpool:
// contig-qualified, 1-based closed intervals ordered by a sequence dictionary.
package genome

import (
	"fmt"
	"strconv"
)

// Loc is a closed interval [Start, Stop] on a contig. ContigIndex is the
// contig's rank in the Dictionary that produced the Loc; all ordering is by
// (ContigIndex, Start, Stop). A Start of 0 is reserved for "before the first
// base" positions produced by iterators that were rewound.
type Loc struct {
	ContigIndex int
	Contig      string
	Start       int64
	Stop        int64
}

// String renders the location as contig:start-stop, or contig:pos for points.
func (l Loc) String() string {
	if l.Start == l.Stop {
		return l.Contig + ":" + strconv.FormatInt(l.Start, 10)
	}
	return fmt.Sprintf("%s:%d-%d", l.Contig, l.Start, l.Stop)
}

// Size returns the number of bases covered.
func (l Loc) Size() int64 { return l.Stop - l.Start + 1 }

// IsPoint reports whether the location covers a single base.
func (l Loc) IsPoint() bool { return l.Start == l.Stop }

// SameContig reports whether both locations are on the same contig.
func (l Loc) SameContig(o Loc) bool { return l.ContigIndex == o.ContigIndex }

// Compare orders locations by contig, then start, then stop.
func (l Loc) Compare(o Loc) int {
	switch {
	case l.ContigIndex != o.ContigIndex:
		return cmpInt64(int64(l.ContigIndex), int64(o.ContigIndex))
	case l.Start != o.Start:
		return cmpInt64(l.Start, o.Start)
	default:
		return cmpInt64(l.Stop, o.Stop)
	}
}

// IsBefore reports whether l ends strictly before o begins.
func (l Loc) IsBefore(o Loc) bool {
	if l.ContigIndex != o.ContigIndex {
		return l.ContigIndex < o.ContigIndex
	}
	return l.Stop < o.Start
}

// IsPast reports whether l begins strictly after o ends.
func (l Loc) IsPast(o Loc) bool {
	if l.ContigIndex != o.ContigIndex {
		return l.ContigIndex > o.ContigIndex
	}
	return l.Start > o.Stop
}

// Overlaps reports whether the two intervals share at least one base.
func (l Loc) Overlaps(o Loc) bool {
	return l.ContigIndex == o.ContigIndex && l.Start <= o.Stop && o.Start <= l.Stop
}

// Contains reports whether o lies entirely within l.
func (l Loc) Contains(o Loc) bool {
	return l.ContigIndex == o.ContigIndex && l.Start <= o.Start && o.Stop <= l.Stop
}

// StartPoint returns the single-base location at l.Start.
func (l Loc) StartPoint() Loc { return l.At(l.Start) }

// StopPoint returns the single-base location at l.Stop.
func (l Loc) StopPoint() Loc { return l.At(l.Stop) }

// At returns the single-base location at pos on l's contig.
func (l Loc) At(pos int64) Loc {
	return Loc{ContigIndex: l.ContigIndex, Contig: l.Contig, Start: pos, Stop: pos}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
