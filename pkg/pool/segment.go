package pool

import "github.com/ajitpratap0/trackpool/pkg/genome"

// Segment describes what a consumer wants from a leased iterator: either the
// data around a reference location, or the whole track from its first record.
// The zero value is unset and Acquire rejects it; use PositionedAt or
// EntireStream.
type Segment struct {
	loc        genome.Loc
	positioned bool
	set        bool
}

// PositionedAt requests an iterator that can reach loc moving forward only.
func PositionedAt(loc genome.Loc) Segment {
	return Segment{loc: loc, positioned: true, set: true}
}

// EntireStream requests an iterator over every record from the beginning.
func EntireStream() Segment {
	return Segment{set: true}
}

// IsSet reports whether the segment was built by PositionedAt or
// EntireStream.
func (s Segment) IsSet() bool { return s.set }

// IsEntireStream reports whether the segment asks for the whole track.
func (s Segment) IsEntireStream() bool { return s.set && !s.positioned }

// Location returns the target location of a positioned segment. ok is false
// for EntireStream.
func (s Segment) Location() (loc genome.Loc, ok bool) {
	return s.loc, s.positioned
}

func (s Segment) String() string {
	switch {
	case s.positioned:
		return "positioned at " + s.loc.String()
	case s.set:
		return "entire stream"
	default:
		return "invalid segment"
	}
}
