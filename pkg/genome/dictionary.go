package genome

import (
	"math"
	"strconv"
	"strings"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

// Contig is a named reference sequence. A zero Length means unknown.
type Contig struct {
	Name   string
	Length int64
}

// Dictionary is the coordinate system of a track: the ordered list of contigs
// that every Loc is ranked against. A Dictionary is immutable after
// construction and safe for concurrent use.
type Dictionary struct {
	contigs []Contig
	index   map[string]int
}

// NewDictionary builds a dictionary from contigs in reference order.
func NewDictionary(contigs []Contig) (*Dictionary, error) {
	d := &Dictionary{
		contigs: make([]Contig, len(contigs)),
		index:   make(map[string]int, len(contigs)),
	}
	for i, c := range contigs {
		if c.Name == "" {
			return nil, errors.Newf(errors.ErrorTypeValidation, "contig %d has no name", i)
		}
		if c.Length < 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "contig %s has negative length", c.Name)
		}
		if _, dup := d.index[c.Name]; dup {
			return nil, errors.Newf(errors.ErrorTypeValidation, "contig %s listed twice", c.Name)
		}
		d.contigs[i] = c
		d.index[c.Name] = i
	}
	return d, nil
}

// MustDictionary is NewDictionary for static tables; it panics on error.
func MustDictionary(contigs ...Contig) *Dictionary {
	d, err := NewDictionary(contigs)
	if err != nil {
		panic(err)
	}
	return d
}

// Len returns the number of contigs.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.contigs)
}

// Contigs returns a copy of the contig list.
func (d *Dictionary) Contigs() []Contig {
	out := make([]Contig, len(d.contigs))
	copy(out, d.contigs)
	return out
}

// IndexOf returns the rank of the named contig.
func (d *Dictionary) IndexOf(name string) (int, bool) {
	i, ok := d.index[name]
	return i, ok
}

// Equal reports whether both dictionaries list the same contigs in the same order.
func (d *Dictionary) Equal(o *Dictionary) bool {
	if d == o {
		return true
	}
	if d == nil || o == nil || len(d.contigs) != len(o.contigs) {
		return false
	}
	for i := range d.contigs {
		if d.contigs[i] != o.contigs[i] {
			return false
		}
	}
	return true
}

// Loc builds a validated location on the named contig.
func (d *Dictionary) Loc(contig string, start, stop int64) (Loc, error) {
	i, ok := d.index[contig]
	if !ok {
		return Loc{}, errors.Newf(errors.ErrorTypeNotFound, "contig %s is not in the sequence dictionary", contig)
	}
	if start < 1 || stop < start {
		return Loc{}, errors.Newf(errors.ErrorTypeValidation, "invalid interval %s:%d-%d", contig, start, stop)
	}
	if n := d.contigs[i].Length; n > 0 && stop > n {
		return Loc{}, errors.Newf(errors.ErrorTypeValidation, "interval %s:%d-%d extends past contig end %d", contig, start, stop, n)
	}
	return Loc{ContigIndex: i, Contig: contig, Start: start, Stop: stop}, nil
}

// Point builds a single-base location.
func (d *Dictionary) Point(contig string, pos int64) (Loc, error) {
	return d.Loc(contig, pos, pos)
}

// WholeContig returns the location spanning the entire named contig. Contigs
// of unknown length span up to math.MaxInt64.
func (d *Dictionary) WholeContig(contig string) (Loc, error) {
	i, ok := d.index[contig]
	if !ok {
		return Loc{}, errors.Newf(errors.ErrorTypeNotFound, "contig %s is not in the sequence dictionary", contig)
	}
	stop := d.contigs[i].Length
	if stop == 0 {
		stop = math.MaxInt64
	}
	return Loc{ContigIndex: i, Contig: contig, Start: 1, Stop: stop}, nil
}

// Parse reads "chr1", "chr1:100" or "chr1:100-200". Commas in numbers are ignored.
func (d *Dictionary) Parse(s string) (Loc, error) {
	s = strings.TrimSpace(s)
	colon := strings.LastIndexByte(s, ':')
	if colon < 0 {
		return d.WholeContig(s)
	}
	contig, span := s[:colon], strings.ReplaceAll(s[colon+1:], ",", "")
	if _, ok := d.index[contig]; !ok {
		// contig names may themselves contain ':'
		if _, whole := d.index[s]; whole {
			return d.WholeContig(s)
		}
	}

	startStr, stopStr, isRange := strings.Cut(span, "-")
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return Loc{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid interval "+s)
	}
	stop := start
	if isRange {
		if stop, err = strconv.ParseInt(stopStr, 10, 64); err != nil {
			return Loc{}, errors.Wrap(err, errors.ErrorTypeValidation, "invalid interval "+s)
		}
	}
	return d.Loc(contig, start, stop)
}

// Compare orders two locations of this coordinate system.
func (d *Dictionary) Compare(a, b Loc) int { return a.Compare(b) }

// IsBefore reports whether a ends strictly before b begins.
func (d *Dictionary) IsBefore(a, b Loc) bool { return a.IsBefore(b) }

// Split cuts loc into consecutive pieces of at most size bases.
func (d *Dictionary) Split(loc Loc, size int64) []Loc {
	if size <= 0 || loc.Size() <= size {
		return []Loc{loc}
	}
	out := make([]Loc, 0, loc.Size()/size+1)
	for start := loc.Start; start <= loc.Stop; start += size {
		stop := start + size - 1
		if stop > loc.Stop || stop < start {
			stop = loc.Stop
		}
		out = append(out, Loc{ContigIndex: loc.ContigIndex, Contig: loc.Contig, Start: start, Stop: stop})
		if stop == loc.Stop {
			break
		}
	}
	return out
}

// Shards tiles every contig of known length with pieces of at most size bases,
// in reference order.
func (d *Dictionary) Shards(size int64) ([]Loc, error) {
	var out []Loc
	for i, c := range d.contigs {
		if c.Length == 0 {
			return nil, errors.Newf(errors.ErrorTypeConfig, "contig %s has no length; cannot shard the reference", c.Name)
		}
		whole := Loc{ContigIndex: i, Contig: c.Name, Start: 1, Stop: c.Length}
		out = append(out, d.Split(whole, size)...)
	}
	return out, nil
}
