package track

import (
	stderrors "errors"
	"io"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// SeekableIterator turns a reference-ordered FeatureReader into an Iterator.
// It keeps the pile of records overlapping the current site and loads more
// as the site moves forward. It is not safe for concurrent use.
type SeekableIterator struct {
	name   string
	reader *peekReader

	records []Feature
	started bool
	contig  genome.Loc // ContigIndex and Contig of the current site
	pos     int64
	maxPos  int64 // rightmost stop of the loaded records

	// queryEnd is the stop of the last SeekForward. Later queries may not end
	// before it: records past it may already be loaded and cannot be unread.
	queryEnd    int64
	nextAllowed bool

	err error
}

// NewSeekableIterator wraps r. name labels every RecordList produced.
func NewSeekableIterator(name string, r FeatureReader) *SeekableIterator {
	return &SeekableIterator{
		name:        name,
		reader:      newPeekReader(r),
		queryEnd:    -1,
		nextAllowed: true,
	}
}

// HasNext reports whether Next has another site to move to. A read error
// makes HasNext true so that Next can return it.
func (it *SeekableIterator) HasNext() bool {
	if it.err != nil {
		return true
	}
	if it.started && it.pos < it.maxPos {
		return true
	}
	_, err := it.reader.peek()
	if err == nil {
		return true
	}
	if !stderrors.Is(err, io.EOF) {
		it.err = errors.Wrap(err, errors.ErrorTypeData, "reading track "+it.name)
		return true
	}
	return false
}

// PeekNextLocation returns the site Next would move to without loading it.
func (it *SeekableIterator) PeekNextLocation() *genome.Loc {
	if it.started && it.pos+1 <= it.maxPos {
		loc := it.contig.At(it.pos + 1)
		return &loc
	}
	f, err := it.reader.peek()
	if err != nil {
		if !stderrors.Is(err, io.EOF) {
			it.err = errors.Wrap(err, errors.ErrorTypeData, "reading track "+it.name)
		}
		return nil
	}
	loc := f.Location().StartPoint()
	return &loc
}

// Next moves to the next covered site and returns every record overlapping
// it. It returns io.EOF when the track is exhausted.
func (it *SeekableIterator) Next() (*RecordList, error) {
	if !it.nextAllowed {
		return nil, errors.New(errors.ErrorTypeValidation,
			"cannot advance with next after a seek-forward query longer than one base")
	}
	if it.err != nil {
		return nil, it.err
	}

	it.pos++
	if it.started && it.pos <= it.maxPos {
		it.purge()
	} else {
		f, err := it.reader.read()
		if err != nil {
			it.pos--
			if stderrors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			it.err = errors.Wrap(err, errors.ErrorTypeData, "reading track "+it.name)
			return nil, it.err
		}
		loc := f.Location()
		if it.started {
			if err := it.checkOrder(f); err != nil {
				it.reader.pushback(f)
				it.pos--
				return nil, err
			}
		}
		it.records = append(it.records[:0], f)
		it.contig = loc
		it.pos = loc.Start
		it.maxPos = loc.Stop
		it.started = true
	}

	if err := it.loadOverlapping(); err != nil {
		return nil, err
	}
	return it.list(it.contig.At(it.pos)), nil
}

// loadOverlapping pulls in every pending record that starts at the current
// site.
func (it *SeekableIterator) loadOverlapping() error {
	for {
		f, err := it.reader.peek()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			it.err = errors.Wrap(err, errors.ErrorTypeData, "reading track "+it.name)
			return it.err
		}
		loc := f.Location()
		if loc.ContigIndex > it.contig.ContigIndex {
			return nil
		}
		if err := it.checkOrder(f); err != nil {
			return err
		}
		if loc.Start > it.pos {
			return nil
		}
		_, _ = it.reader.read()
		if loc.Stop > it.maxPos {
			it.maxPos = loc.Stop
		}
		it.records = append(it.records, f)
	}
}

func (it *SeekableIterator) checkOrder(f Feature) error {
	loc := f.Location()
	if loc.ContigIndex < it.contig.ContigIndex {
		return errors.Newf(errors.ErrorTypeData, "track %s: contig %s occurs out of order", it.name, loc.Contig).
			WithDetail("record", loc.String())
	}
	if loc.ContigIndex == it.contig.ContigIndex && loc.Start < it.pos {
		return errors.Newf(errors.ErrorTypeData, "track %s: record %s is out of coordinate order at %s",
			it.name, loc, it.contig.At(it.pos))
	}
	return nil
}

// SeekForward moves to interval and returns every record overlapping it, or
// nil if there are none. The interval may not start before the current site,
// nor end before the previous query.
func (it *SeekableIterator) SeekForward(interval genome.Loc) (*RecordList, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.started {
		if interval.ContigIndex < it.contig.ContigIndex {
			return nil, errors.Newf(errors.ErrorTypeValidation,
				"out of order query: contig %s is before the current contig %s", interval.Contig, it.contig.Contig)
		}
		if interval.ContigIndex == it.contig.ContigIndex {
			if interval.Start < it.pos {
				return nil, errors.Newf(errors.ErrorTypeValidation,
					"out of order query: %s starts before the current position %s", interval, it.contig.At(it.pos))
			}
			if interval.Stop < it.queryEnd {
				return nil, errors.Newf(errors.ErrorTypeValidation,
					"query %s ends before the previous query end %d", interval, it.queryEnd)
			}
		}
	}

	sameContig := it.started && interval.ContigIndex == it.contig.ContigIndex
	it.pos = interval.Start
	it.queryEnd = interval.Stop
	it.nextAllowed = interval.Start == interval.Stop

	if sameContig && it.pos <= it.maxPos {
		it.purge()
	} else {
		it.records = it.records[:0]
		it.maxPos = -1
		it.contig = interval
	}
	it.started = true

	for {
		f, err := it.reader.read()
		if err != nil {
			if stderrors.Is(err, io.EOF) {
				break
			}
			it.err = errors.Wrap(err, errors.ErrorTypeData, "reading track "+it.name)
			return nil, it.err
		}
		loc := f.Location()
		if loc.ContigIndex < it.contig.ContigIndex {
			continue
		}
		if loc.ContigIndex > it.contig.ContigIndex {
			it.reader.pushback(f)
			break
		}
		if loc.Stop < it.pos {
			continue
		}
		if loc.Start > it.queryEnd {
			it.reader.pushback(f)
			break
		}
		if loc.Stop > it.maxPos {
			it.maxPos = loc.Stop
		}
		it.records = append(it.records, f)
	}

	if len(it.records) == 0 {
		return nil, nil
	}
	return it.list(interval), nil
}

// Position returns the current site. After an extended query it reports the
// query end so that the iterator is never reused for a site inside it.
func (it *SeekableIterator) Position() *genome.Loc {
	if !it.started {
		return nil
	}
	p := it.pos
	if it.queryEnd > p {
		p = it.queryEnd
	}
	loc := it.contig.At(p)
	return &loc
}

// Name returns the label given at construction.
func (it *SeekableIterator) Name() string { return it.name }

// Close closes the underlying reader.
func (it *SeekableIterator) Close() error {
	it.records = nil
	return it.reader.Close()
}

// purge drops loaded records that end before the current site.
func (it *SeekableIterator) purge() {
	kept := it.records[:0]
	for _, f := range it.records {
		if f.Location().Stop >= it.pos {
			kept = append(kept, f)
		}
	}
	for i := len(kept); i < len(it.records); i++ {
		it.records[i] = nil
	}
	it.records = kept
}

func (it *SeekableIterator) list(loc genome.Loc) *RecordList {
	recs := make([]Feature, len(it.records))
	copy(recs, it.records)
	return &RecordList{Name: it.name, Location: loc, Records: recs}
}
