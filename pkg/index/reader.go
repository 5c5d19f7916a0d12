package index

import (
	"io"
	"strings"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/mmap"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// Reader is one independent query handle on an indexed file. It owns a
// private mapping of the data; the index itself is shared.
type Reader struct {
	idx   *Index
	codec codec.Codec
	data  *mmap.Reader
}

// Open maps path for queries through idx.
func Open(path string, idx *Index, c codec.Codec) (*Reader, error) {
	m, err := mmap.NewReader(path)
	if err != nil {
		return nil, err
	}
	if m.Len() != idx.Size {
		m.Close()
		return nil, errors.Newf(errors.ErrorTypeData, "index describes %d bytes but file has %d", idx.Size, m.Len()).
			WithDetail("path", path)
	}
	_ = m.Advise(mmap.AdviceRandom)
	return &Reader{idx: idx, codec: c, data: m}, nil
}

// Query implements track.Queryable.
func (r *Reader) Query(loc genome.Loc) (track.FeatureReader, error) {
	if _, ok := r.idx.dict.IndexOf(loc.Contig); !ok {
		return nil, errors.Newf(errors.ErrorTypeQuery, "contig %s is not in the track dictionary", loc.Contig)
	}
	return &entryReader{r: r, positions: r.idx.Overlapping(loc)}, nil
}

// Iterator implements track.Queryable.
func (r *Reader) Iterator() (track.FeatureReader, error) {
	all := make([]int, len(r.idx.Entries))
	for i := range all {
		all[i] = i
	}
	return &entryReader{r: r, positions: all}, nil
}

// Close unmaps the data file.
func (r *Reader) Close() error {
	return r.data.Close()
}

type entryReader struct {
	r         *Reader
	positions []int
	next      int
	closed    bool
}

func (e *entryReader) Read() (track.Feature, error) {
	if e.closed {
		return nil, errors.New(errors.ErrorTypeClosed, "query reader is closed")
	}
	for e.next < len(e.positions) {
		entry := e.r.idx.Entries[e.positions[e.next]]
		e.next++

		raw, err := e.r.data.ReadRange(entry.Offset, entry.Length)
		if err != nil {
			return nil, err
		}
		f, err := e.r.codec.Decode(strings.TrimRight(string(raw), "\r\n"), e.r.idx.dict)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "decoding indexed record").
				WithDetail("offset", entry.Offset)
		}
		if f != nil {
			return f, nil
		}
	}
	return nil, io.EOF
}

func (e *entryReader) Close() error {
	e.closed = true
	return nil
}
