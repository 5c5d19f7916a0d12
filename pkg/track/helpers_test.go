package track

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/pkg/genome"
)

var testDict = genome.MustDictionary(
	genome.Contig{Name: "chr1", Length: 10000},
	genome.Contig{Name: "chr2", Length: 10000},
)

type testFeature struct {
	loc  genome.Loc
	name string
}

func (f *testFeature) Location() genome.Loc { return f.loc }
func (f *testFeature) Name() string         { return f.name }

func feat(t *testing.T, contig string, start, stop int64) *testFeature {
	t.Helper()
	loc, err := testDict.Loc(contig, start, stop)
	require.NoError(t, err)
	return &testFeature{loc: loc, name: loc.String()}
}

func loc(t *testing.T, s string) genome.Loc {
	t.Helper()
	l, err := testDict.Parse(s)
	require.NoError(t, err)
	return l
}

type sliceReader struct {
	features []Feature
	pos      int
	closed   bool
	err      error
}

func newSliceReader(fs ...Feature) *sliceReader {
	return &sliceReader{features: fs}
}

func (r *sliceReader) Read() (Feature, error) {
	if r.pos >= len(r.features) {
		if r.err != nil {
			return nil, r.err
		}
		return nil, io.EOF
	}
	f := r.features[r.pos]
	r.pos++
	return f, nil
}

func (r *sliceReader) Close() error {
	r.closed = true
	return nil
}

// memQueryable answers queries by filtering an in-memory, sorted slice.
type memQueryable struct {
	features []Feature
	closed   bool
}

func (q *memQueryable) Query(l genome.Loc) (FeatureReader, error) {
	var out []Feature
	for _, f := range q.features {
		if f.Location().Overlaps(l) {
			out = append(out, f)
		}
	}
	return newSliceReader(out...), nil
}

func (q *memQueryable) Iterator() (FeatureReader, error) {
	return newSliceReader(q.features...), nil
}

func (q *memQueryable) Close() error {
	q.closed = true
	return nil
}

// openCounter counts opener invocations across goroutines.
type openCounter struct {
	mu      sync.Mutex
	streams []*sliceReader
	handles []*memQueryable
}

func (c *openCounter) stream(fs ...Feature) StreamOpener {
	return func(ctx context.Context) (FeatureReader, Opened, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		r := newSliceReader(fs...)
		c.streams = append(c.streams, r)
		return r, Opened{Header: Header{Format: "test"}, Dictionary: testDict}, nil
	}
}

func (c *openCounter) query(fs ...Feature) QueryOpener {
	return func(ctx context.Context) (Queryable, Opened, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		q := &memQueryable{features: fs}
		c.handles = append(c.handles, q)
		return q, Opened{Header: Header{Format: "test"}, Dictionary: testDict}, nil
	}
}

func (c *openCounter) opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.streams) + len(c.handles)
}

func names(rl *RecordList) []string {
	if rl == nil {
		return nil
	}
	out := make([]string, len(rl.Records))
	for i, r := range rl.Records {
		out[i] = r.Name()
	}
	return out
}

func drain(t *testing.T, it Iterator) []genome.Loc {
	t.Helper()
	var sites []genome.Loc
	for it.HasNext() {
		rl, err := it.Next()
		require.NoError(t, err)
		sites = append(sites, rl.Location)
	}
	return sites
}
