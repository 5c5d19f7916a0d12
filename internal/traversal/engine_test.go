package traversal

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/pkg/builder"
	"github.com/ajitpratap0/trackpool/pkg/config"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/testutil"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

var reference = genome.MustDictionary(
	genome.Contig{Name: "chr1", Length: 100},
	genome.Contig{Name: "chr2", Length: 50},
)

var bed = testutil.Lines(
	"chr1\t9\t12\ta",
	"chr1\t45\t55\tspan",
	"chr1\t79\t80\tc",
	"chr2\t0\t5\td",
)

type collector struct {
	mu      sync.Mutex
	results map[string]ShardResult
}

func (c *collector) emit(r ShardResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.results == nil {
		c.results = make(map[string]ShardResult)
	}
	c.results[r.Track+"@"+r.Locus] = r
	return nil
}

func openSource(t *testing.T, name, file string, storage string) *track.Source {
	t.Helper()
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, file, bed)
	b, err := builder.New(builder.WithReference(reference), builder.WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)
	src, err := b.Open(context.Background(), config.TrackConfig{Name: name, Format: "bed", Path: path, Storage: storage})
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Shutdown() })
	return src
}

func newEngine(t *testing.T, sources []*track.Source, cfg Config) *Engine {
	t.Helper()
	e, err := New(reference, sources, cfg, WithLogger(testutil.TestLogger(t)), WithNames(true))
	require.NoError(t, err)
	return e
}

func TestRunIndexedAndStreamAgree(t *testing.T) {
	indexed := openSource(t, "indexed", "a.bed", config.StorageIndexed)
	stream := openSource(t, "stream", "b.bed", config.StorageStream)

	e := newEngine(t, []*track.Source{indexed, stream}, Config{Workers: 4, ShardSize: 50})
	assert.Equal(t, 1, e.Workers(), "stream track forces one worker")

	var c collector
	summary, err := e.Run(context.Background(), c.emit)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Shards)
	assert.Equal(t, 10, summary.Features)

	want := map[string]struct {
		sites int
		names []string
	}{
		"chr1:1-50":   {8, []string{"a", "span"}},
		"chr1:51-100": {6, []string{"span", "c"}},
		"chr2:1-50":   {5, []string{"d"}},
	}
	for _, name := range []string{"indexed", "stream"} {
		for shard, w := range want {
			r, ok := c.results[name+"@"+shard]
			require.True(t, ok, name+"@"+shard)
			assert.Equal(t, w.sites, r.Sites, name+"@"+shard)
			assert.Equal(t, w.names, r.Names, name+"@"+shard)
			assert.Equal(t, len(w.names), r.Features)
		}
	}
}

func TestRunIndexedInParallel(t *testing.T) {
	src := openSource(t, "calls", "calls.bed", config.StorageIndexed)
	e := newEngine(t, []*track.Source{src}, Config{Workers: 3, ShardSize: 10})
	assert.Equal(t, 3, e.Workers())

	var c collector
	summary, err := e.Run(context.Background(), c.emit)
	require.NoError(t, err)
	assert.Equal(t, 15, summary.Shards)
	assert.Len(t, c.results, 15)
	assert.Equal(t, 5, c.results["calls@chr1:41-50"].Sites)
	assert.Equal(t, 2, c.results["calls@chr1:11-20"].Sites)
	assert.Equal(t, 5, c.results["calls@chr1:51-60"].Sites)
	assert.Equal(t, 0, c.results["calls@chr1:21-30"].Features)
	assert.LessOrEqual(t, src.Stats().Size, 3)
}

func TestIntervalsAreMergedAndSplit(t *testing.T) {
	src := openSource(t, "calls", "calls.bed", config.StorageIndexed)
	iv := func(s string) genome.Loc {
		l, err := reference.Parse(s)
		require.NoError(t, err)
		return l
	}
	e := newEngine(t, []*track.Source{src}, Config{
		Workers:   1,
		ShardSize: 30,
		Intervals: []genome.Loc{iv("chr2:1-10"), iv("chr1:40-60"), iv("chr1:11-39")},
	})
	shards, err := e.Shards()
	require.NoError(t, err)
	var got []string
	for _, s := range shards {
		got = append(got, s.String())
	}
	assert.Equal(t, []string{"chr1:11-40", "chr1:41-60", "chr2:1-10"}, got)
}

func TestEmitErrorStopsRun(t *testing.T) {
	src := openSource(t, "calls", "calls.bed", config.StorageIndexed)
	e := newEngine(t, []*track.Source{src}, Config{Workers: 2, ShardSize: 10})

	boom := errors.New(errors.ErrorTypeInternal, "sink full")
	_, err := e.Run(context.Background(), func(ShardResult) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestCanceledRun(t *testing.T) {
	src := openSource(t, "calls", "calls.bed", config.StorageIndexed)
	e := newEngine(t, []*track.Source{src}, Config{Workers: 1, ShardSize: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Run(ctx, func(ShardResult) error { return nil })
	assert.True(t, errors.IsType(err, errors.ErrorTypeCanceled))
}

func TestRerunningStreamIsContractViolation(t *testing.T) {
	src := openSource(t, "stream", "s.bed", config.StorageStream)
	e := newEngine(t, []*track.Source{src}, Config{Workers: 1, ShardSize: 50})

	_, err := e.Run(context.Background(), func(ShardResult) error { return nil })
	require.NoError(t, err)

	_, err = e.Run(context.Background(), func(ShardResult) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsContractViolation(err))
}

func TestNewValidates(t *testing.T) {
	_, err := New(reference, nil, Config{ShardSize: 10})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	src := openSource(t, "calls", "calls.bed", config.StorageIndexed)
	_, err = New(nil, []*track.Source{src}, Config{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestMergeIntervals(t *testing.T) {
	l := func(s string) genome.Loc {
		x, err := reference.Parse(s)
		require.NoError(t, err)
		return x
	}
	merged := MergeIntervals([]genome.Loc{l("chr1:20-30"), l("chr1:1-10"), l("chr1:11-12"), l("chr1:25-40"), l("chr2:1-5")})
	var got []string
	for _, m := range merged {
		got = append(got, m.String())
	}
	assert.Equal(t, []string{"chr1:1-12", "chr1:20-40", "chr2:1-5"}, got)
	assert.Nil(t, MergeIntervals(nil))
}
