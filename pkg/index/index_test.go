package index

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/compression"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/testutil"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

var refDict = genome.MustDictionary(
	genome.Contig{Name: "chr1", Length: 100000},
	genome.Contig{Name: "chr2", Length: 100000},
)

// records deliberately out of order; the long first interval exercises the
// running max stop.
var bedLines = []string{
	"track name=calls",
	"chr1\t99\t5000\tlong",
	"chr2\t10\t20\te",
	"chr1\t200\t300\tb",
	"chr1\t150\t160\ta",
	"chr1\t1000\t1100\tc",
	"chr1\t6000\t6001\td",
}

func writeBed(t *testing.T) string {
	t.Helper()
	return testutil.WriteFile(t, t.TempDir(), "calls.bed", testutil.Lines(bedLines...))
}

func query(t *testing.T, r *Reader, s string) []string {
	t.Helper()
	l, err := refDict.Parse(s)
	require.NoError(t, err)
	fr, err := r.Query(l)
	require.NoError(t, err)
	defer fr.Close()
	return names(t, fr)
}

func names(t *testing.T, fr track.FeatureReader) []string {
	t.Helper()
	var out []string
	for {
		f, err := fr.Read()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, f.Name())
	}
}

func TestBuildSortsAndQueries(t *testing.T) {
	path := writeBed(t)
	idx, err := Build(path, codec.BED{}, refDict)
	require.NoError(t, err)
	assert.Equal(t, 6, idx.Len())
	assert.Equal(t, []string{"track name=calls"}, idx.Opened().Header.Lines)

	r, err := Open(path, idx, codec.BED{})
	require.NoError(t, err)
	defer r.Close()

	it, err := r.Iterator()
	require.NoError(t, err)
	assert.Equal(t, []string{"long", "a", "b", "c", "d", "e"}, names(t, it))

	assert.Equal(t, []string{"long", "c"}, query(t, r, "chr1:1050"))
	assert.Equal(t, []string{"long", "a", "b"}, query(t, r, "chr1:155-250"))
	assert.Equal(t, []string{"d"}, query(t, r, "chr1:5500-7000"))
	assert.Empty(t, query(t, r, "chr1:7000-8000"))
	assert.Equal(t, []string{"e"}, query(t, r, "chr2"))
}

func TestBuildRejectsCompressedAndBadRecords(t *testing.T) {
	dir := t.TempDir()
	gz := testutil.WriteCompressed(t, dir, "calls.bed.gz", testutil.Lines(bedLines...), compression.Gzip)
	_, err := Build(gz, codec.BED{}, refDict)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	bad := testutil.WriteFile(t, dir, "bad.bed", testutil.Lines("chr1\t1\t2", "chr9\t1\t2"))
	_, err = Build(bad, codec.BED{}, refDict)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := writeBed(t)
	built, err := Build(path, codec.BED{}, refDict)
	require.NoError(t, err)
	require.NoError(t, built.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, built.Entries, loaded.Entries)
	assert.True(t, built.Dictionary().Equal(loaded.Dictionary()))

	l, err := refDict.Parse("chr1:1050")
	require.NoError(t, err)
	assert.Equal(t, built.Overlapping(l), loaded.Overlapping(l))

	_, err = Load(path + ".missing")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))

	require.NoError(t, os.WriteFile(SidecarPath(path), []byte("garbage"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestLoadOrBuildRebuildsStaleIndex(t *testing.T) {
	path := writeBed(t)
	first, err := LoadOrBuild(path, codec.BED{}, refDict)
	require.NoError(t, err)
	assert.FileExists(t, SidecarPath(path))

	again, err := LoadOrBuild(path, codec.BED{}, refDict)
	require.NoError(t, err)
	assert.Equal(t, first.Entries, again.Entries)

	require.NoError(t, os.WriteFile(path, testutil.Lines("chr2\t0\t5\tonly"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	rebuilt, err := LoadOrBuild(path, codec.BED{}, refDict)
	require.NoError(t, err)
	assert.Equal(t, 1, rebuilt.Len())
}

func TestCacheSharesAndRefreshes(t *testing.T) {
	path := writeBed(t)
	cache, err := NewCache(2)
	require.NoError(t, err)

	a, err := cache.Get(path, codec.BED{}, refDict)
	require.NoError(t, err)
	b, err := cache.Get(path, codec.BED{}, refDict)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, cache.Len())

	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))
	c, err := cache.Get(path, codec.BED{}, refDict)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestReaderRejectsChangedFileAndUnknownContig(t *testing.T) {
	path := writeBed(t)
	idx, err := Build(path, codec.BED{}, refDict)
	require.NoError(t, err)

	other := genome.MustDictionary(genome.Contig{Name: "chrZ"})
	r, err := Open(path, idx, codec.BED{})
	require.NoError(t, err)
	chrZ, err := other.WholeContig("chrZ")
	require.NoError(t, err)
	_, err = r.Query(chrZ)
	assert.True(t, errors.IsType(err, errors.ErrorTypeQuery))
	require.NoError(t, r.Close())

	require.NoError(t, os.WriteFile(path, []byte("chr1\t1\t2\n"), 0o644))
	_, err = Open(path, idx, codec.BED{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}
