package codec

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/pkg/compression"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/testutil"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

var refDict = genome.MustDictionary(
	genome.Contig{Name: "chr1", Length: 1000},
	genome.Contig{Name: "chr2", Length: 1000},
)

func readAll(t *testing.T, r track.FeatureReader) []*Record {
	t.Helper()
	var out []*Record
	for {
		f, err := r.Read()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, f.(*Record))
	}
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"bed", "jsonl"}, Names())

	c, err := New("bed")
	require.NoError(t, err)
	assert.Equal(t, "bed", c.Name())

	_, err = New("vcf")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	r := NewRegistry()
	require.NoError(t, r.Register("bed", func() Codec { return BED{} }))
	assert.Error(t, r.Register("bed", func() Codec { return BED{} }))
}

func TestBEDDecode(t *testing.T) {
	f, err := BED{}.Decode("chr1\t99\t200\tgene_a\t7.5\t-", refDict)
	require.NoError(t, err)
	rec := f.(*Record)
	assert.Equal(t, "chr1:100-200", rec.Loc.String())
	assert.Equal(t, "gene_a", rec.Name())
	assert.Equal(t, 7.5, rec.Score)
	assert.Equal(t, "-", rec.Strand)

	f, err = BED{}.Decode("chr2 10 10", refDict)
	require.NoError(t, err)
	assert.Equal(t, "chr2:11", f.Location().String(), "zero-length interval covers one base")
	assert.Equal(t, "chr2:11", f.Name())

	f, err = BED{}.Decode("   ", refDict)
	assert.NoError(t, err)
	assert.Nil(t, f)

	for _, line := range []string{
		"chr1\t10",
		"chr1\tx\t20",
		"chr1\t30\t20",
		"chrX\t1\t2",
		"chr1\t1\t2\tn\tnotascore",
	} {
		_, err := BED{}.Decode(line, refDict)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData), line)
	}
}

func TestBEDHeader(t *testing.T) {
	c := BED{}
	assert.True(t, c.IsHeader("#comment"))
	assert.True(t, c.IsHeader("track name=calls"))
	assert.True(t, c.IsHeader("browser position chr1:1-100"))
	assert.False(t, c.IsHeader("trackless\t1\t2"))
	assert.False(t, c.IsHeader("chr1\t1\t2"))
}

func TestJSONLDecode(t *testing.T) {
	f, err := JSONL{}.Decode(`{"contig":"chr1","start":5,"stop":9,"name":"x","score":2,"attributes":{"k":"v"}}`, refDict)
	require.NoError(t, err)
	rec := f.(*Record)
	assert.Equal(t, "chr1:5-9", rec.Loc.String())
	assert.Equal(t, map[string]string{"k": "v"}, rec.Attributes)

	f, err = JSONL{}.Decode(`{"contig":"chr2","start":42}`, refDict)
	require.NoError(t, err)
	assert.Equal(t, "chr2:42", f.Location().String())

	for _, line := range []string{`{"start":1}`, `{not json`, `{"contig":"chr1","start":0}`} {
		_, err := JSONL{}.Decode(line, refDict)
		assert.True(t, errors.IsType(err, errors.ErrorTypeData), line)
	}
}

func TestReadHeader(t *testing.T) {
	in := "##contig=<ID=chrA,length=50>\n##contig=<ID=chrB>\ntrack name=t\nchrA\t1\t2\n"
	br := bufio.NewReader(strings.NewReader(in))
	h, first, err := ReadHeader(br, BED{})
	require.NoError(t, err)
	assert.Len(t, h.Lines, 3)
	assert.Equal(t, []genome.Contig{{Name: "chrA", Length: 50}, {Name: "chrB"}}, h.Contigs)
	assert.Equal(t, "chrA\t1\t2\n", first)
	assert.Equal(t, int64(len(in)-len(first)), h.Size)

	dict, err := h.Dictionary(refDict)
	require.NoError(t, err)
	assert.Equal(t, 2, dict.Len())
	_, ok := dict.IndexOf("chrB")
	assert.True(t, ok)

	_, err = HeaderBlock{}.Dictionary(nil)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, _, err = ReadHeader(bufio.NewReader(strings.NewReader("##contig=<length=5>\n")), BED{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestOpenStreamPlainAndCompressed(t *testing.T) {
	content := testutil.Lines(
		"# calls",
		"chr1\t0\t10\ta",
		"",
		"chr1\t20\t30\tb",
		"chr2\t5\t6\tc",
	)
	dir := t.TempDir()
	paths := []string{
		testutil.WriteFile(t, dir, "calls.bed", content),
		testutil.WriteCompressed(t, dir, "calls.bed.gz", content, compression.Gzip),
		testutil.WriteCompressed(t, dir, "calls.bed.zst", content, compression.Zstd),
		testutil.WriteCompressed(t, dir, "calls.dat", content, compression.LZ4),
		testutil.WriteCompressed(t, dir, "calls.s2", content, compression.S2),
	}
	for _, path := range paths {
		r, opened, err := OpenStream(path, BED{}, refDict)
		require.NoError(t, err, path)
		assert.Equal(t, track.Header{Format: "bed", Lines: []string{"# calls"}}, opened.Header)
		assert.Same(t, refDict, opened.Dictionary)

		recs := readAll(t, r)
		require.Len(t, recs, 3, path)
		assert.Equal(t, []string{"a", "b", "c"}, []string{recs[0].Name(), recs[1].Name(), recs[2].Name()})
		require.NoError(t, r.Close())

		_, err = r.Read()
		assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))
	}
}

func TestOpenStreamErrors(t *testing.T) {
	_, _, err := OpenStream("/does/not/exist.bed", BED{}, refDict)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))

	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "bad.bed", testutil.Lines("chr1\t0\t10", "chr1\tbad\t3"))
	r, _, err := OpenStream(path, BED{}, refDict)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Read()
	require.NoError(t, err)
	_, err = r.Read()
	require.True(t, errors.IsType(err, errors.ErrorTypeData))
	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 2, e.Details["line"])
}

func TestNewReaderWithoutTrailingNewline(t *testing.T) {
	r, opened, err := NewReader(strings.NewReader(`{"contig":"chr1","start":3}`), JSONL{}, refDict)
	require.NoError(t, err)
	assert.Empty(t, opened.Header.Lines)
	recs := readAll(t, r)
	require.Len(t, recs, 1)
	assert.Equal(t, "chr1:3", recs[0].Loc.String())
}
