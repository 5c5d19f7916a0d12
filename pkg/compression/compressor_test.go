package compression

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = []byte(strings.Repeat("chr1\t100\t200\tgene_a\t0\t+\n", 64))

func TestRoundTripAllAlgorithms(t *testing.T) {
	for _, alg := range []Algorithm{None, Gzip, Zstd, LZ4, S2, Snappy} {
		t.Run(string(alg), func(t *testing.T) {
			packed, err := Compress(sample, alg, Default)
			require.NoError(t, err)

			out, err := Decompress(packed, alg)
			require.NoError(t, err)
			assert.Equal(t, sample, out)

			if alg != None {
				assert.Equal(t, alg, Sniff(packed), "stream starts with its magic")
				assert.Less(t, len(packed), len(sample))
			}
		})
	}
}

func TestStreamReaderMatchesCompress(t *testing.T) {
	for _, alg := range []Algorithm{Gzip, Zstd, LZ4, S2} {
		var buf bytes.Buffer
		w, err := NewWriter(&buf, alg, Fastest)
		require.NoError(t, err)
		_, err = w.Write(sample)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		r, err := NewReader(&buf, alg)
		require.NoError(t, err)
		got, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.Equal(t, sample, got, string(alg))
	}
}

func TestDetect(t *testing.T) {
	packed, err := Compress(sample, Zstd, Default)
	require.NoError(t, err)

	assert.Equal(t, Zstd, Detect(bufio.NewReader(bytes.NewReader(packed)), "calls.bed"))
	assert.Equal(t, Gzip, Detect(bufio.NewReader(strings.NewReader("")), "calls.bed.gz"))
	assert.Equal(t, None, Detect(bufio.NewReader(bytes.NewReader(sample)), "calls.bed"))
}

func TestFromPath(t *testing.T) {
	cases := map[string]Algorithm{
		"a.bed":         None,
		"a.bed.gz":      Gzip,
		"a.vcf.bgz":     Gzip,
		"a.jsonl.zst":   Zstd,
		"a.bed.lz4":     LZ4,
		"a.bed.sz":      Snappy,
		"a.bed.s2":      S2,
		"/x/y/A.BED.GZ": Gzip,
	}
	for path, want := range cases {
		assert.Equal(t, want, FromPath(path), path)
	}
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	assert.Equal(t, None, a)

	a, err = ParseAlgorithm("zstd")
	require.NoError(t, err)
	assert.Equal(t, Zstd, a)

	_, err = ParseAlgorithm("brotli")
	assert.Error(t, err)
}

func TestGzipReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(strings.NewReader("not gzip at all"), Gzip)
	assert.Error(t, err)
}
