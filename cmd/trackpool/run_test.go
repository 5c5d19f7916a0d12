package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/internal/traversal"
	"github.com/ajitpratap0/trackpool/pkg/config"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/testutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "calls.bed", testutil.Lines(
		"chr1\t9\t12\ta",
		"chr1\t60\t61\tb",
	))
	cfg := config.Default()
	cfg.Reference = []config.ContigConfig{{Name: "chr1", Length: 100}}
	cfg.Tracks = []config.TrackConfig{{Name: "calls", Format: "bed", Path: path}}
	cfg.Traversal.Workers = 2
	cfg.Traversal.ShardSize = 50
	require.NoError(t, cfg.Validate())
	return cfg
}

func decode(t *testing.T, out []byte) map[string]traversal.ShardResult {
	t.Helper()
	got := make(map[string]traversal.ShardResult)
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		var r traversal.ShardResult
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got[r.Locus] = r
	}
	return got
}

func TestExecuteWritesJSONLines(t *testing.T) {
	cfg := testConfig(t)

	var out bytes.Buffer
	summary, err := execute(context.Background(), cfg, &out, runOptions{names: true, logger: testutil.TestLogger(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Shards)
	assert.Equal(t, 2, summary.Features)

	got := decode(t, out.Bytes())
	require.Len(t, got, 2)
	assert.Equal(t, "calls", got["chr1:1-50"].Track)
	assert.Equal(t, 3, got["chr1:1-50"].Sites)
	assert.Equal(t, []string{"a"}, got["chr1:1-50"].Names)
	assert.Equal(t, []string{"b"}, got["chr1:51-100"].Names)
	assert.FileExists(t, cfg.Tracks[0].Path+".tpi")
}

func TestExecuteWithIntervals(t *testing.T) {
	cfg := testConfig(t)
	cfg.Traversal.Intervals = []string{"chr1:55-70"}

	var out bytes.Buffer
	summary, err := execute(context.Background(), cfg, &out, runOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Shards)

	got := decode(t, out.Bytes())
	assert.Equal(t, 1, got["chr1:55-70"].Features)
	assert.Nil(t, got["chr1:55-70"].Names)
}

func TestExecuteRejectsBadInterval(t *testing.T) {
	cfg := testConfig(t)
	cfg.Traversal.Intervals = []string{"chrX:1-10"}

	_, err := execute(context.Background(), cfg, &bytes.Buffer{}, runOptions{})
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOpenOutput(t *testing.T) {
	w, closeFn, err := openOutput("-")
	require.NoError(t, err)
	assert.NotNil(t, w)
	closeFn()

	_, _, err = openOutput(filepath.Join(t.TempDir(), "missing", "out.jsonl"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
