//go:build linux || darwin

package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/trackpool/pkg/errors"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.bed")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadRange(t *testing.T) {
	r, err := NewReader(writeTemp(t, "chr1\t0\t10\nchr1\t5\t20\n"))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.Advise(AdviceSequential))
	assert.Equal(t, int64(20), r.Len())

	b, err := r.ReadRange(10, 10)
	require.NoError(t, err)
	assert.Equal(t, "chr1\t5\t20\n", string(b))

	b, err = r.ReadRange(17, 100)
	require.NoError(t, err)
	assert.Equal(t, "20\n", string(b), "clipped to end of file")

	bytesRead, pages := r.Stats()
	assert.Equal(t, int64(13), bytesRead)
	assert.Equal(t, int64(2), pages)

	_, err = r.ReadRange(20, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestIndependentHandles(t *testing.T) {
	path := writeTemp(t, "abcdef")
	a, err := NewReader(path)
	require.NoError(t, err)
	b, err := NewReader(path)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	got, err := b.ReadRange(2, 2)
	require.NoError(t, err)
	assert.Equal(t, "cd", string(got))
	require.NoError(t, b.Close())
}

func TestEmptyAndClosed(t *testing.T) {
	r, err := NewReader(writeTemp(t, ""))
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Len())
	require.NoError(t, r.Advise(AdviceRandom))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.ReadRange(0, 1)
	assert.True(t, errors.IsType(err, errors.ErrorTypeClosed))

	_, err = NewReader(filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.IsType(err, errors.ErrorTypeFile))
}
