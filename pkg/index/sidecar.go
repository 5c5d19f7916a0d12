package index

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/compression"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/logger"
)

// Extension is appended to a data file path to name its index.
const Extension = ".tpi"

// SidecarPath returns where the index of path is stored.
func SidecarPath(path string) string { return path + Extension }

// Save writes the index next to the data file, replacing any previous one
// atomically.
func (x *Index) Save(path string) error {
	raw, err := json.Marshal(x)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "encoding index")
	}
	packed, err := compression.Compress(raw, compression.Zstd, compression.Better)
	if err != nil {
		return err
	}

	dst := SidecarPath(path)
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "creating index file").WithDetail("path", dst)
	}
	if _, err := tmp.Write(packed); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "writing index file").WithDetail("path", dst)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "writing index file").WithDetail("path", dst)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(err, errors.ErrorTypeFile, "installing index file").WithDetail("path", dst)
	}
	return nil
}

// Load reads the sidecar index of path.
func Load(path string) (*Index, error) {
	src := SidecarPath(path)
	packed, err := os.ReadFile(src)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.ErrorTypeNotFound, "no index file").WithDetail("path", src)
		}
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading index file").WithDetail("path", src)
	}
	raw, err := compression.Decompress(packed, compression.Zstd)
	if err != nil {
		return nil, err
	}
	x := &Index{}
	if err := json.Unmarshal(raw, x); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "decoding index file").WithDetail("path", src)
	}
	if err := x.restore(); err != nil {
		return nil, err
	}
	return x, nil
}

// LoadOrBuild returns the sidecar index of path when it is current for the
// data file and was built with the same codec. Otherwise the index is rebuilt
// and saved; failing to save is logged, not returned.
func LoadOrBuild(path string, c codec.Codec, fallback *genome.Dictionary) (*Index, error) {
	log := logger.With(zap.String("component", "index"), zap.String("path", path))

	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "stat track file").WithDetail("path", path)
	}

	x, err := Load(path)
	switch {
	case err == nil && x.Format == c.Name() && x.Matches(st):
		log.Debug("index loaded", zap.Int("records", x.Len()))
		return x, nil
	case err == nil:
		log.Info("index is stale, rebuilding")
	case !errors.IsType(err, errors.ErrorTypeNotFound):
		log.Warn("index unreadable, rebuilding", zap.Error(err))
	}

	x, err = Build(path, c, fallback)
	if err != nil {
		return nil, err
	}
	if err := x.Save(path); err != nil {
		log.Warn("failed to save index", zap.Error(err))
	} else {
		log.Info("index built", zap.Int("records", x.Len()))
	}
	return x, nil
}
