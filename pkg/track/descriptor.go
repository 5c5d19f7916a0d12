package track

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/trackpool/pkg/genome"
)

// StorageKind says how a track's data can be accessed.
type StorageKind int

const (
	// StorageStream is a single-pass source that can be opened only once.
	StorageStream StorageKind = iota + 1
	// StorageIndexed is a randomly accessible source that supports
	// independent positioned queries.
	StorageIndexed
)

func (k StorageKind) String() string {
	switch k {
	case StorageStream:
		return "stream"
	case StorageIndexed:
		return "indexed"
	default:
		return fmt.Sprintf("storage(%d)", int(k))
	}
}

// ParseStorageKind maps "stream" and "indexed" to their kinds.
func ParseStorageKind(s string) (StorageKind, bool) {
	switch s {
	case "stream":
		return StorageStream, true
	case "indexed":
		return StorageIndexed, true
	}
	return 0, false
}

// Opened is the metadata read when a track is opened.
type Opened struct {
	Header     Header
	Dictionary *genome.Dictionary
}

// Queryable is an open, randomly accessible handle on a track.
type Queryable interface {
	// Query returns the records overlapping loc, in order.
	Query(loc genome.Loc) (FeatureReader, error)
	// Iterator returns every record of the track, in order.
	Iterator() (FeatureReader, error)
	Close() error
}

// StreamOpener opens the single pass over a stream-backed track.
type StreamOpener func(ctx context.Context) (FeatureReader, Opened, error)

// QueryOpener opens one independent handle on an index-backed track.
type QueryOpener func(ctx context.Context) (Queryable, Opened, error)

// Descriptor is everything a Source needs to serve a track.
type Descriptor struct {
	Name    string
	Type    string
	Storage StorageKind

	// Flashback is the number of record lists a stream-backed track keeps for
	// rewinding. Zero disables flashback.
	Flashback int
	// MaxResources caps the handles an index-backed track may open. Zero
	// means unbounded.
	MaxResources int

	OpenStream StreamOpener
	OpenQuery  QueryOpener
}
