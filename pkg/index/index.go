// Package index builds and queries interval indexes over uncompressed text
// tracks. An Index maps every record to its byte range in the data file so
// that independent Readers can answer positioned queries with a single
// mmap-backed lookup.
package index

import (
	"bufio"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ajitpratap0/trackpool/pkg/codec"
	"github.com/ajitpratap0/trackpool/pkg/compression"
	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// Version is the on-disk layout of the sidecar.
const Version = 1

// Entry locates one record in the data file.
type Entry struct {
	Contig int   `json:"c"`
	Start  int64 `json:"s"`
	Stop   int64 `json:"e"`
	Offset int64 `json:"o"`
	Length int64 `json:"l"`
}

type contig struct {
	Name   string `json:"name"`
	Length int64  `json:"length,omitempty"`
}

// Index is the sorted record table of one data file.
type Index struct {
	Version    int      `json:"version"`
	Format     string   `json:"format"`
	Size       int64    `json:"size"`
	ModTime    int64    `json:"mtime"`
	HeaderSize int64    `json:"header_size"`
	Header     []string `json:"header,omitempty"`
	Contigs    []contig `json:"contigs"`
	Entries    []Entry  `json:"entries"`

	dict *genome.Dictionary
	// maxStop[i] is the largest Stop among the entries of the same contig up
	// to and including i.
	maxStop []int64
}

// Build scans path once and indexes every record c decodes. The file must be
// uncompressed; records need not be sorted.
func Build(path string, c codec.Codec, fallback *genome.Dictionary) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "opening track file").WithDetail("path", path)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "stat track file").WithDetail("path", path)
	}

	br := bufio.NewReaderSize(f, 256*1024)
	if alg := compression.Detect(br, path); alg != compression.None {
		return nil, errors.Newf(errors.ErrorTypeConfig, "cannot index %s compressed file, indexed storage needs plain text", alg).
			WithDetail("path", path)
	}

	h, line, err := codec.ReadHeader(br, c)
	if err != nil {
		return nil, err
	}
	dict, err := h.Dictionary(fallback)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		Version:    Version,
		Format:     c.Name(),
		Size:       st.Size(),
		ModTime:    st.ModTime().UnixNano(),
		HeaderSize: h.Size,
		Header:     h.Lines,
		dict:       dict,
	}
	for _, ct := range dict.Contigs() {
		idx.Contigs = append(idx.Contigs, contig{Name: ct.Name, Length: ct.Length})
	}

	offset, lineNo := h.Size, len(h.Lines)
	for line != "" {
		lineNo++
		feat, derr := c.Decode(strings.TrimRight(line, "\r\n"), dict)
		if derr != nil {
			return nil, errors.Wrap(derr, errors.ErrorTypeData, "decoding record").
				WithDetail("path", path).
				WithDetail("line", lineNo)
		}
		if feat != nil {
			loc := feat.Location()
			idx.Entries = append(idx.Entries, Entry{
				Contig: loc.ContigIndex,
				Start:  loc.Start,
				Stop:   loc.Stop,
				Offset: offset,
				Length: int64(len(line)),
			})
		}
		offset += int64(len(line))

		line, err = br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "reading track file").WithDetail("path", path)
		}
	}

	sort.SliceStable(idx.Entries, func(i, j int) bool {
		return compareEntries(idx.Entries[i], idx.Entries[j]) < 0
	})
	idx.computeMaxStop()
	return idx, nil
}

// Dictionary returns the coordinate system the index was built against.
func (x *Index) Dictionary() *genome.Dictionary { return x.dict }

// Len returns the number of indexed records.
func (x *Index) Len() int { return len(x.Entries) }

// Opened returns the metadata a Source reports for the indexed track.
func (x *Index) Opened() track.Opened {
	return track.Opened{
		Header:     track.Header{Format: x.Format, Lines: x.Header},
		Dictionary: x.dict,
	}
}

// Overlapping returns the positions in Entries of the records overlapping
// loc, in order. loc is matched to the index by contig name.
func (x *Index) Overlapping(loc genome.Loc) []int {
	ci, ok := x.dict.IndexOf(loc.Contig)
	if !ok {
		return nil
	}
	lo, hi := x.contigRange(ci)
	// first entry starting after the query
	end := lo + sort.Search(hi-lo, func(i int) bool { return x.Entries[lo+i].Start > loc.Stop })
	// first entry whose running max stop reaches the query
	begin := lo + sort.Search(end-lo, func(i int) bool { return x.maxStop[lo+i] >= loc.Start })

	var out []int
	for i := begin; i < end; i++ {
		if x.Entries[i].Stop >= loc.Start {
			out = append(out, i)
		}
	}
	return out
}

// Matches reports whether the index still describes a file of the given
// size and modification time.
func (x *Index) Matches(st os.FileInfo) bool {
	return x.Size == st.Size() && x.ModTime == st.ModTime().UnixNano()
}

func (x *Index) contigRange(ci int) (int, int) {
	n := len(x.Entries)
	lo := sort.Search(n, func(i int) bool { return x.Entries[i].Contig >= ci })
	hi := lo + sort.Search(n-lo, func(i int) bool { return x.Entries[lo+i].Contig > ci })
	return lo, hi
}

func (x *Index) computeMaxStop() {
	x.maxStop = make([]int64, len(x.Entries))
	for i, e := range x.Entries {
		x.maxStop[i] = e.Stop
		if i > 0 && x.Entries[i-1].Contig == e.Contig && x.maxStop[i-1] > e.Stop {
			x.maxStop[i] = x.maxStop[i-1]
		}
	}
}

// restore rebuilds the derived state of a decoded index.
func (x *Index) restore() error {
	if x.Version != Version {
		return errors.Newf(errors.ErrorTypeData, "index version %d, want %d", x.Version, Version)
	}
	contigs := make([]genome.Contig, len(x.Contigs))
	for i, c := range x.Contigs {
		contigs[i] = genome.Contig{Name: c.Name, Length: c.Length}
	}
	dict, err := genome.NewDictionary(contigs)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "index dictionary")
	}
	for i := 1; i < len(x.Entries); i++ {
		if compareEntries(x.Entries[i-1], x.Entries[i]) > 0 {
			return errors.New(errors.ErrorTypeData, "index entries out of order")
		}
	}
	for _, e := range x.Entries {
		if e.Contig < 0 || e.Contig >= len(contigs) || e.Offset < 0 || e.Offset+e.Length > x.Size {
			return errors.New(errors.ErrorTypeData, "index entry out of range")
		}
	}
	x.dict = dict
	x.computeMaxStop()
	return nil
}

func compareEntries(a, b Entry) int {
	switch {
	case a.Contig != b.Contig:
		return a.Contig - b.Contig
	case a.Start != b.Start:
		return cmp64(a.Start, b.Start)
	default:
		return cmp64(a.Stop, b.Stop)
	}
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
