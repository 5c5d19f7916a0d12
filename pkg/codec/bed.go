package codec

import (
	"strconv"
	"strings"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// BED decodes browser extensible data lines: chrom, 0-based start, exclusive
// end, then optional name, score and strand.
type BED struct{}

// Name implements Codec.
func (BED) Name() string { return "bed" }

// IsHeader implements Codec.
func (BED) IsHeader(line string) bool {
	return strings.HasPrefix(line, "#") ||
		hasWord(line, "track") ||
		hasWord(line, "browser")
}

// Decode implements Codec. Zero-length intervals become a single base
// anchored after the start.
func (BED) Decode(line string, dict *genome.Dictionary) (track.Feature, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	var fields []string
	if strings.Contains(line, "\t") {
		fields = strings.Split(line, "\t")
	} else {
		fields = strings.Fields(line)
	}
	if len(fields) < 3 {
		return nil, errors.Newf(errors.ErrorTypeData, "bed line has %d fields, need at least 3", len(fields))
	}

	start, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "bad bed start")
	}
	end, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "bad bed end")
	}
	if end < start {
		return nil, errors.Newf(errors.ErrorTypeData, "bed end %d before start %d", end, start)
	}
	stop := end
	if stop < start+1 {
		stop = start + 1
	}
	loc, err := dict.Loc(fields[0], start+1, stop)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "bad bed interval")
	}

	rec := &Record{Loc: loc}
	if len(fields) > 3 {
		rec.Label = fields[3]
	}
	if len(fields) > 4 && fields[4] != "." {
		if rec.Score, err = strconv.ParseFloat(fields[4], 64); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "bad bed score")
		}
	}
	if len(fields) > 5 && fields[5] != "." {
		rec.Strand = fields[5]
	}
	return rec, nil
}

func hasWord(line, word string) bool {
	if !strings.HasPrefix(line, word) {
		return false
	}
	rest := line[len(word):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t'
}
