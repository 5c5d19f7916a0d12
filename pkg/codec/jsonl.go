package codec

import (
	"strings"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
	"github.com/ajitpratap0/trackpool/pkg/track"
)

// JSONL decodes one JSON object per line with 1-based closed coordinates:
//
//	{"contig":"chr1","start":100,"stop":200,"name":"a","score":1.5,"attributes":{"k":"v"}}
//
// A missing stop makes the record a single base.
type JSONL struct{}

type jsonRecord struct {
	Contig     string            `json:"contig"`
	Start      int64             `json:"start"`
	Stop       int64             `json:"stop"`
	Name       string            `json:"name"`
	Score      float64           `json:"score"`
	Strand     string            `json:"strand"`
	Attributes map[string]string `json:"attributes"`
}

// Name implements Codec.
func (JSONL) Name() string { return "jsonl" }

// IsHeader implements Codec.
func (JSONL) IsHeader(line string) bool { return strings.HasPrefix(line, "#") }

// Decode implements Codec.
func (JSONL) Decode(line string, dict *genome.Dictionary) (track.Feature, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	var jr jsonRecord
	if err := json.Unmarshal([]byte(line), &jr); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "bad json record")
	}
	if jr.Contig == "" {
		return nil, errors.New(errors.ErrorTypeData, "json record has no contig")
	}
	if jr.Stop == 0 {
		jr.Stop = jr.Start
	}
	loc, err := dict.Loc(jr.Contig, jr.Start, jr.Stop)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "bad json interval")
	}
	return &Record{
		Loc:        loc,
		Label:      jr.Name,
		Score:      jr.Score,
		Strand:     jr.Strand,
		Attributes: jr.Attributes,
	}, nil
}
