package codec

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/genome"
)

const contigPrefix = "##contig=<"

// HeaderBlock is the leading block of header lines of a text track.
type HeaderBlock struct {
	Lines   []string
	Contigs []genome.Contig
	// Size is the number of bytes the header occupies, which is also the
	// offset of the first data line.
	Size int64
}

// ReadHeader consumes header lines from br. The line that ended the header
// had to be read as well and is returned with its line terminator; it is
// empty when the input holds no data.
func ReadHeader(br *bufio.Reader, c Codec) (HeaderBlock, string, error) {
	var h HeaderBlock
	for {
		line, err := br.ReadString('\n')
		if err != nil && err != io.EOF {
			return h, "", errors.Wrap(err, errors.ErrorTypeFile, "reading header")
		}
		if line == "" {
			return h, "", nil
		}
		text := trimEOL(line)
		if !c.IsHeader(text) {
			return h, line, nil
		}
		h.Size += int64(len(line))
		h.Lines = append(h.Lines, text)
		if strings.HasPrefix(text, contigPrefix) {
			contig, perr := parseContigLine(text)
			if perr != nil {
				return h, "", perr
			}
			h.Contigs = append(h.Contigs, contig)
		}
		if err == io.EOF {
			return h, "", nil
		}
	}
}

// Dictionary picks the coordinate system of a track: the contigs declared in
// its header, or fallback when the header declares none.
func (h HeaderBlock) Dictionary(fallback *genome.Dictionary) (*genome.Dictionary, error) {
	if len(h.Contigs) > 0 {
		return genome.NewDictionary(h.Contigs)
	}
	if fallback.Len() == 0 {
		return nil, errors.New(errors.ErrorTypeConfig,
			"track declares no contigs and no reference dictionary is configured")
	}
	return fallback, nil
}

// parseContigLine reads ##contig=<ID=chr1,length=248956422>.
func parseContigLine(line string) (genome.Contig, error) {
	body := strings.TrimSuffix(strings.TrimPrefix(line, contigPrefix), ">")
	var c genome.Contig
	for _, field := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ID":
			c.Name = strings.TrimSpace(value)
		case "length":
			n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			if err != nil {
				return c, errors.Wrap(err, errors.ErrorTypeData, "bad contig length").
					WithDetail("line", line)
			}
			c.Length = n
		}
	}
	if c.Name == "" {
		return c, errors.New(errors.ErrorTypeData, "contig header line has no ID").
			WithDetail("line", line)
	}
	return c, nil
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
