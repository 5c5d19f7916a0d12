package track

// peekReader adds one-element lookahead and pushback to a FeatureReader.
// Nil features are dropped.
type peekReader struct {
	r     FeatureReader
	stack []Feature
}

func newPeekReader(r FeatureReader) *peekReader {
	return &peekReader{r: r}
}

func (p *peekReader) peek() (Feature, error) {
	if n := len(p.stack); n > 0 {
		return p.stack[n-1], nil
	}
	f, err := p.fill()
	if err != nil {
		return nil, err
	}
	p.stack = append(p.stack, f)
	return f, nil
}

func (p *peekReader) read() (Feature, error) {
	if n := len(p.stack); n > 0 {
		f := p.stack[n-1]
		p.stack = p.stack[:n-1]
		return f, nil
	}
	return p.fill()
}

func (p *peekReader) pushback(f Feature) {
	p.stack = append(p.stack, f)
}

func (p *peekReader) fill() (Feature, error) {
	for {
		f, err := p.r.Read()
		if err != nil {
			return nil, err
		}
		if f != nil {
			return f, nil
		}
	}
}

func (p *peekReader) Close() error {
	p.stack = nil
	return p.r.Close()
}
