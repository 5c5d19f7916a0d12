package track

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/pool"
)

// indexResource is one independent handle on an index-backed track.
type indexResource struct {
	q Queryable
}

// indexPolicy serves a track that supports positioned queries. Every lease
// issues its own query, so any idle handle fits any request.
type indexPolicy struct {
	desc   Descriptor
	logger *zap.Logger

	mu     sync.Mutex
	opened *Opened
}

func newIndexPolicy(desc Descriptor, logger *zap.Logger) *indexPolicy {
	return &indexPolicy{desc: desc, logger: logger}
}

func (p *indexPolicy) MaxResources() int { return p.desc.MaxResources }

func (p *indexPolicy) CreateResource(ctx context.Context, live int) (*indexResource, error) {
	q, opened, err := p.desc.OpenQuery(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "opening indexed track "+p.desc.Name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened == nil {
		p.opened = &opened
	} else if !p.opened.Header.Equal(opened.Header) || !p.opened.Dictionary.Equal(opened.Dictionary) {
		_ = q.Close()
		return nil, errors.Newf(errors.ErrorTypeData,
			"track %s: handle %d reports a different header or dictionary than the first", p.desc.Name, live+1)
	}
	return &indexResource{q: q}, nil
}

func (p *indexPolicy) SelectExisting(seg pool.Segment, idle []*indexResource) int {
	if len(idle) == 0 {
		return -1
	}
	return 0
}

func (p *indexPolicy) BuildIterator(ctx context.Context, seg pool.Segment, r *indexResource) (*lease, error) {
	var (
		reader FeatureReader
		err    error
	)
	if loc, ok := seg.Location(); ok {
		reader, err = r.q.Query(loc)
	} else {
		reader, err = r.q.Iterator()
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeQuery, "querying track "+p.desc.Name+" "+seg.String())
	}
	return &lease{inner: NewSeekableIterator(p.desc.Name, reader)}, nil
}

// CloseIterator closes the query; the handle stays open.
func (p *indexPolicy) CloseIterator(it *lease, r *indexResource) error {
	err := it.inner.Close()
	it.finish()
	return err
}

func (p *indexPolicy) CloseResource(r *indexResource) error {
	return r.q.Close()
}

func (p *indexPolicy) metadata() (Opened, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened == nil {
		return Opened{}, false
	}
	return *p.opened, true
}
