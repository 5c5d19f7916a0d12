package track

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/trackpool/pkg/errors"
	"github.com/ajitpratap0/trackpool/pkg/pool"
)

// streamResource is the one open pass over a stream-backed track.
type streamResource struct {
	iter  Iterator
	flash *FlashbackIterator // nil when flashback is disabled
}

// streamPolicy serves a track that can be read exactly once. Reuse depends
// on where the single iterator currently stands.
type streamPolicy struct {
	desc     Descriptor
	logger   *zap.Logger
	observer Observer

	mu     sync.Mutex
	opened *Opened
}

func newStreamPolicy(desc Descriptor, logger *zap.Logger, obs Observer) *streamPolicy {
	return &streamPolicy{desc: desc, logger: logger, observer: obs}
}

func (p *streamPolicy) MaxResources() int { return 1 }

func (p *streamPolicy) CreateResource(ctx context.Context, live int) (*streamResource, error) {
	if live != 0 {
		errors.Violation("track %s: stream sources cannot be opened twice (%d already open)", p.desc.Name, live)
	}
	r, opened, err := p.desc.OpenStream(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "opening stream track "+p.desc.Name)
	}

	p.mu.Lock()
	if p.opened != nil {
		p.mu.Unlock()
		_ = r.Close()
		errors.Violation("track %s: stream source reopened", p.desc.Name)
	}
	p.opened = &opened
	p.mu.Unlock()

	res := &streamResource{iter: NewSeekableIterator(p.desc.Name, r)}
	if p.desc.Flashback > 0 {
		res.flash = NewFlashbackIterator(res.iter, p.desc.Flashback)
		res.iter = res.flash
	}
	p.logger.Debug("stream opened", zap.Int("flashback", p.desc.Flashback))
	return res, nil
}

// SelectExisting picks the first idle resource that can serve seg without
// going backwards, rewinding through flashback if needed.
func (p *streamPolicy) SelectExisting(seg pool.Segment, idle []*streamResource) int {
	for i, r := range idle {
		pos := r.iter.Position()

		if seg.IsEntireStream() {
			if pos == nil {
				return i
			}
			if r.flash != nil && r.flash.CanRewindToStart() {
				if err := r.flash.RewindToStart(); err == nil {
					p.observer.Flashback()
					return i
				}
			}
			continue
		}

		target, _ := seg.Location()
		// A stream that never advanced serves any target, even when it
		// holds no records at all.
		if pos == nil || pos.Compare(target.StartPoint()) < 0 {
			return i
		}
		if r.flash != nil && r.flash.CanFlashBackTo(target) {
			if err := r.flash.FlashBackTo(target); err == nil {
				p.observer.Flashback()
				p.logger.Debug("flashed back", zap.Stringer("from", pos), zap.Stringer("to", target))
				return i
			}
		}
	}
	return -1
}

func (p *streamPolicy) BuildIterator(ctx context.Context, seg pool.Segment, r *streamResource) (*lease, error) {
	return &lease{inner: r.iter}, nil
}

// CloseIterator ends the lease. The stream stays open for the next one.
func (p *streamPolicy) CloseIterator(it *lease, r *streamResource) error {
	it.finish()
	return nil
}

func (p *streamPolicy) CloseResource(r *streamResource) error {
	return r.iter.Close()
}

func (p *streamPolicy) metadata() (Opened, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.opened == nil {
		return Opened{}, false
	}
	return *p.opened, true
}
