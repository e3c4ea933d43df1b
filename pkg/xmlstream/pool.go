package xmlstream

import (
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// ReaderPool recycles Readers across documents so their internal buffers
// amortize. Safe for concurrent use; each checked-out Reader still
// belongs to a single goroutine.
type ReaderPool struct {
	mu   sync.Mutex
	free []*Reader

	bufferSize int
	maxRead    int
	logger     zerolog.Logger
}

// NewReaderPool creates an empty pool that builds readers with the given
// buffer sizing.
func NewReaderPool(bufferSize, maxRead int, logger zerolog.Logger) *ReaderPool {
	return &ReaderPool{
		bufferSize: bufferSize,
		maxRead:    maxRead,
		logger:     logger.With().Str("component", "reader_pool").Logger(),
	}
}

// Get checks out a reader bound to src, running encoding detection on
// it. Close returns the reader to the pool.
func (p *ReaderPool) Get(src io.Reader) (*Reader, error) {
	r := p.take()
	if err := r.Reset(src); err != nil {
		p.put(r)
		return nil, err
	}
	p.logger.Trace().Int("idle", p.Size()).Msg("Reader checked out")
	return r, nil
}

// GetDecoded checks out a reader bound to an already-decoded stream.
func (p *ReaderPool) GetDecoded(src io.Reader) *Reader {
	r := p.take()
	r.ResetDecoded(src)
	p.logger.Trace().Int("idle", p.Size()).Msg("Reader checked out")
	return r
}

func (p *ReaderPool) take() *Reader {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		r := p.free[n-1]
		p.free = p.free[:n-1]
		r.closed = false
		return r
	}
	r := newReader(p.bufferSize, p.maxRead)
	r.pool = p
	return r
}

// Put recycles a reader explicitly. Equivalent to Close on a pooled
// reader and just as idempotent.
func (p *ReaderPool) Put(r *Reader) {
	_ = r.Close()
}

func (p *ReaderPool) put(r *Reader) {
	p.mu.Lock()
	p.free = append(p.free, r)
	idle := len(p.free)
	p.mu.Unlock()
	p.logger.Trace().Int("idle", idle).Msg("Reader returned")
}

// Size reports how many idle readers the pool holds.
func (p *ReaderPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
