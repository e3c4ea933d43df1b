package xmlstream

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPoolReuse(t *testing.T) {
	pool := NewReaderPool(1024, 256, zerolog.Nop())
	assert.Equal(t, 0, pool.Size())

	r, err := pool.Get(strings.NewReader(`<a>one</a>`))
	assert.NoError(t, err)

	events, err := drain(r)
	assert.NoError(t, err)
	assert.Equal(t, EventEndDocument, events[len(events)-1].kind)

	assert.NoError(t, r.Close())
	assert.Equal(t, 1, pool.Size())

	// The recycled reader must parse a fresh document with no state
	// bleeding over from the previous one.
	r2, err := pool.Get(strings.NewReader(`<b attr="x">two</b>`))
	assert.NoError(t, err)
	assert.Same(t, r, r2)
	assert.Equal(t, 0, pool.Size())

	events, err = drain(r2)
	assert.NoError(t, err)
	assert.Equal(t, []ev{
		{EventStartDocument, ""},
		{EventStartElement, "b"},
		{EventCharacters, "two"},
		{EventEndElement, "b"},
		{EventEndDocument, ""},
	}, events)

	assert.NoError(t, r2.Close())
}

func TestPoolCloseIdempotent(t *testing.T) {
	pool := NewReaderPool(1024, 256, zerolog.Nop())

	r, err := pool.Get(strings.NewReader(`<a/>`))
	assert.NoError(t, err)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
	// Double close must not double-add to the free list.
	assert.Equal(t, 1, pool.Size())
}

func TestPoolGetDecoded(t *testing.T) {
	pool := NewReaderPool(1024, 256, zerolog.Nop())

	r := pool.GetDecoded(strings.NewReader(`<a/>`))
	_, err := drain(r)
	assert.NoError(t, err)
	assert.Equal(t, EncodingUnknown, r.DetectedEncoding())
	assert.NoError(t, r.Close())
}

func TestPoolGrowsUnderCheckout(t *testing.T) {
	pool := NewReaderPool(1024, 256, zerolog.Nop())

	a, err := pool.Get(strings.NewReader(`<a/>`))
	assert.NoError(t, err)
	b, err := pool.Get(strings.NewReader(`<b/>`))
	assert.NoError(t, err)
	assert.NotSame(t, a, b)

	assert.NoError(t, a.Close())
	assert.NoError(t, b.Close())
	assert.Equal(t, 2, pool.Size())
}
