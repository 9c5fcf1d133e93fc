package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/hvbridge/internal/record"
)

type fakePeer struct {
	id   string
	recs []record.Record
}

func (p *fakePeer) ID() string             { return p.id }
func (p *fakePeer) Send(r record.Record)   { p.recs = append(p.recs, r) }

func TestPublishSkipsOrigin(t *testing.T) {
	h := New()
	a := &fakePeer{id: "a"}
	b := &fakePeer{id: "b"}
	h.Register(a)
	h.Register(b)

	rec := record.NewText("hello")
	h.Publish(rec, "a")

	assert.Empty(t, a.recs, "origin must not receive its own record")
	require.Len(t, b.recs, 1)
	assert.Equal(t, "hello", b.recs[0].Content)
}

func TestRegisterDeliversLatest(t *testing.T) {
	h := New()
	h.Publish(record.NewText("current"), "somewhere")

	late := &fakePeer{id: "late"}
	h.Register(late)

	require.Len(t, late.recs, 1)
	assert.Equal(t, "current", late.recs[0].Content)
}

func TestRegisterWithNoHistory(t *testing.T) {
	h := New()
	p := &fakePeer{id: "p"}
	h.Register(p)
	assert.Empty(t, p.recs)

	_, ok := h.Latest()
	assert.False(t, ok)
}

func TestUnregister(t *testing.T) {
	h := New()
	p := &fakePeer{id: "p"}
	h.Register(p)
	require.Equal(t, 1, h.PeerCount())

	h.Unregister(p)
	assert.Equal(t, 0, h.PeerCount())

	h.Publish(record.NewText("x"), "elsewhere")
	assert.Empty(t, p.recs)
}
