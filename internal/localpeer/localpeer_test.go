package localpeer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/hvbridge/internal/clip"
	"go.klb.dev/hvbridge/internal/hub"
	"go.klb.dev/hvbridge/internal/record"
)

type capturePeer struct {
	ch chan record.Record
}

func (c *capturePeer) ID() string { return "capture" }
func (c *capturePeer) Send(r record.Record) {
	select {
	case c.ch <- r:
	default:
	}
}

func newPeer(t *testing.T) (*Peer, *clip.Memory, *capturePeer, string) {
	t.Helper()
	h := hub.New()
	provider := clip.NewMemory()
	syncDir := t.TempDir()
	p := New(Config{
		SyncDir:         syncDir,
		UpdateThreshold: 100 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
	}, h, provider)

	cap := &capturePeer{ch: make(chan record.Record, 8)}
	h.Register(cap)
	return p, provider, cap, syncDir
}

func TestApplyText(t *testing.T) {
	p, provider, _, _ := newPeer(t)

	require.NoError(t, p.Apply(record.NewText("hello")))
	assert.Equal(t, "hello", provider.GetText())
	assert.False(t, p.LastChange().IsZero())
}

func TestApplyFile(t *testing.T) {
	p, provider, _, syncDir := newPeer(t)

	require.NoError(t, p.Apply(record.NewFile("a.txt", []byte("data"))))

	path := filepath.Join(syncDir, "a.txt")
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(content))
	assert.Equal(t, path, provider.FileReference())
}

func TestApplyFileStripsPathComponents(t *testing.T) {
	p, _, _, syncDir := newPeer(t)

	require.NoError(t, p.Apply(record.NewFile("../../etc/evil", []byte("x"))))

	_, err := os.Stat(filepath.Join(syncDir, "evil"))
	assert.NoError(t, err, "file must land inside the sync directory")
}

func TestPollPublishesDebounced(t *testing.T) {
	p, provider, cap, _ := newPeer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, provider.SetText("x"))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, provider.SetText("xy"))

	select {
	case rec := <-cap.ch:
		assert.Equal(t, "xy", rec.Content)
	case <-time.After(time.Second):
		t.Fatal("no record published")
	}

	select {
	case rec := <-cap.ch:
		t.Fatalf("unexpected second record %q", rec.Content)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAppliedRecordIsNotEchoed(t *testing.T) {
	p, _, cap, _ := newPeer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.NoError(t, p.Apply(record.NewText("inbound")))

	select {
	case rec := <-cap.ch:
		t.Fatalf("applied record echoed back as %q", rec.Content)
	case <-time.After(250 * time.Millisecond):
	}
}
