package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	public := NewSession(DefaultConfig("wss://public"), dialerFor())
	private := NewSession(DefaultConfig("wss://private"), dialerFor())

	require.NoError(t, r.Register("public", public))
	require.NoError(t, r.Register("private", private))
	assert.Error(t, r.Register("public", private))

	got, err := r.Get("public")
	require.NoError(t, err)
	assert.Same(t, public, got)

	_, err = r.Get("missing")
	assert.Error(t, err)

	assert.Equal(t, []string{"private", "public"}, r.Names())
	assert.True(t, r.Exists("private"))

	r.Unregister("private")
	assert.False(t, r.Exists("private"))
	assert.Equal(t, []string{"public"}, r.Names())
}

func TestRegistry_CloseAll(t *testing.T) {
	cfg := DefaultConfig("wss://x")
	cfg.CloseTimeout = 20 * time.Millisecond

	connected, ft, results := connectFake(t, cfg)
	idle := NewSession(cfg, dialerFor())

	r := NewRegistry()
	require.NoError(t, r.Register("live", connected))
	require.NoError(t, r.Register("idle", idle))

	require.NoError(t, r.CloseAll(context.Background()))
	requireClosed(t, results)

	assert.Equal(t, StateClosed, connected.State())
	assert.Equal(t, StateDisconnected, idle.State())
	assert.True(t, ft.isClosed())
	assert.Empty(t, r.Names())
}
