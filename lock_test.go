package procmem

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_LockSurvivesFreeMemory(t *testing.T) {
	ctx := context.Background()
	srv, err := New(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	_, err = srv.StoreData(ctx, 42, "k", "v")
	require.NoError(t, err)
	before, ok := srv.locks.Load("0x2a")
	require.True(t, ok)

	require.NoError(t, srv.FreeMemory(ctx, 42))
	after, ok := srv.locks.Load("0x2a")
	require.True(t, ok, "the pid mutex is kept after memory is freed")
	assert.Same(t, before, after)

	_, err = srv.StoreData(ctx, 42, "k", "w")
	require.NoError(t, err)
	current, _ := srv.locks.Load("0x2a")
	assert.Same(t, before, current)
}
