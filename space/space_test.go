package space

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/procmem/heap"
	"github.com/viant/procmem/internal/clock"
	"github.com/viant/procmem/internal/idgen"
	"github.com/viant/procmem/service/dao"
	"github.com/viant/procmem/shed"
)

func newTestSpace(pid int) *Space {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(pid, WithHeapOptions(heap.WithLogger(logger)), WithShedOptions(shed.WithLogger(logger)))
}

func TestSpace_Ensure(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace(42)
	assert.Equal(t, "0x2a", s.PID)

	h, err := s.EnsureHeap(ctx, 1, 16)
	require.NoError(t, err)
	assert.Equal(t, 16, h.Size())
	assert.Equal(t, "0x2a", h.PID())

	same, err := s.EnsureHeap(ctx, "0x1", 99)
	require.NoError(t, err)
	assert.Same(t, h, same, "ensure is idempotent")

	sh, err := s.EnsureShed(ctx, 1, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, sh.Capacity())

	_, err = s.Heap(ctx, 2)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	_, err = s.Shed(ctx, 2)
	assert.True(t, errors.Is(err, dao.ErrNotFound))
}

func TestSpace_Release(t *testing.T) {
	ctx := context.Background()
	s := newTestSpace(1)
	h, _ := s.EnsureHeap(ctx, 1, 4)
	sh, _ := s.EnsureShed(ctx, 1, 4)
	_, _ = h.Alloc(2, false)
	sh.WriteResourceLink("k", "0x0")

	require.NoError(t, s.Release(ctx))
	assert.Equal(t, 0, h.Size())
	assert.Equal(t, 0, sh.StackSize())
	heaps, _ := s.Heaps(ctx)
	assert.Empty(t, heaps)
	sheds, _ := s.Sheds(ctx)
	assert.Empty(t, sheds)
}

func TestSpace_SnapshotRestore(t *testing.T) {
	ctx := context.Background()
	newID, now := idgen.NewFunc, clock.NowFunc
	defer func() {
		idgen.NewFunc, clock.NowFunc = newID, now
	}()
	idgen.NewFunc = func() string { return "snap-1" }
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	clock.NowFunc = func() time.Time { return fixed }

	s := newTestSpace(7)
	h, _ := s.EnsureHeap(ctx, 1, 8)
	sh, _ := s.EnsureShed(ctx, 1, 8)
	addr, ok := h.Alloc(3, false)
	require.True(t, ok)
	require.True(t, h.WriteData(addr, "x"))
	sh.WriteResourceLink("key", addr)
	sh.WriteCode("noop")

	snapshot, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", snapshot.ID)
	assert.Equal(t, fixed, snapshot.TakenAt)

	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	decoded := &Snapshot{}
	require.NoError(t, json.Unmarshal(data, decoded))

	target := newTestSpace(7)
	require.NoError(t, target.Restore(ctx, decoded))
	restoredHeap, err := target.Heap(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 8, restoredHeap.Size())
	value, ok := restoredHeap.ReadString(addr, 0)
	assert.True(t, ok)
	assert.Equal(t, "x", value)

	restoredShed, err := target.Shed(ctx, 1)
	require.NoError(t, err)
	link, ok := restoredShed.ReadResourceLink("key")
	assert.True(t, ok)
	assert.Equal(t, addr, link)
	assert.Equal(t, sh.StackSize(), restoredShed.StackSize())

	assert.Error(t, newTestSpace(8).Restore(ctx, decoded), "pid mismatch")
	assert.Error(t, target.Restore(ctx, nil))
}
