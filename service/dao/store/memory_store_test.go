package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/procmem/service/dao"
)

type record struct {
	ID   string
	Size int
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[string, record](func(r *record) string { return r.ID })

	assert.True(t, errors.Is(s.Save(ctx, nil), dao.ErrNilEntity))
	assert.NoError(t, s.Save(ctx, &record{ID: "0x2", Size: 2}))
	assert.NoError(t, s.Save(ctx, &record{ID: "0x1", Size: 1}))
	assert.NoError(t, s.Save(ctx, &record{ID: "0x1", Size: 10}))
	assert.Equal(t, 2, s.Len())

	r, err := s.Load(ctx, "0x1")
	assert.NoError(t, err)
	assert.Equal(t, 10, r.Size)

	_, err = s.Load(ctx, "0x9")
	assert.True(t, errors.Is(err, dao.ErrNotFound))

	list, err := s.List(ctx)
	assert.NoError(t, err)
	if assert.Len(t, list, 2) {
		assert.Equal(t, "0x1", list[0].ID)
		assert.Equal(t, "0x2", list[1].ID)
	}

	assert.NoError(t, s.Delete(ctx, "0x1"))
	assert.NoError(t, s.Delete(ctx, "0x1"))
	assert.Equal(t, 1, s.Len())
}
