package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/procmem/service/dao"
	"github.com/viant/procmem/space"
)

func TestService(t *testing.T) {
	ctx := context.Background()
	srv := New()

	assert.True(t, errors.Is(srv.Save(ctx, nil), dao.ErrNilEntity))
	assert.True(t, errors.Is(srv.Save(ctx, &space.Space{}), dao.ErrInvalidID))

	assert.NoError(t, srv.Save(ctx, space.New(2)))
	assert.NoError(t, srv.Save(ctx, space.New(1)))

	loaded, err := srv.Load(ctx, "0x1")
	assert.NoError(t, err)
	assert.Equal(t, "0x1", loaded.PID)

	_, err = srv.Load(ctx, "0x3")
	assert.True(t, errors.Is(err, dao.ErrNotFound))
	_, err = srv.Load(ctx, "")
	assert.True(t, errors.Is(err, dao.ErrInvalidID))

	all, err := srv.List(ctx)
	assert.NoError(t, err)
	if assert.Len(t, all, 2) {
		assert.Equal(t, "0x1", all[0].PID)
	}
	filtered, err := srv.List(ctx, dao.NewParameter("PID", "0x2"))
	assert.NoError(t, err)
	assert.Len(t, filtered, 1)

	assert.NoError(t, srv.Delete(ctx, "0x1"))
	assert.True(t, errors.Is(srv.Delete(ctx, "0x1"), dao.ErrNotFound))
	assert.True(t, errors.Is(srv.Delete(ctx, ""), dao.ErrInvalidID))
}
