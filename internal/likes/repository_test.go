package likes

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/internal/database/dbtest"
)

func TestRepository_Postgres(t *testing.T) {
	repo := NewRepository(dbtest.Start(t))
	ctx := context.Background()

	like := func(user string) *Like {
		return &Like{ID: uuid.New().String(), ItemID: "img-1", UserID: user, CreatedAt: time.Now()}
	}

	inserted, err := repo.Insert(ctx, like("user_a"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Second like by the same user hits the unique constraint and is a no-op
	inserted, err = repo.Insert(ctx, like("user_a"))
	require.NoError(t, err)
	assert.False(t, inserted)

	_, err = repo.Insert(ctx, like("user_b"))
	require.NoError(t, err)

	cnt, err := repo.Count(ctx, "img-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, cnt)

	ok, err := repo.Exists(ctx, "img-1", "user_a")
	require.NoError(t, err)
	assert.True(t, ok)

	removed, err := repo.Delete(ctx, "img-1", "user_a")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Delete(ctx, "img-1", "user_a")
	require.NoError(t, err)
	assert.False(t, removed)

	ok, err = repo.Exists(ctx, "img-1", "user_a")
	require.NoError(t, err)
	assert.False(t, ok)
}
