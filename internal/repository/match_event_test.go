package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchEventRepository_AppendAndList(t *testing.T) {
	db := TestDB(t)
	repo := NewMatchEventRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx,
		CreateTestMatchEvent("m1", 1, "point"),
		CreateTestMatchEvent("m1", 2, "point"),
		CreateTestMatchEvent("m1", 2, "switch_sides"),
		CreateTestMatchEvent("m2", 1, "sideout"),
	))
	require.NoError(t, repo.Append(ctx))

	p := NewPagination(1, 10)
	events, err := repo.ListByMatch(ctx, "m1", p)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, int64(3), p.Total)
	assert.Equal(t, 1, events[0].Seq)
	assert.Equal(t, "switch_sides", events[2].Type)

	switches, err := repo.ListByMatch(ctx, "m1", NewPagination(1, 10), "switch_sides")
	require.NoError(t, err)
	assert.Len(t, switches, 1)

	none, err := repo.ListByMatch(ctx, "m3", NewPagination(1, 10))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMatchEventRepository_ListByTypePaged(t *testing.T) {
	db := TestDB(t)
	repo := NewMatchEventRepository(db)
	ctx := context.Background()

	for seq := 1; seq <= 5; seq++ {
		require.NoError(t, repo.Append(ctx, CreateTestMatchEvent("p-1", seq, "point")))
	}
	require.NoError(t, repo.Append(ctx,
		CreateTestMatchEvent("p-1", 4, "undo"),
		CreateTestMatchEvent("p-1", 5, "sideout"),
		CreateTestMatchEvent("p-1", 4, "undo"),
	))

	p := NewPagination(1, 2)
	undos, err := repo.ListByMatch(ctx, "p-1", p, "undo")
	require.NoError(t, err)
	require.Len(t, undos, 2)
	assert.Equal(t, int64(2), p.Total)
	for _, e := range undos {
		assert.Equal(t, "undo", e.Type)
	}

	p = NewPagination(2, 2)
	mixed, err := repo.ListByMatch(ctx, "p-1", p, "undo", "sideout")
	require.NoError(t, err)
	require.Len(t, mixed, 1)
	assert.Equal(t, int64(3), p.Total)
	assert.Equal(t, 2, p.TotalPages())
	assert.Equal(t, "undo", mixed[0].Type)
}
