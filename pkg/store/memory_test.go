package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_InsertSelect(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.Insert(ctx, "leads", []Row{
		{"id": "a", "user_id": "u1", "status": "new"},
		{"id": "b", "user_id": "u1", "status": "won"},
		{"id": "c", "user_id": "u2", "status": "new"},
	}))

	rows, err := mem.Select(ctx, "leads", Where(Eq("user_id", "u1")), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = mem.Select(ctx, "leads", Where(Eq("user_id", "u1"), Eq("status", "won")), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["id"])
}

func TestMemory_AssignsMissingID(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.Insert(ctx, "leads", []Row{{"user_id": "u1"}}))
	rows, err := mem.Select(ctx, "leads", nil, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NotEmpty(t, rows[0]["id"])
}

func TestMemory_SelectIn(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.Insert(ctx, "leads", []Row{
		{"id": "a"}, {"id": "b"}, {"id": "c"},
	}))

	rows, err := mem.Select(ctx, "leads", Where(In("id", "a", "c")), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestMemory_SelectOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, mem.Insert(ctx, "leads", []Row{
		{"id": "a", "created_at": base.Add(time.Hour)},
		{"id": "b", "created_at": base},
		{"id": "c", "created_at": base.Add(2 * time.Hour)},
	}))

	rows, err := mem.Select(ctx, "leads", nil, Desc("created_at"))
	require.NoError(t, err)
	assert.Equal(t, "c", rows[0]["id"])
	assert.Equal(t, "b", rows[2]["id"])

	rows, err = mem.Select(ctx, "leads", nil, Asc("created_at"))
	require.NoError(t, err)
	assert.Equal(t, "b", rows[0]["id"])
}

func TestMemory_RowsAreCopies(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	src := Row{"id": "a", "metadata": map[string]any{"k": "v"}}
	require.NoError(t, mem.Insert(ctx, "leads", []Row{src}))

	// Mutating the input after insert must not affect stored state
	src["metadata"].(map[string]any)["k"] = "changed"

	rows, err := mem.Select(ctx, "leads", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", rows[0]["metadata"].(map[string]any)["k"])

	// Mutating a result must not affect stored state either
	rows[0]["metadata"].(map[string]any)["k"] = "changed"
	rows, err = mem.Select(ctx, "leads", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "v", rows[0]["metadata"].(map[string]any)["k"])
}

func TestMemory_Update(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.Insert(ctx, "leads", []Row{
		{"id": "a", "status": "new"},
		{"id": "b", "status": "new"},
		{"id": "c", "status": "won"},
	}))

	count, err := mem.Update(ctx, "leads", Row{"status": "contacted"}, Where(Eq("status", "new")))
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	remaining, err := mem.Count(ctx, "leads", Where(Eq("status", "new")))
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestMemory_Delete(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	require.NoError(t, mem.Insert(ctx, "leads", []Row{{"id": "a"}, {"id": "b"}}))

	count, err := mem.Delete(ctx, "leads", Where(Eq("id", "a")))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	total, err := mem.Count(ctx, "leads", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestMemory_Upsert(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	keys := []string{"user_id", "title", "address"}

	require.NoError(t, mem.Upsert(ctx, "leads", []Row{
		{"user_id": "u1", "title": "Acme", "address": "1 Main St", "rating": 3},
	}, keys))
	require.NoError(t, mem.Upsert(ctx, "leads", []Row{
		{"user_id": "u1", "title": "Acme", "address": "1 Main St", "rating": 5},
		{"user_id": "u1", "title": "Acme", "address": "2 Oak Ave", "rating": 1},
	}, keys))

	rows, err := mem.Select(ctx, "leads", Where(Eq("address", "1 Main St")), nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 5, rows[0]["rating"])

	total, err := mem.Count(ctx, "leads", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

func TestMemory_LooseEquality(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	// A jsonb round-trip turns ints into float64; filters still match
	require.NoError(t, mem.Insert(ctx, "leads", []Row{{"id": "a", "rating": float64(4)}}))

	rows, err := mem.Select(ctx, "leads", Where(Eq("rating", 4)), nil)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
