package optimistic

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/notify"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedLeads(t *testing.T, st store.Store, userID string, count int) []string {
	t.Helper()
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		ids[i] = fmt.Sprintf("lead-%d", i)
		lead := schema.Lead{
			ID:     ids[i],
			UserID: userID,
			Title:  fmt.Sprintf("Lead %d", i),
			Status: "new",
		}
		require.NoError(t, st.Insert(context.Background(), "leads", []store.Row{lead.Row()}))
	}
	return ids
}

func setupBoard(t *testing.T, st store.Store) (*Board, *notify.Collector) {
	t.Helper()
	collector := &notify.Collector{}
	board := NewBoard(st, collector, logger.New("error"), "user-1")
	require.NoError(t, board.Load(context.Background()))
	return board, collector
}

// countingStore records how many writes went through
type countingStore struct {
	store.Store
	updates int
	deletes int
}

func (c *countingStore) Update(ctx context.Context, table string, patch store.Row, filter store.Filter) (int, error) {
	c.updates++
	return c.Store.Update(ctx, table, patch, filter)
}

func (c *countingStore) Delete(ctx context.Context, table string, filter store.Filter) (int, error) {
	c.deletes++
	return c.Store.Delete(ctx, table, filter)
}

// failingStore refuses all writes
type failingStore struct {
	store.Store
}

func (f *failingStore) Update(ctx context.Context, table string, patch store.Row, filter store.Filter) (int, error) {
	return 0, errors.New("write refused")
}

func (f *failingStore) Delete(ctx context.Context, table string, filter store.Filter) (int, error) {
	return 0, errors.New("write refused")
}

func TestMoveToStage(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 3)
	board, collector := setupBoard(t, mem)
	ctx := context.Background()

	require.NoError(t, board.MoveToStage(ctx, ids[0], "contacted"))

	for _, lead := range board.Leads() {
		if lead.ID == ids[0] {
			assert.Equal(t, "contacted", lead.Status)
		}
	}
	rows, err := mem.Select(ctx, "leads", store.Where(store.Eq("id", ids[0])), nil)
	require.NoError(t, err)
	assert.Equal(t, "contacted", rows[0]["status"])
	assert.Len(t, collector.Successes, 1)
}

func TestMoveToStage_SameStageNoWrite(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 1)
	counting := &countingStore{Store: mem}
	board, collector := setupBoard(t, counting)

	require.NoError(t, board.MoveToStage(context.Background(), ids[0], "new"))
	assert.Zero(t, counting.updates)
	assert.Empty(t, collector.Successes)
	assert.Empty(t, collector.Errors)
}

func TestMoveToStage_RollbackOnFailure(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 2)
	board, collector := setupBoard(t, mem)

	// Swap in a failing store after the initial load
	board.store = &failingStore{mem}

	err := board.MoveToStage(context.Background(), ids[0], "contacted")
	require.Error(t, err)

	for _, lead := range board.Leads() {
		assert.Equal(t, "new", lead.Status)
	}
	assert.Len(t, collector.Errors, 1)
}

func TestMoveToStage_UnknownLead(t *testing.T) {
	mem := store.NewMemory()
	seedLeads(t, mem, "user-1", 1)
	board, _ := setupBoard(t, mem)

	err := board.MoveToStage(context.Background(), "missing", "contacted")
	assert.True(t, domain.IsNotFound(err))
}

func TestAssignAgent_Idempotent(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 1)
	counting := &countingStore{Store: mem}
	board, _ := setupBoard(t, counting)
	ctx := context.Background()

	require.NoError(t, board.AssignAgent(ctx, ids[0], "agent-1"))
	assert.Equal(t, 1, counting.updates)

	// Assigning the value already in place issues no second write
	require.NoError(t, board.AssignAgent(ctx, ids[0], "agent-1"))
	assert.Equal(t, 1, counting.updates)

	// Unassigning is a real change again
	require.NoError(t, board.AssignAgent(ctx, ids[0], ""))
	assert.Equal(t, 2, counting.updates)
	for _, lead := range board.Leads() {
		assert.Nil(t, lead.AgentAssigned)
	}
}

func TestBulkSetRating(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 5)
	counting := &countingStore{Store: mem}
	board, collector := setupBoard(t, counting)
	ctx := context.Background()

	board.SetSelection(ids)
	require.NoError(t, board.BulkSetRating(ctx, 4))

	// One batch write for the whole selection
	assert.Equal(t, 1, counting.updates)
	assert.Empty(t, board.Selection())
	for _, lead := range board.Leads() {
		assert.Equal(t, 4, lead.Rating)
	}

	rows, err := mem.Select(ctx, "leads", store.Where(store.Eq("user_id", "user-1")), nil)
	require.NoError(t, err)
	for _, row := range rows {
		assert.EqualValues(t, 4, row["rating"])
	}
	require.Len(t, collector.Successes, 1)
	assert.Contains(t, collector.Successes[0], "5 leads")
}

func TestBulkSetRating_RangeValidation(t *testing.T) {
	mem := store.NewMemory()
	seedLeads(t, mem, "user-1", 1)
	board, _ := setupBoard(t, mem)

	assert.True(t, domain.IsValidation(board.BulkSetRating(context.Background(), 6)))
	assert.True(t, domain.IsValidation(board.BulkSetRating(context.Background(), -1)))
}

func TestBulkUpdate_EmptySelectionNoWrite(t *testing.T) {
	mem := store.NewMemory()
	seedLeads(t, mem, "user-1", 2)
	counting := &countingStore{Store: mem}
	board, _ := setupBoard(t, counting)

	require.NoError(t, board.BulkSetStage(context.Background(), "won"))
	assert.Zero(t, counting.updates)
}

func TestBulkSetStage_FailureKeepsLocalState(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 3)
	board, collector := setupBoard(t, mem)
	board.store = &failingStore{mem}

	board.SetSelection(ids[:2])
	err := board.BulkSetStage(context.Background(), "won")
	require.Error(t, err)

	// Bulk failures notify without reverting: part of the batch may have
	// landed, so the local state keeps the optimistic value
	moved := 0
	for _, lead := range board.Leads() {
		if lead.Status == "won" {
			moved++
		}
	}
	assert.Equal(t, 2, moved)
	assert.Empty(t, board.Selection())
	assert.Len(t, collector.Errors, 1)
}

func TestBulkDelete(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 4)
	counting := &countingStore{Store: mem}
	board, _ := setupBoard(t, counting)
	ctx := context.Background()

	board.SetSelection(ids[1:3])
	require.NoError(t, board.BulkDelete(ctx))

	assert.Equal(t, 1, counting.deletes)
	assert.Len(t, board.Leads(), 2)

	remaining, err := mem.Count(ctx, "leads", store.Where(store.Eq("user_id", "user-1")))
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestBoard_ClosedRejectsMutations(t *testing.T) {
	mem := store.NewMemory()
	ids := seedLeads(t, mem, "user-1", 1)
	board, _ := setupBoard(t, mem)

	board.Close()

	assert.True(t, domain.IsBadRequest(board.MoveToStage(context.Background(), ids[0], "won")))
	board.SetSelection(ids)
	assert.True(t, domain.IsBadRequest(board.BulkDelete(context.Background())))
}

func TestBoard_RefreshAfterCloseDiscarded(t *testing.T) {
	mem := store.NewMemory()
	seedLeads(t, mem, "user-1", 2)
	board, _ := setupBoard(t, mem)

	board.Close()

	// Rows appearing after close never surface, even through an explicit
	// refresh: the fetched response is discarded
	extra := schema.Lead{ID: "lead-extra", UserID: "user-1", Title: "Late", Status: "new"}
	require.NoError(t, mem.Insert(context.Background(), "leads", []store.Row{extra.Row()}))
	require.NoError(t, board.Refresh(context.Background()))
	assert.Len(t, board.Leads(), 2)
}

func TestManager_ReusesBoardPerUser(t *testing.T) {
	mem := store.NewMemory()
	seedLeads(t, mem, "user-1", 1)
	mgr := NewManager(mem, &notify.Collector{}, logger.New("error"))
	ctx := context.Background()

	b1, err := mgr.Board(ctx, "user-1")
	require.NoError(t, err)
	b2, err := mgr.Board(ctx, "user-1")
	require.NoError(t, err)
	assert.Same(t, b1, b2)

	other, err := mgr.Board(ctx, "user-2")
	require.NoError(t, err)
	assert.NotSame(t, b1, other)

	mgr.Release("user-1")
	b3, err := mgr.Board(ctx, "user-1")
	require.NoError(t, err)
	assert.NotSame(t, b1, b3)
}
