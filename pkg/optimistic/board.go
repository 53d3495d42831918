// Package optimistic applies local state changes ahead of remote
// confirmation. The board mirrors the lead collection a view operates on:
// mutations update it synchronously, then issue the remote write, and only
// single-lead moves roll the local state back on failure. Bulk operations
// surface the error without reverting, since part of the batch may already
// have committed and a manual retry is the recovery path.
package optimistic

import (
	"context"
	"fmt"
	"sync"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/schema"
	"github.com/leadboard/leadboard/pkg/store"
)

const leadsTable = "leads"

// Board holds the in-memory lead collection for one user's view
type Board struct {
	mu        sync.Mutex
	store     store.Store
	notifier  domain.Notifier
	logger    logger.Logger
	userID    string
	leads     []schema.Lead
	selection []string
	nextToken int64
	applied   int64
	closed    bool
}

// NewBoard creates a board for one user
func NewBoard(st store.Store, notifier domain.Notifier, log logger.Logger, userID string) *Board {
	return &Board{
		store:    st,
		notifier: notifier,
		logger:   log,
		userID:   userID,
	}
}

// Load fetches the authoritative lead list. This read is load-bearing, so
// a failure is returned rather than treated as an empty board.
func (b *Board) Load(ctx context.Context) error {
	return b.refresh(ctx)
}

// refresh re-fetches leads with token fencing: a response that raced with a
// newer fetch (or with teardown) is discarded instead of overwriting state.
func (b *Board) refresh(ctx context.Context) error {
	b.mu.Lock()
	b.nextToken++
	token := b.nextToken
	b.mu.Unlock()

	rows, err := b.store.Select(ctx, leadsTable,
		store.Where(store.Eq("user_id", b.userID)),
		store.Desc("created_at"),
	)
	if err != nil {
		return fmt.Errorf("failed to fetch leads: %w", err)
	}

	leads := make([]schema.Lead, len(rows))
	for i, row := range rows {
		leads[i] = schema.LeadFromRow(row)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || token <= b.applied {
		return nil
	}
	b.applied = token
	b.leads = leads
	return nil
}

// Leads returns a copy of the current lead collection
func (b *Board) Leads() []schema.Lead {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]schema.Lead(nil), b.leads...)
}

// SetSelection replaces the current selection
func (b *Board) SetSelection(ids []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selection = append([]string(nil), ids...)
}

// Selection returns the currently selected lead ids
func (b *Board) Selection() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.selection...)
}

// Close stops the board from applying any further state updates. In-flight
// refreshes that resolve after Close are dropped.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

// MoveToStage moves a single lead to a stage (the kanban drag gesture).
// Moving a lead onto its current stage is a no-op: no write, no
// notification. On remote failure the pre-move snapshot is restored and the
// authoritative list re-fetched.
func (b *Board) MoveToStage(ctx context.Context, leadID, targetStage string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.NewBadRequestError("board is closed")
	}

	idx := -1
	for i := range b.leads {
		if b.leads[i].ID == leadID {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return domain.NewNotFoundError("lead")
	}
	if b.leads[idx].Status == targetStage {
		b.mu.Unlock()
		return nil
	}

	snapshot := append([]schema.Lead(nil), b.leads...)
	b.leads[idx].Status = targetStage
	b.mu.Unlock()

	_, err := b.store.Update(ctx, leadsTable,
		store.Row{"status": targetStage},
		store.Where(store.Eq("id", leadID)),
	)
	if err != nil {
		b.mu.Lock()
		if !b.closed {
			b.leads = snapshot
		}
		b.mu.Unlock()
		b.notifier.Error("failed to move lead")
		if refreshErr := b.refresh(ctx); refreshErr != nil {
			b.logger.Error("failed to resync after move failure", "error", refreshErr)
		}
		return err
	}

	b.notifier.Success(fmt.Sprintf("lead moved to %s", targetStage))
	return nil
}

// SetStage changes a single lead's stage. Setting the value it already has
// short-circuits before any remote write.
func (b *Board) SetStage(ctx context.Context, leadID, stageName string) error {
	return b.MoveToStage(ctx, leadID, stageName)
}

// AssignAgent sets a single lead's assigned agent; empty clears it.
// Assigning the current value is a no-op.
func (b *Board) AssignAgent(ctx context.Context, leadID, agentID string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.NewBadRequestError("board is closed")
	}

	idx := -1
	for i := range b.leads {
		if b.leads[i].ID == leadID {
			idx = i
			break
		}
	}
	if idx < 0 {
		b.mu.Unlock()
		return domain.NewNotFoundError("lead")
	}

	current := ""
	if b.leads[idx].AgentAssigned != nil {
		current = *b.leads[idx].AgentAssigned
	}
	if current == agentID {
		b.mu.Unlock()
		return nil
	}

	snapshot := append([]schema.Lead(nil), b.leads...)
	if agentID == "" {
		b.leads[idx].AgentAssigned = nil
	} else {
		b.leads[idx].AgentAssigned = &agentID
	}
	b.mu.Unlock()

	var value any
	if agentID != "" {
		value = agentID
	}
	_, err := b.store.Update(ctx, leadsTable,
		store.Row{"agent_assigned": value},
		store.Where(store.Eq("id", leadID)),
	)
	if err != nil {
		b.mu.Lock()
		if !b.closed {
			b.leads = snapshot
		}
		b.mu.Unlock()
		b.notifier.Error("failed to assign agent")
		return err
	}

	b.notifier.Success("agent updated")
	return nil
}

// bulkUpdate applies a patch to the selected leads locally, issues one
// filtered batch write, and clears the selection. Failures are surfaced
// without reverting: part of the batch may have committed and the user
// re-attempts.
func (b *Board) bulkUpdate(ctx context.Context, patch store.Row, apply func(*schema.Lead), successMsg, errorMsg string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.NewBadRequestError("board is closed")
	}
	ids := append([]string(nil), b.selection...)
	if len(ids) == 0 {
		b.mu.Unlock()
		return nil
	}

	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	for i := range b.leads {
		if selected[b.leads[i].ID] {
			apply(&b.leads[i])
		}
	}
	b.selection = nil
	b.mu.Unlock()

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	_, err := b.store.Update(ctx, leadsTable, patch, store.Where(store.In("id", values...)))
	if err != nil {
		b.notifier.Error(errorMsg)
		return err
	}

	b.notifier.Success(fmt.Sprintf(successMsg, len(ids)))
	return nil
}

// BulkSetStage moves every selected lead to the given stage
func (b *Board) BulkSetStage(ctx context.Context, stageName string) error {
	return b.bulkUpdate(ctx,
		store.Row{"status": stageName},
		func(l *schema.Lead) { l.Status = stageName },
		"%d leads updated", "failed to update stages")
}

// BulkAssignAgent assigns every selected lead to the given agent; an empty
// agent id unassigns.
func (b *Board) BulkAssignAgent(ctx context.Context, agentID string) error {
	var value any
	if agentID != "" {
		value = agentID
	}
	return b.bulkUpdate(ctx,
		store.Row{"agent_assigned": value},
		func(l *schema.Lead) {
			if agentID == "" {
				l.AgentAssigned = nil
			} else {
				id := agentID
				l.AgentAssigned = &id
			}
		},
		"%d leads assigned", "failed to assign agent")
}

// BulkSetRating sets the rating on every selected lead
func (b *Board) BulkSetRating(ctx context.Context, rating int) error {
	if rating < 0 || rating > 5 {
		return domain.NewValidationError("rating must be between 0 and 5")
	}
	return b.bulkUpdate(ctx,
		store.Row{"rating": rating},
		func(l *schema.Lead) { l.Rating = rating },
		"%d leads rated", "failed to update rating")
}

// BulkSetCategory sets the category on every selected lead
func (b *Board) BulkSetCategory(ctx context.Context, category string) error {
	return b.bulkUpdate(ctx,
		store.Row{"category": category},
		func(l *schema.Lead) { l.Category = category },
		"%d leads categorized", "failed to update category")
}

// BulkDelete removes every selected lead
func (b *Board) BulkDelete(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return domain.NewBadRequestError("board is closed")
	}
	ids := append([]string(nil), b.selection...)
	if len(ids) == 0 {
		b.mu.Unlock()
		return nil
	}

	selected := make(map[string]bool, len(ids))
	for _, id := range ids {
		selected[id] = true
	}
	kept := b.leads[:0]
	for _, l := range b.leads {
		if !selected[l.ID] {
			kept = append(kept, l)
		}
	}
	b.leads = kept
	b.selection = nil
	b.mu.Unlock()

	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	_, err := b.store.Delete(ctx, leadsTable, store.Where(store.In("id", values...)))
	if err != nil {
		b.notifier.Error("failed to delete leads")
		return err
	}

	b.notifier.Success(fmt.Sprintf("%d leads deleted", len(ids)))
	return nil
}

// Refresh re-fetches the authoritative lead list
func (b *Board) Refresh(ctx context.Context) error {
	return b.refresh(ctx)
}
