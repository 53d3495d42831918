package optimistic

import (
	"context"
	"sync"

	"github.com/leadboard/leadboard/pkg/domain"
	"github.com/leadboard/leadboard/pkg/logger"
	"github.com/leadboard/leadboard/pkg/store"
)

// Manager hands out one board per user, loading it on first access
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	notifier domain.Notifier
	logger   logger.Logger
	boards   map[string]*Board
}

// NewManager creates a board manager
func NewManager(st store.Store, notifier domain.Notifier, log logger.Logger) *Manager {
	return &Manager{
		store:    st,
		notifier: notifier,
		logger:   log,
		boards:   make(map[string]*Board),
	}
}

// Board returns the user's board, creating and loading it if needed
func (m *Manager) Board(ctx context.Context, userID string) (*Board, error) {
	m.mu.Lock()
	board, ok := m.boards[userID]
	if !ok {
		board = NewBoard(m.store, m.notifier, m.logger, userID)
		m.boards[userID] = board
	}
	m.mu.Unlock()

	if !ok {
		if err := board.Load(ctx); err != nil {
			m.mu.Lock()
			delete(m.boards, userID)
			m.mu.Unlock()
			return nil, err
		}
	}
	return board, nil
}

// InvalidateBoard re-fetches the user's board after a write that went
// through the lead or stage services instead of the board itself. Without
// it the two paths would operate on divergent lead collections. A user
// with no loaded board has nothing to resync.
func (m *Manager) InvalidateBoard(ctx context.Context, userID string) {
	m.mu.Lock()
	board, ok := m.boards[userID]
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := board.Refresh(ctx); err != nil {
		m.logger.Error("failed to resync board after external write", "user_id", userID, "error", err)
	}
}

// Release closes and drops the user's board
func (m *Manager) Release(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if board, ok := m.boards[userID]; ok {
		board.Close()
		delete(m.boards, userID)
	}
}
