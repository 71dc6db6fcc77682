package session

import (
	"time"

	"github.com/fpang/ai-image-editor/internal/filehandler"
	"github.com/fpang/ai-image-editor/internal/operation"
)

// HistoryItem is the UI view of one history entry.
type HistoryItem struct {
	Index     int            `json:"index"`
	Operation operation.Name `json:"operation"`
	Timestamp time.Time      `json:"timestamp"`
	Current   bool           `json:"current"`
}

// Snapshot is a consistent read of the controller for rendering.
type Snapshot struct {
	ID           string                     `json:"id"`
	State        State                      `json:"state"`
	Status       string                     `json:"status"`
	FileName     string                     `json:"fileName,omitempty"`
	Metadata     *filehandler.ImageMetadata `json:"metadata,omitempty"`
	History      []HistoryItem              `json:"history"`
	HistoryIndex int                        `json:"historyIndex"`
	CanUndo      bool                       `json:"canUndo"`
	CanRedo      bool                       `json:"canRedo"`
	CreatedAt    time.Time                  `json:"createdAt"`
	LastActive   time.Time                  `json:"lastActive"`
}

// Snapshot captures the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.history.Entries()
	items := make([]HistoryItem, len(entries))
	for i, e := range entries {
		items[i] = HistoryItem{
			Index:     i,
			Operation: e.Operation,
			Timestamp: e.Timestamp,
			Current:   i == c.history.Index(),
		}
	}

	return Snapshot{
		ID:           c.id,
		State:        c.stateLocked(),
		Status:       c.status,
		FileName:     c.fileName,
		Metadata:     c.metadata,
		History:      items,
		HistoryIndex: c.history.Index(),
		CanUndo:      c.history.CanUndo(),
		CanRedo:      c.history.CanRedo(),
		CreatedAt:    c.createdAt,
		LastActive:   c.lastActive,
	}
}
