package status

import (
	"sync"
	"time"
)

// Board holds the most recently published View. The zero value is not
// usable; use NewBoard.
type Board struct {
	mu        sync.RWMutex
	view      View
	published bool
	updatedAt time.Time
	now       func() time.Time
}

// NewBoard creates an empty Board.
func NewBoard() *Board {
	return &Board{now: time.Now}
}

// Publish replaces the current View. Callers must not modify v.Rows afterwards.
func (b *Board) Publish(v View) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.view = v
	b.published = true
	b.updatedAt = b.now()
}

// Current returns the latest View and whether one has been published yet.
// Before the first Publish it returns an empty View with non-nil Rows.
func (b *Board) Current() (View, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.published {
		return View{Rows: []Row{}}, false
	}
	return b.view, true
}

// UpdatedAt returns when the current View was published.
func (b *Board) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updatedAt
}
