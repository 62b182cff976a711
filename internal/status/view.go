package status

import (
	"time"

	"github.com/autorecord/autorecord/internal/liveset"
)

// Row is one live entity in the reconciled view.
type Row struct {
	Username  string `json:"username"`
	ImageURL  string `json:"image_url,omitempty"`
	Recording bool   `json:"recording"`
}

// View is the result of one reconciliation cycle.
type View struct {
	Rows           []Row     `json:"rows"`
	LiveCount      int       `json:"live_count"`
	RecordingCount int       `json:"recording_count"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// LockChecker answers whether a key is recorded as of its last refresh.
type LockChecker interface {
	Exists(key string) bool
}

// Reconcile joins a live-set snapshot with the lock cache. Rows follow the
// snapshot order. lockCount is the size of the lock cache, which may include
// entities that are no longer live.
func Reconcile(snap liveset.Snapshot, locks LockChecker, lockCount int, now time.Time) View {
	rows := make([]Row, 0, len(snap))
	for _, e := range snap {
		rows = append(rows, Row{
			Username:  e.Username,
			ImageURL:  e.ProfilePicture,
			Recording: locks.Exists(e.Username),
		})
	}
	return View{
		Rows:           rows,
		LiveCount:      len(rows),
		RecordingCount: lockCount,
		GeneratedAt:    now,
	}
}

// Recording returns the rows currently marked as recording.
func (v View) Recording() []Row {
	var out []Row
	for _, r := range v.Rows {
		if r.Recording {
			out = append(out, r)
		}
	}
	return out
}
