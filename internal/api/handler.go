package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/autorecord/autorecord/internal/status"
)

// ViewSource provides the latest reconciled view.
type ViewSource interface {
	Current() (status.View, bool)
}

// LockLister is the read side of the lock registry.
type LockLister interface {
	Keys() []string
	Len() int
	LastRefresh() time.Time
}

// Counter reports a size, such as the avatar cache's entry count.
type Counter interface {
	Len() int
}

// Deps are the components the API reads. Locks and Avatars may be nil.
type Deps struct {
	View    ViewSource
	Locks   LockLister
	Avatars Counter
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(deps Deps) http.Handler {
	h := &Handler{deps: deps, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/status", h.status)
	h.mux.HandleFunc("/api/v1/users/", h.getUser)
	h.mux.HandleFunc("/api/v1/locks", h.locks)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	v, ok := h.deps.View.Current()
	resp := HealthResponse{
		State:          "starting",
		LiveCount:      v.LiveCount,
		RecordingCount: v.RecordingCount,
	}
	if ok {
		resp.State = "ok"
	}
	if h.deps.Locks != nil {
		resp.LockCount = h.deps.Locks.Len()
		resp.LockRefreshedAt = formatTime(h.deps.Locks.LastRefresh())
	}
	if h.deps.Avatars != nil {
		resp.AvatarCacheEntries = h.deps.Avatars.Len()
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildStatus(h.deps.View))
}

// getUser returns GET /api/v1/users/{username}.
func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/v1/users/")
	if name == "" {
		h.status(w, r)
		return
	}

	v, _ := h.deps.View.Current()
	for _, row := range v.Rows {
		if row.Username == name {
			jsonResp(w, http.StatusOK, toRowResponse(row))
			return
		}
	}
	jsonErr(w, http.StatusNotFound, "user not live")
}

func (h *Handler) locks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.deps.Locks == nil {
		jsonResp(w, http.StatusOK, LocksResponse{Keys: []string{}})
		return
	}
	keys := h.deps.Locks.Keys()
	if keys == nil {
		keys = []string{}
	}
	jsonResp(w, http.StatusOK, LocksResponse{
		Keys:        keys,
		RefreshedAt: formatTime(h.deps.Locks.LastRefresh()),
	})
}

// --- helpers ----------------------------------------------------------------

// BuildStatus converts the latest view to its JSON representation.
func BuildStatus(src ViewSource) StatusResponse {
	v, _ := src.Current()
	rows := make([]RowResponse, 0, len(v.Rows))
	for _, r := range v.Rows {
		rows = append(rows, toRowResponse(r))
	}
	return StatusResponse{
		Rows:           rows,
		LiveCount:      v.LiveCount,
		RecordingCount: v.RecordingCount,
		GeneratedAt:    formatTime(v.GeneratedAt),
	}
}

func toRowResponse(r status.Row) RowResponse {
	return RowResponse{Username: r.Username, ImageURL: r.ImageURL, Recording: r.Recording}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
