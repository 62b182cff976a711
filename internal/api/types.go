package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "starting" until the first status cycle completes, then "ok".
	State              string `json:"state"`
	LiveCount          int    `json:"live_count"`
	RecordingCount     int    `json:"recording_count"`
	LockCount          int    `json:"lock_count"`
	LockRefreshedAt    string `json:"lock_refreshed_at,omitempty"`
	AvatarCacheEntries int    `json:"avatar_cache_entries"`
}

// RowResponse is one live user.
type RowResponse struct {
	Username  string `json:"username"`
	ImageURL  string `json:"image_url,omitempty"`
	Recording bool   `json:"recording"`
}

// StatusResponse is the payload for GET /api/v1/status and the data of
// every WebSocket message.
type StatusResponse struct {
	Rows           []RowResponse `json:"rows"`
	LiveCount      int           `json:"live_count"`
	RecordingCount int           `json:"recording_count"`
	GeneratedAt    string        `json:"generated_at"`
}

// LocksResponse is the payload for GET /api/v1/locks.
type LocksResponse struct {
	Keys        []string `json:"keys"`
	RefreshedAt string   `json:"refreshed_at,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}
