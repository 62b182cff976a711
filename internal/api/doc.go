// Package api implements the HTTP status API.
//
// New(deps) returns an http.Handler that serves:
//
//	GET /api/v1/health            overall state and counts
//	GET /api/v1/status            the latest reconciled view (StatusResponse)
//	GET /api/v1/users/{username}  one live user's row; 404 if not live
//	GET /api/v1/locks             lock keys as of the last cache refresh
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. Lock data comes from the registry cache, never the
// filesystem.
package api
