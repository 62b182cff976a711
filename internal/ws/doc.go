// Package ws implements the WebSocket status stream.
//
// Hub keeps the set of connected clients and, every interval, sends each of
// them the latest reconciled view. A client receives the current view as
// soon as it connects. Messages look like
//
//	{"event": "status", "data": { /* same schema as GET /api/v1/status */ }}
//
// Hub.Run blocks until its context is cancelled and then closes every
// connection. The hub is mounted at /ws/stream.
package ws
