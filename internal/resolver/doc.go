// Package resolver turns live users into recordable stream URLs. Every
// interval it reads the live set, asks the configured endpoint for each
// user's stream, and rewrites json/stream_links.json with the users it
// could resolve. The recorder only ever sees currently live users.
package resolver
