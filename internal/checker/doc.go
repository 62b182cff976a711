// Package checker is the liveness worker. Every interval it asks the
// configured endpoint whether each watched user is live and rewrites the
// live-set file with the live users, in configured order.
//
// The endpoint is a URL template containing "{username}" and must answer
//
//	{"live": true, "profile_picture": "https://..."}
//
// A failed check keeps that user's previous state for the cycle, so one
// flaky request does not make a recording user blink out of the display.
package checker
