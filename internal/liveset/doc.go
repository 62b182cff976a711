// Package liveset reads and writes the files the workers exchange:
//
//   - the live-set snapshot (json/live_users.json), a JSON array of
//     {"username", "profile_picture"} records in display order, written by
//     the liveness checker and read by the resolver and the display;
//   - the stream links (json/stream_links.json), a JSON object mapping
//     username to stream URL, written by the resolver and read by the
//     recorder.
//
// ReadSnapshot never fails: an empty, missing, truncated or malformed file
// yields an empty Snapshot and a log line. Writers in this repo replace
// files atomically (temp file + rename), but readers assume other writers
// may not.
package liveset
