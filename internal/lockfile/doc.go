// Package lockfile implements the lock registry: one marker file per entity
// currently being recorded, named <key>.lock inside the lock directory.
//
// Markers are created and removed by the recorder (Acquire/Release). Every
// other component only observes them through the Registry's cache:
//
//   - Refresh lists the directory and swaps the cached key set wholesale.
//   - Exists, Keys and Len read the cache, never the filesystem, so a marker
//     is visible only after the next completed Refresh.
//   - Run refreshes immediately and then on every interval until ctx ends.
//     Start launches Run once; later calls are no-ops.
//   - Sweep deletes every marker unconditionally. The orchestrator calls it
//     once at startup to discard "recording" state left by a crashed run.
//
// A marker appearing or vanishing while the directory is listed is a benign
// race; it is resolved by the next refresh.
package lockfile
