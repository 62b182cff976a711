// Package avatar fetches and caches profile pictures for the display.
//
// Cache.Fetch(url, onReady) never blocks the caller and never calls onReady
// inline. A hit hands the cached image to the Dispatcher; a miss downloads
// the picture on a goroutine, fits it to a square bound with a center crop,
// masks it to a circle, stores it, and then hands it to the Dispatcher. The
// Dispatcher runs the callback on the rendering loop (the TUI sends it into
// the bubbletea program).
//
// Concurrent fetches of the same uncached URL share one download
// (singleflight). Failed fetches are logged and never call onReady; a later
// Fetch tries again.
//
// Entries are never evicted. The cache grows with the number of distinct
// profile picture URLs seen during the process lifetime.
package avatar
