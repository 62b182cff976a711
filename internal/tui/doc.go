// Package tui is the terminal status display.
//
// The bubbletea program owns all display state; nothing outside Update
// touches it. Status cycles run as commands and come back as viewMsg, then
// the next cycle is scheduled with tea.Tick, so the loop only waits at the
// scheduled re-invocation. Profile pictures load through an avatar.Cache
// whose Dispatcher sends dispatchMsg into the program, so their callbacks
// also run inside Update.
package tui
