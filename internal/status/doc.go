// Package status builds the reconciled view shown by the display: one row per
// live entity, in live-set order, annotated with whether the lock registry
// currently holds a marker for it.
//
// Reconcile is pure. Refresher.Cycle gathers its inputs: the lock cache as
// last refreshed (it never forces a registry refresh) and a fresh live-set
// snapshot. It also asks the ImageRequester for each row's picture without
// waiting on the network. Board holds the most recently published View for
// the HTTP API and the WebSocket hub.
package status
