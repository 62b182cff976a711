// Package orchestrator starts the workers in their fixed order and waits for
// them.
//
// Run prepares the directory layout, sweeps every lock marker left by an
// earlier run, starts the display and the liveness checker, waits the
// startup stagger, starts the resolver and then runs the recorder on the
// calling goroutine. When the recorder returns it joins the workers and,
// last, the display.
//
// The stagger is a fixed delay meant to give the checker time to write the
// first live set before the resolver reads it. Nothing checks that it did;
// on a slow first cycle the resolver simply sees an empty set and catches up
// on its next interval.
package orchestrator
