// Package poller implements the reconciliation sweep.
//
// The sweep:
//   - Runs every Interval and once on start
//   - Catches up every live channel window (loaded, not scrolled away from the tail)
//   - Bounds concurrent REST fetches with errgroup.SetLimit
//   - Applies a per-channel timeout so one slow pod cannot stall the cycle
package poller
