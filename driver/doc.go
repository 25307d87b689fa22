// Package driver provides the two recurring triggers that move a
// conveyor.Simulator forward: a frame tick and a rate resample.
//
// Realtime follows the wall clock and is what an interactive run uses.
// Virtual runs on a discrete-event engine, so a run of any length finishes as
// fast as the host can compute it and is fully reproducible under a seed.
package driver
