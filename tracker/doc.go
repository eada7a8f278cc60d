// Package tracker folds the messages of a bus into a SystemState.
//
// Fold is a pure function over a snapshot and one message. Track keeps a
// live snapshot for a bus and lets callers wait for a condition on it.
// UnitRestarted detects a completed stop-then-start cycle of one unit.
//
// Any number of trackers may attach to a bus at any time: on attach a
// tracker asks every unit to report its state and dependencies.
package tracker
