// Package tracker records the audit trail of a simulation run.
//
// A Tracker holds per-timestep deep-copy snapshots of entity attributes and
// an append-only log of rule firings. Snapshots for a timestep are captured
// once and never rewritten; diffs between snapshots report attributes present
// on only one side with the Absent sentinel. The whole trail exports as the
// execution-log JSON contract, optionally zstd-compressed.
package tracker
