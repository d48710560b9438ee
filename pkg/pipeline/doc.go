// Package pipeline contains the change-detection and resumable-batch core:
// the batch link processor and the cycle scheduler that drives it.
//
// A cycle is fetch → detect → (wrap | skip) → snapshot-persist → sleep. The
// processor walks each collection serially, wrapping rows that lack a
// monetized link in bounded batches and checkpointing after every batch, so
// an interrupted run resumes without redoing completed work. A row's
// wrapped-link field is the authoritative "done" signal; checkpoint offsets
// only avoid rescanning from the start.
//
// Failure containment follows three rules: a row's wrapping failure never
// fails its batch, a batch's persistence failure never crashes the cycle
// (the checkpoint simply does not advance), and a cycle's failure never
// stops the scheduler loop.
package pipeline
