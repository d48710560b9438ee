// Package checkpoint provides durable, per-collection progress markers for
// the link processor, plus the row-count snapshot the change detector
// compares against between cycles.
//
// Each collection gets its own <name>.checkpoint.json record holding the
// offset up to which link wrapping has completed. The offset is an
// optimization to avoid rescanning from the start, not the source of truth:
// the authoritative "already done" signal is the row's wrapped-link field in
// the row store, which the processor re-checks defensively.
//
// All writes go through a temp-file-and-rename sequence so a crash mid-write
// never leaves a torn record behind. An unreadable checkpoint degrades to
// offset 0 rather than failing the cycle.
package checkpoint
