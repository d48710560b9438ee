// Package detect decides whether a monetization pass is needed by comparing
// current per-collection row counts against the last persisted snapshot.
package detect

// Result is the outcome of one change-detection pass.
type Result struct {
	// HasNewRows is true iff any collection's count strictly increased.
	HasNewRows bool
	// Grown maps each grown collection to its row delta.
	Grown map[string]int
	// Snapshot holds the current counts and should be persisted by the
	// caller regardless of HasNewRows, so drift never compounds across
	// cycles.
	Snapshot map[string]int
}

// Compare compares current per-collection row counts with the previous
// snapshot. A collection absent from the previous snapshot counts as
// previously empty. Equal or decreased counts (upstream reset) are not new
// rows and not an error. Pure function: persistence of the returned snapshot
// is the caller's responsibility.
func Compare(current, previous map[string]int) Result {
	result := Result{
		Grown:    make(map[string]int),
		Snapshot: make(map[string]int, len(current)),
	}

	for collection, count := range current {
		result.Snapshot[collection] = count

		prev := previous[collection]
		if count > prev {
			result.Grown[collection] = count - prev
			result.HasNewRows = true
		}
	}

	return result
}

// TotalNewRows sums the per-collection deltas.
func (r Result) TotalNewRows() int {
	total := 0
	for _, delta := range r.Grown {
		total += delta
	}
	return total
}
