package reconcile

// Counts summarizes one fact type's reconciliation for the run report.
type Counts struct {
	// FromCache is the number of completed epochs already stored.
	FromCache int

	// Fetched is the number of epochs filled from an upstream source this
	// run (primary or secondary).
	Fetched int

	// NegativeCached is the number of epochs written as zero-valued rows
	// after the secondary source confirmed they hold no data.
	NegativeCached int

	// StillMissing is the number of epochs neither source could resolve;
	// they stay absent from the store and retry on the next run.
	StillMissing int

	// Estimated is the number of epochs filled with computed estimates in
	// the returned results only. Estimates are never persisted.
	Estimated int
}
