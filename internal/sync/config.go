package sync

import "runtime"

// MapperConfig controls how a mapping pass walks the trees.
type MapperConfig struct {
	// Recursive descends into the union of local and cloud subfolders.
	Recursive bool
	// Workers bounds concurrent folder listings and concurrent content comparisons
	// within one folder. Zero means runtime.NumCPU().
	Workers int
	// FailFast aborts the whole pass on the first content comparison failure instead
	// of reporting it in MapFolderResult.Failed.
	FailFast bool
}

func (c *MapperConfig) workerCount() int {
	if c == nil || c.Workers <= 0 {
		return max(runtime.NumCPU(), 1)
	}
	return c.Workers
}
