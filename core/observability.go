package core

// RunnerStats represents runtime observability state for an event loop.
type RunnerStats struct {
	Name        string
	Type        string
	Pending     int
	ActiveIdles int
	Delayed     int
	Refs        int64
	Iterations  uint64
	Rejected    int64
	Running     bool
	Closed      bool
}
