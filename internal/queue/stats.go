package queue

import "sync/atomic"

// Stats is a point-in-time snapshot, spec.md §4.5: list lengths by
// direct length query, cumulative counters by atomic read. It is not
// transactional across the nine values.
type Stats struct {
	Ready            int64
	InFlight         int64
	Dead             int64
	Enqueued         uint64
	Dequeued         uint64
	Completed        uint64
	Abandoned        uint64
	WorkerErrors     uint64
	WorkItemTimeouts uint64
}

// counters holds the process-local cumulative counters, mutated only by
// atomic increment per spec.md §5 ("no in-process mutex is required on
// the hot path").
type counters struct {
	enqueued         atomic.Uint64
	dequeued         atomic.Uint64
	completed        atomic.Uint64
	abandoned        atomic.Uint64
	workerErrors     atomic.Uint64
	workItemTimeouts atomic.Uint64
}

func (c *counters) reset() {
	c.enqueued.Store(0)
	c.dequeued.Store(0)
	c.completed.Store(0)
	c.abandoned.Store(0)
	c.workerErrors.Store(0)
	c.workItemTimeouts.Store(0)
}
