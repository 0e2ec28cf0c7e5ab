package execution

import "sync/atomic"

// DefaultPoolCapacity bounds how many idle DependencyInfo instances the pool
// retains. Releases past the bound fall through to the garbage collector.
const DefaultPoolCapacity = 4096

// DependencyPool amortizes DependencyInfo allocation across the lifetime of
// many transactions. It is shared process-wide and safe for concurrent
// Acquire/Release from different transactions' control threads.
//
// Construct one per process (or one per test for isolation) and pass it to
// every ExecutionState explicitly; there is no hidden singleton.
type DependencyPool struct {
	free chan *DependencyInfo

	allocated atomic.Int64
	reused    atomic.Int64
}

// NewDependencyPool creates a pool retaining at most capacity idle
// instances. A non-positive capacity selects DefaultPoolCapacity.
func NewDependencyPool(capacity int) *DependencyPool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &DependencyPool{free: make(chan *DependencyInfo, capacity)}
}

// Acquire returns a cleared DependencyInfo, recycling a released instance
// when one is available and allocating otherwise.
func (p *DependencyPool) Acquire() *DependencyInfo {
	select {
	case d := <-p.free:
		p.reused.Add(1)
		return d
	default:
		p.allocated.Add(1)
		return newDependencyInfo()
	}
}

// Release clears the instance and returns it to the pool. The caller must
// drop its reference: the instance may be handed to another transaction
// immediately.
func (p *DependencyPool) Release(d *DependencyInfo) {
	if d == nil {
		return
	}
	d.reset()
	select {
	case p.free <- d:
	default:
		// Pool is at capacity; drop the instance.
	}
}

// Idle returns the number of instances currently parked in the pool.
func (p *DependencyPool) Idle() int {
	return len(p.free)
}

// Stats reports how many instances the pool has allocated fresh and how many
// acquisitions were served by recycling.
func (p *DependencyPool) Stats() (allocated, reused int64) {
	return p.allocated.Load(), p.reused.Load()
}
