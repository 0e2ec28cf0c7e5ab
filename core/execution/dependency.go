package execution

import "fmt"

// ResultTable is the opaque typed-table payload produced by the wire
// deserialization layer. The coordination core stores it without
// interpreting it.
type ResultTable interface{}

// DependencyInfo tracks one (statement, dependency id) pair for the current
// round: which partitions must respond, which have, the result rows
// accumulated so far, and the fragment tasks blocked until the dependency is
// fully satisfied.
//
// Responses (acknowledgements) and results (row payloads) arrive on separate
// channels and are tracked per partition independently. A partition counts
// toward satisfaction the first time it shows up on either stream; the other
// stream's arrival for the same partition is recorded but count-neutral.
//
// Instances are pooled. Acquire them through a DependencyPool and never keep
// a reference after the pool takes one back. Mutators are not self-locking:
// the owning ExecutionState serializes access.
type DependencyInfo struct {
	stmtIndex    int
	dependencyID int
	internal     bool

	expected  []int        // partition ids, in registration order
	responded map[int]bool // partitions whose response has been seen
	resulted  map[int]bool // partitions whose result payload has been seen
	arrived   int          // distinct partitions seen on either stream

	results      []ResultTable
	blockedTasks []*FragmentTask
}

func newDependencyInfo() *DependencyInfo {
	return &DependencyInfo{
		responded: make(map[int]bool),
		resulted:  make(map[int]bool),
	}
}

// init binds a cleared instance to its identity for the round.
func (d *DependencyInfo) init(stmtIndex, dependencyID int, internal bool) {
	d.stmtIndex = stmtIndex
	d.dependencyID = dependencyID
	d.internal = internal
}

// addExpectedPartition registers one partition this dependency needs an
// arrival from. Every registration is one latch unit for the round.
func (d *DependencyInfo) addExpectedPartition(partitionID int) {
	d.expected = append(d.expected, partitionID)
}

func (d *DependencyInfo) expects(partitionID int) bool {
	for _, p := range d.expected {
		if p == partitionID {
			return true
		}
	}
	return false
}

// StmtIndex returns the batch statement this dependency belongs to.
func (d *DependencyInfo) StmtIndex() int { return d.stmtIndex }

// DependencyID returns the dependency id within the statement.
func (d *DependencyInfo) DependencyID() int { return d.dependencyID }

// IsInternal reports whether the results are consumed inside the engine and
// never surfaced to the executor.
func (d *DependencyInfo) IsInternal() bool { return d.internal }

// ExpectedCount returns how many partitions must arrive.
func (d *DependencyInfo) ExpectedCount() int { return len(d.expected) }

// ReceivedCount returns how many distinct partitions have arrived so far.
func (d *DependencyInfo) ReceivedCount() int { return d.arrived }

// Satisfied reports whether every expected partition has arrived.
func (d *DependencyInfo) Satisfied() bool {
	return len(d.expected) > 0 && d.arrived == len(d.expected)
}

func (d *DependencyInfo) hasResponse(partitionID int) bool { return d.responded[partitionID] }
func (d *DependencyInfo) hasResult(partitionID int) bool   { return d.resulted[partitionID] }

// recordResponse notes an acknowledgement from a partition. countsDown is
// true when this is the partition's first arrival on either stream;
// satisfied is true only on the transition that completes the dependency, so
// it fires exactly once. A retransmitted response is a count-neutral no-op.
func (d *DependencyInfo) recordResponse(partitionID int) (countsDown, satisfied bool, err error) {
	if !d.expects(partitionID) {
		return false, false, fmt.Errorf("dependency %d (statement %d) expects no arrival from partition %d",
			d.dependencyID, d.stmtIndex, partitionID)
	}
	if d.responded[partitionID] {
		return false, false, nil
	}
	first := !d.resulted[partitionID]
	d.responded[partitionID] = true
	if !first {
		return false, false, nil
	}
	d.arrived++
	return true, d.arrived == len(d.expected), nil
}

// recordResult stores a partition's result rows, with the same satisfaction
// semantics as recordResponse. A duplicate result from the same partition is
// dropped without re-appending rows.
func (d *DependencyInfo) recordResult(partitionID int, rows ResultTable) (countsDown, satisfied bool, err error) {
	if !d.expects(partitionID) {
		return false, false, fmt.Errorf("dependency %d (statement %d) expects no arrival from partition %d",
			d.dependencyID, d.stmtIndex, partitionID)
	}
	if d.resulted[partitionID] {
		return false, false, nil
	}
	first := !d.responded[partitionID]
	d.resulted[partitionID] = true
	if rows != nil {
		d.results = append(d.results, rows)
	}
	if !first {
		return false, false, nil
	}
	d.arrived++
	return true, d.arrived == len(d.expected), nil
}

// Results returns the result rows accumulated so far, in arrival order.
func (d *DependencyInfo) Results() []ResultTable {
	return d.results
}

// addBlockedTask queues a fragment task that cannot run until this
// dependency is satisfied. Callers must not queue against an already
// satisfied dependency; release the task immediately instead.
func (d *DependencyInfo) addBlockedTask(task *FragmentTask) {
	d.blockedTasks = append(d.blockedTasks, task)
}

// takeBlockedTasks hands back the blocked task list and empties it. Called
// once, on the satisfaction edge.
func (d *DependencyInfo) takeBlockedTasks() []*FragmentTask {
	tasks := d.blockedTasks
	d.blockedTasks = nil
	return tasks
}

// reset clears all transient state so the instance can go back to the pool.
func (d *DependencyInfo) reset() {
	d.stmtIndex = 0
	d.dependencyID = 0
	d.internal = false
	d.expected = d.expected[:0]
	for p := range d.responded {
		delete(d.responded, p)
	}
	for p := range d.resulted {
		delete(d.resulted, p)
	}
	d.arrived = 0
	d.results = nil
	d.blockedTasks = nil
}
