package execution

// FragmentTask is the handle for one unit of query-plan work destined for a
// specific partition. The coordination core never executes tasks; it only
// moves them from blocked to unblocked as their input dependencies are
// satisfied. The executor owns everything else about the task.
type FragmentTask struct {
	// TaskID identifies the task within the round; assigned by the planner.
	TaskID int
	// StmtIndex is the batch statement the task computes for.
	StmtIndex int
	// PartitionID is the destination partition the task runs on.
	PartitionID int
	// InputDependencyIDs lists the dependencies whose satisfaction the task
	// waits on before it may be submitted.
	InputDependencyIDs []int
	// OutputDependencyID names the dependency the task's output feeds.
	OutputDependencyID int

	// pending counts the input dependencies not yet satisfied. Owned by the
	// ExecutionState that the task was blocked against.
	pending int
}

// FragmentTaskGroup batches every task released toward one partition by a
// single satisfaction event, so the executor submits one message per
// destination instead of many tiny ones.
type FragmentTaskGroup struct {
	PartitionID int
	Tasks       []*FragmentTask
}

// groupByPartition splits the released tasks into one group per destination
// partition, preserving release order within each group.
func groupByPartition(tasks []*FragmentTask) []FragmentTaskGroup {
	if len(tasks) == 0 {
		return nil
	}
	var order []int
	byPartition := make(map[int][]*FragmentTask)
	for _, t := range tasks {
		if _, seen := byPartition[t.PartitionID]; !seen {
			order = append(order, t.PartitionID)
		}
		byPartition[t.PartitionID] = append(byPartition[t.PartitionID], t)
	}
	groups := make([]FragmentTaskGroup, 0, len(order))
	for _, p := range order {
		groups = append(groups, FragmentTaskGroup{PartitionID: p, Tasks: byPartition[p]})
	}
	return groups
}
