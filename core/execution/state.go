// Package execution holds the per-transaction coordination state of the
// distributed query engine: which sub-query fragments were dispatched to
// which partitions, which responses and results have come back, and when a
// batch round is fully satisfied so execution can advance.
package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/takara-db/takaradb/core/transaction"
	internaltelemetry "github.com/takara-db/takaradb/internal/telemetry"
)

// DefaultMaxBatchSize is the default cap on SQL statements per batch round.
const DefaultMaxBatchSize = 128

// roundState is the round lifecycle of an ExecutionState:
// IDLE -> ROUND_ACTIVE -> ROUND_COMPLETE -> IDLE.
type roundState int

const (
	roundIdle roundState = iota
	roundActive
	roundComplete
)

func (s roundState) String() string {
	switch s {
	case roundIdle:
		return "IDLE"
	case roundActive:
		return "ROUND_ACTIVE"
	case roundComplete:
		return "ROUND_COMPLETE"
	default:
		return fmt.Sprintf("roundState(%d)", int(s))
	}
}

// DependencySpec describes one dependency a statement needs for the round:
// its id, the partitions that must produce it, and whether its results are
// consumed internally (never surfaced to the executor).
type DependencySpec struct {
	ID         int
	Partitions []int
	Internal   bool
}

// StatementSpec lists the dependencies one SQL statement in the batch needs.
// Exactly one of them must be the statement's output (non-internal)
// dependency.
type StatementSpec struct {
	Dependencies []DependencySpec
}

// ExecutionState is the per-transaction round orchestrator. One control
// thread drives StartRound/AwaitRound/ClearRound sequentially; responses and
// results arrive concurrently from per-partition channel threads through
// ReceiveResponse/ReceiveResult. All shared state is guarded by a single
// mutex; the only blocking points are AwaitRound and NextUnblockedTasks.
type ExecutionState struct {
	txn     *transaction.Transaction
	pool    *DependencyPool
	logger  *zap.Logger
	metrics *internaltelemetry.CoordinationMetrics

	maxBatchSize int

	mu    sync.Mutex
	state roundState
	keys  *depKeyRegistry

	// dependencies maps statement index -> dependency id -> DependencyInfo
	// for the current round. Fixed capacity, sized to maxBatchSize.
	dependencies []map[int]*DependencyInfo

	// allDependencies tracks every pooled instance this transaction still
	// owns, so Clear can hand them all back.
	allDependencies map[*DependencyInfo]struct{}

	// outputOrder records, per statement, the dependency id its final result
	// comes from.
	outputOrder []int

	batchSize     int
	dependencyCtr int // total expected arrivals this round
	receivedCtr   int // arrivals counted so far

	latch        *countdownLatch
	roundStarted time.Time

	// Per-key-index FIFO of statement indexes. When the same (partition,
	// dependency) key is expected by more than one statement, these route
	// each arrival on a stream to the statement it belongs to.
	responseStmtCtr map[int][]int
	resultStmtCtr   map[int][]int

	// Early arrivals, keyed by the packed composite key: the registry index
	// does not exist yet when these show up.
	queuedResponses map[depKey]int
	queuedResults   map[depKey][]ResultTable

	blockedTasks map[*FragmentTask]struct{}

	unblocked       []FragmentTaskGroup
	unblockedNotify chan struct{}

	// internalDeps holds the dependency ids never surfaced outward.
	internalDeps map[int]struct{}

	// touchedPartitions counts how often each partition was involved, for
	// statistics only.
	touchedPartitions map[int]int64
}

// NewExecutionState creates the coordination state for one transaction.
// The pool is the process-wide DependencyInfo pool; metrics may be nil for
// an unobserved instance. maxBatchSize bounds StartRound's batch size; a
// non-positive value selects DefaultMaxBatchSize.
func NewExecutionState(txn *transaction.Transaction, pool *DependencyPool, maxBatchSize int,
	logger *zap.Logger, metrics *internaltelemetry.CoordinationMetrics) (*ExecutionState, error) {
	if txn == nil {
		return nil, fmt.Errorf("execution state requires an owning transaction")
	}
	if pool == nil {
		return nil, fmt.Errorf("execution state requires a dependency pool")
	}
	if maxBatchSize <= 0 {
		maxBatchSize = DefaultMaxBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	deps := make([]map[int]*DependencyInfo, maxBatchSize)
	for i := range deps {
		deps[i] = make(map[int]*DependencyInfo)
	}

	return &ExecutionState{
		txn:               txn,
		pool:              pool,
		logger:            logger.With(zap.String("txn_id", txn.ID.String())),
		metrics:           metrics,
		maxBatchSize:      maxBatchSize,
		keys:              newDepKeyRegistry(),
		dependencies:      deps,
		allDependencies:   make(map[*DependencyInfo]struct{}),
		responseStmtCtr:   make(map[int][]int),
		resultStmtCtr:     make(map[int][]int),
		queuedResponses:   make(map[depKey]int),
		queuedResults:     make(map[depKey][]ResultTable),
		blockedTasks:      make(map[*FragmentTask]struct{}),
		unblockedNotify:   make(chan struct{}, 1),
		internalDeps:      make(map[int]struct{}),
		touchedPartitions: make(map[int]int64),
	}, nil
}

// Transaction returns the transaction this state belongs to.
func (s *ExecutionState) Transaction() *transaction.Transaction {
	return s.txn
}

// ----------------------------------------------------------------------------
// ROUND LIFECYCLE
// ----------------------------------------------------------------------------

// StartRound opens a round for the given batch. For every (statement,
// dependency, partition) expectation it registers the composite key,
// acquires a DependencyInfo, and adds one latch unit. Arrivals buffered
// before the round started are folded into the counts before the latch
// becomes observable, so the latch neither waits forever nor undercounts.
//
// StartRound is not reentrant: starting a round while one is active, or
// before the previous one was cleared, is a usage error. Any StartRound
// error is a contract violation that leaves the state partially initialized;
// the caller must abort the transaction and call Clear.
func (s *ExecutionState) StartRound(specs []StatementSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case roundActive:
		return fmt.Errorf("cannot start round: previous round still active")
	case roundComplete:
		return fmt.Errorf("cannot start round: previous round not cleared")
	}
	if len(specs) == 0 {
		return fmt.Errorf("cannot start round with an empty batch")
	}
	if len(specs) > s.maxBatchSize {
		return fmt.Errorf("batch size %d exceeds maximum %d", len(specs), s.maxBatchSize)
	}

	s.batchSize = len(specs)
	for stmtIndex, stmt := range specs {
		outputs := 0
		for _, dep := range stmt.Dependencies {
			if len(dep.Partitions) == 0 {
				return fmt.Errorf("statement %d dependency %d expects no partitions", stmtIndex, dep.ID)
			}
			if dep.Internal {
				s.internalDeps[dep.ID] = struct{}{}
			} else {
				outputs++
				s.outputOrder = append(s.outputOrder, dep.ID)
			}
			info := s.getOrCreateDependencyLocked(stmtIndex, dep.ID, dep.Internal)
			for _, p := range dep.Partitions {
				keyIdx, err := s.keys.encode(p, dep.ID)
				if err != nil {
					return fmt.Errorf("statement %d: %w", stmtIndex, err)
				}
				if info.expects(p) {
					return fmt.Errorf("statement %d dependency %d lists partition %d twice", stmtIndex, dep.ID, p)
				}
				info.addExpectedPartition(p)
				s.dependencyCtr++
				s.touchedPartitions[p]++
				s.responseStmtCtr[keyIdx] = append(s.responseStmtCtr[keyIdx], stmtIndex)
				s.resultStmtCtr[keyIdx] = append(s.resultStmtCtr[keyIdx], stmtIndex)

				if err := s.foldEarlyArrivalsLocked(keyIdx, p, dep.ID); err != nil {
					return err
				}
			}
		}
		if outputs != 1 {
			return fmt.Errorf("statement %d must have exactly one output dependency, got %d", stmtIndex, outputs)
		}
	}

	// The latch only waits for what the early buffers did not already cover.
	s.latch = newCountdownLatch(s.dependencyCtr - s.receivedCtr)
	s.roundStarted = time.Now()
	s.state = roundActive

	if s.metrics != nil {
		ctx := context.Background()
		s.metrics.RoundsStartedCounter.Add(ctx, 1)
		s.metrics.ActiveRoundsUpDownCounter.Add(ctx, 1)
		s.metrics.PartitionsTouchedCounter.Add(ctx, int64(s.dependencyCtr))
	}
	s.logger.Debug("started execution round",
		zap.Int("batch_size", s.batchSize),
		zap.Int("dependency_ctr", s.dependencyCtr),
		zap.Int("pre_received", s.receivedCtr),
	)
	return nil
}

// foldEarlyArrivalsLocked treats arrivals buffered before the round started
// as already received for one freshly registered expectation.
func (s *ExecutionState) foldEarlyArrivalsLocked(keyIdx, partitionID, dependencyID int) error {
	key, err := makeDepKey(partitionID, dependencyID)
	if err != nil {
		return err
	}
	if n := s.queuedResponses[key]; n > 0 {
		if n == 1 {
			delete(s.queuedResponses, key)
		} else {
			s.queuedResponses[key] = n - 1
		}
		if err := s.applyResponseLocked(keyIdx, partitionID, dependencyID); err != nil {
			return err
		}
	}
	if buffered := s.queuedResults[key]; len(buffered) > 0 {
		rows := buffered[0]
		if len(buffered) == 1 {
			delete(s.queuedResults, key)
		} else {
			s.queuedResults[key] = buffered[1:]
		}
		if err := s.applyResultLocked(keyIdx, partitionID, dependencyID, rows); err != nil {
			return err
		}
	}
	return nil
}

// AwaitRound blocks the calling thread until every expected arrival for the
// active round has been counted, then marks the round complete. It is the
// only suspension point exposed to the transaction's control thread;
// cancellation and timeouts are layered by the caller through ctx, and a
// cancelled wait leaves the round active (the caller is expected to abort
// the transaction and call Clear).
func (s *ExecutionState) AwaitRound(ctx context.Context) error {
	s.mu.Lock()
	if s.state != roundActive {
		s.mu.Unlock()
		return fmt.Errorf("cannot await round in state %s", s.state)
	}
	latch := s.latch
	started := s.roundStarted
	s.mu.Unlock()

	if err := latch.wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = roundComplete
	s.mu.Unlock()

	if s.metrics != nil {
		mctx := context.Background()
		s.metrics.ActiveRoundsUpDownCounter.Add(mctx, -1)
		s.metrics.RoundLatencyHistogram.Record(mctx, time.Since(started).Milliseconds())
	}
	s.logger.Debug("execution round complete", zap.Duration("elapsed", time.Since(started)))
	return nil
}

// ClearRound returns the round's DependencyInfo records to the pool and
// resets all round-scoped state, transitioning back to IDLE. Clearing while
// the round is still active is a usage error; await completion first.
func (s *ExecutionState) ClearRound() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == roundActive {
		return fmt.Errorf("cannot clear round: round still active")
	}
	s.clearRoundLocked()
	return nil
}

func (s *ExecutionState) clearRoundLocked() {
	if s.state == roundActive && s.metrics != nil {
		// Abort path: the round never completed.
		s.metrics.ActiveRoundsUpDownCounter.Add(context.Background(), -1)
	}

	s.keys.reset()
	s.outputOrder = s.outputOrder[:0]
	for k := range s.queuedResponses {
		delete(s.queuedResponses, k)
	}
	for k := range s.queuedResults {
		delete(s.queuedResults, k)
	}
	for k := range s.responseStmtCtr {
		delete(s.responseStmtCtr, k)
	}
	for k := range s.resultStmtCtr {
		delete(s.resultStmtCtr, k)
	}
	for t := range s.blockedTasks {
		delete(s.blockedTasks, t)
	}
	for id := range s.internalDeps {
		delete(s.internalDeps, id)
	}
	s.unblocked = nil

	for i := 0; i < s.batchSize; i++ {
		for id, info := range s.dependencies[i] {
			delete(s.allDependencies, info)
			s.pool.Release(info)
			delete(s.dependencies[i], id)
		}
	}

	s.batchSize = 0
	s.dependencyCtr = 0
	s.receivedCtr = 0
	s.latch = nil
	s.state = roundIdle
}

// Clear fully resets the transaction-scope state: everything ClearRound
// resets, plus returning every DependencyInfo still tracked to the pool and
// dropping the latch reference. Call it when the owning transaction finishes
// or its state is recycled. Unlike ClearRound it is legal in any state.
func (s *ExecutionState) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearRoundLocked()
	for info := range s.allDependencies {
		delete(s.allDependencies, info)
		s.pool.Release(info)
	}
	for p := range s.touchedPartitions {
		delete(s.touchedPartitions, p)
	}
}

func (s *ExecutionState) getOrCreateDependencyLocked(stmtIndex, dependencyID int, internal bool) *DependencyInfo {
	if info, ok := s.dependencies[stmtIndex][dependencyID]; ok {
		return info
	}
	info := s.pool.Acquire()
	info.init(stmtIndex, dependencyID, internal)
	s.dependencies[stmtIndex][dependencyID] = info
	s.allDependencies[info] = struct{}{}
	return info
}

// ----------------------------------------------------------------------------
// ARRIVALS
// ----------------------------------------------------------------------------

// ReceiveResponse records a partition's acknowledgement for a dependency.
// Safe to call concurrently from multiple partition channel threads. An
// arrival while the state is idle is buffered for the next StartRound; one
// racing past the round's completion for a key the round registered is a
// retransmit and is dropped; an arrival for a key the round never registered
// is a protocol/ordering bug and is returned as an error.
func (s *ExecutionState) ReceiveResponse(partitionID, dependencyID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ArrivalsCounter.Add(context.Background(), 1)
	}

	if s.state == roundIdle {
		return s.bufferResponseLocked(partitionID, dependencyID)
	}
	keyIdx, ok := s.keys.lookup(partitionID, dependencyID)
	if !ok {
		err := fmt.Errorf("response from partition %d for unregistered dependency %d", partitionID, dependencyID)
		s.logger.Error("dropping unroutable response",
			zap.Int("partition_id", partitionID),
			zap.Int("dependency_id", dependencyID),
		)
		return err
	}
	if s.state == roundComplete {
		s.logger.Debug("ignoring response after round completion",
			zap.Int("partition_id", partitionID),
			zap.Int("dependency_id", dependencyID),
		)
		return nil
	}
	return s.applyResponseLocked(keyIdx, partitionID, dependencyID)
}

// ReceiveResult records a partition's result rows for a dependency, with the
// same concurrency, buffering and error rules as ReceiveResponse. The rows
// are stored without interpretation.
func (s *ExecutionState) ReceiveResult(partitionID, dependencyID int, rows ResultTable) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ArrivalsCounter.Add(context.Background(), 1)
	}

	if s.state == roundIdle {
		return s.bufferResultLocked(partitionID, dependencyID, rows)
	}
	keyIdx, ok := s.keys.lookup(partitionID, dependencyID)
	if !ok {
		err := fmt.Errorf("result from partition %d for unregistered dependency %d", partitionID, dependencyID)
		s.logger.Error("dropping unroutable result",
			zap.Int("partition_id", partitionID),
			zap.Int("dependency_id", dependencyID),
		)
		return err
	}
	if s.state == roundComplete {
		s.logger.Debug("ignoring result after round completion",
			zap.Int("partition_id", partitionID),
			zap.Int("dependency_id", dependencyID),
		)
		return nil
	}
	return s.applyResultLocked(keyIdx, partitionID, dependencyID, rows)
}

func (s *ExecutionState) bufferResponseLocked(partitionID, dependencyID int) error {
	key, err := makeDepKey(partitionID, dependencyID)
	if err != nil {
		return err
	}
	s.queuedResponses[key]++
	if s.metrics != nil {
		s.metrics.EarlyBufferedCounter.Add(context.Background(), 1)
	}
	s.logger.Debug("buffered early response",
		zap.Int("partition_id", partitionID),
		zap.Int("dependency_id", dependencyID),
	)
	return nil
}

func (s *ExecutionState) bufferResultLocked(partitionID, dependencyID int, rows ResultTable) error {
	key, err := makeDepKey(partitionID, dependencyID)
	if err != nil {
		return err
	}
	s.queuedResults[key] = append(s.queuedResults[key], rows)
	if s.metrics != nil {
		s.metrics.EarlyBufferedCounter.Add(context.Background(), 1)
	}
	s.logger.Debug("buffered early result",
		zap.Int("partition_id", partitionID),
		zap.Int("dependency_id", dependencyID),
	)
	return nil
}

// applyResponseLocked routes one response to the first statement in the
// key's FIFO that has not yet seen a response from this partition. If every
// expectation already has one, the arrival is a retransmit and is dropped.
func (s *ExecutionState) applyResponseLocked(keyIdx, partitionID, dependencyID int) error {
	queue := s.responseStmtCtr[keyIdx]
	pos := -1
	var info *DependencyInfo
	for i, stmtIndex := range queue {
		candidate := s.dependencies[stmtIndex][dependencyID]
		if candidate != nil && !candidate.hasResponse(partitionID) {
			pos, info = i, candidate
			break
		}
	}
	if pos < 0 {
		s.logger.Debug("ignoring duplicate response",
			zap.Int("partition_id", partitionID),
			zap.Int("dependency_id", dependencyID),
		)
		return nil
	}
	s.responseStmtCtr[keyIdx] = append(queue[:pos], queue[pos+1:]...)

	countsDown, satisfied, err := info.recordResponse(partitionID)
	if err != nil {
		return err
	}
	s.noteArrivalLocked(info, countsDown, satisfied)
	return nil
}

// applyResultLocked is the result-stream counterpart of applyResponseLocked.
func (s *ExecutionState) applyResultLocked(keyIdx, partitionID, dependencyID int, rows ResultTable) error {
	queue := s.resultStmtCtr[keyIdx]
	pos := -1
	var info *DependencyInfo
	for i, stmtIndex := range queue {
		candidate := s.dependencies[stmtIndex][dependencyID]
		if candidate != nil && !candidate.hasResult(partitionID) {
			pos, info = i, candidate
			break
		}
	}
	if pos < 0 {
		s.logger.Debug("ignoring duplicate result",
			zap.Int("partition_id", partitionID),
			zap.Int("dependency_id", dependencyID),
		)
		return nil
	}
	s.resultStmtCtr[keyIdx] = append(queue[:pos], queue[pos+1:]...)

	countsDown, satisfied, err := info.recordResult(partitionID, rows)
	if err != nil {
		return err
	}
	s.noteArrivalLocked(info, countsDown, satisfied)
	return nil
}

// noteArrivalLocked applies the counting and unblocking consequences of one
// recorded arrival. During StartRound's early-arrival folding the latch does
// not exist yet; the fold is reflected in receivedCtr and the latch is sized
// accordingly afterwards.
func (s *ExecutionState) noteArrivalLocked(info *DependencyInfo, countsDown, satisfied bool) {
	if countsDown {
		s.receivedCtr++
		if s.latch != nil {
			s.latch.countDown()
		}
	}
	if !satisfied {
		return
	}
	if s.metrics != nil {
		s.metrics.DependenciesSatisfiedCounter.Add(context.Background(), 1)
	}
	s.logger.Debug("dependency satisfied",
		zap.Int("stmt_index", info.StmtIndex()),
		zap.Int("dependency_id", info.DependencyID()),
	)
	s.releaseBlockedTasksLocked(info)
}

// ----------------------------------------------------------------------------
// FRAGMENT TASK QUEUES
// ----------------------------------------------------------------------------

// BlockTask registers a fragment task that must not run until all of its
// input dependencies are satisfied. If they already are, the task is
// released immediately instead of being queued.
func (s *ExecutionState) BlockTask(task *FragmentTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != roundActive {
		return fmt.Errorf("cannot block task in state %s", s.state)
	}
	if task.StmtIndex < 0 || task.StmtIndex >= s.batchSize {
		return fmt.Errorf("task %d references statement %d outside batch of %d", task.TaskID, task.StmtIndex, s.batchSize)
	}

	task.pending = 0
	for _, depID := range task.InputDependencyIDs {
		info := s.dependencies[task.StmtIndex][depID]
		if info == nil {
			return fmt.Errorf("task %d blocks on unregistered dependency %d for statement %d",
				task.TaskID, depID, task.StmtIndex)
		}
		if info.Satisfied() {
			continue
		}
		info.addBlockedTask(task)
		task.pending++
	}
	if task.pending == 0 {
		s.enqueueUnblockedLocked(FragmentTaskGroup{PartitionID: task.PartitionID, Tasks: []*FragmentTask{task}})
		return nil
	}
	s.blockedTasks[task] = struct{}{}
	return nil
}

// releaseBlockedTasksLocked fires exactly once per dependency, on its
// satisfaction edge. Tasks blocked on other dependencies as well stay
// blocked until their last blocker satisfies.
func (s *ExecutionState) releaseBlockedTasksLocked(info *DependencyInfo) {
	var ready []*FragmentTask
	for _, task := range info.takeBlockedTasks() {
		task.pending--
		if task.pending == 0 {
			delete(s.blockedTasks, task)
			ready = append(ready, task)
		}
	}
	for _, group := range groupByPartition(ready) {
		s.enqueueUnblockedLocked(group)
	}
}

func (s *ExecutionState) enqueueUnblockedLocked(group FragmentTaskGroup) {
	s.unblocked = append(s.unblocked, group)
	select {
	case s.unblockedNotify <- struct{}{}:
	default:
	}
}

// NextUnblockedTasks blocks until a group of now-runnable fragment tasks is
// available and returns it. The executor thread drains this queue and
// submits each group to its destination partition.
func (s *ExecutionState) NextUnblockedTasks(ctx context.Context) (FragmentTaskGroup, error) {
	for {
		s.mu.Lock()
		if len(s.unblocked) > 0 {
			group := s.unblocked[0]
			s.unblocked = s.unblocked[1:]
			s.mu.Unlock()
			return group, nil
		}
		s.mu.Unlock()

		select {
		case <-s.unblockedNotify:
		case <-ctx.Done():
			return FragmentTaskGroup{}, ctx.Err()
		}
	}
}

// DrainUnblockedTasks returns every released group without blocking.
func (s *ExecutionState) DrainUnblockedTasks() []FragmentTaskGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	groups := s.unblocked
	s.unblocked = nil
	return groups
}

// ----------------------------------------------------------------------------
// ACCESSORS
// ----------------------------------------------------------------------------

// BatchSize returns the number of statements in the current round's batch.
func (s *ExecutionState) BatchSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batchSize
}

// DependencyCount returns the total number of arrivals the current round
// expects.
func (s *ExecutionState) DependencyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dependencyCtr
}

// ReceivedCount returns how many expected arrivals have been counted so far.
func (s *ExecutionState) ReceivedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivedCtr
}

// OutputOrder returns, per statement, the dependency id the statement's
// final result comes from.
func (s *ExecutionState) OutputOrder() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.outputOrder))
	copy(out, s.outputOrder)
	return out
}

// IsInternalDependency reports whether the dependency's results are consumed
// inside the engine and never surfaced.
func (s *ExecutionState) IsInternalDependency(dependencyID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.internalDeps[dependencyID]
	return ok
}

// StatementResults returns the accumulated result rows for a statement's
// output dependency. Only meaningful once the round is complete.
func (s *ExecutionState) StatementResults(stmtIndex int) ([]ResultTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != roundComplete {
		return nil, fmt.Errorf("statement results unavailable in state %s", s.state)
	}
	if stmtIndex < 0 || stmtIndex >= len(s.outputOrder) {
		return nil, fmt.Errorf("no statement %d in batch of %d", stmtIndex, s.batchSize)
	}
	info := s.dependencies[stmtIndex][s.outputOrder[stmtIndex]]
	if info == nil {
		return nil, fmt.Errorf("output dependency %d missing for statement %d", s.outputOrder[stmtIndex], stmtIndex)
	}
	return info.Results(), nil
}

// TouchedPartitions returns a copy of the per-partition touch counts
// accumulated since the last Clear. Statistics only.
func (s *ExecutionState) TouchedPartitions() map[int]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int]int64, len(s.touchedPartitions))
	for p, n := range s.touchedPartitions {
		out[p] = n
	}
	return out
}
