// takaradb_txnsim is a closed-loop simulator for the transaction
// coordination core. It stands in for the out-of-scope collaborators: a
// planner producing random batch specs, partition channels delivering
// responses and results (some deliberately ahead of the round start), and an
// executor draining unblocked fragment task groups into a worker pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/takara-db/takaradb/core/execution"
	"github.com/takara-db/takaradb/core/transaction"
	internaltelemetry "github.com/takara-db/takaradb/internal/telemetry"
	"github.com/takara-db/takaradb/pkg/logger"
	"github.com/takara-db/takaradb/pkg/telemetry"
)

var (
	numTxns        = flag.Int("txns", 100, "Number of transactions to simulate")
	roundsPerTxn   = flag.Int("rounds", 4, "Execution rounds per transaction")
	batchSize      = flag.Int("batch_size", 4, "Statements per batch round")
	numPartitions  = flag.Int("partitions", 8, "Number of simulated partitions")
	earlyFraction  = flag.Float64("early_fraction", 0.2, "Fraction of arrivals delivered before the round starts")
	arrivalRate    = flag.Float64("arrival_rate", 5000, "Simulated arrivals per second across all partitions")
	workers        = flag.Int("workers", 16, "Executor worker pool size")
	roundTimeout   = flag.Duration("round_timeout", 30*time.Second, "Per-round completion timeout")
	seed           = flag.Int64("seed", 0, "Random seed (0 picks one from the clock)")
	logLevel       = flag.String("log_level", "info", "Log level (debug, info, warn, error)")
	logFormat      = flag.String("log_format", "console", "Log format (json or console)")
	metricsEnabled = flag.Bool("metrics", false, "Enable telemetry and the /metrics endpoint")
	metricsPort    = flag.Int("metrics_port", 9464, "Port for the Prometheus /metrics endpoint")
)

// expectation is one (statement, dependency, partition) arrival the round
// waits for.
type expectation struct {
	stmtIndex    int
	dependencyID int
	partitionID  int
}

func main() {
	flag.Parse()

	zlogger, err := logger.New(logger.Config{Level: *logLevel, Format: *logFormat, OutputFile: "stdout"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zlogger.Sync()

	tel, telShutdown, err := telemetry.New(telemetry.Config{
		Enabled:        *metricsEnabled,
		ServiceName:    "takaradb-txnsim",
		PrometheusPort: *metricsPort,
	})
	if err != nil {
		zlogger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer telShutdown(context.Background())

	metrics, err := internaltelemetry.NewCoordinationMetrics(tel.Meter)
	if err != nil {
		zlogger.Fatal("failed to create coordination metrics", zap.Error(err))
	}

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))
	zlogger.Info("starting coordination simulation",
		zap.Int("txns", *numTxns),
		zap.Int("rounds_per_txn", *roundsPerTxn),
		zap.Int("batch_size", *batchSize),
		zap.Int("partitions", *numPartitions),
		zap.Int64("seed", *seed),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	executorPool, err := ants.NewPool(*workers)
	if err != nil {
		zlogger.Fatal("failed to create executor worker pool", zap.Error(err))
	}
	defer executorPool.Release()

	limiter := rate.NewLimiter(rate.Limit(*arrivalRate), *numPartitions)
	depPool := execution.NewDependencyPool(0)

	start := time.Now()
	completedRounds := 0
	for i := 0; i < *numTxns; i++ {
		if ctx.Err() != nil {
			zlogger.Warn("simulation interrupted", zap.Int("txns_done", i))
			break
		}
		n, err := runTransaction(ctx, zlogger, rng, depPool, metrics, executorPool, limiter)
		if err != nil {
			zlogger.Fatal("transaction failed", zap.Error(err))
		}
		completedRounds += n
	}

	allocated, reused := depPool.Stats()
	zlogger.Info("simulation finished",
		zap.Int("rounds_completed", completedRounds),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int64("pool_allocated", allocated),
		zap.Int64("pool_reused", reused),
	)
}

// runTransaction drives one transaction through its rounds and returns how
// many rounds completed.
func runTransaction(ctx context.Context, zlogger *zap.Logger, rng *rand.Rand,
	depPool *execution.DependencyPool, metrics *internaltelemetry.CoordinationMetrics,
	executorPool *ants.Pool, limiter *rate.Limiter) (int, error) {

	txn := transaction.Begin()
	state, err := execution.NewExecutionState(txn, depPool, *batchSize, zlogger, metrics)
	if err != nil {
		return 0, err
	}
	defer state.Clear()

	for round := 0; round < *roundsPerTxn; round++ {
		if err := runRound(ctx, zlogger, rng, state, executorPool, limiter); err != nil {
			txn.Abort()
			return round, fmt.Errorf("txn %s round %d: %w", txn.ID, round, err)
		}
		txn.MarkRoundExecuted()
	}
	return txn.RoundsExecuted(), txn.Commit()
}

func runRound(ctx context.Context, zlogger *zap.Logger, rng *rand.Rand,
	state *execution.ExecutionState, executorPool *ants.Pool, limiter *rate.Limiter) error {

	specs, expectations := randomBatch(rng)

	// A slice of the arrivals shows up before the round officially starts,
	// exercising the early-arrival buffers.
	var early, live []expectation
	for _, e := range expectations {
		if rng.Float64() < *earlyFraction {
			early = append(early, e)
		} else {
			live = append(live, e)
		}
	}
	for _, e := range early {
		if err := state.ReceiveResponse(e.partitionID, e.dependencyID); err != nil {
			return err
		}
	}

	if err := state.StartRound(specs); err != nil {
		return err
	}

	// Block one fragment task per statement on its output dependency; the
	// executor drains the groups the satisfactions release.
	for stmtIndex, depID := range state.OutputOrder() {
		task := &execution.FragmentTask{
			TaskID:             stmtIndex,
			StmtIndex:          stmtIndex,
			PartitionID:        rng.Intn(*numPartitions),
			InputDependencyIDs: []int{depID},
			OutputDependencyID: depID,
		}
		if err := state.BlockTask(task); err != nil {
			return err
		}
	}

	drainCtx, stopDrain := context.WithCancel(ctx)
	var drainWG sync.WaitGroup
	drainWG.Add(1)
	go func() {
		defer drainWG.Done()
		for {
			group, err := state.NextUnblockedTasks(drainCtx)
			if err != nil {
				return
			}
			g := group
			_ = executorPool.Submit(func() {
				// Simulated fragment submission to the destination partition.
				zlogger.Debug("submitting fragment task group",
					zap.Int("partition_id", g.PartitionID),
					zap.Int("tasks", len(g.Tasks)),
				)
			})
		}
	}()

	// One responder goroutine per partition, paced by the shared limiter.
	byPartition := make(map[int][]expectation)
	for _, e := range live {
		byPartition[e.partitionID] = append(byPartition[e.partitionID], e)
	}
	errCh := make(chan error, len(byPartition))
	var respWG sync.WaitGroup
	for _, arrivals := range byPartition {
		respWG.Add(1)
		go func(arrivals []expectation) {
			defer respWG.Done()
			for _, e := range arrivals {
				if err := limiter.Wait(ctx); err != nil {
					errCh <- err
					return
				}
				if err := state.ReceiveResponse(e.partitionID, e.dependencyID); err != nil {
					errCh <- err
					return
				}
				rows := fmt.Sprintf("rows(stmt=%d dep=%d p=%d)", e.stmtIndex, e.dependencyID, e.partitionID)
				if err := state.ReceiveResult(e.partitionID, e.dependencyID, rows); err != nil {
					errCh <- err
					return
				}
			}
		}(arrivals)
	}

	awaitCtx, cancelAwait := context.WithTimeout(ctx, *roundTimeout)
	err := state.AwaitRound(awaitCtx)
	cancelAwait()
	respWG.Wait()
	stopDrain()
	drainWG.Wait()
	if err != nil {
		return fmt.Errorf("round did not complete: %w", err)
	}
	select {
	case err := <-errCh:
		return err
	default:
	}

	if got, want := state.ReceivedCount(), state.DependencyCount(); got != want {
		return fmt.Errorf("received %d arrivals, expected %d", got, want)
	}
	return state.ClearRound()
}

// randomBatch builds a batch where each statement has one output dependency
// spread over a random partition subset, and returns the full expectation
// list the round will wait for. Dependency ids are unique within the round.
func randomBatch(rng *rand.Rand) ([]execution.StatementSpec, []expectation) {
	specs := make([]execution.StatementSpec, *batchSize)
	var expectations []expectation
	nextDepID := 1
	for stmtIndex := range specs {
		count := 1 + rng.Intn(*numPartitions)
		partitions := rng.Perm(*numPartitions)[:count]
		depID := nextDepID
		nextDepID++
		specs[stmtIndex] = execution.StatementSpec{
			Dependencies: []execution.DependencySpec{{ID: depID, Partitions: partitions}},
		}
		for _, p := range partitions {
			expectations = append(expectations, expectation{stmtIndex: stmtIndex, dependencyID: depID, partitionID: p})
		}
	}
	return specs, expectations
}
