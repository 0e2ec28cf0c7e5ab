package internaltelemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// CoordinationMetrics holds all the metric instruments for the per-transaction
// execution coordination layer.
type CoordinationMetrics struct {
	RoundsStartedCounter         metric.Int64Counter
	ArrivalsCounter              metric.Int64Counter
	EarlyBufferedCounter         metric.Int64Counter
	DependenciesSatisfiedCounter metric.Int64Counter
	PartitionsTouchedCounter     metric.Int64Counter
	ActiveRoundsUpDownCounter    metric.Int64UpDownCounter
	RoundLatencyHistogram        metric.Int64Histogram
}

// NewCoordinationMetrics creates and registers all the metrics for the
// coordination layer.
func NewCoordinationMetrics(meter metric.Meter) (*CoordinationMetrics, error) {
	roundsStartedCounter, err := meter.Int64Counter(
		"takaradb.coordination.rounds.started_total",
		metric.WithDescription("Total number of execution rounds started."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	arrivalsCounter, err := meter.Int64Counter(
		"takaradb.coordination.arrivals_total",
		metric.WithDescription("Total number of partition responses and results received."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	earlyBufferedCounter, err := meter.Int64Counter(
		"takaradb.coordination.arrivals.early_buffered_total",
		metric.WithDescription("Arrivals buffered because they preceded the round start."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	dependenciesSatisfiedCounter, err := meter.Int64Counter(
		"takaradb.coordination.dependencies.satisfied_total",
		metric.WithDescription("Total number of dependency satisfactions."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	partitionsTouchedCounter, err := meter.Int64Counter(
		"takaradb.coordination.partitions.touched_total",
		metric.WithDescription("Partition touches accumulated across rounds."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	activeRoundsUpDownCounter, err := meter.Int64UpDownCounter(
		"takaradb.coordination.rounds.active",
		metric.WithDescription("Number of rounds currently in flight."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	roundLatencyHistogram, err := meter.Int64Histogram(
		"takaradb.coordination.round.duration",
		metric.WithDescription("Time from round start until the dependency latch releases."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &CoordinationMetrics{
		RoundsStartedCounter:         roundsStartedCounter,
		ArrivalsCounter:              arrivalsCounter,
		EarlyBufferedCounter:         earlyBufferedCounter,
		DependenciesSatisfiedCounter: dependenciesSatisfiedCounter,
		PartitionsTouchedCounter:     partitionsTouchedCounter,
		ActiveRoundsUpDownCounter:    activeRoundsUpDownCounter,
		RoundLatencyHistogram:        roundLatencyHistogram,
	}, nil
}
