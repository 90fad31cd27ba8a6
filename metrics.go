package conifer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Training metrics, registered on the default prometheus registry.
// Binaries embedding the trainer decide whether and where to expose
// them.
var (
	splitsAssigned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "conifer",
		Name:      "splits_assigned_total",
		Help:      "Nodes resolved by recording a fresh split.",
	})
	leavesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conifer",
		Name:      "leaves_created_total",
		Help:      "Leaves fitted, by the criterion that terminated the branch.",
	}, []string{"cause"})
	checkpointWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "conifer",
		Name:      "checkpoint_writes_total",
		Help:      "Checkpoint save attempts, by result.",
	}, []string{"result"})
	splitSearchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "conifer",
		Name:      "split_search_seconds",
		Help:      "Time spent generating and scoring split candidates per node.",
		Buckets:   prometheus.DefBuckets,
	})
)
