package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var namespace = "streamvault"
var subsystem = "bookie"

var (
	// StartupTime stores how long the startup took (in seconds)
	StartupTime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "startup_seconds",
			Help:      "Seconds taken by the startup",
		},
	)

	// JournalQueueSize tracks the number of entries waiting for the journal writer
	JournalQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_queue_size",
		Help:      "Number of entries pending in the journal ingest queue",
	})

	// JournalForceWriteQueueSize tracks the number of batches waiting for fsync
	JournalForceWriteQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_force_write_queue_size",
		Help:      "Number of flush batches pending in the force-write queue",
	})

	// JournalWriteBytes counts payload bytes accepted by the journal writer
	JournalWriteBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_write_bytes_total",
		Help:      "Total payload bytes written into the journal",
	})

	// JournalAddLatency measures enqueue-to-acknowledgement latency per entry
	JournalAddLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_add_entry_latency_seconds",
		Help:      "Time between entry enqueue and its durability callback",
	})

	// JournalMemAddLatency measures enqueue-to-buffered latency per entry
	JournalMemAddLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_mem_add_entry_latency_seconds",
		Help:      "Time between entry enqueue and the write into the journal buffer",
	})

	// JournalMemAddFlushes records buffer flushes caused by a single entry write
	JournalMemAddFlushes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_mem_add_flushes",
		Help:      "Write-buffer flushes triggered while buffering a single entry",
		Buckets:   prometheus.LinearBuckets(0, 1, 8),
	})

	// JournalCreationLatency measures how long opening a fresh journal file takes
	JournalCreationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_creation_latency_seconds",
		Help:      "Time taken to create and pre-allocate a new journal file",
	})

	// JournalFlushLatency measures the buffered-channel flush on the writer path
	JournalFlushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_flush_latency_seconds",
		Help:      "Time taken to flush buffered journal writes to the OS",
	})

	// JournalFlushMaxWait counts flushes caused by the group-commit timeout
	JournalFlushMaxWait = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_flush_max_wait_total",
		Help:      "Journal flushes triggered by the max group wait timeout",
	})

	// JournalFlushMaxOutstandingBytes counts flushes caused by size thresholds
	JournalFlushMaxOutstandingBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_flush_max_outstanding_bytes_total",
		Help:      "Journal flushes triggered by buffered bytes or entries thresholds",
	})

	// JournalFlushEmptyQueue counts flushes caused by an empty ingest queue
	JournalFlushEmptyQueue = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_flush_empty_queue_total",
		Help:      "Journal flushes triggered by the ingest queue becoming empty",
	})

	// JournalForceWriteBatchEntries records the entry count of each flushed batch
	JournalForceWriteBatchEntries = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_force_write_batch_entries",
		Help:      "Entries per batch handed to the force-write thread",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})

	// JournalForceWriteBatchBytes records the byte size of each flushed batch
	JournalForceWriteBatchBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_force_write_batch_bytes",
		Help:      "Bytes per batch handed to the force-write thread",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
	})

	// JournalForceWriteGrouping records how many requests each fsync covered
	JournalForceWriteGrouping = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "journal_force_write_group_count",
		Help:      "Requests whose durability was covered by a single force write",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
	})
)
