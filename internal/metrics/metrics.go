package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsIngested tracks records accepted from the live stream.
	RecordsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapless_records_ingested_total",
			Help: "Total number of block records accepted into the buffer",
		},
	)

	// FlushesTotal tracks buffer flushes by outcome.
	FlushesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapless_flushes_total",
			Help: "Total number of buffer flushes",
		},
		[]string{"status"},
	)

	// FlushBatchSize tracks how many records each flush carried.
	FlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gapless_flush_batch_size",
			Help:    "Number of records per flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		},
	)

	// FlushDuration tracks flush write latency.
	FlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gapless_flush_duration_seconds",
			Help:    "Flush write latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BufferSize tracks the current number of buffered records.
	BufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapless_buffer_size",
			Help: "Records currently buffered and not yet flushed",
		},
	)

	// FetchFailures tracks fetches that exhausted their retry budget.
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapless_fetch_failures_total",
			Help: "Total number of record fetches that failed after retries",
		},
		[]string{"kind"},
	)

	// InlineBackfills tracks small gaps closed inside the live path.
	InlineBackfills = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapless_inline_backfills_total",
			Help: "Total number of small gaps backfilled inline",
		},
	)

	// LargeGaps tracks gaps too large for the inline path.
	LargeGaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapless_large_gaps_total",
			Help: "Total number of gaps handed off to external backfill",
		},
	)

	// Reconnects tracks live-stream reconnect attempts.
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapless_stream_reconnects_total",
			Help: "Total number of live stream reconnects",
		},
	)

	// SecondaryWriteFailures tracks best-effort writes to the migration
	// target that were dropped.
	SecondaryWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gapless_secondary_write_failures_total",
			Help: "Total number of failed writes to the secondary store",
		},
	)

	// GapsFound is the number of missing ranges seen by the last scan.
	GapsFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapless_gaps_found",
			Help: "Missing ranges reported by the most recent scan",
		},
	)

	// MissingRecords is the total missing count seen by the last scan.
	MissingRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapless_missing_records",
			Help: "Missing records reported by the most recent scan",
		},
	)

	// StalenessSeconds is the age of the newest stored record.
	StalenessSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gapless_staleness_seconds",
			Help: "Age of the newest stored record at the last scan",
		},
	)

	// BackfillChunks tracks external backfill chunk writes by outcome.
	BackfillChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gapless_backfill_chunks_total",
			Help: "Total number of backfill chunks processed",
		},
		[]string{"status"},
	)
)
