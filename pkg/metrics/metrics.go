// Package metrics exposes prometheus instrumentation for the engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ScansTotal counts balance scans served.
	ScansTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dustsweep_scans_total",
		Help: "Balance scans performed.",
	})

	// ChainScanFailures counts per-chain scan failures absorbed by the
	// best-effort aggregation.
	ChainScanFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dustsweep_chain_scan_failures_total",
		Help: "Per-chain balance scan failures (isolated, non-fatal).",
	}, []string{"chain"})

	// QuotesIssued counts issued quotes split by donation mode.
	QuotesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dustsweep_quotes_issued_total",
		Help: "Sweep quotes issued.",
	}, []string{"donation"})

	// QuotesEvicted counts quotes purged after expiry.
	QuotesEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dustsweep_quotes_evicted_total",
		Help: "Expired quotes evicted from the store.",
	})

	// SweepsByStatus counts sweep outcomes: the terminal statuses plus
	// "partial" for sweeps parked awaiting reconciliation.
	SweepsByStatus = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dustsweep_sweeps_total",
		Help: "Sweep executions by outcome.",
	}, []string{"status"})

	// FeesAccruedUSD accumulates non-donation settlement fees.
	FeesAccruedUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dustsweep_fees_accrued_usd_total",
		Help: "Accumulated settlement fees in USD.",
	})

	// DonationsUSD accumulates donation-mode settlement value.
	DonationsUSD = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dustsweep_donations_usd_total",
		Help: "Accumulated donations in USD.",
	})
)
