//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 Weaviate B.V. All rights reserved.
//
//  CONTACT: hello@weaviate.io
//

// Package monitoring bundles the prometheus collectors of the index core.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics carries all collectors. A nil *Metrics is valid and drops every
// observation, so callers never need nil checks at observation sites.
type Metrics struct {
	DocumentsAdded   prometheus.Counter
	SegmentsFlushed  prometheus.Counter
	SegmentsMerged   prometheus.Counter
	MergeDuration    prometheus.Histogram
	CommitDuration   prometheus.Histogram
	SearchesRun      prometheus.Counter
	BlocksSkipped    prometheus.Counter
	SpilledRuns      prometheus.Counter
	TombstonesSet    prometheus.Counter
}

// New registers the collectors on reg. Passing nil yields a no-op Metrics.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		DocumentsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "documents_added_total",
			Help:      "Documents accepted by a segment writer",
		}),
		SegmentsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "segments_flushed_total",
			Help:      "Segments written and published",
		}),
		SegmentsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "segments_merged_total",
			Help:      "Source segments consumed by merges",
		}),
		MergeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "whoosh",
			Name:      "merge_duration_seconds",
			Help:      "Wall time of segment merges",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "whoosh",
			Name:      "commit_duration_seconds",
			Help:      "Wall time of writer commits",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		}),
		SearchesRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "searches_total",
			Help:      "Top-K searches executed",
		}),
		BlocksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "posting_blocks_skipped_total",
			Help:      "Posting blocks skipped by block-quality pruning",
		}),
		SpilledRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "spilled_runs_total",
			Help:      "External-sort runs spilled under memory pressure",
		}),
		TombstonesSet: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "whoosh",
			Name:      "tombstones_set_total",
			Help:      "Documents marked deleted",
		}),
	}

	reg.MustRegister(m.DocumentsAdded, m.SegmentsFlushed, m.SegmentsMerged,
		m.MergeDuration, m.CommitDuration, m.SearchesRun, m.BlocksSkipped,
		m.SpilledRuns, m.TombstonesSet)

	return m
}

func (m *Metrics) IncDocumentsAdded() {
	if m == nil {
		return
	}
	m.DocumentsAdded.Inc()
}

func (m *Metrics) IncSegmentsFlushed() {
	if m == nil {
		return
	}
	m.SegmentsFlushed.Inc()
}

func (m *Metrics) AddSegmentsMerged(n int) {
	if m == nil {
		return
	}
	m.SegmentsMerged.Add(float64(n))
}

func (m *Metrics) ObserveMergeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.MergeDuration.Observe(seconds)
}

func (m *Metrics) ObserveCommitDuration(seconds float64) {
	if m == nil {
		return
	}
	m.CommitDuration.Observe(seconds)
}

func (m *Metrics) IncSearchesRun() {
	if m == nil {
		return
	}
	m.SearchesRun.Inc()
}

func (m *Metrics) AddBlocksSkipped(n int) {
	if m == nil {
		return
	}
	m.BlocksSkipped.Add(float64(n))
}

func (m *Metrics) IncSpilledRuns() {
	if m == nil {
		return
	}
	m.SpilledRuns.Inc()
}

func (m *Metrics) AddTombstonesSet(n int) {
	if m == nil {
		return
	}
	m.TombstonesSet.Add(float64(n))
}
