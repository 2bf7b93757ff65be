// Package metrics exposes Prometheus collectors for the archiver.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal  *prometheus.CounterVec
	subtreeSkipsTotal  *prometheus.CounterVec
	annotationsTotal   *prometheus.CounterVec
	artifactsSavedTotal *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_pages_fetched_total",
				Help: "Total pages fetched, labeled by traversal level.",
			},
			[]string{"level"},
		)

		subtreeSkipsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_subtree_skips_total",
				Help: "Total subtrees abandoned, labeled by skip category.",
			},
			[]string{"category"},
		)

		annotationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_annotations_total",
				Help: "Total annotation records processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		artifactsSavedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archiver_artifacts_saved_total",
				Help: "Total artifacts written to the store, labeled by kind.",
			},
			[]string{"kind"},
		)
	})
}

// PageFetched records one fetched page at the given traversal level
// (courses, assignments, submissions, questions, pdfs).
func PageFetched(level string) {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.WithLabelValues(level).Inc()
	}
}

// SubtreeSkipped records one abandoned subtree by category.
func SubtreeSkipped(category string) {
	if subtreeSkipsTotal != nil {
		subtreeSkipsTotal.WithLabelValues(category).Inc()
	}
}

// Annotation records one processed annotation record by outcome
// (rendered, skipped, unknown).
func Annotation(outcome string) {
	if annotationsTotal != nil {
		annotationsTotal.WithLabelValues(outcome).Inc()
	}
}

// ArtifactSaved records one persisted artifact by kind
// (attempt, grading_panel, pdf, diagnostic).
func ArtifactSaved(kind string) {
	if artifactsSavedTotal != nil {
		artifactsSavedTotal.WithLabelValues(kind).Inc()
	}
}
