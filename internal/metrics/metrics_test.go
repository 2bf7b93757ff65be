package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersRecord(t *testing.T) {
	Init()
	Init() // idempotent

	PageFetched("courses")
	PageFetched("courses")
	SubtreeSkipped("no_submission_link")
	Annotation("rendered")
	ArtifactSaved("pdf")

	require.Equal(t, 2.0, testutil.ToFloat64(pagesFetchedTotal.WithLabelValues("courses")))
	require.Equal(t, 1.0, testutil.ToFloat64(subtreeSkipsTotal.WithLabelValues("no_submission_link")))
	require.Equal(t, 1.0, testutil.ToFloat64(annotationsTotal.WithLabelValues("rendered")))
	require.Equal(t, 1.0, testutil.ToFloat64(artifactsSavedTotal.WithLabelValues("pdf")))
}

func TestCountersNilSafeBeforeInit(t *testing.T) {
	// Helpers must not panic even if Init was never called in this process;
	// the collectors are package globals so only the nil guards are exercised.
	PageFetched("assignments")
	SubtreeSkipped("no_attempt")
	Annotation("skipped")
	ArtifactSaved("attempt")
}
