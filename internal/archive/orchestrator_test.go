package archive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ans-archiver/internal/annotate"
	"ans-archiver/internal/ansclient"
	"ans-archiver/internal/config"
	"ans-archiver/internal/ratelimit"
	"ans-archiver/internal/storage"
)

const fakePDF = "%PDF-1.4 fake submission upload"

// newFakePlatform serves a minimal course tree: one course with three
// assignments, one of which has a graded submission with three questions
// (two on the old grading scheme, one on the new) plus an attempt page and
// one PDF upload. The other two assignment pages carry no results link.
func newFakePlatform(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/routing/courses", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/routing/courses/101">Algebra</a>
		</body></html>`))
	})

	mux.HandleFunc("/routing/courses/101", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/routing/courses/101/assignments/7/go_to">Go to assignment</a>
			<a href="/routing/courses/101/assignments/8/go_to">Go to assignment</a>
			<a href="/routing/courses/101/assignments/9/go_to">Go to assignment</a>
		</body></html>`))
	})

	mux.HandleFunc("/routing/courses/101/assignments/7/go_to", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/routing/courses/101">Back</a>
			<span> Algebra </span>
			<span> Week 1: Proofs </span>
			<a href="/results/555">Result</a>
		</body></html>`))
	})

	// No results link on these two; the archiver should dump each under its
	// own assignment id and move on.
	mux.HandleFunc("/routing/courses/101/assignments/8/go_to", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Not yet graded</p></body></html>`))
	})
	mux.HandleFunc("/routing/courses/101/assignments/9/go_to", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Still open</p></body></html>`))
	})

	mux.HandleFunc("/results/555", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/courses/101/grading/view/9001?focus=1">Open grading view</a>
		</body></html>`))
	})

	mux.HandleFunc("/courses/101/grading/view/9001", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>
		<head><title>Submission</title></head>
		<body class="theme-light">
			<div data-cy="submission-button"><a data-submission-id="1111" href="#q1"></a></div>
			<div data-cy="submission-button"><a data-submission-id="2222" href="#q2"></a></div>
			<div data-cy="submission-button"><a data-submission-id="3333" href="#q3"></a></div>
			<button data-file-type="pdf" data-file-extension=".pdf"
				data-url="/files/essay.pdf?filename=my%20essay.pdf">Download</button>
			<div data-current-user-id="5" data-assignment-id="7"><p>Essay text</p></div>
		</body></html>`))
	})

	v1Question := func(label string) string {
		return `<html><head></head><body>
			<div data-js-grading-panel>
				<!-- CRITERIA --><div class="crit">Criteria ` + label + `</div>
				<!-- SUBQUESTION --><div class="sub">Subquestion ` + label + `</div>
				<div data-js-adjustments-wrapper>Adjustments ` + label + `</div>
			</div>
		</body></html>`
	}
	mux.HandleFunc("/courses/101/grading/view/1111", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(v1Question("one")))
	})
	mux.HandleFunc("/courses/101/grading/view/2222", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(v1Question("two")))
	})
	mux.HandleFunc("/courses/101/grading/view/3333", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head></head><body>
			<div data-js-review-panel>
				<div id="question-header">Question three</div>
				<div id="subquestion-header">Part a</div>
				<div id="criteria">Criteria three</div>
			</div>
		</body></html>`))
	})

	mux.HandleFunc("/files/essay.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(fakePDF))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestOrchestrator(t *testing.T, baseURL string, store storage.Provider, scheme string) *Orchestrator {
	t.Helper()
	client, err := ansclient.New(ansclient.Config{
		BaseURL:      baseURL,
		SessionToken: "secret",
		Timeout:      5 * time.Second,
	}, ratelimit.New(ratelimit.Config{}), zap.NewNop())
	require.NoError(t, err)

	return New(client, store, annotate.NewEngine(zap.NewNop()), Options{
		CoursesPath:   "routing/courses",
		Year:          "latest",
		GradingScheme: scheme,
		RunID:         "test-run",
	}, zap.NewNop())
}

func TestRunArchivesCourseTree(t *testing.T) {
	srv := newFakePlatform(t)
	store := storage.NewMemoryProvider()
	o := newTestOrchestrator(t, srv.URL, store, config.SchemeCurrent)

	require.NoError(t, o.Run(context.Background()))

	panel, ok := store.Get("Algebra/Week_1__Proofs/grading_panel.html")
	require.True(t, ok, "grading panel missing, stored: %v", store.Names())
	html := string(panel)

	// Question blocks appear in listing order even though pages are
	// fetched concurrently.
	one := strings.Index(html, "Criteria one")
	two := strings.Index(html, "Criteria two")
	three := strings.Index(html, "Question three")
	require.GreaterOrEqual(t, one, 0)
	require.Greater(t, two, one)
	require.Greater(t, three, two)
	require.Contains(t, html, "Adjustments one")
	require.Contains(t, html, "Criteria three")
	require.Contains(t, html, "data-default-locale")

	attempt, ok := store.Get("Algebra/Week_1__Proofs/attempt.html")
	require.True(t, ok)
	require.Contains(t, string(attempt), "Essay text")
	require.Contains(t, string(attempt), `class="theme-light"`)

	pdf, ok := store.Get("Algebra/Week_1__Proofs/my_essay.pdf")
	require.True(t, ok)
	require.Equal(t, fakePDF, string(pdf))
}

func TestRunDumpsAssignmentWithoutResultsLink(t *testing.T) {
	srv := newFakePlatform(t)
	store := storage.NewMemoryProvider()
	o := newTestOrchestrator(t, srv.URL, store, config.SchemeCurrent)

	require.NoError(t, o.Run(context.Background()))

	// Sibling skips keep separate dumps instead of racing on one filename.
	dump, ok := store.Get("Algebra/no_submission_link_8.html")
	require.True(t, ok, "stored: %v", store.Names())
	require.Contains(t, string(dump), "Not yet graded")

	dump, ok = store.Get("Algebra/no_submission_link_9.html")
	require.True(t, ok)
	require.Contains(t, string(dump), "Still open")
}

func TestAssignmentSlug(t *testing.T) {
	require.Equal(t, "7", assignmentSlug("https://ans.app/routing/courses/101/assignments/7/go_to"))
	require.Equal(t, "42", assignmentSlug("https://ans.app/assignments/42"))
}

func TestRunFailsWhenListingIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>Session expired</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	store := storage.NewMemoryProvider()
	o := newTestOrchestrator(t, srv.URL, store, config.SchemeCurrent)

	err := o.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "no courses")
}

func TestRunSwitchesGradingScheme(t *testing.T) {
	var switched atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("/routing/courses", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<a href="/routing/courses/101">Algebra</a>`))
	})
	mux.HandleFunc("/routing/courses/101", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<a href="/routing/courses/101/assignments/7/go_to">Go</a>`))
	})
	mux.HandleFunc("/routing/courses/101/assignments/7/go_to", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/routing/courses/101">Back</a>
			<span>Algebra</span><span>Exam</span>
			<a href="/results/555">Result</a>
		</body></html>`))
	})
	mux.HandleFunc("/results/555", func(w http.ResponseWriter, r *http.Request) {
		// Old-scheme markup appears only after the switch was posted.
		page := `<html><body>
			<form class="button_to" action="/switch_grading">
				<input name="authenticity_token" value="csrf123">
			</form>
			<a href="/courses/101/grading/view/9001">Open</a>`
		if switched.Load() {
			page += `<div data-js-grading-panel></div>`
		}
		page += `</body></html>`
		_, _ = w.Write([]byte(page))
	})
	mux.HandleFunc("/switch_grading", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "csrf123", r.FormValue("authenticity_token"))
		switched.Store(true)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/courses/101/grading/view/9001", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head></head><body></body></html>`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	store := storage.NewMemoryProvider()
	o := newTestOrchestrator(t, srv.URL, store, config.SchemeOld)

	require.NoError(t, o.Run(context.Background()))
	require.True(t, switched.Load(), "expected a grading scheme switch POST")
}

func TestSplitGradingView(t *testing.T) {
	base, id, err := splitGradingView("https://ans.app/courses/1/grading/view/42?focus=3")
	require.NoError(t, err)
	require.Equal(t, "https://ans.app/courses/1/grading/view", base)
	require.Equal(t, "42", id)

	_, _, err = splitGradingView("https://ans.app")
	require.Error(t, err)
}

func TestPDFFilename(t *testing.T) {
	require.Equal(t, "my_essay.pdf", pdfFilename("https://x/files/1?filename=my%20essay.pdf"))
	require.Equal(t, fallbackPDFName, pdfFilename("https://x/files/1"))
}
