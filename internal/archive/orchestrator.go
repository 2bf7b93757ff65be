package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ans-archiver/internal/annotate"
	"ans-archiver/internal/ansclient"
	"ans-archiver/internal/config"
	"ans-archiver/internal/document"
	"ans-archiver/internal/metrics"
	"ans-archiver/internal/scrape"
	"ans-archiver/internal/storage"
)

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// fallbackPDFName is used when a download URL carries no filename parameter.
const fallbackPDFName = "faulty_name.pdf"

// Options configures an Orchestrator run.
type Options struct {
	CoursesPath   string
	Year          string
	GradingScheme string
	RunID         string
}

// Orchestrator walks the course tree and archives every submission it can
// reach. Failures never abort the run; they skip the smallest enclosing
// subtree and leave a diagnostic artifact behind.
type Orchestrator struct {
	client *ansclient.Client
	store  storage.Provider
	pdfs   *annotate.Engine
	opts   Options
	logger *zap.Logger
}

// New wires an Orchestrator from its collaborators.
func New(client *ansclient.Client, store storage.Provider, pdfs *annotate.Engine, opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client: client,
		store:  store,
		pdfs:   pdfs,
		opts:   opts,
		logger: logger.With(zap.String("run_id", opts.RunID)),
	}
}

// Run archives every course visible on the course listing. It returns an
// error only when the listing itself cannot be fetched or yields no courses;
// everything below that level degrades to logged skips.
func (o *Orchestrator) Run(ctx context.Context) error {
	courses, err := o.collectCourses(ctx)
	if err != nil {
		return err
	}
	if len(courses) == 0 {
		return fmt.Errorf("no courses found under %s (token expired?)", o.opts.CoursesPath)
	}
	o.logger.Info("starting archive run",
		zap.Int("courses", len(courses)),
		zap.String("year", o.opts.Year),
		zap.String("grading_scheme", o.opts.GradingScheme))

	var g errgroup.Group
	for _, course := range courses {
		g.Go(func() error {
			o.archiveCourse(ctx, course)
			return nil
		})
	}
	return g.Wait()
}

// collectCourses fetches the course listing and follows "show more"
// pagination according to the configured year selector.
func (o *Orchestrator) collectCourses(ctx context.Context) ([]CourseInfo, error) {
	pageURL := o.client.Resolve("/" + strings.TrimPrefix(o.opts.CoursesPath, "/"))
	if yearPattern.MatchString(o.opts.Year) {
		u, err := url.Parse(pageURL)
		if err != nil {
			return nil, fmt.Errorf("course listing url: %w", err)
		}
		q := u.Query()
		q.Set("year", o.opts.Year)
		u.RawQuery = q.Encode()
		pageURL = u.String()
	}

	var courses []CourseInfo
	for {
		content, err := o.client.GetText(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("fetch course listing: %w", err)
		}
		metrics.PageFetched("courses")
		doc, err := scrape.ParseDocument(content)
		if err != nil {
			return nil, fmt.Errorf("parse course listing: %w", err)
		}
		for _, c := range scrape.CourseLinks(doc) {
			courses = append(courses, CourseInfo{Name: c.Name, URL: o.client.Resolve(c.Href)})
		}
		if o.opts.Year == "latest" {
			break
		}
		next, ok := scrape.NextPageLink(doc, o.opts.CoursesPath)
		if !ok {
			break
		}
		pageURL = o.client.Resolve(next)
	}
	return courses, nil
}

// archiveCourse fetches one course page, resolves every assignment into a
// SubmissionTarget and then fans out over the resolved submissions. The two
// phases are separated by a full barrier so no submission work starts until
// every sibling assignment has been resolved or skipped.
func (o *Orchestrator) archiveCourse(ctx context.Context, course CourseInfo) {
	log := o.logger.With(zap.String("course", course.Name))
	content, err := o.client.GetText(ctx, course.URL)
	if err != nil {
		log.Warn("skipping course, fetch failed", zap.Error(err))
		metrics.SubtreeSkipped("course_fetch")
		return
	}
	metrics.PageFetched("course")
	doc, err := scrape.ParseDocument(content)
	if err != nil {
		log.Warn("skipping course, parse failed", zap.Error(err))
		metrics.SubtreeSkipped("course_parse")
		return
	}

	links := scrape.AssignmentLinks(doc, o.opts.CoursesPath)
	log.Info("collected assignments", zap.Int("count", len(links)))

	targets := make([]*SubmissionTarget, len(links))
	var resolve errgroup.Group
	for i, href := range links {
		assignmentURL := o.client.Resolve(href)
		resolve.Go(func() error {
			targets[i] = o.resolveAssignment(ctx, course, assignmentURL)
			return nil
		})
	}
	_ = resolve.Wait()

	var g errgroup.Group
	for _, target := range targets {
		if target == nil {
			continue
		}
		g.Go(func() error {
			o.archiveSubmission(ctx, *target)
			return nil
		})
	}
	_ = g.Wait()
}

// resolveAssignment turns one assignment page into a SubmissionTarget, or
// nil when the assignment has nothing to archive.
func (o *Orchestrator) resolveAssignment(ctx context.Context, course CourseInfo, assignmentURL string) *SubmissionTarget {
	log := o.logger.With(zap.String("course", course.Name), zap.String("url", assignmentURL))
	content, err := o.client.GetText(ctx, assignmentURL)
	if err != nil {
		log.Warn("skipping assignment, fetch failed", zap.Error(err))
		metrics.SubtreeSkipped("assignment_fetch")
		return nil
	}
	metrics.PageFetched("assignment")
	doc, err := scrape.ParseDocument(content)
	if err != nil {
		log.Warn("skipping assignment, parse failed", zap.Error(err))
		metrics.SubtreeSkipped("assignment_parse")
		return nil
	}

	// Dumps are namespaced by assignment id so concurrent skips of sibling
	// assignments never overwrite each other.
	slug := assignmentSlug(assignmentURL)
	results := scrape.ResultsLinks(doc)
	if len(results) == 0 {
		log.Warn("no results link on assignment page, dumping for inspection")
		o.dump(ctx, path.Join(SanitizeFilename(course.Name), "no_submission_link_"+slug+".html"), content, "no_submission_link")
		return nil
	}

	coursePath := hrefPath(course.URL)
	courseName, assignmentName, ok := scrape.SubmissionNames(doc, coursePath)
	if !ok {
		log.Warn("could not extract course and assignment names, dumping for inspection")
		o.dump(ctx, path.Join(SanitizeFilename(course.Name), "no_submission_name_"+slug+".html"), content, "no_submission_name")
		return nil
	}

	info := AssignmentInfo{
		AssignmentName: assignmentName,
		CourseName:     courseName,
		URL:            assignmentURL,
	}
	target := info.Target(o.client.Resolve(results[0]))
	return &target
}

// archiveSubmission fetches the results page, switches the grading scheme if
// the desired one is not already active, and descends into the grading view.
func (o *Orchestrator) archiveSubmission(ctx context.Context, target SubmissionTarget) {
	log := o.logger.With(zap.String("target", target.Path))
	content, err := o.client.GetText(ctx, target.URL)
	if err != nil {
		log.Warn("skipping submission, fetch failed", zap.Error(err))
		metrics.SubtreeSkipped("submission_fetch")
		return
	}
	metrics.PageFetched("submission")
	doc, err := scrape.ParseDocument(content)
	if err != nil {
		log.Warn("skipping submission, parse failed", zap.Error(err))
		metrics.SubtreeSkipped("submission_parse")
		return
	}

	if o.switchGradingScheme(ctx, target, doc) {
		content, err = o.client.GetText(ctx, target.URL)
		if err != nil {
			log.Warn("skipping submission, refetch after scheme switch failed", zap.Error(err))
			metrics.SubtreeSkipped("submission_fetch")
			return
		}
		doc, err = scrape.ParseDocument(content)
		if err != nil {
			log.Warn("skipping submission, parse after scheme switch failed", zap.Error(err))
			metrics.SubtreeSkipped("submission_parse")
			return
		}
	}

	links := scrape.GradingViewLinks(doc)
	if len(links) == 0 {
		log.Warn("no grading view links on results page, skipping")
		metrics.SubtreeSkipped("no_submission")
		return
	}

	base, id, err := splitGradingView(o.client.Resolve(links[0]))
	if err != nil {
		log.Warn("skipping submission, malformed grading view link", zap.Error(err))
		metrics.SubtreeSkipped("bad_grading_link")
		return
	}
	o.archiveAnswers(ctx, base, id, target)
}

// switchGradingScheme posts the scheme-switch form when the configured
// scheme's markup is absent from the results page. It reports whether a
// switch was issued, in which case the caller must refetch.
func (o *Orchestrator) switchGradingScheme(ctx context.Context, target SubmissionTarget, doc *goquery.Document) bool {
	var needSwitch bool
	switch o.opts.GradingScheme {
	case config.SchemeOld:
		needSwitch = scrape.PanelsV1(doc).Length() == 0
	case config.SchemeNew:
		needSwitch = scrape.PanelsV2(doc).Length() == 0
	default:
		return false
	}
	if !needSwitch {
		return false
	}

	log := o.logger.With(zap.String("target", target.Path))
	action, token, ok := scrape.SwitchForm(doc)
	if !ok {
		log.Warn("desired grading scheme inactive but no switch form found")
		return false
	}
	if _, err := o.client.PostForm(ctx, o.client.Resolve(action), map[string]string{
		"authenticity_token": token,
	}); err != nil {
		log.Warn("grading scheme switch failed", zap.Error(err))
		return false
	}
	log.Info("switched grading scheme", zap.String("scheme", o.opts.GradingScheme))
	return true
}

// archiveAnswers fetches the submission summary and archives the attempt and
// the grading panels for every question, in question order.
func (o *Orchestrator) archiveAnswers(ctx context.Context, baseURL, id string, target SubmissionTarget) {
	log := o.logger.With(zap.String("target", target.Path))
	content, err := o.client.GetText(ctx, baseURL+"/"+id)
	if err != nil {
		log.Warn("skipping submission, summary fetch failed", zap.Error(err))
		metrics.SubtreeSkipped("summary_fetch")
		return
	}
	metrics.PageFetched("questions")
	doc, err := scrape.ParseDocument(content)
	if err != nil {
		log.Warn("skipping submission, summary parse failed", zap.Error(err))
		metrics.SubtreeSkipped("summary_parse")
		return
	}

	qids := scrape.QuestionIDs(doc)
	if len(qids) == 0 {
		log.Warn("no questions found on submission summary")
	}

	// Question pages are fetched concurrently but appended in listing
	// order, so the reconstructed document reads top to bottom.
	pages := make([]string, len(qids))
	var g errgroup.Group
	for i, qid := range qids {
		g.Go(func() error {
			page, err := o.client.GetText(ctx, baseURL+"/"+qid)
			if err != nil {
				log.Warn("question fetch failed", zap.String("question", qid), zap.Error(err))
				metrics.SubtreeSkipped("question_fetch")
				return nil
			}
			metrics.PageFetched("question")
			pages[i] = page
			return nil
		})
	}
	g.Go(func() error {
		o.archiveAttempt(ctx, content, target)
		return nil
	})
	_ = g.Wait()

	if len(qids) == 0 {
		return
	}
	page, err := document.NewPage(doc, log)
	if err != nil {
		log.Warn("skipping grading panel, summary page unusable", zap.Error(err))
		metrics.SubtreeSkipped("grading_panel")
		return
	}
	for i, qpage := range pages {
		if qpage == "" {
			continue
		}
		qdoc, err := scrape.ParseDocument(qpage)
		if err != nil {
			log.Warn("question parse failed", zap.String("question", qids[i]), zap.Error(err))
			metrics.SubtreeSkipped("question_parse")
			continue
		}
		o.appendPanels(ctx, page, qdoc, target, log)
	}

	rendered, err := page.Render()
	if err != nil {
		log.Warn("grading panel render failed", zap.Error(err))
		metrics.SubtreeSkipped("grading_panel")
		return
	}
	if err := o.store.Save(ctx, path.Join(target.Path, "grading_panel.html"), []byte(rendered)); err != nil {
		log.Warn("grading panel save failed", zap.Error(err))
		return
	}
	metrics.ArtifactSaved("grading_panel")
	log.Info("archived grading panel", zap.Int("questions", len(qids)))
}

// appendPanels detects the grading scheme used on one question page and
// appends its panels to the reconstructed document.
func (o *Orchestrator) appendPanels(ctx context.Context, page *document.Page, qdoc *goquery.Document, target SubmissionTarget, log *zap.Logger) {
	switch scrape.DetectPanel(qdoc) {
	case scrape.PanelV1:
		scrape.PanelsV1(qdoc).Each(func(_ int, panel *goquery.Selection) {
			panelHTML, _ := goquery.OuterHtml(panel)
			unknown := document.AppendV1(page, panel)
			if len(unknown) > 0 {
				log.Warn("unknown comment markers in grading panel", zap.Strings("markers", unknown))
				o.dump(ctx, path.Join(target.Path, "unknown_comments.html"), panelHTML, "unknown_comments")
			}
		})
	case scrape.PanelV2:
		scrape.PanelsV2(qdoc).Each(func(_ int, panel *goquery.Selection) {
			document.AppendV2(page, panel, qdoc)
		})
	default:
		log.Debug("question page has no grading panel markup")
	}
}

// archiveAttempt saves the student's attempt page and its PDF uploads. It
// parses its own copy of the summary page so it can run concurrently with
// the question fetches.
func (o *Orchestrator) archiveAttempt(ctx context.Context, content string, target SubmissionTarget) {
	log := o.logger.With(zap.String("target", target.Path))
	doc, err := scrape.ParseDocument(content)
	if err != nil {
		log.Warn("skipping attempt, parse failed", zap.Error(err))
		metrics.SubtreeSkipped("attempt_parse")
		return
	}

	pdfURLs := scrape.PDFButtonURLs(doc)
	hasAttempt := scrape.HasAttemptMarker(doc)
	if len(pdfURLs) == 0 && !hasAttempt {
		log.Warn("no attempt container or pdf uploads found, dumping for inspection")
		o.dump(ctx, path.Join(target.Path, "no_attempt.html"), content, "no_attempt")
		return
	}

	var g errgroup.Group
	for _, dataURL := range pdfURLs {
		g.Go(func() error {
			o.downloadPDF(ctx, doc, dataURL, target)
			return nil
		})
	}
	_ = g.Wait()

	if !hasAttempt {
		return
	}
	page, err := document.NewPage(doc, log)
	if err != nil {
		log.Warn("skipping attempt page, summary unusable", zap.Error(err))
		metrics.SubtreeSkipped("attempt_page")
		return
	}
	page.AppendMain(doc.Find("div[data-current-user-id][data-assignment-id]").First())
	rendered, err := page.Render()
	if err != nil {
		log.Warn("attempt render failed", zap.Error(err))
		metrics.SubtreeSkipped("attempt_page")
		return
	}
	if err := o.store.Save(ctx, path.Join(target.Path, "attempt.html"), []byte(rendered)); err != nil {
		log.Warn("attempt save failed", zap.Error(err))
		return
	}
	metrics.ArtifactSaved("attempt")
}

// downloadPDF fetches one uploaded PDF, applies any grader annotations and
// stores it under its original (sanitized) filename.
func (o *Orchestrator) downloadPDF(ctx context.Context, doc *goquery.Document, dataURL string, target SubmissionTarget) {
	log := o.logger.With(zap.String("target", target.Path), zap.String("data_url", dataURL))
	fullURL := o.client.Resolve(dataURL)
	name := pdfFilename(fullURL)

	data, err := o.client.GetBytes(ctx, fullURL)
	if err != nil {
		log.Warn("pdf download failed", zap.Error(err))
		metrics.SubtreeSkipped("pdf_fetch")
		return
	}
	metrics.PageFetched("pdf")

	records := o.fetchAnnotations(ctx, doc, dataURL, log)
	out := data
	if len(records) > 0 {
		annotated, err := o.pdfs.Annotate(data, records, doc, name)
		if err != nil {
			log.Warn("pdf annotation failed, saving original", zap.Error(err))
			metrics.Annotation("failed")
		} else {
			out = annotated
		}
	}

	if err := o.store.Save(ctx, path.Join(target.Path, name), out); err != nil {
		log.Warn("pdf save failed", zap.Error(err))
		return
	}
	metrics.ArtifactSaved("pdf")
	log.Info("archived pdf", zap.String("filename", name), zap.Int("annotations", len(records)))
}

// fetchAnnotations retrieves the annotation records for one upload, if its
// download button advertises any annotated pages.
func (o *Orchestrator) fetchAnnotations(ctx context.Context, doc *goquery.Document, dataURL string, log *zap.Logger) []annotate.Record {
	uploadID, pagesHint, ok := scrape.AnnotationButton(doc, dataURL)
	if !ok {
		return nil
	}
	var pages []int
	if err := json.Unmarshal([]byte(pagesHint), &pages); err != nil || len(pages) == 0 {
		return nil
	}
	raw, err := o.client.GetBytes(ctx, o.client.Resolve("/uploads/"+uploadID+"/annotations"))
	if err != nil {
		log.Warn("annotation fetch failed", zap.String("upload_id", uploadID), zap.Error(err))
		metrics.Annotation("fetch_failed")
		return nil
	}
	records, err := annotate.ParseRecords(raw)
	if err != nil {
		log.Warn("annotation payload unreadable", zap.String("upload_id", uploadID), zap.Error(err))
		metrics.Annotation("unreadable")
		return nil
	}
	return records
}

// dump persists a raw page for offline inspection of an unexpected layout.
func (o *Orchestrator) dump(ctx context.Context, objectName, content, category string) {
	metrics.SubtreeSkipped(category)
	if err := o.store.Save(ctx, objectName, []byte(content)); err != nil {
		o.logger.Warn("diagnostic dump failed", zap.String("object", objectName), zap.Error(err))
		return
	}
	metrics.ArtifactSaved("diagnostic")
}

// splitGradingView splits a grading view URL into the parent collection URL
// and the trailing id, dropping any query string.
func splitGradingView(rawURL string) (base, id string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	u.RawQuery = ""
	u.Fragment = ""
	trimmed := strings.TrimSuffix(u.String(), "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 || idx == len(trimmed)-1 {
		return "", "", fmt.Errorf("no id segment in %q", rawURL)
	}
	return trimmed[:idx], trimmed[idx+1:], nil
}

// pdfFilename extracts the original filename from a download URL's query,
// falling back to a placeholder name.
func pdfFilename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallbackPDFName
	}
	name := u.Query().Get("filename")
	if name == "" {
		return fallbackPDFName
	}
	return SanitizeFilename(name)
}

// assignmentSlug extracts the assignment id from a go_to URL, for
// namespacing diagnostic dumps. Falls back to a sanitized form of the whole
// URL when no id segment is found.
func assignmentSlug(assignmentURL string) string {
	u, err := url.Parse(assignmentURL)
	if err != nil {
		return SanitizeFilename(assignmentURL)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" && segments[i] != "go_to" {
			return SanitizeFilename(segments[i])
		}
	}
	return SanitizeFilename(assignmentURL)
}

// hrefPath returns the path component of an absolute URL, used to match
// anchors that carry site-relative hrefs.
func hrefPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
