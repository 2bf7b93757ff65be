// Package scrape extracts typed link sets and grading-panel structure from
// ANS hypermedia pages. All extractors are pure functions over a parsed
// document; absence of matches is a valid empty result, never an error.
package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Course is a course anchor found on the course-list page.
type Course struct {
	Name string
	Href string
}

// coursesRoutingPrefix is the href prefix of course anchors on the listing.
const coursesRoutingPrefix = "/routing/courses/"

// ParseDocument parses an HTML page into a goquery document.
func ParseDocument(page string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

// CourseLinks returns every course anchor on a course-list page in document
// order.
func CourseLinks(doc *goquery.Document) []Course {
	var courses []Course
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.HasPrefix(href, coursesRoutingPrefix) {
			return
		}
		courses = append(courses, Course{
			Name: strings.TrimSpace(a.Text()),
			Href: href,
		})
	})
	return courses
}

// NextPageLink finds the "show more" pagination anchor on a course-list page.
func NextPageLink(doc *goquery.Document, coursesPath string) (string, bool) {
	prefix := "/" + strings.Trim(coursesPath, "/")
	var href string
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		h, ok := a.Attr("href")
		if !ok || !strings.HasPrefix(h, prefix) {
			return true
		}
		if !strings.Contains(strings.ToLower(strings.TrimSpace(a.Text())), "show more") {
			return true
		}
		href = h
		return false
	})
	return href, href != ""
}

// AssignmentLinks returns the "go to assignment" hrefs on a course page.
func AssignmentLinks(doc *goquery.Document, coursesPath string) []string {
	prefix := "/" + strings.Trim(coursesPath, "/")
	return anchorHrefs(doc, func(href string) bool {
		return strings.HasPrefix(href, prefix) && strings.HasSuffix(href, "go_to")
	})
}

// ResultsLinks returns the "results" hrefs on an assignment page.
func ResultsLinks(doc *goquery.Document) []string {
	return anchorHrefs(doc, func(href string) bool {
		return strings.HasPrefix(href, "/results/")
	})
}

// GradingViewLinks returns the grading-view hrefs on a results page.
func GradingViewLinks(doc *goquery.Document) []string {
	return anchorHrefs(doc, func(href string) bool {
		return strings.Contains(href, "/grading/view")
	})
}

func anchorHrefs(doc *goquery.Document, match func(string) bool) []string {
	var hrefs []string
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		if href, ok := a.Attr("href"); ok && match(href) {
			hrefs = append(hrefs, href)
		}
	})
	return hrefs
}

// SubmissionNames recovers the course and assignment display names from an
// assignment page. The page carries an anchor back to the current course;
// the two sibling spans that follow it hold the course name and the
// submission name.
func SubmissionNames(doc *goquery.Document, coursePath string) (course, assignment string, ok bool) {
	var anchor *goquery.Selection
	doc.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, has := a.Attr("href"); has && strings.HasPrefix(href, coursePath) {
			anchor = a
			return false
		}
		return true
	})
	if anchor == nil {
		return "", "", false
	}
	spans := anchor.NextAllFiltered("span")
	if spans.Length() < 2 {
		return "", "", false
	}
	course = strings.TrimSpace(spans.Eq(0).Text())
	assignment = strings.TrimSpace(spans.Eq(1).Text())
	if course == "" || assignment == "" {
		return "", "", false
	}
	return course, assignment, true
}

// QuestionIDs returns the numeric submission id of each question button on a
// submission-summary page, in document order.
func QuestionIDs(doc *goquery.Document) []string {
	var ids []string
	doc.Find(`div[data-cy="submission-button"] a`).Each(func(_ int, a *goquery.Selection) {
		if id, ok := a.Attr("data-submission-id"); ok && id != "" {
			ids = append(ids, id)
		}
	})
	return ids
}

// PDFButtonURLs returns the download URL of each PDF button on a submission
// page.
func PDFButtonURLs(doc *goquery.Document) []string {
	var urls []string
	doc.Find("button").Each(func(_ int, b *goquery.Selection) {
		if b.AttrOr("data-file-type", "") != "pdf" {
			return
		}
		if b.AttrOr("data-file-extension", "") != ".pdf" {
			return
		}
		u := b.AttrOr("data-url", "")
		if strings.Contains(u, "pdf") {
			urls = append(urls, u)
		}
	})
	return urls
}

// HasAttemptMarker reports whether the page carries the submission-attempt
// container.
func HasAttemptMarker(doc *goquery.Document) bool {
	return doc.Find("div[data-current-user-id][data-assignment-id]").Length() > 0
}

// AnnotationButton locates the download button for dataURL and returns its
// upload id plus the raw pages-with-annotations hint. ok is false when the
// button is missing or carries no annotation hint.
func AnnotationButton(doc *goquery.Document, dataURL string) (uploadID, pagesHint string, ok bool) {
	var found *goquery.Selection
	doc.Find("button[data-pages-with-annotations]").EachWithBreak(func(_ int, b *goquery.Selection) bool {
		if b.AttrOr("data-url", "") == dataURL {
			found = b
			return false
		}
		return true
	})
	if found == nil {
		return "", "", false
	}
	uploadID = found.AttrOr("data-upload-id", "")
	pagesHint = found.AttrOr("data-pages-with-annotations", "")
	if uploadID == "" || pagesHint == "" {
		return "", "", false
	}
	return uploadID, pagesHint, true
}

// SwitchForm scrapes the grading-scheme switch form: its action URL and the
// CSRF authenticity token.
func SwitchForm(doc *goquery.Document) (action, token string, ok bool) {
	form := doc.Find("form.button_to[action]").First()
	if form.Length() == 0 {
		return "", "", false
	}
	action = form.AttrOr("action", "")
	token = form.Find(`input[name="authenticity_token"]`).AttrOr("value", "")
	if action == "" || token == "" {
		return "", "", false
	}
	return action, token, true
}
