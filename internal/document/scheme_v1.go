package document

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// SectionKind names a v1 grading-panel section, delimited by an HTML
// comment marker preceding its content sibling.
type SectionKind string

// Comment markers the platform emits in v1 grading panels.
const (
	SectionQuestion           SectionKind = "QUESTION"
	SectionSubquestion        SectionKind = "SUBQUESTION"
	SectionGradingDescription SectionKind = "GRADING DESCRIPTION"
	SectionObjectives         SectionKind = "OBJECTIVES"
	SectionSlider             SectionKind = "SLIDER"
	SectionPoints             SectionKind = "POINTS"
	SectionCriteria           SectionKind = "CRITERIA"
)

var knownSections = map[SectionKind]struct{}{
	SectionQuestion:           {},
	SectionSubquestion:        {},
	SectionGradingDescription: {},
	SectionObjectives:         {},
	SectionSlider:             {},
	SectionPoints:             {},
	SectionCriteria:           {},
}

// archivedSections are the markers whose content is carried into the
// composed document. The transform per kind is identity today; new section
// types become a data addition here rather than a new code branch.
var archivedSections = map[SectionKind]struct{}{
	SectionCriteria:           {},
	SectionSubquestion:        {},
	SectionGradingDescription: {},
}

// Section is one recognized or unrecognized v1 panel section.
type Section struct {
	Kind       SectionKind
	Recognized bool
	// Content is the marker's following sibling element; nil when the
	// marker has no content or is not archived.
	Content *html.Node
}

// ParseSectionsV1 walks a v1 grading panel and returns the archived
// sections in document order plus the raw text of any unrecognized comment
// markers.
func ParseSectionsV1(panel *goquery.Selection) (sections []Section, unknown []string) {
	for _, root := range panel.Nodes {
		walkComments(root, func(comment *html.Node) {
			kind := SectionKind(strings.TrimSpace(comment.Data))
			if _, known := knownSections[kind]; !known {
				unknown = append(unknown, string(kind))
				return
			}
			if _, archived := archivedSections[kind]; !archived {
				return
			}
			sections = append(sections, Section{
				Kind:       kind,
				Recognized: true,
				Content:    nextElementSibling(comment),
			})
		})
	}
	return sections, unknown
}

// AppendV1 moves a v1 panel's archived sections into the page, followed by
// the panel's adjustments wrapper when present. It returns the unrecognized
// marker texts so the caller can dump the panel for inspection.
func AppendV1(page *Page, panel *goquery.Selection) []string {
	sections, unknown := ParseSectionsV1(panel)
	for _, section := range sections {
		if section.Content != nil {
			page.AppendMainNode(section.Content)
		}
	}
	if adjustments := panel.Find("[data-js-adjustments-wrapper]").First(); adjustments.Length() > 0 {
		page.AppendMain(adjustments)
	}
	return unknown
}

func walkComments(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.CommentNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkComments(c, visit)
	}
}

func nextElementSibling(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
