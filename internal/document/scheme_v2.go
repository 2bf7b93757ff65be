package document

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// v2 panels address their sections by element id instead of comment
// markers.
var sectionIDsV2 = []string{"question-header", "subquestion-header", "criteria"}

// AppendV2 moves a v2 review panel's sections into the page: the
// id-addressed headers and criteria, the score-adjustment control block and
// the score summary. fullPage is the complete question page, needed for the
// question-number badge that lives outside the panel.
func AppendV2(page *Page, panel *goquery.Selection, fullPage *goquery.Document) {
	for _, id := range sectionIDsV2 {
		element := panel.Find("#" + id).First()
		if element.Length() == 0 {
			continue
		}
		if id == "subquestion-header" {
			if number := questionNumber(fullPage); number != "" {
				element.PrependHtml(`<div class="text-semi-bold mr-3"> ` + number + ` </div>`)
			}
		}
		page.AppendMain(element)
	}

	if score := panel.Find(`div[data-controller="score"]`).First(); score.Length() > 0 {
		// Carry the separator too for visual consistency.
		if separator := score.PrevAllFiltered("div.border-top").First(); separator.Length() > 0 {
			page.AppendMain(separator)
		}
		page.AppendMain(score)
	}

	if frame := panel.Find(`turbo-frame[id^="adjustment_"]`).First(); frame.Length() > 0 {
		page.AppendMain(frame)
	} else if wrapper := panel.Find("[data-js-adjustments-wrapper]").First(); wrapper.Length() > 0 {
		page.AppendMain(wrapper)
	}

	summary := panel.Find(".score-summary").First()
	if summary.Length() == 0 {
		summary = panel.Find(`turbo-frame[id^="score_submission_"]`).First()
	}
	if summary.Length() > 0 {
		page.AppendMain(summary)
	}
}

// questionNumber reads the question-number badge text next to the
// question-button-indicator marker, if the page carries one.
func questionNumber(fullPage *goquery.Document) string {
	indicator := fullPage.Find("div.question-button-indicator").First()
	if indicator.Length() == 0 {
		return ""
	}
	for s := indicator.Get(0).NextSibling; s != nil; s = s.NextSibling {
		text := siblingText(s)
		if text != "" {
			return text
		}
	}
	return ""
}

func siblingText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return strings.TrimSpace(n.Data)
	case html.ElementNode:
		var sb strings.Builder
		collectText(n, &sb)
		return strings.TrimSpace(sb.String())
	default:
		return ""
	}
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}
