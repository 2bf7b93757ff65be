package scrape

import "github.com/PuerkitoBio/goquery"

// PanelKind identifies which grading-scheme variant a question page exposes.
type PanelKind int

// Exactly one variant is present per question page; PanelNone means the page
// exposes neither.
const (
	PanelNone PanelKind = iota
	PanelV1             // comment-marker panel, data-js-grading-panel
	PanelV2             // id-addressed panel, data-js-review-panel
)

func (k PanelKind) String() string {
	switch k {
	case PanelV1:
		return "v1"
	case PanelV2:
		return "v2"
	default:
		return "none"
	}
}

// DetectPanel resolves the grading-scheme variant of a question page once,
// so later extraction cannot silently fall through both branches.
func DetectPanel(doc *goquery.Document) PanelKind {
	if PanelsV1(doc).Length() > 0 {
		return PanelV1
	}
	if PanelsV2(doc).Length() > 0 {
		return PanelV2
	}
	return PanelNone
}

// PanelsV1 returns the comment-marker grading panels on a page.
func PanelsV1(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div[data-js-grading-panel]")
}

// PanelsV2 returns the id-addressed review panels on a page.
func PanelsV2(doc *goquery.Document) *goquery.Selection {
	return doc.Find("div[data-js-review-panel]")
}
