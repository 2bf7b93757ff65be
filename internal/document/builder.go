// Package document reconstructs portable HTML artifacts from scraped page
// fragments. Each submission yields a synthetic page that clones the
// original head (for asset and style parity) and body attributes, with a
// single <main> region holding the archived content.
package document

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

const skeleton = `<!DOCTYPE html>
<html lang="en">
<head></head>
<body><main></main></body>
</html>`

// printStyle keeps the archived page readable on screen, in print and on
// small viewports.
const printStyle = `<style>
    body {
        padding: 2rem;
    }
    @media print {
        body {
            padding: 2cm;
        }
    }
    @media (max-width: 420px) {
        body {
            padding: 0 2rem;
        }
    }
</style>`

// localeMarker is consumed by the platform's i18n bootstrap when the
// archived page is rendered.
const localeMarker = `<div data-js-i18n data-default-locale="nl" data-locale="nl"></div>`

// Page is a synthetic document under construction.
type Page struct {
	doc       *goquery.Document
	head      *goquery.Selection
	body      *goquery.Selection
	main      *goquery.Selection
	logger    *zap.Logger
	finalized bool
}

// NewPage builds the skeleton and clones head contents and body attributes
// from the original page.
func NewPage(original *goquery.Document, logger *zap.Logger) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(skeleton))
	if err != nil {
		return nil, fmt.Errorf("parse page skeleton: %w", err)
	}
	p := &Page{
		doc:    doc,
		head:   doc.Find("head"),
		body:   doc.Find("body"),
		main:   doc.Find("main"),
		logger: logger,
	}

	origHead := original.Find("head")
	if origHead.Length() == 0 {
		logger.Warn("head tag not found, javascript and css assets missing, page may not render correctly")
	} else {
		p.head.AppendSelection(origHead.Contents().Clone())
	}
	p.head.AppendHtml(printStyle)

	origBody := original.Find("body")
	if origBody.Length() == 0 {
		logger.Warn("body tag not found, attributes may be missing and page may not render correctly")
	} else {
		for _, attr := range origBody.Get(0).Attr {
			p.body.SetAttr(attr.Key, attr.Val)
		}
	}
	return p, nil
}

// AppendMain moves the selection's nodes into the page's <main> region.
func (p *Page) AppendMain(sel *goquery.Selection) {
	p.main.AppendSelection(sel)
}

// AppendMainNode moves a single node into the page's <main> region.
func (p *Page) AppendMainNode(n *html.Node) {
	p.main.AppendNodes(n)
}

// AppendMainHtml appends an HTML fragment to the page's <main> region.
func (p *Page) AppendMainHtml(fragment string) {
	p.main.AppendHtml(fragment)
}

// MainChildCount returns the number of elements appended to <main>.
func (p *Page) MainChildCount() int {
	return p.main.Children().Length()
}

// Render serializes the composed document. The locale marker is appended
// once, after all content.
func (p *Page) Render() (string, error) {
	if !p.finalized {
		p.body.AppendHtml(localeMarker)
		p.finalized = true
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, p.doc.Get(0)); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}
