// Package annotate downloads-side processing of ANS annotation payloads:
// parsing the annotation JSON into a tagged record union and overlaying
// point comments and freehand drawings onto submission PDFs.
package annotate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Kind tags an annotation record variant.
type Kind string

// Supported record kinds. Anything else is quarantined as KindUnknown at the
// parse boundary and reported, never rendered.
const (
	KindPoint   Kind = "point"
	KindDrawing Kind = "drawing"
	KindUnknown Kind = "unknown"
)

// Point is a single-location comment annotation.
type Point struct {
	UUID string  `json:"uuid"`
	Page int     `json:"page"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Drawing is a freehand multi-segment line annotation.
type Drawing struct {
	Page  int          `json:"page"`
	Lines [][2]float64 `json:"lines"`
	Color string       `json:"color"`
	Width float64      `json:"width"`
}

// Record is the tagged union of annotation variants. Exactly one of Point
// and Drawing is non-nil depending on Kind.
type Record struct {
	Kind    Kind
	RawType string
	Point   *Point
	Drawing *Drawing
}

// Page returns the 1-indexed page the record targets, or 0 for unknown
// records.
func (r Record) Page() int {
	switch r.Kind {
	case KindPoint:
		return r.Point.Page
	case KindDrawing:
		return r.Drawing.Page
	default:
		return 0
	}
}

type payload struct {
	Content []json.RawMessage `json:"content"`
}

type typeProbe struct {
	Type string `json:"type"`
}

// ParseRecords decodes the platform's annotation JSON into typed records.
// Malformed entries degrade to KindUnknown instead of failing the payload.
func ParseRecords(data []byte) ([]Record, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode annotation payload: %w", err)
	}

	records := make([]Record, 0, len(p.Content))
	for _, raw := range p.Content {
		var probe typeProbe
		if err := json.Unmarshal(raw, &probe); err != nil {
			records = append(records, Record{Kind: KindUnknown})
			continue
		}
		switch probe.Type {
		case string(KindPoint):
			var pt Point
			if err := json.Unmarshal(raw, &pt); err != nil {
				records = append(records, Record{Kind: KindUnknown, RawType: probe.Type})
				continue
			}
			records = append(records, Record{Kind: KindPoint, RawType: probe.Type, Point: &pt})
		case string(KindDrawing):
			var d Drawing
			if err := json.Unmarshal(raw, &d); err != nil {
				records = append(records, Record{Kind: KindUnknown, RawType: probe.Type})
				continue
			}
			records = append(records, Record{Kind: KindDrawing, RawType: probe.Type, Drawing: &d})
		default:
			records = append(records, Record{Kind: KindUnknown, RawType: probe.Type})
		}
	}
	return records, nil
}

// CommentBody finds the in-page comment article matching a point
// annotation's uuid and returns its trimmed text.
func CommentBody(doc *goquery.Document, uuid string) (string, bool) {
	article := doc.Find(`turbo-frame[id="annotation_` + uuid + `"] article`).First()
	if article.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(article.Text()), true
}

// partitionByPage splits records into those targeting an existing page and
// those whose page exceeds pageCount. Unknown records land in neither list.
func partitionByPage(records []Record, pageCount int) (renderable, outOfRange, unknown []Record) {
	for _, r := range records {
		switch {
		case r.Kind == KindUnknown:
			unknown = append(unknown, r)
		case r.Page() < 1 || r.Page() > pageCount:
			outOfRange = append(outOfRange, r)
		default:
			renderable = append(renderable, r)
		}
	}
	return renderable, outOfRange, unknown
}
