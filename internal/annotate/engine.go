package annotate

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/PuerkitoBio/goquery"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"go.uber.org/zap"

	"ans-archiver/internal/metrics"
)

// annotationTitle marks overlays imported from the platform.
const annotationTitle = "Annotation from ANS"

// Engine overlays annotation records onto a submission PDF. One bad record
// never aborts the pass; it is logged and skipped.
type Engine struct {
	logger *zap.Logger
}

// NewEngine builds an Engine.
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Annotate applies the records to pdf and returns the modified document.
// page supplies the source HTML that holds the body text of point comments.
// The output always has the same page count as the input; if nothing is
// renderable the input bytes are returned unchanged.
func (e *Engine) Annotate(pdf []byte, records []Record, page *goquery.Document, name string) ([]byte, error) {
	if len(records) == 0 {
		return pdf, nil
	}

	pageCount, err := api.PageCount(bytes.NewReader(pdf), nil)
	if err != nil {
		return nil, fmt.Errorf("page count of %s: %w", name, err)
	}
	dims, err := api.PageDims(bytes.NewReader(pdf), nil)
	if err != nil {
		return nil, fmt.Errorf("page dimensions of %s: %w", name, err)
	}

	renderable, outOfRange, unknown := partitionByPage(records, pageCount)
	for _, r := range outOfRange {
		e.logger.Warn("annotation page exceeds document page count, skipping",
			zap.String("pdf", name),
			zap.Int("page", r.Page()),
			zap.Int("page_count", pageCount))
		metrics.Annotation("skipped")
	}
	if len(unknown) > 0 {
		kinds := make([]string, 0, len(unknown))
		for _, r := range unknown {
			kinds = append(kinds, r.RawType)
			metrics.Annotation("unknown")
		}
		e.logger.Warn("unprocessed annotation types",
			zap.String("pdf", name),
			zap.Strings("types", kinds))
	}

	current := pdf
	for _, r := range renderable {
		var (
			ann     model.AnnotationRenderer
			applied bool
		)
		switch r.Kind {
		case KindPoint:
			ann, applied = e.pointAnnotation(r.Point, page, dims, name)
		case KindDrawing:
			ann, applied = e.drawingAnnotation(r.Drawing, dims)
		}
		if !applied {
			metrics.Annotation("skipped")
			continue
		}

		var out bytes.Buffer
		pages := []string{strconv.Itoa(r.Page())}
		if err := api.AddAnnotations(bytes.NewReader(current), &out, pages, ann, nil); err != nil {
			e.logger.Warn("failed to apply annotation, skipping",
				zap.String("pdf", name),
				zap.Int("page", r.Page()),
				zap.Error(err))
			metrics.Annotation("skipped")
			continue
		}
		current = out.Bytes()
		metrics.Annotation("rendered")
	}
	return current, nil
}

// pointAnnotation builds the text-comment overlay for a point record. The
// body text comes from the matching comment article in the source page.
func (e *Engine) pointAnnotation(pt *Point, page *goquery.Document, dims []types.Dim, name string) (model.AnnotationRenderer, bool) {
	body, found := CommentBody(page, pt.UUID)
	if !found {
		e.logger.Warn("comment article not found for annotation, skipping",
			zap.String("pdf", name),
			zap.String("uuid", pt.UUID))
		return nil, false
	}

	// Platform coordinates are top-left based; PDF space is bottom-left.
	y := flipY(pt.Y, pageHeight(dims, pt.Page))
	rect := types.NewRectangle(pt.X, y, pt.X+20, y+20)
	ann := model.NewTextAnnotation(
		*rect,
		body,    // contents
		pt.UUID, // id
		"",      // modDate
		0,       // flags
		nil,     // background color
		annotationTitle,
		nil,     // popup
		nil,     // opacity
		"",      // rich content
		"",      // subject
		0, 0, 0, // border radii and width
		false, // displayOpen
		"Comment",
	)
	return ann, true
}

// drawingAnnotation builds the ink overlay for a drawing record: a single
// polyline through the record's coordinate pairs in order.
func (e *Engine) drawingAnnotation(d *Drawing, dims []types.Dim) (model.AnnotationRenderer, bool) {
	if len(d.Lines) < 2 {
		return nil, false
	}
	col, opacity, ok := strokeColor(d.Color)
	if !ok {
		e.logger.Warn("cannot parse drawing color, using default",
			zap.String("color", d.Color))
	}

	height := pageHeight(dims, d.Page)
	stroke := make([]float64, 0, len(d.Lines)*2)
	minX, minY := d.Lines[0][0], flipY(d.Lines[0][1], height)
	maxX, maxY := minX, minY
	for _, p := range d.Lines {
		x, y := p[0], flipY(p[1], height)
		stroke = append(stroke, x, y)
		minX, maxX = minFloat(minX, x), maxFloat(maxX, x)
		minY, maxY = minFloat(minY, y), maxFloat(maxY, y)
	}

	rect := types.NewRectangle(minX-d.Width, minY-d.Width, maxX+d.Width, maxY+d.Width)
	ann := model.NewInkAnnotation(
		*rect,
		"", // contents
		"", // id
		"", // modDate
		0,  // flags
		&col,
		annotationTitle,
		nil, // popup
		&opacity,
		"", // rich content
		"", // subject
		[]model.InkPath{stroke},
		d.Width,
		model.BSSolid,
	)
	return ann, true
}

// flipY converts a top-left based y coordinate into PDF space.
func flipY(y, pageHeight float64) float64 {
	return pageHeight - y
}

// pageHeight returns the height of the 1-indexed page, defaulting to A4
// when dimensions are unavailable.
func pageHeight(dims []types.Dim, page int) float64 {
	if page >= 1 && page <= len(dims) {
		return dims[page-1].Height
	}
	return 842 // A4 points
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
