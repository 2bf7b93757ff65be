// Package printer renders previously archived HTML artifacts to PDF with a
// headless Chrome instance.
package printer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the behavior of the printer.
type Config struct {
	NavigationTimeout time.Duration
}

// Printer converts archived HTML files to PDF, one browser tab per file.
type Printer struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// New creates a Printer with its own Chrome exec allocator.
func New(cfg Config, logger *zap.Logger) *Printer {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Printer{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		logger:      logger,
	}
}

// Close cancels the allocator context.
func (p *Printer) Close() {
	p.allocCancel()
}

// Run prints every .html file under baseDir to a sibling .pdf file. A file
// that fails to print is logged and skipped.
func (p *Printer) Run(ctx context.Context, baseDir string) error {
	files, err := findHTMLFiles(baseDir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		p.logger.Warn("no html files to print", zap.String("base_dir", baseDir))
		return nil
	}
	p.logger.Info("printing archived pages", zap.Int("files", len(files)))

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.printFile(ctx, file); err != nil {
			p.logger.Warn("print failed", zap.String("file", file), zap.Error(err))
			continue
		}
		p.logger.Info("printed", zap.String("file", pdfPath(file)))
	}
	return nil
}

func (p *Printer) printFile(ctx context.Context, htmlPath string) error {
	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return err
	}

	taskCtx, taskCancel := chromedp.NewContext(p.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, p.cfg.NavigationTimeout)
	defer cancel()

	// Abort early when the caller's context goes away; the task context
	// is not derived from it because the allocator must own the browser.
	stop := context.AfterFunc(ctx, taskCancel)
	defer stop()

	var pdf []byte
	err = chromedp.Run(taskCtx,
		chromedp.Navigate("file://"+abs),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(false).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return os.WriteFile(pdfPath(htmlPath), pdf, 0o644)
}

// findHTMLFiles returns every .html file under baseDir, sorted by walk
// order.
func findHTMLFiles(baseDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".html") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", baseDir, err)
	}
	return files, nil
}

// pdfPath maps an html file path to its sibling pdf path.
func pdfPath(htmlPath string) string {
	return strings.TrimSuffix(htmlPath, filepath.Ext(htmlPath)) + ".pdf"
}
