// =============================================================================
// docbatch - Rasterizer
// =============================================================================
//
// This module renders the converted PDFs to JPEG images.
//
// NAMING:
//   single-page PDF  ->  <JPGDir>/<stem>.jpg
//   multi-page PDF   ->  <JPGDir>/<stem><PageSuffix>.jpg   (e.g. _第2页)
//
// A PDF that cannot be rendered or written is a RasterizationError: it is
// logged, counted as failed and the stage continues. A missing PDF folder
// means the convert stage produced nothing; the stage reports zero work.
//
// =============================================================================

package raster

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// Options controls the rasterize stage.
type Options struct {
	InputDir   string
	OutputDir  string
	PageSuffix string
	Quality    int
}

// Rasterizer runs the PDF to JPEG stage.
type Rasterizer struct {
	renderer Renderer
	opts     Options
	logger   *slog.Logger
}

// New creates a Rasterizer.
func New(renderer Renderer, opts Options, logger *slog.Logger) *Rasterizer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PageSuffix == "" {
		opts.PageSuffix = "_第%d页"
	}
	if opts.Quality == 0 {
		opts.Quality = 95
	}
	return &Rasterizer{renderer: renderer, opts: opts, logger: logger}
}

// NewFromConfig builds a pdftoppm-backed Rasterizer from pdfDir to jpgDir.
func NewFromConfig(cfg *config.Config, pdfDir, jpgDir string, logger *slog.Logger) (*Rasterizer, error) {
	r := cfg.Raster
	renderer, err := NewPoppler(r.PdftoppmPath, r.DPI, r.Timeout)
	if err != nil {
		return nil, err
	}
	return New(renderer, Options{
		InputDir:   pdfDir,
		OutputDir:  jpgDir,
		PageSuffix: r.PageSuffix,
		Quality:    r.Quality,
	}, logger), nil
}

// PageFileName names the image for page (1-based) of a PDF with pageCount pages.
func PageFileName(stem, suffix string, page, pageCount int) string {
	if pageCount <= 1 {
		return stem + ".jpg"
	}
	return stem + fmt.Sprintf(suffix, page) + ".jpg"
}

// Run renders every PDF in the input folder.
//
// RETURNS:
//   - One FileResult per PDF; OutputFiles lists the page images.
//   - Stage counts.
//   - An error only for an unreadable input folder or cancellation.
func (r *Rasterizer) Run(ctx context.Context) ([]types.FileResult, types.StageStats, error) {
	start := time.Now()
	stats := types.StageStats{Stage: types.StageRasterize}

	pdfs, err := utils.DiscoverFiles(r.opts.InputDir, []string{".pdf"}, nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("pdf folder not found, nothing to rasterize", "dir", r.opts.InputDir)
			return nil, stats, nil
		}
		return nil, stats, err
	}
	if len(pdfs) == 0 {
		r.logger.Info("no pdf files to rasterize", "dir", r.opts.InputDir)
		return nil, stats, nil
	}
	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, stats, fmt.Errorf("create jpg directory: %w", err)
	}

	r.logger.Info("rasterizing pdf files", "files", len(pdfs), "output_dir", r.opts.OutputDir)

	results := make([]types.FileResult, 0, len(pdfs))
	for _, pdf := range pdfs {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return results, stats, err
		}

		result := r.rasterize(ctx, pdf)
		results = append(results, result)
		stats.Record(result)

		if result.Success {
			r.logger.Info("rasterized pdf", "file", filepath.Base(pdf), "pages", len(result.OutputFiles))
		} else {
			r.logger.Error("rasterization failed", "file", filepath.Base(pdf), "error", result.Error)
		}
	}

	stats.Duration = time.Since(start)
	r.logger.Info("rasterization complete", "succeeded", stats.Succeeded, "failed", stats.Failed, "total", stats.Total)
	return results, stats, ctx.Err()
}

func (r *Rasterizer) rasterize(ctx context.Context, pdf string) types.FileResult {
	result := types.FileResult{FilePath: pdf, Attempts: 1}

	pages, err := r.renderer.RenderPages(ctx, pdf)
	if err != nil {
		rerr := &types.RasterizationError{File: pdf, Cause: err}
		var pageErr *PageError
		if errors.As(err, &pageErr) {
			rerr.Page = pageErr.Page
		}
		result.Error = rerr
		return result
	}
	if len(pages) == 0 {
		result.Error = &types.RasterizationError{File: pdf, Cause: errors.New("renderer returned no pages")}
		return result
	}

	stem := utils.Stem(pdf)
	for i, img := range pages {
		out := filepath.Join(r.opts.OutputDir, PageFileName(stem, r.opts.PageSuffix, i+1, len(pages)))
		if err := imaging.Save(img, out, imaging.JPEGQuality(r.opts.Quality)); err != nil {
			result.Error = &types.RasterizationError{File: pdf, Page: i + 1, Cause: err}
			return result
		}
		result.OutputFiles = append(result.OutputFiles, out)
		r.logger.Debug("saved page image", "file", filepath.Base(out), "page", i+1)
	}

	result.Success = true
	return result
}
