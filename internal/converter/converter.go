// =============================================================================
// docbatch - Format Converter
// =============================================================================
//
// This module exports the generated Word documents to PDF through an office
// engine session.
//
// CONVERSION PROCESS:
//   1. Discover .doc/.docx files in the working directory, skipping the
//      template and Word lock files (~$...)
//   2. Open one engine session for the whole stage
//   3. For each document, export to <PDFDir>/<stem>.pdf with up to
//      MaxAttempts tries and a fixed backoff between them
//   4. Close the session on every exit path
//
// A document that exhausts its attempts is recorded as a ConversionError and
// the stage moves on. Only a session that cannot be opened (for example a
// missing soffice binary) or a cancelled context stops the stage.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/docx"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// DocumentExtensions are the inputs the converter picks up.
var DocumentExtensions = []string{".doc", ".docx"}

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls a conversion stage.
type Options struct {
	// InputDir is scanned for documents (the working directory).
	InputDir string

	// OutputDir receives the PDFs, e.g. <workdir>/20240115PDF.
	OutputDir string

	// Template is the template file name, never converted.
	Template string

	MaxAttempts int
	Backoff     time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter runs the Word to PDF stage.
type Converter struct {
	engine Engine
	opts   Options
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Converter around engine.
func New(engine Engine, opts Options, logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Converter{
		engine: engine,
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}
}

// NewFromConfig builds a LibreOffice-backed Converter writing into pdfDir.
func NewFromConfig(cfg *config.Config, pdfDir string, logger *slog.Logger) (*Converter, error) {
	engine, err := NewLibreOffice(cfg.Converter.SofficePath, cfg.Converter.Timeout)
	if err != nil {
		return nil, err
	}
	return New(engine, Options{
		InputDir:    cfg.WorkDir,
		OutputDir:   pdfDir,
		Template:    filepath.Base(cfg.Template),
		MaxAttempts: cfg.Converter.MaxAttempts,
		Backoff:     cfg.Converter.RetryBackoff,
	}, logger), nil
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Discover lists the documents the stage would convert, sorted by name.
// Word lock files, hidden files (including unfinished saves) and the
// template are skipped.
func (c *Converter) Discover() ([]string, error) {
	files, err := utils.DiscoverFiles(c.opts.InputDir, DocumentExtensions, func(name string) bool {
		return docx.IsLockFile(name) || strings.HasPrefix(name, ".") || strings.EqualFold(name, c.opts.Template)
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Run converts every discovered document.
//
// RETURNS:
//   - One FileResult per document, in discovery order.
//   - Stage counts.
//   - An error only when the stage itself cannot proceed: discovery or
//     session failure, or cancellation. Per-document failures are reported
//     in the results.
func (c *Converter) Run(ctx context.Context) ([]types.FileResult, types.StageStats, error) {
	start := time.Now()
	stats := types.StageStats{Stage: types.StageConvert}

	docs, err := c.Discover()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("working directory not found, nothing to convert", "dir", c.opts.InputDir)
			return nil, stats, nil
		}
		return nil, stats, err
	}
	if len(docs) == 0 {
		c.logger.Info("no documents to convert", "dir", c.opts.InputDir)
		return nil, stats, nil
	}

	c.logger.Info("converting documents to pdf", "documents", len(docs), "output_dir", c.opts.OutputDir)

	session, err := c.engine.Open(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("open office session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			c.logger.Warn("close office session", "error", err)
		}
	}()

	results := make([]types.FileResult, 0, len(docs))
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			stats.Duration = time.Since(start)
			return results, stats, err
		}

		result := c.convertWithRetry(ctx, session, doc)
		results = append(results, result)
		stats.Record(result)

		if result.Success {
			c.logger.Info("converted document",
				"file", filepath.Base(doc),
				"progress", fmt.Sprintf("%d/%d", i+1, len(docs)),
				"attempts", result.Attempts,
			)
		} else {
			c.logger.Error("conversion failed", "file", filepath.Base(doc), "error", result.Error)
		}
	}

	stats.Duration = time.Since(start)
	c.logger.Info("conversion complete", "succeeded", stats.Succeeded, "failed", stats.Failed, "total", stats.Total)
	return results, stats, ctx.Err()
}

// convertWithRetry exports one document, retrying with a fixed backoff.
func (c *Converter) convertWithRetry(ctx context.Context, session Session, doc string) types.FileResult {
	result := types.FileResult{FilePath: doc}

	var lastErr error
	for attempt := 1; attempt <= c.opts.MaxAttempts; attempt++ {
		result.Attempts = attempt

		pdfPath, err := session.ConvertToPDF(ctx, doc, c.opts.OutputDir)
		if err == nil {
			result.Success = true
			result.OutputFiles = []string{pdfPath}
			return result
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		if attempt < c.opts.MaxAttempts {
			c.logger.Warn("conversion attempt failed, retrying",
				"file", filepath.Base(doc),
				"attempt", attempt,
				"max_attempts", c.opts.MaxAttempts,
				"error", err,
			)
			if err := c.sleep(ctx, c.opts.Backoff); err != nil {
				break
			}
		}
	}

	result.Error = &types.ConversionError{File: doc, Attempts: result.Attempts, Cause: lastErr}
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
