// =============================================================================
// docbatch - Stamper
// =============================================================================
//
// This module overlays a stamp image onto every rasterized page.
//
// STAMP SOURCES:
//   per-company : <StampDir>/<company>.png, where company is the file name
//                 prefix before the first "_"
//   global      : a single PNG (default yinzhang.png) for every image
//
// COMPOSITING:
//   The stamp's alpha is scaled by Opacity, the stamp is placed with its
//   top-left corner at (OffsetX, OffsetY), the result is flattened onto an
//   opaque canvas and written as <OutputDir>/<stem><Suffix>.jpg.
//
// A missing per-company stamp skips that company's images and records the
// company for the summary. A missing stamp directory or global stamp is a
// fatal StampingError.
//
// =============================================================================

package stamp

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/generator"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// ImageExtensions are the inputs the stamper picks up.
var ImageExtensions = []string{".jpg", ".jpeg"}

// =============================================================================
// OPTIONS & REPORT
// =============================================================================

// Options controls the stamp stage.
type Options struct {
	// InputDir holds the rasterized pages.
	InputDir  string
	OutputDir string
	Suffix    string

	// Mode is config.StampModePerCompany or config.StampModeGlobal.
	Mode       string
	StampDir   string
	GlobalFile string

	Offset  image.Point
	Opacity float64
	Quality int
}

// Report is the outcome of a stamp stage.
type Report struct {
	Results []types.FileResult
	Stats   types.StageStats

	// MissingCompanies lists companies without a stamp image, sorted.
	MissingCompanies []string

	// StampDir is where missing stamps should be placed.
	StampDir string
}

// =============================================================================
// STAMPER
// =============================================================================

// Stamper runs the stamp stage.
type Stamper struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Stamper.
func New(opts Options, logger *slog.Logger) *Stamper {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Quality == 0 {
		opts.Quality = 95
	}
	return &Stamper{opts: opts, logger: logger}
}

// NewFromConfig builds a Stamper reading jpgDir.
func NewFromConfig(cfg *config.Config, jpgDir string, logger *slog.Logger) *Stamper {
	s := cfg.Stamp
	return New(Options{
		InputDir:   jpgDir,
		OutputDir:  cfg.Path(s.OutputDir),
		Suffix:     s.OutputSuffix,
		Mode:       s.Mode,
		StampDir:   cfg.Path(s.Dir),
		GlobalFile: cfg.Path(s.GlobalFile),
		Offset:     image.Pt(s.OffsetX, s.OffsetY),
		Opacity:    s.Opacity,
		Quality:    s.Quality,
	}, logger)
}

// Run stamps every image in the input folder.
//
// RETURNS:
//   - The stage report (results, counts, missing companies). It is nil when
//     the stamp source is missing.
//   - A *types.StampingError when the stamp directory or global stamp is
//     missing, or the context error if cancelled.
func (s *Stamper) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{
		Stats:    types.StageStats{Stage: types.StageStamp},
		StampDir: s.opts.StampDir,
	}

	source, err := s.stampSource()
	if err != nil {
		return nil, err
	}

	images, err := utils.DiscoverFiles(s.opts.InputDir, ImageExtensions, nil)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("jpg folder not found, nothing to stamp", "dir", s.opts.InputDir)
			return report, nil
		}
		return report, err
	}
	if len(images) == 0 {
		s.logger.Info("no images to stamp", "dir", s.opts.InputDir)
		return report, nil
	}
	if err := os.MkdirAll(s.opts.OutputDir, 0o755); err != nil {
		return report, fmt.Errorf("create stamped output directory: %w", err)
	}

	s.logger.Info("stamping images", "images", len(images), "mode", s.opts.Mode, "output_dir", s.opts.OutputDir)

	missing := map[string]struct{}{}
	for _, path := range images {
		if err := ctx.Err(); err != nil {
			report.Stats.Duration = time.Since(start)
			return report, err
		}

		result := s.stampOne(source, path, missing)
		report.Results = append(report.Results, result)
		report.Stats.Record(result)
	}

	for company := range missing {
		report.MissingCompanies = append(report.MissingCompanies, company)
	}
	slices.Sort(report.MissingCompanies)
	report.Stats.Duration = time.Since(start)

	s.logger.Info("stamping complete",
		"succeeded", report.Stats.Succeeded,
		"failed", report.Stats.Failed,
		"skipped", report.Stats.Skipped,
		"total", report.Stats.Total,
	)
	if len(report.MissingCompanies) > 0 {
		s.logger.Warn("companies without a stamp image",
			"companies", strings.Join(report.MissingCompanies, ", "),
			"place_in", s.opts.StampDir,
		)
	}
	return report, nil
}

func (s *Stamper) stampOne(source *stampSource, path string, missing map[string]struct{}) types.FileResult {
	result := types.FileResult{FilePath: path, Attempts: 1}
	company := generator.CompanyFromFileName(filepath.Base(path))

	stampImg, err := source.lookup(company)
	switch {
	case errors.Is(err, errStampMissing):
		missing[company] = struct{}{}
		result.Skipped = true
		s.logger.Error("stamp image missing", "company", company, "file", filepath.Base(path))
		return result
	case err != nil:
		result.Error = &types.StampingError{File: path, Company: company, Cause: err}
		s.logger.Error("stamp image unreadable", "company", company, "error", err)
		return result
	}

	base, err := imaging.Open(path)
	if err != nil {
		result.Error = &types.StampingError{File: path, Company: company, Cause: err}
		s.logger.Error("open image", "file", filepath.Base(path), "error", err)
		return result
	}

	out := filepath.Join(s.opts.OutputDir, utils.Stem(path)+s.opts.Suffix+".jpg")
	stamped := Composite(base, stampImg, s.opts.Offset, s.opts.Opacity)
	if err := imaging.Save(stamped, out, imaging.JPEGQuality(s.opts.Quality)); err != nil {
		result.Error = &types.StampingError{File: path, Company: company, Cause: err}
		s.logger.Error("save stamped image", "file", filepath.Base(out), "error", err)
		return result
	}

	s.logger.Debug("stamped image", "file", filepath.Base(out), "company", company)
	result.Success = true
	result.OutputFiles = []string{out}
	return result
}

// =============================================================================
// COMPOSITING
// =============================================================================

// Composite overlays stamp onto base at offset with its alpha scaled by
// opacity, and returns an opaque image the size of base.
func Composite(base, stamp image.Image, offset image.Point, opacity float64) *image.NRGBA {
	bounds := base.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	canvas = imaging.Overlay(canvas, base, image.Pt(0, 0), 1.0)
	return imaging.Overlay(canvas, stamp, offset, opacity)
}

// =============================================================================
// STAMP SOURCES
// =============================================================================

var errStampMissing = errors.New("stamp image missing")

type stampSource struct {
	global image.Image
	dir    string
	cache  map[string]image.Image
}

// stampSource checks the configured stamp location and loads the global stamp.
func (s *Stamper) stampSource() (*stampSource, error) {
	switch s.opts.Mode {
	case config.StampModeGlobal:
		img, err := loadStamp(s.opts.GlobalFile)
		if err != nil {
			return nil, &types.StampingError{File: s.opts.GlobalFile, Cause: err}
		}
		return &stampSource{global: img}, nil
	default:
		if !utils.DirExists(s.opts.StampDir) {
			return nil, &types.StampingError{Cause: fmt.Errorf("stamp directory %s does not exist", s.opts.StampDir)}
		}
		return &stampSource{dir: s.opts.StampDir, cache: map[string]image.Image{}}, nil
	}
}

func (src *stampSource) lookup(company string) (image.Image, error) {
	if src.global != nil {
		return src.global, nil
	}
	if img, ok := src.cache[company]; ok {
		return img, nil
	}
	if company == "" {
		return nil, errStampMissing
	}
	path := filepath.Join(src.dir, company+".png")
	if !utils.FileExists(path) {
		return nil, errStampMissing
	}
	img, err := loadStamp(path)
	if err != nil {
		return nil, err
	}
	src.cache[company] = img
	return img, nil
}

// loadStamp opens a PNG stamp. Other formats are rejected.
func loadStamp(path string) (image.Image, error) {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		return nil, fmt.Errorf("stamp %s must be a PNG file", path)
	}
	if !utils.FileExists(path) {
		return nil, fmt.Errorf("stamp %s does not exist", path)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stamp: %w", err)
	}
	return img, nil
}
