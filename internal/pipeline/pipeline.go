// =============================================================================
// docbatch - Pipeline Orchestrator
// =============================================================================
//
// This module runs the four stages strictly in order:
//
//   generate  -> <workdir>/*.docx
//   convert   -> <workdir>/<YYYYMMDD>PDF/*.pdf
//   rasterize -> <workdir>/<YYYYMMDD>JPG/*.jpg
//   stamp     -> <workdir>/JPGOK/*_印章.jpg
//
// Each stage fully consumes the previous stage's folder before it starts, so
// any single stage can be re-run on its own. Fatal errors (validation,
// template, persistence, missing stamp source, cancellation) stop the run;
// per-file failures are collected in the Summary.
//
// =============================================================================

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/converter"
	"github.com/ginjaninja78/docbatch/internal/generator"
	"github.com/ginjaninja78/docbatch/internal/raster"
	"github.com/ginjaninja78/docbatch/internal/records"
	"github.com/ginjaninja78/docbatch/internal/stamp"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// AllStages is the pipeline order.
var AllStages = []types.Stage{
	types.StageGenerate,
	types.StageConvert,
	types.StageRasterize,
	types.StageStamp,
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options controls a pipeline run.
type Options struct {
	// DryRun plans documents without writing; later stages are skipped.
	DryRun bool

	// Engine and Renderer replace LibreOffice and pdftoppm when set.
	Engine   converter.Engine
	Renderer raster.Renderer

	// Now is the run clock. Defaults to time.Now.
	Now func() time.Time
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs stages against one working directory.
type Pipeline struct {
	cfg    *config.Config
	opts   Options
	files  *utils.FileManager
	logger *slog.Logger
	runID  string
	now    func() time.Time
}

// New creates a Pipeline. The dated folders are fixed at construction time.
func New(cfg *config.Config, runID string, logger *slog.Logger, opts Options) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:    cfg,
		opts:   opts,
		files:  utils.NewFileManager(cfg.WorkDir, now(), cfg.Stamp.OutputDir, cfg.LogDir),
		logger: logger,
		runID:  runID,
		now:    now,
	}
}

// Files returns the working directory layout.
func (p *Pipeline) Files() *utils.FileManager { return p.files }

// Run executes stages in pipeline order; no stages means all of them.
//
// RETURNS:
//   - The summary of everything that ran, also on error.
//   - The first fatal error.
func (p *Pipeline) Run(ctx context.Context, stages ...types.Stage) (*Summary, error) {
	start := time.Now()
	if len(stages) == 0 {
		stages = AllStages
	}
	summary := &Summary{RunID: p.runID, DryRun: p.opts.DryRun}
	defer func() { summary.Duration = time.Since(start) }()

	if !p.opts.DryRun {
		if err := p.files.EnsureDirectories(); err != nil {
			return summary, err
		}
	}

	for _, stage := range AllStages {
		if !slices.Contains(stages, stage) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if p.opts.DryRun && stage != types.StageGenerate {
			p.logger.Info("dry run, skipping stage", "stage", stage)
			continue
		}

		p.logger.Info("stage started", "stage", stage)
		err := p.runStage(ctx, stage, summary)
		if err != nil {
			p.logger.Error("stage aborted", "stage", stage, "error", err)
			return summary, fmt.Errorf("%s stage: %w", stage, err)
		}
	}

	if !p.opts.DryRun {
		path, err := utils.WriteSummaryLog(p.runID, summary.Entries(), summary.Notes(), p.files.LogDir, p.now())
		if err != nil {
			p.logger.Warn("write summary log", "error", err)
		} else {
			p.logger.Debug("summary written", "file", path)
		}
	}
	return summary, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage types.Stage, summary *Summary) error {
	switch stage {
	case types.StageGenerate:
		outputs, stats, err := p.generate(ctx)
		summary.Generated = outputs
		summary.add(stats, nil)
		return err

	case types.StageConvert:
		conv, err := p.converter()
		if err != nil {
			return err
		}
		results, stats, err := conv.Run(ctx)
		summary.add(stats, results)
		return err

	case types.StageRasterize:
		r, err := p.rasterizer()
		if err != nil {
			return err
		}
		results, stats, err := r.Run(ctx)
		summary.add(stats, results)
		return err

	case types.StageStamp:
		report, err := stamp.NewFromConfig(p.cfg, p.files.JPGDir, p.logger).Run(ctx)
		if report != nil {
			summary.add(report.Stats, report.Results)
			summary.MissingCompanies = report.MissingCompanies
			summary.StampDir = report.StampDir
		}
		return err
	}
	return fmt.Errorf("unknown stage %q", stage)
}

// =============================================================================
// STAGES
// =============================================================================

// LoadRecords reads and validates the record spreadsheet, logging warnings.
func (p *Pipeline) LoadRecords() (*records.Records, error) {
	path := p.cfg.Path(p.cfg.DataFile)
	rec, err := records.Load(path, p.cfg.Records)
	if err != nil {
		return nil, err
	}
	for _, w := range rec.Warnings {
		p.logger.Warn("record warning",
			"row", w.RowNumber,
			"field", w.Field,
			"value", w.Value,
			"message", w.Message,
		)
	}
	p.logger.Info("records loaded",
		"file", path,
		"numbers", len(rec.Numbers),
		"companies", len(rec.Companies),
		"warnings", len(rec.Warnings),
	)
	return rec, nil
}

// Plan loads the records and computes the documents a generate stage would
// write, without writing anything.
func (p *Pipeline) Plan() (*records.Records, []generator.Output, error) {
	rec, err := p.LoadRecords()
	if err != nil {
		return nil, nil, err
	}
	gen, err := generator.NewFromConfig(p.cfg, true, p.logger)
	if err != nil {
		return rec, nil, err
	}
	outputs, err := gen.WithClock(p.now).Plan(rec)
	return rec, outputs, err
}

func (p *Pipeline) generate(ctx context.Context) ([]generator.Output, types.StageStats, error) {
	start := time.Now()
	stats := types.StageStats{Stage: types.StageGenerate}

	rec, err := p.LoadRecords()
	if err != nil {
		return nil, stats, err
	}
	gen, err := generator.NewFromConfig(p.cfg, p.opts.DryRun, p.logger)
	if err != nil {
		return nil, stats, err
	}

	outputs, err := gen.WithClock(p.now).Generate(ctx, rec)
	for range outputs {
		stats.Record(types.FileResult{Success: !p.opts.DryRun, Skipped: p.opts.DryRun})
	}
	stats.Duration = time.Since(start)
	return outputs, stats, err
}

func (p *Pipeline) converter() (*converter.Converter, error) {
	if p.opts.Engine == nil {
		return converter.NewFromConfig(p.cfg, p.files.PDFDir, p.logger)
	}
	c := p.cfg.Converter
	return converter.New(p.opts.Engine, converter.Options{
		InputDir:    p.cfg.WorkDir,
		OutputDir:   p.files.PDFDir,
		Template:    filepath.Base(p.cfg.Template),
		MaxAttempts: c.MaxAttempts,
		Backoff:     c.RetryBackoff,
	}, p.logger), nil
}

func (p *Pipeline) rasterizer() (*raster.Rasterizer, error) {
	if p.opts.Renderer == nil {
		return raster.NewFromConfig(p.cfg, p.files.PDFDir, p.files.JPGDir, p.logger)
	}
	r := p.cfg.Raster
	return raster.New(p.opts.Renderer, raster.Options{
		InputDir:   p.files.PDFDir,
		OutputDir:  p.files.JPGDir,
		PageSuffix: r.PageSuffix,
		Quality:    r.Quality,
	}, p.logger), nil
}
