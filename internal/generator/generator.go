// =============================================================================
// docbatch - Certificate Generator
// =============================================================================
//
// This module turns the record table into one Word document per batch of
// phone numbers.
//
// GENERATION PROCESS:
//   1. Partition the numbers into batches of BatchSize (order preserved)
//   2. For each batch:
//      a. Join the numbers with the delimiter
//      b. Select a company via the rotation strategy
//      c. Draw a random issuance date from [IssueStart, IssueEnd)
//      d. Build the placeholder map (today, issuance date, row fields)
//      e. Compute a unique file name
//      f. Render the template and save the document atomically
//
// A template that cannot be loaded (TemplateError) or a document that cannot
// be saved (PersistenceError) aborts the whole generation.
//
// =============================================================================

package generator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/docx"
	"github.com/ginjaninja78/docbatch/internal/records"
	"github.com/ginjaninja78/docbatch/internal/types"
)

// =============================================================================
// OPTIONS & OUTPUT
// =============================================================================

// Options controls a generation run.
type Options struct {
	// OutputDir receives the generated documents (the working directory).
	OutputDir string

	BatchSize int
	Delimiter string
	Rotation  string

	// Label is the middle part of every file name.
	Label string

	IssueStart time.Time
	IssueEnd   time.Time

	// RowFields are extra columns exposed as {FIELD} tokens.
	RowFields []string

	// DryRun computes outputs without writing any file.
	DryRun bool
}

// Output describes one generated (or planned) document.
type Output struct {
	Path         string
	Company      string
	Batch        []string
	IssueDate    time.Time
	Placeholders map[string]string
}

// =============================================================================
// GENERATOR
// =============================================================================

// Generator renders documents from a template.
type Generator struct {
	opts     Options
	template *docx.Template
	rng      *rand.Rand
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Generator. tpl may be nil in dry-run mode.
func New(opts Options, tpl *docx.Template, rng *rand.Rand, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		opts:     opts,
		template: tpl,
		rng:      rng,
		now:      time.Now,
		logger:   logger,
	}
}

// NewFromConfig loads the template named in cfg and builds a Generator.
//
// RETURNS:
//   - The Generator.
//   - A *types.TemplateError if the template cannot be loaded, or a plain
//     error for an invalid issuance date range.
func NewFromConfig(cfg *config.Config, dryRun bool, logger *slog.Logger) (*Generator, error) {
	start, end, err := cfg.IssueDateRange()
	if err != nil {
		return nil, err
	}

	tplPath := cfg.Path(cfg.Template)
	tpl, err := docx.LoadTemplate(tplPath)
	if err != nil {
		return nil, &types.TemplateError{Template: tplPath, Cause: err}
	}

	g := cfg.Generator
	return New(Options{
		OutputDir:  cfg.WorkDir,
		BatchSize:  g.BatchSize,
		Delimiter:  g.Delimiter,
		Rotation:   g.Rotation,
		Label:      g.DocumentLabel,
		IssueStart: start,
		IssueEnd:   end,
		RowFields:  g.RowFields,
		DryRun:     dryRun,
	}, tpl, NewRand(g.Seed), logger), nil
}

// WithClock overrides the clock used for {YEAR}/{MONTH}/{DAY} and file names.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Plan computes every output without rendering or writing anything.
func (g *Generator) Plan(rec *records.Records) ([]Output, error) {
	rotation, err := NewRotation(g.opts.Rotation, rec.Companies, g.rng)
	if err != nil {
		return nil, err
	}

	today := g.now()
	batches := Partition(rec.Numbers, g.opts.BatchSize)
	outputs := make([]Output, 0, len(batches))
	usedNames := make(map[string]struct{}, len(batches))

	for _, batch := range batches {
		company := rotation.Next()
		issue := RandomIssueDate(g.rng, g.opts.IssueStart, g.opts.IssueEnd)

		placeholders := Placeholders(PlaceholderInput{
			Numbers:   JoinBatch(batch, g.opts.Delimiter),
			Company:   company,
			Today:     today,
			IssueDate: issue,
			RowFields: g.opts.RowFields,
			Row:       rec.Row(company),
		})

		// Two companies can clean to the same name; bump the suffix until free.
		n := rotation.Usage(company) - 1
		name := OutputFileName(company, g.opts.Label, today, n)
		for {
			if _, taken := usedNames[name]; !taken {
				break
			}
			n++
			name = OutputFileName(company, g.opts.Label, today, n)
		}
		usedNames[name] = struct{}{}

		outputs = append(outputs, Output{
			Path:         filepath.Join(g.opts.OutputDir, name),
			Company:      company,
			Batch:        batch,
			IssueDate:    issue,
			Placeholders: placeholders,
		})
	}
	return outputs, nil
}

// Generate plans and writes every document.
//
// PARAMETERS:
//   - ctx: Cancels the run between documents.
//   - rec: The loaded records.
//
// RETURNS:
//   - The outputs written (all of them on success).
//   - A *types.PersistenceError if a document cannot be saved, or the
//     context error if cancelled.
func (g *Generator) Generate(ctx context.Context, rec *records.Records) ([]Output, error) {
	outputs, err := g.Plan(rec)
	if err != nil {
		return nil, err
	}

	g.logger.Info("generating documents",
		"numbers", len(rec.Numbers),
		"companies", len(rec.Companies),
		"batches", len(outputs),
		"rotation", g.opts.Rotation,
		"dry_run", g.opts.DryRun,
	)

	if g.opts.DryRun {
		for _, out := range outputs {
			g.logger.Info("would generate document", "file", filepath.Base(out.Path), "company", out.Company, "numbers", len(out.Batch))
		}
		return outputs, nil
	}
	if g.template == nil {
		return nil, fmt.Errorf("generator has no template")
	}

	for i, out := range outputs {
		if err := ctx.Err(); err != nil {
			return outputs[:i], err
		}
		if err := g.template.RenderTo(out.Path, out.Placeholders); err != nil {
			return outputs[:i], &types.PersistenceError{Path: out.Path, Cause: err}
		}
		g.logger.Info("generated document",
			"file", filepath.Base(out.Path),
			"company", out.Company,
			"numbers", len(out.Batch),
			"issue_date", out.IssueDate.Format(config.DateLayout),
		)
	}
	return outputs, nil
}
