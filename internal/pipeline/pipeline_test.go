package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/converter"
	"github.com/ginjaninja78/docbatch/internal/docx"
	"github.com/ginjaninja78/docbatch/internal/logging"
	"github.com/ginjaninja78/docbatch/internal/testsupport"
	"github.com/ginjaninja78/docbatch/internal/types"
)

var runDate = time.Date(2024, time.March, 5, 9, 0, 0, 0, time.Local)

// =============================================================================
// FAKES
// =============================================================================

type copyEngine struct{ failing map[string]bool }

func (e copyEngine) Open(ctx context.Context) (converter.Session, error) { return e, nil }
func (e copyEngine) Close() error                                          { return nil }

func (e copyEngine) ConvertToPDF(ctx context.Context, docPath, outDir string) (string, error) {
	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	if e.failing[stem] {
		return "", errors.New("filter failed")
	}
	out := filepath.Join(outDir, stem+".pdf")
	return out, os.WriteFile(out, []byte("%PDF-1.4"), 0o644)
}

type pageRenderer struct{ pages int }

func (r pageRenderer) RenderPages(ctx context.Context, pdfPath string) ([]image.Image, error) {
	out := make([]image.Image, r.pages)
	for i := range out {
		out[i] = testsupport.SolidImage(80, 60, color.White)
	}
	return out, nil
}

// =============================================================================
// FIXTURE
// =============================================================================

func newWorkdir(t *testing.T, companies ...string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	rows := [][]any{{"NUMBERS", "COMPANY", "FAREN"}}
	for i := range 25 {
		company := ""
		if i < len(companies) {
			company = companies[i]
		}
		rows = append(rows, []any{13800138000 + i, company, "Zhang"})
	}
	testsupport.WriteXLSX(t, filepath.Join(dir, "data.xlsx"), rows)
	testsupport.WriteDocx(t, filepath.Join(dir, "numbers.docx"), testsupport.DocumentXML(
		testsupport.Paragraph("{COMPANY}")+testsupport.Paragraph("{NUMBERS}")+testsupport.Paragraph("{FAREN}"),
	), nil)

	cfg := config.Default()
	cfg.WorkDir = dir
	cfg.Generator.Seed = 42
	cfg.Generator.DocumentLabel = "L"
	cfg.Generator.RowFields = []string{"FAREN"}
	cfg.Converter.RetryBackoff = time.Millisecond
	cfg.Stamp.OffsetX, cfg.Stamp.OffsetY = 5, 5
	return cfg
}

func newPipeline(cfg *config.Config, opts Options) *Pipeline {
	if opts.Engine == nil {
		opts.Engine = copyEngine{}
	}
	if opts.Renderer == nil {
		opts.Renderer = pageRenderer{pages: 1}
	}
	opts.Now = func() time.Time { return runDate }
	return New(cfg, "run-test", logging.Discard(), opts)
}

func writeStamp(t *testing.T, cfg *config.Config, company string) {
	t.Helper()
	dir := cfg.Path(cfg.Stamp.Dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	testsupport.WriteImage(t, filepath.Join(dir, company+".png"), testsupport.SolidImage(10, 10, color.NRGBA{R: 255, A: 255}))
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// =============================================================================
// TESTS
// =============================================================================

func TestRun_AllStages(t *testing.T) {
	cfg := newWorkdir(t, "Acme", "Beta")
	writeStamp(t, cfg, "Acme")
	writeStamp(t, cfg, "Beta")

	summary, err := newPipeline(cfg, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Stages, 4)
	for _, st := range summary.Stages {
		assert.Equal(t, 3, st.Total, st.Stage)
		assert.Equal(t, 3, st.Succeeded, st.Stage)
	}
	assert.Zero(t, summary.FailedFiles())
	assert.Empty(t, summary.MissingCompanies)

	require.Len(t, summary.Generated, 3)
	text, err := docx.ReadText(summary.Generated[0].Path)
	require.NoError(t, err)
	assert.Contains(t, text, "13800138000、13800138001、13800138002、13800138003、13800138004、13800138005、13800138006、13800138007、13800138008、13800138009")
	assert.Contains(t, text, "Zhang")

	assert.Len(t, listDir(t, filepath.Join(cfg.WorkDir, "20240305PDF")), 3)
	assert.Len(t, listDir(t, filepath.Join(cfg.WorkDir, "20240305JPG")), 3)
	stamped := listDir(t, filepath.Join(cfg.WorkDir, "JPGOK"))
	assert.Len(t, stamped, 3)
	for _, name := range stamped {
		assert.True(t, strings.HasSuffix(name, "_印章.jpg"), name)
	}

	logs := listDir(t, filepath.Join(cfg.WorkDir, "logs"))
	assert.Contains(t, logs, "summary_20240305_090000.txt")
}

func TestRun_MissingStampIsNotFatal(t *testing.T) {
	cfg := newWorkdir(t, "Acme", "Beta")
	writeStamp(t, cfg, "Acme")

	summary, err := newPipeline(cfg, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Beta"}, summary.MissingCompanies)
	assert.Zero(t, summary.FailedFiles())

	var out bytes.Buffer
	summary.Render(&out, false)
	assert.Contains(t, out.String(), "Beta")
	assert.Contains(t, out.String(), cfg.Path("stamps"))
	assert.Contains(t, out.String(), "Stage")
}

func TestRun_MissingStampDirIsFatal(t *testing.T) {
	cfg := newWorkdir(t, "Acme")

	summary, err := newPipeline(cfg, Options{}).Run(context.Background())
	var serr *types.StampingError
	require.ErrorAs(t, err, &serr)
	assert.Len(t, summary.Stages, 3)
}

func TestRun_ConversionFailureCounted(t *testing.T) {
	cfg := newWorkdir(t, "Acme")
	writeStamp(t, cfg, "Acme")
	cfg.Converter.MaxAttempts = 2

	summary, err := newPipeline(cfg, Options{Engine: copyEngine{failing: map[string]bool{"Acme_L_20240305_1": true}}}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedFiles())
	require.Len(t, summary.Failures, 1)
	var cerr *types.ConversionError
	require.ErrorAs(t, summary.Failures[0].Error, &cerr)
	assert.Equal(t, 2, cerr.Attempts)
	assert.Equal(t, 2, summary.Stages[3].Succeeded)
}

func TestRun_ValidationErrorStopsRun(t *testing.T) {
	cfg := newWorkdir(t)

	summary, err := newPipeline(cfg, Options{}).Run(context.Background())
	var verr *types.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, summary.Stages, 1)
	assert.Empty(t, summary.Generated)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	cfg := newWorkdir(t, "Acme")

	summary, err := newPipeline(cfg, Options{DryRun: true}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Stages, 1)
	assert.Equal(t, 3, summary.Stages[0].Skipped)
	assert.Len(t, summary.Generated, 3)

	assert.ElementsMatch(t, []string{"data.xlsx", "numbers.docx"}, listDir(t, cfg.WorkDir))
}

func TestRun_SingleStageRescansFolder(t *testing.T) {
	cfg := newWorkdir(t, "Acme")
	p := newPipeline(cfg, Options{Renderer: pageRenderer{pages: 2}})

	pdfDir := p.Files().PDFDir
	require.NoError(t, os.MkdirAll(pdfDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pdfDir, "Acme_L_20240305.pdf"), []byte("%PDF"), 0o644))

	summary, err := p.Run(context.Background(), types.StageRasterize)
	require.NoError(t, err)
	require.Len(t, summary.Stages, 1)
	assert.Equal(t, types.StageRasterize, summary.Stages[0].Stage)
	assert.ElementsMatch(t, []string{"Acme_L_20240305_第1页.jpg", "Acme_L_20240305_第2页.jpg"}, listDir(t, p.Files().JPGDir))
}

func TestRun_Cancelled(t *testing.T) {
	cfg := newWorkdir(t, "Acme")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newPipeline(cfg, Options{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPlan_RendersTable(t *testing.T) {
	cfg := newWorkdir(t, "Acme", "Beta")

	rec, outputs, err := newPipeline(cfg, Options{}).Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Beta"}, rec.Companies)
	require.Len(t, outputs, 3)

	var out bytes.Buffer
	RenderPlan(&out, outputs)
	assert.Contains(t, out.String(), "Company")
	assert.Contains(t, out.String(), filepath.Base(outputs[2].Path))
	assert.ElementsMatch(t, []string{"data.xlsx", "numbers.docx"}, listDir(t, cfg.WorkDir))
}

func TestSummary_RenderColors(t *testing.T) {
	s := &Summary{RunID: "r1", Stages: []types.StageStats{{Stage: types.StageConvert, Total: 2, Succeeded: 1, Failed: 1}}}
	var plain, colored bytes.Buffer
	s.Render(&plain, false)
	s.Render(&colored, true)

	assert.NotContains(t, plain.String(), "\x1b[")
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Contains(t, plain.String(), "Run r1")
}
