package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/docx"
	"github.com/ginjaninja78/docbatch/internal/records"
	"github.com/ginjaninja78/docbatch/internal/testsupport"
	"github.com/ginjaninja78/docbatch/internal/types"
)

const label = "号码归属证明"

var fixedNow = time.Date(2024, time.March, 5, 10, 30, 0, 0, time.Local)

func newTestGenerator(t *testing.T, dir string, mutate func(*config.Config)) *Generator {
	t.Helper()
	tplPath := filepath.Join(dir, "numbers.docx")
	testsupport.WriteDocx(t, tplPath, testsupport.DocumentXML(
		testsupport.Paragraph("{COMPANY}")+
			testsupport.Paragraph("{NUMBERS}")+
			testsupport.Paragraph("{YEAR}-{MONTH}-{DAY}")+
			testsupport.Paragraph("{rYEAR}-{rMONTH}-{rDAY}")+
			testsupport.Paragraph("{FAREN}"),
	), nil)

	cfg := config.Default()
	cfg.WorkDir = dir
	cfg.Generator.Seed = 7
	cfg.Generator.RowFields = []string{"FAREN"}
	if mutate != nil {
		mutate(cfg)
	}
	g, err := NewFromConfig(cfg, false, nil)
	require.NoError(t, err)
	return g.WithClock(func() time.Time { return fixedNow })
}

func numbers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("1380013%04d", i)
	}
	return out
}

func TestGenerate_SingleBatch(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, nil)
	rec := records.New([]string{"111", "222", "333"}, []string{"Acme"},
		map[string]map[string]string{"Acme": {"FAREN": "Zhang San"}})

	outputs, err := g.Generate(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	want := filepath.Join(dir, "Acme_"+label+"_20240305.docx")
	assert.Equal(t, want, outputs[0].Path)
	assert.Equal(t, "111、222、333", outputs[0].Placeholders[TokenNumbers])

	texts, err := docx.ReadText(want)
	require.NoError(t, err)
	require.Len(t, texts, 5)
	assert.Equal(t, "Acme", texts[0])
	assert.Equal(t, "111、222、333", texts[1])
	assert.Equal(t, "2024-3-5", texts[2])
	assert.Equal(t, "Zhang San", texts[4])

	issue, err := time.ParseInLocation("2006-1-2", texts[3], time.Local)
	require.NoError(t, err)
	assert.False(t, issue.Before(time.Date(2021, 1, 1, 0, 0, 0, 0, time.Local)))
	assert.True(t, issue.Before(time.Date(2025, 3, 31, 0, 0, 0, 0, time.Local)))
}

func TestGenerate_SuffixesForRepeatedCompany(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, nil)
	rec := records.New(numbers(25), []string{"Acme"}, nil)

	outputs, err := g.Generate(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, outputs, 3)

	var names []string
	for _, o := range outputs {
		names = append(names, filepath.Base(o.Path))
		assert.FileExists(t, o.Path)
	}
	assert.Equal(t, []string{
		"Acme_" + label + "_20240305.docx",
		"Acme_" + label + "_20240305_1.docx",
		"Acme_" + label + "_20240305_2.docx",
	}, names)
	assert.Len(t, outputs[2].Batch, 5)

	// A missing row field still resolves to "".
	val, ok := outputs[0].Placeholders["{FAREN}"]
	assert.True(t, ok)
	assert.Equal(t, "", val)
}

func TestGenerate_AvoidRepeatUsesEveryCompanyFirst(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, nil)
	companies := []string{"A", "B", "C", "D"}
	rec := records.New(numbers(60), companies, nil)

	outputs, err := g.Generate(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, outputs, 6)

	seen := map[string]bool{}
	for _, o := range outputs[:4] {
		assert.False(t, seen[o.Company], "company %s reused before pool exhausted", o.Company)
		seen[o.Company] = true
	}
	assert.Len(t, seen, 4)

	// All file names are unique.
	paths := map[string]bool{}
	for _, o := range outputs {
		assert.False(t, paths[o.Path])
		paths[o.Path] = true
	}
}

func TestGenerate_RoundRobin(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, func(c *config.Config) {
		c.Generator.Rotation = config.RotationRoundRobin
		c.Generator.BatchSize = 1
	})
	rec := records.New([]string{"1", "2", "3", "4", "5"}, []string{"A", "B", "A", "C"}, nil)

	outputs, err := g.Generate(context.Background(), rec)
	require.NoError(t, err)

	var got []string
	for _, o := range outputs {
		got = append(got, o.Company)
	}
	assert.Equal(t, []string{"A", "B", "C", "A", "B"}, got)
	assert.Equal(t, "A_"+label+"_20240305_1.docx", filepath.Base(outputs[3].Path))
}

func TestGenerate_SeededRunsAreReproducible(t *testing.T) {
	rec := records.New(numbers(50), []string{"A", "B", "C"}, nil)

	run := func() []Output {
		g := newTestGenerator(t, t.TempDir(), func(c *config.Config) { c.Generator.Seed = 99 })
		out, err := g.Plan(rec)
		require.NoError(t, err)
		return out
	}
	a, b := run(), run()
	require.Len(t, a, len(b))
	for i := range a {
		assert.Equal(t, a[i].Company, b[i].Company)
		assert.Equal(t, a[i].IssueDate, b[i].IssueDate)
		assert.Equal(t, filepath.Base(a[i].Path), filepath.Base(b[i].Path))
	}
}

func TestGenerate_CleanedNameCollision(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, func(c *config.Config) {
		c.Generator.Rotation = config.RotationRoundRobin
		c.Generator.BatchSize = 1
	})
	rec := records.New([]string{"1", "2"}, []string{"A/B", "AB"}, nil)

	outputs, err := g.Generate(context.Background(), rec)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "AB_"+label+"_20240305.docx", filepath.Base(outputs[0].Path))
	assert.Equal(t, "AB_"+label+"_20240305_1.docx", filepath.Base(outputs[1].Path))
	assert.Equal(t, "A/B", outputs[0].Placeholders[TokenCompany])
}

func TestGenerate_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.WorkDir = dir
	testsupport.WriteDocx(t, filepath.Join(dir, "numbers.docx"), testsupport.DocumentXML(testsupport.Paragraph("{NUMBERS}")), nil)

	g, err := NewFromConfig(cfg, true, nil)
	require.NoError(t, err)
	outputs, err := g.Generate(context.Background(), records.New(numbers(12), []string{"Acme"}, nil))
	require.NoError(t, err)
	assert.Len(t, outputs, 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNewFromConfig_TemplateError(t *testing.T) {
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()

	_, err := NewFromConfig(cfg, false, nil)
	var terr *types.TemplateError
	require.True(t, errors.As(err, &terr))
	assert.True(t, strings.HasSuffix(terr.Template, "numbers.docx"))
}

func TestGenerate_PersistenceError(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, nil)
	g.opts.OutputDir = filepath.Join(dir, "does-not-exist")

	_, err := g.Generate(context.Background(), records.New([]string{"1"}, []string{"Acme"}, nil))
	var perr *types.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Contains(t, perr.Path, "does-not-exist")
}

func TestGenerate_Cancelled(t *testing.T) {
	dir := t.TempDir()
	g := newTestGenerator(t, dir, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := g.Generate(ctx, records.New(numbers(5), []string{"Acme"}, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, out)
}
