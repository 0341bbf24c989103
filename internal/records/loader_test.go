package records

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/testsupport"
	"github.com/ginjaninja78/docbatch/internal/types"
)

func defaultOpts() config.RecordsConfig {
	return config.Default().Records
}

func TestLoad_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	testsupport.WriteXLSX(t, path, [][]any{
		{" NUMBERS ", "COMPANY", "FAREN", "EMAIL"},
		{13800138000, "Acme", "Zhang San", "a@acme.test"},
		{"13800138001", "Beta", "Li Si", ""},
		{"13800138002", "Acme", "Someone Else", "other@acme.test"},
		{"", "", "", ""},
		{"13800138003", "", "", ""},
	})

	rec, err := Load(path, defaultOpts())
	require.NoError(t, err)

	assert.Equal(t, []string{"13800138000", "13800138001", "13800138002", "13800138003"}, rec.Numbers)
	assert.Equal(t, []string{"Acme", "Beta"}, rec.Companies)
	assert.Equal(t, "Zhang San", rec.Field("Acme", "FAREN"))
	assert.Equal(t, "a@acme.test", rec.Field("Acme", "EMAIL"))
	assert.Equal(t, "", rec.Field("Beta", "EMAIL"))
	assert.Equal(t, "", rec.Field("Nobody", "EMAIL"))
	assert.Empty(t, rec.Warnings)
}

func TestLoad_CSVWithBOMAndBlankNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "\xEF\xBB\xBFNUMBERS,COMPANY\n111,Acme\n,Beta\n333,\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rec, err := Load(path, defaultOpts())
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "", "333"}, rec.Numbers)
	assert.Equal(t, []string{"Acme", "Beta"}, rec.Companies)

	opts := defaultOpts()
	opts.SkipBlankNumbers = true
	rec, err = Load(path, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "333"}, rec.Numbers)
}

func TestLoad_WarningsPointAtSpreadsheetRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	// Line 3 is a blank number, line 4 is empty, line 5 holds the bad value.
	content := "NUMBERS,COMPANY\n111,Acme\n,Beta\n\ncall me,Acme\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	opts := defaultOpts()
	opts.SkipBlankNumbers = true
	rec, err := Load(path, opts)
	require.NoError(t, err)
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, 5, rec.Warnings[0].RowNumber)

	xlsx := filepath.Join(t.TempDir(), "data.xlsx")
	testsupport.WriteXLSX(t, xlsx, [][]any{
		{"NUMBERS", "COMPANY"},
		{"111", "Acme"},
		{"", "Beta"},
		{"", ""},
		{"call me", "Acme"},
	})
	rec, err = Load(xlsx, opts)
	require.NoError(t, err)
	require.Len(t, rec.Warnings, 1)
	assert.Equal(t, 5, rec.Warnings[0].RowNumber)
}

func TestLoad_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	testsupport.WriteXLSX(t, path, [][]any{
		{"NUMBERS", "NAME"},
		{"111", "x"},
	})

	_, err := Load(path, defaultOpts())
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "COMPANY", verr.Field)
}

func TestLoad_NoCompanies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	testsupport.WriteXLSX(t, path, [][]any{
		{"NUMBERS", "COMPANY"},
		{"111", ""},
		{"222", "  "},
	})

	_, err := Load(path, defaultOpts())
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "no company")
}

func TestLoad_NoDataRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")
	testsupport.WriteXLSX(t, path, [][]any{{"NUMBERS", "COMPANY"}})

	_, err := Load(path, defaultOpts())
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Message, "no data rows")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "data.xlsx"), defaultOpts())
	var verr *types.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotNil(t, verr.Unwrap())
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(path, []byte("NUMBERS,COMPANY\n"), 0o644))

	_, err := Load(path, defaultOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported spreadsheet type")
}

func TestLoad_Transformations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("NUMBERS,COMPANY\n138 0013,acme\n"), 0o644))

	opts := defaultOpts()
	opts.TransformationRules = []config.TransformationRule{
		{Field: "NUMBERS", Actions: []config.TransformationAction{{Type: "replace", Find: " ", Value: ""}}},
		{Field: "COMPANY", Actions: []config.TransformationAction{{Type: "lookup", LookupTable: map[string]string{"acme": "Acme"}}}},
	}
	rec, err := Load(path, opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"1380013"}, rec.Numbers)
	assert.Equal(t, []string{"Acme"}, rec.Companies)

	opts.TransformationRules = []config.TransformationRule{
		{Field: "NUMBERS", Actions: []config.TransformationAction{{Type: "explode"}}},
	}
	_, err = Load(path, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transformation type")
}

func TestNormalizeCell(t *testing.T) {
	tests := map[string]string{
		"13800138000.0":  "13800138000",
		"1.3800138E+10":  "13800138000",
		" 13800138000 ":  "13800138000",
		"075512345678":   "075512345678",
		"+8613800138000": "+8613800138000",
		"12.5":           "12.5",
		"Acme":           "Acme",
		"":               "",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeCell(in), "input %q", in)
	}
}

func TestNormalizeText_NFC(t *testing.T) {
	// "é" as e + combining acute accent.
	assert.Equal(t, "Caf\u00e9", NormalizeText(" Cafe\u0301 "))
}
