// Package testsupport builds input fixtures (workbooks, Word documents,
// images) for package tests.
package testsupport

import (
	"archive/zip"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// WriteXLSX writes rows (the first one being the header) to the first sheet
// of a new workbook at path.
func WriteXLSX(t testing.TB, path string, rows [][]any) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, f.SaveAs(path))
}

// DocumentXML wraps body paragraphs in a minimal WordprocessingML document.
func DocumentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body + `</w:body></w:document>`
}

// Paragraph builds a w:p with one w:r/w:t per run.
func Paragraph(runs ...string) string {
	p := "<w:p>"
	for _, r := range runs {
		p += `<w:r><w:t xml:space="preserve">` + r + `</w:t></w:r>`
	}
	return p + "</w:p>"
}

// WriteDocx writes a .docx package at path whose main part is documentXML.
// extra maps additional part names (e.g. "word/header1.xml") to contents.
func WriteDocx(t testing.TB, path, documentXML string, extra map[string]string) {
	t.Helper()

	parts := []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
			`</Types>`},
		{"_rels/.rels", `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
			`</Relationships>`},
		{"word/document.xml", documentXML},
	}
	for name, body := range extra {
		parts = append(parts, struct{ name, body string }{name, body})
	}

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

// SolidImage returns a w x h NRGBA image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

// WriteImage saves img at path; the format follows the extension.
func WriteImage(t testing.TB, path string, img image.Image) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, imaging.Save(img, path))
}
