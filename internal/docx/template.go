// =============================================================================
// docbatch - Word Template
// =============================================================================
//
// A .docx file is a zip package of XML parts. The template is read into
// memory once; every render starts from the pristine bytes, rewrites the
// main document part plus any header and footer parts, and copies every
// other entry unchanged.
//
// PLACEHOLDERS:
//   Tokens are literal text such as {NUMBERS} or {COMPANY}. Word often splits
//   a token over several runs ("{NUM" + "BERS}"), so matching is done on the
//   concatenated text of each paragraph (see ReplaceParagraphs).
//
// =============================================================================

package docx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// mainPart is the main document part of a WordprocessingML package.
const mainPart = "word/document.xml"

// headerFooterPart matches header and footer parts (word/header1.xml, ...).
var headerFooterPart = regexp.MustCompile(`^word/(header|footer)\d*\.xml$`)

type entry struct {
	header zip.FileHeader
	data   []byte
}

// Template is an in-memory Word document used as the source of every render.
type Template struct {
	path    string
	entries []entry
}

// LoadTemplate reads and checks the template at path.
//
// PARAMETERS:
//   - path: The .docx template.
//
// RETURNS:
//   - The loaded Template.
//   - An error if the file is missing, is not a zip package, or has no
//     word/document.xml part.
func LoadTemplate(path string) (*Template, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template: %w", err)
	}
	defer zr.Close()

	t := &Template{path: path}
	hasMain := false
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open part %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read part %s: %w", f.Name, err)
		}
		if f.Name == mainPart {
			hasMain = true
		}
		t.entries = append(t.entries, entry{header: f.FileHeader, data: data})
	}
	if !hasMain {
		return nil, fmt.Errorf("%s is not a Word document: missing %s", path, mainPart)
	}
	return t, nil
}

// Path returns the file the template was loaded from.
func (t *Template) Path() string { return t.path }

// Render returns a new .docx package with replacements applied.
func (t *Template) Render(replacements map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range t.entries {
		data := e.data
		if isTextPart(e.header.Name) {
			data, _ = ReplaceParagraphs(data, replacements)
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.header.Name,
			Method:   e.header.Method,
			Modified: e.header.Modified,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add part %s: %w", e.header.Name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write part %s: %w", e.header.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish package: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderTo renders the template and writes it to path. The file is written
// to a temporary name in the same directory and renamed into place, so a
// failed save never leaves a truncated document behind.
func (t *Template) RenderTo(path string, replacements map[string]string) error {
	data, err := t.Render(replacements)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".docbatch-*.docx")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close document: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move document into place: %w", err)
	}
	return nil
}

// ReadText returns the paragraph texts of the main document part of the
// .docx file at path.
func ReadText(path string) ([]string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != mainPart {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, err
		}
		return ParagraphTexts(data), nil
	}
	return nil, fmt.Errorf("%s: missing %s", path, mainPart)
}

func isTextPart(name string) bool {
	return name == mainPart || headerFooterPart.MatchString(name)
}

// IsLockFile reports whether name is a Word owner file ("~$name.docx").
func IsLockFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), "~$")
}
