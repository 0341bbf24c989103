// =============================================================================
// docbatch - File Manager Utility
// =============================================================================
//
// This module provides the file system helpers shared by every stage:
//   - Working directory layout (dated PDF/JPG folders, stamped output, logs)
//   - File discovery by extension
//   - Run summary log generation
//
// DIRECTORY LAYOUT:
//   <workdir>/                 generated .docx documents
//   <workdir>/<YYYYMMDD>PDF/   converter output
//   <workdir>/<YYYYMMDD>JPG/   rasterizer output
//   <workdir>/JPGOK/           stamped images
//   <workdir>/logs/            process logs and run summaries
//
// Stages communicate only through these folders, so every stage can be
// re-run on its own by re-scanning its input folder.
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager knows where each stage reads and writes.
type FileManager struct {
	// WorkDir holds the spreadsheet, the template and generated documents.
	WorkDir string

	// PDFDir receives converted documents, e.g. 20240115PDF.
	PDFDir string

	// JPGDir receives rasterized pages, e.g. 20240115JPG.
	JPGDir string

	// StampedDir receives stamped images.
	StampedDir string

	// LogDir receives process logs and summaries.
	LogDir string
}

// NewFileManager lays out the stage folders under workDir. The PDF and JPG
// folders are named after date; stampedDir and logDir are resolved against
// workDir unless absolute.
func NewFileManager(workDir string, date time.Time, stampedDir, logDir string) *FileManager {
	stamp := date.Format("20060102")
	return &FileManager{
		WorkDir:    workDir,
		PDFDir:     filepath.Join(workDir, stamp+"PDF"),
		JPGDir:     filepath.Join(workDir, stamp+"JPG"),
		StampedDir: resolve(workDir, stampedDir),
		LogDir:     resolve(workDir, logDir),
	}
}

func resolve(base, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates all stage directories if they don't exist.
//
// RETURNS:
//   - An error if any directory cannot be created.
func (fm *FileManager) EnsureDirectories() error {
	dirs := []string{
		fm.PDFDir,
		fm.JPGDir,
		fm.StampedDir,
		fm.LogDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverFiles lists the regular files in dir whose extension matches one of
// exts (case-insensitive, with the leading dot).
//
// PARAMETERS:
//   - dir: The directory to scan (not recursive).
//   - exts: Extensions to accept, e.g. ".doc", ".docx".
//   - exclude: Optional filter; files for which it returns true are skipped.
//
// RETURNS:
//   - The matching paths, sorted by name.
//   - An error if the directory cannot be read. A missing directory is
//     reported as an error wrapping fs.ErrNotExist.
func DiscoverFiles(dir string, exts []string, exclude func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan directory %s: %w", dir, err)
	}

	var result []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !slices.Contains(exts, strings.ToLower(filepath.Ext(name))) {
			continue
		}
		if exclude != nil && exclude(name) {
			continue
		}
		result = append(result, filepath.Join(dir, name))
	}

	slices.Sort(result)
	return result, nil
}

// FileExists reports whether path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Stem returns the file name without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// =============================================================================
// SUMMARY LOG GENERATION
// =============================================================================

// SummaryEntry is one line of the run summary.
type SummaryEntry struct {
	Stage     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// WriteSummaryLog writes a plain-text run summary next to the process logs.
//
// PARAMETERS:
//   - runID: The run identifier that also tags every log line.
//   - entries: Per-stage counts.
//   - notes: Free-form lines appended after the counts (missing stamps, ...).
//   - outputDir: The directory to write the summary file.
//   - now: Timestamp used in the file name and header.
//
// RETURNS:
//   - The path to the summary file.
//   - An error if writing fails.
func WriteSummaryLog(runID string, entries []SummaryEntry, notes []string, outputDir string, now time.Time) (string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create summary directory: %w", err)
	}

	summaryPath := filepath.Join(outputDir, fmt.Sprintf("summary_%s.txt", now.Format("20060102_150405")))
	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary log: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)

	fmt.Fprintf(writer, "docbatch - Run Summary\n"+
		"Run ID:    %s\n"+
		"Generated: %s\n"+
		"================================================================================\n\n",
		runID, now.Format("2006-01-02 15:04:05"))

	for _, e := range entries {
		fmt.Fprintf(writer, "%-10s total=%d succeeded=%d failed=%d skipped=%d duration=%s\n",
			e.Stage, e.Total, e.Succeeded, e.Failed, e.Skipped, e.Duration.Round(time.Millisecond))
	}

	if len(notes) > 0 {
		writer.WriteString("\n")
		for _, note := range notes {
			writer.WriteString(note + "\n")
		}
	}

	if err := writer.Flush(); err != nil {
		return "", fmt.Errorf("failed to write summary log: %w", err)
	}
	return summaryPath, nil
}
