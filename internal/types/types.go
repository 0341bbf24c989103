// =============================================================================
// docbatch - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple stages to avoid
// import cycles. Types defined here are used by:
//   - converter (Word -> PDF)
//   - raster    (PDF -> JPEG)
//   - stamp     (JPEG + stamp -> JPEG)
//   - pipeline  (run summary)
//
// =============================================================================

package types

import "time"

// =============================================================================
// STAGE NAMES
// =============================================================================

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageGenerate  Stage = "generate"
	StageConvert   Stage = "convert"
	StageRasterize Stage = "rasterize"
	StageStamp     Stage = "stamp"
)

// =============================================================================
// FILE RESULTS
// =============================================================================

// FileResult represents the outcome of processing a single file in a stage.
type FileResult struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFiles are the files written for this input.
	// This is empty if processing failed or was skipped.
	OutputFiles []string

	// Success indicates whether the processing was successful.
	Success bool

	// Skipped is set when the file was deliberately not processed
	// (for example, no stamp image exists for its company).
	Skipped bool

	// Attempts is the number of attempts made. Only the converter retries.
	Attempts int

	// Error contains the error if processing failed.
	Error error
}

// =============================================================================
// STAGE STATISTICS
// =============================================================================

// StageStats contains counts for one stage of a run.
type StageStats struct {
	Stage     Stage
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Duration  time.Duration
}

// Record adds a file result to the counters.
func (s *StageStats) Record(r FileResult) {
	s.Total++
	switch {
	case r.Success:
		s.Succeeded++
	case r.Skipped:
		s.Skipped++
	default:
		s.Failed++
	}
}
