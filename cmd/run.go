// =============================================================================
// docbatch - Run & Stage Commands
// =============================================================================
//
// COMMAND USAGE:
//   docbatch run [flags]         all stages in order
//   docbatch generate [flags]    stage 1 only
//   docbatch convert [flags]     stage 2 only
//   docbatch rasterize [flags]   stage 3 only
//   docbatch stamp [flags]       stage 4 only
//
// PROCESSING PIPELINE:
//   1. Load configuration, .env and flags
//   2. Lock the working directory
//   3. Create the dated PDF/JPG folders, JPGOK and logs
//   4. Run the selected stages
//   5. Print the summary table and write logs/summary_<ts>.txt
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/docbatch/internal/logging"
	"github.com/ginjaninja78/docbatch/internal/pipeline"
	"github.com/ginjaninja78/docbatch/internal/types"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all four stages",
	Long: `Run generates the documents, converts them to PDF, renders every page
to JPEG and stamps every image.

Per-file failures are logged and listed in the summary; the run continues.
With --strict any per-file failure makes the exit code 2.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd)
	},
}

func stageCommand(stage types.Stage, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   string(stage),
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStages(cmd, stage)
		},
	}
}

var generateCmd = stageCommand(types.StageGenerate,
	"Generate one document per batch of numbers",
	`Generate reads the spreadsheet, splits the numbers into batches, picks a
company for each batch and fills the template. Use --dry-run to print what
would be written.`)

var convertCmd = stageCommand(types.StageConvert,
	"Convert documents in the working directory to PDF",
	`Convert exports every .doc/.docx in the working directory (except the
template and Word lock files) to the dated PDF folder using LibreOffice.`)

var rasterizeCmd = stageCommand(types.StageRasterize,
	"Render every PDF page to JPEG",
	`Rasterize renders every PDF in the dated PDF folder to the dated JPG folder
with pdftoppm. Multi-page PDFs get one image per page.`)

var stampCmd = stageCommand(types.StageStamp,
	"Overlay stamps onto the rasterized images",
	`Stamp overlays the company stamp (stamps/<company>.png) or the global stamp
onto every image in the dated JPG folder and writes the result to JPGOK.`)

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(runCmd, generateCmd, convertCmd, rasterizeCmd, stampCmd)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runStages runs the given stages (all when none) and prints the summary.
func runStages(cmd *cobra.Command, stages ...types.Stage) error {
	a, err := newApp(cmd, !dryRun)
	if err != nil {
		return err
	}
	defer a.close()

	p := pipeline.New(a.cfg, a.runID, a.logger.Logger, pipeline.Options{DryRun: dryRun})
	summary, runErr := p.Run(cmd.Context(), stages...)

	out := cmd.OutOrStdout()
	if summary != nil {
		if dryRun && len(summary.Generated) > 0 {
			pipeline.RenderPlan(out, summary.Generated)
		}
		summary.Render(out, logging.ShouldColorize(out))
	}
	if runErr != nil {
		return runErr
	}

	if failed := summary.FailedFiles(); failed > 0 {
		if a.cfg.Strict {
			return fmt.Errorf("%w: %d file(s) failed", errStrictFailures, failed)
		}
		a.logger.Warn("run finished with failures", "failed", failed)
	}
	return nil
}
