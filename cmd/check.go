// =============================================================================
// docbatch - Check Command
// =============================================================================
//
// This file defines the 'check' command. It validates everything a run
// needs without writing a single file:
//   - configuration, .env and flags
//   - spreadsheet columns and values
//   - template document
//   - external tools on PATH
//   - stamp source
// and prints the batch plan the generate stage would follow.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/generator"
	"github.com/ginjaninja78/docbatch/internal/pipeline"
	"github.com/ginjaninja78/docbatch/internal/validation"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// lookPath is replaced in tests.
var lookPath = exec.LookPath

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate inputs and print the batch plan without writing anything",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCheck(cmd)
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	p := pipeline.New(a.cfg, a.runID, a.logger.Logger, pipeline.Options{DryRun: true})

	rec, outputs, err := p.Plan()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Records:   %s\n", rec.Source)
	fmt.Fprintf(out, "Numbers:   %d\n", len(rec.Numbers))
	fmt.Fprintf(out, "Companies: %d\n", len(rec.Companies))
	fmt.Fprintf(out, "Batches:   %d (batch size %d, rotation %s)\n",
		generator.BatchCount(len(rec.Numbers), a.cfg.Generator.BatchSize),
		a.cfg.Generator.BatchSize, a.cfg.Generator.Rotation)
	if len(rec.Warnings) > 0 {
		fmt.Fprintln(out, validation.FormatWarnings(rec.Warnings))
	}

	pipeline.RenderPlan(out, outputs)
	reportEnvironment(out, a.cfg)
	return nil
}

// reportEnvironment prints the state of the external tools and stamp source.
// Problems here are reported, not fatal: single stages may not need them.
func reportEnvironment(out io.Writer, cfg *config.Config) {
	for _, tool := range []string{cfg.Converter.SofficePath, cfg.Raster.PdftoppmPath} {
		if path, err := lookPath(tool); err != nil {
			fmt.Fprintf(out, "MISSING  %s: %v\n", tool, err)
		} else {
			fmt.Fprintf(out, "ok       %s (%s)\n", tool, path)
		}
	}

	switch cfg.Stamp.Mode {
	case config.StampModeGlobal:
		stampPath := cfg.Path(cfg.Stamp.GlobalFile)
		if utils.FileExists(stampPath) {
			fmt.Fprintf(out, "ok       stamp %s\n", stampPath)
		} else {
			fmt.Fprintf(out, "MISSING  stamp %s\n", stampPath)
		}
	default:
		stampDir := cfg.Path(cfg.Stamp.Dir)
		if utils.DirExists(stampDir) {
			fmt.Fprintf(out, "ok       stamp directory %s\n", stampDir)
		} else {
			fmt.Fprintf(out, "MISSING  stamp directory %s\n", stampDir)
		}
	}
}
