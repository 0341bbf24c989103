// =============================================================================
// docbatch - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (docbatch)
//   ├── runCmd        (docbatch run)        all four stages
//   ├── generateCmd   (docbatch generate)   documents from the spreadsheet
//   ├── convertCmd    (docbatch convert)    documents -> PDF
//   ├── rasterizeCmd  (docbatch rasterize)  PDF -> JPEG
//   ├── stampCmd      (docbatch stamp)      JPEG + stamp -> JPEG
//   ├── checkCmd      (docbatch check)      validate inputs, print the plan
//   └── versionCmd    (docbatch version)
//
// EXIT CODES:
//   0  success (missing per-company stamps alone still exit 0)
//   1  fatal error: configuration, validation, template, persistence,
//      missing stamp source, lock contention, interrupt
//   2  --strict and at least one file failed in some stage
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// A missing file means built-in defaults.
var cfgFile string

// workDir overrides work_dir from the configuration file.
var workDir string

// verbose enables debug output on the console.
var verbose bool

// strict turns per-file failures into exit code 2.
var strict bool

// dryRun plans the generate stage without writing anything.
var dryRun bool

// errStrictFailures marks a run that finished but had per-file failures
// while strict mode was on.
var errStrictFailures = errors.New("files failed in strict mode")

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "docbatch",
	Short: "docbatch - batch certificate generation, PDF export and stamping",
	Long: `docbatch turns a spreadsheet of phone numbers and companies into stamped
certificate images in four stages:

  1. generate   fill the Word template once per batch of numbers
  2. convert    export every document to PDF with LibreOffice
  3. rasterize  render every PDF page to JPEG with poppler
  4. stamp      overlay the company (or global) stamp on every image

Stages communicate only through the working directory, so each one can be
re-run on its own.

Example Usage:
  docbatch run                        # all four stages in the current directory
  docbatch run --workdir ./batch-07   # run somewhere else
  docbatch check                      # validate inputs and print the batch plan
  docbatch generate --dry-run         # plan documents without writing them
  docbatch stamp                      # re-stamp the current JPG folder`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI and exits with the code matching the outcome.
// SIGINT and SIGTERM cancel the run context; stages stop at the next file
// and the office session is still closed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}

// exitCode maps a command error to the process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errStrictFailures):
		return 2
	default:
		return 1
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&cfgFile, "config", "config.yaml",
		"Path to the configuration file (optional; relative paths are looked up in --workdir when given)")
	flags.StringVarP(&workDir, "workdir", "w", "",
		"Working directory holding the spreadsheet, template and stamps (default from config, else .)")
	flags.BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug output on the console")
	flags.BoolVar(&strict, "strict", false,
		"Exit with code 2 when any file fails in any stage")
	flags.BoolVar(&dryRun, "dry-run", false,
		"Plan the generate stage without writing files; later stages are skipped")
}
