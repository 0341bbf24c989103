package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/docbatch/internal/config"
	"github.com/ginjaninja78/docbatch/internal/logging"
	"github.com/ginjaninja78/docbatch/internal/types"
	"github.com/ginjaninja78/docbatch/pkg/utils"
)

// app is the per-invocation state shared by the commands.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	runID  string
	lock   *utils.WorkDirLock
}

// newApp loads configuration, applies flags and builds the logger.
//
// PARAMETERS:
//   - cmd: The command being run.
//   - exclusive: Take the working directory lock and log to a file. Commands
//     that write into the working directory set this.
func newApp(cmd *cobra.Command, exclusive bool) (*app, error) {
	path := cfgFile
	if workDir != "" && !cmd.Flags().Changed("config") && !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	cfg, err := config.LoadMainConfig(path)
	if err != nil {
		return nil, &types.ValidationError{Source: path, Message: "cannot load configuration", Cause: err}
	}
	if workDir != "" {
		cfg.WorkDir = workDir
	}
	if strict {
		cfg.Strict = true
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, &types.ValidationError{Source: cfg.Path(".env"), Message: "cannot load environment", Cause: err}
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, &types.ValidationError{Source: path, Message: err.Error()}
	}
	if !utils.DirExists(cfg.WorkDir) {
		return nil, &types.ValidationError{Source: cfg.WorkDir, Message: "working directory does not exist"}
	}

	a := &app{cfg: cfg, runID: uuid.NewString()}

	if exclusive {
		lock, err := utils.AcquireWorkDirLock(cfg.WorkDir)
		if err != nil {
			return nil, err
		}
		a.lock = lock
	}

	logOpts := logging.Options{
		Level:    cfg.LogLevel,
		MaxBytes: int64(cfg.LogMaxSizeMB) << 20,
		Backups:  cfg.LogBackups,
		Console:  cmd.ErrOrStderr(),
	}
	if exclusive {
		logOpts.Dir = cfg.Path(cfg.LogDir)
	}
	logger, err := logging.New(logOpts)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Logger = logger.With("run_id", a.runID)
	a.logger = logger

	logger.Debug("configuration loaded",
		"config", path,
		"work_dir", cfg.WorkDir,
		"rotation", cfg.Generator.Rotation,
		"stamp_mode", cfg.Stamp.Mode,
		"strict", cfg.Strict,
	)
	if logger.FilePath != "" {
		logger.Info("logging to file", "file", logger.FilePath)
	}
	return a, nil
}

// close releases the lock and the log file.
func (a *app) close() {
	var errs []error
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
	}
	if a.lock != nil {
		errs = append(errs, a.lock.Release())
	}
	if err := errors.Join(errs...); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "warning: cleanup: %v\n", err)
	}
}
