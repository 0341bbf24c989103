package converter

import (
	"context"
	"os/exec"
)

// Engine starts office sessions. One session is opened per convert stage and
// reused for every document.
type Engine interface {
	Open(ctx context.Context) (Session, error)
}

// Session exports documents to PDF. Close must be called on every exit path;
// it stops any conversion still running and releases session resources.
type Session interface {
	// ConvertToPDF writes <outDir>/<stem of docPath>.pdf and returns its path.
	ConvertToPDF(ctx context.Context, docPath, outDir string) (string, error)
	Close() error
}

// Executor abstracts command execution for testability.
type Executor interface {
	// Run executes binary and returns its combined stdout and stderr.
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = waitDelay
	return cmd.CombinedOutput()
}
