package converter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// waitDelay bounds how long a killed soffice may keep its output pipes open.
const waitDelay = 5 * time.Second

// Option configures the LibreOffice engine.
type Option func(*LibreOffice)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(l *LibreOffice) {
		if exec != nil {
			l.exec = exec
		}
	}
}

// WithLookPath replaces the PATH lookup of the soffice binary.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(l *LibreOffice) {
		if fn != nil {
			l.lookPath = fn
		}
	}
}

// LibreOffice drives soffice in headless mode.
type LibreOffice struct {
	binary   string
	timeout  time.Duration
	exec     Executor
	lookPath func(string) (string, error)
}

// NewLibreOffice constructs the engine. timeout bounds a single conversion;
// zero means no limit beyond the caller's context.
func NewLibreOffice(binary string, timeout time.Duration, opts ...Option) (*LibreOffice, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("soffice binary required")
	}
	l := &LibreOffice{
		binary:   binary,
		timeout:  timeout,
		exec:     commandExecutor{},
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Open resolves the binary and creates an isolated user profile, so a
// desktop LibreOffice instance or a stale lock cannot block the export.
func (l *LibreOffice) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := l.lookPath(l.binary)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", l.binary, err)
	}
	profile, err := os.MkdirTemp("", "docbatch-soffice-")
	if err != nil {
		return nil, fmt.Errorf("create office profile: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	return &libreOfficeSession{
		binary:  path,
		profile: profile,
		timeout: l.timeout,
		exec:    l.exec,
		ctx:     sessionCtx,
		cancel:  cancel,
	}, nil
}

type libreOfficeSession struct {
	binary  string
	profile string
	timeout time.Duration
	exec    Executor

	// ctx is cancelled by Close, which kills any running soffice.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	closed  bool
	running sync.WaitGroup
}

func (s *libreOfficeSession) ConvertToPDF(ctx context.Context, docPath, outDir string) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New("office session closed")
	}
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create pdf directory: %w", err)
	}

	// A pdf left by an earlier run must not pass for this run's output.
	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	pdfPath := filepath.Join(outDir, stem+".pdf")
	if err := os.Remove(pdfPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("remove stale pdf: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
		defer cancel()
	}
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	args := []string{
		"-env:UserInstallation=" + profileURL(s.profile),
		"--headless",
		"--norestore",
		"--nologo",
		"--convert-to", "pdf",
		"--outdir", outDir,
		docPath,
	}
	output, err := s.exec.Run(runCtx, s.binary, args)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return "", fmt.Errorf("soffice interrupted: %w", ctxErr)
		}
		return "", fmt.Errorf("soffice: %w: %s", err, strings.TrimSpace(string(output)))
	}

	// soffice exits 0 even when the filter fails, so trust only the file.
	info, err := os.Stat(pdfPath)
	if err != nil {
		return "", fmt.Errorf("soffice produced no pdf for %s: %s", filepath.Base(docPath), strings.TrimSpace(string(output)))
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("soffice produced an empty pdf for %s", filepath.Base(docPath))
	}
	return pdfPath, nil
}

func (s *libreOfficeSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.running.Wait()
	if err := os.RemoveAll(s.profile); err != nil {
		return fmt.Errorf("remove office profile: %w", err)
	}
	return nil
}

// profileURL renders dir as the file URL soffice expects for -env:UserInstallation.
func profileURL(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	slashed := filepath.ToSlash(abs)
	if !strings.HasPrefix(slashed, "/") {
		slashed = "/" + slashed
	}
	return (&url.URL{Scheme: "file", Path: slashed}).String()
}
