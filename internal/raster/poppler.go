package raster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Renderer turns a PDF into one image per page, in page order.
type Renderer interface {
	RenderPages(ctx context.Context, pdfPath string) ([]image.Image, error)
}

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	cmd.WaitDelay = 5 * time.Second
	return cmd.CombinedOutput()
}

// Option configures Poppler.
type Option func(*Poppler)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(p *Poppler) {
		if exec != nil {
			p.exec = exec
		}
	}
}

// WithPageCounter replaces the pdfcpu page count.
func WithPageCounter(fn func(path string) (int, error)) Option {
	return func(p *Poppler) {
		if fn != nil {
			p.pageCount = fn
		}
	}
}

// Poppler renders pages with pdftoppm. Pages are counted with pdfcpu and
// rendered one at a time so a bad page is reported by number.
type Poppler struct {
	binary    string
	dpi       int
	timeout   time.Duration
	exec      Executor
	pageCount func(path string) (int, error)
}

// NewPoppler constructs a renderer. timeout bounds each page.
func NewPoppler(binary string, dpi int, timeout time.Duration, opts ...Option) (*Poppler, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("pdftoppm binary required")
	}
	if dpi <= 0 {
		dpi = 300
	}
	p := &Poppler{
		binary:    binary,
		dpi:       dpi,
		timeout:   timeout,
		exec:      commandExecutor{},
		pageCount: api.PageCountFile,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// PageError marks a failure on a specific 1-based page.
type PageError struct {
	Page  int
	Cause error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Page, e.Cause) }

func (e *PageError) Unwrap() error { return e.Cause }

// RenderPages renders every page of pdfPath.
func (p *Poppler) RenderPages(ctx context.Context, pdfPath string) ([]image.Image, error) {
	count, err := p.pageCount(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("count pages: %w", err)
	}
	if count < 1 {
		return nil, errors.New("pdf has no pages")
	}

	tmp, err := os.MkdirTemp("", "docbatch-raster-")
	if err != nil {
		return nil, fmt.Errorf("create render directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	pages := make([]image.Image, 0, count)
	for page := 1; page <= count; page++ {
		img, err := p.renderPage(ctx, pdfPath, tmp, page)
		if err != nil {
			return nil, &PageError{Page: page, Cause: err}
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func (p *Poppler) renderPage(ctx context.Context, pdfPath, dir string, page int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	runCtx := ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	prefix := filepath.Join(dir, "page-"+strconv.Itoa(page))
	n := strconv.Itoa(page)
	args := []string{
		"-r", strconv.Itoa(p.dpi),
		"-f", n, "-l", n,
		"-singlefile",
		"-jpeg", "-jpegopt", "quality=100",
		pdfPath, prefix,
	}
	output, err := p.exec.Run(runCtx, p.binary, args)
	if err != nil {
		if ctxErr := runCtx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("pdftoppm interrupted: %w", ctxErr)
		}
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(output)))
	}

	img, err := imaging.Open(prefix + ".jpg")
	if err != nil {
		return nil, fmt.Errorf("decode rendered page: %w", err)
	}
	return img, nil
}
