package write

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"benritz/dbstub/internal/render"
)

const (
	DeclarationsFile = "db.d.ts"
	TableIndexFile   = "db.tables.ts"
)

// Linter post-processes the written directory.
type Linter interface {
	Fix(ctx context.Context, dir string) error
}

// ESLint runs `eslint --fix` over a directory.
type ESLint struct {
	Command []string
}

func (l ESLint) Fix(ctx context.Context, dir string) error {
	command := l.Command
	if len(command) == 0 {
		command = []string{"npx", "eslint"}
	}
	args := append(append([]string{}, command[1:]...), "--fix", dir)
	cmd := exec.CommandContext(ctx, command[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("eslint failed: %w: %s", err, out)
	}
	return nil
}

type Writer struct {
	dir           string
	camelCaseFile bool
	typeScript    bool
	linter        Linter
	workers       int
	logger        *slog.Logger

	mu           sync.Mutex
	filesWritten []string
}

type Option func(*Writer)

func WithCamelCaseFileName(v bool) Option {
	return func(w *Writer) {
		w.camelCaseFile = v
	}
}

func WithTypeScript(v bool) Option {
	return func(w *Writer) {
		w.typeScript = v
	}
}

func WithLinter(l Linter) Option {
	return func(w *Writer) {
		w.linter = l
	}
}

func WithWorkers(n int) Option {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

func New(dir string, opts ...Option) *Writer {
	w := &Writer{dir: dir, workers: 4, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Dir returns the directory files of format are written to: the configured
// directory for models, a subdirectory named after the format otherwise.
func (w *Writer) Dir(format render.Format) string {
	if format == "" || format == render.FormatModel {
		return w.dir
	}
	return filepath.Join(w.dir, string(format))
}

func (w *Writer) FileName(table string) string {
	name := table
	if w.camelCaseFile {
		name = render.Camelize(table)
	}
	if w.typeScript {
		return name + ".ts"
	}
	return name + ".js"
}

// Files returns the paths written by the last Write.
func (w *Writer) Files() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.filesWritten...)
}

func (w *Writer) Write(ctx context.Context, out *render.Output) error {
	dir := w.Dir(out.Format)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	w.mu.Lock()
	w.filesWritten = nil
	w.mu.Unlock()

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)

	for table, text := range out.Tables {
		eg.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
				return w.writeFile(filepath.Join(dir, w.FileName(table)), text)
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	if w.typeScript && out.Declarations != "" {
		if err := w.writeFile(filepath.Join(dir, DeclarationsFile), out.Declarations); err != nil {
			return err
		}
		if err := w.writeFile(filepath.Join(dir, TableIndexFile), out.TableIndex); err != nil {
			return err
		}
	}

	if w.linter != nil {
		w.logger.Debug("running linter", "dir", dir)
		if err := w.linter.Fix(ctx, dir); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeFile(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w.mu.Lock()
	w.filesWritten = append(w.filesWritten, path)
	w.mu.Unlock()
	w.logger.Debug("wrote file", "path", path)
	return nil
}
