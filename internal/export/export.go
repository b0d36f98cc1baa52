// Package export copies a set of matched photos into a fresh directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/metaedit/internal/metrics"
)

// DefaultDirName is the export directory created next to the library.
const DefaultDirName = "filtered_images"

// Copy records where one source ended up.
type Copy struct {
	Source string `json:"source"`
	Dest   string `json:"dest"`
}

// Report describes a finished export.
type Report struct {
	Dir     string `json:"dir"`
	Copies  []Copy `json:"copies"`
	Renamed int    `json:"renamed"`
}

// Exporter materializes match sets on disk.
type Exporter struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates an Exporter. m may be nil.
func New(logger *slog.Logger, m *metrics.Metrics) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{logger: logger, metrics: m}
}

// Export empties dest and copies every source into it under its base
// name, keeping file mode and modification time. Base names that repeat
// get a numeric suffix. It stops at the first failure with an
// *ExportError; files copied before that stay in dest. dest must not
// equal or contain a source or any of the protect directories.
func (e *Exporter) Export(ctx context.Context, dest string, sources []string, protect ...string) (*Report, error) {
	rep, err := e.export(ctx, dest, sources, protect)
	copied, renamed := 0, 0
	if rep != nil {
		copied, renamed = len(rep.Copies), rep.Renamed
	}
	e.metrics.RecordExport(copied, renamed, err)
	if err != nil {
		e.logger.Error("export: failed", slog.String("dest", dest), slog.Int("copied", copied), slog.String("error", err.Error()))
		return rep, err
	}
	e.logger.Info("export: done", slog.String("dest", dest), slog.Int("copied", copied), slog.Int("renamed", renamed))
	return rep, nil
}

func (e *Exporter) export(ctx context.Context, dest string, sources, protect []string) (*Report, error) {
	dir, err := reset(dest, sources, protect)
	if err != nil {
		return nil, err
	}

	rep := &Report{Dir: dir, Copies: make([]Copy, 0, len(sources))}
	used := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return rep, &ExportError{Kind: CopyFailed, Path: src, Err: err}
		}
		name := uniqueName(filepath.Base(src), used)
		if name != filepath.Base(src) {
			rep.Renamed++
			e.logger.Warn("export: name collision, renamed",
				slog.String("path", src), slog.String("name", name))
		}
		target := filepath.Join(dir, name)
		if err := copyFile(src, target); err != nil {
			return rep, &ExportError{Kind: CopyFailed, Path: src, Err: err}
		}
		rep.Copies = append(rep.Copies, Copy{Source: src, Dest: target})
	}
	return rep, nil
}

// reset removes dest and creates it empty. It refuses a dest that is
// or contains one of the sources or protected directories.
func reset(dest string, sources, protect []string) (string, error) {
	if strings.TrimSpace(dest) == "" {
		return "", &ExportError{Kind: DirCreateFailed, Path: dest, Err: errors.New("empty destination")}
	}
	dir, err := filepath.Abs(dest)
	if err != nil {
		return "", &ExportError{Kind: DirCreateFailed, Path: dest, Err: err}
	}
	for _, p := range protect {
		if within(dir, p) {
			return "", &ExportError{Kind: DirCreateFailed, Path: dest,
				Err: fmt.Errorf("destination contains library %s", p)}
		}
	}
	for _, src := range sources {
		if within(dir, src) {
			return "", &ExportError{Kind: DirCreateFailed, Path: dest,
				Err: fmt.Errorf("destination contains source %s", src)}
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return "", &ExportError{Kind: DirCreateFailed, Path: dest, Err: err}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &ExportError{Kind: DirCreateFailed, Path: dest, Err: err}
	}
	return dir, nil
}

// within reports whether path is dir or lies below it.
func within(dir, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// uniqueName returns base, or base with _2, _3, ... before the extension
// when an earlier copy already took the name. Names compare
// case-insensitively.
func uniqueName(base string, used map[string]struct{}) string {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for n := 2; ; n++ {
		key := strings.ToLower(name)
		if _, taken := used[key]; !taken {
			used[key] = struct{}{}
			return name
		}
		name = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

// copyFile copies src to dst, then applies src's mode and mtime.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file")
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
