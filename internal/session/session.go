// Package session owns the state of one interactive editing workflow:
// the selected library, its index, the active filter criteria, the
// resulting match set and the photo being edited.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/export"
	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/index"
	"github.com/starford/metaedit/internal/metrics"
	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/pathlock"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/storage"
)

// Codec reads and writes photo metadata.
type Codec interface {
	Decode(path string) (*models.Record, error)
	Encode(path string, r *models.Record, intent photometa.Intent) error
}

// Options configures a Session.
type Options struct {
	// Workers bounds concurrent decodes while indexing.
	Workers int
	// ExportDir overrides the export destination. Empty means a
	// directory named export.DefaultDirName next to the library.
	ExportDir string
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Session is safe for concurrent use.
type Session struct {
	codec    Codec
	exporter *export.Exporter
	opts     Options
	logger   *slog.Logger
	editLocks *pathlock.Table

	mu       sync.RWMutex
	gen      uint64
	cancel   context.CancelFunc
	store    storage.Provider
	idx      *index.Index
	criteria filter.Criteria
	matches  []string
	cursor   int
}

// New creates a Session with no library open.
func New(codec Codec, opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Session{
		codec:    codec,
		exporter: export.New(opts.Logger, opts.Metrics),
		opts:     opts,
		logger:   opts.Logger,
		editLocks: pathlock.New(),
	}
}

// Open indexes the JPEGs under dir and makes it the current library.
// A build still running for an earlier Open is cancelled; that earlier
// call returns apperr.ErrSuperseded and its partial index is dropped.
// On success criteria are reset and the cursor points at the first photo.
func (s *Session) Open(ctx context.Context, dir string) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	buildCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	store, err := storage.NewFS(dir, s.skipDirName())
	if err != nil {
		return err
	}
	paths, err := store.List("")
	if err != nil {
		return err
	}
	s.logger.Info("session: indexing", slog.String("dir", store.Root()), slog.Int("photos", len(paths)))

	idx, err := index.Build(buildCtx, paths, index.StoreLoader(store, s.codec), index.BuildOptions{
		Workers: s.opts.Workers,
		Logger:  s.logger,
		Metrics: s.opts.Metrics,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		s.logger.Info("session: selection superseded", slog.String("dir", store.Root()))
		return apperr.ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return fmt.Errorf("session: open %s: %w", dir, err)
	}

	s.store = store
	s.idx = idx
	s.criteria = filter.Criteria{}
	s.cursor = 0
	s.evaluateLocked()
	return nil
}

func (s *Session) skipDirName() string {
	if s.opts.ExportDir != "" {
		return filepath.Base(s.opts.ExportDir)
	}
	return export.DefaultDirName
}

// Library returns the absolute path of the open library.
func (s *Session) Library() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return "", apperr.ErrNoLibrary
	}
	return s.store.Root(), nil
}

// Abs resolves a photo path of the open library to an absolute path.
func (s *Session) Abs(path string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return "", apperr.ErrNoLibrary
	}
	return s.store.Abs(path)
}

// Paths returns every indexed path in discovery order.
func (s *Session) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return nil
	}
	return s.idx.Paths()
}

// Record returns the indexed record for path.
func (s *Session) Record(path string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return nil, apperr.ErrNoLibrary
	}
	r, ok := s.idx.Get(path)
	if !ok {
		return nil, fmt.Errorf("session: %s: %w", path, apperr.ErrNotFound)
	}
	return r, nil
}

// Criteria returns the active criteria.
func (s *Session) Criteria() filter.Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.criteria
	c.People = append([]string(nil), c.People...)
	return c
}

// SetCriteria replaces all criteria and returns the new match set.
func (s *Session) SetCriteria(c filter.Criteria) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c.Normalize()
	s.evaluateLocked()
	return s.matchesLocked()
}

// SetFilter changes one criterion from user text and returns the new
// match set. Blank text clears that criterion.
func (s *Session) SetFilter(f models.Field, text string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Set(f, text)
	s.evaluateLocked()
	return s.matchesLocked()
}

// ClearFilters resets every criterion, so all photos match.
func (s *Session) ClearFilters() []string {
	return s.SetCriteria(filter.Criteria{})
}

// Matches returns the current match set in index order.
func (s *Session) Matches() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchesLocked()
}

// Search evaluates c against the index without touching the session's
// own criteria.
func (s *Session) Search(c filter.Criteria) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return nil, apperr.ErrNoLibrary
	}
	out := filter.Evaluate(s.idx, c)
	s.opts.Metrics.RecordEvaluation(len(out))
	return out, nil
}

func (s *Session) evaluateLocked() {
	if s.idx == nil {
		s.matches = nil
		return
	}
	s.matches = filter.Evaluate(s.idx, s.criteria)
	s.opts.Metrics.RecordEvaluation(len(s.matches))
}

func (s *Session) matchesLocked() []string {
	return append([]string(nil), s.matches...)
}

// Refresh is called after the index changed underneath the session (for
// example by the directory watcher). It recomputes the match set and
// keeps the cursor in range.
func (s *Session) Refresh(kind, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return
	}
	s.evaluateLocked()
	if n := s.idx.Len(); s.cursor >= n && n > 0 {
		s.cursor = n - 1
	}
	s.opts.Metrics.SetIndexed(s.idx.Len())
	s.logger.Debug("session: refreshed", slog.String("kind", kind), slog.String("path", path))
}

// Watch keeps the open library's index in step with the file system
// until ctx is cancelled, calling cb after each change. It watches the
// library that is open when called.
func (s *Session) Watch(ctx context.Context, cb index.EventCallback) error {
	s.mu.RLock()
	idx, store := s.idx, s.store
	s.mu.RUnlock()
	if idx == nil {
		return apperr.ErrNoLibrary
	}
	return index.Watch(ctx, idx, store, index.StoreLoader(store, s.codec), s.logger, func(kind, path string) {
		s.Refresh(kind, path)
		if cb != nil {
			cb(kind, path)
		}
	})
}

// Edit sets one field of the photo at path from user text. See Apply.
func (s *Session) Edit(path string, f models.Field, text string, intent photometa.Intent) (*models.Record, error) {
	return s.Apply(path, map[models.Field]string{f: text}, intent)
}

// Apply sets several fields of the photo at path from user text. People
// text is a comma-separated list; blank text clears a field to empty.
// With intent photometa.UserEdit the record is written to the file and
// then to the index, and the match set is recomputed. With
// photometa.Reload nothing changes and the indexed record is returned.
func (s *Session) Apply(path string, edits map[models.Field]string, intent photometa.Intent) (*models.Record, error) {
	return s.ApplyIf(path, edits, intent, nil)
}

// ApplyIf is Apply with a precondition. Edits to one path are
// serialized from the index read through the index update; pre runs
// inside that window with the absolute file path and aborts the edit
// when it returns an error.
func (s *Session) ApplyIf(path string, edits map[models.Field]string, intent photometa.Intent, pre func(abs string) error) (*models.Record, error) {
	if intent != photometa.Reload {
		defer s.editLocks.Lock(path)()
	}

	s.mu.RLock()
	idx, store := s.idx, s.store
	s.mu.RUnlock()
	if idx == nil {
		return nil, apperr.ErrNoLibrary
	}

	rec, ok := idx.Get(path)
	if !ok {
		return nil, fmt.Errorf("session: edit %s: %w", path, apperr.ErrUnknownPath)
	}
	if intent == photometa.Reload {
		return rec, nil
	}
	abs, err := store.Abs(path)
	if err != nil {
		return nil, err
	}
	if pre != nil {
		if err := pre(abs); err != nil {
			return nil, err
		}
	}
	for f, text := range edits {
		if f == models.FieldPeople {
			rec.People = models.NewPeopleSet(filter.ParsePeople(text)...)
			continue
		}
		rec.SetText(f, text)
	}

	err = s.codec.Encode(abs, rec, intent)
	s.opts.Metrics.RecordEncode(err)
	if err != nil {
		return nil, err
	}
	if err := idx.Update(path, rec); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.idx == idx {
		s.evaluateLocked()
	}
	s.mu.Unlock()

	s.logger.Info("session: edited", slog.String("path", path), slog.Int("fields", len(edits)))
	return rec, nil
}

// ExportDir returns where Export writes.
func (s *Session) ExportDir() (string, error) {
	if s.opts.ExportDir != "" {
		return s.opts.ExportDir, nil
	}
	root, err := s.Library()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(root), export.DefaultDirName), nil
}

// Export copies the current match set into the export directory.
func (s *Session) Export(ctx context.Context) (*export.Report, error) {
	return s.ExportPaths(ctx, s.Matches())
}

// ExportPaths copies the given indexed photos into the export directory.
func (s *Session) ExportPaths(ctx context.Context, paths []string) (*export.Report, error) {
	dest, err := s.ExportDir()
	if err != nil {
		return nil, err
	}
	root, err := s.Library()
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := s.Abs(p)
		if err != nil {
			return nil, err
		}
		sources = append(sources, abs)
	}
	return s.exporter.Export(ctx, dest, sources, root)
}
