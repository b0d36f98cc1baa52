// Package photoservice exposes library operations to the HTTP and MCP
// surfaces on top of a session.
package photoservice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/checksum"
	"github.com/starford/metaedit/internal/export"
	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/session"
)

// PhotoDetail is the full representation of a photo. A null field was
// never set; an empty one was cleared.
type PhotoDetail struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	People    []string  `json:"people"`
	Location  *string   `json:"location"`
	Date      *string   `json:"date"`
	Group     *string   `json:"group"`
	Comment   *string   `json:"comment"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PhotoListItem is a lightweight item in a list response.
type PhotoListItem struct {
	Path     string   `json:"path"`
	People   []string `json:"people"`
	Location *string  `json:"location"`
	Date     *string  `json:"date"`
	Group    *string  `json:"group"`
	Comment  *string  `json:"comment"`
}

// Service coordinates the session with file-level concerns such as
// checksums.
type Service struct {
	sess *session.Session
}

// NewService creates a new photo service.
func NewService(sess *session.Session) *Service {
	return &Service{sess: sess}
}

// Session returns the underlying session.
func (s *Service) Session() *session.Session { return s.sess }

// GetPhoto returns the indexed record of path with the file checksum.
func (s *Service) GetPhoto(_ context.Context, path string) (*PhotoDetail, error) {
	rec, err := s.record(path)
	if err != nil {
		return nil, err
	}
	sum, info, err := s.fileSum(path)
	if err != nil {
		return nil, err
	}
	return buildDetail(rec, sum, info), nil
}

// UpdatePhoto applies field edits with optimistic concurrency: a non-empty
// ifMatch must equal the current file checksum.
func (s *Service) UpdatePhoto(ctx context.Context, path string, edits map[models.Field]string, ifMatch string) (*PhotoDetail, error) {
	if _, err := s.record(path); err != nil {
		return nil, err
	}
	match := func(abs string) error {
		sum, _, err := fileChecksum(path, abs)
		if err != nil {
			return err
		}
		if ifMatch != "" && ifMatch != sum {
			return apperr.ErrConflict
		}
		return nil
	}
	if _, err := s.sess.ApplyIf(path, edits, photometa.UserEdit, match); err != nil {
		return nil, err
	}
	return s.GetPhoto(ctx, path)
}

// Search returns the photos matching c in index order. limit <= 0 means
// no limit; total is the full match count.
func (s *Service) Search(_ context.Context, c filter.Criteria, limit, offset int) ([]PhotoListItem, int, error) {
	paths, err := s.sess.Search(c)
	if err != nil {
		return nil, 0, err
	}
	total := len(paths)
	if offset > 0 {
		paths = paths[min(offset, len(paths)):]
	}
	if limit > 0 && limit < len(paths) {
		paths = paths[:limit]
	}
	items := make([]PhotoListItem, 0, len(paths))
	for _, p := range paths {
		rec, err := s.sess.Record(p)
		if err != nil {
			// Removed by the watcher since the search.
			continue
		}
		items = append(items, PhotoListItem{
			Path:     rec.Path,
			People:   peopleList(rec.People),
			Location: rec.Location,
			Date:     rec.Date,
			Group:    rec.Group,
			Comment:  rec.Comment,
		})
	}
	return items, total, nil
}

// Export copies the photos matching c into the export directory.
func (s *Service) Export(ctx context.Context, c filter.Criteria) (*export.Report, error) {
	paths, err := s.sess.Search(c)
	if err != nil {
		return nil, err
	}
	return s.sess.ExportPaths(ctx, paths)
}

// FilePath resolves path to the image file on disk, if it is indexed.
func (s *Service) FilePath(path string) (string, error) {
	if _, err := s.record(path); err != nil {
		return "", err
	}
	return s.sess.Abs(path)
}

func (s *Service) record(path string) (*models.Record, error) {
	return s.sess.Record(path)
}

func (s *Service) fileSum(path string) (string, os.FileInfo, error) {
	abs, err := s.sess.Abs(path)
	if err != nil {
		return "", nil, err
	}
	return fileChecksum(path, abs)
}

func fileChecksum(path, abs string) (string, os.FileInfo, error) {
	sum, info, err := checksum.File(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, apperr.ErrNotFound
		}
		return "", nil, fmt.Errorf("photoservice: %s: %w", path, err)
	}
	return sum, info, nil
}

func buildDetail(rec *models.Record, sum string, info os.FileInfo) *PhotoDetail {
	return &PhotoDetail{
		Path:      rec.Path,
		Checksum:  sum,
		People:    peopleList(rec.People),
		Location:  rec.Location,
		Date:      rec.Date,
		Group:     rec.Group,
		Comment:   rec.Comment,
		Size:      info.Size(),
		UpdatedAt: info.ModTime(),
	}
}

// peopleList keeps the nil/empty distinction: nil encodes as null.
func peopleList(p models.PeopleSet) []string {
	if p == nil {
		return nil
	}
	return p.Names()
}
