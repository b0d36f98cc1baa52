package session

import (
	"fmt"

	"github.com/starford/metaedit/internal/apperr"
	"github.com/starford/metaedit/internal/models"
)

// Position is the cursor location within the index.
type Position struct {
	Index int
	Total int
}

// Current returns the photo under the cursor.
func (s *Session) Current() (*models.Record, Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentLocked()
}

// Next moves the cursor forward. At the last photo it stays put.
func (s *Session) Next() (*models.Record, Position, error) {
	return s.move(1)
}

// Prev moves the cursor back. At the first photo it stays put.
func (s *Session) Prev() (*models.Record, Position, error) {
	return s.move(-1)
}

// Seek moves the cursor to path.
func (s *Session) Seek(path string) (*models.Record, Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return nil, Position{}, apperr.ErrNoLibrary
	}
	for i, p := range s.idx.Paths() {
		if p == path {
			s.cursor = i
			return s.currentLocked()
		}
	}
	return nil, Position{}, fmt.Errorf("session: seek %s: %w", path, apperr.ErrUnknownPath)
}

func (s *Session) move(delta int) (*models.Record, Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx == nil {
		return nil, Position{}, apperr.ErrNoLibrary
	}
	next := min(s.cursor, s.idx.Len()-1) + delta
	if next >= 0 && next < s.idx.Len() {
		s.cursor = next
	}
	return s.currentLocked()
}

func (s *Session) currentLocked() (*models.Record, Position, error) {
	if s.idx == nil {
		return nil, Position{}, apperr.ErrNoLibrary
	}
	paths := s.idx.Paths()
	if len(paths) == 0 {
		return nil, Position{}, fmt.Errorf("session: library is empty: %w", apperr.ErrNotFound)
	}
	i := min(s.cursor, len(paths)-1)
	r, ok := s.idx.Get(paths[i])
	if !ok {
		return nil, Position{}, fmt.Errorf("session: %s: %w", paths[i], apperr.ErrNotFound)
	}
	return r, Position{Index: i, Total: len(paths)}, nil
}
