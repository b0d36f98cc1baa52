package shell

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/photometa"
	"github.com/starford/metaedit/internal/session"
)

// Execute runs one parsed command.
func (s *Shell) Execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("no command provided")
	}

	switch strings.ToLower(args[0]) {
	case "open":
		return s.handleOpen(ctx, args[1:])
	case "ls":
		return s.handleList()
	case "show":
		return s.handleShow(args[1:])
	case "next":
		return s.printCurrent(s.sess.Next())
	case "prev":
		return s.printCurrent(s.sess.Prev())
	case "set":
		return s.handleSet(args[1:])
	case "filter":
		return s.handleFilter(args[1:])
	case "clear":
		s.printMatchCount(s.sess.ClearFilters())
		return nil
	case "export":
		return s.handleExport(ctx)
	case "help":
		return s.handleHelp(args[1:])
	case "quit", "exit":
		return ErrQuit
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (s *Shell) handleOpen(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: open <dir>")
	}
	if err := s.sess.Open(ctx, args[0]); err != nil {
		return err
	}
	s.updatePrompt()
	dir, _ := s.sess.Library()
	paths := s.sess.Paths()
	fmt.Fprintf(s.out, "Opened %s: %d photos\n", dir, len(paths))
	if len(paths) == 0 {
		return nil
	}
	return s.printCurrent(s.sess.Current())
}

func (s *Shell) handleList() error {
	if _, err := s.sess.Library(); err != nil {
		return err
	}
	var current string
	if rec, _, err := s.sess.Current(); err == nil {
		current = rec.Path
	}
	matches := s.sess.Matches()
	for _, p := range matches {
		marker := "  "
		if p == current {
			marker = "* "
		}
		fmt.Fprintf(s.out, "%s%s\n", marker, p)
	}
	s.printMatchCount(matches)
	return nil
}

func (s *Shell) handleShow(args []string) error {
	if len(args) == 0 {
		return s.printCurrent(s.sess.Current())
	}
	return s.printCurrent(s.sess.Seek(args[0]))
}

func (s *Shell) handleSet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: set <field> [value]")
	}
	f, err := models.ParseField(args[0])
	if err != nil {
		return err
	}
	cur, _, err := s.sess.Current()
	if err != nil {
		return err
	}
	if _, err := s.sess.Edit(cur.Path, f, strings.Join(args[1:], " "), photometa.UserEdit); err != nil {
		return err
	}
	return s.printCurrent(s.sess.Current())
}

func (s *Shell) handleFilter(args []string) error {
	if len(args) == 0 {
		c := s.sess.Criteria()
		for _, f := range models.Fields {
			fmt.Fprintf(s.out, "  %-9s %s\n", f+":", c.Get(f))
		}
		return nil
	}
	f, err := models.ParseField(args[0])
	if err != nil {
		return err
	}
	if _, err := s.sess.Library(); err != nil {
		return err
	}
	s.printMatchCount(s.sess.SetFilter(f, strings.Join(args[1:], " ")))
	return nil
}

func (s *Shell) handleExport(ctx context.Context) error {
	rep, err := s.sess.Export(ctx)
	if err != nil {
		return err
	}
	for _, c := range rep.Copies {
		if filepath.Base(c.Source) != filepath.Base(c.Dest) {
			fmt.Fprintf(s.out, "  %s -> %s\n", c.Source, filepath.Base(c.Dest))
		}
	}
	fmt.Fprintf(s.out, "Exported %d photos to %s\n", len(rep.Copies), rep.Dir)
	return nil
}

func (s *Shell) printMatchCount(matches []string) {
	fmt.Fprintf(s.out, "%d of %d photos match\n", len(matches), len(s.sess.Paths()))
}

func (s *Shell) printCurrent(rec *models.Record, pos session.Position, err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "[%d/%d] %s\n", pos.Index+1, pos.Total, rec.Path)
	for _, f := range models.Fields {
		v, ok := rec.Display(f)
		switch {
		case !ok:
			v = "-"
		case v == "":
			v = `""`
		}
		fmt.Fprintf(s.out, "  %-9s %s\n", f+":", v)
	}
	return nil
}
