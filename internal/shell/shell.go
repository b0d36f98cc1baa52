// Package shell implements the interactive photo metadata editor.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/starford/metaedit/internal/session"
)

// DefaultPrompt is shown when no library is open.
const DefaultPrompt = "metaedit> "

// ErrQuit is returned by Execute when the user asks to leave.
var ErrQuit = errors.New("shell: quit")

// Shell dispatches commands against a session and writes results to out.
type Shell struct {
	sess   *session.Session
	out    io.Writer
	prompt string
	rl     *readline.Instance
}

// New creates a shell bound to sess.
func New(sess *session.Session, out io.Writer) *Shell {
	return &Shell{sess: sess, out: out, prompt: DefaultPrompt}
}

// Loop reads commands from rl until quit, EOF or ctx is done.
// Command errors are printed and do not end the loop.
func (s *Shell) Loop(ctx context.Context, rl *readline.Instance) error {
	s.rl = rl
	s.updatePrompt()
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			fmt.Fprintln(s.out, "Use 'quit' to exit.")
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("shell: read: %w", err)
		}
		if err := s.Line(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

// RunScript executes one command per line from r. Blank lines and lines
// starting with # are skipped. The first failing command stops the script.
func (s *Shell) RunScript(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := s.Line(ctx, line); err != nil {
			if errors.Is(err, ErrQuit) {
				return nil
			}
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// Line parses and executes a single input line.
func (s *Shell) Line(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	return s.Execute(ctx, ParseArgs(line))
}

// ParseArgs splits input on spaces, keeping double-quoted runs together.
// An empty pair of quotes yields an empty argument.
func ParseArgs(input string) []string {
	var args []string
	var cur strings.Builder
	inQuotes, quoted := false, false

	for _, r := range input {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			quoted = true
		case (r == ' ' || r == '\t') && !inQuotes:
			if cur.Len() > 0 || quoted {
				args = append(args, cur.String())
				cur.Reset()
			}
			quoted = false
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 || quoted {
		args = append(args, cur.String())
	}
	return args
}

func (s *Shell) updatePrompt() {
	prompt := DefaultPrompt
	if dir, err := s.sess.Library(); err == nil {
		prompt = fmt.Sprintf("metaedit [%s]> ", filepath.Base(dir))
	}
	s.prompt = prompt
	if s.rl != nil {
		s.rl.SetPrompt(prompt)
	}
}
