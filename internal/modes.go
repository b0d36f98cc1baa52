package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/chzyer/readline"

	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/mcpserver"
	"github.com/starford/metaedit/internal/photoservice"
	"github.com/starford/metaedit/internal/shell"
)

// RunShell starts the interactive editor. A configured library is
// opened up front; otherwise the user opens one with "open".
func RunShell(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stderr, opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	sess := app.newSession(nil)
	sh := shell.New(sess, app.out)

	if cfg.Library.Dir != "" {
		if err := sh.Execute(ctx, []string{"open", cfg.Library.Dir}); err != nil {
			return fmt.Errorf("open library: %w", err)
		}
	}

	if app.script != "" {
		f, err := os.Open(app.script)
		if err != nil {
			return fmt.Errorf("open script: %w", err)
		}
		defer f.Close()
		return sh.RunScript(ctx, f)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shell.DefaultPrompt,
		HistoryFile:     cfg.Shell.HistoryFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          app.out,
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	defer rl.Close()

	return sh.Loop(ctx, rl)
}

// RunMCP serves the configured library to an MCP client over stdio.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(os.Stderr, opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	if err := cfg.Library.RequireDir(); err != nil {
		return fmt.Errorf("library: %w", err)
	}

	sess := app.newSession(nil)
	if err := sess.Open(ctx, cfg.Library.Dir); err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	if cfg.Library.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := sess.Watch(watchCtx, nil); err != nil {
				app.logger.Error("watcher failed", slog.String("error", err.Error()))
			}
		}()
	}

	app.logger.Info("MCP server starting", slog.String("library_dir", cfg.Library.Dir))
	return mcpserver.New(photoservice.NewService(sess), Version).ServeStdio()
}

// RunFilter prints the photos of the configured library matching c, one
// path per line. With export set, the matches are also exported.
func RunFilter(ctx context.Context, c filter.Criteria, export bool, opts ...Option) error {
	app, err := newApplication(os.Stderr, opts...)
	if err != nil {
		return err
	}
	cfg := app.config
	if err := cfg.Library.RequireDir(); err != nil {
		return fmt.Errorf("library: %w", err)
	}

	sess := app.newSession(nil)
	if err := sess.Open(ctx, cfg.Library.Dir); err != nil {
		return fmt.Errorf("open library: %w", err)
	}

	for _, p := range sess.SetCriteria(c) {
		fmt.Fprintln(app.out, p)
	}
	if !export {
		return nil
	}
	rep, err := sess.Export(ctx)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	app.logger.Info("exported", slog.String("dir", rep.Dir), slog.Int("photos", len(rep.Copies)))
	return nil
}
