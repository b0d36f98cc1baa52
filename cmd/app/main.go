package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/metaedit/internal"
	"github.com/starford/metaedit/internal/filter"
	"github.com/starford/metaedit/internal/models"
	pkgconfig "github.com/starford/metaedit/pkg/config"
)

// loadConfig reads the config file if present and applies command-line
// overrides. A missing file is fine; the defaults are validated instead.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if dir := cmd.String("library"); dir != "" {
		cfg.Library.Dir = dir
	}
	if dir := cmd.String("export-dir"); dir != "" {
		cfg.Export.Dir = dir
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func shell(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := []internal.Option{internal.WithConfig(cfg)}
	if script := cmd.Args().First(); script != "" {
		opts = append(opts, internal.WithScript(script))
	}
	return internal.RunShell(ctx, opts...)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func filterPhotos(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	var c filter.Criteria
	for _, f := range models.Fields {
		c.Set(f, cmd.String(string(f)))
	}
	return internal.RunFilter(ctx, c, cmd.Bool("export"), internal.WithConfig(cfg))
}

func main() {
	libraryFlag := &cli.StringFlag{
		Name:    "library",
		Aliases: []string{"l"},
		Usage:   "Photo library directory (overrides library.dir)",
		Sources: cli.EnvVars("METAEDIT_LIBRARY"),
	}
	exportFlag := &cli.StringFlag{
		Name:    "export-dir",
		Usage:   "Export destination (overrides export.dir)",
		Sources: cli.EnvVars("METAEDIT_EXPORT_DIR"),
	}

	filterFlags := []cli.Flag{
		&cli.BoolFlag{Name: "export", Usage: "Copy the matching photos to the export directory"},
	}
	for _, f := range models.Fields {
		filterFlags = append(filterFlags, &cli.StringFlag{
			Name:  string(f),
			Usage: fmt.Sprintf("Filter on %s (case-insensitive substring)", f),
		})
	}

	cmd := &cli.Command{
		Name:  "metaedit",
		Usage: "Edit, filter and export custom metadata stored in JPEG EXIF descriptions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			libraryFlag,
			exportFlag,
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the library over HTTP with live updates",
				Action: serve,
			},
			{
				Name:      "shell",
				Usage:     "Interactive editor; optionally run commands from a script",
				ArgsUsage: "[script]",
				Action:    shell,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the library to an MCP client over stdio",
				Action: mcp,
			},
			{
				Name:   "filter",
				Usage:  "Print the photos matching the given filters",
				Flags:  filterFlags,
				Action: filterPhotos,
			},
		},
		Action: shell,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
