package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	"github.com/starford/ansuz/internal/models"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
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

func build(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if dir := cmd.String("content"); dir != "" {
		cfg.Site.ContentDir = dir
	}
	if dir := cmd.String("output"); dir != "" {
		cfg.Site.OutputDir = dir
	}
	summary, err := internal.Build(ctx, internal.WithConfig(cfg))
	printJSON(summary)
	return err
}

func syncCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	req := models.SyncRequest{
		Type:          models.SyncFull,
		RepositoryRef: cmd.String("ref"),
		Force:         true,
	}
	res, err := internal.SyncOnce(ctx, req, internal.WithConfig(cfg))
	if err != nil {
		return fmt.Errorf("sync error: %w", err)
	}
	printJSON(res)
	if !res.Success {
		return fmt.Errorf("sync finished with %d failed articles", len(res.ArticlesFailed))
	}
	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg))
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func main() {
	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "Markdown blog publisher: syncs posts from a repository and renders a static site",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the admin API, webhook receiver and scheduled syncs",
				Action: serve,
			},
			{
				Name:   "build",
				Usage:  "Render a local content directory into the output directory",
				Action: build,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "content", Usage: "Content directory (overrides site.content_dir)"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output directory (overrides site.output_dir)"},
				},
			},
			{
				Name:   "sync",
				Usage:  "Run one full sync from the configured repository",
				Action: syncCmd,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ref", Usage: "Branch, tag or commit, or owner/name@ref"},
				},
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
