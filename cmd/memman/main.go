package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/memman/internal"
	"github.com/starford/memman/internal/memservice"
	"github.com/starford/memman/internal/models"
)

var version = "dev"

// withApp loads the config, wires the application, and closes it after fn.
func withApp(ctx context.Context, cmd *cli.Command, fn func(context.Context, *internal.App) error, opts ...internal.Option) error {
	cfg, err := internal.LoadConfig(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts = append([]internal.Option{internal.WithConfig(cfg), internal.WithVersion(version)}, opts...)
	app, err := internal.New(opts...)
	if err != nil {
		return fmt.Errorf("app init error: %w", err)
	}
	defer app.Close()
	return fn(ctx, app)
}

// service runs fn against the service and prints its result as JSON.
func service(fn func(context.Context, *cli.Command, *memservice.Service) (any, error)) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
			out, err := fn(ctx, cmd, app.Service())
			if err != nil {
				return err
			}
			return printJSON(cmd.Root().Writer, out)
		}, internal.WithTextLogs())
	}
}

func printJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads a named file, or stdin for "" and "-".
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile the primary and mirror instruction documents",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Report what would change without writing"},
			&cli.StringFlag{Name: "direction", Usage: "primary-to-mirror, mirror-to-primary, or bidirectional"},
		},
		Action: service(func(ctx context.Context, cmd *cli.Command, svc *memservice.Service) (any, error) {
			dir := models.SyncDirection(cmd.String("direction"))
			switch dir {
			case "", models.DirPrimaryToMirror, models.DirMirrorToPrimary, models.DirBidirectional:
			default:
				return nil, fmt.Errorf("unknown direction %q", dir)
			}
			return svc.Sync(ctx, cmd.Bool("dry-run"), dir)
		}),
	}
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "Split the primary document into always-loaded content, rule files, and memory notes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Show the plan without writing files"},
		},
		Action: service(func(ctx context.Context, cmd *cli.Command, svc *memservice.Service) (any, error) {
			return svc.Optimize(ctx, cmd.Bool("dry-run"))
		}),
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Detect corrections in a session transcript",
		ArgsUsage: "[transcript file, - for stdin]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "session", Usage: "Session identifier"},
		},
		Action: service(func(ctx context.Context, cmd *cli.Command, svc *memservice.Service) (any, error) {
			transcript, err := readInput(cmd.Args().First())
			if err != nil {
				return nil, fmt.Errorf("read transcript: %w", err)
			}
			return svc.CaptureTranscript(ctx, transcript, cmd.String("session"))
		}),
	}
}

func captureEditCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture-edit",
		Usage: "Detect a correction in a single file edit",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Path of the edited file", Required: true},
			&cli.StringFlag{Name: "before", Usage: "File holding the content before the edit", Required: true},
			&cli.StringFlag{Name: "after", Usage: "File holding the content after the edit; defaults to --path"},
			&cli.StringFlag{Name: "session", Usage: "Session identifier"},
		},
		Action: service(func(ctx context.Context, cmd *cli.Command, svc *memservice.Service) (any, error) {
			before, err := os.ReadFile(cmd.String("before"))
			if err != nil {
				return nil, fmt.Errorf("read before: %w", err)
			}
			afterPath := cmd.String("after")
			if afterPath == "" {
				afterPath = cmd.String("path")
			}
			after, err := os.ReadFile(afterPath)
			if err != nil {
				return nil, fmt.Errorf("read after: %w", err)
			}
			return svc.CaptureEdit(ctx, cmd.String("path"), string(before), string(after), cmd.String("session"))
		}),
	}
}

func correctCommand() *cli.Command {
	return &cli.Command{
		Name:  "correct",
		Usage: "Record a correction manually",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "correct", Usage: "The right approach", Required: true},
			&cli.StringFlag{Name: "incorrect", Usage: "The approach that was wrong"},
			&cli.StringFlag{Name: "category", Usage: "Category; inferred when omitted"},
			&cli.StringSliceFlag{Name: "path", Usage: "File glob the correction applies to (repeatable)"},
			&cli.FloatFlag{Name: "confidence", Usage: "Confidence in [0,1]", Value: 1},
			&cli.StringFlag{Name: "session", Usage: "Session identifier"},
		},
		Action: service(func(ctx context.Context, cmd *cli.Command, svc *memservice.Service) (any, error) {
			cat := models.Category(cmd.String("category"))
			if cat != "" && !cat.Valid() {
				return nil, fmt.Errorf("unknown category %q", cat)
			}
			return svc.RecordCorrection(ctx, memservice.RecordInput{
				Incorrect:  cmd.String("incorrect"),
				Correct:    cmd.String("correct"),
				Category:   cat,
				Paths:      cmd.StringSlice("path"),
				Source:     models.SourceManual,
				Confidence: cmd.Float("confidence"),
				SessionID:  cmd.String("session"),
			})
		}),
	}
}

func staleCommand() *cli.Command {
	return &cli.Command{
		Name:  "stale",
		Usage: "Score memory entries for staleness",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "apply", Usage: "Persist the new scores"},
		},
		Action: service(func(ctx context.Context, cmd *cli.Command, svc *memservice.Service) (any, error) {
			return svc.Rescore(ctx, cmd.Bool("apply"))
		}),
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show entry and correction counts",
		Action: service(func(ctx context.Context, _ *cli.Command, svc *memservice.Service) (any, error) {
			return svc.Stats(ctx)
		}),
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the status API and re-sync when either document changes",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "Sync on document changes", Value: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				return app.Serve(ctx, cmd.Bool("watch"))
			})
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withApp(ctx, cmd, func(ctx context.Context, app *internal.App) error {
				return app.ServeMCP(ctx)
			})
		},
	}
}

func main() {
	cmd := &cli.Command{
		Name:    "memman",
		Usage:   "Keep agent instruction documents, corrections, and memory entries in step",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: ".memman/config.yaml",
				Value:       ".memman/config.yaml",
				Sources:     cli.EnvVars("MEMMAN_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			syncCommand(),
			optimizeCommand(),
			captureCommand(),
			captureEditCommand(),
			correctCommand(),
			staleCommand(),
			statsCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
