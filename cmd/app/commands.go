package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/starford/kadisync/internal"
	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/index"
	"github.com/starford/kadisync/internal/kadi"
	"github.com/starford/kadisync/internal/mcpserver"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/settings"
	"github.com/starford/kadisync/internal/syncengine"
	"github.com/starford/kadisync/internal/tui"
)

// openApp opens the engine for a one-shot command. Logs go to stderr so the
// command output stays readable.
func openApp(cmd *cli.Command, console *tui.Console) (*internal.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	opts := []internal.Option{
		internal.WithConfig(cfg),
		internal.WithLogOutput(os.Stderr),
	}
	if console != nil {
		opts = append(opts, internal.WithNotifier(console), internal.WithReporter(console))
	}
	return internal.Open(opts...)
}

// withNote runs fn against the note named by the first argument.
func withNote(fn func(ctx context.Context, app *internal.App, console *tui.Console, note models.Note) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		path := cmd.Args().First()
		if path == "" {
			return fmt.Errorf("note path is required")
		}
		console := tui.NewConsole(os.Stdout)
		app, err := openApp(cmd, console)
		if err != nil {
			return err
		}
		defer app.Close()

		note, err := app.Vault.Note(path)
		if err != nil {
			return err
		}
		return fn(ctx, app, console, note)
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Create or update the Kadi4Mat record of a note",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Accept the defaults without asking"},
			&cli.BoolFlag{Name: "accessible", Usage: "Ask with plain prompts instead of the interactive form"},
			&cli.StringFlag{Name: "title", Usage: "Record title"},
			&cli.StringFlag{Name: "state", Usage: "Record state (" + strings.Join(models.RecordStates, ", ") + ")"},
			&cli.StringFlag{Name: "visibility", Usage: "Record visibility (" + strings.Join(models.RecordVisibilities, ", ") + ")"},
			&cli.StringFlag{Name: "license", Usage: "License identifier, see the licenses command"},
			&cli.BoolFlag{Name: "save-log", Usage: "Write the sync log into the vault"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withNote(func(ctx context.Context, app *internal.App, console *tui.Console, note models.Note) error {
				overrides := syncengine.AutoConfirmer{Overrides: syncengine.Confirmation{
					Title:      cmd.String("title"),
					State:      cmd.String("state"),
					Visibility: cmd.String("visibility"),
					License:    cmd.String("license"),
				}}
				var confirmer syncengine.Confirmer = overrides
				if !cmd.Bool("yes") {
					form := tui.FormConfirmer{Input: os.Stdin, Output: os.Stdout, Accessible: cmd.Bool("accessible")}
					confirmer = syncengine.ConfirmerFunc(func(ctx context.Context, p syncengine.Prompt) (syncengine.Confirmation, error) {
						p.Defaults, _ = overrides.Confirm(ctx, p)
						return form.Confirm(ctx, p)
					})
				}

				log := syncengine.NewDebugLog(app.Logger, time.Now)
				res, err := app.Engine.SyncNote(ctx, note, confirmer, syncengine.WithDebugLog(log))
				if cmd.Bool("save-log") {
					op, recordID := attempt(ctx, app.Engine, note, res)
					_, _ = app.Engine.SaveDebugLog(note, op, recordID, log)
				}
				if errors.Is(err, apperr.ErrCancelled) {
					console.Notify("Sync cancelled")
					return nil
				}
				if err != nil {
					return err
				}

				if err := index.Refresh(app.DB, app.Store, note.Path); err != nil {
					app.Logger.Warn("ledger refresh failed", slog.String("path", note.Path), slog.String("error", err.Error()))
				}
				if u, err := app.Engine.RecordURL(ctx, note); err == nil {
					fmt.Println(u)
				}
				return nil
			})(ctx, cmd)
		},
	}
}

// attempt names the operation a sync made, or would have made when it failed.
func attempt(ctx context.Context, e *syncengine.Engine, note models.Note, res *syncengine.Result) (models.Operation, int64) {
	if res != nil {
		return res.Operation, res.Status.RecordID
	}
	st, err := e.Status(ctx, note)
	if err != nil {
		return models.OperationCreate, 0
	}
	return models.OperationUpdate, st.RecordID
}

func previewCommand() *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Show the record a sync would send",
		ArgsUsage: "<path>",
		Action: withNote(func(ctx context.Context, app *internal.App, _ *tui.Console, note models.Note) error {
			p, err := app.Engine.Preview(ctx, note)
			if err != nil {
				return err
			}
			fmt.Println(tui.Heading(syncengine.Prompt{Operation: p.Operation, RecordID: p.RecordID}))
			fmt.Println(tui.RenderPreview(p))
			return nil
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the sync state of a note",
		ArgsUsage: "<path>",
		Action: withNote(func(ctx context.Context, app *internal.App, _ *tui.Console, note models.Note) error {
			ns, err := app.Engine.State(ctx, note)
			if err != nil {
				return err
			}
			fmt.Println(syncengine.StatusLine(ns))
			if ns.Status.IsSynced() {
				fmt.Println(syncengine.FormatStatus(ns.Status))
			}
			return nil
		}),
	}
}

func openCommand() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Print the web address of the record of a note",
		ArgsUsage: "<path>",
		Action: withNote(func(ctx context.Context, app *internal.App, _ *tui.Console, note models.Note) error {
			u, err := app.Engine.RecordURL(ctx, note)
			if err != nil {
				return err
			}
			fmt.Println(u)
			return nil
		}),
	}
}

func testConnectionCommand() *cli.Command {
	return &cli.Command{
		Name:  "test-connection",
		Usage: "Check the configured host and token",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			console := tui.NewConsole(os.Stdout)
			app, err := openApp(cmd, console)
			if err != nil {
				return err
			}
			defer app.Close()

			// The console already printed the outcome.
			_, err = app.Engine.TestConnection(ctx)
			return err
		},
	}
}

func licensesCommand() *cli.Command {
	return &cli.Command{
		Name:      "licenses",
		Usage:     "Search the licenses a record may carry",
		ArgsUsage: "[query]",
		Action: func(_ context.Context, cmd *cli.Command) error {
			found := kadi.SearchLicenses(strings.Join(cmd.Args().Slice(), " "))
			if len(found) == 0 {
				fmt.Println("no licenses found")
				return nil
			}
			for _, l := range found {
				fmt.Printf("%-24s %s\n", l.ID, l.Name)
			}
			return nil
		},
	}
}

func settingsCommand() *cli.Command {
	openStore := func(cmd *cli.Command) (*settings.Store, error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return nil, err
		}
		return settings.Open(cfg.Settings.Path)
	}

	return &cli.Command{
		Name:  "settings",
		Usage: "Show or change the sync settings",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the settings with the token masked",
				Action: func(_ context.Context, cmd *cli.Command) error {
					st, err := openStore(cmd)
					if err != nil {
						return err
					}
					s := st.Get().Redacted()
					out, err := yaml.Marshal(&s)
					if err != nil {
						return err
					}
					fmt.Print(string(out))
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "Change one setting (" + strings.Join(settings.Keys, ", ") + ")",
				ArgsUsage: "<key> <value>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("usage: settings set <key> <value>")
					}
					st, err := openStore(cmd)
					if err != nil {
						return err
					}
					key := cmd.Args().Get(0)
					s := st.Get()
					if err := s.Set(key, cmd.Args().Get(1)); err != nil {
						return err
					}
					if err := st.Save(s); err != nil {
						return err
					}
					fmt.Printf("Saved %s\n", key)
					return nil
				},
			},
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the sync tools over MCP on stdin/stdout",
		Action: func(_ context.Context, cmd *cli.Command) error {
			// stdout belongs to the protocol.
			app, err := openApp(cmd, nil)
			if err != nil {
				return err
			}
			defer app.Close()

			return mcpserver.New(app.Engine, app.Vault, app.DB).ServeStdio()
		},
	}
}
