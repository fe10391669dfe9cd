package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"hush-cli/internal/clock"
	"hush-cli/internal/format"
	"hush-cli/internal/lifecycle"
	"hush-cli/internal/store"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type App struct {
	Dir        string
	PrettyJSON bool
	Format     string
	LogLevel   string

	// Overridden in tests.
	clock   clock.Clock
	timeout time.Duration
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "hush",
		Short:        "hush: a local, encrypted conversation store (CLI + TUI)",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive TUI
  hush

  # Scriptable commands
  hush conversations
  hush send alice "lunch today?"
  hush messages alice --page 1
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.Dir, "dir", envOr("HUSH_DIR", ""), "Path to store dir (default: ~/.hush/store)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON/EDN output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("HUSH_FORMAT", "json"), "Output format (json|edn|text)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("HUSH_LOG_LEVEL", "warn"), "Log level (debug|info|warn|error)")

	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newConversationsCmd(app))
	cmd.AddCommand(newSendCmd(app))
	cmd.AddCommand(newMessagesCmd(app))
	cmd.AddCommand(newUnreadCmd(app))
	cmd.AddCommand(newSeenCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newUndoCmd(app))
	cmd.AddCommand(newDraftCmd(app))
	cmd.AddCommand(newEventsCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newImportCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newDocsCmd(app))
	cmd.AddCommand(newChatCmd(app))

	return cmd
}

func resolveDir(app *App) (string, error) {
	if app.Dir != "" {
		return app.Dir, nil
	}
	dir, err := store.DefaultDir()
	if err != nil {
		return "", err
	}
	app.Dir = dir
	return dir, nil
}

func newLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "hush",
		ReportTimestamp: true,
		TimeFormat:      time.Kitchen,
	}), nil
}

// openEngine wires the lifecycle engine from the global config and --dir. Logs go
// to logOut (stderr for one-shot commands, a file for the TUI).
func openEngine(app *App, logOut io.Writer, active lifecycle.ActiveFunc) (*lifecycle.Engine, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	dir, err := resolveDir(app)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(logOut, app.LogLevel)
	if err != nil {
		return nil, err
	}
	st := store.Store{Dir: dir, Contacts: cfg.Contacts}
	if err := st.Ensure(); err != nil {
		return nil, err
	}
	logger.Debug("store opened", "dir", dir, "contacts", len(cfg.Contacts))
	return lifecycle.New(lifecycle.Deps{
		Store:  st,
		Config: cfg,
		Clock:  app.clock,
		Log:    logger,
		Active: active,
	}), nil
}

func engineFor(cmd *cobra.Command, app *App) (*lifecycle.Engine, error) {
	return openEngine(app, cmd.ErrOrStderr(), nil)
}

func resolveConversation(e *lifecycle.Engine, peer string) (string, error) {
	id, ok := e.Resolve(peer)
	if !ok {
		return "", errNotFound("conversation", peer)
	}
	return id, nil
}

// drain waits for simulated activity (delivered receipts, replies) before a one-shot
// command exits.
func drain(ctx context.Context, app *App, e *lifecycle.Engine) error {
	d := app.timeout
	if d <= 0 {
		d = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return e.Drain(ctx)
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
