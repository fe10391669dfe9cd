package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"hush-cli/internal/tui"

	"github.com/spf13/cobra"
)

const logFileName = "hush.log"

func newChatCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [peer]",
		Short: "Open the interactive chat screen",
		Long:  "Open the interactive chat screen, optionally straight into the conversation with peer.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peer := ""
			if len(args) == 1 {
				peer = args[0]
			}
			return runTUI(cmd, app, peer)
		},
	}
}

// runTUI starts the full-screen UI. Logs go to a file in the store dir since the
// terminal belongs to the UI.
func runTUI(cmd *cobra.Command, app *App, peer string) error {
	dir, err := resolveDir(app)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	e, err := openEngine(app, f, nil)
	if err != nil {
		return err
	}
	open := ""
	if peer != "" {
		if open, err = resolveConversation(e, peer); err != nil {
			return err
		}
	}
	logger, err := newLogger(f, app.LogLevel)
	if err != nil {
		return err
	}
	return tui.Run(cmd.Context(), e, tui.Options{Open: open, Log: logger.WithPrefix("tui")})
}
