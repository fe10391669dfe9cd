package cli

import (
	"hush-cli/internal/store"

	"github.com/spf13/cobra"
)

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize ~/.hush/config.yaml",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration (defaults applied; secret hidden)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			path, _ := store.ConfigPath()
			return writeOut(cmd, app, map[string]any{"data": configView(cfg), "meta": map[string]any{"path": path}})
		},
	}

	var me string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults filled in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := store.LoadConfig()
			if err != nil {
				return writeErr(cmd, err)
			}
			if me != "" {
				cfg.Me = me
			}
			if err := store.SaveConfig(cfg); err != nil {
				return writeErr(cmd, err)
			}
			path, _ := store.ConfigPath()
			return writeOut(cmd, app, map[string]any{"data": configView(cfg), "meta": map[string]any{"path": path}})
		},
	}
	initCmd.Flags().StringVar(&me, "me", "", "Your user id")

	cmd.AddCommand(show, initCmd)
	return cmd
}

func configView(cfg store.Config) map[string]any {
	return map[string]any{
		"me":              cfg.Me,
		"contacts":        cfg.Contacts,
		"pageSize":        cfg.PageSize,
		"undoWindow":      cfg.UndoWindow.String(),
		"typingDebounce":  cfg.TypingDebounce.String(),
		"deliveredDelay":  cfg.DeliveredDelay.String(),
		"duplicateWindow": cfg.DuplicateWindow.String(),
		"replyDelayMin":   cfg.ReplyDelayMin.String(),
		"replyDelayMax":   cfg.ReplyDelayMax.String(),
		"secretSet":       cfg.Secret != "",
	}
}
