// Package tui is the interactive chat screen: a conversation sidebar, the message
// thread and a composer, all backed by the lifecycle engine.
package tui

import (
	"context"
	"path/filepath"
	"time"

	"hush-cli/internal/lifecycle"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
)

const drainTimeout = 3 * time.Second

type Options struct {
	// Open is the conversation to show first; empty restores the last session.
	Open string
	Log  *log.Logger
}

func Run(ctx context.Context, eng *lifecycle.Engine, opts Options) error {
	applyThemePreference()
	applyColorProfilePreference()

	logger := opts.Log
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsub := eng.Bus().Channel(64)
	defer unsub()

	var changes <-chan struct{}
	st := eng.Store()
	if w, err := newStoreWatcher(filepath.Dir(st.DBPath()), st.DBPath(), logger.WithPrefix("watch")); err != nil {
		logger.Warn("store watcher disabled", "err", err)
	} else {
		defer w.Close()
		go w.Run(ctx)
		changes = w.changes
	}

	m := newAppModel(ctx, eng, modelOptions{
		Open:    opts.Open,
		Events:  events,
		Changes: changes,
		Log:     logger,
	})
	final, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if fm, ok := final.(appModel); ok {
		if serr := eng.Store().SaveTUIState(fm.state()); serr != nil {
			logger.Warn("save tui state", "err", serr)
		}
	}
	if err != nil {
		return err
	}
	// Let in-flight delivery and reply timers land before the process exits.
	eng.Settle(ctx)
	dctx, dcancel := context.WithTimeout(ctx, drainTimeout)
	defer dcancel()
	if err := eng.Drain(dctx); err != nil {
		logger.Warn("exit before pending activity landed", "err", err)
	}
	return nil
}
