package tui

import (
	"context"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// storeChangedMsg reports that another process (usually the CLI) wrote the store.
type storeChangedMsg struct{}

// storeWatcher turns writes to the sqlite file into a coalesced change signal.
//
// Only Write on the main database file counts: each open/close of the store
// creates and removes the WAL sidecars, so reacting to those would make every
// refresh trigger the next one.
type storeWatcher struct {
	fw      *fsnotify.Watcher
	dbPath  string
	log     *log.Logger
	changes chan struct{}
}

func newStoreWatcher(dir, dbPath string, logger *log.Logger) (*storeWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &storeWatcher{
		fw:      fw,
		dbPath:  filepath.Clean(dbPath),
		log:     logger,
		changes: make(chan struct{}, 1),
	}, nil
}

// Run pumps events until ctx is done or the watcher is closed.
func (w *storeWatcher) Run(ctx context.Context) {
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("store watcher", "err", err)
		case <-ctx.Done():
			return
		}
	}
}

func (w *storeWatcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) || filepath.Clean(ev.Name) != w.dbPath {
		return
	}
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *storeWatcher) Close() error { return w.fw.Close() }

// waitStoreChange blocks for the next change signal; a nil channel never fires.
func waitStoreChange(ch <-chan struct{}) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return storeChangedMsg{}
	}
}
