package viz

import (
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

type specChangedMsg struct{}

type watchErrMsg struct{ err error }

// newSpecWatcher watches the directory of path, since editors often replace
// a file instead of writing it in place.
func newSpecWatcher(path string) (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// waitForChange blocks until path is written or recreated.
func waitForChange(w *fsnotify.Watcher, path string) tea.Cmd {
	target := filepath.Clean(path)
	return func() tea.Msg {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) == target && ev.Has(fsnotify.Write|fsnotify.Create) {
					return specChangedMsg{}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}
