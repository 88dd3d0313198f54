package tui

import (
	"sync"

	"github.com/andrew/tutor-chat/pkg/conversation"
	"github.com/andrew/tutor-chat/pkg/models"
	tea "github.com/charmbracelet/bubbletea"
)

// storeChangedMsg tells the model to re-read the store
type storeChangedMsg struct{}

// watcher turns store notifications into tea messages without blocking the
// goroutine that mutated the store. Bursts collapse into one wake-up because
// the model always re-reads the latest snapshot.
type watcher struct {
	signal      chan struct{}
	done        chan struct{}
	unsubscribe func()
	once        sync.Once
}

func newWatcher(store *conversation.Store) *watcher {
	w := &watcher{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	w.unsubscribe = store.Subscribe(func(models.Snapshot) {
		select {
		case w.signal <- struct{}{}:
		default:
		}
	})
	return w
}

func (w *watcher) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-w.signal:
			return storeChangedMsg{}
		case <-w.done:
			return nil
		}
	}
}

func (w *watcher) stop() {
	w.once.Do(func() {
		w.unsubscribe()
		close(w.done)
	})
}
