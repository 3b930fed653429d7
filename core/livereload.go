package core

import (
	"io/fs"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
)

// reloadMessage is what the injected dev-mode script listens for before
// refreshing the page.
const reloadMessage = "reload"

// LiveReloader pushes a reload message to connected browsers when the
// template or static trees change. Dev mode only.
type LiveReloader struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

func NewLiveReloader() *LiveReloader {
	return &LiveReloader{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// The dev server is reached as localhost and 127.0.0.1 both,
			// so origin checks only get in the way here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler upgrades the connection and tracks it until the browser goes away.
func (lr *LiveReloader) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := lr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	lr.mu.Lock()
	lr.clients[conn] = struct{}{}
	lr.mu.Unlock()

	go lr.drain(conn)
}

// drain consumes client frames so close and ping frames are processed,
// dropping the connection on the first read error.
func (lr *LiveReloader) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			lr.drop(conn)
			return
		}
	}
}

func (lr *LiveReloader) drop(conn *websocket.Conn) {
	lr.mu.Lock()
	delete(lr.clients, conn)
	lr.mu.Unlock()
	conn.Close()
}

// BroadcastReload tells every connected page to refresh. Connections that
// fail the write are dropped.
func (lr *LiveReloader) BroadcastReload() {
	lr.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(lr.clients))
	for conn := range lr.clients {
		conns = append(conns, conn)
	}
	lr.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reloadMessage)); err != nil {
			lr.drop(conn)
		}
	}
}

// WatchDirs watches the given directory trees and calls onChange after
// filesystem events settle. Events are debounced because editors tend to
// fire several per save.
func WatchDirs(dirs []string, onChange func()) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				watcher.Add(path)
			}
			return nil
		})
	}

	go func() {
		var timer *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op.Has(fsnotify.Create) {
					// New directories need their own watch.
					watcher.Add(event.Name)
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(100*time.Millisecond, onChange)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher, nil
}
