package status

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rasata/transcription-mp3-to-text/internal/logging"
)

// sendBuffer bounds per-client queued snapshots. A client that cannot keep
// up is dropped rather than allowed to stall the job.
const sendBuffer = 8

var upgrader = websocket.Upgrader{
	// The feed runs on localhost for local tooling; origin checks add
	// nothing here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Feed broadcasts status snapshots to WebSocket subscribers. New
// subscribers immediately receive the most recent snapshot.
type Feed struct {
	log      *logging.Logger
	listener net.Listener
	server   *http.Server

	mu    sync.Mutex
	conns map[*websocket.Conn]chan []byte
	last  []byte
}

// NewFeed creates a feed without starting a listener; use Start or mount
// the feed on an existing mux via ServeHTTP.
func NewFeed(log *logging.Logger) *Feed {
	return &Feed{
		log:   log,
		conns: make(map[*websocket.Conn]chan []byte),
	}
}

// Start listens on addr (e.g. "127.0.0.1:8765") and serves the feed.
func (f *Feed) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	f.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/status", f.ServeHTTP)
	f.server = &http.Server{Handler: mux}

	go func() {
		if err := f.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			f.log.Warn("status feed stopped", "error", err)
		}
	}()

	f.log.Info("status feed listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the feed's listening address, or "" before Start.
func (f *Feed) Addr() string {
	if f.listener == nil {
		return ""
	}
	return f.listener.Addr().String()
}

// Close drops all subscribers and stops the listener.
func (f *Feed) Close() {
	f.mu.Lock()
	for conn, ch := range f.conns {
		close(ch)
		delete(f.conns, conn)
	}
	f.mu.Unlock()

	if f.server != nil {
		_ = f.server.Close()
	}
}

// Publish broadcasts the snapshot to every subscriber. Subscribers with a
// full send buffer are dropped.
func (f *Feed) Publish(s Snapshot) {
	payload, err := json.Marshal(&s)
	if err != nil {
		f.log.Warn("could not encode status snapshot", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = payload

	for conn, ch := range f.conns {
		select {
		case ch <- payload:
		default:
			f.log.Warn("dropping slow status subscriber", "remote", conn.RemoteAddr().String())
			close(ch)
			delete(f.conns, conn)
		}
	}
}

// ServeHTTP upgrades the request and streams snapshots until the client
// disconnects.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.Warn("status feed upgrade failed", "error", err)
		return
	}

	ch := make(chan []byte, sendBuffer)

	f.mu.Lock()
	f.conns[conn] = ch
	if f.last != nil {
		ch <- f.last
	}
	f.mu.Unlock()

	// Discard client frames; the feed is one-way. The read loop also
	// notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.unsubscribe(conn)
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for payload := range ch {
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				f.unsubscribe(conn)
				return
			}
		}
	}()
}

func (f *Feed) unsubscribe(conn *websocket.Conn) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.conns[conn]; ok {
		close(ch)
		delete(f.conns, conn)
	}
}
