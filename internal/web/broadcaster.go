package web

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/SolarGo/internal/logic/tracking"
)

// Event levels.
const (
	LevelInfo   = "info"
	LevelLive   = "live"
	LevelDebug  = "debug"
	LevelError  = "error"
	LevelStatus = "status" // carries a tracker snapshot
)

// StatusEvent represents a single message for SSE.
type StatusEvent struct {
	Time   string           `json:"t"`
	Level  string           `json:"l,omitempty"`
	Msg    string           `json:"msg,omitempty"`
	Status *tracking.Status `json:"status,omitempty"`
}

// StatusBroadcaster distributes log lines and tracker snapshots to SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The caller must call the returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

// Clients returns the number of subscribers.
func (b *StatusBroadcaster) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Broadcast sends a message to all subscribed clients as JSON:
// {"t":"...","l":"info","msg":"..."}. Slow clients miss messages.
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.publish(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast(LevelInfo, msg)
}

// BroadcastStatus sends a tracker snapshot.
func (b *StatusBroadcaster) BroadcastStatus(st tracking.Status) {
	b.publish(StatusEvent{Level: LevelStatus, Status: &st})
}

func (b *StatusBroadcaster) publish(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// BroadcastWriter implements io.Writer; each line written is broadcast to
// SSE clients with a level derived from its debug tag.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	for _, line := range strings.Split(string(p), "\n") {
		msg := strings.TrimSpace(line)
		if msg != "" {
			w.b.Broadcast(levelOf(msg), msg)
		}
	}
	return len(p), nil
}

// levelOf maps a debug line tag to an event level.
func levelOf(line string) string {
	switch {
	case strings.Contains(line, "[ERROR]"):
		return LevelError
	case strings.Contains(line, "[LIVE]"):
		return LevelLive
	case strings.Contains(line, "[VERBOSE]"), strings.Contains(line, "[TRACE]"), strings.Contains(line, "[GPIO]"):
		return LevelDebug
	default:
		return LevelInfo
	}
}
