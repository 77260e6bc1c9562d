package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/cjeanneret/SolarGo/internal/logic/tracking"
	"github.com/cjeanneret/SolarGo/internal/timeline"
)

const (
	maxRunBodyBytes = 1 << 20
	minRunInterval  = 5 * time.Second
)

// Overrides holds tracker parameters that can override config defaults.
type Overrides struct {
	StepDeg       float64 `json:"step_deg"`
	TolerancePx   int     `json:"tolerance_px"`
	MaxIterations int     `json:"max_iterations"`
}

// ValidateOverrides checks that every override is within its allowed range.
func ValidateOverrides(o Overrides) error {
	if math.IsNaN(o.StepDeg) || math.IsInf(o.StepDeg, 0) || o.StepDeg <= 0 || o.StepDeg > 45 {
		return fmt.Errorf("step_deg must be in (0, 45], got %g", o.StepDeg)
	}
	if o.TolerancePx < 1 || o.TolerancePx > 1024 {
		return fmt.Errorf("tolerance_px must be between 1 and 1024, got %d", o.TolerancePx)
	}
	if o.MaxIterations < 1 || o.MaxIterations > 100000 {
		return fmt.Errorf("max_iterations must be between 1 and 100000, got %d", o.MaxIterations)
	}
	return nil
}

// RunTrackerFunc runs the tracker with the given overrides.
// It is called from the POST /run handler in a goroutine.
type RunTrackerFunc func(ctx context.Context, overrides Overrides) (tracking.Termination, error)

// StatusFunc returns the snapshot of the current (or last) run.
type StatusFunc func() tracking.Status

// FormConfig holds default values for the run form (from config).
type FormConfig struct {
	StepDeg       float64 `json:"step_deg"`
	TolerancePx   int     `json:"tolerance_px"`
	MaxIterations int     `json:"max_iterations"`
	Follow        bool    `json:"follow"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunTracker   RunTrackerFunc
	FormDefaults FormConfig
	Status       StatusFunc        // nil: GET /status returns 503
	Timeline     timeline.Timeline // nil: timeline routes return 503

	runningMu sync.Mutex
	running   bool
	lastRun   time.Time
	cancelRun context.CancelFunc
	baseCtx   context.Context
	staticFS  fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runTracker is nil, POST /run will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runTracker RunTrackerFunc, formDefaults FormConfig, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunTracker:   runTracker,
		FormDefaults: formDefaults,
		staticFS:     staticFS,
	}
}

// SetBaseContext sets the parent context of runs started over HTTP.
// Cancelling it cancels the active run.
func (h *Handlers) SetBaseContext(ctx context.Context) {
	h.runningMu.Lock()
	h.baseCtx = ctx
	h.runningMu.Unlock()
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleRun handles POST /run to start a tracking run.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var overrides Overrides
	body := http.MaxBytesReader(w, r.Body, maxRunBodyBytes)
	if err := json.NewDecoder(body).Decode(&overrides); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if err := ValidateOverrides(overrides); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunTracker == nil {
		http.Error(w, "tracker not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "tracking already in progress", http.StatusConflict)
		return
	}
	if !h.lastRun.IsZero() && time.Since(h.lastRun) < minRunInterval {
		h.runningMu.Unlock()
		http.Error(w, "too many runs, retry later", http.StatusTooManyRequests)
		return
	}
	base := h.baseCtx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	h.running = true
	h.lastRun = time.Now()
	h.cancelRun = cancel
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		defer func() {
			cancel()
			h.runningMu.Lock()
			h.running = false
			h.cancelRun = nil
			h.runningMu.Unlock()
		}()

		term, err := h.RunTracker(ctx, overrides)
		if err != nil {
			h.Broadcaster.Broadcast(LevelError, "Tracking failed: "+err.Error())
			log.Printf("tracking failed: %v", err)
		} else {
			h.Broadcaster.Broadcast(LevelInfo, "Tracking finished: "+string(term))
		}
		if h.Status != nil {
			h.Broadcaster.BroadcastStatus(h.Status())
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// HandleStop handles POST /stop to cancel the current run.
func (h *Handlers) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.runningMu.Lock()
	cancel := h.cancelRun
	h.runningMu.Unlock()

	if cancel == nil {
		http.Error(w, "no tracking in progress", http.StatusConflict)
		return
	}
	cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "stopping"})
}

// HandleStatus returns the tracker snapshot as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		http.Error(w, "status not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, h.Status())
}

// HandleRuns lists the recorded runs, most recent first.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if h.Timeline == nil {
		http.Error(w, "timeline not configured", http.StatusServiceUnavailable)
		return
	}
	runs, err := h.Timeline.Runs()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []timeline.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// HandleTimeline renders the keyframes of a run (?run=<id>, default latest)
// as an HTML chart, or as JSON with ?format=json.
func (h *Handlers) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	if h.Timeline == nil {
		http.Error(w, "timeline not configured", http.StatusServiceUnavailable)
		return
	}
	run, err := h.findRun(r.URL.Query().Get("run"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	entries, err := h.Timeline.Entries(run.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		if entries == nil {
			entries = []timeline.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	var buf bytes.Buffer
	if err := timeline.RenderChart(&buf, run, entries, ""); err != nil {
		http.Error(w, fmt.Sprintf("failed to render chart: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

var errNoRuns = errors.New("no runs recorded")

func (h *Handlers) findRun(id string) (timeline.Run, error) {
	runs, err := h.Timeline.Runs()
	if err != nil {
		return timeline.Run{}, err
	}
	if len(runs) == 0 {
		return timeline.Run{}, errNoRuns
	}
	if id == "" {
		return runs[0], nil
	}
	for _, r := range runs {
		if r.ID == id {
			return r, nil
		}
	}
	return timeline.Run{}, fmt.Errorf("run %s: %w", id, timeline.ErrUnknownRun)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
