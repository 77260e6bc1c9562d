// Package timeline keeps the keyframes written on the host's axis objects,
// grouped by tracking run.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cjeanneret/SolarGo/internal/hw/actuator"
)

// Entry is one keyframe on one axis, in the host's unit.
type Entry struct {
	RunID      string        `json:"run_id"`
	Axis       actuator.Axis `json:"axis"`
	Frame      int           `json:"frame"`
	Radians    float64       `json:"radians"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Run describes a tracking run.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at,omitempty"` // zero while running
	Termination string    `json:"termination,omitempty"`
}

// Timeline stores runs and their keyframes. Appending a keyframe for an
// axis and frame that already exist replaces it, like the host does.
type Timeline interface {
	BeginRun(id string, at time.Time) error
	FinishRun(id, termination string, at time.Time) error
	Append(e Entry) error
	Entries(runID string) ([]Entry, error)
	Runs() ([]Run, error)
}

// ErrUnknownRun is returned when a run id was never begun.
var ErrUnknownRun = errors.New("unknown run")

// Memory is an in-process Timeline.
type Memory struct {
	mu      sync.Mutex
	runs    []Run
	entries map[string][]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]Entry)}
}

func (m *Memory) BeginRun(id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.runs {
		if r.ID == id {
			return fmt.Errorf("run %s already exists", id)
		}
	}
	m.runs = append(m.runs, Run{ID: id, StartedAt: at})
	return nil
}

func (m *Memory) FinishRun(id, termination string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			m.runs[i].FinishedAt = at
			m.runs[i].Termination = termination
			return nil
		}
	}
	return fmt.Errorf("finish run %s: %w", id, ErrUnknownRun)
}

func (m *Memory) Append(e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.entries[e.RunID]
	for i := range list {
		if list[i].Axis == e.Axis && list[i].Frame == e.Frame {
			list[i] = e
			return nil
		}
	}
	m.entries[e.RunID] = append(list, e)
	return nil
}

// Entries returns the keyframes of a run ordered by frame, then axis.
func (m *Memory) Entries(runID string) ([]Entry, error) {
	m.mu.Lock()
	out := append([]Entry(nil), m.entries[runID]...)
	m.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Frame != out[j].Frame {
			return out[i].Frame < out[j].Frame
		}
		return out[i].Axis < out[j].Axis
	})
	return out, nil
}

// Runs returns the runs, most recent first.
func (m *Memory) Runs() ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Run, 0, len(m.runs))
	for i := len(m.runs) - 1; i >= 0; i-- {
		out = append(out, m.runs[i])
	}
	return out, nil
}

// Recorder writes the keyframes of one run to one or more timelines.
type Recorder struct {
	runID     string
	timelines []Timeline
	now       func() time.Time
}

// NewRecorder returns a Recorder for runID. The run must be begun separately.
func NewRecorder(runID string, timelines ...Timeline) *Recorder {
	return &Recorder{runID: runID, timelines: timelines, now: time.Now}
}

// RunID returns the run the recorder writes to.
func (r *Recorder) RunID() string { return r.runID }

// InsertKeyframe appends the entry to every timeline. Every timeline is
// attempted; failures are joined.
func (r *Recorder) InsertKeyframe(axis actuator.Axis, frame int, radians float64) error {
	e := Entry{RunID: r.runID, Axis: axis, Frame: frame, Radians: radians, RecordedAt: r.now()}
	var errs []error
	for _, tl := range r.timelines {
		if err := tl.Append(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Begin starts the run on every timeline.
func (r *Recorder) Begin() error {
	var errs []error
	at := r.now()
	for _, tl := range r.timelines {
		if err := tl.BeginRun(r.runID, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Finish closes the run on every timeline.
func (r *Recorder) Finish(termination string) error {
	var errs []error
	at := r.now()
	for _, tl := range r.timelines {
		if err := tl.FinishRun(r.runID, termination, at); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
