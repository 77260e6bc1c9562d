// Package inspect persists the frames seen by the tracker for offline review.
package inspect

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/logic/vision"
)

const (
	annotatedDir = "cv"
	rawDir       = "view"
	timeLayout   = "2006-01-02_15-04-05"
)

// DirSink writes annotated frames to <dir>/cv and, optionally, the raw
// captured frames to <dir>/view. File names carry a timestamp and a
// per-sink sequence number so that several frames per second never collide.
type DirSink struct {
	dir     string
	saveRaw bool
	now     func() time.Time

	mu  sync.Mutex
	seq int
}

// NewDirSink creates the output directories.
func NewDirSink(dir string, saveRaw bool) (*DirSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("inspect: output directory is empty")
	}
	subdirs := []string{annotatedDir}
	if saveRaw {
		subdirs = append(subdirs, rawDir)
	}
	for _, sub := range subdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("inspect: %w", err)
		}
	}
	debug.Info("Inspection frames -> %s (raw: %v)", dir, saveRaw)
	return &DirSink{dir: dir, saveRaw: saveRaw, now: time.Now}, nil
}

// Save writes the annotated view, and the raw frame when enabled.
func (s *DirSink) Save(raw, annotated *image.RGBA) error {
	s.mu.Lock()
	s.seq++
	name := fmt.Sprintf("%s_%04d.png", s.now().Format(timeLayout), s.seq)
	s.mu.Unlock()

	if annotated != nil {
		if err := writePNG(filepath.Join(s.dir, annotatedDir, name), annotated); err != nil {
			return err
		}
	}
	if s.saveRaw && raw != nil {
		if err := writePNG(filepath.Join(s.dir, rawDir, name), raw); err != nil {
			return err
		}
	}
	return nil
}

func writePNG(path string, img *image.RGBA) error {
	mat, err := vision.BGRMatFromRGBA(img)
	if err != nil {
		return fmt.Errorf("inspect: %s: %w", path, err)
	}
	defer mat.Close()

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("inspect: failed to write %s", path)
	}
	debug.Trace("Inspection frame written: %s", path)
	return nil
}
