package camera

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"

	"github.com/cjeanneret/SolarGo/internal/debug"
	"github.com/cjeanneret/SolarGo/internal/logic/vision"
)

// Replay serves PNG frames from a directory. Frame N of the scene is file
// N modulo the number of files, in lexical order. Frames whose size differs
// from the configured resolution are resized.
type Replay struct {
	files  []string
	width  int
	height int
}

// NewReplay lists the PNG files of dir.
func NewReplay(dir string, width, height int) (*Replay, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("replay: no PNG frames in %s", dir)
	}
	sort.Strings(files)

	debug.Info("Replay camera: %d frames from %s", len(files), dir)
	return &Replay{files: files, width: width, height: height}, nil
}

// Len returns the number of recorded frames.
func (r *Replay) Len() int {
	return len(r.files)
}

func (r *Replay) Capture(ctx context.Context, rc RenderContext) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx := rc.Tick % len(r.files)
	if idx < 0 {
		idx += len(r.files)
	}
	path := r.files[idx]
	debug.Verbose("Replay camera: tick %d -> %s", rc.Tick, filepath.Base(path))

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("replay: cannot decode %s", path)
	}
	defer mat.Close()

	if r.width > 0 && r.height > 0 && (mat.Cols() != r.width || mat.Rows() != r.height) {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, image.Pt(r.width, r.height), 0, 0, gocv.InterpolationArea)
		img, err := vision.RGBAFromMat(resized)
		if err != nil {
			return nil, fmt.Errorf("replay: %s: %w", path, err)
		}
		return img, nil
	}

	img, err := vision.RGBAFromMat(mat)
	if err != nil {
		return nil, fmt.Errorf("replay: %s: %w", path, err)
	}
	return img, nil
}
