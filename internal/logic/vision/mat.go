package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// MatFromRGBA wraps an RGBA frame into a CV_8UC4 Mat. The pixels are copied,
// so the frame is never written through the Mat. Caller closes the Mat.
func MatFromRGBA(img *image.RGBA) (gocv.Mat, error) {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if w <= 0 || h <= 0 {
		return gocv.Mat{}, &EmptyFrameError{Width: w, Height: h}
	}

	pix := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		src := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(pix[y*w*4:(y+1)*w*4], img.Pix[src:src+w*4])
	}

	mat, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("wrap frame %dx%d: %w", w, h, err)
	}
	return mat, nil
}

// BGRMatFromRGBA converts an RGBA frame to the BGR layout OpenCV writes to disk.
// Caller closes the Mat.
func BGRMatFromRGBA(img *image.RGBA) (gocv.Mat, error) {
	rgba, err := MatFromRGBA(img)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer rgba.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)
	return bgr, nil
}

// RGBAFromMat copies a CV_8UC4 (RGBA) or CV_8UC3 (BGR) Mat into a new frame.
func RGBAFromMat(mat gocv.Mat) (*image.RGBA, error) {
	if mat.Empty() {
		return nil, &EmptyFrameError{}
	}

	src := mat
	switch mat.Channels() {
	case 4:
	case 3:
		rgba := gocv.NewMat()
		defer rgba.Close()
		gocv.CvtColor(mat, &rgba, gocv.ColorBGRToRGBA)
		src = rgba
	default:
		return nil, fmt.Errorf("unsupported mat with %d channels", mat.Channels())
	}

	w, h := src.Cols(), src.Rows()
	data := src.ToBytes()
	if len(data) != w*h*4 {
		return nil, fmt.Errorf("mat %dx%d holds %d bytes, want %d", w, h, len(data), w*h*4)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, data)
	return img, nil
}
