package video

import (
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/davidkotlin/AImonitor/video/source"
)

var (
	posA = image.Point{X: 20, Y: 20}
	posB = image.Point{X: 420, Y: 300}

	t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func blackMat() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
}

// frame returns a black 640x480 image with a white box of size w x h at p,
// or no box when w is zero.
func frame(t *testing.T, seq int, p image.Point, w, h int) source.Image {
	t.Helper()
	m := blackMat()
	if w > 0 {
		r := image.Rect(p.X, p.Y, p.X+w, p.Y+h)
		gocv.Rectangle(&m, r, color.RGBA{R: 255, G: 255, B: 255, A: 0}, -1)
	}
	return source.Image{
		Mat:  m,
		Time: t0.Add(time.Duration(seq) * 100 * time.Millisecond),
		Seq:  uint64(seq),
	}
}

func black(t *testing.T, seq int) source.Image {
	return frame(t, seq, image.Point{}, 0, 0)
}

// greenPixels counts the pixels drawn in the region box colour.
func greenPixels(m gocv.Mat) int {
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(m, gocv.NewScalar(0, 200, 0, 0), gocv.NewScalar(50, 255, 50, 0), &mask)
	return gocv.CountNonZero(mask)
}

func closeAll(images []source.Image) {
	for i := range images {
		images[i].Close()
	}
}

// recorder is a Handoff keeping everything it receives.
type recorder struct {
	mu     sync.Mutex
	events []*Event
}

func (r *recorder) Put(e *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		e.Release()
	}
	r.events = nil
}
