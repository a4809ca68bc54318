package sink

import (
	"gocv.io/x/gocv"

	"github.com/davidkotlin/AImonitor/video/source"
)

// Window shows images in a desktop preview window. Pressing q or Esc in the
// window invokes OnQuit, if set.
//
// The window is created on the first Put, so that it belongs to the thread
// producing the images. Put and Close must be called from that same thread.
type Window struct {
	Name   string
	OnQuit func()

	window *gocv.Window
}

func NewWindow(name string) *Window {
	return &Window{Name: name}
}

func (w *Window) Put(input source.Image) {
	if w.window == nil {
		w.window = gocv.NewWindow(w.Name)
		w.window.ResizeWindow(input.Mat.Cols(), input.Mat.Rows())
	}
	w.window.IMShow(input.Mat)
	if k := w.window.WaitKey(1); (k == 'q' || k == 27) && w.OnQuit != nil {
		w.OnQuit()
	}
}

func (w *Window) Close() {
	if w.window != nil {
		w.window.Close()
		w.window = nil
	}
}
