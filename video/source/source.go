package source

import (
	"time"

	"gocv.io/x/gocv"
)

// Image is a single captured frame. Seq is assigned by the capture source in
// read order, starting at 1.
type Image struct {
	Mat    gocv.Mat
	Time   time.Time
	Seq    uint64
	closed bool
}

func (i *Image) Close() {
	if i.closed {
		panic("image already closed")
	}
	i.closed = true
	i.Mat.Close()
}

func (i *Image) Clone() Image {
	return Image{
		Mat:  i.Mat.Clone(),
		Time: i.Time,
		Seq:  i.Seq,
	}
}

func NewImage() Image {
	return Image{
		Mat:  gocv.NewMat(),
		Time: time.Now(),
	}
}

// Source defines a stream of images, such as a camera.
type Source interface {
	// Open acquires the underlying device. An error here is fatal for the
	// caller; nothing else about a source is.
	Open() error

	// Read returns the next image. The caller owns the returned Image and must
	// Close it. io.EOF signals that no further images will be produced.
	Read() (Image, error)

	// Close disconnects from the capture source and frees up all resources.
	Close() error
}
