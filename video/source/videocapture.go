package source

import (
	"fmt"
	"io"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// VideoCapture reads frames from a camera device index, a stream URI or a
// video file through OpenCV.
type VideoCapture struct {
	URI string

	// Warmup is slept after opening so that the device can settle exposure
	// before the first frames are used as a motion baseline.
	Warmup time.Duration

	cap *gocv.VideoCapture
	seq uint64
}

func NewVideoCapture(uri string, warmup time.Duration) *VideoCapture {
	return &VideoCapture{
		URI:    uri,
		Warmup: warmup,
	}
}

func (v *VideoCapture) Open() error {
	var device interface{} = v.URI
	// Bare integers address local devices, e.g. "0" for /dev/video0.
	if id, err := strconv.Atoi(v.URI); err == nil {
		device = id
	}
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("failed to open video capture %q: %w", v.URI, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("video capture %q did not open", v.URI)
	}
	v.cap = cap
	log.WithField("uri", v.URI).Infof("Video capture opened")
	if v.Warmup > 0 {
		time.Sleep(v.Warmup)
	}
	return nil
}

func (v *VideoCapture) Read() (Image, error) {
	if v.cap == nil {
		return Image{}, io.EOF
	}
	i := NewImage()
	if ok := v.cap.Read(&i.Mat); !ok || i.Mat.Empty() {
		i.Close()
		// A failed read ends the stream; there is no retry.
		log.WithField("uri", v.URI).Infof("Read failure, treating as end of stream")
		return Image{}, io.EOF
	}
	v.seq++
	i.Seq = v.seq
	i.Time = time.Now()
	return i, nil
}

func (v *VideoCapture) Close() error {
	if v.cap == nil {
		return nil
	}
	err := v.cap.Close()
	v.cap = nil
	log.WithField("uri", v.URI).Infof("Video capture released")
	return err
}
