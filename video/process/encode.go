package process

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"github.com/davidkotlin/AImonitor/video/source"
)

// EncodeJPEG returns the JPEG encoding of img.
func EncodeJPEG(img source.Image) ([]byte, error) {
	if img.Mat.Empty() {
		return nil, errors.New("cannot encode empty image")
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, img.Mat)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()
	// The native buffer is freed on Close, keep a Go copy.
	b := buf.GetBytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}
