package sink

import (
	"github.com/davidkotlin/AImonitor/video/source"
)

// Sink defines a destination for a stream of images, such as a preview window
// or an MJPEG stream. Sinks are cosmetic: they never influence detection.
type Sink interface {
	// Put inserts an image to the sink. The caller *must not* modify this image
	// and the sink should not hold any references to the underlying Mat.
	Put(input source.Image)

	// Close should be called to finalize the Sink.
	Close()
}
