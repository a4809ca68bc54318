package process

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/davidkotlin/AImonitor/video/sink"
)

// Params are the constants of the frame differencing pipeline.
type Params struct {
	// BlurSize is the side of the square Gaussian kernel. Must be odd.
	BlurSize int `json:"blur_size" validate:"gte=1"`
	// Threshold is the minimum blurred intensity, out of 255, counted as change.
	Threshold float32 `json:"threshold" validate:"gte=0,lte=255"`
	// DilateIterations merges nearby fragments of the motion mask.
	DilateIterations int `json:"dilate_iterations" validate:"gte=0"`
	// MinArea is the noise floor, in px², below which a region is ignored.
	MinArea float64 `json:"min_area" validate:"gte=0"`
}

func DefaultParams() Params {
	return Params{
		BlurSize:         5,
		Threshold:        20,
		DilateIterations: 3,
		MinArea:          15000,
	}
}

// Analysis is the result of comparing two consecutive frames.
type Analysis struct {
	// Motion is set when at least one region survives the MinArea floor.
	Motion bool
	// DiffSum is the sum of every channel of the raw difference image. It is a
	// global measure, independent of which regions survived.
	DiffSum float64
	// Regions are the bounding boxes of the surviving regions.
	Regions []image.Rectangle
}

type Motion struct {
	Params Params

	// Debug receives intermediate images when set.
	Debug *sink.MJPEGStreamPool

	diff, gray, blur, mask gocv.Mat
	kernel                 gocv.Mat
}

func NewMotion(p Params) *Motion {
	return &Motion{
		Params: p,
		diff:   gocv.NewMat(),
		gray:   gocv.NewMat(),
		blur:   gocv.NewMat(),
		mask:   gocv.NewMat(),
		// Same as OpenCV's default dilation element.
		kernel: gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 3, Y: 3}),
	}
}

// Analyze compares cur against prev. Neither input is modified.
func (m *Motion) Analyze(prev, cur gocv.Mat) Analysis {
	gocv.AbsDiff(prev, cur, &m.diff)

	s := m.diff.Sum()
	a := Analysis{
		DiffSum: s.Val1 + s.Val2 + s.Val3 + s.Val4,
	}

	gocv.CvtColor(m.diff, &m.gray, gocv.ColorBGRToGray)
	k := m.Params.BlurSize
	gocv.GaussianBlur(m.gray, &m.blur, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)
	m.debug("diff", m.blur)

	gocv.Threshold(m.blur, &m.mask, m.Params.Threshold, 255, gocv.ThresholdBinary)
	for i := 0; i < m.Params.DilateIterations; i++ {
		gocv.Dilate(m.mask, &m.mask, m.kernel)
	}
	m.debug("mask", m.mask)

	contours := gocv.FindContours(m.mask, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if gocv.ContourArea(c) < m.Params.MinArea {
			continue
		}
		a.Motion = true
		a.Regions = append(a.Regions, gocv.BoundingRect(c))
	}
	return a
}

func (m *Motion) debug(name string, img gocv.Mat) {
	if m.Debug != nil {
		m.Debug.Put(name, img)
	}
}

func (m *Motion) Close() {
	m.diff.Close()
	m.gray.Close()
	m.blur.Close()
	m.mask.Close()
	m.kernel.Close()
}
