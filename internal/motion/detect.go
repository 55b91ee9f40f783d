package motion

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/watchcam/watchcam/internal/frame"
)

var (
	redColor   = color.RGBA{R: 255}
	greenColor = color.RGBA{G: 255}
	dilateElem = gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
)

// downsample converts a BGR frame to the grayscale, 21x21-Gaussian-blurred
// Mat used for motion comparison (spec.md §4.2's "downsampled frame").
func downsample(f *frame.Frame) (gocv.Mat, error) {
	src, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("motion: mat from bytes: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)

	blurred := gocv.NewMat()
	gocv.GaussianBlur(gray, &blurred, image.Pt(21, 21), 0, 0, gocv.BorderDefault)
	gray.Close()

	return blurred, nil
}

// detectResult is the outcome of comparing two downsampled frames.
type detectResult struct {
	triggered bool
	contours  gocv.PointsVector
}

// detect runs the absdiff -> threshold -> dilate -> contour pipeline from
// spec.md §4.2 and reports whether any contour meets minArea.
func detect(previous, current gocv.Mat, minArea float64) (detectResult, error) {
	if previous.Empty() || current.Empty() {
		return detectResult{}, fmt.Errorf("motion: empty frame")
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(previous, current, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, 25, 255, gocv.ThresholdBinary)

	dilated := gocv.NewMat()
	defer dilated.Close()
	gocv.DilateWithParams(thresh, &dilated, dilateElem, image.Pt(1, 1), 1, gocv.BorderConstant, gocv.Scalar{})

	contours := gocv.FindContours(dilated, gocv.RetrievalTree, gocv.ChainApproxSimple)

	triggered := false
	for i := 0; i < contours.Size(); i++ {
		if gocv.ContourArea(contours.At(i)) >= minArea {
			triggered = true
			break
		}
	}

	return detectResult{triggered: triggered, contours: contours}, nil
}

// annotate draws contour polylines (red) and/or bounding rectangles (green)
// onto the original BGR frame. Caller must have already verified exclusive
// ownership via frame.Ref.TryClaim.
func annotate(f *frame.Frame, contours gocv.PointsVector, drawContours, drawRectangles bool) error {
	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		return fmt.Errorf("motion: annotate mat from bytes: %w", err)
	}
	defer mat.Close()

	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if drawContours {
			gocv.Polylines(&mat, gocv.NewPointsVectorFromPoints([][]image.Point{c.ToPoints()}), true, redColor, 2)
		}
		if drawRectangles {
			gocv.Rectangle(&mat, gocv.BoundingRect(c), greenColor, 2)
		}
	}
	return nil
}
