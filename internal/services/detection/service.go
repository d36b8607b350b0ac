package detection

import (
	"fmt"
	"image"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"

	"vehicle-counter-go/internal/config"
	"vehicle-counter-go/internal/models"
)

// Params configures the motion detector.
type Params struct {
	BlurKernel    int
	BlurSigma     float64
	MOG2History   int
	MOG2Threshold float64
	MorphKernel   int
	ROI           image.Rectangle // empty = whole frame
	Filter        models.SizeFilter
}

// ParamsFromConfig builds detector parameters from the service config
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		BlurKernel:    cfg.BlurKernelSize,
		BlurSigma:     cfg.BlurSigma,
		MOG2History:   cfg.MOG2History,
		MOG2Threshold: cfg.MOG2VarThresh,
		MorphKernel:   cfg.MorphKernel,
		ROI:           cfg.ROI(),
		Filter:        cfg.SizeFilter(),
	}
}

// MotionDetector extracts moving-object boxes from frames using a persistent
// MOG2 background model. It is stateful and must be used for a single video,
// one frame at a time. Always call Close() when done.
type MotionDetector struct {
	params Params

	gray       gocv.Mat
	blurred    gocv.Mat
	foreground gocv.Mat
	kernel     gocv.Mat
	subtractor gocv.BackgroundSubtractorMOG2
}

// NewMotionDetector allocates the OpenCV resources for one video
func NewMotionDetector(params Params) *MotionDetector {
	return &MotionDetector{
		params:     params,
		gray:       gocv.NewMat(),
		blurred:    gocv.NewMat(),
		foreground: gocv.NewMat(),
		kernel:     gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(params.MorphKernel, params.MorphKernel)),
		subtractor: gocv.NewBackgroundSubtractorMOG2WithParams(params.MOG2History, params.MOG2Threshold, false),
	}
}

// Detect segments motion in frame and returns the boxes that pass the size filter.
//
// Pipeline: grayscale, Gaussian blur, MOG2 subtraction, morphological open
// then close, region of interest, external contours, size filter.
func (d *MotionDetector) Detect(frame gocv.Mat) ([]models.BoundingBox, error) {
	if frame.Empty() {
		return nil, nil
	}

	if err := gocv.CvtColor(frame, &d.gray, gocv.ColorBGRToGray); err != nil {
		return nil, fmt.Errorf("failed to convert frame to grayscale: %w", err)
	}
	ksize := image.Pt(d.params.BlurKernel, d.params.BlurKernel)
	if err := gocv.GaussianBlur(d.gray, &d.blurred, ksize, d.params.BlurSigma, d.params.BlurSigma, gocv.BorderDefault); err != nil {
		return nil, fmt.Errorf("failed to blur frame: %w", err)
	}
	if err := d.subtractor.Apply(d.blurred, &d.foreground); err != nil {
		return nil, fmt.Errorf("failed to apply background subtractor: %w", err)
	}
	if err := gocv.MorphologyEx(d.foreground, &d.foreground, gocv.MorphOpen, d.kernel); err != nil {
		return nil, fmt.Errorf("failed to open foreground mask: %w", err)
	}
	if err := gocv.MorphologyEx(d.foreground, &d.foreground, gocv.MorphClose, d.kernel); err != nil {
		return nil, fmt.Errorf("failed to close foreground mask: %w", err)
	}

	roi := clipROI(d.params.ROI, d.foreground.Cols(), d.foreground.Rows())
	if roi.Empty() {
		return nil, nil
	}

	mask := d.foreground
	if roi != image.Rect(0, 0, d.foreground.Cols(), d.foreground.Rows()) {
		mask = d.foreground.Region(roi)
		defer mask.Close()
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	boxes := make([]models.BoundingBox, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)
		rect := gocv.BoundingRect(contour).Add(roi.Min)
		box := models.BoxFromRect(rect)
		if !d.params.Filter.Accept(box, gocv.ContourArea(contour)) {
			continue
		}
		boxes = append(boxes, box)
	}

	log.Trace().Int("contours", contours.Size()).Int("boxes", len(boxes)).Msg("Motion detection complete")
	return boxes, nil
}

// Close releases all OpenCV native resources used by the detector
func (d *MotionDetector) Close() {
	d.gray.Close()
	d.blurred.Close()
	d.foreground.Close()
	d.kernel.Close()
	d.subtractor.Close()
}

// clipROI intersects roi with the frame. An empty roi selects the whole frame.
func clipROI(roi image.Rectangle, width, height int) image.Rectangle {
	frame := image.Rect(0, 0, width, height)
	if roi.Empty() {
		return frame
	}
	return roi.Intersect(frame)
}
