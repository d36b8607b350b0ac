package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/services/pipeline"
	"vehicle-counter-go/internal/tracking"
)

var (
	lineColor     = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	zoneColor     = color.RGBA{R: 255, G: 165, B: 0, A: 255}
	boxColor      = color.RGBA{R: 0, G: 165, B: 255, A: 255}
	countedColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	pendingColor  = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	titleColor    = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	upColor       = color.RGBA{R: 255, G: 215, B: 0, A: 255}
	downColor     = color.RGBA{R: 255, G: 105, B: 180, A: 255}
	panelBg       = color.RGBA{R: 0, G: 0, B: 0, A: 240}
	panelBorder   = color.RGBA{R: 80, G: 80, B: 80, A: 255}
	separatorGray = color.RGBA{R: 120, G: 120, B: 120, A: 255}
)

// Render draws the counting line, the detection zone, the frame's detections,
// the live tracks and the counter panel onto mat.
func Render(mat *gocv.Mat, cfg tracking.Config, state pipeline.FrameState) {
	if mat == nil || mat.Empty() {
		return
	}

	DrawZone(mat, cfg)
	for _, box := range state.Detections {
		DrawDetection(mat, box)
	}
	for _, track := range state.Tracks {
		DrawTrack(mat, track)
	}
	DrawCounter(mat, "VEHICLES", state.Counts, 15, 40)
}

// DrawZone draws the detection band and the counting line across the full width
func DrawZone(mat *gocv.Mat, cfg tracking.Config) {
	width := mat.Cols()
	lo, hi := cfg.Zone()

	gocv.Line(mat, image.Pt(0, lo), image.Pt(width, lo), zoneColor, 1)
	gocv.Line(mat, image.Pt(0, hi), image.Pt(width, hi), zoneColor, 1)
	gocv.Line(mat, image.Pt(0, cfg.LinePosition), image.Pt(width, cfg.LinePosition), lineColor, 2)
}

// DrawDetection draws a box with corner highlights, clamped to the frame
func DrawDetection(mat *gocv.Mat, box models.BoundingBox) {
	r := box.Rect().Intersect(image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if r.Empty() {
		return
	}
	gocv.Rectangle(mat, r, boxColor, 2)
	drawCorners(mat, r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1, boxColor)
}

// DrawTrack marks a track centroid with its id and direction
func DrawTrack(mat *gocv.Mat, track tracking.Track) {
	c := pendingColor
	if track.Counted {
		c = countedColor
	}
	center := image.Pt(track.Center.X, track.Center.Y)
	gocv.Circle(mat, center, 4, c, -1)

	label := fmt.Sprintf("#%d %s", track.ID, track.Direction)
	gocv.PutText(mat, label, image.Pt(center.X+8, center.Y-8), gocv.FontHersheySimplex, 0.5, c, 1)
}

// DrawCounter draws a horizontal counter panel: "TITLE | UP: X | DOWN: Y".
// Returns the width of the drawn panel.
func DrawCounter(mat *gocv.Mat, title string, counts models.Counts, x, y int) int {
	fontFace := gocv.FontHersheySimplex
	fontScale := 0.65
	thickness := 2
	padding := 10
	spacing := 10

	upText := fmt.Sprintf("UP: %d", counts.Up)
	downText := fmt.Sprintf("DOWN: %d", counts.Down)
	separator := "|"

	titleSize := gocv.GetTextSize(title, fontFace, fontScale, thickness)
	upSize := gocv.GetTextSize(upText, fontFace, fontScale, thickness)
	downSize := gocv.GetTextSize(downText, fontFace, fontScale, thickness)
	sepSize := gocv.GetTextSize(separator, fontFace, fontScale, thickness)

	totalWidth := titleSize.X + sepSize.X*2 + upSize.X + downSize.X + spacing*4 + padding*2
	textHeight := titleSize.Y

	bgRect := image.Rect(x, y-textHeight-padding, x+totalWidth, y+padding)
	gocv.Rectangle(mat, bgRect, panelBg, -1)
	gocv.Rectangle(mat, bgRect, panelBorder, 1)

	textX := x + padding
	parts := []struct {
		text  string
		width int
		color color.RGBA
	}{
		{title, titleSize.X, titleColor},
		{separator, sepSize.X, separatorGray},
		{upText, upSize.X, upColor},
		{separator, sepSize.X, separatorGray},
		{downText, downSize.X, downColor},
	}
	for _, p := range parts {
		gocv.PutText(mat, p.text, image.Pt(textX, y), fontFace, fontScale, p.color, thickness)
		textX += p.width + spacing
	}

	return totalWidth
}

func drawCorners(mat *gocv.Mat, x1, y1, x2, y2 int, c color.RGBA) {
	cornerLength := 15
	cornerThickness := 3

	gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1+cornerLength, y1), c, cornerThickness)
	gocv.Line(mat, image.Pt(x1, y1), image.Pt(x1, y1+cornerLength), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y1), image.Pt(x2-cornerLength, y1), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y1), image.Pt(x2, y1+cornerLength), c, cornerThickness)
	gocv.Line(mat, image.Pt(x1, y2), image.Pt(x1+cornerLength, y2), c, cornerThickness)
	gocv.Line(mat, image.Pt(x1, y2), image.Pt(x1, y2-cornerLength), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2-cornerLength, y2), c, cornerThickness)
	gocv.Line(mat, image.Pt(x2, y2), image.Pt(x2, y2-cornerLength), c, cornerThickness)
}
