package models

import (
	"fmt"
	"image"
	"math"
)

// Direction is the inferred vertical direction of travel of a tracked object
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "unknown"
	}
}

// MarshalText encodes the direction as its lowercase name
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Point is a pixel position in frame coordinates
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox represents an axis-aligned detection box in pixel coordinates
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the centroid of the box, truncated to whole pixels
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Valid reports whether the box has a positive size and its far edges fit in an int
func (b BoundingBox) Valid() bool {
	return b.Width > 0 && b.Height > 0 &&
		b.X <= math.MaxInt-b.Width && b.Y <= math.MaxInt-b.Height
}

// Rect converts the box to an image.Rectangle
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// BoxFromRect converts an image.Rectangle (e.g. from a contour bounding rect) to a BoundingBox
func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// SizeFilter holds the minimum contour area and box dimensions a motion
// region needs before it is handed to the tracker as a detection.
type SizeFilter struct {
	MinContourArea float64 `json:"min_contour_area"`
	MinWidth       int     `json:"min_width"`
	MinHeight      int     `json:"min_height"`
}

// DefaultSizeFilter returns the filter used when nothing is configured
func DefaultSizeFilter() SizeFilter {
	return SizeFilter{
		MinContourArea: 500,
		MinWidth:       80,
		MinHeight:      80,
	}
}

// Validate checks that no threshold is negative
func (f SizeFilter) Validate() error {
	if f.MinContourArea < 0 {
		return fmt.Errorf("min contour area must be >= 0, got %v", f.MinContourArea)
	}
	if f.MinWidth < 0 || f.MinHeight < 0 {
		return fmt.Errorf("min box size must be >= 0, got %dx%d", f.MinWidth, f.MinHeight)
	}
	return nil
}

// Accept reports whether a contour with the given area and bounding box passes the filter
func (f SizeFilter) Accept(box BoundingBox, contourArea float64) bool {
	if contourArea < f.MinContourArea {
		return false
	}
	return box.Width >= f.MinWidth && box.Height >= f.MinHeight
}

// Counts is the per-direction crossing total reported for a video
type Counts struct {
	Up   int `json:"up"`
	Down int `json:"down"`
}

// Add increments the counter for the given direction. Unknown is ignored.
func (c *Counts) Add(d Direction) bool {
	switch d {
	case DirectionUp:
		c.Up++
	case DirectionDown:
		c.Down++
	default:
		return false
	}
	return true
}

// Total returns up + down
func (c Counts) Total() int {
	return c.Up + c.Down
}

// CrossingEvent is emitted once per track at the frame it is counted
type CrossingEvent struct {
	TrackID    int       `json:"track_id"`
	Direction  Direction `json:"direction"`
	Center     Point     `json:"center"`
	FrameIndex int64     `json:"frame_index"`
	JobID      string    `json:"job_id,omitempty"`
}

// MessagePublisher interface for publishing crossing events and results
type MessagePublisher interface {
	Publish(subject string, data interface{}) error
}
