package tracking

import (
	"vehicle-counter-go/internal/models"
)

// Coordinate is a y value that may not be known yet.
type Coordinate struct {
	Value int
	Known bool
}

// UnknownCoordinate is the zero Coordinate, used before a track has a prior frame.
var UnknownCoordinate = Coordinate{}

// KnownCoordinate wraps a measured y value.
func KnownCoordinate(v int) Coordinate {
	return Coordinate{Value: v, Known: true}
}

// Track is one object believed to be in frame.
type Track struct {
	ID           int
	Center       models.Point
	PreviousY    Coordinate // Centroid y at the end of the previous frame
	FramesUnseen int
	Direction    models.Direction
	Counted      bool
}

func newTrack(id int, center models.Point) *Track {
	return &Track{
		ID:        id,
		Center:    center,
		PreviousY: UnknownCoordinate,
		Direction: models.DirectionUnknown,
	}
}

// observe moves the track to a matched centroid and re-derives its direction.
func (t *Track) observe(center models.Point) {
	t.Center = center
	t.FramesUnseen = 0

	if !t.PreviousY.Known {
		return
	}
	if center.Y < t.PreviousY.Value {
		t.Direction = models.DirectionUp
	} else {
		t.Direction = models.DirectionDown
	}
}
