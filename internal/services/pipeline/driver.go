// Package pipeline drives a video through detection and tracking, one frame
// at a time and strictly in order.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/tracking"
)

// Source yields decoded frames in order. The returned frame is only valid
// until the next call to Next. ok is false once the stream is exhausted.
type Source[F any] interface {
	Next(ctx context.Context) (frame F, ok bool, err error)
}

// Detector turns a frame into candidate bounding boxes that already passed
// the size filter.
type Detector[F any] interface {
	Detect(frame F) ([]models.BoundingBox, error)
}

// FrameState is handed to observers after a frame has been tracked.
type FrameState struct {
	Detections []models.BoundingBox
	Result     tracking.FrameResult
	Tracks     []tracking.Track
	Counts     models.Counts
}

// Observer is called synchronously after every frame.
type Observer[F any] interface {
	Observe(frame F, state FrameState)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc[F any] func(frame F, state FrameState)

func (f ObserverFunc[F]) Observe(frame F, state FrameState) { f(frame, state) }

// Options configures a Driver. All fields are optional.
type Options[F any] struct {
	JobID            string
	FrameDelay       time.Duration // pacing between frames, 0 disables
	Publisher        models.MessagePublisher
	CrossingsSubject string
	Observers        []Observer[F]
	Logger           *zerolog.Logger
}

// Result summarises a run.
type Result struct {
	Counts   models.Counts
	Frames   int64
	Tracks   int
	Duration time.Duration
}

// Driver feeds frames from a Source through a Detector into a Tracker.
type Driver[F any] struct {
	source   Source[F]
	detector Detector[F]
	tracker  *tracking.Tracker
	opts     Options[F]
	log      zerolog.Logger
}

// NewDriver wires a driver. The tracker must not be shared with another driver.
func NewDriver[F any](source Source[F], detector Detector[F], tracker *tracking.Tracker, opts Options[F]) *Driver[F] {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Driver[F]{
		source:   source,
		detector: detector,
		tracker:  tracker,
		opts:     opts,
		log:      logger,
	}
}

// Run processes frames until the source is exhausted, an error occurs, or ctx
// is cancelled. The counts accumulated so far are always returned, also
// alongside an error.
func (d *Driver[F]) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	result := func() Result {
		return Result{
			Counts:   d.tracker.Counts(),
			Frames:   d.tracker.Frames(),
			Tracks:   d.tracker.TotalTracks(),
			Duration: time.Since(start),
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			d.log.Info().Int64("frames", d.tracker.Frames()).Msg("Pipeline cancelled")
			return result(), err
		}

		frame, ok, err := d.source.Next(ctx)
		if err != nil {
			return result(), fmt.Errorf("failed to read frame %d: %w", d.tracker.Frames(), err)
		}
		if !ok {
			break
		}

		boxes, err := d.detector.Detect(frame)
		if err != nil {
			return result(), fmt.Errorf("failed to detect objects in frame %d: %w", d.tracker.Frames(), err)
		}

		frameResult := d.tracker.Advance(boxes)
		d.report(frameResult)

		if len(d.opts.Observers) > 0 {
			state := FrameState{
				Detections: boxes,
				Result:     frameResult,
				Tracks:     d.tracker.Tracks(),
				Counts:     d.tracker.Counts(),
			}
			for _, o := range d.opts.Observers {
				o.Observe(frame, state)
			}
		}

		if d.opts.FrameDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(d.opts.FrameDelay):
			}
		}
	}

	res := result()
	d.log.Info().
		Int("up", res.Counts.Up).
		Int("down", res.Counts.Down).
		Int64("frames", res.Frames).
		Int("tracks", res.Tracks).
		Dur("duration", res.Duration).
		Msg("Pipeline finished")
	return res, nil
}

func (d *Driver[F]) report(fr tracking.FrameResult) {
	if fr.Ignored > 0 {
		d.log.Debug().Int64("frame", fr.FrameIndex).Int("ignored", fr.Ignored).Msg("Ignored invalid detections")
	}
	if len(fr.Expired) > 0 {
		d.log.Debug().Int64("frame", fr.FrameIndex).Ints("track_ids", fr.Expired).Msg("Tracks expired")
	}

	for _, ev := range fr.Crossings {
		ev.JobID = d.opts.JobID
		d.log.Info().
			Int("track_id", ev.TrackID).
			Str("direction", ev.Direction.String()).
			Int64("frame", ev.FrameIndex).
			Msg("Vehicle crossed line")

		if d.opts.Publisher == nil || d.opts.CrossingsSubject == "" {
			continue
		}
		if err := d.opts.Publisher.Publish(d.opts.CrossingsSubject, ev); err != nil {
			d.log.Warn().Err(err).Int("track_id", ev.TrackID).Msg("Failed to publish crossing event")
		}
	}
}
