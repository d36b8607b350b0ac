package jobs

import (
	"context"
	"fmt"

	"gocv.io/x/gocv"

	"vehicle-counter-go/internal/config"
	"vehicle-counter-go/internal/logging"
	"vehicle-counter-go/internal/models"
	"vehicle-counter-go/internal/services/detection"
	"vehicle-counter-go/internal/services/overlay"
	"vehicle-counter-go/internal/services/pipeline"
	"vehicle-counter-go/internal/services/streamcapture"
	"vehicle-counter-go/internal/tracking"
)

// VideoRunner decodes the staged file with OpenCV, segments motion and drives
// the tracker frame by frame.
type VideoRunner struct {
	cfg       *config.Config
	publisher models.MessagePublisher
}

func NewVideoRunner(cfg *config.Config, publisher models.MessagePublisher) *VideoRunner {
	return &VideoRunner{cfg: cfg, publisher: publisher}
}

func (r *VideoRunner) Run(ctx context.Context, job models.Job, tracker *tracking.Tracker) (RunOutput, error) {
	logger := logging.WithJob(logging.NewServiceLogger("pipeline"), job.ID)

	source, err := streamcapture.OpenFile(job.VideoPath)
	if err != nil {
		return RunOutput{}, err
	}
	defer source.Close()

	detector := detection.NewMotionDetector(detection.ParamsFromConfig(r.cfg))
	defer detector.Close()

	opts := pipeline.Options[gocv.Mat]{
		JobID:            job.ID,
		FrameDelay:       r.cfg.FrameDelay,
		Publisher:        r.publisher,
		CrossingsSubject: r.cfg.NatsCrossingsSubject,
		Logger:           &logger,
	}

	var out RunOutput
	if r.cfg.AnnotateOutputDir != "" {
		props := source.Properties()
		writer, err := overlay.NewWriter(r.cfg.AnnotateOutputDir, job.ID, props.FPS, props.Width, props.Height, tracker.Config(), logger)
		if err != nil {
			logger.Warn().Err(err).Msg("Annotated output disabled for this job")
		} else {
			defer func() {
				if err := writer.Close(); err != nil {
					logger.Warn().Err(err).Msg("Failed to close annotated output")
				}
			}()
			opts.Observers = append(opts.Observers, writer)
			out.AnnotatedPath = writer.Path()
		}
	}

	result, err := pipeline.NewDriver[gocv.Mat](source, detector, tracker, opts).Run(ctx)
	out.Result = result
	logger.Debug().Int64("frames_read", source.FramesRead()).Int("frame_count", source.Properties().FrameCount).Msg("Video decoding finished")
	if err != nil {
		return out, fmt.Errorf("failed to process %s: %w", job.Filename, err)
	}
	return out, nil
}
