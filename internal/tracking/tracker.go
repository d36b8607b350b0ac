// Package tracking associates per-frame detections into tracks and counts
// each track at most once when it passes through the detection zone around
// the counting line.
//
// A Tracker belongs to a single video. Advance must be called once per
// frame, in frame order; the tracker never blocks and performs no I/O.
package tracking

import (
	"math"
	"sync"

	"vehicle-counter-go/internal/models"
)

// FrameResult describes what a single Advance call changed.
type FrameResult struct {
	FrameIndex int64
	Crossings  []models.CrossingEvent
	Spawned    []int
	Expired    []int
	Ignored    int // detections with a non-positive width or height
}

// Tracker owns the live tracks and the crossing counts for one video.
type Tracker struct {
	cfg Config

	tracks map[int]*Track
	order  []int // live ids, ascending; ids are allocated monotonically so this is insertion order
	nextID int

	counts models.Counts
	frame  int64

	mu sync.RWMutex
}

// New creates a tracker after validating cfg.
func New(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		cfg:    cfg,
		tracks: make(map[int]*Track),
	}, nil
}

// Config returns the configuration the tracker was built with.
func (t *Tracker) Config() Config {
	return t.cfg
}

// Advance consumes the detections of the next frame.
//
// Matching is greedy first-fit: each detection takes the first unconsumed
// track, in ascending id order, whose center lies strictly within
// MatchRadius. Detections left unmatched start new tracks.
func (t *Tracker) Advance(detections []models.BoundingBox) FrameResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := FrameResult{FrameIndex: t.frame}

	// Pass 1: match, update, spawn. No deletions happen here.
	consumed := make(map[int]bool, len(detections))
	for _, box := range detections {
		if !box.Valid() {
			result.Ignored++
			continue
		}
		center := box.Center()

		track := t.firstMatch(center, consumed)
		if track == nil {
			track = t.spawn(center)
			consumed[track.ID] = true
			result.Spawned = append(result.Spawned, track.ID)
			continue
		}
		consumed[track.ID] = true

		track.observe(center)
		if ev, ok := t.tryCount(track); ok {
			result.Crossings = append(result.Crossings, ev)
		}
	}

	// Pass 2: age every live track and sweep the expired ones.
	kept := t.order[:0]
	for _, id := range t.order {
		track := t.tracks[id]
		track.FramesUnseen++
		track.PreviousY = KnownCoordinate(track.Center.Y)

		if track.FramesUnseen > t.cfg.ExpiryFrames {
			delete(t.tracks, id)
			result.Expired = append(result.Expired, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept

	t.frame++
	return result
}

func (t *Tracker) firstMatch(center models.Point, consumed map[int]bool) *Track {
	for _, id := range t.order {
		if consumed[id] {
			continue
		}
		track := t.tracks[id]
		if distance(track.Center, center) < t.cfg.MatchRadius {
			return track
		}
	}
	return nil
}

func (t *Tracker) spawn(center models.Point) *Track {
	track := newTrack(t.nextID, center)
	t.nextID++
	t.tracks[track.ID] = track
	t.order = append(t.order, track.ID)
	return track
}

// tryCount registers the track's crossing if it is inside the zone, not yet
// counted, and has a known direction. A zone frame with unknown direction is
// skipped and not retried.
func (t *Tracker) tryCount(track *Track) (models.CrossingEvent, bool) {
	if track.Counted || !t.cfg.InZone(track.Center.Y) {
		return models.CrossingEvent{}, false
	}
	if !t.counts.Add(track.Direction) {
		return models.CrossingEvent{}, false
	}
	track.Counted = true

	return models.CrossingEvent{
		TrackID:    track.ID,
		Direction:  track.Direction,
		Center:     track.Center,
		FrameIndex: t.frame,
	}, true
}

// Counts returns the crossing totals so far.
func (t *Tracker) Counts() models.Counts {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts
}

// Tracks returns a copy of the live tracks in ascending id order.
func (t *Tracker) Tracks() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Track, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.tracks[id])
	}
	return out
}

// Track returns a copy of the live track with the given id.
func (t *Tracker) Track(id int) (Track, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	track, ok := t.tracks[id]
	if !ok {
		return Track{}, false
	}
	return *track, true
}

// LiveTracks returns the number of live tracks.
func (t *Tracker) LiveTracks() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracks)
}

// TotalTracks returns how many track ids have been allocated.
func (t *Tracker) TotalTracks() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nextID
}

// Frames returns the number of Advance calls made so far.
func (t *Tracker) Frames() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

// Reset drops all tracks and counts and restarts id allocation.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracks = make(map[int]*Track)
	t.order = nil
	t.nextID = 0
	t.counts = models.Counts{}
	t.frame = 0
}

func distance(a, b models.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

