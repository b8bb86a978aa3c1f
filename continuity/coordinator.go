package continuity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/LdDl/annotrack-go/events"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Frame statuses, also used as metric labels
const (
	statusTracked = "tracked"
	statusEmpty   = "empty"
	statusFailed  = "failed"
	statusSkipped = "skipped"
)

// Request describes a single tracking run
type Request struct {
	// RunID identifies run in logs and events. Zero value is replaced with random one.
	RunID uuid.UUID
	// Closed frame range [Start, End]
	Start int
	End   int
	// TrackID is assigned to every produced annotation
	TrackID annotation.TrackID
	// Label is forced on every produced annotation. Empty label means label of the first seed.
	Label string
	// Seeds are user boxes. Seeds of the Start frame are mandatory.
	Seeds  []annotation.ObjectAnnotation
	Prompt string
	// Progress is called after every frame. It is called from the goroutine executing the run.
	Progress func(Progress)
}

// Progress is reported after every processed frame (successful or not)
type Progress struct {
	RunID     uuid.UUID
	FrameID   int
	Processed int
	Total     int
}

// Result holds annotations produced by run. It is never written into repository by coordinator.
type Result struct {
	RunID   uuid.UUID
	TrackID annotation.TrackID
	Label   string
	// Frames contains only successfully tracked frames with at least one annotation
	Frames    map[int][]annotation.ObjectAnnotation
	Skipped   []int
	Failures  map[int]error
	Processed int
	Total     int
	Cancelled bool
}

// Coordinator runs tracker frame by frame carrying continuity from each frame's output into the next one
type Coordinator struct {
	tracker Tracker
	video   VideoSource

	initMu      sync.Mutex
	initialized bool

	useGate      bool
	gateKeep     int
	gateMinScore float64

	metrics *Metrics
	bus     *events.Bus
	logger  zerolog.Logger
}

// Option configures Coordinator
type Option func(*Coordinator)

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger.With().Str("component", "continuity").Logger()
	}
}

// WithMetrics sets Prometheus metrics
func WithMetrics(metrics *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = metrics
	}
}

// WithBus sets event bus for progress and completion notifications
func WithBus(bus *events.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithMotionGate enables Kalman motion gate keeping at most maxKeep detections per frame
// whose score against predicted box is above minScore
func WithMotionGate(maxKeep int, minScore float64) Option {
	return func(c *Coordinator) {
		c.useGate = true
		c.gateKeep = maxKeep
		c.gateMinScore = minScore
	}
}

// NewCoordinator creates coordinator over given tracker and video.
// Source which is not a *LockedVideo already is wrapped into uncached one so decodes never overlap.
func NewCoordinator(tracker Tracker, video VideoSource, options ...Option) *Coordinator {
	if _, ok := video.(*LockedVideo); !ok {
		video = NewLockedVideo(video, 0)
	}
	c := &Coordinator{
		tracker: tracker,
		video:   video,
		logger:  zerolog.Nop(),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

func (c *Coordinator) initialize(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.tracker.Initialize(ctx); err != nil {
		// Both sentinel and tracker's own error stay matchable with errors.Is/As
		return fmt.Errorf("Can't initialize tracker: %w: %w", ErrNotInitialized, err)
	}
	c.initialized = true
	return nil
}

func (c *Coordinator) validate(req *Request) error {
	if req.Start < 0 || req.End < req.Start {
		return errors.Wrapf(ErrInvalidRange, "Range [%d, %d]", req.Start, req.End)
	}
	if total := c.video.TotalFrames(); total > 0 && req.End >= total {
		return errors.Wrapf(ErrInvalidRange, "Range [%d, %d] exceeds %d frames", req.Start, req.End, total)
	}
	if req.TrackID <= 0 {
		return errors.Errorf("Track identifier must be assigned before tracking, got %d", req.TrackID)
	}
	if len(seedsFor(req.Seeds, req.Start)) == 0 {
		return errors.Wrapf(ErrNoSeeds, "Frame %d", req.Start)
	}
	if req.Label == "" {
		req.Label = seedsFor(req.Seeds, req.Start)[0].Label
	}
	if req.RunID == uuid.Nil {
		req.RunID = uuid.New()
	}
	return nil
}

// Run tracks object across requested range. Initialization failure aborts run before any frame.
// Per-frame failures are recorded in Result and do not stop the run.
// Cancellation is checked between frames: cancelled run returns collected results with Cancelled set.
func (c *Coordinator) Run(ctx context.Context, req Request) (Result, error) {
	if err := c.validate(&req); err != nil {
		return Result{}, err
	}
	initial := c.reconcile(seedsFor(req.Seeds, req.Start), req, req.Start)
	if len(initial) == 0 {
		return Result{}, errors.Wrapf(ErrNoSeeds, "Frame %d has no valid seeds", req.Start)
	}
	started := time.Now()
	logger := c.logger.With().Str("run_id", req.RunID.String()).Int("track_id", int(req.TrackID)).Logger()
	if err := c.initialize(ctx); err != nil {
		logger.Error().Err(err).Msg("tracker initialization failed")
		c.metrics.recordRun("failed", time.Since(started).Seconds())
		c.publishFailed(req, err)
		return Result{}, err
	}

	result := Result{
		RunID:    req.RunID,
		TrackID:  req.TrackID,
		Label:    req.Label,
		Frames:   make(map[int][]annotation.ObjectAnnotation),
		Skipped:  []int{},
		Failures: make(map[int]error),
		Total:    req.End - req.Start + 1,
	}
	logger.Info().Int("start", req.Start).Int("end", req.End).Str("label", req.Label).Msg("tracking run started")

	var gate *MotionGate
	if c.useGate {
		gate = NewMotionGateWithTime(initial[0].BBox, 1.0, c.gateKeep, c.gateMinScore)
	}

	var previous []annotation.ObjectAnnotation
	lastGood := initial
	for frameID := req.Start; frameID <= req.End; frameID++ {
		if ctx.Err() != nil {
			result.Cancelled = true
			logger.Warn().Int("frame_id", frameID).Msg("tracking run cancelled")
			break
		}
		detections, status, err := c.trackFrame(ctx, req, frameID, c.pickSeeds(previous, req, frameID, lastGood))
		switch status {
		case statusSkipped:
			result.Skipped = append(result.Skipped, frameID)
			logger.Warn().Int("frame_id", frameID).Msg("frame is not available, skipping")
		case statusFailed:
			result.Failures[frameID] = err
			logger.Warn().Err(err).Int("frame_id", frameID).Msg("tracking failed on frame")
		}
		if status == statusTracked && gate != nil {
			kept, rejected, gateErr := gate.Filter(detections)
			if gateErr != nil {
				logger.Warn().Err(gateErr).Int("frame_id", frameID).Msg("motion gate failed")
			} else {
				c.metrics.recordRejected(rejected)
				detections = kept
			}
		}
		if status == statusTracked && len(detections) == 0 {
			status = statusEmpty
		}
		previous = nil
		if status == statusTracked {
			result.Frames[frameID] = detections
			previous = detections
			lastGood = detections
		}
		c.metrics.recordFrame(status)
		result.Processed++
		c.reportProgress(req, frameID, result.Processed, result.Total)
	}

	outcome := "completed"
	if result.Cancelled {
		outcome = "cancelled"
	}
	c.metrics.recordRun(outcome, time.Since(started).Seconds())
	logger.Info().
		Int("tracked", len(result.Frames)).
		Int("skipped", len(result.Skipped)).
		Int("failed", len(result.Failures)).
		Bool("cancelled", result.Cancelled).
		Msg("tracking run finished")
	if c.bus != nil {
		event := events.NewEvent(events.KindTrackingDone, outcome)
		event.TrackID = int(req.TrackID)
		event.Current = result.Processed
		event.Total = result.Total
		c.bus.TryPublish(event)
	}
	return result, nil
}

// trackFrame returns detections and frame status: tracked, skipped or failed
func (c *Coordinator) trackFrame(ctx context.Context, req Request, frameID int, seeds []annotation.ObjectAnnotation) ([]annotation.ObjectAnnotation, string, error) {
	frame, ok := c.video.Frame(frameID)
	if !ok {
		return nil, statusSkipped, nil
	}
	detections, err := c.safeTrack(ctx, frame, frameID, seeds, req.Prompt)
	if err != nil {
		return nil, statusFailed, err
	}
	return c.reconcile(detections, req, frameID), statusTracked, nil
}

func (c *Coordinator) safeTrack(ctx context.Context, frame Frame, frameID int, seeds []annotation.ObjectAnnotation, prompt string) (detections []annotation.ObjectAnnotation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("tracker panic: %v", r)
		}
	}()
	return c.tracker.Track(ctx, frame, frameID, seeds, prompt)
}

// pickSeeds returns previous frame output; without it seeds of the frame itself, then the last known output
func (c *Coordinator) pickSeeds(previous []annotation.ObjectAnnotation, req Request, frameID int, lastGood []annotation.ObjectAnnotation) []annotation.ObjectAnnotation {
	if len(previous) > 0 {
		return previous
	}
	if seeds := seedsFor(req.Seeds, frameID); len(seeds) > 0 {
		return c.reconcile(seeds, req, frameID)
	}
	return lastGood
}

// reconcile forces run identity on annotations. Tracker's own identifiers are replaced, never combined.
// Annotations which can't pass validation are dropped.
func (c *Coordinator) reconcile(detections []annotation.ObjectAnnotation, req Request, frameID int) []annotation.ObjectAnnotation {
	result := make([]annotation.ObjectAnnotation, 0, len(detections))
	for _, det := range detections {
		det.RowID = 0
		det.TrackID = req.TrackID
		det.Label = req.Label
		det.IsManual = true
		det.IsBatchAdded = false
		det.FrameID = frameID
		if err := det.Validate(); err != nil {
			c.logger.Debug().Err(err).Int("frame_id", frameID).Msg("dropping invalid detection")
			continue
		}
		result = append(result, det)
	}
	return result
}

func (c *Coordinator) reportProgress(req Request, frameID, processed, total int) {
	progress := Progress{RunID: req.RunID, FrameID: frameID, Processed: processed, Total: total}
	if req.Progress != nil {
		req.Progress(progress)
	}
	if c.bus != nil {
		event := events.NewEvent(events.KindTrackingProgress, "tracking progress")
		event.FrameID = frameID
		event.TrackID = int(req.TrackID)
		event.Current = processed
		event.Total = total
		c.bus.TryPublish(event)
	}
}

func (c *Coordinator) publishFailed(req Request, err error) {
	if c.bus == nil {
		return
	}
	event := events.NewEvent(events.KindTrackingFailed, "tracking failed")
	event.TrackID = int(req.TrackID)
	event.Err = err
	c.bus.TryPublish(event)
}

func seedsFor(seeds []annotation.ObjectAnnotation, frameID int) []annotation.ObjectAnnotation {
	result := []annotation.ObjectAnnotation{}
	for _, seed := range seeds {
		if seed.FrameID == frameID {
			result = append(result, seed)
		}
	}
	return result
}
