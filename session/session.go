// Package session ties repository, undo history, editor and tracking review into a single editing session.
package session

import (
	"context"
	"fmt"
	"io"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/LdDl/annotrack-go/command"
	"github.com/LdDl/annotrack-go/config"
	"github.com/LdDl/annotrack-go/continuity"
	"github.com/LdDl/annotrack-go/editor"
	"github.com/LdDl/annotrack-go/events"
	"github.com/LdDl/annotrack-go/formats"
	"github.com/LdDl/annotrack-go/interpolation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Method is the interpolation strategy
type Method int

const (
	MethodLinear = Method(iota)
	MethodKalman
)

func (method Method) String() string {
	switch method {
	case MethodLinear:
		return "linear"
	case MethodKalman:
		return "kalman"
	default:
		return "unknown"
	}
}

// ParseMethod converts name into Method
func ParseMethod(name string) (Method, error) {
	switch name {
	case "linear":
		return MethodLinear, nil
	case "kalman":
		return MethodKalman, nil
	default:
		return MethodLinear, errors.Errorf("Unknown interpolation method '%s'", name)
	}
}

// Session owns every piece of editing state. It is not safe for concurrent use:
// tracking runs execute elsewhere and only their results enter the session.
type Session struct {
	settings   config.Settings
	repo       *annotation.Repository
	history    *command.Manager
	bus        *events.Bus
	ownBus     bool
	editor     *editor.Editor
	controller *editor.Controller
	review     *continuity.ReviewGate
	videoName  string
	logger     zerolog.Logger
}

// Option configures Session
type Option func(*Session)

// WithLogger sets logger
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.logger = logger.With().Str("component", "session").Logger()
	}
}

// WithBus makes session publish into external bus. Caller keeps ownership of it.
func WithBus(bus *events.Bus) Option {
	return func(s *Session) {
		s.bus = bus
	}
}

// New creates session with given settings and display transform
func New(settings config.Settings, transform *editor.Transform, options ...Option) *Session {
	s := &Session{
		settings: settings,
		repo:     annotation.NewRepository(),
		review:   continuity.NewReviewGate(),
		logger:   zerolog.Nop(),
	}
	for _, option := range options {
		option(s)
	}
	if s.bus == nil {
		s.bus = events.NewBus(settings.Events.BufferSize, s.logger)
		s.ownBus = true
	}
	s.history = command.NewManager(settings.History.MaxSize).WithBus(s.bus).WithLogger(s.logger)
	s.editor = editor.NewEditor(transform, settings.Editor.HandleSize).WithBus(s.bus)
	s.controller = editor.NewController(s.editor).WithBus(s.bus)
	return s
}

// NewDefault creates session with default settings and identity transform for image of given size
func NewDefault(imageWidth, imageHeight int) *Session {
	return New(config.Default(), editor.NewTransformDefault(imageWidth, imageHeight))
}

// Close releases the bus when session owns it
func (s *Session) Close() {
	if s.ownBus {
		s.bus.Close()
	}
}

func (s *Session) Repository() *annotation.Repository { return s.repo }
func (s *Session) History() *command.Manager          { return s.history }
func (s *Session) Bus() *events.Bus                   { return s.bus }
func (s *Session) Editor() *editor.Editor             { return s.editor }
func (s *Session) Controller() *editor.Controller     { return s.controller }
func (s *Session) Review() *continuity.ReviewGate     { return s.review }
func (s *Session) Settings() config.Settings          { return s.settings }

// VideoName returns video name of the last imported document
func (s *Session) VideoName() string {
	return s.videoName
}

// Add stores annotation through undo history and returns it as stored
func (s *Session) Add(ann annotation.ObjectAnnotation) (annotation.ObjectAnnotation, error) {
	cmd := command.NewAdd(s.repo, ann)
	if err := s.history.Execute(cmd); err != nil {
		return annotation.ObjectAnnotation{}, err
	}
	return cmd.Stored(), nil
}

// Delete removes annotations of track in frame
func (s *Session) Delete(trackID annotation.TrackID, frameID int) error {
	return s.history.Execute(command.NewDelete(s.repo, trackID, frameID))
}

// DeleteTrack removes whole track and returns number of removed annotations
func (s *Session) DeleteTrack(trackID annotation.TrackID) (int, error) {
	before := s.repo.Len()
	if err := s.history.Execute(command.NewDeleteTrack(s.repo, trackID)); err != nil {
		return 0, err
	}
	return before - s.repo.Len(), nil
}

// Relabel changes label of single annotation
func (s *Session) Relabel(ann annotation.ObjectAnnotation, label string) error {
	return s.history.Execute(command.NewUpdateLabel(s.repo, ann, label))
}

// RelabelTrack changes label of every annotation of track
func (s *Session) RelabelTrack(trackID annotation.TrackID, label string) (int, error) {
	cmd := command.NewUpdateLabelByTrack(s.repo, trackID, label)
	if err := s.history.Execute(cmd); err != nil {
		return 0, err
	}
	return cmd.Updated(), nil
}

// ApplyBoxChange commits result of drag or resize
func (s *Session) ApplyBoxChange(change editor.BoxChange) error {
	return s.history.Execute(command.NewUpdateBoundingBox(s.repo, change.Annotation, change.Old, change.New))
}

// Undo reverses the last command
func (s *Session) Undo() (bool, error) {
	return s.history.Undo()
}

// Redo reapplies the last undone command
func (s *Session) Redo() (bool, error) {
	return s.history.Redo()
}

// Press delivers pointer press with annotations of pointer frame as candidates
func (s *Session) Press(p editor.Pointer) {
	s.controller.Press(s.withCandidates(p))
}

// Move delivers pointer move
func (s *Session) Move(p editor.Pointer) {
	s.controller.Move(s.withCandidates(p))
}

// Release finishes interaction. Box edits are committed immediately;
// boxes drawn in edit mode are returned for the caller to label and Add.
func (s *Session) Release(p editor.Pointer) (editor.Outcome, error) {
	outcome := s.controller.Release(s.withCandidates(p))
	if outcome.Kind == editor.ResultBoxChanged {
		if err := s.ApplyBoxChange(outcome.Change); err != nil {
			return outcome, errors.Wrap(err, "Can't commit box change")
		}
	}
	return outcome, nil
}

func (s *Session) withCandidates(p editor.Pointer) editor.Pointer {
	if p.Candidates == nil {
		if frame, ok := s.repo.Get(p.FrameID); ok {
			p.Candidates = frame.Objects
		}
	}
	return p
}

// addAll stores annotations as one undoable step
func (s *Session) addAll(description string, anns []annotation.ObjectAnnotation) error {
	if len(anns) == 0 {
		return nil
	}
	cmds := make([]command.Command, 0, len(anns))
	for _, ann := range anns {
		cmds = append(cmds, command.NewAdd(s.repo, ann))
	}
	return s.history.Execute(command.NewMacro(description, cmds...))
}

// Interpolate creates new track through control points. Linear keeps control points as manual
// annotations and fills frames between them; Kalman produces every frame from the first to the last point.
func (s *Session) Interpolate(points []interpolation.ControlPoint, method Method, label string) (annotation.TrackID, []annotation.ObjectAnnotation, error) {
	trackID := s.repo.PeekTrackID()
	var result []annotation.ObjectAnnotation
	var err error
	switch method {
	case MethodLinear:
		result, err = interpolation.Linear(points, trackID, label)
		if err == nil {
			for _, point := range points {
				ann, annErr := annotation.NewObjectAnnotation(trackID, label, point.Box, point.FrameID, true, 1.0)
				if annErr != nil {
					return 0, nil, errors.Wrap(annErr, "Can't build control annotation")
				}
				result = append(result, ann)
			}
		}
	case MethodKalman:
		result, err = interpolation.Kalman(points, s.settings.KalmanParams(), trackID, label)
	default:
		err = errors.Errorf("Unknown interpolation method %d", int(method))
	}
	if err != nil {
		return 0, nil, errors.Wrapf(err, "Can't interpolate with %s method", method)
	}
	s.repo.NextTrackID()
	description := fmt.Sprintf("Interpolate track %d (%d annotations)", trackID, len(result))
	if err := s.addAll(description, result); err != nil {
		return 0, nil, err
	}
	s.logger.Info().Int("track_id", int(trackID)).Str("method", method.String()).Int("annotations", len(result)).Msg("track interpolated")
	return trackID, result, nil
}

// AddTrackInRange creates new track between start and end, moving linearly from startBox to endBox
func (s *Session) AddTrackInRange(start, end int, startBox, endBox annotation.BoundingBox, label string) (annotation.TrackID, error) {
	trackID := s.repo.PeekTrackID()
	result, err := interpolation.LinearRange(start, end, startBox, endBox, trackID, label)
	if err != nil {
		return 0, errors.Wrap(err, "Can't add track in range")
	}
	s.repo.NextTrackID()
	if err := s.addAll(fmt.Sprintf("Add track %d in range [%d, %d]", trackID, start, end), result); err != nil {
		return 0, err
	}
	return trackID, nil
}

// FillGaps interpolates missing frames of existing track. Returns number of added annotations.
func (s *Session) FillGaps(trackID annotation.TrackID) (int, error) {
	filled, err := interpolation.InterpolateGaps(s.repo.ByTrack(trackID))
	if err != nil {
		return 0, errors.Wrapf(err, "Can't fill gaps of track %d", trackID)
	}
	if err := s.addAll(fmt.Sprintf("Fill gaps of track %d (%d annotations)", trackID, len(filled)), filled); err != nil {
		return 0, err
	}
	return len(filled), nil
}

// NewCoordinator creates tracking coordinator configured from session settings:
// decoded frames are cached for tracking.frameCacheTTL, the motion gate is enabled by tracking.motionGate,
// and runs publish into session bus. Extra options are applied last.
func (s *Session) NewCoordinator(tracker continuity.Tracker, video continuity.VideoSource, options ...continuity.Option) *continuity.Coordinator {
	tracking := s.settings.Tracking
	configured := []continuity.Option{
		continuity.WithLogger(s.logger),
		continuity.WithBus(s.bus),
	}
	if tracking.MotionGate {
		configured = append(configured, continuity.WithMotionGate(tracking.GateKeep, tracking.GateMinScore))
	}
	configured = append(configured, options...)
	return continuity.NewCoordinator(tracker, continuity.NewLockedVideo(video, tracking.FrameCacheTTL), configured...)
}

// Track runs coordinator and puts its result under review. Request without track identifier gets a fresh one.
func (s *Session) Track(ctx context.Context, coordinator *continuity.Coordinator, req continuity.Request) (continuity.Result, error) {
	if req.TrackID <= 0 {
		req.TrackID = s.repo.NextTrackID()
	}
	result, err := coordinator.Run(ctx, req)
	if err != nil {
		return result, errors.Wrapf(err, "Can't track object %d", req.TrackID)
	}
	s.review.AddFrames(result.Frames)
	return result, nil
}

// TrackStaged tracks every box staged in batch mode as its own track over [start, end].
// Staged boxes are cleared when every run succeeded.
func (s *Session) TrackStaged(ctx context.Context, coordinator *continuity.Coordinator, start, end int, label, prompt string) ([]continuity.Result, error) {
	staged := s.controller.StagedSeeds()
	if len(staged) == 0 {
		return nil, errors.Wrap(continuity.ErrNoSeeds, "Nothing is staged")
	}
	results := make([]continuity.Result, 0, len(staged))
	for _, seed := range staged {
		seed.Label = label
		seed.IsBatchAdded = false
		result, err := s.Track(ctx, coordinator, continuity.Request{
			Start:  start,
			End:    end,
			Label:  label,
			Seeds:  []annotation.ObjectAnnotation{seed},
			Prompt: prompt,
		})
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if result.Cancelled {
			return results, nil
		}
	}
	s.controller.ClearStaged()
	return results, nil
}

// CommitReview stores approved tracking results as one undoable step and clears review.
// Returns number of committed annotations.
func (s *Session) CommitReview() (int, error) {
	approved := s.review.Approved()
	if err := s.addAll(fmt.Sprintf("Commit tracking results (%d annotations)", len(approved)), approved); err != nil {
		return 0, errors.Wrap(err, "Can't commit tracking results")
	}
	s.review.Clear()
	return len(approved), nil
}

// Import replaces session contents with document. Import is not undoable: history is cleared.
// Failed import keeps current contents untouched.
func (s *Session) Import(doc formats.Document) (int, error) {
	repo := annotation.NewRepository()
	for _, ann := range doc.Annotations() {
		if _, err := repo.Add(ann); err != nil {
			return 0, errors.Wrapf(err, "Can't import annotation of track %d at frame %d", ann.TrackID, ann.FrameID)
		}
	}
	s.repo = repo
	s.history.Clear()
	s.editor.Reset()
	s.review.Clear()
	s.videoName = doc.VideoName
	s.logger.Info().Str("format", doc.Format.String()).Int("annotations", s.repo.Len()).Msg("annotations imported")
	return s.repo.Len(), nil
}

// ImportFile loads and imports annotation file
func (s *Session) ImportFile(path string) (int, error) {
	doc, err := formats.LoadFile(path)
	if err != nil {
		return 0, err
	}
	return s.Import(doc)
}

// ExportMASA writes annotations with box confidence above configured threshold as MASA JSON
func (s *Session) ExportMASA(w io.Writer, videoPath string) error {
	return formats.WriteMASA(w, videoPath, s.repo.FilterByScore(s.settings.Export.ScoreThreshold))
}

// ExportCOCO writes annotations with box confidence above configured threshold as COCO JSON
func (s *Session) ExportCOCO(w io.Writer, options formats.COCOOptions) error {
	return formats.WriteCOCO(w, s.repo.FilterByScore(s.settings.Export.ScoreThreshold), options)
}
