// Package interpolation synthesizes track annotations between user-confirmed control points.
package interpolation

import (
	"sort"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

var (
	// ErrTooFewPoints is returned when strategy gets less than two control points
	ErrTooFewPoints = errors.New("at least two control points are required")
	// ErrDuplicateFrame is returned when two control points share the same frame
	ErrDuplicateFrame = errors.New("duplicate control point frame")
	// ErrInvalidRange is returned when start frame is after end frame
	ErrInvalidRange = errors.New("start frame is after end frame")
)

// ControlPoint is user-confirmed box on a frame
type ControlPoint struct {
	FrameID int
	Box     annotation.BoundingBox
}

// NewControlPoint creates control point
func NewControlPoint(frameID int, box annotation.BoundingBox) ControlPoint {
	return ControlPoint{FrameID: frameID, Box: box}
}

// sortPoints returns copy of points ordered by frame
func sortPoints(points []ControlPoint) ([]ControlPoint, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	sorted := make([]ControlPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FrameID < sorted[j].FrameID
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].FrameID == sorted[i-1].FrameID {
			return nil, errors.Wrapf(ErrDuplicateFrame, "Frame %d", sorted[i].FrameID)
		}
	}
	return sorted, nil
}

func lerp(a, b, ratio float64) float64 {
	return a + (b-a)*ratio
}

func lerpBox(start, end annotation.BoundingBox, ratio, confidence float64) (annotation.BoundingBox, error) {
	return annotation.NewBoundingBox(
		lerp(start.X1, end.X1, ratio),
		lerp(start.Y1, end.Y1, ratio),
		lerp(start.X2, end.X2, ratio),
		lerp(start.Y2, end.Y2, ratio),
		confidence,
	)
}

func newInterpolated(trackID annotation.TrackID, label string, box annotation.BoundingBox, frameID int) (annotation.ObjectAnnotation, error) {
	return annotation.NewObjectAnnotation(trackID, label, box, frameID, false, 1.0)
}

// Linear creates annotations for every frame strictly between consecutive control points.
// Confidence is taken from the earlier point of each gap.
func Linear(points []ControlPoint, trackID annotation.TrackID, label string) ([]annotation.ObjectAnnotation, error) {
	sorted, err := sortPoints(points)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interpolate linearly")
	}
	result := []annotation.ObjectAnnotation{}
	for i := 0; i < len(sorted)-1; i++ {
		start, end := sorted[i], sorted[i+1]
		gap := float64(end.FrameID - start.FrameID)
		for frameID := start.FrameID + 1; frameID < end.FrameID; frameID++ {
			ratio := float64(frameID-start.FrameID) / gap
			box, err := lerpBox(start.Box, end.Box, ratio, start.Box.Confidence)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't interpolate frame %d", frameID)
			}
			ann, err := newInterpolated(trackID, label, box, frameID)
			if err != nil {
				return nil, errors.Wrapf(err, "Can't interpolate frame %d", frameID)
			}
			result = append(result, ann)
		}
	}
	return result, nil
}

// LinearRange creates annotations for every frame of [start, end] moving box from startBox to endBox
func LinearRange(start, end int, startBox, endBox annotation.BoundingBox, trackID annotation.TrackID, label string) ([]annotation.ObjectAnnotation, error) {
	if start > end {
		return nil, errors.Wrapf(ErrInvalidRange, "Range [%d, %d]", start, end)
	}
	result := make([]annotation.ObjectAnnotation, 0, end-start+1)
	for frameID := start; frameID <= end; frameID++ {
		ratio := 0.0
		if end > start {
			ratio = float64(frameID-start) / float64(end-start)
		}
		box, err := lerpBox(startBox, endBox, ratio, 1.0)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't interpolate frame %d", frameID)
		}
		ann, err := newInterpolated(trackID, label, box, frameID)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't interpolate frame %d", frameID)
		}
		result = append(result, ann)
	}
	return result, nil
}

// FillRange repeats the same box on every frame of [start, end]
func FillRange(start, end int, box annotation.BoundingBox, trackID annotation.TrackID, label string) ([]annotation.ObjectAnnotation, error) {
	return LinearRange(start, end, box, box, trackID, label)
}

// InterpolateGaps fills missing frames of existing track linearly.
// Track identity, label and confidence of the earlier annotation are kept for each gap.
func InterpolateGaps(track []annotation.ObjectAnnotation) ([]annotation.ObjectAnnotation, error) {
	byFrame := make(map[int]annotation.ObjectAnnotation, len(track))
	frames := make([]int, 0, len(track))
	for _, ann := range track {
		if _, ok := byFrame[ann.FrameID]; ok {
			continue
		}
		byFrame[ann.FrameID] = ann
		frames = append(frames, ann.FrameID)
	}
	sort.Ints(frames)
	result := []annotation.ObjectAnnotation{}
	for i := 0; i < len(frames)-1; i++ {
		start, end := byFrame[frames[i]], byFrame[frames[i+1]]
		if end.FrameID-start.FrameID <= 1 {
			continue
		}
		points := []ControlPoint{NewControlPoint(start.FrameID, start.BBox), NewControlPoint(end.FrameID, end.BBox)}
		filled, err := Linear(points, start.TrackID, start.Label)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't fill gap [%d, %d]", start.FrameID, end.FrameID)
		}
		result = append(result, filled...)
	}
	return result, nil
}
