// Package annotation contains the annotation data model and the indexed in-memory repository.
package annotation

import (
	"strings"
)

// TrackID is the semantic identity of an object shared by all of its annotations across frames.
// Values <= 0 mean "not assigned yet"; negative values are placeholders of staged batch boxes.
type TrackID int

// RowID identifies a single stored annotation instance. It is assigned by Repository.
type RowID int64

// ObjectAnnotation is one object's box on one frame
type ObjectAnnotation struct {
	RowID           RowID
	TrackID         TrackID
	Label           string
	BBox            BoundingBox
	FrameID         int
	IsManual        bool
	TrackConfidence float64
	IsBatchAdded    bool
}

// NewObjectAnnotation validates fields and returns annotation. RowID is left unassigned.
func NewObjectAnnotation(trackID TrackID, label string, bbox BoundingBox, frameID int, isManual bool, trackConfidence float64) (ObjectAnnotation, error) {
	ann := ObjectAnnotation{
		TrackID:         trackID,
		Label:           label,
		BBox:            bbox,
		FrameID:         frameID,
		IsManual:        isManual,
		TrackConfidence: trackConfidence,
	}
	if err := ann.Validate(); err != nil {
		return ObjectAnnotation{}, err
	}
	return ann, nil
}

// Validate checks annotation invariants including its bounding box
func (ann ObjectAnnotation) Validate() error {
	if err := validateLabel(ann.Label); err != nil {
		return err
	}
	if ann.FrameID < 0 {
		return newValidationError("frame_id", ann.FrameID, "can't be negative")
	}
	if ann.TrackConfidence < 0.0 || ann.TrackConfidence > 1.0 {
		return newValidationError("track_confidence", ann.TrackConfidence, "must be in [0, 1]")
	}
	return ann.BBox.Validate()
}

func validateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return newValidationError("label", label, "can't be empty")
	}
	return nil
}

// FrameAnnotation is the ordered list of objects on one frame
type FrameAnnotation struct {
	FrameID int
	Objects []ObjectAnnotation
}

// Validate checks that every contained object belongs to this frame
func (frame FrameAnnotation) Validate() error {
	if frame.FrameID < 0 {
		return newValidationError("frame_id", frame.FrameID, "can't be negative")
	}
	for _, obj := range frame.Objects {
		if obj.FrameID != frame.FrameID {
			return newValidationError("object frame_id", obj.FrameID, "doesn't match container frame")
		}
	}
	return nil
}
