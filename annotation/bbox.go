package annotation

import (
	"github.com/LdDl/annotrack-go/geom"
)

// BoundingBox is an axis-aligned box in image pixels with detection confidence.
// Use NewBoundingBox to construct it: the zero value is not a valid box.
type BoundingBox struct {
	X1         float64
	Y1         float64
	X2         float64
	Y2         float64
	Confidence float64
}

// NewBoundingBox validates corners and confidence and returns the box.
func NewBoundingBox(x1, y1, x2, y2, confidence float64) (BoundingBox, error) {
	bbox := BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2, Confidence: confidence}
	if err := bbox.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return bbox, nil
}

// NewBoundingBoxXYWH creates box from top-left corner, width and height
func NewBoundingBoxXYWH(x, y, w, h, confidence float64) (BoundingBox, error) {
	return NewBoundingBox(x, y, x+w, y+h, confidence)
}

// Validate checks box invariants
func (bbox BoundingBox) Validate() error {
	if bbox.X1 >= bbox.X2 {
		return newValidationError("x coordinates", [2]float64{bbox.X1, bbox.X2}, "x1 must be less than x2")
	}
	if bbox.Y1 >= bbox.Y2 {
		return newValidationError("y coordinates", [2]float64{bbox.Y1, bbox.Y2}, "y1 must be less than y2")
	}
	if bbox.Confidence < 0.0 || bbox.Confidence > 1.0 {
		return newValidationError("confidence", bbox.Confidence, "must be in [0, 1]")
	}
	if bbox.X1 < 0 || bbox.Y1 < 0 || bbox.X2 < 0 || bbox.Y2 < 0 {
		return newValidationError("coordinates", bbox.XYXY(), "can't be negative")
	}
	return nil
}

// XYXY returns corners as [x1, y1, x2, y2]
func (bbox BoundingBox) XYXY() [4]float64 {
	return [4]float64{bbox.X1, bbox.Y1, bbox.X2, bbox.Y2}
}

// XYWH returns box as [x, y, width, height]
func (bbox BoundingBox) XYWH() [4]float64 {
	return [4]float64{bbox.X1, bbox.Y1, bbox.X2 - bbox.X1, bbox.Y2 - bbox.Y1}
}

// Width returns box width
func (bbox BoundingBox) Width() float64 {
	return bbox.X2 - bbox.X1
}

// Height returns box height
func (bbox BoundingBox) Height() float64 {
	return bbox.Y2 - bbox.Y1
}

// Area returns box area
func (bbox BoundingBox) Area() float64 {
	return bbox.Width() * bbox.Height()
}

// Center returns box center
func (bbox BoundingBox) Center() geom.Point {
	return geom.Point{
		X: (bbox.X1 + bbox.X2) / 2.0,
		Y: (bbox.Y1 + bbox.Y2) / 2.0,
	}
}

// Rect converts box into geom.Rectangle
func (bbox BoundingBox) Rect() geom.Rectangle {
	return geom.NewRectXYXY(bbox.X1, bbox.Y1, bbox.X2, bbox.Y2)
}

// Contains reports whether image point lies inside the box (borders inclusive)
func (bbox BoundingBox) Contains(x, y float64) bool {
	return bbox.X1 <= x && x <= bbox.X2 && bbox.Y1 <= y && y <= bbox.Y2
}
