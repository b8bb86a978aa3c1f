// Package continuity drives a single logical track across a frame range with an external tracker
// and keeps the results apart from the repository until they are reviewed.
package continuity

import (
	"context"
	"image"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

var (
	// ErrNotInitialized is returned when tracker model can't be prepared
	ErrNotInitialized = errors.New("tracker is not initialized")
	// ErrInvalidRange is returned when requested range is empty or out of video
	ErrInvalidRange = errors.New("invalid frame range")
	// ErrNoSeeds is returned when the first frame of range has no seed boxes
	ErrNoSeeds = errors.New("no seed annotations for the first frame")
)

// Frame is decoded video frame. Its pixel format is a matter of VideoSource and Tracker.
type Frame = image.Image

// Tracker is the external object tracker
type Tracker interface {
	// Initialize prepares tracker model. It is called once before processing any frame.
	Initialize(ctx context.Context) error
	// Track returns detections on frame near given seed annotations
	Track(ctx context.Context, frame Frame, frameID int, seeds []annotation.ObjectAnnotation, prompt string) ([]annotation.ObjectAnnotation, error)
}

// VideoSource is the external video reader
type VideoSource interface {
	Frame(frameID int) (Frame, bool)
	TotalFrames() int
	FPS() float64
	Width() int
	Height() int
}
