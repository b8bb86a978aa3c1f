// Package events provides an asynchronous event bus that decouples editing and tracking
// from whoever observes them (UI, logs, metrics).
package events

import (
	"time"
)

// Kind is the type of published event
type Kind string

const (
	KindCommandApplied   = Kind("command_applied")
	KindCommandUndone    = Kind("command_undone")
	KindCommandRedone    = Kind("command_redone")
	KindSelectionChanged = Kind("selection_changed")
	KindBoxEdited        = Kind("box_edited")
	KindModeChanged      = Kind("mode_changed")
	KindTrackingProgress = Kind("tracking_progress")
	KindTrackingDone     = Kind("tracking_completed")
	KindTrackingFailed   = Kind("tracking_failed")
)

// Event is a single notification
type Event struct {
	Kind        Kind
	Timestamp   time.Time
	Description string
	FrameID     int
	TrackID     int
	Current     int
	Total       int
	Err         error
}

// NewEvent creates event of given kind stamped with current time
func NewEvent(kind Kind, description string) Event {
	return Event{
		Kind:        kind,
		Timestamp:   time.Now(),
		Description: description,
		FrameID:     -1,
	}
}

// Consumer processes published events
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string
	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// ConsumerFunc adapts plain function to Consumer
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(event Event) error
}

func (c ConsumerFunc) Name() string {
	return c.ConsumerName
}

func (c ConsumerFunc) ProcessEvent(event Event) error {
	return c.Fn(event)
}

// Stats contains runtime statistics of the bus
type Stats struct {
	EventsReceived  uint64
	EventsProcessed uint64
	EventsDropped   uint64
	ConsumerErrors  uint64
}
