package editor

import (
	"github.com/LdDl/annotrack-go/annotation"
	"github.com/LdDl/annotrack-go/events"
	"github.com/pkg/errors"
)

// Mode is the edit mode of annotation surface
type Mode int

const (
	ModeView = Mode(iota)
	ModeEdit
	ModeBatchAdd
)

// BatchLabel is the label of staged batch boxes until they are committed
const BatchLabel = "batch_temp"

var (
	// ErrUnknownMode is returned when switching to mode which has no handlers
	ErrUnknownMode = errors.New("unknown mode")
)

func (mode Mode) String() string {
	switch mode {
	case ModeView:
		return "view"
	case ModeEdit:
		return "edit"
	case ModeBatchAdd:
		return "batch_add"
	default:
		return "unknown"
	}
}

// Pointer is the pointer event delivered to the current mode
type Pointer struct {
	X          float64
	Y          float64
	FrameID    int
	Candidates []annotation.ObjectAnnotation
}

// Outcome is what pointer release produced in the current mode
type Outcome struct {
	Result
	// Staged is set when batch mode staged new box
	Staged    annotation.ObjectAnnotation
	HasStaged bool
}

type modeHandler struct {
	press   func(ctl *Controller, p Pointer)
	move    func(ctl *Controller, p Pointer)
	release func(ctl *Controller, p Pointer) Outcome
}

var modeHandlers = map[Mode]modeHandler{
	ModeView: {
		press: func(ctl *Controller, p Pointer) {
			ctl.editor.Select(p.X, p.Y, p.Candidates)
		},
		move:    func(*Controller, Pointer) {},
		release: func(*Controller, Pointer) Outcome { return Outcome{} },
	},
	ModeEdit: {
		press: func(ctl *Controller, p Pointer) {
			ctl.editor.Press(p.X, p.Y, p.Candidates)
		},
		move: func(ctl *Controller, p Pointer) {
			ctl.editor.Move(p.X, p.Y)
		},
		release: func(ctl *Controller, p Pointer) Outcome {
			return Outcome{Result: ctl.editor.Release(p.X, p.Y)}
		},
	},
	ModeBatchAdd: {
		press: func(ctl *Controller, p Pointer) {
			ctl.editor.StartDrawing(p.X, p.Y)
		},
		move: func(ctl *Controller, p Pointer) {
			ctl.editor.Move(p.X, p.Y)
		},
		release: func(ctl *Controller, p Pointer) Outcome {
			result := ctl.editor.Release(p.X, p.Y)
			if result.Kind != ResultBoxCreated {
				return Outcome{Result: result}
			}
			staged := ctl.stage(result.NewBox, p.FrameID)
			return Outcome{Result: result, Staged: staged, HasStaged: true}
		},
	},
}

// Controller is the explicit state machine over edit modes.
// Mode changes only through SetMode.
type Controller struct {
	mode   Mode
	editor *Editor

	staged          []annotation.ObjectAnnotation
	nextPlaceholder annotation.TrackID

	bus *events.Bus
}

// NewController creates controller in view mode
func NewController(editor *Editor) *Controller {
	return &Controller{
		mode:            ModeView,
		editor:          editor,
		staged:          []annotation.ObjectAnnotation{},
		nextPlaceholder: -1,
	}
}

// WithBus sets event bus for mode notifications
func (ctl *Controller) WithBus(bus *events.Bus) *Controller {
	ctl.bus = bus
	return ctl
}

// Mode returns current mode
func (ctl *Controller) Mode() Mode {
	return ctl.mode
}

// Editor returns underlying editor
func (ctl *Controller) Editor() *Editor {
	return ctl.editor
}

// SetMode switches mode. Any ongoing interaction is dropped.
func (ctl *Controller) SetMode(mode Mode) error {
	if _, ok := modeHandlers[mode]; !ok {
		return errors.Wrapf(ErrUnknownMode, "Can't switch to mode %d", int(mode))
	}
	if mode == ctl.mode {
		return nil
	}
	ctl.editor.Reset()
	ctl.mode = mode
	if ctl.bus != nil {
		ctl.bus.TryPublish(events.NewEvent(events.KindModeChanged, mode.String()))
	}
	return nil
}

// Press delivers pointer press to the current mode
func (ctl *Controller) Press(p Pointer) {
	modeHandlers[ctl.mode].press(ctl, p)
}

// Move delivers pointer move to the current mode
func (ctl *Controller) Move(p Pointer) {
	modeHandlers[ctl.mode].move(ctl, p)
}

// Release delivers pointer release to the current mode
func (ctl *Controller) Release(p Pointer) Outcome {
	return modeHandlers[ctl.mode].release(ctl, p)
}

func (ctl *Controller) stage(bbox annotation.BoundingBox, frameID int) annotation.ObjectAnnotation {
	staged := annotation.ObjectAnnotation{
		TrackID:         ctl.nextPlaceholder,
		Label:           BatchLabel,
		BBox:            bbox,
		FrameID:         frameID,
		IsManual:        true,
		TrackConfidence: 1.0,
		IsBatchAdded:    true,
	}
	ctl.nextPlaceholder--
	ctl.staged = append(ctl.staged, staged)
	return staged
}

// StagedSeeds returns boxes staged in batch mode
func (ctl *Controller) StagedSeeds() []annotation.ObjectAnnotation {
	result := make([]annotation.ObjectAnnotation, len(ctl.staged))
	copy(result, ctl.staged)
	return result
}

// Unstage removes staged box by its placeholder identifier
func (ctl *Controller) Unstage(placeholder annotation.TrackID) bool {
	for i, staged := range ctl.staged {
		if staged.TrackID == placeholder {
			ctl.staged = append(ctl.staged[:i], ctl.staged[i+1:]...)
			return true
		}
	}
	return false
}

// ClearStaged drops every staged box and restarts placeholder numbering
func (ctl *Controller) ClearStaged() {
	ctl.staged = ctl.staged[:0]
	ctl.nextPlaceholder = -1
}
