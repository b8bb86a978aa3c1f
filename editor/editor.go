package editor

import (
	"math"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/LdDl/annotrack-go/events"
	"github.com/LdDl/annotrack-go/geom"
)

const (
	// MinSize is the smallest width and height (image pixels) of resized or drawn box
	MinSize = 10.0
	// DefaultHandleSize is the nominal size of corner handle in image pixels
	DefaultHandleSize = 24.0
)

// State is the interaction state of Editor
type State int

const (
	StateIdle = State(iota)
	StateDragging
	StateResizing
	StateDrawing
)

func (state State) String() string {
	switch state {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	case StateDrawing:
		return "drawing"
	default:
		return "unknown"
	}
}

// Handle is the corner of selected box
type Handle int

const (
	HandleNone = Handle(iota)
	HandleTopLeft
	HandleTopRight
	HandleBottomLeft
	HandleBottomRight
)

// Cursor is the pointer shape hint for the display layer
type Cursor int

const (
	CursorArrow = Cursor(iota)
	CursorMove
	CursorResizeMainDiagonal
	CursorResizeAntiDiagonal
	CursorCross
)

// ResultKind tells what Release produced
type ResultKind int

const (
	ResultNone = ResultKind(iota)
	ResultBoxChanged
	ResultBoxCreated
)

// BoxChange is the outcome of finished drag or resize. The caller turns it into an undoable command.
type BoxChange struct {
	Annotation annotation.ObjectAnnotation
	Old        annotation.BoundingBox
	New        annotation.BoundingBox
}

// Result is returned on pointer release
type Result struct {
	Kind   ResultKind
	Change BoxChange
	NewBox annotation.BoundingBox
}

// Editor holds selection and drag/resize/draw state. It never mutates repository.
type Editor struct {
	transform  *Transform
	handleSize float64

	state        State
	selected     annotation.ObjectAnnotation
	hasSelection bool
	activeHandle Handle

	// Widget point where interaction started
	pressX float64
	pressY float64
	// Box saved on press: drag and resize always apply delta to it
	original annotation.BoundingBox
	current  annotation.BoundingBox

	drawStart geom.Point
	drawEnd   geom.Point

	bus *events.Bus
}

// NewEditor creates editor working with given transform
func NewEditor(transform *Transform, handleSize float64) *Editor {
	if handleSize <= 0 {
		handleSize = DefaultHandleSize
	}
	return &Editor{
		transform:  transform,
		handleSize: handleSize,
		state:      StateIdle,
	}
}

// NewEditorDefault creates editor with default handle size
func NewEditorDefault(transform *Transform) *Editor {
	return NewEditor(transform, DefaultHandleSize)
}

// WithBus sets event bus for selection and edit notifications
func (ed *Editor) WithBus(bus *events.Bus) *Editor {
	ed.bus = bus
	return ed
}

// Transform returns transform used by editor
func (ed *Editor) Transform() *Transform {
	return ed.transform
}

// State returns current interaction state
func (ed *Editor) State() State {
	return ed.state
}

// Selected returns selected annotation
func (ed *Editor) Selected() (annotation.ObjectAnnotation, bool) {
	return ed.selected, ed.hasSelection
}

// Current returns box being dragged, resized or drawn
func (ed *Editor) Current() annotation.BoundingBox {
	if ed.state == StateDrawing {
		return ed.drawnBox()
	}
	return ed.current
}

// SetSelected selects given annotation programmatically
func (ed *Editor) SetSelected(ann annotation.ObjectAnnotation) {
	ed.setSelection(ann, true)
}

// Deselect clears selection
func (ed *Editor) Deselect() {
	ed.setSelection(annotation.ObjectAnnotation{}, false)
}

// Reset drops selection and any ongoing interaction
func (ed *Editor) Reset() {
	ed.state = StateIdle
	ed.activeHandle = HandleNone
	ed.Deselect()
}

func (ed *Editor) setSelection(ann annotation.ObjectAnnotation, ok bool) {
	changed := ok != ed.hasSelection || (ok && ann.RowID != ed.selected.RowID)
	ed.selected = ann
	ed.hasSelection = ok
	if ok {
		ed.current = ann.BBox
	}
	if changed && ed.bus != nil {
		event := events.NewEvent(events.KindSelectionChanged, "selection changed")
		if ok {
			event.FrameID = ann.FrameID
			event.TrackID = int(ann.TrackID)
		}
		ed.bus.TryPublish(event)
	}
}

func (ed *Editor) imagePoint(px, py float64) (float64, float64) {
	x, y := ed.transform.WidgetToImage(px, py)
	return float64(x), float64(y)
}

// HandleAt returns handle of selected annotation under widget point
func (ed *Editor) HandleAt(px, py float64) Handle {
	if !ed.hasSelection {
		return HandleNone
	}
	x, y := ed.imagePoint(px, py)
	box := ed.selected.BBox
	corners := []struct {
		handle Handle
		x, y   float64
	}{
		{HandleTopLeft, box.X1, box.Y1},
		{HandleTopRight, box.X2, box.Y1},
		{HandleBottomLeft, box.X1, box.Y2},
		{HandleBottomRight, box.X2, box.Y2},
	}
	radius := 1.5 * ed.handleSize
	for _, corner := range corners {
		dx := (x - corner.x) / radius
		dy := (y - corner.y) / radius
		if dx*dx+dy*dy <= 1.5 {
			return corner.handle
		}
	}
	return HandleNone
}

// Select applies hit-testing priority: handles of selected annotation, then its interior,
// then the first candidate containing the point. Nothing hit means deselection.
func (ed *Editor) Select(px, py float64, candidates []annotation.ObjectAnnotation) (annotation.ObjectAnnotation, bool) {
	if ed.hasSelection && !ed.refreshSelected(candidates) {
		// Selected row is not shown (other frame or removed by undo)
		ed.Deselect()
	}
	if ed.hasSelection {
		if ed.HandleAt(px, py) != HandleNone {
			return ed.selected, true
		}
		x, y := ed.imagePoint(px, py)
		if ed.selected.BBox.Contains(x, y) {
			return ed.selected, true
		}
	}
	x, y := ed.imagePoint(px, py)
	for _, candidate := range candidates {
		if candidate.BBox.Contains(x, y) {
			ed.setSelection(candidate, true)
			return candidate, true
		}
	}
	ed.Deselect()
	return annotation.ObjectAnnotation{}, false
}

// refreshSelected picks up the stored state of selected annotation (e.g. after undo).
// Returns false when selected row is not among candidates.
func (ed *Editor) refreshSelected(candidates []annotation.ObjectAnnotation) bool {
	for _, candidate := range candidates {
		if candidate.RowID == ed.selected.RowID {
			ed.selected = candidate
			ed.current = candidate.BBox
			return true
		}
	}
	return false
}

// Press selects annotation under point and starts resizing or dragging it.
// When nothing is hit it starts drawing new box.
func (ed *Editor) Press(px, py float64, candidates []annotation.ObjectAnnotation) State {
	ed.pressX, ed.pressY = px, py
	if _, ok := ed.Select(px, py, candidates); ok {
		ed.original = ed.selected.BBox
		ed.current = ed.selected.BBox
		if handle := ed.HandleAt(px, py); handle != HandleNone {
			ed.activeHandle = handle
			ed.state = StateResizing
		} else {
			ed.state = StateDragging
		}
		return ed.state
	}
	ed.StartDrawing(px, py)
	return ed.state
}

// StartDrawing begins new box at given widget point regardless of selection
func (ed *Editor) StartDrawing(px, py float64) {
	x, y := ed.transform.ClipToBounds(ed.imagePoint(px, py))
	ed.drawStart = geom.NewPoint(x, y)
	ed.drawEnd = ed.drawStart
	ed.state = StateDrawing
}

// Move updates ongoing interaction
func (ed *Editor) Move(px, py float64) {
	switch ed.state {
	case StateDragging:
		ed.current = ed.dragged(px, py)
	case StateResizing:
		ed.current = ed.resized(px, py)
	case StateDrawing:
		x, y := ed.transform.ClipToBounds(ed.imagePoint(px, py))
		ed.drawEnd = geom.NewPoint(x, y)
	}
}

// Release finishes interaction and reports its outcome
func (ed *Editor) Release(px, py float64) Result {
	ed.Move(px, py)
	state := ed.state
	ed.state = StateIdle
	ed.activeHandle = HandleNone
	switch state {
	case StateDragging, StateResizing:
		if ed.current == ed.original {
			return Result{Kind: ResultNone}
		}
		change := BoxChange{Annotation: ed.selected, Old: ed.original, New: ed.current}
		ed.selected.BBox = ed.current
		if ed.bus != nil {
			event := events.NewEvent(events.KindBoxEdited, state.String())
			event.FrameID = change.Annotation.FrameID
			event.TrackID = int(change.Annotation.TrackID)
			ed.bus.TryPublish(event)
		}
		return Result{Kind: ResultBoxChanged, Change: change}
	case StateDrawing:
		box := ed.drawnBox()
		if box.Width() <= MinSize || box.Height() <= MinSize {
			return Result{Kind: ResultNone}
		}
		created, err := annotation.NewBoundingBox(box.X1, box.Y1, box.X2, box.Y2, 1.0)
		if err != nil {
			return Result{Kind: ResultNone}
		}
		return Result{Kind: ResultBoxCreated, NewBox: created}
	}
	return Result{Kind: ResultNone}
}

// Cursor returns pointer shape hint for given widget point
func (ed *Editor) Cursor(px, py float64) Cursor {
	switch ed.state {
	case StateDragging:
		return CursorMove
	case StateDrawing:
		return CursorCross
	case StateResizing:
		return handleCursor(ed.activeHandle)
	}
	if handle := ed.HandleAt(px, py); handle != HandleNone {
		return handleCursor(handle)
	}
	if ed.hasSelection {
		x, y := ed.imagePoint(px, py)
		if ed.selected.BBox.Contains(x, y) {
			return CursorMove
		}
	}
	return CursorArrow
}

func handleCursor(handle Handle) Cursor {
	switch handle {
	case HandleTopLeft, HandleBottomRight:
		return CursorResizeMainDiagonal
	case HandleTopRight, HandleBottomLeft:
		return CursorResizeAntiDiagonal
	}
	return CursorArrow
}

// dragged shifts saved original box keeping its size and pushes it back inside image
func (ed *Editor) dragged(px, py float64) annotation.BoundingBox {
	dx, dy := ed.transform.DeltaToImage(px-ed.pressX, py-ed.pressY)
	box := ed.original
	box.X1 += dx
	box.X2 += dx
	box.Y1 += dy
	box.Y2 += dy
	width := float64(ed.transform.ImageWidth)
	height := float64(ed.transform.ImageHeight)
	if box.X1 < 0 {
		box.X2 -= box.X1
		box.X1 = 0
	}
	if box.X2 > width && width > 0 {
		shift := box.X2 - width
		box.X1 = math.Max(0, box.X1-shift)
		box.X2 = box.X1 + ed.original.Width()
	}
	if box.Y1 < 0 {
		box.Y2 -= box.Y1
		box.Y1 = 0
	}
	if box.Y2 > height && height > 0 {
		shift := box.Y2 - height
		box.Y1 = math.Max(0, box.Y1-shift)
		box.Y2 = box.Y1 + ed.original.Height()
	}
	return box
}

// resized moves corner(s) owned by active handle keeping the opposite edges in place
func (ed *Editor) resized(px, py float64) annotation.BoundingBox {
	dx, dy := ed.transform.DeltaToImage(px-ed.pressX, py-ed.pressY)
	box := ed.original
	width := float64(ed.transform.ImageWidth)
	height := float64(ed.transform.ImageHeight)
	moveLeft := ed.activeHandle == HandleTopLeft || ed.activeHandle == HandleBottomLeft
	moveTop := ed.activeHandle == HandleTopLeft || ed.activeHandle == HandleTopRight
	// Anchor edges stay far enough from image border to leave room for MinSize
	if moveLeft {
		box.X2 = geom.Clamp(box.X2, MinSize, width)
		box.X1 = geom.Clamp(box.X1+dx, 0, box.X2-MinSize)
	} else {
		box.X1 = geom.Clamp(box.X1, 0, width-MinSize)
		box.X2 = geom.Clamp(box.X2+dx, box.X1+MinSize, width)
	}
	if moveTop {
		box.Y2 = geom.Clamp(box.Y2, MinSize, height)
		box.Y1 = geom.Clamp(box.Y1+dy, 0, box.Y2-MinSize)
	} else {
		box.Y1 = geom.Clamp(box.Y1, 0, height-MinSize)
		box.Y2 = geom.Clamp(box.Y2+dy, box.Y1+MinSize, height)
	}
	return box
}

func (ed *Editor) drawnBox() annotation.BoundingBox {
	return annotation.BoundingBox{
		X1:         math.Min(ed.drawStart.X, ed.drawEnd.X),
		Y1:         math.Min(ed.drawStart.Y, ed.drawEnd.Y),
		X2:         math.Max(ed.drawStart.X, ed.drawEnd.X),
		Y2:         math.Max(ed.drawStart.Y, ed.drawEnd.Y),
		Confidence: 1.0,
	}
}
