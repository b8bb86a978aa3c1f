// Package command implements reversible repository mutations and bounded undo/redo history.
package command

import (
	"fmt"
	"sort"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when command targets annotation which is not stored
	ErrNotFound = errors.New("annotation not found")
)

// Kind is the variant of command
type Kind int

const (
	KindAdd = Kind(iota + 1)
	KindDelete
	KindDeleteTrack
	KindUpdateLabel
	KindUpdateLabelByTrack
	KindUpdateBoundingBox
	KindMacro
)

func (kind Kind) String() string {
	switch kind {
	case KindAdd:
		return "add"
	case KindDelete:
		return "delete"
	case KindDeleteTrack:
		return "delete_track"
	case KindUpdateLabel:
		return "update_label"
	case KindUpdateLabelByTrack:
		return "update_label_by_track"
	case KindUpdateBoundingBox:
		return "update_bbox"
	case KindMacro:
		return "macro"
	default:
		return fmt.Sprintf("kind(%d)", int(kind))
	}
}

// Command captures enough state to both apply and exactly reverse repository mutation
type Command interface {
	Execute() error
	Undo() error
	Description() string
	Kind() Kind
}

// removedRow is annotation removed from repository along with its position inside frame
type removedRow struct {
	ann   annotation.ObjectAnnotation
	index int
}

// restoreRows puts rows back. Rows must be ordered by frame and then by ascending position.
func restoreRows(repo *annotation.Repository, rows []removedRow) error {
	for _, row := range rows {
		if _, err := repo.Restore(row.ann, row.index); err != nil {
			return errors.Wrapf(err, "Can't restore row %d", row.ann.RowID)
		}
	}
	return nil
}

func sortRows(rows []removedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].ann.FrameID != rows[j].ann.FrameID {
			return rows[i].ann.FrameID < rows[j].ann.FrameID
		}
		return rows[i].index < rows[j].index
	})
}

// Add stores new annotation
type Add struct {
	repo   *annotation.Repository
	ann    annotation.ObjectAnnotation
	stored annotation.ObjectAnnotation
	done   bool
}

// NewAdd creates command adding given annotation
func NewAdd(repo *annotation.Repository, ann annotation.ObjectAnnotation) *Add {
	return &Add{repo: repo, ann: ann}
}

func (cmd *Add) Execute() error {
	target := cmd.ann
	if cmd.done {
		// Redo keeps identifiers assigned during the first execution
		target = cmd.stored
	}
	stored, err := cmd.repo.Add(target)
	if err != nil {
		return errors.Wrap(err, "Can't execute add")
	}
	cmd.stored = stored
	cmd.done = true
	return nil
}

func (cmd *Add) Undo() error {
	if _, _, ok := cmd.repo.DeleteRow(cmd.stored.RowID); !ok {
		return errors.Wrapf(ErrNotFound, "Can't undo add of row %d", cmd.stored.RowID)
	}
	return nil
}

// Stored returns annotation as it has been stored by the last execution
func (cmd *Add) Stored() annotation.ObjectAnnotation {
	return cmd.stored
}

func (cmd *Add) Description() string {
	return fmt.Sprintf("Add annotation %s at frame %d", cmd.ann.Label, cmd.ann.FrameID)
}

func (cmd *Add) Kind() Kind {
	return KindAdd
}

// Delete removes every annotation of track on single frame
type Delete struct {
	repo    *annotation.Repository
	trackID annotation.TrackID
	frameID int
	label   string
	removed []removedRow
}

// NewDelete creates command removing track's annotations on given frame
func NewDelete(repo *annotation.Repository, trackID annotation.TrackID, frameID int) *Delete {
	return &Delete{repo: repo, trackID: trackID, frameID: frameID}
}

func (cmd *Delete) Execute() error {
	frame, _ := cmd.repo.Get(cmd.frameID)
	rows := []annotation.RowID{}
	for _, obj := range frame.Objects {
		if obj.TrackID == cmd.trackID {
			rows = append(rows, obj.RowID)
		}
	}
	if len(rows) == 0 {
		return errors.Wrapf(ErrNotFound, "Can't delete track %d at frame %d", cmd.trackID, cmd.frameID)
	}
	removed := make([]removedRow, 0, len(rows))
	// Last row first: positions of earlier rows stay valid for undo
	for i := len(rows) - 1; i >= 0; i-- {
		ann, idx, ok := cmd.repo.DeleteRow(rows[i])
		if ok {
			removed = append(removed, removedRow{ann: ann, index: idx})
		}
	}
	sortRows(removed)
	cmd.removed = removed
	cmd.label = removed[0].ann.Label
	return nil
}

func (cmd *Delete) Undo() error {
	return restoreRows(cmd.repo, cmd.removed)
}

func (cmd *Delete) Description() string {
	return fmt.Sprintf("Delete annotation %s at frame %d", cmd.label, cmd.frameID)
}

func (cmd *Delete) Kind() Kind {
	return KindDelete
}

// DeleteTrack removes every annotation of track across all frames
type DeleteTrack struct {
	repo    *annotation.Repository
	trackID annotation.TrackID
	removed []removedRow
}

// NewDeleteTrack creates command removing whole track
func NewDeleteTrack(repo *annotation.Repository, trackID annotation.TrackID) *DeleteTrack {
	return &DeleteTrack{repo: repo, trackID: trackID}
}

func (cmd *DeleteTrack) Execute() error {
	track := cmd.repo.ByTrack(cmd.trackID)
	if len(track) == 0 {
		return errors.Wrapf(ErrNotFound, "Can't delete track %d", cmd.trackID)
	}
	removed := make([]removedRow, 0, len(track))
	for i := len(track) - 1; i >= 0; i-- {
		ann, idx, ok := cmd.repo.DeleteRow(track[i].RowID)
		if ok {
			removed = append(removed, removedRow{ann: ann, index: idx})
		}
	}
	sortRows(removed)
	cmd.removed = removed
	return nil
}

func (cmd *DeleteTrack) Undo() error {
	return restoreRows(cmd.repo, cmd.removed)
}

func (cmd *DeleteTrack) Description() string {
	return fmt.Sprintf("Delete track %d (%d annotations)", cmd.trackID, len(cmd.removed))
}

func (cmd *DeleteTrack) Kind() Kind {
	return KindDeleteTrack
}

// UpdateLabel changes label of single annotation
type UpdateLabel struct {
	repo     *annotation.Repository
	rowID    annotation.RowID
	oldLabel string
	newLabel string
}

// NewUpdateLabel creates command relabeling stored annotation
func NewUpdateLabel(repo *annotation.Repository, ann annotation.ObjectAnnotation, newLabel string) *UpdateLabel {
	return &UpdateLabel{repo: repo, rowID: ann.RowID, oldLabel: ann.Label, newLabel: newLabel}
}

func (cmd *UpdateLabel) Execute() error {
	return cmd.apply(cmd.newLabel, true)
}

func (cmd *UpdateLabel) Undo() error {
	return cmd.apply(cmd.oldLabel, false)
}

func (cmd *UpdateLabel) apply(label string, remember bool) error {
	ann, ok := cmd.repo.Row(cmd.rowID)
	if !ok {
		return errors.Wrapf(ErrNotFound, "Can't relabel row %d", cmd.rowID)
	}
	if remember {
		cmd.oldLabel = ann.Label
	}
	ann.Label = label
	if _, _, err := cmd.repo.Update(ann); err != nil {
		return errors.Wrap(err, "Can't relabel annotation")
	}
	return nil
}

func (cmd *UpdateLabel) Description() string {
	return fmt.Sprintf("Update label from '%s' to '%s'", cmd.oldLabel, cmd.newLabel)
}

func (cmd *UpdateLabel) Kind() Kind {
	return KindUpdateLabel
}

// UpdateLabelByTrack changes label of every annotation of track
type UpdateLabelByTrack struct {
	repo      *annotation.Repository
	trackID   annotation.TrackID
	oldLabel  string
	newLabel  string
	oldLabels map[annotation.RowID]string
	updated   int
}

// NewUpdateLabelByTrack creates command relabeling whole track
func NewUpdateLabelByTrack(repo *annotation.Repository, trackID annotation.TrackID, newLabel string) *UpdateLabelByTrack {
	return &UpdateLabelByTrack{repo: repo, trackID: trackID, newLabel: newLabel}
}

func (cmd *UpdateLabelByTrack) Execute() error {
	track := cmd.repo.ByTrack(cmd.trackID)
	if len(track) == 0 {
		return errors.Wrapf(ErrNotFound, "Can't relabel track %d", cmd.trackID)
	}
	oldLabels := make(map[annotation.RowID]string, len(track))
	for _, ann := range track {
		oldLabels[ann.RowID] = ann.Label
	}
	updated, err := cmd.repo.UpdateLabelByTrack(cmd.trackID, cmd.newLabel)
	if err != nil {
		return errors.Wrapf(err, "Can't relabel track %d", cmd.trackID)
	}
	cmd.oldLabel = track[0].Label
	cmd.oldLabels = oldLabels
	cmd.updated = updated
	return nil
}

func (cmd *UpdateLabelByTrack) Undo() error {
	for rowID, label := range cmd.oldLabels {
		ann, ok := cmd.repo.Row(rowID)
		if !ok {
			return errors.Wrapf(ErrNotFound, "Can't undo relabel of row %d", rowID)
		}
		ann.Label = label
		if _, _, err := cmd.repo.Update(ann); err != nil {
			return errors.Wrapf(err, "Can't undo relabel of row %d", rowID)
		}
	}
	return nil
}

// Updated returns number of annotations touched by the last execution
func (cmd *UpdateLabelByTrack) Updated() int {
	return cmd.updated
}

func (cmd *UpdateLabelByTrack) Description() string {
	return fmt.Sprintf("Update track %d label from '%s' to '%s'", cmd.trackID, cmd.oldLabel, cmd.newLabel)
}

func (cmd *UpdateLabelByTrack) Kind() Kind {
	return KindUpdateLabelByTrack
}

// UpdateBoundingBox replaces box of single annotation
type UpdateBoundingBox struct {
	repo    *annotation.Repository
	rowID   annotation.RowID
	label   string
	frameID int
	oldBox  annotation.BoundingBox
	newBox  annotation.BoundingBox
}

// NewUpdateBoundingBox creates command moving or resizing stored annotation
func NewUpdateBoundingBox(repo *annotation.Repository, ann annotation.ObjectAnnotation, oldBox, newBox annotation.BoundingBox) *UpdateBoundingBox {
	return &UpdateBoundingBox{
		repo:    repo,
		rowID:   ann.RowID,
		label:   ann.Label,
		frameID: ann.FrameID,
		oldBox:  oldBox,
		newBox:  newBox,
	}
}

func (cmd *UpdateBoundingBox) Execute() error {
	return cmd.apply(cmd.newBox)
}

func (cmd *UpdateBoundingBox) Undo() error {
	return cmd.apply(cmd.oldBox)
}

func (cmd *UpdateBoundingBox) apply(bbox annotation.BoundingBox) error {
	if err := bbox.Validate(); err != nil {
		return errors.Wrap(err, "Can't update bounding box")
	}
	ann, ok := cmd.repo.Row(cmd.rowID)
	if !ok {
		return errors.Wrapf(ErrNotFound, "Can't update bounding box of row %d", cmd.rowID)
	}
	ann.BBox = bbox
	if _, _, err := cmd.repo.Update(ann); err != nil {
		return errors.Wrap(err, "Can't update bounding box")
	}
	return nil
}

func (cmd *UpdateBoundingBox) Description() string {
	return fmt.Sprintf("Update bounding box position for %s at frame %d", cmd.label, cmd.frameID)
}

func (cmd *UpdateBoundingBox) Kind() Kind {
	return KindUpdateBoundingBox
}

// Macro executes several commands as one undoable step
type Macro struct {
	commands    []Command
	description string
}

// NewMacro creates macro command. Commands are executed in given order and undone in reverse.
func NewMacro(description string, commands ...Command) *Macro {
	return &Macro{commands: commands, description: description}
}

// Execute runs every command. When one fails, already executed ones are rolled back.
func (cmd *Macro) Execute() error {
	for i, sub := range cmd.commands {
		if err := sub.Execute(); err != nil {
			for j := i - 1; j >= 0; j-- {
				if undoErr := cmd.commands[j].Undo(); undoErr != nil {
					return errors.Wrapf(undoErr, "Can't roll back '%s' after failure: %v", cmd.commands[j].Description(), err)
				}
			}
			return errors.Wrapf(err, "Can't execute '%s'", sub.Description())
		}
	}
	return nil
}

func (cmd *Macro) Undo() error {
	for i := len(cmd.commands) - 1; i >= 0; i-- {
		if err := cmd.commands[i].Undo(); err != nil {
			return errors.Wrapf(err, "Can't undo '%s'", cmd.commands[i].Description())
		}
	}
	return nil
}

// Commands returns wrapped commands
func (cmd *Macro) Commands() []Command {
	return cmd.commands
}

func (cmd *Macro) Description() string {
	return cmd.description
}

func (cmd *Macro) Kind() Kind {
	return KindMacro
}
