package annotation

import (
	"sort"

	"github.com/pkg/errors"
)

// Statistics is a summary of repository contents
type Statistics struct {
	Total  int
	Manual int
	Loaded int
}

// Repository is the in-memory store of all annotations.
// It keeps the primary frame index, the manual index (RowIDs of manual annotations per frame)
// and a lazily rebuilt sorted label cache.
//
// Repository is not safe for concurrent use: the owning session serializes access.
type Repository struct {
	frames   map[int][]ObjectAnnotation
	manual   map[int][]RowID
	rowFrame map[RowID]int

	nextTrackID TrackID
	nextRowID   RowID

	labels        []string
	labelsDirty   bool
	labelRebuilds int
}

// NewRepository creates empty repository
func NewRepository() *Repository {
	return &Repository{
		frames:      make(map[int][]ObjectAnnotation),
		manual:      make(map[int][]RowID),
		rowFrame:    make(map[RowID]int),
		nextTrackID: 1,
		nextRowID:   1,
		labels:      []string{},
	}
}

// NextTrackID returns fresh track identifier and advances the counter
func (repo *Repository) NextTrackID() TrackID {
	id := repo.nextTrackID
	repo.nextTrackID++
	return id
}

// PeekTrackID returns the identifier NextTrackID would return without consuming it
func (repo *Repository) PeekTrackID() TrackID {
	return repo.nextTrackID
}

// ReserveTrackID makes sure that counter never hands out given identifier (e.g. for imported data)
func (repo *Repository) ReserveTrackID(id TrackID) {
	if id >= repo.nextTrackID {
		repo.nextTrackID = id + 1
	}
}

func (repo *Repository) nextRow() RowID {
	id := repo.nextRowID
	repo.nextRowID++
	return id
}

// Add validates annotation and stores it.
// Track identifier <= 0 is replaced with fresh one; RowID is always assigned by repository unless
// annotation carries unused RowID (this is how deleted rows come back on undo).
// Returns stored annotation.
func (repo *Repository) Add(ann ObjectAnnotation) (ObjectAnnotation, error) {
	if err := ann.Validate(); err != nil {
		return ObjectAnnotation{}, errors.Wrap(err, "Can't add annotation")
	}
	ann = repo.assignIdentity(ann)
	repo.frames[ann.FrameID] = append(repo.frames[ann.FrameID], ann)
	repo.rowFrame[ann.RowID] = ann.FrameID
	if ann.IsManual {
		repo.manual[ann.FrameID] = append(repo.manual[ann.FrameID], ann.RowID)
	}
	repo.labelsDirty = true
	return ann, nil
}

func (repo *Repository) assignIdentity(ann ObjectAnnotation) ObjectAnnotation {
	if ann.TrackID <= 0 {
		ann.TrackID = repo.NextTrackID()
	} else {
		repo.ReserveTrackID(ann.TrackID)
	}
	if _, taken := repo.rowFrame[ann.RowID]; ann.RowID <= 0 || taken {
		ann.RowID = repo.nextRow()
	} else if ann.RowID >= repo.nextRowID {
		repo.nextRowID = ann.RowID + 1
	}
	return ann
}

// Restore puts previously removed annotation back at given position of its frame.
// Position is clamped to frame bounds. RowID of annotation is preserved when it's free.
func (repo *Repository) Restore(ann ObjectAnnotation, index int) (ObjectAnnotation, error) {
	if err := ann.Validate(); err != nil {
		return ObjectAnnotation{}, errors.Wrap(err, "Can't restore annotation")
	}
	ann = repo.assignIdentity(ann)
	objects := repo.frames[ann.FrameID]
	if index < 0 {
		index = 0
	}
	if index > len(objects) {
		index = len(objects)
	}
	objects = append(objects, ObjectAnnotation{})
	copy(objects[index+1:], objects[index:])
	objects[index] = ann
	repo.frames[ann.FrameID] = objects
	repo.rowFrame[ann.RowID] = ann.FrameID
	repo.reindexManual(ann.FrameID)
	repo.labelsDirty = true
	return ann, nil
}

// Get returns copy of frame's annotations. Second value is false when frame has no annotations.
func (repo *Repository) Get(frameID int) (FrameAnnotation, bool) {
	objects, ok := repo.frames[frameID]
	if !ok {
		return FrameAnnotation{FrameID: frameID, Objects: []ObjectAnnotation{}}, false
	}
	return FrameAnnotation{FrameID: frameID, Objects: copyObjects(objects)}, true
}

// Row returns single annotation by its row identifier
func (repo *Repository) Row(rowID RowID) (ObjectAnnotation, bool) {
	frameID, ok := repo.rowFrame[rowID]
	if !ok {
		return ObjectAnnotation{}, false
	}
	idx := repo.rowIndex(frameID, rowID)
	if idx < 0 {
		return ObjectAnnotation{}, false
	}
	return repo.frames[frameID][idx], true
}

// Manual returns manual annotations of given frame in insertion order
func (repo *Repository) Manual(frameID int) []ObjectAnnotation {
	rows := repo.manual[frameID]
	result := make([]ObjectAnnotation, 0, len(rows))
	for _, rowID := range rows {
		if ann, ok := repo.Row(rowID); ok {
			result = append(result, ann)
		}
	}
	return result
}

// Update replaces stored annotation located by (FrameID, RowID) keeping its position.
// Returns previous state of the annotation and false when there is no such row on that frame.
// Invalid annotation is rejected with validation error and leaves repository untouched.
func (repo *Repository) Update(ann ObjectAnnotation) (ObjectAnnotation, bool, error) {
	if err := ann.Validate(); err != nil {
		return ObjectAnnotation{}, false, err
	}
	idx := repo.rowIndex(ann.FrameID, ann.RowID)
	if idx < 0 {
		return ObjectAnnotation{}, false, nil
	}
	old := repo.frames[ann.FrameID][idx]
	repo.frames[ann.FrameID][idx] = ann
	if old.IsManual != ann.IsManual {
		repo.reindexManual(ann.FrameID)
	}
	if ann.TrackID > 0 {
		repo.ReserveTrackID(ann.TrackID)
	}
	repo.labelsDirty = true
	return old, true, nil
}

// Delete removes every annotation of given track on given frame. Returns whether any row was removed.
func (repo *Repository) Delete(trackID TrackID, frameID int) bool {
	return repo.deleteFromFrame(trackID, frameID) > 0
}

func (repo *Repository) deleteFromFrame(trackID TrackID, frameID int) int {
	objects, ok := repo.frames[frameID]
	if !ok {
		return 0
	}
	kept := objects[:0]
	removed := 0
	for _, obj := range objects {
		if obj.TrackID == trackID {
			delete(repo.rowFrame, obj.RowID)
			removed++
			continue
		}
		kept = append(kept, obj)
	}
	if removed == 0 {
		return 0
	}
	repo.setFrame(frameID, kept)
	repo.labelsDirty = true
	return removed
}

// DeleteRow removes single annotation. Returns removed annotation and its position within frame.
func (repo *Repository) DeleteRow(rowID RowID) (ObjectAnnotation, int, bool) {
	frameID, ok := repo.rowFrame[rowID]
	if !ok {
		return ObjectAnnotation{}, -1, false
	}
	idx := repo.rowIndex(frameID, rowID)
	if idx < 0 {
		return ObjectAnnotation{}, -1, false
	}
	objects := repo.frames[frameID]
	removed := objects[idx]
	objects = append(objects[:idx], objects[idx+1:]...)
	delete(repo.rowFrame, rowID)
	repo.setFrame(frameID, objects)
	repo.labelsDirty = true
	return removed, idx, true
}

// DeleteByTrack removes every annotation of given track across all frames.
// Returns number of removed annotations.
func (repo *Repository) DeleteByTrack(trackID TrackID) int {
	removed := 0
	for _, frameID := range repo.Frames() {
		removed += repo.deleteFromFrame(trackID, frameID)
	}
	return removed
}

// UpdateLabelByTrack sets label of every annotation of given track. Returns number of updated annotations.
func (repo *Repository) UpdateLabelByTrack(trackID TrackID, label string) (int, error) {
	if err := validateLabel(label); err != nil {
		return 0, err
	}
	updated := 0
	for frameID, objects := range repo.frames {
		for i := range objects {
			if objects[i].TrackID == trackID {
				objects[i].Label = label
				updated++
			}
		}
		repo.frames[frameID] = objects
	}
	if updated > 0 {
		repo.labelsDirty = true
	}
	return updated, nil
}

// ByTrack returns all annotations of given track with ascending frame order
func (repo *Repository) ByTrack(trackID TrackID) []ObjectAnnotation {
	result := []ObjectAnnotation{}
	for _, frameID := range repo.Frames() {
		for _, obj := range repo.frames[frameID] {
			if obj.TrackID == trackID {
				result = append(result, obj)
			}
		}
	}
	return result
}

// Tracks returns sorted identifiers of every stored track
func (repo *Repository) Tracks() []TrackID {
	seen := make(map[TrackID]struct{})
	for _, objects := range repo.frames {
		for _, obj := range objects {
			seen[obj.TrackID] = struct{}{}
		}
	}
	result := make([]TrackID, 0, len(seen))
	for id := range seen {
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Frames returns ascending identifiers of frames having at least one annotation
func (repo *Repository) Frames() []int {
	result := make([]int, 0, len(repo.frames))
	for frameID := range repo.frames {
		result = append(result, frameID)
	}
	sort.Ints(result)
	return result
}

// Labels returns sorted distinct labels. Result is cached until next mutation.
func (repo *Repository) Labels() []string {
	if repo.labelsDirty {
		seen := make(map[string]struct{})
		for _, objects := range repo.frames {
			for _, obj := range objects {
				seen[obj.Label] = struct{}{}
			}
		}
		labels := make([]string, 0, len(seen))
		for label := range seen {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		repo.labels = labels
		repo.labelsDirty = false
		repo.labelRebuilds++
	}
	result := make([]string, len(repo.labels))
	copy(result, repo.labels)
	return result
}

// LabelRebuilds returns how many times label cache has been rebuilt
func (repo *Repository) LabelRebuilds() int {
	return repo.labelRebuilds
}

// Statistics counts total, manual and loaded (non-manual) annotations
func (repo *Repository) Statistics() Statistics {
	stats := Statistics{}
	for _, objects := range repo.frames {
		for _, obj := range objects {
			stats.Total++
			if obj.IsManual {
				stats.Manual++
			}
		}
	}
	stats.Loaded = stats.Total - stats.Manual
	return stats
}

// FilterByScore returns frames with objects whose box confidence is at least threshold.
// Frames left without objects are omitted.
func (repo *Repository) FilterByScore(threshold float64) map[int]FrameAnnotation {
	result := make(map[int]FrameAnnotation)
	for frameID, objects := range repo.frames {
		kept := []ObjectAnnotation{}
		for _, obj := range objects {
			if obj.BBox.Confidence >= threshold {
				kept = append(kept, obj)
			}
		}
		if len(kept) > 0 {
			result[frameID] = FrameAnnotation{FrameID: frameID, Objects: kept}
		}
	}
	return result
}

// Snapshot returns deep copy of primary index. Counters are not part of the snapshot.
func (repo *Repository) Snapshot() map[int][]ObjectAnnotation {
	result := make(map[int][]ObjectAnnotation, len(repo.frames))
	for frameID, objects := range repo.frames {
		result[frameID] = copyObjects(objects)
	}
	return result
}

// Len returns total number of stored annotations
func (repo *Repository) Len() int {
	return len(repo.rowFrame)
}

// Clear removes every annotation and resets counters
func (repo *Repository) Clear() {
	repo.frames = make(map[int][]ObjectAnnotation)
	repo.manual = make(map[int][]RowID)
	repo.rowFrame = make(map[RowID]int)
	repo.nextTrackID = 1
	repo.nextRowID = 1
	repo.labelsDirty = true
}

func (repo *Repository) rowIndex(frameID int, rowID RowID) int {
	for i, obj := range repo.frames[frameID] {
		if obj.RowID == rowID {
			return i
		}
	}
	return -1
}

// setFrame stores objects of frame dropping empty frames and syncs manual index
func (repo *Repository) setFrame(frameID int, objects []ObjectAnnotation) {
	if len(objects) == 0 {
		delete(repo.frames, frameID)
		delete(repo.manual, frameID)
		return
	}
	repo.frames[frameID] = objects
	repo.reindexManual(frameID)
}

func (repo *Repository) reindexManual(frameID int) {
	rows := []RowID{}
	for _, obj := range repo.frames[frameID] {
		if obj.IsManual {
			rows = append(rows, obj.RowID)
		}
	}
	if len(rows) == 0 {
		delete(repo.manual, frameID)
		return
	}
	repo.manual[frameID] = rows
}

func copyObjects(objects []ObjectAnnotation) []ObjectAnnotation {
	result := make([]ObjectAnnotation, len(objects))
	copy(result, objects)
	return result
}
