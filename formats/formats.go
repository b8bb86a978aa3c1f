// Package formats reads and writes annotation files: MASA JSON (export and import),
// the per-frame dictionary form (import) and COCO JSON (export).
package formats

import (
	"sort"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

var (
	// ErrUnsupportedFormat is returned when document has no "annotations" list or object
	ErrUnsupportedFormat = errors.New("unsupported annotation format")
)

// Format is the kind of imported document
type Format int

const (
	FormatMASA = Format(iota)
	FormatFrameDict
)

func (format Format) String() string {
	switch format {
	case FormatMASA:
		return "masa"
	case FormatFrameDict:
		return "frame_dict"
	default:
		return "unknown"
	}
}

// Document is the parsed annotation file
type Document struct {
	Format Format
	// VideoName is "video_name" of MASA document or "video_path" of dictionary form
	VideoName string
	// LabelMapping is MASA label id to name mapping. Empty for dictionary form.
	LabelMapping map[string]string
	Frames       map[int]annotation.FrameAnnotation
}

// Len returns total number of annotations in document
func (doc Document) Len() int {
	total := 0
	for _, frame := range doc.Frames {
		total += len(frame.Objects)
	}
	return total
}

// Annotations returns every annotation ordered by frame
func (doc Document) Annotations() []annotation.ObjectAnnotation {
	result := make([]annotation.ObjectAnnotation, 0, doc.Len())
	for _, frameID := range sortedFrames(doc.Frames) {
		result = append(result, doc.Frames[frameID].Objects...)
	}
	return result
}

func sortedFrames(frames map[int]annotation.FrameAnnotation) []int {
	frameIDs := make([]int, 0, len(frames))
	for frameID := range frames {
		frameIDs = append(frameIDs, frameID)
	}
	sort.Ints(frameIDs)
	return frameIDs
}

// labelIDs maps every label found in frames to its position in sorted label list, starting from given base
func labelIDs(frames map[int]annotation.FrameAnnotation, base int) ([]string, map[string]int) {
	seen := make(map[string]struct{})
	for _, frame := range frames {
		for _, obj := range frame.Objects {
			seen[obj.Label] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for label := range seen {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	ids := make(map[string]int, len(labels))
	for i, label := range labels {
		ids[label] = i + base
	}
	return labels, ids
}
