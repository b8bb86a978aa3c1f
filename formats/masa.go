package formats

import (
	"encoding/json"
	"io"
	"path/filepath"
	"strconv"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

type masaDocument struct {
	VideoName    string            `json:"video_name"`
	LabelMapping map[string]string `json:"label_mapping"`
	Annotations  []masaAnnotation  `json:"annotations"`
}

type masaAnnotation struct {
	FrameID   int        `json:"frame_id"`
	TrackID   int        `json:"track_id"`
	BBox      [4]float64 `json:"bbox"`
	Score     float64    `json:"score"`
	Label     int        `json:"label"`
	LabelName string     `json:"label_name"`
}

// WriteMASA writes frames as MASA JSON. Label ids are 0-based positions in sorted label list;
// boxes are written as [x, y, w, h]. Only base name of videoPath is stored.
func WriteMASA(w io.Writer, videoPath string, frames map[int]annotation.FrameAnnotation) error {
	labels, ids := labelIDs(frames, 0)
	doc := masaDocument{
		VideoName:    filepath.Base(videoPath),
		LabelMapping: make(map[string]string, len(labels)),
		Annotations:  []masaAnnotation{},
	}
	for i, label := range labels {
		doc.LabelMapping[strconv.Itoa(i)] = label
	}
	for _, frameID := range sortedFrames(frames) {
		for _, obj := range frames[frameID].Objects {
			doc.Annotations = append(doc.Annotations, masaAnnotation{
				FrameID:   obj.FrameID,
				TrackID:   int(obj.TrackID),
				BBox:      obj.BBox.XYWH(),
				Score:     obj.BBox.Confidence,
				Label:     ids[obj.Label],
				LabelName: obj.Label,
			})
		}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return errors.Wrap(err, "Can't write MASA document")
	}
	return nil
}
