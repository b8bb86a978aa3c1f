package formats

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

// COCOOptions describes video the frames belong to
type COCOOptions struct {
	VideoPath string
	Width     int
	Height    int
	// Created is written into "info". Zero value means current time.
	Created time.Time
	// Progress is called with (current, total) after every frame and once more when document is written
	Progress func(current, total int)
}

type cocoDocument struct {
	Info        cocoInfo         `json:"info"`
	Licenses    []struct{}       `json:"licenses"`
	Images      []cocoImage      `json:"images"`
	Annotations []cocoAnnotation `json:"annotations"`
	Categories  []cocoCategory   `json:"categories"`
}

type cocoInfo struct {
	Description string `json:"description"`
	Version     string `json:"version"`
	Year        int    `json:"year"`
	Contributor string `json:"contributor"`
	DateCreated string `json:"date_created"`
}

type cocoImage struct {
	ID        int    `json:"id"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	FileName  string `json:"file_name"`
	VideoPath string `json:"video_path"`
	FrameID   int    `json:"frame_id"`
}

type cocoAnnotation struct {
	ID         int        `json:"id"`
	ImageID    int        `json:"image_id"`
	CategoryID int        `json:"category_id"`
	BBox       [4]float64 `json:"bbox"`
	Area       float64    `json:"area"`
	IsCrowd    int        `json:"iscrowd"`
	TrackID    int        `json:"track_id"`
	Confidence float64    `json:"confidence"`
	IsManual   bool       `json:"is_manual"`
}

type cocoCategory struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Supercategory string `json:"supercategory"`
}

// WriteCOCO writes frames as COCO JSON. Every frame becomes an image with id equal to frame number,
// categories are 1-based positions in sorted label list, annotation ids start from 1.
func WriteCOCO(w io.Writer, frames map[int]annotation.FrameAnnotation, options COCOOptions) error {
	created := options.Created
	if created.IsZero() {
		created = time.Now()
	}
	labels, ids := labelIDs(frames, 1)
	doc := cocoDocument{
		Info: cocoInfo{
			Description: "Video Annotation Export",
			Version:     "1.0",
			Year:        created.Year(),
			Contributor: "annotrack",
			DateCreated: created.Format(time.RFC3339),
		},
		Licenses:    []struct{}{},
		Images:      make([]cocoImage, 0, len(frames)),
		Annotations: []cocoAnnotation{},
		Categories:  make([]cocoCategory, 0, len(labels)),
	}
	for _, label := range labels {
		doc.Categories = append(doc.Categories, cocoCategory{ID: ids[label], Name: label, Supercategory: "object"})
	}

	total := len(frames)
	annotationID := 1
	for i, frameID := range sortedFrames(frames) {
		if options.Progress != nil {
			options.Progress(i+1, total)
		}
		doc.Images = append(doc.Images, cocoImage{
			ID:        frameID,
			Width:     options.Width,
			Height:    options.Height,
			FileName:  fmt.Sprintf("frame_%06d.jpg", frameID),
			VideoPath: options.VideoPath,
			FrameID:   frameID,
		})
		for _, obj := range frames[frameID].Objects {
			doc.Annotations = append(doc.Annotations, cocoAnnotation{
				ID:         annotationID,
				ImageID:    frameID,
				CategoryID: ids[obj.Label],
				BBox:       obj.BBox.XYWH(),
				Area:       obj.BBox.Area(),
				IsCrowd:    0,
				TrackID:    int(obj.TrackID),
				Confidence: obj.BBox.Confidence,
				IsManual:   obj.IsManual,
			})
			annotationID++
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return errors.Wrap(err, "Can't write COCO document")
	}
	if options.Progress != nil {
		options.Progress(total, total)
	}
	return nil
}
