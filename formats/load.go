package formats

import (
	"io"
	"os"
	"strconv"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/antonholmquist/jason"
	"github.com/pkg/errors"
)

// Load parses annotation document. The form is decided by "annotations": a list means MASA,
// an object keyed by frame number means dictionary form. Every annotation is validated;
// the first invalid one fails the whole document.
func Load(r io.Reader) (Document, error) {
	root, err := jason.NewObjectFromReader(r)
	if err != nil {
		return Document{}, errors.Wrap(err, "Can't parse annotation document")
	}
	value, err := root.GetValue("annotations")
	if err != nil {
		return Document{}, errors.Wrap(ErrUnsupportedFormat, "Key 'annotations' not found")
	}
	if list, err := value.Array(); err == nil {
		return loadMASA(root, list)
	}
	if dict, err := value.Object(); err == nil {
		return loadFrameDict(root, dict)
	}
	return Document{}, errors.Wrap(ErrUnsupportedFormat, "Key 'annotations' is neither list nor object")
}

// LoadFile parses annotation document stored in file
func LoadFile(path string) (Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return Document{}, errors.Wrapf(err, "Can't open annotation file '%s'", path)
	}
	defer file.Close()
	doc, err := Load(file)
	if err != nil {
		return Document{}, errors.Wrapf(err, "Can't load annotation file '%s'", path)
	}
	return doc, nil
}

func loadMASA(root *jason.Object, list []*jason.Value) (Document, error) {
	doc := Document{
		Format:       FormatMASA,
		LabelMapping: make(map[string]string),
		Frames:       make(map[int]annotation.FrameAnnotation),
	}
	doc.VideoName, _ = root.GetString("video_name")
	if mapping, err := root.GetObject("label_mapping"); err == nil {
		for id, name := range mapping.Map() {
			if s, err := name.String(); err == nil {
				doc.LabelMapping[id] = s
			}
		}
	}
	for i, item := range list {
		obj, err := item.Object()
		if err != nil {
			return Document{}, errors.Wrapf(err, "Annotation #%d is not an object", i)
		}
		ann, err := masaAnnotationFrom(obj, doc.LabelMapping)
		if err != nil {
			return Document{}, errors.Wrapf(err, "Can't read annotation #%d", i)
		}
		frame := doc.Frames[ann.FrameID]
		frame.FrameID = ann.FrameID
		frame.Objects = append(frame.Objects, ann)
		doc.Frames[ann.FrameID] = frame
	}
	return doc, nil
}

// masaAnnotationFrom reads single MASA record. Records are automatic results: IsManual is false
// and score is used both as box confidence and track confidence.
func masaAnnotationFrom(obj *jason.Object, mapping map[string]string) (annotation.ObjectAnnotation, error) {
	frameID, err := intField(obj, "frame_id")
	if err != nil {
		return annotation.ObjectAnnotation{}, err
	}
	trackID, err := intField(obj, "track_id")
	if err != nil {
		return annotation.ObjectAnnotation{}, err
	}
	xywh, err := obj.GetValueArray("bbox")
	if err != nil {
		return annotation.ObjectAnnotation{}, errors.Wrap(err, "Field 'bbox'")
	}
	if len(xywh) != 4 {
		return annotation.ObjectAnnotation{}, errors.Errorf("Field 'bbox' must have 4 values, got %d", len(xywh))
	}
	coords := [4]float64{}
	for i, v := range xywh {
		if coords[i], err = v.Float64(); err != nil {
			return annotation.ObjectAnnotation{}, errors.Wrapf(err, "Field 'bbox' value #%d", i)
		}
	}
	score := floatField(obj, "score", 1.0)
	bbox, err := annotation.NewBoundingBoxXYWH(coords[0], coords[1], coords[2], coords[3], score)
	if err != nil {
		return annotation.ObjectAnnotation{}, err
	}
	return annotation.NewObjectAnnotation(annotation.TrackID(trackID), masaLabel(obj, mapping), bbox, frameID, false, score)
}

// masaLabel prefers "label_name", then mapping of numeric "label", then "unknown"
func masaLabel(obj *jason.Object, mapping map[string]string) string {
	if name, err := obj.GetString("label_name"); err == nil && name != "" {
		return name
	}
	if id, err := intField(obj, "label"); err == nil {
		if name, ok := mapping[strconv.Itoa(id)]; ok {
			return name
		}
	}
	if id, err := obj.GetString("label"); err == nil {
		if name, ok := mapping[id]; ok {
			return name
		}
	}
	return "unknown"
}

func loadFrameDict(root *jason.Object, dict *jason.Object) (Document, error) {
	doc := Document{
		Format:       FormatFrameDict,
		LabelMapping: map[string]string{},
		Frames:       make(map[int]annotation.FrameAnnotation),
	}
	doc.VideoName, _ = root.GetString("video_path")
	for key, value := range dict.Map() {
		frameID, err := strconv.Atoi(key)
		if err != nil {
			return Document{}, errors.Wrapf(err, "Frame key '%s' is not a number", key)
		}
		frameData, err := value.Object()
		if err != nil {
			return Document{}, errors.Wrapf(err, "Frame %d is not an object", frameID)
		}
		objects, err := frameData.GetObjectArray("objects")
		if err != nil {
			return Document{}, errors.Wrapf(err, "Frame %d has no 'objects' list", frameID)
		}
		frame := annotation.FrameAnnotation{FrameID: frameID, Objects: make([]annotation.ObjectAnnotation, 0, len(objects))}
		for i, obj := range objects {
			ann, err := frameDictAnnotationFrom(obj, frameID)
			if err != nil {
				return Document{}, errors.Wrapf(err, "Can't read object #%d of frame %d", i, frameID)
			}
			frame.Objects = append(frame.Objects, ann)
		}
		doc.Frames[frameID] = frame
	}
	return doc, nil
}

func frameDictAnnotationFrom(obj *jason.Object, frameID int) (annotation.ObjectAnnotation, error) {
	box, err := obj.GetObject("bbox")
	if err != nil {
		return annotation.ObjectAnnotation{}, errors.Wrap(err, "Field 'bbox'")
	}
	coords := [4]float64{}
	for i, key := range []string{"x1", "y1", "x2", "y2"} {
		if coords[i], err = box.GetFloat64(key); err != nil {
			return annotation.ObjectAnnotation{}, errors.Wrapf(err, "Field 'bbox.%s'", key)
		}
	}
	bbox, err := annotation.NewBoundingBox(coords[0], coords[1], coords[2], coords[3], floatField(box, "confidence", 1.0))
	if err != nil {
		return annotation.ObjectAnnotation{}, err
	}
	trackID, err := intField(obj, "object_id")
	if err != nil {
		return annotation.ObjectAnnotation{}, err
	}
	label, err := obj.GetString("label")
	if err != nil {
		return annotation.ObjectAnnotation{}, errors.Wrap(err, "Field 'label'")
	}
	isManual, err := obj.GetBoolean("is_manual")
	if err != nil {
		isManual = false
	}
	return annotation.NewObjectAnnotation(annotation.TrackID(trackID), label, bbox, frameID, isManual, floatField(obj, "track_confidence", 1.0))
}

// intField reads integer field, accepting whole floats such as 3.0
func intField(obj *jason.Object, key string) (int, error) {
	if v, err := obj.GetInt64(key); err == nil {
		return int(v), nil
	}
	f, err := obj.GetFloat64(key)
	if err != nil {
		return 0, errors.Wrapf(err, "Field '%s'", key)
	}
	if f != float64(int(f)) {
		return 0, errors.Errorf("Field '%s' must be integer, got %f", key, f)
	}
	return int(f), nil
}

func floatField(obj *jason.Object, key string, fallback float64) float64 {
	v, err := obj.GetFloat64(key)
	if err != nil {
		return fallback
	}
	return v
}
