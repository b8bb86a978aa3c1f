package formats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/antonholmquist/jason"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFrames(t *testing.T) map[int]annotation.FrameAnnotation {
	t.Helper()
	car, err := annotation.NewBoundingBox(10, 20, 110, 70, 0.9)
	require.NoError(t, err)
	person, err := annotation.NewBoundingBox(200, 100, 240, 200, 0.5)
	require.NoError(t, err)
	first, err := annotation.NewObjectAnnotation(1, "car", car, 0, true, 1.0)
	require.NoError(t, err)
	second, err := annotation.NewObjectAnnotation(2, "person", person, 0, false, 0.8)
	require.NoError(t, err)
	third, err := annotation.NewObjectAnnotation(1, "car", car, 7, false, 1.0)
	require.NoError(t, err)
	return map[int]annotation.FrameAnnotation{
		7: {FrameID: 7, Objects: []annotation.ObjectAnnotation{third}},
		0: {FrameID: 0, Objects: []annotation.ObjectAnnotation{first, second}},
	}
}

func TestWriteMASA(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteMASA(buf, "/videos/street.mp4", sampleFrames(t)))

	root, err := jason.NewObjectFromBytes(buf.Bytes())
	require.NoError(t, err)
	name, err := root.GetString("video_name")
	require.NoError(t, err)
	assert.Equal(t, "street.mp4", name)
	carName, err := root.GetString("label_mapping", "0")
	require.NoError(t, err)
	assert.Equal(t, "car", carName)

	records, err := root.GetObjectArray("annotations")
	require.NoError(t, err)
	require.Len(t, records, 3)
	label, err := records[1].GetInt64("label")
	require.NoError(t, err)
	assert.Equal(t, int64(1), label)
	bbox, err := records[0].GetValueArray("bbox")
	require.NoError(t, err)
	width, err := bbox[2].Float64()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, width, 10e-6)
	frameID, err := records[2].GetInt64("frame_id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), frameID)
}

func TestLoadMASA(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, WriteMASA(buf, "street.mp4", sampleFrames(t)))
	doc, err := Load(buf)
	require.NoError(t, err)
	assert.Equal(t, FormatMASA, doc.Format)
	assert.Equal(t, "street.mp4", doc.VideoName)
	assert.Equal(t, map[string]string{"0": "car", "1": "person"}, doc.LabelMapping)
	assert.Equal(t, 3, doc.Len())

	frame := doc.Frames[0]
	require.Len(t, frame.Objects, 2)
	obj := frame.Objects[1]
	assert.Equal(t, annotation.TrackID(2), obj.TrackID)
	assert.Equal(t, "person", obj.Label)
	assert.False(t, obj.IsManual)
	assert.InDelta(t, 0.5, obj.TrackConfidence, 10e-6)
	assert.InDelta(t, 240.0, obj.BBox.X2, 10e-6)
	assert.InDelta(t, 200.0, obj.BBox.Y2, 10e-6)
}

func TestLoadMASALabelFallback(t *testing.T) {
	input := `{
		"label_mapping": {"0": "bus"},
		"annotations": [
			{"frame_id": 3, "track_id": 4.0, "bbox": [1, 2, 30, 40], "label": 0},
			{"frame_id": 3, "track_id": 5, "bbox": [1, 2, 30, 40], "score": 0.4, "label": 9}
		]
	}`
	doc, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	objects := doc.Frames[3].Objects
	require.Len(t, objects, 2)
	assert.Equal(t, "bus", objects[0].Label)
	assert.Equal(t, annotation.TrackID(4), objects[0].TrackID)
	assert.InDelta(t, 1.0, objects[0].BBox.Confidence, 10e-6)
	assert.Equal(t, "unknown", objects[1].Label)
}

func TestLoadFrameDict(t *testing.T) {
	input := `{
		"video_path": "clip.avi",
		"annotations": {
			"12": {"objects": [
				{"object_id": 3, "label": "dog", "is_manual": true, "track_confidence": 0.7,
				 "bbox": {"x1": 5, "y1": 6, "x2": 50, "y2": 60, "confidence": 0.8}}
			]},
			"2": {"objects": [
				{"object_id": 3, "label": "dog", "bbox": {"x1": 1, "y1": 1, "x2": 20, "y2": 20}}
			]}
		}
	}`
	doc, err := Load(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, FormatFrameDict, doc.Format)
	assert.Equal(t, "clip.avi", doc.VideoName)
	all := doc.Annotations()
	require.Len(t, all, 2)
	assert.Equal(t, 2, all[0].FrameID)
	assert.False(t, all[0].IsManual)
	assert.InDelta(t, 1.0, all[0].BBox.Confidence, 10e-6)
	assert.Equal(t, 12, all[1].FrameID)
	assert.True(t, all[1].IsManual)
	assert.InDelta(t, 0.7, all[1].TrackConfidence, 10e-6)
	assert.InDelta(t, 0.8, all[1].BBox.Confidence, 10e-6)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(strings.NewReader(`{"frames": []}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(strings.NewReader(`{"annotations": 5}`))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(strings.NewReader(`not json`))
	assert.Error(t, err)

	invalid := `{"annotations": [{"frame_id": 0, "track_id": 1, "bbox": [10, 10, -5, 20], "label_name": "car"}]}`
	_, err = Load(strings.NewReader(invalid))
	require.Error(t, err)
	assert.True(t, annotation.IsValidationError(err))
}

func TestWriteCOCO(t *testing.T) {
	progress := [][2]int{}
	buf := &bytes.Buffer{}
	err := WriteCOCO(buf, sampleFrames(t), COCOOptions{
		VideoPath: "street.mp4",
		Width:     1920,
		Height:    1080,
		Created:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Progress:  func(current, total int) { progress = append(progress, [2]int{current, total}) },
	})
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{1, 2}, {2, 2}, {2, 2}}, progress)

	root, err := jason.NewObjectFromBytes(buf.Bytes())
	require.NoError(t, err)
	year, err := root.GetInt64("info", "year")
	require.NoError(t, err)
	assert.Equal(t, int64(2024), year)

	categories, err := root.GetObjectArray("categories")
	require.NoError(t, err)
	require.Len(t, categories, 2)
	id, err := categories[0].GetInt64("id")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	super, err := categories[1].GetString("supercategory")
	require.NoError(t, err)
	assert.Equal(t, "object", super)

	images, err := root.GetObjectArray("images")
	require.NoError(t, err)
	require.Len(t, images, 2)
	fileName, err := images[1].GetString("file_name")
	require.NoError(t, err)
	assert.Equal(t, "frame_000007.jpg", fileName)

	records, err := root.GetObjectArray("annotations")
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i, record := range records {
		recordID, err := record.GetInt64("id")
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), recordID)
	}
	area, err := records[0].GetFloat64("area")
	require.NoError(t, err)
	assert.InDelta(t, 5000.0, area, 10e-6)
	category, err := records[1].GetInt64("category_id")
	require.NoError(t, err)
	assert.Equal(t, int64(2), category)
	manual, err := records[0].GetBoolean("is_manual")
	require.NoError(t, err)
	assert.True(t, manual)
}
