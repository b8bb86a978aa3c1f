package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/LdDl/annotrack-go/formats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleMASA = `{
  "video_name": "clip.mp4",
  "label_mapping": {"0": "car"},
  "annotations": [
    {"frame_id": 0, "track_id": 3, "bbox": [10, 10, 40, 40], "score": 0.9, "label": 0, "label_name": "car"},
    {"frame_id": 4, "track_id": 3, "bbox": [50, 10, 40, 40], "score": 0.9, "label": 0, "label_name": "car"},
    {"frame_id": 4, "track_id": 5, "bbox": [200, 10, 40, 40], "score": 0.05, "label": 0, "label_name": "car"}
  ]
}`

func run(t *testing.T, args ...string) string {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := rootCommand(&appContext{})
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append(args, "--config-dir", t.TempDir()))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleMASA), 0644))
	return path
}

func TestStatsCommand(t *testing.T) {
	out := run(t, "stats", writeSample(t))
	assert.Contains(t, out, "clip.mp4")
	assert.Contains(t, out, "annotations: 3 (manual 0, loaded 3)")
	assert.Contains(t, out, "tracks:      2")
}

func TestExportCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.json")
	run(t, "export", writeSample(t), "--format", "coco", "--width", "640", "--height", "480", "-o", output)
	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"supercategory": "object"`)
	assert.NotContains(t, string(data), `"track_id": 5`)
}

func TestFillGapsCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.json")
	run(t, "fill-gaps", writeSample(t), "-o", output)
	doc, err := formats.LoadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Len())
}

func TestInterpolateCommand(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.json")
	run(t, "interpolate", writeSample(t), "--track", "3", "--method", "kalman", "--replace", "-o", output)
	doc, err := formats.LoadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.Len())
	for _, ann := range doc.Annotations() {
		assert.Equal(t, 6, int(ann.TrackID))
	}
}
