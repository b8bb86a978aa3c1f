package interpolation

import (
	"math"
	"testing"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
)

const eps = 10e-6

func mustBox(t *testing.T, x1, y1, x2, y2, conf float64) annotation.BoundingBox {
	t.Helper()
	box, err := annotation.NewBoundingBox(x1, y1, x2, y2, conf)
	if err != nil {
		t.Fatalf("Can't create box: %v", err)
	}
	return box
}

func TestLinear(t *testing.T) {
	points := []ControlPoint{
		NewControlPoint(4, mustBox(t, 40, 40, 80, 80, 0.5)),
		NewControlPoint(0, mustBox(t, 0, 0, 40, 40, 0.8)),
	}
	result, err := Linear(points, 3, "car")
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("Expected 3 intermediate annotations, got %d", len(result))
	}
	for i, ann := range result {
		frameID := i + 1
		if ann.FrameID != frameID {
			t.Errorf("Annotation %d: expected frame %d, got %d", i, frameID, ann.FrameID)
		}
		expected := float64(frameID) * 10.0
		if math.Abs(ann.BBox.X1-expected) > eps || math.Abs(ann.BBox.Y2-(expected+40)) > eps {
			t.Errorf("Frame %d: wrong box %v", frameID, ann.BBox.XYXY())
		}
		if math.Abs(ann.BBox.Confidence-0.8) > eps {
			t.Errorf("Frame %d: confidence should come from earlier point, got %f", frameID, ann.BBox.Confidence)
		}
		if ann.TrackID != 3 || ann.Label != "car" {
			t.Errorf("Frame %d: wrong identity %d/%s", frameID, ann.TrackID, ann.Label)
		}
	}
}

func TestLinearErrors(t *testing.T) {
	box := mustBox(t, 0, 0, 10, 10, 1.0)
	if _, err := Linear([]ControlPoint{NewControlPoint(0, box)}, 1, "car"); !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("Expected ErrTooFewPoints, got %v", err)
	}
	if _, err := Linear([]ControlPoint{NewControlPoint(2, box), NewControlPoint(2, box)}, 1, "car"); !errors.Is(err, ErrDuplicateFrame) {
		t.Errorf("Expected ErrDuplicateFrame, got %v", err)
	}
	if _, err := LinearRange(5, 4, box, box, 1, "car"); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange, got %v", err)
	}
}

func TestLinearRange(t *testing.T) {
	start := mustBox(t, 0, 0, 10, 10, 0.3)
	end := mustBox(t, 50, 0, 60, 10, 0.3)
	result, err := LinearRange(10, 15, start, end, 7, "bus")
	if err != nil {
		t.Fatalf("LinearRange: %v", err)
	}
	if len(result) != 6 {
		t.Fatalf("Expected 6 annotations, got %d", len(result))
	}
	if math.Abs(result[5].BBox.X1-50) > eps || math.Abs(result[0].BBox.X1) > eps {
		t.Errorf("Range ends should match given boxes: %v %v", result[0].BBox.XYXY(), result[5].BBox.XYXY())
	}
	if math.Abs(result[2].BBox.Confidence-1.0) > eps {
		t.Errorf("Range annotations should have confidence 1.0, got %f", result[2].BBox.Confidence)
	}

	single, err := FillRange(3, 3, start, 7, "bus")
	if err != nil {
		t.Fatalf("FillRange: %v", err)
	}
	if len(single) != 1 || single[0].BBox.XYXY() != start.XYXY() {
		t.Errorf("Single frame range should repeat the box, got %v", single)
	}
}

func TestInterpolateGaps(t *testing.T) {
	track := []annotation.ObjectAnnotation{}
	for _, frame := range []struct {
		id int
		x  float64
	}{{0, 0}, {1, 10}, {4, 40}, {6, 60}} {
		ann, err := annotation.NewObjectAnnotation(2, "person", mustBox(t, frame.x, 0, frame.x+20, 20, 0.9), frame.id, false, 1.0)
		if err != nil {
			t.Fatalf("Can't create annotation: %v", err)
		}
		track = append(track, ann)
	}
	filled, err := InterpolateGaps(track)
	if err != nil {
		t.Fatalf("InterpolateGaps: %v", err)
	}
	frames := []int{}
	for _, ann := range filled {
		frames = append(frames, ann.FrameID)
		if math.Abs(ann.BBox.X1-float64(ann.FrameID)*10) > eps {
			t.Errorf("Frame %d: wrong x1 %f", ann.FrameID, ann.BBox.X1)
		}
	}
	expected := []int{2, 3, 5}
	if len(frames) != len(expected) {
		t.Fatalf("Expected frames %v, got %v", expected, frames)
	}
	for i := range expected {
		if frames[i] != expected[i] {
			t.Errorf("Expected frames %v, got %v", expected, frames)
		}
	}
}

func TestKalmanZeroNoiseMatchesLinear(t *testing.T) {
	points := []ControlPoint{
		NewControlPoint(0, mustBox(t, 100, 200, 140, 260, 1.0)),
		NewControlPoint(10, mustBox(t, 300, 120, 340, 180, 1.0)),
	}
	params := DefaultKalmanParams()
	params.ProcessNoisePos = 0
	params.ProcessNoiseVel = 0
	params.ObservationNoise = 0
	params.VelocityFactor = 1.0

	kalman, err := Kalman(points, params, 1, "car")
	if err != nil {
		t.Fatalf("Kalman: %v", err)
	}
	if len(kalman) != 11 {
		t.Fatalf("Kalman should cover frames 0..10, got %d annotations", len(kalman))
	}
	linear, err := Linear(points, 1, "car")
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	for _, expected := range linear {
		got := kalman[expected.FrameID]
		if got.FrameID != expected.FrameID {
			t.Fatalf("Frame order mismatch: %d vs %d", got.FrameID, expected.FrameID)
		}
		for i, v := range got.BBox.XYXY() {
			if math.Abs(v-expected.BBox.XYXY()[i]) > 1e-6 {
				t.Errorf("Frame %d: Kalman box %v differs from linear %v", expected.FrameID, got.BBox.XYXY(), expected.BBox.XYXY())
				break
			}
		}
	}
	if math.Abs(kalman[0].BBox.X1-100) > 1e-6 || math.Abs(kalman[10].BBox.X1-300) > 1e-6 {
		t.Errorf("End frames should sit on control points: %v %v", kalman[0].BBox.XYXY(), kalman[10].BBox.XYXY())
	}
	if math.Abs(kalman[5].BBox.Confidence-0.9) > eps {
		t.Errorf("Kalman confidence should be 0.9, got %f", kalman[5].BBox.Confidence)
	}
}

func TestKalmanKeepsSizeAndFollowsPoints(t *testing.T) {
	points := []ControlPoint{
		NewControlPoint(0, mustBox(t, 0, 0, 20, 30, 1.0)),
		NewControlPoint(5, mustBox(t, 50, 0, 80, 40, 1.0)),
		NewControlPoint(12, mustBox(t, 120, 10, 150, 50, 1.0)),
	}
	result, err := Kalman(points, DefaultKalmanParams(), 4, "bike")
	if err != nil {
		t.Fatalf("Kalman: %v", err)
	}
	if len(result) != 13 {
		t.Fatalf("Expected 13 annotations, got %d", len(result))
	}
	for _, ann := range result {
		if math.Abs(ann.BBox.Width()-20) > eps || math.Abs(ann.BBox.Height()-30) > eps {
			t.Errorf("Frame %d: size should stay 20x30, got %fx%f", ann.FrameID, ann.BBox.Width(), ann.BBox.Height())
		}
		if ann.IsManual {
			t.Errorf("Frame %d: interpolated annotation should not be manual", ann.FrameID)
		}
	}
}

func TestKalmanDivergenceGuard(t *testing.T) {
	points := []ControlPoint{
		NewControlPoint(0, mustBox(t, 0, 0, 10, 10, 1.0)),
		NewControlPoint(1, mustBox(t, 100, 0, 110, 10, 1.0)),
		NewControlPoint(4, mustBox(t, 400, 0, 410, 10, 1.0)),
	}
	params := DefaultKalmanParams()
	params.VelocityFactor = 1000.0
	result, err := Kalman(points, params, 1, "car")
	if err != nil {
		t.Fatalf("Kalman: %v", err)
	}
	for _, ann := range result {
		center := ann.BBox.Center()
		if math.Abs(center.X) > divergenceBound || math.Abs(center.Y) > divergenceBound {
			t.Errorf("Frame %d: center (%f, %f) escaped divergence bound", ann.FrameID, center.X, center.Y)
		}
	}
	if math.Abs(result[1].BBox.Center().X-105) > eps {
		t.Errorf("Diverged frame should fall back to the last control point, got %f", result[1].BBox.Center().X)
	}
}

func TestKalmanParamsValidate(t *testing.T) {
	params := DefaultKalmanParams()
	if err := params.Validate(); err != nil {
		t.Errorf("Default params should be valid: %v", err)
	}
	params.ObservationNoise = -1
	if err := params.Validate(); err == nil {
		t.Errorf("Negative noise should be rejected")
	}
}
