package editor

import (
	"math"
	"testing"
)

func TestTransformRoundTrip(t *testing.T) {
	transforms := []*Transform{
		NewTransformDefault(640, 480),
		NewTransform(2.0, 2.0, 0, 40, 1920, 1080),
		NewTransform(1.5, 1.5, 12, 0, 480, 360),
		FitTransform(800, 600, 1920, 1080),
	}
	for i, tr := range transforms {
		for px := 0.0; px < 400; px += 17.3 {
			for py := 0.0; py < 300; py += 13.7 {
				if px < tr.OffsetX || py < tr.OffsetY {
					continue
				}
				x, y := tr.WidgetToImage(px, py)
				wx, wy := tr.ImageToWidget(float64(x), float64(y))
				if math.Abs(wx-px) > 1.0 || math.Abs(wy-py) > 1.0 {
					t.Errorf("Transform %d: (%f, %f) -> (%d, %d) -> (%f, %f) differs more than one pixel", i, px, py, x, y, wx, wy)
				}
			}
		}
	}
}

func TestFitTransform(t *testing.T) {
	tr := FitTransform(800, 600, 1600, 900)
	if math.Abs(tr.ScaleX-2.0) > eps || math.Abs(tr.ScaleY-2.0) > eps {
		t.Errorf("Scale should be 2.0, got (%f, %f)", tr.ScaleX, tr.ScaleY)
	}
	if math.Abs(tr.OffsetX) > eps || math.Abs(tr.OffsetY-75.0) > eps {
		t.Errorf("Offsets should be (0, 75), got (%f, %f)", tr.OffsetX, tr.OffsetY)
	}
	x, y := tr.WidgetToImage(-5, 10)
	if x != 0 || y != 0 {
		t.Errorf("Point above letterbox should map to (0, 0), got (%d, %d)", x, y)
	}
}

func TestClipToBounds(t *testing.T) {
	tr := NewTransformDefault(100, 50)
	x, y := tr.ClipToBounds(-3, 70)
	if x != 0 || y != 50 {
		t.Errorf("Expected (0, 50), got (%f, %f)", x, y)
	}
}
