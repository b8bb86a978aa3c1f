// Package editor contains display/image coordinate transform and interactive box editing.
package editor

import (
	"github.com/LdDl/annotrack-go/geom"
)

// Transform maps display (widget) coordinates to image pixels and back
type Transform struct {
	// Image pixels per display pixel
	ScaleX float64
	ScaleY float64
	// Display-space letterbox padding
	OffsetX float64
	OffsetY float64

	ImageWidth  int
	ImageHeight int
}

// NewTransform creates transform with given parameters
func NewTransform(scaleX, scaleY, offsetX, offsetY float64, imageWidth, imageHeight int) *Transform {
	t := &Transform{}
	t.Update(scaleX, scaleY, offsetX, offsetY, imageWidth, imageHeight)
	return t
}

// NewTransformDefault creates identity transform for image of given size
func NewTransformDefault(imageWidth, imageHeight int) *Transform {
	return NewTransform(1.0, 1.0, 0.0, 0.0, imageWidth, imageHeight)
}

// FitTransform computes aspect-preserving transform showing image of size imageWidth x imageHeight
// centered inside display of size displayWidth x displayHeight
func FitTransform(displayWidth, displayHeight, imageWidth, imageHeight int) *Transform {
	if displayWidth <= 0 || displayHeight <= 0 || imageWidth <= 0 || imageHeight <= 0 {
		return NewTransformDefault(imageWidth, imageHeight)
	}
	// Display pixels per image pixel
	fit := geom.MinFloat64(float64(displayWidth)/float64(imageWidth), float64(displayHeight)/float64(imageHeight))
	shownWidth := float64(imageWidth) * fit
	shownHeight := float64(imageHeight) * fit
	return NewTransform(
		1.0/fit, 1.0/fit,
		(float64(displayWidth)-shownWidth)/2.0, (float64(displayHeight)-shownHeight)/2.0,
		imageWidth, imageHeight,
	)
}

// Update replaces transform parameters. Must be called on every display resize.
// Non-positive scale factors are replaced with 1.
func (t *Transform) Update(scaleX, scaleY, offsetX, offsetY float64, imageWidth, imageHeight int) {
	if scaleX <= 0 {
		scaleX = 1.0
	}
	if scaleY <= 0 {
		scaleY = 1.0
	}
	t.ScaleX = scaleX
	t.ScaleY = scaleY
	t.OffsetX = offsetX
	t.OffsetY = offsetY
	t.ImageWidth = imageWidth
	t.ImageHeight = imageHeight
}

// WidgetToImage converts display point to integer image pixel
func (t *Transform) WidgetToImage(px, py float64) (int, int) {
	x := geom.MaxFloat64(0, px-t.OffsetX) * t.ScaleX
	y := geom.MaxFloat64(0, py-t.OffsetY) * t.ScaleY
	return int(x), int(y)
}

// ImageToWidget converts image point to display point
func (t *Transform) ImageToWidget(x, y float64) (float64, float64) {
	return x/t.ScaleX + t.OffsetX, y/t.ScaleY + t.OffsetY
}

// ClipToBounds clamps image point into [0, width] x [0, height]
func (t *Transform) ClipToBounds(x, y float64) (float64, float64) {
	return geom.Clamp(x, 0, float64(t.ImageWidth)), geom.Clamp(y, 0, float64(t.ImageHeight))
}

// DeltaToImage converts display-space displacement to image-space displacement
func (t *Transform) DeltaToImage(dx, dy float64) (float64, float64) {
	return dx * t.ScaleX, dy * t.ScaleY
}
