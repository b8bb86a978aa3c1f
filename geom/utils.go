package geom

// IoU calculates Intersection over Union between two rectangles.
func IoU(r1, r2 Rectangle) float64 {
	xA := MaxFloat64(r1.X, r2.X)
	yA := MaxFloat64(r1.Y, r2.Y)
	xB := MinFloat64(r1.X+r1.Width, r2.X+r2.Width)
	yB := MinFloat64(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := MaxFloat64(0, xB-xA) * MaxFloat64(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}

	r1Area := r1.Width * r1.Height
	r2Area := r2.Width * r2.Height

	return interArea / (r1Area + r2Area - interArea)
}

// Clamp bounds value to [lo, hi]
func Clamp(v, lo, hi float64) float64 {
	return MaxFloat64(lo, MinFloat64(v, hi))
}

// MaxFloat64 returns the larger of two values
func MaxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// MinFloat64 returns the smaller of two values
func MinFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
