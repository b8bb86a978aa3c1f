package interpolation

import (
	"math"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	// Predicted centers beyond this magnitude are treated as diverged
	divergenceBound = 10000.0
	kalmanConfidence = 0.9
)

// KalmanParams configures constant-velocity filter used by Kalman
type KalmanParams struct {
	ProcessNoisePos       float64
	ProcessNoiseVel       float64
	ObservationNoise      float64
	VelocityFactor        float64
	InitialPosUncertainty float64
	InitialVelUncertainty float64
}

// DefaultKalmanParams returns default filter parameters
func DefaultKalmanParams() KalmanParams {
	return KalmanParams{
		ProcessNoisePos:       1.0,
		ProcessNoiseVel:       5.0,
		ObservationNoise:      2.0,
		VelocityFactor:        1.2,
		InitialPosUncertainty: 5.0,
		InitialVelUncertainty: 10.0,
	}
}

// Validate checks that noise values are not negative
func (params KalmanParams) Validate() error {
	values := map[string]float64{
		"process_noise_pos":       params.ProcessNoisePos,
		"process_noise_vel":       params.ProcessNoiseVel,
		"observation_noise":       params.ObservationNoise,
		"velocity_factor":         params.VelocityFactor,
		"initial_pos_uncertainty": params.InitialPosUncertainty,
		"initial_vel_uncertainty": params.InitialVelUncertainty,
	}
	for name, value := range values {
		if value < 0 || math.IsNaN(value) || math.IsInf(value, 0) {
			return errors.Errorf("Kalman parameter %s must be finite and non-negative, got %f", name, value)
		}
	}
	return nil
}

// constantVelocity is the Kalman filter over state [cx, cy, vx, vy] with unit time step
type constantVelocity struct {
	x *mat.VecDense
	P *mat.Dense
	F *mat.Dense
	H *mat.Dense
	Q *mat.Dense
	R *mat.Dense
}

func newConstantVelocity(cx, cy, vx, vy float64, params KalmanParams) *constantVelocity {
	return &constantVelocity{
		x: mat.NewVecDense(4, []float64{cx, cy, vx, vy}),
		P: diag(params.InitialPosUncertainty, params.InitialPosUncertainty, params.InitialVelUncertainty, params.InitialVelUncertainty),
		F: mat.NewDense(4, 4, []float64{
			1, 0, 1, 0,
			0, 1, 0, 1,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}),
		H: mat.NewDense(2, 4, []float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
		}),
		Q: diag(params.ProcessNoisePos, params.ProcessNoisePos, params.ProcessNoiseVel, params.ProcessNoiseVel),
		R: diag(params.ObservationNoise, params.ObservationNoise),
	}
}

func diag(values ...float64) *mat.Dense {
	n := len(values)
	m := mat.NewDense(n, n, nil)
	for i, v := range values {
		m.Set(i, i, v)
	}
	return m
}

func (kf *constantVelocity) predict() {
	var x mat.VecDense
	x.MulVec(kf.F, kf.x)
	kf.x = &x

	var fp, fpft mat.Dense
	fp.Mul(kf.F, kf.P)
	fpft.Mul(&fp, kf.F.T())
	fpft.Add(&fpft, kf.Q)
	kf.P = &fpft
}

func (kf *constantVelocity) update(cx, cy float64) {
	z := mat.NewVecDense(2, []float64{cx, cy})
	var hx, y mat.VecDense
	hx.MulVec(kf.H, kf.x)
	y.SubVec(z, &hx)

	var hp, s mat.Dense
	hp.Mul(kf.H, kf.P)
	s.Mul(&hp, kf.H.T())
	s.Add(&s, kf.R)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		// Singular innovation covariance: trust observation completely
		kf.setPosition(cx, cy)
		return
	}
	var pht, k mat.Dense
	pht.Mul(kf.P, kf.H.T())
	k.Mul(&pht, &sInv)

	var ky, x mat.VecDense
	ky.MulVec(&k, &y)
	x.AddVec(kf.x, &ky)
	kf.x = &x

	var kh, ikh, p mat.Dense
	kh.Mul(&k, kf.H)
	ikh.Sub(eye(4), &kh)
	p.Mul(&ikh, kf.P)
	kf.P = &p
}

func eye(n int) *mat.Dense {
	values := make([]float64, n)
	for i := range values {
		values[i] = 1
	}
	return diag(values...)
}

func (kf *constantVelocity) position() (float64, float64) {
	return kf.x.AtVec(0), kf.x.AtVec(1)
}

func (kf *constantVelocity) setPosition(cx, cy float64) {
	kf.x.SetVec(0, cx)
	kf.x.SetVec(1, cy)
}

func (kf *constantVelocity) resetVelocity() {
	kf.x.SetVec(2, 0)
	kf.x.SetVec(3, 0)
}

// Kalman creates annotations for every frame from the first to the last control point
// using constant-velocity filter over the box center. Box size is taken from the first point.
func Kalman(points []ControlPoint, params KalmanParams, trackID annotation.TrackID, label string) ([]annotation.ObjectAnnotation, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "Can't interpolate with Kalman filter")
	}
	sorted, err := sortPoints(points)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interpolate with Kalman filter")
	}
	observations := make(map[int]ControlPoint, len(sorted))
	for _, point := range sorted {
		observations[point.FrameID] = point
	}

	first, second := sorted[0], sorted[1]
	firstCenter := first.Box.Center()
	secondCenter := second.Box.Center()
	gap := float64(second.FrameID - first.FrameID)
	vx := (secondCenter.X - firstCenter.X) / gap * params.VelocityFactor
	vy := (secondCenter.Y - firstCenter.Y) / gap * params.VelocityFactor
	kf := newConstantVelocity(firstCenter.X, firstCenter.Y, vx, vy, params)

	width := first.Box.Width()
	height := first.Box.Height()
	startFrame := first.FrameID
	endFrame := sorted[len(sorted)-1].FrameID
	result := make([]annotation.ObjectAnnotation, 0, endFrame-startFrame+1)
	lastSeen := first
	for frameID := startFrame; frameID <= endFrame; frameID++ {
		if frameID > startFrame {
			kf.predict()
			if point, ok := observations[frameID]; ok {
				center := point.Box.Center()
				kf.update(center.X, center.Y)
			}
		}
		if point, ok := observations[frameID]; ok {
			lastSeen = point
		}
		cx, cy := kf.position()
		if math.Abs(cx) > divergenceBound || math.Abs(cy) > divergenceBound || math.IsNaN(cx) || math.IsNaN(cy) {
			center := lastSeen.Box.Center()
			kf.setPosition(center.X, center.Y)
			kf.resetVelocity()
			cx, cy = center.X, center.Y
		}
		box, err := centeredBox(cx, cy, width, height)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't build box for frame %d", frameID)
		}
		ann, err := annotation.NewObjectAnnotation(trackID, label, box, frameID, false, 1.0)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't build annotation for frame %d", frameID)
		}
		result = append(result, ann)
	}
	return result, nil
}

// centeredBox builds box of fixed size around center. Box crossing top or left border is pushed back inside.
func centeredBox(cx, cy, width, height float64) (annotation.BoundingBox, error) {
	x1 := math.Max(0, cx-width/2.0)
	y1 := math.Max(0, cy-height/2.0)
	return annotation.NewBoundingBox(x1, y1, x1+width, y1+height, kalmanConfidence)
}
