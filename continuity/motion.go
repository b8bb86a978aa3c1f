package continuity

import (
	"container/heap"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/LdDl/annotrack-go/annotation"
	"github.com/LdDl/annotrack-go/geom"
	"github.com/pkg/errors"
)

// MotionGate follows the tracked object with 8-D Kalman filter over the bounding box
// (state [cx, cy, w, h, vx, vy, vw, vh]) and ranks tracker detections against the predicted box.
// It keeps only the best matching detections, so false positives do not seed the next frame.
type MotionGate struct {
	predictedBBox geom.Rectangle
	track         []geom.Point
	maxTrackLen   int
	noMatchTimes  int
	maxKeep       int
	minScore      float64
	tracker       *kalman_filter.KalmanBBox
}

// NewMotionGateWithTime creates gate seeded with given box and time step.
// At most maxKeep detections with score above minScore pass the gate.
func NewMotionGateWithTime(seed annotation.BoundingBox, dt float64, maxKeep int, minScore float64) *MotionGate {
	currentBbox := seed.Rect()
	center := currentBbox.Center()

	// Kalman filter props
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, currentBbox.Width, currentBbox.Height),
	)
	if maxKeep <= 0 {
		maxKeep = 1
	}
	gate := MotionGate{
		predictedBBox: currentBbox,
		track:         make([]geom.Point, 0, 150),
		maxTrackLen:   150,
		maxKeep:       maxKeep,
		minScore:      minScore,
		tracker:       kf,
	}
	gate.track = append(gate.track, center)
	return &gate
}

// NewMotionGate creates gate with time step of 1.0 (one frame) keeping the single best detection
func NewMotionGate(seed annotation.BoundingBox) *MotionGate {
	return NewMotionGateWithTime(seed, 1.0, 1, 0.0)
}

// GetTrack returns centers of matched boxes. Be careful: this is not copy of track, but reference to it
func (gate *MotionGate) GetTrack() []geom.Point {
	return gate.track
}

// GetNoMatchTimes returns number of consecutive frames without accepted detection
func (gate *MotionGate) GetNoMatchTimes() int {
	return gate.noMatchTimes
}

// PredictNextPosition executes Kalman filter prediction step
func (gate *MotionGate) PredictNextPosition() {
	gate.tracker.Predict()
	cx, cy, w, h := gate.tracker.GetState()
	gate.predictedBBox = geom.NewRect(cx-w/2.0, cy-h/2.0, w, h)
}

// Update executes Kalman filter update step with measured box
func (gate *MotionGate) Update(measured geom.Rectangle) error {
	center := measured.Center()
	err := gate.tracker.Update(center.X, center.Y, measured.Width, measured.Height)
	if err != nil {
		return errors.Wrap(err, "Can't update motion gate")
	}
	cx, cy, _, _ := gate.tracker.GetState()
	gate.noMatchTimes = 0
	gate.track = append(gate.track, geom.NewPoint(cx, cy))
	if len(gate.track) > gate.maxTrackLen {
		gate.track = gate.track[1:]
	}
	return nil
}

// Score combines IoU and center distance between predicted box and detection (favor IoU when available, fallback to distance)
func (gate *MotionGate) Score(detection geom.Rectangle) float64 {
	iouValue := geom.IoU(detection, gate.predictedBBox)
	distance := geom.EuclideanDistance(gate.predictedBBox.Center(), detection.Center())
	// Convert to 0-1 similarity
	distanceScore := 1.0 / (1.0 + distance*0.01)
	if iouValue > 0.05 {
		return iouValue*0.8 + distanceScore*0.2
	}
	// Lower weight for pure distance matching
	return distanceScore * 0.5
}

// Filter predicts next position, keeps best scored detections and corrects filter with the best one.
// Returns kept detections (best first) and number of rejected ones.
func (gate *MotionGate) Filter(detections []annotation.ObjectAnnotation) ([]annotation.ObjectAnnotation, int, error) {
	gate.PredictNextPosition()
	pq := &scoredHeap{}
	heap.Init(pq)
	for i := range detections {
		score := gate.Score(detections[i].BBox.Rect())
		if score <= gate.minScore {
			continue
		}
		heap.Push(pq, &scoredDetection{score: score, detection: detections[i]})
	}
	kept := make([]annotation.ObjectAnnotation, 0, gate.maxKeep)
	for pq.Len() > 0 && len(kept) < gate.maxKeep {
		item := heap.Pop(pq).(*scoredDetection)
		kept = append(kept, item.detection)
	}
	if len(kept) == 0 {
		gate.noMatchTimes++
		return kept, len(detections), nil
	}
	if err := gate.Update(kept[0].BBox.Rect()); err != nil {
		return nil, 0, err
	}
	return kept, len(detections) - len(kept), nil
}

// scoredDetection holds detection with its match score for priority queue
type scoredDetection struct {
	score     float64
	detection annotation.ObjectAnnotation
}

// scoredHeap implements heap.Interface for max-heap by score
type scoredHeap []*scoredDetection

func (h scoredHeap) Len() int { return len(h) }

// Less returns true if i has higher score (max-heap)
func (h scoredHeap) Less(i, j int) bool { return h[i].score > h[j].score }

func (h scoredHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredHeap) Push(x any) {
	*h = append(*h, x.(*scoredDetection))
}

func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[0 : n-1]
	return item
}
