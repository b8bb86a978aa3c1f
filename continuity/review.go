package continuity

import (
	"sort"

	"github.com/LdDl/annotrack-go/annotation"
)

// ReviewStatus is the decision about one group of tracking results
type ReviewStatus int

const (
	ReviewPending = ReviewStatus(iota)
	ReviewApproved
	ReviewDiscarded
)

// ReviewGate groups tracking results by track so each group can be approved or discarded independently.
// Nothing reaches repository until approved groups are committed by the caller.
type ReviewGate struct {
	groups map[annotation.TrackID][]annotation.ObjectAnnotation
	status map[annotation.TrackID]ReviewStatus
}

// NewReviewGate creates empty review gate
func NewReviewGate() *ReviewGate {
	return &ReviewGate{
		groups: make(map[annotation.TrackID][]annotation.ObjectAnnotation),
		status: make(map[annotation.TrackID]ReviewStatus),
	}
}

// NewReviewGateFrom creates review gate over given results
func NewReviewGateFrom(results ...Result) *ReviewGate {
	gate := NewReviewGate()
	for _, result := range results {
		gate.AddFrames(result.Frames)
	}
	return gate
}

// AddFrames puts per-frame results under review. Groups receiving new annotations become pending again.
func (gate *ReviewGate) AddFrames(frames map[int][]annotation.ObjectAnnotation) {
	frameIDs := make([]int, 0, len(frames))
	for frameID := range frames {
		frameIDs = append(frameIDs, frameID)
	}
	sort.Ints(frameIDs)
	for _, frameID := range frameIDs {
		for _, ann := range frames[frameID] {
			gate.groups[ann.TrackID] = append(gate.groups[ann.TrackID], ann)
			gate.status[ann.TrackID] = ReviewPending
		}
	}
	for trackID := range gate.groups {
		group := gate.groups[trackID]
		sort.SliceStable(group, func(i, j int) bool { return group[i].FrameID < group[j].FrameID })
	}
}

// Groups returns sorted track identifiers under review
func (gate *ReviewGate) Groups() []annotation.TrackID {
	result := make([]annotation.TrackID, 0, len(gate.groups))
	for trackID := range gate.groups {
		result = append(result, trackID)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Group returns annotations of given track in frame order
func (gate *ReviewGate) Group(trackID annotation.TrackID) []annotation.ObjectAnnotation {
	group := gate.groups[trackID]
	result := make([]annotation.ObjectAnnotation, len(group))
	copy(result, group)
	return result
}

// Status returns decision about given track
func (gate *ReviewGate) Status(trackID annotation.TrackID) (ReviewStatus, bool) {
	status, ok := gate.status[trackID]
	return status, ok
}

// Approve marks group for commit
func (gate *ReviewGate) Approve(trackID annotation.TrackID) bool {
	return gate.decide(trackID, ReviewApproved)
}

// Discard marks group to be dropped
func (gate *ReviewGate) Discard(trackID annotation.TrackID) bool {
	return gate.decide(trackID, ReviewDiscarded)
}

func (gate *ReviewGate) decide(trackID annotation.TrackID, status ReviewStatus) bool {
	if _, ok := gate.groups[trackID]; !ok {
		return false
	}
	gate.status[trackID] = status
	return true
}

// Pending returns sorted identifiers of groups without decision
func (gate *ReviewGate) Pending() []annotation.TrackID {
	result := []annotation.TrackID{}
	for _, trackID := range gate.Groups() {
		if gate.status[trackID] == ReviewPending {
			result = append(result, trackID)
		}
	}
	return result
}

// Approved returns annotations of approved groups ordered by track and then by frame
func (gate *ReviewGate) Approved() []annotation.ObjectAnnotation {
	result := []annotation.ObjectAnnotation{}
	for _, trackID := range gate.Groups() {
		if gate.status[trackID] == ReviewApproved {
			result = append(result, gate.groups[trackID]...)
		}
	}
	return result
}

// Clear drops every group
func (gate *ReviewGate) Clear() {
	gate.groups = make(map[annotation.TrackID][]annotation.ObjectAnnotation)
	gate.status = make(map[annotation.TrackID]ReviewStatus)
}
