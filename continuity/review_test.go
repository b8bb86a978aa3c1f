package continuity

import (
	"testing"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewGate(t *testing.T) {
	first := seedAnnotation(t, 0)
	first.TrackID = 1
	later := seedAnnotation(t, 4)
	later.TrackID = 1
	other := seedAnnotation(t, 2)
	other.TrackID = 2

	gate := NewReviewGateFrom(
		Result{Frames: map[int][]annotation.ObjectAnnotation{4: {later}, 0: {first}}},
		Result{Frames: map[int][]annotation.ObjectAnnotation{2: {other}}},
	)
	assert.Equal(t, []annotation.TrackID{1, 2}, gate.Groups())
	assert.Equal(t, []annotation.TrackID{1, 2}, gate.Pending())
	group := gate.Group(1)
	require.Len(t, group, 2)
	assert.Equal(t, 0, group[0].FrameID)

	assert.True(t, gate.Approve(1))
	assert.True(t, gate.Discard(2))
	assert.False(t, gate.Approve(9))
	assert.Empty(t, gate.Pending())

	approved := gate.Approved()
	require.Len(t, approved, 2)
	assert.Equal(t, annotation.TrackID(1), approved[0].TrackID)
	status, ok := gate.Status(2)
	require.True(t, ok)
	assert.Equal(t, ReviewDiscarded, status)

	gate.Clear()
	assert.Empty(t, gate.Groups())
}
