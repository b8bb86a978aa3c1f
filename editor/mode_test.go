package editor

import (
	"testing"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerModes(t *testing.T) {
	ctl := NewController(NewEditorDefault(NewTransformDefault(640, 480)))
	assert.Equal(t, ModeView, ctl.Mode())
	ann := stored(t, 1, 100, 100, 200, 150)
	candidates := []annotation.ObjectAnnotation{ann}

	// View mode selects but never edits
	ctl.Press(Pointer{X: 150, Y: 120, Candidates: candidates})
	ctl.Move(Pointer{X: 180, Y: 140})
	out := ctl.Release(Pointer{X: 180, Y: 140})
	assert.Equal(t, ResultNone, out.Kind)
	_, selected := ctl.Editor().Selected()
	assert.True(t, selected)

	require.NoError(t, ctl.SetMode(ModeEdit))
	_, selected = ctl.Editor().Selected()
	assert.False(t, selected)
	ctl.Press(Pointer{X: 150, Y: 120, Candidates: candidates})
	out = ctl.Release(Pointer{X: 160, Y: 120})
	assert.Equal(t, ResultBoxChanged, out.Kind)

	assert.ErrorIs(t, ctl.SetMode(Mode(42)), ErrUnknownMode)
	assert.Equal(t, ModeEdit, ctl.Mode())
}

func TestControllerBatchStaging(t *testing.T) {
	ctl := NewController(NewEditorDefault(NewTransformDefault(640, 480)))
	require.NoError(t, ctl.SetMode(ModeBatchAdd))
	existing := []annotation.ObjectAnnotation{stored(t, 1, 100, 100, 200, 150)}

	for i, start := range []float64{110, 300} {
		ctl.Press(Pointer{X: start, Y: 110, FrameID: 7, Candidates: existing})
		out := ctl.Release(Pointer{X: start + 50, Y: 160, FrameID: 7})
		require.True(t, out.HasStaged)
		assert.Equal(t, annotation.TrackID(-(i + 1)), out.Staged.TrackID)
	}
	ctl.Press(Pointer{X: 400, Y: 400, FrameID: 7})
	out := ctl.Release(Pointer{X: 402, Y: 402, FrameID: 7})
	assert.False(t, out.HasStaged)

	seeds := ctl.StagedSeeds()
	require.Len(t, seeds, 2)
	for _, seed := range seeds {
		assert.Equal(t, BatchLabel, seed.Label)
		assert.True(t, seed.IsBatchAdded)
		assert.Equal(t, 7, seed.FrameID)
	}
	assert.True(t, ctl.Unstage(-1))
	assert.False(t, ctl.Unstage(-1))
	assert.Len(t, ctl.StagedSeeds(), 1)
	ctl.ClearStaged()
	assert.Empty(t, ctl.StagedSeeds())
}
