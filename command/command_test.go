package command

import (
	"testing"

	"github.com/LdDl/annotrack-go/annotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnnotation(t *testing.T, trackID annotation.TrackID, label string, frameID int, x float64) annotation.ObjectAnnotation {
	t.Helper()
	bbox, err := annotation.NewBoundingBox(x, 10, x+40, 50, 0.9)
	require.NoError(t, err)
	ann, err := annotation.NewObjectAnnotation(trackID, label, bbox, frameID, true, 1.0)
	require.NoError(t, err)
	return ann
}

func seededRepository(t *testing.T) *annotation.Repository {
	t.Helper()
	repo := annotation.NewRepository()
	for _, ann := range []annotation.ObjectAnnotation{
		newAnnotation(t, 1, "car", 0, 0),
		newAnnotation(t, 2, "bus", 0, 100),
		newAnnotation(t, 1, "car", 0, 200),
		newAnnotation(t, 1, "car", 1, 10),
		newAnnotation(t, 3, "person", 1, 300),
		newAnnotation(t, 1, "van", 2, 20),
	} {
		_, err := repo.Add(ann)
		require.NoError(t, err)
	}
	return repo
}

func TestExecuteUndoRestoresSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		build func(t *testing.T, repo *annotation.Repository) Command
	}{
		{"add", func(t *testing.T, repo *annotation.Repository) Command {
			return NewAdd(repo, newAnnotation(t, 0, "truck", 5, 0))
		}},
		{"delete", func(t *testing.T, repo *annotation.Repository) Command {
			return NewDelete(repo, 1, 0)
		}},
		{"delete track", func(t *testing.T, repo *annotation.Repository) Command {
			return NewDeleteTrack(repo, 1)
		}},
		{"update label", func(t *testing.T, repo *annotation.Repository) Command {
			frame, _ := repo.Get(0)
			return NewUpdateLabel(repo, frame.Objects[1], "minibus")
		}},
		{"update label by track", func(t *testing.T, repo *annotation.Repository) Command {
			return NewUpdateLabelByTrack(repo, 1, "truck")
		}},
		{"update bounding box", func(t *testing.T, repo *annotation.Repository) Command {
			frame, _ := repo.Get(1)
			target := frame.Objects[1]
			newBox, err := annotation.NewBoundingBox(1, 1, 20, 20, 0.5)
			require.NoError(t, err)
			return NewUpdateBoundingBox(repo, target, target.BBox, newBox)
		}},
		{"macro", func(t *testing.T, repo *annotation.Repository) Command {
			return NewMacro("batch",
				NewAdd(repo, newAnnotation(t, 0, "truck", 0, 400)),
				NewDeleteTrack(repo, 2),
				NewUpdateLabelByTrack(repo, 1, "truck"),
			)
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := seededRepository(t)
			before := repo.Snapshot()
			cmd := tc.build(t, repo)
			require.NoError(t, cmd.Execute())
			assert.NotEqual(t, before, repo.Snapshot())
			after := repo.Snapshot()
			require.NoError(t, cmd.Undo())
			assert.Equal(t, before, repo.Snapshot())
			require.NoError(t, cmd.Execute())
			assert.Equal(t, after, repo.Snapshot())
		})
	}
}

func TestDeleteTrackRemovesEmptyFrames(t *testing.T) {
	repo := seededRepository(t)
	total := repo.Statistics().Total
	cmd := NewDeleteTrack(repo, 1)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, total-4, repo.Statistics().Total)
	assert.Equal(t, []int{0, 1}, repo.Frames())
	assert.Equal(t, "Delete track 1 (4 annotations)", cmd.Description())
}

func TestCommandsReportMissingTargets(t *testing.T) {
	repo := seededRepository(t)
	assert.ErrorIs(t, NewDelete(repo, 9, 0).Execute(), ErrNotFound)
	assert.ErrorIs(t, NewDeleteTrack(repo, 9).Execute(), ErrNotFound)
	assert.ErrorIs(t, NewUpdateLabelByTrack(repo, 9, "x").Execute(), ErrNotFound)
	ghost := newAnnotation(t, 9, "ghost", 0, 0)
	ghost.RowID = 999
	assert.ErrorIs(t, NewUpdateLabel(repo, ghost, "x").Execute(), ErrNotFound)
}

func TestMacroRollsBackOnFailure(t *testing.T) {
	repo := seededRepository(t)
	before := repo.Snapshot()
	macro := NewMacro("broken",
		NewAdd(repo, newAnnotation(t, 0, "truck", 0, 400)),
		NewDeleteTrack(repo, 2),
		NewDeleteTrack(repo, 42),
	)
	err := macro.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, before, repo.Snapshot())
}

func TestAddRedoKeepsIdentity(t *testing.T) {
	repo := annotation.NewRepository()
	cmd := NewAdd(repo, newAnnotation(t, 0, "car", 0, 0))
	require.NoError(t, cmd.Execute())
	first := cmd.Stored()
	require.NoError(t, cmd.Undo())
	require.NoError(t, cmd.Execute())
	assert.Equal(t, first, cmd.Stored())
	assert.Equal(t, annotation.TrackID(1), first.TrackID)
}
