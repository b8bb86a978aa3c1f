package continuity

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedVideoCachesFrames(t *testing.T) {
	source := &stubVideo{total: 5, missing: map[int]bool{3: true}}
	video := NewLockedVideoDefault(source)
	_, ok := video.Frame(1)
	assert.True(t, ok)
	_, ok = video.Frame(1)
	assert.True(t, ok)
	assert.Equal(t, 1, video.Reads())

	_, ok = video.Frame(3)
	assert.False(t, ok)
	_, ok = video.Frame(3)
	assert.False(t, ok)
	assert.Equal(t, 3, video.Reads())

	video.Purge()
	_, _ = video.Frame(1)
	assert.Equal(t, 4, video.Reads())
	assert.Equal(t, 5, video.TotalFrames())
	assert.Equal(t, 640, video.Width())
	assert.Equal(t, 480, video.Height())
	assert.InDelta(t, 30.0, video.FPS(), 10e-6)
}

func TestLockedVideoWithoutCache(t *testing.T) {
	video := NewLockedVideo(&stubVideo{total: 5}, 0*time.Second)
	_, _ = video.Frame(0)
	_, _ = video.Frame(0)
	assert.Equal(t, 2, video.Reads())
}

// overlapVideo records the largest number of simultaneous decodes
type overlapVideo struct {
	stubVideo
	inFlight int32
	peak     int32
}

func (video *overlapVideo) Frame(frameID int) (Frame, bool) {
	current := atomic.AddInt32(&video.inFlight, 1)
	for {
		peak := atomic.LoadInt32(&video.peak)
		if current <= peak || atomic.CompareAndSwapInt32(&video.peak, peak, current) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	atomic.AddInt32(&video.inFlight, -1)
	return video.stubVideo.Frame(frameID)
}

func TestLockedVideoSerializesDecodes(t *testing.T) {
	source := &overlapVideo{stubVideo: stubVideo{total: 64}}
	coordinator := NewCoordinator(&stubTracker{}, source)
	video, ok := coordinator.video.(*LockedVideo)
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(frameID int) {
			defer wg.Done()
			_, _ = video.Frame(frameID)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.peak))
	assert.Equal(t, 16, video.Reads())
}

func TestNewCoordinatorKeepsLockedVideo(t *testing.T) {
	locked := NewLockedVideoDefault(&stubVideo{total: 5})
	coordinator := NewCoordinator(&stubTracker{}, locked)
	assert.Same(t, locked, coordinator.video)
}
