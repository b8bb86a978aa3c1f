package continuity

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// LockedVideo serializes access to stateful video reader and caches decoded frames
type LockedVideo struct {
	mu     sync.Mutex
	source VideoSource
	frames *cache.Cache
	reads  int
}

// NewLockedVideo wraps source. Decoded frames live in cache for given TTL; non-positive TTL disables caching.
func NewLockedVideo(source VideoSource, ttl time.Duration) *LockedVideo {
	video := &LockedVideo{source: source}
	if ttl > 0 {
		// No janitor: expired frames are dropped lazily on access or by Purge
		video.frames = cache.New(ttl, 0)
	}
	return video
}

// NewLockedVideoDefault wraps source caching frames for 30 seconds
func NewLockedVideoDefault(source VideoSource) *LockedVideo {
	return NewLockedVideo(source, 30*time.Second)
}

// Frame returns decoded frame. Only one decode may be in flight at a time.
func (video *LockedVideo) Frame(frameID int) (Frame, bool) {
	key := strconv.Itoa(frameID)
	if video.frames != nil {
		if cached, ok := video.frames.Get(key); ok {
			return cached.(Frame), true
		}
	}
	video.mu.Lock()
	defer video.mu.Unlock()
	video.reads++
	frame, ok := video.source.Frame(frameID)
	if !ok || frame == nil {
		return nil, false
	}
	if video.frames != nil {
		video.frames.SetDefault(key, frame)
	}
	return frame, true
}

// Reads returns number of decode calls that reached the underlying source
func (video *LockedVideo) Reads() int {
	video.mu.Lock()
	defer video.mu.Unlock()
	return video.reads
}

// Purge drops cached frames, e.g. when another video is opened
func (video *LockedVideo) Purge() {
	if video.frames != nil {
		video.frames.Flush()
	}
}

func (video *LockedVideo) TotalFrames() int {
	video.mu.Lock()
	defer video.mu.Unlock()
	return video.source.TotalFrames()
}

func (video *LockedVideo) FPS() float64 {
	video.mu.Lock()
	defer video.mu.Unlock()
	return video.source.FPS()
}

func (video *LockedVideo) Width() int {
	video.mu.Lock()
	defer video.mu.Unlock()
	return video.source.Width()
}

func (video *LockedVideo) Height() int {
	video.mu.Lock()
	defer video.mu.Unlock()
	return video.source.Height()
}
