package remotetest

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"

	"livestream-console/internal/stream"
)

// DefaultWindow matches the backend's ffmpeg -hls_list_size.
const DefaultWindow = 10

// segmentDuration matches the backend's ffmpeg -hls_time.
const segmentDuration = 2.0

// ErrEnded is returned when a segment is registered after End.
var ErrEnded = errors.New("stream has ended")

// Origin plays the part of the backend's RTSP to HLS conversion: a live media
// playlist that keeps a contiguous sliding window of the latest segments.
type Origin struct {
	mu       sync.Mutex
	window   int
	segments map[uint64]stream.Segment
	next     uint64
	ended    bool
}

// NewOrigin returns an empty origin. window <= 0 uses DefaultWindow.
func NewOrigin(window int) *Origin {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Origin{window: window, segments: make(map[uint64]stream.Segment)}
}

// Push registers the next segment the way ffmpeg names them (stream0.ts, ...).
func (o *Origin) Push() (stream.Segment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	seg := stream.Segment{Sequence: o.next, URI: fmt.Sprintf("stream%d.ts", o.next), Duration: segmentDuration}
	return seg, o.registerLocked(seg)
}

// Register records seg. Duplicate sequence numbers are ignored.
func (o *Origin) Register(seg stream.Segment) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.registerLocked(seg)
}

func (o *Origin) registerLocked(seg stream.Segment) error {
	if o.ended {
		return ErrEnded
	}
	if _, ok := o.segments[seg.Sequence]; ok {
		return nil
	}
	o.segments[seg.Sequence] = seg
	if seg.Sequence >= o.next {
		o.next = seg.Sequence + 1
	}
	return nil
}

// End marks the stream finished; the playlist gets #EXT-X-ENDLIST.
func (o *Origin) End() {
	o.mu.Lock()
	o.ended = true
	o.mu.Unlock()
}

// Playlist renders the current live playlist.
func (o *Origin) Playlist() string {
	o.mu.Lock()
	segs := make([]stream.Segment, 0, len(o.segments))
	for _, s := range o.segments {
		segs = append(segs, s)
	}
	ended := o.ended
	o.mu.Unlock()

	sort.Slice(segs, func(i, j int) bool { return segs[i].Sequence < segs[j].Sequence })
	return buildLivePlaylist(visibleWindow(segs, o.window), ended)
}

func (o *Origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(o.Playlist()))
}

// visibleWindow slides to the last window segments, then cuts at the first
// gap so players never see a missing sequence number. segs must be sorted.
func visibleWindow(segs []stream.Segment, window int) []stream.Segment {
	if len(segs) > window {
		segs = segs[len(segs)-window:]
	}
	out := make([]stream.Segment, 0, len(segs))
	for i, s := range segs {
		if i > 0 && s.Sequence != segs[i-1].Sequence+1 {
			break
		}
		out = append(out, s)
	}
	return out
}

// buildLivePlaylist writes segs (ascending) as an HLS media playlist.
func buildLivePlaylist(segs []stream.Segment, ended bool) string {
	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	var seq uint64
	if len(segs) > 0 {
		seq = segs[0].Sequence
	}
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(segs))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", seq)

	for _, s := range segs {
		fmt.Fprintf(&b, "#EXTINF:%.6f,\n%s\n", s.Duration, s.URI)
	}
	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}
	return b.String()
}

// targetDuration is the ceiling of the longest segment, at least 1.
func targetDuration(segs []stream.Segment) int {
	longest := 0.0
	for _, s := range segs {
		longest = math.Max(longest, s.Duration)
	}
	if longest <= 0 {
		return 1
	}
	return int(math.Ceil(longest))
}
