package stream

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoSource is returned when playback is requested before a source is configured.
	ErrNoSource = errors.New("please enter a stream URL first")

	// ErrVolumeRange is returned for a volume outside [0, 1].
	ErrVolumeRange = errors.New("volume must be between 0 and 1")
)

// DefaultBufferedSegments bounds how many decoded segments an Element keeps.
const DefaultBufferedSegments = 10

// Segment is one media segment fed to the playback element by a decoder.
type Segment struct {
	Sequence uint64  `json:"sequence"`
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
}

// Media is the playback element as seen by a decoder.
type Media interface {
	SetSource(src string)
	Play() error
	AppendSegment(seg Segment)
}

// ElementState is a point-in-time copy of the playback element.
type ElementState struct {
	Source   string    `json:"source"`
	Paused   bool      `json:"paused"`
	Volume   float64   `json:"volume"`
	Buffered []Segment `json:"buffered,omitempty"`
}

// Element models the video element the view renders: its source, paused
// flag, volume and the most recent segments a decoder appended.
type Element struct {
	mu          sync.Mutex
	src         string
	paused      bool
	volume      float64
	buffered    []Segment
	maxBuffered int
}

// NewElement returns a paused element at full volume. maxBuffered <= 0 uses
// DefaultBufferedSegments.
func NewElement(maxBuffered int) *Element {
	if maxBuffered <= 0 {
		maxBuffered = DefaultBufferedSegments
	}
	return &Element{paused: true, volume: 1, maxBuffered: maxBuffered}
}

// SetSource replaces the source, drops buffered segments and pauses.
func (e *Element) SetSource(src string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.src = src
	e.buffered = nil
	e.paused = true
}

// Source returns the current source.
func (e *Element) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.src
}

// Play starts playback of the current source.
func (e *Element) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.src == "" {
		return ErrNoSource
	}
	e.paused = false
	return nil
}

// Pause stops playback.
func (e *Element) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

// SetVolume sets the volume in [0, 1].
func (e *Element) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%w: %g", ErrVolumeRange, v)
	}
	e.mu.Lock()
	e.volume = v
	e.mu.Unlock()
	return nil
}

// AppendSegment buffers seg, evicting the oldest beyond the bound.
func (e *Element) AppendSegment(seg Segment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buffered = append(e.buffered, seg)
	if over := len(e.buffered) - e.maxBuffered; over > 0 {
		e.buffered = append([]Segment(nil), e.buffered[over:]...)
	}
}

// State returns a copy of the element.
func (e *Element) State() ElementState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ElementState{
		Source:   e.src,
		Paused:   e.paused,
		Volume:   e.volume,
		Buffered: append([]Segment(nil), e.buffered...),
	}
}
