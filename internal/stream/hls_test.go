package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2500000,RESOLUTION=1280x720
high/index.m3u8
`

const endedMediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:2
#EXT-X-MEDIA-SEQUENCE:38

#EXTINF:2.0,
seg38.ts
#EXTINF:2.0,
seg39.ts
#EXT-X-ENDLIST
`

// syncMedia is a Media safe for use from the decoder goroutine.
type syncMedia struct {
	mu       sync.Mutex
	src      string
	playing  bool
	segments []Segment
}

func (m *syncMedia) SetSource(src string) {
	m.mu.Lock()
	m.src = src
	m.mu.Unlock()
}

func (m *syncMedia) Play() error {
	m.mu.Lock()
	m.playing = true
	m.mu.Unlock()
	return nil
}

func (m *syncMedia) AppendSegment(seg Segment) {
	m.mu.Lock()
	m.segments = append(m.segments, seg)
	m.mu.Unlock()
}

func (m *syncMedia) snapshot() (string, bool, []Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src, m.playing, append([]Segment(nil), m.segments...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHLSDecoder_follows_best_variant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/live/master.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(masterPlaylist))
	})
	mux.HandleFunc("/live/high/index.m3u8", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(endedMediaPlaylist))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHLSFactory(HLSConfig{Client: srv.Client(), Log: testLogger()})
	d := f.New(srv.URL + "/live/master.m3u8")
	m := &syncMedia{}
	if err := d.Attach(m); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer d.Close()

	waitFor(t, func() bool {
		_, playing, segs := m.snapshot()
		return playing && len(segs) == 2
	})

	src, _, segs := m.snapshot()
	if src != srv.URL+"/live/master.m3u8" {
		t.Errorf("element source = %q", src)
	}
	if segs[0].Sequence != 38 || segs[1].Sequence != 39 {
		t.Errorf("unexpected sequences %+v", segs)
	}
	if segs[0].URI != srv.URL+"/live/high/seg38.ts" {
		t.Errorf("segment URI not resolved against the variant: %q", segs[0].URI)
	}
}

func TestHLSDecoder_appends_only_new_segments(t *testing.T) {
	var (
		mu    sync.Mutex
		loads int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		loads++
		n := loads
		mu.Unlock()

		var b strings.Builder
		b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-TARGETDURATION:1\n#EXT-X-MEDIA-SEQUENCE:1\n")
		b.WriteString("#EXTINF:1.0,\n1.ts\n#EXTINF:1.0,\n2.ts\n")
		if n > 1 {
			b.WriteString("#EXTINF:1.0,\n3.ts\n#EXT-X-ENDLIST\n")
		}
		w.Write([]byte(b.String()))
	}))
	defer srv.Close()

	d := NewHLSFactory(HLSConfig{Client: srv.Client(), Log: testLogger(), PollInterval: time.Millisecond}).New(srv.URL + "/index.m3u8")
	m := &syncMedia{}
	if err := d.Attach(m); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	defer d.Close()

	waitFor(t, func() bool {
		_, _, segs := m.snapshot()
		return len(segs) >= 3
	})
	// Let any extra reload happen; the playlist has ended so none should.
	time.Sleep(50 * time.Millisecond)

	_, _, segs := m.snapshot()
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments without duplicates, got %+v", segs)
	}
	for i, s := range segs {
		if s.Sequence != uint64(i+1) {
			t.Errorf("segment %d has sequence %d", i, s.Sequence)
		}
	}
}

func TestHLSDecoder_close_stops_background_work(t *testing.T) {
	var (
		mu    sync.Mutex
		loads int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		loads++
		mu.Unlock()
		w.Write([]byte("#EXTM3U\n#EXT-X-TARGETDURATION:1\n#EXT-X-MEDIA-SEQUENCE:0\n#EXTINF:1.0,\n0.ts\n"))
	}))
	defer srv.Close()

	d := NewHLSFactory(HLSConfig{Client: srv.Client(), Log: testLogger(), PollInterval: time.Millisecond}).New(srv.URL + "/live.m3u8")
	m := &syncMedia{}
	if err := d.Attach(m); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	waitFor(t, func() bool {
		_, playing, _ := m.snapshot()
		return playing
	})

	if err := d.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	mu.Lock()
	after := loads
	mu.Unlock()

	time.Sleep(minPollInterval + 200*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if loads != after {
		t.Errorf("decoder kept loading after Close: %d -> %d", after, loads)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestHLSDecoder_attach_twice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(endedMediaPlaylist))
	}))
	defer srv.Close()

	d := NewHLSFactory(HLSConfig{Client: srv.Client(), Log: testLogger()}).New(srv.URL + "/a.m3u8")
	defer d.Close()
	if err := d.Attach(&syncMedia{}); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := d.Attach(&syncMedia{}); err == nil {
		t.Error("second Attach should fail")
	}
}

func TestElement_buffer_bound(t *testing.T) {
	el := NewElement(2)
	el.SetSource("x")
	for i := uint64(1); i <= 5; i++ {
		el.AppendSegment(Segment{Sequence: i})
	}
	st := el.State()
	if len(st.Buffered) != 2 || st.Buffered[0].Sequence != 4 || st.Buffered[1].Sequence != 5 {
		t.Errorf("expected last two segments, got %+v", st.Buffered)
	}

	el.SetSource("y")
	if st := el.State(); len(st.Buffered) != 0 || !st.Paused {
		t.Errorf("new source should reset buffer and pause: %+v", st)
	}
}
