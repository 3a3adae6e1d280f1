package stream

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/grafov/m3u8"
)

// Decoder is an adaptive-streaming decoder attached to one playback element.
// Close must stop all background work before it returns.
type Decoder interface {
	Attach(m Media) error
	Close() error
}

// DecoderFactory creates decoders for negotiated manifests.
type DecoderFactory interface {
	// Supported reports whether adaptive streaming is available at all.
	Supported() bool
	New(manifestURL string) Decoder
}

// minPollInterval keeps a zero or missing target duration from spinning.
const minPollInterval = 500 * time.Millisecond

// maxMasterHops bounds master-to-master redirection.
const maxMasterHops = 3

// HLSConfig configures HLS decoders. Zero values use defaults.
type HLSConfig struct {
	Client *http.Client
	Log    *slog.Logger
	// PollInterval overrides the playlist reload interval. Zero reloads every
	// target duration, as live HLS players do.
	PollInterval time.Duration
}

// HLSFactory creates HLSDecoders.
type HLSFactory struct {
	cfg HLSConfig
}

// NewHLSFactory returns a factory that shares cfg between decoders.
func NewHLSFactory(cfg HLSConfig) *HLSFactory {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &HLSFactory{cfg: cfg}
}

// Supported implements DecoderFactory.
func (f *HLSFactory) Supported() bool { return true }

// New implements DecoderFactory.
func (f *HLSFactory) New(manifestURL string) Decoder {
	return &HLSDecoder{manifestURL: manifestURL, cfg: f.cfg}
}

// HLSDecoder loads an HLS manifest, follows the best variant of a master
// playlist, and feeds new media segments to the element until the playlist
// ends or the decoder is closed. Errors are logged and retried on the next
// reload; they never reach the session.
type HLSDecoder struct {
	manifestURL string
	cfg         HLSConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Attach implements Decoder. The element's source becomes the manifest URL.
func (d *HLSDecoder) Attach(m Media) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return fmt.Errorf("hls decoder for %s already attached", d.manifestURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	m.SetSource(d.manifestURL)
	go d.run(ctx, m)
	return nil
}

// Close implements Decoder. It is safe to call more than once.
func (d *HLSDecoder) Close() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (d *HLSDecoder) run(ctx context.Context, m Media) {
	defer close(d.done)
	log := d.cfg.Log.With(slog.String("manifest", d.manifestURL))

	playlistURL := d.manifestURL
	var (
		lastSeq uint64
		fed     bool
		started bool
		hops    int
	)

	for {
		interval := d.cfg.PollInterval

		pl, err := d.fetch(ctx, playlistURL)
		switch {
		case ctx.Err() != nil:
			return
		case err != nil:
			log.Warn("hls playlist load failed", slog.String("url", playlistURL), slog.String("error", err.Error()))
		default:
			switch p := pl.(type) {
			case *m3u8.MasterPlaylist:
				hops++
				if hops > maxMasterHops {
					log.Warn("hls master playlists nest too deep", slog.Int("hops", hops))
					return
				}
				variant, err := bestVariant(p, playlistURL)
				if err != nil {
					log.Warn("hls master playlist unusable", slog.String("error", err.Error()))
					return
				}
				log.Debug("hls variant selected", slog.String("url", variant))
				playlistURL = variant
				continue
			case *m3u8.MediaPlaylist:
				for _, seg := range mediaSegments(p, playlistURL) {
					if fed && seg.Sequence <= lastSeq {
						continue
					}
					m.AppendSegment(seg)
					lastSeq, fed = seg.Sequence, true
				}
				if !started {
					started = true
					if err := m.Play(); err != nil {
						log.Warn("hls playback start failed", slog.String("error", err.Error()))
					}
				}
				if p.Closed {
					log.Info("hls playlist ended", slog.Uint64("last_sequence", lastSeq))
					return
				}
				if interval == 0 {
					interval = time.Duration(p.TargetDuration * float64(time.Second))
				}
			}
		}

		if interval < minPollInterval {
			interval = minPollInterval
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (d *HLSDecoder) fetch(ctx context.Context, rawURL string) (m3u8.Playlist, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	pl, _, err := m3u8.DecodeFrom(resp.Body, false)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}
	return pl, nil
}

// bestVariant returns the absolute URL of the highest-bandwidth variant.
func bestVariant(p *m3u8.MasterPlaylist, base string) (string, error) {
	var best *m3u8.Variant
	for _, v := range p.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	if best == nil {
		return "", fmt.Errorf("no variants")
	}
	return resolve(base, best.URI)
}

// mediaSegments lists the playlist's segments with absolute URIs and their
// media sequence numbers.
func mediaSegments(p *m3u8.MediaPlaylist, base string) []Segment {
	out := make([]Segment, 0, len(p.Segments))
	seq := p.SeqNo
	for _, s := range p.Segments {
		if s == nil {
			continue
		}
		uri, err := resolve(base, s.URI)
		if err != nil {
			uri = s.URI
		}
		out = append(out, Segment{Sequence: seq, URI: uri, Duration: s.Duration})
		seq++
	}
	return out
}

func resolve(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}
