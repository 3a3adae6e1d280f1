package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Kind is the media kind the negotiation endpoint declares.
type Kind string

const (
	KindHLS    Kind = "hls"
	KindDirect Kind = "direct"
)

// ErrUnsupported is reported when the negotiated media cannot be played.
var ErrUnsupported = errors.New("unsupported stream format")

// Negotiation is the negotiation endpoint's answer for one source URL.
type Negotiation struct {
	Kind Kind   `json:"type"`
	URL  string `json:"stream_url"`
}

// Negotiator converts a source URL into a browser-playable URL.
type Negotiator interface {
	NegotiateStream(ctx context.Context, sourceURL string) (Negotiation, error)
}

// Observer is told the outcome of every negotiation. It may be nil.
type Observer interface {
	ObserveNegotiation(kind Kind, err error)
}

// Status is what the view shows about the current source. Message is the
// inline, non-fatal error text; empty when everything went fine.
type Status struct {
	Source      string `json:"source"`
	Kind        Kind   `json:"kind,omitempty"`
	PlaybackURL string `json:"playback_url,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Session attaches negotiated media to one playback element. Every SetSource
// supersedes the previous one: its decoder is released first, its in-flight
// negotiation is cancelled, and a late response is discarded by sequence.
type Session struct {
	negotiator Negotiator
	decoders   DecoderFactory
	element    *Element
	log        *slog.Logger
	observer   Observer

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	decoder Decoder
	status  Status
}

// NewSession returns an idle session. observer may be nil.
func NewSession(n Negotiator, decoders DecoderFactory, el *Element, log *slog.Logger, observer Observer) *Session {
	return &Session{negotiator: n, decoders: decoders, element: el, log: log, observer: observer}
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Element returns the playback element the session drives.
func (s *Session) Element() *Element { return s.element }

// SetSource switches to src. An empty src tears the session down. Failures
// are reported through Status.Message; playback simply does not start.
func (s *Session) SetSource(ctx context.Context, src string) Status {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.releaseLocked()
	s.status = Status{Source: src}

	if src == "" {
		s.element.SetSource("")
		s.mu.Unlock()
		return Status{}
	}

	nctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	neg, err := s.negotiator.NegotiateStream(nctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	cancel()
	if seq != s.seq {
		s.log.Debug("stale stream negotiation discarded", slog.String("source", src))
		return s.status
	}
	s.cancel = nil
	if s.observer != nil {
		s.observer.ObserveNegotiation(neg.Kind, err)
	}
	if err != nil {
		s.log.Error("stream negotiation failed", slog.String("source", src), slog.String("error", err.Error()))
		s.status.Message = fmt.Sprintf("Failed to load stream: %v", err)
		return s.status
	}

	s.status.Kind = neg.Kind
	s.status.PlaybackURL = neg.URL
	if err := s.attachLocked(neg); err != nil {
		s.log.Warn("stream not attached", slog.String("source", src), slog.String("kind", string(neg.Kind)), slog.String("error", err.Error()))
		s.status.Message = err.Error()
		return s.status
	}

	s.log.Info("stream attached", slog.String("source", src), slog.String("kind", string(neg.Kind)), slog.String("url", neg.URL))
	return s.status
}

// attachLocked wires the negotiated media to the element. Caller must hold s.mu.
func (s *Session) attachLocked(neg Negotiation) error {
	switch neg.Kind {
	case KindHLS:
		if s.decoders == nil || !s.decoders.Supported() {
			return fmt.Errorf("%w: HLS is not supported", ErrUnsupported)
		}
		s.releaseLocked()
		d := s.decoders.New(neg.URL)
		if err := d.Attach(s.element); err != nil {
			_ = d.Close()
			return fmt.Errorf("attach decoder: %w", err)
		}
		s.decoder = d
		return nil
	case KindDirect:
		s.element.SetSource(neg.URL)
		if err := s.element.Play(); err != nil {
			s.log.Warn("playback failed", slog.String("error", err.Error()))
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupported, neg.Kind)
	}
}

// releaseLocked closes the current decoder and waits for it. Caller must hold s.mu.
func (s *Session) releaseLocked() {
	if s.decoder == nil {
		return
	}
	if err := s.decoder.Close(); err != nil {
		s.log.Warn("decoder close failed", slog.String("error", err.Error()))
	}
	s.decoder = nil
}

// Play resumes playback. It fails while no source is configured.
func (s *Session) Play() error {
	s.mu.Lock()
	src := s.status.Source
	s.mu.Unlock()
	if src == "" {
		return ErrNoSource
	}
	return s.element.Play()
}

// Pause pauses playback.
func (s *Session) Pause() { s.element.Pause() }

// SetVolume sets the element volume.
func (s *Session) SetVolume(v float64) error { return s.element.SetVolume(v) }

// Close cancels any negotiation and releases the decoder.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.releaseLocked()
}
