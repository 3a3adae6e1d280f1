// Package console owns the control surface's application state: the overlay
// collection and its drag/resize controllers, the video container geometry,
// and the stream session. Views talk to it through Handler.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"livestream-console/internal/overlay"
	"livestream-console/internal/platform/metrics"
	"livestream-console/internal/remote"
	"livestream-console/internal/stream"
)

var (
	// ErrGestureActive is returned when a press arrives while another gesture runs.
	ErrGestureActive = errors.New("another gesture is in progress")

	// ErrConfirmationRequired is returned for deletes the user has not confirmed.
	ErrConfirmationRequired = errors.New("deletion requires confirmation")
)

// SettingsStore persists the configured source URL.
type SettingsStore interface {
	GetSettings(ctx context.Context) (remote.Settings, error)
	SaveSettings(ctx context.Context, s remote.Settings) error
}

// RenderedOverlay is a visible overlay with its live geometry, which differs
// from the stored one while a gesture is running.
type RenderedOverlay struct {
	overlay.Overlay
	Gesture string `json:"gesture"`
}

// Snapshot is everything a view needs to draw the control surface.
type Snapshot struct {
	Overlays  []RenderedOverlay   `json:"overlays"`
	Player    stream.ElementState `json:"player"`
	Stream    stream.Status       `json:"stream"`
	Container *overlay.Rect       `json:"container,omitempty"`
}

// containerBounds is the last container measurement the view reported.
type containerBounds struct {
	mu   sync.Mutex
	rect overlay.Rect
	ok   bool
}

func (b *containerBounds) Bounds() (overlay.Rect, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rect, b.ok
}

func (b *containerBounds) set(r overlay.Rect) {
	b.mu.Lock()
	b.rect, b.ok = r, r.Measurable()
	b.mu.Unlock()
}

// Console is the single application-state object. State transitions are
// serialized by mu; remote calls run outside it.
type Console struct {
	log      *slog.Logger
	store    *overlay.Store
	session  *stream.Session
	settings SettingsStore
	metrics  *metrics.Metrics

	container *containerBounds
	doc       *overlay.Document

	mu          sync.Mutex
	controllers map[overlay.ID]*overlay.Controller
	pending     []overlay.Commit
	onChange    func()
}

// New wires a console. m may be nil.
func New(store *overlay.Store, session *stream.Session, settings SettingsStore, log *slog.Logger, m *metrics.Metrics) *Console {
	return &Console{
		log:         log,
		store:       store,
		session:     session,
		settings:    settings,
		metrics:     m,
		container:   &containerBounds{},
		doc:         overlay.NewDocument(),
		controllers: make(map[overlay.ID]*overlay.Controller),
	}
}

// OnChange registers fn to run after every state change. It replaces any
// previous registration.
func (c *Console) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

func (c *Console) changed() {
	c.mu.Lock()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Start loads the saved source and the overlay collection. Failures are
// logged and returned but leave the console usable.
func (c *Console) Start(ctx context.Context) error {
	var errs []error

	s, err := c.settings.GetSettings(ctx)
	if err != nil {
		c.log.Error("load settings failed", slog.String("error", err.Error()))
		errs = append(errs, fmt.Errorf("load settings: %w", err))
	} else if s.SourceURL != "" {
		c.session.SetSource(ctx, s.SourceURL)
	}

	if err := c.Reload(ctx); err != nil {
		errs = append(errs, err)
	}
	c.changed()
	return errors.Join(errs...)
}

// Close releases the stream session.
func (c *Console) Close() {
	c.session.Close()
}

// Overlays returns the whole collection, hidden overlays included.
func (c *Console) Overlays() []overlay.Overlay {
	return c.store.List()
}

// Reload replaces the collection with the backend's.
func (c *Console) Reload(ctx context.Context) error {
	if err := c.store.Load(ctx); err != nil {
		return err
	}
	c.reconcile()
	c.changed()
	return nil
}

// SetContainer records the video container's page-space box.
func (c *Console) SetContainer(r overlay.Rect) {
	c.container.set(r)
	c.changed()
}

// SetSource persists src as the configured source and switches the session to it.
func (c *Console) SetSource(ctx context.Context, src string) stream.Status {
	if err := c.settings.SaveSettings(ctx, remote.Settings{SourceURL: src}); err != nil {
		c.log.Error("save settings failed", slog.String("error", err.Error()))
	}
	st := c.session.SetSource(ctx, src)
	c.changed()
	return st
}

// Play starts playback of the configured source.
func (c *Console) Play() error {
	if err := c.session.Play(); err != nil {
		return err
	}
	c.changed()
	return nil
}

// Pause pauses playback.
func (c *Console) Pause() {
	c.session.Pause()
	c.changed()
}

// SetVolume sets the playback volume in [0, 1].
func (c *Console) SetVolume(v float64) error {
	if err := c.session.SetVolume(v); err != nil {
		return err
	}
	c.changed()
	return nil
}

// CreateOverlay validates d and creates it remotely.
func (c *Console) CreateOverlay(ctx context.Context, d overlay.Draft) (overlay.Overlay, error) {
	o, err := c.store.Create(ctx, d)
	if err != nil {
		return overlay.Overlay{}, err
	}
	c.reconcile()
	c.changed()
	return o, nil
}

// UpdateOverlay applies a form edit.
func (c *Console) UpdateOverlay(ctx context.Context, id overlay.ID, p overlay.Patch) (overlay.Overlay, error) {
	o, err := c.store.Update(ctx, id, p)
	if err != nil {
		return overlay.Overlay{}, err
	}
	c.reconcile()
	c.changed()
	return o, nil
}

// ToggleVisible flips an overlay's visibility.
func (c *Console) ToggleVisible(ctx context.Context, id overlay.ID) (overlay.Overlay, error) {
	o, ok := c.store.Get(id)
	if !ok {
		return overlay.Overlay{}, fmt.Errorf("toggle %s: %w", id, overlay.ErrNotFound)
	}
	return c.UpdateOverlay(ctx, id, overlay.VisiblePatch(!o.Visible))
}

// DeleteOverlay removes an overlay the user confirmed deleting.
func (c *Console) DeleteOverlay(ctx context.Context, id overlay.ID, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	if err := c.store.Delete(ctx, id); err != nil {
		return err
	}
	c.reconcile()
	c.changed()
	return nil
}

// Snapshot returns the render state. Only visible overlays are rendered.
func (c *Console) Snapshot() Snapshot {
	visible := c.store.Visible()

	c.mu.Lock()
	rendered := make([]RenderedOverlay, 0, len(visible))
	for _, o := range visible {
		gesture := overlay.Idle.String()
		if ctrl, ok := c.controllers[o.ID]; ok {
			o.Position, o.Size = ctrl.Position(), ctrl.Size()
			gesture = ctrl.State().String()
		}
		rendered = append(rendered, RenderedOverlay{Overlay: o, Gesture: gesture})
	}
	c.mu.Unlock()

	snap := Snapshot{
		Overlays: rendered,
		Player:   c.session.Element().State(),
		Stream:   c.session.Status(),
	}
	if r, ok := c.container.Bounds(); ok {
		snap.Container = &r
	}
	return snap
}

// reconcile keeps exactly one controller per visible overlay, synced to the
// stored geometry. Controllers of removed or hidden overlays are cancelled.
func (c *Console) reconcile() {
	visible := c.store.Visible()
	c.metrics.SetOverlays(len(c.store.List()))

	c.mu.Lock()
	defer c.mu.Unlock()

	keep := make(map[overlay.ID]bool, len(visible))
	for _, o := range visible {
		keep[o.ID] = true
		if ctrl, ok := c.controllers[o.ID]; ok {
			ctrl.Sync(o)
			continue
		}
		c.controllers[o.ID] = overlay.NewController(o, c.container, c.doc, c.enqueueCommit)
	}
	for id, ctrl := range c.controllers {
		if keep[id] {
			continue
		}
		if st := ctrl.State(); st != overlay.Idle {
			ctrl.PointerCancel()
			c.metrics.ObserveGesture(gestureKind(st), "cancelled")
		}
		delete(c.controllers, id)
	}
}

// enqueueCommit runs inside document dispatch, with c.mu held.
func (c *Console) enqueueCommit(cm overlay.Commit) {
	c.pending = append(c.pending, cm)
}

func gestureKind(s overlay.State) string {
	if s == overlay.Resizing {
		return string(overlay.CommitSize)
	}
	return string(overlay.CommitPosition)
}
