package console

import (
	"context"
	"fmt"
	"log/slog"

	"livestream-console/internal/overlay"
)

// Press describes a pointer press forwarded by the view. Target and Handle
// are set when the view already knows which element received the press;
// otherwise the topmost visible overlay under the point is used.
type Press struct {
	Point  overlay.Point
	Target overlay.ID
	Handle bool
}

// PointerDown starts a drag or resize. It returns the pressed overlay's id,
// or "" when nothing was hit or the press was ignored.
func (c *Console) PointerDown(p Press) (overlay.ID, error) {
	c.mu.Lock()
	if c.doc.Active() > 0 {
		c.mu.Unlock()
		return "", ErrGestureActive
	}

	ctrl, onHandle, err := c.targetLocked(p)
	if err != nil || ctrl == nil {
		c.mu.Unlock()
		return "", err
	}
	if !ctrl.Press(p.Point, onHandle) {
		c.mu.Unlock()
		return "", nil
	}
	id, state := ctrl.ID(), ctrl.State()
	c.mu.Unlock()

	c.log.Debug("gesture started", slog.String("id", string(id)), slog.String("state", state.String()))
	c.changed()
	return id, nil
}

func (c *Console) targetLocked(p Press) (*overlay.Controller, bool, error) {
	if p.Target != "" {
		ctrl, ok := c.controllers[p.Target]
		if !ok {
			return nil, false, fmt.Errorf("press %s: %w", p.Target, overlay.ErrNotFound)
		}
		return ctrl, p.Handle, nil
	}

	bounds, ok := c.container.Bounds()
	if !ok {
		return nil, false, nil
	}
	local := bounds.Local(p.Point)

	visible := c.store.Visible()
	for i := len(visible) - 1; i >= 0; i-- {
		ctrl, ok := c.controllers[visible[i].ID]
		if !ok {
			continue
		}
		r := ctrl.Rect()
		if r.Contains(local) {
			return ctrl, r.OnHandle(local), nil
		}
	}
	return nil, false, nil
}

// PointerMove forwards a document-level move to the active gesture.
func (c *Console) PointerMove(p overlay.Point) {
	c.mu.Lock()
	active := c.doc.Active() > 0
	if active {
		c.doc.Move(p)
	}
	c.mu.Unlock()
	if active {
		c.changed()
	}
}

// PointerUp ends the active gesture and persists its commit. On failure the
// controller is resynced to the stored geometry and the error returned.
func (c *Console) PointerUp(ctx context.Context, p overlay.Point) error {
	c.mu.Lock()
	c.doc.Up(p)
	commits := c.pending
	c.pending = nil
	c.mu.Unlock()

	var firstErr error
	for _, cm := range commits {
		if err := c.persist(ctx, cm); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if len(commits) > 0 {
		c.changed()
	}
	return firstErr
}

func (c *Console) persist(ctx context.Context, cm overlay.Commit) error {
	_, err := c.store.Update(ctx, cm.ID, cm.Patch())
	if err != nil {
		c.metrics.ObserveGesture(string(cm.Kind), "failed")
		c.log.Warn("gesture not persisted",
			slog.String("id", string(cm.ID)),
			slog.String("kind", string(cm.Kind)),
			slog.String("error", err.Error()),
		)
	} else {
		c.metrics.ObserveGesture(string(cm.Kind), "persisted")
	}
	// Either way the controller shows the stored value afterwards.
	c.reconcile()
	return err
}

// Blur cancels the active gesture, restoring its press-time geometry.
func (c *Console) Blur() {
	c.mu.Lock()
	var cancelled []overlay.State
	for _, ctrl := range c.controllers {
		if st := ctrl.State(); st != overlay.Idle {
			cancelled = append(cancelled, st)
		}
	}
	c.doc.Cancel()
	c.mu.Unlock()

	for _, st := range cancelled {
		c.metrics.ObserveGesture(gestureKind(st), "cancelled")
	}
	if len(cancelled) > 0 {
		c.changed()
	}
}
