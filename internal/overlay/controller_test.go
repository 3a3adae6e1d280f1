package overlay

import (
	"math/rand"
	"testing"
)

type fakeContainer struct {
	rect Rect
	ok   bool
}

func (c *fakeContainer) Bounds() (Rect, bool) { return c.rect, c.ok }

func newTestController(t *testing.T, o Overlay, container *fakeContainer) (*Controller, *Document, *[]Commit) {
	t.Helper()
	doc := NewDocument()
	var commits []Commit
	c := NewController(o, container, doc, func(cm Commit) { commits = append(commits, cm) })
	return c, doc, &commits
}

func TestController_drag_clamps_to_container(t *testing.T) {
	container := &fakeContainer{rect: Rect{Width: 800, Height: 600}, ok: true}
	o := Overlay{ID: "o1", Position: Position{X: 700, Y: 0}, Size: Size{Width: 200, Height: 50}}
	c, doc, commits := newTestController(t, o, container)

	if !c.Press(Point{X: 710, Y: 10}, false) {
		t.Fatal("press should start a drag")
	}
	if c.State() != Dragging {
		t.Fatalf("expected dragging, got %s", c.State())
	}
	doc.Move(Point{X: 760, Y: 10})
	if got := c.Position(); got.X != 600 || got.Y != 0 {
		t.Errorf("expected (600,0), got (%g,%g)", got.X, got.Y)
	}

	doc.Up(Point{X: 760, Y: 10})
	if c.State() != Idle {
		t.Errorf("expected idle after release, got %s", c.State())
	}
	if len(*commits) != 1 {
		t.Fatalf("expected 1 commit, got %d", len(*commits))
	}
	cm := (*commits)[0]
	if cm.Kind != CommitPosition || cm.Position.X != 600 || cm.ID != "o1" {
		t.Errorf("unexpected commit %+v", cm)
	}
}

func TestController_drag_uses_container_offset(t *testing.T) {
	container := &fakeContainer{rect: Rect{X: 100, Y: 50, Width: 800, Height: 600}, ok: true}
	o := Overlay{ID: "o1", Position: Position{X: 10, Y: 10}, Size: Size{Width: 200, Height: 50}}
	c, doc, _ := newTestController(t, o, container)

	// Pointer 5px inside the overlay's top-left corner.
	c.Press(Point{X: 115, Y: 65}, false)
	doc.Move(Point{X: 215, Y: 165})
	if got := c.Position(); got.X != 110 || got.Y != 110 {
		t.Errorf("expected (110,110), got (%g,%g)", got.X, got.Y)
	}

	// Container scrolls mid-gesture; the next move reads the new bounds.
	container.rect.Y = 0
	doc.Move(Point{X: 215, Y: 165})
	if got := c.Position(); got.Y != 160 {
		t.Errorf("expected y=160 after scroll, got %g", got.Y)
	}
}

func TestController_resize_floors_size(t *testing.T) {
	container := &fakeContainer{rect: Rect{Width: 800, Height: 600}, ok: true}
	o := Overlay{ID: "o1", Position: Position{X: 100, Y: 100}, Size: Size{Width: 200, Height: 50}}
	c, doc, commits := newTestController(t, o, container)

	if !c.Press(Point{X: 295, Y: 145}, true) || c.State() != Resizing {
		t.Fatalf("expected resizing, got %s", c.State())
	}
	doc.Move(Point{X: 110, Y: 105})
	if got := c.Size(); got.Width != MinWidth || got.Height != MinHeight {
		t.Errorf("expected floor %dx%d, got %gx%g", MinWidth, MinHeight, got.Width, got.Height)
	}

	// No upper bound.
	doc.Move(Point{X: 2000, Y: 1000})
	if got := c.Size(); got.Width != 1900 || got.Height != 900 {
		t.Errorf("expected 1900x900, got %gx%g", got.Width, got.Height)
	}

	doc.Up(Point{})
	if len(*commits) != 1 || (*commits)[0].Kind != CommitSize || (*commits)[0].Size.Width != 1900 {
		t.Errorf("unexpected commits %+v", *commits)
	}
	if p := (*commits)[0].Patch(); p.Size == nil || p.Position != nil {
		t.Errorf("size commit should patch size only: %+v", p)
	}
}

func TestController_unmeasurable_container(t *testing.T) {
	container := &fakeContainer{}
	o := Overlay{ID: "o1", Position: Position{X: 10, Y: 10}, Size: Size{Width: 100, Height: 40}}
	c, doc, _ := newTestController(t, o, container)

	t.Run("drag_press_ignored", func(t *testing.T) {
		if c.Press(Point{X: 20, Y: 20}, false) {
			t.Error("drag press should be ignored until the container is measurable")
		}
		if doc.Active() != 0 {
			t.Error("no listener should be attached")
		}
	})

	t.Run("resize_moves_ignored", func(t *testing.T) {
		if !c.Press(Point{X: 105, Y: 45}, true) {
			t.Fatal("resize press should start")
		}
		doc.Move(Point{X: 400, Y: 400})
		if got := c.Size(); got.Width != 100 || got.Height != 40 {
			t.Errorf("move should be ignored, got %gx%g", got.Width, got.Height)
		}
		container.rect, container.ok = Rect{Width: 800, Height: 600}, true
		doc.Move(Point{X: 400, Y: 400})
		if got := c.Size(); got.Width != 390 {
			t.Errorf("expected width 390 once measurable, got %g", got.Width)
		}
		doc.Up(Point{})
	})
}

func TestController_single_gesture(t *testing.T) {
	container := &fakeContainer{rect: Rect{Width: 800, Height: 600}, ok: true}
	o := Overlay{ID: "o1", Size: Size{Width: 100, Height: 40}}
	c, doc, commits := newTestController(t, o, container)

	c.Press(Point{X: 5, Y: 5}, false)
	if c.Press(Point{X: 95, Y: 35}, true) {
		t.Error("second press during a gesture must be rejected")
	}
	if c.State() != Dragging {
		t.Errorf("state changed by second press: %s", c.State())
	}
	if doc.Active() != 1 {
		t.Errorf("expected 1 listener, got %d", doc.Active())
	}
	doc.Up(Point{})
	doc.Up(Point{})
	if len(*commits) != 1 {
		t.Errorf("expected exactly one commit, got %d", len(*commits))
	}
	if doc.Active() != 0 {
		t.Errorf("listener should be released, got %d", doc.Active())
	}
}

func TestController_cancel_restores_geometry(t *testing.T) {
	container := &fakeContainer{rect: Rect{Width: 800, Height: 600}, ok: true}
	o := Overlay{ID: "o1", Position: Position{X: 10, Y: 20}, Size: Size{Width: 100, Height: 40}}
	c, doc, commits := newTestController(t, o, container)

	c.Press(Point{X: 15, Y: 25}, false)
	doc.Move(Point{X: 300, Y: 300})
	doc.Cancel()

	if c.State() != Idle {
		t.Errorf("expected idle, got %s", c.State())
	}
	if got := c.Position(); got.X != 10 || got.Y != 20 {
		t.Errorf("expected press-time position, got (%g,%g)", got.X, got.Y)
	}
	if len(*commits) != 0 {
		t.Errorf("cancel must not commit, got %d", len(*commits))
	}
	if doc.Active() != 0 {
		t.Error("cancel must release the listener")
	}
}

func TestController_sync(t *testing.T) {
	container := &fakeContainer{rect: Rect{Width: 800, Height: 600}, ok: true}
	o := Overlay{ID: "o1", Size: Size{Width: 100, Height: 40}}
	c, doc, _ := newTestController(t, o, container)

	if !c.Sync(Overlay{Position: Position{X: 5, Y: 6}, Size: Size{Width: 60, Height: 35}}) {
		t.Fatal("sync should apply while idle")
	}
	if c.Position().X != 5 || c.Size().Width != 60 {
		t.Errorf("sync did not apply: %+v", c.Rect())
	}

	c.Press(Point{X: 10, Y: 10}, false)
	if c.Sync(Overlay{}) {
		t.Error("sync must not apply during a gesture")
	}
	doc.Up(Point{})
}

func TestController_drag_bounds_property(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 200; run++ {
		container := &fakeContainer{
			rect: Rect{X: rng.Float64() * 200, Y: rng.Float64() * 200, Width: 300 + rng.Float64()*900, Height: 200 + rng.Float64()*600},
			ok:   true,
		}
		size := Size{Width: MinWidth + rng.Float64()*200, Height: MinHeight + rng.Float64()*100}
		o := Overlay{ID: "p", Size: size}
		c, doc, commits := newTestController(t, o, container)

		c.Press(Point{X: container.rect.X + 1, Y: container.rect.Y + 1}, false)
		for i := 0; i < 50; i++ {
			doc.Move(Point{X: rng.Float64()*3000 - 1000, Y: rng.Float64()*3000 - 1000})
			p := c.Position()
			if p.X < 0 || p.X > container.rect.Width-size.Width || p.Y < 0 || p.Y > container.rect.Height-size.Height {
				t.Fatalf("run %d: position (%g,%g) out of bounds for container %+v size %+v", run, p.X, p.Y, container.rect, size)
			}
		}
		doc.Up(Point{})
		if len(*commits) != 1 {
			t.Fatalf("run %d: expected 1 commit, got %d", run, len(*commits))
		}
	}
}

func TestController_resize_floor_property(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	container := &fakeContainer{rect: Rect{Width: 800, Height: 600}, ok: true}
	for run := 0; run < 100; run++ {
		o := Overlay{ID: "p", Position: Position{X: rng.Float64() * 700, Y: rng.Float64() * 500}, Size: Size{Width: 100, Height: 40}}
		c, doc, _ := newTestController(t, o, container)
		c.Press(Point{}, true)
		for i := 0; i < 50; i++ {
			doc.Move(Point{X: rng.Float64()*2000 - 1000, Y: rng.Float64()*2000 - 1000})
			if s := c.Size(); s.Width < MinWidth || s.Height < MinHeight {
				t.Fatalf("run %d: size %gx%g below floor", run, s.Width, s.Height)
			}
		}
		doc.Up(Point{})
	}
}
