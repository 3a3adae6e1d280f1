package overlay

// State is the interaction state of a Controller.
type State int

const (
	Idle State = iota
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Container measures the video container in page coordinates. ok is false
// while the container has not been laid out yet.
type Container interface {
	Bounds() (r Rect, ok bool)
}

// CommitKind names the geometry a finished gesture changed.
type CommitKind string

const (
	CommitPosition CommitKind = "position"
	CommitSize     CommitKind = "size"
)

// Commit is the single finalized value a gesture emits on release.
type Commit struct {
	ID       ID
	Kind     CommitKind
	Position Position
	Size     Size
}

// Patch returns the remote update for the commit.
func (c Commit) Patch() Patch {
	if c.Kind == CommitSize {
		return SizePatch(c.Size)
	}
	return PositionPatch(c.Position)
}

// Controller turns a pointer stream into clamped geometry for one overlay.
// It is not safe for concurrent use; the owner serializes calls.
type Controller struct {
	id        ID
	container Container
	doc       *Document
	onCommit  func(Commit)

	state State
	pos   Position
	size  Size

	// press-time values
	offset    Point
	pressPos  Position
	pressSize Size
	release   func()
}

// NewController binds a controller to o's current geometry. onCommit receives
// exactly one Commit per completed gesture.
func NewController(o Overlay, container Container, doc *Document, onCommit func(Commit)) *Controller {
	return &Controller{
		id:        o.ID,
		container: container,
		doc:       doc,
		onCommit:  onCommit,
		pos:       o.Position,
		size:      o.Size,
	}
}

func (c *Controller) ID() ID             { return c.id }
func (c *Controller) State() State       { return c.state }
func (c *Controller) Position() Position { return c.pos }
func (c *Controller) Size() Size         { return c.size }

// Rect returns the live container-relative box, including transient gesture geometry.
func (c *Controller) Rect() Rect {
	return Rect{X: c.pos.X, Y: c.pos.Y, Width: c.size.Width, Height: c.size.Height}
}

// Press starts a gesture at page point p. It returns false, leaving the
// controller unchanged, if a gesture is already running or a drag press
// arrives before the container can be measured.
func (c *Controller) Press(p Point, onHandle bool) bool {
	if c.state != Idle {
		return false
	}
	if onHandle {
		c.state = Resizing
	} else {
		bounds, ok := c.container.Bounds()
		if !ok {
			return false
		}
		local := bounds.Local(p)
		c.offset = Point{X: local.X - c.pos.X, Y: local.Y - c.pos.Y}
		c.state = Dragging
	}
	c.pressPos = c.pos
	c.pressSize = c.size
	c.release = c.doc.Acquire(c)
	return true
}

// PointerMove implements PointerListener.
func (c *Controller) PointerMove(p Point) {
	if c.state == Idle {
		return
	}
	// Read on every move: the container may scroll or resize mid-gesture.
	bounds, ok := c.container.Bounds()
	if !ok {
		return
	}
	local := bounds.Local(p)

	switch c.state {
	case Dragging:
		next := Position{X: local.X - c.offset.X, Y: local.Y - c.offset.Y}
		c.pos = ClampPosition(next, c.size, bounds)
	case Resizing:
		c.size = FloorSize(Size{Width: local.X - c.pos.X, Height: local.Y - c.pos.Y})
	}
}

// PointerUp implements PointerListener. It ends the gesture and emits its commit.
func (c *Controller) PointerUp(Point) {
	if c.state == Idle {
		return
	}
	commit := Commit{ID: c.id, Position: c.pos, Size: c.size, Kind: CommitPosition}
	if c.state == Resizing {
		commit.Kind = CommitSize
	}
	c.finish()
	if c.onCommit != nil {
		c.onCommit(commit)
	}
}

// PointerCancel implements PointerListener. The gesture is abandoned, the
// press-time geometry restored, and nothing is emitted.
func (c *Controller) PointerCancel() {
	if c.state == Idle {
		return
	}
	c.pos = c.pressPos
	c.size = c.pressSize
	c.finish()
}

// Sync replaces the geometry with the stored overlay's. It is a no-op during a
// gesture and reports whether it applied.
func (c *Controller) Sync(o Overlay) bool {
	if c.state != Idle {
		return false
	}
	c.pos = o.Position
	c.size = o.Size
	return true
}

func (c *Controller) finish() {
	c.state = Idle
	if c.release != nil {
		c.release()
		c.release = nil
	}
}
