package overlay

import "sync"

// PointerListener receives document-level pointer events while it holds an acquisition.
type PointerListener interface {
	PointerMove(p Point)
	PointerUp(p Point)
	PointerCancel()
}

// Document dispatches document-level pointer events. Listeners are only
// attached for the duration of a gesture: Acquire on press, release on
// completion or cancellation.
type Document struct {
	mu        sync.Mutex
	next      int
	listeners map[int]PointerListener
}

// NewDocument returns a document with no listeners.
func NewDocument() *Document {
	return &Document{listeners: make(map[int]PointerListener)}
}

// Acquire attaches l and returns the function that detaches it. The release
// function is safe to call more than once.
func (d *Document) Acquire(l PointerListener) (release func()) {
	d.mu.Lock()
	id := d.next
	d.next++
	d.listeners[id] = l
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

// Active returns the number of attached listeners.
func (d *Document) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners)
}

// Move forwards a pointer move to every attached listener.
func (d *Document) Move(p Point) {
	for _, l := range d.snapshot() {
		l.PointerMove(p)
	}
}

// Up forwards a pointer release to every attached listener.
func (d *Document) Up(p Point) {
	for _, l := range d.snapshot() {
		l.PointerUp(p)
	}
}

// Cancel aborts every in-flight gesture, e.g. on window blur.
func (d *Document) Cancel() {
	for _, l := range d.snapshot() {
		l.PointerCancel()
	}
}

// snapshot copies the listeners so they can release themselves during dispatch.
func (d *Document) snapshot() []PointerListener {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]PointerListener, 0, len(d.listeners))
	for _, l := range d.listeners {
		out = append(out, l)
	}
	return out
}
