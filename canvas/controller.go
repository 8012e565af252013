package canvas

import (
	"overlay-server/core"

	"github.com/sirupsen/logrus"
)

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
	}
	return "idle"
}

// HandleSize is the edge of the square resize handle in an overlay's
// bottom-right corner.
const HandleSize = 12

// MinSize is the smallest size a resize gesture can produce.
var MinSize = core.Size{Width: 20, Height: 20}

// Committer persists the result of a finished gesture.
type Committer interface {
	CommitPosition(id string, pos core.Position)
	CommitSize(id string, size core.Size)
}

// Holder is implemented by committers that can pin an overlay against remote
// refreshes while a gesture runs on it.
type Holder interface {
	Hold(id string)
	Release(id string)
}

// Controller turns pointer events into geometry changes for one overlay at a
// time. Coordinates are canvas-local pixels.
type Controller struct {
	store     *Store
	committer Committer
	canvas    core.Size

	state    State
	selected string
	// offset is pointer minus position while dragging, and the overlay's
	// bottom-right corner minus the pointer while resizing.
	offset core.Position
	start  core.Rect
}

// NewController binds store to canvas: overlays already shown are fitted
// inside it.
func NewController(store *Store, committer Committer, canvas core.Size) *Controller {
	store.SetCanvas(canvas)
	return &Controller{
		store:     store,
		committer: committer,
		canvas:    canvas,
	}
}

// SetCanvasSize changes the bounds for subsequent pointer moves and refits
// the overlays on the canvas. Refitted geometry is not pushed.
func (c *Controller) SetCanvasSize(size core.Size) {
	if !size.Valid() {
		return
	}
	c.canvas = size
	c.store.SetCanvas(size)
}

func (c *Controller) hold(id string) {
	if h, ok := c.committer.(Holder); ok {
		h.Hold(id)
	}
}

func (c *Controller) release(id string) {
	if h, ok := c.committer.(Holder); ok {
		h.Release(id)
	}
}

func (c *Controller) CanvasSize() core.Size {
	return c.canvas
}

func (c *Controller) State() State {
	return c.state
}

// Selected returns the id of the overlay under gesture.
func (c *Controller) Selected() (string, bool) {
	return c.selected, c.state != Idle
}

func inHandle(r core.Rect, p core.Position) bool {
	return p.X >= r.X+r.Width-HandleSize && p.Y >= r.Y+r.Height-HandleSize
}

// PointerDown starts a gesture on the overlay under p. It reports whether a
// gesture started; a press while another gesture runs is ignored.
func (c *Controller) PointerDown(p core.Position) bool {
	if c.state != Idle {
		return false
	}

	hit, ok := c.store.HitTest(p)
	if !ok {
		return false
	}

	// A refresh may have landed between the hit test and the hold.
	c.hold(hit.ID)
	o, ok := c.store.ActiveByID(hit.ID)
	if !ok || !o.Visible || !o.Rect().Contains(p) {
		c.release(hit.ID)
		return false
	}

	rect := o.Rect()
	c.selected = o.ID
	c.start = rect
	if inHandle(rect, p) {
		c.state = Resizing
		c.offset = rect.Position.Add(core.Position{X: rect.Width, Y: rect.Height}).Sub(p)
	} else {
		c.state = Dragging
		c.offset = p.Sub(rect.Position)
	}

	logrus.WithFields(logrus.Fields{
		"overlay_id": o.ID,
		"state":      c.state,
	}).Debug("Gesture started")
	return true
}

// PointerMove applies the pointer position to the selected overlay, clamped
// to the canvas.
func (c *Controller) PointerMove(p core.Position) {
	if c.state == Idle {
		return
	}

	o, ok := c.store.ActiveByID(c.selected)
	if !ok {
		return
	}

	switch c.state {
	case Dragging:
		pos := core.Clamp(p.Sub(c.offset), o.Size, c.canvas)
		c.store.UpdateActive(c.selected, core.Patch{Position: &pos})
	case Resizing:
		corner := p.Add(c.offset).Sub(o.Position)
		size := core.ClampSize(o.Position, core.Size{Width: corner.X, Height: corner.Y}, c.canvas, MinSize)
		c.store.UpdateActive(c.selected, core.Patch{Size: &size})
	}
}

// PointerUp ends the gesture and commits the final geometry once. Nothing is
// committed when the overlay disappeared mid-gesture or did not change.
func (c *Controller) PointerUp() {
	if c.state == Idle {
		return
	}

	id, state, start := c.selected, c.state, c.start
	c.reset()
	defer c.release(id)

	o, ok := c.store.ActiveByID(id)
	if !ok {
		logrus.WithField("overlay_id", id).Debug("Gesture target removed, nothing to commit")
		return
	}

	switch state {
	case Dragging:
		if o.Position != start.Position {
			c.committer.CommitPosition(id, o.Position)
		}
	case Resizing:
		if o.Size != start.Size {
			c.committer.CommitSize(id, o.Size)
		}
	}
}

// PointerLeave ends the gesture exactly like a release.
func (c *Controller) PointerLeave() {
	c.PointerUp()
}

// Cancel abandons the gesture, restores the geometry it started from and
// commits nothing.
func (c *Controller) Cancel() {
	if c.state == Idle {
		return
	}
	id, start := c.selected, c.start
	c.reset()
	defer c.release(id)

	pos, size := start.Position, start.Size
	c.store.UpdateActive(id, core.Patch{Position: &pos, Size: &size})
}

func (c *Controller) reset() {
	c.state = Idle
	c.selected = ""
	c.offset = core.Position{}
	c.start = core.Rect{}
}
