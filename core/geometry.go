package core

import "math"

// Geometry is expressed in canvas pixels as float64. Nothing here rounds;
// rounding happens only when a placement is produced for rendering.

type (
	// Position is the top-left offset of an overlay inside the canvas.
	Position struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// Size is the extent of an overlay. Both dimensions are strictly positive.
	Size struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}

	// Rect is an overlay's bounding box.
	Rect struct {
		Position
		Size
	}
)

// Sub returns p - other.
func (p Position) Sub(other Position) Position {
	return Position{X: p.X - other.X, Y: p.Y - other.Y}
}

// Add returns p + other.
func (p Position) Add(other Position) Position {
	return Position{X: p.X + other.X, Y: p.Y + other.Y}
}

func (p Position) Valid() bool {
	return p.X >= 0 && p.Y >= 0
}

func (s Size) Valid() bool {
	return s.Width > 0 && s.Height > 0
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Position) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Clamp returns the position closest to pos that keeps an overlay of the given
// size inside canvas. When the overlay is larger than the canvas on an axis,
// that axis is pinned to 0 and the overlay overflows on the far side.
func Clamp(pos Position, size Size, canvas Size) Position {
	return Position{
		X: clampAxis(pos.X, size.Width, canvas.Width),
		Y: clampAxis(pos.Y, size.Height, canvas.Height),
	}
}

// ClampSize bounds a requested size for an overlay anchored at pos: it never
// extends past the canvas edge and does not drop below min while there is
// room for min. An anchor closer than min to the far edge gets whatever room
// is left.
func ClampSize(pos Position, size Size, canvas Size, min Size) Size {
	return Size{
		Width:  clampExtent(size.Width, pos.X, canvas.Width, min.Width),
		Height: clampExtent(size.Height, pos.Y, canvas.Height, min.Height),
	}
}

// Fit returns r moved, and shrunk where it is larger than canvas, so that it
// lies inside canvas.
func Fit(r Rect, canvas Size) Rect {
	size := r.Size
	if size.Width > canvas.Width {
		size.Width = canvas.Width
	}
	if size.Height > canvas.Height {
		size.Height = canvas.Height
	}
	return Rect{Position: Clamp(r.Position, size, canvas), Size: size}
}

// clampAxis keeps v+extent <= limit. limit-extent is rounded, so the bound
// is stepped down until the sum really fits.
func clampAxis(v, extent, limit float64) float64 {
	hi := limit - extent
	if hi < 0 || v < 0 {
		return 0
	}
	for hi > 0 && hi+extent > limit {
		hi = math.Nextafter(hi, math.Inf(-1))
	}
	if v > hi {
		return hi
	}
	return v
}

// clampExtent returns the extent for an axis starting at start, with
// start+extent <= limit.
func clampExtent(v, start, limit, min float64) float64 {
	room := limit - start
	for room > 0 && start+room > limit {
		room = math.Nextafter(room, math.Inf(-1))
	}
	if v < min {
		v = min
	}
	if v > room {
		v = room
	}
	return v
}
