package viewport

import "github.com/tracelens/investigation-engine/pkg/models"

// Viewport Culler
//
// A pure, stateless spatial filter: given the current pan/zoom it computes
// the visible world-space rectangle, pads it, and keeps only nodes inside.
// Links survive only when both endpoints survive. Idempotent,
// order-preserving, never mutates positions.

// Padding is the world-space margin added around the visible rectangle so
// nodes just off screen keep their positions warm.
const Padding = 800

// View is a camera over world space.
type View struct {
	X      float64 `json:"x"` // pan offset
	Y      float64 `json:"y"`
	Zoom   float64 `json:"zoom"`
	Width  float64 `json:"width"` // screen size in pixels
	Height float64 `json:"height"`
}

// Rect is a world-space rectangle, boundary-inclusive.
type Rect struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains reports whether the point lies inside the rectangle. A point
// exactly on the boundary is inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.MinX && x <= r.MaxX && y >= r.MinY && y <= r.MaxY
}

// VisibleRect converts the view to its padded world-space rectangle.
// Screen-to-world: world = (screen - pan) / zoom.
func VisibleRect(v View) Rect {
	zoom := v.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	return Rect{
		MinX: (0-v.X)/zoom - Padding,
		MinY: (0-v.Y)/zoom - Padding,
		MaxX: (v.Width-v.X)/zoom + Padding,
		MaxY: (v.Height-v.Y)/zoom + Padding,
	}
}

// Cull returns the nodes inside the padded view and the links with both
// endpoints among them, preserving input order.
func Cull(nodes []models.Node, links []models.Link, v View) ([]models.Node, []models.Link) {
	rect := VisibleRect(v)

	visible := make([]models.Node, 0, len(nodes))
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if rect.Contains(n.X, n.Y) {
			visible = append(visible, n)
			ids[n.ID] = true
		}
	}

	kept := make([]models.Link, 0, len(links))
	for _, l := range links {
		if ids[l.Source] && ids[l.Target] {
			kept = append(kept, l)
		}
	}
	return visible, kept
}
