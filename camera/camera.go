// Package camera maps world coordinates onto the drawing surface.
package camera

import "math"

// Transform maps world units to pixels: screen = offset + world*scale.
type Transform struct {
	Scale            float64
	OffsetX, OffsetY float64
}

// Camera fits the whole world into the viewport preserving its aspect ratio,
// with optional user zoom and pan on top of the fit.
type Camera struct {
	// Position is the camera center in world coordinates
	X, Y float64

	// Zoom relative to the fitted scale (1.0 = whole world visible)
	Zoom float64

	// Viewport dimensions (drawing surface size in pixels)
	ViewportW, ViewportH float64

	// World dimensions
	WorldW, WorldH float64

	// Fit is pixels per world unit at Zoom 1
	Fit float64

	// Zoom constraints
	MinZoom, MaxZoom float64
}

// New creates a camera centered on the world with the world fitted to the
// viewport.
func New(viewportW, viewportH, worldW, worldH float64) *Camera {
	c := &Camera{
		Zoom:    1.0,
		MinZoom: 1.0,
		MaxZoom: 8.0,
	}
	c.Resize(viewportW, viewportH, worldW, worldH)
	c.Reset()
	return c
}

// Resize refits the world to a new viewport or world size. It returns false
// and leaves the camera untouched when nothing changed.
func (c *Camera) Resize(viewportW, viewportH, worldW, worldH float64) bool {
	if viewportW == c.ViewportW && viewportH == c.ViewportH &&
		worldW == c.WorldW && worldH == c.WorldH {
		return false
	}
	worldChanged := worldW != c.WorldW || worldH != c.WorldH

	c.ViewportW = viewportW
	c.ViewportH = viewportH
	c.WorldW = worldW
	c.WorldH = worldH

	c.Fit = 0
	if worldW > 0 && worldH > 0 && viewportW > 0 && viewportH > 0 {
		c.Fit = math.Min(viewportW/worldW, viewportH/worldH)
	}
	if worldChanged {
		c.X = worldW / 2
		c.Y = worldH / 2
	}
	c.clampCenter()
	return true
}

// Scale returns pixels per world unit including user zoom.
func (c *Camera) Scale() float64 {
	return c.Fit * c.Zoom
}

// Transform returns the world-to-screen transform.
func (c *Camera) Transform() Transform {
	s := c.Scale()
	return Transform{
		Scale:   s,
		OffsetX: c.ViewportW/2 - c.X*s,
		OffsetY: c.ViewportH/2 - c.Y*s,
	}
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	s := c.Scale()
	sx = c.ViewportW/2 + (wx-c.X)*s
	sy = c.ViewportH/2 + (wy-c.Y)*s
	return sx, sy
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	s := c.Scale()
	if s == 0 {
		return c.X, c.Y
	}
	wx = c.X + (sx-c.ViewportW/2)/s
	wy = c.Y + (sy-c.ViewportH/2)/s
	return wx, wy
}

// IsVisible returns true if a circle at (wx, wy) with given radius
// could be visible on screen (conservative check for culling).
func (c *Camera) IsVisible(wx, wy, radius float64) bool {
	s := c.Scale()
	if s == 0 {
		return false
	}
	halfW := c.ViewportW/(2*s) + radius
	halfH := c.ViewportH/(2*s) + radius
	return math.Abs(wx-c.X) <= halfW && math.Abs(wy-c.Y) <= halfH
}

// Pan moves the camera by the given delta in screen pixels.
func (c *Camera) Pan(dx, dy float64) {
	s := c.Scale()
	if s == 0 {
		return
	}
	c.X += dx / s
	c.Y += dy / s
	c.clampCenter()
}

// SetZoom sets the zoom level, clamped to min/max.
func (c *Camera) SetZoom(zoom float64) {
	c.Zoom = math.Min(math.Max(zoom, c.MinZoom), c.MaxZoom)
	c.clampCenter()
}

// ZoomBy multiplies the current zoom by the given factor.
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.Zoom * factor)
}

// Reset returns the camera to the fitted, centered view.
func (c *Camera) Reset() {
	c.X = c.WorldW / 2
	c.Y = c.WorldH / 2
	c.Zoom = 1.0
}

// VisibleWorldBounds returns the world-coordinate bounds of the visible area.
func (c *Camera) VisibleWorldBounds() (minX, minY, maxX, maxY float64) {
	minX, minY = c.ScreenToWorld(0, 0)
	maxX, maxY = c.ScreenToWorld(c.ViewportW, c.ViewportH)
	return minX, minY, maxX, maxY
}

// clampCenter keeps the center inside the world so zooming in never shows
// only letterbox.
func (c *Camera) clampCenter() {
	c.X = math.Min(math.Max(c.X, 0), c.WorldW)
	c.Y = math.Min(math.Max(c.Y, 0), c.WorldH)
}
