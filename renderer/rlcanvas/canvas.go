// Package rlcanvas implements renderer.Canvas with raylib. Frames are drawn
// into a render texture so that frames skipped by the loop keep showing the
// last drawn image.
package rlcanvas

import (
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/soupview/camera"
	"github.com/pthm-cable/soupview/renderer"
)

const (
	ringSegments = 48
	rectSegments = 6
)

var (
	_ renderer.Canvas       = (*Canvas)(nil)
	_ renderer.FrameBracket = (*Canvas)(nil)
)

// Canvas draws onto a render texture sized to the window minus a right inset
// reserved for panels. All methods must be called on the raylib thread.
type Canvas struct {
	t          camera.Transform
	target     rl.RenderTexture2D
	texW, texH int32
	loaded     bool
	inset      float32
}

// New creates a canvas. The window must already be initialized.
func New(insetRight float32) *Canvas {
	return &Canvas{inset: insetRight, t: camera.Transform{Scale: 1}}
}

// SetInset changes the width reserved on the right of the window.
func (c *Canvas) SetInset(right float32) { c.inset = right }

// Size returns the drawable container size in pixels.
func (c *Canvas) Size() (float64, float64) {
	w := float64(rl.GetScreenWidth()) - float64(c.inset)
	h := float64(rl.GetScreenHeight())
	return math.Max(w, 0), math.Max(h, 0)
}

func (c *Canvas) SetTransform(t camera.Transform) { c.t = t }

// BeginFrame starts drawing into the render texture, reallocating it when
// the container size changed.
func (c *Canvas) BeginFrame() {
	w, h := c.Size()
	tw, th := int32(w), int32(h)
	if !c.loaded || tw != c.texW || th != c.texH {
		if c.loaded {
			rl.UnloadRenderTexture(c.target)
		}
		c.target = rl.LoadRenderTexture(max(tw, 1), max(th, 1))
		c.texW, c.texH = tw, th
		c.loaded = true
	}
	rl.BeginTextureMode(c.target)
}

// EndFrame finishes drawing into the render texture.
func (c *Canvas) EndFrame() {
	rl.EndTextureMode()
}

// Present blits the last drawn frame to the window at the origin.
func (c *Canvas) Present() {
	if !c.loaded {
		return
	}
	// Render textures are stored upside down, so flip on the way out
	src := rl.Rectangle{X: 0, Y: float32(c.texH), Width: float32(c.texW), Height: -float32(c.texH)}
	dst := rl.Rectangle{X: 0, Y: 0, Width: float32(c.texW), Height: float32(c.texH)}
	rl.DrawTexturePro(c.target.Texture, src, dst, rl.Vector2{}, 0, rl.White)
}

// Unload releases the render texture.
func (c *Canvas) Unload() {
	if c.loaded {
		rl.UnloadRenderTexture(c.target)
		c.loaded = false
	}
}

func (c *Canvas) Clear(col renderer.Color) {
	rl.ClearBackground(color(col))
}

func (c *Canvas) Line(x1, y1, x2, y2, width, dash float64, col renderer.Color) {
	a, b := c.point(x1, y1), c.point(x2, y2)
	rc := color(col)
	if dash <= 0 {
		rl.DrawLineEx(a, b, float32(width), rc)
		return
	}

	// Dashes are measured in screen pixels
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	ux, uy := dx/length, dy/length
	for d := 0.0; d < length; d += 2 * dash {
		end := math.Min(d+dash, length)
		rl.DrawLineEx(
			rl.Vector2{X: a.X + float32(ux*d), Y: a.Y + float32(uy*d)},
			rl.Vector2{X: a.X + float32(ux*end), Y: a.Y + float32(uy*end)},
			float32(width),
			rc,
		)
	}
}

func (c *Canvas) Circle(x, y, r float64, col renderer.Color) {
	rl.DrawCircleV(c.point(x, y), float32(r*c.t.Scale), color(col))
}

func (c *Canvas) CircleLines(x, y, r, width float64, col renderer.Color) {
	rs := r * c.t.Scale
	if width <= 1 {
		rl.DrawCircleLinesV(c.point(x, y), float32(rs), color(col))
		return
	}
	c.ring(x, y, rs, width, 0, 360, col)
}

func (c *Canvas) Arc(x, y, r, width, start, end float64, col renderer.Color) {
	c.ring(x, y, r*c.t.Scale, width, start*180/math.Pi, end*180/math.Pi, col)
}

func (c *Canvas) ring(x, y, rs, width, startDeg, endDeg float64, col renderer.Color) {
	inner := math.Max(rs-width/2, 0)
	rl.DrawRing(c.point(x, y), float32(inner), float32(rs+width/2), float32(startDeg), float32(endDeg), ringSegments, color(col))
}

func (c *Canvas) RoundedRect(x, y, w, h, roundness float64, col renderer.Color) {
	p := c.point(x, y)
	rect := rl.Rectangle{X: p.X, Y: p.Y, Width: float32(w * c.t.Scale), Height: float32(h * c.t.Scale)}
	rl.DrawRectangleRounded(rect, float32(roundness), rectSegments, color(col))
}

func (c *Canvas) point(x, y float64) rl.Vector2 {
	return rl.Vector2{
		X: float32(c.t.OffsetX + x*c.t.Scale),
		Y: float32(c.t.OffsetY + y*c.t.Scale),
	}
}

func color(c renderer.Color) rl.Color {
	return rl.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}
