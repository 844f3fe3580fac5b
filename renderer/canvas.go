// Package renderer draws world snapshots onto a Canvas at a capped frame rate.
package renderer

import (
	"github.com/pthm-cable/soupview/camera"
)

// Canvas is a drawing surface. Positions and radii are in world units and
// mapped through the current transform; line widths are in pixels.
type Canvas interface {
	// Size returns the container size in pixels.
	Size() (w, h float64)
	SetTransform(t camera.Transform)
	Clear(c Color)
	// Line draws a segment. A dash > 0 draws dashes of that length in pixels.
	Line(x1, y1, x2, y2, width, dash float64, c Color)
	Circle(x, y, r float64, c Color)
	CircleLines(x, y, r, width float64, c Color)
	// Arc strokes from start to end radians, clockwise in screen space.
	Arc(x, y, r, width, start, end float64, c Color)
	// RoundedRect fills a rectangle with corner roundness in [0,1].
	RoundedRect(x, y, w, h, roundness float64, c Color)
}

// FrameBracket is implemented by canvases that need setup and teardown
// around each drawn frame. EndFrame runs even if drawing panics.
type FrameBracket interface {
	BeginFrame()
	EndFrame()
}

// OpKind identifies a recorded draw call.
type OpKind uint8

const (
	OpClear OpKind = iota
	OpLine
	OpCircle
	OpCircleLines
	OpArc
	OpRoundedRect
)

var opNames = [...]string{"clear", "line", "circle", "circle_lines", "arc", "rounded_rect"}

func (k OpKind) String() string {
	if int(k) < len(opNames) {
		return opNames[k]
	}
	return "op"
}

// Op is one recorded draw call.
type Op struct {
	Kind       OpKind
	X, Y       float64
	X2, Y2     float64 // Line end
	R          float64 // Circle/arc radius
	W, H       float64 // Rect size
	Width      float64 // Stroke width
	Dash       float64
	Start, End float64 // Arc angles
	Color      Color
}

// Recorder is a Canvas that records draw calls. It backs headless runs and
// tests.
type Recorder struct {
	W, H       float64
	Transforms int
	Transform  camera.Transform

	ops []Op
}

// NewRecorder creates a recorder with the given container size.
func NewRecorder(w, h float64) *Recorder {
	return &Recorder{W: w, H: h}
}

func (r *Recorder) Size() (float64, float64) { return r.W, r.H }

func (r *Recorder) SetTransform(t camera.Transform) {
	r.Transform = t
	r.Transforms++
}

// Clear drops previously recorded ops so the recorder holds one frame.
func (r *Recorder) Clear(c Color) {
	r.ops = append(r.ops[:0], Op{Kind: OpClear, Color: c})
}

func (r *Recorder) Line(x1, y1, x2, y2, width, dash float64, c Color) {
	r.ops = append(r.ops, Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2, Width: width, Dash: dash, Color: c})
}

func (r *Recorder) Circle(x, y, rad float64, c Color) {
	r.ops = append(r.ops, Op{Kind: OpCircle, X: x, Y: y, R: rad, Color: c})
}

func (r *Recorder) CircleLines(x, y, rad, width float64, c Color) {
	r.ops = append(r.ops, Op{Kind: OpCircleLines, X: x, Y: y, R: rad, Width: width, Color: c})
}

func (r *Recorder) Arc(x, y, rad, width, start, end float64, c Color) {
	r.ops = append(r.ops, Op{Kind: OpArc, X: x, Y: y, R: rad, Width: width, Start: start, End: end, Color: c})
}

func (r *Recorder) RoundedRect(x, y, w, h, roundness float64, c Color) {
	r.ops = append(r.ops, Op{Kind: OpRoundedRect, X: x, Y: y, W: w, H: h, R: roundness, Color: c})
}

// Ops returns the ops recorded since the last Clear.
func (r *Recorder) Ops() []Op { return r.ops }

// Count returns the number of recorded ops of kind k.
func (r *Recorder) Count(k OpKind) int {
	n := 0
	for _, op := range r.ops {
		if op.Kind == k {
			n++
		}
	}
	return n
}
