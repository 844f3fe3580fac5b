package mocksim

import (
	"math"

	"github.com/mlange-42/ark/ecs"
)

type cellEntry struct {
	e    ecs.Entity
	x, y float32
}

// SpatialGrid buckets entity positions by cell for radius queries on a
// torus. It is rebuilt every tick, so entries carry the position they were
// inserted with.
type SpatialGrid struct {
	cell   float32
	cols   int
	rows   int
	width  float32
	height float32
	cells  [][]cellEntry
}

// NewSpatialGrid creates a grid covering a width x height torus.
func NewSpatialGrid(width, height, cellSize float32) *SpatialGrid {
	g := &SpatialGrid{
		cell:   cellSize,
		cols:   max(int(math.Ceil(float64(width/cellSize))), 1),
		rows:   max(int(math.Ceil(float64(height/cellSize))), 1),
		width:  width,
		height: height,
	}
	g.cells = make([][]cellEntry, g.cols*g.rows)
	return g
}

// Clear empties every cell, keeping capacity.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert records e at (x, y).
func (g *SpatialGrid) Insert(e ecs.Entity, x, y float32) {
	i := g.index(g.cellOf(x, g.cols), g.cellOf(y, g.rows))
	g.cells[i] = append(g.cells[i], cellEntry{e, x, y})
}

// cellOf maps a coordinate to its cell along an axis of n cells, wrapping
// coordinates that sit on or past the edge.
func (g *SpatialGrid) cellOf(v float32, n int) int {
	return wrapIndex(int(math.Floor(float64(v/g.cell))), n)
}

func (g *SpatialGrid) index(col, row int) int {
	return row*g.cols + col
}

func wrapIndex(i, n int) int {
	return (i%n + n) % n
}

// Nearest returns the closest entity within radius of (x, y), measured
// across the wrapped edges.
func (g *SpatialGrid) Nearest(x, y, radius float32) (ecs.Entity, bool) {
	reach := int(radius/g.cell) + 1
	col0, row0 := g.cellOf(x, g.cols), g.cellOf(y, g.rows)

	var best ecs.Entity
	bestSq := radius * radius
	found := false
	// Small grids would otherwise visit a cell more than once.
	rowSpan := min(2*reach+1, g.rows)
	colSpan := min(2*reach+1, g.cols)
	for dr := range rowSpan {
		row := wrapIndex(row0-reach+dr, g.rows)
		for dc := range colSpan {
			col := wrapIndex(col0-reach+dc, g.cols)
			for _, c := range g.cells[g.index(col, row)] {
				dx, dy := ToroidalDelta(x, y, c.x, c.y, g.width, g.height)
				if d := dx*dx + dy*dy; d <= bestSq {
					best, bestSq, found = c.e, d, true
				}
			}
		}
	}
	return best, found
}

// ToroidalDelta returns the shortest displacement from (x1, y1) to (x2, y2)
// on a w x h torus.
func ToroidalDelta(x1, y1, x2, y2, w, h float32) (dx, dy float32) {
	return wrapDelta(x2-x1, w), wrapDelta(y2-y1, h)
}

func wrapDelta(d, size float32) float32 {
	switch {
	case d > size/2:
		return d - size
	case d < -size/2:
		return d + size
	}
	return d
}
