package mocksim

import (
	"testing"

	"github.com/mlange-42/ark/ecs"
)

func TestToroidalDelta(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 float32
		wantDX, wantDY float32
	}{
		{"direct", 10, 10, 20, 30, 10, 20},
		{"wrap right", 95, 50, 5, 50, 10, 0},
		{"wrap left", 5, 50, 95, 50, -10, 0},
		{"wrap down", 50, 98, 50, 2, 0, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dx, dy := ToroidalDelta(tt.x1, tt.y1, tt.x2, tt.y2, 100, 100)
			if dx != tt.wantDX || dy != tt.wantDY {
				t.Errorf("ToroidalDelta() = (%v, %v), want (%v, %v)", dx, dy, tt.wantDX, tt.wantDY)
			}
		})
	}
}

func TestSpatialGridNearest(t *testing.T) {
	w := ecs.NewWorld()
	mapper := ecs.NewMap1[Position](w)
	grid := NewSpatialGrid(100, 100, 10)

	near := Position{X: 2, Y: 50}
	far := Position{X: 30, Y: 50}
	eNear := mapper.NewEntity(&near)
	eFar := mapper.NewEntity(&far)
	grid.Insert(eNear, near.X, near.Y)
	grid.Insert(eFar, far.X, far.Y)

	got, ok := grid.Nearest(97, 50, 8)
	if !ok || got != eNear {
		t.Errorf("Nearest across the seam = %v, %v; want the near entity", got, ok)
	}

	if _, ok := grid.Nearest(60, 10, 5); ok {
		t.Error("Nearest found an entity outside the radius")
	}

	grid.Clear()
	if _, ok := grid.Nearest(2, 50, 5); ok {
		t.Error("Nearest found an entity after Clear")
	}
}

func TestSpatialGridWrapsUnevenWorld(t *testing.T) {
	w := ecs.NewWorld()
	mapper := ecs.NewMap1[Position](w)

	tests := []struct {
		name          string
		width, height float32
		at            Position
		qx, qy, r     float32
	}{
		{"right seam", 95, 95, Position{X: 1, Y: 40}, 93, 40, 5},
		{"bottom seam", 95, 95, Position{X: 40, Y: 94}, 40, 1, 5},
		{"corner", 95, 95, Position{X: 94, Y: 94}, 1, 1, 5},
		{"on the edge", 100, 100, Position{X: 100, Y: 50}, 3, 50, 5},
		{"grid smaller than reach", 20, 20, Position{X: 19, Y: 1}, 1, 19, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := NewSpatialGrid(tt.width, tt.height, 10)
			pos := tt.at
			e := mapper.NewEntity(&pos)
			grid.Insert(e, pos.X, pos.Y)

			got, ok := grid.Nearest(tt.qx, tt.qy, tt.r)
			if !ok || got != e {
				t.Errorf("Nearest(%v, %v, %v) = %v, %v; want %v", tt.qx, tt.qy, tt.r, got, ok, e)
			}
		})
	}
}
