package inspector

import (
	"math"

	"github.com/pthm-cable/soupview/camera"
	"github.com/pthm-cable/soupview/world"
)

// PickTolerance is extra hit radius in screen pixels.
const PickTolerance = 5

// Pick returns the entity nearest to screen point (sx, sy) whose drawn body,
// plus PickTolerance, contains the point.
func Pick(snap *world.Snapshot, cam *camera.Camera, sx, sy, particleScale float64) (string, bool) {
	scale := cam.Scale()
	if scale <= 0 {
		return "", false
	}
	wx, wy := cam.ScreenToWorld(sx, sy)
	tol := PickTolerance / scale

	var (
		closest     string
		closestDist = math.Inf(1)
	)
	snap.Entities(func(e *world.Entity) bool {
		if !e.Drawable() {
			return true
		}
		dx := wx - e.Position.X
		dy := wy - e.Position.Y
		dist := dx*dx + dy*dy

		hit := math.Max(e.Vitals.Size, 0)*particleScale + tol
		if dist <= hit*hit && dist < closestDist {
			closest = e.ID
			closestDist = dist
		}
		return true
	})
	return closest, closest != ""
}
