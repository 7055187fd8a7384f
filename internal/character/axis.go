package character

import (
	"github.com/Faultbox/facefx-go/internal/solver"
	"github.com/Faultbox/facefx-go/pkg/math"
)

// AxisAdapter converts a raw solver transform into the host convention.
type AxisAdapter func(solver.RawXform) math.Transform

// IdentityAxis keeps the solver's axis convention.
func IdentityAxis(r solver.RawXform) math.Transform {
	return math.Transform{
		Rotation:    math.Quat{X: r.Rot[0], Y: r.Rot[1], Z: r.Rot[2], W: r.Rot[3]},
		Translation: math.Vec3{X: r.Pos[0], Y: r.Pos[1], Z: r.Pos[2]},
		Scale:       math.Vec3{X: r.Scale[0], Y: r.Scale[1], Z: r.Scale[2]},
	}
}

// FaceFXToHost mirrors the Y axis: translation Y is negated and the
// rotation becomes (x, -y, z, -w).
func FaceFXToHost(r solver.RawXform) math.Transform {
	return math.Transform{
		Rotation:    math.Quat{X: r.Rot[0], Y: -r.Rot[1], Z: r.Rot[2], W: -r.Rot[3]},
		Translation: math.Vec3{X: r.Pos[0], Y: -r.Pos[1], Z: r.Pos[2]},
		Scale:       math.Vec3{X: r.Scale[0], Y: r.Scale[1], Z: r.Scale[2]},
	}
}
