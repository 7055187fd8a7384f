package math

import (
	"math"
	"testing"
)

func TestTransformMulIdentity(t *testing.T) {
	tr := Transform{
		Rotation:    QuatFromAxisAngle(Vec3{Y: 1}, 0.7),
		Translation: Vec3{1, 2, 3},
		Scale:       Vec3{1, 2, 1},
	}

	if got := tr.Mul(TransformIdentity()); !got.ApproxEqual(tr, 1e-5) {
		t.Errorf("tr * identity = %+v, want %+v", got, tr)
	}
	if got := TransformIdentity().Mul(tr); !got.ApproxEqual(tr, 1e-5) {
		t.Errorf("identity * tr = %+v, want %+v", got, tr)
	}
}

func TestTransformMulChain(t *testing.T) {
	// Parent sits at (0,0,10) turned 90 degrees about Z; child is offset 1 along X.
	parent := Transform{
		Rotation:    QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi/2)),
		Translation: Vec3{0, 0, 10},
		Scale:       Vec3One(),
	}
	child := Transform{Rotation: QuatIdentity(), Translation: Vec3{X: 1}, Scale: Vec3One()}

	got := child.Mul(parent)
	want := Vec3{0, 1, 10}
	if !got.Translation.ApproxEqual(want, 1e-5) {
		t.Errorf("child component translation = %v, want %v", got.Translation, want)
	}
	if !got.Rotation.ApproxEqual(parent.Rotation, 1e-5) {
		t.Errorf("child component rotation = %+v, want %+v", got.Rotation, parent.Rotation)
	}
}

func TestTransformRelativeRoundTrip(t *testing.T) {
	parent := Transform{
		Rotation:    QuatFromAxisAngle(Vec3{X: 1, Z: 1}.Normalize(), 0.4),
		Translation: Vec3{5, -2, 1},
		Scale:       Vec3{2, 2, 0.5},
	}
	cs := Transform{
		Rotation:    QuatFromAxisAngle(Vec3{Y: 1}, -1.2),
		Translation: Vec3{3, 3, 3},
		Scale:       Vec3{1, 1, 1},
	}

	local := cs.Relative(parent)
	back := local.Mul(parent)
	if !back.ApproxEqual(cs, 1e-4) {
		t.Errorf("Relative/Mul round trip = %+v, want %+v", back, cs)
	}
}

func TestTransformBlend(t *testing.T) {
	a := TransformIdentity()
	b := Transform{Rotation: QuatIdentity(), Translation: Vec3{10, 0, 0}, Scale: Vec3{3, 3, 3}}

	if got := a.Blend(b, 0); got != a {
		t.Errorf("Blend(0) = %+v, want a", got)
	}
	if got := a.Blend(b, 1); got != b {
		t.Errorf("Blend(1) = %+v, want b", got)
	}
	mid := a.Blend(b, 0.5)
	if !mid.Translation.ApproxEqual(Vec3{5, 0, 0}, 1e-5) || !mid.Scale.ApproxEqual(Vec3{2, 2, 2}, 1e-5) {
		t.Errorf("Blend(0.5) = %+v", mid)
	}
}

func TestTransformPoint(t *testing.T) {
	tr := Transform{
		Rotation:    QuatFromAxisAngle(Vec3{Z: 1}, float32(math.Pi)),
		Translation: Vec3{1, 1, 1},
		Scale:       Vec3{2, 2, 2},
	}
	got := tr.TransformPoint(Vec3{X: 1})
	want := Vec3{-1, 1, 1}
	if !got.ApproxEqual(want, 1e-5) {
		t.Errorf("TransformPoint = %v, want %v", got, want)
	}
}
