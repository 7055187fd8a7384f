package math

// Transform is a rotation, translation and non-uniform scale, applied in the
// order scale, rotate, translate.
type Transform struct {
	Rotation    Quat
	Translation Vec3
	Scale       Vec3
}

// TransformIdentity returns the identity transform.
func TransformIdentity() Transform {
	return Transform{Rotation: QuatIdentity(), Scale: Vec3One()}
}

// Mul composes t with parent: the result maps points from t's space through
// parent into parent's outer space. A bone's component-space transform is
// local.Mul(parentComponentSpace).
func (t Transform) Mul(parent Transform) Transform {
	return Transform{
		Rotation:    parent.Rotation.Mul(t.Rotation).Normalize(),
		Translation: parent.Rotation.Rotate(parent.Scale.Mul(t.Translation)).Add(parent.Translation),
		Scale:       t.Scale.Mul(parent.Scale),
	}
}

// Relative returns r such that r.Mul(other) == t, i.e. t expressed in the
// space of other.
func (t Transform) Relative(other Transform) Transform {
	inv := other.Rotation.Inverse()
	return Transform{
		Rotation:    inv.Mul(t.Rotation).Normalize(),
		Translation: inv.Rotate(t.Translation.Sub(other.Translation)).Div(other.Scale),
		Scale:       t.Scale.Div(other.Scale),
	}
}

// TransformPoint applies t to p.
func (t Transform) TransformPoint(p Vec3) Vec3 {
	return t.Rotation.Rotate(t.Scale.Mul(p)).Add(t.Translation)
}

// Blend interpolates from t towards other by alpha in [0, 1].
func (t Transform) Blend(other Transform, alpha float32) Transform {
	if alpha <= 0 {
		return t
	}
	if alpha >= 1 {
		return other
	}
	return Transform{
		Rotation:    t.Rotation.Lerp(other.Rotation, alpha),
		Translation: t.Translation.Lerp(other.Translation, alpha),
		Scale:       t.Scale.Lerp(other.Scale, alpha),
	}
}

// ApproxEqual compares all components within eps.
func (t Transform) ApproxEqual(other Transform, eps float32) bool {
	return t.Rotation.ApproxEqual(other.Rotation, eps) &&
		t.Translation.ApproxEqual(other.Translation, eps) &&
		t.Scale.ApproxEqual(other.Scale, eps)
}

// IsNaN reports whether any component is NaN or infinite.
func (t Transform) IsNaN() bool {
	return t.Rotation.IsNaN() || t.Translation.IsNaN() || t.Scale.IsNaN()
}
