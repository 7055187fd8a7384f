package solvertest

import (
	"github.com/Faultbox/facefx-go/internal/solver"
	"github.com/Faultbox/facefx-go/pkg/math"
)

// Key is a bone keyframe in the runtime's raw axis convention.
type Key struct {
	Time  float64
	Pos   math.Vec3
	Rot   math.Quat
	Scale math.Vec3
}

// TrackKey is a morph or material track keyframe.
type TrackKey struct {
	Time  float64
	Value float32
}

// Rest is the raw transform reported for bones without keys.
func Rest() solver.RawXform {
	return solver.RawXform{Rot: [4]float32{0, 0, 0, 1}, Scale: [3]float32{1, 1, 1}}
}

// surrounding finds the keys bracketing t and the blend factor between
// them. Keys must be sorted by time.
func surrounding(n int, timeAt func(int) float64, t float64) (prev, next int, f float32) {
	for i := 0; i < n; i++ {
		if timeAt(i) > t {
			next = i
			break
		}
		prev = i
		next = i
	}
	if prev == next {
		return prev, next, 0
	}
	t0, t1 := timeAt(prev), timeAt(next)
	if t1 != t0 && t > t0 {
		f = float32((t - t0) / (t1 - t0))
	}
	return prev, next, f
}

// interpolateBone evaluates bone keys at local time t.
func interpolateBone(keys []Key, t float64) solver.RawXform {
	if len(keys) == 0 {
		return Rest()
	}
	prev, next, f := surrounding(len(keys), func(i int) float64 { return keys[i].Time }, t)

	k0, k1 := keys[prev], keys[next]
	pos := k0.Pos.Lerp(k1.Pos, f)
	rot := k0.Rot.Slerp(k1.Rot, f)
	scale := k0.Scale.Lerp(k1.Scale, f)
	return solver.RawXform{
		Pos:   [3]float32{pos.X, pos.Y, pos.Z},
		Rot:   [4]float32{rot.X, rot.Y, rot.Z, rot.W},
		Scale: [3]float32{scale.X, scale.Y, scale.Z},
	}
}

// interpolateTrack evaluates track keys at local time t.
func interpolateTrack(keys []TrackKey, t float64) float32 {
	if len(keys) == 0 {
		return 0
	}
	prev, next, f := surrounding(len(keys), func(i int) float64 { return keys[i].Time }, t)
	return keys[prev].Value + f*(keys[next].Value-keys[prev].Value)
}
