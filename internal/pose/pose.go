package pose

import "github.com/Faultbox/facefx-go/pkg/math"

// Space is the space a pose was handed over in.
type Space int

// Pose spaces.
const (
	ComponentSpace Space = iota
	LocalSpace
)

// Pose holds the local transforms of a bone container and lazily derives
// component-space transforms from them. Component transforms are cached
// as a prefix of compact indices; changing a local invalidates the cache
// from that bone on.
type Pose struct {
	bones   *BoneContainer
	local   []math.Transform
	cs      []math.Transform
	csValid int
	space   Space
}

// NewPose creates a pose at the reference pose.
func NewPose(bones *BoneContainer) *Pose {
	p := &Pose{
		bones: bones,
		local: make([]math.Transform, bones.Len()),
		cs:    make([]math.Transform, bones.Len()),
	}
	p.ResetToRefPose()
	return p
}

// ResetToRefPose sets every bone to its reference transform.
func (p *Pose) ResetToRefPose() {
	for i := range p.local {
		p.local[i] = p.bones.skel.RefPose(p.bones.SkeletonIndex(i))
	}
	p.csValid = 0
}

// Bones returns the pose's bone container.
func (p *Pose) Bones() *BoneContainer { return p.bones }

// Space returns the space the pose was handed over in.
func (p *Pose) Space() Space { return p.space }

// SetSpace records the space the pose was handed over in.
func (p *Pose) SetSpace(s Space) { p.space = s }

// Local returns the parent-relative transform of a compact bone.
func (p *Pose) Local(compact int) math.Transform { return p.local[compact] }

// SetLocal replaces the parent-relative transform of a compact bone.
func (p *Pose) SetLocal(compact int, t math.Transform) {
	p.local[compact] = t
	if compact < p.csValid {
		p.csValid = compact
	}
}

// ComponentTransform returns the component-space transform of a compact
// bone.
func (p *Pose) ComponentTransform(compact int) math.Transform {
	for ; p.csValid <= compact; p.csValid++ {
		i := p.csValid
		if parent := p.bones.ParentCompact(i); parent >= 0 {
			p.cs[i] = p.local[i].Mul(p.cs[parent])
		} else {
			p.cs[i] = p.local[i]
		}
	}
	return p.cs[compact]
}

// LocalBlendCS blends a component-space target into a compact bone with
// weight alpha. The target is made relative to the parent's current
// component transform, so parents must be finalised first.
func (p *Pose) LocalBlendCS(compact int, target math.Transform, alpha float32) {
	local := target
	if parent := p.bones.ParentCompact(compact); parent >= 0 {
		local = target.Relative(p.ComponentTransform(parent))
	}
	p.SetLocal(compact, p.local[compact].Blend(local, alpha))
}
