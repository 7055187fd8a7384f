// Package pose evaluates skeletal poses and blends solved FaceFX bone
// transforms into them.
package pose

import (
	"errors"
	"fmt"

	"github.com/Faultbox/facefx-go/pkg/math"
)

// Skeleton errors.
var (
	ErrParentOrder   = errors.New("bone parent must precede the bone")
	ErrDuplicateBone = errors.New("duplicate bone name")
)

// Bone describes one skeleton bone. Parent is -1 for a root.
type Bone struct {
	Name   string
	Parent int
	Ref    math.Transform
}

// Skeleton is an immutable bone hierarchy whose parents always precede
// their children.
type Skeleton struct {
	bones []Bone
	index map[string]int
}

// NewSkeleton validates bones and builds a skeleton.
func NewSkeleton(bones []Bone) (*Skeleton, error) {
	s := &Skeleton{
		bones: append([]Bone(nil), bones...),
		index: make(map[string]int, len(bones)),
	}
	for i, b := range bones {
		if b.Parent >= i || b.Parent < -1 {
			return nil, fmt.Errorf("%w: bone %d %q has parent %d", ErrParentOrder, i, b.Name, b.Parent)
		}
		if _, dup := s.index[b.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBone, b.Name)
		}
		s.index[b.Name] = i
	}
	return s, nil
}

// Len returns the number of bones.
func (s *Skeleton) Len() int { return len(s.bones) }

// Name returns the name of bone i.
func (s *Skeleton) Name(i int) string { return s.bones[i].Name }

// Parent returns the parent of bone i, or -1.
func (s *Skeleton) Parent(i int) int { return s.bones[i].Parent }

// RefPose returns the local reference transform of bone i.
func (s *Skeleton) RefPose(i int) math.Transform { return s.bones[i].Ref }

// FindBone returns the index of the named bone.
func (s *Skeleton) FindBone(name string) (int, bool) {
	i, ok := s.index[name]
	return i, ok
}

// IsAncestor reports whether a is a strict ancestor of b.
func (s *Skeleton) IsAncestor(a, b int) bool {
	for p := s.bones[b].Parent; p >= 0; p = s.bones[p].Parent {
		if p == a {
			return true
		}
	}
	return false
}

// BoneContainer is the subset of skeleton bones evaluated at one LOD.
// Compact indices keep skeleton order, so parents still precede children.
type BoneContainer struct {
	skel      *Skeleton
	compact   []int // compact -> skeleton
	toCompact []int // skeleton -> compact, -1 when culled
}

// NewBoneContainer builds a container for the required skeleton bones.
// Ancestors of required bones are always included.
func NewBoneContainer(s *Skeleton, required []int) (*BoneContainer, error) {
	keep := make([]bool, s.Len())
	for _, i := range required {
		if i < 0 || i >= s.Len() {
			return nil, fmt.Errorf("required bone %d out of range", i)
		}
		for b := i; b >= 0 && !keep[b]; b = s.Parent(b) {
			keep[b] = true
		}
	}

	c := &BoneContainer{skel: s, toCompact: make([]int, s.Len())}
	for i := range keep {
		c.toCompact[i] = -1
		if keep[i] {
			c.toCompact[i] = len(c.compact)
			c.compact = append(c.compact, i)
		}
	}
	return c, nil
}

// FullBoneContainer includes every bone of s.
func FullBoneContainer(s *Skeleton) *BoneContainer {
	c := &BoneContainer{
		skel:      s,
		compact:   make([]int, s.Len()),
		toCompact: make([]int, s.Len()),
	}
	for i := range c.compact {
		c.compact[i] = i
		c.toCompact[i] = i
	}
	return c
}

// Skeleton returns the skeleton the container indexes.
func (c *BoneContainer) Skeleton() *Skeleton { return c.skel }

// Len returns the number of evaluated bones.
func (c *BoneContainer) Len() int { return len(c.compact) }

// CompactIndex maps a skeleton bone to its compact index. It reports false
// for bones culled at this LOD.
func (c *BoneContainer) CompactIndex(skelIndex int) (int, bool) {
	if skelIndex < 0 || skelIndex >= len(c.toCompact) {
		return 0, false
	}
	ci := c.toCompact[skelIndex]
	return ci, ci >= 0
}

// SkeletonIndex maps a compact index back to the skeleton.
func (c *BoneContainer) SkeletonIndex(compact int) int { return c.compact[compact] }

// ParentCompact returns the compact index of the parent, or -1.
func (c *BoneContainer) ParentCompact(compact int) int {
	p := c.skel.Parent(c.compact[compact])
	if p < 0 {
		return -1
	}
	return c.toCompact[p]
}
