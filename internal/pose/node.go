package pose

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/character"
	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/pkg/math"
)

// BlendMode selects how solved transforms are applied.
type BlendMode int

// Blend modes.
const (
	Replace BlendMode = iota
	Additive
)

func (m BlendMode) String() string {
	if m == Additive {
		return "additive"
	}
	return "replace"
}

// AdditiveScale selects how scales combine in Additive mode.
type AdditiveScale int

// Additive scale formulas.
const (
	// ScaleAdd sums the scales.
	ScaleAdd AdditiveScale = iota
	// ScaleMultiply multiplies the scales, as older data expects.
	ScaleMultiply
)

func (s AdditiveScale) String() string {
	if s == ScaleMultiply {
		return "multiply"
	}
	return "add"
}

// Parse errors.
var (
	ErrUnknownBlendMode     = errors.New("unknown blend mode")
	ErrUnknownAdditiveScale = errors.New("unknown additive scale")
)

// ParseBlendMode parses "replace" or "additive".
func ParseBlendMode(s string) (BlendMode, error) {
	switch strings.ToLower(s) {
	case "replace", "":
		return Replace, nil
	case "additive":
		return Additive, nil
	}
	return Replace, fmt.Errorf("%w: %q", ErrUnknownBlendMode, s)
}

// ParseAdditiveScale parses "add" or "multiply".
func ParseAdditiveScale(s string) (AdditiveScale, error) {
	switch strings.ToLower(s) {
	case "add", "":
		return ScaleAdd, nil
	case "multiply":
		return ScaleMultiply, nil
	}
	return ScaleAdd, fmt.Errorf("%w: %q", ErrUnknownAdditiveScale, s)
}

// Character is the view of a character.Character the blend node needs.
type Character interface {
	IsLoaded() bool
	IsLoading() bool
	BoneEntries() []character.BoneEntry
	GetBoneTransforms(updateIfDirty bool) []math.Transform
	Generation() uint64
}

// CharacterLocator finds the character driving a pose, typically the one
// attached to the same mesh.
type CharacterLocator interface {
	LocateCharacter() Character
}

// LocatorFunc adapts a function to CharacterLocator.
type LocatorFunc func() Character

// LocateCharacter implements CharacterLocator.
func (f LocatorFunc) LocateCharacter() Character { return f() }

// BoneMapping links a pose bone to a solved transform.
type BoneMapping struct {
	Name           string
	PoseIndex      int
	TransformIndex int
	Ref            math.Transform
}

// BlendNode blends a character's solved bone transforms into a pose.
type BlendNode struct {
	Alpha         float32
	Mode          BlendMode
	AdditiveScale AdditiveScale
	// LODThreshold disables the node above this LOD. Negative never
	// disables.
	LODThreshold int
	Locator      CharacterLocator
	// Debug enables NaN checks on the blended pose.
	Debug bool

	character  Character
	generation uint64
	skel       *Skeleton
	mapping    []BoneMapping
	built      bool

	warnedNaN    bool
	warnedSpace  bool
	warnedResult bool
}

// NewBlendNode creates a node with full weight in Replace mode.
func NewBlendNode(locator CharacterLocator) *BlendNode {
	return &BlendNode{Alpha: 1, LODThreshold: -1, Locator: locator}
}

// Invalidate drops the resolved character and mapping.
func (n *BlendNode) Invalidate() {
	n.character = nil
	n.mapping = nil
	n.skel = nil
	n.built = false
}

// IsReady reports whether a loaded character has been resolved.
func (n *BlendNode) IsReady() bool {
	return n.character != nil && n.built
}

// Mapping returns the bone mapping, sorted by pose bone index.
func (n *BlendNode) Mapping() []BoneMapping {
	return n.mapping
}

func (n *BlendNode) resolve(skel *Skeleton) bool {
	if n.character == nil {
		if n.Locator == nil {
			return false
		}
		n.character = n.Locator.LocateCharacter()
		if n.character == nil {
			return false
		}
	}
	c := n.character
	if c.IsLoading() || !c.IsLoaded() {
		n.built = false
		return false
	}
	if n.built && n.generation == c.Generation() && n.skel == skel {
		return true
	}

	n.mapping = buildMapping(c.BoneEntries(), skel)
	n.generation = c.Generation()
	n.skel = skel
	n.built = true
	return true
}

func stripNamespace(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func buildMapping(entries []character.BoneEntry, skel *Skeleton) []BoneMapping {
	var stripped map[string]int
	mapping := make([]BoneMapping, 0, len(entries))

	for _, e := range entries {
		idx, ok := skel.FindBone(e.Name)
		if !ok {
			idx, ok = skel.FindBone(stripNamespace(e.Name))
		}
		if !ok {
			if stripped == nil {
				stripped = make(map[string]int, skel.Len())
				for i := 0; i < skel.Len(); i++ {
					if _, dup := stripped[stripNamespace(skel.Name(i))]; !dup {
						stripped[stripNamespace(skel.Name(i))] = i
					}
				}
			}
			idx, ok = stripped[stripNamespace(e.Name)]
		}
		if !ok {
			logger.Warn("facefx bone not found in skeleton", zap.String("bone", e.Name))
			continue
		}
		mapping = append(mapping, BoneMapping{
			Name:           e.Name,
			PoseIndex:      idx,
			TransformIndex: e.TransformIndex,
			Ref:            skel.RefPose(idx),
		})
	}

	// Parents must be finalised before their children are blended.
	sort.SliceStable(mapping, func(i, j int) bool {
		return mapping[i].PoseIndex < mapping[j].PoseIndex
	})
	return mapping
}

// Evaluate blends the resolved character into p at the given LOD. The
// pose is left untouched when the node is disabled or not ready.
func (n *BlendNode) Evaluate(p *Pose, lod int) {
	if n.LODThreshold >= 0 && lod > n.LODThreshold {
		return
	}
	if !n.resolve(p.Bones().Skeleton()) {
		return
	}
	alpha := n.Alpha
	if alpha > 1 {
		alpha = 1
	}
	if alpha <= 0 || len(n.mapping) == 0 {
		return
	}

	if p.Space() == LocalSpace && !n.warnedSpace {
		n.warnedSpace = true
		logger.Warn("blend input pose is in local space, expected component space")
	}

	transforms := n.character.GetBoneTransforms(true)
	for _, m := range n.mapping {
		compact, ok := p.Bones().CompactIndex(m.PoseIndex)
		if !ok || m.TransformIndex >= len(transforms) {
			continue
		}

		solved := transforms[m.TransformIndex]
		if solved.IsNaN() {
			if !n.warnedNaN {
				n.warnedNaN = true
				logger.Warn("solved bone transform is NaN, using reference pose", zap.String("bone", m.Name))
			}
			solved = m.Ref
		}

		local := solved
		if n.Mode == Additive {
			local = n.additive(p.Local(compact), solved)
		}

		target := local
		if parent := p.Bones().ParentCompact(compact); parent >= 0 {
			target = local.Mul(p.ComponentTransform(parent))
		}
		p.LocalBlendCS(compact, target, alpha)

		if n.Debug && !n.warnedResult && p.Local(compact).IsNaN() {
			n.warnedResult = true
			logger.Warn("blended bone transform is NaN", zap.String("bone", m.Name))
		}
	}
}

func (n *BlendNode) additive(current, solved math.Transform) math.Transform {
	scale := current.Scale.Add(solved.Scale)
	if n.AdditiveScale == ScaleMultiply {
		scale = current.Scale.Mul(solved.Scale)
	}
	return math.Transform{
		Rotation:    solved.Rotation.Mul(current.Rotation).Normalize(),
		Translation: current.Translation.Add(solved.Translation),
		Scale:       scale,
	}
}
