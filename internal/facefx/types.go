// Package facefx defines the compiled asset data model shared by the
// character runtime, the asset service and the pose blend node.
package facefx

import (
	"strings"

	"github.com/Faultbox/facefx-go/pkg/formats"
)

// AnimID identifies a compiled animation by group and name.
// An empty group is the default group.
type AnimID struct {
	Group string
	Name  string
}

// ParseAnimID parses "group.name". A string without a '.' names an
// animation in the default group.
func ParseAnimID(s string) AnimID {
	group, name, ok := strings.Cut(s, ".")
	if !ok {
		return AnimID{Name: s}
	}
	return AnimID{Group: group, Name: name}
}

// String returns the canonical "group.name" form, or just the name for the
// default group.
func (id AnimID) String() string {
	if id.Group == "" {
		return id.Name
	}
	return id.Group + "." + id.Name
}

// IsValid reports whether the id names an animation.
func (id AnimID) IsValid() bool {
	return id.Name != ""
}

// Sound references the audio linked to an animation. Data is nil until the
// sound has been loaded.
type Sound struct {
	Path string
	Data []byte
}

// IsResident reports whether the sound data is loaded.
func (s *Sound) IsResident() bool {
	return s != nil && s.Data != nil
}

// AnimationAsset is an immutable compiled animation. It may be shared by
// any number of characters.
type AnimationAsset struct {
	ID    AnimID
	Data  []byte
	Sound *Sound
}

// IsValid reports whether the asset carries an id and compiled data.
func (a *AnimationAsset) IsValid() bool {
	return a != nil && a.ID.IsValid() && len(a.Data) > 0
}

// ActorDataset is an immutable compiled actor: rig data, bone-set data and
// the id table naming bones and tracks.
type ActorDataset struct {
	Name      string
	ActorData []byte
	BoneData  []byte
	IDs       formats.IDMap
}

// IsValid reports whether every part of the dataset is present.
func (d *ActorDataset) IsValid() bool {
	return d != nil && len(d.ActorData) > 0 && len(d.BoneData) > 0 && d.IDs.Len() > 0
}

// Asset file extensions.
const (
	ExtActor = ".ffxactor"
	ExtBones = ".ffxbones"
	ExtIDs   = ".ffxids"
	ExtAnim  = ".ffxanim"
)

// SoundExtensions lists the audio formats looked up next to an animation,
// in preference order.
var SoundExtensions = []string{".wav", ".ogg", ".mp3"}

// AnimPath returns the asset path of a compiled animation: "group/name.ffxanim",
// or "name.ffxanim" for the default group.
func AnimPath(id AnimID) string {
	if id.Group == "" {
		return id.Name + ExtAnim
	}
	return id.Group + "/" + id.Name + ExtAnim
}
