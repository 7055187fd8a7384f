// Package solver describes the FaceFX runtime as a capability interface.
//
// The runtime is a closed native library that works on opaque handles. A
// binding implements Solver; the character runtime only ever talks to it
// through this interface, which also makes the state machine testable
// against solvertest.
package solver

import (
	"errors"
	"fmt"
)

// Opaque handles. The zero value is never a live handle.
type (
	ActorHandle   uint64
	BoneSetHandle uint64
	AnimHandle    uint64
	FrameState    uint64
	ChannelID     int
)

// ChannelFlags is the per-channel status bitmask reported after a frame.
type ChannelFlags uint32

// Channel flag bits.
const (
	// ChannelFlagStartAudio is raised on the frame at which the animation
	// wants its audio to begin.
	ChannelFlagStartAudio ChannelFlags = 1 << iota
	ChannelFlagPlaying
	ChannelFlagPaused
)

// Has reports whether all bits of f are set.
func (c ChannelFlags) Has(f ChannelFlags) bool {
	return c&f == f
}

// RawXform is a bone transform as the runtime writes it, in the runtime's
// own axis convention. Rot is (x, y, z, w).
type RawXform struct {
	Pos   [3]float32
	Rot   [4]float32
	Scale [3]float32
}

// Event is a user-authored marker baked into an animation that fired during
// the last processed frame.
type Event struct {
	Channel     int
	ChannelTime float64
	EventTime   float64
	Payload     string
}

// Solver is the FaceFX runtime capability. Every successful Create must be
// paired with exactly one Destroy.
type Solver interface {
	CreateActor(actorData, boneData []byte) (ActorHandle, error)
	DestroyActor(ActorHandle) error
	CreateBoneSet(actor ActorHandle, boneData []byte) (BoneSetHandle, error)
	DestroyBoneSet(BoneSetHandle) error
	CreateFrameState(ActorHandle) (FrameState, error)
	DestroyFrameState(FrameState) error
	CreateAnim(animData []byte) (AnimHandle, error)
	DestroyAnim(AnimHandle) error

	// BoneIDs returns the bone ids in the order ComputeBoneTransforms
	// writes them.
	BoneIDs(BoneSetHandle) ([]uint64, error)
	// TrackIDs returns the ids of the actor's morph and material tracks.
	TrackIDs(ActorHandle) ([]uint64, error)

	IsCompatible(ActorHandle, AnimHandle) (bool, error)
	AnimBounds(AnimHandle) (start, end float64, err error)

	Play(actor ActorHandle, anim AnimHandle, startTime float64) (ChannelID, error)
	Pause(actor ActorHandle, time float64) error
	Resume(actor ActorHandle, time float64) error
	Stop(ActorHandle) error

	ProcessFrame(actor ActorHandle, frame FrameState, time float64) error
	ChannelFlags(FrameState) ([]ChannelFlags, error)
	Events(FrameState) ([]Event, error)
	ComputeBoneTransforms(bones BoneSetHandle, frame FrameState, out []RawXform) error
	ComputeTrackValues(frame FrameState, ids []uint64, out []float32) error
}

// Code is a runtime result code.
type Code int

// Result codes.
const (
	OK Code = iota
	WarnLegacyData
	ErrInvalidArgument
	ErrBadData
	ErrVersionMismatch
	ErrBufferSize
	ErrRange
	ErrValidation
	ErrZombieHandle
	ErrNotPermitted
	ErrUnknown
)

// String returns the human-readable text shown in editor notifications.
func (c Code) String() string {
	switch c {
	case OK:
		return "Success"
	case WarnLegacyData:
		return "The data is in a legacy format and should be recompiled"
	case ErrInvalidArgument:
		return "Invalid argument"
	case ErrBadData:
		return "Bad data"
	case ErrVersionMismatch:
		return "The data was compiled for a different FaceFX runtime version"
	case ErrBufferSize:
		return "Buffer too small"
	case ErrRange:
		return "Value out of range"
	case ErrValidation:
		return "Data failed validation, it may be corrupt"
	case ErrZombieHandle:
		return "The handle has already been destroyed"
	case ErrNotPermitted:
		return "Operation not permitted"
	case ErrUnknown:
		return "Unknown error"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// Error is a failed runtime call.
type Error struct {
	Op   string
	Code Code
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Check wraps a non-OK code as an *Error. It returns nil for OK.
func Check(op string, code Code) error {
	if code == OK {
		return nil
	}
	return &Error{Op: op, Code: code}
}

// CodeOf extracts the result code from err: OK for nil, ErrUnknown for
// errors that did not come from the runtime.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrUnknown
}

// IsWarning reports whether err only signals legacy data, which is logged
// but does not fail the operation.
func IsWarning(err error) bool {
	return err != nil && CodeOf(err) == WarnLegacyData
}
