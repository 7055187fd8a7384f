package character

import (
	"go.uber.org/zap"

	"github.com/Faultbox/facefx-go/internal/logger"
	"github.com/Faultbox/facefx-go/internal/solver"
)

// handles owns the solver resources of one character. A zero handle is
// not held. Releasing zeroes the handle, so a second release is a no-op.
type handles struct {
	s     solver.Solver
	actor solver.ActorHandle
	bones solver.BoneSetHandle
	frame solver.FrameState
	anim  solver.AnimHandle
}

func (h *handles) releaseAnim() {
	if h.anim == 0 {
		return
	}
	destroyAnim(h.s, h.anim)
	h.anim = 0
}

func destroyAnim(s solver.Solver, h solver.AnimHandle) {
	if err := s.DestroyAnim(h); err != nil {
		logger.Error("destroy anim handle", zap.Error(err))
	}
}

// release destroys every held handle, dependents first.
func (h *handles) release() {
	h.releaseAnim()
	if h.frame != 0 {
		if err := h.s.DestroyFrameState(h.frame); err != nil {
			logger.Error("destroy frame state", zap.Error(err))
		}
		h.frame = 0
	}
	if h.bones != 0 {
		if err := h.s.DestroyBoneSet(h.bones); err != nil {
			logger.Error("destroy bone set", zap.Error(err))
		}
		h.bones = 0
	}
	if h.actor != 0 {
		if err := h.s.DestroyActor(h.actor); err != nil {
			logger.Error("destroy actor handle", zap.Error(err))
		}
		h.actor = 0
	}
}

// createAnim acquires an animation handle, treating legacy-data warnings as
// success.
func createAnim(s solver.Solver, data []byte) (solver.AnimHandle, error) {
	h, err := s.CreateAnim(data)
	if solver.IsWarning(err) {
		logger.Warn("animation data uses a legacy format", zap.String("result", solver.CodeOf(err).String()))
		err = nil
	}
	if err != nil {
		if h != 0 {
			destroyAnim(s, h)
		}
		return 0, err
	}
	return h, nil
}
