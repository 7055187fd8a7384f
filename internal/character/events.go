package character

import (
	"github.com/google/uuid"

	"github.com/Faultbox/facefx-go/internal/facefx"
)

// Event is a notification raised by a Character.
type Event interface {
	// CharacterID identifies the character that raised the event.
	CharacterID() uuid.UUID
}

// PlaybackStarted is raised when Play succeeds.
type PlaybackStarted struct {
	Character uuid.UUID
	Anim      facefx.AnimID
}

// PlaybackStopped is raised when an active playback stops.
type PlaybackStopped struct {
	Character uuid.UUID
	Anim      facefx.AnimID
}

// PlaybackPaused is raised when playback is paused.
type PlaybackPaused struct {
	Character uuid.UUID
	Anim      facefx.AnimID
}

// AudioStartRequested is raised when the animation asks for its audio.
// Started reports whether a target actually began playing.
type AudioStartRequested struct {
	Character uuid.UUID
	Anim      facefx.AnimID
	Started   bool
	Target    AudioTarget
}

// AnimationEvent forwards a marker baked into the compiled animation.
type AnimationEvent struct {
	Character   uuid.UUID
	Anim        facefx.AnimID
	Channel     int
	ChannelTime float64
	EventTime   float64
	Payload     string
}

// PlayAssetIncompatible is raised when Play is refused because the
// animation was compiled for a different actor.
type PlayAssetIncompatible struct {
	Character uuid.UUID
	Asset     *facefx.AnimationAsset
}

func (e PlaybackStarted) CharacterID() uuid.UUID       { return e.Character }
func (e PlaybackStopped) CharacterID() uuid.UUID       { return e.Character }
func (e PlaybackPaused) CharacterID() uuid.UUID        { return e.Character }
func (e AudioStartRequested) CharacterID() uuid.UUID   { return e.Character }
func (e AnimationEvent) CharacterID() uuid.UUID        { return e.Character }
func (e PlayAssetIncompatible) CharacterID() uuid.UUID { return e.Character }

// Handler receives character events.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// emitter dispatches events synchronously in registration order.
type emitter struct {
	subs   []subscription
	nextID int
}

// Subscribe registers h and returns a function that unregisters it.
func (e *emitter) Subscribe(h Handler) func() {
	if h == nil {
		return func() {}
	}
	e.nextID++
	id := e.nextID
	e.subs = append(e.subs, subscription{id: id, fn: h})
	return func() {
		for i, s := range e.subs {
			if s.id == id {
				e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter) emit(ev Event) {
	if len(e.subs) == 0 {
		return
	}
	// Handlers may unsubscribe while being dispatched.
	subs := append([]subscription(nil), e.subs...)
	for _, s := range subs {
		s.fn(ev)
	}
}
