package session

import (
	"context"
	"fmt"

	"stillframe/internal/intake"
	"stillframe/internal/locale"
	"stillframe/internal/store"
)

// State is the derived stage of a user's pending session.
type State int

const (
	StateEmpty State = iota
	StateHasAudioOnly
	StateHasImageOnly
	StateReady
)

func (s State) String() string {
	switch s {
	case StateHasAudioOnly:
		return "has_audio_only"
	case StateHasImageOnly:
		return "has_image_only"
	case StateReady:
		return "ready"
	default:
		return "empty"
	}
}

// StateOf derives the state of a stored session.
func StateOf(s store.Session) State {
	switch {
	case s.HasAudio() && s.HasImage():
		return StateReady
	case s.HasAudio():
		return StateHasAudioOnly
	case s.HasImage():
		return StateHasImageOnly
	default:
		return StateEmpty
	}
}

// Store is the subset of the session store the machine needs.
type Store interface {
	Get(ctx context.Context, userID int64) (store.Session, error)
	Upsert(ctx context.Context, userID int64, patch store.Patch) (store.Session, error)
}

// Input is one classified attachment. Path is the local copy and is empty for
// rejected inputs.
type Input struct {
	Class  intake.Class
	Reason intake.Reason
	Path   string
}

// Transition describes the effect of one Apply call.
type Transition struct {
	From State
	To   State
	// Prompt is the message to send. It is empty when To is Ready, since the
	// render flow takes over the conversation.
	Prompt locale.Key
	// Superseded is a previous upload of the same kind that was replaced and
	// is no longer referenced by the session.
	Superseded string
	Session    store.Session
}

// Ready reports whether the transition hands the session to the render flow.
func (t Transition) Ready() bool {
	return t.To == StateReady
}

// Machine applies classified inputs to stored sessions.
type Machine struct {
	sessions Store
}

// NewMachine returns a Machine backed by sessions.
func NewMachine(sessions Store) *Machine {
	return &Machine{sessions: sessions}
}

// Apply merges in into userID's session and returns the transition. Rejected
// inputs never touch the store.
func (m *Machine) Apply(ctx context.Context, userID int64, in Input) (Transition, error) {
	current, err := m.sessions.Get(ctx, userID)
	if err != nil {
		return Transition{}, fmt.Errorf("load session: %w", err)
	}
	from := StateOf(current)

	var (
		patch      store.Patch
		superseded string
	)
	switch in.Class {
	case intake.ClassAudio:
		superseded = current.AudioPath
		patch.AudioPath = &in.Path
	case intake.ClassImage:
		superseded = current.ImagePath
		patch.ImagePath = &in.Path
	default:
		return Transition{From: from, To: from, Prompt: rejectionPrompt(in.Reason), Session: current}, nil
	}
	if in.Path == "" {
		return Transition{}, fmt.Errorf("accepted %s input for user %d has no path", in.Class, userID)
	}
	if superseded == in.Path {
		superseded = ""
	}

	updated, err := m.sessions.Upsert(ctx, userID, patch)
	if err != nil {
		return Transition{}, fmt.Errorf("store session: %w", err)
	}
	to := StateOf(updated)
	return Transition{
		From:       from,
		To:         to,
		Prompt:     promptFor(to),
		Superseded: superseded,
		Session:    updated,
	}, nil
}

func promptFor(state State) locale.Key {
	switch state {
	case StateHasAudioOnly:
		return locale.KeyAudioOKNowImage
	case StateHasImageOnly:
		return locale.KeyImageOKNowAudio
	default:
		return ""
	}
}

func rejectionPrompt(reason intake.Reason) locale.Key {
	if reason == intake.ReasonNotAudio {
		return locale.KeyInvalidAudio
	}
	return locale.KeyInvalidImage
}
