package service

import (
	"context"
	"sync"

	"github.com/sakif/fitai/internal/apperror"
	"github.com/sakif/fitai/internal/model"
)

// EditorState is where the profile page is in its edit cycle.
type EditorState string

const (
	StateViewing EditorState = "viewing"
	StateEditing EditorState = "editing"
	StateSaving  EditorState = "saving"
)

// ProfileEditor drives the profile page:
//
//	Viewing --BeginEdit--> Editing --Save--> Saving --ok--> Viewing
//	                          ^                 |
//	                          +------error------+
//	Editing --Cancel--> Viewing (draft reset from the cache)
//
// Only one save may be in flight; a second Save while Saving is
// ErrConflict. A failed save keeps the draft so the user can retry.
type ProfileEditor struct {
	store *ProfileStore

	mu    sync.Mutex
	state EditorState
	draft model.UserProfileInput
}

// NewProfileEditor returns an editor in the Viewing state.
func NewProfileEditor(store *ProfileStore) *ProfileEditor {
	return &ProfileEditor{store: store, state: StateViewing}
}

// EditorView is the editor's state and current draft.
type EditorView struct {
	State EditorState            `json:"state"`
	Draft model.UserProfileInput `json:"draft"`
}

// View returns the current state and a copy of the draft.
func (e *ProfileEditor) View() EditorView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return EditorView{State: e.state, Draft: copyInput(e.draft)}
}

// BeginEdit copies the user's profile into the draft and enters Editing.
// If the store has not loaded yet it is loaded first, so an existing
// profile is never mistaken for a missing one. With no profile the draft
// starts empty (first-time onboarding). Calling it while already Editing
// restarts from the profile.
func (e *ProfileEditor) BeginEdit(ctx context.Context, userID string) (EditorView, error) {
	current, loaded := e.store.Cached()
	if !loaded {
		var err error
		if current, err = e.store.Load(ctx, userID); err != nil {
			return EditorView{}, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSaving {
		return EditorView{}, saveInFlight()
	}
	e.draft = inputOf(current)
	e.state = StateEditing
	return EditorView{State: e.state, Draft: copyInput(e.draft)}, nil
}

// UpdateDraft applies the present fields of patch to the draft.
// Nothing is validated or written until Save.
func (e *ProfileEditor) UpdateDraft(patch model.UserProfilePatch) (EditorView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateEditing {
		return EditorView{}, notEditing(e.state)
	}
	patch.ApplyTo(&e.draft)
	return EditorView{State: e.state, Draft: copyInput(e.draft)}, nil
}

// Save writes the draft. When a profile is cached only the draft's fields
// go through Update; otherwise the draft is upserted as a whole.
//
// On success the editor returns to Viewing and the store's cache holds the
// saved record. On failure it returns to Editing with the draft intact.
func (e *ProfileEditor) Save(ctx context.Context, userID string) (*model.UserProfile, error) {
	e.mu.Lock()
	switch e.state {
	case StateSaving:
		e.mu.Unlock()
		return nil, saveInFlight()
	case StateViewing:
		e.mu.Unlock()
		return nil, notEditing(StateViewing)
	}
	e.state = StateSaving
	draft := copyInput(e.draft)
	e.mu.Unlock()

	var (
		saved *model.UserProfile
		err   error
	)
	if cached, _ := e.store.Cached(); cached != nil {
		saved, err = e.store.Update(ctx, userID, draft.Patch())
	} else {
		saved, err = e.store.Upsert(ctx, userID, draft)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = StateEditing
		return nil, err
	}
	e.state = StateViewing
	e.draft = saved.Input()
	return saved, nil
}

// Cancel drops the draft and returns to Viewing. The draft is reset from
// the cache so a later BeginEdit starts clean.
func (e *ProfileEditor) Cancel() (EditorView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateSaving {
		return EditorView{}, saveInFlight()
	}
	e.draft = e.fromCache()
	e.state = StateViewing
	return EditorView{State: e.state, Draft: copyInput(e.draft)}, nil
}

func (e *ProfileEditor) fromCache() model.UserProfileInput {
	cached, _ := e.store.Cached()
	return inputOf(cached)
}

func inputOf(p *model.UserProfile) model.UserProfileInput {
	if p == nil {
		return model.UserProfileInput{}
	}
	return p.Input()
}

func copyInput(in model.UserProfileInput) model.UserProfileInput {
	if in.Allergies != nil {
		a := *in.Allergies
		in.Allergies = &a
	}
	return in
}

func saveInFlight() error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: "a profile save is already in progress",
	}
}

func notEditing(state EditorState) error {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: "profile is not being edited (state: " + string(state) + ")",
	}
}
