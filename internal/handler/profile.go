package handler

import (
	"context"
	"net/http"

	"github.com/sakif/fitai/internal/model"
	"github.com/sakif/fitai/internal/session"
)

// ProfileHandler serves the signed-in user's profile and the profile page's
// edit cycle. Reads go through the session's cache; writes replace it.
type ProfileHandler struct {
	sessions *session.Manager
}

func NewProfileHandler(sessions *session.Manager) *ProfileHandler {
	return &ProfileHandler{sessions: sessions}
}

// profileResponse wraps the profile so "no profile yet" is a 200 with
// {"profile": null} and the client knows to start onboarding.
type profileResponse struct {
	Profile *model.UserProfile `json:"profile"`
}

// HandleGet returns the cached profile, loading it on the first request.
//
// HTTP: GET /api/profile
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	store := h.sessions.Get(uid).Profiles
	if p, loaded := store.Cached(); loaded {
		writeJSON(w, http.StatusOK, profileResponse{Profile: p})
		return
	}
	h.load(r.Context(), w, uid)
}

// HandleRefresh drops the cache and reads the profile again.
//
// HTTP: POST /api/profile/refresh
func (h *ProfileHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	h.sessions.Get(uid).Profiles.Invalidate()
	h.load(r.Context(), w, uid)
}

func (h *ProfileHandler) load(ctx context.Context, w http.ResponseWriter, uid string) {
	p, err := h.sessions.Get(uid).Profiles.Load(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{Profile: p})
}

// HandleCreate stores a first profile. 409 if one exists.
//
// HTTP: POST /api/profile
func (h *ProfileHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var in model.UserProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.sessions.Get(uid).Profiles.Create(r.Context(), uid, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// HandleUpdate writes only the fields present in the body.
//
// HTTP: PATCH /api/profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var patch model.UserProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.sessions.Get(uid).Profiles.Update(r.Context(), uid, patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpsert creates the profile or overwrites all of its fields.
//
// HTTP: PUT /api/profile
func (h *ProfileHandler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var in model.UserProfileInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.sessions.Get(uid).Profiles.Upsert(r.Context(), uid, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleEditorView returns the editor state and draft.
//
// HTTP: GET /api/profile/edit
func (h *ProfileHandler) HandleEditorView(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sessions.Get(uid).Editor.View())
}

// HandleBeginEdit enters Editing with a draft copied from the stored
// profile, loading it first if this session has not yet.
//
// HTTP: POST /api/profile/edit
func (h *ProfileHandler) HandleBeginEdit(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	view, err := h.sessions.Get(uid).Editor.BeginEdit(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleUpdateDraft applies fields to the draft. Nothing is saved.
//
// HTTP: PATCH /api/profile/edit/draft
func (h *ProfileHandler) HandleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var patch model.UserProfilePatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.sessions.Get(uid).Editor.UpdateDraft(patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleSave persists the draft. On failure the editor stays in Editing
// with the draft intact, so the client can retry.
//
// HTTP: POST /api/profile/edit/save
func (h *ProfileHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	p, err := h.sessions.Get(uid).Editor.Save(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleCancel discards the draft.
//
// HTTP: POST /api/profile/edit/cancel
func (h *ProfileHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	view, err := h.sessions.Get(uid).Editor.Cancel()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
