package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

type createNoteRequest struct {
	Content string `json:"content"`
	Private bool   `json:"private"`
}

func (a *API) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req createNoteRequest
	if !a.decode(w, r, &req) {
		return
	}
	note, err := a.notes.Create(r.Context(), callerID(r), req.Content, req.Private)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toNoteDTO(note))
}

func (a *API) handleGetNote(w http.ResponseWriter, r *http.Request) {
	note, err := a.notes.Get(r.Context(), callerID(r), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toNoteDTO(note))
}

type updateNoteRequest struct {
	Content *string `json:"content,omitempty"`
	Pinned  *bool   `json:"pinned,omitempty"`
	Private *bool   `json:"private,omitempty"`
}

// handleUpdateNote applies a partial update. Absent fields are untouched.
func (a *API) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	var req updateNoteRequest
	if !a.decode(w, r, &req) {
		return
	}
	userID, noteID := callerID(r), mux.Vars(r)["id"]

	if req.Content != nil {
		if _, err := a.notes.UpdateContent(r.Context(), userID, noteID, *req.Content); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if req.Pinned != nil {
		if err := a.notes.SetPinned(r.Context(), userID, noteID, *req.Pinned); err != nil {
			a.writeError(w, err)
			return
		}
	}
	if req.Private != nil {
		if err := a.notes.SetPrivate(r.Context(), userID, noteID, *req.Private); err != nil {
			a.writeError(w, err)
			return
		}
	}

	note, err := a.notes.Get(r.Context(), userID, noteID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toNoteDTO(note))
}

func (a *API) handleTrashNote(w http.ResponseWriter, r *http.Request) {
	if err := a.notes.Trash(r.Context(), callerID(r), mux.Vars(r)["id"]); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleRestoreNote(w http.ResponseWriter, r *http.Request) {
	if err := a.notes.Restore(r.Context(), callerID(r), mux.Vars(r)["id"]); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"
	if err := a.notes.Delete(r.Context(), callerID(r), mux.Vars(r)["id"], force); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := a.notes.List(r.Context(), callerID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toNoteDTOs(notes))
}

func (a *API) handleListShared(w http.ResponseWriter, r *http.Request) {
	notes, err := a.notes.ListShared(r.Context(), callerID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toNoteDTOs(notes))
}

func (a *API) handleListTrashed(w http.ResponseWriter, r *http.Request) {
	notes, err := a.notes.ListTrashed(r.Context(), callerID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toNoteDTOs(notes))
}

type addShareRequest struct {
	Login string `json:"login"`
}

func (a *API) handleAddShare(w http.ResponseWriter, r *http.Request) {
	var req addShareRequest
	if !a.decode(w, r, &req) {
		return
	}
	recipient, err := a.notes.Share(r.Context(), callerID(r), mux.Vars(r)["id"], req.Login)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toUserDTO(recipient))
}

func (a *API) handleRemoveShare(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.notes.Unshare(r.Context(), callerID(r), vars["id"], vars["login"]); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListShares(w http.ResponseWriter, r *http.Request) {
	recipients, err := a.notes.Recipients(r.Context(), callerID(r), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, err)
		return
	}
	result := make([]userDTO, 0, len(recipients))
	for _, u := range recipients {
		result = append(result, toUserDTO(u))
	}
	a.writeJSON(w, http.StatusOK, result)
}
