package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

type tagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (a *API) handleCreateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !a.decode(w, r, &req) {
		return
	}
	tag, err := a.tags.Create(r.Context(), callerID(r), req.Name, req.Color)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toTagDTO(tag))
}

func (a *API) handleUpdateTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.tags.Update(r.Context(), callerID(r), mux.Vars(r)["id"], req.Name, req.Color); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := a.tags.Delete(r.Context(), callerID(r), mux.Vars(r)["id"]); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := a.tags.List(r.Context(), callerID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	result := make([]tagDTO, 0, len(tags))
	for _, t := range tags {
		result = append(result, toTagDTO(t))
	}
	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListNoteTags(w http.ResponseWriter, r *http.Request) {
	links, err := a.tags.ListLinks(r.Context(), callerID(r))
	if err != nil {
		a.writeError(w, err)
		return
	}
	result := make([]noteTagDTO, 0, len(links))
	for _, l := range links {
		result = append(result, noteTagDTO{NoteID: l.NoteID, TagID: l.TagID})
	}
	a.writeJSON(w, http.StatusOK, result)
}

type setNoteTagsRequest struct {
	TagIDs []string `json:"tag_ids"`
}

func (a *API) handleSetNoteTags(w http.ResponseWriter, r *http.Request) {
	var req setNoteTagsRequest
	if !a.decode(w, r, &req) {
		return
	}
	if err := a.tags.SetNoteTags(r.Context(), callerID(r), mux.Vars(r)["id"], req.TagIDs); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleAddNoteTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.tags.AddNoteTag(r.Context(), callerID(r), vars["id"], vars["tagID"]); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}

func (a *API) handleRemoveNoteTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := a.tags.RemoveNoteTag(r.Context(), callerID(r), vars["id"], vars["tagID"]); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusNoContent, nil)
}
