package httpapi

import "net/http"

type registerRequest struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Login == "" {
		a.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "login is required"})
		return
	}
	user, err := a.users.Register(r.Context(), req.Login, req.DisplayName)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, toUserDTO(user))
}

type loginRequest struct {
	Login string `json:"login"`
}

type loginResponse struct {
	User  userDTO `json:"user"`
	Token string  `json:"token"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !a.decode(w, r, &req) {
		return
	}
	user, token, err := a.users.Login(r.Context(), req.Login)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, loginResponse{User: toUserDTO(user), Token: token})
}
