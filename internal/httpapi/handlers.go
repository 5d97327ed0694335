package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type membershipRequest struct {
	Username  string `json:"username"`
	GroupName string `json:"groupName"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := a.login.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.writeDirectoryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token.Value,
		ExpiresAt: token.ExpiresAt,
	})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.dir.Users(r.Context())
	if err != nil {
		a.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (a *API) handleGetUser(w http.ResponseWriter, r *http.Request) {
	accountName := chi.URLParam(r, "accountName")
	user, err := a.dir.FindUser(r.Context(), accountName)
	if err != nil {
		a.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (a *API) handleUserGroups(w http.ResponseWriter, r *http.Request) {
	accountName := chi.URLParam(r, "accountName")
	groups, err := a.dir.UserGroups(r.Context(), accountName)
	if err != nil {
		a.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"groups": groups})
}

func (a *API) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := a.dir.Resources(r.Context())
	if err != nil {
		a.writeDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

func (a *API) handleAddMember(w http.ResponseWriter, r *http.Request) {
	a.handleMembership(w, r, true)
}

func (a *API) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	a.handleMembership(w, r, false)
}

func (a *API) handleMembership(w http.ResponseWriter, r *http.Request, add bool) {
	var req membershipRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.GroupName = strings.TrimSpace(req.GroupName)
	if req.Username == "" || req.GroupName == "" {
		writeError(w, http.StatusBadRequest, "username and groupName are required")
		return
	}

	var err error
	if add {
		err = a.dir.AddMember(r.Context(), req.Username, req.GroupName)
	} else {
		err = a.dir.RemoveMember(r.Context(), req.Username, req.GroupName)
	}
	if err != nil {
		a.writeDirectoryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
