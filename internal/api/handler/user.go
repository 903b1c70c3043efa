package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/seawire/broadside/internal/api/middleware"
	"github.com/seawire/broadside/internal/api/request"
	"github.com/seawire/broadside/internal/api/response"
	"github.com/seawire/broadside/internal/model"
	"github.com/seawire/broadside/internal/services/auth"
	"github.com/seawire/broadside/internal/services/users"
)

// UserHandler handles user account endpoints
type UserHandler struct {
	usersService *users.Service
	authService  *auth.Service
}

// NewUserHandler creates a new user handler
func NewUserHandler(usersService *users.Service, authService *auth.Service) *UserHandler {
	return &UserHandler{
		usersService: usersService,
		authService:  authService,
	}
}

// Create handles POST /api/v1/users
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req request.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	user, err := h.usersService.CreateUser(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.UserFromModel(user))
}

// Login handles POST /api/v1/auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	if req.Username == "" {
		WriteError(w, NewInvalidRequestError("username is required"))
		return
	}
	if req.Password == "" {
		WriteError(w, NewInvalidRequestError("password is required"))
		return
	}

	session, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.AuthResponseFromSession(session))
}

// List handles GET /api/v1/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.usersService.ListUsers(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UsersFromModel(list))
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.UserID(mux.Vars(r)["id"])

	user, err := h.usersService.LookupUser(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// GetMe handles GET /api/v1/users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// Update handles PATCH /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := model.UserID(mux.Vars(r)["id"])
	caller := middleware.MustGetUser(r.Context())
	if caller.ID != id {
		WriteError(w, NewInvalidRequestError("cannot update another user"))
		return
	}

	var req request.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}

	user, err := h.usersService.UpdateUser(r.Context(), id, users.UpdateParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, response.UserFromModel(user))
}

// Delete handles DELETE /api/v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := model.UserID(mux.Vars(r)["id"])
	caller := middleware.MustGetUser(r.Context())
	if caller.ID != id {
		WriteError(w, NewInvalidRequestError("cannot delete another user"))
		return
	}

	if err := h.usersService.DeleteUser(r.Context(), id); err != nil {
		WriteError(w, err)
		return
	}
	response.NoContent(w)
}
