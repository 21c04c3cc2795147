package admin

import (
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"GoldPledge/internal/auth"
	"GoldPledge/internal/model"
	"GoldPledge/internal/repo"
	"GoldPledge/internal/respond"
)

type UsersHandler struct {
	Repo repo.Repository
	Log  *logrus.Logger
}

type CreateUserRequest struct {
	Username string     `json:"username"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

// UpdateUserRequest changes only the fields that are present.
type UpdateUserRequest struct {
	Username *string     `json:"username"`
	Password *string     `json:"password"`
	Role     *model.Role `json:"role"`
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Repo.ListUsers(r.Context())
	if err != nil {
		writeStoreError(w, h.Log, err, "Failed to fetch users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	respond.JSON(w, http.StatusOK, users)
}

func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid user data")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := auth.ValidateCredentials(req.Username, req.Password); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if !req.Role.Valid() {
		respond.Error(w, http.StatusBadRequest, "role must be admin or user")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "Error hashing password")
		return
	}
	u, err := h.Repo.CreateUser(r.Context(), req.Username, hash, req.Role)
	if err != nil {
		writeStoreError(w, h.Log, err, "Failed to create user")
		return
	}
	respond.JSON(w, http.StatusCreated, u)
}

func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Invalid user data")
		return
	}

	u, err := h.Repo.GetUser(r.Context(), id)
	if err != nil {
		writeStoreError(w, h.Log, err, "Failed to update user")
		return
	}
	if req.Username != nil {
		u.Username = strings.TrimSpace(*req.Username)
		if u.Username == "" {
			respond.Error(w, http.StatusBadRequest, "username must not be empty")
			return
		}
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			respond.Error(w, http.StatusBadRequest, "role must be admin or user")
			return
		}
		if s, _ := auth.SessionFrom(r.Context()); s.UserID == id && *req.Role != model.RoleAdmin {
			respond.Error(w, http.StatusBadRequest, "you cannot remove your own admin role")
			return
		}
		u.Role = *req.Role
	}
	if req.Password != nil {
		if err := auth.ValidateCredentials(u.Username, *req.Password); err != nil {
			respond.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		if u.PasswordHash, err = auth.HashPassword(*req.Password); err != nil {
			respond.Error(w, http.StatusInternalServerError, "Error hashing password")
			return
		}
	}

	u, err = h.Repo.UpdateUser(r.Context(), u)
	if err != nil {
		writeStoreError(w, h.Log, err, "Failed to update user")
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if s, _ := auth.SessionFrom(r.Context()); s.UserID == id {
		respond.Error(w, http.StatusBadRequest, "you cannot delete your own account")
		return
	}
	if err := h.Repo.DeleteUser(r.Context(), id); err != nil {
		writeStoreError(w, h.Log, err, "Failed to delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
