package http

import (
	"context"
	"net/http"

	"budgetplaner/internal/auth"
	"budgetplaner/internal/core"
	applog "budgetplaner/internal/log"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createUserRequest struct {
	auth.Registration
	Role core.Role `json:"role"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	u, err := s.deps.Auth.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// handleLogin issues a session and then books whatever recurring
// definitions came due since the owner's last visit.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	sess, err := s.deps.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if s.deps.Processor != nil {
		ctx := context.WithoutCancel(r.Context())
		if res, err := s.deps.Processor.ProcessOwner(ctx, sess.User.ID, s.now()); err != nil {
			applog.FromContext(ctx).ErrorContext(ctx, "Recurring evaluation at login failed",
				applog.FieldOwnerID, sess.User.ID,
				applog.FieldError, err)
		} else if len(res.Created) > 0 {
			applog.FromContext(ctx).InfoContext(ctx, "Booked recurring transactions at login",
				applog.FieldOwnerID, sess.User.ID,
				"created", len(res.Created))
		}
	}

	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if req.Role == "" {
		req.Role = core.RoleUser
	}
	u, err := s.deps.Auth.CreateUser(r.Context(), req.Registration, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}
