package httpx

import (
	"errors"
	"net/http"

	"github.com/jcmexdev/campify/internal/shop/app/session"
)

// CurrentSession reports who is signed in.
func (h *Handler) CurrentSession(w http.ResponseWriter, _ *http.Request) {
	cur, ok := h.Session.Current()
	if !ok {
		writeJSON(w, http.StatusOK, SessionResponse{})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{LoggedIn: true, User: &cur.Identity})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	res := h.Session.Login(r.Context(), req.Email, req.Password)
	status := http.StatusOK
	if !res.Success {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, res)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req session.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.Session.Register(r.Context(), req)
	status := http.StatusCreated
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

// Logout ends the session and sends the browser home with a full navigation.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Logout(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "logout could not clear storage", "error", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.Session.Current(); !ok {
		writeError(w, http.StatusUnauthorized, "not_logged_in", session.MsgLoginRequired)
		return
	}
	var req session.ProfileUpdate
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.Session.UpdateProfile(r.Context(), req)
	if !res.Success {
		writeJSON(w, http.StatusBadRequest, res)
		return
	}
	cur, _ := h.Session.Current()
	writeJSON(w, http.StatusOK, SessionResponse{LoggedIn: true, User: &cur.Identity})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req session.PasswordChange
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.Session.ChangePassword(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, session.Result{Success: true, Message: session.MsgPasswordUpdated})
	case errors.Is(err, session.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, "not_logged_in", session.MsgLoginRequired)
	case errors.Is(err, session.ErrPasswordMismatch):
		writeError(w, http.StatusBadRequest, "password_mismatch", session.MsgPasswordMismatch)
	case errors.Is(err, session.ErrPasswordRequired):
		writeError(w, http.StatusBadRequest, "password_required", session.MsgPasswordRequired)
	default:
		writeBackendError(w, err, "password_change_failed", session.MsgPasswordFailed)
	}
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeResult(w, h.Session.RequestReset(r.Context(), req.Email))
}

// ResetPassword completes a reset; the token comes from the link's query string.
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeResult(w, h.Session.CompleteReset(r.Context(), r.URL.Query().Get("token"), req.Password))
}

func writeResult(w http.ResponseWriter, res session.Result) {
	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}
