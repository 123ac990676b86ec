package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/huddle/internal/reset"
	"github.com/dukerupert/huddle/internal/store"
)

// ForgotPasswordMessage is returned whether or not the account exists.
const ForgotPasswordMessage = "If an account exists for that email, a reset code has been sent."

const invalidCodeMessage = "Invalid or expired code"

// PasswordResetHandler exposes the reset flow. Responses use a "message"
// key rather than "error".
type PasswordResetHandler struct {
	svc    *reset.Service
	logger *slog.Logger
}

func NewPasswordResetHandler(svc *reset.Service, logger *slog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{svc: svc, logger: logger.With("component", "password_reset")}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// ForgotPassword handles POST /api/auth/forgot-password.
func (h *PasswordResetHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	email := store.NormalizeEmail(req.Email)
	if email == "" {
		writeMessage(w, http.StatusBadRequest, "Email is required")
		return
	}

	if err := h.svc.RequestReset(r.Context(), email); err != nil {
		h.logger.Error("request reset", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	writeMessage(w, http.StatusOK, ForgotPasswordMessage)
}

// VerifyResetCode handles POST /api/auth/verify-reset-code.
func (h *PasswordResetHandler) VerifyResetCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if store.NormalizeEmail(req.Email) == "" || req.Code == "" {
		writeMessage(w, http.StatusBadRequest, "Email and code are required")
		return
	}
	if !reset.ValidCode(req.Code) {
		writeMessage(w, http.StatusBadRequest, "Code must be 6 digits")
		return
	}

	resetToken, err := h.svc.VerifyCode(r.Context(), req.Email, req.Code)
	if errors.Is(err, reset.ErrInvalidCode) {
		writeMessage(w, http.StatusBadRequest, invalidCodeMessage)
		return
	}
	if err != nil {
		h.logger.Error("verify reset code", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Code verified",
		"resetToken": resetToken,
	})
}

// ResetPassword handles POST /api/auth/reset-password.
func (h *PasswordResetHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email      string `json:"email"`
		ResetToken string `json:"resetToken"`
		Password   string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request")
		return
	}
	if store.NormalizeEmail(req.Email) == "" || req.ResetToken == "" {
		writeMessage(w, http.StatusBadRequest, "Email and reset token are required")
		return
	}
	if msg := validatePassword(req.Password); msg != "" {
		writeMessage(w, http.StatusBadRequest, strings.ToUpper(msg[:1])+msg[1:])
		return
	}

	err := h.svc.ResetPassword(r.Context(), req.Email, req.ResetToken, req.Password)
	if errors.Is(err, reset.ErrInvalidResetToken) {
		writeMessage(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	if err != nil {
		h.logger.Error("reset password", "error", err)
		writeMessage(w, http.StatusInternalServerError, "Something went wrong. Please try again.")
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset. Please sign in.")
}
