package handlers

import (
	"context"
	"net/http"

	"roadtrip-server/middleware"
)

type accountService interface {
	Register(ctx context.Context, username, email, password string) (string, error)
	Login(ctx context.Context, username, password string) (string, error)
}

type AuthHandler struct {
	accounts accountService
}

func NewAuthHandler(accounts accountService) *AuthHandler {
	return &AuthHandler{accounts: accounts}
}

func (h *AuthHandler) RegisterTraveler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &input) {
		return
	}

	travelerID, err := h.accounts.Register(r.Context(), input.Username, input.Email, input.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"travelerID": travelerID})
}

func (h *AuthHandler) LoginTraveler(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &input) {
		return
	}
	token, err := h.accounts.Login(r.Context(), input.Username, input.Password)
	if err != nil {
		middleware.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
