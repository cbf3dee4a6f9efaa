package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/salesreport/internal/auth"
	"github.com/JonMunkholm/salesreport/internal/logging"
)

// maxCredentialsBody caps the signup and login JSON body.
const maxCredentialsBody = 64 << 10

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// handleSignup creates an account from a JSON {username, password} body.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	user, err := s.auth.Signup(r.Context(), creds.Username, creds.Password)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("user created", "username", user.Username)
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User created successfully"})
}

// handleLogin exchanges valid credentials for an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := decodeCredentials(w, r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	token, err := s.auth.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(r.Context()).Info("user logged in", "username", creds.Username)
	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// decodeCredentials reads the JSON body. A malformed body counts as invalid input.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var creds credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxCredentialsBody)
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		return credentials{}, fmt.Errorf("%w: %v", auth.ErrInvalidInput, err)
	}
	return creds, nil
}
