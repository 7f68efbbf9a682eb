package httpapi

import (
	"net/http"

	"fitbook.org/internal/audit"
	"fitbook.org/internal/auth"
)

type signupRequest struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phoneNumber"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type googleLoginRequest struct {
	IDToken string `json:"idToken"`
}

type tokenResponse struct {
	User   *auth.User     `json:"user"`
	Tokens auth.TokenPair `json:"tokens"`
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req signupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.authSvc.Register(r.Context(), auth.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.signup", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	writeJSON(w, http.StatusCreated, user)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.authSvc.ValidateCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	pair, err := a.authSvc.Login(r.Context(), user)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"method":  "password",
	})
	writeJSON(w, http.StatusOK, tokenResponse{User: user, Tokens: pair})
}

// handleRefresh derives the subject from the presented refresh token itself,
// then runs the single-use rotation.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	claims, err := a.tokens.VerifyRefreshClaims(req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, auth.ErrUnauthorized)
		return
	}
	pair, err := a.tokens.Refresh(r.Context(), claims.Subject, req.RefreshToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.refresh", map[string]any{
		"user_id": claims.Subject,
	})
	writeJSON(w, http.StatusOK, pair)
}

// handleLogout revokes the stored refresh hash. Repeated calls succeed.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		handleAuthError(w, r, auth.ErrUnauthorized)
		return
	}
	if err := a.tokens.Logout(r.Context(), user.ID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"user_id": user.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"status": "logged_out"})
}

func (a *API) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req googleLoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.authSvc.ExchangeExternalToken(r.Context(), req.IDToken)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	pair, err := a.authSvc.Login(r.Context(), user)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id": user.ID,
		"method":  "google",
	})
	writeJSON(w, http.StatusOK, tokenResponse{User: user, Tokens: pair})
}
