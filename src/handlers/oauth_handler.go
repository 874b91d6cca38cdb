package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/finmail/backend/src/config"
	"github.com/username/finmail/backend/src/database"
	"github.com/username/finmail/backend/src/logger"
	"github.com/username/finmail/backend/src/model"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

var (
	googleOauthConfig *oauth2.Config
	// Single-instance deployment: one random state per process is enough to
	// reject forged callbacks.
	oauthStateString = uuid.NewString()
)

func InitializeGoogleOAuthConfig() {
	googleOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.GoogleRedirectURL,
		ClientID:     config.Cfg.GoogleClientID,
		ClientSecret: config.Cfg.GoogleClientSecret,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

type googleUserInfo struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified_email"`
}

func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, googleOauthConfig.AuthCodeURL(oauthStateString), http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if r.FormValue("state") != oauthStateString {
		logger.L.Warn("Invalid OAuth state from Google callback")
		redirectSignin(w, r, "invalid_state")
		return
	}

	token, err := googleOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		logger.L.Error("Failed to exchange code for token", "error", err)
		redirectSignin(w, r, "token_exchange_failed")
		return
	}

	googleUser, err := fetchGoogleUser(r.Context(), token)
	if err != nil {
		logger.L.Error("Failed to fetch Google user info", "error", err)
		redirectSignin(w, r, "userinfo_failed")
		return
	}
	if !googleUser.Verified {
		redirectSignin(w, r, "email_not_verified_by_google")
		return
	}

	user, err := model.GetUserByEmail(database.DB, googleUser.Email)
	switch {
	case err != nil:
		// First login through Google. The email doubles as the username so
		// the uniqueness constraint is satisfied without a pick-a-name step.
		user = &model.User{
			Username:        googleUser.Email,
			Email:           googleUser.Email,
			AuthProvider:    "google",
			IsEmailVerified: true,
		}
		if err := user.CreateUser(database.DB); err != nil {
			logger.L.Error("Failed to create Google user", "error", err)
			redirectSignin(w, r, "user_creation_failed")
			return
		}
	case user.AuthProvider == "local" || user.Password != "":
		logger.L.Warn("Google login attempt for existing local account", "email", user.Email)
		redirectSignin(w, r, "email_already_exists_local")
		return
	}

	appToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", user.ID))
	if err != nil {
		logger.L.Error("Failed to generate app token for Google user", "error", err)
		redirectSignin(w, r, "token_generation_failed")
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/google/callback?token=%s&email=%s",
		config.Cfg.FrontendBaseURL, appToken, url.QueryEscape(user.Email))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

func fetchGoogleUser(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		googleUserInfoURL+"?access_token="+url.QueryEscape(token.AccessToken), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}
	return &info, nil
}

func redirectSignin(w http.ResponseWriter, r *http.Request, errCode string) {
	http.Redirect(w, r, "/signin?error="+errCode, http.StatusTemporaryRedirect)
}
