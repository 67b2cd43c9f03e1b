package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/aretw0/pinboard/pkg/core"
)

const (
	stateCookie = "pinboard_oauth_state"
	// GoogleUserInfoURL is the OpenID userinfo endpoint of the default provider.
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Config describes the identity provider.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Provider     string          // stored on users; default "google"
	Endpoint     oauth2.Endpoint // default endpoints.Google
	UserInfoURL  string          // default GoogleUserInfoURL
	Scopes       []string        // default openid, email, profile
}

// UserRegistrar records signed-in accounts. core.Service satisfies it.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, u core.User) (core.User, error)
}

// Handler serves the sign-in, callback and sign-out routes.
type Handler struct {
	oauth       *oauth2.Config
	provider    string
	userInfoURL string
	users       UserRegistrar
	sessions    *Sessions
	httpClient  *http.Client
	logger      *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHTTPClient sets the client used for the token exchange and userinfo calls.
func WithHTTPClient(c *http.Client) HandlerOption {
	return func(h *Handler) { h.httpClient = c }
}

// WithHandlerLogger sets the logger.
func WithHandlerLogger(l *slog.Logger) HandlerOption {
	return func(h *Handler) { h.logger = l }
}

// NewHandler validates cfg and creates a Handler.
func NewHandler(cfg Config, users UserRegistrar, sessions *Sessions, opts ...HandlerOption) (*Handler, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("oauth client id and secret are required")
	}
	if !govalidator.IsURL(cfg.RedirectURL) {
		return nil, fmt.Errorf("invalid oauth redirect url %q", cfg.RedirectURL)
	}
	if users == nil || sessions == nil {
		return nil, errors.New("user registrar and sessions are required")
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = endpoints.Google
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = GoogleUserInfoURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "email", "profile"}
	}
	if cfg.Provider == "" {
		cfg.Provider = "google"
	}

	h := &Handler{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     cfg.Endpoint,
			Scopes:       cfg.Scopes,
		},
		provider:    cfg.Provider,
		userInfoURL: cfg.UserInfoURL,
		users:       users,
		sessions:    sessions,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Register mounts the auth routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /auth/signin", h.handleSignIn)
	mux.HandleFunc("GET /auth/callback", h.handleCallback)
	mux.HandleFunc("GET /auth/signout", h.handleSignOut)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   h.sessions.secure,
		SameSite: http.SameSiteLaxMode,
	})
	url := h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	http.Redirect(w, r, url, http.StatusFound)
}

// userInfo is the OpenID Connect userinfo response.
type userInfo struct {
	Sub     string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		h.logger.Warn("sign-in refused by provider", "error", e)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	c, err := r.Cookie(stateCookie)
	if err != nil || q.Get("state") == "" || subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
		http.Error(w, "invalid oauth state", http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth", MaxAge: -1})

	ctx := r.Context()
	if h.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, h.httpClient)
	}

	tok, err := h.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		h.logger.Error("oauth code exchange failed", "error", err)
		http.Error(w, "sign-in failed", http.StatusBadGateway)
		return
	}

	info, err := h.fetchUserInfo(ctx, tok)
	if err != nil {
		h.logger.Error("fetch userinfo failed", "error", err)
		http.Error(w, "sign-in failed", http.StatusBadGateway)
		return
	}

	u := core.User{Email: info.Email, Provider: h.provider}
	if info.Name != "" {
		u.Name = &info.Name
	}
	if info.Picture != "" {
		u.Image = &info.Picture
	}
	stored, err := h.users.EnsureUser(ctx, u)
	if err != nil {
		h.logger.Error("register user failed", "email", info.Email, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrValidation) {
			status = http.StatusBadRequest
		}
		http.Error(w, "sign-in failed", status)
		return
	}

	token, err := h.sessions.Issue(stored)
	if err != nil {
		h.logger.Error("issue session failed", "error", err)
		http.Error(w, "sign-in failed", http.StatusInternalServerError)
		return
	}
	h.sessions.SetCookie(w, token)
	h.logger.Info("signed in", "email", stored.Email, "sub", info.Sub)
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *Handler) fetchUserInfo(ctx context.Context, tok *oauth2.Token) (userInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return userInfo{}, err
	}
	resp, err := h.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return userInfo{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return userInfo{}, fmt.Errorf("userinfo: unexpected status %d", resp.StatusCode)
	}

	var info userInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return userInfo{}, fmt.Errorf("userinfo: %w", err)
	}
	if info.Email == "" {
		return userInfo{}, errors.New("userinfo: no email")
	}
	return info, nil
}

func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
