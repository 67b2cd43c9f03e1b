package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/aretw0/pinboard/pkg/adapters/memory"
	"github.com/aretw0/pinboard/pkg/auth"
	"github.com/aretw0/pinboard/pkg/core"
)

// fakeProvider answers the token and userinfo endpoints of an OAuth2 provider.
type fakeProvider struct {
	*httptest.Server
	email string
	codes []string
}

func newFakeProvider(t *testing.T, email string) *fakeProvider {
	t.Helper()
	p := &fakeProvider{email: email}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		p.codes = append(p.codes, r.Form.Get("code"))
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":     "1234",
			"email":   p.email,
			"name":    "Ada Lovelace",
			"picture": "https://example.com/ada.png",
		})
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Close)
	return p
}

func newHandler(t *testing.T, p *fakeProvider, users auth.UserRegistrar) (*auth.Handler, *auth.Sessions) {
	t.Helper()
	s := newSessions(t)
	h, err := auth.NewHandler(auth.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   p.URL + "/authorize",
			TokenURL:  p.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
		UserInfoURL: p.URL + "/userinfo",
	}, users, s, auth.WithHTTPClient(p.Client()))
	require.NoError(t, err)
	return h, s
}

func TestNewHandler_Validation(t *testing.T) {
	s := newSessions(t)
	svc := core.NewService(memory.NewRepository())

	_, err := auth.NewHandler(auth.Config{RedirectURL: "http://localhost/auth/callback"}, svc, s)
	assert.Error(t, err, "missing credentials")

	_, err = auth.NewHandler(auth.Config{ClientID: "c", ClientSecret: "s", RedirectURL: "not a url"}, svc, s)
	assert.Error(t, err, "bad redirect")

	_, err = auth.NewHandler(auth.Config{ClientID: "c", ClientSecret: "s", RedirectURL: "http://localhost/auth/callback"}, svc, s)
	assert.NoError(t, err)
}

func TestHandler_SignIn(t *testing.T) {
	p := newFakeProvider(t, "ada@example.com")
	h, _ := newHandler(t, p, core.NewService(memory.NewRepository()))
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/signin", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(loc.String(), p.URL+"/authorize"))
	q := loc.Query()
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.Equal(t, "client", q.Get("client_id"))

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "pinboard_oauth_state" {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.Equal(t, state.Value, q.Get("state"))
}

func TestHandler_Callback(t *testing.T) {
	p := newFakeProvider(t, "ada@example.com")
	svc := core.NewService(memory.NewRepository())
	h, sessions := newHandler(t, p, svc)
	mux := http.NewServeMux()
	h.Register(mux)

	callback := func(state, cookieState, code string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?state="+state+"&code="+code, nil)
		if cookieState != "" {
			req.AddCookie(&http.Cookie{Name: "pinboard_oauth_state", Value: cookieState})
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("state mismatch", func(t *testing.T) {
		rec := callback("abc", "xyz", "good-code")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, p.codes, "code must not be exchanged")
	})

	t.Run("missing state cookie", func(t *testing.T) {
		rec := callback("abc", "", "good-code")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("exchange failure", func(t *testing.T) {
		rec := callback("abc", "abc", "bad-code")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, []string{"bad-code"}, p.codes)
	})

	t.Run("success", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			rec := callback("abc", "abc", "good-code")
			require.Equal(t, http.StatusFound, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))

			var session *http.Cookie
			for _, c := range rec.Result().Cookies() {
				if c.Name == auth.CookieName {
					session = c
				}
			}
			require.NotNil(t, session)
			claims, err := sessions.Parse(session.Value)
			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", claims.Email)
			assert.Equal(t, "Ada Lovelace", claims.Name)
		}

		u, err := svc.EnsureUser(t.Context(), core.User{Email: "ada@example.com"})
		require.NoError(t, err)
		assert.Equal(t, "google", u.Provider)
		require.NotNil(t, u.Name)
		assert.Equal(t, "Ada Lovelace", *u.Name)
	})

	t.Run("provider error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?error=access_denied", nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusFound, rec.Code)
	})
}

func TestHandler_SignOut(t *testing.T) {
	p := newFakeProvider(t, "ada@example.com")
	h, _ := newHandler(t, p, core.NewService(memory.NewRepository()))
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/signout", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].MaxAge < 0)
}
