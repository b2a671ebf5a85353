package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// fakeGitHub serves a token endpoint and a /user endpoint.
func fakeGitHub(t *testing.T, userStatus int, userBody string) *GitHubProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"bad_verification_code"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"gho_test","token_type":"bearer"}`))
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gho_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(userStatus)
		w.Write([]byte(userBody))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")
	p.config.Endpoint = oauth2.Endpoint{
		AuthURL:  srv.URL + "/login/oauth/authorize",
		TokenURL: srv.URL + "/login/oauth/access_token",
	}
	p.userURL = srv.URL + "/user"
	return p
}

func TestGitHubProvider_Enabled(t *testing.T) {
	assert.True(t, NewGitHubProvider("id", "secret", "").Enabled())
	assert.False(t, NewGitHubProvider("", "secret", "").Enabled())
	assert.False(t, NewGitHubProvider("id", "", "").Enabled())

	var nilProvider *GitHubProvider
	assert.False(t, nilProvider.Enabled())
}

func TestGitHubProvider_AuthURLCarriesState(t *testing.T) {
	p := NewGitHubProvider("client-id", "client-secret", "http://localhost:8080/auth/github/callback")

	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "github.com", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "http://localhost:8080/auth/github/callback", q.Get("redirect_uri"))
}

func TestGitHubProvider_Exchange(t *testing.T) {
	p := fakeGitHub(t, http.StatusOK, `{"id":42,"login":"octo","email":"octo@example.com","avatar_url":"https://a/42"}`)

	user, err := p.Exchange(context.Background(), "good-code")

	require.NoError(t, err)
	assert.Equal(t, &GitHubUser{ID: 42, Login: "octo", Email: "octo@example.com", AvatarURL: "https://a/42"}, user)
}

func TestGitHubProvider_ExchangeErrors(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		status int
		body   string
	}{
		{"rejected code", "bad-code", http.StatusOK, `{}`},
		{"user API error", "good-code", http.StatusInternalServerError, `{}`},
		{"malformed user", "good-code", http.StatusOK, `{"id":`},
		{"zero id", "good-code", http.StatusOK, `{"id":0,"login":"ghost"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fakeGitHub(t, tt.status, tt.body)

			user, err := p.Exchange(context.Background(), tt.code)

			assert.Error(t, err)
			assert.Nil(t, user)
		})
	}
}
