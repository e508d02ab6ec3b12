package qikink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTokenStore struct {
	mu     sync.Mutex
	token  string
	expiry time.Time
	saves  int
}

func (s *memTokenStore) Load(context.Context) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.expiry, nil
}

func (s *memTokenStore) Save(_ context.Context, token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expiry, s.saves = token, expiry, s.saves+1
	return nil
}

func tokenServer(t *testing.T, token string, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client-1", r.PostForm.Get("ClientId"))
		assert.Equal(t, "secret-1", r.PostForm.Get("client_secret"))
		if hits != nil {
			*hits++
		}
		w.Write([]byte(`{"Accesstoken":"` + token + `","expires_in":3600}`))
	}))
}

func TestTokenManager_InitializeRefreshesWhenEmpty(t *testing.T) {
	var hits int
	srv := tokenServer(t, "fresh", &hits)
	defer srv.Close()

	store := &memTokenStore{}
	m := NewTokenManager(srv.URL, "client-1", "secret-1", store, 2*time.Second)
	require.NoError(t, m.Initialize(context.Background()))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, 1, hits, "one refresh, then served from memory")
	assert.Equal(t, "fresh", store.token, "persisted for the next restart")
}

func TestTokenManager_ReusesPersistedToken(t *testing.T) {
	var hits int
	srv := tokenServer(t, "should-not-be-fetched", &hits)
	defer srv.Close()

	store := &memTokenStore{token: "persisted", expiry: time.Now().Add(time.Hour)}
	m := NewTokenManager(srv.URL, "client-1", "secret-1", store, 2*time.Second)
	require.NoError(t, m.Initialize(context.Background()))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "persisted", tok)
	assert.Equal(t, 0, hits)
}

func TestTokenManager_RefreshesNearExpiry(t *testing.T) {
	var hits int
	srv := tokenServer(t, "renewed", &hits)
	defer srv.Close()

	// inside the safety margin, so it counts as expired
	store := &memTokenStore{token: "stale", expiry: time.Now().Add(30 * time.Second)}
	m := NewTokenManager(srv.URL, "client-1", "secret-1", store, 2*time.Second)
	require.NoError(t, m.Initialize(context.Background()))

	tok, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "renewed", tok)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, store.saves)
}

func TestTokenManager_RefreshFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer srv.Close()

	m := NewTokenManager(srv.URL, "client-1", "secret-1", &memTokenStore{}, 2*time.Second)
	err := m.Initialize(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad credentials")
}
