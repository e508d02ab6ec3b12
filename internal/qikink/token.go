package qikink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/merchkart/storefront/internal/redisx"
)

// TokenStore persists the access token so a restart reuses a live token
// instead of burning a refresh.
type TokenStore interface {
	// Load returns ("", zero time, nil) when no token is stored.
	Load(ctx context.Context) (token string, expiry time.Time, err error)
	Save(ctx context.Context, token string, expiry time.Time) error
}

type storedToken struct {
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
}

type RedisTokenStore struct{ Client *redis.Client }

func (s *RedisTokenStore) Load(ctx context.Context) (string, time.Time, error) {
	raw, err := s.Client.Get(ctx, redisx.KeyQikinkToken).Result()
	if errors.Is(err, redis.Nil) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	var st storedToken
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return "", time.Time{}, nil // stale format, refresh instead
	}
	return st.Token, st.Expiry, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, token string, expiry time.Time) error {
	b, err := json.Marshal(storedToken{Token: token, Expiry: expiry})
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, redisx.KeyQikinkToken, b, 0).Err()
}

// expiryMargin: refresh slightly before the provider-reported expiry so an
// in-flight order create never carries a token that dies mid-request.
const expiryMargin = time.Minute

// TokenManager is the credential cache for the Qikink API: it fetches a
// bearer token with the client credentials, refreshes it on expiry, and
// persists it through a TokenStore.
type TokenManager struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Store        TokenStore
	HTTP         *http.Client

	mu     sync.Mutex
	token  string
	expiry time.Time
}

func NewTokenManager(baseURL, clientID, clientSecret string, store TokenStore, timeout time.Duration) *TokenManager {
	return &TokenManager{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Store:        store,
		HTTP:         &http.Client{Timeout: timeout},
	}
}

// Initialize loads the persisted token, refreshing immediately if it is
// missing or expired. Call once at startup.
func (m *TokenManager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, expiry, err := m.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load qikink token: %w", err)
	}
	m.token, m.expiry = token, expiry
	if m.expiredLocked() {
		return m.refreshLocked(ctx)
	}
	return nil
}

// Token returns a live access token, refreshing it first when expired.
func (m *TokenManager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.expiredLocked() {
		if err := m.refreshLocked(ctx); err != nil {
			return "", err
		}
	}
	return m.token, nil
}

func (m *TokenManager) expiredLocked() bool {
	return m.token == "" || !time.Now().Add(expiryMargin).Before(m.expiry)
}

func (m *TokenManager) refreshLocked(ctx context.Context) error {
	form := url.Values{
		"ClientId":      {m.ClientID},
		"client_secret": {m.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/api/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("refresh qikink token: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("refresh qikink token: status %d: %s", resp.StatusCode, apiMessage(raw))
	}

	var out struct {
		AccessToken string `json:"Accesstoken"`
		ExpiresIn   int    `json:"expires_in"` // seconds
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("refresh qikink token: %w", err)
	}
	if out.AccessToken == "" {
		return errors.New("refresh qikink token: Accesstoken missing in response")
	}

	m.token = out.AccessToken
	m.expiry = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	if err := m.Store.Save(ctx, m.token, m.expiry); err != nil {
		return fmt.Errorf("persist qikink token: %w", err)
	}
	return nil
}
