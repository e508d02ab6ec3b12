package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Manager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewManager(accessSecret, refreshSecret string) *Manager {
	return &Manager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     24 * time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}
}

// IssuePair returns a fresh access/refresh token pair for the user.
func (m *Manager) IssuePair(userID string) (access, refresh string, err error) {
	if access, err = m.sign(userID, m.AccessSecret, m.AccessTTL); err != nil {
		return "", "", err
	}
	if refresh, err = m.sign(userID, m.RefreshSecret, m.RefreshTTL); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (m *Manager) sign(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (m *Manager) VerifyAccess(token string) (userID string, err error) {
	return verify(token, m.AccessSecret)
}

func (m *Manager) VerifyRefresh(token string) (userID string, err error) {
	return verify(token, m.RefreshSecret)
}

func verify(token string, secret []byte) (string, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
