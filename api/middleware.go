package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/shaj13/go-guardian/auth"
	"github.com/shaj13/go-guardian/auth/strategies/basic"
	"github.com/shaj13/go-guardian/auth/strategies/bearer"
	"github.com/shaj13/go-guardian/store"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is the lifetime of an administrator token
const DefaultTokenTTL = 24 * time.Hour

// AdminAuth authenticates the single configured administrator. Login uses
// basic credentials checked against a bcrypt hash; every other call carries
// the HS256 token handed out by CreateToken.
type AdminAuth struct {
	Username     string
	PasswordHash string
	Secret       []byte
	TokenTTL     time.Duration
	Now          func() time.Time

	authenticator auth.Authenticator
}

// SetupGoGuardian sets up the go-guardian strategies
func (a *AdminAuth) SetupGoGuardian() {
	if a.Now == nil {
		a.Now = time.Now
	}
	if a.TokenTTL <= 0 {
		a.TokenTTL = DefaultTokenTTL
	}
	a.authenticator = auth.New()
	cache := store.NewFIFO(context.Background(), a.TokenTTL)
	basicStrategy := basic.New(a.ValidateUser, cache)
	tokenStrategy := bearer.New(a.ValidateToken, cache)

	a.authenticator.EnableStrategy(basic.StrategyKey, basicStrategy)
	a.authenticator.EnableStrategy(bearer.CachedStrategyKey, tokenStrategy)
}

// Middleware rejects requests without valid administrator credentials.
// Browsers cannot set headers on a websocket handshake, so a token query
// parameter is accepted in place of the Authorization header.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			if token := r.URL.Query().Get("token"); token != "" {
				r = r.Clone(r.Context())
				r.Header.Set("Authorization", "Bearer "+token)
			}
		}
		user, err := a.authenticator.Authenticate(r)
		if err != nil {
			zap.S().Warnw("unauthorized", "url", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		zap.S().Debugw("administrator authenticated", "user", user.UserName())
		next.ServeHTTP(w, r)
	})
}

// CreateToken exchanges basic credentials for a signed token
func (a *AdminAuth) CreateToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	username, password, ok := r.BasicAuth()
	if !ok {
		http.Error(w, "basic auth failed", http.StatusUnauthorized)
		return
	}
	if _, err := a.ValidateUser(r.Context(), r, username, password); err != nil {
		zap.S().Warnw("administrator login failed", "error", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	now := a.Now()
	expiresAt := now.Add(a.TokenTTL)
	claims := jwt.MapClaims{
		"sub":   username,
		"scope": "admin",
		"typ":   "access",
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
	if err != nil {
		http.Error(w, "token generation failed", http.StatusInternalServerError)
		return
	}

	b, err := json.Marshal(map[string]interface{}{
		"token":     signed,
		"expiresAt": expiresAt.UTC(),
	})
	if err != nil {
		http.Error(w, "failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(b)
}

// ValidateUser checks basic credentials against the configured administrator
func (a *AdminAuth) ValidateUser(_ context.Context, _ *http.Request, username, password string) (auth.Info, error) {
	if a.PasswordHash == "" {
		return nil, errors.New("administrator login is not configured")
	}
	usernameHash := sha256.Sum256([]byte(username))
	expectedUsernameHash := sha256.Sum256([]byte(a.Username))
	usernameMatch := subtle.ConstantTimeCompare(usernameHash[:], expectedUsernameHash[:]) == 1

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("failed to compare password")
	}
	if !usernameMatch {
		return nil, fmt.Errorf("invalid credentials")
	}
	return auth.NewDefaultUser(username, username, nil, nil), nil
}

// ValidateToken verifies a token issued by CreateToken
func (a *AdminAuth) ValidateToken(_ context.Context, _ *http.Request, tokenString string) (auth.Info, error) {
	if len(a.Secret) == 0 {
		return nil, errors.New("token secret is not configured")
	}
	token, err := jwt.Parse(strings.TrimSpace(tokenString), func(t *jwt.Token) (interface{}, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.Now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims["scope"] != "admin" {
		return nil, errors.New("token is not an administrator token")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}
	return auth.NewDefaultUser(sub, sub, nil, nil), nil
}
