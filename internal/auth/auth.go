// Package auth gates config-mutation endpoints. Callers exchange
// credentials for an HS256 JWT and present it as a Bearer token; the
// decision endpoint stays unauthenticated since it is called by edge
// infrastructure.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service issues and validates tokens against one configured operator
// credential. The password check is a real bcrypt comparison.
type Service struct {
	secret       []byte
	user         string
	passwordHash string
	tokenTTL     time.Duration
}

func NewService(secret, user, passwordHash string, tokenTTL time.Duration) *Service {
	return &Service{
		secret:       []byte(secret),
		user:         user,
		passwordHash: passwordHash,
		tokenTTL:     tokenTTL,
	}
}

// IssueToken verifies the credentials and returns a signed JWT with sub,
// iat and exp claims.
func (s *Service) IssueToken(username, password string) (string, error) {
	if username != s.user {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses and verifies a token, returning the subject claim.
func (s *Service) Validate(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}

// RequireAuth is chi middleware rejecting requests without a valid Bearer
// token.
func (s *Service) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := s.Validate(strings.TrimPrefix(header, "Bearer ")); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashPassword is a helper for provisioning the operator credential.
func HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
