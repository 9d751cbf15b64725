package session

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"log"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "identityradio-service"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotAdmin           = errors.New("you don't have admin privileges")
)

// AdminStore is the part of storage used for admin checks.
type AdminStore interface {
	FindAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Claims are the session token claims. Subject is the AuthUser ID.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AdminResolver issues and checks admin sessions.
type AdminResolver struct {
	Store  AdminStore
	Secret []byte
	TTL    time.Duration
}

func NewAdminResolver(store AdminStore, secret string) *AdminResolver {
	return &AdminResolver{Store: store, Secret: []byte(secret), TTL: config.AdminTokenTTL}
}

// HashPassword is used by the admin CLI when creating accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Login checks the password and returns a session token. Only administrators
// may log in.
func (a *AdminResolver) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.Store.FindAuthUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("look up account: %w", err)
	}
	if user == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	isAdmin, err := a.Store.IsAdmin(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("check admin: %w", err)
	}
	if !isAdmin {
		return "", ErrNotAdmin
	}

	return a.issue(user)
}

func (a *AdminResolver) issue(user *models.AuthUser) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.Secret)
}

// ParseToken validates the token and returns the session's user ID.
func (a *AdminResolver) ParseToken(tokenString string) (string, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return "", err
	}
	if !tok.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidClaims
	}
	return claims.Subject, nil
}

// IsAdmin reports whether tokenString is a live session of an administrator.
// It fails closed: every error yields false and is only logged.
func (a *AdminResolver) IsAdmin(ctx context.Context, tokenString string) (string, bool) {
	if tokenString == "" {
		return "", false
	}
	userID, err := a.ParseToken(tokenString)
	if err != nil {
		log.Printf("WARN: rejected session token: %v", err)
		return "", false
	}

	ok, err := a.Store.IsAdmin(ctx, userID)
	if err != nil {
		log.Printf("ERROR: Failed to check admin status for %s: %v", userID, err)
		return "", false
	}
	if !ok {
		return "", false
	}
	return userID, true
}

// BearerToken extracts the token from an "Authorization: Bearer ..." value.
func BearerToken(header string) string {
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
