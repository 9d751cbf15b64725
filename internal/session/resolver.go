// Package session resolves who is calling: the chat identity bound to the
// caller's IP and whether an authenticated session belongs to an administrator.
package session

import (
	"context"
	"errors"
	"fmt"
	"identityradio/backend/internal/config"
	"identityradio/backend/internal/models"
	"log"
	"strings"
)

var (
	ErrUnknownIP       = errors.New("could not determine IP address")
	ErrInvalidUsername = errors.New("username must be 1-32 characters")
)

// UserStore is the part of storage the resolver needs.
type UserStore interface {
	FindChatUserByIP(ctx context.Context, ip string) (*models.ChatUser, error)
	CreateChatUser(ctx context.Context, user *models.ChatUser) error
	TouchChatUser(ctx context.Context, id, country string) (*models.ChatUser, error)
}

// Resolver binds chat identities to caller IPs.
type Resolver struct {
	Users UserStore
}

func NewResolver(users UserStore) *Resolver {
	return &Resolver{Users: users}
}

// Resolve returns the chat user registered for ip, marked online with a fresh
// last_seen. A nil user without error means the caller has not registered yet.
func (r *Resolver) Resolve(ctx context.Context, ip, country string) (*models.ChatUser, error) {
	if ip == "" || ip == UnknownIP {
		return nil, nil
	}

	user, err := r.Users.FindChatUserByIP(ctx, ip)
	if err != nil {
		return nil, fmt.Errorf("look up chat user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	if country == UnknownCountry {
		country = ""
	}
	touched, err := r.Users.TouchChatUser(ctx, user.ID, country)
	if err != nil {
		// Користувач існує, просто статус не оновився
		log.Printf("ERROR: Failed to update presence for %s: %v", user.ID, err)
		return user, nil
	}
	return touched, nil
}

// Register creates a new chat identity for ip. Username collisions are
// allowed: two callers may register the same name.
func (r *Resolver) Register(ctx context.Context, ip, country, username string) (*models.ChatUser, error) {
	if ip == "" || ip == UnknownIP {
		return nil, ErrUnknownIP
	}
	username = strings.TrimSpace(username)
	if username == "" || len([]rune(username)) > config.MaxUsernameLength {
		return nil, ErrInvalidUsername
	}

	user := &models.ChatUser{
		Username:  username,
		IPAddress: ip,
		Status:    models.StatusOnline,
		Country:   country,
	}
	if err := r.Users.CreateChatUser(ctx, user); err != nil {
		return nil, fmt.Errorf("register chat user: %w", err)
	}
	return user, nil
}
