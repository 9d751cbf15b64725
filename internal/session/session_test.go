package session_test

import (
	"context"
	"errors"
	"identityradio/backend/internal/models"
	"identityradio/backend/internal/session"
	"net/http"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"cloudflare wins", map[string]string{"cf-connecting-ip": "1.1.1.1", "x-forwarded-for": "2.2.2.2"}, "1.1.1.1"},
		{"first forwarded entry", map[string]string{"x-forwarded-for": " 3.3.3.3 , 4.4.4.4"}, "3.3.3.3"},
		{"no headers", nil, session.UnknownIP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, session.ClientIP(h))
		})
	}
}

func TestClientCountry(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, session.UnknownCountry, session.ClientCountry(h))
	h.Set("cf-ipcountry", "UA")
	assert.Equal(t, "UA", session.ClientCountry(h))
}

func TestResolve_ExistingUserIsTouched(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	existing := &models.ChatUser{ID: "u1", Username: "alice", Status: models.StatusOffline}
	touched := &models.ChatUser{ID: "u1", Username: "alice", Status: models.StatusOnline, Country: "UA"}

	store.On("FindChatUserByIP", ctx, "1.2.3.4").Return(existing, nil)
	store.On("TouchChatUser", ctx, "u1", "UA").Return(touched, nil)

	user, err := session.NewResolver(store).Resolve(ctx, "1.2.3.4", "UA")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnline, user.Status)
	assert.Equal(t, "UA", user.Country)
	store.AssertExpectations(t)
}

func TestResolve_UnknownCountryKeepsStoredValue(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	existing := &models.ChatUser{ID: "u1", Country: "PL"}

	store.On("FindChatUserByIP", ctx, "1.2.3.4").Return(existing, nil)
	store.On("TouchChatUser", ctx, "u1", "").Return(existing, nil)

	_, err := session.NewResolver(store).Resolve(ctx, "1.2.3.4", session.UnknownCountry)
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestResolve_NoUser(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("FindChatUserByIP", ctx, "1.2.3.4").Return(nil, nil)

	user, err := session.NewResolver(store).Resolve(ctx, "1.2.3.4", "UA")
	require.NoError(t, err)
	assert.Nil(t, user)
	store.AssertNotCalled(t, "TouchChatUser", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_UnknownIPSkipsLookup(t *testing.T) {
	store := new(MockStore)
	user, err := session.NewResolver(store).Resolve(context.Background(), session.UnknownIP, "UA")
	require.NoError(t, err)
	assert.Nil(t, user)
	store.AssertNotCalled(t, "FindChatUserByIP", mock.Anything, mock.Anything)
}

func TestResolve_TouchFailureReturnsStoredUser(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	existing := &models.ChatUser{ID: "u1", Username: "alice"}
	store.On("FindChatUserByIP", ctx, "1.2.3.4").Return(existing, nil)
	store.On("TouchChatUser", ctx, "u1", "UA").Return(nil, errors.New("db down"))

	user, err := session.NewResolver(store).Resolve(ctx, "1.2.3.4", "UA")
	require.NoError(t, err)
	assert.Equal(t, existing, user)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("CreateChatUser", ctx, mock.MatchedBy(func(u *models.ChatUser) bool {
		return u.Username == "alice" && u.IPAddress == "1.2.3.4" && u.Country == "UA"
	})).Return(nil)

	user, err := session.NewResolver(store).Register(ctx, "1.2.3.4", "UA", "  alice  ")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	store.AssertExpectations(t)
}

func TestRegister_Validation(t *testing.T) {
	ctx := context.Background()
	r := session.NewResolver(new(MockStore))

	_, err := r.Register(ctx, "1.2.3.4", "UA", "   ")
	assert.ErrorIs(t, err, session.ErrInvalidUsername)

	_, err = r.Register(ctx, "1.2.3.4", "UA", strings.Repeat("a", 33))
	assert.ErrorIs(t, err, session.ErrInvalidUsername)

	_, err = r.Register(ctx, session.UnknownIP, "UA", "alice")
	assert.ErrorIs(t, err, session.ErrUnknownIP)
}

func newAdminFixture(t *testing.T, admin bool) (*MockStore, *session.AdminResolver) {
	t.Helper()
	hash, err := session.HashPassword("secret-pass")
	require.NoError(t, err)

	store := new(MockStore)
	store.On("FindAuthUserByEmail", mock.Anything, "admin@example.com").
		Return(&models.AuthUser{ID: "a1", Email: "admin@example.com", PasswordHash: hash}, nil)
	store.On("FindAuthUserByEmail", mock.Anything, mock.Anything).Return(nil, nil)
	store.On("IsAdmin", mock.Anything, "a1").Return(admin, nil)

	return store, session.NewAdminResolver(store, "test-secret")
}

func TestLogin_AdminGetsWorkingToken(t *testing.T) {
	ctx := context.Background()
	_, resolver := newAdminFixture(t, true)

	token, err := resolver.Login(ctx, " Admin@Example.com ", "secret-pass")
	require.NoError(t, err)

	userID, ok := resolver.IsAdmin(ctx, token)
	assert.True(t, ok)
	assert.Equal(t, "a1", userID)
}

func TestLogin_Rejections(t *testing.T) {
	ctx := context.Background()

	_, resolver := newAdminFixture(t, true)
	_, err := resolver.Login(ctx, "admin@example.com", "wrong")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, err = resolver.Login(ctx, "nobody@example.com", "secret-pass")
	assert.ErrorIs(t, err, session.ErrInvalidCredentials)

	_, resolver = newAdminFixture(t, false)
	_, err = resolver.Login(ctx, "admin@example.com", "secret-pass")
	assert.ErrorIs(t, err, session.ErrNotAdmin)
}

func TestIsAdmin_FailsClosed(t *testing.T) {
	ctx := context.Background()
	store, resolver := newAdminFixture(t, true)

	_, ok := resolver.IsAdmin(ctx, "")
	assert.False(t, ok)

	_, ok = resolver.IsAdmin(ctx, "not-a-jwt")
	assert.False(t, ok)

	// Signed with another key
	other := session.NewAdminResolver(store, "other-secret")
	token, err := other.Login(ctx, "admin@example.com", "secret-pass")
	require.NoError(t, err)
	_, ok = resolver.IsAdmin(ctx, token)
	assert.False(t, ok)

	// Expired
	claims := session.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "a1",
		Issuer:    "identityradio-service",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, ok = resolver.IsAdmin(ctx, expired)
	assert.False(t, ok)
}

func TestIsAdmin_RevokedAdmin(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	resolver := session.NewAdminResolver(store, "test-secret")

	claims := session.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "a2",
		Issuer:    "identityradio-service",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	store.On("IsAdmin", ctx, "a2").Return(false, nil).Once()
	_, ok := resolver.IsAdmin(ctx, token)
	assert.False(t, ok)

	store.On("IsAdmin", ctx, "a2").Return(false, errors.New("db down")).Once()
	_, ok = resolver.IsAdmin(ctx, token)
	assert.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", session.BearerToken("Bearer abc"))
	assert.Equal(t, "abc", session.BearerToken("bearer abc"))
	assert.Equal(t, "", session.BearerToken("Basic abc"))
	assert.Equal(t, "", session.BearerToken(""))
}
