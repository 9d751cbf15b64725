package session_test

import (
	"context"
	"identityradio/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

// MockStore implements UserStore and AdminStore.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindChatUserByIP(ctx context.Context, ip string) (*models.ChatUser, error) {
	args := m.Called(ctx, ip)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatUser), args.Error(1)
}

func (m *MockStore) CreateChatUser(ctx context.Context, user *models.ChatUser) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockStore) TouchChatUser(ctx context.Context, id, country string) (*models.ChatUser, error) {
	args := m.Called(ctx, id, country)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ChatUser), args.Error(1)
}

func (m *MockStore) FindAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AuthUser), args.Error(1)
}

func (m *MockStore) IsAdmin(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}
