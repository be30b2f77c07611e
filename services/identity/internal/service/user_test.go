package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/deepak1410/task-management/pkg/errors"
	"github.com/deepak1410/task-management/services/identity/internal/domain"
)

func newUserServiceFixture() (*UserService, *mockUserRepository, *mockRefreshTokenRepository) {
	users := new(mockUserRepository)
	refreshTokens := new(mockRefreshTokenRepository)
	svc := NewUserService(users, refreshTokens, newTestLogger())
	return svc, users, refreshTokens
}

func TestUpdateProfile_Name(t *testing.T) {
	svc, users, _ := newUserServiceFixture()
	ctx := context.Background()
	user := verifiedUser()

	users.On("GetByID", ctx, user.ID).Return(user, nil)
	users.On("Update", ctx, user).Return(nil)

	name := "Alice Jones"
	got, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Name: &name})

	require.NoError(t, err)
	assert.Equal(t, "Alice Jones", got.Name)
	users.AssertExpectations(t)
}

func TestUpdateProfile_EmptyName(t *testing.T) {
	svc, users, _ := newUserServiceFixture()
	ctx := context.Background()
	user := verifiedUser()

	users.On("GetByID", ctx, user.ID).Return(user, nil)

	name := ""
	_, err := svc.UpdateProfile(ctx, user.ID, UpdateProfileInput{Name: &name})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	users.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestList_ClampsLimit(t *testing.T) {
	svc, users, _ := newUserServiceFixture()
	ctx := context.Background()

	users.On("List", ctx, maxListLimit, 0).Return([]domain.User{}, nil)

	_, err := svc.List(ctx, 500, -3)

	require.NoError(t, err)
	users.AssertExpectations(t)
}

func TestList_DefaultLimit(t *testing.T) {
	svc, users, _ := newUserServiceFixture()
	ctx := context.Background()

	users.On("List", ctx, defaultListLimit, 0).Return([]domain.User{*verifiedUser()}, nil)

	got, err := svc.List(ctx, 0, 0)

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestUpdateRole_Success(t *testing.T) {
	svc, users, refreshTokens := newUserServiceFixture()
	ctx := context.Background()
	user := verifiedUser()

	users.On("GetByID", ctx, user.ID).Return(user, nil)
	users.On("Update", ctx, user).Return(nil)
	refreshTokens.On("RevokeAllForUser", ctx, user.ID).Return(nil)

	got, err := svc.UpdateRole(ctx, user.ID, domain.RoleAdmin)

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	refreshTokens.AssertExpectations(t)
}

func TestUpdateRole_InvalidRole(t *testing.T) {
	svc, users, _ := newUserServiceFixture()

	_, err := svc.UpdateRole(context.Background(), "u-1", "SUPERUSER")

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	users.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}
