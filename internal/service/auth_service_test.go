package service

import (
	"context"
	"testing"

	"rentalhub/internal/events"
	"rentalhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestAuthService_Register(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.auth.Register(ctx, RegisterInput{
		Name: "Alice", Email: "  Alice@Example.com ", Password: "secret123", Phone: "+1 (555) 010-0000",
	}, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)

	actor, err := env.auth.Authenticate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, actor.UserID)
	assert.Equal(t, models.RoleUser, actor.Role)

	env.events.AssertCalled(t, "PublishJSON", events.EventUserRegistered, mock.Anything)
	assert.Contains(t, env.audit.actions(), "user.register")

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := env.auth.Register(ctx, RegisterInput{Name: "A", Email: "ALICE@example.com", Password: "secret123"}, "")
		assertKind(t, err, KindConflict)
	})

	t.Run("AdminRoleForbidden", func(t *testing.T) {
		_, err := env.auth.Register(ctx, RegisterInput{Name: "M", Email: "m@example.com", Password: "secret123", Role: models.RoleAdmin}, "")
		assertKind(t, err, KindForbidden)
	})

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing name", RegisterInput{Email: "x@example.com", Password: "secret123"}},
		{"bad email", RegisterInput{Name: "X", Email: "nope", Password: "secret123"}},
		{"short password", RegisterInput{Name: "X", Email: "x@example.com", Password: "123"}},
		{"unknown role", RegisterInput{Name: "X", Email: "x@example.com", Password: "secret123", Role: "owner"}},
		{"bad phone", RegisterInput{Name: "X", Email: "x@example.com", Password: "secret123", Phone: "call me"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, tt.in, "")
			assertKind(t, err, KindValidation)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.user(t, "bob@example.com", models.RoleDelivery)

	res, err := env.auth.Login(ctx, LoginInput{Email: "BOB@example.com", Password: "secret123"}, "")
	require.NoError(t, err)
	assert.Equal(t, models.RoleDelivery, res.User.Role)

	_, err = env.auth.Login(ctx, LoginInput{Email: "bob@example.com", Password: "wrong"}, "")
	assertKind(t, err, KindUnauthorized)

	_, err = env.auth.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "secret123"}, "")
	assertKind(t, err, KindUnauthorized)

	_, err = env.auth.Login(ctx, LoginInput{Email: "bob@example.com"}, "")
	assertKind(t, err, KindValidation)

	t.Run("Throttled", func(t *testing.T) {
		// two of bob's three attempts are used; validation failures do not count
		_, err := env.auth.Login(ctx, LoginInput{Email: "bob@example.com", Password: "secret123"}, "")
		require.NoError(t, err)

		_, err = env.auth.Login(ctx, LoginInput{Email: "bob@example.com", Password: "secret123"}, "")
		assertKind(t, err, KindTooManyRequests)

		_, err = env.auth.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "secret123"}, "")
		assertKind(t, err, KindUnauthorized)
	})
}

func TestAuthService_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.Authenticate("not-a-token")
	assertKind(t, err, KindUnauthorized)
}

func TestAuthService_ChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	actor := env.user(t, "carol@example.com", models.RoleUser)

	err := env.auth.ChangePassword(ctx, actor, ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "newsecret"})
	assertKind(t, err, KindUnauthorized)

	err = env.auth.ChangePassword(ctx, actor, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "abc"})
	assertKind(t, err, KindValidation)

	require.NoError(t, env.auth.ChangePassword(ctx, actor, ChangePasswordInput{CurrentPassword: "secret123", NewPassword: "newsecret"}))

	_, err = env.auth.Login(ctx, LoginInput{Email: "carol@example.com", Password: "newsecret"}, "")
	assert.NoError(t, err)

	me, err := env.auth.Me(ctx, actor)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", me.Email)
}

func TestAuthService_AdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	user := env.user(t, "dave@example.com", models.RoleUser)

	t.Run("NonAdminForbidden", func(t *testing.T) {
		_, err := env.auth.ListUsers(ctx, user)
		assertKind(t, err, KindForbidden)
		assertKind(t, env.auth.DeleteUser(ctx, user, admin.UserID), KindForbidden)
	})

	t.Run("GetUserOwnership", func(t *testing.T) {
		_, err := env.auth.GetUser(ctx, user, admin.UserID)
		assertKind(t, err, KindForbidden)
		got, err := env.auth.GetUser(ctx, user, user.UserID)
		require.NoError(t, err)
		assert.Equal(t, "dave@example.com", got.Email)
	})

	t.Run("Update", func(t *testing.T) {
		name, role, phone := "Dave D", models.RoleDelivery, "+44 20 7946 0000"
		updated, err := env.auth.UpdateUser(ctx, admin, user.UserID, UpdateUserInput{Name: &name, Role: &role, Phone: &phone})
		require.NoError(t, err)
		assert.Equal(t, "Dave D", updated.Name)
		assert.Equal(t, models.RoleDelivery, updated.Role)

		bad := "12ab"
		_, err = env.auth.UpdateUser(ctx, admin, user.UserID, UpdateUserInput{Phone: &bad})
		assertKind(t, err, KindValidation)

		own := models.RoleUser
		_, err = env.auth.UpdateUser(ctx, admin, admin.UserID, UpdateUserInput{Role: &own})
		assertKind(t, err, KindValidation)

		_, err = env.auth.UpdateUser(ctx, admin, 9999, UpdateUserInput{Name: &name})
		assertKind(t, err, KindNotFound)
	})

	t.Run("ResetPassword", func(t *testing.T) {
		require.NoError(t, env.auth.ResetPassword(ctx, admin, user.UserID, "reset123"))
		_, err := env.auth.Login(ctx, LoginInput{Email: "dave@example.com", Password: "reset123"}, "")
		assert.NoError(t, err)
		assertKind(t, env.auth.ResetPassword(ctx, admin, user.UserID, "x"), KindValidation)
	})

	t.Run("Admins", func(t *testing.T) {
		created, err := env.auth.CreateAdmin(ctx, admin, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "secret123"})
		require.NoError(t, err)
		assert.Equal(t, models.RoleAdmin, created.Role)

		admins, err := env.auth.ListAdmins(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, admins, 2)

		_, err = env.auth.CreateAdmin(ctx, user, RegisterInput{Name: "X", Email: "x@example.com", Password: "secret123"})
		assertKind(t, err, KindForbidden)
	})

	t.Run("Delete", func(t *testing.T) {
		assertKind(t, env.auth.DeleteUser(ctx, admin, admin.UserID), KindValidation)
		require.NoError(t, env.auth.DeleteUser(ctx, admin, user.UserID))
		assertKind(t, env.auth.DeleteUser(ctx, admin, user.UserID), KindNotFound)

		users, err := env.auth.ListUsers(ctx, admin)
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestAuthService_EnsureAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := RegisterInput{Name: "Root", Email: "root@example.com", Password: "secret123"}

	created, err := env.auth.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = env.auth.EnsureAdmin(ctx, in)
	require.NoError(t, err)
	assert.False(t, created)
}
