package user

import (
	"context"
	"strings"
	"testing"

	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestAccountService_CreateOrLogin_RegistersUnknownUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc := NewAccountService(testutil.OpenDB(t))

	u, err := svc.CreateOrLogin(ctx, "Alice", "secret", "a.png")
	req.NoError(err)
	req.True(strings.HasPrefix(u.ID, constants.UserIDPrefix))
	req.Equal("Alice", u.Username)
	req.Equal("a.png", u.Avatar)
	req.NotEqual("secret", u.Password)

	got, err := svc.GetUserByID(ctx, u.ID)
	req.NoError(err)
	req.Equal(u.ID, got.ID)
}

func TestAccountService_CreateOrLogin_ExistingUser(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc := NewAccountService(testutil.OpenDB(t))

	created, err := svc.CreateOrLogin(ctx, "alice", "secret", "")
	req.NoError(err)

	t.Run("case-insensitive username", func(t *testing.T) {
		u, err := svc.CreateOrLogin(ctx, "ALICE", "secret", "")
		require.NoError(t, err)
		require.Equal(t, created.ID, u.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.CreateOrLogin(ctx, "alice", "nope", "")
		require.ErrorIs(t, err, errs.ErrAuth)
	})

	t.Run("avatar replaced", func(t *testing.T) {
		u, err := svc.CreateOrLogin(ctx, "alice", "secret", "new.png")
		require.NoError(t, err)
		require.Equal(t, "new.png", u.Avatar)

		stored, err := svc.GetUserByUsername(ctx, "Alice")
		require.NoError(t, err)
		require.Equal(t, "new.png", stored.Avatar)
	})

	t.Run("empty avatar keeps stored one", func(t *testing.T) {
		u, err := svc.CreateOrLogin(ctx, "alice", "secret", "")
		require.NoError(t, err)
		require.Equal(t, "new.png", u.Avatar)
	})
}

func TestAccountService_GetUser_NotFound(t *testing.T) {
	ctx := context.Background()
	svc := NewAccountService(testutil.OpenDB(t))

	_, err := svc.GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)

	_, err = svc.GetUserByUsername(ctx, "missing")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestAccountService_SearchUsers(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	svc := NewAccountService(testutil.OpenDB(t))

	alice, err := svc.CreateOrLogin(ctx, "Alice", "pw", "")
	req.NoError(err)
	_, err = svc.CreateOrLogin(ctx, "malik", "pw", "")
	req.NoError(err)
	_, err = svc.CreateOrLogin(ctx, "Bob", "pw", "")
	req.NoError(err)

	users, err := svc.SearchUsers(ctx, "LI", "")
	req.NoError(err)
	req.Len(users, 2)
	req.Equal("Alice", users[0].Username)
	req.Equal("malik", users[1].Username)

	users, err = svc.SearchUsers(ctx, "li", alice.ID)
	req.NoError(err)
	req.Len(users, 1)
	req.Equal("malik", users[0].Username)

	all, err := svc.ListUsers(ctx)
	req.NoError(err)
	req.Len(all, 3)
}
