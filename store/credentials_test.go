package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/techblog/techblog/models"
	"github.com/techblog/techblog/store"
	"github.com/techblog/techblog/testutil"
	"github.com/techblog/techblog/utils"
)

func newCredentialStore(t *testing.T) (*store.CredentialStore, func() int64) {
	t.Helper()
	db := testutil.NewDB(t)
	countUsers := func() int64 {
		var n int64
		require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
		return n
	}
	return store.NewCredentialStore(db, nil), countUsers
}

func TestCredentialStore_RegisterThenVerify(t *testing.T) {
	creds, _ := newCredentialStore(t)
	ctx := context.Background()

	id, err := creds.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.NotZero(t, id)

	got, err := creds.Verify(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	user, err := creds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEqual(t, "pw1", user.PasswordHash, "only the hash is persisted")
	assert.True(t, utils.CheckPassword(user.PasswordHash, "pw1"))
}

func TestCredentialStore_RegisterDuplicate(t *testing.T) {
	creds, countUsers := newCredentialStore(t)
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, err = creds.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)
	assert.EqualValues(t, 1, countUsers(), "duplicate signup must not create a row")

	// the first password still works
	_, err = creds.Verify(ctx, "alice", "pw1")
	assert.NoError(t, err)
}

func TestCredentialStore_RegisterInvalidInput(t *testing.T) {
	creds, countUsers := newCredentialStore(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "bob", ""},
		{"long username", strings.Repeat("u", 65), "pw"},
		{"long password", "bob", strings.Repeat("p", utils.MaxPasswordBytes+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := creds.Register(ctx, tc.username, tc.password)
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}
	assert.Zero(t, countUsers())
}

func TestCredentialStore_VerifyFailuresAreIndistinguishable(t *testing.T) {
	creds, _ := newCredentialStore(t)
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "pw1")
	require.NoError(t, err)

	_, wrongPassword := creds.Verify(ctx, "alice", "nope")
	_, unknownUser := creds.Verify(ctx, "mallory", "pw1")

	require.ErrorIs(t, wrongPassword, store.ErrAuthFailure)
	require.ErrorIs(t, unknownUser, store.ErrAuthFailure)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
}

func TestCredentialStore_ChangePassword(t *testing.T) {
	creds, _ := newCredentialStore(t)
	ctx := context.Background()

	id, err := creds.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	before, err := creds.Get(ctx, id)
	require.NoError(t, err)

	t.Run("wrong current password", func(t *testing.T) {
		err := creds.ChangePassword(ctx, id, "nope", "pw2")
		assert.ErrorIs(t, err, store.ErrAuthFailure)
	})

	t.Run("empty new password", func(t *testing.T) {
		err := creds.ChangePassword(ctx, id, "pw1", "")
		assert.ErrorIs(t, err, store.ErrInvalidInput)
	})

	t.Run("rotates hash", func(t *testing.T) {
		require.NoError(t, creds.ChangePassword(ctx, id, "pw1", "pw2"))

		after, err := creds.Get(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, before.PasswordHash, after.PasswordHash)

		_, err = creds.Verify(ctx, "alice", "pw1")
		assert.ErrorIs(t, err, store.ErrAuthFailure)
		got, err := creds.Verify(ctx, "alice", "pw2")
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})
}

func TestCredentialStore_GetUnknown(t *testing.T) {
	creds, _ := newCredentialStore(t)
	_, err := creds.Get(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCredentialStore_TwoUsersScenario(t *testing.T) {
	creds, _ := newCredentialStore(t)
	ctx := context.Background()

	alice, err := creds.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	bob, err := creds.Register(ctx, "bob", "pw2")
	require.NoError(t, err)
	assert.NotEqual(t, alice, bob)

	got, err := creds.Verify(ctx, "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, alice, got)
	got, err = creds.Verify(ctx, "bob", "pw2")
	require.NoError(t, err)
	assert.Equal(t, bob, got)

	_, err = creds.Verify(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, store.ErrAuthFailure, "passwords are per user")
}

func TestCredentialStore_UsernamesIgnoreCase(t *testing.T) {
	creds, countUsers := newCredentialStore(t)
	ctx := context.Background()

	id, err := creds.Register(ctx, "Alice", "pw1")
	require.NoError(t, err)

	_, err = creds.Register(ctx, "alice", "pw2")
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)
	assert.EqualValues(t, 1, countUsers())

	got, err := creds.Verify(ctx, "ALICE", "pw1")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	user, err := creds.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
}

func TestCredentialStore_RejectedLoginsDoNotLogUsername(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	creds := store.NewCredentialStore(testutil.NewDB(t), zap.New(core))
	ctx := context.Background()

	_, err := creds.Register(ctx, "alice", "pw1")
	require.NoError(t, err)
	logs.TakeAll()

	typedSecret := "hunter2-typed-in-the-wrong-box"
	_, err = creds.Verify(ctx, typedSecret, "pw1")
	require.ErrorIs(t, err, store.ErrAuthFailure)
	_, err = creds.Verify(ctx, "alice", typedSecret)
	require.ErrorIs(t, err, store.ErrAuthFailure)

	entries := logs.AllUntimed()
	require.NotEmpty(t, entries)
	for _, e := range entries {
		assert.NotContains(t, e.Message, typedSecret)
		for k, v := range e.ContextMap() {
			assert.NotContains(t, fmt.Sprint(v), typedSecret, "field %s", k)
			assert.NotContains(t, fmt.Sprint(v), "alice", "field %s", k)
		}
	}
}
