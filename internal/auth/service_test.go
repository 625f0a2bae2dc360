package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bher20/enerbill/internal/storage"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, err := NewService(storage.NewMemory())
	require.NoError(t, err)
	ctx := t.Context()

	u, err := svc.Register(ctx, "alice", "s3cret", "editor", 7)
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, uint(7), u.AccountID)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	require.Error(t, err)

	_, err = svc.Register(ctx, "alice", "other", "viewer", 8)
	require.Error(t, err, "duplicate username")
}

func TestChangePassword(t *testing.T) {
	svc, err := NewService(storage.NewMemory())
	require.NoError(t, err)
	ctx := t.Context()

	u, err := svc.Register(ctx, "carol", "old-pw", "viewer", 5)
	require.NoError(t, err)

	require.Error(t, svc.ChangePassword(ctx, u.ID, "wrong", "new-pw"))

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "old-pw", "new-pw"))

	_, err = svc.Authenticate(ctx, "carol", "old-pw")
	require.Error(t, err)
	got, err := svc.Authenticate(ctx, "carol", "new-pw")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestTokenLifecycle(t *testing.T) {
	st := storage.NewMemory()
	svc, err := NewService(st)
	require.NoError(t, err)
	ctx := t.Context()

	u, err := svc.Register(ctx, "bob", "pw", "viewer", 3)
	require.NoError(t, err)

	meta, raw, err := svc.CreateToken(ctx, u.ID, "ci", "viewer", nil)
	require.NoError(t, err)
	assert.NotContains(t, meta.TokenHash, raw, "raw token must not be stored")

	tok, err := svc.ValidateToken(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, meta.ID, tok.ID)

	account, err := svc.AccountForToken(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, uint(3), account)

	_, err = svc.ValidateToken(ctx, "not-a-token")
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc, err := NewService(storage.NewMemory())
	require.NoError(t, err)
	ctx := t.Context()

	u, err := svc.Register(ctx, "carol", "pw", "viewer", 1)
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	_, raw, err := svc.CreateToken(ctx, u.ID, "old", "viewer", &past)
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, raw)
	require.Error(t, err)
}

func TestEnforce(t *testing.T) {
	svc, err := NewService(storage.NewMemory())
	require.NoError(t, err)

	for _, tc := range []struct {
		sub, obj, act string
		want          bool
	}{
		{"admin", "rates", "write", true},
		{"admin", "settings", "write", true},
		{"editor", "rates", "write", true},
		{"editor", "settings", "write", false},
		{"viewer", "reports", "read", true},
		{"viewer", "readings", "write", false},
	} {
		got, err := svc.Enforce(tc.sub, tc.obj, tc.act)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s %s %s", tc.sub, tc.obj, tc.act)
	}
}

func TestParseExpirationDuration(t *testing.T) {
	never, err := ParseExpirationDuration("never")
	require.NoError(t, err)
	assert.Nil(t, never)

	thirtyDays, err := ParseExpirationDuration("30d")
	require.NoError(t, err)
	require.NotNil(t, thirtyDays)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), *thirtyDays, time.Minute)

	goDur, err := ParseExpirationDuration("2h30m")
	require.NoError(t, err)
	require.NotNil(t, goDur)

	_, err = ParseExpirationDuration("sometime")
	require.Error(t, err)

	_, err = ParseExpirationDuration("01/02/2020")
	require.Error(t, err, "past dates are rejected")
}
