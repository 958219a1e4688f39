package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAccountCheckLifecycle walks an account through sign-up, token issue,
// check creation up to the limit, and check deletion.
func TestAccountCheckLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.accounts.Create(ctx, validAccount(testPhone))
	require.NoError(t, err)

	_, err = env.accounts.Create(ctx, validAccount(testPhone))
	require.ErrorIs(t, err, common.ErrorAlreadyExists)

	tok, err := env.tokens.Issue(ctx, Credentials{Phone: testPhone, Password: testPassword})
	require.NoError(t, err)
	require.Len(t, tok.ID, 20)

	_, err = env.tokens.Issue(ctx, Credentials{Phone: testPhone, Password: "wrong"})
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	first, err := env.checks.Create(ctx, tok.ID, validCheck())
	require.NoError(t, err)

	acc, err := env.accounts.Get(ctx, testPhone, tok.ID)
	require.NoError(t, err)
	assert.Contains(t, acc.Checks, first.ID)

	for len(acc.Checks) < env.checks.maxChecks {
		c, err := env.checks.Create(ctx, tok.ID, validCheck())
		require.NoError(t, err)
		acc.Checks = append(acc.Checks, c.ID)
	}
	_, err = env.checks.Create(ctx, tok.ID, validCheck())
	require.ErrorIs(t, err, common.ErrorLimitExceeded)

	require.NoError(t, env.checks.Delete(ctx, tok.ID, first.ID))
	acc, err = env.accounts.Get(ctx, testPhone, tok.ID)
	require.NoError(t, err)
	assert.NotContains(t, acc.Checks, first.ID)
	assert.Len(t, acc.Checks, env.checks.maxChecks-1)

	report, err := env.recon.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())

	env.now = tok.ExpiresAt()
	_, err = env.accounts.Get(ctx, testPhone, tok.ID)
	assert.ErrorIs(t, err, common.ErrorForbidden)
	_, err = env.checks.Get(ctx, tok.ID, acc.Checks[0])
	assert.ErrorIs(t, err, common.ErrorForbidden)
	_, err = env.accounts.Get(ctx, testPhone, "")
	assert.ErrorIs(t, err, common.ErrorForbidden)
}
