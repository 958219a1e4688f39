package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/pulsekeeper/internal/common"
	"github.com/dmitrijs2005/pulsekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciler_CleanState(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	report, err := env.recon.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Zero(t, report.Accounts)

	tok := env.signUp(t, testPhone)
	_, err = env.checks.Create(ctx, tok, validCheck())
	require.NoError(t, err)

	report, err = env.recon.Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 1, report.Accounts)
	assert.Equal(t, 1, report.Checks)
}

func TestReconciler_FindsOrphansAndDangling(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tok := env.signUp(t, testPhone)

	// orphan: account update fails after the check is written
	env.store.fail("update", common.CollectionAccounts, errors.New("io"))
	_, err := env.checks.Create(ctx, tok, validCheck())
	require.ErrorIs(t, err, common.ErrorOrphanedCheck)
	env.store.fail("update", common.CollectionAccounts, nil)

	// dangling: account lists a check that does not exist
	acc := env.account(t, testPhone)
	acc.Checks = append(acc.Checks, "zzzzzzzzzzzzzzzzzzzz")
	require.NoError(t, env.store.Update(ctx, common.CollectionAccounts, testPhone, &acc))

	report, err := env.recon.Run(ctx)
	require.NoError(t, err)
	assert.False(t, report.Consistent())
	assert.Len(t, report.Orphans, 1)
	assert.Equal(t, []DanglingRef{{Phone: testPhone, CheckID: "zzzzzzzzzzzzzzzzzzzz"}}, report.Dangling)
}

func TestReconciler_ChecksOfDeletedAccountAreOrphans(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	c := models.Check{ID: "abcdefghijklmnopqrst", UserPhone: testPhone, Protocol: "http", URL: "x", Method: "get", SuccessCodes: []int{200}, TimeoutSeconds: 1}
	require.NoError(t, env.store.Create(ctx, common.CollectionChecks, c.ID, &c))

	report, err := env.recon.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, report.Orphans)
}

func TestReconciler_StorageFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	tok := env.signUp(t, testPhone)
	_, err := env.checks.Create(ctx, tok, validCheck())
	require.NoError(t, err)

	env.store.fail("read", common.CollectionChecks, errors.New("io"))

	_, err = env.recon.Run(ctx)
	assert.Error(t, err)
}

func TestReconciler_ReportsUnreadableRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signUp(t, testPhone)

	env.store.fail("read", common.CollectionAccounts, common.NewError(common.ErrorCorrupt, "bad json"))

	report, err := env.recon.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts/" + testPhone}, report.Unreadable)
	assert.False(t, report.Consistent())
}
