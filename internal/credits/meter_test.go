// Package credits_test tests the usage meter and plan policy lookup.
package credits_test

import (
	"context"
	"testing"

	"github.com/book-expert/logger"
	"github.com/readaloud/synthesis-service/internal/config"
	"github.com/readaloud/synthesis-service/internal/core"
	"github.com/readaloud/synthesis-service/internal/credits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAccountStore is an in-memory AccountStore for meter tests.
type fakeAccountStore struct {
	accounts map[string]core.CreditAccount
	charges  map[string]int
}

func newFakeAccountStore() *fakeAccountStore {
	return &fakeAccountStore{
		accounts: make(map[string]core.CreditAccount),
		charges:  make(map[string]int),
	}
}

func (f *fakeAccountStore) Load(_ context.Context, userID string) (core.CreditAccount, error) {
	account, found := f.accounts[userID]
	if !found {
		return core.CreditAccount{UserID: userID, PlanName: "Basic", CreditsUsed: 0}, nil
	}

	return account, nil
}

func (f *fakeAccountStore) Charge(_ context.Context, userID string, amount int) error {
	account := f.accounts[userID]
	account.CreditsUsed += amount
	f.accounts[userID] = account
	f.charges[userID] += amount

	return nil
}

func testPlansConfig() config.PlansConfig {
	return config.PlansConfig{
		Default: "Basic",
		Tiers: []config.PlanConfig{
			{Name: "Basic", CreditLimit: 3000, HistoryRetentionDays: 7},
			{Name: "Pro", CreditLimit: 100000, HistoryRetentionDays: 30},
		},
	}
}

func createTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "credits-test.log")
	require.NoError(t, err)

	t.Cleanup(func() {
		closeErr := log.Close()
		if closeErr != nil {
			t.Logf("failed to close test logger: %v", closeErr)
		}
	})

	return log
}

func TestPlanLookupIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	plans := credits.NewStaticPlanStore(testPlansConfig())

	assert.Equal(t, 100000, plans.Lookup("pro").CreditLimit)
	assert.Equal(t, 100000, plans.Lookup("PRO").CreditLimit)
}

func TestPlanLookupFallsBackToDefault(t *testing.T) {
	t.Parallel()

	plans := credits.NewStaticPlanStore(testPlansConfig())

	policy := plans.Lookup("Enterprise")

	assert.Equal(t, "Basic", policy.Name)
	assert.Equal(t, 3000, policy.CreditLimit)
}

func TestPlanLookupFallsBackToBuiltinWhenTableEmpty(t *testing.T) {
	t.Parallel()

	plans := credits.NewStaticPlanStore(config.PlansConfig{Default: "", Tiers: nil})

	policy := plans.Lookup("anything")

	assert.Equal(t, "Basic", policy.Name)
	assert.Equal(t, 3000, policy.CreditLimit)
	assert.Equal(t, 7, policy.HistoryRetentionDays)
}

func TestAdmitAtBoundary(t *testing.T) {
	t.Parallel()

	accounts := newFakeAccountStore()
	accounts.accounts["user-1"] = core.CreditAccount{
		UserID:      "user-1",
		PlanName:    "Basic",
		CreditsUsed: 2990,
	}

	meter := credits.NewMeter(credits.NewStaticPlanStore(testPlansConfig()), accounts, createTestLogger(t))

	// 2990 + 5 <= 3000: admitted.
	admission, err := meter.Admit(context.Background(), "user-1", 5)
	require.NoError(t, err)
	assert.True(t, admission.Allowed)

	// 2990 + 15 > 3000: denied, with usage and limit in the reason.
	admission, err = meter.Admit(context.Background(), "user-1", 15)
	require.NoError(t, err)
	assert.False(t, admission.Allowed)
	assert.Contains(t, admission.Reason, "2990")
	assert.Contains(t, admission.Reason, "3000")
}

func TestAdmitExactFit(t *testing.T) {
	t.Parallel()

	accounts := newFakeAccountStore()
	accounts.accounts["user-1"] = core.CreditAccount{
		UserID:      "user-1",
		PlanName:    "Basic",
		CreditsUsed: 2990,
	}

	meter := credits.NewMeter(credits.NewStaticPlanStore(testPlansConfig()), accounts, createTestLogger(t))

	admission, err := meter.Admit(context.Background(), "user-1", 10)
	require.NoError(t, err)
	assert.True(t, admission.Allowed)
}

func TestDenialDoesNotMutateAccount(t *testing.T) {
	t.Parallel()

	accounts := newFakeAccountStore()
	accounts.accounts["user-1"] = core.CreditAccount{
		UserID:      "user-1",
		PlanName:    "Basic",
		CreditsUsed: 3000,
	}

	meter := credits.NewMeter(credits.NewStaticPlanStore(testPlansConfig()), accounts, createTestLogger(t))

	admission, err := meter.Admit(context.Background(), "user-1", 1)
	require.NoError(t, err)
	assert.False(t, admission.Allowed)

	assert.Equal(t, 3000, accounts.accounts["user-1"].CreditsUsed)
	assert.Zero(t, accounts.charges["user-1"])
}

func TestAdmitUnknownUserGetsDefaultPlan(t *testing.T) {
	t.Parallel()

	meter := credits.NewMeter(
		credits.NewStaticPlanStore(testPlansConfig()),
		newFakeAccountStore(),
		createTestLogger(t),
	)

	admission, err := meter.Admit(context.Background(), "never-seen", 100)
	require.NoError(t, err)
	assert.True(t, admission.Allowed)
	assert.Equal(t, "Basic", admission.Policy.Name)
}

func TestCommitChargesExactAmount(t *testing.T) {
	t.Parallel()

	accounts := newFakeAccountStore()
	meter := credits.NewMeter(credits.NewStaticPlanStore(testPlansConfig()), accounts, createTestLogger(t))

	err := meter.Commit(context.Background(), "user-1", 42)
	require.NoError(t, err)

	assert.Equal(t, 42, accounts.charges["user-1"])
}
