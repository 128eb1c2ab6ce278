package credits

import (
	"context"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/readaloud/synthesis-service/internal/core"
)

// denialReasonFormat carries the current usage and limit so a denied user
// can see exactly where they stand.
const denialReasonFormat = "Credit limit reached: %d of %d credits used, request requires %d more"

// Admission is the outcome of the pre-flight budget check.
type Admission struct {
	Allowed bool
	Reason  string
	Account core.CreditAccount
	Policy  core.PlanPolicy
}

// Meter decides whether a request fits the user's remaining credit budget
// and applies the charge after the request succeeds. The cost model is one
// credit per input character, independent of chunk count and output size.
type Meter struct {
	plans    core.PlanStore
	accounts core.AccountStore
	log      *logger.Logger
}

// NewMeter creates a usage meter over the given plan and account stores.
func NewMeter(plans core.PlanStore, accounts core.AccountStore, log *logger.Logger) *Meter {
	return &Meter{
		plans:    plans,
		accounts: accounts,
		log:      log,
	}
}

// Admit checks whether requestedChars fits the user's remaining budget.
// The account is read exactly once; denial mutates nothing.
func (m *Meter) Admit(ctx context.Context, userID string, requestedChars int) (Admission, error) {
	account, loadErr := m.accounts.Load(ctx, userID)
	if loadErr != nil {
		return Admission{}, fmt.Errorf("failed to load credit account for user '%s': %w", userID, loadErr)
	}

	policy := m.plans.Lookup(account.PlanName)

	if account.CreditsUsed+requestedChars > policy.CreditLimit {
		reason := fmt.Sprintf(denialReasonFormat, account.CreditsUsed, policy.CreditLimit, requestedChars)

		m.log.Warn("Denied synthesis for user '%s' on plan '%s': %s", userID, policy.Name, reason)

		return Admission{
			Allowed: false,
			Reason:  reason,
			Account: account,
			Policy:  policy,
		}, nil
	}

	return Admission{
		Allowed: true,
		Reason:  "",
		Account: account,
		Policy:  policy,
	}, nil
}

// Commit charges the exact input character count. Only ever called after a
// complete artifact has been assembled and stored.
func (m *Meter) Commit(ctx context.Context, userID string, chargedChars int) error {
	chargeErr := m.accounts.Charge(ctx, userID, chargedChars)
	if chargeErr != nil {
		return fmt.Errorf("failed to charge %d credits to user '%s': %w", chargedChars, userID, chargeErr)
	}

	m.log.Info("Charged %d credits to user '%s'", chargedChars, userID)

	return nil
}
