package credits

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/readaloud/synthesis-service/internal/core"
)

// chargeAttempts bounds the compare-and-swap retry loop. Contention beyond
// this indicates something other than two racing requests.
const chargeAttempts = 5

// ErrChargeContention is returned when a charge repeatedly loses the
// revision race against concurrent writers.
var ErrChargeContention = errors.New("credit charge contention not resolved")

// NatsAccountStore keeps credit accounts in a JetStream key-value bucket.
//
// Charge uses the bucket's revision numbers as a compare-and-swap, so two
// concurrent requests for the same user cannot both commit against the
// same prior balance: the loser observes a revision conflict and retries
// against the fresh balance.
type NatsAccountStore struct {
	keyValue    nats.KeyValue
	bucket      string
	defaultPlan string
}

// NewNatsAccountStore creates or binds the account bucket. Accounts for
// users never seen before load as zero-usage accounts on the default plan.
func NewNatsAccountStore(
	jetstreamContext nats.JetStreamContext,
	bucketName string,
	defaultPlan string,
) (*NatsAccountStore, error) {
	keyValue, err := jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Credit accounts for the %s bucket.", bucketName),
	})
	if err != nil {
		// If the bucket already exists, bind to it.
		keyValue, err = jetstreamContext.KeyValue(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to account bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsAccountStore{
		keyValue:    keyValue,
		bucket:      bucketName,
		defaultPlan: defaultPlan,
	}, nil
}

// Load reads the account for userID, synthesizing a fresh account on the
// default plan when none exists yet.
func (s *NatsAccountStore) Load(_ context.Context, userID string) (core.CreditAccount, error) {
	entry, err := s.keyValue.Get(userID)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return core.CreditAccount{
			UserID:      userID,
			PlanName:    s.defaultPlan,
			CreditsUsed: 0,
		}, nil
	}

	if err != nil {
		return core.CreditAccount{}, fmt.Errorf(
			"failed to get account '%s' from bucket '%s': %w", userID, s.bucket, err)
	}

	account, decodeErr := decodeAccount(entry.Value(), userID, s.defaultPlan)
	if decodeErr != nil {
		return core.CreditAccount{}, decodeErr
	}

	return account, nil
}

// Charge adds amount to the user's usage counter under a revision-checked
// read-modify-write.
func (s *NatsAccountStore) Charge(ctx context.Context, userID string, amount int) error {
	var lastErr error

	for attempt := 0; attempt < chargeAttempts; attempt++ {
		if ctx.Err() != nil {
			return fmt.Errorf("charge cancelled for user '%s': %w", userID, ctx.Err())
		}

		done, chargeErr := s.tryCharge(userID, amount)
		if done {
			return nil
		}

		lastErr = chargeErr
	}

	return fmt.Errorf("%w for user '%s': %w", ErrChargeContention, userID, lastErr)
}

// tryCharge performs one CAS attempt. A false return with a nil or non-nil
// error means the revision race was lost and the caller should retry.
func (s *NatsAccountStore) tryCharge(userID string, amount int) (bool, error) {
	entry, getErr := s.keyValue.Get(userID)
	if errors.Is(getErr, nats.ErrKeyNotFound) {
		account := core.CreditAccount{
			UserID:      userID,
			PlanName:    s.defaultPlan,
			CreditsUsed: amount,
		}

		data, marshalErr := json.Marshal(account)
		if marshalErr != nil {
			return false, fmt.Errorf("failed to marshal account '%s': %w", userID, marshalErr)
		}

		_, createErr := s.keyValue.Create(userID, data)
		if createErr != nil {
			// Lost the creation race; retry against the new entry.
			return false, createErr
		}

		return true, nil
	}

	if getErr != nil {
		return false, fmt.Errorf("failed to get account '%s': %w", userID, getErr)
	}

	account, decodeErr := decodeAccount(entry.Value(), userID, s.defaultPlan)
	if decodeErr != nil {
		return false, decodeErr
	}

	account.CreditsUsed += amount

	data, marshalErr := json.Marshal(account)
	if marshalErr != nil {
		return false, fmt.Errorf("failed to marshal account '%s': %w", userID, marshalErr)
	}

	_, updateErr := s.keyValue.Update(userID, data, entry.Revision())
	if updateErr != nil {
		// Revision conflict with a concurrent charge; retry.
		return false, updateErr
	}

	return true, nil
}

func decodeAccount(data []byte, userID, defaultPlan string) (core.CreditAccount, error) {
	var account core.CreditAccount

	err := json.Unmarshal(data, &account)
	if err != nil {
		return core.CreditAccount{}, fmt.Errorf("failed to unmarshal account '%s': %w", userID, err)
	}

	account.UserID = userID

	if account.PlanName == "" {
		account.PlanName = defaultPlan
	}

	return account, nil
}
