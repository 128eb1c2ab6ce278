package core

import "context"

// PlanStore resolves a plan name to its policy. Lookup is case-insensitive
// and falls back to the default (lowest) tier for unknown names; it never
// fails closed.
type PlanStore interface {
	Lookup(name string) PlanPolicy
}

// AccountStore provides the read-once/write-once access the meter needs.
// Charge must be serialized against concurrent charges for the same user so
// that two in-flight requests cannot both spend the same budget.
type AccountStore interface {
	Load(ctx context.Context, userID string) (CreditAccount, error)
	Charge(ctx context.Context, userID string, amount int) error
}

// ArtifactStore persists a finished audio artifact and assigns its
// retrievable location.
type ArtifactStore interface {
	Save(ctx context.Context, data []byte) (string, error)
}

// PersistenceSink appends a conversion record once an artifact has a
// location.
type PersistenceSink interface {
	Record(ctx context.Context, record ConversionRecord) error
}
