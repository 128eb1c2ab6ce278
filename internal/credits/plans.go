// Package credits implements the usage meter that gates synthesis
// requests against a per-user, per-plan credit budget, along with the plan
// policy table and the NATS-backed credit account store.
package credits

import (
	"strings"

	"github.com/readaloud/synthesis-service/internal/config"
	"github.com/readaloud/synthesis-service/internal/core"
)

// Built-in lowest tier used when the configured table is empty or the
// configured default cannot be resolved. Plan lookup fails open to the
// safest policy, never closed.
const (
	fallbackPlanName      = "Basic"
	fallbackCreditLimit   = 3000
	fallbackRetentionDays = 7
)

// StaticPlanStore resolves plan names against the tier table loaded from
// configuration.
type StaticPlanStore struct {
	byName      map[string]core.PlanPolicy
	defaultName string
}

// NewStaticPlanStore builds a plan store from the configured tier table.
func NewStaticPlanStore(cfg config.PlansConfig) *StaticPlanStore {
	byName := make(map[string]core.PlanPolicy, len(cfg.Tiers))

	for _, tier := range cfg.Tiers {
		byName[strings.ToLower(tier.Name)] = core.PlanPolicy{
			Name:                 tier.Name,
			CreditLimit:          tier.CreditLimit,
			HistoryRetentionDays: tier.HistoryRetentionDays,
		}
	}

	defaultName := cfg.Default
	if defaultName == "" {
		defaultName = fallbackPlanName
	}

	return &StaticPlanStore{
		byName:      byName,
		defaultName: defaultName,
	}
}

// Lookup resolves a plan name case-insensitively, falling back to the
// default tier for unknown names and to the built-in lowest tier when even
// the default is missing.
func (s *StaticPlanStore) Lookup(name string) core.PlanPolicy {
	if policy, found := s.byName[strings.ToLower(name)]; found {
		return policy
	}

	if policy, found := s.byName[strings.ToLower(s.defaultName)]; found {
		return policy
	}

	return core.PlanPolicy{
		Name:                 fallbackPlanName,
		CreditLimit:          fallbackCreditLimit,
		HistoryRetentionDays: fallbackRetentionDays,
	}
}

// DefaultPlanName reports the name new accounts are created under.
func (s *StaticPlanStore) DefaultPlanName() string {
	return s.defaultName
}
