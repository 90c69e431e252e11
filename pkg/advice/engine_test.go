package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
)

func factsWith(kv map[models.FactCategory]string) SystemFacts {
	facts := make(map[models.FactCategory]models.LearnedFact, len(kv))
	for k, v := range kv {
		facts[k] = models.LearnedFact{Category: k, Value: v}
	}
	return SystemFacts{Facts: facts}
}

func TestEngine_EvaluateRunsEnabledGroupsOnly(t *testing.T) {
	engine := New(
		Group{Name: "A", Module: config.ModuleSystemMaintenance, Rules: []Rule{
			func(f SystemFacts) []models.Advice {
				return []models.Advice{{ID: "a-1", Priority: models.PriorityOptional}}
			},
		}},
		Group{Name: "B", Module: config.ModuleNetworkConfig, Rules: []Rule{
			func(f SystemFacts) []models.Advice {
				return []models.Advice{{ID: "b-1", Priority: models.PriorityOptional}}
			},
		}},
	)

	cfg := &config.Config{ModuleScopes: []config.ModuleScope{config.ModuleSystemMaintenance}}
	result := engine.Evaluate(cfg, SystemFacts{})
	require.Len(t, result, 1)
	assert.Equal(t, "a-1", result[0].ID)
}

func TestEngine_DedupByID(t *testing.T) {
	engine := New(Group{Name: "A", Module: config.ModuleSystemMaintenance, Rules: []Rule{
		func(f SystemFacts) []models.Advice {
			return []models.Advice{{ID: "dup", Priority: models.PriorityOptional}, {ID: "dup", Priority: models.PriorityMandatory}}
		},
	}})

	result := engine.Evaluate(nil, SystemFacts{})
	require.Len(t, result, 1)
	assert.Equal(t, models.PriorityOptional, result[0].Priority, "first occurrence wins")
}

func TestEngine_SatisfiesSubsumesOtherAdvice(t *testing.T) {
	engine := New(Group{Name: "A", Module: config.ModuleSystemMaintenance, Rules: []Rule{
		func(f SystemFacts) []models.Advice {
			return []models.Advice{
				{ID: "broad-fix", Priority: models.PriorityRecommended, Satisfies: []string{"narrow-fix"}},
				{ID: "narrow-fix", Priority: models.PriorityOptional},
			}
		},
	}})

	result := engine.Evaluate(nil, SystemFacts{})
	require.Len(t, result, 1)
	assert.Equal(t, "broad-fix", result[0].ID)
}

func TestEngine_SortsByPriorityThenPopularity(t *testing.T) {
	engine := New(Group{Name: "A", Module: config.ModuleSystemMaintenance, Rules: []Rule{
		func(f SystemFacts) []models.Advice {
			return []models.Advice{
				{ID: "opt-low-pop", Priority: models.PriorityOptional, Popularity: 1},
				{ID: "mandatory", Priority: models.PriorityMandatory, Popularity: 0},
				{ID: "opt-high-pop", Priority: models.PriorityOptional, Popularity: 50},
			}
		},
	}})

	result := engine.Evaluate(nil, SystemFacts{})
	require.Len(t, result, 3)
	assert.Equal(t, "mandatory", result[0].ID)
	assert.Equal(t, "opt-high-pop", result[1].ID)
	assert.Equal(t, "opt-low-pop", result[2].ID)
}

func TestRules_FailedSystemdUnitsTriggersOnNonZeroCount(t *testing.T) {
	facts := factsWith(map[models.FactCategory]string{"service-state:failed": "2"})
	result := ruleFailedSystemdUnits(facts)
	require.Len(t, result, 1)
	assert.Equal(t, "sys-maint-failed-units", result[0].ID)
}

func TestRules_FailedSystemdUnitsSilentWhenZero(t *testing.T) {
	facts := factsWith(map[models.FactCategory]string{"service-state:failed": "0"})
	assert.Empty(t, ruleFailedSystemdUnits(facts))
}

func TestRules_DiskNearFullTriggersAbove90Percent(t *testing.T) {
	facts := factsWith(map[models.FactCategory]string{"disk-usage-root": "94.2%"})
	result := ruleDiskNearFull(facts)
	require.Len(t, result, 1)
	assert.Equal(t, models.RiskLow, result[0].Risk)
}

func TestRules_DiskNearFullSilentBelowThreshold(t *testing.T) {
	facts := factsWith(map[models.FactCategory]string{"disk-usage-root": "40%"})
	assert.Empty(t, ruleDiskNearFull(facts))
}

func TestRules_FirewallInactiveRecommendsEnabling(t *testing.T) {
	facts := factsWith(map[models.FactCategory]string{"firewall-active": "false"})
	result := ruleFirewallInactive(facts)
	require.Len(t, result, 1)
	assert.Equal(t, "Security & Privacy", result[0].Category)
}

func TestDefaultEngine_EvaluatesWithoutPanicking(t *testing.T) {
	engine := DefaultEngine()
	facts := factsWith(map[models.FactCategory]string{
		"service-state:failed": "1",
		"disk-usage-root":      "95%",
	})
	result := engine.Evaluate(nil, facts)
	assert.NotEmpty(t, result)
}
