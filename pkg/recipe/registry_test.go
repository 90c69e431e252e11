package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/validate"
)

func TestRegistry_S9_InstallPythonMatches(t *testing.T) {
	reg := DefaultRegistry(nil)

	matched := reg.Match("install Python")
	require.NotNil(t, matched)
	assert.Equal(t, "python", matched.Name())
	assert.Equal(t, OpInstall, matched.DetectOperation("install Python"))

	plan, name, err := reg.BuildPlan("install Python", Telemetry{"internet_connected": "true"})
	require.NoError(t, err)
	assert.Equal(t, "python", name)

	result := validate.Validate(plan, *config.DefaultSafetyConfig())
	assert.True(t, result.Valid, "produced plan must validate: %+v", result.Violations)
}

func TestRegistry_S10_InformationalQueryDoesNotMatch(t *testing.T) {
	reg := DefaultRegistry(nil)
	matched := reg.Match("what is python")
	assert.Nil(t, matched, "informational phrasing must be excluded")
}

func TestRegistry_DispatchesInRegistrationOrder(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(NewPythonRecipe())
	reg.Register(NewVimRecipe())

	assert.Equal(t, "python", reg.Match("install python").Name())
	assert.Equal(t, "vim", reg.Match("install vim").Name())
	assert.Nil(t, reg.Match("install nginx"))
}

func TestRegistry_FallsBackToLLMWhenNoneMatch(t *testing.T) {
	reg := NewRegistry(nil)
	called := false
	reg.SetFallback(func(userInput string, telemetry Telemetry) (models.ActionPlan, error) {
		called = true
		return models.ActionPlan{RecipeName: "llm-fallback"}, nil
	})

	plan, name, err := reg.BuildPlan("set up nginx reverse proxy", nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "", name)
	assert.Equal(t, "llm-fallback", plan.RecipeName)
}

func TestRegistry_NoFallbackConfiguredReturnsError(t *testing.T) {
	reg := NewRegistry(nil)
	_, _, err := reg.BuildPlan("set up nginx", nil)
	assert.Error(t, err)
}

func TestVimRecipe_ConfigurePlanValidates(t *testing.T) {
	r := NewVimRecipe()
	plan := r.BuildPlan("configure vim", nil)
	result := validate.Validate(plan, *config.DefaultSafetyConfig())
	assert.True(t, result.Valid, "%+v", result.Violations)
}

func TestNvidiaRecipe_InstallRequiresConfirmation(t *testing.T) {
	r := NewNvidiaRecipe()
	plan := r.BuildPlan("install nvidia driver", nil)
	for _, step := range plan.Steps {
		if step.Risk == models.RiskHigh {
			assert.True(t, step.RequiresConfirmation)
		}
	}
}
