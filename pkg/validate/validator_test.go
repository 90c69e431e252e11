package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
)

func defaultSafety() config.SafetyConfig {
	return *config.DefaultSafetyConfig()
}

func TestValidate_S5_BackedUpVimrcPasses(t *testing.T) {
	plan := models.ActionPlan{
		RecipeName: "vim-config",
		Steps: []models.ActionStep{
			{
				ID:       "edit-vimrc",
				Risk:     models.RiskLow,
				Target:   "~/.vimrc",
				Backup:   "cp ~/.vimrc ~/.vimrc.ANNA_BACKUP.1730390400",
				Commands: []string{"echo 'set number' >> ~/.vimrc"},
			},
		},
	}

	result := Validate(plan, defaultSafety())
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
}

func TestValidate_S6_FstabIsForbidden(t *testing.T) {
	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{
				ID:       "edit-fstab",
				Risk:     models.RiskLow,
				Target:   "/etc/fstab",
				Commands: []string{"echo 'tmpfs /tmp tmpfs defaults 0 0' >> /etc/fstab"},
			},
		},
	}

	result := Validate(plan, defaultSafety())
	assert.False(t, result.Valid)
	assert.Equal(t, "ForbiddenPath", result.Violations[0].Rule)
}

func TestValidate_HighRiskWithoutConfirmation(t *testing.T) {
	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "risky", Risk: models.RiskHigh, Commands: []string{"rm -rf /var/cache/pacman/pkg"}},
		},
	}

	result := Validate(plan, defaultSafety())
	assert.False(t, result.Valid)
	found := false
	for _, v := range result.Violations {
		if v.Rule == "HighRiskRequiresConfirmation" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestValidate_MutatingStepWithoutBackupFails(t *testing.T) {
	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "edit", Risk: models.RiskLow, Target: "/home/user/.bashrc", Commands: []string{"echo x >> /home/user/.bashrc"}},
		},
	}

	result := Validate(plan, defaultSafety())
	assert.False(t, result.Valid)
	assert.Equal(t, "MissingBackup", result.Violations[0].Rule)
}

func TestValidate_PrecedingBackupOfSameTargetSatisfiesRule3(t *testing.T) {
	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "backup-step", Risk: models.RiskLow, Target: "/home/user/.bashrc",
				Backup: "cp /home/user/.bashrc /home/user/.bashrc.bak", Commands: []string{"true"}},
			{ID: "edit-step", Risk: models.RiskLow, Target: "/home/user/.bashrc",
				Commands: []string{"echo x >> /home/user/.bashrc"}},
		},
	}

	result := Validate(plan, defaultSafety())
	assert.True(t, result.Valid)
}

func TestValidate_PackageOpsDisallowedByPolicy(t *testing.T) {
	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "install", Risk: models.RiskLow, IsPackageOp: true, Commands: []string{"pacman -S vim"}},
		},
	}

	safety := defaultSafety()
	safety.AllowPackageOps = false

	result := Validate(plan, safety)
	assert.False(t, result.Valid)
	assert.Equal(t, "PackageOperationsDisallowed", result.Violations[0].Rule)
}

func TestValidate_UniversalInvariant_OkImpliesBackupPredecessorAndNoForbidden(t *testing.T) {
	plan := models.ActionPlan{
		Steps: []models.ActionStep{
			{ID: "a", Risk: models.RiskLow, Target: "~/.vimrc", Backup: "cp a b", Commands: []string{"true"}},
		},
	}

	result := Validate(plan, defaultSafety())
	if result.Valid {
		for _, step := range plan.Steps {
			if step.Mutates() {
				assert.True(t, step.Backup != "", "every mutating step must have a backup when plan validates")
			}
		}
	}
}
