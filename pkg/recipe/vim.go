package recipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/anna-project/annad/pkg/models"
)

// VimRecipe handles vim installation and configuration requests.
type VimRecipe struct{}

// NewVimRecipe constructs the built-in vim recipe.
func NewVimRecipe() *VimRecipe { return &VimRecipe{} }

func (VimRecipe) Name() string { return "vim" }

func (VimRecipe) MatchesRequest(userInput string) bool {
	if isInformational(userInput) {
		return false
	}
	lower := strings.ToLower(userInput)
	hasTopic := containsAny(lower, "vim", "neovim", "nvim", "vimrc")
	hasAction := containsAny(lower, "install", "setup", "configure", "check", "status")
	return hasTopic && hasAction
}

func (VimRecipe) DetectOperation(userInput string) Operation {
	lower := strings.ToLower(userInput)
	if containsAny(lower, "check", "status") {
		return OpCheckStatus
	}
	if containsAny(lower, "configure", "setup") {
		return OpConfigure
	}
	return OpInstall
}

func (r VimRecipe) BuildPlan(userInput string, telemetry Telemetry) models.ActionPlan {
	switch r.DetectOperation(userInput) {
	case OpCheckStatus:
		return r.buildCheckStatusPlan()
	case OpConfigure:
		return r.buildConfigurePlan()
	default:
		return r.buildInstallPlan()
	}
}

func (VimRecipe) buildInstallPlan() models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "vim",
		Steps: []models.ActionStep{
			{
				ID:          "check-internet",
				Description: "check internet connectivity",
				Risk:        models.RiskLow,
				Commands:    []string{"ping -c1 -W2 archlinux.org"},
			},
			{
				ID:                  "install-vim",
				Description:         "install vim",
				Risk:                models.RiskMedium,
				RequiresConfirmation: true,
				Commands:            []string{"sudo pacman -S --noconfirm vim"},
				RollbackID:          "uninstall-vim",
				IsPackageOp:         true,
			},
			{
				ID:          "verify-vim",
				Description: "verify vim installation",
				Risk:        models.RiskLow,
				Commands:    []string{"vim --version"},
			},
		},
		Rollback: map[string]string{
			"uninstall-vim": "sudo pacman -Rns vim",
		},
	}
}

func (VimRecipe) buildCheckStatusPlan() models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "vim",
		Steps: []models.ActionStep{
			{
				ID:          "check-vim-version",
				Description: "report vim version",
				Risk:        models.RiskLow,
				Commands:    []string{"vim --version | head -1"},
			},
		},
	}
}

func (VimRecipe) buildConfigurePlan() models.ActionPlan {
	backup := fmt.Sprintf("cp ~/.vimrc ~/.vimrc.ANNA_BACKUP.%d", time.Now().Unix())
	return models.ActionPlan{
		RecipeName: "vim",
		Steps: []models.ActionStep{
			{
				ID:          "configure-vimrc",
				Description: "apply recommended vim settings",
				Risk:        models.RiskLow,
				Target:      "~/.vimrc",
				Backup:      backup,
				Commands: []string{
					"echo 'set number' >> ~/.vimrc",
					"echo 'syntax on' >> ~/.vimrc",
				},
				RollbackID: "restore-vimrc",
			},
		},
		Rollback: map[string]string{
			"restore-vimrc": "mv ~/.vimrc.ANNA_BACKUP.* ~/.vimrc",
		},
	}
}
