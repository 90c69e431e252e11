package recipe

import (
	"strings"

	"github.com/anna-project/annad/pkg/models"
)

// NvidiaRecipe handles NVIDIA driver installation, upgrade, and status
// check requests.
type NvidiaRecipe struct{}

// NewNvidiaRecipe constructs the built-in NVIDIA recipe.
func NewNvidiaRecipe() *NvidiaRecipe { return &NvidiaRecipe{} }

func (NvidiaRecipe) Name() string { return "nvidia" }

func (NvidiaRecipe) MatchesRequest(userInput string) bool {
	if isInformational(userInput) {
		return false
	}
	lower := strings.ToLower(userInput)
	hasTopic := containsAny(lower, "nvidia", "gpu driver", "graphics driver")
	hasAction := containsAny(lower, "install", "setup", "configure", "check", "status", "upgrade", "update")
	return hasTopic && hasAction
}

func (NvidiaRecipe) DetectOperation(userInput string) Operation {
	lower := strings.ToLower(userInput)
	if containsAny(lower, "check", "status") {
		return OpCheckStatus
	}
	if containsAny(lower, "upgrade", "update") {
		return OpUpgrade
	}
	return OpInstall
}

func (r NvidiaRecipe) BuildPlan(userInput string, telemetry Telemetry) models.ActionPlan {
	switch r.DetectOperation(userInput) {
	case OpCheckStatus:
		return r.buildCheckStatusPlan()
	case OpUpgrade:
		return r.buildUpgradePlan()
	default:
		return r.buildInstallPlan(telemetry)
	}
}

func (NvidiaRecipe) buildInstallPlan(telemetry Telemetry) models.ActionPlan {
	driverPackage := "nvidia"
	if telemetry["kernel_flavor"] == "lts" {
		driverPackage = "nvidia-lts"
	}

	return models.ActionPlan{
		RecipeName: "nvidia",
		Steps: []models.ActionStep{
			{
				ID:          "detect-gpu",
				Description: "confirm an NVIDIA GPU is present",
				Risk:        models.RiskLow,
				Commands:    []string{"lspci | grep -i nvidia"},
			},
			{
				ID:                  "install-driver",
				Description:         "install the NVIDIA driver",
				Risk:                models.RiskHigh,
				RequiresConfirmation: true,
				Commands:            []string{"sudo pacman -S --noconfirm " + driverPackage + " nvidia-utils"},
				RollbackID:          "uninstall-driver",
				IsPackageOp:         true,
			},
			{
				ID:          "rebuild-initramfs",
				Description: "rebuild the initramfs to include the new driver",
				Risk:        models.RiskMedium,
				RequiresConfirmation: true,
				Commands:    []string{"sudo mkinitcpio -P"},
			},
		},
		Rollback: map[string]string{
			"uninstall-driver": "sudo pacman -Rns " + driverPackage + " nvidia-utils",
		},
	}
}

func (NvidiaRecipe) buildUpgradePlan() models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "nvidia",
		Steps: []models.ActionStep{
			{
				ID:                  "upgrade-driver",
				Description:         "upgrade the NVIDIA driver",
				Risk:                models.RiskHigh,
				RequiresConfirmation: true,
				Commands:            []string{"sudo pacman -Syu --noconfirm nvidia nvidia-utils"},
			},
			{
				ID:          "rebuild-initramfs",
				Description: "rebuild the initramfs",
				Risk:        models.RiskMedium,
				RequiresConfirmation: true,
				Commands:    []string{"sudo mkinitcpio -P"},
			},
		},
	}
}

func (NvidiaRecipe) buildCheckStatusPlan() models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "nvidia",
		Steps: []models.ActionStep{
			{
				ID:          "check-driver-version",
				Description: "report the loaded NVIDIA driver version",
				Risk:        models.RiskLow,
				Commands:    []string{"nvidia-smi --query-gpu=driver_version --format=csv,noheader"},
			},
		},
	}
}
