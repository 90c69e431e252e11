package recipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/anna-project/annad/pkg/models"
)

// PythonRecipe handles Python installation, tooling, and virtual
// environment requests.
type PythonRecipe struct{}

// NewPythonRecipe constructs the built-in Python recipe.
func NewPythonRecipe() *PythonRecipe { return &PythonRecipe{} }

func (PythonRecipe) Name() string { return "python" }

func (PythonRecipe) MatchesRequest(userInput string) bool {
	if isInformational(userInput) {
		return false
	}
	lower := strings.ToLower(userInput)
	hasTopic := containsAny(lower, "python", "pip", "venv", "virtualenv")
	hasAction := containsAny(lower, "install", "setup", "create", "check", "status", "configure")
	return hasTopic && hasAction
}

func (PythonRecipe) DetectOperation(userInput string) Operation {
	lower := strings.ToLower(userInput)

	if containsAny(lower, "create", "setup") && containsAny(lower, "venv", "virtualenv", "virtual environment") {
		return OpCreateVenv
	}
	if containsAny(lower, "check", "status") {
		return OpCheckStatus
	}
	if containsAny(lower, "tool", "black", "pylint") && containsAny(lower, "install", "setup") {
		return OpInstallTools
	}
	return OpInstall
}

func (r PythonRecipe) BuildPlan(userInput string, telemetry Telemetry) models.ActionPlan {
	switch r.DetectOperation(userInput) {
	case OpCreateVenv:
		return r.buildCreateVenvPlan()
	case OpCheckStatus:
		return r.buildCheckStatusPlan()
	case OpInstallTools:
		return r.buildInstallToolsPlan()
	default:
		return r.buildInstallPlan(telemetry)
	}
}

func (PythonRecipe) buildInstallPlan(telemetry Telemetry) models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "python",
		Steps: []models.ActionStep{
			{
				ID:          "check-internet",
				Description: "check internet connectivity",
				Risk:        models.RiskLow,
				Commands:    []string{"ping -c1 -W2 archlinux.org"},
			},
			{
				ID:                  "install-python",
				Description:         "install Python 3 and pip",
				Risk:                models.RiskMedium,
				RequiresConfirmation: true,
				Commands:            []string{"sudo pacman -S --noconfirm python python-pip"},
				RollbackID:          "uninstall-python",
				IsPackageOp:         true,
			},
			{
				ID:          "verify-python",
				Description: "verify Python installation",
				Risk:        models.RiskLow,
				Commands:    []string{"python --version"},
			},
			{
				ID:          "upgrade-pip",
				Description: "upgrade pip to latest version",
				Risk:        models.RiskLow,
				Commands:    []string{"python -m pip install --user --upgrade pip"},
			},
		},
		Rollback: map[string]string{
			"uninstall-python": "sudo pacman -Rns python python-pip",
		},
	}
}

func (PythonRecipe) buildInstallToolsPlan() models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "python",
		Steps: []models.ActionStep{
			{
				ID:          "check-pip",
				Description: "check pip is installed",
				Risk:        models.RiskLow,
				Commands:    []string{"which pip"},
			},
			{
				ID:          "install-dev-tools",
				Description: "install Python development tools",
				Risk:        models.RiskLow,
				Commands:    []string{"python -m pip install --user black pylint mypy"},
			},
		},
	}
}

func (PythonRecipe) buildCheckStatusPlan() models.ActionPlan {
	return models.ActionPlan{
		RecipeName: "python",
		Steps: []models.ActionStep{
			{
				ID:          "check-python-version",
				Description: "report Python version",
				Risk:        models.RiskLow,
				Commands:    []string{"python --version || python3 --version"},
			},
			{
				ID:          "check-pip-version",
				Description: "report pip version",
				Risk:        models.RiskLow,
				Commands:    []string{"pip --version"},
			},
		},
	}
}

func (PythonRecipe) buildCreateVenvPlan() models.ActionPlan {
	backup := fmt.Sprintf("cp -r ~/.venv ~/.venv.ANNA_BACKUP.%d 2>/dev/null || true", time.Now().Unix())
	return models.ActionPlan{
		RecipeName: "python",
		Steps: []models.ActionStep{
			{
				ID:          "create-venv",
				Description: "create a Python virtual environment",
				Risk:        models.RiskLow,
				Target:      "~/.venv",
				Backup:      backup,
				Commands:    []string{"python -m venv ~/.venv"},
				RollbackID:  "remove-venv",
			},
		},
		Rollback: map[string]string{
			"remove-venv": "rm -rf ~/.venv",
		},
	}
}
