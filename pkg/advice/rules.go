package advice

import (
	"strconv"
	"strings"

	"github.com/anna-project/annad/pkg/models"
)

// ruleStalePackageCache flags a pacman cache that hasn't been synced
// recently, firing when the package-cache-stale fact is "true".
func ruleStalePackageCache(f SystemFacts) []models.Advice {
	value, ok := f.Get("package-cache-stale")
	if !ok || value != "true" {
		return nil
	}
	return []models.Advice{{
		ID:       "sys-maint-stale-pkg-cache",
		Title:    "Sync the package cache",
		Reason:   "the local package database has not been refreshed recently",
		Action:   "run pacman -Sy to refresh the package database",
		Command:  "sudo pacman -Sy",
		Risk:     models.RiskLow,
		Priority: models.PriorityRecommended,
		Category: "System Maintenance",
		Popularity: 40,
	}}
}

// ruleFailedSystemdUnits surfaces any unit the systemd_failed_units probe
// reported as failed.
func ruleFailedSystemdUnits(f SystemFacts) []models.Advice {
	value, ok := f.Get("service-state:failed")
	if !ok {
		return nil
	}
	count, err := strconv.Atoi(value)
	if err != nil || count == 0 {
		return nil
	}
	return []models.Advice{{
		ID:       "sys-maint-failed-units",
		Title:    "Investigate failed systemd units",
		Reason:   "one or more systemd units are in a failed state",
		Action:   "inspect failed units with systemctl --failed",
		Command:  "systemctl --failed",
		Risk:     models.RiskLow,
		Priority: models.PriorityMandatory,
		Category: "System Maintenance",
		Popularity: 80,
	}}
}

// ruleOrphanedPackages flags packages no longer required by any other
// installed package.
func ruleOrphanedPackages(f SystemFacts) []models.Advice {
	value, ok := f.Get("orphaned-package-count")
	if !ok || value == "0" || value == "" {
		return nil
	}
	return []models.Advice{{
		ID:       "sys-maint-orphaned-packages",
		Title:    "Remove orphaned packages",
		Reason:   "packages are installed that nothing else depends on",
		Action:   "remove orphans with pacman -Rns $(pacman -Qtdq)",
		Command:  "sudo pacman -Rns $(pacman -Qtdq)",
		Risk:     models.RiskMedium,
		Priority: models.PriorityOptional,
		Category: "System Maintenance",
		Popularity: 25,
	}}
}

// ruleUnattendedUpgradesDisabled recommends enabling automatic security
// updates when the fact shows they are off.
func ruleUnattendedUpgradesDisabled(f SystemFacts) []models.Advice {
	value, ok := f.Get("unattended-upgrades-enabled")
	if !ok || value == "true" {
		return nil
	}
	return []models.Advice{{
		ID:       "sec-priv-unattended-upgrades",
		Title:    "Enable automatic security updates",
		Reason:   "the system is not configured to apply security updates automatically",
		Action:   "enable a pacman hook or timer for scheduled upgrades",
		Risk:     models.RiskLow,
		Priority: models.PriorityRecommended,
		Category: "Security & Privacy",
		Popularity: 55,
	}}
}

// ruleFirewallInactive recommends enabling a firewall when none is active.
func ruleFirewallInactive(f SystemFacts) []models.Advice {
	value, ok := f.Get("firewall-active")
	if !ok || value == "true" {
		return nil
	}
	return []models.Advice{{
		ID:       "sec-priv-firewall-inactive",
		Title:    "Enable a firewall",
		Reason:   "no active firewall was detected",
		Action:   "enable and start ufw or firewalld",
		Command:  "sudo systemctl enable --now ufw",
		Risk:     models.RiskMedium,
		Priority: models.PriorityRecommended,
		Category: "Security & Privacy",
		Popularity: 60,
	}}
}

// ruleSwapThrashing flags heavy swap usage, firing when the memory-usage
// fact contains "swap-heavy".
func ruleSwapThrashing(f SystemFacts) []models.Advice {
	memVal, ok := f.Get("memory-usage")
	if !ok {
		return nil
	}
	if !strings.Contains(memVal, "swap-heavy") {
		return nil
	}
	return []models.Advice{{
		ID:       "perf-swap-thrashing",
		Title:    "Reduce swap pressure",
		Reason:   "the system is swapping heavily, which degrades responsiveness",
		Action:   "close memory-heavy applications or add RAM",
		Risk:     models.RiskLow,
		Priority: models.PriorityOptional,
		Category: "Performance & Optimization",
		Popularity: 30,
	}}
}

// ruleDiskNearFull flags a root filesystem above 90% used.
func ruleDiskNearFull(f SystemFacts) []models.Advice {
	value, ok := f.Get("disk-usage-root")
	if !ok {
		return nil
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
	if err != nil || pct < 90 {
		return nil
	}
	return []models.Advice{{
		ID:       "perf-disk-near-full",
		Title:    "Free up disk space",
		Reason:   "the root filesystem is over 90% full",
		Action:   "clear the package cache or remove unused files",
		Command:  "sudo pacman -Sc",
		Risk:     models.RiskLow,
		Priority: models.PriorityMandatory,
		Category: "Performance & Optimization",
		Popularity: 70,
	}}
}

// ruleVPNAlwaysOnMissing recommends always-on VPN when the vpn-active fact
// is present and not "true". Whether the current network is trusted is not
// checked.
func ruleVPNAlwaysOnMissing(f SystemFacts) []models.Advice {
	value, ok := f.Get("vpn-active")
	if !ok || value == "true" {
		return nil
	}
	return []models.Advice{{
		ID:       "net-config-vpn-missing",
		Title:    "Consider an always-on VPN",
		Reason:   "no VPN connection is currently active",
		Action:   "configure a VPN client to connect automatically",
		Risk:     models.RiskLow,
		Priority: models.PriorityCosmetic,
		Category: "Network Configuration",
		Popularity: 15,
	}}
}
