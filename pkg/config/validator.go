package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var riskLevels = map[string]bool{"Low": true, "Medium": true, "High": true}

// Validator runs all structural and semantic checks on a resolved Config.
type Validator struct {
	cfg      *Config
	validate *validator.Validate
}

// NewValidator constructs a Validator bound to cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg, validate: validator.New()}
}

// ValidateAll runs every sub-check and returns the first failure.
func (v *Validator) ValidateAll() error {
	if err := v.validateMaster(); err != nil {
		return err
	}
	if err := v.validatePriorities(); err != nil {
		return err
	}
	if err := v.validateSafety(); err != nil {
		return err
	}
	if err := v.validateScheduler(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateMaster() error {
	cfg := v.cfg
	if cfg.Autonomy != "" && !cfg.Autonomy.IsValid() {
		return NewValidationError("master", cfg.Profile, "autonomy_level",
			fmt.Errorf("%w: %q", ErrInvalidValue, cfg.Autonomy))
	}
	if cfg.StabilityPreference != "" && !cfg.StabilityPreference.IsValid() {
		return NewValidationError("master", cfg.Profile, "stability_preference",
			fmt.Errorf("%w: %q", ErrInvalidValue, cfg.StabilityPreference))
	}
	if cfg.Privacy != "" && !cfg.Privacy.IsValid() {
		return NewValidationError("master", cfg.Profile, "privacy_mode",
			fmt.Errorf("%w: %q", ErrInvalidValue, cfg.Privacy))
	}
	return nil
}

func (v *Validator) validatePriorities() error {
	p := v.cfg.Priorities
	fields := map[string]PriorityScale{
		"performance":    p.Performance,
		"responsiveness": p.Responsiveness,
		"battery":        p.Battery,
		"aesthetics":     p.Aesthetics,
		"stability":      p.Stability,
		"hands_off":      p.HandsOff,
		"privacy":        p.Privacy,
	}
	for field, scale := range fields {
		if !scale.IsValid() {
			return NewValidationError("priorities", v.cfg.Profile, field,
				fmt.Errorf("%w: must be 1..5, got %d", ErrInvalidValue, scale))
		}
	}
	return nil
}

func (v *Validator) validateSafety() error {
	s := v.cfg.Safety
	if s.MaxRisk != "" && !riskLevels[s.MaxRisk] {
		return NewValidationError("safety", v.cfg.Profile, "max_risk",
			fmt.Errorf("%w: %q", ErrInvalidValue, s.MaxRisk))
	}
	return nil
}

func (v *Validator) validateScheduler() error {
	s := v.cfg.Scheduler
	if s.FactIntervalHours <= 0 {
		return NewValidationError("scheduler", v.cfg.Profile, "fact_interval_hours",
			fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if s.JitterMinutes < 0 {
		return NewValidationError("scheduler", v.cfg.Profile, "jitter_minutes",
			fmt.Errorf("%w: must not be negative", ErrInvalidValue))
	}
	for _, task := range s.ScheduledTasks {
		if err := v.validate.Struct(task); err != nil {
			return NewValidationError("scheduled_task", task.Name, "", err)
		}
		switch task.Schedule {
		case CadenceDaily, CadenceWeekly, CadenceMonthly:
		default:
			return NewValidationError("scheduled_task", task.Name, "schedule",
				fmt.Errorf("%w: %q", ErrInvalidValue, task.Schedule))
		}
	}
	return nil
}
