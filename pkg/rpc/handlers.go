package rpc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anna-project/annad/pkg/advice"
	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
	"github.com/anna-project/annad/pkg/update"
	"github.com/anna-project/annad/pkg/version"
)

// unaryHandler is a non-streaming RPC method: decode params, do the work,
// return a result to be JSON-marshaled into one Response frame.
type unaryHandler func(s *Server, ctx context.Context, params json.RawMessage) (any, error)

var unaryHandlers = map[string]unaryHandler{
	"ping":                        handlePing,
	"health":                      handleHealth,
	"telemetry_snapshot":          handleTelemetrySnapshot,
	"telemetry_history":           handleTelemetryHistory,
	"telemetry_trend":             handleTelemetryTrend,
	"persona_scores":              handlePersonaScores,
	"run_probes":                  handleRunProbes,
	"get_scheduler_config":        handleGetSchedulerConfig,
	"set_scheduler_config":        handleSetSchedulerConfig,
	"check_update":                handleCheckUpdate,
	"perform_update":              handlePerformUpdate,
	"recipe_execute":              handleRecipeExecute,
	"rollback_list":               handleRollbackList,
	"rollback_by_id":              handleRollbackByID,
	"rollback_last_n":             handleRollbackLastN,
	"get_sentinel_state":          handleGetSentinelState,
	"set_sentinel_state":          handleSetSentinelState,
	"get_conscience_state":        handleGetConscienceState,
	"set_conscience_state":        handleSetConscienceState,
	"recommendations":             handleRecommendations,
}

func handlePing(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	return map[string]string{"pong": time.Now().UTC().Format(time.RFC3339)}, nil
}

// HealthResult is the health method's (and /healthz's) result shape.
type HealthResult struct {
	Version        string       `json:"version"`
	Config         config.Stats `json:"config"`
	FactCount      int          `json:"fact_count"`
	HasSnapshot    bool         `json:"has_snapshot"`
	SubscriberSlot int          `json:"event_subscribers"`
}

func handleHealth(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	result := HealthResult{Version: version.Full()}
	if s.config != nil {
		result.Config = s.config.Get().Stats()
	}
	if s.facts != nil {
		result.FactCount = len(s.facts.Snapshot())
	}
	if s.telemetry != nil {
		_, ok := s.telemetry.GetLatestSnapshot()
		result.HasSnapshot = ok
	}
	return result, nil
}

func handleTelemetrySnapshot(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.telemetry == nil {
		return nil, newHandlerError(models.ErrInternal, "telemetry store not wired")
	}
	snap, ok := s.telemetry.GetLatestSnapshot()
	if !ok {
		return nil, newHandlerError(models.ErrInternal, "no snapshot available yet")
	}
	return snap, nil
}

type historyParams struct {
	WindowMinutes int `json:"window_minutes"`
}

func handleTelemetryHistory(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.telemetry == nil {
		return nil, newHandlerError(models.ErrInternal, "telemetry store not wired")
	}
	var p historyParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
		}
	}
	if p.WindowMinutes <= 0 {
		p.WindowMinutes = 60
	}
	return s.telemetry.QueryHistory(ctx, p.WindowMinutes)
}

type trendParams struct {
	Metric        string `json:"metric"`
	WindowMinutes int    `json:"window_minutes"`
}

func handleTelemetryTrend(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.telemetry == nil {
		return nil, newHandlerError(models.ErrInternal, "telemetry store not wired")
	}
	var p trendParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	if p.WindowMinutes <= 0 {
		p.WindowMinutes = 60
	}
	result, err := s.telemetry.QueryTrend(ctx, p.Metric, p.WindowMinutes)
	if err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, err.Error())
	}
	return result, nil
}

func handlePersonaScores(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.telemetry == nil {
		return nil, newHandlerError(models.ErrInternal, "telemetry store not wired")
	}
	scores, err := s.telemetry.QueryLatestPersonaScores(ctx)
	if err != nil {
		return nil, newHandlerError(models.ErrInternal, err.Error())
	}
	return scores, nil
}

type runProbesParams struct {
	Names   []string `json:"names"`
	Timeout int      `json:"timeout_ms"`
}

func handleRunProbes(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.probes == nil {
		return nil, newHandlerError(models.ErrInternal, "probe registry not wired")
	}
	var p runProbesParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	names := p.Names
	if len(names) == 0 {
		names = s.probes.Names()
	}
	timeout := 3 * time.Second // §5 default probe timeout
	if p.Timeout > 0 {
		timeout = time.Duration(p.Timeout) * time.Millisecond
	}

	results := make(map[string]probe.Result, len(names))
	for _, name := range names {
		results[name] = s.probes.Run(ctx, name, timeout)
	}
	return results, nil
}

func handleGetSchedulerConfig(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "config not wired")
	}
	return s.config.Get().Scheduler, nil
}

func handleSetSchedulerConfig(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "config not wired")
	}
	var sched config.SchedulerConfig
	if err := json.Unmarshal(params, &sched); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	return s.config.SetScheduler(sched).Scheduler, nil
}

func handleCheckUpdate(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	info, err := update.Check(ctx)
	if err != nil {
		return nil, newHandlerError(models.ErrInternal, err.Error())
	}
	return info, nil
}

func handlePerformUpdate(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	out, err := update.Perform(ctx)
	if err != nil {
		return nil, newHandlerError(models.ErrInternal, err.Error())
	}
	return map[string]string{"output": out}, nil
}

type recipeExecuteParams struct {
	UserInput  string            `json:"user_input"`
	Telemetry  map[string]string `json:"telemetry,omitempty"`
	AdviceID   string            `json:"advice_id"`
	Confirmed  bool              `json:"confirmed"`
}

func handleRecipeExecute(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.recipes == nil || s.executor == nil || s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "recipe execution not wired")
	}
	var p recipeExecuteParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}

	plan, recipeName, err := s.recipes.BuildPlan(p.UserInput, p.Telemetry)
	if err != nil {
		return nil, newHandlerError(models.ErrInternal, err.Error())
	}

	ctx = withConfirmed(ctx, p.Confirmed)
	outcome, err := s.executor.Run(ctx, plan, p.AdviceID, s.config.Get().Safety)
	if err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, err.Error())
	}
	return map[string]any{"recipe": recipeName, "outcome": outcome}, nil
}

func handleRollbackList(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.ledger == nil {
		return nil, newHandlerError(models.ErrInternal, "rollback ledger not wired")
	}
	return s.ledger.ListRollbackable(), nil
}

type rollbackByIDParams struct {
	AdviceID string `json:"advice_id"`
	DryRun   bool   `json:"dry_run"`
}

func handleRollbackByID(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.ledger == nil {
		return nil, newHandlerError(models.ErrInternal, "rollback ledger not wired")
	}
	var p rollbackByIDParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	record, err := s.ledger.RollbackAction(p.AdviceID, p.DryRun, shellReverse)
	if err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, err.Error())
	}
	return record, nil
}

type rollbackLastNParams struct {
	N      int  `json:"n"`
	DryRun bool `json:"dry_run"`
}

func handleRollbackLastN(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.ledger == nil {
		return nil, newHandlerError(models.ErrInternal, "rollback ledger not wired")
	}
	var p rollbackLastNParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	records, err := s.ledger.RollbackLast(p.N, p.DryRun, shellReverse)
	if err != nil {
		return nil, newHandlerError(models.ErrInternal, err.Error())
	}
	return records, nil
}

func handleGetSentinelState(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "config not wired")
	}
	return map[string]config.AutonomyLevel{"autonomy": s.config.Get().Autonomy}, nil
}

type setSentinelParams struct {
	Autonomy config.AutonomyLevel `json:"autonomy"`
}

func handleSetSentinelState(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "config not wired")
	}
	var p setSentinelParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	if !p.Autonomy.IsValid() {
		return nil, newHandlerError(models.ErrValidationFailed, "unknown autonomy level: "+string(p.Autonomy))
	}
	newCfg := s.config.SetAutonomy(p.Autonomy)
	return map[string]config.AutonomyLevel{"autonomy": newCfg.Autonomy}, nil
}

func handleGetConscienceState(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "config not wired")
	}
	return s.config.Get().Safety, nil
}

func handleSetConscienceState(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "config not wired")
	}
	var safety config.SafetyConfig
	if err := json.Unmarshal(params, &safety); err != nil {
		return nil, newHandlerError(models.ErrValidationFailed, "invalid params: "+err.Error())
	}
	return s.config.SetSafety(safety).Safety, nil
}

func handleRecommendations(s *Server, ctx context.Context, params json.RawMessage) (any, error) {
	if s.adviceEng == nil || s.facts == nil || s.config == nil {
		return nil, newHandlerError(models.ErrInternal, "recommendation engine not wired")
	}
	systemFacts := advice.SystemFacts{Facts: s.facts.Snapshot()}
	return s.adviceEng.Evaluate(s.config.Get(), systemFacts), nil
}

// shellReverse runs a rollback record's reverse command through a plain
// shell invocation, matching the Executor's own argv-tuple discipline.
func shellReverse(command string) error {
	return runShellCommand(command)
}
