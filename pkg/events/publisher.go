package events

import (
	"time"

	"github.com/anna-project/annad/pkg/models"
)

// Publisher is the typed emission surface used by pkg/qa's Junior/Senior
// loop. Each method builds one models.DebugEvent and fans it out through
// the Manager to every RPC-stream subscriber of the query.
type Publisher struct {
	manager *Manager
	queryID string
	lastAt  time.Time
}

// NewPublisher returns a Publisher scoped to one orchestrated query.
func NewPublisher(manager *Manager, queryID string) *Publisher {
	return &Publisher{manager: manager, queryID: queryID, lastAt: time.Now()}
}

func (p *Publisher) emit(evtType models.DebugEventType, iteration int, description string, payload any) {
	now := time.Now()
	elapsed := now.Sub(p.lastAt).Milliseconds()
	p.lastAt = now

	p.manager.Publish(p.queryID, models.DebugEvent{
		Type:        evtType,
		Timestamp:   now,
		Iteration:   iteration,
		Description: description,
		Payload:     payload,
		ElapsedMS:   &elapsed,
	})
}

// StreamStarted must be emitted before the loop's first action.
func (p *Publisher) StreamStarted() {
	p.emit(models.EventStreamStarted, 0, "orchestrated query started", nil)
}

// StreamEnded must be emitted after the final answer.
func (p *Publisher) StreamEnded() {
	p.emit(models.EventStreamEnded, 0, "orchestrated query ended", nil)
}

// IterationStarted marks the start of one Junior/Senior iteration.
func (p *Publisher) IterationStarted(iteration int) {
	p.emit(models.EventIterationStarted, iteration, "iteration started", nil)
}

// JuniorPlanStarted marks the Junior planner beginning its draft.
func (p *Publisher) JuniorPlanStarted(iteration int, requestedProbes []string) {
	p.emit(models.EventJuniorPlanStarted, iteration, "junior drafting answer",
		models.JuniorPlanPayload{RequestedProbes: requestedProbes})
}

// JuniorPlanDone carries the Junior's draft answer.
func (p *Publisher) JuniorPlanDone(iteration int, draft string, requestedProbes []string) {
	p.emit(models.EventJuniorPlanDone, iteration, "junior produced draft",
		models.JuniorPlanPayload{DraftAnswer: draft, RequestedProbes: requestedProbes})
}

// AnnaProbe marks one probe dispatch.
func (p *Publisher) AnnaProbe(iteration int, name string) {
	p.emit(models.EventAnnaProbe, iteration, "running probe "+name,
		models.ProbeResultPayload{Name: name})
}

// ProbesExecuted reports one probe's result.
func (p *Publisher) ProbesExecuted(iteration int, result models.ProbeResultPayload) {
	p.emit(models.EventProbesExecuted, iteration, "probe "+result.Name+" finished", result)
}

// SeniorReviewStarted marks the Senior reviewer beginning its pass.
func (p *Publisher) SeniorReviewStarted(iteration int) {
	p.emit(models.EventSeniorReviewStarted, iteration, "senior reviewing draft", nil)
}

// SeniorReviewDone carries the Senior's verdict.
func (p *Publisher) SeniorReviewDone(iteration int, verdict models.SeniorVerdictPayload) {
	p.emit(models.EventSeniorReviewDone, iteration, "senior verdict: "+string(verdict.Verdict), verdict)
}

// RetryStarted marks the loop looping back for another iteration.
func (p *Publisher) RetryStarted(iteration int) {
	p.emit(models.EventRetryStarted, iteration, "retrying with additional probes", nil)
}

// AnswerReady carries the finalized answer text.
func (p *Publisher) AnswerReady(iteration int, answer string) {
	p.emit(models.EventAnswerReady, iteration, "answer finalized",
		models.LLMExchangePayload{Response: answer})
}

// Error reports a terminal error for this query.
func (p *Publisher) Error(iteration int, kind models.ErrorKind, message string) {
	p.emit(models.EventError, iteration, "error: "+message,
		models.ErrorPayload{Kind: kind, Message: message})
}

// LlmPromptSent carries the exact prompt sent to the backend.
func (p *Publisher) LlmPromptSent(iteration int, prompt string) {
	p.emit(models.EventLlmPromptSent, iteration, "prompt sent to LLM",
		models.LLMExchangePayload{Prompt: prompt})
}

// LlmResponseReceived carries the raw backend response.
func (p *Publisher) LlmResponseReceived(iteration int, response string) {
	p.emit(models.EventLlmResponseReceived, iteration, "response received from LLM",
		models.LLMExchangePayload{Response: response})
}
