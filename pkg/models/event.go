package models

import "time"

// DebugEvent is a single streaming protocol record emitted by the
// Orchestrated Q&A loop (§3.1, §4.9). Payload carries one of the typed
// payload structs below depending on Type; it is nil for simple
// lifecycle events (StreamStarted, StreamEnded, IterationStarted).
type DebugEvent struct {
	Type        DebugEventType `json:"type"`
	Timestamp   time.Time      `json:"timestamp"` // ISO-8601 on the wire
	Iteration   int            `json:"iteration"`
	Description string         `json:"description"`
	Payload     any            `json:"payload,omitempty"`
	ElapsedMS   *int64         `json:"elapsed_ms,omitempty"`
}

// JuniorPlanPayload accompanies JuniorPlanStarted/Done.
type JuniorPlanPayload struct {
	DraftAnswer     string   `json:"draft_answer,omitempty"`
	RequestedProbes []string `json:"requested_probes,omitempty"`
}

// ProbeResultPayload accompanies AnnaProbe/ProbesExecuted.
type ProbeResultPayload struct {
	Name      string `json:"name"`
	Succeeded bool   `json:"succeeded"`
	TimedOut  bool   `json:"timed_out"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// SeniorVerdictPayload accompanies SeniorReviewStarted/Done.
type SeniorVerdictPayload struct {
	Verdict    SeniorVerdict `json:"verdict"`
	Confidence float64       `json:"confidence"`
	Problems   []string      `json:"problems,omitempty"`
}

// LLMExchangePayload accompanies LlmPromptSent/LlmResponseReceived.
type LLMExchangePayload struct {
	Prompt   string `json:"prompt,omitempty"`
	Response string `json:"response,omitempty"`
}

// ErrorPayload accompanies the Error event.
type ErrorPayload struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}
