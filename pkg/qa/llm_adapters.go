package qa

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anna-project/annad/pkg/events"
	"github.com/anna-project/annad/pkg/llm"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
)

// NewLLMTranslator builds a Translator backed by client: one Complete call
// asking for a JSON-encoded Intent, per §4.9's "maps the free-form user
// question to a structured intent + requested probe list + evidence-required
// flag". publisher may be nil; when set, the exact prompt/response are
// emitted as Debug Events (§4.9's LlmPromptSent/LlmResponseReceived).
func NewLLMTranslator(client *llm.Client, publisher *events.Publisher) Translator {
	return func(ctx context.Context, question string) (Intent, error) {
		prompt := translatorPrompt(question)
		if publisher != nil {
			publisher.LlmPromptSent(0, prompt)
		}
		completion, err := client.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: translatorSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		})
		if err != nil {
			return Intent{}, fmt.Errorf("qa: translator completion: %w", err)
		}
		if publisher != nil {
			publisher.LlmResponseReceived(0, completion.Content)
		}

		var parsed struct {
			RequestedProbes  []string `json:"requested_probes"`
			EvidenceRequired bool     `json:"evidence_required"`
			Confidence       float64  `json:"confidence"`
		}
		if err := json.Unmarshal([]byte(extractJSON(completion.Content)), &parsed); err != nil {
			// A Translator that can't parse its own structured reply falls
			// back to treating the question as evidence-required with no
			// probes pre-selected, letting Junior request what it needs.
			return Intent{Question: question, EvidenceRequired: true, Confidence: 0}, nil
		}
		return Intent{
			Question:         question,
			RequestedProbes:  parsed.RequestedProbes,
			EvidenceRequired: parsed.EvidenceRequired,
			Confidence:       parsed.Confidence,
		}, nil
	}
}

const translatorSystemPrompt = `You are Anna's intent translator. Given a user's question about their ` +
	`Linux system, reply with a single JSON object: {"requested_probes": [probe names], ` +
	`"evidence_required": bool, "confidence": number in [0,1]}. Request only probes that are ` +
	`actually relevant to answering the question.`

func translatorPrompt(question string) string {
	return "Question: " + question
}

// NewLLMJunior builds a Junior backed by client, per §4.9's "consumes intent
// and drafts an answer + requests any additional probes".
func NewLLMJunior(client *llm.Client, publisher *events.Publisher) Junior {
	return func(ctx context.Context, intent Intent, evidence map[string]probe.Result, iteration int) (JuniorDraft, error) {
		prompt := juniorPrompt(intent, evidence)
		if publisher != nil {
			publisher.LlmPromptSent(iteration, prompt)
		}
		completion, err := client.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: juniorSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		})
		if err != nil {
			return JuniorDraft{}, fmt.Errorf("qa: junior completion: %w", err)
		}
		if publisher != nil {
			publisher.LlmResponseReceived(iteration, completion.Content)
		}

		var parsed struct {
			Answer          string   `json:"answer"`
			RequestedProbes []string `json:"requested_probes"`
		}
		if err := json.Unmarshal([]byte(extractJSON(completion.Content)), &parsed); err != nil {
			return JuniorDraft{Answer: completion.Content}, nil
		}
		return JuniorDraft{Answer: parsed.Answer, RequestedProbes: parsed.RequestedProbes}, nil
	}
}

const juniorSystemPrompt = `You are Anna's Junior planner. Draft an answer to the user's question using ` +
	`only the evidence given below. If you need more evidence, list additional probe names. Reply with a ` +
	`single JSON object: {"answer": string, "requested_probes": [probe names]}. Never invent a fact not ` +
	`present in the evidence.`

func juniorPrompt(intent Intent, evidence map[string]probe.Result) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(intent.Question)
	b.WriteString("\nEvidence so far:\n")
	if len(evidence) == 0 {
		b.WriteString("(none)\n")
	}
	for name, result := range evidence {
		fmt.Fprintf(&b, "- %s: %s\n", name, result.RawOutput)
	}
	return b.String()
}

// NewLLMSenior builds a Senior backed by client, per §4.9's "verifies the
// draft against collected evidence; returns one of {Approve, FixAndAccept,
// NeedsMoreProbes, Refuse} with a confidence in [0,1] and a problems list".
func NewLLMSenior(client *llm.Client, publisher *events.Publisher) Senior {
	return func(ctx context.Context, intent Intent, draft JuniorDraft, evidence map[string]probe.Result, iteration int) (SeniorReview, error) {
		prompt := seniorPrompt(intent, draft, evidence)
		if publisher != nil {
			publisher.LlmPromptSent(iteration, prompt)
		}
		completion, err := client.Complete(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: seniorSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		})
		if err != nil {
			return SeniorReview{}, fmt.Errorf("qa: senior completion: %w", err)
		}
		if publisher != nil {
			publisher.LlmResponseReceived(iteration, completion.Content)
		}

		var parsed struct {
			Verdict    string   `json:"verdict"`
			Confidence float64  `json:"confidence"`
			Problems   []string `json:"problems"`
		}
		if err := json.Unmarshal([]byte(extractJSON(completion.Content)), &parsed); err != nil {
			// An unparseable verdict is treated as NeedsMoreProbes rather
			// than silently approving an unverified draft.
			return SeniorReview{Verdict: models.VerdictNeedsMoreProbes, Problems: []string{"senior reply was not parseable JSON"}}, nil
		}
		verdict := models.SeniorVerdict(parsed.Verdict)
		switch verdict {
		case models.VerdictApprove, models.VerdictFixAndAccept, models.VerdictNeedsMoreProbes, models.VerdictRefuse:
		default:
			verdict = models.VerdictNeedsMoreProbes
			parsed.Problems = append(parsed.Problems, "unrecognized verdict: "+parsed.Verdict)
		}
		return SeniorReview{Verdict: verdict, Confidence: parsed.Confidence, Problems: parsed.Problems}, nil
	}
}

const seniorSystemPrompt = `You are Anna's Senior reviewer. Check the Junior's draft answer strictly ` +
	`against the evidence given. Reply with a single JSON object: {"verdict": one of "Approve", ` +
	`"FixAndAccept", "NeedsMoreProbes", "Refuse", "confidence": number in [0,1], "problems": [strings]}. ` +
	`Choose Refuse when the evidence cannot support any reliable answer.`

func seniorPrompt(intent Intent, draft JuniorDraft, evidence map[string]probe.Result) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(intent.Question)
	b.WriteString("\nDraft answer: ")
	b.WriteString(draft.Answer)
	b.WriteString("\nEvidence:\n")
	for name, result := range evidence {
		fmt.Fprintf(&b, "- %s: %s\n", name, result.RawOutput)
	}
	return b.String()
}

// extractJSON trims a completion down to its outermost {...} span, tolerating
// backends that wrap structured replies in prose or markdown code fences.
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start == -1 || end == -1 || end < start {
		return content
	}
	return content[start : end+1]
}
