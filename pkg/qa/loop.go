// Package qa implements the Orchestrated Q&A loop (§4.9): a bounded
// Translator → Junior → Probes → Senior cycle producing one answer, scored
// by the Reliability Scorer and streamed as Debug Events.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anna-project/annad/pkg/events"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
	"github.com/anna-project/annad/pkg/reliability"
)

// MaxIterations bounds the Junior/Senior loop (§4.9).
const MaxIterations = 3

// DefaultStageBudget is the per-stage ms budget (§4.9).
const DefaultStageBudget = 12 * time.Second

// Intent is the Translator's structured reading of a free-form question.
type Intent struct {
	Question         string
	RequestedProbes  []string
	EvidenceRequired bool
	Confidence       float64
}

// Translator maps a free-form question to a structured Intent.
type Translator func(ctx context.Context, question string) (Intent, error)

// JuniorDraft is what the Junior planner proposes for one iteration.
type JuniorDraft struct {
	Answer          string
	RequestedProbes []string
}

// Junior drafts an answer and requests additional probes given the running
// evidence so far.
type Junior func(ctx context.Context, intent Intent, evidence map[string]probe.Result, iteration int) (JuniorDraft, error)

// SeniorReview is the Senior reviewer's disposition for a Junior draft.
type SeniorReview struct {
	Verdict    models.SeniorVerdict
	Confidence float64
	Problems   []string
}

// Senior verifies a Junior draft against the collected evidence.
type Senior func(ctx context.Context, intent Intent, draft JuniorDraft, evidence map[string]probe.Result, iteration int) (SeniorReview, error)

// Answer is the loop's final product.
type Answer struct {
	Text        string
	Reliability models.ReliabilityOutput
	Iterations  int
	Refused     bool
}

// Loop wires Translator/Junior/Probes/Senior with the Reliability Scorer
// and Debug Event emission.
type Loop struct {
	translator Translator
	junior     Junior
	senior     Senior
	probes     *probe.Registry
	publisher  *events.Publisher

	stageBudget time.Duration
	maxIter     int
}

// New constructs a Loop. publisher may be nil for callers that don't need
// streamed events (e.g. tests).
func New(translator Translator, junior Junior, senior Senior, probes *probe.Registry, publisher *events.Publisher) *Loop {
	return &Loop{
		translator:  translator,
		junior:      junior,
		senior:      senior,
		probes:      probes,
		publisher:   publisher,
		stageBudget: DefaultStageBudget,
		maxIter:     MaxIterations,
	}
}

// Run executes the bounded loop for one question and returns a scored
// Answer (§4.9).
func (l *Loop) Run(ctx context.Context, question string) (Answer, error) {
	l.emit(func(p *events.Publisher) { p.StreamStarted() })
	defer l.emit(func(p *events.Publisher) { p.StreamEnded() })

	input := models.ReliabilityInput{}

	intent, err, elapsed, exceeded := stage(l, ctx, func(stageCtx context.Context) (Intent, error) {
		return l.translator(stageCtx, question)
	})
	if err != nil {
		l.emit(func(p *events.Publisher) { p.Error(0, models.ErrInternal, err.Error()) })
		return Answer{}, fmt.Errorf("qa: translator stage failed: %w", err)
	}
	input.TranslatorUsed = true
	input.TranslatorConfidence = intent.Confidence
	input.EvidenceRequired = intent.EvidenceRequired
	if exceeded {
		input.BudgetExceeded = true
		input.BudgetStage = "translator"
		input.BudgetElapsedMS = elapsed.Milliseconds()
		input.BudgetLimitMS = l.stageBudget.Milliseconds()
	}

	evidence := make(map[string]probe.Result)
	requested := intent.RequestedProbes

	var (
		draft  JuniorDraft
		review SeniorReview
	)

	for iteration := 1; iteration <= l.maxIter; iteration++ {
		l.emit(func(p *events.Publisher) { p.IterationStarted(iteration) })

		l.emit(func(p *events.Publisher) { p.JuniorPlanStarted(iteration, requested) })
		var juniorErr error
		draft, juniorErr, elapsed, exceeded = stage(l, ctx, func(stageCtx context.Context) (JuniorDraft, error) {
			return l.junior(stageCtx, intent, evidence, iteration)
		})
		if juniorErr != nil {
			l.emit(func(p *events.Publisher) { p.Error(iteration, models.ErrInternal, juniorErr.Error()) })
			return Answer{}, fmt.Errorf("qa: junior stage failed: %w", juniorErr)
		}
		if exceeded {
			input.BudgetExceeded = true
			input.BudgetStage = "junior"
			input.BudgetElapsedMS = elapsed.Milliseconds()
			input.BudgetLimitMS = l.stageBudget.Milliseconds()
		}
		l.emit(func(p *events.Publisher) { p.JuniorPlanDone(iteration, draft.Answer, draft.RequestedProbes) })

		requested = draft.RequestedProbes
		runProbes(ctx, l.probes, requested, evidence, l.publisher, iteration)
		input.PlannedProbes += len(requested)
		for _, name := range requested {
			result := evidence[name]
			switch result.Status {
			case probe.StatusOk:
				input.SucceededProbes++
			case probe.StatusTimedOut:
				input.TimedOutProbes++
			case probe.StatusFailed:
				input.FailedProbes++
			}
		}

		l.emit(func(p *events.Publisher) { p.SeniorReviewStarted(iteration) })
		var seniorErr error
		review, seniorErr, elapsed, exceeded = stage(l, ctx, func(stageCtx context.Context) (SeniorReview, error) {
			return l.senior(stageCtx, intent, draft, evidence, iteration)
		})
		if seniorErr != nil {
			l.emit(func(p *events.Publisher) { p.Error(iteration, models.ErrInternal, seniorErr.Error()) })
			return Answer{}, fmt.Errorf("qa: senior stage failed: %w", seniorErr)
		}
		if exceeded {
			input.BudgetExceeded = true
			input.BudgetStage = "senior"
			input.BudgetElapsedMS = elapsed.Milliseconds()
			input.BudgetLimitMS = l.stageBudget.Milliseconds()
		}
		l.emit(func(p *events.Publisher) {
			p.SeniorReviewDone(iteration, models.SeniorVerdictPayload{
				Verdict:    review.Verdict,
				Confidence: review.Confidence,
				Problems:   review.Problems,
			})
		})

		switch review.Verdict {
		case models.VerdictApprove, models.VerdictFixAndAccept:
			input.NoInvention = checkNoInvention(draft.Answer, evidence)
			input.AnswerGrounded = checkGrounded(intent.EvidenceRequired, draft.Answer, evidence)
			score := reliability.Score(input)
			answer := Answer{Text: draft.Answer, Reliability: score, Iterations: iteration}
			l.emit(func(p *events.Publisher) { p.AnswerReady(iteration, answer.Text) })
			return answer, nil
		case models.VerdictNeedsMoreProbes:
			if iteration < l.maxIter {
				l.emit(func(p *events.Publisher) { p.RetryStarted(iteration) })
				continue
			}
			// Exhausted retries; fall through to a low-reliability answer.
			input.NoInvention = checkNoInvention(draft.Answer, evidence)
			input.AnswerGrounded = checkGrounded(intent.EvidenceRequired, draft.Answer, evidence)
			score := reliability.Score(input)
			answer := Answer{Text: draft.Answer, Reliability: score, Iterations: iteration}
			l.emit(func(p *events.Publisher) { p.AnswerReady(iteration, answer.Text) })
			return answer, nil
		case models.VerdictRefuse:
			score := reliability.Score(input)
			answer := Answer{
				Text:        "I don't have enough reliable evidence to answer that.",
				Reliability: score,
				Iterations:  iteration,
				Refused:     true,
			}
			l.emit(func(p *events.Publisher) { p.AnswerReady(iteration, answer.Text) })
			return answer, nil
		}
	}

	score := reliability.Score(input)
	return Answer{Text: draft.Answer, Reliability: score, Iterations: l.maxIter}, nil
}

// stage runs fn under the loop's per-stage budget, cancelling fn's context
// on deadline expiry (§5: "in-flight probes are cancelled ... the current
// stage is marked budget_exceeded") and reports fn's error alongside the
// elapsed time and whether the budget was exceeded.
func stage[T any](l *Loop, ctx context.Context, fn func(context.Context) (T, error)) (T, error, time.Duration, bool) {
	stageCtx, cancel := context.WithTimeout(ctx, l.stageBudget)
	defer cancel()

	start := time.Now()
	result, err := fn(stageCtx)
	elapsed := time.Since(start)
	exceeded := elapsed > l.stageBudget || errors.Is(stageCtx.Err(), context.DeadlineExceeded)
	return result, err, elapsed, exceeded
}

func runProbes(ctx context.Context, registry *probe.Registry, names []string, evidence map[string]probe.Result, publisher *events.Publisher, iteration int) {
	if registry == nil {
		return
	}
	for _, name := range names {
		if publisher != nil {
			publisher.AnnaProbe(iteration, name)
		}
		result := registry.Run(ctx, name, DefaultStageBudget)
		evidence[name] = result
		if publisher != nil {
			publisher.ProbesExecuted(iteration, models.ProbeResultPayload{
				Name:      name,
				Succeeded: result.Status == probe.StatusOk,
				TimedOut:  result.Status == probe.StatusTimedOut,
				LatencyMS: result.LatencyMS,
				Error:     result.Stderr,
			})
		}
	}
}

// checkNoInvention compares cited evidence-shaped tokens in answer against
// the gathered probe fields/raw output; any value-looking token from the
// answer absent from evidence flips no_invention to false (§4.9).
func checkNoInvention(answer string, evidence map[string]probe.Result) bool {
	corpus := evidenceCorpus(evidence)
	for _, token := range citationTokens(answer) {
		if !strings.Contains(corpus, strings.ToLower(token)) {
			return false
		}
	}
	return true
}

// checkGrounded reports whether every factual claim in answer is traceable
// to evidence, when evidenceRequired is set (§4.9).
func checkGrounded(evidenceRequired bool, answer string, evidence map[string]probe.Result) bool {
	if !evidenceRequired {
		return true
	}
	if len(evidence) == 0 {
		return answer == ""
	}
	return checkNoInvention(answer, evidence)
}

func evidenceCorpus(evidence map[string]probe.Result) string {
	var b strings.Builder
	for _, result := range evidence {
		b.WriteString(strings.ToLower(result.RawOutput))
		b.WriteString(" ")
		for _, v := range result.Fields {
			b.WriteString(strings.ToLower(v))
			b.WriteString(" ")
		}
	}
	return b.String()
}

// citationTokens extracts candidate hardware/service/package/path strings
// from answer: quoted spans and path-looking/dotted tokens, the kinds of
// values a Junior draft would cite as evidence.
func citationTokens(answer string) []string {
	var tokens []string
	for _, word := range strings.Fields(answer) {
		trimmed := strings.Trim(word, ".,;:\"'()")
		if strings.Contains(trimmed, "/") || strings.Contains(trimmed, "-") {
			tokens = append(tokens, trimmed)
		}
	}
	return tokens
}

func (l *Loop) emit(fn func(*events.Publisher)) {
	if l.publisher != nil {
		fn(l.publisher)
	}
}
