// Package reliability implements the Reliability Scorer (§4.5): a
// deterministic pure function from an Orchestrated Q&A iteration's
// bookkeeping to a 0-100 score, a reason set, and a derived probe health.
package reliability

import (
	"fmt"
	"sort"

	"github.com/anna-project/annad/pkg/models"
)

// ExplanationThreshold is the score below which an Explanation is
// generated, per §4.5.
const ExplanationThreshold = 80

// Score evaluates in against the §4.5 penalty table and returns the
// deterministic output. Equal inputs always produce identical output
// (§8 invariant 6).
func Score(in models.ReliabilityInput) models.ReliabilityOutput {
	coverage := in.CoverageRatio()

	var reasons []models.Reason
	subtract := 0
	inventionCeiling := false

	if !in.NoInvention {
		inventionCeiling = true
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonInventionDetected,
			Detail: "the answer cites something not present in gathered evidence",
		})
	}

	if in.EvidenceRequired && in.PlannedProbes == 0 {
		subtract += 25
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonEvidenceMissing,
			Detail: "evidence was required but no probes were planned",
		})
	}

	if in.BudgetExceeded {
		subtract += 15
		reasons = append(reasons, models.Reason{
			Tag: models.ReasonBudgetExceeded,
			Detail: fmt.Sprintf("%s stage exceeded budget (%dms > %dms)",
				in.BudgetStage, in.BudgetElapsedMS, in.BudgetLimitMS),
		})
	}

	// Subsumption: BudgetExceeded suppresses ProbeTimeout (§4.5 step 3, §8 invariant 7).
	if in.TimedOutProbes > 0 && !in.BudgetExceeded {
		subtract += 10
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonProbeTimeout,
			Detail: fmt.Sprintf("%d of %d probes timed out", in.TimedOutProbes, in.PlannedProbes),
		})
	}

	// Coverage shortfall: any probe that did not succeed (explicit failure
	// or timeout) counts against coverage, independent of ProbeTimeout's
	// own penalty (S1 in §8 drives both reasons from the same timeout).
	if in.PlannedProbes > 0 && coverage < 1.0 {
		failed := in.PlannedProbes - in.SucceededProbes
		penalty := (failed*30 + in.PlannedProbes - 1) / in.PlannedProbes
		subtract += penalty
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonProbeFailed,
			Detail: fmt.Sprintf("%d of %d probes did not succeed", in.PlannedProbes-in.SucceededProbes, in.PlannedProbes),
		})
	}

	if in.FallbackUsed {
		subtract += 10
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonFallbackUsed,
			Detail: "fell back to LLM-based plan generation",
		})
	}

	if in.PromptTruncated {
		subtract += 10
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonPromptTruncated,
			Detail: "prompt was truncated to fit the context window",
		})
	}

	if in.TranscriptCapped {
		subtract += 5
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonTranscriptCapped,
			Detail: "transcript was capped before the loop finished",
		})
	}

	if in.TranslatorUsed {
		switch {
		case in.TranslatorConfidence < 0.7:
			subtract += 20
			reasons = append(reasons, models.Reason{
				Tag:    models.ReasonLowConfidence,
				Detail: fmt.Sprintf("translator confidence %.2f below 0.70", in.TranslatorConfidence),
			})
		case in.TranslatorConfidence < 0.85:
			subtract += 10
			reasons = append(reasons, models.Reason{
				Tag:    models.ReasonLowConfidence,
				Detail: fmt.Sprintf("translator confidence %.2f below 0.85", in.TranslatorConfidence),
			})
		}
	}

	if !in.AnswerGrounded && in.EvidenceRequired {
		subtract += 30
		reasons = append(reasons, models.Reason{
			Tag:    models.ReasonNotGrounded,
			Detail: "answer contains a claim not traceable to probe evidence",
		})
	}

	score := 100 - subtract
	if inventionCeiling && score > 40 {
		score = 40
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	health := deriveProbeHealth(in)

	out := models.ReliabilityOutput{
		Score:         score,
		Reasons:       reasons,
		ProbeHealth:   health,
		CoverageRatio: coverage,
	}
	if score < ExplanationThreshold {
		out.Explanation = explain(reasons)
	}
	return out
}

func deriveProbeHealth(in models.ReliabilityInput) models.ProbeHealth {
	switch {
	case in.PlannedProbes == 0:
		return models.ProbeHealthNotNeeded
	case in.SucceededProbes == in.PlannedProbes:
		return models.ProbeHealthAllOk
	case in.SucceededProbes > 0:
		return models.ProbeHealthPartial
	default:
		return models.ProbeHealthNone
	}
}

// explain renders the reason set sorted by priority ascending, deduplicated
// by tag, per §4.5.
func explain(reasons []models.Reason) string {
	dedup := make([]models.Reason, 0, len(reasons))
	seen := make(map[models.ReasonTag]bool, len(reasons))
	for _, r := range reasons {
		if seen[r.Tag] {
			continue
		}
		seen[r.Tag] = true
		dedup = append(dedup, r)
	}
	sort.Slice(dedup, func(i, j int) bool {
		return dedup[i].Tag.Priority() < dedup[j].Tag.Priority()
	})

	var out string
	for i, r := range dedup {
		if i > 0 {
			out += "; "
		}
		out += r.Detail
	}
	return out
}
