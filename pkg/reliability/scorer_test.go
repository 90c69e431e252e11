package reliability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/models"
)

func TestScore_S1_PartialCoverageWithTimeout(t *testing.T) {
	out := Score(models.ReliabilityInput{
		PlannedProbes:    3,
		SucceededProbes:  2,
		TimedOutProbes:   1,
		AnswerGrounded:   true,
		NoInvention:      true,
		EvidenceRequired: true,
	})

	assert.Equal(t, 80, out.Score)
	assert.True(t, out.HasReason(models.ReasonProbeTimeout))
	assert.True(t, out.HasReason(models.ReasonProbeFailed))
	assert.Equal(t, models.ProbeHealthPartial, out.ProbeHealth)
}

func TestScore_S2_NoProbesPlannedNotGrounded(t *testing.T) {
	out := Score(models.ReliabilityInput{
		PlannedProbes:    0,
		AnswerGrounded:   false,
		NoInvention:      true,
		EvidenceRequired: true,
	})

	assert.Equal(t, 45, out.Score)
	assert.True(t, out.HasReason(models.ReasonEvidenceMissing))
	assert.True(t, out.HasReason(models.ReasonNotGrounded))
	assert.Equal(t, models.ProbeHealthNotNeeded, out.ProbeHealth)
}

func TestScore_S3_InventionCeiling(t *testing.T) {
	out := Score(models.ReliabilityInput{
		PlannedProbes:    3,
		SucceededProbes:  3,
		AnswerGrounded:   true,
		NoInvention:      false,
		EvidenceRequired: true,
	})

	assert.Equal(t, 40, out.Score)
	primary, ok := out.PrimaryReason()
	require.True(t, ok)
	assert.Equal(t, models.ReasonInventionDetected, primary.Tag)
}

func TestScore_S4_BudgetExceededSuppressesTimeout(t *testing.T) {
	out := Score(models.ReliabilityInput{
		PlannedProbes:   3,
		SucceededProbes: 2,
		TimedOutProbes:  1,
		BudgetExceeded:  true,
		BudgetStage:     "probes",
		BudgetLimitMS:   12000,
		BudgetElapsedMS: 18000,
	})

	assert.Equal(t, 75, out.Score)
	assert.True(t, out.HasReason(models.ReasonBudgetExceeded))
	assert.False(t, out.HasReason(models.ReasonProbeTimeout))
}

func TestScore_S8_InventionCeilingDoesNotFloorBelowZero(t *testing.T) {
	out := Score(models.ReliabilityInput{
		PlannedProbes:    4,
		SucceededProbes:  0,
		TimedOutProbes:   4,
		BudgetExceeded:   false,
		NoInvention:      false,
		AnswerGrounded:   false,
		EvidenceRequired: true,
		TranslatorUsed:   true,
		TranslatorConfidence: 0.1,
		PromptTruncated:  true,
		TranscriptCapped: true,
	})

	assert.Equal(t, 0, out.Score)
	primary, ok := out.PrimaryReason()
	require.True(t, ok)
	assert.Equal(t, models.ReasonInventionDetected, primary.Tag)
}

func TestScore_ExplanationOnlyBelowThreshold(t *testing.T) {
	high := Score(models.ReliabilityInput{PlannedProbes: 1, SucceededProbes: 1, NoInvention: true})
	assert.Empty(t, high.Explanation)

	low := Score(models.ReliabilityInput{
		PlannedProbes:    0,
		EvidenceRequired: true,
		NoInvention:      true,
	})
	assert.NotEmpty(t, low.Explanation)
}

func TestScore_DeterministicForEqualInputs(t *testing.T) {
	in := models.ReliabilityInput{
		PlannedProbes:   3,
		SucceededProbes: 1,
		TimedOutProbes:  2,
		NoInvention:     true,
	}
	a := Score(in)
	b := Score(in)
	assert.Equal(t, a, b)
}

func TestScore_RangeInvariant(t *testing.T) {
	inputs := []models.ReliabilityInput{
		{},
		{PlannedProbes: 5, SucceededProbes: 0, TimedOutProbes: 5, NoInvention: false, EvidenceRequired: true},
		{PlannedProbes: 5, SucceededProbes: 5, NoInvention: true},
	}
	for _, in := range inputs {
		out := Score(in)
		assert.GreaterOrEqual(t, out.Score, 0)
		assert.LessOrEqual(t, out.Score, 100)
	}
}

func TestScore_SubsumptionInvariant(t *testing.T) {
	out := Score(models.ReliabilityInput{
		PlannedProbes:   2,
		SucceededProbes: 1,
		TimedOutProbes:  1,
		BudgetExceeded:  true,
	})
	if out.HasReason(models.ReasonBudgetExceeded) {
		assert.False(t, out.HasReason(models.ReasonProbeTimeout))
	}
}
