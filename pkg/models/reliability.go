package models

// ReliabilityInput carries everything the Scorer (§4.5) needs to produce a
// deterministic score. All fields are set by the Orchestrated Q&A loop as
// it runs; the Scorer itself is a pure function over this struct.
type ReliabilityInput struct {
	PlannedProbes    int
	SucceededProbes  int
	FailedProbes     int
	TimedOutProbes   int

	AnswerGrounded   bool
	NoInvention      bool
	EvidenceRequired bool

	TranslatorConfidence float64 // [0,1]; only read when TranslatorUsed is set
	TranslatorUsed       bool

	PromptTruncated   bool
	TranscriptCapped  bool

	FallbackUsed bool

	BudgetExceeded bool
	BudgetStage    string
	BudgetElapsedMS int64
	BudgetLimitMS   int64
}

// CoverageRatio computes succeeded/planned, defaulting to 1.0 when no
// probes were planned (§4.5 step 2).
func (in *ReliabilityInput) CoverageRatio() float64 {
	if in.PlannedProbes <= 0 {
		return 1.0
	}
	return float64(in.SucceededProbes) / float64(in.PlannedProbes)
}

// Reason is one tagged penalty/flag applied by the Scorer, carrying a
// rendered human-readable detail string (§4.5's text templating).
type Reason struct {
	Tag    ReasonTag `json:"tag"`
	Detail string    `json:"detail"`
}

// ReliabilityOutput is the Scorer's deterministic result.
type ReliabilityOutput struct {
	Score        int         `json:"score"` // 0-100
	Reasons      []Reason    `json:"reasons"`
	ProbeHealth  ProbeHealth `json:"probe_health"`
	CoverageRatio float64    `json:"coverage_ratio"`
	Explanation  string      `json:"explanation,omitempty"`
}

// PrimaryReason returns the reason with the numerically lowest Priority(),
// or the zero value if there are none.
func (o *ReliabilityOutput) PrimaryReason() (Reason, bool) {
	if len(o.Reasons) == 0 {
		return Reason{}, false
	}
	best := o.Reasons[0]
	for _, r := range o.Reasons[1:] {
		if r.Tag.Priority() < best.Tag.Priority() {
			best = r
		}
	}
	return best, true
}

// HasReason reports whether tag is present in the output's reason set.
func (o *ReliabilityOutput) HasReason(tag ReasonTag) bool {
	for _, r := range o.Reasons {
		if r.Tag == tag {
			return true
		}
	}
	return false
}
