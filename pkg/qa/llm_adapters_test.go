package qa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/llm"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
)

func newStubLLMServer(t *testing.T, content string) *llm.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"content": content, "finish_reason": "stop"})
	}))
	t.Cleanup(srv.Close)

	client, err := llm.NewClient(srv.URL)
	require.NoError(t, err)
	return client
}

func TestNewLLMTranslator_ParsesStructuredIntent(t *testing.T) {
	client := newStubLLMServer(t, `{"requested_probes":["cpu"],"evidence_required":true,"confidence":0.9}`)
	translator := NewLLMTranslator(client, nil)

	intent, err := translator(context.Background(), "how many cores do I have")
	require.NoError(t, err)
	assert.Equal(t, []string{"cpu"}, intent.RequestedProbes)
	assert.True(t, intent.EvidenceRequired)
	assert.Equal(t, 0.9, intent.Confidence)
}

func TestNewLLMTranslator_FallsBackOnUnparseableReply(t *testing.T) {
	client := newStubLLMServer(t, "not json at all")
	translator := NewLLMTranslator(client, nil)

	intent, err := translator(context.Background(), "what distro is this")
	require.NoError(t, err)
	assert.True(t, intent.EvidenceRequired)
	assert.Empty(t, intent.RequestedProbes)
}

func TestNewLLMJunior_ParsesDraftAndRequestedProbes(t *testing.T) {
	client := newStubLLMServer(t, `{"answer":"you have 8 cores","requested_probes":["memory"]}`)
	junior := NewLLMJunior(client, nil)

	draft, err := junior(context.Background(), Intent{Question: "x"}, map[string]probe.Result{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "you have 8 cores", draft.Answer)
	assert.Equal(t, []string{"memory"}, draft.RequestedProbes)
}

func TestNewLLMSenior_ParsesApproveVerdict(t *testing.T) {
	client := newStubLLMServer(t, `{"verdict":"Approve","confidence":0.95,"problems":[]}`)
	senior := NewLLMSenior(client, nil)

	review, err := senior(context.Background(), Intent{}, JuniorDraft{}, map[string]probe.Result{}, 1)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictApprove, review.Verdict)
	assert.Equal(t, 0.95, review.Confidence)
}

func TestNewLLMSenior_UnrecognizedVerdictFallsBackToNeedsMoreProbes(t *testing.T) {
	client := newStubLLMServer(t, `{"verdict":"Maybe","confidence":0.1,"problems":[]}`)
	senior := NewLLMSenior(client, nil)

	review, err := senior(context.Background(), Intent{}, JuniorDraft{}, map[string]probe.Result{}, 1)
	require.NoError(t, err)
	assert.Equal(t, models.VerdictNeedsMoreProbes, review.Verdict)
	assert.NotEmpty(t, review.Problems)
}

func TestExtractJSON_StripsSurroundingProse(t *testing.T) {
	got := extractJSON("Sure, here you go:\n```json\n{\"a\":1}\n```\nHope that helps!")
	assert.Equal(t, `{"a":1}`, got)
}
