package rpc

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anna-project/annad/pkg/events"
	"github.com/anna-project/annad/pkg/models"
	"github.com/anna-project/annad/pkg/probe"
	"github.com/anna-project/annad/pkg/qa"
)

func stubLoopFactory(publisher *events.Publisher) *qa.Loop {
	translator := func(ctx context.Context, question string) (qa.Intent, error) {
		return qa.Intent{Question: question, Confidence: 1.0}, nil
	}
	junior := func(ctx context.Context, intent qa.Intent, evidence map[string]probe.Result, iteration int) (qa.JuniorDraft, error) {
		return qa.JuniorDraft{Answer: "stub answer"}, nil
	}
	senior := func(ctx context.Context, intent qa.Intent, draft qa.JuniorDraft, evidence map[string]probe.Result, iteration int) (qa.SeniorReview, error) {
		return qa.SeniorReview{Verdict: models.VerdictApprove, Confidence: 1.0}, nil
	}
	return qa.New(translator, junior, senior, nil, publisher)
}

func TestServer_OrchestratedQueryStreamsEventsThenAnswer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	srv.loopFn = stubLoopFactory
	client := startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frames []Response
	err := client.CallStream(ctx, "orchestrated_query", orchestratedQueryParams{Question: "how much memory do I have"},
		func(r Response) { frames = append(frames, r) })
	require.NoError(t, err)
	require.NotEmpty(t, frames)

	last := frames[len(frames)-1]
	assert.True(t, last.StreamEnd)

	var answer qa.Answer
	require.NoError(t, json.Unmarshal(last.Result, &answer))
	assert.Equal(t, "stub answer", answer.Text)

	// At least one intermediate Debug Event frame preceded the final answer.
	assert.Greater(t, len(frames), 1)
	for _, f := range frames[:len(frames)-1] {
		assert.False(t, f.StreamEnd)
	}
}

func TestServer_OrchestratedQueryWithoutLoopFactoryReturnsInternalError(t *testing.T) {
	srv, _, _ := newTestServer(t)
	client := startTestServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var frames []Response
	err := client.CallStream(ctx, "orchestrated_query", orchestratedQueryParams{Question: "x"},
		func(r Response) { frames = append(frames, r) })
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.NotNil(t, frames[0].Error)
	assert.Equal(t, models.RPCCodeInternal, frames[0].Error.Code)
}
