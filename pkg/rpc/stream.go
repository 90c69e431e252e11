package rpc

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/anna-project/annad/pkg/events"
	"github.com/anna-project/annad/pkg/models"
)

// streamHandler is a streaming RPC method: it writes zero or more
// intermediate Response frames sharing req.ID, then exactly one frame with
// StreamEnd set.
type streamHandler func(s *Server, ctx context.Context, req Request, write func(Response))

var streamHandlers = map[string]streamHandler{
	"orchestrated_query": handleOrchestratedQuery,
}

type orchestratedQueryParams struct {
	Question string `json:"question"`
}

// handleOrchestratedQuery runs one pkg/qa.Loop query, forwarding its Debug
// Events as intermediate frames and the final scored Answer as the
// StreamEnd frame (§4.9, §4.11).
func handleOrchestratedQuery(s *Server, ctx context.Context, req Request, write func(Response)) {
	var p orchestratedQueryParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		write(Response{ID: req.ID, Error: &ErrorObject{
			Code:    models.RPCCodeInvalidRequest,
			Message: "invalid params: " + err.Error(),
			Kind:    string(models.ErrValidationFailed),
		}, StreamEnd: true})
		return
	}
	if s.loopFn == nil {
		write(Response{ID: req.ID, Error: &ErrorObject{
			Code:    models.RPCCodeInternal,
			Message: "orchestrated query loop not wired",
			Kind:    string(models.ErrInternal),
		}, StreamEnd: true})
		return
	}

	queryID := uuid.NewString()
	ch, unsubscribe := s.events.Subscribe(queryID)
	publisher := events.NewPublisher(s.events, queryID)
	loop := s.loopFn(publisher)

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		for evt := range ch {
			write(Response{ID: req.ID, Result: mustMarshal(evt)})
		}
	}()

	answer, err := loop.Run(ctx, p.Question)
	unsubscribe()
	<-forwardDone

	if err != nil {
		write(Response{ID: req.ID, Error: &ErrorObject{
			Code:    models.RPCCodeInternal,
			Message: err.Error(),
			Kind:    string(models.ErrInternal),
		}, StreamEnd: true})
		return
	}
	write(Response{ID: req.ID, Result: mustMarshal(answer), StreamEnd: true})
}
