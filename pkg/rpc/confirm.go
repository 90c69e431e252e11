package rpc

import (
	"context"

	"github.com/anna-project/annad/pkg/executor"
	"github.com/anna-project/annad/pkg/models"
)

// confirmedKey carries recipe_execute's top-level "confirmed" flag through
// to the shared Executor's ConfirmFunc, since one Executor instance lives
// for the daemon's lifetime while "confirmed" is a per-call decision the
// client already made before sending the request (§4.8: recipe_execute is
// a single round trip, not a second confirmation prompt over the wire).
type confirmedKey struct{}

func withConfirmed(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmedKey{}, confirmed)
}

// ConfirmFromRequest builds the ConfirmFunc wired into executor.New: it
// approves a step requiring confirmation only if the originating
// recipe_execute call carried confirmed=true.
func ConfirmFromRequest() executor.ConfirmFunc {
	return func(ctx context.Context, step models.ActionStep) (bool, error) {
		confirmed, _ := ctx.Value(confirmedKey{}).(bool)
		return confirmed, nil
	}
}
