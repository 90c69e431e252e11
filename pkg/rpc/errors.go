package rpc

import "github.com/anna-project/annad/pkg/models"

// handlerError is a handler's typed failure, carrying the §7 ErrorKind a
// client categorizes on. Handlers that just return a bare error are mapped
// to ErrInternal/CodeInternal by dispatch.
type handlerError struct {
	kind    models.ErrorKind
	message string
}

func (e *handlerError) Error() string { return e.message }

func newHandlerError(kind models.ErrorKind, message string) *handlerError {
	return &handlerError{kind: kind, message: message}
}

// codeForKind maps an ErrorKind to one of the three wire codes §4.11 fixes.
// DaemonUnavailable/ConnectionFailed never originate server-side (the
// client infers them from a failed dial/read), so only the kinds a handler
// can actually raise are mapped here; anything else falls back to Internal.
func codeForKind(kind models.ErrorKind) int {
	switch kind {
	case models.ErrValidationFailed, models.ErrProbeFailed, models.ErrTimeout:
		return models.RPCCodeInvalidRequest
	default:
		return models.RPCCodeInternal
	}
}

// KindForCode is the client-side half of §7's mapping: categorize a wire
// code (and, when available, the kind embedded by the server) into the
// taxonomy the CLI branches on.
func KindForCode(code int, reportedKind string) models.ErrorKind {
	if k := models.ErrorKind(reportedKind); k != "" {
		return k
	}
	switch code {
	case models.RPCCodeMethodNotFound:
		return models.ErrInternal
	case models.RPCCodeInvalidRequest:
		return models.ErrValidationFailed
	default:
		return models.ErrInternal
	}
}
