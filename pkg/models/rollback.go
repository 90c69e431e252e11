package models

import "time"

// RollbackRecord is the audit of one executed Action Step.
type RollbackRecord struct {
	ID              string    `json:"id"`
	AdviceID        string    `json:"advice_id"`
	Title           string    `json:"title"`
	ExecutedAt      time.Time `json:"executed_at"`
	Command         string    `json:"command"`
	ReverseCommand  string    `json:"reverse_command,omitempty"`
	NonRollbackableReason string `json:"non_rollbackable_reason,omitempty"`
}

// IsRollbackable reports whether this record has a reverse command.
func (r *RollbackRecord) IsRollbackable() bool { return r.ReverseCommand != "" }

// RollbackLedgerDocument is the append-only persisted ledger (§4.8, §6.1),
// written with the same write-then-rename discipline as the Learned-Facts
// Store.
type RollbackLedgerDocument struct {
	Records []RollbackRecord `json:"records"`
}
