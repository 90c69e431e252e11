// Package rollback implements the Rollback Ledger (§4.8): an append-only
// audit of executed Action Steps, able to reverse them in strict reverse
// order of execution.
package rollback

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anna-project/annad/pkg/jsonstore"
	"github.com/anna-project/annad/pkg/models"
)

// ErrNotFound is returned when an advice id has no rollback record.
var ErrNotFound = errors.New("rollback: no record for that advice id")

// Ledger is the Rollback Ledger. Single writer per §5; rollback of one
// advice id is serialized against concurrent rollbacks of the same id by
// a per-id mutex from lockFor (§5 "no recipe may run while its inverse
// rollback is running").
type Ledger struct {
	path string

	mu  sync.RWMutex
	doc models.RollbackLedgerDocument

	runLocksMu sync.Mutex
	runLocks   map[string]*sync.Mutex

	now func() time.Time
}

// New constructs a Ledger backed by path, loading any existing document.
func New(path string) (*Ledger, error) {
	l := &Ledger{
		path:     path,
		runLocks: make(map[string]*sync.Mutex),
		now:      time.Now,
	}
	if err := jsonstore.Load(path, &l.doc); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) persistLocked() error {
	return jsonstore.Save(l.path, &l.doc)
}

// lockFor returns the per-advice-id mutex serializing rollback execution,
// creating it on first use.
func (l *Ledger) lockFor(adviceID string) *sync.Mutex {
	l.runLocksMu.Lock()
	defer l.runLocksMu.Unlock()
	m, ok := l.runLocks[adviceID]
	if !ok {
		m = &sync.Mutex{}
		l.runLocks[adviceID] = m
	}
	return m
}

// Append records one executed step. reverseCommand is empty when the step
// has no reverse; nonRollbackableReason then explains why.
func (l *Ledger) Append(adviceID, title, command, reverseCommand, nonRollbackableReason string) (models.RollbackRecord, error) {
	record := models.RollbackRecord{
		ID:                    fmt.Sprintf("%s-%d", adviceID, l.now().UnixNano()),
		AdviceID:              adviceID,
		Title:                 title,
		ExecutedAt:            l.now(),
		Command:               command,
		ReverseCommand:        reverseCommand,
		NonRollbackableReason: nonRollbackableReason,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.doc.Records = append(l.doc.Records, record)
	if err := l.persistLocked(); err != nil {
		return models.RollbackRecord{}, err
	}
	return record, nil
}

// ListRollbackable returns every record that has a reverse command, most
// recent first.
func (l *Ledger) ListRollbackable() []models.RollbackRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.RollbackRecord
	for i := len(l.doc.Records) - 1; i >= 0; i-- {
		if l.doc.Records[i].IsRollbackable() {
			out = append(out, l.doc.Records[i])
		}
	}
	return out
}

// Executor runs a reverse command to completion, for dryRun=false; dryRun
// callers should not invoke it (RollbackAction checks dryRun itself).
type Executor func(command string) error

// RollbackAction finds the most recent rollbackable record for adviceID
// and runs its reverse command (unless dryRun). Serializes against any
// other rollback for the same advice id.
func (l *Ledger) RollbackAction(adviceID string, dryRun bool, exec Executor) (models.RollbackRecord, error) {
	lock := l.lockFor(adviceID)
	lock.Lock()
	defer lock.Unlock()

	l.mu.RLock()
	var record *models.RollbackRecord
	for i := len(l.doc.Records) - 1; i >= 0; i-- {
		if l.doc.Records[i].AdviceID == adviceID && l.doc.Records[i].IsRollbackable() {
			r := l.doc.Records[i]
			record = &r
			break
		}
	}
	l.mu.RUnlock()

	if record == nil {
		return models.RollbackRecord{}, ErrNotFound
	}
	if dryRun || exec == nil {
		return *record, nil
	}
	if err := exec(record.ReverseCommand); err != nil {
		return *record, fmt.Errorf("rollback: execute reverse command: %w", err)
	}
	return *record, nil
}

// RollbackLast reverses the last n rollbackable records in strict reverse
// order of their original execution (§4.8, §8 invariant 5).
func (l *Ledger) RollbackLast(n int, dryRun bool, exec Executor) ([]models.RollbackRecord, error) {
	rollbackable := l.ListRollbackable() // already newest-first
	if n > 0 && n < len(rollbackable) {
		rollbackable = rollbackable[:n]
	}

	var reversed []models.RollbackRecord
	for _, record := range rollbackable {
		if dryRun || exec == nil {
			reversed = append(reversed, record)
			continue
		}
		lock := l.lockFor(record.AdviceID)
		lock.Lock()
		err := exec(record.ReverseCommand)
		lock.Unlock()
		if err != nil {
			return reversed, fmt.Errorf("rollback: execute reverse command for %s: %w", record.AdviceID, err)
		}
		reversed = append(reversed, record)
	}
	return reversed, nil
}
