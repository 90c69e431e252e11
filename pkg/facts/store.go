// Package facts implements the Learned-Facts Store (§4.2): a persistent
// key-value mapping from category to Learned Fact, single-writer and
// snapshot-read, backed by a write-then-rename JSON document.
package facts

import (
	"sync"
	"time"

	"github.com/anna-project/annad/pkg/jsonstore"
	"github.com/anna-project/annad/pkg/models"
)

// packagePrefix identifies package-like fact keys dropped by InvalidatePackages.
const packagePrefix = "installed-package:"

// sessionCategories are dropped by InvalidateSession.
var sessionCategories = map[models.FactCategory]bool{
	"desktop-environment": true,
	"window-manager":      true,
	"display-server":      true,
}

// maxAgeForPrune is the age at which a zero-use fact is eligible for pruning.
const maxAgeForPrune = 7 * 24 * time.Hour

// Store is the Learned-Facts Store. Single writer task per §5: every
// mutation holds mu for the in-memory update and the synchronous rewrite
// of the JSON document.
type Store struct {
	path string

	mu  sync.RWMutex
	doc models.FactStoreDocument

	bootID func() string
	now    func() time.Time
}

// New constructs a Store backed by path, loading any existing document.
// bootID resolves the current boot id (e.g. from /proc/sys/kernel/random/boot_id)
// for STATIC-fact freshness checks.
func New(path string, bootID func() string) (*Store, error) {
	s := &Store{
		path:   path,
		bootID: bootID,
		now:    time.Now,
	}
	if err := jsonstore.Load(path, &s.doc); err != nil {
		return nil, err
	}
	if s.doc.Facts == nil {
		s.doc.Facts = make(map[models.FactCategory]*models.LearnedFact)
	}
	return s, nil
}

func (s *Store) persistLocked() error {
	return jsonstore.Save(s.path, &s.doc)
}

// Learn inserts or replaces the fact under its computed key.
func (s *Store) Learn(fact models.LearnedFact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := fact
	s.doc.Facts[fact.Key()] = &clone
	return s.persistLocked()
}

// GetFresh returns a clone of the fact for category if it is fresh and
// (for STATIC facts) matches the current boot id; else false.
func (s *Store) GetFresh(category models.FactCategory) (models.LearnedFact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fact, ok := s.doc.Facts[category]
	if !ok {
		return models.LearnedFact{}, false
	}
	if !fact.IsFresh(s.now(), s.currentBootID()) {
		return models.LearnedFact{}, false
	}
	return *fact, true
}

// UseFact is GetFresh plus side effects: increments the fact's usage
// counter and records a cache hit (or miss, if absent/stale).
func (s *Store) UseFact(category models.FactCategory) (models.LearnedFact, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.QueriesAnswered++

	fact, ok := s.doc.Facts[category]
	if !ok || !fact.IsFresh(s.now(), s.currentBootID()) {
		s.doc.CacheMisses++
		_ = s.persistLocked()
		return models.LearnedFact{}, false
	}

	fact.UsageCount++
	s.doc.CacheHits++
	if err := s.persistLocked(); err != nil {
		return models.LearnedFact{}, false
	}
	return *fact, true
}

func (s *Store) currentBootID() string {
	if s.bootID == nil {
		return ""
	}
	return s.bootID()
}

// CurrentBootID exposes the boot id resolver for callers (e.g. the
// Scheduler) that need to stamp a new LearnedFact before calling Learn.
func (s *Store) CurrentBootID() string {
	return s.currentBootID()
}

// InvalidatePackages drops all SLOW facts with package-like keys and
// records the current time as the last package-manager operation.
func (s *Store) InvalidatePackages() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.doc.Facts {
		if len(key) >= len(packagePrefix) && string(key)[:len(packagePrefix)] == packagePrefix {
			delete(s.doc.Facts, key)
		}
	}
	s.doc.LastPacmanOperation = s.now()
	return s.persistLocked()
}

// InvalidateSession drops desktop/window-manager/display-server facts.
func (s *Store) InvalidateSession() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.doc.Facts {
		if sessionCategories[key] {
			delete(s.doc.Facts, key)
		}
	}
	return s.persistLocked()
}

// InvalidateVolatile drops all VOLATILE facts.
func (s *Store) InvalidateVolatile() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, fact := range s.doc.Facts {
		if fact.StabilityClass() == models.StabilityVolatile {
			delete(s.doc.Facts, key)
		}
	}
	return s.persistLocked()
}

// InvalidateOnBoot drops any STATIC fact whose stored boot id differs from
// the current boot id.
func (s *Store) InvalidateOnBoot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.currentBootID()
	for key, fact := range s.doc.Facts {
		if fact.StabilityClass() == models.StabilityStatic && fact.BootID != current {
			delete(s.doc.Facts, key)
		}
	}
	return s.persistLocked()
}

// PackageLogMtime resolves the package manager log's modification time,
// for CheckAndInvalidate's drift detection.
type PackageLogMtime func() (time.Time, error)

// CheckAndInvalidate reads the package manager log mtime; if newer than the
// recorded last operation, invokes InvalidatePackages. Also triggers
// boot-invalidation. Returns whether anything was dropped.
func (s *Store) CheckAndInvalidate(logMtime PackageLogMtime) (bool, error) {
	dropped := false

	s.mu.RLock()
	last := s.doc.LastPacmanOperation
	s.mu.RUnlock()

	if logMtime != nil {
		mtime, err := logMtime()
		if err == nil && mtime.After(last) {
			if err := s.InvalidatePackages(); err != nil {
				return dropped, err
			}
			dropped = true
		}
	}

	if err := s.InvalidateOnBoot(); err != nil {
		return dropped, err
	}
	return dropped, nil
}

// PruneOldFacts drops facts older than 7 days with zero uses.
func (s *Store) PruneOldFacts() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, fact := range s.doc.Facts {
		if fact.UsageCount == 0 && now.Sub(fact.LearnedAt) > maxAgeForPrune {
			delete(s.doc.Facts, key)
		}
	}
	return s.persistLocked()
}

// Snapshot returns a copy of every fact currently fresh, keyed by
// category, for callers (e.g. the Recommendation Engine, the RPC health
// method) that need a read-only view of the whole store rather than one
// category at a time.
func (s *Store) Snapshot() map[models.FactCategory]models.LearnedFact {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[models.FactCategory]models.LearnedFact, len(s.doc.Facts))
	for key, fact := range s.doc.Facts {
		if fact.IsFresh(s.now(), s.currentBootID()) {
			out[key] = *fact
		}
	}
	return out
}

// Stats returns the aggregate counters tracked alongside the fact map.
func (s *Store) Stats() (queriesAnswered, cacheHits, cacheMisses int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.QueriesAnswered, s.doc.CacheHits, s.doc.CacheMisses
}
