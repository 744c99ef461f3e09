package sleep

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// ReferenceLoader fetches the raw stage-reference table: reference id to
// reference key (e.g. "REF_SLEEP_DEEP" -> "deep").
type ReferenceLoader interface {
	StageReferences(ctx context.Context) (map[string]string, error)
}

// ReferenceLookup resolves type-reference ids to stages. It is constructed
// explicitly and injected; callers hold a reference and drive the
// Load/Invalidate lifecycle themselves.
type ReferenceLookup struct {
	loader ReferenceLoader

	mu     sync.RWMutex
	stages map[string]Stage
	loaded bool
}

func NewReferenceLookup(loader ReferenceLoader) *ReferenceLookup {
	return &ReferenceLookup{loader: loader}
}

// Load fetches the reference table and replaces the resolved map. References
// with keys that don't name a known stage are skipped, not fatal.
func (l *ReferenceLookup) Load(ctx context.Context) error {
	refs, err := l.loader.StageReferences(ctx)
	if err != nil {
		return fmt.Errorf("sleep: loading stage references: %w", err)
	}

	stages := make(map[string]Stage, len(refs))
	for id, key := range refs {
		stage, ok := ParseStage(key)
		if !ok {
			log.Printf("sleep: skipping reference %s with unknown key %q", id, key)
			continue
		}
		stages[id] = stage
	}

	l.mu.Lock()
	l.stages = stages
	l.loaded = true
	l.mu.Unlock()
	return nil
}

// Invalidate drops the resolved map; the next Load repopulates it.
func (l *ReferenceLookup) Invalidate() {
	l.mu.Lock()
	l.stages = nil
	l.loaded = false
	l.mu.Unlock()
}

func (l *ReferenceLookup) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loaded
}

// Resolve maps a reference id to its stage. Unresolvable ids report ok=false;
// the caller decides drop semantics.
func (l *ReferenceLookup) Resolve(refID string) (Stage, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	stage, ok := l.stages[refID]
	return stage, ok
}
