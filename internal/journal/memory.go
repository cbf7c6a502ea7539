package journal

import (
	"context"
	"fmt"
	"sync"
)

// MemoryJournal is the in-memory reference Journal: every trace record
// and artifact lives only as long as the process, the way a local dev
// run or a unit test wants it.
type MemoryJournal struct {
	mu        sync.Mutex
	traces    map[string][]Record
	artifacts map[string]map[string][]byte
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		traces:    map[string][]Record{},
		artifacts: map[string]map[string][]byte{},
	}
}

func (j *MemoryJournal) Append(ctx context.Context, rec Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.traces[rec.RunID] = append(j.traces[rec.RunID], rec)
	return nil
}

func (j *MemoryJournal) Trace(ctx context.Context, runID string) ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Record, len(j.traces[runID]))
	copy(out, j.traces[runID])
	return out, nil
}

func (j *MemoryJournal) PutArtifact(ctx context.Context, runID, name string, data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.artifacts[runID] == nil {
		j.artifacts[runID] = map[string][]byte{}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	j.artifacts[runID][name] = cp
	return nil
}

func (j *MemoryJournal) GetArtifact(ctx context.Context, runID, name string) ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	data, ok := j.artifacts[runID][name]
	if !ok {
		return nil, fmt.Errorf("journal: no artifact %q for run %s", name, runID)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}
