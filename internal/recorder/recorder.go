// Package recorder persists finished session records for later review.
package recorder

import (
	"context"
	"sync"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

// Recorder receives the session record exactly once, at session end.
type Recorder interface {
	Record(ctx context.Context, rec transcript.SessionRecord) error
}

// Memory keeps records in process. The default sink when no storage backend
// is configured, and the fixture used in tests.
type Memory struct {
	mu      sync.Mutex
	records []transcript.SessionRecord
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Record(_ context.Context, rec transcript.SessionRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

// All returns a copy of every stored record.
func (m *Memory) All() []transcript.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]transcript.SessionRecord, len(m.records))
	copy(cp, m.records)
	return cp
}

// Last returns the most recent record, if any.
func (m *Memory) Last() (transcript.SessionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return transcript.SessionRecord{}, false
	}
	return m.records[len(m.records)-1], true
}

// Multi fans a record out to several recorders. The first error is returned
// but every recorder still gets the record.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, rec transcript.SessionRecord) error {
	var first error
	for _, r := range m {
		if err := r.Record(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}
