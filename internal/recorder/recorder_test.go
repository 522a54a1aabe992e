package recorder

import (
	"context"
	"fmt"
	"testing"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

func TestMemory_RecordAndLast(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Last(); ok {
		t.Fatalf("expected no record yet")
	}
	rec := transcript.SessionRecord{SessionID: "s1", EndedNaturally: true}
	if err := m.Record(context.Background(), rec); err != nil {
		t.Fatalf("record: %v", err)
	}
	last, ok := m.Last()
	if !ok || last.SessionID != "s1" || !last.EndedNaturally {
		t.Fatalf("unexpected last record %+v", last)
	}
	if len(m.All()) != 1 {
		t.Fatalf("expected one record")
	}
}

type failingRecorder struct{}

func (failingRecorder) Record(context.Context, transcript.SessionRecord) error {
	return fmt.Errorf("boom")
}

func TestMulti_DeliversToAllAndReportsFirstError(t *testing.T) {
	a := NewMemory()
	b := NewMemory()
	multi := Multi{a, failingRecorder{}, b}
	err := multi.Record(context.Background(), transcript.SessionRecord{SessionID: "s2"})
	if err == nil {
		t.Fatalf("expected error from failing recorder")
	}
	if len(a.All()) != 1 || len(b.All()) != 1 {
		t.Fatalf("all recorders must still receive the record")
	}
}
