package tts

import (
	"context"
	"testing"
	"time"
)

// Smoke test without an API key; it should error quickly.
func TestDeepgram_Synthesize_NoKey(t *testing.T) {
	d := NewDeepgramClient("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, _, err := d.Synthesize(ctx, "hello"); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

func TestDeepgram_Synthesize_EmptyText(t *testing.T) {
	d := NewDeepgramClient("key", "")
	if _, _, err := d.Synthesize(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty text")
	}
}
