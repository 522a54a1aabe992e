package agent

import (
	"context"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/dialogue"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

// Transcriber converts one finished audio clip into text. Used with the
// energy detection strategy; the streaming strategy arrives with text
// already attached.
type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (string, error)
}

// Generator produces the simulated customer's next turn.
type Generator interface {
	Generate(ctx context.Context, req dialogue.Request) (dialogue.Reply, error)
}

// Romanizer renders Urdu script as Roman Urdu for display. Best effort:
// errors leave the roman field empty.
type Romanizer interface {
	Romanize(ctx context.Context, text string) (string, error)
}

// Player delivers one synthesized clip to the trainee and returns once
// playback has finished or failed.
type Player interface {
	Play(ctx context.Context, audio []byte, mime string) error
}

// Event is pushed to the session observer on every externally visible
// change: status flips, stage transitions, new transcript entries, live
// partials, and session end.
type Event struct {
	Type      string                 // "status", "stage", "utterance", "partial", "ended"
	Status    transcript.VoiceStatus `json:"status,omitempty"`
	Stage     transcript.Stage       `json:"stage,omitempty"`
	Utterance *transcript.Utterance  `json:"utterance,omitempty"`
	Partial   string                 `json:"partial,omitempty"`
}
