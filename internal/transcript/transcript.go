package transcript

import (
	"sync"
	"time"
)

// Role identifies which party produced an utterance.
type Role string

const (
	RoleAgent    Role = "agent"
	RoleCustomer Role = "simulated-customer"
)

// Stage is the conversation stage. Stages only ever move forward:
// introduction -> scenario-announcement -> roleplay.
type Stage string

const (
	StageIntroduction Stage = "introduction"
	StageAnnouncement Stage = "scenario-announcement"
	StageRoleplay     Stage = "roleplay"
)

// rank orders stages for the forward-only transition check.
func (s Stage) rank() int {
	switch s {
	case StageIntroduction:
		return 0
	case StageAnnouncement:
		return 1
	case StageRoleplay:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
func (s Stage) CanAdvanceTo(next Stage) bool {
	return next.rank() > s.rank()
}

// VoiceStatus reflects what the turn loop is currently doing. It is orthogonal
// to Stage and used to gate detector activity and for UI display.
type VoiceStatus string

const (
	StatusIdle         VoiceStatus = "idle"
	StatusListening    VoiceStatus = "listening"
	StatusSpeaking     VoiceStatus = "speaking"
	StatusProcessing   VoiceStatus = "processing"
	StatusAIResponding VoiceStatus = "ai-responding"
)

// Utterance is one speech turn by either party. Immutable once created.
type Utterance struct {
	Role  Role      `json:"role"`
	Text  string    `json:"text"`
	Roman string    `json:"roman,omitempty"`
	At    time.Time `json:"at"`
}

// Transcript is the ordered, append-only sequence of utterances for one
// session. It is owned by the turn orchestrator; other components only ever
// receive copies via Entries.
type Transcript struct {
	mu      sync.Mutex
	entries []Utterance
}

// Append adds an utterance to the end of the transcript.
func (t *Transcript) Append(u Utterance) {
	t.mu.Lock()
	t.entries = append(t.entries, u)
	t.mu.Unlock()
}

// Entries returns a copy of all utterances in order.
func (t *Transcript) Entries() []Utterance {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]Utterance, len(t.entries))
	copy(cp, t.entries)
	return cp
}

// Len returns the number of utterances.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// AgentTurns counts utterances spoken by the trainee. The dialogue prompt uses
// this to track conversation progress.
func (t *Transcript) AgentTurns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, u := range t.entries {
		if u.Role == RoleAgent {
			n++
		}
	}
	return n
}

// SessionRecord is the one-time handoff to the session recorder at session
// end.
type SessionRecord struct {
	SessionID       string      `json:"session_id"`
	ScenarioID      string      `json:"scenario_id"`
	Transcript      []Utterance `json:"transcript"`
	DurationSeconds int         `json:"duration_seconds"`
	EndedNaturally  bool        `json:"ended_naturally"`
	EndedAt         time.Time   `json:"ended_at"`
}
