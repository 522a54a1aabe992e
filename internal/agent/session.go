package agent

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/audio"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/detect"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/dialogue"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/recorder"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/scenario"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/tts"
)

// DefaultGraceDelay is how long the session lingers after an announcement or
// a closing customer line before moving on.
const DefaultGraceDelay = 2000 * time.Millisecond

// Config wires one training session. Detector, Generator, Synthesizer and
// Player are required; Transcriber only when the detector emits raw audio.
type Config struct {
	Scenario    scenario.Scenario
	Detector    detect.Detector
	Transcriber Transcriber
	Generator   Generator
	Romanizer   Romanizer
	Synthesizer tts.Synthesizer
	Player      Player
	Recorder    recorder.Recorder
	OnEvent     func(Event)
	GraceDelay  time.Duration
	// Flags may be shared with the detector gate before the session exists.
	// Nil means the session allocates its own.
	Flags *Flags
}

// Session orchestrates one roleplay call: it owns the conversation stage,
// the gating flags the detector reads, and the single turn loop that carries
// an utterance from detection through reply playback.
type Session struct {
	id  string
	cfg Config

	// Flags is read synchronously by the detection path. The session is the
	// only writer.
	Flags *Flags

	transcript transcript.Transcript

	mu       sync.Mutex
	stage    transcript.Stage
	status   transcript.VoiceStatus
	ended    bool
	natural  bool
	announce *time.Timer

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
	endOnce   sync.Once
	done      chan struct{}
}

// NewSession validates the wiring and prepares a session in the
// introduction stage.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Detector == nil {
		return nil, fmt.Errorf("session: detector is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("session: generator is required")
	}
	if cfg.Synthesizer == nil {
		return nil, fmt.Errorf("session: synthesizer is required")
	}
	if cfg.Player == nil {
		return nil, fmt.Errorf("session: player is required")
	}
	if cfg.Recorder == nil {
		cfg.Recorder = recorder.NewMemory()
	}
	if cfg.GraceDelay <= 0 {
		cfg.GraceDelay = DefaultGraceDelay
	}
	flags := cfg.Flags
	if flags == nil {
		flags = &Flags{}
	}
	return &Session{
		id:     uuid.NewString(),
		cfg:    cfg,
		Flags:  flags,
		stage:  transcript.StageIntroduction,
		status: transcript.StatusIdle,
		done:   make(chan struct{}),
	}, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Stage() transcript.Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

func (s *Session) Status() transcript.VoiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Done closes when the session has ended and its record is stored.
func (s *Session) Done() <-chan struct{} { return s.done }

// Transcript returns the conversation so far.
func (s *Session) Transcript() []transcript.Utterance { return s.transcript.Entries() }

// Start begins detection and speaks the greeting. It returns once the loops
// are running; playback happens in the background.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startedAt = time.Now()

	if err := s.cfg.Detector.Start(); err != nil {
		return fmt.Errorf("session: start detector: %w", err)
	}
	s.Flags.SetMicActive(true)

	go s.turnLoop()
	if p := s.cfg.Detector.Partials(); p != nil {
		go s.partialLoop(p)
	}
	go func() {
		s.appendCustomer(greetingText, greetingRoman)
		s.say(greetingText)
		s.setStatus(transcript.StatusListening)
	}()

	log.Printf("session %s: started scenario=%s", s.id, s.cfg.Scenario.ID)
	return nil
}

// Feed passes one PCM16LE frame from the client into the detector.
func (s *Session) Feed(pcm []byte) { s.cfg.Detector.Feed(pcm) }

// SetMuted flips the trainee's mute switch. Muting cancels any in-flight
// detection so audio from before the mute cannot surface as an utterance;
// unmuting re-arms the detector.
func (s *Session) SetMuted(muted bool) {
	s.Flags.SetMuted(muted)
	if muted {
		s.cfg.Detector.Pause()
	} else if s.Flags.MicActive() {
		s.cfg.Detector.Resume()
	}
}

// ToggleMute flips the trainee's mute switch and returns the new state.
func (s *Session) ToggleMute() bool {
	muted := s.Flags.ToggleMute()
	if muted {
		s.cfg.Detector.Pause()
	} else if s.Flags.MicActive() {
		s.cfg.Detector.Resume()
	}
	return muted
}

// VoiceDetected marks the trainee as talking. Wired to the energy
// detector's voice-start callback; only a listening session flips.
func (s *Session) VoiceDetected() {
	s.mu.Lock()
	if s.ended || s.status != transcript.StatusListening {
		s.mu.Unlock()
		return
	}
	s.status = transcript.StatusSpeaking
	s.mu.Unlock()
	s.emit(Event{Type: "status", Status: transcript.StatusSpeaking})
}

func (s *Session) turnLoop() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case res, ok := <-s.cfg.Detector.Utterances():
			if !ok {
				return
			}
			s.processUtterance(res)
		}
	}
}

func (s *Session) partialLoop(partials <-chan string) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case p, ok := <-partials:
			if !ok {
				return
			}
			s.emit(Event{Type: "partial", Partial: p})
		}
	}
}

// processUtterance carries one detected utterance through the full turn:
// transcription if needed, transcript append, then the stage handler. The
// processing flag stays up for the whole turn so the detector cannot start
// a second one.
func (s *Session) processUtterance(res detect.Result) {
	s.Flags.SetProcessing(true)
	defer s.Flags.SetProcessing(false)
	s.setStatus(transcript.StatusProcessing)

	text := res.Text
	if text == "" && len(res.Audio) > 0 {
		if s.cfg.Transcriber == nil {
			log.Printf("session %s: no transcriber for raw audio, dropping turn", s.id)
			s.setStatus(transcript.StatusListening)
			return
		}
		ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
		wav := audio.EncodeWAV(res.Audio, 16000)
		var err error
		text, err = s.cfg.Transcriber.Transcribe(ctx, wav)
		cancel()
		if err != nil {
			log.Printf("session %s: transcription failed, abandoning turn: %v", s.id, err)
			s.setStatus(transcript.StatusListening)
			return
		}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.setStatus(transcript.StatusListening)
		return
	}
	log.Printf("session %s: heard: %s", s.id, text)

	s.appendAgent(text)

	switch s.Stage() {
	case transcript.StageIntroduction:
		s.handleIntro(text)
	case transcript.StageAnnouncement:
		// any response during the announcement moves straight to roleplay
		s.startRoleplay()
	case transcript.StageRoleplay:
		s.handleRoleplay(text)
	}

	s.mu.Lock()
	ended := s.ended
	s.mu.Unlock()
	if !ended {
		s.setStatus(transcript.StatusListening)
	}
}

// handleIntro waits for an affirmative before announcing the scenario. The
// announcement auto-advances to roleplay after the grace delay even if the
// trainee stays quiet.
func (s *Session) handleIntro(text string) {
	if !isAffirmative(text) {
		s.appendCustomer(clarifyText, clarifyRoman)
		s.say(clarifyText)
		return
	}

	if !s.advanceStage(transcript.StageAnnouncement) {
		return
	}
	msg := announcementText(s.cfg.Scenario)
	s.appendCustomer(msg, announcementRoman(s.cfg.Scenario))
	s.say(msg)

	s.mu.Lock()
	s.announce = time.AfterFunc(s.cfg.GraceDelay, s.startRoleplay)
	s.mu.Unlock()
}

// startRoleplay is safe to call from the announcement timer and the turn
// loop at once; the stage transition decides which caller wins.
func (s *Session) startRoleplay() {
	if !s.advanceStage(transcript.StageRoleplay) {
		return
	}
	s.mu.Lock()
	if s.announce != nil {
		s.announce.Stop()
		s.announce = nil
	}
	s.mu.Unlock()

	reply := s.generate(dialogue.Request{
		Opening:  true,
		Scenario: s.cfg.Scenario,
		History:  s.transcript.Entries(),
	})
	s.speakReply(reply)
}

func (s *Session) handleRoleplay(text string) {
	s.setStatus(transcript.StatusAIResponding)
	reply := s.generate(dialogue.Request{
		AgentText: text,
		Scenario:  s.cfg.Scenario,
		History:   s.transcript.Entries(),
	})
	s.speakReply(reply)

	if reply.EndOfCall {
		time.AfterFunc(s.cfg.GraceDelay, func() { s.End(true) })
	}
}

// generate asks for the customer's next line, falling back to a fixed
// apology so the call never stalls on a generation failure.
func (s *Session) generate(req dialogue.Request) dialogue.Reply {
	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Second)
	defer cancel()
	reply, err := s.cfg.Generator.Generate(ctx, req)
	if err != nil {
		log.Printf("session %s: generation failed, using fallback: %v", s.id, err)
		fb := dialogue.FallbackReply()
		s.transcript.Append(transcript.Utterance{
			Role:  transcript.RoleCustomer,
			Text:  fb.Text,
			Roman: dialogue.FallbackReplyRoman,
			At:    time.Now(),
		})
		s.emitLast()
		return fb
	}
	if reply.Text != "" {
		s.appendCustomer(reply.Text, s.roman(reply.Text))
	}
	return reply
}

func (s *Session) speakReply(reply dialogue.Reply) {
	if reply.Text != "" {
		s.say(reply.Text)
	}
}

// say synthesizes and plays one customer line. The mic is deactivated and
// the detector paused for the duration so the reply cannot be heard as
// trainee speech. If the trainee muted themselves, playback is skipped.
func (s *Session) say(text string) {
	if s.Flags.Muted() {
		log.Printf("session %s: muted, skipping playback", s.id)
		return
	}
	s.Flags.SetMicActive(false)
	s.cfg.Detector.Pause()
	defer func() {
		s.mu.Lock()
		ended := s.ended
		s.mu.Unlock()
		if !ended {
			s.Flags.SetMicActive(true)
			s.cfg.Detector.Resume()
		}
	}()

	ctx, cancel := context.WithTimeout(s.ctx, 60*time.Second)
	defer cancel()
	clip, mime, err := s.cfg.Synthesizer.Synthesize(ctx, text)
	if err != nil {
		log.Printf("session %s: synthesis failed, skipping playback: %v", s.id, err)
		return
	}
	if err := s.cfg.Player.Play(ctx, clip, mime); err != nil {
		log.Printf("session %s: playback failed: %v", s.id, err)
	}
}

// roman romanizes best effort; failures just leave the field empty.
func (s *Session) roman(text string) string {
	if s.cfg.Romanizer == nil {
		return ""
	}
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	r, err := s.cfg.Romanizer.Romanize(ctx, text)
	if err != nil {
		log.Printf("session %s: romanization failed: %v", s.id, err)
		return ""
	}
	return r
}

func (s *Session) appendAgent(text string) {
	s.transcript.Append(transcript.Utterance{
		Role:  transcript.RoleAgent,
		Text:  text,
		Roman: s.roman(text),
		At:    time.Now(),
	})
	s.emitLast()
}

func (s *Session) appendCustomer(text, roman string) {
	s.transcript.Append(transcript.Utterance{
		Role:  transcript.RoleCustomer,
		Text:  text,
		Roman: roman,
		At:    time.Now(),
	})
	s.emitLast()
}

func (s *Session) emitLast() {
	entries := s.transcript.Entries()
	if len(entries) == 0 {
		return
	}
	u := entries[len(entries)-1]
	s.emit(Event{Type: "utterance", Utterance: &u})
}

// advanceStage moves forward only; a transition that would go backwards or
// repeat is refused.
func (s *Session) advanceStage(next transcript.Stage) bool {
	s.mu.Lock()
	if s.ended || !s.stage.CanAdvanceTo(next) {
		s.mu.Unlock()
		return false
	}
	s.stage = next
	s.mu.Unlock()
	s.emit(Event{Type: "stage", Stage: next})
	return true
}

func (s *Session) setStatus(status transcript.VoiceStatus) {
	s.mu.Lock()
	if s.ended && status != transcript.StatusIdle {
		s.mu.Unlock()
		return
	}
	s.status = status
	s.mu.Unlock()
	s.emit(Event{Type: "status", Status: status})
}

func (s *Session) emit(ev Event) {
	if s.cfg.OnEvent != nil {
		s.cfg.OnEvent(ev)
	}
}

// End stops detection, stores the session record, and emits the final
// event. Safe to call more than once; natural marks a customer-initiated
// hangup rather than a trainee abort.
func (s *Session) End(natural bool) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.ended = true
		s.natural = natural
		if s.announce != nil {
			s.announce.Stop()
			s.announce = nil
		}
		s.mu.Unlock()

		s.Flags.SetMicActive(false)
		if err := s.cfg.Detector.Stop(); err != nil {
			log.Printf("session %s: detector stop: %v", s.id, err)
		}
		if s.cancel != nil {
			s.cancel()
		}

		rec := transcript.SessionRecord{
			SessionID:       s.id,
			ScenarioID:      s.cfg.Scenario.ID,
			Transcript:      s.transcript.Entries(),
			DurationSeconds: int(time.Since(s.startedAt).Seconds()),
			EndedNaturally:  natural,
			EndedAt:         time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.cfg.Recorder.Record(ctx, rec); err != nil {
			log.Printf("session %s: record session: %v", s.id, err)
		}

		s.setStatus(transcript.StatusIdle)
		s.emit(Event{Type: "ended"})
		close(s.done)
		log.Printf("session %s: ended natural=%v turns=%d", s.id, natural, len(rec.Transcript))
	})
}
