package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/detect"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/dialogue"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/recorder"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/scenario"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

type fakeDetector struct {
	utterances chan detect.Result
	pauses     atomic.Int32
	resumes    atomic.Int32
	stopped    atomic.Bool
}

func newFakeDetector() *fakeDetector {
	return &fakeDetector{utterances: make(chan detect.Result, 10)}
}

func (f *fakeDetector) Start() error                      { return nil }
func (f *fakeDetector) Feed(pcm []byte)                   {}
func (f *fakeDetector) Utterances() <-chan detect.Result  { return f.utterances }
func (f *fakeDetector) Partials() <-chan string           { return nil }
func (f *fakeDetector) Pause()                            { f.pauses.Add(1) }
func (f *fakeDetector) Resume()                           { f.resumes.Add(1) }
func (f *fakeDetector) Stop() error                       { f.stopped.Store(true); return nil }

type fakeGenerator struct {
	mu      sync.Mutex
	replies []dialogue.Reply
	err     error
	calls   []dialogue.Request
}

func (f *fakeGenerator) Generate(_ context.Context, req dialogue.Request) (dialogue.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	if f.err != nil {
		return dialogue.Reply{}, f.err
	}
	if len(f.replies) == 0 {
		return dialogue.Reply{Text: "جی، بتائیں"}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGenerator) lastCall() (dialogue.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return dialogue.Request{}, false
	}
	return f.calls[len(f.calls)-1], true
}

type fakeSynth struct {
	err   error
	calls atomic.Int32
}

func (f *fakeSynth) Synthesize(_ context.Context, text string) ([]byte, string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, "", f.err
	}
	return []byte("clip:" + text), "audio/mpeg", nil
}

type fakePlayer struct{ plays atomic.Int32 }

func (f *fakePlayer) Play(context.Context, []byte, string) error {
	f.plays.Add(1)
	return nil
}

type fakeClipTranscriber struct {
	text string
	err  error
}

func (f fakeClipTranscriber) Transcribe(context.Context, []byte) (string, error) {
	return f.text, f.err
}

type fixture struct {
	sess     *Session
	det      *fakeDetector
	gen      *fakeGenerator
	synth    *fakeSynth
	player   *fakePlayer
	recorder *recorder.Memory
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	det := newFakeDetector()
	gen := &fakeGenerator{}
	synth := &fakeSynth{}
	player := &fakePlayer{}
	mem := recorder.NewMemory()
	cfg := Config{
		Scenario: scenario.Scenario{
			ID:              "billing_complaint",
			Name:            "High Bill Complaint",
			NameUrdu:        "زیادہ بل کی شکایت",
			Description:     "high bill",
			DescriptionUrdu: "زیادہ بل",
			SystemPrompt:    "You are Ahmed Khan.",
		},
		Detector:    det,
		Generator:   gen,
		Synthesizer: synth,
		Player:      player,
		Recorder:    mem,
		GraceDelay:  30 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	sess, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := sess.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { sess.End(false) })
	f := &fixture{sess: sess, det: det, gen: gen, synth: synth, player: player, recorder: mem}
	f.waitFor(t, "greeting finished", func() bool {
		return sess.Status() == transcript.StatusListening
	})
	return f
}

func (f *fixture) waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fixture) customerTexts() []string {
	var out []string
	for _, u := range f.sess.Transcript() {
		if u.Role == transcript.RoleCustomer {
			out = append(out, u.Text)
		}
	}
	return out
}

func TestSession_GreetingOpensIntroduction(t *testing.T) {
	f := newFixture(t, nil)
	if got := f.sess.Stage(); got != transcript.StageIntroduction {
		t.Fatalf("expected introduction stage, got %q", got)
	}
	texts := f.customerTexts()
	if len(texts) == 0 || !strings.Contains(texts[0], "UMAR") {
		t.Fatalf("expected greeting first, got %v", texts)
	}
}

func TestSession_AffirmativeAdvancesToRoleplay(t *testing.T) {
	f := newFixture(t, nil)

	f.det.utterances <- detect.Result{Text: "han ji main tayyar hoon"}

	f.waitFor(t, "roleplay stage", func() bool {
		return f.sess.Stage() == transcript.StageRoleplay
	})
	f.waitFor(t, "opening reply", func() bool { return f.gen.callCount() >= 1 })

	req, _ := f.gen.lastCall()
	if !req.Opening {
		t.Fatalf("expected an opening generation request")
	}

	texts := f.customerTexts()
	foundAnnouncement := false
	for _, txt := range texts {
		if strings.Contains(txt, "کردار ادا") {
			foundAnnouncement = true
		}
	}
	if !foundAnnouncement {
		t.Fatalf("expected a scenario announcement in transcript: %v", texts)
	}
}

func TestSession_NonAffirmativeStaysInIntroduction(t *testing.T) {
	f := newFixture(t, nil)

	f.det.utterances <- detect.Result{Text: "mujhe samajh nahi aaya"}

	f.waitFor(t, "clarification", func() bool {
		for _, txt := range f.customerTexts() {
			if strings.Contains(txt, "کوئی بات نہیں") {
				return true
			}
		}
		return false
	})
	if got := f.sess.Stage(); got != transcript.StageIntroduction {
		t.Fatalf("expected to stay in introduction, got %q", got)
	}
	if f.gen.callCount() != 0 {
		t.Fatalf("no reply should be generated during the introduction")
	}
}

func TestSession_EndOfCallReplyEndsNaturally(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Generator = &fakeGenerator{replies: []dialogue.Reply{
			{Text: "السلام علیکم، میرا bill بہت زیادہ آیا ہے۔"},
			{Text: "بہت شکریہ، مسئلہ حل ہو گیا", EndOfCall: true},
		}}
	})
	gen := f.sess.cfg.Generator.(*fakeGenerator)

	f.det.utterances <- detect.Result{Text: "ji haan, main tayyar hoon"}
	f.waitFor(t, "roleplay", func() bool { return f.sess.Stage() == transcript.StageRoleplay })

	f.det.utterances <- detect.Result{Text: "aap ka masla hal kar diya gaya hai"}

	select {
	case <-f.sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end after end-of-call reply")
	}

	rec, ok := f.recorder.Last()
	if !ok {
		t.Fatalf("expected a stored session record")
	}
	if !rec.EndedNaturally {
		t.Fatalf("expected a natural ending")
	}
	if rec.ScenarioID != "billing_complaint" {
		t.Fatalf("unexpected scenario id %q", rec.ScenarioID)
	}
	for _, u := range rec.Transcript {
		if strings.Contains(u.Text, dialogue.EndCallMarker) {
			t.Fatalf("end marker must not reach the transcript: %q", u.Text)
		}
	}
	if !f.det.stopped.Load() {
		t.Fatalf("detector must be stopped at session end")
	}
	if gen.callCount() != 2 {
		t.Fatalf("expected 2 generation calls, got %d", gen.callCount())
	}
}

func TestSession_GenerationFailureSpeaksFallback(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Generator = &fakeGenerator{err: errors.New("boom")}
	})

	f.det.utterances <- detect.Result{Text: "tayyar hoon"}
	f.waitFor(t, "roleplay", func() bool { return f.sess.Stage() == transcript.StageRoleplay })

	f.waitFor(t, "fallback in transcript", func() bool {
		for _, txt := range f.customerTexts() {
			if strings.Contains(txt, "معذرت") {
				return true
			}
		}
		return false
	})
}

func TestSession_SynthesisFailureResumesListening(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Synthesizer = &fakeSynth{err: errors.New("tts down")}
	})

	f.det.utterances <- detect.Result{Text: "han tayyar"}
	f.waitFor(t, "roleplay", func() bool { return f.sess.Stage() == transcript.StageRoleplay })

	f.waitFor(t, "mic re-activated", func() bool { return f.sess.Flags.MicActive() })
	if f.player.plays.Load() != 0 {
		t.Fatalf("no playback expected when synthesis fails")
	}
	f.waitFor(t, "detector resumed", func() bool {
		return f.det.resumes.Load() == f.det.pauses.Load() && f.det.pauses.Load() > 0
	})
}

func TestSession_EmptyTranscriptionAbandonsTurn(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Transcriber = fakeClipTranscriber{text: "   "}
	})
	before := len(f.sess.Transcript())

	f.det.utterances <- detect.Result{Audio: []byte{1, 2, 3, 4}}
	time.Sleep(50 * time.Millisecond)

	if got := len(f.sess.Transcript()); got != before {
		t.Fatalf("empty transcription must not be appended, transcript grew %d -> %d", before, got)
	}
	if f.sess.Stage() != transcript.StageIntroduction {
		t.Fatalf("stage must not move on an empty turn")
	}
}

func TestSession_TranscriptionErrorIsSilent(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Transcriber = fakeClipTranscriber{err: errors.New("stt down")}
	})
	before := len(f.sess.Transcript())
	plays := f.player.plays.Load()

	f.det.utterances <- detect.Result{Audio: []byte{1, 2, 3, 4}}
	time.Sleep(50 * time.Millisecond)

	if got := len(f.sess.Transcript()); got != before {
		t.Fatalf("failed transcription must not be appended")
	}
	if f.player.plays.Load() != plays {
		t.Fatalf("no error message may be spoken for a failed transcription")
	}
}

func TestSession_MutedSkipsPlaybackButKeepsTranscript(t *testing.T) {
	f := newFixture(t, nil)
	f.sess.ToggleMute()
	plays := f.player.plays.Load()

	f.det.utterances <- detect.Result{Text: "kuch aur"}
	f.waitFor(t, "clarification appended", func() bool {
		return len(f.customerTexts()) >= 2
	})
	if f.player.plays.Load() != plays {
		t.Fatalf("muted session must not play audio")
	}
}

func TestSession_MutePausesDetector(t *testing.T) {
	f := newFixture(t, nil)
	pauses := f.det.pauses.Load()
	resumes := f.det.resumes.Load()

	f.sess.SetMuted(true)
	if f.det.pauses.Load() != pauses+1 {
		t.Fatalf("muting must pause the detector")
	}
	if !f.sess.Flags.Muted() {
		t.Fatalf("mute flag not set")
	}

	f.sess.SetMuted(false)
	if f.det.resumes.Load() != resumes+1 {
		t.Fatalf("unmuting must resume the detector")
	}
	if f.sess.Flags.Muted() {
		t.Fatalf("mute flag not cleared")
	}
}

func TestSession_MarkerOnlyReplyLeavesNoEmptyUtterance(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Generator = &fakeGenerator{replies: []dialogue.Reply{
			{Text: "میرا مسئلہ سن لیں۔"},
			{Text: "", EndOfCall: true},
		}}
	})

	f.det.utterances <- detect.Result{Text: "ji haan tayyar hoon"}
	f.waitFor(t, "roleplay", func() bool { return f.sess.Stage() == transcript.StageRoleplay })

	plays := f.player.plays.Load()
	f.det.utterances <- detect.Result{Text: "khuda hafiz"}

	select {
	case <-f.sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end on a marker-only reply")
	}

	rec, ok := f.recorder.Last()
	if !ok {
		t.Fatalf("expected a stored session record")
	}
	if !rec.EndedNaturally {
		t.Fatalf("expected a natural ending")
	}
	for _, u := range rec.Transcript {
		if u.Role == transcript.RoleCustomer && strings.TrimSpace(u.Text) == "" {
			t.Fatalf("empty customer utterance reached the transcript")
		}
	}
	if f.player.plays.Load() != plays {
		t.Fatalf("nothing should play for a marker-only reply")
	}
}

func TestSession_StageNeverMovesBackwards(t *testing.T) {
	f := newFixture(t, nil)
	f.det.utterances <- detect.Result{Text: "tayyar hoon ji"}
	f.waitFor(t, "roleplay", func() bool { return f.sess.Stage() == transcript.StageRoleplay })

	if f.sess.advanceStage(transcript.StageIntroduction) {
		t.Fatalf("stage must not move backwards")
	}
	if f.sess.advanceStage(transcript.StageAnnouncement) {
		t.Fatalf("stage must not move backwards")
	}
	if f.sess.Stage() != transcript.StageRoleplay {
		t.Fatalf("stage changed unexpectedly")
	}
}

func TestIsAffirmative(t *testing.T) {
	yes := []string{"han ji main tayyar hoon", "YES", "جی ہاں", "ready hun", "تیار"}
	for _, s := range yes {
		if !isAffirmative(s) {
			t.Fatalf("expected %q to be affirmative", s)
		}
	}
	no := []string{"mujhe samajh nahi aaya", "nahin", ""}
	for _, s := range no {
		if isAffirmative(s) {
			t.Fatalf("expected %q to not be affirmative", s)
		}
	}
}

func TestSession_EndIsIdempotent(t *testing.T) {
	f := newFixture(t, nil)
	f.sess.End(false)
	f.sess.End(true)

	recs := f.recorder.All()
	if len(recs) != 1 {
		t.Fatalf("expected exactly one record, got %d", len(recs))
	}
	if recs[0].EndedNaturally {
		t.Fatalf("first End call wins; ending must not be natural")
	}
}
