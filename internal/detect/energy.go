package detect

import (
	"log"
	"sync"
	"time"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/audio"
)

// DefaultVoiceThreshold is the normalized RMS level a frame must exceed to
// count as voice. A frame exactly at the threshold counts as silence.
const DefaultVoiceThreshold = 0.01

// DefaultSilenceWindow is how long the signal must stay below the threshold
// before a recording is treated as a finished utterance.
const DefaultSilenceWindow = 1500 * time.Millisecond

// EnergyDetector detects end of speech from signal energy alone. It starts
// buffering when a frame crosses the voice threshold and emits the buffered
// clip once the silence window elapses with no further voice.
type EnergyDetector struct {
	gate          Gate
	threshold     float64
	silenceWindow time.Duration

	// OnVoiceStart fires once at the transition into recording, before any
	// frame is buffered. Optional.
	OnVoiceStart func()

	mu           sync.Mutex
	recording    bool
	frames       [][]byte
	silenceTimer *time.Timer
	gen          int
	started      bool

	utterances chan Result
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewEnergyDetector builds a detector gated by the given session flags.
// Non-positive threshold or window fall back to the defaults.
func NewEnergyDetector(gate Gate, threshold float64, silenceWindow time.Duration) *EnergyDetector {
	if threshold <= 0 {
		threshold = DefaultVoiceThreshold
	}
	if silenceWindow <= 0 {
		silenceWindow = DefaultSilenceWindow
	}
	return &EnergyDetector{
		gate:          gate,
		threshold:     threshold,
		silenceWindow: silenceWindow,
		utterances:    make(chan Result, 4),
		stopCh:        make(chan struct{}),
	}
}

func (d *EnergyDetector) Start() error {
	d.mu.Lock()
	d.started = true
	d.mu.Unlock()
	return nil
}

// Utterances delivers completed clips. Only Audio is set.
func (d *EnergyDetector) Utterances() <-chan Result { return d.utterances }

// Partials is always empty for the energy strategy; text only exists after
// the clip is transcribed.
func (d *EnergyDetector) Partials() <-chan string { return nil }

// Feed inspects one PCM16LE frame. Frames arriving while the mic is off,
// muted, or a turn is being processed are dropped without touching any
// recording state.
func (d *EnergyDetector) Feed(pcm []byte) {
	if !d.gate.MicActive() || d.gate.Muted() || d.gate.Processing() {
		return
	}

	voiced := audio.RMS(pcm) > d.threshold

	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	if !d.recording {
		if !voiced {
			d.mu.Unlock()
			return
		}
		d.recording = true
		d.frames = d.frames[:0]
		cb := d.OnVoiceStart
		d.mu.Unlock()
		if cb != nil {
			cb()
		}
		d.mu.Lock()
	}

	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	d.frames = append(d.frames, frame)

	if voiced {
		if d.silenceTimer != nil {
			d.silenceTimer.Stop()
			d.silenceTimer = nil
		}
	} else if d.silenceTimer == nil {
		gen := d.gen
		d.silenceTimer = time.AfterFunc(d.silenceWindow, func() { d.finalize(gen) })
	}
	d.mu.Unlock()
}

// finalize emits the buffered clip. A generation check discards timers that
// fire after Pause or Stop already reset the recording, and the gate is
// re-checked so audio captured before a mute cannot surface after it.
func (d *EnergyDetector) finalize(gen int) {
	d.mu.Lock()
	if gen != d.gen || !d.recording {
		d.mu.Unlock()
		return
	}
	if !d.gate.MicActive() || d.gate.Muted() || d.gate.Processing() {
		d.reset()
		d.mu.Unlock()
		return
	}
	clip := audio.Concat(d.frames)
	d.reset()
	d.mu.Unlock()

	if len(clip) == 0 {
		return
	}
	select {
	case d.utterances <- Result{Audio: clip}:
	case <-d.stopCh:
	default:
		log.Println("energy detector: utterance channel full, dropping clip")
	}
}

// reset clears recording state. Caller holds d.mu.
func (d *EnergyDetector) reset() {
	d.recording = false
	d.frames = nil
	if d.silenceTimer != nil {
		d.silenceTimer.Stop()
		d.silenceTimer = nil
	}
	d.gen++
}

// Pause discards any in-flight recording so stale audio cannot surface as an
// utterance after playback.
func (d *EnergyDetector) Pause() {
	d.mu.Lock()
	d.reset()
	d.mu.Unlock()
}

// Resume is a no-op for the energy strategy; detection restarts on the next
// voiced frame.
func (d *EnergyDetector) Resume() {}

func (d *EnergyDetector) Stop() error {
	d.stopOnce.Do(func() {
		close(d.stopCh)
		d.mu.Lock()
		d.started = false
		d.reset()
		d.mu.Unlock()
	})
	return nil
}
