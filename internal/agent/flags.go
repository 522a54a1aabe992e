package agent

import "sync/atomic"

// Flags is the shared state cell read synchronously by the detection path on
// every audio frame. All fields are atomics so the high-frequency reader
// never contends with the turn loop.
type Flags struct {
	micActive  atomic.Bool
	muted      atomic.Bool
	processing atomic.Bool
}

func (f *Flags) MicActive() bool  { return f.micActive.Load() }
func (f *Flags) Muted() bool      { return f.muted.Load() }
func (f *Flags) Processing() bool { return f.processing.Load() }

func (f *Flags) SetMicActive(v bool)  { f.micActive.Store(v) }
func (f *Flags) SetMuted(v bool)      { f.muted.Store(v) }
func (f *Flags) SetProcessing(v bool) { f.processing.Store(v) }

// ToggleMute flips the mute flag and returns the new value.
func (f *Flags) ToggleMute() bool {
	for {
		old := f.muted.Load()
		if f.muted.CompareAndSwap(old, !old) {
			return !old
		}
	}
}
