// Package detect decides when the trainee has finished speaking. Two
// interchangeable strategies exist: EnergyDetector watches signal energy
// locally and hands the buffered audio to a transcription client, while
// StreamDetector forwards audio to a streaming transcription service and
// relies on its finality markers. Both emit completed utterances on a
// channel consumed by the session turn loop.
package detect

// Result is one completed utterance. Exactly one of Text or Audio is
// populated depending on the strategy: StreamDetector already has the text,
// EnergyDetector only has the raw clip.
type Result struct {
	Text  string
	Audio []byte
}

// Gate exposes the session flags a detector must consult on every frame.
// Implementations are read synchronously from the audio path, so they must
// be cheap and safe to call from any goroutine.
type Gate interface {
	MicActive() bool
	Muted() bool
	Processing() bool
}

// Detector is the end-of-utterance detection contract. Feed is called for
// every PCM16LE frame from the client. Pause halts detection and discards
// in-flight state before playback starts; Resume re-arms it afterwards.
type Detector interface {
	Start() error
	Feed(pcm []byte)
	Utterances() <-chan Result
	Partials() <-chan string
	Pause()
	Resume()
	Stop() error
}
