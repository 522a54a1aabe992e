package detect

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultStreamURL is the Soniox real-time transcription endpoint.
const DefaultStreamURL = "wss://stt-rt.soniox.com/transcribe-websocket"

// restartBackoff is how long to wait before reconnecting after the stream is
// cancelled at the end of an utterance.
const restartBackoff = 1000 * time.Millisecond

// StreamConfig configures the streaming transcription strategy.
type StreamConfig struct {
	APIKey string
	Model  string
	// URL overrides the transcription endpoint. Empty means DefaultStreamURL.
	URL string
	// EndpointWindow is the silence window after the last final token before
	// the utterance is considered complete. Non-positive means the default.
	EndpointWindow time.Duration
}

// streamInit is the first message on every connection.
type streamInit struct {
	APIKey        string   `json:"api_key"`
	Model         string   `json:"model"`
	AudioFormat   string   `json:"audio_format"`
	SampleRate    int      `json:"sample_rate"`
	NumChannels   int      `json:"num_channels"`
	LanguageHints []string `json:"language_hints"`
}

type streamToken struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

type streamMessage struct {
	Tokens       []streamToken `json:"tokens"`
	ErrorCode    int           `json:"error_code"`
	ErrorMessage string        `json:"error_message"`
	Finished     bool          `json:"finished"`
}

// StreamDetector delegates endpoint detection to a streaming transcription
// service. Audio is forwarded continuously; final tokens accumulate into a
// committed transcript and an inactivity timer on final tokens marks the end
// of the utterance. The connection is torn down before each reply plays so
// the service cannot emit stale text afterwards, then re-established.
type StreamDetector struct {
	cfg  StreamConfig
	gate Gate

	mu        sync.RWMutex
	conn      *websocket.Conn
	connected bool
	paused    bool
	stopped   bool

	accMu         sync.Mutex
	committed     string
	preview       string
	endpointTimer *time.Timer
	gen           int

	utterances chan Result
	partials   chan string
	audioData  chan []byte
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewStreamDetector builds the streaming strategy gated by the session flags.
func NewStreamDetector(cfg StreamConfig, gate Gate) *StreamDetector {
	if cfg.URL == "" {
		cfg.URL = DefaultStreamURL
	}
	if cfg.EndpointWindow <= 0 {
		cfg.EndpointWindow = DefaultSilenceWindow
	}
	return &StreamDetector{
		cfg:        cfg,
		gate:       gate,
		utterances: make(chan Result, 4),
		partials:   make(chan string, 100),
		audioData:  make(chan []byte, 1000),
		stopCh:     make(chan struct{}),
	}
}

// Utterances delivers completed utterances. Only Text is set.
func (d *StreamDetector) Utterances() <-chan Result { return d.utterances }

// Partials streams the live committed-plus-preview transcript for display.
func (d *StreamDetector) Partials() <-chan string { return d.partials }

// Start opens the transcription stream and launches the send and receive
// loops. The send loop outlives individual connections.
func (d *StreamDetector) Start() error {
	if err := d.connect(); err != nil {
		return err
	}
	go d.sendAudioData()
	return nil
}

func (d *StreamDetector) connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.connected || d.stopped {
		return nil
	}
	if d.cfg.APIKey == "" {
		return fmt.Errorf("transcription API key is empty")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.Dial(d.cfg.URL, nil)
	if err != nil {
		if resp != nil {
			log.Printf("Transcription stream connection failed with status: %d", resp.StatusCode)
		}
		return fmt.Errorf("connect transcription stream: %w", err)
	}

	init := streamInit{
		APIKey:        d.cfg.APIKey,
		Model:         d.cfg.Model,
		AudioFormat:   "pcm_s16le",
		SampleRate:    16000,
		NumChannels:   1,
		LanguageHints: []string{"ur", "en"},
	}
	if err := conn.WriteJSON(init); err != nil {
		_ = conn.Close()
		return fmt.Errorf("send stream config: %w", err)
	}

	d.conn = conn
	d.connected = true
	go d.handleMessages(conn)
	log.Println("Transcription stream connected")
	return nil
}

// Feed forwards one PCM16LE frame to the stream. Frames are dropped while
// the mic is off, muted, or a turn is in flight.
func (d *StreamDetector) Feed(pcm []byte) {
	if !d.gate.MicActive() || d.gate.Muted() || d.gate.Processing() {
		return
	}
	d.mu.RLock()
	connected := d.connected
	d.mu.RUnlock()
	if !connected {
		return
	}
	frame := make([]byte, len(pcm))
	copy(frame, pcm)
	select {
	case d.audioData <- frame:
	default:
		log.Println("Audio buffer full, dropping packet")
	}
}

func (d *StreamDetector) sendAudioData() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in sendAudioData: %v", r)
		}
	}()
	for {
		select {
		case <-d.stopCh:
			return
		case frame, ok := <-d.audioData:
			if !ok {
				return
			}
			d.mu.RLock()
			conn := d.conn
			d.mu.RUnlock()
			if conn == nil {
				continue
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				log.Printf("Error sending audio data: %v", err)
			}
		}
	}
}

func (d *StreamDetector) handleMessages(conn *websocket.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in handleMessages: %v", r)
		}
	}()
	for {
		select {
		case <-d.stopCh:
			return
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			d.mu.RLock()
			current := d.conn == conn
			d.mu.RUnlock()
			// A stale reader means Pause/finalize already tore this
			// connection down on purpose; only a current one is a real
			// provider failure worth recovering from.
			if current {
				log.Printf("Error reading stream message: %v", err)
				d.closeConn()
				time.AfterFunc(restartBackoff, d.maybeReconnect)
			}
			return
		}
		d.processMessage(message)
	}
}

func (d *StreamDetector) processMessage(message []byte) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		log.Printf("Error unmarshaling stream message: %v", err)
		return
	}
	if msg.ErrorCode != 0 {
		log.Printf("Transcription stream error %d: %s", msg.ErrorCode, msg.ErrorMessage)
		return
	}

	d.accMu.Lock()
	sawFinal := false
	preview := ""
	for _, tok := range msg.Tokens {
		if tok.IsFinal {
			d.committed += tok.Text
			sawFinal = true
		} else {
			preview += tok.Text
		}
	}
	d.preview = preview
	live := strings.TrimSpace(d.committed + d.preview)
	if sawFinal {
		gen := d.gen
		if d.endpointTimer == nil {
			d.endpointTimer = time.AfterFunc(d.cfg.EndpointWindow, func() { d.finalize(gen) })
		} else {
			d.endpointTimer.Stop()
			d.endpointTimer.Reset(d.cfg.EndpointWindow)
		}
	}
	d.accMu.Unlock()

	if live != "" {
		select {
		case d.partials <- live:
		default:
		}
	}
}

// finalize fires after the endpoint window passes with no new final tokens.
// It emits the committed transcript, cancels the stream so nothing stale can
// arrive during the reply, and schedules a reconnect.
func (d *StreamDetector) finalize(gen int) {
	select {
	case <-d.stopCh:
		return
	default:
	}

	d.accMu.Lock()
	if gen != d.gen {
		d.accMu.Unlock()
		return
	}
	if !d.gate.MicActive() || d.gate.Muted() {
		// text spoken before the mute must never surface after it
		d.committed = ""
		d.preview = ""
		d.gen++
		if d.endpointTimer != nil {
			d.endpointTimer.Stop()
			d.endpointTimer = nil
		}
		d.accMu.Unlock()
		return
	}
	text := strings.TrimSpace(d.committed)
	if text == "" || d.gate.Processing() {
		d.accMu.Unlock()
		return
	}
	d.committed = ""
	d.preview = ""
	d.gen++
	if d.endpointTimer != nil {
		d.endpointTimer.Stop()
		d.endpointTimer = nil
	}
	d.accMu.Unlock()

	d.closeConn()

	select {
	case d.utterances <- Result{Text: text}:
	case <-d.stopCh:
		return
	}

	time.AfterFunc(restartBackoff, d.maybeReconnect)
}

func (d *StreamDetector) maybeReconnect() {
	d.mu.RLock()
	paused, stopped := d.paused, d.stopped
	d.mu.RUnlock()
	if paused || stopped {
		return
	}
	if !d.gate.MicActive() || d.gate.Processing() {
		time.AfterFunc(restartBackoff, d.maybeReconnect)
		return
	}
	if err := d.connect(); err != nil {
		log.Printf("Transcription stream reconnect failed: %v", err)
		time.AfterFunc(restartBackoff, d.maybeReconnect)
	}
}

func (d *StreamDetector) closeConn() {
	d.mu.Lock()
	if d.conn != nil {
		_ = d.conn.Close()
		d.conn = nil
	}
	d.connected = false
	d.mu.Unlock()
}

// Pause tears the connection down and discards accumulated text. Called
// before playback so the service cannot finalize against reply audio.
func (d *StreamDetector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.mu.Unlock()

	d.accMu.Lock()
	d.committed = ""
	d.preview = ""
	d.gen++
	if d.endpointTimer != nil {
		d.endpointTimer.Stop()
		d.endpointTimer = nil
	}
	d.accMu.Unlock()

	d.closeConn()
}

// Resume re-opens the stream after playback.
func (d *StreamDetector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.mu.Unlock()
	if err := d.connect(); err != nil {
		log.Printf("Transcription stream resume failed: %v", err)
		time.AfterFunc(restartBackoff, d.maybeReconnect)
	}
}

func (d *StreamDetector) Stop() error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		d.mu.Unlock()
		close(d.stopCh)
		d.accMu.Lock()
		d.gen++
		if d.endpointTimer != nil {
			d.endpointTimer.Stop()
			d.endpointTimer = nil
		}
		d.accMu.Unlock()
		d.closeConn()
		log.Println("Transcription stream closed")
	})
	return nil
}
