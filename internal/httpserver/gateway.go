package httpserver

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/agent"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/scenario"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for browser clients; restrict in production
		return true
	},
}

// playbackTimeout caps how long a turn waits for the client's played ack so
// a silent client cannot wedge the session.
const playbackTimeout = 60 * time.Second

// clientMessage is what the browser sends. The first message must be
// "start"; afterwards binary frames carry PCM16LE audio and text frames
// carry control messages: "mute", "unmute", "played", "end".
type clientMessage struct {
	Type       string `json:"type"`
	ScenarioID string `json:"scenario_id,omitempty"`
}

// serverMessage is pushed to the browser for session events and audio.
type serverMessage struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	Scenario  *scenario.Scenario     `json:"scenario,omitempty"`
	Status    transcript.VoiceStatus `json:"status,omitempty"`
	Stage     transcript.Stage       `json:"stage,omitempty"`
	Utterance *transcript.Utterance  `json:"utterance,omitempty"`
	Partial   string                 `json:"partial,omitempty"`
	Audio     []byte                 `json:"audio,omitempty"`
	Mime      string                 `json:"mime,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// wsConn serializes writes; events, audio and acks come from different
// goroutines.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteJSON(v)
}

// wsPlayer delivers synthesized clips over the socket and waits for the
// client's played ack before letting the turn continue.
type wsPlayer struct {
	conn   *wsConn
	played chan struct{}
}

func (p *wsPlayer) Play(ctx context.Context, audio []byte, mime string) error {
	// a "played" that arrived after a previous timeout must not count for
	// this clip
	select {
	case <-p.played:
	default:
	}
	if err := p.conn.writeJSON(serverMessage{Type: "audio", Audio: audio, Mime: mime}); err != nil {
		return err
	}
	select {
	case <-p.played:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(playbackTimeout):
		log.Println("gateway: playback ack timed out, resuming")
		return nil
	}
}

// handleSession upgrades the connection, starts one session and pumps audio
// and control messages until either side hangs up.
func (s *Server) handleSession(c echo.Context) error {
	conn, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()
	wsc := &wsConn{conn: conn}

	var start clientMessage
	if err := conn.ReadJSON(&start); err != nil || start.Type != "start" {
		_ = wsc.writeJSON(serverMessage{Type: "error", Error: "expected a start message"})
		return nil
	}

	sc, err := pickScenario(start.ScenarioID)
	if err != nil {
		_ = wsc.writeJSON(serverMessage{Type: "error", Error: err.Error()})
		return nil
	}

	player := &wsPlayer{conn: wsc, played: make(chan struct{}, 1)}
	onEvent := func(ev agent.Event) {
		msg := serverMessage{
			Type:      ev.Type,
			Status:    ev.Status,
			Stage:     ev.Stage,
			Utterance: ev.Utterance,
			Partial:   ev.Partial,
		}
		if err := wsc.writeJSON(msg); err != nil {
			log.Printf("gateway: event write failed: %v", err)
		}
	}

	sess, err := s.newSession(sc, player, onEvent)
	if err != nil {
		_ = wsc.writeJSON(serverMessage{Type: "error", Error: err.Error()})
		return nil
	}

	if err := wsc.writeJSON(serverMessage{Type: "started", SessionID: sess.ID(), Scenario: &sc}); err != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sess.Start(ctx); err != nil {
		_ = wsc.writeJSON(serverMessage{Type: "error", Error: err.Error()})
		return nil
	}
	defer sess.End(false)

	// close the socket once the session is over so the read loop unblocks
	go func() {
		select {
		case <-sess.Done():
			time.Sleep(100 * time.Millisecond)
			_ = conn.Close()
		case <-ctx.Done():
		}
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return nil
		}
		switch mt {
		case websocket.BinaryMessage:
			sess.Feed(data)
		case websocket.TextMessage:
			var msg clientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Printf("gateway: bad control message: %v", err)
				continue
			}
			switch msg.Type {
			case "mute":
				sess.SetMuted(true)
			case "unmute":
				sess.SetMuted(false)
			case "played":
				select {
				case player.played <- struct{}{}:
				default:
				}
			case "end":
				sess.End(false)
				return nil
			default:
				log.Printf("gateway: unknown control message %q", msg.Type)
			}
		}
	}
}

func pickScenario(id string) (scenario.Scenario, error) {
	if id != "" {
		return scenario.ByID(id)
	}
	return scenario.Random()
}
