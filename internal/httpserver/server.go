// Package httpserver exposes the training service over HTTP: a scenario
// catalogue, stored session records, and the WebSocket gateway that carries
// live audio and events for one session.
package httpserver

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/agent"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/config"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/detect"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/dialogue"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/recorder"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/romanize"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/scenario"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/stt"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/tts"
)

// sessionFactory builds a ready-to-start session for one WebSocket client.
// Swapped out in tests.
type sessionFactory func(sc scenario.Scenario, player agent.Player, onEvent func(agent.Event)) (*agent.Session, error)

// Server bundles the HTTP routes and session wiring.
type Server struct {
	cfg        config.Config
	echo       *echo.Echo
	store      *recorder.Memory
	rec        recorder.Recorder
	newSession sessionFactory
}

// New constructs the server with all routes registered.
func New(cfg config.Config) *Server {
	s := &Server{cfg: cfg, store: recorder.NewMemory()}

	recs := recorder.Multi{s.store}
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		sb, err := recorder.NewSupabase(recorder.SupabaseConfig{
			URL:        cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseKey,
			Bucket:     cfg.SupabaseBucket,
		})
		if err != nil {
			log.Printf("supabase recorder disabled: %v", err)
		} else {
			recs = append(recs, sb)
		}
	}
	s.rec = recs
	s.newSession = s.buildSession

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/scenarios", s.listScenarios)
	e.GET("/api/scenarios/:id", s.getScenario)
	e.GET("/api/sessions", s.listSessions)
	e.GET("/ws/session", s.handleSession)

	s.echo = e
	return s
}

// Handler returns the root handler for use with an http.Server.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) listScenarios(c echo.Context) error {
	if level := c.QueryParam("difficulty"); level != "" {
		out, err := scenario.ByDifficulty(level)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, out)
	}
	all, err := scenario.All()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, all)
}

func (s *Server) getScenario(c echo.Context) error {
	sc, err := scenario.ByID(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, sc)
}

func (s *Server) listSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.All())
}

// buildSession wires the configured detection strategy and providers into a
// new session.
func (s *Server) buildSession(sc scenario.Scenario, player agent.Player, onEvent func(agent.Event)) (*agent.Session, error) {
	flags := &agent.Flags{}

	var synth tts.Synthesizer = tts.NewElevenLabsClient(s.cfg.ElevenLabsKey, s.cfg.ElevenLabsVoiceID)
	if s.cfg.ElevenLabsKey == "" && s.cfg.DeepgramKey != "" {
		synth = tts.NewDeepgramClient(s.cfg.DeepgramKey, s.cfg.DeepgramModel)
	}

	cfg := agent.Config{
		Scenario:    sc,
		Generator:   dialogue.NewOpenAIGenerator(s.cfg.OpenAIKey, s.cfg.ChatModel),
		Romanizer:   romanize.New(s.cfg.OpenAIKey, s.cfg.ChatModel),
		Synthesizer: synth,
		Player:      player,
		Recorder:    s.rec,
		OnEvent:     onEvent,
		GraceDelay:  s.cfg.GraceDelay,
		Flags:       flags,
	}

	var energy *detect.EnergyDetector
	if s.cfg.DetectorStrategy == "stream" {
		cfg.Detector = detect.NewStreamDetector(detect.StreamConfig{
			APIKey:         s.cfg.SonioxKey,
			Model:          s.cfg.SonioxModel,
			EndpointWindow: s.cfg.SilenceWindow,
		}, flags)
	} else {
		energy = detect.NewEnergyDetector(flags, s.cfg.VoiceThreshold, s.cfg.SilenceWindow)
		cfg.Detector = energy
		cfg.Transcriber = stt.NewWhisperClient(s.cfg.OpenAIKey)
	}

	sess, err := agent.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	if energy != nil {
		energy.OnVoiceStart = sess.VoiceDetected
	}
	return sess, nil
}
