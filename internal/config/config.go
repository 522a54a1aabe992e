package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	OpenAIKey string
	ChatModel string

	SonioxKey   string
	SonioxModel string

	ElevenLabsKey     string
	ElevenLabsVoiceID string

	DeepgramKey   string
	DeepgramModel string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// DetectorStrategy selects how end of speech is detected: "energy" for
	// local level-based detection, "stream" for streaming transcription.
	DetectorStrategy string

	VoiceThreshold float64
	SilenceWindow  time.Duration
	GraceDelay     time.Duration
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - replies and transcription will not work")
	}
	chatModel := os.Getenv("OPENAI_CHAT_MODEL")
	if chatModel == "" {
		chatModel = "gpt-4o-mini"
	}

	sonioxKey := os.Getenv("SONIOX_API_KEY")
	if sonioxKey == "" {
		log.Println("Warning: SONIOX_API_KEY not set - streaming endpoint detection will not work")
	}
	sonioxModel := os.Getenv("SONIOX_MODEL")
	if sonioxModel == "" {
		sonioxModel = "stt-rt-preview"
	}

	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	if elevenKey == "" {
		log.Println("Warning: ELEVENLABS_API_KEY not set - speech synthesis will not work")
	}
	voiceID := os.Getenv("ELEVENLABS_VOICE_ID")
	if voiceID == "" {
		log.Println("Warning: ELEVENLABS_VOICE_ID not set - set a concrete voice ID from your ElevenLabs dashboard")
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	deepgramModel := os.Getenv("DEEPGRAM_TTS_MODEL")
	if deepgramModel == "" {
		deepgramModel = "aura-asteria-en"
	}

	supabaseURL := os.Getenv("SUPABASE_URL")
	supabaseKey := os.Getenv("SUPABASE_SERVICE_KEY")
	if supabaseURL == "" || supabaseKey == "" {
		log.Println("Warning: SUPABASE_URL or SUPABASE_SERVICE_KEY not set - session records stay in memory only")
	}
	bucket := os.Getenv("SUPABASE_BUCKET")
	if bucket == "" {
		bucket = "training-sessions"
	}

	strategy := os.Getenv("DETECTOR_STRATEGY")
	if strategy != "stream" {
		strategy = "energy"
	}

	threshold := envFloat("VOICE_THRESHOLD", 0.01)
	silence := envDurationMs("SILENCE_WINDOW_MS", 1500*time.Millisecond)
	grace := envDurationMs("GRACE_DELAY_MS", 2000*time.Millisecond)

	log.Printf("config: HTTP_ADDRESS=%s detector=%s", addr, strategy)
	return Config{
		HTTPAddress:       addr,
		OpenAIKey:         openAIKey,
		ChatModel:         chatModel,
		SonioxKey:         sonioxKey,
		SonioxModel:       sonioxModel,
		ElevenLabsKey:     elevenKey,
		ElevenLabsVoiceID: voiceID,
		DeepgramKey:       deepgramKey,
		DeepgramModel:     deepgramModel,
		SupabaseURL:       supabaseURL,
		SupabaseKey:       supabaseKey,
		SupabaseBucket:    bucket,
		DetectorStrategy:  strategy,
		VoiceThreshold:    threshold,
		SilenceWindow:     silence,
		GraceDelay:        grace,
	}
}

func envFloat(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s=%q - using default", key, raw)
		return def
	}
	return v
}

func envDurationMs(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		log.Printf("Warning: invalid %s=%q - using default", key, raw)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
