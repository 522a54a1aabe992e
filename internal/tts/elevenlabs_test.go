package tts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestElevenLabs_NoCredentials(t *testing.T) {
	e := NewElevenLabsClient("", "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, err := e.Synthesize(ctx, "سلام"); err == nil {
		t.Fatalf("expected error with missing credentials")
	}
}

func TestElevenLabs_SynthesizesClip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "key" {
			t.Errorf("missing api key header")
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if req.ModelID != "eleven_multilingual_v2" {
			t.Errorf("unexpected model %q", req.ModelID)
		}
		if req.VoiceSettings.Stability != 0.5 || req.VoiceSettings.SimilarityBoost != 0.75 {
			t.Errorf("unexpected voice settings %+v", req.VoiceSettings)
		}
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	e := NewElevenLabsClient("key", "voice-1")
	e.BaseURL = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	audio, mime, err := e.Synthesize(ctx, "سلام")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3-bytes" || mime != "audio/mpeg" {
		t.Fatalf("unexpected clip %q mime %q", audio, mime)
	}
}

func TestElevenLabs_EmptyAudioIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer srv.Close()

	e := NewElevenLabsClient("key", "voice-1")
	e.BaseURL = srv.URL
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, err := e.Synthesize(ctx, "سلام"); err == nil {
		t.Fatalf("expected error for empty audio")
	}
}
