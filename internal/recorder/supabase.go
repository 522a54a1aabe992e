package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/supabase-community/supabase-go"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

// SupabaseConfig locates the storage bucket holding session records.
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Bucket     string
}

// Supabase uploads each session record as a JSON object named by session id.
type Supabase struct {
	client *supabase.Client
	bucket string
}

func NewSupabase(cfg SupabaseConfig) (*Supabase, error) {
	client, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("create supabase client: %w", err)
	}
	return &Supabase{client: client, bucket: cfg.Bucket}, nil
}

func (s *Supabase) Record(_ context.Context, rec transcript.SessionRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal session record: %w", err)
	}
	key := rec.SessionID + ".json"
	if _, err := s.client.Storage.UploadFile(s.bucket, key, bytes.NewReader(body)); err != nil {
		return fmt.Errorf("upload session record: %w", err)
	}
	return nil
}
