// Package dialogue generates the simulated customer's replies. A reply may
// carry the end-of-call marker, which is parsed out here so callers only ever
// see clean text plus a flag.
package dialogue

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/scenario"
	"github.com/sufyaniftikhar-NexAura/UMAR-Training-Agent/internal/transcript"
)

// EndCallMarker is appended by the model when the customer wants to hang up.
const EndCallMarker = "[END_CALL]"

// Request describes one reply to generate. Opening requests start the
// roleplay and carry no agent text.
type Request struct {
	Opening   bool
	AgentText string
	Scenario  scenario.Scenario
	History   []transcript.Utterance
}

// Reply is a generated customer turn with the marker already stripped.
type Reply struct {
	Text      string
	EndOfCall bool
}

// ParseReply extracts the end-of-call flag from raw model output. Only the
// first marker occurrence is removed; any literal repeat stays in the text.
func ParseReply(raw string) Reply {
	end := strings.Contains(raw, EndCallMarker)
	text := strings.TrimSpace(strings.Replace(raw, EndCallMarker, "", 1))
	return Reply{Text: text, EndOfCall: end}
}

// FallbackReply is spoken when generation fails so the session keeps moving.
func FallbackReply() Reply {
	return Reply{Text: "معذرت، مجھے مسئلہ ہو رہا ہے۔"}
}

// FallbackReplyRoman is the romanized display form of the fallback.
const FallbackReplyRoman = "Maazrat, mujhe masla ho raha hai."

// OpenAIGenerator produces customer replies through the OpenAI chat API.
type OpenAIGenerator struct {
	client oai.Client
	model  string
}

// NewOpenAIGenerator builds a generator for the given model. Extra request
// options are applied to every call; tests use this to point at a fake server.
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGenerator{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}
}

// Generate asks the model for the customer's next turn.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Reply, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(buildSystemPrompt(req)),
			oai.UserMessage(buildUserPrompt(req)),
		},
		Temperature:         param.NewOpt(0.9),
		MaxCompletionTokens: param.NewOpt(int64(150)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return Reply{}, fmt.Errorf("dialogue: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Reply{}, fmt.Errorf("dialogue: empty choices in response")
	}
	return ParseReply(resp.Choices[0].Message.Content), nil
}
