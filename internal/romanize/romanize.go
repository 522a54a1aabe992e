// Package romanize converts Urdu text in Arabic script to Roman Urdu for
// display. Romanization is cosmetic: callers treat failures as an empty
// result and carry on.
package romanize

import (
	"context"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const systemPrompt = `You convert Urdu text (in Arabic script) to Roman Urdu (Urdu written in English alphabet). Only output the romanized text, nothing else. Example: "مجھے مسئلہ ہے" → "Mujhe masla hai"`

// Client romanizes text through the OpenAI chat API.
type Client struct {
	client oai.Client
	model  string
}

func New(apiKey, model string, opts ...option.RequestOption) *Client {
	reqOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Client{
		client: oai.NewClient(reqOpts...),
		model:  model,
	}
}

// Romanize returns the Roman Urdu form of text.
func (c *Client) Romanize(ctx context.Context, text string) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(systemPrompt),
			oai.UserMessage(text),
		},
		Temperature:         param.NewOpt(0.3),
		MaxCompletionTokens: param.NewOpt(int64(200)),
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("romanize: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("romanize: empty choices in response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
