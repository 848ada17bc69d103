package embedding

import (
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client wraps the OpenAI client for embedding generation.
type Client struct {
	client *openai.Client
}

// NewClient creates an OpenAI client from an explicitly provided API key.
// The key is passed in rather than read from process-wide state so that
// construction sites own their credentials.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Client{client: &client}, nil
}

// Client returns the underlying OpenAI client for reuse by the agent.
func (c *Client) Client() *openai.Client {
	return c.client
}
