package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"

	"github.com/pRiMeXoMeGa/rag-langgraph-doc-qna/internal/domain"
)

// retrieveToolName is the single capability advertised to the model.
const retrieveToolName = "retrieve"

// OpenAIModel implements Model with OpenAI chat completions. Decoding is
// deterministic (temperature 0) so the same conversation state always
// yields the same next decision.
type OpenAIModel struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// NewOpenAIModel builds the model from an explicit client and
// configuration; there is no process-wide singleton.
func NewOpenAIModel(client *openai.Client, model string, timeout time.Duration) *OpenAIModel {
	return &OpenAIModel{client: client, model: model, timeout: timeout}
}

// Decide runs one completion over the conversation. When allowRetrieval
// is true the retrieve tool is advertised; the returned decision carries
// either tool requests or a final answer. The assistant turn is recorded
// on the conversation so tool results can reference its call ids.
func (m *OpenAIModel) Decide(ctx context.Context, conv *Conversation, allowRetrieval bool) (*Decision, error) {
	params := openai.ChatCompletionNewParams{
		Messages:    conv.Messages(),
		Model:       m.model,
		Temperature: openai.Float(0),
	}
	if allowRetrieval {
		params.Tools = []openai.ChatCompletionToolParam{retrieveTool()}
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	resp, err := m.client.Chat.Completions.New(callCtx, params)
	if err != nil {
		return nil, classify(callCtx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: completion returned no choices", domain.ErrUpstreamFailure)
	}

	msg := resp.Choices[0].Message
	conv.addRaw(msg.ToParam())

	decision := &Decision{Answer: msg.Content}
	for _, call := range msg.ToolCalls {
		var args struct {
			Query string `json:"query"`
		}
		// Malformed arguments degrade to an empty query; the retrieval
		// result will tell the model nothing was found.
		_ = json.Unmarshal([]byte(call.Function.Arguments), &args)
		decision.Requests = append(decision.Requests, ToolRequest{
			ID:    call.ID,
			Name:  call.Function.Name,
			Query: args.Query,
		})
	}
	return decision, nil
}

// retrieveTool is the single closed capability advertised to the model.
func retrieveTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        retrieveToolName,
			Description: openai.String("Search the uploaded document and return the most relevant passages for a query."),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The search query; may be a reformulation of the user's question.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrUpstreamFailure, err)
}
