package agent

import (
	"github.com/openai/openai-go"
)

// Conversation is the transient per-query message sequence: system
// instruction, user question, then alternating tool invocations and
// results until the final answer. It lives for one query only; nothing
// is shared or remembered across requests.
type Conversation struct {
	messages []openai.ChatCompletionMessageParamUnion
}

// NewConversation seeds a turn with the grounding instruction and the
// user's question.
func NewConversation(system, question string) *Conversation {
	return &Conversation{
		messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(question),
		},
	}
}

// AddUser appends a user-role message, used when tool access is
// withdrawn after the iteration cap.
func (c *Conversation) AddUser(text string) {
	c.messages = append(c.messages, openai.UserMessage(text))
}

// AddToolResult appends the raw retrieval output for one tool call.
func (c *Conversation) AddToolResult(callID, content string) {
	c.messages = append(c.messages, openai.ToolMessage(content, callID))
}

// addRaw appends a provider-shaped message, used by the model
// implementation to record its own assistant turns (including tool-call
// ids the provider requires on the next round).
func (c *Conversation) addRaw(msg openai.ChatCompletionMessageParamUnion) {
	c.messages = append(c.messages, msg)
}

// Messages returns the accumulated sequence.
func (c *Conversation) Messages() []openai.ChatCompletionMessageParamUnion {
	return c.messages
}

// Len returns the number of messages accumulated so far.
func (c *Conversation) Len() int {
	return len(c.messages)
}
