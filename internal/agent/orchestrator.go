// Package agent runs the bounded decide → retrieve → evaluate → answer
// loop that lets a language model search a document before answering.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ToolRequest is one retrieval the model asked for. Name is kept so an
// unknown tool can be answered with an error result instead of a
// reflective lookup; the set of real tools is closed and currently has
// exactly one member.
type ToolRequest struct {
	ID    string
	Name  string
	Query string
}

// Decision is the model's output for one deciding round: either one or
// more tool requests, or a final answer.
type Decision struct {
	Answer   string
	Requests []ToolRequest
}

// Model is the decision point of the loop. Implementations must record
// their own assistant turn on the conversation.
type Model interface {
	Decide(ctx context.Context, conv *Conversation, allowRetrieval bool) (*Decision, error)
}

// Retriever executes one retrieval against one document.
type Retriever interface {
	Retrieve(ctx context.Context, documentID, query string, k int) ([]string, error)
}

// Result is what a query returns to the caller.
type Result struct {
	Answer    string
	ToolCalls int
}

// Orchestrator drives the agentic loop with a hard cap on deciding
// rounds so a confused model cannot spin forever.
type Orchestrator struct {
	model         Model
	retriever     Retriever
	k             int
	maxIterations int
	logger        *slog.Logger
}

// NewOrchestrator wires the loop. k is the retrieval fan-out per tool
// call; maxIterations caps deciding rounds per query.
func NewOrchestrator(model Model, retriever Retriever, k, maxIterations int, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		model:         model,
		retriever:     retriever,
		k:             k,
		maxIterations: maxIterations,
		logger:        logger,
	}
}

const noResultsMessage = "No relevant information found in the document."

// withdrawnPrompt forces a best-effort direct answer once the iteration
// cap is reached.
const withdrawnPrompt = "Retrieval is no longer available. Answer the question now using only the " +
	"passages already retrieved above. If they do not contain the answer, say the document does not " +
	"appear to contain it."

// Answer runs one query against one document. It returns the final
// answer and the number of tool calls made. Hitting the iteration cap
// degrades to a direct answer with tool access withdrawn rather than a
// user-facing error. Cancellation is honored at every state transition.
func (o *Orchestrator) Answer(ctx context.Context, documentID, filename, question string) (*Result, error) {
	conv := NewConversation(systemPrompt(filename), question)
	toolCalls := 0

	for round := 0; round < o.maxIterations; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decision, err := o.model.Decide(ctx, conv, true)
		if err != nil {
			return nil, err
		}

		if len(decision.Requests) == 0 {
			o.logger.Debug("query answered", "document_id", documentID, "rounds", round+1, "tool_calls", toolCalls)
			return &Result{Answer: decision.Answer, ToolCalls: toolCalls}, nil
		}

		// Requests run strictly in the order the model asked for them;
		// no fan-out, each result lands before the next call starts.
		for _, req := range decision.Requests {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if req.Name != retrieveToolName {
				conv.AddToolResult(req.ID, "Incorrect Tool Name, Please Retry.")
				continue
			}

			texts, err := o.retriever.Retrieve(ctx, documentID, req.Query, o.k)
			if err != nil {
				return nil, err
			}
			toolCalls++
			conv.AddToolResult(req.ID, formatPassages(texts))
		}
	}

	// Iteration cap reached: one last round with tool access withdrawn.
	o.logger.Warn("iteration cap reached, forcing direct answer",
		"document_id", documentID, "cap", o.maxIterations, "tool_calls", toolCalls)
	conv.AddUser(withdrawnPrompt)

	decision, err := o.model.Decide(ctx, conv, false)
	if err != nil {
		return nil, err
	}
	return &Result{Answer: decision.Answer, ToolCalls: toolCalls}, nil
}

// systemPrompt binds the model's answer strictly to retrieved content.
func systemPrompt(filename string) string {
	return fmt.Sprintf("You are an assistant that answers questions about the document %q. "+
		"Use the retrieve tool to look up passages from the document; you may call it multiple times "+
		"and reformulate the query when needed. Base your answer only on retrieved passages. "+
		"If the retrieved passages do not contain the answer, say the document does not contain that "+
		"information instead of guessing.", filename)
}

// formatPassages renders retrieval output as the tool result the model
// reads. Passages keep their ranked order.
func formatPassages(texts []string) string {
	if len(texts) == 0 {
		return noResultsMessage
	}
	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Document %d:\n%s", i+1, text)
	}
	return b.String()
}
