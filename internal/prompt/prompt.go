// Package prompt deterministically assembles the ordered message list
// submitted to the typed LLM client from a session's state and its
// configured tool schema (C5), grounded on the original's prompt.rs
// default system-message template.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Shahroz/reels-ai-sub002/internal/llm"
	"github.com/Shahroz/reels-ai-sub002/internal/session"
	"github.com/Shahroz/reels-ai-sub002/internal/tools"
)

// ErrEmptyHistory is returned when building a prompt for a session with
// no conversation history yet.
var ErrEmptyHistory = errors.New("prompt: session history is empty")

const toolCallContract = `When you need to use a tool, include it in "actions" as {"tool": "<name>", "parameters": { ... }}.`

const isFinalRule = `Set "is_final" to true only on the turn that contains your final answer to the user.`

const noToolsSentence = "(No tools are currently configured for your use in this session.)"

// BuildLLMPrompt implements spec.md §4.5's exact ordering: one system
// message (verbatim session.SystemMessage or the default template), an
// optional research-goal system message, then one message per history
// entry mapped by sender.
func BuildLLMPrompt(data *session.Data, schema *tools.AggregatedSchema) ([]llm.Message, error) {
	if len(data.History) == 0 {
		return nil, ErrEmptyHistory
	}

	messages := make([]llm.Message, 0, len(data.History)+2)
	messages = append(messages, llm.Message{Role: "system", Content: systemMessage(data, schema)})

	if data.ResearchGoal != nil && *data.ResearchGoal != "" {
		messages = append(messages, llm.Message{Role: "system", Content: fmt.Sprintf("Current Research Goal: %s", *data.ResearchGoal)})
	}

	for _, entry := range data.History {
		messages = append(messages, entryToMessage(entry))
	}

	return messages, nil
}

func systemMessage(data *session.Data, schema *tools.AggregatedSchema) string {
	if data.SystemMessage != nil && *data.SystemMessage != "" {
		return *data.SystemMessage
	}

	var sb strings.Builder
	if data.ResearchGoal != nil && *data.ResearchGoal != "" {
		sb.WriteString("Deep Research Mode: you are conducting open-ended research toward a stated goal, using any configured tools as needed.\n\n")
	} else {
		sb.WriteString("Conversation Mode: you are holding a direct conversation with the user.\n\n")
	}

	if rendered := schema.Render(); rendered != "" {
		sb.WriteString(rendered)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString(noToolsSentence)
		sb.WriteString("\n\n")
	}

	sb.WriteString(toolCallContract)
	sb.WriteString("\n")
	sb.WriteString(isFinalRule)

	return sb.String()
}

func entryToMessage(entry session.ConversationEntry) llm.Message {
	switch entry.Sender {
	case session.SenderUser:
		return llm.Message{Role: "user", Content: entry.Message}
	case session.SenderAgent:
		content := entry.Message
		if len(entry.Tools) > 0 {
			var sb strings.Builder
			sb.WriteString(content)
			for _, tc := range entry.Tools {
				sb.WriteString("\n")
				sb.WriteString(renderToolCall(tc))
			}
			content = sb.String()
		}
		return llm.Message{Role: "assistant", Content: content}
	case session.SenderTool:
		return llm.Message{Role: "system", Content: "*Tool Result:* " + entry.Message}
	case session.SenderSystem:
		return llm.Message{Role: "system", Content: entry.Message}
	case session.SenderAssistant:
		return llm.Message{Role: "assistant", Content: entry.Message}
	default:
		return llm.Message{Role: "system", Content: entry.Message}
	}
}

func renderToolCall(tc session.ToolChoice) string {
	params := "{}"
	if len(tc.Parameters) > 0 {
		params = string(tc.Parameters)
	}
	return fmt.Sprintf(`Tool call: {"tool": %q, "parameters": %s}`, tc.Name, params)
}

// Flatten concatenates messages into the flat "{role}: {content}" shape
// C8 (the turn processor) submits to the typed LLM client, per spec.md
// §4.8 step 2.
func Flatten(messages []llm.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
	return strings.Join(lines, "\n")
}
