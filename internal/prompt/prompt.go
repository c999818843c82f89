// Package prompt assembles the bounded generation prompt from retrieved
// chunks, recent conversation turns, and a fixed instruction header. The
// assembled string is a textual contract with the generative model, not
// executable logic.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/knowledged/internal/search"
)

// DefaultHistoryWindow is the number of recent conversation messages included
// in the prompt (three user/assistant exchanges).
const DefaultHistoryWindow = 6

// Role identifies a conversation message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one ephemeral conversation turn. Messages are owned by the
// session; the core only reads a bounded recent window and never persists
// them.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// header is fixed across all calls. It instructs the model to answer only
// from supplied context, admit insufficiency, cite bracketed source indexes,
// and stay conversational.
const header = `You are a knowledge assistant that answers questions based on the user's knowledge base. You have access to the user's uploaded documents, texts, and web content.

INSTRUCTIONS:
1. Answer the user's question using ONLY the information provided in the context below
2. Be accurate and specific - don't make up information not in the context
3. If the context doesn't contain enough information to answer fully, say so
4. Cite which sources you're using when relevant
5. Be conversational and helpful
6. Consider the conversation history for context`

// Builder assembles generation prompts with a configurable history window.
type Builder struct {
	historyWindow int
}

// NewBuilder creates a Builder. A historyWindow of 0 means
// DefaultHistoryWindow.
func NewBuilder(historyWindow int) *Builder {
	if historyWindow <= 0 {
		historyWindow = DefaultHistoryWindow
	}
	return &Builder{historyWindow: historyWindow}
}

// Build assembles the prompt in fixed order: instruction header, recent
// history as "Role: content" lines, each match as "[Source N]: content" in
// ranking order (N is the 1-based rank, not a stable chunk id), and the
// literal user question.
func (b *Builder) Build(query string, matches []search.Match, history []Message) string {
	var sb strings.Builder

	sb.WriteString(header)
	sb.WriteString("\n\nCONVERSATION HISTORY:\n")
	sb.WriteString(b.renderHistory(history))
	sb.WriteString("\n\nCONTEXT FROM KNOWLEDGE BASE:\n")
	sb.WriteString(renderContext(matches))
	sb.WriteString("\n\nUSER QUESTION: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRESPONSE:")

	return sb.String()
}

// renderHistory renders the last historyWindow messages, oldest first.
func (b *Builder) renderHistory(history []Message) string {
	if len(history) > b.historyWindow {
		history = history[len(history)-b.historyWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		role := "Assistant"
		if msg.Role == RoleUser {
			role = "User"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	return strings.Join(lines, "\n")
}

func renderContext(matches []search.Match) string {
	blocks := make([]string, 0, len(matches))
	for i, m := range matches {
		blocks = append(blocks, fmt.Sprintf("[Source %d]: %s", i+1, m.Record.Content))
	}
	return strings.Join(blocks, "\n\n")
}
