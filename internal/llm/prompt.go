package llm

import (
	"strings"

	"github.com/Raj-Randive/chatdocs/internal/model"
)

const systemInstruction = "Use the following pieces of context (or the previous conversation if needed) to answer the user's question in markdown format."

const separator = "\n----------------\n"

// BuildChatPrompt assembles the grounded prompt for one question. history
// must already be ordered oldest first.
func BuildChatPrompt(history []model.Message, passages []model.Passage, question string) Prompt {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\nIf you don't know the answer, just say that you don't know, don't try to make up an answer.\n")

	b.WriteString(separator)
	b.WriteString("\nPREVIOUS CONVERSATION:\n")
	for _, m := range history {
		if m.IsUserMessage {
			b.WriteString("User: ")
		} else {
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Text)
		b.WriteString("\n")
	}

	b.WriteString(separator)
	b.WriteString("\nCONTEXT:\n")
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	b.WriteString(strings.Join(texts, "\n\n"))

	b.WriteString("\n\nUSER INPUT: ")
	b.WriteString(question)

	return Prompt{System: systemInstruction, User: b.String()}
}
