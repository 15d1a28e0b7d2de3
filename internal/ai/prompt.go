package ai

import (
	"fmt"
	"strings"
)

// BuildReplyPrompt renders the single user message sent to the model.
// The model may only answer from contextText and must reply in one sentence.
func BuildReplyPrompt(businessName, comment, contextText string) string {
	if businessName == "" {
		businessName = "our business"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a friendly customer support agent for %s.\n", businessName)
	b.WriteString("Rules:\n")
	b.WriteString("- Answer ONLY using the provided context.\n")
	b.WriteString("- If the answer isn't in the context, be polite but do not invent details, use few words from context if possible.\n")
	b.WriteString("- Return EXACTLY ONE sentence.\n")
	fmt.Fprintf(&b, "- User Comment: %q\n", comment)
	fmt.Fprintf(&b, "- Context: %q\n", contextText)
	return b.String()
}
