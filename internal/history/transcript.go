package history

import (
	"fmt"
	"strings"
)

// Transcript renders stored turns into the prompt's history block. Stores
// return newest-first; the transcript numbers oldest-first, so
// "Conversation 1" is always the earliest turn in the window. Empty input
// renders as an empty string.
func Transcript(turns []Turn) string {
	if len(turns) == 0 {
		return ""
	}

	var sb strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		turn := turns[i]
		n := len(turns) - i
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Conversation %d:\nHuman: %s\nAssistant: %s", n, turn.Question, turn.Answer)
	}
	return sb.String()
}
