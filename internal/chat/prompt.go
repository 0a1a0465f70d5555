package chat

import "strings"

// PromptHistoryLines is how many trailing history lines go into a prompt.
const PromptHistoryLines = 3

// Section tags the model is asked to emit.
const (
	TagThinking      = "[THINKING]"
	TagThinkingClose = "[/THINKING]"
	TagResponse      = "[RESPONSE]"
)

const promptHeader = "Format your response with these EXACT sections:\n" +
	TagThinking + "\n" +
	"Internal analysis and reasoning\n" +
	TagThinkingClose + "\n" +
	TagResponse + "\n" +
	"Final answer for the user\n\n"

const promptFooter = "First analyze the message in " + TagThinking + ", then write " + TagResponse + "."

// BuildPrompt renders the structured-output prompt from the last
// PromptHistoryLines of history and the new message.
func BuildPrompt(history []string, message string) string {
	if len(history) > PromptHistoryLines {
		history = history[len(history)-PromptHistoryLines:]
	}

	var sb strings.Builder
	sb.WriteString(promptHeader)
	sb.WriteString("Conversation history:\n")
	sb.WriteString(strings.Join(history, "\n"))
	sb.WriteString("\n")
	sb.WriteString("New message: ")
	sb.WriteString(message)
	sb.WriteString("\n")
	sb.WriteString(promptFooter)
	return sb.String()
}
