package jobs

import "strings"

// InputPlaceholder is substituted with the record input in prompt templates.
const InputPlaceholder = "{input}"

// RenderPrompt builds the generate prompt from a function template. Every
// placeholder is replaced; a template without one gets the input appended
// after a blank line.
func RenderPrompt(template, input string) string {
	switch {
	case template == "":
		return input
	case strings.Contains(template, InputPlaceholder):
		return strings.ReplaceAll(template, InputPlaceholder, input)
	case input == "":
		return template
	default:
		return template + "\n\n" + input
	}
}
