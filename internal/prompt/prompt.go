// Package prompt compiles provider-agnostic instructions from source text,
// an output format and a tone.
package prompt

import (
	"errors"
	"strings"

	"github.com/recast/recast/internal/catalog"
)

// ErrEmptySource is returned when the source text is empty or whitespace-only.
var ErrEmptySource = errors.New("source text is empty")

// SystemPrompt is sent as the system role message with every instruction.
const SystemPrompt = "You are an expert content repurposing assistant. Create engaging, high-quality content " +
	"that maintains the core message while adapting it perfectly for the target format and tone."

// Compile builds the instruction for repurposing source into formatID at toneID.
// The output depends only on its inputs and the catalog; the source is embedded unmodified.
func Compile(source, formatID, toneID string) (string, error) {
	if strings.TrimSpace(source) == "" {
		return "", ErrEmptySource
	}

	format, err := catalog.LookupFormat(formatID)
	if err != nil {
		return "", err
	}
	tone, err := catalog.LookupTone(toneID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Please repurpose the following content into a ")
	b.WriteString(strings.ToLower(format.DisplayName))
	b.WriteString(".\n\nOriginal Content:\n")
	b.WriteString(source)
	b.WriteString("\n\nRequirements:\n")
	b.WriteString("- Format: " + format.Description + "\n")
	b.WriteString("- Tone: " + tone.DisplayName + " (" + tone.Description + ")\n")
	b.WriteString("- Max Length: " + format.MaxLength + "\n")
	b.WriteString("- Maintain the core message and key insights\n")
	b.WriteString("- Make it engaging and platform-appropriate\n")
	b.WriteString("- Include relevant calls-to-action where appropriate\n")

	if guidance := catalog.Guideline(formatID); guidance != "" {
		b.WriteString("\nAdditional Guidelines:\n")
		b.WriteString(guidance)
		b.WriteString("\n")
	}

	b.WriteString("\nPlease provide only the repurposed content, ready to use.")

	return b.String(), nil
}
