package ollama

import (
	"encoding/json"
)

// buildStructuredPrompt restates the schema in the prompt; smaller local
// models follow the inline instruction more reliably than format alone.
func buildStructuredPrompt(prompt string, schema map[string]any) string {
	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return prompt
	}
	return prompt + "\n\nRespond only with a JSON object matching this schema:\n" + string(raw)
}
