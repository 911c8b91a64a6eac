package common

import "strings"

const defaultToolName = "structured_output"

// ToolName is the function name a structured request is exposed under. It
// uses the schema's "title" keyword when present.
func ToolName(schema map[string]any) string {
	if name, ok := schema["title"].(string); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	return defaultToolName
}

func ToolDescription(schema map[string]any) string {
	if desc, ok := schema["description"].(string); ok {
		return desc
	}
	return "Return the extracted fields."
}

// ToolParameters strips the annotation keywords that some providers reject
// inside a function parameter schema.
func ToolParameters(schema map[string]any) map[string]any {
	out := make(map[string]any, len(schema))
	for k, v := range schema {
		if k == "title" || k == "description" {
			continue
		}
		out[k] = v
	}
	if _, ok := out["type"]; !ok {
		out["type"] = "object"
	}
	return out
}

// RequiredFields reads the "required" list whether it was built in Go or
// decoded from JSON.
func RequiredFields(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
