package gemini

import (
	"strings"

	"google.golang.org/genai"
)

// convertSchema maps a JSON schema held in a map onto genai.Schema. Unknown
// keywords are ignored.
func convertSchema(in map[string]any) *genai.Schema {
	if len(in) == 0 {
		return nil
	}
	out := &genai.Schema{}
	if t, ok := in["type"].(string); ok {
		switch strings.ToLower(t) {
		case "object":
			out.Type = genai.TypeObject
		case "array":
			out.Type = genai.TypeArray
		case "string":
			out.Type = genai.TypeString
		case "number":
			out.Type = genai.TypeNumber
		case "integer":
			out.Type = genai.TypeInteger
		case "boolean":
			out.Type = genai.TypeBoolean
		}
	}
	if desc, ok := in["description"].(string); ok {
		out.Description = desc
	}
	switch req := in["required"].(type) {
	case []string:
		out.Required = req
	case []any:
		for _, v := range req {
			if s, ok := v.(string); ok {
				out.Required = append(out.Required, s)
			}
		}
	}
	if items, ok := in["items"].(map[string]any); ok {
		out.Items = convertSchema(items)
	}
	if props, ok := in["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				out.Properties[name] = convertSchema(prop)
			}
		}
	}
	return out
}
