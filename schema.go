package taskspec

import (
	"encoding/json"
	"strings"

	"github.com/zoobzio/sentinel"
)

// jsonSchemaFor creates a JSON Schema from a Go type using sentinel.
// Structured steps (decomposition, verdicts, phase extraction) embed the
// schema in their prompts so responses parse reliably.
func jsonSchemaFor[T any]() string {
	metadata := sentinel.Inspect[T]()

	schema := map[string]any{
		"type":                 "object",
		"properties":           schemaProperties(metadata.Fields),
		"required":             schemaRequired(metadata.Fields),
		"additionalProperties": false,
	}

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(jsonBytes)
}

func schemaProperties(fields []sentinel.FieldMetadata) map[string]any {
	properties := make(map[string]any)
	for _, field := range fields {
		name := jsonFieldName(field)
		if name == "-" {
			continue
		}
		prop := map[string]any{"type": jsonTypeFor(field.Type)}
		if desc, ok := field.Tags["desc"]; ok {
			prop["description"] = desc
		}
		properties[name] = prop
	}
	return properties
}

func schemaRequired(fields []sentinel.FieldMetadata) []string {
	var required []string
	for _, field := range fields {
		name := jsonFieldName(field)
		if name == "-" {
			continue
		}
		if jsonTag, ok := field.Tags["json"]; ok && strings.Contains(jsonTag, "omitempty") {
			continue
		}
		required = append(required, name)
	}
	return required
}

func jsonFieldName(field sentinel.FieldMetadata) string {
	if jsonTag, ok := field.Tags["json"]; ok {
		parts := strings.Split(jsonTag, ",")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}
	return strings.ToLower(field.Name[:1]) + field.Name[1:]
}

func jsonTypeFor(goType string) string {
	switch {
	case strings.HasPrefix(goType, "string"):
		return "string"
	case strings.HasPrefix(goType, "int"), strings.HasPrefix(goType, "uint"):
		return "integer"
	case strings.HasPrefix(goType, "float"):
		return "number"
	case strings.HasPrefix(goType, "bool"):
		return "boolean"
	case strings.HasPrefix(goType, "[]"):
		return "array"
	case strings.HasPrefix(goType, "map["):
		return "object"
	default:
		return "object"
	}
}
