package engine

import (
	"encoding/json"
	"fmt"
	"strings"
)

// systemPrompt frames every extraction call.
const systemPrompt = `You are a precise data extraction engine. Extract structured data from the provided document. Respond with a single JSON object conforming to the provided JSON Schema. Use null for fields whose values are not present in the document. Never invent values.`

// extractionPrompt builds the user message for one extraction call.
// contextData carries already-extracted values deeper passes may reference;
// nil means no context.
func extractionPrompt(document string, schemaJSON []byte, contextData map[string]any) string {
	var b strings.Builder

	b.WriteString("Extract data from the document below so the result conforms to this JSON Schema:\n\n")
	b.WriteString(string(schemaJSON))
	b.WriteString("\n\n")

	if len(contextData) > 0 {
		ctxJSON, err := json.Marshal(contextData)
		if err == nil {
			b.WriteString("Already-extracted values (use these to resolve references, do not re-extract them):\n")
			b.Write(ctxJSON)
			b.WriteString("\n\n")
		}
	}

	b.WriteString("Document:\n\"\"\"\n")
	b.WriteString(document)
	b.WriteString("\n\"\"\"\n\nReturn ONLY the JSON object, no commentary.")

	return b.String()
}

// correctivePrompt asks the model to fix a malformed previous response.
func correctivePrompt(schemaJSON []byte, lastOutput string, issue error) string {
	return fmt.Sprintf(`Your previous response was not valid. %v

Return ONLY a single valid JSON object conforming to this schema, with no markdown fences and no commentary:

%s

Previous response:
%s`, issue, string(schemaJSON), truncate(lastOutput, 8000))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "\n...[truncated]"
}
