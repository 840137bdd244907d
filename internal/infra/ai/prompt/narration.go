package prompt

import (
    "fmt"
)

// maxResultChars bounds how much of a raw analysis is pasted into the prompt.
const maxResultChars = 6000

// GetSystemPrompt tells the model to write one short plain-text paragraph.
func GetSystemPrompt() string {
    return `You summarize machine analysis results of uploaded files for an operations dashboard.

Requirements:
- Answer with one plain-text paragraph of at most three sentences. No markdown, no lists, no code fences.
- For image results, describe what the picture shows using the captions and the most confident tags.
- For sentiment results, state the overall sentiment and the confidence scores.
- Never invent details that are not present in the result.`
}

// GetUserPrompt wraps one analysis result. Oversized results are truncated.
func GetUserPrompt(kind, objectName, result string) string {
    if len(result) > maxResultChars {
        result = result[:maxResultChars] + "..."
    }
    return fmt.Sprintf("File: %s\nAnalysis type: %s\nResult JSON:\n%s", objectName, kind, result)
}
