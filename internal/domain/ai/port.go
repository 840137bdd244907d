package ai

import (
	"context"
	"encoding/json"
)

// Narrator turns a raw cognitive-service result into a short human readable note.
type Narrator interface {
	Narrate(ctx context.Context, kind, objectName string, result json.RawMessage) (string, error)
}
