package analysis

import (
	"context"
	"encoding/json"
)

// ImageAnalyzer runs the vision feature extraction on an object reachable at imageURL.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, imageURL string) (json.RawMessage, error)
}

// TextAnalyzer runs sentiment analysis on a single English document.
type TextAnalyzer interface {
	AnalyzeSentiment(ctx context.Context, text string) (json.RawMessage, error)
}

// Endpointer is implemented by analyzers that can report the service they call.
type Endpointer interface {
	Endpoint() string
}

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id RecordID) (*Record, error)
	Latest(ctx context.Context, limit int) ([]*Record, error)
	Summary(ctx context.Context, sinceDays int) ([]KindSummary, error)
}
