package analysis

import (
	"encoding/json"
	"time"

	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
)

// RecordID identifier type
type RecordID string

// Status enum
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Request is the outbound call to a cognitive service
type Request struct {
	TargetURL string
	Headers   map[string]string
	Body      []byte
}

// Record is one analyzed (or skipped) object, kept for auditing and retrieval
type Record struct {
	ID         RecordID        `json:"id"`
	ObjectName string          `json:"object_name"`
	ObjectSize int64           `json:"object_size"`
	Kind       blobs.Kind      `json:"kind"`
	Status     Status          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	ErrorKind  ErrorKind       `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Summary    string          `json:"summary,omitempty"`
	ResultURL  string          `json:"result_url,omitempty"`
	DurationMS int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at"`
}

// KindSummary is an aggregate row: how many records of a kind ended with a status
type KindSummary struct {
	Kind   blobs.Kind `json:"kind"`
	Status Status     `json:"status"`
	Count  int        `json:"count"`
}
