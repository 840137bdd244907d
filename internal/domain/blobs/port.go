package blobs

import "context"

// Reader port (interface untuk akses object storage)
type Reader interface {
	Download(ctx context.Context, name string) ([]byte, error)
	URLFor(name string) string
}

// ResultSink port, writes a serialized analysis next to the source object
type ResultSink interface {
	PutResult(ctx context.Context, name string, body []byte) (string, error)
}
