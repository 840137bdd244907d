package storage

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7/pkg/notification"

	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
)

// Event is the body MinIO (and S3 compatible stores) POST to a webhook target.
type Event struct {
	EventName string               `json:"EventName"`
	Key       string               `json:"Key"`
	Records   []notification.Event `json:"Records"`
}

// ParseEvent decodes a bucket notification body into the created objects it announces.
// Non-creation records and keys under resultsPrefix are dropped, object keys are URL-decoded.
func ParseEvent(body []byte, resultsPrefix string) ([]blobs.Object, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, err
	}
	out := make([]blobs.Object, 0, len(ev.Records))
	for _, rec := range ev.Records {
		if obj, ok := objectFromRecord(rec.EventName, rec.S3.Object.Key, rec.S3.Object.Size, resultsPrefix); ok {
			out = append(out, obj)
		}
	}
	return out, nil
}

// objectFromRecord is the filter shared by the webhook and the bucket listener.
func objectFromRecord(eventName, key string, size int64, resultsPrefix string) (blobs.Object, bool) {
	if !strings.HasPrefix(eventName, "s3:ObjectCreated:") && !strings.HasPrefix(eventName, "ObjectCreated:") {
		return blobs.Object{}, false
	}
	if k, err := url.QueryUnescape(key); err == nil {
		key = k
	}
	if key == "" || IsResultKey(resultsPrefix, key) {
		return blobs.Object{}, false
	}
	return blobs.Object{Name: key, Size: size}, true
}
