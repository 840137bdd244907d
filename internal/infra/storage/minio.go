package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/ubuntu/decorate"

	"github.com/bryanwahyu/blobsense/internal/config"
	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
)

type Store struct {
	client        *minio.Client
	bucketName    string
	region        string
	publicBase    string
	resultsPrefix string
}

var (
	_ blobs.Reader     = (*Store)(nil)
	_ blobs.ResultSink = (*Store)(nil)
)

// New buat koneksi MinIO and makes sure the watched bucket exists.
func New(ctx context.Context, cfg config.Storage) (s *Store, err error) {
	defer decorate.OnError(&err, "storage init")

	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, err
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, err
		}
	}

	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("%s/%s/", cli.EndpointURL().String(), cfg.BucketName)
	}

	return &Store{
		client:        cli,
		bucketName:    cfg.BucketName,
		region:        cfg.Region,
		publicBase:    base,
		resultsPrefix: cfg.ResultsPrefix,
	}, nil
}

// URLFor is the publicly addressable URL the vision service fetches the object from.
func (s *Store) URLFor(name string) string {
	return JoinURL(s.publicBase, name)
}

// JoinURL concatenates base and object name with exactly one slash between them.
func JoinURL(base, name string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(name, "/")
}

// Download reads the whole object into memory.
func (s *Store) Download(ctx context.Context, name string) (b []byte, err error) {
	defer decorate.OnError(&err, "download %s/%s", s.bucketName, name)

	obj, err := s.client.GetObject(ctx, s.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	return io.ReadAll(obj)
}

// PutResult writes a serialized analysis under the results prefix and returns its URL.
// It is a no-op returning "" when no results prefix is configured.
func (s *Store) PutResult(ctx context.Context, name string, body []byte) (u string, err error) {
	if s.resultsPrefix == "" {
		return "", nil
	}
	defer decorate.OnError(&err, "put result for %s", name)

	key, err := ResultKey(s.resultsPrefix, name)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", err
	}
	return JoinURL(s.publicBase, key), nil
}

// ErrUnsafeName is returned for object names that would resolve outside the results prefix.
var ErrUnsafeName = errors.New("object name contains a \"..\" segment")

// ResultKey is where the analysis of name is stored.
func ResultKey(prefix, name string) (string, error) {
	for _, seg := range strings.Split(name, "/") {
		if seg == ".." {
			return "", ErrUnsafeName
		}
	}
	return path.Join(prefix, name) + ".json", nil
}

// IsResultKey reports whether name lies under prefix, the folder results are written to.
// The match stops at a path segment: "results-2024.txt" is not under "results".
func IsResultKey(prefix, name string) bool {
	p := strings.Trim(prefix, "/")
	if p == "" {
		return false
	}
	return strings.HasPrefix(strings.TrimLeft(name, "/"), p+"/")
}

// Ping checks the bucket is reachable, used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return err
}

// Listen long-polls MinIO bucket notifications for created objects and calls fn for each.
// Objects under the results prefix are skipped so written results never re-trigger.
// It blocks until ctx is done, which returns nil, or until the stream gives up.
func (s *Store) Listen(ctx context.Context, logger *slog.Logger, fn func(context.Context, blobs.Object)) error {
	if logger == nil {
		logger = slog.Default()
	}
	var lastErr error
	events := []string{"s3:ObjectCreated:*"}
	for info := range s.client.ListenBucketNotification(ctx, s.bucketName, "", "", events) {
		if info.Err != nil {
			if ctx.Err() != nil {
				return nil
			}
			lastErr = info.Err
			logger.Error("bucket notification error", "bucket", s.bucketName, "error", info.Err)
			continue
		}
		for _, rec := range info.Records {
			obj, ok := objectFromRecord(rec.EventName, rec.S3.Object.Key, rec.S3.Object.Size, s.resultsPrefix)
			if !ok {
				continue
			}
			fn(ctx, obj)
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if lastErr == nil {
		lastErr = errors.New("notification stream closed")
	}
	return fmt.Errorf("listen on %s: %w", s.bucketName, lastErr)
}
