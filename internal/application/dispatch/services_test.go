package dispatch_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/blobsense/internal/application/dispatch"
	"github.com/bryanwahyu/blobsense/internal/config"
	"github.com/bryanwahyu/blobsense/internal/domain/analysis"
	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
	"github.com/bryanwahyu/blobsense/internal/infra/cognitive"
	"github.com/bryanwahyu/blobsense/internal/infra/storage"
)

const testBase = "https://dtmluitstorage.blob.core.windows.net/luit-container/"

type fakeBlobs struct {
	content map[string][]byte
	err     error
}

func (f *fakeBlobs) Download(_ context.Context, name string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.content[name]
	if !ok {
		return nil, errors.New("object not found")
	}
	return b, nil
}

func (f *fakeBlobs) URLFor(name string) string { return storage.JoinURL(testBase, name) }

type fakeImages struct {
	mu    sync.Mutex
	urls  []string
	res   json.RawMessage
	err   error
	panic bool
}

func (f *fakeImages) AnalyzeImage(_ context.Context, u string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, u)
	if f.panic {
		panic("nil map write")
	}
	return f.res, f.err
}

type fakeTexts struct {
	mu    sync.Mutex
	texts []string
	res   json.RawMessage
	err   error
}

func (f *fakeTexts) AnalyzeSentiment(_ context.Context, text string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return f.res, f.err
}

type fakeRepo struct {
	saved   []*analysis.Record
	summary []analysis.KindSummary
	err     error
}

func (f *fakeRepo) Save(_ context.Context, r *analysis.Record) error {
	f.saved = append(f.saved, r)
	return f.err
}

func (f *fakeRepo) Get(_ context.Context, id analysis.RecordID) (*analysis.Record, error) {
	for _, r := range f.saved {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeRepo) Latest(_ context.Context, _ int) ([]*analysis.Record, error) { return f.saved, nil }

func (f *fakeRepo) Summary(_ context.Context, _ int) ([]analysis.KindSummary, error) {
	return f.summary, f.err
}

type fakeSink struct {
	names  []string
	bodies [][]byte
	err    error
}

func (f *fakeSink) PutResult(_ context.Context, name string, body []byte) (string, error) {
	f.names = append(f.names, name)
	f.bodies = append(f.bodies, body)
	if f.err != nil {
		return "", f.err
	}
	return testBase + "results/" + name + ".json", nil
}

type fakeNarrator struct {
	summary string
	err     error
}

func (f fakeNarrator) Narrate(context.Context, string, string, json.RawMessage) (string, error) {
	return f.summary, f.err
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type logEntry struct {
	Level     string `json:"level"`
	Msg       string `json:"msg"`
	ErrorKind string `json:"error_kind"`
}

func newLogger(t *testing.T) (*slog.Logger, func() []logEntry) {
	t.Helper()

	var buf bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l, func() []logEntry {
		var out []logEntry
		sc := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
		for sc.Scan() {
			var e logEntry
			require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
			out = append(out, e)
		}
		return out
	}
}

func levelOf(entries []logEntry, msg string) string {
	for _, e := range entries {
		if e.Msg == msg {
			return e.Level
		}
	}
	return ""
}

func countLevel(entries []logEntry, level string) int {
	n := 0
	for _, e := range entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

func TestHandleRoutesBySuffix(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		name string

		wantImages   int
		wantTexts    int
		wantWarnings int
		wantStatus   analysis.Status
	}{
		"jpg goes to image analysis":  {name: "photo.jpg", wantImages: 1, wantStatus: analysis.StatusSuccess},
		"png goes to image analysis":  {name: "shots/screen.png", wantImages: 1, wantStatus: analysis.StatusSuccess},
		"txt goes to text analysis":   {name: "review.txt", wantTexts: 1, wantStatus: analysis.StatusSuccess},
		"zip is skipped with warning": {name: "archive.zip", wantWarnings: 1, wantStatus: analysis.StatusSkipped},
		"uppercase is skipped":        {name: "PHOTO.JPG", wantWarnings: 1, wantStatus: analysis.StatusSkipped},
		"no suffix is skipped":        {name: "Makefile", wantWarnings: 1, wantStatus: analysis.StatusSkipped},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			logger, entries := newLogger(t)
			images := &fakeImages{res: json.RawMessage(`{"tags":[]}`)}
			texts := &fakeTexts{res: json.RawMessage(`{"documents":[]}`)}
			svc := &dispatch.Service{
				Blobs:  &fakeBlobs{content: map[string][]byte{"review.txt": []byte("great")}},
				Images: images,
				Texts:  texts,
				Logger: logger,
			}

			out := svc.Handle(context.Background(), blobs.Object{Name: tc.name, Size: 10})

			assert.Equal(t, tc.wantStatus, out.Status)
			assert.Len(t, images.urls, tc.wantImages)
			assert.Len(t, texts.texts, tc.wantTexts)
			assert.Equal(t, tc.wantWarnings, countLevel(entries(), "WARN"))
			assert.Zero(t, countLevel(entries(), "ERROR"))
		})
	}
}

func TestHandleUnsupportedLogsExactlyOneWarning(t *testing.T) {
	t.Parallel()

	logger, entries := newLogger(t)
	images, texts := &fakeImages{}, &fakeTexts{}
	svc := &dispatch.Service{Blobs: &fakeBlobs{}, Images: images, Texts: texts, Logger: logger}

	out := svc.Handle(context.Background(), blobs.Object{Name: "archive.zip", Size: 4096})

	assert.Equal(t, analysis.ErrorKindUnsupported, out.ErrorKind)
	assert.Empty(t, images.urls)
	assert.Empty(t, texts.texts)

	var warnings []logEntry
	for _, e := range entries() {
		if e.Level == "WARN" {
			warnings = append(warnings, e)
		}
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, "Unsupported file type for blob: archive.zip", warnings[0].Msg)
	assert.Equal(t, "Processing blob: archive.zip, Size: 4096 bytes", entries()[0].Msg)
}

// The next tests wire the real cognitive adapters against fake remote services.

func TestHandleImageBuildsPublicURLRequest(t *testing.T) {
	t.Parallel()

	var gotPath, gotFeatures, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotPath, gotFeatures, gotBody = r.URL.Path, r.URL.Query().Get("visualFeatures"), string(b)
		_, _ = w.Write([]byte(`{"description":{"captions":[{"text":"a cat"}]}}`))
	}))
	defer srv.Close()

	logger, entries := newLogger(t)
	client := cognitive.NewClient(time.Second, 0)
	svc := &dispatch.Service{
		Blobs:  &fakeBlobs{},
		Images: cognitive.NewVision(config.Service{Endpoint: srv.URL + "/", Key: "k"}, client),
		Logger: logger,
	}

	out := svc.Handle(context.Background(), blobs.Object{Name: "photo.jpg", Size: 1})

	require.Equal(t, analysis.StatusSuccess, out.Status, out.Error)
	assert.Equal(t, "/vision/v3.2/analyze", gotPath)
	assert.Equal(t, "Categories,Description,Tags", gotFeatures)
	assert.Equal(t, `{"url":"`+testBase+`photo.jpg"}`, gotBody)
	assert.JSONEq(t, `{"description":{"captions":[{"text":"a cat"}]}}`, string(out.Result))

	assert.Equal(t, "INFO", levelOf(entries(), "Computer Vision Endpoint: "+srv.URL))
	assert.Equal(t, "INFO", levelOf(entries(), "Image URL: "+testBase+"photo.jpg"))
	assert.Equal(t, "INFO", levelOf(entries(), "Image analysis result"))
}

func TestHandleTextSendsDownloadedContent(t *testing.T) {
	t.Parallel()

	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"documents":[{"id":"1","sentiment":"positive"}]}`))
	}))
	defer srv.Close()

	logger, entries := newLogger(t)
	svc := &dispatch.Service{
		Blobs:  &fakeBlobs{content: map[string][]byte{"review.txt": []byte("I love this product")}},
		Texts:  cognitive.NewSentiment(config.Service{Endpoint: srv.URL, Key: "k"}, cognitive.NewClient(time.Second, 0)),
		Logger: logger,
	}

	out := svc.Handle(context.Background(), blobs.Object{Name: "review.txt", Size: 19})

	require.Equal(t, analysis.StatusSuccess, out.Status, out.Error)
	assert.Equal(t, `{"documents":[{"id":"1","language":"en","text":"I love this product"}]}`, gotBody)

	assert.Equal(t, "INFO", levelOf(entries(), "Text Analytics Endpoint: "+srv.URL))
	assert.Equal(t, "DEBUG", levelOf(entries(), "Blob content: I love this product"))
	assert.Equal(t, "INFO", levelOf(entries(), "Text analysis result"))
}

func TestHandleFailuresAreLoggedNotPropagated(t *testing.T) {
	t.Parallel()

	rejecting := func(t *testing.T) string {
		t.Helper()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, `{"error":{"code":"InvalidImageUrl"}}`, http.StatusBadRequest)
		}))
		t.Cleanup(srv.Close)
		return srv.URL
	}
	refusing := func(t *testing.T) string {
		t.Helper()
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := l.Addr().String()
		require.NoError(t, l.Close())
		return "http://" + addr
	}

	tests := map[string]struct {
		object   string
		endpoint func(t *testing.T) string
		key      string
		blobs    *fakeBlobs

		wantKind analysis.ErrorKind
		wantMsg  string
	}{
		"Image rejected by remote": {
			object: "photo.png", endpoint: rejecting, key: "k",
			wantKind: analysis.ErrorKindRemoteRejected, wantMsg: "HTTP error occurred while processing image",
		},
		"Text rejected by remote": {
			object: "review.txt", endpoint: rejecting, key: "k",
			wantKind: analysis.ErrorKindRemoteRejected, wantMsg: "HTTP error occurred while processing text",
		},
		"Image connection refused": {
			object: "photo.jpg", endpoint: refusing, key: "k",
			wantKind: analysis.ErrorKindTransport, wantMsg: "Unexpected error occurred",
		},
		"Text connection refused": {
			object: "review.txt", endpoint: refusing, key: "k",
			wantKind: analysis.ErrorKindTransport, wantMsg: "Unexpected error occurred",
		},
		"Missing key": {
			object: "photo.jpg", endpoint: rejecting,
			wantKind: analysis.ErrorKindConfigurationMissing, wantMsg: "Unexpected error occurred",
		},
		"Binary text object": {
			object: "review.txt", endpoint: rejecting, key: "k",
			blobs:    &fakeBlobs{content: map[string][]byte{"review.txt": {0xff, 0xfe, 0x00, 0x01}}},
			wantKind: analysis.ErrorKindDecode, wantMsg: "Unexpected error occurred",
		},
		"Download failure": {
			object: "review.txt", endpoint: rejecting, key: "k",
			blobs:    &fakeBlobs{err: errors.New("connection reset by peer")},
			wantKind: analysis.ErrorKindTransport, wantMsg: "Unexpected error occurred",
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			logger, entries := newLogger(t)
			svc := &dispatch.Service{Logger: logger}
			svc.Blobs = &fakeBlobs{content: map[string][]byte{"review.txt": []byte("meh")}}
			if tc.blobs != nil {
				svc.Blobs = tc.blobs
			}
			cs := config.Service{Endpoint: tc.endpoint(t), Key: tc.key}
			client := cognitive.NewClient(2*time.Second, 0)
			svc.Images = cognitive.NewVision(cs, client)
			svc.Texts = cognitive.NewSentiment(cs, client)

			var out dispatch.Outcome
			require.NotPanics(t, func() {
				out = svc.Handle(context.Background(), blobs.Object{Name: tc.object})
			})

			assert.Equal(t, analysis.StatusFailed, out.Status)
			assert.Equal(t, tc.wantKind, out.ErrorKind, out.Error)

			var errs []logEntry
			for _, e := range entries() {
				if e.Level == "ERROR" {
					errs = append(errs, e)
				}
			}
			require.Len(t, errs, 1)
			assert.True(t, strings.HasPrefix(errs[0].Msg, tc.wantMsg), "got %q", errs[0].Msg)
			assert.Equal(t, string(tc.wantKind), errs[0].ErrorKind)
		})
	}
}

func TestHandleRecoversFromAnalyzerPanic(t *testing.T) {
	t.Parallel()

	logger, entries := newLogger(t)
	svc := &dispatch.Service{Blobs: &fakeBlobs{}, Images: &fakeImages{panic: true}, Logger: logger}

	var out dispatch.Outcome
	require.NotPanics(t, func() { out = svc.Handle(context.Background(), blobs.Object{Name: "photo.jpg"}) })

	assert.Equal(t, analysis.StatusFailed, out.Status)
	assert.Equal(t, analysis.ErrorKindUnexpected, out.ErrorKind)
	assert.Equal(t, 1, countLevel(entries(), "ERROR"))
}

func TestHandleMissingAnalyzer(t *testing.T) {
	t.Parallel()

	svc := &dispatch.Service{Blobs: &fakeBlobs{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	assert.Equal(t, analysis.ErrorKindConfigurationMissing, svc.Handle(context.Background(), blobs.Object{Name: "a.jpg"}).ErrorKind)
	assert.Equal(t, analysis.ErrorKindConfigurationMissing, svc.Handle(context.Background(), blobs.Object{Name: "a.txt"}).ErrorKind)
}

func TestHandleRecordsResults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

	tests := map[string]struct {
		object   string
		images   *fakeImages
		sinkErr  error
		repoErr  error
		narrator *fakeNarrator

		wantStatus   analysis.Status
		wantSummary  string
		wantResult   bool
		wantWarnings int
		wantRecords  int
	}{
		"Success is narrated, written and saved": {
			object: "photo.jpg", images: &fakeImages{res: json.RawMessage(`{"tags":[{"name":"cat"}]}`)},
			narrator:   &fakeNarrator{summary: "A cat on a sofa."},
			wantStatus: analysis.StatusSuccess, wantSummary: "A cat on a sofa.", wantResult: true, wantRecords: 1,
		},
		"Failure is saved without narration": {
			object: "photo.jpg", images: &fakeImages{err: &analysis.RemoteError{StatusCode: 403}},
			narrator:   &fakeNarrator{summary: "never"},
			wantStatus: analysis.StatusFailed, wantResult: true, wantRecords: 1,
		},
		"Unsupported objects are not recorded": {
			object: "archive.zip", images: &fakeImages{},
			wantStatus: analysis.StatusSkipped, wantWarnings: 1,
		},
		"Narration, sink and repo failures only warn": {
			object: "photo.jpg", images: &fakeImages{res: json.RawMessage(`{}`)},
			narrator: &fakeNarrator{err: errors.New("quota")}, sinkErr: errors.New("bucket gone"), repoErr: errors.New("db down"),
			wantStatus: analysis.StatusSuccess, wantWarnings: 3, wantRecords: 1,
		},
	}

	for name, tc := range tests {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			logger, entries := newLogger(t)
			repo := &fakeRepo{err: tc.repoErr}
			sink := &fakeSink{err: tc.sinkErr}
			svc := &dispatch.Service{
				Blobs: &fakeBlobs{}, Images: tc.images,
				Repo: repo, Sink: sink,
				Clock: fixedClock{now}, Logger: logger,
			}
			if tc.narrator != nil {
				svc.Narrator = *tc.narrator
			}

			out := svc.Handle(context.Background(), blobs.Object{Name: tc.object, Size: 42})

			assert.Equal(t, tc.wantStatus, out.Status)
			assert.Equal(t, tc.wantWarnings, countLevel(entries(), "WARN"))
			require.Len(t, repo.saved, tc.wantRecords)
			if tc.wantRecords == 0 {
				assert.Empty(t, sink.names)
				assert.Empty(t, out.ID)
				return
			}

			rec := repo.saved[0]
			assert.Equal(t, out.ID, rec.ID)
			assert.NotEmpty(t, rec.ID)
			assert.Equal(t, tc.object, rec.ObjectName)
			assert.Equal(t, int64(42), rec.ObjectSize)
			assert.Equal(t, tc.wantStatus, rec.Status)
			assert.Equal(t, now, rec.CreatedAt)
			assert.Equal(t, tc.wantSummary, rec.Summary)
			assert.Equal(t, []string{tc.object}, sink.names)
			if tc.wantResult {
				assert.Equal(t, testBase+"results/"+tc.object+".json", rec.ResultURL)
				assert.Equal(t, rec.ResultURL, out.ResultURL)

				var written analysis.Record
				require.NoError(t, json.Unmarshal(sink.bodies[0], &written))
				assert.Equal(t, rec.ID, written.ID)
			}
		})
	}
}

func TestHandleMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := dispatch.NewMetrics(reg)
	require.NoError(t, err)

	svc := &dispatch.Service{
		Blobs:   &fakeBlobs{content: map[string][]byte{"bad.txt": {0xff}}},
		Images:  &fakeImages{res: json.RawMessage(`{}`)},
		Texts:   &fakeTexts{res: json.RawMessage(`{}`)},
		Metrics: m,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	outs := svc.HandleAll(context.Background(), []blobs.Object{
		{Name: "a.jpg"}, {Name: "b.png"}, {Name: "bad.txt"}, {Name: "c.zip"},
	})
	require.Len(t, outs, 4)

	assert.InDelta(t, 2, testutil.ToFloat64(m.Dispatched("image", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Dispatched("text", "decode_failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Dispatched("unsupported", "unsupported")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "blobsense_analyzer_duration_seconds"), "one latency series per analyzed kind")
}

func TestNewMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := dispatch.NewMetrics(reg)
	require.NoError(t, err)
	_, err = dispatch.NewMetrics(reg)
	require.Error(t, err)
}

func TestQueries(t *testing.T) {
	t.Parallel()

	empty := &dispatch.Service{}
	_, err := empty.Latest(context.Background(), 10)
	require.ErrorIs(t, err, dispatch.ErrNoRepository)
	_, err = empty.Get(context.Background(), "x")
	require.ErrorIs(t, err, dispatch.ErrNoRepository)
	_, err = empty.Summary(context.Background(), 7)
	require.ErrorIs(t, err, dispatch.ErrNoRepository)

	svc := &dispatch.Service{Repo: &fakeRepo{summary: []analysis.KindSummary{
		{Kind: blobs.KindImage, Status: analysis.StatusSuccess, Count: 3},
		{Kind: blobs.KindImage, Status: analysis.StatusFailed, Count: 1},
		{Kind: blobs.KindText, Status: analysis.StatusSuccess, Count: 2},
	}}}
	got, err := svc.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 6, got["total"])
	assert.Equal(t, map[string]map[string]int{
		"image": {"success": 3, "failed": 1},
		"text":  {"success": 2},
	}, got["by_kind"])
}
