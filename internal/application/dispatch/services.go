package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/blobsense/internal/domain/ai"
	"github.com/bryanwahyu/blobsense/internal/domain/analysis"
	"github.com/bryanwahyu/blobsense/internal/domain/blobs"
)

// Service routes newly created objects to the matching analyzer.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Blobs  blobs.Reader
	Images analysis.ImageAnalyzer
	Texts  analysis.TextAnalyzer

	// Optional collaborators, nil disables them.
	Repo     analysis.Repository
	Sink     blobs.ResultSink
	Narrator ai.Narrator
	Metrics  *Metrics

	Clock  Clock
	Logger *slog.Logger
}

// Clock abstraction supaya gampang ditest
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Outcome is what happened to one object. Handle reports failures here instead of returning them.
type Outcome struct {
	ID         analysis.RecordID  `json:"id,omitempty"`
	Object     string             `json:"object"`
	Kind       blobs.Kind         `json:"kind"`
	Status     analysis.Status    `json:"status"`
	ErrorKind  analysis.ErrorKind `json:"error_kind,omitempty"`
	Error      string             `json:"error,omitempty"`
	Result     json.RawMessage    `json:"result,omitempty"`
	ResultURL  string             `json:"result_url,omitempty"`
	DurationMS int64              `json:"duration_ms"`
}

// Analyzed reports whether an analyzer was invoked for the object.
func (o Outcome) Analyzed() bool { return o.Kind == blobs.KindImage || o.Kind == blobs.KindText }

func (o Outcome) label() string {
	if o.ErrorKind != analysis.ErrorKindNone {
		return string(o.ErrorKind)
	}
	return string(o.Status)
}

//
// ==== USE CASES ====
//

// Handle classifies obj by suffix and runs at most one analyzer on it.
// It never returns an error and never panics: every failure ends up logged and in the Outcome.
func (s *Service) Handle(ctx context.Context, obj blobs.Object) (out Outcome) {
	log := s.logger().With("blob", obj.Name)
	log.Info(fmt.Sprintf("Processing blob: %s, Size: %d bytes", obj.Name, obj.Size), "size", obj.Size)

	out = Outcome{Object: obj.Name, Kind: blobs.Classify(obj.Name)}
	defer func() { s.Metrics.observe(out) }()
	defer func() {
		if r := recover(); r != nil {
			out.Status = analysis.StatusFailed
			out.ErrorKind = analysis.ErrorKindUnexpected
			out.Error = fmt.Sprint(r)
			log.Error(fmt.Sprintf("Unexpected error occurred: %v", r), "error_kind", out.ErrorKind)
		}
	}()

	var (
		res json.RawMessage
		err error
	)
	start := s.now()
	switch out.Kind {
	case blobs.KindImage:
		res, err = s.processImage(ctx, log, obj.Name)
	case blobs.KindText:
		res, err = s.processText(ctx, log, obj.Name)
	default:
		log.Warn(fmt.Sprintf("Unsupported file type for blob: %s", obj.Name))
		out.Status = analysis.StatusSkipped
		out.ErrorKind = analysis.ErrorKindUnsupported
		return out
	}
	out.DurationMS = s.now().Sub(start).Milliseconds()

	if err != nil {
		out.Status = analysis.StatusFailed
		out.ErrorKind = analysis.KindOf(err)
		out.Error = err.Error()
		logFailure(log, out.Kind, out.ErrorKind, err)
	} else {
		out.Status = analysis.StatusSuccess
		out.Result = res
	}

	s.record(ctx, log, obj, &out)
	return out
}

// HandleAll dispatches objects one after the other, in order.
func (s *Service) HandleAll(ctx context.Context, objs []blobs.Object) []Outcome {
	out := make([]Outcome, 0, len(objs))
	for _, o := range objs {
		out = append(out, s.Handle(ctx, o))
	}
	return out
}

// processImage points the vision service at the object's public URL.
func (s *Service) processImage(ctx context.Context, log *slog.Logger, name string) (json.RawMessage, error) {
	if s.Images == nil {
		return nil, fmt.Errorf("%w: no image analyzer", analysis.ErrConfigurationMissing)
	}
	if s.Blobs == nil {
		return nil, fmt.Errorf("%w: no storage reader", analysis.ErrConfigurationMissing)
	}
	if e, ok := s.Images.(analysis.Endpointer); ok {
		log.Info(fmt.Sprintf("Computer Vision Endpoint: %s", e.Endpoint()))
	}
	imageURL := s.Blobs.URLFor(name)
	log.Info(fmt.Sprintf("Image URL: %s", imageURL))

	res, err := s.Images.AnalyzeImage(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	log.Info("Image analysis result", "result", string(res))
	return res, nil
}

// processText downloads the object and submits its content for sentiment analysis.
func (s *Service) processText(ctx context.Context, log *slog.Logger, name string) (json.RawMessage, error) {
	if s.Texts == nil {
		return nil, fmt.Errorf("%w: no text analyzer", analysis.ErrConfigurationMissing)
	}
	if s.Blobs == nil {
		return nil, fmt.Errorf("%w: no storage reader", analysis.ErrConfigurationMissing)
	}
	raw, err := s.Blobs.Download(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", analysis.ErrTransport, err)
	}
	text, err := blobs.DecodeText(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", analysis.ErrDecode, err)
	}
	if e, ok := s.Texts.(analysis.Endpointer); ok {
		log.Info(fmt.Sprintf("Text Analytics Endpoint: %s", e.Endpoint()))
	}
	log.Debug(fmt.Sprintf("Blob content: %s", text))

	res, err := s.Texts.AnalyzeSentiment(ctx, text)
	if err != nil {
		return nil, err
	}
	log.Info("Text analysis result", "result", string(res))
	return res, nil
}

func logFailure(log *slog.Logger, kind blobs.Kind, ek analysis.ErrorKind, err error) {
	if ek == analysis.ErrorKindRemoteRejected {
		log.Error(fmt.Sprintf("HTTP error occurred while processing %s: %v", kind, err), "error_kind", ek)
		return
	}
	log.Error(fmt.Sprintf("Unexpected error occurred: %v", err), "error_kind", ek)
}

// record narrates, writes the result object and persists the record. Failures here
// are warnings: the analysis itself already happened.
func (s *Service) record(ctx context.Context, log *slog.Logger, obj blobs.Object, out *Outcome) {
	if s.Repo == nil && s.Sink == nil {
		return
	}

	rec := &analysis.Record{
		ID:         analysis.RecordID(uuid.New().String()),
		ObjectName: obj.Name,
		ObjectSize: obj.Size,
		Kind:       out.Kind,
		Status:     out.Status,
		Result:     out.Result,
		ErrorKind:  out.ErrorKind,
		Error:      out.Error,
		DurationMS: out.DurationMS,
		CreatedAt:  s.now(),
	}
	out.ID = rec.ID

	if s.Narrator != nil && out.Status == analysis.StatusSuccess {
		summary, err := s.Narrator.Narrate(ctx, string(out.Kind), obj.Name, out.Result)
		if err != nil {
			log.Warn("narration failed", "error", err)
		} else {
			rec.Summary = summary
		}
	}

	if s.Sink != nil {
		if body, err := json.Marshal(rec); err != nil {
			log.Warn("failed to encode analysis result", "error", err)
		} else if u, err := s.Sink.PutResult(ctx, obj.Name, body); err != nil {
			log.Warn("failed to write analysis result", "error", err)
		} else {
			rec.ResultURL = u
			out.ResultURL = u
		}
	}

	if s.Repo != nil {
		if err := s.Repo.Save(ctx, rec); err != nil {
			log.Warn("failed to save analysis record", "id", rec.ID, "error", err)
		}
	}
}

// Latest ambil N record terakhir
func (s *Service) Latest(ctx context.Context, limit int) ([]*analysis.Record, error) {
	if s.Repo == nil {
		return nil, ErrNoRepository
	}
	return s.Repo.Latest(ctx, limit)
}

// Get ambil 1 record by id
func (s *Service) Get(ctx context.Context, id analysis.RecordID) (*analysis.Record, error) {
	if s.Repo == nil {
		return nil, ErrNoRepository
	}
	return s.Repo.Get(ctx, id)
}

// Summary rekap hasil analysis N hari terakhir
func (s *Service) Summary(ctx context.Context, sinceDays int) (map[string]any, error) {
	if s.Repo == nil {
		return nil, ErrNoRepository
	}
	rows, err := s.Repo.Summary(ctx, sinceDays)
	if err != nil {
		return nil, err
	}
	total := 0
	byKind := map[string]map[string]int{}
	for _, r := range rows {
		if byKind[string(r.Kind)] == nil {
			byKind[string(r.Kind)] = map[string]int{}
		}
		byKind[string(r.Kind)][string(r.Status)] += r.Count
		total += r.Count
	}
	return map[string]any{
		"total":   total,
		"by_kind": byKind,
	}, nil
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
