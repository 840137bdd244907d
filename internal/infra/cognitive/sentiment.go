package cognitive

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bryanwahyu/blobsense/internal/config"
	"github.com/bryanwahyu/blobsense/internal/domain/analysis"
)

const (
	sentimentPath    = "/text/analytics/v3.1/sentiment"
	documentID       = "1"
	documentLanguage = "en"
)

type sentimentDocument struct {
	ID       string `json:"id"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// Sentiment calls the text analytics sentiment API.
type Sentiment struct {
	service config.Service
	client  *Client
}

var _ analysis.TextAnalyzer = (*Sentiment)(nil)

func NewSentiment(svc config.Service, client *Client) *Sentiment {
	return &Sentiment{service: svc, client: client}
}

// Endpoint is the configured service root, trailing slashes dropped.
func (s *Sentiment) Endpoint() string { return trimEndpoint(s.service.Endpoint) }

// AnalyzeSentiment submits text as the single English document "1".
func (s *Sentiment) AnalyzeSentiment(ctx context.Context, text string) (json.RawMessage, error) {
	req, err := BuildSentimentRequest(s.service, text)
	if err != nil {
		return nil, err
	}
	res, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("text analysis: %w", err)
	}
	return res, nil
}

// BuildSentimentRequest builds POST {endpoint}/text/analytics/v3.1/sentiment.
func BuildSentimentRequest(svc config.Service, text string) (analysis.Request, error) {
	u, err := endpointURL(svc.Endpoint, svc.Key, sentimentPath)
	if err != nil {
		return analysis.Request{}, fmt.Errorf("text analysis: %w", err)
	}

	body, err := encodeJSON(struct {
		Documents []sentimentDocument `json:"documents"`
	}{
		Documents: []sentimentDocument{{ID: documentID, Language: documentLanguage, Text: text}},
	})
	if err != nil {
		return analysis.Request{}, err
	}

	return analysis.Request{
		TargetURL: u.String(),
		Headers: map[string]string{
			SubscriptionKeyHeader: svc.Key,
			"Content-Type":        "application/json",
		},
		Body: body,
	}, nil
}
