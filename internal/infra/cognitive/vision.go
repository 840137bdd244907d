package cognitive

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bryanwahyu/blobsense/internal/config"
	"github.com/bryanwahyu/blobsense/internal/domain/analysis"
)

const (
	visionAnalyzePath = "/vision/v3.2/analyze"
	visualFeatures    = "Categories,Description,Tags"
)

// Vision calls the image analysis API.
type Vision struct {
	service config.Service
	client  *Client
}

var _ analysis.ImageAnalyzer = (*Vision)(nil)

func NewVision(svc config.Service, client *Client) *Vision {
	return &Vision{service: svc, client: client}
}

// Endpoint is the configured service root, trailing slashes dropped.
func (v *Vision) Endpoint() string { return trimEndpoint(v.service.Endpoint) }

// AnalyzeImage asks for categories, description and tags of the image at imageURL.
func (v *Vision) AnalyzeImage(ctx context.Context, imageURL string) (json.RawMessage, error) {
	req, err := BuildImageRequest(v.service, imageURL)
	if err != nil {
		return nil, err
	}
	res, err := v.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("image analysis: %w", err)
	}
	return res, nil
}

// BuildImageRequest builds POST {endpoint}/vision/v3.2/analyze?visualFeatures=... with body {"url": imageURL}.
func BuildImageRequest(svc config.Service, imageURL string) (analysis.Request, error) {
	u, err := endpointURL(svc.Endpoint, svc.Key, visionAnalyzePath)
	if err != nil {
		return analysis.Request{}, fmt.Errorf("image analysis: %w", err)
	}
	u.RawQuery = url.Values{"visualFeatures": {visualFeatures}}.Encode()

	body, err := encodeJSON(struct {
		URL string `json:"url"`
	}{URL: imageURL})
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
