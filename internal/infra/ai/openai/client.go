package openai

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "net/http"
    "strings"

    "github.com/sashabaranov/go-openai"

    domai "github.com/bryanwahyu/blobsense/internal/domain/ai"
    "github.com/bryanwahyu/blobsense/internal/infra/ai/prompt"
)

const maxTokens = 256

type Client struct {
    *openai.Client
    Model string
}

var _ domai.Narrator = (*Client)(nil)

// NewClient builds a narrator. baseURL is optional and points at an OpenAI compatible API.
func NewClient(apiKey, model, baseURL string) *Client {
    cfg := openai.DefaultConfig(apiKey)
    if baseURL != "" {
        cfg.BaseURL = strings.TrimRight(baseURL, "/")
    }
    return &Client{Client: openai.NewClientWithConfig(cfg), Model: model}
}

// Narrate asks the chat model for a short paragraph describing result.
func (c *Client) Narrate(ctx context.Context, kind, objectName string, result json.RawMessage) (string, error) {
    model := c.Model
    if model == "" {
        model = openai.GPT4oMini
    }
    req := openai.ChatCompletionRequest{
        Model: model,
        Messages: []openai.ChatCompletionMessage{
            {Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
            {Role: openai.ChatMessageRoleUser, Content: prompt.GetUserPrompt(kind, objectName, string(result))},
        },
    }
    // For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
    if strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5") {
        req.MaxCompletionTokens = maxTokens
    } else {
        req.MaxTokens = maxTokens
    }

    resp, err := c.CreateChatCompletion(ctx, req)
    if err != nil {
        if isTooManyRequests(err) {
            return "", fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
        }
        return "", fmt.Errorf("failed to create chat completion: %w", err)
    }
    if len(resp.Choices) == 0 {
        return "", errors.New("chat completion returned no choices")
    }

    return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func isTooManyRequests(err error) bool {
    var apiErr *openai.APIError
    if errors.As(err, &apiErr) {
        return apiErr.HTTPStatusCode == http.StatusTooManyRequests
    }
    var reqErr *openai.RequestError
    if errors.As(err, &reqErr) {
        return reqErr.HTTPStatusCode == http.StatusTooManyRequests
    }
    return false
}
