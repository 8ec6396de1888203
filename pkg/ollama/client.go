package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/image-captioner/pkg/types"
)

// DefaultTimeout bounds a single request when the caller's context has no deadline
const DefaultTimeout = 300 * time.Second

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
	logger *slog.Logger
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string, httpClient *http.Client) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q needs scheme and host", ollamaURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// Base URL only, callers sometimes pass .../api/chat
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	return &Client{
		client: api.NewClient(baseURL, httpClient),
		logger: slog.Default().With(slog.String("backend", "ollama")),
	}, nil
}

// Resolve checks that the model exists locally and pulls it from the registry if it does not
func (c *Client) Resolve(ctx context.Context, model string) error {
	_, err := c.client.Show(ctx, &api.ShowRequest{Model: model})
	if err == nil {
		return nil
	}

	var statusErr api.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		return fmt.Errorf("show model %s: %w", model, err)
	}

	c.logger.Info("model not found locally, pulling", slog.String("model", model))
	lastStatus := ""
	err = c.client.Pull(ctx, &api.PullRequest{Model: model}, func(p api.ProgressResponse) error {
		if p.Status != lastStatus {
			c.logger.Info("pull", slog.String("model", model), slog.String("status", p.Status))
			lastStatus = p.Status
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("pull model %s: %w", model, err)
	}

	if _, err := c.client.Show(ctx, &api.ShowRequest{Model: model}); err != nil {
		return fmt.Errorf("show model %s after pull: %w", model, err)
	}
	return nil
}

// Caption asks the model for a caption of a single image
func (c *Client) Caption(ctx context.Context, model, prompt string, img []byte, decoding types.Decoding) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	streamFalse := false
	req := &api.GenerateRequest{
		Model:   model,
		Prompt:  prompt,
		Images:  []api.ImageData{api.ImageData(img)},
		Stream:  &streamFalse,
		Options: decodingOptions(decoding),
	}

	var sb strings.Builder
	err := c.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate error: %w", err)
	}

	return sb.String(), nil
}

// decodingOptions maps the fixed decoding settings onto Ollama runner options.
// Greedy decoding with a fixed seed keeps repeated runs identical.
func decodingOptions(d types.Decoding) map[string]any {
	options := map[string]any{
		"temperature": 0,
		"seed":        0,
	}
	if d.MaxTokens > 0 {
		options["num_predict"] = d.MaxTokens
	}
	if d.NumBeams > 0 {
		options["top_k"] = d.NumBeams
	}
	return options
}
