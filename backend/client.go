package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/ogtega/ollama-image-mcp/pkg/logging"
)

// Defaults for the local Ollama-compatible generation endpoint.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "x/z-image-turbo"
	DefaultSize    = "1024x1024"

	generationsPath = "/v1/images/generations"
)

// Config holds backend client configuration.
type Config struct {
	BaseURL    string
	Model      string
	Size       string
	HTTPClient *http.Client
}

// Option configures optional backend client behaviour.
type Option func(*Config)

// WithBaseURL overrides the backend base URL.
func WithBaseURL(url string) Option {
	return func(cfg *Config) {
		if url != "" {
			cfg.BaseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithModel overrides the default model tag.
func WithModel(model string) Option {
	return func(cfg *Config) {
		if model != "" {
			cfg.Model = model
		}
	}
}

// WithSize overrides the default image size.
func WithSize(size string) Option {
	return func(cfg *Config) {
		if size != "" {
			cfg.Size = size
		}
	}
}

// WithHTTPClient supplies a custom HTTP client for the generation request.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *Config) {
		if client != nil {
			cfg.HTTPClient = client
		}
	}
}

// ProgressFunc receives one callback per progress event, in stream order.
// Returning an error aborts the in-flight call.
type ProgressFunc func(ctx context.Context, step, total int) error

// Image is the terminal payload of a generation call.
type Image struct {
	B64      string
	MIMEType string
	Created  int64
}

// Client issues generation requests against an Ollama-compatible backend and
// relays the streamed progress events. Clients are safe for concurrent use;
// each call owns its own connection and event cursor.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a backend client. Unset options fall back to the documented
// defaults.
func New(opts ...Option) *Client {
	cfg := Config{
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
		Size:    DefaultSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = defaultHTTPClient()
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: logging.WithComponent("backend"),
	}
}

// defaultHTTPClient bounds connection establishment only. Generation can take
// arbitrarily long, so there is deliberately no read or overall timeout.
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: 60 * time.Second}).DialContext,
		},
	}
}

// Generate submits one generation request and consumes the backend's event
// stream until a terminal event arrives. Progress events are forwarded to
// onProgress in order. No retries are attempted; the first failure aborts the
// call. The response body is released on every exit path.
func (c *Client) Generate(ctx context.Context, req *GenerationRequest, onProgress ProgressFunc) (*Image, error) {
	payload, err := c.buildPayload(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ValidationError{Reason: "request not serializable", Err: err}
	}

	endpoint := c.cfg.BaseURL + generationsPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ValidationError{Reason: "malformed backend URL", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("submitting generation request", "endpoint", endpoint, "model", payload.Model, "size", payload.Size)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &ConnectionError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &ConnectionError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	return c.relay(ctx, resp, onProgress)
}

// relay reads the SSE stream one event at a time, dispatching by kind.
func (c *Client) relay(ctx context.Context, resp *http.Response, onProgress ProgressFunc) (*Image, error) {
	decoder := ssestream.NewDecoder(resp)

	for decoder.Next() {
		raw := decoder.Event()
		data := bytes.TrimSpace(raw.Data)
		if string(data) == doneSentinel {
			break
		}

		event, err := decodeEvent(raw.Type, data)
		if err != nil {
			return nil, err
		}

		switch evt := event.(type) {
		case *ProgressEvent:
			c.logger.Debug("generation progress", "step", evt.Step, "total", evt.Total)
			if onProgress != nil {
				if err := onProgress(ctx, evt.Step, evt.Total); err != nil {
					return nil, err
				}
			}
		case *DoneEvent:
			if len(evt.Data) == 0 || evt.Data[0].B64JSON == "" {
				return nil, &ValidationError{Reason: "done event carried no image data"}
			}
			return &Image{
				B64:      evt.Data[0].B64JSON,
				MIMEType: "image/png",
				Created:  evt.Created,
			}, nil
		case *BackendError:
			return nil, evt
		}
	}

	if err := decoder.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{Endpoint: c.cfg.BaseURL, Err: err}
	}
	return nil, ErrIncompleteStream
}
