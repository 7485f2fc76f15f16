// Package server exposes image generation as an MCP tool, relaying the
// backend's streamed progress to the calling session.
package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ogtega/ollama-image-mcp/backend"
	"github.com/ogtega/ollama-image-mcp/pkg/logging"
	"github.com/ogtega/ollama-image-mcp/pkg/telemetry"
)

// Version is stamped into the MCP implementation info.
const Version = "0.1.0"

// NewServer builds the MCP server with the generate_image tool registered.
func NewServer(name string, client *backend.Client) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    name,
		Version: Version,
		Title:   "Ollama image generator",
	}, nil)

	addGenerateImageTool(server, client)

	return server
}

func addGenerateImageTool(server *mcp.Server, client *backend.Client) {
	type args struct {
		Prompt string `json:"prompt" jsonschema:"Text description of the image to generate"`
		Size   string `json:"size,omitempty" jsonschema:"Optional image size, defaults to 1024x1024"`
		Model  string `json:"model,omitempty" jsonschema:"Optional model tag, defaults to x/z-image-turbo"`
	}

	logger := logging.WithComponent("server")
	tracer := otel.Tracer("ollama-image-mcp/server")

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_image",
		Description: "Generate an image from a text prompt using the local Ollama backend",
	}, func(ctx context.Context, req *mcp.CallToolRequest, a args) (_ *mcp.CallToolResult, _ any, err error) {
		ctx, span := tracer.Start(ctx, "generate_image", trace.WithAttributes(
			attribute.Int("prompt.length", len(a.Prompt)),
			attribute.String("model", a.Model),
			attribute.String("size", a.Size),
		))
		defer func() { telemetry.End(span, err) }()

		image, err := client.Generate(ctx, &backend.GenerationRequest{
			Prompt: a.Prompt,
			Size:   a.Size,
			Model:  a.Model,
		}, progressNotifier(req))
		if err != nil {
			logger.Error("generation failed", "error", err)
			return nil, nil, err
		}

		raw, err := base64.StdEncoding.DecodeString(cleanBase64(image.B64))
		if err != nil {
			return nil, nil, &backend.ValidationError{Reason: "image payload is not valid base64", Err: err}
		}

		logger.Info("image generated", "bytes", len(raw))

		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Generated: %s", a.Prompt)},
				&mcp.ImageContent{Data: raw, MIMEType: image.MIMEType},
			},
		}, nil, nil
	})
}

// progressNotifier forwards backend progress to the calling session as an
// info-level logging message and, when the caller supplied a progress token,
// a progress notification. A notify failure aborts the in-flight call.
func progressNotifier(req *mcp.CallToolRequest) backend.ProgressFunc {
	token := req.Params.GetProgressToken()
	return func(ctx context.Context, step, total int) error {
		if req.Session == nil {
			return nil
		}
		if err := req.Session.Log(ctx, &mcp.LoggingMessageParams{
			Level: "info",
			Data:  fmt.Sprintf("Generating... %d/%d", step, total),
		}); err != nil {
			return err
		}
		if token == nil {
			return nil
		}
		return req.Session.NotifyProgress(ctx, &mcp.ProgressNotificationParams{
			ProgressToken: token,
			Progress:      float64(step),
			Total:         float64(total),
			Message:       fmt.Sprintf("%d/%d", step, total),
		})
	}
}

// cleanBase64 strips stray newlines so multi-line SSE data decodes cleanly.
func cleanBase64(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}
