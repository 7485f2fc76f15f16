package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ogtega/ollama-image-mcp/backend"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func fakeBackend(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return backend.New(backend.WithBaseURL(srv.URL))
}

func connect(t *testing.T, client *backend.Client) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	srv := NewServer("test-server", client)
	clientTransport, serverTransport := mcp.NewInMemoryTransports()

	if _, err := srv.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	session, err := mcpClient.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestGenerateImageTool(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString(pngBytes)
	client := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: progress\ndata: {\"step\":1,\"total\":2}\n\n")
		fmt.Fprint(w, "event: progress\ndata: {\"step\":2,\"total\":2}\n\n")
		fmt.Fprintf(w, "event: done\ndata: {\"created\":1700000000,\"data\":[{\"b64_json\":%q}]}\n\n", payload)
	})

	session := connect(t, client)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_image",
		Arguments: map[string]any{"prompt": "a red cube"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if res.IsError {
		t.Fatalf("tool returned error: %v", res.Content)
	}
	if len(res.Content) != 2 {
		t.Fatalf("got %d content blocks, want 2", len(res.Content))
	}

	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("content[0] is %T, want *mcp.TextContent", res.Content[0])
	}
	if text.Text != "Generated: a red cube" {
		t.Errorf("text = %q, want %q", text.Text, "Generated: a red cube")
	}

	image, ok := res.Content[1].(*mcp.ImageContent)
	if !ok {
		t.Fatalf("content[1] is %T, want *mcp.ImageContent", res.Content[1])
	}
	if !bytes.Equal(image.Data, pngBytes) {
		t.Errorf("image data mismatch: got %v, want %v", image.Data, pngBytes)
	}
	if image.MIMEType != "image/png" {
		t.Errorf("mime type = %q, want image/png", image.MIMEType)
	}
}

func TestGenerateImageToolBackendFailure(t *testing.T) {
	client := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: error\ndata: {\"error\":{\"message\":\"weights not loaded\",\"type\":\"server_error\"}}\n\n")
	})

	session := connect(t, client)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_image",
		Arguments: map[string]any{"prompt": "a red cube"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error result")
	}
	if text, ok := res.Content[0].(*mcp.TextContent); !ok || !strings.Contains(text.Text, "weights not loaded") {
		t.Errorf("error content %v does not carry the backend message", res.Content)
	}
}

func TestGenerateImageToolEmptyPrompt(t *testing.T) {
	client := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be called for an empty prompt")
	})

	session := connect(t, client)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_image",
		Arguments: map[string]any{"prompt": ""},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error result for empty prompt")
	}
}

func TestGenerateImageToolIncompleteStream(t *testing.T) {
	client := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "event: progress\ndata: {\"step\":1,\"total\":2}\n\n")
	})

	session := connect(t, client)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "generate_image",
		Arguments: map[string]any{"prompt": "a red cube"},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected tool error result for incomplete stream")
	}
	if text, ok := res.Content[0].(*mcp.TextContent); !ok || !strings.Contains(text.Text, "terminal event") {
		t.Errorf("error content %v does not describe the incomplete stream", res.Content)
	}
}
