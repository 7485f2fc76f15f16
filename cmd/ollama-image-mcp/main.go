package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ogtega/ollama-image-mcp/backend"
	"github.com/ogtega/ollama-image-mcp/pkg/logging"
	"github.com/ogtega/ollama-image-mcp/pkg/telemetry"
	"github.com/ogtega/ollama-image-mcp/server"
)

func main() {
	transport := flag.String("transport", "stdio", "MCP transport: stdio or http")
	host := flag.String("host", "127.0.0.1", "Host to bind (http transport)")
	port := flag.Int("port", 8080, "Port to bind (http transport)")
	path := flag.String("path", "/mcp", "HTTP path used for the MCP streamable endpoint")
	backendURL := flag.String("backend", backend.DefaultBaseURL, "Base URL of the inference backend")
	model := flag.String("model", backend.DefaultModel, "Default model tag")
	size := flag.String("size", backend.DefaultSize, "Default image size")
	enableTrace := flag.Bool("trace", false, "Enable OpenTelemetry tracing")
	flag.Parse()

	logger := logging.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "ollama-image-mcp",
		ServiceVersion: server.Version,
		Disable:        !*enableTrace,
	})
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdown(context.Background()) }()

	client := backend.New(
		backend.WithBaseURL(*backendURL),
		backend.WithModel(*model),
		backend.WithSize(*size),
	)
	srv := server.NewServer("ollama-image-mcp", client)

	switch *transport {
	case "stdio":
		logger.Info("serving MCP over stdio", "backend", *backendURL)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			logger.Error("stdio server stopped", "error", err)
			os.Exit(1)
		}
	case "http":
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			if r.URL.Path == *path {
				return srv
			}
			return nil
		}, nil)

		mux := http.NewServeMux()
		mux.Handle(*path, handler)

		addr := fmt.Sprintf("%s:%d", *host, *port)
		httpSrv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = httpSrv.Shutdown(context.Background())
		}()

		logger.Info("serving MCP streamable endpoint", "addr", addr, "path", *path, "backend", *backendURL)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	default:
		logger.Error("unknown transport", "transport", *transport)
		os.Exit(1)
	}
}
