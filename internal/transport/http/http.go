// Package http implements the HTTP transport.
//
// Clients POST a typed command as JSON or a raw recording as the request
// body and receive the assistant's reply as JSON.
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	_ "github.com/nadzzz/nagato/docs" // registers the OpenAPI document
	"github.com/nadzzz/nagato/internal/message"
	"github.com/nadzzz/nagato/internal/transport"
)

// maxBody bounds uploaded recordings.
const maxBody = 25 << 20

// CommandRequest is the JSON body of POST /command.
type CommandRequest struct {
	Text   string `json:"text" example:"open Safari and search for best pizza in Rome"`
	Source string `json:"source,omitempty" example:"phone"`
}

// Transport implements transport.Transport over HTTP.
type Transport struct {
	port   int
	server *http.Server
}

// New creates a new HTTP transport on the given port.
func New(port int) *Transport {
	return &Transport{port: port}
}

// Name returns the transport identifier.
func (t *Transport) Name() string { return "http" }

// Handler builds the request router.
func (t *Transport) Handler(handler transport.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /command", func(w http.ResponseWriter, r *http.Request) {
		t.handleCommand(w, r, handler)
	})

	// Swagger UI — serves the registered OpenAPI docs.
	mux.Handle("GET /swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	return mux
}

// Listen starts the HTTP server and routes incoming requests to the handler.
func (t *Transport) Listen(ctx context.Context, handler transport.Handler) error {
	t.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", t.port),
		Handler:           t.Handler(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("http transport listening", "port", t.port)

	go func() {
		<-ctx.Done()
		slog.Info("http transport shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = t.server.Shutdown(shutdownCtx)
	}()

	if err := t.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("http listen: %w", err)
	}
	return nil
}

// handleCommand processes a POST /command request.
//
// @Summary     Run a typed or spoken command
// @Description Accepts a JSON body with the command text, or raw audio bytes of a spoken command.
// @Description Audio is transcribed first. The command is then run through the assistant pipeline
// @Description (special-case heuristics, intent classification, OS action, response composition).
// @Tags        command
// @Accept      json
// @Accept      audio/wav
// @Accept      audio/ogg
// @Produce     json
// @Param       command         body    CommandRequest  true   "Typed command. For audio, POST the bytes directly with the appropriate Content-Type."
// @Param       X-Nagato-Source header  string          false  "Sender identifier (used with raw audio uploads)"
// @Success     200  {object}  message.Reply  "Assistant reply"
// @Failure     400  {string}  string         "Invalid request body"
// @Failure     500  {string}  string         "Internal processing error"
// @Router      /command [post]
func (t *Transport) handleCommand(w http.ResponseWriter, r *http.Request, handler transport.Handler) {
	req := &message.Request{Timestamp: time.Now()}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		var body CommandRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&body); err != nil {
			http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Text = body.Text
		req.Source = body.Source
	case "":
		http.Error(w, "missing Content-Type", http.StatusBadRequest)
		return
	default:
		audio, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
		if err != nil {
			http.Error(w, "reading audio: "+err.Error(), http.StatusBadRequest)
			return
		}
		req.Audio = audio
		req.ContentType = mediaType
		req.Source = r.Header.Get("X-Nagato-Source")
	}
	if req.Source == "" {
		req.Source = "http"
	}

	reply, err := handler(r.Context(), req)
	if err != nil {
		slog.Error("command failed", "error", err)
		http.Error(w, "command error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(reply)
}

// Close gracefully shuts down the HTTP server.
func (t *Transport) Close() error {
	if t.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return t.server.Shutdown(ctx)
	}
	return nil
}
