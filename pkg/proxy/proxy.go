// Package proxy is the HTTP entry point of the gateway.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/pario-ai/promptgate/pkg/auth"
	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/pipeline"
	"github.com/pario-ai/promptgate/pkg/upstream"
)

const (
	// SessionCookie and SessionHeader carry the host session token.
	SessionCookie = "session"
	SessionHeader = "X-Session-Token"

	maxBodySize = 1 << 20
)

// Runner executes the gateway pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Options configures a Server.
type Options struct {
	Listen          string
	IncludeAnalysis bool
	CORSOrigins     []string
	// Sessions verifies host session tokens. Nil disables the session path.
	Sessions *auth.SessionVerifier
	// Gatherer backs /metrics. Nil uses the default registry.
	Gatherer prometheus.Gatherer
	Log      zerolog.Logger
}

// Server is the promptgate HTTP server.
type Server struct {
	runner  Runner
	opts    Options
	log     zerolog.Logger
	handler http.Handler
}

// New creates a Server with its routes.
func New(runner Runner, opts Options) *Server {
	s := &Server{
		runner: runner,
		opts:   opts,
		log:    opts.Log.With().Str("component", "http").Logger(),
	}

	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/proxy", s.handleProxy).Methods(http.MethodPost)
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSONError(w, http.StatusNotFound, "not found")
	})

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", SessionHeader},
		AllowCredentials: true,
	})
	s.handler = c.Handler(r)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Listen,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Listen).Msg("promptgate listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	body := decodePromptRequest(io.LimitReader(r.Body, maxBodySize))

	res, err := s.runner.Run(r.Context(), pipeline.Request{
		Credentials: s.credentials(r),
		Prompt:      body.Prompt,
		Model:       body.Model,
		Metadata:    body.Metadata,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(res.PromptResponse(s.opts.IncludeAnalysis))
}

// decodePromptRequest reads the body field by field so a badly typed model
// does not discard the prompt. Metadata is kept verbatim whatever its shape.
// A body that is not a JSON object yields an empty prompt, which the
// pipeline rejects after authenticating.
func decodePromptRequest(r io.Reader) models.PromptRequest {
	var req models.PromptRequest
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&fields); err != nil {
		return req
	}
	if raw, ok := fields["prompt"]; ok {
		_ = json.Unmarshal(raw, &req.Prompt)
	}
	if raw, ok := fields["model"]; ok {
		_ = json.Unmarshal(raw, &req.Model)
	}
	if raw, ok := fields["metadata"]; ok && string(raw) != "null" {
		req.Metadata = raw
	}
	return req
}

// credentials collects the bearer token and a verified session, if any.
func (s *Server) credentials(r *http.Request) auth.Credentials {
	var c auth.Credentials
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		c.Bearer = strings.TrimSpace(h[7:])
	}
	if s.opts.Sessions == nil {
		return c
	}

	raw := r.Header.Get(SessionHeader)
	if raw == "" {
		if ck, err := r.Cookie(SessionCookie); err == nil {
			raw = ck.Value
		}
	}
	if raw == "" {
		return c
	}
	sess, err := s.opts.Sessions.Verify(raw)
	if err != nil {
		s.log.Debug().Err(err).Msg("session rejected")
		return c
	}
	c.Session = sess
	return c
}

// Status maps a pipeline failure kind to an HTTP status.
func Status(kind pipeline.Kind) int {
	switch kind {
	case pipeline.KindUnauthorized:
		return http.StatusUnauthorized
	case pipeline.KindValidation, pipeline.KindCredentialUnavailable:
		return http.StatusBadRequest
	case pipeline.KindUpstreamTimeout, pipeline.KindUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

var messages = map[pipeline.Kind]string{
	pipeline.KindUnauthorized:          "Invalid credentials",
	pipeline.KindValidation:            "Invalid prompt",
	pipeline.KindCredentialUnavailable: "No provider key configured for user",
	pipeline.KindDecryptionFailed:      "Provider key decryption failed",
	pipeline.KindUpstreamTimeout:       "Upstream timeout",
	pipeline.KindUpstreamError:         "LLM upstream error",
	pipeline.KindMissingSecret:         "Server misconfigured",
	pipeline.KindInternal:              "Internal error",
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	kind := pipeline.KindOf(err)
	code := Status(kind)
	msg, ok := messages[kind]
	if !ok {
		msg = messages[pipeline.KindInternal]
	}
	if code >= http.StatusInternalServerError {
		s.log.Error().Str("kind", string(kind)).Msg("request failed")
	}

	var se *upstream.StatusError
	if errors.As(err, &se) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(upstreamErrorBody{
			Error:  errorBody{Message: msg, Type: errorType, Code: code},
			Status: se.Status,
			Body:   se.Body,
		})
		return
	}
	writeJSONError(w, code, msg)
}

const errorType = "promptgate_error"

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

type upstreamErrorBody struct {
	Error  errorBody `json:"error"`
	Status int       `json:"status"`
	Body   string    `json:"body"`
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"type":%q,"code":%d}}`, message, errorType, code)
}
