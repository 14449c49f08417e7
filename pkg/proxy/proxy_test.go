package proxy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pario-ai/promptgate/pkg/auth"
	"github.com/pario-ai/promptgate/pkg/ledger"
	"github.com/pario-ai/promptgate/pkg/metrics"
	"github.com/pario-ai/promptgate/pkg/models"
	"github.com/pario-ai/promptgate/pkg/pipeline"
	"github.com/pario-ai/promptgate/pkg/store/sqlstore"
	"github.com/pario-ai/promptgate/pkg/upstream"
	"github.com/pario-ai/promptgate/pkg/vault"
)

type fakeRunner struct {
	got pipeline.Request
	res *pipeline.Result
	err error
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.got = req
	return f.res, f.err
}

func post(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/proxy", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestProxyPassesCredentialsAndBody(t *testing.T) {
	resp := "hi there"
	analysis := "why"
	f := &fakeRunner{res: &pipeline.Result{
		Decision: models.DecisionAllow, Response: &resp, Analysis: &analysis, LogID: "log-1",
	}}
	srv := New(f, Options{Log: zerolog.Nop()})

	w := post(t, srv, `{"prompt":"hello","model":"gpt-4.1","metadata":{"endUserId":"e1"}}`,
		map[string]string{"Authorization": "bearer pat_abc"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "pat_abc", f.got.Credentials.Bearer)
	assert.Equal(t, "hello", f.got.Prompt)
	assert.Equal(t, "gpt-4.1", f.got.Model)
	assert.JSONEq(t, `{"endUserId":"e1"}`, string(f.got.Metadata))

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "ALLOW", out["decision"])
	assert.Equal(t, "hi there", out["response"])
	assert.Equal(t, "log-1", out["logId"])
	assert.NotContains(t, out, "analysis")
	assert.Equal(t, []any{}, out["riskTypes"])
}

func TestProxyMetadataOfAnyShape(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
	}{
		{"string", `"tag-42"`},
		{"array", `[1,2]`},
		{"number", `7`},
		{"object", `{"endUserId":"e1","tags":["a"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeRunner{res: &pipeline.Result{Decision: models.DecisionAllow}}
			srv := New(f, Options{Log: zerolog.Nop()})

			w := post(t, srv, `{"prompt":"hello","metadata":`+tt.metadata+`}`,
				map[string]string{"Authorization": "Bearer pat_abc"})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Equal(t, "hello", f.got.Prompt)
			assert.JSONEq(t, tt.metadata, string(f.got.Metadata))
		})
	}
}

func TestProxyNullMetadataIsAbsent(t *testing.T) {
	f := &fakeRunner{res: &pipeline.Result{Decision: models.DecisionAllow}}
	post(t, New(f, Options{Log: zerolog.Nop()}), `{"prompt":"hello","metadata":null}`, nil)
	assert.Equal(t, "hello", f.got.Prompt)
	assert.Nil(t, f.got.Metadata)
}

func TestProxyBadModelKeepsPrompt(t *testing.T) {
	f := &fakeRunner{res: &pipeline.Result{Decision: models.DecisionAllow}}
	post(t, New(f, Options{Log: zerolog.Nop()}), `{"prompt":"hello","model":42}`, nil)
	assert.Equal(t, "hello", f.got.Prompt)
	assert.Empty(t, f.got.Model)
}

func TestProxyIncludeAnalysis(t *testing.T) {
	analysis := "blocked because"
	f := &fakeRunner{res: &pipeline.Result{Decision: models.DecisionBlock, Analysis: &analysis, LogID: "l"}}
	srv := New(f, Options{IncludeAnalysis: true, Log: zerolog.Nop()})

	w := post(t, srv, `{"prompt":"x"}`, nil)
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, analysis, out["analysis"])
	require.Contains(t, out, "response")
	assert.Nil(t, out["response"])
}

func TestProxyMalformedBodyStillAuthenticatesFirst(t *testing.T) {
	for _, body := range []string{`{"prompt":42}`, `not json`, `["hello"]`} {
		f := &fakeRunner{err: &pipeline.Error{Kind: pipeline.KindUnauthorized, State: pipeline.StateAuthenticating}}
		srv := New(f, Options{Log: zerolog.Nop()})

		w := post(t, srv, body, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, body)
		assert.Empty(t, f.got.Prompt, body)
	}
}

func TestProxyErrorStatuses(t *testing.T) {
	tests := []struct {
		kind pipeline.Kind
		code int
	}{
		{pipeline.KindUnauthorized, http.StatusUnauthorized},
		{pipeline.KindValidation, http.StatusBadRequest},
		{pipeline.KindCredentialUnavailable, http.StatusBadRequest},
		{pipeline.KindUpstreamTimeout, http.StatusBadGateway},
		{pipeline.KindUpstreamError, http.StatusBadGateway},
		{pipeline.KindDecryptionFailed, http.StatusInternalServerError},
		{pipeline.KindMissingSecret, http.StatusInternalServerError},
		{pipeline.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := &fakeRunner{err: &pipeline.Error{Kind: tt.kind, State: pipeline.StateFetching}}
			w := post(t, New(f, Options{Log: zerolog.Nop()}), `{"prompt":"x"}`, nil)
			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Body.String(), `"type":"promptgate_error"`)
		})
	}
}

func TestProxyUpstreamErrorCarriesStatus(t *testing.T) {
	f := &fakeRunner{err: &pipeline.Error{
		Kind:  pipeline.KindUpstreamError,
		State: pipeline.StateFetching,
		Err:   &upstream.StatusError{Status: 429, Body: "slow down"},
	}}
	w := post(t, New(f, Options{Log: zerolog.Nop()}), `{"prompt":"x"}`, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	var out struct {
		Status int    `json:"status"`
		Body   string `json:"body"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, 429, out.Status)
	assert.Equal(t, "slow down", out.Body)
}

func TestProxySessionSources(t *testing.T) {
	v := auth.NewSessionVerifier("test-secret", "host")
	tok, err := v.Sign("user-7", time.Minute)
	require.NoError(t, err)
	f := &fakeRunner{res: &pipeline.Result{Decision: models.DecisionAllow}}
	srv := New(f, Options{Sessions: v, Log: zerolog.Nop()})

	post(t, srv, `{"prompt":"x"}`, map[string]string{SessionHeader: tok})
	require.NotNil(t, f.got.Credentials.Session, "header session not resolved")
	assert.Equal(t, "user-7", f.got.Credentials.Session.UserID)

	req := httptest.NewRequest(http.MethodPost, "/api/proxy", strings.NewReader(`{"prompt":"x"}`))
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok})
	srv.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, f.got.Credentials.Session, "cookie session not resolved")
	assert.Equal(t, "user-7", f.got.Credentials.Session.UserID)

	post(t, srv, `{"prompt":"x"}`, map[string]string{SessionHeader: "garbage"})
	assert.Nil(t, f.got.Credentials.Session)
}

func TestProxyMethodNotAllowed(t *testing.T) {
	srv := New(&fakeRunner{}, Options{Log: zerolog.Nop()})
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/proxy", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveDecision(models.DecisionAllow, nil)
	srv := New(&fakeRunner{}, Options{Gatherer: reg, Log: zerolog.Nop()})

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "promptgate_decisions_total")
}

func TestCORSPreflight(t *testing.T) {
	srv := New(&fakeRunner{}, Options{CORSOrigins: []string{"https://app.example"}, Log: zerolog.Nop()})
	req := httptest.NewRequest(http.MethodOptions, "/api/proxy", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-provider", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(models.ChatCompletionResponse{
			Choices: []models.Choice{{Message: models.ChatMessage{Role: "assistant", Content: "Hello!"}}},
		})
	}))
	defer provider.Close()

	key, err := vault.GenerateKey()
	require.NoError(t, err)
	v, err := vault.NewFromBase64(key)
	require.NoError(t, err)
	s, err := sqlstore.Open(ctx, sqlstore.SQLite, filepath.Join(t.TempDir(), "gate.db"))
	require.NoError(t, err)
	defer s.Close()

	raw, hash, err := auth.NewToken()
	require.NoError(t, err)
	require.NoError(t, s.CreateToken(ctx, &models.APIToken{Name: "e2e", TokenHash: hash, UserID: "u1"}))
	sealed, err := v.SealString("sk-provider")
	require.NoError(t, err)
	require.NoError(t, s.UpsertCredential(ctx, &models.ProviderCredential{Provider: pipeline.DefaultProvider, Key: sealed}))

	gw, err := upstream.New(provider.URL)
	require.NoError(t, err)
	log := zerolog.Nop()
	p, err := pipeline.New(pipeline.DefaultConfig(), pipeline.Deps{
		Auth: auth.NewResolver(s, log), Blacklist: s, Credentials: s,
		Vault: v, Upstream: gw, Ledger: ledger.New(v, s, log), Log: log,
	})
	require.NoError(t, err)
	srv := New(p, Options{Log: log})
	bearer := map[string]string{"Authorization": "Bearer " + raw}

	w := post(t, srv, `{"prompt":"hello, how are you?"}`, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out models.PromptResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, models.DecisionAllow, out.Decision)
	require.NotNil(t, out.Response)
	assert.Equal(t, "Hello!", *out.Response)
	assert.NotEmpty(t, out.LogID)

	w = post(t, srv, `{"prompt":"hello","metadata":"tag-42"}`, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	rows, err := s.QueryLogEntries(ctx, models.LedgerQueryOpts{ID: out.LogID})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.JSONEq(t, `"tag-42"`, string(rows[0].Metadata))
	assert.Nil(t, rows[0].EndUserID)

	w = post(t, srv, `{"prompt":"hi"}`, map[string]string{"Authorization": "Bearer pat_wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
