package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/api/handlers"
	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/internal/metrics"
	"github.com/BaSui01/skillflow/quick"
	"github.com/BaSui01/skillflow/testutil/mocks"
)

var (
	collectorOnce sync.Once
	testCollector *metrics.Collector
)

// sharedCollector 指标注册到默认 Registry，整个测试进程只能创建一次
func sharedCollector() *metrics.Collector {
	collectorOnce.Do(func() {
		testCollector = metrics.NewCollector("skillflow_cmd_test", zap.NewNop())
	})
	return testCollector
}

func newTestEngine(t *testing.T, model *mocks.MockProvider) *quick.Engine {
	t.Helper()
	eng, err := quick.New(context.Background(), config.DefaultConfig(),
		quick.WithProvider(model),
		quick.WithEmbedder(mocks.NewStubEmbedder()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func newTestServer(t *testing.T, model *mocks.MockProvider) *httptest.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	srv := NewServer(cfg, newTestEngine(t, model), sharedCollector(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ts := httptest.NewServer(srv.Handler(ctx))
	t.Cleanup(ts.Close)
	return ts
}

func decodeResponse(t *testing.T, resp *http.Response, data any) handlers.Response {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var raw struct {
		handlers.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &raw), string(body))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.Response
}

func TestServer_HealthRoutes(t *testing.T) {
	ts := newTestServer(t, mocks.NewMockProvider())

	for _, path := range []string{"/health", "/healthz", "/ready", "/version"} {
		t.Run(path, func(t *testing.T) {
			resp, err := http.Get(ts.URL + path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
			assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
		})
	}
}

func TestServer_ReadyFailsWhenProviderDown(t *testing.T) {
	ts := newTestServer(t, mocks.NewMockProvider().WithError(assert.AnError))

	resp, err := http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body handlers.ServiceHealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "fail", body.Checks["llm:mock"].Status)
	assert.Equal(t, "pass", body.Checks["registry"].Status)
}

func TestServer_Ask(t *testing.T) {
	model := mocks.NewMockProvider().WithResponses(
		`{"a": 17, "b": 23, "operation": "multiply"}`,
		"17 * 23 = 391",
	)
	ts := newTestServer(t, model)

	resp, err := http.Post(ts.URL+"/v1/ask", "application/json",
		bytes.NewBufferString(`{"query": "calculate 17 multiply 23"}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Answer     string `json:"answer"`
		Transcript struct {
			Outcomes []struct {
				Skill  string `json:"skill"`
				Status string `json:"status"`
			} `json:"outcomes"`
		} `json:"transcript"`
	}
	envelope := decodeResponse(t, resp, &data)
	assert.True(t, envelope.Success)
	assert.NotEmpty(t, envelope.RequestID)
	assert.Equal(t, "17 * 23 = 391", data.Answer)
	require.Len(t, data.Transcript.Outcomes, 1)
	assert.Equal(t, "calculator", data.Transcript.Outcomes[0].Skill)
	assert.Equal(t, "success", data.Transcript.Outcomes[0].Status)
}

func TestServer_AskRejectsWrongMethod(t *testing.T) {
	ts := newTestServer(t, mocks.NewMockProvider())

	resp, err := http.Get(ts.URL + "/v1/ask")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServer_Skills(t *testing.T) {
	ts := newTestServer(t, mocks.NewMockProvider())

	resp, err := http.Get(ts.URL + "/v1/skills")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Mode   string `json:"mode"`
		Skills []struct {
			Name  string `json:"name"`
			Group string `json:"group"`
		} `json:"skills"`
		Groups []struct {
			Name string `json:"name"`
		} `json:"groups"`
	}
	decodeResponse(t, resp, &data)
	assert.Equal(t, "hierarchical", data.Mode)
	assert.Len(t, data.Skills, 4)
	assert.Len(t, data.Groups, 4)
}

func TestServer_Invoke(t *testing.T) {
	ts := newTestServer(t, mocks.NewMockProvider())

	resp, err := http.Post(ts.URL+"/v1/skills/Calculator/invoke", "application/json",
		bytes.NewBufferString(`{"arguments": {"a": 6, "b": 7, "operation": "multiply"}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var data struct {
		Skill  string         `json:"skill"`
		Result map[string]any `json:"result"`
	}
	decodeResponse(t, resp, &data)
	assert.Equal(t, "calculator", data.Skill)
	assert.Equal(t, 42.0, data.Result["result"])

	resp, err = http.Post(ts.URL+"/v1/skills/teleport/invoke", "application/json",
		bytes.NewBufferString(`{"arguments": {}}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	envelope := decodeResponse(t, resp, nil)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SKILL_NOT_FOUND", envelope.Error.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.HTTPPort = 0
	cfg.Server.MetricsPort = 0

	srv := NewServer(cfg, newTestEngine(t, mocks.NewMockProvider()), nil, zap.NewNop())
	require.NoError(t, srv.Start())

	resp, err := http.Get("http://" + srv.httpManager.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + srv.metricsManager.Addr() + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, srv.Wait(ctx))
	assert.NoError(t, srv.Shutdown(context.Background()))
}
