package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/calclab/internal/config"
	"github.com/copyleftdev/calclab/internal/logging"
	"github.com/copyleftdev/calclab/internal/task"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	cfg := &config.Config{
		Environment: "test",
	}

	// Set up HTTP config
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	// Set up logging
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "console"
	cfg.Logging.Output = "stdout"

	// Set up engine limits
	cfg.Engine.MaxIterations = 1000
	cfg.Engine.CurveSamples = 21
	cfg.Engine.DiffSamples = 21
	cfg.Engine.SweepSteps = 4
	cfg.Engine.SweepFactor = 0.5

	require.NoError(t, cfg.Validate())
	return cfg
}

type fixture struct {
	router   chi.Router
	server   *Server
	registry *prometheus.Registry
	logs     *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	cfg := testConfig(t)
	logs := &bytes.Buffer{}
	logger := logging.New(logging.DebugLevel, logs)
	registry := prometheus.NewRegistry()

	srv := NewServer(cfg, logger, task.NewRunner(cfg.TaskSettings(), logging.NewZapLogger(logger)), NewMetrics(registry))
	r := chi.NewRouter()
	r.Use(logging.Middleware(logger))
	srv.RegisterRoutes(r)
	return &fixture{router: r, server: srv, registry: registry, logs: logs}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestRegisterRoutes(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/tasks", true},
		{"GET", "/api/v1/functions", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := f.do(t, tt.method, tt.path, "{}")
			if tt.shouldExist {
				assert.NotEqual(t, http.StatusNotFound, rr.Code)
			} else {
				assert.Equal(t, http.StatusNotFound, rr.Code)
			}
		})
	}
}

func TestPostTaskMinimize(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "POST", "/api/v1/tasks",
		`{"task":"minimize","func":"x^2","a":"-1","b":"2","method":"dichotomy","eps":"1e-4"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	_, err := uuid.Parse(rr.Header().Get(RunIDHeader))
	assert.NoError(t, err)

	body := decode(t, rr)
	assert.Equal(t, "minimize", body["task"])
	assert.Nil(t, body["differentiation"])
	m := body["minimization"].(map[string]interface{})
	assert.Equal(t, "dichotomy", m["method"])
	assert.InDelta(t, 0, m["xMin"].(float64), 1e-4)
	assert.Len(t, m["curve"], 21)
	assert.Equal(t, float64(len(m["points"].([]interface{}))), m["iterations"])

	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.tasks.WithLabelValues("minimize", "ok")))
	assert.Contains(t, f.logs.String(), "Task completed")
}

func TestPostTaskDifferentiate(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "POST", "/api/v1/tasks", `{"task":"diff","func":"x^2","a":0,"b":4,"h":"0,1"}`)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	body := decode(t, rr)
	assert.Equal(t, "differentiate", body["task"])
	d := body["differentiation"].(map[string]interface{})
	assert.Equal(t, "2*x", d["derivative"])
	assert.Equal(t, 0.1, d["h"])
	assert.Len(t, d["combined"], 21)
	assert.Len(t, d["rmse"], 4)
	assert.Len(t, d["rmseAtH"], 3)
}

func TestPostTaskErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		kind   string
	}{
		{"malformed body", `{"task":`, http.StatusBadRequest, "validation"},
		{"empty interval", `{"task":"minimize","func":"x","a":"1","b":"1"}`, http.StatusBadRequest, "validation"},
		{"unknown function", `{"task":"minimize","func":"foo(x)","a":"0","b":"1"}`, http.StatusBadRequest, "parse"},
		{"not finite", `{"task":"minimize","func":"ln(x)","a":"-1","b":"1"}`, http.StatusUnprocessableEntity, "evaluation"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, "POST", "/api/v1/tasks", tt.body)
			assert.Equal(t, tt.status, rr.Code)

			body := decode(t, rr)
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body, "minimization")
		})
	}
}

func TestTaskFailureLogsErrorContext(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "POST", "/api/v1/tasks", `{"task":"minimize","func":"ln(x)","a":"-1","b":"1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var entry map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(f.logs.String()), "\n") {
		if strings.Contains(line, "Task rejected") {
			require.NoError(t, json.Unmarshal([]byte(line), &entry))
		}
	}
	require.NotNil(t, entry, f.logs.String())
	assert.Equal(t, "evaluation", entry["kind"])
	assert.Equal(t, "optimization", entry["component"])
	assert.Equal(t, "probe", entry["operation"])
	assert.Equal(t, rr.Header().Get(RunIDHeader), entry["run_id"])
}

func TestTaskMetricsByOutcome(t *testing.T) {
	f := newFixture(t)
	f.do(t, "POST", "/api/v1/tasks", `{"task":"minimize","func":"foo(x)","a":"0","b":"1"}`)
	f.do(t, "POST", "/api/v1/tasks", `{"task":"integrate","func":"x","a":"0","b":"1"}`)
	f.do(t, "POST", "/api/v1/tasks", `{"task":"2","func":"x","a":"0","b":"1"}`)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.tasks.WithLabelValues("minimize", "parse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.tasks.WithLabelValues("invalid", "validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.server.metrics.tasks.WithLabelValues("differentiate", "ok")))

	count, err := testutil.GatherAndCount(f.registry, "calclab_task_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestGetFunctions(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/api/v1/functions", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var list FunctionList
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Contains(t, list.Functions, "sin")
	assert.Contains(t, list.Functions, "log10")
	assert.Equal(t, []string{"e", "pi"}, list.Constants)
}

func TestJSONRPC(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int // zero means success
		check    func(t *testing.T, resp map[string]interface{})
	}{
		{
			name: "task.run with object params",
			body: `{"jsonrpc":"2.0","id":1,"method":"task.run","params":{"task":"minimize","func":"(x-1)^2","a":"0","b":"3"}}`,
			check: func(t *testing.T, resp map[string]interface{}) {
				result := resp["result"].(map[string]interface{})
				assert.Equal(t, "minimize", result["task"])
				m := result["minimization"].(map[string]interface{})
				assert.Equal(t, "golden", m["method"])
				assert.InDelta(t, 1, m["xMin"].(float64), 1e-4)
			},
		},
		{
			name: "task.run with array params",
			body: `{"jsonrpc":"2.0","id":"a","method":"task.run","params":[{"task":"differentiate","func":"sin(x)","a":"0","b":"3"}]}`,
			check: func(t *testing.T, resp map[string]interface{}) {
				assert.Equal(t, "a", resp["id"])
				result := resp["result"].(map[string]interface{})
				assert.Equal(t, "cos(x)", result["differentiation"].(map[string]interface{})["derivative"])
			},
		},
		{
			name: "functions.list",
			body: `{"jsonrpc":"2.0","id":2,"method":"functions.list"}`,
			check: func(t *testing.T, resp map[string]interface{}) {
				result := resp["result"].(map[string]interface{})
				assert.Contains(t, result["functions"], "sqrt")
			},
		},
		{name: "parse error", body: `{"jsonrpc":`, wantCode: rpcParseError},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":1,"method":"task.run"}`, wantCode: rpcInvalidRequest},
		{name: "unknown method", body: `{"jsonrpc":"2.0","id":1,"method":"task.cancel"}`, wantCode: rpcMethodNotFound},
		{name: "missing params", body: `{"jsonrpc":"2.0","id":1,"method":"task.run"}`, wantCode: rpcInvalidParams},
		{name: "two tasks", body: `{"jsonrpc":"2.0","id":1,"method":"task.run","params":[{},{}]}`, wantCode: rpcInvalidParams},
		{
			name:     "validation error",
			body:     `{"jsonrpc":"2.0","id":1,"method":"task.run","params":{"task":"minimize","func":"x","a":"2","b":"1"}}`,
			wantCode: rpcInvalidParams,
			check: func(t *testing.T, resp map[string]interface{}) {
				data := resp["error"].(map[string]interface{})["data"].(map[string]interface{})
				assert.Equal(t, "validation", data["kind"])
				assert.NotEmpty(t, data["runId"])
			},
		},
		{
			name:     "parse error in function",
			body:     `{"jsonrpc":"2.0","id":1,"method":"task.run","params":{"task":"minimize","func":"sin x","a":"0","b":"1"}}`,
			wantCode: rpcInvalidParams,
		},
		{
			name:     "convergence error",
			body:     `{"jsonrpc":"2.0","id":1,"method":"task.run","params":{"task":"minimize","func":"x^2","a":"0","b":"1e6","eps":"1e-300"}}`,
			wantCode: rpcServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			rr := f.do(t, "POST", "/rpc", tt.body)
			require.Equal(t, http.StatusOK, rr.Code)

			resp := decode(t, rr)
			assert.Equal(t, "2.0", resp["jsonrpc"])
			if tt.wantCode == 0 {
				assert.NotContains(t, resp, "error")
			} else {
				errObj, ok := resp["error"].(map[string]interface{})
				require.True(t, ok, "response should contain error object")
				assert.Equal(t, float64(tt.wantCode), errObj["code"])
				assert.NotEmpty(t, errObj["message"])
				assert.NotContains(t, resp, "result")
			}
			if tt.check != nil {
				tt.check(t, resp)
			}
		})
	}
}

func TestRespondWithError(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{name: "string id", code: rpcInvalidParams, message: "invalid input", id: "123", expectedID: "123"},
		{name: "nil id", code: rpcInternalError, message: "server error", id: nil, expectedID: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			f.server.respondWithError(rr, tt.code, tt.message, tt.id, nil)

			assert.Equal(t, http.StatusOK, rr.Code)
			response := decode(t, rr)
			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"])
			assert.Equal(t, tt.message, errObj["message"])
			assert.NotContains(t, errObj, "data")
			assert.Equal(t, tt.expectedID, response["id"])
		})
	}
}

func TestClose(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.server.Close())
}
