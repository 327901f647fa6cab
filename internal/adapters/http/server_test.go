package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weave"
	"github.com/aretw0/weave/internal/testutils"
	"github.com/aretw0/weave/pkg/blocks"
	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/observability"
	"github.com/aretw0/weave/pkg/schema"
)

func newHost(t *testing.T, opts ...weave.Option) *weave.Host {
	t.Helper()
	g := domain.NewGraph("main")
	in := g.AddInput(schema.F("x", schema.Number()))
	out := g.AddOutput(schema.F("y", schema.Number()))
	g.AddBlock("in", blocks.GraphInput(in))
	g.AddBlock("double", blocks.Gain(2))
	g.AddBlock("out", blocks.GraphOutput(out))
	require.NoError(t, g.ConnectNamed("in", "value", "double", "in"))
	require.NoError(t, g.ConnectNamed("double", "out", "out", "value"))

	opts = append([]weave.Option{weave.WithClock(testutils.NewManualClock())}, opts...)
	h := weave.New(g, opts...)
	h.Register("blink", func() (*domain.Graph, error) {
		p := domain.NewGraph("blink")
		p.AddBlock("start", blocks.Start())
		p.AddBlock("wait", blocks.Wait(time.Minute))
		p.AddBlock("end", blocks.End(nil))
		if err := p.ConnectNamed("start", domain.PortCompleted, "wait", domain.PortBegin); err != nil {
			return nil, err
		}
		return p, p.ConnectNamed("wait", domain.PortCompleted, "end", domain.PortBegin)
	})
	return h
}

func do(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestGetHealth(t *testing.T) {
	handler := NewHandler(newHost(t))

	rr := do(t, handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestGetInfo(t *testing.T) {
	handler := NewHandler(newHost(t))

	rr := do(t, handler, http.MethodGet, "/info", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "weave-http", resp["app"])
	assert.Equal(t, "main", resp["graph"])
	assert.NotEmpty(t, resp["version"])
}

func TestInputsAndOutputs(t *testing.T) {
	h := newHost(t)
	handler := NewHandler(h)

	rr := do(t, handler, http.MethodPut, "/inputs/x", "4")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NoError(t, h.Tick(context.Background()))

	rr = do(t, handler, http.MethodGet, "/outputs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var outputs schema.Values
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &outputs))
	assert.Equal(t, 8.0, outputs.Get("y").Float())

	rr = do(t, handler, http.MethodPut, "/inputs/missing", "1")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, handler, http.MethodPut, "/inputs/x", "{")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetGraph(t *testing.T) {
	handler := NewHandler(newHost(t))

	rr := do(t, handler, http.MethodGet, "/graph", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "graph LR")
	assert.Contains(t, rr.Body.String(), "double")

	rr = do(t, handler, http.MethodGet, "/graph?format=markdown", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rr.Body.String(), "# main")
}

func TestProcedureLifecycle(t *testing.T) {
	handler := NewHandler(newHost(t))

	rr := do(t, handler, http.MethodGet, "/procedures", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `["blink"]`, rr.Body.String())

	rr = do(t, handler, http.MethodPost, "/procedures/blink/start", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	var started map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &started))
	id := started["id"]
	require.NotEmpty(t, id)

	rr = do(t, handler, http.MethodGet, "/instances/"+id, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, domain.StatusRunning, snap.Status)
	assert.Equal(t, []string{"wait"}, snap.Active)

	rr = do(t, handler, http.MethodGet, "/instances/"+id+"?format=mermaid", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "class wait active")

	rr = do(t, handler, http.MethodGet, "/instances", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var all []domain.Snapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &all))
	assert.Len(t, all, 1)

	rr = do(t, handler, http.MethodPost, "/instances/"+id+"/stop", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, domain.StatusIdle, snap.Status)
}

func TestErrors(t *testing.T) {
	handler := NewHandler(newHost(t))

	tests := []struct {
		name   string
		method string
		path   string
		code   int
	}{
		{"unknown procedure", http.MethodPost, "/procedures/nope/start", http.StatusNotFound},
		{"unknown instance", http.MethodGet, "/instances/nope", http.StatusNotFound},
		{"unknown instance graph", http.MethodGet, "/instances/nope?format=mermaid", http.StatusNotFound},
		{"stop unknown instance", http.MethodPost, "/instances/nope/stop", http.StatusNotFound},
		{"no metrics mounted", http.MethodGet, "/metrics", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, handler, tt.method, tt.path, "")
			assert.Equal(t, tt.code, rr.Code)
		})
	}
}

func TestGetMetrics(t *testing.T) {
	m := observability.NewMetrics()
	h := newHost(t, weave.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, h.Tick(context.Background()))

	handler := NewHandler(h, WithMetrics(m.Handler()))
	rr := do(t, handler, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "weave_rounds_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusConflict, statusFor(domain.ErrAlreadyRunning))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(domain.ErrNoStartStep))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
