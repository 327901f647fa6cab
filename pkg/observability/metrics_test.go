package observability_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/weave/pkg/domain"
	"github.com/aretw0/weave/pkg/observability"
)

func TestMetrics_Hooks(t *testing.T) {
	m := observability.NewMetrics()
	hooks := m.Hooks()
	ctx := context.Background()

	hooks.OnRound(ctx, &domain.RoundEvent{Graph: "main", Evaluated: 4, Stalled: []string{"a", "b"}, Duration: time.Millisecond})
	hooks.OnRound(ctx, &domain.RoundEvent{Graph: "main", Evaluated: 3})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rounds.WithLabelValues("main")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Evaluations.WithLabelValues("main")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Stalled.WithLabelValues("main")), "gauge tracks the last round")

	hooks.OnProcedureStart(ctx, &domain.ProcedureEvent{Procedure: "blink"})
	hooks.OnProcedureStart(ctx, &domain.ProcedureEvent{Procedure: "blink"})
	hooks.OnProcedureStop(ctx, &domain.ProcedureEvent{Procedure: "blink"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Running.WithLabelValues("blink")))

	hooks.OnStepEnter(ctx, &domain.StepEvent{Procedure: "blink", Kind: "wait"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StepVisits.WithLabelValues("blink", "wait")))

	hooks.OnReconcile(ctx, &domain.ReconcileEvent{Target: "data sinks", Positional: 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Reconciles.WithLabelValues("data sinks", "true")))

	hooks.OnInvalid(ctx, &domain.InvalidEvent{BlockName: "relay"})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invalidated.WithLabelValues("relay")))
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Hooks().OnRound(context.Background(), &domain.RoundEvent{Graph: "main", Evaluated: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `weave_rounds_total{graph="main"} 1`)
}
