package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordGatewayCall(t *testing.T) {
	before := testutil.ToFloat64(gatewayCalls.WithLabelValues("get_products", "read", "ok"))
	RecordGatewayCall("get_products", "read", "ok", 10*time.Millisecond)
	after := testutil.ToFloat64(gatewayCalls.WithLabelValues("get_products", "read", "ok"))
	assert.InDelta(t, 1.0, after-before, 1e-9)
}

func TestInstrumentLedger(t *testing.T) {
	h := InstrumentLedger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	before := testutil.ToFloat64(ledgerRequests.WithLabelValues("get_products", "418"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/rpc/get_products", nil))
	after := testutil.ToFloat64(ledgerRequests.WithLabelValues("get_products", "418"))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.InDelta(t, 1.0, after-before, 1e-9)
}

func TestHandlerExposesCollectors(t *testing.T) {
	RecordWorkflow("checkout", "ok")
	RecordAgentCall("consultation", "timeout")

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "aromance_workflow_runs_total")
	assert.Contains(t, string(body), "aromance_agent_calls_total")
}
