package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.UploadsTotal.WithLabelValues("public").Inc()
	m.UploadsTotal.WithLabelValues("public").Inc()
	m.UploadsTotal.WithLabelValues("private").Inc()
	m.LoginsTotal.WithLabelValues(LoginFailure).Inc()
	m.ReconcilePurgedTotal.Add(3)
	m.ActiveSessions.Set(5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("public")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UploadsTotal.WithLabelValues("private")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(LoginFailure)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ReconcilePurgedTotal))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ActiveSessions))

	n, err := testutil.GatherAndCount(reg, "picshare_uploads_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNew_IndependentInstances(t *testing.T) {
	a := New(nil)
	b := New(nil)

	a.RenamesTotal.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.RenamesTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.RenamesTotal))
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ReconcilePurgedTotal.Inc()

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "picshare_reconcile_purged_total 1"))
}
