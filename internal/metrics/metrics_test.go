package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/netsync/internal/marshal"
	"github.com/roach88/netsync/internal/session"
	"github.com/roach88/netsync/internal/testutil"
	"github.com/roach88/netsync/internal/value"
)

var crate = &marshal.ClassDesc{
	Name:      "Crate",
	Replicate: true,
	Fields: []marshal.FieldDesc{
		{Name: "OwnerClientId", Type: marshal.Int64Type},
		{Name: "Weight", Type: marshal.FloatType},
	},
}

func TestCollectorCountsSessionActivity(t *testing.T) {
	c := New(false)
	factory := session.NewFactory()
	require.NoError(t, factory.RegisterClass(crate))

	s, err := session.New(1, factory, testutil.NewRecordingCaller(), session.WithMetrics(c))
	require.NoError(t, err)

	s.Enqueue(session.CreateEvent(5, "Crate", nil))
	s.Enqueue(session.PropertyEvent(5, "Weight", value.MustMarshal(value.Float(2))))
	s.Enqueue(session.PropertyEvent(6, "Weight", value.MustMarshal(value.Float(2))))
	s.Drain(t.Context())

	assert.Equal(t, 1.0, promtest.ToFloat64(c.events.WithLabelValues("create")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.events.WithLabelValues("property")))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.failures.WithLabelValues("property", string(session.ErrCodeUnknownID))))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.registrySize))
	assert.Equal(t, 0.0, promtest.ToFloat64(c.queueDepth))

	err = s.SetProperty(5, "Weight", value.Float(3))
	assert.True(t, session.IsCode(err, session.ErrCodeAuthorityDenied))
	assert.Equal(t, 1.0, promtest.ToFloat64(c.denied.WithLabelValues("set_property")))
}

func TestHandlerServesText(t *testing.T) {
	c := New(true)
	c.Reconciled("corrected")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `netsync_predict_reconciliations_total{outcome="corrected"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
