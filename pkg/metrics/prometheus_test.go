package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordError("data_source")
	r.RecordError("data_source")
	r.RecordSuperseded("websocket")
	r.RecordForecast("local", 3)
	r.RecordQueueDepth(7)
	r.RecordStage("fit", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("data_source")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.superseded.WithLabelValues("websocket")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.forecasts.WithLabelValues("local")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.queueDepth))
	assert.Equal(t, 1, testutil.CollectAndCount(r.stageLatency))
}
