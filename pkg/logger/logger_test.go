package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]Digest
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, _ []byte, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, value.([]Digest))
	return nil
}

func (p *recordingPublisher) all() []Digest {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Digest
	for _, b := range p.batches {
		out = append(out, b...)
	}
	return out
}

func TestLoggerWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel).With(String("component", "pipeline"))

	l.Debug("hidden")
	l.Info("forecast served",
		String("filter", "crude|CN|import"),
		Int("horizon", 3),
		Duration("took", 1500*time.Millisecond),
		Bool("superseded", false),
	)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "forecast served", entry["message"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, float64(3), entry["horizon"])
	assert.Equal(t, float64(1500), entry["took"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(&Config{Level: "chatty", Output: "stdout"})
	assert.Error(t, err)
}

func TestCollectorGroupsRepeatedErrors(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(CollectorConfig{
		Interval:  time.Hour,
		Topic:     "tradecast.logs",
		Source:    "tradecast",
		GroupBy:   []string{"kind"},
		Publisher: pub,
	})

	l := Nop()
	l.AttachCollector(c)
	for i := 0; i < 5; i++ {
		l.Error("forecast failed", String("kind", "data_source"), Int("attempt", i), Error(errors.New("timeout")))
	}
	l.Error("forecast failed", String("kind", "model_fit"))
	assert.Equal(t, 2, c.Pending())

	l.Close()

	digests := pub.all()
	require.Len(t, digests, 2)
	assert.Equal(t, "tradecast.logs", pub.topic)

	counts := map[interface{}]int{}
	for _, d := range digests {
		counts[d.Fields["kind"]] = d.Count
		assert.NotContains(t, d.Fields, "attempt")
	}
	assert.Equal(t, 5, counts["data_source"])
	assert.Equal(t, 1, counts["model_fit"])
}

func TestCollectorFlushesAtGroupLimit(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewCollector(CollectorConfig{Interval: time.Hour, MaxGroups: 2, Publisher: pub})

	c.Add("error", "a", nil, "x.go:1")
	c.Add("error", "b", nil, "x.go:2")
	c.Close()

	assert.Len(t, pub.all(), 2)
	assert.Equal(t, 0, c.Pending())
}
