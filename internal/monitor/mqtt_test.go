package monitor

import (
	"io"
	"log/slog"
	"testing"

	"clinic-session-service/internal/biometrics"
	"clinic-session-service/internal/config"
	"clinic-session-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIngester struct {
	got map[string][]biometrics.Sample
	err error
}

func (r *recordingIngester) Ingest(id string, s biometrics.Sample) error {
	if r.err != nil {
		return r.err
	}
	if r.got == nil {
		r.got = make(map[string][]biometrics.Sample)
	}
	r.got[id] = append(r.got[id], s)
	return nil
}

func newTestConsumer(ing Ingester) *Consumer {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewConsumer(log, config.MQTT{
		Broker:      "tcp://127.0.0.1:1883",
		ClientID:    "test",
		TopicPrefix: "monitor",
		QoS:         1,
	}, ing)
}

func TestNewConsumer_TopicFilter(t *testing.T) {
	c := newTestConsumer(&recordingIngester{})

	assert.Equal(t, "monitor/+/samples", c.topic)
	assert.Equal(t, byte(1), c.qos)
}

func TestHandleMessage_RoutesSample(t *testing.T) {
	ing := &recordingIngester{}
	c := newTestConsumer(ing)

	err := c.HandleMessage("monitor/appt-1/samples",
		[]byte(`{"heartRate":72,"speechNoise":41.5,"movementLevel":0.3,"facialStress":4}`))

	require.NoError(t, err)
	require.Len(t, ing.got["appt-1"], 1)
	assert.Equal(t, biometrics.Sample{HeartRate: 72, SpeechNoise: 41.5, MovementLevel: 0.3, FacialStress: 4}, ing.got["appt-1"][0])
}

func TestHandleMessage_BadTopic(t *testing.T) {
	ing := &recordingIngester{}
	c := newTestConsumer(ing)

	for _, topic := range []string{"monitor/samples", "monitor/appt-1/state", "monitor//samples"} {
		err := c.HandleMessage(topic, []byte(`{}`))
		assert.ErrorIs(t, err, response.ErrInvalidInput, topic)
	}
	assert.Empty(t, ing.got)
}

func TestHandleMessage_BadPayload(t *testing.T) {
	ing := &recordingIngester{}
	c := newTestConsumer(ing)

	err := c.HandleMessage("monitor/appt-1/samples", []byte(`not json`))

	assert.ErrorIs(t, err, response.ErrInvalidInput)
	assert.Empty(t, ing.got)
}

func TestHandleMessage_UnknownSessionIsDropped(t *testing.T) {
	c := newTestConsumer(&recordingIngester{err: response.ErrNotFound})

	err := c.HandleMessage("monitor/appt-9/samples", []byte(`{"heartRate":80}`))

	assert.ErrorIs(t, err, response.ErrNotFound)
}
