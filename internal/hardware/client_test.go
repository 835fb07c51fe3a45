package hardware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clinic-session-service/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBridge(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/state", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"body_temp":36.8,"bpm":71}`))
	})
	mux.HandleFunc("/api/ports", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ports":[{"device":"COM3","description":"CP210x USB","likely_esp32":true}],` +
			`"current":"COM3","serial_status":"Connected","connected":true}`))
	})
	mux.HandleFunc("/api/ports/select", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		if body["port"] != "COM3" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Port ` + body["port"] + ` not found"}`))
			return
		}

		_, _ = w.Write([]byte(`{"success":true,"port":"COM3","status":"Connected","connected":true}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestState(t *testing.T) {
	c := New(testLogger(), newBridge(t).URL, time.Second)

	st, err := c.State(context.Background())

	require.NoError(t, err)
	require.NotNil(t, st.BodyTemp)
	assert.Equal(t, 36.8, *st.BodyTemp)
}

func TestPorts(t *testing.T) {
	c := New(testLogger(), newBridge(t).URL, time.Second)

	p, err := c.Ports(context.Background())

	require.NoError(t, err)
	require.Len(t, p.Ports, 1)
	assert.Equal(t, "COM3", p.Ports[0].Device)
	assert.True(t, p.Ports[0].LikelyESP32)
	assert.True(t, p.Connected)
	require.NotNil(t, p.Current)
	assert.Equal(t, "COM3", *p.Current)

	connected, err := c.Connected(context.Background())
	require.NoError(t, err)
	assert.True(t, connected)
}

func TestSelectPort(t *testing.T) {
	c := New(testLogger(), newBridge(t).URL, time.Second)

	sel, err := c.SelectPort(context.Background(), "COM3")

	require.NoError(t, err)
	assert.True(t, sel.Success)
	assert.True(t, sel.Connected)
	assert.Equal(t, "Connected", sel.Status)
}

func TestSelectPort_BridgeErrorCarriesMessage(t *testing.T) {
	c := New(testLogger(), newBridge(t).URL, time.Second)

	_, err := c.SelectPort(context.Background(), "COM9")

	require.ErrorIs(t, err, response.ErrHardwareUnavailable)
	assert.Contains(t, err.Error(), "Port COM9 not found")
}

func TestUnreachableBridge(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(testLogger(), url, 200*time.Millisecond)

	_, err := c.State(context.Background())
	assert.ErrorIs(t, err, response.ErrHardwareUnavailable)

	_, err = c.Ports(context.Background())
	assert.ErrorIs(t, err, response.ErrHardwareUnavailable)

	connected, err := c.Connected(context.Background())
	assert.False(t, connected)
	assert.ErrorIs(t, err, response.ErrHardwareUnavailable)
}
