package bridge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jd3nn1s/obdlink/broker/brokertest"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *MetricStore {
	s, err := NewMetricStore(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMetricStore(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Recent(10)
	assert.NoError(t, err)
	assert.Empty(t, rows)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		p := telemetry.NewPayload(telemetry.Record{RPM: i * 1000, ManifoldPressure: 150, DemandedTorque: 20}, false)
		assert.NoError(t, s.Insert(p, base.Add(time.Duration(i)*time.Second)))
	}

	rows, err = s.Recent(2)
	assert.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3000, rows[0].RPM)
	assert.Equal(t, 2000, rows[1].RPM)
	assert.Equal(t, 50, rows[0].BoostPressure)
	assert.Equal(t, 20, rows[0].TorqueSlip)
	assert.True(t, base.Add(3*time.Second).Equal(rows[0].Time))
}

func TestHandleMessage(t *testing.T) {
	s := newTestStore(t)
	b := New(s, NewHub())

	data, err := json.Marshal(telemetry.NewPayload(telemetry.Record{RPM: 3100, ActualGear: 3, DemandedTorque: 80, ActualTorque: 50}, false))
	require.NoError(t, err)
	assert.NoError(t, b.HandleMessage(data))

	assert.Error(t, b.HandleMessage([]byte("{not json")))

	rows, err := s.Recent(10)
	assert.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3100, rows[0].RPM)
	assert.Equal(t, 3, rows[0].ActualGear)
	assert.Equal(t, 30, rows[0].TorqueSlip)
}

func TestHandleMessageMissingFields(t *testing.T) {
	s := newTestStore(t)
	b := New(s, NewHub())

	// older senders don't send the transmission fields
	assert.NoError(t, b.HandleMessage([]byte(`{"rpm": 900, "speed": 0}`)))
	rows, err := s.Recent(1)
	assert.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 900, rows[0].RPM)
	assert.Equal(t, 0, rows[0].ActualGear)
}

func TestSubscribe(t *testing.T) {
	s := newTestStore(t)
	b := New(s, NewHub())
	mc := &brokertest.Client{}
	assert.NoError(t, b.Subscribe(mc, "car/telemetry"))

	assert.True(t, mc.Deliver("car/telemetry", []byte(`{"rpm": 1500}`)))
	rows, err := s.Recent(1)
	assert.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1500, rows[0].RPM)
}

func TestRecentEndpoint(t *testing.T) {
	s := newTestStore(t)
	b := New(s, NewHub())
	assert.NoError(t, b.HandleMessage([]byte(`{"rpm": 700}`)))

	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/recent?limit=5")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []Metric
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 700, rows[0].RPM)

	bad, err := http.Get(srv.URL + "/recent?limit=-1")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestWebsocketBroadcast(t *testing.T) {
	s := newTestStore(t)
	hub := NewHub()
	b := New(s, hub)
	srv := httptest.NewServer(b.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	msg := []byte(`{"rpm": 2222}`)
	assert.NoError(t, b.HandleMessage(msg))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}
