package receiver

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/jd3nn1s/obdlink/broker/brokertest"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/jd3nn1s/obdlink/wire"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestListener(t *testing.T, framed bool) (*Listener, *Store, *Monitor) {
	store, monitor := &Store{}, &Monitor{}
	l, err := NewListener("127.0.0.1:0", framed, store, monitor)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, store, monitor
}

func TestHandleDatagram(t *testing.T) {
	l, store, monitor := newTestListener(t, false)

	r := telemetry.Record{RPM: 1674, Speed: 60, Timestamp: 99}
	assert.NoError(t, l.HandleDatagram(wire.Encode(r), ms(1000)))
	snap, ok := store.Load()
	assert.True(t, ok)
	assert.Equal(t, r, snap.Record)
	last, _ := monitor.LastReceived()
	assert.Equal(t, int64(1000), last.UnixMilli())

	// a short frame changes nothing
	err := l.HandleDatagram(wire.Encode(telemetry.Record{RPM: 1})[:31], ms(2000))
	assert.Equal(t, wire.ErrFrameLength, errors.Cause(err))
	snap, _ = store.Load()
	assert.Equal(t, r, snap.Record)
	last, _ = monitor.LastReceived()
	assert.Equal(t, int64(1000), last.UnixMilli())
}

func TestHandleDatagramFramed(t *testing.T) {
	l, store, monitor := newTestListener(t, true)

	r := telemetry.Record{CoolantTemp: 90}
	assert.NoError(t, l.HandleDatagram(wire.Seal(wire.Encode(r)), ms(1)))
	snap, _ := store.Load()
	assert.Equal(t, r, snap.Record)

	corrupt := wire.Seal(wire.Encode(telemetry.Record{CoolantTemp: 10}))
	corrupt[3] ^= 0xFF
	err := l.HandleDatagram(corrupt, ms(2))
	assert.Equal(t, wire.ErrChecksum, errors.Cause(err))
	assert.Equal(t, "checksum", rejectReason(err))
	snap, _ = store.Load()
	assert.Equal(t, r, snap.Record)
	last, _ := monitor.LastReceived()
	assert.Equal(t, int64(1), last.UnixMilli())

	// legacy frames are refused on a framed link
	err = l.HandleDatagram(wire.Encode(r), ms(3))
	assert.Equal(t, "length", rejectReason(err))
}

func TestListenerStart(t *testing.T) {
	l, store, _ := newTestListener(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		assert.Equal(t, context.Canceled, l.Start(ctx))
		wg.Done()
	}()

	conn, err := net.Dial("udp", l.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	r := telemetry.Record{Speed: 88}
	_, err = conn.Write(wire.Encode(r))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		snap, ok := store.Load()
		return ok && snap.Record == r
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestPublisher(t *testing.T) {
	store := &Store{}
	mc := &brokertest.Client{}
	p := NewPublisher(mc, "car/telemetry", store, DefaultTimeout)
	now := ms(0)
	p.now = func() time.Time { return now }

	published, err := p.PublishOnce()
	assert.NoError(t, err)
	assert.False(t, published, "nothing before the first frame")
	assert.Empty(t, mc.Messages())

	store.Publish(telemetry.Record{RPM: 2000, ManifoldPressure: 150}, ms(1000))
	now = ms(10999)
	published, err = p.PublishOnce()
	assert.NoError(t, err)
	assert.True(t, published)

	now = ms(11001)
	_, err = p.PublishOnce()
	assert.NoError(t, err)

	msgs := mc.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "car/telemetry", msgs[0].Topic)

	fresh := telemetry.Payload{}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &fresh))
	assert.Equal(t, 2000, fresh.RPM)
	assert.Equal(t, 50, fresh.BoostPressure)
	assert.False(t, fresh.Stale)

	stale := telemetry.Payload{}
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &stale))
	assert.True(t, stale.Stale)
	assert.Equal(t, 2000, stale.RPM, "stale records keep their last values")
}

func TestPublisherError(t *testing.T) {
	store := &Store{}
	store.Publish(telemetry.Record{}, time.Now())
	mc := &brokertest.Client{PublishErr: errors.New("broker down")}
	p := NewPublisher(mc, "car/telemetry", store, DefaultTimeout)
	_, err := p.PublishOnce()
	assert.Error(t, err)
}

func TestPublisherStaleFromSnapshot(t *testing.T) {
	store := &Store{}
	mc := &brokertest.Client{}
	p := NewPublisher(mc, "car/telemetry", store, DefaultTimeout)
	p.now = func() time.Time { return ms(1000) }

	// the record and its liveness are read from one snapshot
	store.Publish(telemetry.Record{Speed: 60}, ms(1000))
	published, err := p.PublishOnce()
	assert.NoError(t, err)
	assert.True(t, published)

	msgs := mc.Messages()
	require.Len(t, msgs, 1)
	payload := telemetry.Payload{}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &payload))
	assert.Equal(t, 60, payload.Speed)
	assert.False(t, payload.Stale)
}
