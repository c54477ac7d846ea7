package bridge

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const (
	defaultRecent = 100
	maxRecent     = 10000
)

// Bridge stores relayed telemetry and fans it out to live viewers.
type Bridge struct {
	store *MetricStore
	hub   *Hub
	now   func() time.Time
}

func New(store *MetricStore, hub *Hub) *Bridge {
	return &Bridge{
		store: store,
		hub:   hub,
		now:   time.Now,
	}
}

// Subscribe routes messages on topic to HandleMessage.
func (b *Bridge) Subscribe(client mqtt.Client, topic string) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, m mqtt.Message) {
		if err := b.HandleMessage(m.Payload()); err != nil {
			log.WithField("err", err).WithField("topic", m.Topic()).Error("unable to handle telemetry message")
		}
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "unable to subscribe to %s", topic)
	}
	log.WithField("topic", topic).Info("subscribed")
	return nil
}

func (b *Bridge) HandleMessage(data []byte) error {
	p := telemetry.Payload{}
	if err := json.Unmarshal(data, &p); err != nil {
		return errors.Wrap(err, "unable to parse telemetry json")
	}
	if err := b.store.Insert(p, b.now()); err != nil {
		return err
	}
	metrics.BridgeInserts.Inc()
	b.hub.Broadcast(data)

	entry := log.WithField("rpm", p.RPM).
		WithField("speed", p.Speed).
		WithField("gear", p.GearLabel()).
		WithField("torque_slip", p.TorqueSlip)
	if p.Slipping() {
		entry.Warn("inserted [SLIP!]")
	} else {
		entry.Info("inserted")
	}
	return nil
}

// Handler serves /recent, /ws and /metrics.
func (b *Bridge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/recent", b.serveRecent)
	mux.Handle("/ws", b.hub)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (b *Bridge) serveRecent(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecent
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > maxRecent {
			http.Error(w, "bad limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	rows, err := b.store.Recent(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = []Metric{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(rows); err != nil {
		log.WithField("err", err).Debug("unable to write /recent response")
	}
}
