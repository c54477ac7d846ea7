package receiver

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/obdlink/metrics"
	"github.com/jd3nn1s/obdlink/telemetry"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Publisher relays the latest record to MQTT as JSON, flagged stale when no
// frame has arrived within the timeout.
type Publisher struct {
	client  mqtt.Client
	topic   string
	store   *Store
	timeout time.Duration
	now     func() time.Time

	wasStale bool
}

func NewPublisher(client mqtt.Client, topic string, store *Store, timeout time.Duration) *Publisher {
	return &Publisher{
		client:  client,
		topic:   topic,
		store:   store,
		timeout: timeout,
		now:     time.Now,
	}
}

// PublishOnce sends the current snapshot. Nothing is sent before the first
// frame arrives.
func (p *Publisher) PublishOnce() (bool, error) {
	snap, ok := p.store.Load()
	if !ok {
		return false, nil
	}
	stale := snap.IsStale(p.now(), p.timeout)
	p.noteStale(stale, snap.ReceivedAt)

	data, err := json.Marshal(telemetry.NewPayload(snap.Record, stale))
	if err != nil {
		return false, errors.Wrap(err, "unable to marshal telemetry payload")
	}
	token := p.client.Publish(p.topic, 0, false, data)
	token.Wait()
	if err := token.Error(); err != nil {
		return false, errors.Wrapf(err, "unable to publish to %s", p.topic)
	}
	log.WithField("topic", p.topic).WithField("stale", stale).Debug("published telemetry")
	return true, nil
}

func (p *Publisher) noteStale(stale bool, last time.Time) {
	if stale {
		metrics.RecordStale.Set(1)
	} else {
		metrics.RecordStale.Set(0)
	}
	if stale == p.wasStale {
		return
	}
	p.wasStale = stale
	if stale {
		log.WithField("lastReceived", last).Warn("telemetry is stale")
	} else {
		log.Info("telemetry is live again")
	}
}

func (p *Publisher) Start(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := p.PublishOnce(); err != nil {
			log.WithField("err", err).Error("unable to relay telemetry")
		}
	}
}
