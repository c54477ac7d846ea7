package broker

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/obdlink/config"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	connectRetryInterval = 5 * time.Second
	disconnectQuiesceMS  = 250
)

// Options builds paho client options that keep reconnecting on their own.
func Options(cfg config.MQTT) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(connectRetryInterval)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(c mqtt.Client, err error) {
		log.WithField("err", err).Warn("mqtt connection lost")
	})
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.WithField("broker", cfg.Broker).Info("mqtt connection established")
	})
	return opts
}

// to allow testing
var newClient = mqtt.NewClient

func Connect(cfg config.MQTT) (mqtt.Client, error) {
	return ConnectWithOptions(Options(cfg))
}

// ConnectWithOptions is Connect for callers that need to add handlers, for
// example to resubscribe after a reconnect.
func ConnectWithOptions(opts *mqtt.ClientOptions) (mqtt.Client, error) {
	client := newClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, errors.Wrap(err, "unable to connect to mqtt broker")
	}
	return client, nil
}

// Disconnect waits briefly for in-flight work before closing.
func Disconnect(client mqtt.Client) {
	client.Disconnect(disconnectQuiesceMS)
}
