package broker

import (
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/obdlink/broker/brokertest"
	"github.com/jd3nn1s/obdlink/config"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func stubClient(t *testing.T, c *brokertest.Client) {
	orig := newClient
	newClient = func(*mqtt.ClientOptions) mqtt.Client {
		return c
	}
	t.Cleanup(func() { newClient = orig })
}

func TestOptions(t *testing.T) {
	opts := Options(config.MQTT{
		Broker:   "tcp://localhost:1883",
		ClientID: "tsi-receiver",
		Username: "car",
		Password: "secret",
	})
	assert.Equal(t, "tsi-receiver", opts.ClientID)
	assert.Equal(t, "car", opts.Username)
	assert.Equal(t, "secret", opts.Password)
	assert.True(t, opts.AutoReconnect)
	assert.True(t, opts.ConnectRetry)
	assert.Len(t, opts.Servers, 1)
}

func TestConnect(t *testing.T) {
	mc := &brokertest.Client{}
	stubClient(t, mc)
	c, err := Connect(config.Default().Receiver.MQTT)
	assert.NoError(t, err)
	assert.Equal(t, mc, c)
}

func TestConnectError(t *testing.T) {
	stubClient(t, &brokertest.Client{ConnectErr: errors.New("refused")})
	_, err := Connect(config.Default().Receiver.MQTT)
	assert.Error(t, err)
}
