package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/jd3nn1s/obdlink/bridge"
	"github.com/jd3nn1s/obdlink/broker"
	"github.com/jd3nn1s/obdlink/config"
	"github.com/jd3nn1s/obdlink/metrics"
	log "github.com/sirupsen/logrus"
)

var configFile = flag.String("config", "obdlink.toml", "configuration file (toml or yaml)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	store, err := bridge.NewMetricStore(cfg.Bridge.DBPath)
	if err != nil {
		log.Fatal("unable to open metric store: ", err)
	}
	defer store.Close()

	b := bridge.New(store, bridge.NewHub())

	// resubscribe whenever paho reconnects
	opts := broker.Options(cfg.Bridge.MQTT)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		if err := b.Subscribe(c, cfg.Bridge.MQTT.Topic); err != nil {
			log.WithField("err", err).Error("unable to subscribe")
		}
	})
	client, err := broker.ConnectWithOptions(opts)
	if err != nil {
		log.Fatal("unable to connect to mqtt: ", err)
	}
	defer broker.Disconnect(client)

	srv := &http.Server{Addr: cfg.Bridge.WebAddr, Handler: b.Handler()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.WithField("addr", cfg.Bridge.WebAddr).Info("serving bridge")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithField("err", err).Error("bridge web server stopped")
	}
}
